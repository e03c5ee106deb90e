package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dErrors "promotions/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "internal_error" {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("validation error includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeValidation, "cart.items is required"))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "validation_error" {
			t.Fatalf("expected error code validation_error, got %q", body["error"])
		}
		if body["error_description"] != "cart.items is required" {
			t.Fatalf("expected error_description to be returned for validation errors")
		}
	})

	t.Run("plain error is reported as internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, errors.New("boom"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
	})

	t.Run("invariant violation hides description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInvariantViolation, "unknown operator \"foo\""))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
		if strings.Contains(w.Body.String(), "foo") {
			t.Fatalf("expected description to be omitted, got %s", w.Body.String())
		}
	})
}

type sampleRequest struct {
	Title string `json:"title"`
}

func (r *sampleRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
}

func (r *sampleRequest) Validate() error {
	if r.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	return nil
}

func TestDecodeAndPrepare(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("normalizes and validates", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"  3 for 2  "}`))
		w := httptest.NewRecorder()

		req, ok := DecodeAndPrepare[sampleRequest](w, r, logger, r.Context(), "req-1")
		if !ok {
			t.Fatalf("expected decode to succeed, got status %d", w.Code)
		}
		if req.Title != "3 for 2" {
			t.Fatalf("expected trimmed title, got %q", req.Title)
		}
	})

	t.Run("malformed JSON is a bad request", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
		w := httptest.NewRecorder()

		_, ok := DecodeAndPrepare[sampleRequest](w, r, logger, r.Context(), "req-2")
		if ok {
			t.Fatalf("expected decode to fail")
		}
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})

	t.Run("validation failure writes validation error", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"   "}`))
		w := httptest.NewRecorder()

		_, ok := DecodeAndPrepare[sampleRequest](w, r, logger, r.Context(), "req-3")
		if ok {
			t.Fatalf("expected validation to fail")
		}
		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "validation_error" {
			t.Fatalf("expected validation_error, got %q", body["error"])
		}
	})
}
