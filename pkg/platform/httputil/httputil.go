// Package httputil holds the JSON response and request decoding helpers used
// by every HTTP handler.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "promotions/pkg/domain-errors"
)

// maxBodyBytes bounds request bodies decoded by DecodeAndPrepare.
const maxBodyBytes = 1 << 20

// Validatable is implemented by request types that check and normalize themselves.
type Validatable interface {
	Validate() error
}

type normalizer interface {
	Normalize()
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err to a status code and a client-safe error body.
// Errors without a domain code are reported as internal errors.
func WriteError(w http.ResponseWriter, err error) {
	de, ok := dErrors.From(err)
	if !ok {
		WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: string(dErrors.CodeInternal)})
		return
	}

	status := StatusForCode(de.Code)
	body := errorResponse{Error: string(de.Code)}
	if status < http.StatusInternalServerError {
		body.ErrorDescription = de.Message
	}
	WriteJSON(w, status, body)
}

// StatusForCode returns the HTTP status used for a domain error code.
func StatusForCode(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// DecodeAndPrepare decodes the JSON body into T, normalizes it when T supports
// it, and validates it. On failure the error response is already written and
// ok is false.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty body")
		}
		logger.WarnContext(ctx, "failed to decode request body",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return nil, false
	}

	ptr := PT(&req)
	if n, ok := any(ptr).(normalizer); ok {
		n.Normalize()
	}
	if err := ptr.Validate(); err != nil {
		logger.WarnContext(ctx, "request validation failed",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, err)
		return nil, false
	}
	return &req, true
}
