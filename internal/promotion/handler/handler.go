// Package handler exposes cart evaluation and promotion management over HTTP.
package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"promotions/internal/promotion/models"
	dErrors "promotions/pkg/domain-errors"
	"promotions/pkg/platform/httputil"
	"promotions/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service defines the promotion operations the handlers call.
type Service interface {
	Evaluate(ctx context.Context, req *models.EvaluateRequest) (*models.EvaluateResult, error)
	CreatePromotion(ctx context.Context, req *models.CreatePromotionRequest) (*models.Promotion, error)
	GetPromotion(ctx context.Context, id string) (*models.Promotion, error)
	ListPromotions(ctx context.Context) ([]*models.Promotion, error)
	PatchPromotion(ctx context.Context, id string, patch []byte) (*models.Promotion, error)
}

const (
	mediaTypeMergePatch = "application/merge-patch+json"
	maxPatchBytes       = 1 << 20
)

// Handler serves the promotion routes.
type Handler struct {
	service Service
	logger  *slog.Logger
	admin   func(http.Handler) http.Handler
}

// Option configures a Handler.
type Option func(*Handler)

// WithAdminGuard protects the management routes with mw.
func WithAdminGuard(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.admin = mw
	}
}

// New creates a Handler.
func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &Handler{
		service: service,
		logger:  logger,
		admin:   func(next http.Handler) http.Handler { return next },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the promotion routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/cart/promotions", h.HandleEvaluate)

	r.Group(func(r chi.Router) {
		r.Use(h.admin)
		r.Post("/promotions", h.HandleCreate)
		r.Get("/promotions", h.HandleList)
		r.Get("/promotions/{id}", h.HandleGet)
		r.Patch("/promotions/{id}", h.HandlePatch)
	})
}

// HandleEvaluate runs the active promotions against the posted cart.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.EvaluateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Evaluate(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "cart evaluation failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "cart evaluated",
		"request_id", requestID,
		"fulfilled", len(result.FulfilledPromos),
		"almost_fulfilled", len(result.AlmostFulfilledPromos),
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.CreatePromotionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	promo, err := h.service.CreatePromotion(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to create promotion",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "promotion created",
		"request_id", requestID,
		"promotion_id", promo.ID,
	)
	w.Header().Set("Location", "/promotions/"+promo.ID)
	httputil.WriteJSON(w, http.StatusCreated, promo)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	promos, err := h.service.ListPromotions(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list promotions",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if promos == nil {
		promos = []*models.Promotion{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"data": promos})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	promo, err := h.service.GetPromotion(ctx, id)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "failed to get promotion",
				"request_id", requestcontext.RequestID(ctx),
				"promotion_id", id,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, promo)
}

// HandlePatch applies an RFC 7396 merge patch to a promotion.
func (h *Handler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	if ct := r.Header.Get("Content-Type"); ct != "" && !isPatchContentType(ct) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "content type must be "+mediaTypeMergePatch))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPatchBytes))
	if err != nil || len(body) == 0 {
		h.logger.WarnContext(ctx, "failed to read patch body",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "patch body is required"))
		return
	}

	promo, err := h.service.PatchPromotion(ctx, id, body)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to patch promotion",
			"request_id", requestID,
			"promotion_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "promotion updated",
		"request_id", requestID,
		"promotion_id", promo.ID,
	)
	httputil.WriteJSON(w, http.StatusOK, promo)
}

func isPatchContentType(ct string) bool {
	mediaType, _, _ := strings.Cut(ct, ";")
	mediaType = strings.TrimSpace(strings.ToLower(mediaType))
	return mediaType == mediaTypeMergePatch || mediaType == "application/json"
}
