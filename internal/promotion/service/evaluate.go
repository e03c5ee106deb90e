package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"promotions/internal/promotion/condition"
	"promotions/internal/promotion/discount"
	"promotions/internal/promotion/engine"
	"promotions/internal/promotion/models"
	dErrors "promotions/pkg/domain-errors"
	"promotions/pkg/platform/sentinel"
	"promotions/pkg/requestcontext"
)

// Evaluate runs the active promotions against the cart of req. The user type
// of the request wins over the one carried by ctx.
func (s *Service) Evaluate(ctx context.Context, req *models.EvaluateRequest) (*models.EvaluateResult, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "promotions.Evaluate",
		trace.WithAttributes(attribute.Int("cart.items", len(req.Cart.Items))),
	)
	defer span.End()
	defer func() {
		s.metrics.ObserveEvaluateLatency(time.Since(start))
	}()

	promos, err := s.activePromotions(ctx)
	if err != nil {
		return nil, s.fail(ctx, span, err)
	}

	cart := req.Cart.Clone()
	catalog, err := s.lookupCatalog(ctx, cart.ProductIDs())
	if err != nil {
		return nil, s.fail(ctx, span, err)
	}

	user := models.User{Type: requestcontext.UserType(ctx)}
	if req.User != nil && req.User.Type != "" {
		user = *req.User
	}

	out, err := s.engine.Evaluate(ctx, engine.Input{
		Cart:       cart,
		Catalog:    catalog,
		Promotions: promos,
		User:       user,
		Now:        requestcontext.Now(ctx),
	})
	if err != nil {
		return nil, s.fail(ctx, span, translateEngineError(err))
	}

	for _, fp := range out.Fulfilled {
		s.metrics.IncrementFulfilled(fp.PromotionID)
	}
	for _, ap := range out.AlmostFulfilled {
		s.metrics.IncrementAlmostFulfilled(ap.PromotionID)
	}
	span.SetAttributes(
		attribute.Int("promotions.evaluated", len(promos)),
		attribute.Int("promotions.fulfilled", len(out.Fulfilled)),
		attribute.Int("promotions.almost_fulfilled", len(out.AlmostFulfilled)),
	)
	s.logger.DebugContext(ctx, "cart evaluated",
		"request_id", requestcontext.RequestID(ctx),
		"items", len(cart.Items),
		"fulfilled", len(out.Fulfilled),
		"almost_fulfilled", len(out.AlmostFulfilled),
	)

	return &models.EvaluateResult{
		Cart:                  out.Cart,
		FulfilledPromos:       out.Fulfilled,
		AlmostFulfilledPromos: out.AlmostFulfilled,
	}, nil
}

func (s *Service) lookupCatalog(ctx context.Context, productIDs []string) (models.Catalog, error) {
	if len(productIDs) == 0 {
		return models.Catalog{}, nil
	}
	catalog, err := s.catalog.Products(ctx, productIDs)
	if err != nil {
		if errors.Is(err, sentinel.ErrUnavailable) {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "catalog unavailable")
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "catalog lookup timed out")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "catalog lookup failed")
	}
	return catalog, nil
}

// translateEngineError maps engine failures to domain errors. Unknown
// operators and runaway promotions are defects in stored data, not in the
// request.
func translateEngineError(err error) error {
	var missing *models.MissingProductError
	if errors.As(err, &missing) {
		return dErrors.Wrap(err, dErrors.CodeValidation, missing.Error())
	}
	var unknownCondition *condition.UnknownOperatorError
	var unknownDiscount *discount.UnknownOperatorError
	if errors.As(err, &unknownCondition) || errors.As(err, &unknownDiscount) {
		return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "promotion uses an unknown operator")
	}
	if errors.Is(err, engine.ErrIterationLimit) {
		return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "promotion iteration limit reached")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "cart evaluation failed")
}

func (s *Service) fail(ctx context.Context, span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	code := dErrors.CodeInternal
	if de, ok := dErrors.From(err); ok {
		code = de.Code
	}
	s.metrics.IncrementEvaluateError(string(code))
	s.logger.ErrorContext(ctx, "cart evaluation failed",
		"request_id", requestcontext.RequestID(ctx),
		"code", code,
		"error", err,
	)
	return err
}
