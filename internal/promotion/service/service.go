// Package service is the application layer of the promotions engine: it keeps
// the active promotions compiled in memory, resolves the catalog for a cart
// and runs the engine. It also owns promotion management.
package service

import (
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"promotions/internal/promotion/condition"
	"promotions/internal/promotion/condition/expr"
	"promotions/internal/promotion/discount"
	"promotions/internal/promotion/engine"
	"promotions/internal/promotion/metrics"
)

const tracerName = "promotions/service"

// Service evaluates carts and manages promotion definitions.
type Service struct {
	store     PromotionStore
	catalog   Catalog
	publisher EventPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer

	conditions *condition.Registry
	discounts  *discount.Registry
	rules      *expr.Rules
	engine     *engine.Engine

	maxIterations   int
	enforceSubtotal bool

	mu     sync.RWMutex
	active []engine.Promotion
	loaded bool
	group  singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics enables prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPublisher publishes a change event for every created or updated promotion.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithTracer replaces the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithMaxIterations bounds how often one promotion is re-run per cart.
func WithMaxIterations(n int) Option {
	return func(s *Service) {
		s.maxIterations = n
	}
}

// WithSubtotalEnforcement makes subtotal_gte compare the cart subtotal
// instead of always passing.
func WithSubtotalEnforcement(enabled bool) Option {
	return func(s *Service) {
		s.enforceSubtotal = enabled
	}
}

// New creates the service. The store and the catalog are required.
func New(store PromotionStore, catalog Catalog, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("promotion store is required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}

	svc := &Service{
		store:         store,
		catalog:       catalog,
		logger:        slog.New(slog.DiscardHandler),
		maxIterations: engine.DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.tracer == nil {
		svc.tracer = otel.Tracer(tracerName)
	}

	var registryOpts []condition.RegistryOption
	if svc.enforceSubtotal {
		registryOpts = append(registryOpts, condition.WithSubtotalEnforcement())
	}
	svc.conditions = condition.NewRegistry(registryOpts...)
	rules, err := expr.New()
	if err != nil {
		return nil, err
	}
	rules.Register(svc.conditions)
	svc.rules = rules
	svc.discounts = discount.NewRegistry()

	svc.engine = engine.New(
		engine.WithConditionEvaluator(condition.NewEvaluator(svc.conditions, condition.WithLogger(svc.logger))),
		engine.WithDiscountEvaluator(discount.NewEvaluator(svc.discounts, discount.WithLogger(svc.logger))),
		engine.WithMaxIterations(svc.maxIterations),
		engine.WithLogger(svc.logger),
	)
	return svc, nil
}
