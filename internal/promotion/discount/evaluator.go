package discount

import (
	"fmt"
	"log/slog"

	"promotions/internal/promotion/models"
)

// Context is the input of one promotion's discount application. Cart lines and
// Fulfilled items are updated in place.
type Context struct {
	PromotionID    string
	PromotionTitle string
	Cart           *models.Cart
	Catalog        models.Catalog
	Fulfilled      *models.FulfilledPromotion
}

// Result reports whether a node applied.
type Result struct {
	OK bool
}

// Evaluator walks discount trees.
type Evaluator struct {
	registry *Registry
	logger   *slog.Logger
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithLogger traces every applied node at debug level.
func WithLogger(logger *slog.Logger) EvaluatorOption {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// NewEvaluator creates an evaluator dispatching through registry.
func NewEvaluator(registry *Registry, opts ...EvaluatorOption) *Evaluator {
	if registry == nil {
		registry = NewRegistry()
	}
	e := &Evaluator{registry: registry}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the registry the evaluator dispatches through.
func (e *Evaluator) Registry() *Registry {
	return e.registry
}

// Evaluate applies node to the promotion's reserved items.
func (e *Evaluator) Evaluate(ctx *Context, depth int, node Node) (Result, error) {
	if node == nil {
		return Result{}, fmt.Errorf("%w: nil node at depth %d", ErrMalformedNode, depth)
	}
	op, ok := e.registry.Lookup(node.Tag())
	if !ok {
		return Result{}, &UnknownOperatorError{Tag: node.Tag()}
	}
	result, err := op(ctx, depth, node, e.Evaluate)
	if err != nil {
		return Result{}, err
	}
	if e.logger != nil {
		e.logger.Debug("discount applied",
			"promotion_id", ctx.PromotionID,
			"tag", node.Tag(),
			"depth", depth,
			"ok", result.OK,
		)
	}
	return result, nil
}
