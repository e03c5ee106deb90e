package condition

import (
	"fmt"
	"log/slog"
	"time"

	"promotions/internal/promotion/models"
)

// Context is the read-only input shared by every node of one promotion's
// evaluation.
type Context struct {
	PromotionID string
	Cart        *models.Cart
	Catalog     models.Catalog
	User        models.User
	Now         time.Time
	// Committed holds the quantity taken by promotions evaluated earlier in the run.
	Committed Reservation
}

// Result is the outcome of evaluating a node. Data is set when the node
// explains how close it came to being satisfied.
type Result struct {
	OK   bool
	Data *models.Diagnostic
}

// Evaluator walks condition trees.
type Evaluator struct {
	registry *Registry
	logger   *slog.Logger
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithLogger traces every evaluated node at debug level.
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

// Evaluate evaluates node against res. res is mutated only by operators that
// succeed.
func (e *Evaluator) Evaluate(ctx *Context, res Reservation, depth int, node Node) (Result, error) {
	if node == nil {
		return Result{}, fmt.Errorf("%w: nil node at depth %d", ErrMalformedNode, depth)
	}
	op, ok := e.registry.Lookup(node.Tag())
	if !ok {
		return Result{}, &UnknownOperatorError{Tag: node.Tag()}
	}

	result, err := op(ctx, res, depth, node, e.Evaluate)
	if err != nil {
		return Result{}, err
	}

	if e.logger != nil {
		attrs := []any{
			"promotion_id", ctx.PromotionID,
			"tag", node.Tag(),
			"depth", depth,
			"ok", result.OK,
		}
		if result.Data != nil {
			attrs = append(attrs, "value", result.Data.Value)
		}
		e.logger.Debug("condition evaluated", attrs...)
	}
	return result, nil
}
