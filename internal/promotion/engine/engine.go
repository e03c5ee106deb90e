// Package engine runs an ordered list of promotions against a cart: it decides
// which promotions are fulfilled or almost fulfilled and applies the discounts
// of the fulfilled ones. It performs no I/O.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"promotions/internal/promotion/condition"
	"promotions/internal/promotion/discount"
	"promotions/internal/promotion/models"
	"promotions/pkg/requestcontext"
)

// DefaultMaxIterations bounds how many times one promotion is re-run. The
// bound grows with the cart: a repeat run only happens after a run reserved
// at least one unit, so a cart of n units allows n+1 runs.
const DefaultMaxIterations = 100

// ErrIterationLimit is returned when a promotion keeps being fulfilled past
// every run the cart quantity can explain.
var ErrIterationLimit = errors.New("promotion iteration limit reached")

// Promotion is a compiled promotion ready for evaluation.
type Promotion struct {
	ID       string
	Title    string
	Class    string
	Priority int
	If       condition.Node
	Then     discount.Node
}

// Input is everything one evaluation run needs. Promotions must be active and
// sorted by priority.
type Input struct {
	Cart       *models.Cart
	Catalog    models.Catalog
	Promotions []Promotion
	User       models.User
	// Now defaults to the request time carried by the context.
	Now time.Time
}

// Output is the result of one run. Cart is the input cart with discounts applied.
type Output struct {
	Cart            *models.Cart
	Fulfilled       []models.FulfilledPromotion
	AlmostFulfilled []models.AlmostFulfilledPromotion
	// Ledger is the quantity taken from each cart line by all fulfilled promotions.
	Ledger condition.Reservation
}

// Engine evaluates promotions.
type Engine struct {
	conditions    *condition.Evaluator
	discounts     *discount.Evaluator
	maxIterations int
	logger        *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithConditionEvaluator replaces the default condition evaluator.
func WithConditionEvaluator(e *condition.Evaluator) Option {
	return func(eng *Engine) {
		eng.conditions = e
	}
}

// WithDiscountEvaluator replaces the default discount evaluator.
func WithDiscountEvaluator(e *discount.Evaluator) Option {
	return func(eng *Engine) {
		eng.discounts = e
	}
}

// WithMaxIterations sets the minimum number of runs allowed for a single
// promotion. Larger carts raise the limit to their unit count plus one.
func WithMaxIterations(n int) Option {
	return func(eng *Engine) {
		if n > 0 {
			eng.maxIterations = n
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(eng *Engine) {
		eng.logger = logger
	}
}

// New creates an engine with the built-in operators.
func New(opts ...Option) *Engine {
	e := &Engine{
		maxIterations: DefaultMaxIterations,
		logger:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.conditions == nil {
		e.conditions = condition.NewEvaluator(condition.NewRegistry())
	}
	if e.discounts == nil {
		e.discounts = discount.NewEvaluator(discount.NewRegistry())
	}
	return e
}

// Evaluate runs every promotion in order. Quantity taken by a fulfilled
// promotion is unavailable to the promotions after it.
func (e *Engine) Evaluate(ctx context.Context, in Input) (*Output, error) {
	cart := in.Cart
	if cart == nil {
		cart = &models.Cart{}
	}
	for _, item := range cart.Items {
		if _, ok := in.Catalog[item.ProductID]; !ok {
			return nil, &models.MissingProductError{ItemID: item.ID, ProductID: item.ProductID}
		}
	}

	now := in.Now
	if now.IsZero() {
		now = requestcontext.Now(ctx)
	}

	out := &Output{
		Cart:            cart,
		Fulfilled:       []models.FulfilledPromotion{},
		AlmostFulfilled: []models.AlmostFulfilledPromotion{},
		Ledger:          condition.Reservation{},
	}
	for _, promo := range in.Promotions {
		run := &promotionRun{
			engine: e,
			promo:  promo,
			out:    out,
			cond: &condition.Context{
				PromotionID: promo.ID,
				Cart:        cart,
				Catalog:     in.Catalog,
				User:        in.User,
				Now:         now,
				Committed:   out.Ledger,
			},
		}
		if err := run.execute(ctx); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// promotionRun evaluates one promotion until it stops being fulfilled.
type promotionRun struct {
	engine *Engine
	promo  Promotion
	out    *Output
	cond   *condition.Context
}

// limit is the number of runs allowed for the promotion on this cart.
func (r *promotionRun) limit() int {
	return max(r.engine.maxIterations, r.cond.Cart.ItemCount()+1)
}

func (r *promotionRun) execute(ctx context.Context) error {
	limit := r.limit()
	for iteration := 1; ; iteration++ {
		if iteration > limit {
			return fmt.Errorf("%w: promotion %q fulfilled %d times", ErrIterationLimit, r.promo.ID, limit)
		}

		working := condition.Reservation{}
		result, err := r.engine.conditions.Evaluate(r.cond, working, 0, r.promo.If)
		if err != nil {
			return fmt.Errorf("evaluate promotion %q: %w", r.promo.ID, err)
		}

		if !result.OK {
			if result.Data != nil {
				r.out.AlmostFulfilled = append(r.out.AlmostFulfilled, models.AlmostFulfilledPromotion{
					PromotionID: r.promo.ID,
					Diagnostics: []*models.Diagnostic{result.Data},
				})
				r.engine.logger.DebugContext(ctx, "promotion almost fulfilled",
					"promotion_id", r.promo.ID,
					"value", result.Data.Value,
				)
			}
			return nil
		}

		r.out.Ledger.Absorb(working)
		fulfilled := fulfilledItems(r.promo.ID, r.cond.Cart, working)
		if err := r.applyDiscounts(&fulfilled); err != nil {
			return err
		}
		r.out.Fulfilled = append(r.out.Fulfilled, fulfilled)
		r.engine.logger.DebugContext(ctx, "promotion fulfilled",
			"promotion_id", r.promo.ID,
			"iteration", iteration,
			"items", len(fulfilled.Items),
		)

		// Nothing was reserved, so another run would fulfill identically.
		if working.Total() == 0 {
			return nil
		}
	}
}

func (r *promotionRun) applyDiscounts(fulfilled *models.FulfilledPromotion) error {
	if r.promo.Then == nil {
		return nil
	}
	dctx := &discount.Context{
		PromotionID:    r.promo.ID,
		PromotionTitle: r.promo.Title,
		Cart:           r.cond.Cart,
		Catalog:        r.cond.Catalog,
		Fulfilled:      fulfilled,
	}
	if _, err := r.engine.discounts.Evaluate(dctx, 0, r.promo.Then); err != nil {
		return fmt.Errorf("apply discounts of promotion %q: %w", r.promo.ID, err)
	}
	return nil
}

// fulfilledItems lists the cart lines reserved by working in cart order.
func fulfilledItems(promotionID string, cart *models.Cart, working condition.Reservation) models.FulfilledPromotion {
	fp := models.FulfilledPromotion{PromotionID: promotionID, Items: []models.FulfilledItem{}}
	for _, item := range cart.Items {
		if used := working.Used(item.ID); used > 0 {
			fp.Items = append(fp.Items, models.FulfilledItem{ItemID: item.ID, QuantityUsed: used})
		}
	}
	return fp
}
