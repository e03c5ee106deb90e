package condition

import (
	"slices"

	"promotions/internal/promotion/models"
)

// quantityTarget is the common shape of product and category conditions.
type quantityTarget struct {
	kind             string
	id               string
	quantity         int
	threshold        float64
	lowestPriceFirst bool
}

func evaluateProduct(ctx *Context, res Reservation, _ int, node Product, _ EvalFunc) (Result, error) {
	target := quantityTarget{
		kind:      models.DiagnosticProduct,
		id:        node.ID,
		quantity:  node.Quantity,
		threshold: node.Threshold,
	}
	return allocate(ctx, res, target, func(item models.CartItem) (bool, error) {
		return item.ProductID == node.ID, nil
	})
}

func evaluateCategory(ctx *Context, res Reservation, _ int, node Category, _ EvalFunc) (Result, error) {
	target := quantityTarget{
		kind:             models.DiagnosticCategory,
		id:               node.ID,
		quantity:         node.Quantity,
		threshold:        node.Threshold,
		lowestPriceFirst: node.LowestPriceFirst,
	}
	return allocate(ctx, res, target, func(item models.CartItem) (bool, error) {
		product, ok := ctx.Catalog[item.ProductID]
		if !ok {
			return false, &models.MissingProductError{ItemID: item.ID, ProductID: item.ProductID}
		}
		return product.InCategory(node.ID), nil
	})
}

// allocate greedily takes the target quantity from matching cart lines that
// still have units left after the committed ledger and res. Allocations reach
// res only when the full quantity is collected.
func allocate(ctx *Context, res Reservation, target quantityTarget, match func(models.CartItem) (bool, error)) (Result, error) {
	candidates := make([]models.CartItem, 0, len(ctx.Cart.Items))
	for _, item := range ctx.Cart.Items {
		ok, err := match(item)
		if err != nil {
			return Result{}, err
		}
		if ok {
			candidates = append(candidates, item)
		}
	}
	if target.lowestPriceFirst {
		slices.SortStableFunc(candidates, func(a, b models.CartItem) int {
			return a.Price.Cmp(b.Price)
		})
	}

	collected := 0
	var taken []models.ItemAllocation
	for _, item := range candidates {
		if collected >= target.quantity {
			break
		}
		available := item.Quantity - ctx.Committed.Used(item.ID) - res.Used(item.ID)
		if available <= 0 {
			continue
		}
		take := min(available, target.quantity-collected)
		collected += take
		taken = append(taken, models.ItemAllocation{ItemID: item.ID, QuantityToUse: take})
	}

	var value float64
	if collected > 0 {
		value = float64(collected) / float64(target.quantity)
	}

	// A zero threshold means none was configured.
	threshold := target.threshold
	if threshold == 0 {
		if collected == 0 {
			threshold = 1
		} else {
			threshold = float64(target.quantity-1) / float64(target.quantity)
		}
	}

	if value == 1 {
		for _, a := range taken {
			res.Reserve(a.ItemID, ctx.PromotionID, a.QuantityToUse)
		}
		return Result{OK: true}, nil
	}
	if value >= threshold {
		return Result{Data: &models.Diagnostic{
			CollectedQuantity: collected,
			PromoQuantity:     target.quantity,
			Threshold:         threshold,
			Value:             value,
			Type:              target.kind,
			Code:              target.id,
			Items:             taken,
		}}, nil
	}
	return Result{}, nil
}

func evaluatePeriod(ctx *Context, _ Reservation, _ int, node Period, _ EvalFunc) (Result, error) {
	ok := ctx.Now.After(node.From) && ctx.Now.Before(node.Until)
	return scored(ok, models.DiagnosticPeriod, ""), nil
}

func evaluateUserType(ctx *Context, _ Reservation, _ int, node UserType, _ EvalFunc) (Result, error) {
	return scored(ctx.User.Type == node.Value, models.DiagnosticUserType, node.Value), nil
}

func subtotalAlwaysSatisfied(*Context, Reservation, int, SubtotalGte, EvalFunc) (Result, error) {
	return Result{OK: true}, nil
}

func evaluateSubtotal(ctx *Context, _ Reservation, _ int, node SubtotalGte, _ EvalFunc) (Result, error) {
	subtotal := ctx.Cart.Subtotal()
	if !node.Threshold.IsPositive() || subtotal.GreaterThanOrEqual(node.Threshold) {
		return Result{OK: true}, nil
	}
	return Result{Data: &models.Diagnostic{
		Value: subtotal.Div(node.Threshold).InexactFloat64(),
		Type:  models.DiagnosticSubtotal,
		Code:  node.Threshold.String(),
	}}, nil
}

// scored is the all-or-nothing result shape of predicate leaves.
func scored(ok bool, kind, code string) Result {
	if ok {
		return Result{OK: true, Data: &models.Diagnostic{Value: 1, Type: kind, Code: code}}
	}
	return Result{Data: &models.Diagnostic{Value: 0, Type: kind, Code: code}}
}
