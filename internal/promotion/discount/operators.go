package discount

import (
	"fmt"

	"promotions/internal/promotion/models"
)

// applyAll applies every operand. It succeeds when at least one operand did.
func applyAll(ctx *Context, depth int, node All, eval EvalFunc) (Result, error) {
	ok := false
	for _, op := range node.Operands {
		r, err := eval(ctx, depth+1, op)
		if err != nil {
			return Result{}, err
		}
		ok = ok || r.OK
	}
	return Result{OK: ok}, nil
}

func applyAny(ctx *Context, depth int, node Any, eval EvalFunc) (Result, error) {
	for _, op := range node.Operands {
		r, err := eval(ctx, depth+1, op)
		if err != nil {
			return Result{}, err
		}
		if r.OK {
			return Result{OK: true}, nil
		}
	}
	return Result{}, nil
}

func applyProduct(ctx *Context, _ int, node Product, _ EvalFunc) (Result, error) {
	return apply(ctx, node.Quantity, node.Discount, func(item models.CartItem) (bool, error) {
		return item.ProductID == node.ID, nil
	})
}

func applyCategory(ctx *Context, _ int, node Category, _ EvalFunc) (Result, error) {
	return apply(ctx, node.Quantity, node.Discount, func(item models.CartItem) (bool, error) {
		product, ok := ctx.Catalog[item.ProductID]
		if !ok {
			return false, &models.MissingProductError{ItemID: item.ID, ProductID: item.ProductID}
		}
		return product.InCategory(node.ID), nil
	})
}

// apply discounts up to quantity units, walking the promotion's reserved items
// in order. Each item contributes at most the quantity reserved from it.
func apply(ctx *Context, quantity int, rate Rate, match func(models.CartItem) (bool, error)) (Result, error) {
	discounted := 0
	for i := range ctx.Fulfilled.Items {
		if discounted >= quantity {
			break
		}
		promoItem := &ctx.Fulfilled.Items[i]
		cartItem, ok := ctx.Cart.Item(promoItem.ItemID)
		if !ok {
			return Result{}, fmt.Errorf("reserved item %q is not in the cart", promoItem.ItemID)
		}
		matched, err := match(*cartItem)
		if err != nil {
			return Result{}, err
		}
		if !matched {
			continue
		}

		take := min(quantity-discounted, promoItem.QuantityUsed)
		if take <= 0 {
			continue
		}
		discounted += take
		amount := rate.Amount(cartItem.Price, take)

		promoItem.QuantityApplied += take
		cartItem.DiscountedItems += take
		cartItem.DiscountedTotal = cartItem.DiscountedTotal.Add(amount)
		cartItem.Discounts = append(cartItem.Discounts, models.AppliedDiscount{
			PromotionID:    ctx.PromotionID,
			PromotionTitle: ctx.PromotionTitle,
			Quantity:       take,
			Discount:       amount,
		})
	}
	return Result{OK: true}, nil
}
