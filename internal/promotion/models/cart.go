package models

import (
	"slices"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices and discounts travel as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// CartItem is one cart line. DiscountedItems, DiscountedTotal and Discounts are
// derived fields filled in while discounts are applied.
type CartItem struct {
	ID              string            `json:"id"`
	ProductID       string            `json:"productId"`
	Quantity        int               `json:"quantity"`
	Price           decimal.Decimal   `json:"price"`
	DiscountedItems int               `json:"discountedItems,omitempty"`
	DiscountedTotal decimal.Decimal   `json:"discountedTotal"`
	Discounts       []AppliedDiscount `json:"discounts,omitempty"`
}

// AppliedDiscount records one promotion's monetary adjustment on a cart line.
type AppliedDiscount struct {
	PromotionID    string          `json:"promotionId"`
	PromotionTitle string          `json:"promotionTitle"`
	Quantity       int             `json:"quantity"`
	Discount       decimal.Decimal `json:"discount"`
}

// Cart is the caller-owned cart. The engine annotates its items in place.
type Cart struct {
	ID    string     `json:"id,omitempty"`
	Items []CartItem `json:"items"`
}

// Item returns a pointer to the cart line with the given id.
func (c *Cart) Item(id string) (*CartItem, bool) {
	for i := range c.Items {
		if c.Items[i].ID == id {
			return &c.Items[i], true
		}
	}
	return nil, false
}

// ProductIDs lists the product ids referenced by the cart in line order.
func (c *Cart) ProductIDs() []string {
	ids := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

// Subtotal is the undiscounted cart total.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// ItemCount is the number of units in the cart.
func (c *Cart) ItemCount() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// Clone returns a deep copy so callers can evaluate without touching the input.
func (c *Cart) Clone() *Cart {
	out := &Cart{ID: c.ID, Items: make([]CartItem, len(c.Items))}
	for i, item := range c.Items {
		item.Discounts = slices.Clone(item.Discounts)
		out.Items[i] = item
	}
	return out
}
