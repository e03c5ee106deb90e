// Package discount turns a satisfied promotion's reserved cart quantity into
// monetary adjustments on the cart lines.
package discount

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Operator tags.
const (
	TagAll        = "all"
	TagAnd        = "and"
	TagAny        = "any"
	TagProduct    = "product"
	TagCategory   = "category"
	TagCollection = "collection"
)

var hundred = decimal.NewFromInt(100)

// Node is one element of a promotion's discount tree.
type Node interface {
	Tag() string
}

// All applies every operand.
type All struct {
	Operands []Node
}

// Any applies operands until one succeeds.
type Any struct {
	Operands []Node
}

// Product discounts up to Quantity reserved units of one product.
type Product struct {
	ID       string
	Quantity int
	Discount Rate
}

// Category discounts up to Quantity reserved units within a category.
type Category struct {
	ID       string
	Quantity int
	Discount Rate
}

// Extension is a node with a tag outside the built-in set.
type Extension struct {
	Name string
	Args json.RawMessage
}

func (All) Tag() string { return TagAll }
func (Any) Tag() string { return TagAny }
func (Product) Tag() string { return TagProduct }
func (Category) Tag() string { return TagCategory }
func (e Extension) Tag() string { return e.Name }

// Rate describes how a discount is computed. With neither flag set Rate is a
// flat amount off per unit.
type Rate struct {
	Rate         decimal.Decimal `json:"rate"`
	IsPercentage bool            `json:"isPercentage,omitempty"`
	IsFixedPrice bool            `json:"isFixedPrice,omitempty"`
}

// Amount is the discount for quantity units at unitPrice.
func (r Rate) Amount(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	q := decimal.NewFromInt(int64(quantity))
	switch {
	case r.IsPercentage:
		// price=100, rate=10: discount 10
		return unitPrice.Mul(q).Mul(r.Rate).Div(hundred).Round(0)
	case r.IsFixedPrice:
		// price=100, rate=25: discount 75, the unit ends up costing 25.
		// A rate above the unit price yields a negative discount.
		return unitPrice.Mul(q).Sub(r.Rate.Mul(q))
	default:
		// price=100, rate=5: discount 5
		return r.Rate.Mul(q)
	}
}

// Walk calls fn for node and every node below it, depth first.
func Walk(node Node, fn func(Node) error) error {
	if err := fn(node); err != nil {
		return err
	}
	var operands []Node
	switch n := node.(type) {
	case All:
		operands = n.Operands
	case Any:
		operands = n.Operands
	}
	for _, op := range operands {
		if err := Walk(op, fn); err != nil {
			return err
		}
	}
	return nil
}
