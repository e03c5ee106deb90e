// Package condition evaluates promotion eligibility trees against a cart.
//
// A tree is built from Node variants. The Evaluator dispatches every node to
// the Operator registered for its tag, threading a Reservation that records
// which cart quantity the promotion under evaluation has taken so far.
package condition

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Operator tags. Aliases decode to the same variant as their canonical tag.
const (
	TagAnd          = "and"
	TagAll          = "all"
	TagAny          = "any"
	TagProduct      = "product"
	TagCategory     = "category"
	TagCollection   = "collection"
	TagPeriod       = "period"
	TagUserType     = "userType"
	TagCustomerType = "customerType"
	TagSubtotalGte  = "subtotal_gte"
)

// Node is one condition in a promotion's eligibility tree.
type Node interface {
	Tag() string
}

// And is satisfied when every operand is satisfied.
type And struct {
	Operands  []Node
	Threshold float64
}

// Any is satisfied by the first satisfied operand.
type Any struct {
	Operands  []Node
	Threshold float64
}

// Product requires Quantity units of one product.
type Product struct {
	ID        string
	Quantity  int
	Threshold float64
}

// Category requires Quantity units of products belonging to a category.
type Category struct {
	ID               string
	Quantity         int
	Threshold        float64
	LowestPriceFirst bool
}

// Period is satisfied strictly between From and Until.
type Period struct {
	From  time.Time
	Until time.Time
}

// UserType is satisfied when the caller's user type equals Value.
type UserType struct {
	Value string
}

// SubtotalGte compares the cart subtotal against Threshold.
type SubtotalGte struct {
	Threshold decimal.Decimal
}

// Extension is a node whose tag is not a built-in variant. It is evaluated by
// whatever Operator is registered under Name.
type Extension struct {
	Name string
	Args json.RawMessage
}

func (And) Tag() string { return TagAnd }
func (Any) Tag() string { return TagAny }
func (Product) Tag() string { return TagProduct }
func (Category) Tag() string { return TagCategory }
func (Period) Tag() string { return TagPeriod }
func (UserType) Tag() string { return TagUserType }
func (SubtotalGte) Tag() string { return TagSubtotalGte }
func (e Extension) Tag() string { return e.Name }

// Walk calls fn for node and every node below it, depth first.
func Walk(node Node, fn func(Node) error) error {
	if err := fn(node); err != nil {
		return err
	}
	var operands []Node
	switch n := node.(type) {
	case And:
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
