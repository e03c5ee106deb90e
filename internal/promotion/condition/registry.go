package condition

import (
	"sync"
)

// EvalFunc evaluates a subtree. Operators receive it to recurse into operands.
type EvalFunc func(ctx *Context, res Reservation, depth int, node Node) (Result, error)

// Operator evaluates one node. depth is informational only.
type Operator func(ctx *Context, res Reservation, depth int, node Node, eval EvalFunc) (Result, error)

// Typed adapts a function over one node variant into an Operator.
func Typed[N Node](fn func(ctx *Context, res Reservation, depth int, node N, eval EvalFunc) (Result, error)) Operator {
	return func(ctx *Context, res Reservation, depth int, node Node, eval EvalFunc) (Result, error) {
		n, ok := node.(N)
		if !ok {
			return Result{}, &NodeTypeError{Tag: node.Tag(), Node: node}
		}
		return fn(ctx, res, depth, n, eval)
	}
}

// Registry maps operator tags to operators.
type Registry struct {
	mu        sync.RWMutex
	operators map[string]Operator
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithSubtotalEnforcement makes subtotal_gte compare the cart subtotal against
// its threshold instead of always passing.
func WithSubtotalEnforcement() RegistryOption {
	return func(r *Registry) {
		r.operators[TagSubtotalGte] = Typed(evaluateSubtotal)
	}
}

// NewRegistry returns a registry holding the built-in operators.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{operators: map[string]Operator{
		TagAnd:         Typed(evaluateAnd),
		TagAny:         Typed(evaluateAny),
		TagProduct:     Typed(evaluateProduct),
		TagCategory:    Typed(evaluateCategory),
		TagPeriod:      Typed(evaluatePeriod),
		TagUserType:    Typed(evaluateUserType),
		TagSubtotalGte: Typed(subtotalAlwaysSatisfied),
	}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds or replaces the operator for tag.
func (r *Registry) Register(tag string, op Operator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operators[tag] = op
}

// Lookup returns the operator for tag.
func (r *Registry) Lookup(tag string) (Operator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.operators[tag]
	return op, ok
}

// Validate reports the first node in the tree whose tag is not registered.
func (r *Registry) Validate(node Node) error {
	return Walk(node, func(n Node) error {
		if _, ok := r.Lookup(n.Tag()); !ok {
			return &UnknownOperatorError{Tag: n.Tag()}
		}
		return nil
	})
}
