package discount

import "sync"

// EvalFunc applies a subtree.
type EvalFunc func(ctx *Context, depth int, node Node) (Result, error)

// Operator applies one node.
type Operator func(ctx *Context, depth int, node Node, eval EvalFunc) (Result, error)

// Typed adapts a function over one node variant into an Operator.
func Typed[N Node](fn func(ctx *Context, depth int, node N, eval EvalFunc) (Result, error)) Operator {
	return func(ctx *Context, depth int, node Node, eval EvalFunc) (Result, error) {
		n, ok := node.(N)
		if !ok {
			return Result{}, &NodeTypeError{Tag: node.Tag(), Node: node}
		}
		return fn(ctx, depth, n, eval)
	}
}

// Registry maps discount tags to operators.
type Registry struct {
	mu        sync.RWMutex
	operators map[string]Operator
}

// NewRegistry returns a registry holding the built-in operators.
func NewRegistry() *Registry {
	return &Registry{operators: map[string]Operator{
		TagAll:      Typed(applyAll),
		TagAny:      Typed(applyAny),
		TagProduct:  Typed(applyProduct),
		TagCategory: Typed(applyCategory),
	}}
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
