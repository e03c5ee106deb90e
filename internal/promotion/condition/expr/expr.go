// Package expr adds rule-language condition leaves: JsonLogic rules and CEL
// expressions evaluated against a summary of the cart.
package expr

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/diegoholiveira/jsonlogic/v3"
	"github.com/google/cel-go/cel"

	"promotions/internal/promotion/condition"
	"promotions/internal/promotion/models"
)

// Extension tags.
const (
	TagJSONLogic = "jsonLogic"
	TagCEL       = "cel"
)

// ErrInvalidRule is returned for rules that cannot be compiled.
var ErrInvalidRule = errors.New("invalid rule")

// Facts returns the cart attributes rules are evaluated against.
func Facts(ctx *condition.Context) map[string]any {
	return map[string]any{
		"subtotal":   ctx.Cart.Subtotal().InexactFloat64(),
		"itemCount":  int64(ctx.Cart.ItemCount()),
		"userType":   ctx.User.Type,
		"productIds": ctx.Cart.ProductIDs(),
	}
}

// Rules evaluates extension leaves. CEL programs are compiled once per
// expression and reused.
type Rules struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

// New builds the CEL environment exposing the cart facts.
func New() (*Rules, error) {
	env, err := cel.NewEnv(
		cel.Variable("subtotal", cel.DoubleType),
		cel.Variable("itemCount", cel.IntType),
		cel.Variable("userType", cel.StringType),
		cel.Variable("productIds", cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("build cel environment: %w", err)
	}
	return &Rules{env: env, programs: make(map[string]cel.Program)}, nil
}

// Register adds the jsonLogic and cel operators to registry.
func (r *Rules) Register(registry *condition.Registry) {
	registry.Register(TagJSONLogic, condition.Typed(r.evaluateJSONLogic))
	registry.Register(TagCEL, condition.Typed(r.evaluateCEL))
}

// Validate compiles every extension rule in the tree.
func (r *Rules) Validate(node condition.Node) error {
	return condition.Walk(node, func(n condition.Node) error {
		ext, ok := n.(condition.Extension)
		if !ok {
			return nil
		}
		switch ext.Name {
		case TagCEL:
			_, err := r.program(ext.Args)
			return err
		case TagJSONLogic:
			if !jsonlogic.IsValid(bytes.NewReader(ext.Args)) {
				return fmt.Errorf("%w: jsonLogic rule is not valid", ErrInvalidRule)
			}
		}
		return nil
	})
}

func (r *Rules) evaluateJSONLogic(ctx *condition.Context, _ condition.Reservation, _ int, node condition.Extension, _ condition.EvalFunc) (condition.Result, error) {
	data, err := json.Marshal(Facts(ctx))
	if err != nil {
		return condition.Result{}, fmt.Errorf("encode facts: %w", err)
	}

	var out bytes.Buffer
	if err := jsonlogic.Apply(bytes.NewReader(node.Args), bytes.NewReader(data), &out); err != nil {
		return condition.Result{}, fmt.Errorf("%w: jsonLogic: %v", ErrInvalidRule, err)
	}

	var v any
	if out.Len() > 0 {
		if err := json.Unmarshal(out.Bytes(), &v); err != nil {
			return condition.Result{}, fmt.Errorf("decode jsonLogic result: %w", err)
		}
	}
	return predicate(truthy(v)), nil
}

func (r *Rules) evaluateCEL(ctx *condition.Context, _ condition.Reservation, _ int, node condition.Extension, _ condition.EvalFunc) (condition.Result, error) {
	prg, err := r.program(node.Args)
	if err != nil {
		return condition.Result{}, err
	}
	out, _, err := prg.Eval(Facts(ctx))
	if err != nil {
		return condition.Result{}, fmt.Errorf("evaluate cel expression: %w", err)
	}
	ok, _ := out.Value().(bool)
	return predicate(ok), nil
}

func (r *Rules) program(args json.RawMessage) (cel.Program, error) {
	var expression string
	if err := json.Unmarshal(args, &expression); err != nil {
		return nil, fmt.Errorf("%w: cel expression must be a string", ErrInvalidRule)
	}

	r.mu.RLock()
	prg, ok := r.programs[expression]
	r.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, iss := r.env.Parse(expression)
	if iss.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, iss.Err())
	}
	checked, iss := r.env.Check(ast)
	if iss.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, iss.Err())
	}
	if !checked.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: cel expression must evaluate to bool", ErrInvalidRule)
	}
	prg, err := r.env.Program(checked)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	r.mu.Lock()
	r.programs[expression] = prg
	r.mu.Unlock()
	return prg, nil
}

func predicate(ok bool) condition.Result {
	if ok {
		return condition.Result{OK: true, Data: &models.Diagnostic{Value: 1, Type: models.DiagnosticRule}}
	}
	return condition.Result{Data: &models.Diagnostic{Value: 0, Type: models.DiagnosticRule}}
}

// truthy follows JsonLogic truthiness.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	default:
		return true
	}
}
