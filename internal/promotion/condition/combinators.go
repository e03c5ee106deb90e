package condition

import "promotions/internal/promotion/models"

// andTally accumulates operand outcomes of an And node.
type andTally struct {
	trues    int
	withData int
	valueSum float64
}

func (t *andTally) add(r Result) {
	if r.OK {
		t.trues++
	}
	if r.Data != nil {
		t.withData++
		t.valueSum += r.Data.Value
	}
}

func (t andTally) value(operands int) float64 {
	if operands == 0 {
		return 0
	}
	return t.valueSum / float64(operands)
}

// accountedFor reports whether every operand either succeeded or produced
// data. A satisfied operand that also produced data is counted twice, which
// withholds the diagnostic.
func (t andTally) accountedFor(operands int) bool {
	return t.withData+t.trues == operands
}

// evaluateAnd evaluates every operand on a scratch fork, without short-circuit,
// so the diagnostic covers every failing branch.
func evaluateAnd(ctx *Context, res Reservation, depth int, node And, eval EvalFunc) (Result, error) {
	scratch := res.Fork()
	var tally andTally
	diagnostics := make([]*models.Diagnostic, 0, len(node.Operands))

	for _, op := range node.Operands {
		r, err := eval(ctx, scratch, depth+1, op)
		if err != nil {
			return Result{}, err
		}
		tally.add(r)
		if r.Data != nil {
			diagnostics = append(diagnostics, r.Data)
		}
	}

	n := len(node.Operands)
	if tally.trues == n {
		res.Adopt(scratch)
		return Result{OK: true}, nil
	}

	value := tally.value(n)
	if value >= node.Threshold && tally.accountedFor(n) {
		return Result{Data: &models.Diagnostic{
			Kind:     TagAnd,
			Operands: diagnostics,
			Value:    value,
		}}, nil
	}
	return Result{}, nil
}

// evaluateAny commits the reservation of the first satisfied operand.
func evaluateAny(ctx *Context, res Reservation, depth int, node Any, eval EvalFunc) (Result, error) {
	var (
		best        float64
		diagnostics []*models.Diagnostic
	)

	for _, op := range node.Operands {
		scratch := res.Fork()
		r, err := eval(ctx, scratch, depth+1, op)
		if err != nil {
			return Result{}, err
		}
		if r.OK {
			res.Adopt(scratch)
			return Result{OK: true}, nil
		}
		if r.Data != nil {
			diagnostics = append(diagnostics, r.Data)
			best = max(best, r.Data.Value)
		}
	}

	if len(diagnostics) > 0 && best >= node.Threshold {
		return Result{Data: &models.Diagnostic{
			Kind:     TagAny,
			Operands: diagnostics,
			Value:    best,
		}}, nil
	}
	return Result{}, nil
}
