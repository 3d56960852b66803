package ruleeval

import (
	"strconv"

	"github.com/Victor-armando18/pricing-engine/internal/domain/money"
	"github.com/Victor-armando18/pricing-engine/internal/domain/pricingerr"
)

// Eval runs the compiled rule against ctx, enforcing the runtime operation
// budget from §5 (depth is already bounded at compile time). A failure
// here is scoped to this one modifier by the caller — per §7, a rule-eval
// error discards that modifier and the computation proceeds.
func (r *CompiledRule) Eval(ctx *Context) (bool, error) {
	ops := 0
	v, err := evalNode(r.Root, ctx, &ops)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, pricingerr.New(pricingerr.RuleEvalError, "rule did not evaluate to a boolean")
	}
	return b, nil
}

func evalNode(n *Node, ctx *Context, ops *int) (any, error) {
	*ops++
	if *ops > MaxEvalOperations {
		return nil, pricingerr.Newf(pricingerr.RuleEvalError, "rule exceeded operation budget %d", MaxEvalOperations)
	}

	switch n.Kind {
	case KindLiteral:
		return n.Literal, nil

	case KindField:
		return ctx.Resolve(n.FieldPath), nil

	case KindComparison:
		left, err := evalNode(n.Left, ctx, ops)
		if err != nil {
			return nil, err
		}
		right, err := evalNode(n.Right, ctx, ops)
		if err != nil {
			return nil, err
		}
		return compare(n.CompareOp, left, right)

	case KindLogical:
		switch n.LogicOp {
		case OpNot:
			v, err := evalNode(n.Children[0], ctx, ops)
			if err != nil {
				return nil, err
			}
			if isMissing(v) {
				v = false
			}
			b, ok := v.(bool)
			if !ok {
				return nil, pricingerr.New(pricingerr.RuleEvalError, "\"not\" operand is not boolean")
			}
			return !b, nil
		case OpAnd:
			for _, child := range n.Children {
				v, err := evalNode(child, ctx, ops)
				if err != nil {
					return nil, err
				}
				if isMissing(v) {
					v = false
				}
				b, ok := v.(bool)
				if !ok {
					return nil, pricingerr.New(pricingerr.RuleEvalError, "\"and\" operand is not boolean")
				}
				if !b {
					return false, nil // short-circuit
				}
			}
			return true, nil
		case OpOr:
			for _, child := range n.Children {
				v, err := evalNode(child, ctx, ops)
				if err != nil {
					return nil, err
				}
				if isMissing(v) {
					v = false
				}
				b, ok := v.(bool)
				if !ok {
					return nil, pricingerr.New(pricingerr.RuleEvalError, "\"or\" operand is not boolean")
				}
				if b {
					return true, nil // short-circuit
				}
			}
			return false, nil
		}
	}
	return nil, pricingerr.New(pricingerr.RuleEvalError, "unreachable AST node")
}

// isMissing reports whether v is the Context "not found" sentinel.
func isMissing(v any) bool {
	_, ok := v.(missing)
	return ok
}

// compare implements the six comparison operators. A missing operand
// never throws: equality/inequality treat missing as comparable only to
// itself, and ordering comparisons against a missing operand are always
// false, matching the "never throw on missing" design note.
func compare(op CompareOp, left, right any) (bool, error) {
	if isMissing(left) || isMissing(right) {
		switch op {
		case OpEq:
			return isMissing(left) && isMissing(right), nil
		case OpNe:
			return !(isMissing(left) && isMissing(right)), nil
		default:
			return false, nil
		}
	}

	if ld, lok := asNumber(left); lok {
		if rd, rok := asNumber(right); rok {
			c := ld.Cmp(rd)
			return compareInt(op, c), nil
		}
	}

	if ls, lok := left.(string); lok {
		if rs, rok := right.(string); rok {
			return compareInt(op, stringsCompare(ls, rs)), nil
		}
	}

	if lb, lok := left.(bool); lok {
		if rb, rok := right.(bool); rok {
			switch op {
			case OpEq:
				return lb == rb, nil
			case OpNe:
				return lb != rb, nil
			default:
				return false, pricingerr.New(pricingerr.RuleEvalError, "ordering comparison on boolean operands")
			}
		}
	}

	switch op {
	case OpEq:
		return false, nil
	case OpNe:
		return true, nil
	default:
		return false, pricingerr.New(pricingerr.RuleEvalError, "incomparable operand types")
	}
}

func compareInt(op CompareOp, c int) bool {
	switch op {
	case OpEq:
		return c == 0
	case OpNe:
		return c != 0
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	}
	return false
}

func stringsCompare(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// asNumber coerces a literal Number, a plain string holding a decimal
// literal, or a money.Decimal into a money.Decimal for comparison. This
// never involves float64.
func asNumber(v any) (money.Decimal, bool) {
	switch t := v.(type) {
	case money.Decimal:
		return t, true
	case Number:
		d, err := money.FromString(string(t))
		if err != nil {
			return money.Decimal{}, false
		}
		return d, true
	case string:
		if _, err := strconv.ParseFloat(t, 64); err != nil {
			return money.Decimal{}, false
		}
		d, err := money.FromString(t)
		if err != nil {
			return money.Decimal{}, false
		}
		return d, true
	default:
		return money.Decimal{}, false
	}
}
