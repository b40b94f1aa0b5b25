package expr

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Context is the per-application flattened lookup the evaluator resolves
// identifiers against: root attributes plus dotted cross-element references
// (e.g. "contact.first_name").
type Context map[string]Value

// Lookup resolves name, returning Null for anything not present rather than
// an error — unknown identifiers are not a parse-time or eval-time failure.
func (c Context) Lookup(name string) Value {
	if v, ok := c[name]; ok {
		return v
	}

	return Null
}

// dateLayout is the only date format the DATE() function accepts.
const dateLayout = "2006-01-02"

// Eval evaluates a parsed expression against ctx. Eval never returns an
// error: malformed grammar is caught at Parse time, and every runtime
// anomaly (unknown identifier, division by zero, type mismatch) propagates
// as the null value per spec.md §4.2.
func Eval(node Node, ctx Context) Value {
	switch n := node.(type) {
	case Literal:
		return evalLiteral(n)
	case Ident:
		return ctx.Lookup(n.Name)
	case BinaryExpr:
		return evalBinary(n, ctx)
	case UnaryExpr:
		return evalUnary(n, ctx)
	case IsNullExpr:
		result := Eval(n.Expr, ctx).IsNull()
		if n.Not {
			result = !result
		}

		return Bool(result)
	case IsEmptyExpr:
		result := Eval(n.Expr, ctx).IsEmpty()
		if n.Not {
			result = !result
		}

		return Bool(result)
	case LikeExpr:
		return evalLike(n, ctx)
	case CaseExpr:
		return evalCase(n, ctx)
	case FuncCall:
		return evalFunc(n, ctx)
	default:
		return Null
	}
}

func evalLiteral(lit Literal) Value {
	switch lit.Kind {
	case NUMBER:
		d, err := decimal.NewFromString(lit.Text)
		if err != nil {
			return Null
		}

		return Decimal(d)
	case STRING:
		return String(lit.Text)
	default:
		return Null
	}
}

func evalUnary(n UnaryExpr, ctx Context) Value {
	v := Eval(n.Expr, ctx)

	switch n.Op {
	case NOT:
		if v.Kind != KindBool {
			return Null
		}

		return Bool(!v.Bool)
	case MINUS:
		if v.Kind != KindDecimal {
			return Null
		}

		return Decimal(v.Num.Neg())
	default:
		return Null
	}
}

func evalBinary(n BinaryExpr, ctx Context) Value {
	switch n.Op {
	case AND:
		left := Eval(n.Left, ctx)
		right := Eval(n.Right, ctx)

		if left.Kind != KindBool || right.Kind != KindBool {
			return Null
		}

		return Bool(left.Bool && right.Bool)
	case OR:
		left := Eval(n.Left, ctx)
		right := Eval(n.Right, ctx)

		if left.Kind != KindBool || right.Kind != KindBool {
			return Null
		}

		return Bool(left.Bool || right.Bool)
	}

	left := Eval(n.Left, ctx)
	right := Eval(n.Right, ctx)

	switch n.Op {
	case PLUS, MINUS, STAR, SLASH, INTDIV, PERCENT, POW:
		return evalArithmetic(n.Op, left, right)
	case EQ, NEQ, LT, GT, LTE, GTE:
		return evalComparison(n.Op, left, right)
	default:
		return Null
	}
}

func evalArithmetic(op TokenKind, left, right Value) Value {
	if left.Kind != KindDecimal || right.Kind != KindDecimal {
		return Null
	}

	a, b := left.Num, right.Num

	switch op {
	case PLUS:
		return Decimal(a.Add(b))
	case MINUS:
		return Decimal(a.Sub(b))
	case STAR:
		return Decimal(a.Mul(b))
	case SLASH:
		if b.IsZero() {
			return Null
		}

		return Decimal(a.Div(b))
	case INTDIV:
		if b.IsZero() {
			return Null
		}

		return Decimal(a.Div(b).Truncate(0))
	case PERCENT:
		if b.IsZero() {
			return Null
		}

		return Decimal(a.Mod(b))
	case POW:
		return Decimal(a.Pow(b))
	default:
		return Null
	}
}

func evalComparison(op TokenKind, left, right Value) Value {
	var cmp int

	switch {
	case left.Kind == KindDecimal && right.Kind == KindDecimal:
		cmp = left.Num.Cmp(right.Num)
	case left.Kind == KindString && right.Kind == KindString:
		cmp = strings.Compare(left.Str, right.Str)
	case left.Kind == KindDate && right.Kind == KindDate:
		switch {
		case left.Date.Before(right.Date):
			cmp = -1
		case left.Date.After(right.Date):
			cmp = 1
		default:
			cmp = 0
		}
	default:
		return Null
	}

	switch op {
	case EQ:
		return Bool(cmp == 0)
	case NEQ:
		return Bool(cmp != 0)
	case LT:
		return Bool(cmp < 0)
	case GT:
		return Bool(cmp > 0)
	case LTE:
		return Bool(cmp <= 0)
	case GTE:
		return Bool(cmp >= 0)
	default:
		return Null
	}
}

func evalLike(n LikeExpr, ctx Context) Value {
	subject := Eval(n.Expr, ctx)
	pattern := Eval(n.Pattern, ctx)

	if subject.IsNull() || pattern.Kind != KindString {
		return Null
	}

	re := likePatternToRegexp(pattern.Str)

	return Bool(re.MatchString(subject.AsString()))
}

// likePatternToRegexp translates a LIKE pattern's % wildcard into an
// anchored, case-insensitive regular expression.
func likePatternToRegexp(pattern string) *regexp.Regexp {
	parts := strings.Split(pattern, "%")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}

	return regexp.MustCompile("(?i)^" + strings.Join(parts, ".*") + "$")
}

func evalCase(n CaseExpr, ctx Context) Value {
	for _, when := range n.Whens {
		cond := Eval(when.Cond, ctx)
		if cond.Kind == KindBool && cond.Bool {
			return Eval(when.Then, ctx)
		}
	}

	if n.Else != nil {
		return Eval(n.Else, ctx)
	}

	return Null
}

func evalFunc(n FuncCall, ctx Context) Value {
	switch n.Name {
	case GETUTCDATE:
		return DateValue(time.Now().UTC())

	case DATE:
		if len(n.Args) != 1 {
			return Null
		}

		arg := Eval(n.Args[0], ctx)
		if arg.Kind != KindString {
			return Null
		}

		t, err := time.Parse(dateLayout, arg.Str)
		if err != nil {
			return Null
		}

		return DateValue(t)

	case DATEADD:
		return evalDateAdd(n, ctx)

	default:
		return Null
	}
}

func evalDateAdd(n FuncCall, ctx Context) Value {
	if len(n.Args) != 3 {
		return Null
	}

	unitArg, ok := n.Args[0].(Ident)
	if !ok {
		return Null
	}

	amount := Eval(n.Args[1], ctx)
	base := Eval(n.Args[2], ctx)

	if amount.Kind != KindDecimal || base.Kind != KindDate {
		return Null
	}

	n64 := amount.Num.IntPart()

	switch strings.ToLower(unitArg.Name) {
	case "day":
		return DateValue(base.Date.AddDate(0, 0, int(n64)))
	case "month":
		return DateValue(base.Date.AddDate(0, int(n64), 0))
	case "year":
		return DateValue(base.Date.AddDate(int(n64), 0, 0))
	case "hour":
		return DateValue(base.Date.Add(time.Duration(n64) * time.Hour))
	case "minute":
		return DateValue(base.Date.Add(time.Duration(n64) * time.Minute))
	case "second":
		return DateValue(base.Date.Add(time.Duration(n64) * time.Second))
	default:
		return Null
	}
}
