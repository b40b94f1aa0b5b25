package expr

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ValueKind discriminates the typed result of an evaluated expression.
type ValueKind int

const (
	// KindNull is the result of an unknown identifier, a division by zero,
	// or any operation that cannot propagate a concrete result.
	KindNull ValueKind = iota
	KindString
	KindDecimal
	KindDate
	KindBool
)

// Value is the typed result the evaluator produces: string, decimal, date,
// bool, or null. Decimal is used for all numeric values (integers included)
// so arithmetic and DATEADD share one representation, grounded on
// shopspring/decimal's use in the sibling ETL tool for money columns.
type Value struct {
	Kind ValueKind
	Str  string
	Num  decimal.Decimal
	Date time.Time
	Bool bool
}

// Null is the singleton null value.
var Null = Value{Kind: KindNull}

func String(s string) Value { return Value{Kind: KindString, Str: s} }

func Decimal(d decimal.Decimal) Value { return Value{Kind: KindDecimal, Num: d} }

func DateValue(t time.Time) Value { return Value{Kind: KindDate, Date: t} }

func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// IsEmpty reports whether v is null or an empty/blank string, per the
// IS EMPTY / IS NOT EMPTY operators.
func (v Value) IsEmpty() bool {
	if v.Kind == KindNull {
		return true
	}

	return v.Kind == KindString && strings.TrimSpace(v.Str) == ""
}

// AsString renders v for use as a mapped column value or LIKE comparand.
func (v Value) AsString() string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindString:
		return v.Str
	case KindDecimal:
		return v.Num.String()
	case KindDate:
		return v.Date.Format("2006-01-02T15:04:05Z")
	case KindBool:
		if v.Bool {
			return "true"
		}

		return "false"
	default:
		return ""
	}
}
