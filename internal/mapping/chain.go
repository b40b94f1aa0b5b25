package mapping

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/correlator-io/xmlextract/internal/contract"
	"github.com/correlator-io/xmlextract/internal/expr"
)

// chainResult carries a working value through a mapping_type chain. hasValue
// false means "no value" — the column is omitted unless a later step
// restores it (the conditional-enum-fallback idiom).
type chainResult struct {
	raw      string
	hasValue bool
}

// applyChain runs a field mapping's ordered mapping_type steps, implementing
// the early-termination and conditional-enum-fallback rules from spec.md §3
// and the edge-case policies from §4.5.
func applyChain(
	start chainResult,
	chain contract.MappingChain,
	fm contract.FieldMapping,
	c *contract.Contract,
	appCtx expr.Context,
	primary, secondary *Contact,
) chainResult {
	cur := start
	preChainValue := start
	prevKind := contract.MappingKind("")

	for _, step := range chain {
		if !cur.hasValue {
			if step.Kind == contract.Enum && prevKind == contract.CalculatedField {
				cur = preChainValue // conditional enum fallback
			} else {
				return cur
			}
		}

		cur = applyStep(cur, step, fm, c, appCtx, primary, secondary)
		prevKind = step.Kind
	}

	return cur
}

func applyStep(
	cur chainResult,
	step contract.MappingStep,
	fm contract.FieldMapping,
	c *contract.Contract,
	appCtx expr.Context,
	primary, secondary *Contact,
) chainResult {
	switch step.Kind {
	case contract.Enum:
		return applyEnum(cur, fm, c)
	case contract.CharToBit:
		if isTruthy(cur.raw) {
			return chainResult{raw: "1", hasValue: true}
		}

		return chainResult{raw: "0", hasValue: true}
	case contract.NumbersOnly, contract.ExtractNumeric:
		digits := extractDigits(cur.raw)
		if digits == "" {
			return chainResult{hasValue: false}
		}

		return chainResult{raw: digits, hasValue: true}
	case contract.ExtractDate:
		return applyExtractDate(cur)
	case contract.CalculatedField:
		return applyCalculatedField(fm, appCtx)
	case contract.LastValidPrimaryContact:
		return contactAttribute(primary, step, fm)
	case contract.LastValidSecondaryContact:
		return contactAttribute(secondary, step, fm)
	case contract.CurrAddressOnly:
		return applyCurrAddressOnly(cur, fm)
	case contract.DefaultGetUTCDateIfNull:
		if cur.hasValue && isMeaningful(cur.raw) {
			return cur
		}

		return chainResult{raw: time.Now().UTC().Format("2006-01-02T15:04:05Z"), hasValue: true}
	case contract.IdentityInsert:
		return cur // marker only; no value transform
	default:
		return cur
	}
}

func applyEnum(cur chainResult, fm contract.FieldMapping, c *contract.Contract) chainResult {
	if c == nil || fm.EnumName == "" {
		return chainResult{hasValue: false}
	}

	enum, ok := c.Enum(fm.EnumName)
	if !ok {
		return chainResult{hasValue: false}
	}

	for key, code := range enum.Values {
		if strings.EqualFold(key, cur.raw) {
			return chainResult{raw: decimal.NewFromInt(int64(code)).String(), hasValue: true}
		}
	}

	if enum.Default != nil {
		return chainResult{raw: decimal.NewFromInt(int64(*enum.Default)).String(), hasValue: true}
	}

	return chainResult{hasValue: false}
}

func applyCalculatedField(fm contract.FieldMapping, appCtx expr.Context) chainResult {
	if fm.Expression == "" {
		return chainResult{hasValue: false}
	}

	node, err := expr.Parse(fm.Expression)
	if err != nil {
		return chainResult{hasValue: false}
	}

	v := expr.Eval(node, appCtx)
	if v.IsNull() {
		return chainResult{hasValue: false}
	}

	return chainResult{raw: v.AsString(), hasValue: true}
}

func applyExtractDate(cur chainResult) chainResult {
	layouts := []string{"2006-01-02", "01/02/2006", "2006-01-02T15:04:05Z"}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, strings.TrimSpace(cur.raw)); err == nil {
			return chainResult{raw: t.Format("2006-01-02"), hasValue: true}
		}
	}

	return chainResult{hasValue: false}
}

func contactAttribute(contact *Contact, step contract.MappingStep, fm contract.FieldMapping) chainResult {
	if contact == nil {
		return chainResult{hasValue: false}
	}

	attr := step.Param
	if attr == "" {
		attr = fm.XMLAttribute
	}

	val := contact.Node.SelectAttr(attr)
	if val == "" {
		return chainResult{hasValue: false}
	}

	return chainResult{raw: val, hasValue: true}
}

// applyCurrAddressOnly gates the value to addresses of type CURR; the
// mapping's source node is not carried in chainResult, so the gate is
// applied by the caller (only CURR-type address nodes reach this step) and
// this is a pass-through guarding against an empty source.
func applyCurrAddressOnly(cur chainResult, _ contract.FieldMapping) chainResult {
	if !cur.hasValue || !isMeaningful(cur.raw) {
		return chainResult{hasValue: false}
	}

	return cur
}
