package mapping

import (
	"strings"
	"testing"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/correlator-io/xmlextract/internal/contract"
	"github.com/correlator-io/xmlextract/internal/expr"
)

func enumContract(name string, values map[string]int, def *int) *contract.Contract {
	return &contract.Contract{
		EnumMappings: map[string]contract.EnumMapping{
			name: {Name: name, Values: values, Default: def},
		},
	}
}

func TestApplyChain_EnumMapsMatchedValueCaseInsensitively(t *testing.T) {
	c := enumContract("status_enum", map[string]int{"ACTIVE": 1, "CLOSED": 2}, nil)
	fm := contract.FieldMapping{EnumName: "status_enum"}

	result := applyChain(chainResult{raw: "active", hasValue: true}, contract.MappingChain{{Kind: contract.Enum}}, fm, c, nil, nil, nil)

	assert.True(t, result.hasValue)
	assert.Equal(t, "1", result.raw)
}

func TestApplyChain_EnumFallsBackToDefaultForUnmatchedValue(t *testing.T) {
	def := 9
	c := enumContract("status_enum", map[string]int{"ACTIVE": 1}, &def)
	fm := contract.FieldMapping{EnumName: "status_enum"}

	result := applyChain(chainResult{raw: "UNKNOWN", hasValue: true}, contract.MappingChain{{Kind: contract.Enum}}, fm, c, nil, nil, nil)

	assert.True(t, result.hasValue)
	assert.Equal(t, "9", result.raw)
}

func TestApplyChain_EnumWithoutDefaultAndNoMatchYieldsNoValue(t *testing.T) {
	c := enumContract("status_enum", map[string]int{"ACTIVE": 1}, nil)
	fm := contract.FieldMapping{EnumName: "status_enum"}

	result := applyChain(chainResult{raw: "UNKNOWN", hasValue: true}, contract.MappingChain{{Kind: contract.Enum}}, fm, c, nil, nil, nil)

	assert.False(t, result.hasValue)
}

func TestApplyChain_ConditionalEnumFallbackRestoresOriginalValue(t *testing.T) {
	// spec.md Scenario 5: calculated_field returns null (no LIKE match), so
	// enum receives the restored pre-chain value rather than stopping dead.
	def := 0
	c := enumContract("officer_code_to_email", map[string]int{"6009": 42}, &def)
	fm := contract.FieldMapping{
		EnumName:   "officer_code_to_email",
		Expression: "CASE WHEN check_requested_by_user LIKE '5%' THEN check_requested_by_user ELSE NULL END",
	}

	chain := contract.MappingChain{{Kind: contract.CalculatedField}, {Kind: contract.Enum}}

	result := applyChain(chainResult{raw: "6009", hasValue: true}, chain, fm, c, nil, nil, nil)

	assert.True(t, result.hasValue)
	assert.Equal(t, "42", result.raw)
}

func TestApplyChain_NonEnumStepAfterNoValueTerminatesEarly(t *testing.T) {
	fm := contract.FieldMapping{Expression: "missing_field"}
	chain := contract.MappingChain{{Kind: contract.CalculatedField}, {Kind: contract.CharToBit}}

	result := applyChain(chainResult{hasValue: false}, chain, fm, nil, expr.Context{}, nil, nil)

	assert.False(t, result.hasValue)
}

func TestApplyStep_CharToBitConvertsTruthyAndFalsyValues(t *testing.T) {
	assert.Equal(t, "1", applyStep(chainResult{raw: "Y", hasValue: true}, contract.MappingStep{Kind: contract.CharToBit}, contract.FieldMapping{}, nil, nil, nil, nil).raw)
	assert.Equal(t, "0", applyStep(chainResult{raw: "N", hasValue: true}, contract.MappingStep{Kind: contract.CharToBit}, contract.FieldMapping{}, nil, nil, nil, nil).raw)
}

func TestApplyStep_NumbersOnlyExtractsDigitsAndDropsNonDigitValues(t *testing.T) {
	result := applyStep(chainResult{raw: "(555) 123-4567", hasValue: true}, contract.MappingStep{Kind: contract.NumbersOnly}, contract.FieldMapping{}, nil, nil, nil, nil)
	assert.True(t, result.hasValue)
	assert.Equal(t, "5551234567", result.raw)

	result = applyStep(chainResult{raw: "abc", hasValue: true}, contract.MappingStep{Kind: contract.ExtractNumeric}, contract.FieldMapping{}, nil, nil, nil, nil)
	assert.False(t, result.hasValue)
}

func TestApplyStep_ExtractDateParsesKnownLayouts(t *testing.T) {
	result := applyStep(chainResult{raw: "01/15/2024", hasValue: true}, contract.MappingStep{Kind: contract.ExtractDate}, contract.FieldMapping{}, nil, nil, nil, nil)
	assert.True(t, result.hasValue)
	assert.Equal(t, "2024-01-15", result.raw)
}

func TestApplyStep_ExtractDateRejectsUnparsableValue(t *testing.T) {
	result := applyStep(chainResult{raw: "not-a-date", hasValue: true}, contract.MappingStep{Kind: contract.ExtractDate}, contract.FieldMapping{}, nil, nil, nil, nil)
	assert.False(t, result.hasValue)
}

func TestApplyStep_CalculatedFieldEvaluatesExpressionAgainstContext(t *testing.T) {
	ctx := expr.Context{"status": expr.String("ACTIVE")}
	fm := contract.FieldMapping{Expression: "CASE WHEN status = 'ACTIVE' THEN 'A' ELSE 'B' END"}

	result := applyStep(chainResult{}, contract.MappingStep{Kind: contract.CalculatedField}, fm, nil, ctx, nil, nil)

	assert.True(t, result.hasValue)
	assert.Equal(t, "A", result.raw)
}

func TestApplyStep_CalculatedFieldWithEmptyExpressionYieldsNoValue(t *testing.T) {
	result := applyStep(chainResult{}, contract.MappingStep{Kind: contract.CalculatedField}, contract.FieldMapping{}, nil, expr.Context{}, nil, nil)

	assert.False(t, result.hasValue)
}

func TestApplyStep_LastValidPrimaryContactReadsContactAttribute(t *testing.T) {
	doc, err := xmlquery.Parse(strings.NewReader(`<application><contact con_id="1" phone="5551234567"/></application>`))
	require.NoError(t, err)

	node := xmlquery.FindOne(doc, "//contact")
	primary := &Contact{Node: node}

	result := applyStep(chainResult{}, contract.MappingStep{Kind: contract.LastValidPrimaryContact, Param: "phone"}, contract.FieldMapping{}, nil, nil, primary, nil)

	assert.True(t, result.hasValue)
	assert.Equal(t, "5551234567", result.raw)
}

func TestApplyStep_LastValidSecondaryContactWithNilContactYieldsNoValue(t *testing.T) {
	result := applyStep(chainResult{}, contract.MappingStep{Kind: contract.LastValidSecondaryContact, Param: "phone"}, contract.FieldMapping{}, nil, nil, nil, nil)

	assert.False(t, result.hasValue)
}

func TestApplyStep_CurrAddressOnlyPassesThroughMeaningfulValue(t *testing.T) {
	result := applyStep(chainResult{raw: "123 Main St", hasValue: true}, contract.MappingStep{Kind: contract.CurrAddressOnly}, contract.FieldMapping{}, nil, nil, nil, nil)

	assert.True(t, result.hasValue)
	assert.Equal(t, "123 Main St", result.raw)
}

func TestApplyStep_CurrAddressOnlyDropsPlaceholderValue(t *testing.T) {
	result := applyStep(chainResult{raw: "NULL", hasValue: true}, contract.MappingStep{Kind: contract.CurrAddressOnly}, contract.FieldMapping{}, nil, nil, nil, nil)

	assert.False(t, result.hasValue)
}

func TestApplyStep_DefaultGetUTCDateIfNullPassesThroughExistingValue(t *testing.T) {
	result := applyStep(chainResult{raw: "2024-01-01T00:00:00Z", hasValue: true}, contract.MappingStep{Kind: contract.DefaultGetUTCDateIfNull}, contract.FieldMapping{}, nil, nil, nil, nil)

	assert.True(t, result.hasValue)
	assert.Equal(t, "2024-01-01T00:00:00Z", result.raw)
}

func TestApplyStep_DefaultGetUTCDateIfNullFillsCurrentTimeWhenMissing(t *testing.T) {
	result := applyStep(chainResult{hasValue: false}, contract.MappingStep{Kind: contract.DefaultGetUTCDateIfNull}, contract.FieldMapping{}, nil, nil, nil, nil)

	assert.True(t, result.hasValue)

	parsed, err := time.Parse("2006-01-02T15:04:05Z", result.raw)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), parsed, 5*time.Second)
}

func TestApplyStep_IdentityInsertIsAPassThroughMarker(t *testing.T) {
	result := applyStep(chainResult{raw: "5", hasValue: true}, contract.MappingStep{Kind: contract.IdentityInsert}, contract.FieldMapping{}, nil, nil, nil, nil)

	assert.True(t, result.hasValue)
	assert.Equal(t, "5", result.raw)
}
