package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/correlator-io/xmlextract/internal/contract"
	"github.com/correlator-io/xmlextract/internal/xmlmodel"
)

func TestBuildAuxiliaryRow_AddScoreWithValidDecimal(t *testing.T) {
	step := contract.MappingStep{Kind: contract.AddScore, Param: "bureau"}
	row, ok := buildAuxiliaryRow(step, contract.FieldMapping{}, 1, chainResult{raw: "720", hasValue: true})

	require.True(t, ok)
	assert.Equal(t, "bureau", row["score_identifier"])
	assert.Equal(t, "720", row["score"])
}

func TestBuildAuxiliaryRow_AddScoreRejectsNonDecimalValue(t *testing.T) {
	step := contract.MappingStep{Kind: contract.AddScore, Param: "bureau"}
	_, ok := buildAuxiliaryRow(step, contract.FieldMapping{}, 1, chainResult{raw: "not-a-number", hasValue: true})

	assert.False(t, ok)
}

func TestBuildAuxiliaryRow_AddScoreWithNoValueIsDropped(t *testing.T) {
	step := contract.MappingStep{Kind: contract.AddScore, Param: "bureau"}
	_, ok := buildAuxiliaryRow(step, contract.FieldMapping{}, 1, chainResult{hasValue: false})

	assert.False(t, ok)
}

func TestBuildAuxiliaryRow_AddIndicatorOnlyFiresOnTruthyValue(t *testing.T) {
	step := contract.MappingStep{Kind: contract.AddIndicator, Param: "bankruptcy"}

	row, ok := buildAuxiliaryRow(step, contract.FieldMapping{}, 1, chainResult{raw: "Y", hasValue: true})
	require.True(t, ok)
	assert.Equal(t, "bankruptcy", row["indicator"])
	assert.Equal(t, "1", row["value"])

	_, ok = buildAuxiliaryRow(step, contract.FieldMapping{}, 1, chainResult{raw: "N", hasValue: true})
	assert.False(t, ok)
}

func TestBuildAuxiliaryRow_AddHistoryNamesSourceFromXMLPath(t *testing.T) {
	step := contract.MappingStep{Kind: contract.AddHistory}
	fm := contract.FieldMapping{XMLAttribute: "employer_name", XMLPath: "//application/employment"}

	row, ok := buildAuxiliaryRow(step, fm, 1, chainResult{raw: "Acme Corp", hasValue: true})

	require.True(t, ok)
	assert.Equal(t, "employer_name", row["name"])
	assert.Equal(t, "employment", row["source"])
	assert.Equal(t, "Acme Corp", row["value"])
}

func TestBuildAuxiliaryRow_AddHistoryDropsNonMeaningfulValue(t *testing.T) {
	step := contract.MappingStep{Kind: contract.AddHistory}

	_, ok := buildAuxiliaryRow(step, contract.FieldMapping{}, 1, chainResult{raw: "NULL", hasValue: true})

	assert.False(t, ok)
}

func TestBuildAuxiliaryRow_AddReportLookupIncludesSourceKeyWhenParamSet(t *testing.T) {
	step := contract.MappingStep{Kind: contract.AddReportLookup, Param: "bureau_x"}
	fm := contract.FieldMapping{XMLAttribute: "report_id"}

	row, ok := buildAuxiliaryRow(step, fm, 1, chainResult{raw: "R-1", hasValue: true})

	require.True(t, ok)
	assert.Equal(t, "report_id", row["name"])
	assert.Equal(t, "R-1", row["value"])
	assert.Equal(t, "bureau_x", row["source_report_key"])
}

func TestBuildAuxiliaryRow_AddReportLookupOmitsSourceKeyWhenParamEmpty(t *testing.T) {
	step := contract.MappingStep{Kind: contract.AddReportLookup}
	fm := contract.FieldMapping{XMLAttribute: "report_id"}

	row, ok := buildAuxiliaryRow(step, fm, 1, chainResult{raw: "R-1", hasValue: true})

	require.True(t, ok)
	_, hasKey := row["source_report_key"]
	assert.False(t, hasKey)
}

func TestBuildAuxiliaryRow_PolicyExceptionsWithEnumParamSetsReasonCode(t *testing.T) {
	step := contract.MappingStep{Kind: contract.PolicyExceptions, Param: "OVERRIDE"}

	row, ok := buildAuxiliaryRow(step, contract.FieldMapping{}, 1, chainResult{raw: "manager override", hasValue: true})

	require.True(t, ok)
	assert.Equal(t, "OVERRIDE", row["policy_exception_type_enum"])
	assert.Equal(t, "manager override", row["reason_code"])
}

func TestBuildAuxiliaryRow_PolicyExceptionsWithoutParamSetsNotes(t *testing.T) {
	step := contract.MappingStep{Kind: contract.PolicyExceptions}

	row, ok := buildAuxiliaryRow(step, contract.FieldMapping{}, 1, chainResult{raw: "free text note", hasValue: true})

	require.True(t, ok)
	assert.Equal(t, "free text note", row["notes"])
}

func TestBuildAuxiliaryRow_UnknownKindReturnsFalse(t *testing.T) {
	_, ok := buildAuxiliaryRow(contract.MappingStep{Kind: contract.Enum}, contract.FieldMapping{}, 1, chainResult{raw: "x", hasValue: true})

	assert.False(t, ok)
}

func TestCollateralSlots_AccumulatesFieldsAcrossMappingsIntoOneRowPerSlot(t *testing.T) {
	slots := newCollateralSlots()
	slots.set(1, "1", "collateral_type", "VEHICLE")
	slots.set(1, "1", "collateral_value", "15000")
	slots.set(1, "2", "collateral_type", "BOAT")

	rows := slots.finalize(nil)

	require.Len(t, rows, 2)
	assert.Equal(t, "VEHICLE", rows[0]["collateral_type"])
	assert.Equal(t, "15000", rows[0]["collateral_value"])
	assert.Equal(t, "1", rows[0]["sort_order"])
	assert.Equal(t, "BOAT", rows[1]["collateral_type"])
}

func TestCollateralSlots_FinalizeAppliesRequiredColumnDefaults(t *testing.T) {
	slots := newCollateralSlots()
	slots.set(1, "1", "collateral_type", "VEHICLE")

	def := "0"
	columns := map[string]contract.ColumnSpec{"collateral_rank": {Required: true, DefaultValue: &def}}

	rows := slots.finalize(columns)

	require.Len(t, rows, 1)
	assert.Equal(t, "0", rows[0]["collateral_rank"])
}

// TestWarrantyBuckets_AccumulatesFieldsAcrossMappingsIntoOneRowPerEnum is the
// regression test for the bug where four warranty_field(SAME_ENUM) mappings
// (one per column) produced four single-column rows instead of one combined
// row (spec.md §4.5 step 3.c).
func TestWarrantyBuckets_AccumulatesFieldsAcrossMappingsIntoOneRowPerEnum(t *testing.T) {
	buckets := newWarrantyBuckets()
	buckets.set(1, "MERRICK", "company_name", "Merrick Bank")
	buckets.set(1, "MERRICK", "amount", "500.00")
	buckets.set(1, "MERRICK", "term_months", int64(36))
	buckets.set(1, "MERRICK", "policy_number", "P-1")

	rows := buckets.finalize()

	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "Merrick Bank", row["company_name"])
	assert.Equal(t, "500.00", row["amount"])
	assert.EqualValues(t, 36, row["term_months"])
	assert.Equal(t, "P-1", row["policy_number"])
	assert.Equal(t, 0, row["merrick_lienholder_flag"])
	assert.EqualValues(t, 1, row["app_id"])
}

func TestWarrantyBuckets_SeparateEnumsProduceSeparateRowsInFirstTouchedOrder(t *testing.T) {
	buckets := newWarrantyBuckets()
	buckets.set(1, "SECOND_ENUM", "company_name", "Second Co")
	buckets.set(1, "FIRST_ENUM", "company_name", "First Co")

	rows := buckets.finalize()

	require.Len(t, rows, 2)
	assert.Equal(t, "Second Co", rows[0]["company_name"])
	assert.Equal(t, "First Co", rows[1]["company_name"])
}

// TestApplyAuxiliary_WarrantyFieldMappingsForSameEnumCombineIntoOneRow drives
// the bug through the full engine: a contract with four warranty_field
// mappings sharing one enum param must combine into exactly one destination
// row, not four.
func TestApplyAuxiliary_WarrantyFieldMappingsForSameEnumCombineIntoOneRow(t *testing.T) {
	const xml = `<application app_id="1">
	  <contact con_id="1" type="PR" first_name="Jane" last_name="Doe" birth_date="1980-01-01" ssn="123456789"
	    warranty_company="Merrick Bank" warranty_amount="500.00" warranty_term="36" warranty_policy="P-1"/>
	</application>`

	c := &contract.Contract{
		TargetSchema:        "dbo",
		TableInsertionOrder: []string{"application_root", "contact_warranty"},
		Tables: map[string]*contract.TableSpec{
			"application_root": {
				Name: "application_root", Category: contract.ApplicationRoot,
				Columns:  map[string]contract.ColumnSpec{"app_id": {Required: true}},
				Mappings: []contract.FieldMapping{{XMLAttribute: "app_id", TargetColumn: "app_id", DataType: "int"}},
			},
			"contact_warranty": {
				Name: "contact_warranty", Category: contract.Auxiliary,
				Mappings: []contract.FieldMapping{
					{XMLAttribute: "warranty_company", TargetColumn: "company_name", MappingType: contract.MappingChain{{Kind: contract.WarrantyField, Param: "MERRICK"}}},
					{XMLAttribute: "warranty_amount", TargetColumn: "amount", MappingType: contract.MappingChain{{Kind: contract.WarrantyField, Param: "MERRICK"}}},
					{XMLAttribute: "warranty_term", TargetColumn: "term_months", DataType: "int", MappingType: contract.MappingChain{{Kind: contract.WarrantyField, Param: "MERRICK"}}},
					{XMLAttribute: "warranty_policy", TargetColumn: "policy_number", MappingType: contract.MappingChain{{Kind: contract.WarrantyField, Param: "MERRICK"}}},
				},
			},
		},
		ElementFiltering: contract.ElementFiltering{
			FilterRules: []contract.FilterRule{
				{Element: "contact", XPath: "//contact", IdentityAttribute: "con_id", TypeAttribute: "type", PriorityOrder: []string{"PR", "SEC"}},
			},
		},
	}

	doc, err := xmlmodel.Parse([]byte(xml))
	require.NoError(t, err)

	rows, _, err := New(c).ApplyContract(1, doc)
	require.NoError(t, err)

	require.Len(t, rows["contact_warranty"], 1, "four warranty_field(MERRICK) mappings must combine into one row")

	row := rows["contact_warranty"][0]
	assert.Equal(t, "Merrick Bank", row["company_name"])
	assert.Equal(t, "500.00", row["amount"])
	assert.EqualValues(t, 36, row["term_months"])
	assert.Equal(t, "P-1", row["policy_number"])
	assert.Equal(t, 0, row["merrick_lienholder_flag"])
}
