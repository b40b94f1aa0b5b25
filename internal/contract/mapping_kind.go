package contract

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MappingKind is the tagged-variant discriminator for one step of a mapping
// chain (spec.md §9's "dynamic mapping → typed mapping" redesign).
type MappingKind string

const (
	Enum                    MappingKind = "enum"
	CharToBit               MappingKind = "char_to_bit"
	NumbersOnly             MappingKind = "numbers_only"
	ExtractNumeric          MappingKind = "extract_numeric"
	CalculatedField         MappingKind = "calculated_field"
	LastValidPrimaryContact MappingKind = "last_valid_primary_contact"
	LastValidSecondaryContact MappingKind = "last_valid_secondary_contact"
	CurrAddressOnly         MappingKind = "curr_address_only"
	DefaultGetUTCDateIfNull MappingKind = "default_getutcdate_if_null"
	AddScore                MappingKind = "add_score"
	AddIndicator            MappingKind = "add_indicator"
	AddHistory              MappingKind = "add_history"
	AddReportLookup         MappingKind = "add_report_lookup"
	PolicyExceptions        MappingKind = "policy_exceptions"
	WarrantyField           MappingKind = "warranty_field"
	AddCollateral           MappingKind = "add_collateral"
	IdentityInsert          MappingKind = "identity_insert"
	ExtractDate             MappingKind = "extract_date"
)

// rowCreatingKinds appends rows to an auxiliary table instead of populating
// one column of an already-existing row.
var rowCreatingKinds = map[MappingKind]bool{
	AddScore:         true,
	AddIndicator:     true,
	AddHistory:       true,
	AddReportLookup:  true,
	PolicyExceptions: true,
	WarrantyField:    true,
	AddCollateral:    true,
}

// IsRowCreating reports whether kind appends a row rather than populating a
// column of the current row.
func (k MappingKind) IsRowCreating() bool {
	return rowCreatingKinds[k]
}

// MappingStep is one step of a mapping chain: a kind plus its optional
// parenthesized parameter, e.g. "add_score(id)" → {Kind: AddScore, Param: "id"}.
type MappingStep struct {
	Kind  MappingKind
	Param string
}

// parseMappingStep splits "kind(param)" into its kind and parameter; a bare
// "kind" token has an empty Param.
func parseMappingStep(token string) MappingStep {
	token = strings.TrimSpace(token)

	open := strings.IndexByte(token, '(')
	if open < 0 || !strings.HasSuffix(token, ")") {
		return MappingStep{Kind: MappingKind(token)}
	}

	return MappingStep{
		Kind:  MappingKind(token[:open]),
		Param: token[open+1 : len(token)-1],
	}
}

// MappingChain is the ordered list of mapping steps applied to one source
// value. In the contract document it may be authored as a single string
// token or a JSON/YAML array of tokens; both unmarshal to the same shape.
type MappingChain []MappingStep

// UnmarshalJSON accepts either a bare string ("enum") or an array of strings
// (["calculated_field", "enum"]).
func (m *MappingChain) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*m = MappingChain{parseMappingStep(single)}

		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("mapping_type must be a string or array of strings: %w", err)
	}

	chain := make(MappingChain, 0, len(list))
	for _, token := range list {
		chain = append(chain, parseMappingStep(token))
	}

	*m = chain

	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for YAML-authored contract fixtures.
func (m *MappingChain) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var single string
	if err := unmarshal(&single); err == nil {
		*m = MappingChain{parseMappingStep(single)}

		return nil
	}

	var list []string
	if err := unmarshal(&list); err != nil {
		return fmt.Errorf("mapping_type must be a string or list of strings: %w", err)
	}

	chain := make(MappingChain, 0, len(list))
	for _, token := range list {
		chain = append(chain, parseMappingStep(token))
	}

	*m = chain

	return nil
}
