// Package contract loads and validates the declarative mapping document that
// drives the extraction pipeline: target tables, field mappings, enum lookups,
// and element filter rules.
package contract

// TableCategory distinguishes how many rows a table produces per application,
// derived once at load time so the mapping engine branches on category rather
// than on table name (see DESIGN.md).
type TableCategory string

const (
	// ApplicationRoot tables produce exactly one row per application.
	ApplicationRoot TableCategory = "application_root"
	// ContactScoped tables produce one row per surviving contact.
	ContactScoped TableCategory = "contact_scoped"
	// ContactChild tables inherit the contact-id of their deduped parent contact.
	ContactChild TableCategory = "contact_child"
	// Auxiliary tables are populated exclusively by row-creating mapping types.
	Auxiliary TableCategory = "auxiliary"
)

// ColumnSpec carries schema-derived metadata for one destination column,
// either looked up against the live schema or pre-computed in the contract.
type ColumnSpec struct {
	Nullable     bool    `json:"nullable" yaml:"nullable"`
	Required     bool    `json:"required" yaml:"required"`
	MaxLength    int     `json:"max_length,omitempty" yaml:"max_length,omitempty"`
	DefaultValue *string `json:"default_value,omitempty" yaml:"default_value,omitempty"`
}

// FieldMapping describes how one destination column (or, for row-creating
// mapping types, one auxiliary row) is produced from the source XML.
type FieldMapping struct {
	XMLPath      string      `json:"xml_path,omitempty" yaml:"xml_path,omitempty"`
	XMLAttribute string      `json:"xml_attribute,omitempty" yaml:"xml_attribute,omitempty"`
	TargetColumn string      `json:"target_column,omitempty" yaml:"target_column,omitempty"`
	DataType     string      `json:"data_type,omitempty" yaml:"data_type,omitempty"`
	DataLength   int         `json:"data_length,omitempty" yaml:"data_length,omitempty"`
	MappingType  MappingChain `json:"mapping_type,omitempty" yaml:"mapping_type,omitempty"`
	EnumName     string      `json:"enum_name,omitempty" yaml:"enum_name,omitempty"`
	DefaultValue string      `json:"default_value,omitempty" yaml:"default_value,omitempty"`
	Expression   string      `json:"expression,omitempty" yaml:"expression,omitempty"`
}

// TableSpec is one destination table: its schema-derived columns, the field
// mappings that populate it, and its derived row-cardinality category.
type TableSpec struct {
	Name     string                `json:"name" yaml:"name"`
	Category TableCategory         `json:"category" yaml:"category"`
	Columns  map[string]ColumnSpec `json:"columns" yaml:"columns"`
	Mappings []FieldMapping        `json:"mappings" yaml:"mappings"`
}

// AttributeRequirement is one required-attribute clause on a filter rule:
// either presence-nonempty (Values and EnumName both empty) or membership in
// an explicit or enum-backed value set (compared case-insensitively).
type AttributeRequirement struct {
	Name     string   `json:"name" yaml:"name"`
	Values   []string `json:"values,omitempty" yaml:"values,omitempty"`
	EnumName string   `json:"enum_name,omitempty" yaml:"enum_name,omitempty"`
}

// FilterRule drives the Element Filter for one logical element type (contact,
// address, employment).
type FilterRule struct {
	Element             string                 `json:"element" yaml:"element"`
	XPath                string                 `json:"xpath" yaml:"xpath"`
	IdentityAttribute    string                 `json:"identity_attribute" yaml:"identity_attribute"`
	TypeAttribute        string                 `json:"type_attribute,omitempty" yaml:"type_attribute,omitempty"`
	RequiredAttributes   []AttributeRequirement `json:"required_attributes,omitempty" yaml:"required_attributes,omitempty"`
	PriorityOrder        []string               `json:"priority_order,omitempty" yaml:"priority_order,omitempty"`
}

// ElementFiltering groups all the contract's element filter rules.
type ElementFiltering struct {
	FilterRules []FilterRule `json:"filter_rules" yaml:"filter_rules"`
}

// KeyIdentifier is an XPath + attribute pair used to read an identifier out
// of the XML root.
type KeyIdentifier struct {
	XPath     string `json:"xpath" yaml:"xpath"`
	Attribute string `json:"attribute" yaml:"attribute"`
}

// KeyIdentifiers names the contract-specified locations of identifying values.
type KeyIdentifiers struct {
	AppID KeyIdentifier `json:"app_id" yaml:"app_id"`
}

// EnumMapping is a named map from string codes to integer codes, with an
// optional default for keys not present in Values.
type EnumMapping struct {
	Name    string         `json:"name" yaml:"name"`
	Values  map[string]int `json:"values" yaml:"values"`
	Default *int           `json:"default,omitempty" yaml:"default,omitempty"`
}

// defaultRequiredMeaningfulFields is the loader-applied default per
// spec.md §9 when the contract omits required_meaningful_fields.
var defaultRequiredMeaningfulFields = []string{"birth_date", "first_name", "last_name", "ssn"}

// Contract is the immutable, versioned mapping document. Once returned by
// Load it is safe for concurrent read-only use by any number of workers.
type Contract struct {
	TargetSchema             string                 `json:"target_schema" yaml:"target_schema"`
	TableInsertionOrder      []string               `json:"table_insertion_order" yaml:"table_insertion_order"`
	Tables                   map[string]*TableSpec  `json:"tables" yaml:"tables"`
	EnumMappings             map[string]EnumMapping `json:"enum_mappings" yaml:"enum_mappings"`
	ElementFiltering         ElementFiltering        `json:"element_filtering" yaml:"element_filtering"`
	KeyIdentifiers           KeyIdentifiers         `json:"key_identifiers" yaml:"key_identifiers"`
	RequiredMeaningfulFields []string               `json:"required_meaningful_fields,omitempty" yaml:"required_meaningful_fields,omitempty"`
}

// QualifiedTable prefixes a bare table name with the contract's target
// schema, e.g. "contact_base" → "sandbox.contact_base".
func (c *Contract) QualifiedTable(table string) string {
	if c.TargetSchema == "" {
		return table
	}

	return c.TargetSchema + "." + table
}

// Table looks up a destination table by name.
func (c *Contract) Table(name string) (*TableSpec, bool) {
	t, ok := c.Tables[name]

	return t, ok
}

// Enum looks up a named enum mapping.
func (c *Contract) Enum(name string) (EnumMapping, bool) {
	e, ok := c.EnumMappings[name]

	return e, ok
}

// MeaningfulFields returns the fields the "meaningful contact" predicate
// checks, falling back to the spec's default list when the contract is silent.
func (c *Contract) MeaningfulFields() []string {
	if len(c.RequiredMeaningfulFields) > 0 {
		return c.RequiredMeaningfulFields
	}

	return defaultRequiredMeaningfulFields
}

// FilterRuleFor returns the filter rule declared for a logical element type
// (contact, address, employment).
func (c *Contract) FilterRuleFor(element string) (FilterRule, bool) {
	for _, rule := range c.ElementFiltering.FilterRules {
		if rule.Element == element {
			return rule, true
		}
	}

	return FilterRule{}, false
}
