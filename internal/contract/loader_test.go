package contract

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeContract(t *testing.T, name, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, name)

	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

const validContractJSON = `{
  "target_schema": "dbo",
  "table_insertion_order": ["app_base", "contact_base"],
  "tables": {
    "app_base": {
      "name": "app_base",
      "category": "application_root",
      "columns": {"app_id": {"nullable": false, "required": true}},
      "mappings": [
        {"xml_path": "/application", "xml_attribute": "app_id", "target_column": "app_id", "data_type": "int"}
      ]
    },
    "contact_base": {
      "name": "contact_base",
      "category": "contact_scoped",
      "columns": {"first_name": {"nullable": true, "required": false}},
      "mappings": [
        {"xml_path": "/application/contact", "xml_attribute": "fst_nm", "target_column": "first_name", "data_type": "string", "mapping_type": "numbers_only"},
        {"target_column": "role_enum", "enum_name": "contact_role", "mapping_type": ["calculated_field", "enum"]}
      ]
    }
  },
  "enum_mappings": {
    "contact_role": {"name": "contact_role", "values": {"PR": 1, "SEC": 2}, "default": 0}
  },
  "element_filtering": {
    "filter_rules": [
      {"element": "contact", "xpath": "//contact", "identity_attribute": "con_id", "type_attribute": "ac_role_tp_c", "priority_order": ["PR", "SEC"],
       "required_attributes": [{"name": "ac_role_tp_c", "enum_name": "contact_role"}]}
    ]
  },
  "key_identifiers": {"app_id": {"xpath": "/application", "attribute": "app_id"}}
}`

func TestLoad_ValidContract(t *testing.T) {
	path := writeContract(t, "contract.json", validContractJSON)

	c, err := Load(path)

	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "dbo", c.TargetSchema)
	assert.Equal(t, "dbo.contact_base", c.QualifiedTable("contact_base"))

	table, ok := c.Table("contact_base")
	require.True(t, ok)
	assert.Equal(t, ContactScoped, table.Category)

	enum, ok := c.Enum("contact_role")
	require.True(t, ok)
	assert.Equal(t, 1, enum.Values["PR"])
}

func TestLoad_DefaultsMeaningfulFields(t *testing.T) {
	path := writeContract(t, "contract.json", validContractJSON)

	c, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, []string{"birth_date", "first_name", "last_name", "ssn"}, c.MeaningfulFields())
}

func TestLoad_DanglingTableInInsertionOrder(t *testing.T) {
	bad := `{"target_schema":"dbo","table_insertion_order":["missing"],"tables":{},"enum_mappings":{},"element_filtering":{"filter_rules":[]},"key_identifiers":{"app_id":{"xpath":"/a","attribute":"id"}}}`
	path := writeContract(t, "contract.json", bad)

	_, err := Load(path)

	require.Error(t, err)

	var contractErr *ContractError

	require.True(t, errors.As(err, &contractErr))
	assert.ErrorIs(t, err, ErrDanglingReference)
}

func TestLoad_DanglingEnumReference(t *testing.T) {
	bad := `{
  "target_schema": "dbo",
  "table_insertion_order": ["app_base"],
  "tables": {
    "app_base": {
      "name": "app_base", "category": "application_root", "columns": {},
      "mappings": [{"target_column": "role_enum", "enum_name": "missing_enum"}]
    }
  },
  "enum_mappings": {},
  "element_filtering": {"filter_rules": []},
  "key_identifiers": {"app_id": {"xpath": "/a", "attribute": "id"}}
}`
	path := writeContract(t, "contract.json", bad)

	_, err := Load(path)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDanglingReference)
}

func TestLoad_InvalidCategory(t *testing.T) {
	bad := `{
  "target_schema": "dbo",
  "table_insertion_order": ["app_base"],
  "tables": {
    "app_base": {
      "name": "app_base", "category": "not_a_real_category", "columns": {},
      "mappings": [{"target_column": "app_id"}]
    }
  },
  "enum_mappings": {},
  "element_filtering": {"filter_rules": []},
  "key_identifiers": {"app_id": {"xpath": "/a", "attribute": "id"}}
}`
	path := writeContract(t, "contract.json", bad)

	_, err := Load(path)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCategory)
}

func TestLoad_FilterRuleDanglingEnum(t *testing.T) {
	bad := `{
  "target_schema": "dbo",
  "table_insertion_order": ["app_base"],
  "tables": {
    "app_base": {"name": "app_base", "category": "application_root", "columns": {}, "mappings": [{"target_column": "app_id"}]}
  },
  "enum_mappings": {},
  "element_filtering": {"filter_rules": [
    {"element": "contact", "xpath": "//contact", "identity_attribute": "con_id",
     "required_attributes": [{"name": "ac_role_tp_c", "enum_name": "missing"}]}
  ]},
  "key_identifiers": {"app_id": {"xpath": "/a", "attribute": "id"}}
}`
	path := writeContract(t, "contract.json", bad)

	_, err := Load(path)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDanglingReference)
}

func TestLoad_YAMLContract(t *testing.T) {
	yamlContract := `
target_schema: dbo
table_insertion_order: [app_base]
tables:
  app_base:
    name: app_base
    category: application_root
    columns:
      app_id:
        nullable: false
        required: true
    mappings:
      - xml_path: /application
        xml_attribute: app_id
        target_column: app_id
        data_type: int
enum_mappings: {}
element_filtering:
  filter_rules: []
key_identifiers:
  app_id:
    xpath: /application
    attribute: app_id
`
	path := writeContract(t, "contract.yaml", yamlContract)

	c, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "dbo", c.TargetSchema)
}

func TestMappingChain_SingleToken(t *testing.T) {
	var chain MappingChain

	err := chain.UnmarshalJSON([]byte(`"numbers_only"`))

	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, NumbersOnly, chain[0].Kind)
	assert.Empty(t, chain[0].Param)
}

func TestMappingChain_ParameterizedToken(t *testing.T) {
	var chain MappingChain

	err := chain.UnmarshalJSON([]byte(`"add_score(credit_score)"`))

	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, AddScore, chain[0].Kind)
	assert.Equal(t, "credit_score", chain[0].Param)
	assert.True(t, chain[0].Kind.IsRowCreating())
}

func TestMappingChain_Sequence(t *testing.T) {
	var chain MappingChain

	err := chain.UnmarshalJSON([]byte(`["calculated_field", "enum"]`))

	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, CalculatedField, chain[0].Kind)
	assert.Equal(t, Enum, chain[1].Kind)
}
