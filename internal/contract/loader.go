package contract

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var validCategories = map[TableCategory]bool{
	ApplicationRoot: true,
	ContactScoped:   true,
	ContactChild:    true,
	Auxiliary:       true,
}

// Load reads a mapping contract document from disk and returns a validated,
// immutable in-memory model. JSON is the primary format; ".yaml"/".yml"
// files are decoded with the same struct tags for test fixtures.
//
// Load is idempotent: calling it twice on the same file produces two
// independent, equally valid Contract values.
func Load(path string) (*Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ContractError{Err: fmt.Errorf("reading contract %s: %w", path, err)}
	}

	c, err := decode(path, data)
	if err != nil {
		return nil, err
	}

	if err := Validate(c); err != nil {
		return nil, err
	}

	return c, nil
}

func decode(path string, data []byte) (*Contract, error) {
	c := &Contract{}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, &ContractError{Err: fmt.Errorf("parsing contract %s: %w", path, err)}
		}

		return c, nil
	}

	if err := json.Unmarshal(data, c); err != nil {
		return nil, &ContractError{Err: fmt.Errorf("parsing contract %s: %w", path, err)}
	}

	return c, nil
}

// Validate checks every cross-reference inside the contract: enum names,
// table-insertion-order completeness, filter-rule enum references, and table
// categories. Returns a *ContractError describing the first problem found.
func Validate(c *Contract) error {
	if len(c.TableInsertionOrder) == 0 {
		return newContractError("%w: table_insertion_order is empty", ErrDanglingReference)
	}

	for _, table := range c.TableInsertionOrder {
		spec, ok := c.Tables[table]
		if !ok {
			return newContractError("%w: table_insertion_order references undefined table %q", ErrDanglingReference, table)
		}

		if len(spec.Mappings) == 0 {
			return newContractError("%w: table %q has no field mappings", ErrDanglingReference, table)
		}

		if !validCategories[spec.Category] {
			return newContractError("%w: table %q has category %q", ErrInvalidCategory, table, spec.Category)
		}

		for _, fm := range spec.Mappings {
			if err := validateMappingEnumRefs(c, table, fm); err != nil {
				return err
			}
		}
	}

	for _, rule := range c.ElementFiltering.FilterRules {
		for _, attr := range rule.RequiredAttributes {
			if attr.EnumName == "" {
				continue
			}

			if _, ok := c.EnumMappings[attr.EnumName]; !ok {
				return newContractError(
					"%w: filter rule %q references undefined enum %q",
					ErrDanglingReference, rule.Element, attr.EnumName,
				)
			}
		}
	}

	return nil
}

func validateMappingEnumRefs(c *Contract, table string, fm FieldMapping) error {
	if fm.EnumName != "" {
		if _, ok := c.EnumMappings[fm.EnumName]; !ok {
			return newContractError(
				"%w: table %q column %q references undefined enum %q",
				ErrDanglingReference, table, fm.TargetColumn, fm.EnumName,
			)
		}
	}

	for _, step := range fm.MappingType {
		if step.Kind != Enum || step.Param == "" {
			continue
		}

		if _, ok := c.EnumMappings[step.Param]; !ok {
			return newContractError(
				"%w: table %q column %q mapping chain references undefined enum %q",
				ErrDanglingReference, table, fm.TargetColumn, step.Param,
			)
		}
	}

	return nil
}
