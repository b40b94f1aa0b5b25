package mapping

import (
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/correlator-io/xmlextract/internal/contract"
	"github.com/correlator-io/xmlextract/internal/expr"
	"github.com/correlator-io/xmlextract/internal/xmlmodel"
)

// identityLikeColumns are excluded when deciding whether a row is
// "meaningful" at row granularity (spec.md §4.5 step 3.d): a row whose only
// populated columns are one of these, plus constant defaults, is dropped.
var identityLikeColumns = map[string]bool{
	"app_id": true, "con_id": true, "contact_id": true, "sort_order": true,
}

// Engine applies a loaded contract to one parsed application, producing the
// full set of destination rows. It holds no per-call mutable state and is
// safe for concurrent use across applications.
type Engine struct {
	contract *contract.Contract
}

// New builds a mapping engine bound to one (already validated) contract.
func New(c *contract.Contract) *Engine {
	return &Engine{contract: c}
}

// ApplyContract is the single entry point per application: given the parsed
// XML document, it produces the RowSet obeying every invariant in spec.md §3,
// plus any non-fatal warnings (suppressed contacts, truncated columns).
func (e *Engine) ApplyContract(appID int64, doc *xmlquery.Node) (RowSet, []string, error) {
	c := e.contract
	rows := RowSet{}
	var warnings []string

	appCtx := xmlmodel.FlattenContext(doc, singleInstanceElements(c))

	contactRule, _ := c.FilterRuleFor("contact")
	contactNodes := xmlmodel.FilterElements(doc, contactRule, c)

	primary, secondary, contactWarnings := materializeContacts(contactNodes, contactRule, c.MeaningfulFields())
	warnings = append(warnings, contactWarnings...)

	contacts := allContacts(primary, secondary)

	globalPrimary := lastContact(primary)
	globalSecondary := lastContact(secondary)

	addressByContact := map[string][]*xmlquery.Node{}
	if rule, ok := c.FilterRuleFor("address"); ok {
		addressByContact = childrenFor(xmlmodel.FilterElements(doc, rule, c), rule.IdentityAttribute, contacts)
	}

	employmentByContact := map[string][]*xmlquery.Node{}
	if rule, ok := c.FilterRuleFor("employment"); ok {
		employmentByContact = childrenFor(xmlmodel.FilterElements(doc, rule, c), rule.IdentityAttribute, contacts)
	}

	for _, tableName := range c.TableInsertionOrder {
		spec, ok := c.Table(tableName)
		if !ok {
			continue
		}

		var tableWarnings []string

		var err error

		switch spec.Category {
		case contract.ApplicationRoot:
			err = e.applyApplicationRoot(appID, doc, spec, appCtx, globalPrimary, globalSecondary, rows, &tableWarnings)
		case contract.ContactScoped:
			err = e.applyContactScoped(appID, contacts, spec, appCtx, globalPrimary, globalSecondary, rows, &tableWarnings)
		case contract.ContactChild:
			err = e.applyContactChild(appID, tableName, contacts, addressByContact, employmentByContact, spec, appCtx, globalPrimary, globalSecondary, rows, &tableWarnings)
		case contract.Auxiliary:
			err = e.applyAuxiliary(appID, contacts, spec, appCtx, globalPrimary, globalSecondary, rows)
		}

		warnings = append(warnings, tableWarnings...)

		if err != nil {
			return nil, warnings, err
		}
	}

	return rows, warnings, nil
}

func (e *Engine) applyApplicationRoot(
	appID int64, doc *xmlquery.Node, spec *contract.TableSpec, appCtx expr.Context, primary, secondary *Contact,
	rows RowSet, warnings *[]string,
) error {
	root := xmlmodel.RootElement(doc)

	row, err := e.buildRow(appID, root, spec, appCtx, primary, secondary, warnings)
	if err != nil {
		return err
	}

	rows.Add(spec.Name, row) // app root is a required parent; never suppressed

	return nil
}

func (e *Engine) applyContactScoped(
	appID int64, contacts []Contact, spec *contract.TableSpec, appCtx expr.Context, primary, secondary *Contact,
	rows RowSet, warnings *[]string,
) error {
	for _, c := range contacts {
		row, err := e.buildRow(appID, c.Node, spec, appCtx, primary, secondary, warnings)
		if err != nil {
			return err
		}

		row["con_id"] = c.ConID

		if isMeaningfulRow(row) {
			rows.Add(spec.Name, row)
		} else {
			*warnings = append(*warnings, "dropped non-meaningful row for table "+spec.Name+" con_id="+c.ConID)
		}
	}

	return nil
}

func (e *Engine) applyContactChild(
	appID int64, tableName string, contacts []Contact,
	addressByContact, employmentByContact map[string][]*xmlquery.Node,
	spec *contract.TableSpec, appCtx expr.Context, primary, secondary *Contact,
	rows RowSet, warnings *[]string,
) error {
	children := addressByContact
	if strings.Contains(strings.ToLower(tableName), "employ") {
		children = employmentByContact
	}

	for _, c := range contacts {
		for _, node := range children[c.ConID] {
			row, err := e.buildRow(appID, node, spec, appCtx, primary, secondary, warnings)
			if err != nil {
				return err
			}

			row["con_id"] = c.ConID

			if isMeaningfulRow(row) {
				rows.Add(spec.Name, row)
			} else {
				*warnings = append(*warnings, "dropped non-meaningful row for table "+spec.Name+" con_id="+c.ConID)
			}
		}
	}

	return nil
}

// applyAuxiliary evaluates row-creating mapping types once per surviving
// contact (the package's design decision for an otherwise-unscoped auxiliary
// table — see DESIGN.md).
func (e *Engine) applyAuxiliary(
	appID int64, contacts []Contact, spec *contract.TableSpec, appCtx expr.Context, primary, secondary *Contact,
	rows RowSet,
) error {
	for _, c := range contacts {
		slots := newCollateralSlots()
		warranty := newWarrantyBuckets()

		for _, fm := range spec.Mappings {
			if len(fm.MappingType) == 0 {
				continue
			}

			last := fm.MappingType[len(fm.MappingType)-1]
			if !last.Kind.IsRowCreating() {
				continue
			}

			raw, has := extractSource(c.Node, fm, appCtx)
			cur := applyChain(chainResult{raw: raw, hasValue: has}, fm.MappingType[:len(fm.MappingType)-1], fm, e.contract, appCtx, primary, secondary)

			switch last.Kind {
			case contract.AddCollateral:
				if cur.hasValue {
					slots.set(appID, last.Param, fm.TargetColumn, coerceDataType(cur.raw, fm.DataType))
				}

				continue
			case contract.WarrantyField:
				if cur.hasValue && isMeaningful(cur.raw) {
					warranty.set(appID, last.Param, fm.TargetColumn, coerceDataType(cur.raw, fm.DataType))
				}

				continue
			}

			if row, ok := buildAuxiliaryRow(last, fm, appID, cur); ok {
				rows.Add(spec.Name, row)
			}
		}

		for _, row := range slots.finalize(spec.Columns) {
			rows.Add(spec.Name, row)
		}

		for _, row := range warranty.finalize() {
			rows.Add(spec.Name, row)
		}
	}

	return nil
}

// buildRow evaluates every scalar field mapping of a table against one
// source node, implementing the column-population algorithm of spec.md §4.5
// step 3.b (including the omission/default/MappingError decision tree).
func (e *Engine) buildRow(
	appID int64, node *xmlquery.Node, spec *contract.TableSpec, appCtx expr.Context, primary, secondary *Contact,
	warnings *[]string,
) (Row, error) {
	row := Row{}

	for _, fm := range spec.Mappings {
		if fm.TargetColumn == "" {
			continue // row-creating mappings have no destination column on this row
		}

		if len(fm.MappingType) > 0 && fm.MappingType[len(fm.MappingType)-1].Kind.IsRowCreating() {
			continue // handled by applyAuxiliary
		}

		raw, has := extractSource(node, fm, appCtx)
		result := applyChain(chainResult{raw: raw, hasValue: has}, fm.MappingType, fm, e.contract, appCtx, primary, secondary)

		if result.hasValue && chainContainsKind(fm.MappingType, contract.NumbersOnly) {
			// numbers_only is re-applied after the chain for string outputs (§4.5 edge-case policy).
			if digits := extractDigits(result.raw); digits != "" {
				result.raw = digits
			}
		}

		col, hasCol := spec.Columns[fm.TargetColumn]

		if !result.hasValue {
			if err := e.applyMissingValue(appID, spec.Name, fm, col, hasCol, row); err != nil {
				return nil, err
			}

			continue
		}

		value := result.raw
		if fm.DataLength > 0 {
			truncated, didTruncate := truncate(value, fm.DataLength)
			if didTruncate {
				*warnings = append(*warnings, "truncated "+spec.Name+"."+fm.TargetColumn+" to "+strconv.Itoa(fm.DataLength)+" characters")
			}

			value = truncated
		}

		row[fm.TargetColumn] = coerceDataType(value, fm.DataType)
	}

	return row, nil
}

func (e *Engine) applyMissingValue(appID int64, table string, fm contract.FieldMapping, col contract.ColumnSpec, hasCol bool, row Row) error {
	if fm.DefaultValue != "" {
		row[fm.TargetColumn] = coerceDataType(fm.DefaultValue, fm.DataType)

		return nil
	}

	if !hasCol {
		return nil // unknown-to-schema column metadata: omit rather than guess
	}

	if col.DefaultValue != nil {
		row[fm.TargetColumn] = coerceDataType(*col.DefaultValue, fm.DataType)

		return nil
	}

	if col.Required {
		return newMappingError(appID, table, fm.TargetColumn, "required column has no value and no default_value")
	}

	return nil // nullable or not required: omit
}

// isMeaningfulRow implements spec.md §4.5 step 3.d: a row whose only
// populated columns are identity/FK-like is dropped.
func isMeaningfulRow(row Row) bool {
	for col := range row {
		if !identityLikeColumns[col] {
			return true
		}
	}

	return false
}

func lastContact(contacts []Contact) *Contact {
	if len(contacts) == 0 {
		return nil
	}

	return &contacts[len(contacts)-1]
}

// singleInstanceElements returns the filter-rule element names treated as
// single-instance children for context flattening — every declared element
// except the inherently-repeating contact.
func singleInstanceElements(c *contract.Contract) []string {
	var names []string

	for _, rule := range c.ElementFiltering.FilterRules {
		if rule.Element == "contact" {
			continue
		}

		names = append(names, rule.Element)
	}

	return names
}

func chainContainsKind(chain contract.MappingChain, kind contract.MappingKind) bool {
	for _, step := range chain {
		if step.Kind == kind {
			return true
		}
	}

	return false
}
