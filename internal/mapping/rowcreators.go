package mapping

import (
	"github.com/shopspring/decimal"

	"github.com/correlator-io/xmlextract/internal/contract"
)

// buildAuxiliaryRow implements the row-creating mapping types from spec.md
// §4.5 step 3.c that produce exactly one row per evaluation (everything
// except add_collateral and warranty_field, which accumulate into buckets —
// see collateralSlots and warrantyBuckets).
func buildAuxiliaryRow(step contract.MappingStep, fm contract.FieldMapping, appID int64, value chainResult) (Row, bool) {
	switch step.Kind {
	case contract.AddScore:
		if !value.hasValue {
			return nil, false
		}

		if _, err := decimal.NewFromString(value.raw); err != nil {
			return nil, false
		}

		return Row{"app_id": appID, "score_identifier": step.Param, "score": value.raw}, true

	case contract.AddIndicator:
		if !value.hasValue || !isTruthy(value.raw) {
			return nil, false
		}

		return Row{"app_id": appID, "indicator": step.Param, "value": "1"}, true

	case contract.AddHistory:
		if !value.hasValue || !isMeaningful(value.raw) {
			return nil, false
		}

		return Row{
			"app_id": appID,
			"name":   fm.XMLAttribute,
			"source": rightmostSegment(fm.XMLPath),
			"value":  value.raw,
		}, true

	case contract.AddReportLookup:
		if !value.hasValue || !isMeaningful(value.raw) {
			return nil, false
		}

		row := Row{"app_id": appID, "name": fm.XMLAttribute, "value": value.raw}
		if step.Param != "" {
			row["source_report_key"] = step.Param
		}

		return row, true

	case contract.PolicyExceptions:
		if !value.hasValue || !isMeaningful(value.raw) {
			return nil, false
		}

		row := Row{"app_id": appID}

		if step.Param == "" {
			row["notes"] = value.raw
		} else {
			row["policy_exception_type_enum"] = step.Param
			row["reason_code"] = value.raw
		}

		return row, true

	default:
		return nil, false
	}
}

// collateralSlots accumulates add_collateral(slot) field mappings into their
// slot-keyed row across every FieldMapping of an auxiliary table, since a
// single slot's row is populated field-by-field across multiple mappings
// (spec.md §4.5 step 3.c).
type collateralSlots struct {
	rows map[string]Row // slot -> row (sort_order set once, fields merged)
	order []string
}

func newCollateralSlots() *collateralSlots {
	return &collateralSlots{rows: map[string]Row{}}
}

// set merges one field's value into the row for the given slot, creating it
// on first touch and stamping sort_order.
func (s *collateralSlots) set(appID int64, slot, column string, value interface{}) {
	row, ok := s.rows[slot]
	if !ok {
		row = Row{"app_id": appID, "sort_order": slot}
		s.order = append(s.order, slot)
	}

	row[column] = value
	s.rows[slot] = row
}

// rows returns the accumulated slot rows in first-touched order, applying
// defaults for NOT NULL columns that were never populated in a slot.
func (s *collateralSlots) finalize(columns map[string]contract.ColumnSpec) []Row {
	out := make([]Row, 0, len(s.order))

	for _, slot := range s.order {
		row := s.rows[slot]

		for name, spec := range columns {
			if _, set := row[name]; set {
				continue
			}

			if spec.Required && spec.DefaultValue != nil {
				row[name] = *spec.DefaultValue
			}
		}

		out = append(out, row)
	}

	return out
}

// warrantyBuckets accumulates warranty_field(enum) field mappings into their
// enum-keyed row across every FieldMapping of an auxiliary table: the four
// named warranty columns (company_name, amount, term_months, policy_number)
// are populated field-by-field onto the same bucket row when they share an
// enum, analogous to collateralSlots (spec.md §4.5 step 3.c).
type warrantyBuckets struct {
	rows  map[string]Row // enum -> row
	order []string
}

func newWarrantyBuckets() *warrantyBuckets {
	return &warrantyBuckets{rows: map[string]Row{}}
}

// set merges one field's value into the row for the given enum bucket,
// creating it on first touch with the fixed merrick_lienholder_flag default.
func (b *warrantyBuckets) set(appID int64, enum, column string, value interface{}) {
	row, ok := b.rows[enum]
	if !ok {
		row = Row{"app_id": appID, "merrick_lienholder_flag": 0}
		b.order = append(b.order, enum)
	}

	row[column] = value
	b.rows[enum] = row
}

// finalize returns the accumulated enum-bucket rows in first-touched order.
func (b *warrantyBuckets) finalize() []Row {
	out := make([]Row, 0, len(b.order))

	for _, enum := range b.order {
		out = append(out, b.rows[enum])
	}

	return out
}
