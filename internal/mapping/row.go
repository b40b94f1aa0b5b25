// Package mapping implements the contract interpreter that turns one parsed
// XML application into rows for every destination table: field mappings,
// type conversions, calculated expressions, enum lookups, contact
// deduplication, and row-creating mapping types.
package mapping

// Row is one destination row: column name to typed value. A column whose
// mapping yielded "no value" is omitted from the map entirely (not set to
// nil) so that the database's own default applies on insert.
type Row map[string]interface{}

// RowSet is the complete output of mapping one application: destination
// table name to the ordered rows produced for it.
type RowSet map[string][]Row

// Add appends row to the named table's row list, creating the slice if this
// is the table's first row.
func (rs RowSet) Add(table string, row Row) {
	rs[table] = append(rs[table], row)
}
