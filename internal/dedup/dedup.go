// Package dedup implements the Duplicate Detector: a read-only pre-filter
// that checks which rows already exist in a destination table before the
// Bulk Insert Strategy is asked to insert them. It never mutates the
// database — the database's own PK/FK constraints remain the correctness
// guarantee; this package only keeps the fast path fast.
package dedup

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/correlator-io/xmlextract/internal/dest"
	"github.com/correlator-io/xmlextract/internal/mapping"
)

// KeySpec names the column(s) that uniquely identify a row in the
// destination table, for single-column keys (e.g. contact id) or composite
// keys (e.g. (con_id, address_type_enum)).
type KeySpec struct {
	Table   string
	Columns []string
}

// FilterDuplicates pre-filters rows whose key already exists in the
// destination, using a non-locking read (NOLOCK table hint) batched with an
// IN-list (single-column key) or a VALUES-joined predicate (composite key).
// Never mutates the database. Returns the surviving rows and the count
// skipped.
func FilterDuplicates(ctx context.Context, tx *sql.Tx, key KeySpec, rows []mapping.Row) ([]mapping.Row, int, error) {
	if len(rows) == 0 {
		return rows, 0, nil
	}

	existing, err := existingKeys(ctx, tx, key, rows)
	if err != nil {
		return nil, 0, &dest.BulkInsertError{Table: key.Table, Err: err}
	}

	survivors := make([]mapping.Row, 0, len(rows))
	skipped := 0

	for _, row := range rows {
		if existing[keyTuple(key, row)] {
			skipped++

			continue
		}

		survivors = append(survivors, row)
	}

	return survivors, skipped, nil
}

func keyTuple(key KeySpec, row mapping.Row) string {
	parts := make([]string, len(key.Columns))
	for i, col := range key.Columns {
		parts[i] = fmt.Sprintf("%v", row[col])
	}

	return strings.Join(parts, "\x1f")
}

func existingKeys(ctx context.Context, tx *sql.Tx, key KeySpec, rows []mapping.Row) (map[string]bool, error) {
	if len(key.Columns) == 1 {
		return existingSingleColumnKeys(ctx, tx, key, rows)
	}

	return existingCompositeKeys(ctx, tx, key, rows)
}

func existingSingleColumnKeys(ctx context.Context, tx *sql.Tx, key KeySpec, rows []mapping.Row) (map[string]bool, error) {
	col := key.Columns[0]

	placeholders := make([]string, len(rows))
	args := make([]interface{}, len(rows))

	for i, row := range rows {
		placeholders[i] = "?"
		args[i] = row[col]
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s WITH (NOLOCK) WHERE %s IN (%s)",
		col, key.Table, col, strings.Join(placeholders, ", "),
	)

	return queryExistingKeys(ctx, tx, query, args, 1)
}

func existingCompositeKeys(ctx context.Context, tx *sql.Tx, key KeySpec, rows []mapping.Row) (map[string]bool, error) {
	valueTuples := make([]string, len(rows))
	args := make([]interface{}, 0, len(rows)*len(key.Columns))

	for i, row := range rows {
		placeholders := make([]string, len(key.Columns))
		for j, col := range key.Columns {
			placeholders[j] = "?"
			args = append(args, row[col])
		}

		valueTuples[i] = "(" + strings.Join(placeholders, ", ") + ")"
	}

	aliases := make([]string, len(key.Columns))
	joinConds := make([]string, len(key.Columns))

	for i, col := range key.Columns {
		aliases[i] = fmt.Sprintf("c%d", i)
		joinConds[i] = fmt.Sprintf("t.%s = v.%s", col, aliases[i])
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s t WITH (NOLOCK) JOIN (VALUES %s) AS v(%s) ON %s",
		strings.Join(key.Columns, ", "), key.Table, strings.Join(valueTuples, ", "),
		strings.Join(aliases, ", "), strings.Join(joinConds, " AND "),
	)

	return queryExistingKeys(ctx, tx, query, args, len(key.Columns))
}

func queryExistingKeys(ctx context.Context, tx *sql.Tx, query string, args []interface{}, numCols int) (map[string]bool, error) {
	result, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer result.Close()

	existing := map[string]bool{}

	for result.Next() {
		values := make([]interface{}, numCols)
		scanArgs := make([]interface{}, numCols)

		for i := range values {
			scanArgs[i] = &values[i]
		}

		if err := result.Scan(scanArgs...); err != nil {
			return nil, err
		}

		parts := make([]string, numCols)
		for i, v := range values {
			parts[i] = fmt.Sprintf("%v", v)
		}

		existing[strings.Join(parts, "\x1f")] = true
	}

	return existing, result.Err()
}
