package dest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	mssql "github.com/denisenkom/go-mssqldb"

	"github.com/correlator-io/xmlextract/internal/mapping"
)

// InsertOptions configures one call to Insert.
type InsertOptions struct {
	// EnableIdentityInsert toggles SET IDENTITY_INSERT for tables whose
	// primary key is supplied explicitly rather than generated.
	EnableIdentityInsert bool
	// ToleratesDuplicates allows a primary-key violation on a single row,
	// in the per-row fallback, to be logged and skipped rather than
	// failing the whole batch (designated tables only, e.g. the primary
	// contact table on crash-recovery re-insertion).
	ToleratesDuplicates bool
}

// Insert implements the Bulk Insert Strategy (spec.md §4.7): a fast
// bound-parameter bulk path, falling back to a per-row path on a
// type-conversion error, with duplicate tolerance for designated tables.
// Returns the number of rows actually inserted.
func Insert(ctx context.Context, tx *sql.Tx, table string, rows []mapping.Row, opts InsertOptions) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	columns := columnUnion(rows)

	if opts.EnableIdentityInsert {
		if err := setIdentityInsert(ctx, tx, table, true); err != nil {
			return 0, &BulkInsertError{Table: table, Err: err}
		}

		defer func() { _ = setIdentityInsert(ctx, tx, table, false) }() // unconditional cleanup; never masks the original error
	}

	inserted, err := bulkCopy(ctx, tx, table, columns, rows)
	if err == nil {
		return inserted, nil
	}

	if isConstraintViolation(err) {
		return 0, categorizeError(table, err)
	}

	// Fast path failed for a non-constraint reason (e.g. a type-conversion
	// cast error): fall back to per-row inserts.
	return insertRowByRow(ctx, tx, table, columns, rows, opts)
}

func isConstraintViolation(err error) bool {
	_, ok := categorizeConstraintErrorFromErr(err)

	return ok
}

func categorizeConstraintErrorFromErr(err error) (string, bool) {
	var sqlErr mssql.Error
	if !errors.As(err, &sqlErr) {
		return "", false
	}

	return categorizeConstraintError(sqlErr)
}

func columnUnion(rows []mapping.Row) []string {
	set := map[string]bool{}
	for _, row := range rows {
		for col := range row {
			set[col] = true
		}
	}

	columns := make([]string, 0, len(set))
	for col := range set {
		columns = append(columns, col)
	}

	sort.Strings(columns) // deterministic column order across runs

	return columns
}

func bulkCopy(ctx context.Context, tx *sql.Tx, table string, columns []string, rows []mapping.Row) (int, error) {
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(table, mssql.BulkOptions{}, columns...))
	if err != nil {
		return 0, fmt.Errorf("preparing bulk copy: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		args := make([]interface{}, len(columns))
		for i, col := range columns {
			args[i] = row[col] // nil for an omitted column: driver applies the DB default
		}

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("queueing row for bulk copy: %w", err)
		}
	}

	result, err := stmt.ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("flushing bulk copy: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		affected = int64(len(rows))
	}

	return int(affected), nil
}

func insertRowByRow(ctx context.Context, tx *sql.Tx, table string, columns []string, rows []mapping.Row, opts InsertOptions) (int, error) {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = "?"
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "),
	)

	inserted := 0

	for _, row := range rows {
		args := make([]interface{}, len(columns))
		for i, col := range columns {
			args[i] = row[col]
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			categorized := categorizeError(table, err)

			if opts.ToleratesDuplicates && isPrimaryKeyViolation(categorized) {
				continue // logged by the caller via the returned skip count, not here
			}

			return inserted, categorized
		}

		inserted++
	}

	return inserted, nil
}

func setIdentityInsert(ctx context.Context, tx *sql.Tx, table string, on bool) error {
	state := "OFF"
	if on {
		state = "ON"
	}

	_, err := tx.ExecContext(ctx, fmt.Sprintf("SET IDENTITY_INSERT %s %s", table, state))

	return err
}
