// Package migration implements the Migration Engine: a thin orchestrator
// that, given a mapped RowSet for one application, inserts it into the
// destination tables in FK order inside a single transaction, committing on
// success and rolling back and re-raising on any failure.
package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/correlator-io/xmlextract/internal/contract"
	"github.com/correlator-io/xmlextract/internal/dedup"
	"github.com/correlator-io/xmlextract/internal/dest"
	"github.com/correlator-io/xmlextract/internal/mapping"
)

// Engine orchestrates per-table duplicate detection and bulk insert for one
// application's mapped rows.
type Engine struct {
	contract *contract.Contract
}

// New builds a migration Engine bound to a loaded contract.
func New(c *contract.Contract) *Engine {
	return &Engine{contract: c}
}

// Migrate opens a transaction on db, inserts rows for every table in
// table_insertion_order, and commits. On any error it rolls back and
// re-raises the original error, except when the rollback itself fails, in
// which case it raises a TransactionAtomicityError. When dryRun is true, the
// insertion still runs against the live transaction (so constraint errors
// and row counts reflect what a real run would do) but the transaction is
// always rolled back instead of committed, leaving the destination
// untouched.
func (e *Engine) Migrate(ctx context.Context, db *sql.DB, appID int64, rows mapping.RowSet, dryRun bool) (map[string]int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &dest.ConnectionError{Err: fmt.Errorf("begin transaction (app_id=%d): %w", appID, err)}
	}

	counts, migrateErr := e.migrateTables(ctx, tx, rows)
	if migrateErr != nil {
		if rbErr := rollback(tx); rbErr != nil {
			return nil, &dest.TransactionAtomicityError{AppID: appID, CommitErr: migrateErr, RollbackErr: rbErr}
		}

		return nil, migrateErr
	}

	if dryRun {
		if rbErr := rollback(tx); rbErr != nil {
			return nil, &dest.TransactionAtomicityError{AppID: appID, CommitErr: nil, RollbackErr: rbErr}
		}

		return counts, nil
	}

	if commitErr := tx.Commit(); commitErr != nil {
		if rbErr := rollback(tx); rbErr != nil {
			return nil, &dest.TransactionAtomicityError{AppID: appID, CommitErr: commitErr, RollbackErr: rbErr}
		}

		return nil, fmt.Errorf("commit transaction (app_id=%d): %w", appID, commitErr)
	}

	return counts, nil
}

// rollback rolls back tx, treating "transaction already closed" as success
// since Commit (and a prior Rollback) both close the underlying transaction.
func rollback(tx *sql.Tx) error {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}

	return nil
}

// migrateTables inserts rows for every table named in table_insertion_order
// that has rows to insert, accumulating the inserted-row count per table.
// Tables are processed strictly in order so that parent rows are always
// committed within the same transaction before their children are attempted.
func (e *Engine) migrateTables(ctx context.Context, tx *sql.Tx, rows mapping.RowSet) (map[string]int, error) {
	counts := make(map[string]int, len(e.contract.TableInsertionOrder))

	for _, table := range e.contract.TableInsertionOrder {
		tableRows := rows[table]
		if len(tableRows) == 0 {
			continue
		}

		spec, ok := e.contract.Table(table)
		if !ok {
			continue
		}

		qualifiedTable := e.contract.QualifiedTable(table)

		survivors, _, err := dedup.FilterDuplicates(ctx, tx, keySpecFor(qualifiedTable, spec), tableRows)
		if err != nil {
			return nil, err
		}

		if len(survivors) == 0 {
			continue
		}

		inserted, err := dest.Insert(ctx, tx, qualifiedTable, survivors, insertOptionsFor(spec.Category))
		if err != nil {
			return nil, err
		}

		counts[table] = inserted
	}

	return counts, nil
}

// insertOptionsFor decides bulk-insert behavior from a table's row
// cardinality category. Application-root and contact-scoped tables carry
// externally supplied primary keys (app_id, con_id) that map to destination
// identity columns, so IDENTITY_INSERT must be toggled on for them; they are
// also the tables a crashed prior run may have already partially committed,
// so a primary-key violation during their row-by-row fallback is tolerated
// rather than failing the batch.
func insertOptionsFor(category contract.TableCategory) dest.InsertOptions {
	switch category {
	case contract.ApplicationRoot, contract.ContactScoped:
		return dest.InsertOptions{EnableIdentityInsert: true, ToleratesDuplicates: true}
	default:
		return dest.InsertOptions{}
	}
}

// keySpecFor derives the duplicate-detection key for a table from its
// category, since the contract does not declare key columns explicitly.
// table must already be schema-qualified (contract.QualifiedTable) so the
// detector's existence query and the bulk insert that follows it always
// target the same object, even when target_schema differs from the
// connection's default schema. Application-root tables key on app_id;
// contact-scoped tables key on the contact identifier; contact-child tables
// key on the contact identifier plus whichever "*_enum" column distinguishes
// rows of the same contact (e.g. address_type_enum, employment_type_enum);
// auxiliary tables key on the (app_id, sort_order) pair stamped onto every
// auxiliary row.
func keySpecFor(table string, spec *contract.TableSpec) dedup.KeySpec {
	switch spec.Category {
	case contract.ApplicationRoot:
		return dedup.KeySpec{Table: table, Columns: []string{"app_id"}}
	case contract.ContactScoped:
		return dedup.KeySpec{Table: table, Columns: []string{"con_id"}}
	case contract.ContactChild:
		if typeColumn := typeEnumColumn(spec); typeColumn != "" {
			return dedup.KeySpec{Table: table, Columns: []string{"con_id", typeColumn}}
		}

		return dedup.KeySpec{Table: table, Columns: []string{"con_id"}}
	default:
		return dedup.KeySpec{Table: table, Columns: []string{"app_id", "sort_order"}}
	}
}

// typeEnumColumn returns the first declared column ending in "_enum", the
// contract's naming convention for the discriminator column on contact-child
// tables (address_type_enum, employment_type_enum).
func typeEnumColumn(spec *contract.TableSpec) string {
	const suffix = "_enum"

	for name := range spec.Columns {
		if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
			return name
		}
	}

	return ""
}
