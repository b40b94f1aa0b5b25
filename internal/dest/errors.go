package dest

import "fmt"

// Constraint violation categories, matched against SQL Server error numbers
// in categorizeConstraintError.
const (
	CategoryPrimaryKeyViolation  = "primary_key_violation"
	CategoryForeignKeyViolation  = "foreign_key_violation"
	CategoryNotNullViolation     = "not_null_violation"
	CategoryCheckConstraint      = "check_constraint_violation"
)

// DatabaseConstraintError reports a PK/FK/NOT NULL/CHECK violation on
// insert. The caller (Migration Engine) chooses the retry policy.
type DatabaseConstraintError struct {
	Category string
	Table    string
	Err      error
}

func (e *DatabaseConstraintError) Error() string {
	return fmt.Sprintf("database constraint violation (%s) on table %s: %v", e.Category, e.Table, e.Err)
}

func (e *DatabaseConstraintError) Unwrap() error {
	return e.Err
}

// BulkInsertError reports a driver-level batch failure not attributable to
// a specific row, or a complete-batch failure after exhausting both the
// fast and fallback insert paths.
type BulkInsertError struct {
	Table string
	Err   error
}

func (e *BulkInsertError) Error() string {
	return fmt.Sprintf("bulk insert failed on table %s: %v", e.Table, e.Err)
}

func (e *BulkInsertError) Unwrap() error {
	return e.Err
}

// ConnectionError reports a transient driver/network failure. Per
// spec.md §9's error taxonomy, the outer retry policy (not part of the
// core) decides whether to retry.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// TransactionAtomicityError reports that a rollback itself failed after a
// commit or another rollback attempt — a double fault that may require
// operator intervention.
type TransactionAtomicityError struct {
	AppID      int64
	CommitErr  error
	RollbackErr error
}

func (e *TransactionAtomicityError) Error() string {
	return fmt.Sprintf(
		"transaction atomicity failure (app_id=%d): commit_err=%v rollback_err=%v",
		e.AppID, e.CommitErr, e.RollbackErr,
	)
}
