package dest

import (
	"errors"
	"strings"

	mssql "github.com/denisenkom/go-mssqldb"
)

// SQL Server error numbers relevant to constraint-violation categorization.
// See sys.messages; these are stable across server versions.
const (
	errNumPrimaryOrUniqueKey = 2627
	errNumDuplicateKeyIndex  = 2601
	errNumNotNullViolation   = 515
	errNumConstraintConflict = 547 // FK or CHECK; disambiguated by message text
)

// categorizeError turns a raw driver error into the component's typed error
// taxonomy: a known constraint violation becomes a *DatabaseConstraintError,
// anything else becomes a *BulkInsertError.
func categorizeError(table string, err error) error {
	if err == nil {
		return nil
	}

	var sqlErr mssql.Error
	if !errors.As(err, &sqlErr) {
		return &BulkInsertError{Table: table, Err: err}
	}

	category, ok := categorizeConstraintError(sqlErr)
	if !ok {
		return &BulkInsertError{Table: table, Err: err}
	}

	return &DatabaseConstraintError{Category: category, Table: table, Err: err}
}

func categorizeConstraintError(sqlErr mssql.Error) (string, bool) {
	switch sqlErr.Number {
	case errNumPrimaryOrUniqueKey, errNumDuplicateKeyIndex:
		return CategoryPrimaryKeyViolation, true
	case errNumNotNullViolation:
		return CategoryNotNullViolation, true
	case errNumConstraintConflict:
		if strings.Contains(strings.ToUpper(sqlErr.Message), "CHECK") {
			return CategoryCheckConstraint, true
		}

		return CategoryForeignKeyViolation, true
	default:
		return "", false
	}
}

// isPrimaryKeyViolation reports whether err categorizes as a PK violation,
// used by the per-row fallback's duplicate-tolerance gate.
func isPrimaryKeyViolation(err error) bool {
	var constraintErr *DatabaseConstraintError

	return errors.As(err, &constraintErr) && constraintErr.Category == CategoryPrimaryKeyViolation
}
