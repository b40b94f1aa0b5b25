package mapping

import (
	"errors"
	"fmt"
)

// ErrRequiredColumnEmpty is wrapped by MappingError when a required column
// without a default_value cannot be populated from the source XML.
var ErrRequiredColumnEmpty = errors.New("required column has no value and no default")

// MappingError reports that a required destination column could not be
// populated. It fails the whole application (spec.md §4.5 failure semantics).
type MappingError struct {
	AppID  int64
	Table  string
	Column string
	Reason string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("mapping error (app_id=%d, table=%s, column=%s): %s", e.AppID, e.Table, e.Column, e.Reason)
}

func (e *MappingError) Unwrap() error {
	return ErrRequiredColumnEmpty
}

func newMappingError(appID int64, table, column, reason string) *MappingError {
	return &MappingError{AppID: appID, Table: table, Column: column, Reason: reason}
}
