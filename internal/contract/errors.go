package contract

import (
	"errors"
	"fmt"
)

// ErrDanglingReference is wrapped by ContractError when a mapping, filter
// rule, or insertion-order entry points at something the contract never
// defines.
var ErrDanglingReference = errors.New("contract: dangling reference")

// ErrInvalidCategory is wrapped by ContractError when a table declares a
// category outside the four recognized values.
var ErrInvalidCategory = errors.New("contract: invalid table category")

// ContractError reports that the contract document itself is invalid or
// internally inconsistent. Fatal to the run.
type ContractError struct {
	Err error
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("contract error: %v", e.Err)
}

func (e *ContractError) Unwrap() error {
	return e.Err
}

func newContractError(format string, args ...interface{}) *ContractError {
	return &ContractError{Err: fmt.Errorf(format, args...)}
}
