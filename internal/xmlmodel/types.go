package xmlmodel

import (
	"fmt"

	"github.com/antchfx/xmlquery"
)

// ValidationResult is the outcome of running the Pre-Processing Validator
// against one application's raw XML.
type ValidationResult struct {
	CanProcess    bool
	AppID         int64
	ValidContacts []*xmlquery.Node
	Errors        []string
	Warnings      []string
}

func (r *ValidationResult) addError(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.CanProcess = false
}

func (r *ValidationResult) addWarning(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}
