// Package xmlmodel parses the raw XML blobs read from the staging table,
// flattens them into an expression-evaluator context, and implements the
// Element Filter and Pre-Processing Validator.
package xmlmodel

import (
	"bytes"
	"fmt"

	"github.com/antchfx/xmlquery"
)

// Parse parses raw XML bytes into a navigable node tree. Returns an error
// (wrapped by the caller into a ValidationError) if the document is not
// well-formed.
func Parse(data []byte) (*xmlquery.Node, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing xml: %w", err)
	}

	return doc, nil
}
