package xmlmodel

import (
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/correlator-io/xmlextract/internal/contract"
)

const (
	minAppID int64 = 1
	maxAppID int64 = 999_999_999
)

// Validate runs the Pre-Processing Validator against raw XML bytes: the
// document must be well-formed, carry an in-range app_id, and resolve to at
// least one valid primary contact after element filtering.
func Validate(data []byte, c *contract.Contract) *ValidationResult {
	result := &ValidationResult{CanProcess: true}

	doc, err := Parse(data)
	if err != nil {
		result.addError("xml is not well-formed: %v", err)

		return result
	}

	appID, ok := extractAppID(doc, c.KeyIdentifiers.AppID)
	if !ok {
		result.addError("app_id not extractable at %s@%s", c.KeyIdentifiers.AppID.XPath, c.KeyIdentifiers.AppID.Attribute)

		return result
	}

	result.AppID = appID

	if appID < minAppID || appID > maxAppID {
		result.addError("app_id %d out of range [%d, %d]", appID, minAppID, maxAppID)

		return result
	}

	contactRule, ok := c.FilterRuleFor("contact")
	if !ok {
		result.addError("contract has no filter rule for element %q", "contact")

		return result
	}

	contacts := FilterElements(doc, contactRule, c)
	primary := primaryContacts(contacts, contactRule)

	if len(primary) == 0 {
		result.addError("no valid primary contact found")

		return result
	}

	result.ValidContacts = primary

	return result
}

func extractAppID(doc *xmlquery.Node, id contract.KeyIdentifier) (int64, bool) {
	node := xmlquery.FindOne(doc, id.XPath)
	if node == nil {
		return 0, false
	}

	raw := node.SelectAttr(id.Attribute)
	if raw == "" {
		return 0, false
	}

	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}

	return val, true
}

// primaryContacts returns the subset of filtered contacts whose type
// attribute matches the first entry of the rule's priority_order — the
// contract's declared primary contact type.
func primaryContacts(contacts []*xmlquery.Node, rule contract.FilterRule) []*xmlquery.Node {
	if len(rule.PriorityOrder) == 0 {
		return contacts
	}

	primaryType := rule.PriorityOrder[0]

	var out []*xmlquery.Node

	for _, node := range contacts {
		if strings.EqualFold(node.SelectAttr(rule.TypeAttribute), primaryType) {
			out = append(out, node)
		}
	}

	return out
}
