package mapping

import (
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/correlator-io/xmlextract/internal/contract"
)

// Contact is one surviving contact element after filtering, deduplication,
// and the meaningful-contact check.
type Contact struct {
	Node      *xmlquery.Node
	ConID     string
	Type      string
	IsPrimary bool
}

// materializeContacts splits the already-deduplicated filtered contact
// elements into primary and secondary contacts, suppressing any contact
// whose only populated fields are identity (con_id, type). Suppressions are
// returned as warnings per spec.md §4.5 step 2.
func materializeContacts(contacts []*xmlquery.Node, rule contract.FilterRule, meaningfulFields []string) (primary, secondary []Contact, warnings []string) {
	primaryType := ""
	if len(rule.PriorityOrder) > 0 {
		primaryType = rule.PriorityOrder[0]
	}

	for _, node := range contacts {
		conID := node.SelectAttr(rule.IdentityAttribute)
		typ := node.SelectAttr(rule.TypeAttribute)

		if !isMeaningfulContact(node, meaningfulFields) {
			warnings = append(warnings, "suppressed non-meaningful contact con_id="+conID+" type="+typ)

			continue
		}

		c := Contact{Node: node, ConID: conID, Type: typ, IsPrimary: strings.EqualFold(typ, primaryType)}

		if c.IsPrimary {
			primary = append(primary, c)
		} else {
			secondary = append(secondary, c)
		}
	}

	return primary, secondary, warnings
}

func isMeaningfulContact(node *xmlquery.Node, fields []string) bool {
	for _, f := range fields {
		if node.SelectAttr(f) != "" {
			return true
		}
	}

	return false
}

// allContacts returns primary and secondary contacts in a single ordered
// slice for contact-scoped row production.
func allContacts(primary, secondary []Contact) []Contact {
	out := make([]Contact, 0, len(primary)+len(secondary))
	out = append(out, primary...)
	out = append(out, secondary...)

	return out
}

// childrenFor returns the subset of a contact-child element set (addresses,
// employment records) whose identity-linking attribute names a surviving
// contact, inheriting that contact's id.
func childrenFor(children []*xmlquery.Node, linkAttribute string, contacts []Contact) map[string][]*xmlquery.Node {
	surviving := make(map[string]bool, len(contacts))
	for _, c := range contacts {
		surviving[c.ConID] = true
	}

	out := make(map[string][]*xmlquery.Node)

	for _, node := range children {
		conID := node.SelectAttr(linkAttribute)
		if !surviving[conID] {
			continue
		}

		out[conID] = append(out[conID], node)
	}

	return out
}
