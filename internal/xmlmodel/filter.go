package xmlmodel

import (
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/correlator-io/xmlextract/internal/contract"
)

// FilterElements selects and deduplicates the nodes matching one filter rule.
// It never raises on an empty result: a rule that matches nothing, or whose
// survivors are all rejected, simply yields an empty slice.
func FilterElements(root *xmlquery.Node, rule contract.FilterRule, c *contract.Contract) []*xmlquery.Node {
	candidates := xmlquery.Find(root, rule.XPath)

	survivors := make([]*xmlquery.Node, 0, len(candidates))

	for _, node := range candidates {
		if satisfiesRequiredAttributes(node, rule, c) {
			survivors = append(survivors, node)
		}
	}

	if rule.IdentityAttribute == "" {
		return survivors
	}

	return dedupeByIdentity(survivors, rule)
}

func satisfiesRequiredAttributes(node *xmlquery.Node, rule contract.FilterRule, c *contract.Contract) bool {
	for _, req := range rule.RequiredAttributes {
		val := node.SelectAttr(req.Name)

		if val == "" {
			return false
		}

		allowed := allowedValues(req, c)
		if len(allowed) == 0 {
			continue // presence-nonempty is the whole requirement
		}

		if !containsFold(allowed, val) {
			return false
		}
	}

	return true
}

func allowedValues(req contract.AttributeRequirement, c *contract.Contract) []string {
	if len(req.Values) > 0 {
		return req.Values
	}

	if req.EnumName == "" || c == nil {
		return nil
	}

	enum, ok := c.Enum(req.EnumName)
	if !ok {
		return nil
	}

	keys := make([]string, 0, len(enum.Values))
	for k := range enum.Values {
		keys = append(keys, k)
	}

	return keys
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}

	return false
}

// dedupeByIdentity keeps, for each distinct identity-attribute value, the
// surviving node whose type attribute ranks lowest in priority_order;
// ties (including an empty or unranked priority_order) are broken by
// textual last occurrence, i.e. document order.
func dedupeByIdentity(nodes []*xmlquery.Node, rule contract.FilterRule) []*xmlquery.Node {
	rank := make(map[string]int, len(rule.PriorityOrder))
	for i, v := range rule.PriorityOrder {
		rank[strings.ToUpper(v)] = i
	}

	type slot struct {
		node *xmlquery.Node
		rank int
	}

	best := make(map[string]slot)
	order := make([]string, 0, len(nodes))

	for _, node := range nodes {
		id := node.SelectAttr(rule.IdentityAttribute)
		if id == "" {
			continue
		}

		r := priorityRank(rank, node.SelectAttr(rule.TypeAttribute))

		cur, seen := best[id]
		if !seen {
			order = append(order, id)
			best[id] = slot{node: node, rank: r}

			continue
		}

		// Last occurrence wins ties (r <= cur.rank, not just r < cur.rank).
		if r <= cur.rank {
			best[id] = slot{node: node, rank: r}
		}
	}

	result := make([]*xmlquery.Node, 0, len(order))
	for _, id := range order {
		result = append(result, best[id].node)
	}

	return result
}

func priorityRank(rank map[string]int, typeAttr string) int {
	if r, ok := rank[strings.ToUpper(typeAttr)]; ok {
		return r
	}

	return len(rank) // unranked types sort after every ranked type
}
