package xmlmodel

import (
	"github.com/antchfx/xmlquery"

	"github.com/correlator-io/xmlextract/internal/expr"
)

// FlattenContext builds an app-level expression context from the attributes
// of the root element and of any named single-instance child elements. Child
// attributes are namespaced as "childName.attribute" so that calculated-field
// expressions can reference e.g. "employment.status" alongside root-level
// "app_id".
func FlattenContext(root *xmlquery.Node, singleInstanceChildren []string) expr.Context {
	ctx := expr.Context{}

	element := RootElement(root)
	if element == nil {
		return ctx
	}

	flattenAttributes(element, "", ctx)

	for _, name := range singleInstanceChildren {
		child := xmlquery.FindOne(element, "//"+name)
		if child == nil {
			continue
		}

		flattenAttributes(child, name+".", ctx)
	}

	return ctx
}

func flattenAttributes(node *xmlquery.Node, prefix string, ctx expr.Context) {
	for _, attr := range node.Attr {
		name := attr.Name.Local
		if prefix != "" {
			name = prefix + name
		}

		ctx[name] = expr.String(attr.Value)
	}
}

// RootElement walks down to the first element node (xmlquery.Parse returns
// a document node as the root, not the element itself).
func RootElement(root *xmlquery.Node) *xmlquery.Node {
	if root == nil {
		return nil
	}

	if root.Type == xmlquery.ElementNode {
		return root
	}

	for child := root.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return child
		}
	}

	return nil
}
