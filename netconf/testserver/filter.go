package testserver

import (
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	"github.com/beevik/etree"

	"github.com/damianoneill/ncclient/netconf/common"
)

func applyFilter(store *etree.Element, filter *common.Filter) (string, *common.RPCError) {
	switch {
	case filter == nil:
		return serialize(store.ChildElements()), nil
	case filter.Type == common.XPathFilter:
		return xpathSelect(store, filter.Select)
	default:
		return subtreeSelect(store, filter.Body)
	}
}

func subtreeSelect(store *etree.Element, body string) (string, *common.RPCError) {
	criteria, err := parseFragment(body)
	if err != nil {
		return "", rpcError(common.ErrorTypeProtocol, common.ErrorTagInvalidValue, err.Error())
	}
	if len(criteria.ChildElements()) == 0 {
		// An empty filter selects nothing.
		return "", nil
	}

	var selected []*etree.Element
	for _, f := range criteria.ChildElements() {
		for _, s := range store.ChildElements() {
			if match := selectSubtree(s, f); match != nil {
				selected = append(selected, match)
			}
		}
	}
	return serialize(selected), nil
}

// selectSubtree delivers the part of s selected by the filter node f, or nil if nothing is selected.
func selectSubtree(s, f *etree.Element) *etree.Element {
	if s.Tag != f.Tag {
		return nil
	}
	criteria := f.ChildElements()
	if len(criteria) == 0 {
		want := strings.TrimSpace(f.Text())
		if want == "" || want == strings.TrimSpace(s.Text()) {
			return s.Copy()
		}
		return nil
	}

	// Every content match node must be satisfied by a sibling with the same value.
	onlyContentMatches := true
	for _, c := range criteria {
		if !isContentMatch(c) {
			onlyContentMatches = false
			continue
		}
		if !hasChildWithText(s, c.Tag, strings.TrimSpace(c.Text())) {
			return nil
		}
	}
	if onlyContentMatches {
		return s.Copy()
	}

	result := shallowCopy(s)
	for _, c := range criteria {
		for _, sc := range s.ChildElements() {
			if match := selectSubtree(sc, c); match != nil {
				result.AddChild(match)
			}
		}
	}
	if len(result.ChildElements()) == 0 {
		return nil
	}
	return result
}

func isContentMatch(e *etree.Element) bool {
	return len(e.ChildElements()) == 0 && strings.TrimSpace(e.Text()) != ""
}

func hasChildWithText(e *etree.Element, tag, text string) bool {
	for _, c := range e.ChildElements() {
		if c.Tag == tag && strings.TrimSpace(c.Text()) == text {
			return true
		}
	}
	return false
}

func shallowCopy(e *etree.Element) *etree.Element {
	c := etree.NewElement(e.Tag)
	c.Space = e.Space
	for _, a := range e.Attr {
		c.CreateAttr(a.FullKey(), a.Value)
	}
	return c
}

// xpathSelect evaluates expr against the datastore content and delivers the selected nodes,
// each wrapped in its ancestors.
func xpathSelect(store *etree.Element, expr string) (string, *common.RPCError) {
	selector, err := xpath.Compile(expr)
	if err != nil {
		return "", rpcError(common.ErrorTypeProtocol, common.ErrorTagInvalidValue, "invalid xpath select: "+err.Error())
	}
	content := serialize(store.ChildElements())
	if content == "" {
		return "", nil
	}
	doc, err := xmlquery.Parse(strings.NewReader(content))
	if err != nil {
		return "", rpcError(common.ErrorTypeApplication, common.ErrorTagOperationFailed, err.Error())
	}

	built := map[*xmlquery.Node]*etree.Element{}
	selected := map[*xmlquery.Node]bool{}
	var roots []*etree.Element
	for _, n := range xmlquery.QuerySelectorAll(doc, selector) {
		if n.Type != xmlquery.ElementNode {
			n = n.Parent
		}
		if n == nil || n.Type != xmlquery.ElementNode || coveredBy(n, selected) {
			continue
		}
		fragment, perr := parseFragment(n.OutputXML(true))
		if perr != nil || len(fragment.ChildElements()) == 0 {
			continue
		}
		built[n] = fragment.ChildElements()[0]
		selected[n] = true

		// Attach the selection to copies of its ancestors, reusing those already built.
		for child, parent := n, n.Parent; ; child, parent = parent, parent.Parent {
			if parent == nil || parent.Type != xmlquery.ElementNode {
				roots = append(roots, built[child])
				break
			}
			if pe, ok := built[parent]; ok {
				pe.AddChild(built[child])
				break
			}
			pe := ancestorElement(parent)
			pe.AddChild(built[child])
			built[parent] = pe
		}
	}
	return serialize(roots), nil
}

// coveredBy reports whether n or one of its ancestors was already selected.
func coveredBy(n *xmlquery.Node, selected map[*xmlquery.Node]bool) bool {
	for p := n; p != nil; p = p.Parent {
		if selected[p] {
			return true
		}
	}
	return false
}

func ancestorElement(n *xmlquery.Node) *etree.Element {
	tag := n.Data
	if n.Prefix != "" {
		tag = n.Prefix + ":" + n.Data
	}
	e := etree.NewElement(tag)
	for _, a := range n.Attr {
		key := a.Name.Local
		if a.Name.Space != "" {
			key = a.Name.Space + ":" + a.Name.Local
		}
		e.CreateAttr(key, a.Value)
	}
	return e
}
