package testserver

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/damianoneill/ncclient/netconf/common"
)

// Edit operations carried in the operation attribute of a configuration element.
const (
	editMerge   = "merge"
	editReplace = "replace"
	editCreate  = "create"
	editDelete  = "delete"
	editRemove  = "remove"
	editNone    = "none"
)

// mergeElements applies the children of edit to target.
// A default operation of replace substitutes the entire content of target.
func mergeElements(target, edit *etree.Element, defaultOp string) *common.RPCError {
	if defaultOp == editReplace {
		for _, c := range target.ChildElements() {
			target.RemoveChild(c)
		}
		defaultOp = editMerge
	}
	return applyEdit(target, edit, defaultOp)
}

func applyEdit(target, edit *etree.Element, inherited string) *common.RPCError {
	for _, c := range edit.ChildElements() {
		op := c.SelectAttrValue("operation", inherited)
		existing := findMatch(target, c)

		switch op {
		case editMerge:
			if existing == nil {
				target.AddChild(stripped(c))
				continue
			}
			if len(c.ChildElements()) == 0 {
				existing.SetText(c.Text())
				continue
			}
			if err := applyEdit(existing, c, editMerge); err != nil {
				return err
			}
		case editReplace:
			if existing == nil {
				target.AddChild(stripped(c))
				continue
			}
			target.InsertChildAt(existing.Index(), stripped(c))
			target.RemoveChild(existing)
		case editCreate:
			if existing != nil {
				return rpcError(common.ErrorTypeApplication, common.ErrorTagDataExists, c.Tag+" already exists")
			}
			target.AddChild(stripped(c))
		case editDelete:
			if existing == nil {
				return rpcError(common.ErrorTypeApplication, common.ErrorTagDataMissing, c.Tag+" does not exist")
			}
			target.RemoveChild(existing)
		case editRemove:
			if existing != nil {
				target.RemoveChild(existing)
			}
		case editNone:
			if len(c.ChildElements()) == 0 {
				continue
			}
			if existing != nil {
				if err := applyEdit(existing, c, editNone); err != nil {
					return err
				}
				continue
			}
			// Containers named only to reach a nested operation are created when it adds content.
			created := shallowCopy(c)
			stripOperation(created)
			if err := applyEdit(created, c, editNone); err != nil {
				return err
			}
			if len(created.ChildElements()) > 0 {
				target.AddChild(created)
			}
		default:
			return rpcError(common.ErrorTypeProtocol, common.ErrorTagBadAttribute, "unknown operation "+op)
		}
	}
	return nil
}

// findMatch locates the child of target that corresponds to the edit element e.
// Entries of a list are told apart by the value of a key leaf such as name.
func findMatch(target, e *etree.Element) *etree.Element {
	var candidates []*etree.Element
	for _, c := range target.ChildElements() {
		if c.Tag == e.Tag {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	key := keyLeaf(e)
	if key == nil {
		return candidates[0]
	}
	want := strings.TrimSpace(key.Text())
	for _, c := range candidates {
		if k := keyLeaf(c); k != nil && k.Tag == key.Tag && strings.TrimSpace(k.Text()) == want {
			return c
		}
	}
	return nil
}

var keyLeafNames = map[string]bool{"name": true, "id": true, "key": true, "index": true}

func keyLeaf(e *etree.Element) *etree.Element {
	for _, c := range e.ChildElements() {
		if len(c.ChildElements()) == 0 && keyLeafNames[c.Tag] {
			return c
		}
	}
	return nil
}

func stripped(e *etree.Element) *etree.Element {
	c := e.Copy()
	stripOperation(c)
	return c
}

func stripOperation(e *etree.Element) {
	attrs := e.Attr[:0]
	for _, a := range e.Attr {
		if a.Key != "operation" {
			attrs = append(attrs, a)
		}
	}
	e.Attr = attrs
	for _, c := range e.ChildElements() {
		stripOperation(c)
	}
}
