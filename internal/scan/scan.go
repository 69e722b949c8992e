// Package scan enumerates the text-bearing leaves of a subtree.
package scan

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"livesub/internal/dom"
)

// Kind distinguishes where a unit keeps its text.
type Kind int

const (
	// KindText is a text node; its text is Node.Data.
	KindText Kind = iota
	// KindField is an input element; its text is the value attribute.
	KindField
)

// TextUnit is a live handle to one rewritable text location.
type TextUnit struct {
	Node *html.Node
	Kind Kind
}

// Read returns the unit's current text. The caller must hold the document lock.
func (u TextUnit) Read() string {
	if u.Kind == KindField {
		v, _ := dom.FieldValue(u.Node)
		return v
	}
	return u.Node.Data
}

// Write replaces the unit's text. The caller must hold the document write lock.
func (u TextUnit) Write(s string) {
	if u.Kind == KindField {
		_ = dom.SetFieldValue(u.Node, s)
		return
	}
	u.Node.Data = s
}

// CollectTextUnits walks root depth-first in pre-order and returns every text
// node and input field beneath it, including root itself. Nothing is
// filtered by editability; consumers apply the guard before writing.
// The walk uses an explicit stack so deep trees cannot exhaust the call stack.
// The caller must hold the document lock.
func CollectTextUnits(root *html.Node) []TextUnit {
	if root == nil {
		return nil
	}

	var units []TextUnit
	stack := []*html.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch {
		case n.Type == html.TextNode:
			units = append(units, TextUnit{Node: n, Kind: KindText})
			continue
		case dom.IsElement(n, atom.Input):
			units = append(units, TextUnit{Node: n, Kind: KindField})
			continue
		}

		for c := n.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, c)
		}
	}
	return units
}
