// Package guard classifies nodes as static or live-editable.
package guard

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"livesub/internal/dom"
)

// Class is the editability of a node at the moment it was classified.
type Class int

const (
	Static Class = iota
	Editable
)

func (c Class) String() string {
	if c == Editable {
		return "editable"
	}
	return "static"
}

// Classify inspects the nearest element of n: n itself when it is an element,
// otherwise its parent. Inputs and textareas are editable, and so is anything
// inside an element whose contenteditable resolves to true. The result is
// never cached; callers classify again right before writing.
// The caller must hold the document lock.
func Classify(n *html.Node) Class {
	el := n
	if el != nil && el.Type != html.ElementNode {
		el = el.Parent
	}
	if el == nil || el.Type != html.ElementNode {
		return Static
	}
	if dom.IsElement(el, atom.Input, atom.Textarea) {
		return Editable
	}

	for p := el; p != nil && p.Type == html.ElementNode; p = p.Parent {
		v, ok := dom.Attr(p, "contenteditable")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "", "true", "plaintext-only":
			return Editable
		case "false":
			return Static
		}
		// Invalid values inherit from the parent.
	}
	return Static
}

// IsLiveEditable reports whether n is currently editable by the user.
func IsLiveEditable(n *html.Node) bool {
	return Classify(n) == Editable
}
