package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// The helpers in this file do not lock. Callers inside View or Update already
// hold the document lock.

// Attr returns the value of the named attribute.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets or replaces the named attribute.
func SetAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && strings.EqualFold(n.Attr[i].Key, key) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// IsElement reports whether n is an element with one of the given tags.
// With no tags it reports whether n is an element at all.
func IsElement(n *html.Node, tags ...atom.Atom) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if len(tags) == 0 {
		return true
	}
	for _, t := range tags {
		if n.DataAtom == t {
			return true
		}
	}
	return false
}

// IsField reports whether n holds a user-editable value.
func IsField(n *html.Node) bool {
	return IsElement(n, atom.Input, atom.Textarea)
}

// FieldValue reads the current value of an input or textarea.
func FieldValue(n *html.Node) (string, error) {
	switch {
	case IsElement(n, atom.Input):
		v, _ := Attr(n, "value")
		return v, nil
	case IsElement(n, atom.Textarea):
		var b strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
		return b.String(), nil
	}
	return "", ErrNotField
}

// SetFieldValue replaces the value of an input or textarea.
func SetFieldValue(n *html.Node, v string) error {
	switch {
	case IsElement(n, atom.Input):
		SetAttr(n, "value", v)
		return nil
	case IsElement(n, atom.Textarea):
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			n.RemoveChild(c)
			c = next
		}
		n.AppendChild(&html.Node{Type: html.TextNode, Data: v})
		return nil
	}
	return ErrNotField
}

// Contains reports whether n is root or a descendant of root.
func Contains(root, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}

// Find returns the first node in pre-order under root for which match is true.
func Find(root *html.Node, match func(*html.Node) bool) *html.Node {
	if root == nil {
		return nil
	}
	stack := []*html.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if match(n) {
			return n
		}
		for c := n.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, c)
		}
	}
	return nil
}

// FindAll returns every node in pre-order under root for which match is true.
func FindAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	if root == nil {
		return nil
	}
	var out []*html.Node
	stack := []*html.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if match(n) {
			out = append(out, n)
		}
		for c := n.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, c)
		}
	}
	return out
}
