// Package dom is the in-process host document: a golang.org/x/net/html tree
// guarded by a lock, with childList mutation subscriptions, bubbling events
// and embedded frame documents.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document wraps a parsed HTML tree.
// Access to nodes must go through View or Update, or through the locking
// accessors below.
type Document struct {
	mu     sync.RWMutex
	root   *html.Node
	origin string

	subMu sync.Mutex
	subs  map[*Subscription]struct{}

	lmu       sync.Mutex
	listeners map[*html.Node]map[string][]*listener
	nextID    uint64

	fmu    sync.Mutex
	frames map[*html.Node]*Document
	loader FrameLoader
}

// Parse reads an HTML document. origin identifies where the document was
// served from and is used to decide frame accessibility.
func Parse(r io.Reader, origin string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &Document{
		root:      root,
		origin:    origin,
		subs:      make(map[*Subscription]struct{}),
		listeners: make(map[*html.Node]map[string][]*listener),
		frames:    make(map[*html.Node]*Document),
	}, nil
}

// ParseString is Parse over a string.
func ParseString(s, origin string) (*Document, error) {
	return Parse(strings.NewReader(s), origin)
}

// Origin returns the origin the document was created with.
func (d *Document) Origin() string {
	return d.origin
}

// Root returns the document node. Reading through it requires View or Update.
func (d *Document) Root() *html.Node {
	return d.root
}

// View runs fn with the document read-locked.
func (d *Document) View(fn func(root *html.Node)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fn(d.root)
}

// Update runs fn with the document write-locked. Structural changes made
// inside fn are not reported to subscribers; use the mutation methods.
func (d *Document) Update(fn func(root *html.Node)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.root)
}

// Body returns the body element.
func (d *Document) Body() (*html.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	body := Find(d.root, func(n *html.Node) bool { return IsElement(n, atom.Body) })
	if body == nil {
		return nil, ErrNoBody
	}
	return body, nil
}

// ByID returns the element with the given id attribute, or nil.
func (d *Document) ByID(id string) *html.Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Find(d.root, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		v, ok := Attr(n, "id")
		return ok && v == id
	})
}

// Text returns the data of a text node.
func (d *Document) Text(n *html.Node) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return n.Data
}

// SetText replaces the data of a text node.
func (d *Document) SetText(n *html.Node, s string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n.Data = s
}

// Value returns the current value of a form field.
func (d *Document) Value(field *html.Node) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return FieldValue(field)
}

// SetValue replaces the value of a form field.
func (d *Document) SetValue(field *html.Node, v string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return SetFieldValue(field, v)
}

// AppendChild appends child to parent and notifies subscribers.
func (d *Document) AppendChild(parent, child *html.Node) {
	d.mu.Lock()
	parent.AppendChild(child)
	d.publishLocked(MutationRecord{Target: parent, Added: []*html.Node{child}})
	d.mu.Unlock()
}

// InsertBefore inserts child before ref under parent and notifies subscribers.
// A nil ref appends.
func (d *Document) InsertBefore(parent, child, ref *html.Node) {
	d.mu.Lock()
	parent.InsertBefore(child, ref)
	d.publishLocked(MutationRecord{Target: parent, Added: []*html.Node{child}})
	d.mu.Unlock()
}

// RemoveChild detaches child from parent and notifies subscribers.
func (d *Document) RemoveChild(parent, child *html.Node) {
	d.mu.Lock()
	parent.RemoveChild(child)
	d.publishLocked(MutationRecord{Target: parent, Removed: []*html.Node{child}})
	d.mu.Unlock()
}

// AppendHTML parses fragment in the context of parent, appends the resulting
// nodes and reports them to subscribers as a single record.
func (d *Document) AppendHTML(parent *html.Node, fragment string) ([]*html.Node, error) {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), parent)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fragment: %w", err)
	}
	if len(nodes) == 0 {
		return nil, nil
	}

	d.mu.Lock()
	for _, n := range nodes {
		parent.AppendChild(n)
	}
	d.publishLocked(MutationRecord{Target: parent, Added: nodes})
	d.mu.Unlock()

	return nodes, nil
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return html.Render(w, d.root)
}

// String renders the document, returning an empty string on failure.
func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}
