package dom

import (
	"fmt"
	"maps"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// FrameLoader loads a same-origin frame document referenced by src.
type FrameLoader func(src string) (*Document, error)

// SetFrameLoader installs the loader used for same-origin src frames.
func (d *Document) SetFrameLoader(l FrameLoader) {
	d.fmu.Lock()
	defer d.fmu.Unlock()
	d.loader = l
}

// Frames returns every iframe element in document order.
func (d *Document) Frames() []*html.Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return FindAll(d.root, func(n *html.Node) bool { return IsElement(n, atom.Iframe) })
}

// FrameDocument returns the embedded document of an iframe. srcdoc frames
// are parsed in-process; src frames are loaded only when they share the
// parent's origin and a loader is installed. Anything else yields
// ErrInaccessibleSubtree. Results are cached per iframe element.
func (d *Document) FrameDocument(iframe *html.Node) (*Document, error) {
	d.fmu.Lock()
	if doc, ok := d.frames[iframe]; ok {
		d.fmu.Unlock()
		return doc, nil
	}
	loader := d.loader
	d.fmu.Unlock()

	d.mu.RLock()
	srcdoc, hasSrcdoc := Attr(iframe, "srcdoc")
	src, _ := Attr(iframe, "src")
	d.mu.RUnlock()

	var (
		doc *Document
		err error
	)
	switch {
	case hasSrcdoc:
		doc, err = ParseString(srcdoc, d.origin)
	case src == "" || src == "about:blank":
		doc, err = ParseString("", d.origin)
	case !d.sameOrigin(src):
		return nil, fmt.Errorf("%w: cross-origin frame %s", ErrInaccessibleSubtree, src)
	case loader == nil:
		return nil, fmt.Errorf("%w: no loader for frame %s", ErrInaccessibleSubtree, src)
	default:
		doc, err = loader(src)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInaccessibleSubtree, err)
	}

	d.fmu.Lock()
	defer d.fmu.Unlock()
	if cached, ok := d.frames[iframe]; ok {
		return cached, nil
	}
	d.frames[iframe] = doc
	return doc, nil
}

// SyncFrames writes every cached srcdoc frame document back into its
// iframe's srcdoc attribute, innermost frames first, so Render reflects
// changes made inside them.
func (d *Document) SyncFrames() {
	d.fmu.Lock()
	cached := maps.Clone(d.frames)
	d.fmu.Unlock()

	for iframe, fd := range cached {
		fd.SyncFrames()
		rendered := fd.String()

		d.mu.Lock()
		if _, ok := Attr(iframe, "srcdoc"); ok {
			SetAttr(iframe, "srcdoc", rendered)
		}
		d.mu.Unlock()
	}
}

func (d *Document) sameOrigin(src string) bool {
	u, err := url.Parse(src)
	if err != nil {
		return false
	}
	if !u.IsAbs() {
		return d.origin != ""
	}
	base, err := url.Parse(d.origin)
	if err != nil || base.Host == "" {
		return false
	}
	return strings.EqualFold(u.Scheme, base.Scheme) && strings.EqualFold(u.Host, base.Host)
}
