package scan

import (
	"reflect"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"livesub/internal/dom"
)

func TestCollectTextUnitsOrder(t *testing.T) {
	doc, err := dom.ParseString(`<html><body><div>a<span>b<em>c</em></span>d</div><input value="e"><p>f</p></body></html>`, "")
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	body, _ := doc.Body()

	var got []string
	for _, u := range CollectTextUnits(body) {
		got = append(got, u.Read())
	}
	want := []string{"a", "b", "c", "d", "e", "f"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CollectTextUnits() = %v, want %v", got, want)
	}
}

func TestCollectTextUnitsKinds(t *testing.T) {
	doc, err := dom.ParseString(`<html><body><input id="i" value="x"><textarea>y</textarea></body></html>`, "")
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	body, _ := doc.Body()
	units := CollectTextUnits(body)
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(units))
	}
	if units[0].Kind != KindField || units[1].Kind != KindText {
		t.Errorf("unexpected kinds: %v, %v", units[0].Kind, units[1].Kind)
	}

	units[0].Write("z")
	if v, _ := dom.FieldValue(doc.ByID("i")); v != "z" {
		t.Errorf("field write = %q, want z", v)
	}
}

func TestCollectTextUnitsTextRoot(t *testing.T) {
	n := &html.Node{Type: html.TextNode, Data: "foo"}
	units := CollectTextUnits(n)
	if len(units) != 1 || units[0].Node != n {
		t.Errorf("expected the root text node itself, got %+v", units)
	}
	if CollectTextUnits(nil) != nil {
		t.Error("expected nil for nil root")
	}
}

func TestCollectTextUnitsDeepTree(t *testing.T) {
	const depth = 100000
	root := &html.Node{Type: html.ElementNode, Data: "div"}
	cur := root
	for i := 0; i < depth; i++ {
		child := &html.Node{Type: html.ElementNode, Data: "div"}
		cur.AppendChild(child)
		cur = child
	}
	cur.AppendChild(&html.Node{Type: html.TextNode, Data: strings.Repeat("x", 3)})

	units := CollectTextUnits(root)
	if len(units) != 1 || units[0].Read() != "xxx" {
		t.Errorf("deep tree scan returned %d units", len(units))
	}
}
