package guard

import (
	"testing"

	"golang.org/x/net/html"

	"livesub/internal/dom"
)

func TestClassify(t *testing.T) {
	doc, err := dom.ParseString(`<html><body>
		<p id="plain">foo</p>
		<input id="input" value="foo">
		<textarea id="area">foo</textarea>
		<div id="ce" contenteditable="true"><span id="nested">foo</span></div>
		<div id="ce-empty" contenteditable><b id="bold">foo</b></div>
		<div id="ce-outer" contenteditable="true"><p id="off" contenteditable="false">foo</p></div>
		<div id="ce-bad" contenteditable="true"><p id="bad" contenteditable="maybe">foo</p></div>
		<div id="pto" contenteditable="plaintext-only">foo</div>
	</body></html>`, "")
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}

	text := func(id string) *html.Node { return doc.ByID(id).FirstChild }

	tests := []struct {
		name string
		node *html.Node
		want Class
	}{
		{"plain paragraph text", text("plain"), Static},
		{"paragraph element", doc.ByID("plain"), Static},
		{"input element", doc.ByID("input"), Editable},
		{"textarea text", text("area"), Editable},
		{"nested in contenteditable", text("nested"), Editable},
		{"empty contenteditable attr", text("bold"), Editable},
		{"contenteditable false overrides", text("off"), Static},
		{"invalid value inherits", text("bad"), Editable},
		{"plaintext-only", text("pto"), Editable},
		{"nil node", nil, Static},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.node); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyIsNotCached(t *testing.T) {
	doc, err := dom.ParseString(`<html><body><div id="d">foo</div></body></html>`, "")
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	div := doc.ByID("d")

	if IsLiveEditable(div.FirstChild) {
		t.Fatal("expected static before attribute change")
	}
	dom.SetAttr(div, "contenteditable", "true")
	if !IsLiveEditable(div.FirstChild) {
		t.Error("expected editable after attribute change")
	}
}
