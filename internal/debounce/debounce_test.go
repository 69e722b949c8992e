package debounce

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"golang.org/x/net/html"

	"livesub/internal/dom"
	"livesub/internal/models"
)

type staticMapping struct {
	km  models.KeywordMap
	err error
}

func (m staticMapping) Get(ctx context.Context) (models.KeywordMap, error) {
	return m.km, m.err
}

// manualTimers is an AfterFunc whose timers fire only when Advance is called.
type manualTimers struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	owner   *manualTimers
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (m *manualTimers) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{owner: m, at: m.now + d, f: f}
	m.timers = append(m.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

func (m *manualTimers) Advance(d time.Duration) {
	m.mu.Lock()
	m.now += d
	var due []*manualTimer
	for _, t := range m.timers {
		if !t.stopped && !t.fired && t.at <= m.now {
			t.fired = true
			due = append(due, t)
		}
	}
	m.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

func (m *manualTimers) Armed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type firedLog struct {
	mu      sync.Mutex
	results []Result
}

func (f *firedLog) add(r Result) {
	f.mu.Lock()
	f.results = append(f.results, r)
	f.mu.Unlock()
}

func (f *firedLog) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.results)
}

const page = `<html><body>
	<input id="field" value="foo">
	<textarea id="area">Foo</textarea>
	<div id="ce" contenteditable="true"><b>foo</b> and <i>foo</i></div>
	<p id="static">foo</p>
</body></html>`

func setup(t *testing.T, mapping staticMapping) (*dom.Document, *Debouncer, *manualTimers, *firedLog) {
	t.Helper()
	doc, err := dom.ParseString(page, "")
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	timers := &manualTimers{}
	fired := &firedLog{}
	d := New(doc, mapping,
		WithQuietPeriod(time.Second),
		WithAfterFunc(timers.AfterFunc),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		OnFire(fired.add),
	)
	t.Cleanup(d.Stop)
	return doc, d, timers, fired
}

var fooBar = staticMapping{km: models.KeywordMap{"foo": "bar"}}

func TestFiresAfterQuietPeriod(t *testing.T) {
	doc, d, timers, fired := setup(t, fooBar)
	field := doc.ByID("field")

	d.OnInput(field)
	if d.State(field) != Pending {
		t.Fatalf("State() = %v, want pending", d.State(field))
	}

	timers.Advance(999 * time.Millisecond)
	if fired.len() != 0 {
		t.Fatal("fired before the quiet period elapsed")
	}

	timers.Advance(time.Millisecond)
	if fired.len() != 1 {
		t.Fatalf("fired %d times, want 1", fired.len())
	}
	if d.State(field) != Idle {
		t.Errorf("State() after firing = %v, want idle", d.State(field))
	}
	if v, _ := doc.Value(field); v != "bar" {
		t.Errorf("value = %q, want bar", v)
	}
}

func TestResetOnEachEdit(t *testing.T) {
	doc, d, timers, fired := setup(t, fooBar)
	field := doc.ByID("field")

	for i := 0; i < 5; i++ {
		d.OnInput(field)
		if n := timers.Armed(); n != 1 {
			t.Fatalf("armed timers = %d after edit %d, want 1", n, i)
		}
		timers.Advance(500 * time.Millisecond)
	}
	if fired.len() != 0 {
		t.Fatal("timer fired while edits kept arriving")
	}

	timers.Advance(500 * time.Millisecond)
	if fired.len() != 1 {
		t.Errorf("fired %d times, want exactly 1", fired.len())
	}
}

func TestCancelHasNoSideEffects(t *testing.T) {
	doc, d, timers, fired := setup(t, fooBar)
	field := doc.ByID("field")

	d.OnInput(field)
	if !d.Cancel(field) {
		t.Fatal("Cancel() = false, want true")
	}
	timers.Advance(10 * time.Second)

	if fired.len() != 0 {
		t.Errorf("cancelled timer fired %d times", fired.len())
	}
	if v, _ := doc.Value(field); v != "foo" {
		t.Errorf("value = %q, want foo untouched", v)
	}
	if d.Cancel(field) {
		t.Error("second Cancel() = true, want false")
	}
}

func TestStaleCallbackIgnored(t *testing.T) {
	doc, d, _, fired := setup(t, fooBar)
	field := doc.ByID("field")

	d.OnInput(field)
	d.mu.Lock()
	staleSeq := d.pending[field].seq
	d.mu.Unlock()
	d.OnInput(field)

	// A callback that raced past Stop must not act.
	d.fire(field, staleSeq)
	if fired.len() != 0 {
		t.Errorf("stale callback produced %d results", fired.len())
	}
	if d.State(field) != Pending {
		t.Error("stale callback must leave the newer timer armed")
	}
}

func TestIndependentFields(t *testing.T) {
	doc, d, timers, fired := setup(t, fooBar)
	field, area := doc.ByID("field"), doc.ByID("area")

	d.OnInput(field)
	timers.Advance(600 * time.Millisecond)
	d.OnInput(area)
	if d.PendingCount() != 2 {
		t.Fatalf("PendingCount() = %d, want 2", d.PendingCount())
	}

	timers.Advance(400 * time.Millisecond)
	if fired.len() != 1 {
		t.Fatalf("fired %d, want 1 (only the first field)", fired.len())
	}
	timers.Advance(600 * time.Millisecond)
	if fired.len() != 2 {
		t.Fatalf("fired %d, want 2", fired.len())
	}
	if v, _ := doc.Value(area); v != "bar" {
		t.Errorf("textarea value = %q, want bar", v)
	}
}

func TestNoWriteWhenUnchanged(t *testing.T) {
	doc, d, timers, fired := setup(t, fooBar)
	field := doc.ByID("field")
	doc.SetValue(field, "foo is typed here")

	d.OnInput(field)
	timers.Advance(time.Second)

	if fired.len() != 1 {
		t.Fatalf("fired %d, want 1", fired.len())
	}
	if fired.results[0].Changed {
		t.Error("Changed = true for a value that does not match exactly")
	}
}

func TestContentEditableHost(t *testing.T) {
	doc, d, timers, _ := setup(t, fooBar)
	ce := doc.ByID("ce")

	d.OnInput(ce)
	timers.Advance(time.Second)

	want := `<b>bar</b> and <i>bar</i>`
	var got string
	doc.View(func(*html.Node) { got = innerHTML(t, ce) })
	if got != want {
		t.Errorf("contenteditable = %q, want %q", got, want)
	}
}

func TestSkipsWhenNoLongerEditable(t *testing.T) {
	doc, d, timers, fired := setup(t, fooBar)
	ce := doc.ByID("ce")

	d.OnInput(ce)
	doc.Update(func(*html.Node) { dom.SetAttr(ce, "contenteditable", "false") })
	timers.Advance(time.Second)

	if fired.len() != 1 || !fired.results[0].Skipped {
		t.Fatalf("expected one skipped result, got %+v", fired.results)
	}
}

func TestMappingUnavailable(t *testing.T) {
	doc, d, timers, fired := setup(t, staticMapping{err: errors.New("not loaded")})
	field := doc.ByID("field")

	d.OnInput(field)
	timers.Advance(time.Second)

	if fired.len() != 1 || !fired.results[0].Skipped {
		t.Fatalf("expected skipped result, got %+v", fired.results)
	}
	if v, _ := doc.Value(field); v != "foo" {
		t.Errorf("value = %q, want foo", v)
	}
}

func TestAttachRoutesEditableTargets(t *testing.T) {
	doc, d, _, _ := setup(t, fooBar)
	detach := d.Attach()
	defer detach()

	doc.Dispatch(dom.Event{Type: dom.EventInput, Target: doc.ByID("field")})
	doc.Dispatch(dom.Event{Type: dom.EventInput, Target: doc.ByID("static")})

	if d.State(doc.ByID("field")) != Pending {
		t.Error("input on a field should arm a timer")
	}
	if d.State(doc.ByID("static")) != Idle {
		t.Error("input on static content must be ignored")
	}
}

func TestStopDisarms(t *testing.T) {
	doc, d, timers, fired := setup(t, fooBar)
	d.OnInput(doc.ByID("field"))
	d.Stop()
	d.OnInput(doc.ByID("area"))
	timers.Advance(time.Minute)

	if fired.len() != 0 || d.PendingCount() != 0 {
		t.Errorf("fired %d, pending %d after Stop", fired.len(), d.PendingCount())
	}
}

func TestRealTimer(t *testing.T) {
	doc, err := dom.ParseString(page, "")
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	done := make(chan Result, 1)
	d := New(doc, fooBar, WithQuietPeriod(20*time.Millisecond), OnFire(func(r Result) { done <- r }))
	defer d.Stop()

	d.OnInput(doc.ByID("field"))
	select {
	case r := <-done:
		if !r.Changed {
			t.Error("expected the field to change")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
}

func innerHTML(t *testing.T, n *html.Node) string {
	t.Helper()
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			t.Fatalf("Render() error = %v", err)
		}
	}
	return buf.String()
}
