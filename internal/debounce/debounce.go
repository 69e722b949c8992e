// Package debounce rewrites the value of an editable field once the user
// has stopped typing.
//
// Each field moves IDLE → PENDING on an input event, stays PENDING (with a
// fresh timer) on every further event, and returns to IDLE when the quiet
// period passes undisturbed. At that point the value is read, rewritten in
// exact-line mode and written back only if it changed. A field never has
// more than one armed timer.
package debounce

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/net/html"

	"livesub/internal/dom"
	"livesub/internal/guard"
	"livesub/internal/keywords"
	"livesub/internal/metrics"
	"livesub/internal/models"
	"livesub/internal/substitute"
)

// DefaultQuietPeriod is how long a field must stay untouched before it is
// rewritten.
const DefaultQuietPeriod = 3 * time.Second

// State is a field's position in the debounce state machine.
type State int

const (
	Idle State = iota
	Pending
)

func (s State) String() string {
	if s == Pending {
		return "pending"
	}
	return "idle"
}

// Timer is the handle returned by an AfterFunc.
type Timer = dom.Timer

// AfterFunc schedules f after d. time.AfterFunc is the default.
type AfterFunc = dom.AfterFunc

// Result describes one timer firing.
type Result struct {
	Field   *html.Node
	Changed bool
	Skipped bool // field was no longer editable, or no mapping was available
}

type pending struct {
	timer Timer
	seq   uint64
}

// Debouncer tracks pending rewrites per field.
type Debouncer struct {
	doc     *dom.Document
	mapping keywords.Mapping
	quiet   time.Duration
	after   AfterFunc
	logger  *slog.Logger
	onFire  func(Result)

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[*html.Node]*pending
	seq     uint64
	stopped bool
}

// Option configures a Debouncer.
type Option func(*Debouncer)

// WithQuietPeriod overrides DefaultQuietPeriod.
func WithQuietPeriod(d time.Duration) Option {
	return func(db *Debouncer) {
		if d > 0 {
			db.quiet = d
		}
	}
}

// WithAfterFunc replaces the timer facility. A nil f keeps time.AfterFunc.
func WithAfterFunc(f AfterFunc) Option {
	return func(db *Debouncer) {
		if f != nil {
			db.after = f
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(db *Debouncer) { db.logger = l }
}

// OnFire registers a hook called after every timer firing.
func OnFire(fn func(Result)) Option {
	return func(db *Debouncer) { db.onFire = fn }
}

// New creates a debouncer for fields of doc.
func New(doc *dom.Document, mapping keywords.Mapping, opts ...Option) *Debouncer {
	d := &Debouncer{
		doc:     doc,
		mapping: mapping,
		quiet:   DefaultQuietPeriod,
		after:   dom.RealAfterFunc,
		logger:  slog.Default(),
		pending: make(map[*html.Node]*pending),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d
}

// OnInput records an edit on field, cancelling any armed timer first.
func (d *Debouncer) OnInput(field *html.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if p, ok := d.pending[field]; ok {
		p.timer.Stop()
		metrics.Debounce(metrics.DebounceReset)
	} else {
		metrics.Debounce(metrics.DebounceArmed)
	}

	d.seq++
	seq := d.seq
	p := &pending{seq: seq}
	d.pending[field] = p
	p.timer = d.after(d.quiet, func() { d.fire(field, seq) })
}

// Cancel disarms field's timer. It reports whether a timer was pending.
func (d *Debouncer) Cancel(field *html.Node) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.pending[field]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(d.pending, field)
	metrics.Debounce(metrics.DebounceCanceled)
	return true
}

// State returns field's current state.
func (d *Debouncer) State(field *html.Node) State {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.pending[field]; ok {
		return Pending
	}
	return Idle
}

// PendingCount returns the number of fields with an armed timer.
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop disarms every timer and ignores further input.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	for field, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, field)
	}
	d.mu.Unlock()
	d.cancel()
}

// fire runs when a timer elapses. A timer that was superseded or cancelled
// finds a different sequence number (or none) and does nothing.
func (d *Debouncer) fire(field *html.Node, seq uint64) {
	d.mu.Lock()
	p, ok := d.pending[field]
	if !ok || p.seq != seq {
		d.mu.Unlock()
		return
	}
	delete(d.pending, field)
	d.mu.Unlock()

	metrics.Debounce(metrics.DebounceFired)
	res := d.rewrite(field)
	if res.Changed {
		metrics.Debounce(metrics.DebounceWritten)
	}
	if d.onFire != nil {
		d.onFire(res)
	}
}

func (d *Debouncer) rewrite(field *html.Node) Result {
	res := Result{Field: field}

	km, err := d.mapping.Get(d.ctx)
	if err != nil {
		d.logger.Warn("skipping field rewrite", "error", err)
		res.Skipped = true
		return res
	}
	rules := substitute.Compile(km, substitute.ExactLine)

	d.doc.Update(func(*html.Node) {
		if !guard.IsLiveEditable(field) {
			res.Skipped = true
			return
		}

		var hits []string
		if dom.IsField(field) {
			value, err := dom.FieldValue(field)
			if err != nil {
				res.Skipped = true
				return
			}
			out, h := substitute.ApplyRules(value, rules)
			if out != value {
				_ = dom.SetFieldValue(field, out)
				res.Changed = true
				hits = h
			}
		} else {
			// contenteditable host: rewrite each text leaf in place so the
			// markup the user built survives.
			for _, n := range dom.FindAll(field, func(n *html.Node) bool { return n.Type == html.TextNode }) {
				out, h := substitute.ApplyRules(n.Data, rules)
				if out != n.Data {
					n.Data = out
					res.Changed = true
					hits = append(hits, h...)
				}
			}
		}

		if res.Changed {
			metrics.Substituted(models.ComponentDebouncer, substitute.ExactLine.String())
			metrics.RecordHits(models.ComponentDebouncer, hits)
		}
	})

	return res
}

// Attach listens for input events anywhere in the document and feeds the
// editable targets to OnInput. The returned function detaches the listener.
func (d *Debouncer) Attach() func() {
	return d.doc.AddEventListener(nil, dom.EventInput, func(ev dom.Event) {
		if ev.Target == nil {
			return
		}
		var editable bool
		d.doc.View(func(*html.Node) { editable = guard.IsLiveEditable(ev.Target) })
		if editable {
			d.OnInput(ev.Target)
		}
	})
}
