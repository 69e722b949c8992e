// Package trigger starts whole-document batch runs in response to clicks on
// interactive controls and to the page settling after a scroll.
package trigger

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"livesub/internal/batch"
	"livesub/internal/dom"
)

// BoundAttr marks controls that already carry a click listener.
const BoundAttr = "data-livesub-bound"

// Defaults for the trigger loops.
const (
	DefaultRescanInterval = time.Second
	DefaultScrollQuiet    = 200 * time.Millisecond
)

// Runner starts a batch run over a document and its frames.
type Runner interface {
	StartAll(ctx context.Context, doc *dom.Document) <-chan batch.Result
}

// IsInteractive reports whether n is a control whose click should trigger
// a document pass. The caller must hold the document lock.
func IsInteractive(n *html.Node) bool {
	if dom.IsElement(n, atom.Button) {
		return true
	}
	if dom.IsElement(n, atom.Input) {
		t, _ := dom.Attr(n, "type")
		switch strings.ToLower(t) {
		case "button", "submit", "reset":
			return true
		}
		return false
	}
	if dom.IsElement(n) {
		role, _ := dom.Attr(n, "role")
		return strings.EqualFold(role, "button")
	}
	return false
}

// ClickBinder attaches click listeners to interactive controls, including
// ones added later, which it finds by re-scanning periodically. Bound
// controls are marked with BoundAttr so no control gets two listeners.
type ClickBinder struct {
	doc      *dom.Document
	runner   Runner
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	removes []func()
}

// NewClickBinder creates a binder. A non-positive interval selects
// DefaultRescanInterval.
func NewClickBinder(doc *dom.Document, runner Runner, interval time.Duration, logger *slog.Logger) *ClickBinder {
	if interval <= 0 {
		interval = DefaultRescanInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ClickBinder{
		doc:      doc,
		runner:   runner,
		interval: interval,
		logger:   logger,
		ctx:      context.Background(),
	}
}

// Scan binds every unmarked interactive control and returns how many were
// newly bound.
func (b *ClickBinder) Scan() int {
	var fresh []*html.Node
	b.doc.Update(func(root *html.Node) {
		fresh = dom.FindAll(root, func(n *html.Node) bool {
			if !IsInteractive(n) {
				return false
			}
			_, bound := dom.Attr(n, BoundAttr)
			return !bound
		})
		for _, n := range fresh {
			dom.SetAttr(n, BoundAttr, "true")
		}
	})

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, n := range fresh {
		b.removes = append(b.removes, b.doc.AddEventListener(n, dom.EventClick, b.onClick))
	}
	if len(fresh) > 0 {
		b.logger.Debug("bound click listeners", "controls", len(fresh))
	}
	return len(fresh)
}

func (b *ClickBinder) onClick(dom.Event) {
	b.mu.Lock()
	ctx := b.ctx
	b.mu.Unlock()

	b.logger.Debug("control clicked, replacing keywords")
	done := b.runner.StartAll(ctx, b.doc)
	go func() {
		res := <-done
		b.logger.Debug("click pass complete", "changed", res.Changed)
	}()
}

// Run scans immediately and then every interval until ctx is done. Listeners
// stay attached after Run returns; call Detach to remove them.
func (b *ClickBinder) Run(ctx context.Context) {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()

	b.Scan()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Scan()
		}
	}
}

// Detach removes every listener the binder attached.
func (b *ClickBinder) Detach() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, remove := range b.removes {
		remove()
	}
	b.removes = nil
}

// ScrollSettle starts a batch run once scroll events on the window have
// stopped for the quiet period.
type ScrollSettle struct {
	doc    *dom.Document
	runner Runner
	quiet  time.Duration
	after  dom.AfterFunc
	logger *slog.Logger

	mu     sync.Mutex
	ctx    context.Context
	timer  dom.Timer
	seq    uint64
	remove func()
}

// NewScrollSettle creates a scroll trigger. A nil after uses time.AfterFunc.
func NewScrollSettle(doc *dom.Document, runner Runner, quiet time.Duration, after dom.AfterFunc, logger *slog.Logger) *ScrollSettle {
	if quiet <= 0 {
		quiet = DefaultScrollQuiet
	}
	if after == nil {
		after = dom.RealAfterFunc
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ScrollSettle{
		doc:    doc,
		runner: runner,
		quiet:  quiet,
		after:  after,
		logger: logger,
		ctx:    context.Background(),
	}
}

// Attach starts listening for window scroll events. ctx is handed to the
// runs it starts.
func (s *ScrollSettle) Attach(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
	if s.remove == nil {
		s.remove = s.doc.AddEventListener(nil, dom.EventScroll, func(dom.Event) { s.OnScroll() })
	}
}

// OnScroll restarts the quiet period.
func (s *ScrollSettle) OnScroll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.seq++
	seq := s.seq
	s.timer = s.after(s.quiet, func() { s.settle(seq) })
}

func (s *ScrollSettle) settle(seq uint64) {
	s.mu.Lock()
	if seq != s.seq || s.timer == nil {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	ctx := s.ctx
	s.mu.Unlock()

	s.logger.Debug("scroll settled, replacing keywords")
	done := s.runner.StartAll(ctx, s.doc)
	go func() {
		res := <-done
		s.logger.Debug("scroll pass complete", "changed", res.Changed)
	}()
}

// Detach stops listening and disarms a pending settle.
func (s *ScrollSettle) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.seq++
	if s.remove != nil {
		s.remove()
		s.remove = nil
	}
}
