// Package session hosts live documents. Each session wires the mutation
// watcher, the input debouncer and the click and scroll triggers to one
// parsed document and accepts host actions against it.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"livesub/internal/debounce"
	"livesub/internal/dom"
	"livesub/internal/keywords"
	"livesub/internal/models"
	"livesub/internal/trigger"
	"livesub/internal/watcher"
)

// Event types accepted by Apply.
const (
	EventInsert = "insert"
	EventInput  = dom.EventInput
	EventClick  = dom.EventClick
	EventScroll = dom.EventScroll
)

// Session is one live document and the components attached to it.
type Session struct {
	ID        uuid.UUID
	CreatedAt time.Time

	doc       *dom.Document
	debouncer *debounce.Debouncer
	clicks    *trigger.ClickBinder
	scroll    *trigger.ScrollSettle
	logger    *slog.Logger
	now       func() time.Time

	cancel      context.CancelFunc
	detachInput func()
	watchDone   <-chan error

	mu       sync.Mutex
	lastUsed time.Time
	closed   bool
}

func open(r io.Reader, origin string, mapping keywords.Mapping, runner trigger.Runner, opts Options) (*Session, error) {
	doc, err := dom.Parse(r, origin)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	logger := opts.Logger.With("session", id.String())

	w, err := watcher.New(doc, mapping, watcher.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:        id,
		CreatedAt: now(),
		doc:       doc,
		logger:    logger,
		now:       now,
		cancel:    cancel,
		debouncer: debounce.New(doc, mapping,
			debounce.WithQuietPeriod(opts.InputDelay),
			debounce.WithAfterFunc(opts.AfterFunc),
			debounce.WithLogger(logger)),
		clicks: trigger.NewClickBinder(doc, runner, opts.RescanInterval, logger),
		scroll: trigger.NewScrollSettle(doc, runner, opts.ScrollDelay, opts.AfterFunc, logger),
	}
	s.lastUsed = s.CreatedAt

	s.watchDone = w.Start(ctx)
	s.detachInput = s.debouncer.Attach()
	s.clicks.Scan()
	go s.clicks.Run(ctx)
	s.scroll.Attach(ctx)

	return s, nil
}

// Document returns the hosted document.
func (s *Session) Document() *dom.Document {
	return s.doc
}

// HTML renders the current document.
func (s *Session) HTML() string {
	return s.doc.String()
}

// LastUsed returns when the session last served a request.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsed = s.now()
	s.mu.Unlock()
}

// Response describes the session for API clients.
func (s *Session) Response() models.SessionResponse {
	return models.SessionResponse{
		ID:        s.ID.String(),
		CreatedAt: s.CreatedAt,
		LastUsed:  s.LastUsed(),
	}
}

// Apply performs a host action on the document. Insertions go through the
// structural mutation API so the watcher sees them; input sets the field's
// value and then dispatches an input event so the debouncer arms.
func (s *Session) Apply(ev models.SessionEvent) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	s.touch()

	switch ev.Type {
	case EventInsert:
		parent, err := s.target(ev.Target, true)
		if err != nil {
			return err
		}
		_, err = s.doc.AppendHTML(parent, ev.HTML)
		return err

	case EventInput:
		target, err := s.target(ev.Target, false)
		if err != nil {
			return err
		}
		if err := s.setInput(target, ev.Value); err != nil {
			return err
		}
		s.doc.Dispatch(dom.Event{Type: dom.EventInput, Target: target})
		return nil

	case EventClick:
		target, err := s.target(ev.Target, false)
		if err != nil {
			return err
		}
		// Controls inserted since the last periodic scan are bound first.
		s.clicks.Scan()
		s.doc.Dispatch(dom.Event{Type: dom.EventClick, Target: target})
		return nil

	case EventScroll:
		s.doc.Dispatch(dom.Event{Type: dom.EventScroll})
		return nil
	}

	return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
}

// target resolves an element id. An empty id selects the body when
// allowBody is set.
func (s *Session) target(id string, allowBody bool) (*html.Node, error) {
	if id == "" && allowBody {
		return s.doc.Body()
	}
	n := s.doc.ByID(id)
	if n == nil {
		return nil, fmt.Errorf("%w: #%s", ErrTargetNotFound, id)
	}
	return n, nil
}

// setInput writes v into a form field, or into the first text leaf of a
// contenteditable host, creating one when the host is empty.
func (s *Session) setInput(target *html.Node, v string) error {
	var isField bool
	var leaf *html.Node
	s.doc.View(func(*html.Node) {
		isField = dom.IsField(target)
		if !isField {
			leaf = dom.Find(target, func(n *html.Node) bool { return n.Type == html.TextNode })
		}
	})

	switch {
	case isField:
		return s.doc.SetValue(target, v)
	case leaf != nil:
		s.doc.SetText(leaf, v)
	default:
		s.doc.AppendChild(target, &html.Node{Type: html.TextNode, Data: v})
	}
	return nil
}

// PendingInputs reports how many fields have an armed debounce timer.
func (s *Session) PendingInputs() int {
	return s.debouncer.PendingCount()
}

// Close detaches every component and stops the watcher. It is safe to call
// more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.detachInput()
	s.debouncer.Stop()
	s.clicks.Detach()
	s.scroll.Detach()

	if err := <-s.watchDone; err != nil {
		s.logger.Warn("watcher stopped with error", "error", err)
	}
	s.logger.Debug("session closed")
}
