package dom

import (
	"context"
	"iter"
	"sync"

	"golang.org/x/net/html"
)

// MutationRecord describes one childList change.
type MutationRecord struct {
	Target  *html.Node
	Added   []*html.Node
	Removed []*html.Node
}

// Subscription receives childList records for changes anywhere under its
// root. Records queued between two reads are delivered together.
type Subscription struct {
	doc  *Document
	root *html.Node

	mu     sync.Mutex
	queue  []MutationRecord
	closed bool
	notify chan struct{}
	done   chan struct{}
}

// Observe subscribes to insertions and removals anywhere under root.
func (d *Document) Observe(root *html.Node) *Subscription {
	s := &Subscription{
		doc:    d,
		root:   root,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	d.subMu.Lock()
	d.subs[s] = struct{}{}
	d.subMu.Unlock()
	return s
}

// publishLocked fans rec out to subscriptions observing its target.
// Caller holds d.mu so the ancestor check sees a consistent tree.
func (d *Document) publishLocked(rec MutationRecord) {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	for s := range d.subs {
		if Contains(s.root, rec.Target) {
			s.push(rec)
		}
	}
}

func (s *Subscription) push(rec MutationRecord) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, rec)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next blocks until at least one record is queued and returns every queued
// record as one batch.
func (s *Subscription) Next(ctx context.Context) ([]MutationRecord, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			batch := s.queue
			s.queue = nil
			s.mu.Unlock()
			return batch, nil
		}
		if s.closed {
			s.mu.Unlock()
			return nil, ErrSubscriptionClosed
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.done:
		case <-s.notify:
		}
	}
}

// Batches exposes Next as a lazy sequence that ends when ctx is done or the
// subscription is closed.
func (s *Subscription) Batches(ctx context.Context) iter.Seq[[]MutationRecord] {
	return func(yield func([]MutationRecord) bool) {
		for {
			batch, err := s.Next(ctx)
			if err != nil {
				return
			}
			if !yield(batch) {
				return
			}
		}
	}
}

// Pending returns the number of queued records.
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close detaches the subscription. Records already queued remain readable.
func (s *Subscription) Close() {
	s.doc.subMu.Lock()
	delete(s.doc.subs, s)
	s.doc.subMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
}
