// Package watcher rewrites text inserted into a live document as soon as the
// insertion is observed.
package watcher

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/net/html"

	"livesub/internal/dom"
	"livesub/internal/guard"
	"livesub/internal/keywords"
	"livesub/internal/metrics"
	"livesub/internal/models"
	"livesub/internal/scan"
	"livesub/internal/substitute"
)

// Watcher observes one root for insertions anywhere beneath it and rewrites
// the static text of every inserted subtree in exact-line mode.
type Watcher struct {
	doc     *dom.Document
	root    *html.Node
	mapping keywords.Mapping
	logger  *slog.Logger
	onWrite func(scan.TextUnit)
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithRoot observes root instead of the document body.
func WithRoot(root *html.Node) Option {
	return func(w *Watcher) { w.root = root }
}

// OnWrite registers a hook called for every unit the watcher rewrites,
// with the document lock held.
func OnWrite(fn func(scan.TextUnit)) Option {
	return func(w *Watcher) { w.onWrite = fn }
}

// New creates a watcher for doc. The body is observed unless WithRoot is given.
func New(doc *dom.Document, mapping keywords.Mapping, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		doc:     doc,
		mapping: mapping,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.root == nil {
		body, err := doc.Body()
		if err != nil {
			return nil, err
		}
		w.root = body
	}
	return w, nil
}

// Stats reports what one batch of records did.
type Stats struct {
	Units   int
	Written int
}

// Run subscribes and processes batches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	sub := w.doc.Observe(w.root)
	return w.drain(ctx, sub)
}

// Start subscribes synchronously and drains in a goroutine, so insertions
// made after Start returns are guaranteed to be seen. The returned channel
// receives the drain result once.
func (w *Watcher) Start(ctx context.Context) <-chan error {
	sub := w.doc.Observe(w.root)
	done := make(chan error, 1)
	go func() {
		done <- w.drain(ctx, sub)
		close(done)
	}()
	return done
}

func (w *Watcher) drain(ctx context.Context, sub *dom.Subscription) error {
	defer sub.Close()
	w.logger.Debug("mutation watcher started")

	for batch := range sub.Batches(ctx) {
		stats := w.Process(ctx, batch)
		if stats.Written > 0 {
			w.logger.Debug("rewrote inserted text", "units", stats.Units, "written", stats.Written)
		}
	}

	w.logger.Debug("mutation watcher stopped")
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Process handles one batch of records synchronously.
func (w *Watcher) Process(ctx context.Context, batch []dom.MutationRecord) Stats {
	var stats Stats

	km, err := w.mapping.Get(ctx)
	if err != nil {
		w.logger.Warn("skipping inserted nodes", "error", err)
		return stats
	}
	if len(km) == 0 {
		return stats
	}
	rules := substitute.Compile(km, substitute.ExactLine)

	w.doc.Update(func(*html.Node) {
		for _, rec := range batch {
			for _, added := range rec.Added {
				s := w.processSubtree(added, rules)
				stats.Units += s.Units
				stats.Written += s.Written
			}
		}
	})

	metrics.Scanned(models.ComponentWatcher, stats.Units)
	return stats
}

func (w *Watcher) processSubtree(root *html.Node, rules []substitute.Rule) Stats {
	var stats Stats
	for _, u := range scan.CollectTextUnits(root) {
		text := u.Read()
		if strings.TrimSpace(text) == "" {
			continue
		}
		stats.Units++
		if guard.IsLiveEditable(u.Node) {
			continue
		}

		out, hits := substitute.ApplyRules(text, rules)
		if out == text {
			continue
		}
		u.Write(out)
		stats.Written++
		metrics.Substituted(models.ComponentWatcher, substitute.ExactLine.String())
		metrics.RecordHits(models.ComponentWatcher, hits)
		if w.onWrite != nil {
			w.onWrite(u)
		}
	}
	return stats
}
