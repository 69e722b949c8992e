// Package batch rewrites whole documents in fixed-size chunks, yielding to
// the host between chunks so no single step holds the document for long.
package batch

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"livesub/internal/dom"
	"livesub/internal/guard"
	"livesub/internal/keywords"
	"livesub/internal/metrics"
	"livesub/internal/models"
	"livesub/internal/scan"
	"livesub/internal/substitute"
)

// DefaultChunkSize is the number of text units handled between yields.
const DefaultChunkSize = 50

// MaxFrameDepth bounds how deeply nested frames are followed.
const MaxFrameDepth = 16

// Idler blocks until the host has spare time for the next chunk.
type Idler interface {
	Idle()
}

// IdleFunc adapts a function to Idler.
type IdleFunc func()

// Idle calls f.
func (f IdleFunc) Idle() { f() }

// DelayIdler yields the processor and then sleeps for the given duration,
// giving writers queued on the document lock a chance to run.
type DelayIdler time.Duration

// Idle implements Idler.
func (d DelayIdler) Idle() {
	runtime.Gosched()
	if d > 0 {
		time.Sleep(time.Duration(d))
	}
}

// Result summarises a run. It is produced exactly once per run, after the
// last chunk.
type Result struct {
	Units         int
	Changed       int
	Chunks        int
	Yields        int
	Frames        int
	SkippedFrames int
}

func (r *Result) add(o Result) {
	r.Units += o.Units
	r.Changed += o.Changed
	r.Chunks += o.Chunks
	r.Yields += o.Yields
}

// Scheduler runs chunked substitution passes. Runs are independent: several
// may be in flight over the same document and the last write to a node wins.
// A run cannot be aborted once started.
type Scheduler struct {
	mapping   keywords.Mapping
	chunkSize int
	idle      Idler
	mode      substitute.Mode
	logger    *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithChunkSize overrides DefaultChunkSize.
func WithChunkSize(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithIdler replaces the yield facility.
func WithIdler(i Idler) Option {
	return func(s *Scheduler) { s.idle = i }
}

// WithMode selects the matching mode. WordBoundary is the default.
func WithMode(m substitute.Mode) Option {
	return func(s *Scheduler) { s.mode = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// New creates a scheduler that reads its keyword map from mapping.
func New(mapping keywords.Mapping, opts ...Option) *Scheduler {
	s := &Scheduler{
		mapping:   mapping,
		chunkSize: DefaultChunkSize,
		idle:      DelayIdler(time.Millisecond),
		mode:      substitute.WordBoundary,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run rewrites every text unit of doc's body with km. Units are snapshotted
// up front; nodes inserted during the run are left to the mutation watcher.
// Editable units are never touched.
func (s *Scheduler) Run(doc *dom.Document, km models.KeywordMap) Result {
	var res Result

	var units []scan.TextUnit
	doc.View(func(root *html.Node) {
		start := dom.Find(root, func(n *html.Node) bool { return dom.IsElement(n, atom.Body) })
		if start == nil {
			start = root
		}
		units = scan.CollectTextUnits(start)
	})
	res.Units = len(units)

	rules := substitute.Compile(km, s.mode)
	mode := s.mode.String()

	for start := 0; start < len(units); start += s.chunkSize {
		if start > 0 {
			s.idle.Idle()
			res.Yields++
		}
		end := min(start+s.chunkSize, len(units))

		doc.Update(func(*html.Node) {
			for _, u := range units[start:end] {
				if guard.IsLiveEditable(u.Node) {
					continue
				}
				text := u.Read()
				out, hits := substitute.ApplyRules(text, rules)
				if out == text {
					continue
				}
				u.Write(out)
				res.Changed++
				metrics.Substituted(models.ComponentBatch, mode)
				metrics.RecordHits(models.ComponentBatch, hits)
			}
		})
		res.Chunks++
	}

	metrics.Scanned(models.ComponentBatch, res.Units)
	metrics.BatchCompleted(res.Yields)
	return res
}

// Start runs Run in a goroutine. The channel delivers the result once and
// is then closed.
func (s *Scheduler) Start(doc *dom.Document, km models.KeywordMap) <-chan Result {
	done := make(chan Result, 1)
	go func() {
		done <- s.Run(doc, km)
		close(done)
	}()
	return done
}

// RunAll fetches the current mapping and runs over doc and then over every
// embedded document reachable from it, each scoped separately. Frames that
// cannot be inspected are logged and skipped. A missing mapping makes the
// whole pass a no-op.
func (s *Scheduler) RunAll(ctx context.Context, doc *dom.Document) Result {
	var total Result

	km, err := s.mapping.Get(ctx)
	if err != nil {
		s.logger.Warn("skipping document pass", "error", err)
		return total
	}

	type queued struct {
		doc   *dom.Document
		depth int
	}
	visited := map[*dom.Document]bool{doc: true}
	loaded := make(map[string]bool)

	queue := []queued{{doc: doc}}
	for len(queue) > 0 {
		q := queue[0]
		queue = queue[1:]

		total.add(s.Run(q.doc, km))

		for _, iframe := range q.doc.Frames() {
			var src string
			var inline bool
			q.doc.View(func(*html.Node) {
				_, inline = dom.Attr(iframe, "srcdoc")
				src, _ = dom.Attr(iframe, "src")
			})
			// src frames are keyed by address so a page embedding itself
			// is followed once.
			key := ""
			if !inline && src != "" && src != "about:blank" {
				key = q.doc.Origin() + " " + src
			}
			if q.depth+1 > MaxFrameDepth || (key != "" && loaded[key]) {
				s.logger.Info("skipping repeated or deeply nested frame", "src", src, "depth", q.depth+1)
				metrics.FrameSkipped()
				total.SkippedFrames++
				continue
			}

			fd, err := q.doc.FrameDocument(iframe)
			if err != nil {
				if errors.Is(err, dom.ErrInaccessibleSubtree) {
					s.logger.Info("cannot access frame content", "error", err)
				} else {
					s.logger.Warn("frame load failed", "error", err)
				}
				metrics.FrameSkipped()
				total.SkippedFrames++
				continue
			}
			if key != "" {
				loaded[key] = true
			}
			if visited[fd] {
				continue
			}
			visited[fd] = true
			total.Frames++
			queue = append(queue, queued{doc: fd, depth: q.depth + 1})
		}
	}

	s.logger.Debug("document pass complete",
		"units", total.Units,
		"changed", total.Changed,
		"frames", total.Frames,
		"skipped_frames", total.SkippedFrames)
	return total
}

// StartAll runs RunAll in a goroutine and delivers its result once.
func (s *Scheduler) StartAll(ctx context.Context, doc *dom.Document) <-chan Result {
	done := make(chan Result, 1)
	go func() {
		done <- s.RunAll(ctx, doc)
		close(done)
	}()
	return done
}
