package metrics

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"livesub/internal/models"
)

// Mapping refresh outcomes.
const (
	OutcomeSource      = "source"
	OutcomeSharedCache = "shared_cache"
	OutcomeError       = "error"
)

// Debounce outcomes.
const (
	DebounceArmed    = "armed"
	DebounceReset    = "reset"
	DebounceFired    = "fired"
	DebounceCanceled = "canceled"
	DebounceWritten  = "written"
)

var (
	keywordHitDesc = prometheus.NewDesc(
		"livesub_keyword_hits_total",
		"Total substitutions per keyword by component",
		[]string{"keyword", "component"},
		nil,
	)

	substitutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "livesub_substitutions_total",
		Help: "Text units rewritten, by component and mode",
	}, []string{"component", "mode"})

	unitsScanned = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "livesub_units_scanned_total",
		Help: "Text units inspected, by component",
	}, []string{"component"})

	batchRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "livesub_batch_runs_total",
		Help: "Completed whole-document batch runs",
	})

	batchYields = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "livesub_batch_yields_total",
		Help: "Idle yields between batch chunks",
	})

	framesSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "livesub_frames_skipped_total",
		Help: "Embedded documents skipped because they could not be inspected",
	})

	debounceEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "livesub_debounce_events_total",
		Help: "Input debouncer transitions by outcome",
	}, []string{"outcome"})

	mappingRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "livesub_mapping_refresh_total",
		Help: "Keyword mapping refreshes by outcome",
	}, []string{"outcome"})

	liveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "livesub_sessions",
		Help: "Live document sessions currently open",
	})
)

// HitStore persists per-keyword hit counts.
type HitStore interface {
	IncrementKeywordHit(ctx context.Context, keyword, component string) error
	GetAllKeywordHits(ctx context.Context) ([]models.KeywordHit, error)
}

// KeywordCollector is a custom Prometheus collector that reads keyword hit
// counts from the database on each scrape.
type KeywordCollector struct {
	store HitStore
}

// Describe sends the metric descriptor to the channel.
func (c *KeywordCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- keywordHitDesc
}

// Collect queries the store for all keyword hits and emits them as counters.
func (c *KeywordCollector) Collect(ch chan<- prometheus.Metric) {
	hits, err := c.store.GetAllKeywordHits(context.Background())
	if err != nil {
		slog.Error("failed to collect keyword hit metrics", "error", err)
		return
	}
	for _, h := range hits {
		ch <- prometheus.MustNewConstMetric(
			keywordHitDesc,
			prometheus.CounterValue,
			float64(h.Count),
			h.Keyword,
			h.Component,
		)
	}
}

// Recorder provides async keyword hit recording.
type Recorder struct {
	store HitStore
}

var (
	recorder     *Recorder
	recorderOnce sync.Once
	registerOnce sync.Once
)

// Register adds the in-process collectors to reg. Safe to call more than once.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(
			substitutions,
			unitsScanned,
			batchRuns,
			batchYields,
			framesSkipped,
			debounceEvents,
			mappingRefreshes,
			liveSessions,
		)
	})
}

// Init registers the database-backed collector and initializes the recorder.
// Must be called once at startup; a nil store only registers the in-process
// collectors.
func Init(store HitStore) {
	Register(prometheus.DefaultRegisterer)
	if store == nil {
		return
	}
	recorderOnce.Do(func() {
		recorder = &Recorder{store: store}
		prometheus.MustRegister(&KeywordCollector{store: store})
	})
}

// RecordHits asynchronously records one hit per key for component.
func RecordHits(component string, keys []string) {
	r := recorder
	if r == nil || len(keys) == 0 {
		return
	}
	go func() {
		for _, k := range keys {
			if err := r.store.IncrementKeywordHit(context.Background(), k, component); err != nil {
				slog.Error("failed to record keyword hit", "keyword", k, "component", component, "error", err)
			}
		}
	}()
}

// Substituted counts one rewritten text unit.
func Substituted(component, mode string) {
	substitutions.WithLabelValues(component, mode).Inc()
}

// Scanned counts n inspected text units.
func Scanned(component string, n int) {
	unitsScanned.WithLabelValues(component).Add(float64(n))
}

// BatchCompleted counts a finished batch run and its yields.
func BatchCompleted(yields int) {
	batchRuns.Inc()
	batchYields.Add(float64(yields))
}

// FrameSkipped counts an inaccessible embedded document.
func FrameSkipped() {
	framesSkipped.Inc()
}

// Debounce counts a debouncer transition.
func Debounce(outcome string) {
	debounceEvents.WithLabelValues(outcome).Inc()
}

// MappingRefresh counts a mapping refresh outcome.
func MappingRefresh(outcome string) {
	mappingRefreshes.WithLabelValues(outcome).Inc()
}

// SessionOpened and SessionClosed track the live session gauge.
func SessionOpened() { liveSessions.Inc() }
func SessionClosed() { liveSessions.Dec() }
