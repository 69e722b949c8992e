package keywords

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"livesub/internal/metrics"
	"livesub/internal/models"
)

// DefaultTTL is how long a fetched mapping is considered fresh.
const DefaultTTL = 5 * time.Minute

const sharedCacheKey = "livesub:keywords"

// SharedCache is a byte store with per-entry expiry shared between
// instances. gofiber/storage/redis satisfies it.
type SharedCache interface {
	Get(key string) ([]byte, error)
	Set(key string, val []byte, exp time.Duration) error
	Delete(key string) error
}

// Mapping is what substitution components read the keyword map through.
type Mapping interface {
	Get(ctx context.Context) (models.KeywordMap, error)
}

// Store owns the process-wide keyword map: the cached value, when it was
// fetched, and how to fetch it again. Readers never mutate the map.
type Store struct {
	source Source
	ttl    time.Duration
	shared SharedCache
	logger *slog.Logger
	now    func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	current   models.KeywordMap
	fetchedAt time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSharedCache adds a second-level cache consulted before the source.
func WithSharedCache(c SharedCache) Option {
	return func(s *Store) { s.shared = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store over source. Nothing is fetched until Get or Refresh.
func NewStore(source Source, opts ...Option) *Store {
	s := &Store{
		source: source,
		ttl:    DefaultTTL,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the cached map while fresh and refreshes it otherwise. When a
// refresh fails a stale map is still returned; with nothing cached the
// result is ErrMappingUnavailable.
func (s *Store) Get(ctx context.Context) (models.KeywordMap, error) {
	s.mu.RLock()
	km, fetchedAt := s.current, s.fetchedAt
	s.mu.RUnlock()

	if km != nil && s.now().Sub(fetchedAt) < s.ttl {
		return km, nil
	}

	fresh, err := s.Refresh(ctx)
	if err == nil {
		return fresh, nil
	}
	if km != nil {
		s.logger.Warn("using stale keyword mapping", "age", s.now().Sub(fetchedAt), "error", err)
		return km, nil
	}
	return nil, err
}

// Current returns the cached map without fetching. It may be nil.
func (s *Store) Current() models.KeywordMap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// FetchedAt reports when the cached map was loaded.
func (s *Store) FetchedAt() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchedAt, s.current != nil
}

// Stale reports whether the cached map is missing or past its TTL.
func (s *Store) Stale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current == nil || s.now().Sub(s.fetchedAt) >= s.ttl
}

// Refresh loads the mapping, coalescing concurrent callers into one fetch.
func (s *Store) Refresh(ctx context.Context) (models.KeywordMap, error) {
	v, err, _ := s.group.Do("refresh", func() (any, error) {
		return s.load(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(models.KeywordMap), nil
}

func (s *Store) load(ctx context.Context) (models.KeywordMap, error) {
	if km, ok := s.loadShared(); ok {
		s.set(km)
		metrics.MappingRefresh(metrics.OutcomeSharedCache)
		return km, nil
	}

	km, err := s.source.Load(ctx)
	if err != nil {
		metrics.MappingRefresh(metrics.OutcomeError)
		s.logger.Error("failed to load keyword mapping", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrMappingUnavailable, err)
	}
	if km == nil {
		km = models.KeywordMap{}
	}

	s.set(km)
	s.storeShared(km)
	metrics.MappingRefresh(metrics.OutcomeSource)
	s.logger.Info("keyword mapping loaded", "entries", len(km))
	return km, nil
}

func (s *Store) set(km models.KeywordMap) {
	s.mu.Lock()
	s.current = km
	s.fetchedAt = s.now()
	s.mu.Unlock()
}

func (s *Store) loadShared() (models.KeywordMap, bool) {
	if s.shared == nil {
		return nil, false
	}
	data, err := s.shared.Get(sharedCacheKey)
	if err != nil {
		s.logger.Warn("shared keyword cache read failed", "error", err)
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}
	km, _, err := Decode(data)
	if err != nil {
		s.logger.Warn("shared keyword cache entry unreadable", "error", err)
		return nil, false
	}
	return km, true
}

func (s *Store) storeShared(km models.KeywordMap) {
	if s.shared == nil {
		return
	}
	data, err := Encode(km)
	if err != nil {
		return
	}
	if err := s.shared.Set(sharedCacheKey, data, s.ttl); err != nil {
		s.logger.Warn("shared keyword cache write failed", "error", err)
	}
}

// Expire drops freshness so the next Get refetches. The cached map stays
// available as a stale fallback.
func (s *Store) Expire() {
	s.mu.Lock()
	s.fetchedAt = time.Time{}
	s.mu.Unlock()

	if s.shared != nil {
		if err := s.shared.Delete(sharedCacheKey); err != nil {
			s.logger.Warn("shared keyword cache delete failed", "error", err)
		}
	}
}

// Run refreshes the mapping every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	s.logger.Info("keyword refresher started", "interval", interval)

	if _, err := s.Refresh(ctx); err != nil {
		s.logger.Warn("initial keyword load failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("keyword refresher stopped")
			return
		case <-ticker.C:
			if _, err := s.Refresh(ctx); err != nil {
				s.logger.Warn("keyword refresh failed", "error", err)
			}
		}
	}
}
