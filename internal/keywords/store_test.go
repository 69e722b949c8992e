package keywords

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"livesub/internal/models"
	"livesub/internal/substitute"
)

type countingSource struct {
	calls atomic.Int32
	km    models.KeywordMap
	err   error
	delay time.Duration
}

func (s *countingSource) Load(ctx context.Context) (models.KeywordMap, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.km.Clone(), nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memCache) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memCache) Set(key string, val []byte, exp time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = val
	return nil
}

func (m *memCache) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStoreCachesWithinTTL(t *testing.T) {
	src := &countingSource{km: models.KeywordMap{"foo": "bar"}}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	store := NewStore(src, WithTTL(time.Minute), WithClock(clock.Now), WithLogger(quietLogger()))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		km, err := store.Get(ctx)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if km["foo"] != "bar" {
			t.Fatalf("Get() = %v", km)
		}
	}
	if got := src.calls.Load(); got != 1 {
		t.Errorf("source called %d times within TTL, want 1", got)
	}

	clock.Advance(time.Minute)
	if !store.Stale() {
		t.Error("expected store to be stale after TTL")
	}
	if _, err := store.Get(ctx); err != nil {
		t.Fatalf("Get() after TTL error = %v", err)
	}
	if got := src.calls.Load(); got != 2 {
		t.Errorf("source called %d times after TTL, want 2", got)
	}
}

func TestStoreUnavailable(t *testing.T) {
	src := &countingSource{err: errors.New("boom")}
	store := NewStore(src, WithLogger(quietLogger()))

	km, err := store.Get(context.Background())
	if !errors.Is(err, ErrMappingUnavailable) {
		t.Fatalf("Get() error = %v, want ErrMappingUnavailable", err)
	}
	if km != nil {
		t.Errorf("Get() = %v, want nil", km)
	}
	if store.Current() != nil {
		t.Error("Current() should be nil before any successful load")
	}
}

func TestStoreServesStaleOnFailure(t *testing.T) {
	src := &countingSource{km: models.KeywordMap{"foo": "bar"}}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	store := NewStore(src, WithTTL(time.Minute), WithClock(clock.Now), WithLogger(quietLogger()))

	ctx := context.Background()
	if _, err := store.Get(ctx); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	src.err = errors.New("offline")
	clock.Advance(2 * time.Minute)

	km, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("Get() with stale map error = %v", err)
	}
	if km["foo"] != "bar" {
		t.Errorf("Get() = %v, want stale map", km)
	}
}

func TestStoreExpire(t *testing.T) {
	src := &countingSource{km: models.KeywordMap{"foo": "bar"}}
	store := NewStore(src, WithLogger(quietLogger()))
	ctx := context.Background()

	store.Get(ctx)
	store.Expire()
	if !store.Stale() {
		t.Error("expected stale after Expire")
	}
	if store.Current() == nil {
		t.Error("Expire must keep the map as a fallback")
	}
	store.Get(ctx)
	if got := src.calls.Load(); got != 2 {
		t.Errorf("source called %d times, want 2", got)
	}
}

func TestStoreRefreshCoalesces(t *testing.T) {
	src := &countingSource{km: models.KeywordMap{"foo": "bar"}, delay: 50 * time.Millisecond}
	store := NewStore(src, WithLogger(quietLogger()))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Refresh(context.Background())
		}()
	}
	wg.Wait()

	if got := src.calls.Load(); got >= 10 {
		t.Errorf("expected concurrent refreshes to coalesce, source called %d times", got)
	}
}

func TestStoreSharedCache(t *testing.T) {
	cache := &memCache{data: map[string][]byte{}}
	src := &countingSource{km: models.KeywordMap{"foo": "bar"}}

	first := NewStore(src, WithSharedCache(cache), WithLogger(quietLogger()))
	if _, err := first.Get(context.Background()); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	second := NewStore(src, WithSharedCache(cache), WithLogger(quietLogger()))
	km, err := second.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if km["foo"] != "bar" {
		t.Errorf("Get() = %v", km)
	}
	if got := src.calls.Load(); got != 1 {
		t.Errorf("second instance should read the shared cache, source called %d times", got)
	}

	second.Expire()
	if data, _ := cache.Get(sharedCacheKey); data != nil {
		t.Error("Expire should clear the shared entry")
	}
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Write([]byte(`{"foo": "bar", "bad": 2}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	km, err := NewHTTPSource(srv.URL+"/ok", nil).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(km) != 1 || km["foo"] != "bar" {
		t.Errorf("Load() = %v", km)
	}

	if _, err := NewHTTPSource(srv.URL+"/missing", nil).Load(context.Background()); err == nil {
		t.Error("expected error for 404")
	}
}

func TestStoreDropsNullEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"foo": null, "x": "y"}`))
	}))
	defer srv.Close()

	store := NewStore(NewHTTPSource(srv.URL, nil), WithLogger(quietLogger()))
	km, err := store.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if _, ok := km["foo"]; ok {
		t.Fatalf("Get() = %v, null entry must be dropped", km)
	}

	for _, r := range substitute.Compile(km, substitute.WordBoundary) {
		if r.Key == "foo" {
			t.Fatal("null entry reached the compiled rules")
		}
	}
	if got := substitute.Apply("foo x", km, substitute.WordBoundary); got != "foo y" {
		t.Errorf("Apply() = %q, want %q", got, "foo y")
	}
}

func TestChainSource(t *testing.T) {
	failing := &countingSource{err: errors.New("down")}
	fallback := StaticSource{"foo": "bar"}

	km, err := ChainSource{failing, fallback}.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if km["foo"] != "bar" {
		t.Errorf("Load() = %v", km)
	}

	if _, err := (ChainSource{failing}).Load(context.Background()); err == nil {
		t.Error("expected error when every source fails")
	}
}

func TestOverlaySource(t *testing.T) {
	src := OverlaySource{
		Base:  StaticSource{"foo": "bar", "a": "b"},
		Extra: models.KeywordMap{"foo": "baz"},
	}
	km, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if km["foo"] != "baz" || km["a"] != "b" {
		t.Errorf("Load() = %v", km)
	}
}

type pairList []models.KeywordPair

func (p pairList) ListEnabledKeywordPairs(ctx context.Context) ([]models.KeywordPair, error) {
	return p, nil
}

func TestDBSource(t *testing.T) {
	km, err := NewDBSource(pairList{
		{Source: "foo", Replacement: "bar"},
		{Source: "", Replacement: "ignored"},
	}).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(km) != 1 || km["foo"] != "bar" {
		t.Errorf("Load() = %v", km)
	}
}

func TestLayeredSource(t *testing.T) {
	src := LayeredSource{
		Base: StaticSource{"foo": "bar", "a": "b"},
		Layers: []Source{
			&countingSource{err: errors.New("db down")},
			StaticSource{"foo": "baz"},
		},
	}
	km, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if km["foo"] != "baz" || km["a"] != "b" {
		t.Errorf("Load() = %v", km)
	}

	if _, err := (LayeredSource{Base: &countingSource{err: errors.New("down")}}).Load(context.Background()); err == nil {
		t.Error("expected error when the base fails")
	}
}
