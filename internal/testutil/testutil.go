// Package testutil provides test utilities and helpers.
package testutil

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"livesub/internal/db"
	"livesub/internal/dom"
	"livesub/internal/models"
)

// Mapping is a keywords.Mapping returning a fixed map or error and counting
// calls.
type Mapping struct {
	mu    sync.Mutex
	km    models.KeywordMap
	err   error
	calls atomic.Int64
}

// NewMapping returns a Mapping serving km.
func NewMapping(km models.KeywordMap) *Mapping {
	return &Mapping{km: km}
}

// FailingMapping returns a Mapping that always fails with err.
func FailingMapping(err error) *Mapping {
	return &Mapping{err: err}
}

// Get implements keywords.Mapping.
func (m *Mapping) Get(ctx context.Context) (models.KeywordMap, error) {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.km, m.err
}

// Set replaces the served map.
func (m *Mapping) Set(km models.KeywordMap) {
	m.mu.Lock()
	m.km = km
	m.mu.Unlock()
}

// Calls returns how many times Get was called.
func (m *Mapping) Calls() int {
	return int(m.calls.Load())
}

// ParseDocument parses src as a same-origin test document.
func ParseDocument(t *testing.T, src string) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString(src, "https://example.test")
	if err != nil {
		t.Fatalf("failed to parse document: %v", err)
	}
	return doc
}

// TestDB creates a test database connection and returns a cleanup function.
// Skips the test unless TEST_DATABASE_URL is set.
func TestDB(t *testing.T) (*db.DB, func()) {
	t.Helper()

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("Skipping integration test: TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	database, err := db.New(ctx, connString)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	// Run migrations
	if err := database.RunMigrations(connString); err != nil {
		database.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	cleanup := func() {
		// Clean up test data
		database.Pool.Exec(ctx, "DELETE FROM keyword_hits")
		database.Pool.Exec(ctx, "DELETE FROM keyword_pairs")
		database.Close()
	}

	return database, cleanup
}
