package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"livesub/internal/dom"
	"livesub/internal/keywords"
	"livesub/internal/metrics"
	"livesub/internal/trigger"
)

// Options configures the sessions a Manager opens. Zero durations select
// each component's default.
type Options struct {
	InputDelay     time.Duration
	ScrollDelay    time.Duration
	RescanInterval time.Duration
	MaxSessions    int // 0 means unlimited

	AfterFunc dom.AfterFunc // nil uses time.AfterFunc
	Now       func() time.Time
	Logger    *slog.Logger
}

// Manager owns the set of live sessions.
type Manager struct {
	mapping keywords.Mapping
	runner  trigger.Runner
	opts    Options

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// NewManager creates a manager whose sessions read keywords from mapping
// and start whole-document passes through runner.
func NewManager(mapping keywords.Mapping, runner trigger.Runner, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		mapping:  mapping,
		runner:   runner,
		opts:     opts,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Open parses r and starts a live session over it. The mapping is fetched
// first so the first insertions find it warm; a fetch failure is logged and
// the session starts anyway.
func (m *Manager) Open(ctx context.Context, r io.Reader, origin string) (*Session, error) {
	m.mu.Lock()
	full := m.opts.MaxSessions > 0 && len(m.sessions) >= m.opts.MaxSessions
	m.mu.Unlock()
	if full {
		return nil, ErrTooManySessions
	}

	if _, err := m.mapping.Get(ctx); err != nil {
		m.opts.Logger.Warn("opening session without keyword mapping", "error", err)
	}

	s, err := open(r, origin, m.mapping, m.runner, m.opts)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	metrics.SessionOpened()
	m.opts.Logger.Info("session opened", "session", s.ID.String(), "origin", origin)
	return s, nil
}

// Get returns a live session and marks it used.
func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch()
	return s, nil
}

// Close stops and forgets a session.
func (m *Manager) Close(id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	metrics.SessionClosed()
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Reap closes sessions unused for longer than maxIdle and returns how many
// it closed.
func (m *Manager) Reap(maxIdle time.Duration) int {
	cutoff := m.opts.Now().Add(-maxIdle)

	var idle []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.LastUsed().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Close()
		metrics.SessionClosed()
	}
	return len(idle)
}

// CloseAll stops every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[uuid.UUID]*Session)
	m.mu.Unlock()

	for _, s := range all {
		s.Close()
		metrics.SessionClosed()
	}
}
