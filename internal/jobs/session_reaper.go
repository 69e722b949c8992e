package jobs

import (
	"context"
	"log/slog"
	"time"
)

// Reaper is the part of the session manager the reaper needs.
type Reaper interface {
	Reap(maxIdle time.Duration) int
	Len() int
}

// SessionReaper closes live sessions that have been idle too long.
type SessionReaper struct {
	sessions Reaper
	interval time.Duration
	maxIdle  time.Duration
	logger   *slog.Logger
}

// NewSessionReaper creates a new session reaper.
func NewSessionReaper(sessions Reaper, interval, maxIdle time.Duration, logger *slog.Logger) *SessionReaper {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionReaper{
		sessions: sessions,
		interval: interval,
		maxIdle:  maxIdle,
		logger:   logger,
	}
}

// Start begins the background reap loop.
func (r *SessionReaper) Start(ctx context.Context) {
	r.logger.Info("session reaper started", "interval", r.interval, "max_idle", r.maxIdle)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("session reaper stopped")
			return
		case <-ticker.C:
			r.reapOnce()
		}
	}
}

// reapOnce closes idle sessions and returns how many it closed.
func (r *SessionReaper) reapOnce() int {
	n := r.sessions.Reap(r.maxIdle)
	if n > 0 {
		r.logger.Info("reaped idle sessions", "closed", n, "remaining", r.sessions.Len())
	}
	return n
}
