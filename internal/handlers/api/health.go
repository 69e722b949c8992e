package api

import (
	"github.com/gofiber/fiber/v3"
)

// SessionCounter reports how many live sessions exist.
type SessionCounter interface {
	Len() int
}

// HealthHandler reports service liveness.
type HealthHandler struct {
	store    KeywordStore
	sessions SessionCounter
}

// NewHealthHandler creates a new API health handler.
func NewHealthHandler(store KeywordStore, sessions SessionCounter) *HealthHandler {
	return &HealthHandler{store: store, sessions: sessions}
}

// Check returns 200 while the process is serving. A missing or stale
// mapping is reported but does not fail the check.
func (h *HealthHandler) Check(c fiber.Ctx) error {
	km := h.store.Current()
	_, loaded := h.store.FetchedAt()

	return c.JSON(fiber.Map{
		"status":   "ok",
		"sessions": h.sessions.Len(),
		"keywords": km.Len(),
		"loaded":   loaded,
		"stale":    h.store.Stale(),
	})
}
