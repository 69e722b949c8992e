package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"

	"livesub/internal/models"
)

// KeywordStore is the keyword supplier as seen by the admin API.
// *keywords.Store satisfies it.
type KeywordStore interface {
	Get(ctx context.Context) (models.KeywordMap, error)
	Current() models.KeywordMap
	FetchedAt() (time.Time, bool)
	Stale() bool
	Refresh(ctx context.Context) (models.KeywordMap, error)
	Expire()
}

// KeywordHandler exposes the keyword supplier's state.
type KeywordHandler struct {
	store KeywordStore
}

// NewKeywordHandler creates a new API keyword handler.
func NewKeywordHandler(store KeywordStore) *KeywordHandler {
	return &KeywordHandler{store: store}
}

// Show returns the current mapping, fetching it if none is loaded yet.
func (h *KeywordHandler) Show(c fiber.Ctx) error {
	km := h.store.Current()
	if km == nil {
		var err error
		if km, err = h.store.Get(c.Context()); err != nil {
			return jsonError(c, fiber.StatusServiceUnavailable, "keyword mapping unavailable")
		}
	}
	return jsonSuccess(c, h.response(km))
}

// Refresh forces a fetch from the configured sources.
func (h *KeywordHandler) Refresh(c fiber.Ctx) error {
	km, err := h.store.Refresh(c.Context())
	if err != nil {
		return jsonError(c, fiber.StatusBadGateway, "keyword refresh failed: "+err.Error())
	}
	return jsonSuccess(c, h.response(km))
}

// Expire marks the cached mapping stale so the next read refetches it.
func (h *KeywordHandler) Expire(c fiber.Ctx) error {
	h.store.Expire()
	return jsonSuccess(c, fiber.Map{"message": "keyword cache expired"})
}

func (h *KeywordHandler) response(km models.KeywordMap) models.KeywordsResponse {
	resp := models.KeywordsResponse{
		Keywords: km,
		Count:    km.Len(),
		Stale:    h.store.Stale(),
	}
	if resp.Keywords == nil {
		resp.Keywords = models.KeywordMap{}
	}
	if at, ok := h.store.FetchedAt(); ok && !at.IsZero() {
		resp.FetchedAt = &at
	}
	return resp
}
