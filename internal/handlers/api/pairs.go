package api

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"livesub/internal/db"
	"livesub/internal/models"
	"livesub/internal/validation"
)

// PairStore persists keyword pairs and their hit counts. *db.DB satisfies it.
type PairStore interface {
	ListKeywordPairs(ctx context.Context) ([]models.KeywordPair, error)
	GetKeywordPairByID(ctx context.Context, id uuid.UUID) (*models.KeywordPair, error)
	CreateKeywordPair(ctx context.Context, p *models.KeywordPair) error
	UpdateKeywordPair(ctx context.Context, id uuid.UUID, replacement string, enabled bool) (*models.KeywordPair, error)
	DeleteKeywordPair(ctx context.Context, id uuid.UUID) error
	GetAllKeywordHits(ctx context.Context) ([]models.KeywordHit, error)
}

// PairHandler handles keyword pair CRUD operations via JSON API. Changes
// expire the cached mapping so they are picked up on the next read.
type PairHandler struct {
	db    PairStore
	store KeywordStore
}

// NewPairHandler creates a new API pair handler.
func NewPairHandler(database PairStore, store KeywordStore) *PairHandler {
	return &PairHandler{db: database, store: store}
}

// List returns every stored pair.
func (h *PairHandler) List(c fiber.Ctx) error {
	pairs, err := h.db.ListKeywordPairs(c.Context())
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "failed to fetch keyword pairs")
	}
	if pairs == nil {
		pairs = []models.KeywordPair{}
	}
	return jsonSuccess(c, pairs)
}

// Get returns a single pair by ID.
func (h *PairHandler) Get(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid pair id")
	}

	pair, err := h.db.GetKeywordPairByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrKeywordPairNotFound) {
			return jsonError(c, fiber.StatusNotFound, "keyword pair not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "failed to fetch keyword pair")
	}

	return jsonSuccess(c, pair)
}

// Create stores a new pair.
func (h *PairHandler) Create(c fiber.Ctx) error {
	var body struct {
		Source      string `json:"source"`
		Replacement string `json:"replacement"`
		Enabled     *bool  `json:"enabled"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if valid, msg := validation.ValidateKeywordSource(body.Source); !valid {
		return jsonError(c, fiber.StatusBadRequest, msg)
	}

	pair := &models.KeywordPair{
		Source:      body.Source,
		Replacement: body.Replacement,
		Enabled:     body.Enabled == nil || *body.Enabled,
	}

	if err := h.db.CreateKeywordPair(c.Context(), pair); err != nil {
		if errors.Is(err, db.ErrDuplicateSource) {
			return jsonError(c, fiber.StatusConflict, "a pair with this source already exists")
		}
		return jsonError(c, fiber.StatusInternalServerError, "failed to create keyword pair")
	}

	h.store.Expire()
	return jsonCreated(c, pair)
}

// Update changes a pair's replacement and enabled flag.
func (h *PairHandler) Update(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid pair id")
	}

	var body struct {
		Replacement string `json:"replacement"`
		Enabled     bool   `json:"enabled"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	pair, err := h.db.UpdateKeywordPair(c.Context(), id, body.Replacement, body.Enabled)
	if err != nil {
		if errors.Is(err, db.ErrKeywordPairNotFound) {
			return jsonError(c, fiber.StatusNotFound, "keyword pair not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "failed to update keyword pair")
	}

	h.store.Expire()
	return jsonSuccess(c, pair)
}

// Delete removes a pair.
func (h *PairHandler) Delete(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid pair id")
	}

	if err := h.db.DeleteKeywordPair(c.Context(), id); err != nil {
		if errors.Is(err, db.ErrKeywordPairNotFound) {
			return jsonError(c, fiber.StatusNotFound, "keyword pair not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "failed to delete keyword pair")
	}

	h.store.Expire()
	return jsonSuccess(c, fiber.Map{"message": "keyword pair deleted"})
}

// Hits returns the persisted per-keyword hit counts.
func (h *PairHandler) Hits(c fiber.Ctx) error {
	hits, err := h.db.GetAllKeywordHits(c.Context())
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "failed to fetch keyword hits")
	}
	if hits == nil {
		hits = []models.KeywordHit{}
	}
	return jsonSuccess(c, hits)
}
