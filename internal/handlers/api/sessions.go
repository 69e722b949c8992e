package api

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"livesub/internal/models"
	"livesub/internal/session"
	"livesub/internal/validation"
)

// SessionHandler manages live document sessions via JSON API.
type SessionHandler struct {
	sessions *session.Manager
}

// NewSessionHandler creates a new API session handler.
func NewSessionHandler(sessions *session.Manager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Create opens a session over the HTML request body.
func (h *SessionHandler) Create(c fiber.Ctx) error {
	origin, ok := validation.NormalizeOrigin(c.Query("origin"))
	if !ok {
		return jsonError(c, fiber.StatusBadRequest, "invalid origin")
	}

	s, err := h.sessions.Open(c.Context(), bytes.NewReader(c.Body()), origin)
	if err != nil {
		if errors.Is(err, session.ErrTooManySessions) {
			return jsonError(c, fiber.StatusServiceUnavailable, "too many live sessions")
		}
		return jsonError(c, fiber.StatusBadRequest, "invalid document")
	}

	return jsonCreated(c, s.Response())
}

// Get returns the session's current HTML.
func (h *SessionHandler) Get(c fiber.Ctx) error {
	s, status, msg := h.lookup(c)
	if s == nil {
		return jsonError(c, status, msg)
	}

	if c.Query("format") == "json" {
		return jsonSuccess(c, fiber.Map{
			"session": s.Response(),
			"html":    s.HTML(),
			"pending": s.PendingInputs(),
		})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(s.HTML())
}

// Delete closes a session.
func (h *SessionHandler) Delete(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid session id")
	}

	if err := h.sessions.Close(id); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return jsonError(c, fiber.StatusNotFound, "session not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "failed to close session")
	}

	return jsonSuccess(c, fiber.Map{"message": "session closed"})
}

// Event applies a host action to a session's document.
func (h *SessionHandler) Event(c fiber.Ctx) error {
	s, status, msg := h.lookup(c)
	if s == nil {
		return jsonError(c, status, msg)
	}

	var ev models.SessionEvent
	if err := json.Unmarshal(c.Body(), &ev); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := s.Apply(ev); err != nil {
		switch {
		case errors.Is(err, session.ErrUnknownEvent):
			return jsonError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, session.ErrTargetNotFound):
			return jsonError(c, fiber.StatusNotFound, err.Error())
		case errors.Is(err, session.ErrClosed):
			return jsonError(c, fiber.StatusGone, "session closed")
		}
		return jsonError(c, fiber.StatusUnprocessableEntity, err.Error())
	}

	return jsonSuccess(c, s.Response())
}

// lookup resolves the :id parameter. A nil session comes with the status
// and message to report.
func (h *SessionHandler) lookup(c fiber.Ctx) (*session.Session, int, string) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, fiber.StatusBadRequest, "invalid session id"
	}

	s, err := h.sessions.Get(id)
	if err != nil {
		return nil, fiber.StatusNotFound, "session not found"
	}
	return s, 0, ""
}
