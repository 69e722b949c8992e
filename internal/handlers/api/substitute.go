package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"livesub/internal/batch"
	"livesub/internal/dom"
	"livesub/internal/keywords"
	"livesub/internal/metrics"
	"livesub/internal/models"
	"livesub/internal/substitute"
	"livesub/internal/validation"
)

// SubstituteHandler runs one-shot substitutions that need no live session.
type SubstituteHandler struct {
	mapping     keywords.Mapping
	defaultMode substitute.Mode
	batchOpts   []batch.Option
}

// NewSubstituteHandler creates a new substitution handler. defaultMode
// applies to text requests that name no mode; batchOpts configure the
// scheduler used for whole documents.
func NewSubstituteHandler(mapping keywords.Mapping, defaultMode substitute.Mode, batchOpts ...batch.Option) *SubstituteHandler {
	return &SubstituteHandler{mapping: mapping, defaultMode: defaultMode, batchOpts: batchOpts}
}

// Substitute rewrites a single piece of text.
func (h *SubstituteHandler) Substitute(c fiber.Ctx) error {
	var body models.SubstituteRequest
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	mode := h.defaultMode
	if body.Mode != "" {
		m, err := substitute.ParseMode(body.Mode)
		if err != nil {
			return jsonError(c, fiber.StatusBadRequest, err.Error())
		}
		mode = m
	}

	km, err := h.mapping.Get(c.Context())
	if err != nil {
		return jsonError(c, fiber.StatusServiceUnavailable, "keyword mapping unavailable")
	}

	out, hits := substitute.ApplyRules(body.Text, substitute.Compile(km, mode))
	changed := out != body.Text
	if changed {
		metrics.Substituted(models.ComponentAPI, mode.String())
		metrics.RecordHits(models.ComponentAPI, hits)
	}
	if hits == nil {
		hits = []string{}
	}

	return jsonSuccess(c, models.SubstituteResponse{
		Text:    out,
		Changed: changed,
		Hits:    hits,
	})
}

// Rewrite runs a batch pass over an HTML document and its srcdoc frames.
// The rewritten HTML is returned as text/html with the pass statistics in
// headers, or inside the JSON envelope when format=json.
func (h *SubstituteHandler) Rewrite(c fiber.Ctx) error {
	mode := substitute.WordBoundary
	if q := c.Query("mode"); q != "" {
		m, err := substitute.ParseMode(q)
		if err != nil {
			return jsonError(c, fiber.StatusBadRequest, err.Error())
		}
		mode = m
	}

	origin, ok := validation.NormalizeOrigin(c.Query("origin"))
	if !ok {
		return jsonError(c, fiber.StatusBadRequest, "invalid origin")
	}

	doc, err := dom.Parse(bytes.NewReader(c.Body()), origin)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid document")
	}

	// The mapping is checked up front so an outage is reported instead of
	// silently returning the document unchanged.
	if _, err := h.mapping.Get(c.Context()); err != nil {
		if errors.Is(err, keywords.ErrMappingUnavailable) {
			return jsonError(c, fiber.StatusServiceUnavailable, "keyword mapping unavailable")
		}
		return jsonError(c, fiber.StatusInternalServerError, "failed to load keyword mapping")
	}

	opts := append([]batch.Option{batch.WithMode(mode)}, h.batchOpts...)
	res := batch.New(h.mapping, opts...).RunAll(c.Context(), doc)
	doc.SyncFrames()

	stats := models.BatchResponse{
		Units:   res.Units,
		Changed: res.Changed,
		Chunks:  res.Chunks,
		Frames:  res.Frames,
		Skipped: res.SkippedFrames,
	}

	if c.Query("format") == "json" {
		stats.HTML = doc.String()
		return jsonSuccess(c, stats)
	}

	c.Set("X-Livesub-Units", strconv.Itoa(stats.Units))
	c.Set("X-Livesub-Changed", strconv.Itoa(stats.Changed))
	c.Set("X-Livesub-Skipped-Frames", strconv.Itoa(stats.Skipped))
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(doc.String())
}
