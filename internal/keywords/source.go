package keywords

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"livesub/internal/models"
)

//go:embed keywords.json
var bundled []byte

// maxMappingSize caps the response body read from a remote source.
const maxMappingSize = 8 << 20

// Source loads a keyword mapping.
type Source interface {
	Load(ctx context.Context) (models.KeywordMap, error)
}

// HTTPSource fetches the mapping from a URL.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource creates a source for url. A nil client gets a 10s timeout.
func NewHTTPSource(url string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSource{url: url, client: client}
}

// Load performs a GET and decodes the body.
func (s *HTTPSource) Load(ctx context.Context) (models.KeywordMap, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid keywords URL: %w", err)
	}
	req.Header.Set("User-Agent", "livesub/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch keywords: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch keywords: HTTP status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMappingSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read keywords: %w", err)
	}
	return decodeAndLog(data, s.url)
}

// FileSource reads the mapping from disk, or from the bundled default when
// path is empty.
type FileSource struct {
	path string
}

// NewFileSource creates a file source.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Load reads and decodes the file.
func (s *FileSource) Load(ctx context.Context) (models.KeywordMap, error) {
	if s.path == "" {
		return decodeAndLog(bundled, "bundled")
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keywords file: %w", err)
	}
	return decodeAndLog(data, s.path)
}

// PairLister is the storage the database source reads from.
type PairLister interface {
	ListEnabledKeywordPairs(ctx context.Context) ([]models.KeywordPair, error)
}

// DBSource builds the mapping from persisted keyword pairs.
type DBSource struct {
	db PairLister
}

// NewDBSource creates a database source.
func NewDBSource(db PairLister) *DBSource {
	return &DBSource{db: db}
}

// Load lists enabled pairs. Pairs with an empty source are skipped.
func (s *DBSource) Load(ctx context.Context) (models.KeywordMap, error) {
	pairs, err := s.db.ListEnabledKeywordPairs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list keyword pairs: %w", err)
	}
	km := make(models.KeywordMap, len(pairs))
	for _, p := range pairs {
		if p.Source == "" {
			slog.Warn("skipping keyword pair", "id", p.ID, "error", ErrMalformedEntry)
			continue
		}
		km[p.Source] = p.Replacement
	}
	return km, nil
}

// StaticSource serves a fixed mapping.
type StaticSource models.KeywordMap

// Load returns a copy of the mapping.
func (s StaticSource) Load(ctx context.Context) (models.KeywordMap, error) {
	return models.KeywordMap(s).Clone(), nil
}

// ChainSource tries each source in order and returns the first success.
type ChainSource []Source

// Load returns the first mapping that loads, or all errors joined.
func (c ChainSource) Load(ctx context.Context) (models.KeywordMap, error) {
	var errs []error
	for _, s := range c {
		km, err := s.Load(ctx)
		if err == nil {
			return km, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, ErrMappingUnavailable
	}
	return nil, errors.Join(errs...)
}

// OverlaySource lays fixed entries over a base source.
type OverlaySource struct {
	Base  Source
	Extra models.KeywordMap
}

// Load loads the base and merges Extra on top.
func (o OverlaySource) Load(ctx context.Context) (models.KeywordMap, error) {
	km, err := o.Base.Load(ctx)
	if err != nil {
		return nil, err
	}
	return km.Merge(o.Extra), nil
}

// LayeredSource merges optional layers over a required base. Later layers
// win. A layer that fails to load is logged and left out.
type LayeredSource struct {
	Base   Source
	Layers []Source
}

// Load loads the base and merges every layer that loads.
func (l LayeredSource) Load(ctx context.Context) (models.KeywordMap, error) {
	km, err := l.Base.Load(ctx)
	if err != nil {
		return nil, err
	}
	for _, layer := range l.Layers {
		extra, err := layer.Load(ctx)
		if err != nil {
			slog.Warn("skipping keyword layer", "error", err)
			continue
		}
		km = km.Merge(extra)
	}
	return km, nil
}

func decodeAndLog(data []byte, from string) (models.KeywordMap, error) {
	km, skipped, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", from, err)
	}
	if len(skipped) > 0 {
		slog.Warn("skipped keyword entries",
			"source", from,
			"keys", strings.Join(skipped, ","),
			"error", ErrMalformedEntry)
	}
	return km, nil
}
