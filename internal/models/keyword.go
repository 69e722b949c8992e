package models

import (
	"time"

	"github.com/google/uuid"
)

// KeywordMap maps a source term to its replacement. Keys are unique and
// non-empty; iteration order carries no meaning.
type KeywordMap map[string]string

// Len returns the number of entries, treating a nil map as empty.
func (m KeywordMap) Len() int {
	return len(m)
}

// Clone returns a shallow copy so callers can hold a snapshot while the
// supplier swaps in a refreshed map.
func (m KeywordMap) Clone() KeywordMap {
	if m == nil {
		return nil
	}
	out := make(KeywordMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge returns a new map holding m overlaid with other. Entries in other win.
func (m KeywordMap) Merge(other KeywordMap) KeywordMap {
	out := make(KeywordMap, len(m)+len(other))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// KeywordPair is a persisted source → replacement entry.
type KeywordPair struct {
	ID          uuid.UUID `json:"id"`
	Source      string    `json:"source"`
	Replacement string    `json:"replacement"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
