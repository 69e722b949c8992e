package models

import "time"

// Components that perform substitutions, used as hit labels.
const (
	ComponentWatcher   = "watcher"
	ComponentDebouncer = "debouncer"
	ComponentBatch     = "batch"
	ComponentAPI       = "api"
)

// KeywordHit represents a per-keyword substitution count by component.
type KeywordHit struct {
	Keyword    string    `json:"keyword"`
	Component  string    `json:"component"`
	Count      int64     `json:"count"`
	LastSeenAt time.Time `json:"last_seen_at"`
}
