package models

import "time"

// SubstituteRequest is the body of a text-only substitution call.
type SubstituteRequest struct {
	Text string `json:"text"`
	Mode string `json:"mode"`
}

// SubstituteResponse contains the rewritten text and the keys that matched.
type SubstituteResponse struct {
	Text    string   `json:"text"`
	Changed bool     `json:"changed"`
	Hits    []string `json:"hits"`
}

// SessionResponse describes a live document session.
type SessionResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	LastUsed  time.Time `json:"last_used"`
}

// SessionEvent is a host action replayed against a live session document.
type SessionEvent struct {
	Type   string `json:"type"`   // insert, input, click, scroll
	Target string `json:"target"` // element id; empty means body (insert) or window (scroll)
	HTML   string `json:"html,omitempty"`
	Value  string `json:"value,omitempty"`
}

// KeywordsResponse reports the supplier's current mapping.
type KeywordsResponse struct {
	Keywords  KeywordMap `json:"keywords"`
	Count     int        `json:"count"`
	FetchedAt *time.Time `json:"fetched_at"`
	Stale     bool       `json:"stale"`
}

// BatchResponse summarises a one-shot document rewrite.
type BatchResponse struct {
	Units   int    `json:"units"`
	Changed int    `json:"changed"`
	Chunks  int    `json:"chunks"`
	Frames  int    `json:"frames"`
	Skipped int    `json:"skipped_frames"`
	HTML    string `json:"html,omitempty"`
}
