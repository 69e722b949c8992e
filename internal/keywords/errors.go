package keywords

import "errors"

// Mapping supplier error sentinels.
var (
	// ErrMappingUnavailable means no mapping could be loaded and none is cached.
	// Substitution passes treat it as "do nothing".
	ErrMappingUnavailable = errors.New("keyword mapping unavailable")

	// ErrMalformedEntry marks an entry whose key is empty or whose value is
	// not a string. Such entries are skipped.
	ErrMalformedEntry = errors.New("malformed keyword entry")

	// ErrNotObject is returned when the mapping document is not a JSON object.
	ErrNotObject = errors.New("keyword mapping must be a JSON object")
)
