package keywords

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"livesub/internal/models"
)

// Decode parses a `{"source": "replacement"}` document. Entries with an empty
// key or a non-string value are left out and their keys returned in skipped.
func Decode(data []byte) (km models.KeywordMap, skipped []string, err error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, nil, ErrNotObject
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, nil, fmt.Errorf("failed to decode keyword mapping: %w", err)
	}

	km = make(models.KeywordMap, len(raw))
	for k, v := range raw {
		var val any
		if k == "" || json.Unmarshal(v, &val) != nil {
			skipped = append(skipped, k)
			continue
		}
		s, ok := val.(string)
		if !ok {
			skipped = append(skipped, k)
			continue
		}
		km[k] = s
	}
	sort.Strings(skipped)
	return km, skipped, nil
}

// Encode serialises km for the shared cache.
func Encode(km models.KeywordMap) ([]byte, error) {
	return json.Marshal(km)
}
