package oracle

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeJSON tries to unmarshal the raw model output into T after stripping
// code fences and any prose surrounding the outermost JSON object.
func DecodeJSON[T any](raw string) (*T, error) {
	clean := sanitizeJSON(raw)
	var out T
	if err := json.Unmarshal([]byte(clean), &out); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	return &out, nil
}

// DecodeOr decodes the raw model output into T, substituting the given
// fallback value when the output cannot be parsed. The second return value
// reports whether the fallback was used, so call sites can surface degraded
// results in their trace.
func DecodeOr[T any](raw string, fallback T) (T, bool) {
	out, err := DecodeJSON[T](raw)
	if err != nil {
		return fallback, true
	}
	return *out, false
}

func sanitizeJSON(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = trimmed[3:]
		trimmed = strings.TrimPrefix(trimmed, "json")
		trimmed = strings.TrimPrefix(trimmed, "JSON")
		if idx := strings.Index(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}
	// Models often wrap the object in prose; keep the outermost braces only.
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		return trimmed[start : end+1]
	}
	return trimmed
}
