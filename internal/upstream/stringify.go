package upstream

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Stringify flattens an arbitrarily shaped upstream errors/messages value:
// arrays are joined with "; ", objects are represented by their "message"
// field (or compact JSON), scalars as text.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := Stringify(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	case map[string]any:
		if msg, ok := val["message"]; ok {
			if s := Stringify(msg); s != "" {
				return s
			}
		}
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(raw)
	default:
		return fmt.Sprint(val)
	}
}
