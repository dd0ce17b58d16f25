package db

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FlattenFields renders a decoded JSON object as string fields.
// Nil values and the skipped keys are dropped; nested values stay JSON-encoded.
func FlattenFields(rec map[string]any, skip ...string) map[string]string {
	out := make(map[string]string, len(rec))
	for k, v := range rec {
		if v == nil || contains(skip, k) {
			continue
		}
		out[k] = FieldString(v)
	}
	return out
}

// FieldString renders one decoded JSON value as a string.
func FieldString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case fmt.Stringer:
		return t.String()
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
