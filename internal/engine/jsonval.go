package engine

import "encoding/json"

// Tolerant accessors over decoded JSON documents. The capture payloads are
// loosely typed and drift between frontend releases, so every lookup
// degrades to a default instead of failing: "absent" and "wrong type" are
// treated identically.

func asObject(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asArray(v any) ([]any, bool) {
	a, ok := v.([]any)
	return a, ok
}

// dig walks nested objects by key, returning nil if any hop is missing
// or not an object.
func dig(root any, keys ...string) any {
	cur := root
	for _, k := range keys {
		m, ok := asObject(cur)
		if !ok {
			return nil
		}
		cur = m[k]
	}
	return cur
}

func getString(m map[string]any, key string) string {
	s, ok := m[key].(string)
	if !ok {
		return ""
	}
	return s
}

// getStringPtr distinguishes a present string from an absent one.
func getStringPtr(m map[string]any, key string) *string {
	s, ok := m[key].(string)
	if !ok {
		return nil
	}
	return &s
}

// getInt64 reads a numeric field, accepting both json.Number (used by the
// envelope decoder) and float64 (plain json.Unmarshal).
func getInt64(m map[string]any, key string, def int64) int64 {
	switch n := m[key].(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return def
		}
		return i
	case float64:
		return int64(n)
	default:
		return def
	}
}
