package models

import (
	"fmt"
	"math"
	"time"
)

// Metadata holds platform-specific attributes (channel, labels, commit sha).
// The schema is open: callers must check presence before use.
type Metadata map[string]any

// Has reports whether key is present, even with a nil value.
func (m Metadata) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// String returns the value at key when it is a non-empty string.
func (m Metadata) String(key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, s != ""
	case fmt.Stringer:
		return s.String(), true
	default:
		return "", false
	}
}

// StringOr returns the string at key or fallback.
func (m Metadata) StringOr(key, fallback string) string {
	if s, ok := m.String(key); ok {
		return s
	}
	return fallback
}

// Int returns the value at key as an int. JSON decoding yields float64 and
// YAML yields int, so both are accepted; fractional floats are rejected.
func (m Metadata) Int(key string) (int, bool) {
	switch n := m[key].(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

// Strings returns a list value such as issue labels.
func (m Metadata) Strings(key string) ([]string, bool) {
	switch v := m[key].(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// Time returns a timestamp stored either as time.Time or RFC 3339 text.
func (m Metadata) Time(key string) (time.Time, bool) {
	switch v := m[key].(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	default:
		return time.Time{}, false
	}
}
