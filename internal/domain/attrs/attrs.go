// Package attrs holds the free-form string attributes every credential
// aggregate carries.
package attrs

import (
	"sort"
	"strings"
)

// Map stores custom attributes. Values are kept trimmed; a blank value is an
// instruction to remove the key, never a stored state.
type Map map[string]string

func (m Map) Get(k string) (string, bool) {
	v, ok := m[k]
	return v, ok
}

func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Clean normalizes an attribute value. A blank result means removal.
func Clean(v string) string { return strings.TrimSpace(v) }

// Diff computes the instructions that turn from into to: keys to set (new or
// changed values) and keys to remove. Removal keys come back sorted so event
// payloads stay deterministic.
func Diff(from, to Map) (set Map, removed []string) {
	for k, v := range to {
		if cur, ok := from[k]; !ok || cur != v {
			if set == nil {
				set = make(Map)
			}
			set[k] = v
		}
	}
	for k := range from {
		if _, ok := to[k]; !ok {
			removed = append(removed, k)
		}
	}
	sort.Strings(removed)
	return set, removed
}
