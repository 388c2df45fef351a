// Package slug derives the cache partition keys used by collection containers.
//
// A slug is the positional join of every value of a group or filter set. It
// is not a content hash: two sets with the same values in the same order map
// to the same slug, and distinct values that stringify identically collide.
// That collision risk is accepted.
package slug

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/h0rv/colsync/internal/domain"
)

const (
	// Separator joins the stringified values.
	Separator = "/"
	// Default is the slug of an empty value set.
	Default = "default"
)

// Of returns the slug for values.
func Of(values domain.Values) string {
	parts := make([]string, len(values))
	for i, f := range values {
		parts[i] = String(f.Value)
	}
	s := strings.Join(parts, Separator)
	if s == "" {
		return Default
	}
	return s
}

// ReplaceLast swaps the final segment of s for segment. It is used to derive
// the slug of a sibling status bucket from the current group slug.
func ReplaceLast(s, segment string) string {
	idx := strings.LastIndex(s, Separator)
	if idx < 0 {
		return segment
	}
	return s[:idx+1] + segment
}

// String renders a value the way query strings and slugs expect: nil as
// "null", booleans and numbers in their shortest form, lists comma-joined
// with nil elements left empty, and objects as JSON.
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case json.Number:
		return t.String()
	case []string:
		return strings.Join(t, ",")
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			if e != nil {
				parts[i] = String(e)
			}
		}
		return strings.Join(parts, ",")
	case domain.Values:
		return String(t.Map())
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
