// Package query merges container state into transport-ready parameters and
// renders canonical query strings.
package query

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/h0rv/colsync/internal/domain"
	"github.com/h0rv/colsync/internal/slug"
)

// BuildParams merges params < groups < filters. Structured values (objects
// and lists) are JSON-encoded so they survive a query string; nil values are
// kept as nil, which transports read as "no constraint" rather than unset.
//
// Filters override groups on equal keys, so callers must keep key names
// distinct across layers unless that override is intended.
func BuildParams(params, groups, filters domain.Values) domain.Values {
	merged := domain.Merge(params, groups, filters)
	for i, f := range merged {
		merged[i].Value = flatten(f.Value)
	}
	return merged
}

func flatten(v any) any {
	switch v.(type) {
	case nil, string, bool, float64, float32, int, int64, int32, uint, uint64, json.Number:
		return v
	}
	data, err := json.Marshal(v)
	if err != nil {
		return slug.String(v)
	}
	return string(data)
}

// Canonical renders the merged group and filter state as an ordered query
// string. Keys keep their insertion order and nil renders as "null", so the
// result is stable for identical state and cheap to compare.
func Canonical(groups, filters domain.Values) string {
	return encode(domain.Merge(groups, filters), false)
}

// Encode renders transport parameters as a query string in key order,
// omitting nil values.
func Encode(params domain.Values) string {
	return encode(params, true)
}

func encode(values domain.Values, skipNil bool) string {
	var b strings.Builder
	for _, f := range values {
		if skipNil && f.Value == nil {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(f.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(slug.String(f.Value)))
	}
	return b.String()
}

// Decode reverses URI encoding of a value that may have arrived straight
// from a query string. Malformed input is returned unchanged.
func Decode(s string) string {
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}

// ParseAssignments reads "key=value" pairs in order. Values that parse as
// JSON scalars (numbers, booleans, null) keep their type; anything else is
// a string.
func ParseAssignments(args []string) (domain.Values, error) {
	out := domain.Values{}
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		out.Set(key, ParseValue(raw))
	}
	return out, nil
}

// ParseValue converts user input into a parameter value.
func ParseValue(raw string) any {
	raw = strings.TrimSpace(raw)
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		switch v.(type) {
		case nil, bool, float64:
			return v
		}
	}
	return Decode(raw)
}
