// Package domain defines the normalized types shared by every colsync layer.
// These types describe remote collections independent of any transport or UI.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Item is a single remote record as decoded from the transport.
type Item map[string]any

// Lookup resolves a dotted field path (e.g. "model._id") inside the item.
func (i Item) Lookup(path string) (any, bool) {
	if i == nil || path == "" {
		return nil, false
	}
	var current any = map[string]any(i)
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(current)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Clone returns a deep copy of the item.
func (i Item) Clone() Item {
	if i == nil {
		return nil
	}
	return Item(cloneMap(i))
}

// Status drives whether a consumer should render a spinner.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusLoading    Status = "loading"
	StatusLoadingOne Status = "loading_one"
	StatusError      Status = "error"
)

// Mode selects how a list fetch treats the cache.
type Mode string

const (
	ModeDefault Mode = ""
	ModeForce   Mode = "force"
	ModeChecked Mode = "checked"
)

// ParseMode maps user input onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return ModeDefault, nil
	case "force":
		return ModeForce, nil
	case "checked":
		return ModeChecked, nil
	}
	return ModeDefault, fmt.Errorf("unknown fetch mode %q", s)
}

// Outcome reports what a list fetch actually did.
type Outcome string

const (
	OutcomeNetwork        Outcome = "network"
	OutcomeCacheHit       Outcome = "cache_hit"
	OutcomeSuperseded     Outcome = "superseded"
	OutcomeChecked        Outcome = "checked"
	OutcomeNothingToCheck Outcome = "nothing_to_check"
)

// ListResult is the decoded body of a list request. Meta is nil when the
// server answered with a plain array and holds every top-level field except
// "results" when it answered with an envelope.
type ListResult struct {
	Items  []Item
	Meta   map[string]any
	Cached bool
}

// Enveloped reports whether the result carried metadata beside the items.
func (r ListResult) Enveloped() bool {
	return r.Meta != nil
}

// ResultsKey is the envelope field holding the item list.
const ResultsKey = "results"

// DecodeList decodes a list response body into a ListResult.
func DecodeList(raw []byte) (ListResult, error) {
	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		return ListResult{}, fmt.Errorf("decode list: %w", err)
	}
	switch v := body.(type) {
	case nil:
		return ListResult{}, nil
	case []any:
		return ListResult{Items: toItems(v)}, nil
	case map[string]any:
		res := ListResult{Meta: make(map[string]any, len(v))}
		for k, val := range v {
			if k == ResultsKey {
				if list, ok := val.([]any); ok {
					res.Items = toItems(list)
					continue
				}
			}
			res.Meta[k] = val
		}
		return res, nil
	}
	return ListResult{}, fmt.Errorf("decode list: unexpected %T body", body)
}

// DecodeOne decodes a single-item response. Envelopes are unwrapped through
// "results" and one-element lists through their first element. An empty
// list decodes to a nil item.
func DecodeOne(raw []byte) (Item, error) {
	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	if m, ok := body.(map[string]any); ok {
		if inner, ok := m[ResultsKey]; ok && inner != nil {
			body = inner
		}
	}
	if list, ok := body.([]any); ok {
		if len(list) == 0 {
			return nil, nil
		}
		body = list[0]
	}
	switch v := body.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return Item(v), nil
	}
	return nil, fmt.Errorf("decode item: unexpected %T body", body)
}

// Bucket is one status bucket of a collection summary.
type Bucket struct {
	Status any `json:"status"`
	Count  int `json:"count"`
}

func toItems(list []any) []Item {
	items := make([]Item, 0, len(list))
	for _, raw := range list {
		if m, ok := raw.(map[string]any); ok {
			items = append(items, Item(m))
		}
	}
	return items
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Item:
		return m, true
	}
	return nil, false
}
