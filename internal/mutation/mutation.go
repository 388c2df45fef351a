// Package mutation implements optimistic status moves with undo on top of a
// collection container. A move posts one update request, patches the local
// view, summary buckets and undo stack from the server's answer, and then
// force-refreshes the container to reconcile server-computed fields.
package mutation

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/h0rv/colsync/internal/collection"
	"github.com/h0rv/colsync/internal/domain"
	"github.com/h0rv/colsync/internal/query"
	"github.com/h0rv/colsync/internal/slug"
	"github.com/h0rv/colsync/internal/store"
	"github.com/h0rv/colsync/internal/transport"
)

// Defaults for Config.
const (
	DefaultPath         = "/terms/update"
	DefaultTermField    = "term"
	DefaultStatusField  = "status"
	DefaultSummaryField = "summary"
)

// Config describes the update endpoint of a container.
type Config struct {
	Path         string
	TermField    string
	StatusField  string
	SummaryField string
	// Scope is sent as query parameters with every explicit move.
	Scope domain.Values
	// ScopeKeys are copied from the current groups (or params) into the
	// query parameters of explicit moves.
	ScopeKeys []string
}

// Target is what a move applies to: One, Many or Bulk.
type Target interface {
	target()
}

// One moves a single item. Undo marks the move as a reversal, which keeps
// it off the undo stack.
type One struct {
	Item domain.Item
	Undo bool
}

// Many moves each listed item.
type Many struct {
	Items []domain.Item
}

// Bulk moves every item matching the container's current params, groups
// and filters to Status. The server decides which rows are affected.
type Bulk struct {
	Status any
}

func (One) target()  {}
func (Many) target() {}
func (Bulk) target() {}

// Result describes an applied move.
type Result struct {
	// Moved is the server answer: the moved items with their previous status.
	Moved []domain.Item
	// Summary is the recomputed bucket list, nil when the container has none.
	Summary []domain.Bucket
	// Slugs are the group slugs of the destination buckets whose indexes
	// were reset.
	Slugs []string
	// Undos is the undo stack after the move.
	Undos []domain.Item
	// Refresh is the outcome of the reconciling fetch.
	Refresh domain.Outcome
}

// Engine moves items of one container.
type Engine struct {
	c   *collection.Container
	cfg Config
}

// New creates a move engine for c.
func New(c *collection.Container, cfg Config) *Engine {
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.TermField == "" {
		cfg.TermField = DefaultTermField
	}
	if cfg.StatusField == "" {
		cfg.StatusField = DefaultStatusField
	}
	if cfg.SummaryField == "" {
		cfg.SummaryField = DefaultSummaryField
	}
	return &Engine{c: c, cfg: cfg}
}

// Container returns the container the engine moves items of.
func (e *Engine) Container() *collection.Container { return e.c }

// StatusField is the item field holding the bucket status.
func (e *Engine) StatusField() string { return e.cfg.StatusField }

// Buckets returns the summary last reported by the server, nil when the
// container has none.
func (e *Engine) Buckets() []domain.Bucket {
	list, ok := e.c.Snapshot().Extra[e.cfg.SummaryField].([]any)
	if !ok {
		return nil
	}
	return toBuckets(list)
}

// Move applies t. Validation errors are returned before any network call.
// A failed update request sets the container status to error.
func (e *Engine) Move(ctx context.Context, t Target) (Result, error) {
	items, undo, err := e.validate(t)
	if err != nil {
		return Result{}, err
	}

	body, opts := e.request(t, items)
	raw, err := e.c.Transport().Post(ctx, e.cfg.Path, body, opts)
	var moved []domain.Item
	if err == nil {
		var res domain.ListResult
		if res, err = domain.DecodeList(raw); err == nil {
			moved = res.Items
		}
	}
	e.c.Observer().Moved(e.c.Name(), len(moved), undo, err)
	if err != nil {
		e.c.Logger().Error("move failed", "store", e.c.Name(), "error", err)
		e.c.Update(func(st *store.State) {
			st.Status = domain.StatusError
			st.Err = err
		})
		return Result{}, err
	}

	var destinations []any
	switch t := t.(type) {
	case Bulk:
		for range moved {
			destinations = append(destinations, t.Status)
		}
	default:
		for _, item := range items {
			destinations = append(destinations, item[e.cfg.StatusField])
		}
	}

	res := Result{Moved: moved}
	e.c.Update(func(st *store.State) {
		res.Undos = e.applyUndos(st, moved, undo)
		res.Summary = e.applySummary(st, moved, destinations)
		res.Slugs = e.resetBuckets(st, destinations)
		e.dropMoved(st, moved)
	})
	e.c.Logger().Info("moved", "store", e.c.Name(), "terms", len(moved), "undo", undo)

	res.Refresh, err = e.c.Fetch(ctx, domain.ModeForce)
	if err != nil {
		return res, fmt.Errorf("refresh after move: %w", err)
	}
	return res, nil
}

// Targets builds a move of the cached items with the given ids to status.
// A single id yields One, several yield Many.
func (e *Engine) Targets(ids []string, status any) (Target, error) {
	if len(ids) == 0 {
		return nil, domain.ErrNoTerm
	}
	snap := e.c.Snapshot()
	items := make([]domain.Item, 0, len(ids))
	for _, id := range ids {
		item, ok := snap.Data[id]
		if !ok {
			return nil, fmt.Errorf("%s %q is not loaded", e.c.ObjectName(), id)
		}
		item[e.cfg.StatusField] = status
		items = append(items, item)
	}
	if len(items) == 1 {
		return One{Item: items[0]}, nil
	}
	return Many{Items: items}, nil
}

// Undo re-moves the most recent undo entry back to its previous status.
func (e *Engine) Undo(ctx context.Context) (Result, error) {
	var last domain.Item
	e.c.Update(func(st *store.State) {
		if n := len(st.Undos); n > 0 {
			last = st.Undos[n-1]
			st.Undos = st.Undos[:n-1]
		}
	})
	if last == nil {
		return Result{}, domain.ErrNothingToUndo
	}

	res, err := e.Move(ctx, One{Item: last, Undo: true})
	if err != nil && len(res.Moved) == 0 {
		e.c.Update(func(st *store.State) { st.Undos = append(st.Undos, last) })
	}
	return res, err
}

func (e *Engine) validate(t Target) ([]domain.Item, bool, error) {
	switch t := t.(type) {
	case One:
		if err := e.validItem(t.Item); err != nil {
			return nil, false, err
		}
		return []domain.Item{t.Item}, t.Undo, nil
	case Many:
		if len(t.Items) == 0 {
			return nil, false, domain.ErrNoTerm
		}
		for _, item := range t.Items {
			if err := e.validItem(item); err != nil {
				return nil, false, err
			}
		}
		return t.Items, false, nil
	case Bulk:
		if t.Status == nil {
			return nil, false, domain.ErrNoBucket
		}
		return nil, false, nil
	}
	return nil, false, fmt.Errorf("unsupported move target %T", t)
}

func (e *Engine) validItem(item domain.Item) error {
	term, ok := item[e.cfg.TermField]
	if !ok || term == nil || term == "" {
		return domain.ErrNoTerm
	}
	if _, ok := item[e.cfg.StatusField]; !ok {
		return domain.ErrNoBucket
	}
	return nil
}

// request builds the update body. Explicit moves send the items as JSON
// with the configured scope; bulk moves send the destination status as
// plain text with the full query context as parameters.
func (e *Engine) request(t Target, items []domain.Item) (any, transport.PostOptions) {
	params, groups, filters := e.c.Context()

	if b, ok := t.(Bulk); ok {
		return slug.String(b.Status), transport.PostOptions{
			Params:      domain.Merge(e.cfg.Scope, query.BuildParams(params, groups, filters)),
			ContentType: transport.ContentTypeText,
		}
	}

	scope := e.cfg.Scope.Clone()
	for _, key := range e.cfg.ScopeKeys {
		if v, ok := groups.Get(key); ok {
			scope.Set(key, v)
		} else if v, ok := params.Get(key); ok {
			scope.Set(key, v)
		}
	}
	return items, transport.PostOptions{Params: scope}
}

// applyUndos removes entries superseded by the moved terms and, unless the
// move is itself an undo, appends the moved entries.
func (e *Engine) applyUndos(st *store.State, moved []domain.Item, undo bool) []domain.Item {
	terms := e.terms(moved)
	stack := slices.DeleteFunc(slices.Clone(st.Undos), func(u domain.Item) bool {
		return slices.Contains(terms, slug.String(u[e.cfg.TermField]))
	})
	if !undo {
		for _, item := range moved {
			stack = append(stack, item.Clone())
		}
	}
	st.Undos = stack

	out := make([]domain.Item, len(stack))
	for i, u := range stack {
		out[i] = u.Clone()
	}
	return out
}

// applySummary decrements the bucket of each moved item's previous status
// and increments each destination bucket.
func (e *Engine) applySummary(st *store.State, moved []domain.Item, destinations []any) []domain.Bucket {
	list, ok := st.Extra[e.cfg.SummaryField].([]any)
	if !ok {
		return nil
	}
	buckets := make([]any, len(list))
	for i, el := range list {
		buckets[i] = domain.CloneValue(el)
	}

	adjust := func(status any, delta float64) {
		key := slug.String(status)
		for _, el := range buckets {
			b, ok := el.(map[string]any)
			if !ok || slug.String(b["status"]) != key {
				continue
			}
			b["count"] = count(b["count"]) + delta
		}
	}
	for _, item := range moved {
		adjust(item[e.cfg.StatusField], -1)
	}
	for _, status := range destinations {
		adjust(status, 1)
	}
	st.Extra[e.cfg.SummaryField] = buckets
	return toBuckets(buckets)
}

func toBuckets(list []any) []domain.Bucket {
	out := make([]domain.Bucket, 0, len(list))
	for _, el := range list {
		if b, ok := el.(map[string]any); ok {
			out = append(out, domain.Bucket{Status: b["status"], Count: int(count(b["count"]))})
		}
	}
	return out
}

// resetBuckets drops the indexes of the destination buckets. A bucket slug
// is the current group slug with its final segment replaced by the status.
func (e *Engine) resetBuckets(st *store.State, destinations []any) []string {
	group := st.GroupSlug()
	var slugs []string
	for _, status := range destinations {
		s := slug.ReplaceLast(group, slug.String(status))
		if slices.Contains(slugs, s) {
			continue
		}
		slugs = append(slugs, s)
		st.ResetIndex(s)
	}
	return slugs
}

func (e *Engine) dropMoved(st *store.State, moved []domain.Item) {
	terms := e.terms(moved)
	st.View = slices.DeleteFunc(st.View, func(item domain.Item) bool {
		return slices.Contains(terms, slug.String(item[e.cfg.TermField]))
	})
}

func (e *Engine) terms(items []domain.Item) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, slug.String(item[e.cfg.TermField]))
	}
	return out
}

func count(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	}
	return 0
}
