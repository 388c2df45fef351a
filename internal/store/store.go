// Package store provides the normalized in-memory state of one collection
// container: a flat item cache, per-group indexes holding cached filter
// views, the current query state, and the undo stack. Every transition runs
// under the store lock so that concurrent network completions are applied
// one at a time, in completion order.
package store

import (
	"slices"
	"sync"

	"github.com/h0rv/colsync/internal/domain"
	"github.com/h0rv/colsync/internal/query"
	"github.com/h0rv/colsync/internal/slug"
)

// IDFunc extracts an item's identity. ok is false when the item has none;
// an id of "0" is a valid identity.
type IDFunc func(domain.Item) (id string, ok bool)

// FieldID returns an IDFunc reading the dotted field path.
func FieldID(path string) IDFunc {
	return func(item domain.Item) (string, bool) {
		v, ok := item.Lookup(path)
		if !ok || v == nil {
			return "", false
		}
		id := slug.String(v)
		if id == "" {
			return "", false
		}
		return id, true
	}
}

// DefaultIDField is read when no IDFunc is configured.
const DefaultIDField = "_id"

// Index is the cache partition of one group slug.
type Index struct {
	Data  map[string]domain.Item
	Views map[string]*View
}

// View is a cached filter result inside an index.
type View struct {
	Meta map[string]any
	IDs  []string
}

// Defaults are the query state a container was built with.
type Defaults struct {
	Filters domain.Values
	Groups  domain.Values
	Params  domain.Values
}

// State is one container's data. Data aliases the active group's index data
// once a list has been filled.
type State struct {
	Status   domain.Status
	Data     map[string]domain.Item
	View     []domain.Item
	Selected domain.Item
	Indexes  map[string]*Index
	Checked  []string

	Filters domain.Values
	Groups  domain.Values
	Params  domain.Values
	Query   string

	Defaults Defaults

	// Extra receives envelope fields beside the item list (summary,
	// pagination, ...). Core field names are never written here.
	Extra map[string]any
	// Undos is the move undo stack, oldest first.
	Undos []domain.Item
	// Err is the last transport failure.
	Err error
}

// Field names accepted by Clean.
const (
	FieldStatus   = "status"
	FieldData     = "data"
	FieldView     = "view"
	FieldSelected = "selected"
	FieldIndexes  = "indexes"
	FieldChecked  = "checked"
	FieldExtra    = "extra"
	FieldUndos    = "undos"
)

// reserved lists names a response envelope may not write into Extra.
var reserved = map[string]bool{
	"cache": true, "status": true, "data": true, "view": true, "selected": true,
	"indexes": true, "checked": true, "filters": true, "groups": true,
	"params": true, "query": true, "defaults": true, "undos": true,
}

// GroupSlug returns the slug of the current groups.
func (s *State) GroupSlug() string { return slug.Of(s.Groups) }

// FilterSlug returns the slug of the current filters.
func (s *State) FilterSlug() string { return slug.Of(s.Filters) }

// Lookup resolves a dotted path inside Extra (e.g. "pagination.next").
func (s *State) Lookup(path string) (any, bool) {
	return domain.Item(s.Extra).Lookup(path)
}

// index returns the index of group, creating it when missing.
func (s *State) index(group string) *Index {
	idx, ok := s.Indexes[group]
	if !ok {
		idx = newIndex()
		s.Indexes[group] = idx
	}
	return idx
}

func (s *State) resetQuery() {
	s.Query = query.Canonical(s.Groups, s.Filters)
}

func newIndex() *Index {
	return &Index{Data: make(map[string]domain.Item), Views: make(map[string]*View)}
}

// ResetIndex replaces the index of group with an empty one.
func (s *State) ResetIndex(group string) {
	s.Indexes[group] = newIndex()
}

// Store manages the state of one container.
type Store struct {
	mu    sync.Mutex
	state State
	idOf  IDFunc
}

// New creates a store in its initial state. The query string is derived
// from the defaults so that re-applying an active filter is a no-op.
func New(defaults Defaults, idOf IDFunc) *Store {
	if idOf == nil {
		idOf = FieldID(DefaultIDField)
	}
	defaults = Defaults{
		Filters: defaults.Filters.Clone(),
		Groups:  defaults.Groups.Clone(),
		Params:  defaults.Params.Clone(),
	}
	s := &Store{idOf: idOf}
	s.state = State{
		Filters:  defaults.Filters.Clone(),
		Groups:   defaults.Groups.Clone(),
		Params:   defaults.Params.Clone(),
		Defaults: defaults,
	}
	s.clean(nil)
	s.state.resetQuery()
	return s
}

// ID returns the identity of item.
func (s *Store) ID(item domain.Item) (string, bool) {
	if item == nil {
		return "", false
	}
	return s.idOf(item)
}

// Update runs fn with exclusive access to the state.
func (s *Store) Update(fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

// Inspect runs fn with exclusive access to the state. fn must not mutate it.
func (s *Store) Inspect(fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

// Snapshot returns a deep copy of the state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Status returns the current status.
func (s *Store) Status() domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Status
}

// Load marks the container as loading.
func (s *Store) Load() {
	s.Update(func(st *State) { st.Status = domain.StatusLoading })
}

// Check marks id for batch resolution. It is a no-op unless the container
// is idle, the id is not cached and not already marked.
func (s *Store) Check(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &s.state
	if id == "" || st.Status != domain.StatusIdle {
		return false
	}
	if _, ok := st.Data[id]; ok {
		return false
	}
	if slices.Contains(st.Checked, id) {
		return false
	}
	st.Checked = append(st.Checked, id)
	return true
}

// ApplyFilter applies a partial update to params, groups or filters, in
// that priority, and reports whether anything changed. Each key goes to the
// first layer that already holds it; with easy set, unknown keys become new
// filters. A value counts as changed only when its string form differs from
// the URI-decoded incoming value. An empty update resets the filters to
// their defaults. The query string is recomputed only on change.
func (s *Store) ApplyFilter(update domain.Values, easy bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &s.state

	diffs := st.Query == ""
	check := func(target *domain.Values, key string, value any, ez bool) bool {
		current, found := target.Get(key)
		if !ez && !found {
			return false
		}
		if found && slug.String(current) == query.Decode(slug.String(value)) {
			return true
		}
		target.Set(key, domain.CloneValue(value))
		diffs = true
		return found
	}

	if len(update) > 0 {
		for _, f := range update {
			if check(&st.Params, f.Key, f.Value, false) {
				continue
			}
			if check(&st.Groups, f.Key, f.Value, false) {
				continue
			}
			check(&st.Filters, f.Key, f.Value, easy)
		}
	} else {
		diffs = true
		st.Filters = st.Defaults.Filters.Clone()
	}

	if diffs {
		st.resetQuery()
	}
	return diffs
}

// ResetGroups restores the default groups. Cached data is left alone; later
// fetches simply address a different group slug.
func (s *Store) ResetGroups() {
	s.Update(func(st *State) {
		st.Groups = st.Defaults.Groups.Clone()
		st.resetQuery()
	})
}

// Context returns copies of the current params, groups and filters.
func (s *Store) Context() (params, groups, filters domain.Values) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Params.Clone(), s.state.Groups.Clone(), s.state.Filters.Clone()
}

// Lookup returns the item cached for id in the current group's index.
func (s *Store) Lookup(id string) (domain.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.state.Indexes[s.state.GroupSlug()]
	if !ok {
		return nil, false
	}
	item, ok := idx.Data[id]
	return item, ok
}

// CachedView materializes the cached view of the current group and filter
// context. It reports false when no view is cached, the view is empty, or
// any of its items has since been evicted from the index.
func (s *Store) CachedView() (domain.ListResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.state.Indexes[s.state.GroupSlug()]
	if !ok {
		return domain.ListResult{}, false
	}
	view, ok := idx.Views[s.state.FilterSlug()]
	if !ok || len(view.IDs) == 0 {
		return domain.ListResult{}, false
	}
	items := make([]domain.Item, 0, len(view.IDs))
	for _, id := range view.IDs {
		item, ok := idx.Data[id]
		if !ok {
			return domain.ListResult{}, false
		}
		items = append(items, item)
	}
	meta := make(map[string]any, len(view.Meta))
	for k, v := range view.Meta {
		meta[k] = domain.CloneValue(v)
	}
	return domain.ListResult{Items: items, Meta: meta, Cached: true}, true
}

// MissingChecked returns the checked ids absent from the current group's index.
func (s *Store) MissingChecked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.state.Indexes[s.state.GroupSlug()]
	var missing []string
	for _, id := range s.state.Checked {
		if idx != nil {
			if _, ok := idx.Data[id]; ok {
				continue
			}
		}
		missing = append(missing, id)
	}
	return missing
}

// BeginList records a pending list fetch.
func (s *Store) BeginList() {
	s.Update(func(st *State) {
		if len(st.Checked) > 0 {
			return
		}
		st.Status = domain.StatusLoading
	})
}

// BeginOne records a pending single-item fetch.
func (s *Store) BeginOne() {
	s.Update(func(st *State) {
		if len(st.Checked) > 0 {
			return
		}
		st.Status = domain.StatusLoadingOne
	})
}

// FillOne merges a fetched item into the flat cache and the current group's
// index, and replaces it in the view without moving it. A nil item clears
// the selection. Checked ids never override the selection.
func (s *Store) FillOne(item domain.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &s.state
	st.Status = domain.StatusIdle
	if item == nil {
		st.Selected = nil
		return
	}

	id, ok := s.idOf(item)
	if !ok || !slices.Contains(st.Checked, id) {
		st.Selected = item
	}
	if !ok {
		return
	}

	idx := st.index(st.GroupSlug())
	idx.Data[id] = item
	st.Data[id] = item
	for i, v := range st.View {
		if vid, ok := s.idOf(v); ok && vid == id {
			st.View[i] = item
		}
	}
}

// FillList applies a list result. Envelope metadata is merged into Extra;
// items are added to the current group's index with first write winning, so
// optimistic edits survive a later fetch of the same id. The view is replaced
// and, unless the result came from the cache, recorded as the filter view.
func (s *Store) FillList(res domain.ListResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &s.state

	for k, v := range res.Meta {
		if reserved[k] {
			continue
		}
		st.Extra[k] = v
	}

	idx := st.index(st.GroupSlug())
	ids := make([]string, 0, len(res.Items))
	for _, item := range res.Items {
		id, ok := s.idOf(item)
		if !ok {
			continue
		}
		ids = append(ids, id)
		if _, exists := idx.Data[id]; !exists {
			idx.Data[id] = item
		}
	}
	st.Data = idx.Data
	st.View = append([]domain.Item(nil), res.Items...)
	st.Status = domain.StatusIdle
	st.Err = nil

	if res.Cached {
		return
	}
	meta := make(map[string]any, len(res.Meta))
	for k, v := range res.Meta {
		meta[k] = v
	}
	idx.Views[st.FilterSlug()] = &View{Meta: meta, IDs: ids}
}

// FillChecked completes a batch-check resolution.
func (s *Store) FillChecked() {
	s.Update(func(st *State) {
		st.Status = domain.StatusIdle
		st.Checked = nil
	})
}

// Settle returns the container to idle without touching data.
func (s *Store) Settle() {
	s.Update(func(st *State) {
		if st.Status != domain.StatusError {
			st.Status = domain.StatusIdle
		}
	})
}

// Fail records a transport failure.
func (s *Store) Fail(err error) {
	s.Update(func(st *State) {
		st.Status = domain.StatusError
		st.Err = err
	})
}

// Clean resets the named fields (all when none are given) to their initial
// values. Filters, groups, params, query and defaults are never touched.
func (s *Store) Clean(fields ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clean(fields)
}

func (s *Store) clean(fields []string) {
	want := func(name string) bool {
		return len(fields) == 0 || slices.Contains(fields, name)
	}
	st := &s.state
	if want(FieldStatus) {
		st.Status = domain.StatusIdle
		st.Err = nil
	}
	if want(FieldData) {
		st.Data = make(map[string]domain.Item)
	}
	if want(FieldView) {
		st.View = []domain.Item{}
	}
	if want(FieldSelected) {
		st.Selected = nil
	}
	if want(FieldIndexes) {
		st.Indexes = make(map[string]*Index)
	}
	if want(FieldChecked) {
		st.Checked = nil
	}
	if want(FieldExtra) {
		st.Extra = make(map[string]any)
	}
	if want(FieldUndos) {
		st.Undos = nil
	}
}

// Reset completely resets the store to its initial state, including the
// query state.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clean(nil)
	s.state.Filters = s.state.Defaults.Filters.Clone()
	s.state.Groups = s.state.Defaults.Groups.Clone()
	s.state.Params = s.state.Defaults.Params.Clone()
	s.state.resetQuery()
}

func (s *State) clone() State {
	out := *s
	out.Data = cloneItems(s.Data)
	out.View = make([]domain.Item, len(s.View))
	for i, item := range s.View {
		out.View[i] = item.Clone()
	}
	out.Selected = s.Selected.Clone()
	out.Indexes = make(map[string]*Index, len(s.Indexes))
	for k, idx := range s.Indexes {
		views := make(map[string]*View, len(idx.Views))
		for fk, v := range idx.Views {
			meta := make(map[string]any, len(v.Meta))
			for mk, mv := range v.Meta {
				meta[mk] = domain.CloneValue(mv)
			}
			views[fk] = &View{Meta: meta, IDs: append([]string(nil), v.IDs...)}
		}
		out.Indexes[k] = &Index{Data: cloneItems(idx.Data), Views: views}
	}
	out.Checked = append([]string(nil), s.Checked...)
	out.Filters = s.Filters.Clone()
	out.Groups = s.Groups.Clone()
	out.Params = s.Params.Clone()
	out.Defaults = Defaults{
		Filters: s.Defaults.Filters.Clone(),
		Groups:  s.Defaults.Groups.Clone(),
		Params:  s.Defaults.Params.Clone(),
	}
	out.Extra = make(map[string]any, len(s.Extra))
	for k, v := range s.Extra {
		out.Extra[k] = domain.CloneValue(v)
	}
	out.Undos = make([]domain.Item, len(s.Undos))
	for i, u := range s.Undos {
		out.Undos[i] = u.Clone()
	}
	return out
}

func cloneItems(m map[string]domain.Item) map[string]domain.Item {
	out := make(map[string]domain.Item, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}
	return out
}
