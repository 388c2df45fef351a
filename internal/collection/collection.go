// Package collection provides the client-side state container for one
// remote collection. A Container fetches, normalizes, filters, groups and
// caches items, and coordinates list requests so that only the most recently
// issued one ever lands in state.
package collection

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/h0rv/colsync/internal/domain"
	"github.com/h0rv/colsync/internal/store"
	"github.com/h0rv/colsync/internal/transport"
)

// Config is the construction surface of a container.
type Config struct {
	// ObjectName is the resource path segment (e.g. "todos"). Required.
	ObjectName string
	// StoreName identifies the container. Defaults to the last segment of
	// ObjectName.
	StoreName string
	// IDParam sends single-item ids as a query parameter instead of a path
	// segment.
	IDParam string
	// IDsParam resolves checked ids with one list request carrying the
	// comma-joined ids instead of one request per id.
	IDsParam string

	DefaultParams  domain.Values
	DefaultFilters domain.Values
	DefaultGroups  domain.Values

	// IDFunc extracts item identity. Defaults to the "_id" field.
	IDFunc store.IDFunc
	// SelectCheck decides whether a cached item may be served without a
	// network call.
	SelectCheck func(domain.Item) bool
	// EasyFilterCheck lets Filter introduce filter keys absent from the
	// defaults.
	EasyFilterCheck bool
	// UseCache enables cached filter views. Defaults to true.
	UseCache *bool
}

// Bool returns a pointer to b, for Config.UseCache.
func Bool(b bool) *bool { return &b }

// Reducer is a synchronous state transition registered by name.
type Reducer func(st *store.State, payload any)

// Operation is an asynchronous operation registered by name.
type Operation func(ctx context.Context, c *Container, payload any) (any, error)

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the container logger.
func WithLogger(l Logger) Option {
	return func(c *Container) {
		if l != nil {
			c.log = l
		}
	}
}

// WithObserver sets the container metrics observer.
func WithObserver(o Observer) Option {
	return func(c *Container) {
		if o != nil {
			c.obs = o
		}
	}
}

// WithReducer registers a custom reducer.
func WithReducer(name string, r Reducer) Option {
	return func(c *Container) { c.reducers[name] = r }
}

// WithOperation registers a custom operation.
func WithOperation(name string, op Operation) Option {
	return func(c *Container) { c.operations[name] = op }
}

// Container is the state container of one collection.
type Container struct {
	cfg       Config
	name      string
	useCache  bool
	transport transport.Transport
	store     *store.Store
	log       Logger
	obs       Observer

	reducers   map[string]Reducer
	operations map[string]Operation

	// mu guards inflight. It is always taken before the store lock.
	mu       sync.Mutex
	inflight *request
}

// New creates a container for cfg backed by t.
func New(t transport.Transport, cfg Config, opts ...Option) (*Container, error) {
	cfg.ObjectName = strings.Trim(cfg.ObjectName, "/")
	if cfg.ObjectName == "" {
		return nil, domain.ErrObjectName
	}
	if t == nil {
		return nil, fmt.Errorf("collection %s: nil transport", cfg.ObjectName)
	}
	if cfg.StoreName == "" {
		cfg.StoreName = cfg.ObjectName[strings.LastIndex(cfg.ObjectName, "/")+1:]
	}
	if cfg.IDFunc == nil {
		cfg.IDFunc = store.FieldID(store.DefaultIDField)
	}

	c := &Container{
		cfg:        cfg,
		name:       cfg.StoreName,
		useCache:   cfg.UseCache == nil || *cfg.UseCache,
		transport:  t,
		log:        NopLogger(),
		obs:        noopObserver{},
		reducers:   make(map[string]Reducer),
		operations: make(map[string]Operation),
	}
	c.store = store.New(store.Defaults{
		Filters: cfg.DefaultFilters,
		Groups:  cfg.DefaultGroups,
		Params:  cfg.DefaultParams,
	}, cfg.IDFunc)
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name returns the store name.
func (c *Container) Name() string { return c.name }

// ObjectName returns the resource path.
func (c *Container) ObjectName() string { return c.cfg.ObjectName }

// Transport returns the container transport.
func (c *Container) Transport() transport.Transport { return c.transport }

// Logger returns the container logger.
func (c *Container) Logger() Logger { return c.log }

// Observer returns the container metrics observer.
func (c *Container) Observer() Observer { return c.obs }

// ID returns the identity of item.
func (c *Container) ID(item domain.Item) (string, bool) { return c.store.ID(item) }

// Snapshot returns a deep copy of the container state.
func (c *Container) Snapshot() store.State { return c.store.Snapshot() }

// Path looks up a dotted path in the container's side-channel fields.
func (c *Container) Path(path string) (any, bool) {
	var (
		v  any
		ok bool
	)
	c.store.Inspect(func(st *store.State) {
		v, ok = st.Lookup(path)
		v = domain.CloneValue(v)
	})
	return v, ok
}

// Context returns copies of the current params, groups and filters.
func (c *Container) Context() (params, groups, filters domain.Values) {
	return c.store.Context()
}

// Update runs fn with exclusive access to the container state.
func (c *Container) Update(fn func(*store.State)) { c.store.Update(fn) }

// Load marks the container as loading.
func (c *Container) Load() { c.store.Load() }

// Filter applies a partial filter update and reports whether the query
// changed. An empty update resets filters to their defaults.
func (c *Container) Filter(update domain.Values) bool {
	changed := c.store.ApplyFilter(update, c.cfg.EasyFilterCheck)
	if changed {
		var q string
		c.store.Inspect(func(st *store.State) { q = st.Query })
		c.log.Debug("filter changed", "store", c.name, "query", q)
	}
	return changed
}

// ResetGroups restores the default groups.
func (c *Container) ResetGroups() { c.store.ResetGroups() }

// Check marks id for batch resolution by Fetch(ctx, domain.ModeChecked).
func (c *Container) Check(id string) bool { return c.store.Check(id) }

// Deselect clears the selected item.
func (c *Container) Deselect() { c.store.FillOne(nil) }

// Clean resets the named state fields, or all of them.
func (c *Container) Clean(fields ...string) { c.store.Clean(fields...) }

// Reset clears all state and restores the default query state.
func (c *Container) Reset() {
	c.cancelInflight()
	c.store.Reset()
}

// Dispatch applies a registered reducer under the container lock.
func (c *Container) Dispatch(name string, payload any) error {
	r, ok := c.reducers[name]
	if !ok {
		return fmt.Errorf("collection %s: unknown reducer %q", c.name, name)
	}
	c.store.Update(func(st *store.State) { r(st, payload) })
	return nil
}

// Run invokes a registered operation.
func (c *Container) Run(ctx context.Context, name string, payload any) (any, error) {
	op, ok := c.operations[name]
	if !ok {
		return nil, fmt.Errorf("collection %s: unknown operation %q", c.name, name)
	}
	return op(ctx, c, payload)
}
