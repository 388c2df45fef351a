package collection

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/h0rv/colsync/internal/domain"
	"github.com/h0rv/colsync/internal/query"
)

// request is the owned handle of the in-flight list request.
type request struct {
	id     string
	cancel context.CancelFunc
}

// Request identifies a single item to fetch.
type Request struct {
	ID    string
	Force bool
}

// Select fetches id, serving it from the cache when possible.
func (c *Container) Select(ctx context.Context, id string) (domain.Item, error) {
	return c.FetchOne(ctx, Request{ID: id})
}

// Get fetches id from the network, bypassing the cache.
func (c *Container) Get(ctx context.Context, id string) (domain.Item, error) {
	return c.FetchOne(ctx, Request{ID: id, Force: true})
}

// FetchOne fetches a single item and merges it into state. Unless forced,
// an item cached in the current group is returned without a network call
// when it passes the configured select check. Concurrent calls never cancel
// each other.
func (c *Container) FetchOne(ctx context.Context, req Request) (domain.Item, error) {
	if req.ID == "" {
		return nil, domain.ErrEmptyID
	}
	start := time.Now()
	c.store.BeginOne()

	if !req.Force {
		if item, ok := c.store.Lookup(req.ID); ok && (c.cfg.SelectCheck == nil || c.cfg.SelectCheck(item)) {
			c.store.FillOne(item)
			c.obs.ItemFetched(c.name, true, time.Since(start), nil)
			return item, nil
		}
	}

	item, err := c.fetchItem(ctx, req.ID)
	c.obs.ItemFetched(c.name, false, time.Since(start), err)
	if err != nil {
		c.fail(ctx, "fetch item failed", err, "id", req.ID)
		return nil, err
	}
	c.store.FillOne(item)
	return item, nil
}

func (c *Container) fetchItem(ctx context.Context, id string) (domain.Item, error) {
	params, groups, _ := c.store.Context()
	args := query.BuildParams(params, groups, nil)
	path := c.cfg.ObjectName
	if c.cfg.IDParam != "" {
		args.Set(c.cfg.IDParam, id)
	} else {
		path += "/" + url.PathEscape(id)
	}

	raw, err := c.transport.Get(ctx, path, args)
	if err != nil {
		return nil, err
	}
	item, err := domain.DecodeOne(raw)
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w", c.cfg.ObjectName, id, err)
	}
	return item, nil
}

// Fetch fills the view for the current group and filter context.
//
// In ModeChecked the checked ids missing from the current group are fetched
// concurrently and the checked set is cleared. Otherwise a cached view is
// served when caching is enabled and mode is not ModeForce; a cache miss
// issues a list request, cancelling the one in flight. Results of a
// cancelled request are never applied and yield OutcomeSuperseded with a nil
// error.
func (c *Container) Fetch(ctx context.Context, mode domain.Mode) (domain.Outcome, error) {
	start := time.Now()
	outcome, err := c.fetch(ctx, mode)
	c.obs.ListFetched(c.name, outcome, time.Since(start), err)
	return outcome, err
}

func (c *Container) fetch(ctx context.Context, mode domain.Mode) (domain.Outcome, error) {
	if mode == domain.ModeChecked {
		return c.resolveChecked(ctx)
	}

	c.store.BeginList()
	if c.useCache && mode != domain.ModeForce {
		if c.serveCached() {
			c.log.Debug("cache hit", "store", c.name)
			return domain.OutcomeCacheHit, nil
		}
	}
	return c.fetchList(ctx)
}

// serveCached fills the view from the cache, cancelling any list request in
// flight so that it cannot overwrite the cached view later.
func (c *Container) serveCached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.store.CachedView()
	if !ok {
		return false
	}
	c.releaseLocked()
	c.store.FillList(res)
	return true
}

func (c *Container) fetchList(ctx context.Context) (domain.Outcome, error) {
	params, groups, filters := c.store.Context()
	reqCtx, req := c.replaceInflight(ctx)
	defer req.cancel()

	c.log.Debug("fetch list", "store", c.name, "request", req.id)
	raw, err := c.transport.Get(reqCtx, c.cfg.ObjectName, query.BuildParams(params, groups, filters))

	var res domain.ListResult
	if err == nil {
		res, err = domain.DecodeList(raw)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight != req {
		c.log.Debug("list request superseded", "store", c.name, "request", req.id)
		return domain.OutcomeSuperseded, nil
	}
	c.inflight = nil
	if err != nil {
		c.fail(ctx, "fetch list failed", err, "request", req.id)
		return domain.OutcomeNetwork, err
	}
	c.store.FillList(res)
	return domain.OutcomeNetwork, nil
}

// replaceInflight installs a new list request handle and cancels the
// previous one.
func (c *Container) replaceInflight(ctx context.Context) (context.Context, *request) {
	reqCtx, cancel := context.WithCancel(ctx)
	req := &request{id: uuid.NewString(), cancel: cancel}

	c.mu.Lock()
	defer c.mu.Unlock()
	if prev := c.inflight; prev != nil {
		c.log.Debug("cancel list request", "store", c.name, "request", prev.id)
		prev.cancel()
	}
	c.inflight = req
	return reqCtx, req
}

func (c *Container) cancelInflight() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseLocked()
}

func (c *Container) releaseLocked() {
	if c.inflight != nil {
		c.inflight.cancel()
		c.inflight = nil
	}
}

// resolveChecked fetches the checked ids missing from the current group.
func (c *Container) resolveChecked(ctx context.Context) (domain.Outcome, error) {
	missing := c.store.MissingChecked()
	if len(missing) == 0 {
		return domain.OutcomeNothingToCheck, nil
	}
	c.log.Debug("resolve checked", "store", c.name, "ids", len(missing))

	if c.cfg.IDsParam != "" {
		if err := c.fetchIDs(ctx, missing); err != nil {
			c.fail(ctx, "resolve checked failed", err)
			return domain.OutcomeChecked, err
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		for _, id := range missing {
			g.Go(func() error {
				_, err := c.FetchOne(gctx, Request{ID: id})
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return domain.OutcomeChecked, err
		}
	}

	c.store.FillChecked()
	return domain.OutcomeChecked, nil
}

// fetchIDs resolves ids with a single list request.
func (c *Container) fetchIDs(ctx context.Context, ids []string) error {
	params, groups, _ := c.store.Context()
	args := query.BuildParams(params, groups, nil)
	args.Set(c.cfg.IDsParam, strings.Join(ids, ","))

	raw, err := c.transport.Get(ctx, c.cfg.ObjectName, args)
	if err != nil {
		return err
	}
	res, err := domain.DecodeList(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", c.cfg.ObjectName, err)
	}
	for _, item := range res.Items {
		c.store.FillOne(item)
	}
	return nil
}

// fail records err in state. A cancelled caller context is not a transport
// failure: the container only returns to idle.
func (c *Container) fail(ctx context.Context, msg string, err error, args ...any) {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		c.log.Debug(msg, append(args, "store", c.name, "error", err)...)
		c.store.Settle()
		return
	}
	c.log.Error(msg, append(args, "store", c.name, "error", err)...)
	c.store.Fail(err)
}
