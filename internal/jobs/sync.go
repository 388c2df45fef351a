// Package jobs runs server-side jobs that are started with one request and
// then polled until they complete, such as an external data sync.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/h0rv/colsync/internal/collection"
	"github.com/h0rv/colsync/internal/domain"
	"github.com/h0rv/colsync/internal/slug"
	"github.com/h0rv/colsync/internal/store"
	"github.com/h0rv/colsync/internal/transport"
)

// Defaults for Config.
const (
	DefaultAttempts = 120
	DefaultDelay    = 2 * time.Second
)

// Job statuses reported by the server.
const (
	StatusStarted = "started"
	StatusSucceed = "succeed"
)

// Side-channel fields written to the owning container.
const (
	FieldInProgress = "sync_in_progress"
	FieldDate       = "sync_date"
)

// Config describes a sync endpoint.
type Config struct {
	// Path receives the POST that starts the job; the job is then polled
	// at Path/<id>.
	Path     string
	Attempts int
	Delay    time.Duration
	// Body is posted when the job starts, merged under the Start payload.
	Body domain.Values
}

// Job is the final state of a sync job.
type Job struct {
	ID       string
	Status   string
	Date     any
	Attempts int
}

// Poller starts a sync job, waits for it and then force-refreshes the
// containers whose data it changes.
type Poller struct {
	t       transport.Transport
	cfg     Config
	owner   *collection.Container
	refresh []*collection.Container
	log     collection.Logger
}

// NewPoller creates a poller. owner, when non-nil, records the job progress
// in its side-channel fields.
func NewPoller(t transport.Transport, cfg Config, owner *collection.Container, refresh ...*collection.Container) *Poller {
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	cfg.Path = "/" + strings.Trim(cfg.Path, "/")
	p := &Poller{t: t, cfg: cfg, owner: owner, refresh: refresh, log: collection.NopLogger()}
	if owner != nil {
		p.log = owner.Logger()
	} else if len(refresh) > 0 {
		p.log = refresh[0].Logger()
	}
	return p
}

// Start posts the job and polls it until it succeeds, fails or the attempt
// cap is reached. An unrecognized status fails with ErrSyncFailed and an
// exhausted cap with ErrSyncTimeout.
func (p *Poller) Start(ctx context.Context, payload domain.Values) (Job, error) {
	p.record(func(extra map[string]any) { extra[FieldInProgress] = true })

	job, err := p.run(ctx, payload)
	if err != nil {
		p.record(func(extra map[string]any) { extra[FieldInProgress] = false })
		p.log.Error("sync failed", "path", p.cfg.Path, "error", err)
		return job, err
	}

	p.record(func(extra map[string]any) {
		extra[FieldInProgress] = false
		extra[FieldDate] = job.Date
	})
	p.log.Info("sync complete", "id", job.ID, "attempts", job.Attempts)

	if err := p.refreshAll(ctx); err != nil {
		return job, fmt.Errorf("refresh after sync: %w", err)
	}
	return job, nil
}

func (p *Poller) run(ctx context.Context, payload domain.Values) (Job, error) {
	raw, err := p.t.Post(ctx, p.cfg.Path, domain.Merge(p.cfg.Body, payload), transport.PostOptions{})
	if err != nil {
		return Job{}, err
	}
	job, err := parse(raw)
	if err != nil || job.Status == StatusSucceed {
		return job, err
	}
	p.log.Debug("sync started", "id", job.ID)

	timer := time.NewTimer(p.cfg.Delay)
	defer timer.Stop()
	for attempt := 1; attempt <= p.cfg.Attempts; attempt++ {
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-timer.C:
		}

		raw, err := p.t.Get(ctx, p.cfg.Path+"/"+job.ID, domain.Pairs("attempt", attempt))
		if err != nil {
			return job, err
		}
		next, err := parse(raw)
		if err != nil {
			return job, err
		}
		next.Attempts = attempt
		job = next
		if job.Status == StatusSucceed {
			return job, nil
		}
		timer.Reset(p.cfg.Delay)
	}
	return job, fmt.Errorf("sync %s after %d attempts: %w", job.ID, p.cfg.Attempts, domain.ErrSyncTimeout)
}

func parse(raw []byte) (Job, error) {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return Job{}, fmt.Errorf("decode sync response: %w", err)
	}
	id, ok := body["_id"]
	if !ok || id == nil || slug.String(id) == "" {
		return Job{}, domain.ErrNoSyncID
	}
	job := Job{ID: slug.String(id), Date: body["date"]}
	job.Status, _ = body["status"].(string)
	switch job.Status {
	case StatusStarted, StatusSucceed:
		return job, nil
	}
	return job, fmt.Errorf("sync %s status %q: %w", job.ID, job.Status, domain.ErrSyncFailed)
}

func (p *Poller) refreshAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range p.refresh {
		g.Go(func() error {
			_, err := c.Fetch(gctx, domain.ModeForce)
			if err != nil {
				return fmt.Errorf("%s: %w", c.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (p *Poller) record(fn func(extra map[string]any)) {
	if p.owner == nil {
		return
	}
	p.owner.Update(func(st *store.State) { fn(st.Extra) })
}
