// Package app builds the runtime object graph from configuration: the
// transport, one container per resource, and the move, export and sync
// services layered on top of them.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/h0rv/colsync/internal/auth"
	"github.com/h0rv/colsync/internal/collection"
	"github.com/h0rv/colsync/internal/config"
	"github.com/h0rv/colsync/internal/domain"
	"github.com/h0rv/colsync/internal/export"
	"github.com/h0rv/colsync/internal/jobs"
	"github.com/h0rv/colsync/internal/metrics"
	"github.com/h0rv/colsync/internal/mutation"
	"github.com/h0rv/colsync/internal/predicate"
	"github.com/h0rv/colsync/internal/slug"
	"github.com/h0rv/colsync/internal/store"
	"github.com/h0rv/colsync/internal/transport"
)

// App is the wired set of services for one configuration.
type App struct {
	Config    config.Config
	Transport transport.Transport
	Registry  *collection.Registry
	Metrics   *metrics.Observer
	Logger    *slog.Logger

	movers    map[string]*mutation.Engine
	exporters map[string]*export.Exporter
	poller    *jobs.Poller
	sink      export.Sink
}

// Option configures New.
type Option func(*App)

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.Logger = l }
}

// WithTransport replaces the transport built from the config.
func WithTransport(t transport.Transport) Option {
	return func(a *App) { a.Transport = t }
}

// WithSink sends every export to s instead of the configured sinks.
func WithSink(s export.Sink) Option {
	return func(a *App) { a.sink = s }
}

// New wires cfg.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	a := &App{
		Config:    cfg,
		Registry:  collection.NewRegistry(),
		Metrics:   metrics.New(),
		movers:    make(map[string]*mutation.Engine),
		exporters: make(map[string]*export.Exporter),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.Logger == nil {
		a.Logger = NewLogger(os.Stderr, cfg.LogLevel)
	}

	if a.Transport == nil {
		t, err := newTransport(cfg)
		if err != nil {
			return nil, err
		}
		a.Transport = t
	}

	for _, r := range cfg.Resources {
		if err := a.addResource(ctx, r); err != nil {
			return nil, fmt.Errorf("resource %s: %w", r.StoreName(), err)
		}
	}

	if cfg.Sync != nil {
		a.poller = a.newPoller(*cfg.Sync)
	}
	return a, nil
}

// NewLogger returns a text logger at the named level. Unknown levels fall
// back to info.
func NewLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func newTransport(cfg config.Config) (transport.Transport, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base_url must be set")
	}
	token, err := auth.GetToken(cfg.Token, cfg.TokenCommand)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve token: %w", err)
	}

	switch cfg.Transport {
	case config.TransportGraphQL:
		return transport.NewGraphQL(cfg.BaseURL, token, cfg.Documents, &http.Client{Timeout: cfg.Timeout.Duration}), nil
	default:
		return transport.NewHTTP(cfg.BaseURL,
			transport.WithToken(token),
			transport.WithTimeout(cfg.Timeout.Duration),
			transport.WithEnvelope(cfg.Envelope),
		), nil
	}
}

func (a *App) addResource(ctx context.Context, r config.Resource) error {
	cc := collection.Config{
		ObjectName:      r.Object,
		StoreName:       r.StoreName(),
		IDParam:         r.IDParam,
		IDsParam:        r.IDsParam,
		DefaultParams:   r.Params,
		DefaultFilters:  r.Filters,
		DefaultGroups:   r.Groups,
		EasyFilterCheck: r.EasyFilter,
		UseCache:        r.Cache,
	}
	if r.IDField != "" {
		cc.IDFunc = store.FieldID(r.IDField)
	}
	if r.SelectCheck != "" {
		p, err := predicate.Compile(r.SelectCheck)
		if err != nil {
			return err
		}
		cc.SelectCheck = p.Func()
	}

	c, err := collection.New(a.Transport, cc,
		collection.WithLogger(a.Logger.With("store", r.StoreName())),
		collection.WithObserver(a.Metrics),
	)
	if err != nil {
		return err
	}
	if err := a.Registry.Register(c); err != nil {
		return err
	}

	if r.Move != nil {
		a.movers[c.Name()] = mutation.New(c, mutation.Config{
			Path:         r.Move.Path,
			TermField:    r.Move.TermField,
			StatusField:  r.Move.StatusField,
			SummaryField: r.Move.SummaryField,
			Scope:        r.Move.Scope,
			ScopeKeys:    r.Move.ScopeKeys,
		})
	}

	if r.Export != nil {
		sink, err := a.exportSink(ctx, *r.Export)
		if err != nil {
			return err
		}
		a.exporters[c.Name()] = export.New(a.Transport, c, r.Export.Path, r.Export.Name, sink)
	}
	return nil
}

func (a *App) exportSink(ctx context.Context, e config.Export) (export.Sink, error) {
	if a.sink != nil {
		return a.sink, nil
	}
	if e.Bucket == "" {
		return export.FileSink{Dir: e.Dir}, nil
	}
	return export.NewS3Sink(ctx, export.S3Config{
		Bucket:   e.Bucket,
		Prefix:   e.Prefix,
		Region:   e.Region,
		Endpoint: e.Endpoint,
	})
}

func (a *App) newPoller(s config.Sync) *jobs.Poller {
	owner, _ := a.Registry.Get(s.Store)
	var refresh []*collection.Container
	for _, name := range s.Refresh {
		if c, ok := a.Registry.Get(name); ok {
			refresh = append(refresh, c)
		}
	}
	return jobs.NewPoller(a.Transport, jobs.Config{
		Path:     s.Path,
		Attempts: s.Attempts,
		Delay:    s.Delay.Duration,
	}, owner, refresh...)
}

// Container returns the container named name.
func (a *App) Container(name string) (*collection.Container, error) {
	return a.Registry.Lookup(name)
}

// Mover returns the move engine of the named container.
func (a *App) Mover(name string) (*mutation.Engine, error) {
	if m, ok := a.movers[name]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("store %q has no move endpoint configured", name)
}

// Exporter returns the exporter of the named container.
func (a *App) Exporter(name string) (*export.Exporter, error) {
	if e, ok := a.exporters[name]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("store %q has no export configured", name)
}

// Poller returns the sync job poller.
func (a *App) Poller() (*jobs.Poller, error) {
	if a.poller == nil {
		return nil, errors.New("no sync job configured")
	}
	return a.poller, nil
}

// Title returns the display title of item in the named store: the
// configured title field, else the item id.
func (a *App) Title(name string, item domain.Item) string {
	r, _ := a.Config.Resource(name)
	if r.Title != "" {
		if v, ok := item.Lookup(r.Title); ok && v != nil {
			return slug.String(v)
		}
	}
	if c, ok := a.Registry.Get(name); ok {
		if id, ok := c.ID(item); ok {
			return id
		}
	}
	return ""
}

// URL returns the link of item in the named store, empty when the store
// has no url field or the item lacks it.
func (a *App) URL(name string, item domain.Item) string {
	r, _ := a.Config.Resource(name)
	if r.URL == "" {
		return ""
	}
	v, ok := item.Lookup(r.URL)
	if !ok || v == nil {
		return ""
	}
	s := slug.String(v)
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return ""
	}
	return s
}

// ServeMetrics exposes the Prometheus registry on addr until ctx is done.
func (a *App) ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.Metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	a.Logger.Info("serving metrics", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
