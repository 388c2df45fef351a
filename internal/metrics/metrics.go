// Package metrics exports container activity as Prometheus metrics.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/h0rv/colsync/internal/collection"
	"github.com/h0rv/colsync/internal/domain"
)

const namespace = "colsync"

// Observer records container events. It implements collection.Observer.
type Observer struct {
	registry *prometheus.Registry

	listFetches *prometheus.CounterVec
	listLatency *prometheus.HistogramVec
	itemFetches *prometheus.CounterVec
	itemLatency *prometheus.HistogramVec
	moves       *prometheus.CounterVec
	movedTerms  *prometheus.CounterVec
	errors      *prometheus.CounterVec
}

var _ collection.Observer = (*Observer)(nil)

// New creates an observer with its own registry.
func New() *Observer {
	o := &Observer{
		registry: prometheus.NewRegistry(),
		listFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "list_fetches_total",
			Help:      "List fetches by store and outcome.",
		}, []string{"store", "outcome"}),
		listLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "list_fetch_duration_seconds",
			Help:      "List fetch latency by store and outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"store", "outcome"}),
		itemFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "item_fetches_total",
			Help:      "Single item fetches by store and source.",
		}, []string{"store", "source"}),
		itemLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "item_fetch_duration_seconds",
			Help:      "Single item fetch latency by store and source.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"store", "source"}),
		moves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_total",
			Help:      "Move requests by store and kind.",
		}, []string{"store", "kind"}),
		movedTerms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moved_terms_total",
			Help:      "Terms reported moved by the server.",
		}, []string{"store"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Failed operations by store, operation and kind.",
		}, []string{"store", "operation", "kind"}),
	}
	o.registry.MustRegister(
		o.listFetches, o.listLatency,
		o.itemFetches, o.itemLatency,
		o.moves, o.movedTerms, o.errors,
	)
	return o
}

// Registry returns the registry the observer records into.
func (o *Observer) Registry() *prometheus.Registry { return o.registry }

// Handler serves the registry in the Prometheus exposition format.
func (o *Observer) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{})
}

// ListFetched implements collection.Observer.
func (o *Observer) ListFetched(store string, outcome domain.Outcome, elapsed time.Duration, err error) {
	if err != nil {
		o.errors.WithLabelValues(store, "fetch", kind(err)).Inc()
		return
	}
	o.listFetches.WithLabelValues(store, string(outcome)).Inc()
	o.listLatency.WithLabelValues(store, string(outcome)).Observe(elapsed.Seconds())
}

// ItemFetched implements collection.Observer.
func (o *Observer) ItemFetched(store string, cached bool, elapsed time.Duration, err error) {
	if err != nil {
		o.errors.WithLabelValues(store, "fetch_one", kind(err)).Inc()
		return
	}
	source := "network"
	if cached {
		source = "cache"
	}
	o.itemFetches.WithLabelValues(store, source).Inc()
	o.itemLatency.WithLabelValues(store, source).Observe(elapsed.Seconds())
}

// Moved implements collection.Observer.
func (o *Observer) Moved(store string, terms int, undo bool, err error) {
	if err != nil {
		o.errors.WithLabelValues(store, "move", kind(err)).Inc()
		return
	}
	k := "move"
	if undo {
		k = "undo"
	}
	o.moves.WithLabelValues(store, k).Inc()
	o.movedTerms.WithLabelValues(store).Add(float64(terms))
}

func kind(err error) string {
	var terr *domain.TransportError
	switch {
	case domain.IsValidation(err):
		return "validation"
	case errors.As(err, &terr):
		return "transport"
	}
	return "other"
}
