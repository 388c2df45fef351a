package collection

import (
	"time"

	"github.com/h0rv/colsync/internal/domain"
)

// Logger is the structured logger used by containers. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger returns a Logger that drops every record.
func NopLogger() Logger { return noopLogger{} }

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Observer receives container events for metrics.
type Observer interface {
	// ListFetched is called once per Fetch.
	ListFetched(store string, outcome domain.Outcome, elapsed time.Duration, err error)
	// ItemFetched is called once per FetchOne.
	ItemFetched(store string, cached bool, elapsed time.Duration, err error)
	// Moved is called once per move request.
	Moved(store string, terms int, undo bool, err error)
}

type noopObserver struct{}

func (noopObserver) ListFetched(string, domain.Outcome, time.Duration, error) {}
func (noopObserver) ItemFetched(string, bool, time.Duration, error)           {}
func (noopObserver) Moved(string, int, bool, error)                           {}
