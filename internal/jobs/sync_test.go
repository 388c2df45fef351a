package jobs

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h0rv/colsync/internal/collection"
	"github.com/h0rv/colsync/internal/domain"
	"github.com/h0rv/colsync/internal/transport"
)

// syncAPI answers the start request with start and each poll with the
// next entry of polls.
type syncAPI struct {
	mu       sync.Mutex
	start    map[string]any
	polls    []map[string]any
	body     any
	paths    []string
	attempts []any
	lists    int
}

func (f *syncAPI) transport() transport.Transport {
	return transport.Func{
		PostFunc: func(_ context.Context, path string, body any, _ transport.PostOptions) ([]byte, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.body = body
			f.paths = append(f.paths, "POST "+path)
			return json.Marshal(f.start)
		},
		GetFunc: func(_ context.Context, path string, params domain.Values) ([]byte, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			if path == "terms" {
				f.lists++
				return []byte(`[]`), nil
			}
			f.paths = append(f.paths, "GET "+path)
			attempt, _ := params.Get("attempt")
			f.attempts = append(f.attempts, attempt)
			next := f.polls[0]
			if len(f.polls) > 1 {
				f.polls = f.polls[1:]
			}
			return json.Marshal(next)
		},
	}
}

func createTestPoller(t *testing.T, api *syncAPI, attempts int) (*Poller, *collection.Container) {
	t.Helper()
	terms, err := collection.New(api.transport(), collection.Config{ObjectName: "terms"})
	require.NoError(t, err)
	p := NewPoller(api.transport(), Config{
		Path:     "syncs",
		Attempts: attempts,
		Delay:    time.Millisecond,
		Body:     domain.Pairs("type", "sqr"),
	}, terms, terms)
	return p, terms
}

func TestSyncSucceeds(t *testing.T) {
	api := &syncAPI{
		start: map[string]any{"_id": "s1", "status": "started"},
		polls: []map[string]any{
			{"_id": "s1", "status": "started"},
			{"_id": "s1", "status": "succeed", "date": "2024-05-01"},
		},
	}
	p, terms := createTestPoller(t, api, 5)

	job, err := p.Start(context.Background(), domain.Pairs("businessId", 7))
	require.NoError(t, err)

	assert.Equal(t, "s1", job.ID)
	assert.Equal(t, 2, job.Attempts)
	assert.Equal(t, []string{"POST /syncs", "GET /syncs/s1", "GET /syncs/s1"}, api.paths)
	assert.Equal(t, []any{1, 2}, api.attempts)
	assert.Equal(t, domain.Pairs("type", "sqr", "businessId", 7), api.body)
	assert.Equal(t, 1, api.lists, "refresh containers are force-fetched")

	inProgress, _ := terms.Path(FieldInProgress)
	assert.Equal(t, false, inProgress)
	date, _ := terms.Path(FieldDate)
	assert.Equal(t, "2024-05-01", date)
}

func TestSyncSucceedsImmediately(t *testing.T) {
	api := &syncAPI{start: map[string]any{"_id": "s1", "status": "succeed", "date": "d"}}
	p, _ := createTestPoller(t, api, 5)

	job, err := p.Start(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceed, job.Status)
	assert.Equal(t, []string{"POST /syncs"}, api.paths)
}

func TestSyncWithoutContainers(t *testing.T) {
	api := &syncAPI{start: map[string]any{"_id": "s1", "status": "succeed"}}
	p := NewPoller(api.transport(), Config{Path: "syncs", Delay: time.Millisecond}, nil)

	job, err := p.Start(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceed, job.Status)
	assert.Equal(t, collection.NopLogger(), p.log)
	assert.Zero(t, api.lists)
}

func TestSyncNoID(t *testing.T) {
	api := &syncAPI{start: map[string]any{"status": "started"}}
	p, terms := createTestPoller(t, api, 5)

	_, err := p.Start(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrNoSyncID)
	inProgress, _ := terms.Path(FieldInProgress)
	assert.Equal(t, false, inProgress)
}

func TestSyncUnknownStatus(t *testing.T) {
	api := &syncAPI{
		start: map[string]any{"_id": "s1", "status": "started"},
		polls: []map[string]any{{"_id": "s1", "status": "failed"}},
	}
	p, _ := createTestPoller(t, api, 5)

	_, err := p.Start(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrSyncFailed)
	assert.Contains(t, err.Error(), "failed")
	assert.Zero(t, api.lists)
}

func TestSyncTimeout(t *testing.T) {
	api := &syncAPI{
		start: map[string]any{"_id": "s1", "status": "started"},
		polls: []map[string]any{{"_id": "s1", "status": "started"}},
	}
	p, _ := createTestPoller(t, api, 3)

	job, err := p.Start(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrSyncTimeout)
	assert.Equal(t, 3, job.Attempts)
	assert.Len(t, api.attempts, 3)
}

func TestSyncCancelled(t *testing.T) {
	api := &syncAPI{
		start: map[string]any{"_id": "s1", "status": "started"},
		polls: []map[string]any{{"_id": "s1", "status": "started"}},
	}
	p := NewPoller(api.transport(), Config{Path: "/syncs", Delay: time.Hour}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Start(ctx, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
