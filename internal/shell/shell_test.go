package shell

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h0rv/colsync/internal/app"
	"github.com/h0rv/colsync/internal/config"
	"github.com/h0rv/colsync/internal/domain"
	"github.com/h0rv/colsync/internal/transport"
)

// fakeBackend serves a terms list whose statuses change on move.
type fakeBackend struct {
	mu     sync.Mutex
	status map[string]float64
	gets   int
}

func (f *fakeBackend) transport() transport.Transport {
	return transport.Func{
		GetFunc: func(_ context.Context, path string, params domain.Values) ([]byte, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.gets++
			if strings.HasPrefix(path, "/terms/") || strings.HasPrefix(path, "terms/") {
				term := path[strings.LastIndex(path, "/")+1:]
				return json.Marshal(map[string]any{"term": term, "status": f.status[term]})
			}
			want, _ := params.Get("status")
			results := []any{}
			for _, term := range []string{"a", "b", "c"} {
				if want == nil || slugEq(want, f.status[term]) {
					results = append(results, map[string]any{"term": term, "status": f.status[term]})
				}
			}
			return json.Marshal(map[string]any{"results": results, "total": len(results)})
		},
		PostFunc: func(_ context.Context, _ string, body any, _ transport.PostOptions) ([]byte, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			moved := []any{}
			for _, item := range body.([]domain.Item) {
				term := item["term"].(string)
				moved = append(moved, map[string]any{"term": term, "status": f.status[term]})
				f.status[term] = item["status"].(float64)
			}
			return json.Marshal(moved)
		},
	}
}

func slugEq(a any, b float64) bool {
	f, ok := a.(float64)
	return ok && f == b
}

func createTestShell(t *testing.T) (*Shell, *bytes.Buffer, *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{status: map[string]float64{"a": 0, "b": 0, "c": 1}}
	cfg := config.Default()
	cfg.Resources = []config.Resource{
		{Object: "terms", IDField: "term", Groups: domain.Pairs("status", float64(0)), Move: &config.Move{}},
		{Object: "todos"},
	}
	a, err := app.New(context.Background(), cfg,
		app.WithTransport(backend.transport()),
		app.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)

	var out bytes.Buffer
	return New(a, &out), &out, backend
}

func run(t *testing.T, s *Shell, line string) {
	t.Helper()
	quit, err := s.Execute(context.Background(), line)
	require.NoError(t, err, line)
	require.False(t, quit)
}

func TestExecuteFetchAndShow(t *testing.T) {
	s, out, backend := createTestShell(t)

	run(t, s, "fetch")
	assert.Contains(t, out.String(), "network: 2 items")

	out.Reset()
	run(t, s, "fetch")
	assert.Contains(t, out.String(), "cache_hit: 2 items")
	assert.Equal(t, 1, backend.gets)

	out.Reset()
	run(t, s, "show")
	assert.Contains(t, out.String(), "a")
	assert.Contains(t, out.String(), "2 items, status idle")

	out.Reset()
	run(t, s, "state")
	assert.Contains(t, out.String(), "total: 2")
}

func TestExecuteFilter(t *testing.T) {
	s, out, _ := createTestShell(t)

	run(t, s, "filter status=1")
	assert.Contains(t, out.String(), "status=1")

	out.Reset()
	run(t, s, "filter status=1")
	assert.Contains(t, out.String(), "filters unchanged")

	_, err := s.Execute(context.Background(), "filter oops")
	assert.Error(t, err)
}

func TestExecuteMoveAndUndo(t *testing.T) {
	s, out, backend := createTestShell(t)
	run(t, s, "fetch")

	out.Reset()
	run(t, s, "move 1 a")
	assert.Contains(t, out.String(), "moved 1")
	assert.Equal(t, float64(1), backend.status["a"])

	run(t, s, "undo")
	assert.Equal(t, float64(0), backend.status["a"])

	_, err := s.Execute(context.Background(), "undo")
	assert.ErrorIs(t, err, domain.ErrNothingToUndo)
}

func TestExecuteGetAndCheck(t *testing.T) {
	s, out, _ := createTestShell(t)

	run(t, s, "get c")
	assert.Contains(t, out.String(), "term")

	run(t, s, "check c")
	out.Reset()
	run(t, s, "check c")
	assert.Contains(t, out.String(), "already checked")
}

func TestExecuteUse(t *testing.T) {
	s, out, _ := createTestShell(t)
	assert.Equal(t, "terms", s.Current())

	run(t, s, "use todos")
	assert.Equal(t, "todos", s.Current())

	_, err := s.Execute(context.Background(), "move 1 a")
	assert.ErrorContains(t, err, "no move endpoint")

	_, err = s.Execute(context.Background(), "use nope")
	assert.Error(t, err)

	run(t, s, "stores")
	assert.Contains(t, out.String(), "* todos")
}

func TestExecuteMisc(t *testing.T) {
	s, out, _ := createTestShell(t)

	run(t, s, "help")
	assert.Contains(t, out.String(), "move <status> <id>...")

	quit, err := s.Execute(context.Background(), "quit")
	assert.NoError(t, err)
	assert.True(t, quit)

	_, err = s.Execute(context.Background(), "bogus")
	assert.ErrorContains(t, err, "unknown command")

	_, err = s.Execute(context.Background(), "clean nonsense")
	assert.Error(t, err)
	run(t, s, "clean view checked")

	_, err = s.Execute(context.Background(), "export")
	assert.Error(t, err)
	_, err = s.Execute(context.Background(), "sync")
	assert.Error(t, err)
}

func TestComplete(t *testing.T) {
	s, _, _ := createTestShell(t)
	assert.Equal(t, []string{"fetch", "filter"}, s.complete("f"))
	assert.Equal(t, []string{"use todos"}, s.complete("use to"))
}
