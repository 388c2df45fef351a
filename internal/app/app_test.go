package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h0rv/colsync/internal/config"
	"github.com/h0rv/colsync/internal/domain"
	"github.com/h0rv/colsync/internal/mutation"
)

const testConfig = `
transport: http
resources:
  - object: terms
    id_field: term
    title_field: term
    url_field: link
    groups:
      status: 0
    filters:
      page: 1
    move:
      scope:
        report_type: ngram
    export:
      path: /terms/export
  - object: api/todos
    select_check: title != nil
sync:
  path: /sync
  store: terms
  refresh: [terms]
`

type memorySink struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memorySink) Write(_ context.Context, name string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.data[name] = data
	return "mem://" + name, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /terms", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `[{"term":"shoes","status":0,"link":"https://example.com/shoes"},{"term":"hats","status":0}]`)
	})
	mux.HandleFunc("POST /terms/update", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ngram", r.URL.Query().Get("report_type"))
		_, _ = io.WriteString(w, `{"results":[{"term":"shoes","status":1}],"summary":[{"status":0,"count":1},{"status":1,"count":1}]}`)
	})
	mux.HandleFunc("GET /terms/export", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0", r.URL.Query().Get("status"))
		_, _ = io.WriteString(w, "report")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func createTestApp(t *testing.T, sink *memorySink) *App {
	t.Helper()
	srv := newTestServer(t)
	t.Setenv("COLSYNC_TOKEN", "secret")

	cfg := config.Default()
	require.NoError(t, config.Parse([]byte(testConfig), "colsync.yaml", &cfg))
	cfg.BaseURL = srv.URL
	require.NoError(t, cfg.Validate())

	a, err := New(context.Background(), cfg,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithSink(sink),
	)
	require.NoError(t, err)
	return a
}

func TestNewWiresResources(t *testing.T) {
	a := createTestApp(t, &memorySink{})

	assert.Equal(t, []string{"terms", "todos"}, a.Registry.Names())

	_, err := a.Mover("terms")
	assert.NoError(t, err)
	_, err = a.Mover("todos")
	assert.Error(t, err)

	_, err = a.Exporter("terms")
	assert.NoError(t, err)
	_, err = a.Exporter("todos")
	assert.Error(t, err)

	_, err = a.Poller()
	assert.NoError(t, err)

	_, err = a.Container("missing")
	assert.Error(t, err)
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(context.Background(), config.Default(), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	assert.ErrorContains(t, err, "base_url")
}

func TestNewRejectsBadSelectCheck(t *testing.T) {
	cfg := config.Default()
	cfg.BaseURL = "http://localhost"
	cfg.Resources = []config.Resource{{Object: "todos", SelectCheck: "title ==="}}

	_, err := New(context.Background(), cfg, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	assert.ErrorContains(t, err, "resource todos")
}

func TestFetchMoveExport(t *testing.T) {
	sink := &memorySink{}
	a := createTestApp(t, sink)
	ctx := context.Background()

	terms, err := a.Container("terms")
	require.NoError(t, err)

	outcome, err := terms.Fetch(ctx, domain.ModeDefault)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNetwork, outcome)
	var ids []string
	for _, item := range terms.Snapshot().View {
		id, _ := terms.ID(item)
		ids = append(ids, id)
	}
	assert.Equal(t, []string{"shoes", "hats"}, ids, "ids come from the configured field")

	mover, err := a.Mover("terms")
	require.NoError(t, err)
	item, ok := terms.Snapshot().Data["shoes"]
	require.True(t, ok)
	res, err := mover.Move(ctx, mutation.One{Item: domain.Item{"term": item["term"], "status": 1}})
	require.NoError(t, err)
	assert.Len(t, res.Moved, 1)

	exporter, err := a.Exporter("terms")
	require.NoError(t, err)
	location, err := exporter.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, "mem://terms.xls", location)
	assert.Equal(t, []byte("report"), sink.data["terms.xls"])
}

func TestTitleAndURL(t *testing.T) {
	a := createTestApp(t, &memorySink{})

	shoes := domain.Item{"term": "shoes", "link": "https://example.com/shoes"}
	assert.Equal(t, "shoes", a.Title("terms", shoes))
	assert.Equal(t, "https://example.com/shoes", a.URL("terms", shoes))
	assert.Empty(t, a.URL("terms", domain.Item{"term": "x", "link": "javascript:alert(1)"}))
	assert.Empty(t, a.URL("todos", shoes), "no url field configured")
	assert.Equal(t, "7", a.Title("todos", domain.Item{"_id": 7}))
}

func TestServeMetrics(t *testing.T) {
	a := createTestApp(t, &memorySink{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, a.ServeMetrics(ctx, "127.0.0.1:0"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, "warn")
	l.Info("hidden")
	l.Warn("shown")
	assert.False(t, strings.Contains(buf.String(), "hidden"))
	assert.True(t, strings.Contains(buf.String(), "shown"))

	buf.Reset()
	NewLogger(&buf, "nonsense").Info("fallback")
	assert.Contains(t, buf.String(), "fallback")
}
