package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h0rv/colsync/internal/domain"
)

const testYAML = `
base_url: https://api.example.com
transport: http
timeout: 5s
envelope: payload
log_level: debug
resources:
  - object: terms
    id_field: term
    groups:
      date_range: ALL_TIME
      business_id: null
      status: 0
    filters:
      term: ""
      page: 1
    easy_filter: true
    move:
      scope:
        report_type: ngram
      scope_keys: [business_id]
    export:
      path: /terms/export
      name: terms.xls
      dir: ./exports
  - object: todos
    select_check: body != nil
    cache: false
sync:
  path: /sync
  store: terms
  attempts: 10
  delay: 2s
  refresh: [terms]
`

const testJSON = `{
  // comments are allowed
  "base_url": "https://api.example.com",
  "transport": "graphql",
  "documents": {"todos": "query { todos { id } }"},
  "resources": [
    {"object": "api/todos", "filters": {"status": "incomplete", "page": 1},},
  ],
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseYAML(t *testing.T) {
	cfg := Default()
	require.NoError(t, Parse([]byte(testYAML), "colsync.yaml", &cfg))

	assert.Equal(t, "https://api.example.com", cfg.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Timeout.Duration)
	assert.Equal(t, "payload", cfg.Envelope)
	require.Len(t, cfg.Resources, 2)

	terms := cfg.Resources[0]
	assert.Equal(t, "terms", terms.StoreName())
	assert.Equal(t, []string{"date_range", "business_id", "status"}, terms.Groups.Keys(), "order is kept")
	status, _ := terms.Groups.Get("status")
	assert.Equal(t, float64(0), status)
	business, ok := terms.Groups.Get("business_id")
	assert.True(t, ok)
	assert.Nil(t, business)
	assert.Equal(t, domain.Pairs("report_type", "ngram"), terms.Move.Scope)
	assert.Equal(t, "terms.xls", terms.Export.Name)

	todos := cfg.Resources[1]
	require.NotNil(t, todos.Cache)
	assert.False(t, *todos.Cache)
	assert.Equal(t, "body != nil", todos.SelectCheck)

	require.NotNil(t, cfg.Sync)
	assert.Equal(t, 2*time.Second, cfg.Sync.Delay.Duration)
	assert.NoError(t, cfg.Validate())
}

func TestParseJSONWithComments(t *testing.T) {
	cfg := Default()
	require.NoError(t, Parse([]byte(testJSON), "colsync.json", &cfg))

	assert.Equal(t, TransportGraphQL, cfg.Transport)
	assert.Equal(t, 30*time.Second, cfg.Timeout.Duration, "defaults survive")
	require.Len(t, cfg.Resources, 1)
	assert.Equal(t, "todos", cfg.Resources[0].StoreName())
	assert.Equal(t, domain.Pairs("status", "incomplete", "page", float64(1)), cfg.Resources[0].Filters)
}

func TestLoadExplicitPath(t *testing.T) {
	path := writeFile(t, t.TempDir(), "custom.yaml", testYAML)

	cfg, source, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, source)
	assert.Len(t, cfg.Resources, 2)
}

func TestLoadExplicitPathMissing(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, errConfigNotFound)
}

func TestLoadFromEnv(t *testing.T) {
	path := writeFile(t, t.TempDir(), "env.json", testJSON)
	t.Setenv(EnvConfig, path)
	t.Setenv(EnvBaseURL, "http://localhost:8080")

	cfg, source, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, path, source)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL, "env overrides the file")
}

func TestLoadWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "colsync.yaml", testYAML)
	t.Chdir(dir)
	t.Setenv(EnvConfig, "")

	_, source, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "colsync.yaml", source)
}

func TestLoadNoFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvConfig, "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, source, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, source)
	assert.Equal(t, TransportHTTP, cfg.Transport)
}

func TestLoadInvalid(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.json", `{"resources": [`)
	_, _, err := Load(path)
	assert.ErrorIs(t, err, errConfigInvalid)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"unknown transport", Config{Transport: "grpc"}, "unknown transport"},
		{"missing object", Config{Transport: TransportHTTP, Resources: []Resource{{}}}, "object name"},
		{"duplicate store", Config{Transport: TransportHTTP, Resources: []Resource{{Object: "a/todos"}, {Object: "b/todos"}}}, "duplicate store"},
		{"export without path", Config{Transport: TransportHTTP, Resources: []Resource{{Object: "todos", Export: &Export{}}}}, "export path"},
		{"sync unknown store", Config{Transport: TransportHTTP, Sync: &Sync{Path: "/sync", Refresh: []string{"nope"}}}, "unknown store"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFormat(t *testing.T) {
	cfg := Default()
	cfg.Resources = []Resource{{Object: "todos", Filters: domain.Pairs("b", 1, "a", 2)}}

	out, err := Format(cfg)
	require.NoError(t, err)
	assert.Contains(t, out, `"timeout": "30s"`)
	assert.Contains(t, out, `"filters": {`)
	assert.Regexp(t, `"b": 1,\s*"a": 2`, out)
}
