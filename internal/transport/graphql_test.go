package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h0rv/colsync/internal/domain"
)

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func gqlServer(t *testing.T, handler func(req gqlRequest) any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req gqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{"data": handler(req)})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGraphQLGetList(t *testing.T) {
	srv := gqlServer(t, func(req gqlRequest) any {
		assert.Contains(t, req.Query, "todos")
		assert.Equal(t, float64(10), req.Variables["limit"])
		assert.Contains(t, req.Variables, "completed", "nil params are sent as explicit null")
		return map[string]any{"todos": []any{map[string]any{"id": "1"}}}
	})

	g := NewGraphQL(srv.URL, "tok", map[string]string{
		"todos": `query($limit: Int, $completed: Boolean) { todos(limit: $limit, completed: $completed) { id } }`,
	}, nil)

	body, err := g.Get(context.Background(), "/todos", domain.Pairs("limit", 10, "completed", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"1"}]`, string(body))
}

func TestGraphQLGetItemByID(t *testing.T) {
	srv := gqlServer(t, func(req gqlRequest) any {
		assert.Equal(t, "42", req.Variables["id"])
		return map[string]any{"todo": map[string]any{"id": "42"}}
	})

	g := NewGraphQL(srv.URL, "tok", map[string]string{
		"todos/:id": `query($id: ID!) { todo(id: $id) { id } }`,
	}, nil)

	body, err := g.Get(context.Background(), "todos/42", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"42"}`, string(body))
}

func TestGraphQLPost(t *testing.T) {
	srv := gqlServer(t, func(req gqlRequest) any {
		assert.NotNil(t, req.Variables["input"])
		return map[string]any{"moveTerms": []any{}}
	})

	g := NewGraphQL(srv.URL, "tok", map[string]string{
		"POST terms/update": `mutation($input: [TermInput!]!) { moveTerms(input: $input) { term status } }`,
	}, nil)

	body, err := g.Post(context.Background(), "/terms/update", []domain.Item{{"term": "x", "status": 1}}, PostOptions{})
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(body))
}

func TestGraphQLUnboundPath(t *testing.T) {
	g := NewGraphQL("http://127.0.0.1:0", "", nil, nil)
	_, err := g.Get(context.Background(), "nope", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no graphql document")
}
