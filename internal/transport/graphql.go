package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/machinebox/graphql"

	"github.com/h0rv/colsync/internal/domain"
)

// GraphQL maps collection paths onto GraphQL documents. Each read path (and
// each write path, keyed "POST <path>") is bound to one document; parameters
// become variables, with nil passed as an explicit null. The body of the
// single top-level response field is returned, so list documents should
// select a list (or a {results, ...} object) and item documents an object.
type GraphQL struct {
	gql       *graphql.Client
	token     string
	documents map[string]string
}

// NewGraphQL creates a GraphQL transport for endpoint.
// documents maps a collection path (e.g. "todos") to its document.
func NewGraphQL(endpoint, token string, documents map[string]string, httpClient *http.Client) *GraphQL {
	var opts []graphql.ClientOption
	if httpClient != nil {
		opts = append(opts, graphql.WithHTTPClient(httpClient))
	}
	docs := make(map[string]string, len(documents))
	for k, v := range documents {
		docs[strings.Trim(k, "/")] = v
	}
	return &GraphQL{
		gql:       graphql.NewClient(endpoint, opts...),
		token:     token,
		documents: docs,
	}
}

// Get implements Transport. A path of the form "<object>/<id>" falls back to
// the "<object>/:id" document with an "id" variable.
func (g *GraphQL) Get(ctx context.Context, path string, params domain.Values) ([]byte, error) {
	doc, vars, err := g.resolve(path)
	if err != nil {
		return nil, &domain.TransportError{Method: http.MethodGet, Path: path, Err: err}
	}
	for _, f := range params {
		vars[f.Key] = f.Value
	}
	return g.run(ctx, http.MethodGet, path, doc, vars)
}

// Post implements Transport. The body is passed as the "input" variable.
func (g *GraphQL) Post(ctx context.Context, path string, body any, opts PostOptions) ([]byte, error) {
	doc, ok := g.documents["POST "+strings.Trim(path, "/")]
	if !ok {
		return nil, &domain.TransportError{Method: http.MethodPost, Path: path, Err: fmt.Errorf("no graphql document bound to POST %s", path)}
	}
	vars := map[string]any{"input": body}
	for _, f := range opts.Params {
		vars[f.Key] = f.Value
	}
	return g.run(ctx, http.MethodPost, path, doc, vars)
}

func (g *GraphQL) resolve(path string) (string, map[string]any, error) {
	path = strings.Trim(path, "/")
	if doc, ok := g.documents[path]; ok {
		return doc, map[string]any{}, nil
	}
	if idx := strings.LastIndex(path, "/"); idx > 0 {
		if doc, ok := g.documents[path[:idx]+"/:id"]; ok {
			return doc, map[string]any{"id": path[idx+1:]}, nil
		}
	}
	return "", nil, fmt.Errorf("no graphql document bound to %s", path)
}

// run executes a GraphQL request with authentication.
func (g *GraphQL) run(ctx context.Context, method, path, doc string, vars map[string]any) ([]byte, error) {
	req := graphql.NewRequest(doc)
	for k, v := range vars {
		req.Var(k, v)
	}
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	var resp map[string]json.RawMessage
	if err := g.gql.Run(ctx, req, &resp); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, &domain.TransportError{Method: method, Path: path, Message: "graphql request failed", Err: err}
	}

	if len(resp) == 1 {
		for _, raw := range resp {
			return raw, nil
		}
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, &domain.TransportError{Method: method, Path: path, Message: "encode response", Err: err}
	}
	return data, nil
}
