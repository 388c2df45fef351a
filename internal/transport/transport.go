// Package transport provides the network collaborators used by collection
// containers. Implementations return response bodies with any server
// envelope already removed; cancellation is carried by the context.
package transport

import (
	"context"

	"github.com/h0rv/colsync/internal/domain"
)

// Transport issues reads and writes against a remote collection API.
type Transport interface {
	// Get fetches path with the given query parameters.
	Get(ctx context.Context, path string, params domain.Values) ([]byte, error)
	// Post sends body to path.
	Post(ctx context.Context, path string, body any, opts PostOptions) ([]byte, error)
}

// PostOptions configures a Post call.
type PostOptions struct {
	// Params are sent as query parameters.
	Params domain.Values
	// ContentType overrides the default JSON encoding. With "text/plain" a
	// string body is sent verbatim.
	ContentType string
}

// ContentTypeText sends a string body as-is.
const ContentTypeText = "text/plain"

// Func adapts a pair of functions to Transport. It is mostly useful in tests.
type Func struct {
	GetFunc  func(ctx context.Context, path string, params domain.Values) ([]byte, error)
	PostFunc func(ctx context.Context, path string, body any, opts PostOptions) ([]byte, error)
}

// Get implements Transport.
func (f Func) Get(ctx context.Context, path string, params domain.Values) ([]byte, error) {
	return f.GetFunc(ctx, path, params)
}

// Post implements Transport.
func (f Func) Post(ctx context.Context, path string, body any, opts PostOptions) ([]byte, error) {
	return f.PostFunc(ctx, path, body, opts)
}
