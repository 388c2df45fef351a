package mutation

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h0rv/colsync/internal/collection"
	"github.com/h0rv/colsync/internal/domain"
	"github.com/h0rv/colsync/internal/slug"
	"github.com/h0rv/colsync/internal/transport"
)

// Test fixtures
type post struct {
	Body any
	Opts transport.PostOptions
}

// termsAPI is a stateful terms backend: terms live in numbered status
// buckets, list reads filter by bucket and report a summary.
type termsAPI struct {
	mu     sync.Mutex
	order  []string
	status map[string]float64
	gets   int
	posts  []post
	fail   error
}

func newTermsAPI() *termsAPI {
	return &termsAPI{
		order:  []string{"a", "b", "c", "d"},
		status: map[string]float64{"a": 0, "b": 0, "c": 0, "d": 1},
	}
}

func (f *termsAPI) transport() transport.Transport {
	return transport.Func{GetFunc: f.get, PostFunc: f.post}
}

func (f *termsAPI) get(_ context.Context, _ string, params domain.Values) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++

	want, filtered := params.Get("status")
	results := []any{}
	counts := map[float64]int{}
	for _, term := range f.order {
		s := f.status[term]
		counts[s]++
		if !filtered || slug.String(want) == slug.String(s) {
			results = append(results, map[string]any{"term": term, "status": s})
		}
	}
	summary := []any{}
	for _, s := range []float64{0, 1, 2} {
		summary = append(summary, map[string]any{"status": s, "count": counts[s]})
	}
	return json.Marshal(map[string]any{"results": results, "summary": summary})
}

func (f *termsAPI) post(_ context.Context, _ string, body any, opts transport.PostOptions) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, post{Body: body, Opts: opts})
	if f.fail != nil {
		return nil, f.fail
	}

	moved := []any{}
	switch b := body.(type) {
	case []domain.Item:
		for _, item := range b {
			term := item["term"].(string)
			moved = append(moved, map[string]any{"term": term, "status": f.status[term]})
			f.status[term] = toFloat(item["status"])
		}
	case string:
		target, _ := strconv.ParseFloat(b, 64)
		from, _ := opts.Params.Get("status")
		for _, term := range f.order {
			if slug.String(f.status[term]) == slug.String(from) {
				moved = append(moved, map[string]any{"term": term, "status": f.status[term]})
				f.status[term] = target
			}
		}
	}
	return json.Marshal(moved)
}

func toFloat(v any) float64 {
	f, _ := strconv.ParseFloat(slug.String(v), 64)
	return f
}

func termID(item domain.Item) (string, bool) {
	s, ok := item["term"].(string)
	return s, ok
}

func createTestEngine(t *testing.T, api *termsAPI) *Engine {
	t.Helper()
	c, err := collection.New(api.transport(), collection.Config{
		ObjectName:     "terms",
		IDFunc:         termID,
		DefaultGroups:  domain.Pairs("business_id", 7, "status", 0),
		DefaultFilters: domain.Pairs("page", 1),
	})
	require.NoError(t, err)
	_, err = c.Fetch(context.Background(), domain.ModeDefault)
	require.NoError(t, err)
	return New(c, Config{
		Scope:     domain.Pairs("report_type", "ngram"),
		ScopeKeys: []string{"business_id"},
	})
}

func bucketCount(t *testing.T, buckets []domain.Bucket, status int) int {
	t.Helper()
	for _, b := range buckets {
		if slug.String(b.Status) == strconv.Itoa(status) {
			return b.Count
		}
	}
	t.Fatalf("no bucket %d", status)
	return 0
}

func TestMoveValidation(t *testing.T) {
	api := newTermsAPI()
	e := createTestEngine(t, api)
	ctx := context.Background()

	tests := []struct {
		name   string
		target Target
		want   error
	}{
		{"missing term", One{Item: domain.Item{"status": 1}}, domain.ErrNoTerm},
		{"empty term", One{Item: domain.Item{"term": "", "status": 1}}, domain.ErrNoTerm},
		{"missing status", One{Item: domain.Item{"term": "a"}}, domain.ErrNoBucket},
		{"empty list", Many{}, domain.ErrNoTerm},
		{"invalid list item", Many{Items: []domain.Item{{"term": "a", "status": 1}, {"term": "b"}}}, domain.ErrNoBucket},
		{"bulk without status", Bulk{}, domain.ErrNoBucket},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Move(ctx, tt.target)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, domain.IsValidation(err))
		})
	}
	assert.Empty(t, api.posts, "validation happens before any network call")
}

func TestMoveOne(t *testing.T) {
	api := newTermsAPI()
	e := createTestEngine(t, api)
	c := e.Container()
	ctx := context.Background()

	// Warm the destination bucket so that its reset is observable.
	c.Filter(domain.Pairs("status", 1))
	_, err := c.Fetch(ctx, domain.ModeDefault)
	require.NoError(t, err)
	c.Filter(domain.Pairs("status", 0))
	_, err = c.Fetch(ctx, domain.ModeDefault)
	require.NoError(t, err)
	require.NotEmpty(t, c.Snapshot().Indexes["7/1"].Data)
	gets := api.gets

	res, err := e.Move(ctx, One{Item: domain.Item{"term": "a", "status": 1}})
	require.NoError(t, err)

	require.Len(t, api.posts, 1)
	p := api.posts[0]
	assert.Equal(t, []domain.Item{{"term": "a", "status": 1}}, p.Body)
	assert.Equal(t, domain.Pairs("report_type", "ngram", "business_id", 7), p.Opts.Params)
	assert.Empty(t, p.Opts.ContentType)

	assert.Equal(t, []domain.Item{{"term": "a", "status": float64(0)}}, res.Moved)
	assert.Equal(t, []domain.Item{{"term": "a", "status": float64(0)}}, res.Undos)
	assert.Equal(t, []string{"7/1"}, res.Slugs)
	assert.Equal(t, 2, bucketCount(t, res.Summary, 0))
	assert.Equal(t, 2, bucketCount(t, res.Summary, 1))

	assert.Equal(t, domain.OutcomeNetwork, res.Refresh)
	assert.Equal(t, gets+1, api.gets, "move always force-refreshes")

	st := c.Snapshot()
	assert.Empty(t, st.Indexes["7/1"].Data, "destination bucket index was reset")
	var terms []string
	for _, item := range st.View {
		terms = append(terms, item["term"].(string))
	}
	assert.Equal(t, []string{"b", "c"}, terms)
}

func TestMoveMany(t *testing.T) {
	api := newTermsAPI()
	e := createTestEngine(t, api)

	res, err := e.Move(context.Background(), Many{Items: []domain.Item{
		{"term": "a", "status": 1},
		{"term": "b", "status": 2},
	}})
	require.NoError(t, err)

	assert.Len(t, res.Moved, 2)
	assert.Equal(t, []string{"7/1", "7/2"}, res.Slugs)
	assert.Equal(t, 1, bucketCount(t, res.Summary, 0))
	assert.Equal(t, 2, bucketCount(t, res.Summary, 1))
	assert.Equal(t, 1, bucketCount(t, res.Summary, 2))
	assert.Len(t, res.Undos, 2)
}

func TestUndoRoundTrip(t *testing.T) {
	api := newTermsAPI()
	api.order = append(api.order, "x")
	api.status["x"] = 0
	e := createTestEngine(t, api)
	ctx := context.Background()

	before, ok := e.Container().Path("summary")
	require.True(t, ok)

	_, err := e.Move(ctx, One{Item: domain.Item{"term": "x", "status": 1}})
	require.NoError(t, err)

	res, err := e.Undo(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Undos, "undo removes the entry")
	assert.Empty(t, e.Container().Snapshot().Undos)

	after, ok := e.Container().Path("summary")
	require.True(t, ok)
	assert.Equal(t, before, after, "bucket counts restored")

	last := api.posts[len(api.posts)-1].Body.([]domain.Item)
	assert.Equal(t, "x", last[0]["term"])
	assert.Equal(t, float64(0), last[0]["status"], "undo moves back to the previous status")
}

func TestUndoRestoresBucketCount(t *testing.T) {
	api := newTermsAPI()
	e := createTestEngine(t, api)
	ctx := context.Background()

	moved, err := e.Move(ctx, One{Item: domain.Item{"term": "a", "status": 1}})
	require.NoError(t, err)
	assert.Equal(t, 2, bucketCount(t, moved.Summary, 0))

	undone, err := e.Undo(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, bucketCount(t, undone.Summary, 0))
	assert.Equal(t, 1, bucketCount(t, undone.Summary, 1))
	assert.Empty(t, undone.Undos)
}

func TestUndoEmpty(t *testing.T) {
	api := newTermsAPI()
	e := createTestEngine(t, api)

	_, err := e.Undo(context.Background())
	assert.ErrorIs(t, err, domain.ErrNothingToUndo)
	assert.Empty(t, api.posts)
}

func TestUndoStackSupersedes(t *testing.T) {
	api := newTermsAPI()
	e := createTestEngine(t, api)
	ctx := context.Background()

	_, err := e.Move(ctx, One{Item: domain.Item{"term": "a", "status": 1}})
	require.NoError(t, err)
	_, err = e.Move(ctx, One{Item: domain.Item{"term": "b", "status": 1}})
	require.NoError(t, err)
	res, err := e.Move(ctx, One{Item: domain.Item{"term": "a", "status": 2}})
	require.NoError(t, err)

	assert.Equal(t, []domain.Item{
		{"term": "b", "status": float64(0)},
		{"term": "a", "status": float64(1)},
	}, res.Undos)
}

func TestBulkMove(t *testing.T) {
	api := newTermsAPI()
	c, err := collection.New(api.transport(), collection.Config{
		ObjectName:     "terms",
		IDFunc:         termID,
		DefaultFilters: domain.Pairs("status", 0),
		DefaultGroups:  domain.Pairs("business_id", 7),
	})
	require.NoError(t, err)
	ctx := context.Background()
	_, err = c.Fetch(ctx, domain.ModeDefault)
	require.NoError(t, err)
	e := New(c, Config{})

	res, err := e.Move(ctx, Bulk{Status: 1})
	require.NoError(t, err)

	require.Len(t, api.posts, 1)
	p := api.posts[0]
	assert.Equal(t, "1", p.Body, "no item payload")
	assert.Equal(t, transport.ContentTypeText, p.Opts.ContentType)
	assert.Equal(t, domain.Pairs("business_id", 7, "status", 0), p.Opts.Params)

	assert.Len(t, res.Moved, 3)
	assert.Equal(t, 2, api.gets, "bulk move triggers a forced fetch")
	assert.Equal(t, domain.OutcomeNetwork, res.Refresh)
	assert.Empty(t, c.Snapshot().View)
}

func TestMoveTransportError(t *testing.T) {
	api := newTermsAPI()
	api.fail = &domain.TransportError{Method: "POST", Path: DefaultPath, StatusCode: 500}
	e := createTestEngine(t, api)
	gets := api.gets

	_, err := e.Move(context.Background(), One{Item: domain.Item{"term": "a", "status": 1}})
	require.Error(t, err)

	st := e.Container().Snapshot()
	assert.Equal(t, domain.StatusError, st.Status)
	assert.Empty(t, st.Undos)
	assert.Equal(t, gets, api.gets, "no refresh after a failed move")
}

func TestUndoFailureKeepsEntry(t *testing.T) {
	api := newTermsAPI()
	e := createTestEngine(t, api)
	ctx := context.Background()

	_, err := e.Move(ctx, One{Item: domain.Item{"term": "a", "status": 1}})
	require.NoError(t, err)

	api.fail = &domain.TransportError{Method: "POST", Path: DefaultPath, StatusCode: 503}
	_, err = e.Undo(ctx)
	require.Error(t, err)
	assert.Len(t, e.Container().Snapshot().Undos, 1)
}

func TestTargets(t *testing.T) {
	api := newTermsAPI()
	e := createTestEngine(t, api)

	target, err := e.Targets([]string{"a"}, 2)
	require.NoError(t, err)
	assert.Equal(t, One{Item: domain.Item{"term": "a", "status": 2}}, target)

	target, err = e.Targets([]string{"a", "b"}, 1)
	require.NoError(t, err)
	many, ok := target.(Many)
	require.True(t, ok)
	assert.Len(t, many.Items, 2)

	_, err = e.Targets([]string{"zzz"}, 1)
	assert.ErrorContains(t, err, "not loaded")
	_, err = e.Targets(nil, 1)
	assert.ErrorIs(t, err, domain.ErrNoTerm)

	status, _ := e.Container().Snapshot().Data["a"]["status"].(float64)
	assert.Equal(t, float64(0), status, "cached item is untouched")
}

func TestBuckets(t *testing.T) {
	api := newTermsAPI()
	e := createTestEngine(t, api)

	assert.Equal(t, "status", e.StatusField())
	assert.Equal(t, []domain.Bucket{
		{Status: float64(0), Count: 3},
		{Status: float64(1), Count: 1},
		{Status: float64(2), Count: 0},
	}, e.Buckets())
}
