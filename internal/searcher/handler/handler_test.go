package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/indexer/doclist"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/storage/memstore"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/resilience"
)

func newTestServer(t *testing.T) (http.Handler, *metrics.Metrics) {
	t.Helper()
	e := indexer.NewEngine(config.IndexerConfig{}, memstore.NewTermStore(), memstore.NewContentStore())
	ctx := context.Background()
	require.NoError(t, e.Insert(ctx, 1, "the quick brown fox", "animals"))
	require.NoError(t, e.Insert(ctx, 2, "a quick decision"))
	require.NoError(t, e.Insert(ctx, 3, "brown bread", "food"))

	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	h := New(e, nil, m, config.SearchConfig{DefaultLimit: 10, MaxResults: 2, QueryTimeout: time.Second})
	return h.Routes(), m
}

func get(t *testing.T, srv http.Handler, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestSearchEndpoint(t *testing.T) {
	srv, m := newTestServer(t)

	rec, body := get(t, srv, "/api/v1/search?q=quick")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{1.0, 2.0}, body["docids"])
	assert.Equal(t, 2.0, body["total"])
	assert.Equal(t, "quick", body["canonical"])
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	_, body = get(t, srv, `/api/v1/search?q=%22brown+fox%22&content=true`)
	assert.Equal(t, []any{1.0}, body["docids"])
	docs := body["documents"].([]any)
	require.Len(t, docs, 1)
	assert.Equal(t, []any{"the quick brown fox", "animals"}, docs[0].(map[string]any)["columns"])

	_, body = get(t, srv, "/api/v1/search?q=quick+OR+brown&limit=50")
	assert.Equal(t, []any{1.0, 2.0}, body["docids"], "limit is capped at maxResults")
	assert.Equal(t, 3.0, body["total"])

	_, body = get(t, srv, "/api/v1/search?q=nothing")
	assert.Equal(t, []any{}, body["docids"])

	assert.Equal(t, 3.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("zero_result")))
}

func TestSearchRejectsBadRequests(t *testing.T) {
	srv, m := newTestServer(t)

	tests := []struct {
		target string
		status int
	}{
		{"/api/v1/search", http.StatusBadRequest},
		{"/api/v1/search?q=a&limit=0", http.StatusBadRequest},
		{"/api/v1/search?q=%22open", http.StatusBadRequest},
		{"/api/v1/search?q=-only", http.StatusBadRequest},
		{"/api/v1/documents/abc", http.StatusBadRequest},
		{"/api/v1/documents/99", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec, body := get(t, srv, tt.target)
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, body["error"])
		})
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("bad_query")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/documents/{id}", "404")))
}

func TestGetDocument(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, body := get(t, srv, "/api/v1/documents/3")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3.0, body["docid"])
	assert.Equal(t, []any{"brown bread", "food"}, body["columns"])
}

type failingSearcher struct{ err error }

func (f failingSearcher) Parse(query string) (*parser.Query, error) {
	return &parser.Query{Raw: query, Terms: []parser.QueryTerm{{Text: query}}}, nil
}

func (f failingSearcher) Execute(context.Context, *parser.Query) (*doclist.DocList, error) {
	return nil, f.err
}

func (f failingSearcher) Document(context.Context, uint64) ([]string, error) { return nil, f.err }

func TestSearchHidesInternalErrors(t *testing.T) {
	h := New(failingSearcher{err: doclist.ErrCorrupt}, nil, nil, config.SearchConfig{DefaultLimit: 5})
	rec, body := get(t, h.Routes(), "/api/v1/search?q=x")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Server Error", body["error"])
}

func TestCacheEndpointsWithoutCache(t *testing.T) {
	srv, _ := newTestServer(t)
	_, body := get(t, srv, "/api/v1/cache/stats")
	assert.Equal(t, "disabled", body["status"])

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type flakyBackend struct {
	down bool
	keys int64
}

func (b *flakyBackend) Get(context.Context, string) (string, error) {
	if b.down {
		return "", errors.New("connection refused")
	}
	return "", redis.Nil
}

func (b *flakyBackend) Set(context.Context, string, any, time.Duration) error {
	if b.down {
		return errors.New("connection refused")
	}
	b.keys++
	return nil
}

func (b *flakyBackend) FlushByPattern(context.Context, string) (int64, error) {
	if b.down {
		return 0, errors.New("connection refused")
	}
	n := b.keys
	b.keys = 0
	return n, nil
}

func TestCacheInvalidateAfterRedisRecovers(t *testing.T) {
	e := indexer.NewEngine(config.IndexerConfig{}, memstore.NewTermStore(), memstore.NewContentStore())
	require.NoError(t, e.Insert(context.Background(), 1, "apple"))
	backend := &flakyBackend{down: true}
	qc := cache.New(backend, time.Minute, nil)
	srv := New(e, qc, nil, config.SearchConfig{DefaultLimit: 10, QueryTimeout: time.Second}).Routes()

	for i := 0; i < 5; i++ {
		rec, _ := get(t, srv, "/api/v1/search?q=apple")
		require.Equal(t, http.StatusOK, rec.Code, "cache failures never fail a search")
	}
	require.Equal(t, resilience.StateOpen, qc.BreakerState())

	backend.down = false
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, resilience.StateClosed, qc.BreakerState())
}
