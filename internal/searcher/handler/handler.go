// Package handler serves the search HTTP API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/indexer/doclist"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/tracing"
)

// Searcher is the part of the engine the API needs.
type Searcher interface {
	Parse(query string) (*parser.Query, error)
	Execute(ctx context.Context, q *parser.Query) (*doclist.DocList, error)
	Document(ctx context.Context, docid uint64) ([]string, error)
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Query     string     `json:"query"`
	Canonical string     `json:"canonical"`
	Total     int        `json:"total"`
	Docids    []uint64   `json:"docids"`
	Documents []Document `json:"documents,omitempty"`
	CacheHit  bool       `json:"cache_hit"`
	TookMs    int64      `json:"took_ms"`
}

type Document struct {
	Docid   uint64   `json:"docid"`
	Columns []string `json:"columns"`
}

type Handler struct {
	searcher     Searcher
	cache        *cache.QueryCache
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	timeout      time.Duration
	logger       *slog.Logger
}

// New returns a Handler. queryCache and m may be nil.
func New(s Searcher, queryCache *cache.QueryCache, m *metrics.Metrics, cfg config.SearchConfig) *Handler {
	return &Handler{
		searcher:     s,
		cache:        queryCache,
		metrics:      m,
		defaultLimit: cfg.DefaultLimit,
		maxResults:   cfg.MaxResults,
		timeout:      cfg.QueryTimeout,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Routes builds the API mux with its middleware chain:
//
//	GET  /api/v1/search?q=&limit=&content=
//	GET  /api/v1/documents/{id}
//	GET  /api/v1/cache/stats
//	POST /api/v1/cache/invalidate
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.GetDocument)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)

	var chain http.Handler = mux
	if h.metrics != nil {
		chain = middleware.Metrics(h.metrics)(chain)
	}
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	return middleware.RequestID(chain)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	limit := h.defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if h.maxResults > 0 && limit > h.maxResults {
		limit = h.maxResults
	}
	withContent := r.URL.Query().Get("content") == "true"

	q, err := h.searcher.Parse(query)
	if err != nil {
		h.countQuery("bad_query")
		h.writeAppError(w, err)
		return
	}

	ctx, span := tracing.Start(ctx, "search", middleware.GetRequestID(ctx))
	span.SetAttr("query", q.String())
	defer func() {
		span.End()
		span.Log(ctx, log, slog.LevelDebug)
	}()

	compute := func() (*cache.Entry, error) {
		return h.evaluate(ctx, q, limit)
	}
	var (
		entry    *cache.Entry
		cacheHit bool
	)
	if h.cache != nil {
		entry, cacheHit, err = h.cache.GetOrCompute(ctx, q, limit, compute)
	} else {
		entry, err = compute()
	}
	if err != nil {
		if apperrors.HTTPStatusCode(err) == http.StatusBadRequest {
			h.countQuery("bad_query")
		} else {
			h.countQuery("error")
		}
		log.Error("search execution failed", "query", query, "error", err)
		h.writeAppError(w, err)
		return
	}

	resp := SearchResponse{
		Query:     query,
		Canonical: q.String(),
		Total:     entry.Total,
		Docids:    entry.Docids,
		CacheHit:  cacheHit,
	}
	if withContent {
		for _, id := range entry.Docids {
			columns, err := h.searcher.Document(ctx, id)
			if err != nil {
				// A document deleted after the result was cached.
				if errors.Is(err, apperrors.ErrDocumentNotFound) {
					continue
				}
				h.writeAppError(w, err)
				return
			}
			resp.Documents = append(resp.Documents, Document{Docid: id, Columns: columns})
		}
	}
	took := time.Since(start)
	resp.TookMs = took.Milliseconds()

	if entry.Total == 0 {
		h.countQuery("zero_result")
	} else {
		h.countQuery("ok")
	}
	if h.metrics != nil {
		status := "miss"
		if cacheHit {
			status = "hit"
		}
		h.metrics.SearchLatency.WithLabelValues(status).Observe(took.Seconds())
		h.metrics.SearchResultsCount.Observe(float64(len(entry.Docids)))
	}
	log.Info("search completed",
		"query", query,
		"total", entry.Total,
		"returned", len(entry.Docids),
		"cache_hit", cacheHit,
		"latency_ms", resp.TookMs,
		"request_id", middleware.GetRequestID(ctx),
	)
	h.writeJSON(w, http.StatusOK, resp)
}

// evaluate runs q under the query timeout and keeps the first limit docids.
func (h *Handler) evaluate(ctx context.Context, q *parser.Query, limit int) (*cache.Entry, error) {
	entry := &cache.Entry{Query: q.String(), Docids: []uint64{}}
	err := resilience.WithTimeout(ctx, h.timeout, "search", func(ctx context.Context) error {
		d, err := h.searcher.Execute(ctx, q)
		if err != nil {
			return err
		}
		ids, err := doclist.DocidsOf(d)
		if err != nil {
			return err
		}
		entry.Total = len(ids)
		if len(ids) > limit {
			ids = ids[:limit]
		}
		entry.Docids = append(entry.Docids, ids...)
		return nil
	})
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrTimeout, err)
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	docid, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "document id must be an unsigned integer")
		return
	}
	columns, err := h.searcher.Document(r.Context(), docid)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, Document{Docid: docid, Columns: columns})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
		"breaker":  h.cache.BreakerState().String(),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	// A manual flush is usually issued after Redis recovers; do not let an
	// open breaker reject it.
	h.cache.ResetBreaker()
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) countQuery(result string) {
	if h.metrics != nil {
		h.metrics.SearchQueriesTotal.WithLabelValues(result).Inc()
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeAppError maps err to a status code. Server-side failures are not
// echoed to the client.
func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusGatewayTimeout {
		msg = http.StatusText(status)
	}
	h.writeError(w, status, msg)
}
