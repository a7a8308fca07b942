// Package cache keeps search results in Redis, keyed by the canonical form
// of the parsed query. Concurrent misses for the same key are collapsed with
// singleflight, and a circuit breaker stops calling Redis while it is down.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/resilience"
)

const keyPrefix = "fts:search:"

// Backend is the key-value store behind the cache. *pkgredis.Client
// implements it.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Entry is one cached search result.
type Entry struct {
	Query  string   `json:"query"`
	Docids []uint64 `json:"docids"`
	Total  int      `json:"total"`
}

type QueryCache struct {
	backend Backend
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	isMiss  func(error) bool
	hits    atomic.Int64
	misses  atomic.Int64
}

// New returns a cache over backend. m may be nil.
func New(backend Backend, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		backend: backend,
		ttl:     ttl,
		breaker: resilience.NewCircuitBreaker("search-cache", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     10 * time.Second,
		}),
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
		isMiss:  pkgredis.IsNilError,
	}
}

// Get returns the cached entry for q and limit.
func (c *QueryCache) Get(ctx context.Context, q *parser.Query, limit int) (*Entry, bool) {
	key := c.buildKey(q, limit)
	var data string
	err := c.call(func() error {
		var err error
		data, err = c.backend.Get(ctx, key)
		if c.isMiss(err) {
			return nil
		}
		return err
	})
	if err != nil || data == "" {
		if err != nil {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var entry Entry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	return &entry, true
}

func (c *QueryCache) Set(ctx context.Context, q *parser.Query, limit int, entry *Entry) {
	key := c.buildKey(q, limit)
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.call(func() error { return c.backend.Set(ctx, key, data, c.ttl) }); err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached entry for q or computes and stores it.
// The bool reports a cache hit. Cache failures never fail the search.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	q *parser.Query,
	limit int,
	computeFn func() (*Entry, error),
) (*Entry, bool, error) {
	if entry, ok := c.Get(ctx, q, limit); ok {
		return entry, true, nil
	}
	key := c.buildKey(q, limit)
	val, err, _ := c.group.Do(key, func() (any, error) {
		entry, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, q, limit, entry)
		return entry, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*Entry), false, nil
}

// Invalidate drops every cached search.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	var deleted int64
	err := c.call(func() error {
		var err error
		deleted, err = c.backend.FlushByPattern(ctx, keyPrefix+"*")
		return err
	})
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// InvalidationHandler flushes the cache for every applied write announced
// on the invalidation topic. Any write can change any query's result, so
// the whole cache goes. A Redis failure is logged, not retried; entries
// still expire with their TTL.
func InvalidationHandler(c *QueryCache) kafka.MessageHandler {
	return func(ctx context.Context, _ []byte, value []byte) error {
		ev, err := kafka.DecodeJSON[ingestion.InvalidationEvent](value)
		if err != nil {
			c.logger.Error("failed to decode invalidation event", "error", err)
			return nil
		}
		if _, err := c.Invalidate(ctx); err != nil {
			c.logger.Error("invalidation failed", "op", ev.Op, "doc_id", ev.DocID, "error", err)
		}
		return nil
	}
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// BreakerState reports the state of the Redis circuit breaker.
func (c *QueryCache) BreakerState() resilience.State {
	return c.breaker.GetState()
}

// ResetBreaker closes the Redis circuit breaker so the next call reaches
// Redis without waiting out the reset timeout.
func (c *QueryCache) ResetBreaker() {
	c.breaker.Reset()
	if c.metrics != nil {
		c.metrics.CircuitBreakerState.WithLabelValues("search-cache").Set(float64(c.breaker.GetState()))
	}
}

func (c *QueryCache) call(fn func() error) error {
	err := c.breaker.Execute(fn)
	if c.metrics != nil {
		c.metrics.CircuitBreakerState.WithLabelValues("search-cache").Set(float64(c.breaker.GetState()))
	}
	return err
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// buildKey hashes the canonical query so that equivalent spellings such as
// extra whitespace or letter case share an entry.
func (c *QueryCache) buildKey(q *parser.Query, limit int) string {
	raw := fmt.Sprintf("%s:limit=%d", q.String(), limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
