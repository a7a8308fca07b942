package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

var defaultLoadQueries = []string{
	"search engine",
	`"inverted index"`,
	"segment OR chunk",
	"posting -deleted",
	"query processing",
	"phrase column",
}

// loadStats collects per-request outcomes from all workers.
type loadStats struct {
	mu          sync.Mutex
	requests    int
	errors      int
	cacheHits   int
	latencies   []time.Duration
	statusCodes map[int]int
}

func (s *loadStats) record(d time.Duration, status int, cacheHit bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++
	if err != nil {
		s.errors++
		return
	}
	if status < 200 || status >= 300 {
		s.errors++
	}
	if cacheHit {
		s.cacheHits++
	}
	s.latencies = append(s.latencies, d)
	s.statusCodes[status]++
}

func loadtestCommand() *cli.Command {
	return &cli.Command{
		Name:  "loadtest",
		Usage: "Drive concurrent queries against a running search service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "url",
				Usage: "Base URL of the search service",
				Value: "http://localhost:8080",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Number of concurrent workers",
				Value: 10,
			},
			&cli.DurationFlag{
				Name:  "duration",
				Usage: "How long to keep sending queries",
				Value: 30 * time.Second,
			},
			&cli.StringSliceFlag{
				Name:    "query",
				Aliases: []string{"q"},
				Usage:   "Query to send; repeat for several (default: a built-in mix)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			queries := c.StringSlice("query")
			if len(queries) == 0 {
				queries = defaultLoadQueries
			}
			concurrency := int(c.Int("concurrency"))
			if concurrency < 1 {
				return fmt.Errorf("%w: concurrency must be positive", errUsage)
			}
			stats, err := runLoadTest(ctx, c.String("url"), concurrency, c.Duration("duration"), queries)
			if err != nil {
				return err
			}
			return printLoadReport(c.Root().Writer, stats, c.Duration("duration"))
		},
	}
}

func runLoadTest(ctx context.Context, baseURL string, concurrency int, duration time.Duration, queries []string) (*loadStats, error) {
	stats := &loadStats{statusCodes: make(map[int]int)}
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        concurrency * 2,
			MaxIdleConnsPerHost: concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < concurrency; w++ {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				query := queries[i%len(queries)]
				target := fmt.Sprintf("%s/api/v1/search?q=%s&limit=10", baseURL, url.QueryEscape(query))
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
				if err != nil {
					return err
				}
				start := time.Now()
				resp, err := client.Do(req)
				if err != nil {
					if ctx.Err() == nil {
						stats.record(time.Since(start), 0, false, err)
					}
					continue
				}
				var body struct {
					CacheHit bool `json:"cache_hit"`
				}
				_ = json.NewDecoder(resp.Body).Decode(&body)
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.record(time.Since(start), resp.StatusCode, body.CacheHit, nil)
			}
			return nil
		})
	}
	return stats, g.Wait()
}

func printLoadReport(w io.Writer, stats *loadStats, duration time.Duration) error {
	stats.mu.Lock()
	defer stats.mu.Unlock()
	total := stats.requests

	fmt.Fprintf(w, "requests:   %d\n", total)
	fmt.Fprintf(w, "errors:     %d\n", stats.errors)
	fmt.Fprintf(w, "cache hits: %d\n", stats.cacheHits)
	if total == 0 {
		return fmt.Errorf("no requests completed; is the search service running?")
	}
	fmt.Fprintf(w, "req/sec:    %.2f\n", float64(total)/duration.Seconds())

	latencies := slices.Clone(stats.latencies)
	slices.Sort(latencies)
	if len(latencies) > 0 {
		fmt.Fprintf(w, "latency min %s p50 %s p90 %s p99 %s max %s\n",
			latencies[0],
			percentile(latencies, 50),
			percentile(latencies, 90),
			percentile(latencies, 99),
			latencies[len(latencies)-1],
		)
	}
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "status %d: %d\n", code, stats.statusCodes[code])
	}
	return nil
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
