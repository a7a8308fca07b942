// Command searcher serves the search HTTP API over the PostgreSQL-backed
// index. Results are cached in Redis when it is reachable; the cache is
// flushed whenever the indexer announces a write.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/storage/pgstore"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	tables := pgstore.TablesFor(cfg.Postgres.Table)
	if err := pgstore.Migrate(ctx, db, tables); err != nil {
		slog.Error("failed to migrate index tables", "error", err)
		os.Exit(1)
	}
	retry := resilience.RetryConfig{
		MaxAttempts:  cfg.Indexer.StoreRetries,
		InitialDelay: cfg.Indexer.StoreRetryDelay,
	}

	m := metrics.New()
	engine := indexer.NewEngine(
		cfg.Indexer,
		pgstore.NewTermStore(db.DB, tables.Terms, retry),
		pgstore.NewContentStore(db.DB, tables.Content, retry),
		indexer.WithMetrics(m),
	)

	checker := health.NewChecker()
	checker.Register("postgres", health.PingCheck(db))

	var queryCache *cache.QueryCache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
		checker.Register("redis", func(context.Context) health.ComponentHealth {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		})
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
		checker.Register("redis", health.DegradedCheck(redisClient))
		slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)

		// Every searcher instance must see every invalidation, so each
		// joins its own consumer group.
		host, _ := os.Hostname()
		group := fmt.Sprintf("%s-searcher-%s-%d", cfg.Kafka.ConsumerGroup, host, os.Getpid())
		invalidations := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate, group, cache.InvalidationHandler(queryCache))
		go func() {
			if err := invalidations.Start(ctx); err != nil {
				slog.Error("invalidation consumer error", "error", err)
			}
		}()
		slog.Info("cache invalidation consumer started", "topic", cfg.Kafka.Topics.CacheInvalidate, "group", group)
	}

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			if err := shutdownMetrics(context.Background()); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	h := handler.New(engine, queryCache, m, cfg.Search)

	mux := http.NewServeMux()
	mux.Handle("/api/", h.Routes())
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Timeout(cfg.Server.WriteTimeout)(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
