// Command indexer consumes document events from Kafka and applies them to
// the PostgreSQL-backed full-text index. Every applied write is announced on
// the cache invalidation topic.
//
// Usage:
//
//	go run ./cmd/indexer [-config configs/development.yaml]
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
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/storage/pgstore"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/postgres"
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
	slog.Info("starting indexer service",
		"chunk_max", cfg.Indexer.ChunkMax,
		"max_segments", cfg.Indexer.MaxSegments,
	)

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

	invalidations := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate)
	defer invalidations.Close()

	handler := consumer.HandleMessage(engine, invalidations, cfg.Kafka.Topics.DocumentIngest, m)
	kafkaConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest, cfg.Kafka.ConsumerGroup, handler)
	indexConsumer := consumer.New(kafkaConsumer)

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			if err := shutdownMetrics(context.Background()); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	checker := health.NewChecker()
	checker.Register("postgres", health.PingCheck(db))
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("health server error", "error", err)
		}
	}()

	slog.Info("indexer service ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.DocumentIngest,
		"group", cfg.Kafka.ConsumerGroup,
		"invalidation_topic", cfg.Kafka.Topics.CacheInvalidate,
	)
	if err := indexConsumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("health server shutdown error", "error", err)
	}
	slog.Info("indexer service stopped")
}
