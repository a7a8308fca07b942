// Command ingestion starts the document ingestion HTTP service.
//
// The service accepts document writes via POST /api/v1/documents and
// DELETE /api/v1/documents/{id}, validates them, and publishes them to a
// Kafka topic for the indexer. It provides a health endpoint at GET /health.
//
// Usage:
//
//	go run ./cmd/ingestion [-config configs/development.yaml]
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
	"time"

	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/ingestion/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/middleware"
)

// main loads configuration, creates the Kafka producer, wires up the
// ingestion handler, and starts the HTTP server. Graceful shutdown is
// triggered by SIGINT/SIGTERM.
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting ingestion service", "port", cfg.Server.Port)

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest)
	defer producer.Close()
	slog.Info("kafka producer initialized", "topic", cfg.Kafka.Topics.DocumentIngest)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	h := handler.New(publisher.New(producer))
	api := h.Routes()
	if cfg.Server.RateLimit > 0 {
		limiter := ratelimit.New(cfg.Server.RateLimit, time.Minute)
		go limiter.Run(ctx, 5*time.Minute)
		api = middleware.RateLimit(limiter)(api)
		slog.Info("write rate limit enabled", "per_minute", cfg.Server.RateLimit)
	}
	mux := http.NewServeMux()
	mux.Handle("/api/", api)
	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("GET /metrics", metrics.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Metrics(m)(mux),
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
	slog.Info("ingestion service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("ingestion service stopped")
}
