// Command ftsctl is the operator CLI for the full-text index. It writes to
// and queries the PostgreSQL-backed index directly, and can publish document
// events to Kafka for the indexer service.
//
// Usage:
//
//	ftsctl [--config FILE] index 42 "title" "body text"
//	ftsctl query 'apple "pie crust" -cherry'
//	ftsctl inspect apple
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/storage/pgstore"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/resilience"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newApp(backends{openEngine: openEngine, openPublisher: openPublisher})
	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "ftsctl: %v\n", err)
		os.Exit(1)
	}
}

func openEngine(ctx context.Context, cfg *config.Config) (*indexer.Engine, func() error, error) {
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		return nil, nil, err
	}
	tables := pgstore.TablesFor(cfg.Postgres.Table)
	if err := pgstore.Migrate(ctx, db, tables); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	retry := resilience.RetryConfig{
		MaxAttempts:  cfg.Indexer.StoreRetries,
		InitialDelay: cfg.Indexer.StoreRetryDelay,
	}
	e := indexer.NewEngine(
		cfg.Indexer,
		pgstore.NewTermStore(db.DB, tables.Terms, retry),
		pgstore.NewContentStore(db.DB, tables.Content, retry),
	)
	return e, db.Close, nil
}

func openPublisher(cfg *config.Config) (*publisher.Publisher, func() error) {
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest)
	return publisher.New(producer), producer.Close
}
