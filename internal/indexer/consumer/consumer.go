// Package consumer applies document events from Kafka to the engine and
// announces every applied write on the cache invalidation topic.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/metrics"
)

// Applier is the write side of the engine.
type Applier interface {
	Insert(ctx context.Context, docid uint64, columns ...string) error
	Update(ctx context.Context, docid uint64, columns ...string) error
	Put(ctx context.Context, docid uint64, columns ...string) error
	Delete(ctx context.Context, docid uint64) error
}

// Notifier publishes invalidation events. *kafka.Producer implements it.
type Notifier interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// IndexConsumer drives the indexing pipeline from a Kafka consumer.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleMessage returns a handler applying document events to engine.
// Malformed events and writes that redelivery already applied (an insert of
// an existing docid, a delete of a missing one) are logged and skipped so
// they are committed; any other failure leaves the message uncommitted.
// notifier and m may be nil.
func HandleMessage(engine Applier, notifier Notifier, topic string, m *metrics.Metrics) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	count := func(status string) {
		if m != nil {
			m.ConsumerMessagesTotal.WithLabelValues(topic, status).Inc()
		}
	}
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.DocumentEvent](value)
		if err != nil {
			logger.Error("failed to decode document event", "error", err, "key", string(key))
			count("invalid")
			return nil
		}
		if err := validator.ValidateEvent(&event); err != nil {
			logger.Error("invalid document event", "error", err, "doc_id", event.DocID)
			count("invalid")
			return nil
		}

		err = apply(ctx, engine, &event)
		switch {
		case err == nil:
		case event.Op == ingestion.OpInsert && errors.Is(err, apperrors.ErrDocumentExists),
			event.Op != ingestion.OpInsert && errors.Is(err, apperrors.ErrDocumentNotFound):
			logger.Warn("document event skipped", "op", event.Op, "doc_id", event.DocID, "reason", err)
			count("skipped")
			return nil
		default:
			count("failed")
			return fmt.Errorf("applying %s of docid %d: %w", event.Op, event.DocID, err)
		}
		count("applied")
		logger.Info("document event applied", "op", event.Op, "doc_id", event.DocID)

		if notifier != nil {
			inv := kafka.Event{
				Key: strconv.FormatUint(event.DocID, 10),
				Value: ingestion.InvalidationEvent{
					Op:        event.Op,
					DocID:     event.DocID,
					Timestamp: time.Now().UTC(),
				},
			}
			if err := notifier.Publish(ctx, inv); err != nil {
				// Cached results expire with their TTL.
				logger.Error("failed to publish cache invalidation", "doc_id", event.DocID, "error", err)
			}
		}
		return nil
	}
}

func apply(ctx context.Context, engine Applier, ev *ingestion.DocumentEvent) error {
	switch ev.Op {
	case ingestion.OpInsert:
		return engine.Insert(ctx, ev.DocID, ev.Columns...)
	case ingestion.OpUpdate:
		return engine.Update(ctx, ev.DocID, ev.Columns...)
	case ingestion.OpPut:
		return engine.Put(ctx, ev.DocID, ev.Columns...)
	case ingestion.OpDelete:
		return engine.Delete(ctx, ev.DocID)
	}
	return fmt.Errorf("unknown op %q", ev.Op)
}
