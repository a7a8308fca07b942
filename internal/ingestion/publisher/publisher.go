// Package publisher validates document events and produces them to Kafka
// for the indexer. Events are keyed by docid so every write to one document
// lands on the same partition and is applied in publish order.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/kafka"
)

// Producer is satisfied by *kafka.Producer.
type Producer interface {
	Publish(ctx context.Context, event kafka.Event) error
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

type Publisher struct {
	producer Producer
	now      func() time.Time
	logger   *slog.Logger
}

func New(producer Producer) *Publisher {
	return &Publisher{
		producer: producer,
		now:      time.Now,
		logger:   slog.Default().With("component", "publisher"),
	}
}

// Publish validates ev, stamps it and writes it to the ingest topic.
// Validation failures are AppErrors with status 400.
func (p *Publisher) Publish(ctx context.Context, ev *ingestion.DocumentEvent) error {
	event, err := p.prepare(ev)
	if err != nil {
		return err
	}
	if err := p.producer.Publish(ctx, event); err != nil {
		return fmt.Errorf("%w: publishing %s of docid %d: %w", apperrors.ErrUnavailable, ev.Op, ev.DocID, err)
	}
	p.logger.Debug("document event published", "op", ev.Op, "doc_id", ev.DocID)
	return nil
}

// PublishBatch validates every event before writing any, then sends them in
// one producer call. A validation failure names the offending index.
func (p *Publisher) PublishBatch(ctx context.Context, evs []*ingestion.DocumentEvent) error {
	events := make([]kafka.Event, 0, len(evs))
	for i, ev := range evs {
		event, err := p.prepare(ev)
		if err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
		events = append(events, event)
	}
	if len(events) == 0 {
		return nil
	}
	if err := p.producer.PublishBatch(ctx, events); err != nil {
		return fmt.Errorf("%w: publishing %d events: %w", apperrors.ErrUnavailable, len(events), err)
	}
	p.logger.Debug("document events published", "count", len(events))
	return nil
}

func (p *Publisher) prepare(ev *ingestion.DocumentEvent) (kafka.Event, error) {
	if err := validator.ValidateEvent(ev); err != nil {
		return kafka.Event{}, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, err.Error())
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = p.now().UTC()
	}
	return kafka.Event{
		Key:   strconv.FormatUint(ev.DocID, 10),
		Value: ev,
	}, nil
}
