// Package events relays the booking event ledger to the message broker
// for out-of-process consumers (notifications, reconciliation).
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tripovia/travel-payments/internal/adapters/postgres"
	"github.com/tripovia/travel-payments/internal/adapters/rabbit"
	"github.com/tripovia/travel-payments/internal/observability"
)

type Publisher struct {
	repo      *postgres.Repository
	rabbitPub *rabbit.Publisher
	logger    observability.Logger
}

func NewPublisher(repo *postgres.Repository, rabbitPub *rabbit.Publisher, logger observability.Logger) *Publisher {
	return &Publisher{repo: repo, rabbitPub: rabbitPub, logger: logger}
}

func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.publishBatch(ctx)
		}
	}
}

// publishBatch fetches, publishes and marks one batch inside a single
// transaction so the SKIP LOCKED row locks keep concurrent publisher
// instances off the same events until commit.
func (p *Publisher) publishBatch(ctx context.Context) {
	err := p.repo.WithTx(ctx, func(tx pgx.Tx) error {
		events, err := p.repo.GetUnpublishedEvents(ctx, tx, 50)
		if err != nil {
			return err
		}
		for _, ev := range events {
			payload, err := json.Marshal(map[string]interface{}{
				"event_id":   ev.ID,
				"booking_id": ev.BookingID,
				"type":       string(ev.Type),
				"metadata":   ev.Metadata,
				"created_at": ev.CreatedAt.Format(time.RFC3339),
			})
			if err != nil {
				continue
			}
			msg := amqp.Publishing{
				MessageId:   ev.ID.String(),
				ContentType: "application/json",
				Body:        payload,
			}
			if err := p.rabbitPub.Publish(ctx, routingKey(string(ev.Type)), msg); err != nil {
				// Leave the row unpublished; its lock releases at commit
				// and a later batch retries it.
				p.logger.WithField("event_id", ev.ID.String()).WithError(err).Warn("event publish failed")
				continue
			}
			if err := p.repo.MarkEventPublished(ctx, tx, ev.ID); err != nil {
				return err
			}
			observability.EventsPublished.Inc()
		}
		return nil
	})
	if err != nil {
		p.logger.WithError(err).Error("event batch failed")
	}
}

func routingKey(eventType string) string {
	switch eventType {
	case "SETTLEMENT_COMPLETED":
		return "booking.confirmed"
	case "PAYMENT_FAILED":
		return "payment.failed"
	default:
		return "booking.event"
	}
}
