package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tripovia/travel-payments/internal/observability"
)

// WebhookArchive is the append-only store of every webhook payload the
// pipeline received, kept for audit and replay.
type WebhookArchive struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewWebhookArchive(db *mongo.Database, logger observability.Logger) *WebhookArchive {
	return &WebhookArchive{
		coll:   db.Collection("webhook_archive"),
		logger: logger,
	}
}

type archiveDoc struct {
	ID         uuid.UUID `bson:"_id"`
	Provider   string    `bson:"provider"`
	Payload    string    `bson:"payload"`
	Verdict    string    `bson:"verdict"`
	ReceivedAt time.Time `bson:"received_at"`
}

func (a *WebhookArchive) StoreWebhook(ctx context.Context, providerName string, payload []byte, verdict string) error {
	doc := archiveDoc{
		ID:         uuid.New(),
		Provider:   providerName,
		Payload:    string(payload),
		Verdict:    verdict,
		ReceivedAt: time.Now(),
	}
	_, err := a.coll.InsertOne(ctx, doc)
	if err != nil {
		a.logger.Error("failed to archive webhook", err)
		return err
	}
	return nil
}
