package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventWebhookUnmatched    EventType = "WEBHOOK_UNMATCHED"
	EventSettlementCompleted EventType = "SETTLEMENT_COMPLETED"
	EventPaymentFailed       EventType = "PAYMENT_FAILED"
)

// BookingEvent is an append-only ledger row. SETTLEMENT_COMPLETED is
// uniquely constrained per booking and doubles as the settlement
// idempotency marker.
type BookingEvent struct {
	ID        uuid.UUID
	BookingID uuid.UUID
	Type      EventType
	Metadata  map[string]interface{}
	Published bool
	CreatedAt time.Time
}

func NewBookingEvent(bookingID uuid.UUID, typ EventType, meta map[string]interface{}) BookingEvent {
	return BookingEvent{
		ID:        uuid.New(),
		BookingID: bookingID,
		Type:      typ,
		Metadata:  meta,
	}
}
