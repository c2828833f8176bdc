package settlement

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/tripovia/travel-payments/internal/domain"
	"github.com/tripovia/travel-payments/internal/observability"
)

type EventStore interface {
	EventTicketBatchExists(ctx context.Context, bookingID uuid.UUID) (bool, error)
	// ConfirmHeldTickets moves quantity tickets from held to sold and
	// fails with domain.ErrInsufficientStock when not enough are held.
	ConfirmHeldTickets(ctx context.Context, showID uuid.UUID, quantity int) error
	// ReleaseConfirmedTickets reverses ConfirmHeldTickets.
	ReleaseConfirmedTickets(ctx context.Context, showID uuid.UUID, quantity int) error
	CreateEventTicketBatch(ctx context.Context, batch domain.EventTicketBatch) error
}

type EventHandler struct {
	store  EventStore
	logger observability.Logger
}

func NewEventHandler(store EventStore, logger observability.Logger) *EventHandler {
	return &EventHandler{store: store, logger: logger}
}

func (h *EventHandler) Category() domain.Category { return domain.CategoryEvent }

func (h *EventHandler) Settle(ctx context.Context, booking *domain.Booking) error {
	exists, err := h.store.EventTicketBatchExists(ctx, booking.ID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	showID, err := metaUUID(booking.Metadata, "show_id")
	if err != nil {
		return err
	}
	quantity, err := metaInt(booking.Metadata, "quantity")
	if err != nil {
		return err
	}
	if quantity <= 0 {
		return errors.Wrap(domain.ErrValidation, "quantity must be positive")
	}

	if err := h.store.ConfirmHeldTickets(ctx, showID, quantity); err != nil {
		return err
	}

	batch := domain.EventTicketBatch{
		ID:        uuid.New(),
		BookingID: booking.ID,
		UserRef:   booking.UserRef,
		ShowID:    showID,
		Quantity:  quantity,
		Status:    "ISSUED",
	}
	if err := h.store.CreateEventTicketBatch(ctx, batch); err != nil {
		if cerr := h.store.ReleaseConfirmedTickets(ctx, showID, quantity); cerr != nil {
			h.logger.WithField("show_id", showID.String()).WithError(cerr).Error("ticket compensation failed")
		}
		if errors.Is(err, domain.ErrConflict) {
			return nil
		}
		return err
	}
	return nil
}
