package settlement

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/tripovia/travel-payments/internal/domain"
	"github.com/tripovia/travel-payments/internal/observability"
)

type TransportStore interface {
	TransportRideExists(ctx context.Context, bookingID uuid.UUID) (bool, error)
	AdjustRouteSeats(ctx context.Context, routeID uuid.UUID, delta int) error
	CreateTransportRide(ctx context.Context, ride domain.TransportRide) error
}

type TransportHandler struct {
	store  TransportStore
	logger observability.Logger
}

func NewTransportHandler(store TransportStore, logger observability.Logger) *TransportHandler {
	return &TransportHandler{store: store, logger: logger}
}

func (h *TransportHandler) Category() domain.Category { return domain.CategoryTransport }

func (h *TransportHandler) Settle(ctx context.Context, booking *domain.Booking) error {
	exists, err := h.store.TransportRideExists(ctx, booking.ID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	routeID, err := metaUUID(booking.Metadata, "route_id")
	if err != nil {
		return err
	}
	pickupAt, err := metaTime(booking.Metadata, "pickup_at")
	if err != nil {
		return err
	}
	seats, err := metaInt(booking.Metadata, "seats")
	if err != nil {
		return err
	}
	if seats <= 0 {
		return errors.Wrap(domain.ErrValidation, "seats must be positive")
	}

	if err := h.store.AdjustRouteSeats(ctx, routeID, -seats); err != nil {
		return err
	}

	ride := domain.TransportRide{
		ID:        uuid.New(),
		BookingID: booking.ID,
		UserRef:   booking.UserRef,
		RouteID:   routeID,
		PickupAt:  pickupAt,
		Seats:     seats,
		Status:    "RESERVED",
	}
	if err := h.store.CreateTransportRide(ctx, ride); err != nil {
		if cerr := h.store.AdjustRouteSeats(ctx, routeID, seats); cerr != nil {
			h.logger.WithField("route_id", routeID.String()).WithError(cerr).Error("route seat compensation failed")
		}
		if errors.Is(err, domain.ErrConflict) {
			return nil
		}
		return err
	}
	return nil
}
