package settlement

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/tripovia/travel-payments/internal/domain"
	"github.com/tripovia/travel-payments/internal/observability"
)

type FlightStore interface {
	FlightTicketExists(ctx context.Context, bookingID uuid.UUID) (bool, error)
	AdjustSeatAvailability(ctx context.Context, flightID uuid.UUID, delta int) error
	CreateFlightTicket(ctx context.Context, ticket domain.FlightTicket) error
}

type FlightHandler struct {
	store  FlightStore
	logger observability.Logger
}

func NewFlightHandler(store FlightStore, logger observability.Logger) *FlightHandler {
	return &FlightHandler{store: store, logger: logger}
}

func (h *FlightHandler) Category() domain.Category { return domain.CategoryFlight }

func (h *FlightHandler) Settle(ctx context.Context, booking *domain.Booking) error {
	exists, err := h.store.FlightTicketExists(ctx, booking.ID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	flightID, err := metaUUID(booking.Metadata, "flight_id")
	if err != nil {
		return err
	}
	passenger, err := metaString(booking.Metadata, "passenger_name")
	if err != nil {
		return err
	}
	seatClass, err := metaString(booking.Metadata, "seat_class")
	if err != nil {
		return err
	}
	segments, err := parseSegments(booking.Metadata)
	if err != nil {
		return err
	}

	if err := h.store.AdjustSeatAvailability(ctx, flightID, -1); err != nil {
		return err
	}

	ticket := domain.FlightTicket{
		ID:            uuid.New(),
		BookingID:     booking.ID,
		UserRef:       booking.UserRef,
		FlightID:      flightID,
		PassengerName: passenger,
		SeatClass:     seatClass,
		Segments:      segments,
		Status:        "ISSUED",
	}
	if err := h.store.CreateFlightTicket(ctx, ticket); err != nil {
		if cerr := h.store.AdjustSeatAvailability(ctx, flightID, 1); cerr != nil {
			h.logger.WithField("flight_id", flightID.String()).WithError(cerr).Error("seat compensation failed")
		}
		if errors.Is(err, domain.ErrConflict) {
			return nil
		}
		return err
	}
	return nil
}

func parseSegments(meta map[string]interface{}) ([]domain.FlightSegment, error) {
	raw, ok := meta["segments"].([]interface{})
	if !ok || len(raw) == 0 {
		return nil, errors.Wrap(domain.ErrValidation, "metadata field \"segments\" missing or empty")
	}
	segments := make([]domain.FlightSegment, 0, len(raw))
	for i, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, errors.Wrapf(domain.ErrValidation, "segment %d is not an object", i)
		}
		origin, err := metaString(m, "origin")
		if err != nil {
			return nil, err
		}
		dest, err := metaString(m, "dest")
		if err != nil {
			return nil, err
		}
		departAt, err := metaTime(m, "depart_at")
		if err != nil {
			return nil, err
		}
		segments = append(segments, domain.FlightSegment{
			SegmentNo: i + 1,
			Origin:    origin,
			Dest:      dest,
			DepartAt:  departAt,
		})
	}
	return segments, nil
}
