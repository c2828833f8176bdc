package settlement

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/tripovia/travel-payments/internal/domain"
	"github.com/tripovia/travel-payments/internal/observability"
)

type HotelStore interface {
	HotelStayExists(ctx context.Context, bookingID uuid.UUID) (bool, error)
	AdjustRoomAvailability(ctx context.Context, roomTypeID uuid.UUID, delta int) error
	CreateHotelStay(ctx context.Context, stay domain.HotelStay) error
}

type HotelHandler struct {
	store  HotelStore
	logger observability.Logger
}

func NewHotelHandler(store HotelStore, logger observability.Logger) *HotelHandler {
	return &HotelHandler{store: store, logger: logger}
}

func (h *HotelHandler) Category() domain.Category { return domain.CategoryHotel }

func (h *HotelHandler) Settle(ctx context.Context, booking *domain.Booking) error {
	exists, err := h.store.HotelStayExists(ctx, booking.ID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	roomTypeID, err := metaUUID(booking.Metadata, "room_type_id")
	if err != nil {
		return err
	}
	checkIn, err := metaTime(booking.Metadata, "check_in")
	if err != nil {
		return err
	}
	checkOut, err := metaTime(booking.Metadata, "check_out")
	if err != nil {
		return err
	}
	if !checkOut.After(checkIn) {
		return errors.Wrap(domain.ErrValidation, "check_out must be after check_in")
	}
	guests, err := metaInt(booking.Metadata, "guests")
	if err != nil {
		return err
	}

	if err := h.store.AdjustRoomAvailability(ctx, roomTypeID, -1); err != nil {
		return err
	}

	stay := domain.HotelStay{
		ID:         uuid.New(),
		BookingID:  booking.ID,
		UserRef:    booking.UserRef,
		RoomTypeID: roomTypeID,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		Guests:     guests,
		Status:     "CONFIRMED",
	}
	if err := h.store.CreateHotelStay(ctx, stay); err != nil {
		if cerr := h.store.AdjustRoomAvailability(ctx, roomTypeID, 1); cerr != nil {
			h.logger.WithField("room_type_id", roomTypeID.String()).WithError(cerr).Error("room compensation failed")
		}
		if errors.Is(err, domain.ErrConflict) {
			return nil
		}
		return err
	}
	return nil
}
