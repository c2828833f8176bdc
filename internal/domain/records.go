package domain

import (
	"time"

	"github.com/google/uuid"
)

// Category domain records. Each carries a uniquely constrained BookingID
// which is the owning handler's idempotency guard.

type RetailOrder struct {
	ID        uuid.UUID
	BookingID uuid.UUID
	UserRef   *uuid.UUID
	VariantID uuid.UUID
	Quantity  int
	Status    string
	CreatedAt time.Time
}

type HotelStay struct {
	ID         uuid.UUID
	BookingID  uuid.UUID
	UserRef    *uuid.UUID
	RoomTypeID uuid.UUID
	CheckIn    time.Time
	CheckOut   time.Time
	Guests     int
	Status     string
	CreatedAt  time.Time
}

type FlightTicket struct {
	ID            uuid.UUID
	BookingID     uuid.UUID
	UserRef       *uuid.UUID
	FlightID      uuid.UUID
	PassengerName string
	SeatClass     string
	Segments      []FlightSegment
	Status        string
	CreatedAt     time.Time
}

type FlightSegment struct {
	SegmentNo int
	Origin    string
	Dest      string
	DepartAt  time.Time
}

type TransportRide struct {
	ID        uuid.UUID
	BookingID uuid.UUID
	UserRef   *uuid.UUID
	RouteID   uuid.UUID
	PickupAt  time.Time
	Seats     int
	Status    string
	CreatedAt time.Time
}

type EventTicketBatch struct {
	ID        uuid.UUID
	BookingID uuid.UUID
	UserRef   *uuid.UUID
	ShowID    uuid.UUID
	Quantity  int
	Status    string
	CreatedAt time.Time
}
