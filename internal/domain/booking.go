package domain

import (
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryRetail    Category = "RETAIL"
	CategoryHotel     Category = "HOTEL"
	CategoryFlight    Category = "FLIGHT"
	CategoryTransport Category = "TRANSPORT"
	CategoryEvent     Category = "EVENT"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
)

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "UNPAID"
	PaymentPaid   PaymentStatus = "PAID"
)

// Booking is the category-agnostic purchase record. Amount is in minor
// units of Currency. UserRef is nil for guest checkout until identity
// resolution at settlement time.
type Booking struct {
	ID            uuid.UUID
	Category      Category
	Amount        int64
	Currency      string
	Status        BookingStatus
	PaymentStatus PaymentStatus
	Metadata      map[string]interface{}
	UserRef       *uuid.UUID
	CreatedAt     time.Time
}
