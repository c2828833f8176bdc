package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tripovia/travel-payments/internal/domain"
)

// Category domain records and their inventory counters. Each insert is
// guarded by a unique booking_id; each counter update carries its own
// non-negative guard in the WHERE clause.

func (r *Repository) recordExists(ctx context.Context, table string, bookingID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE booking_id = $1)`, bookingID).Scan(&exists)
	return exists, err
}

func (r *Repository) RetailOrderExists(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	return r.recordExists(ctx, "retail_orders", bookingID)
}

func (r *Repository) CreateRetailOrder(ctx context.Context, order domain.RetailOrder) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO retail_orders (id, booking_id, user_ref, variant_id, quantity, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`, order.ID, order.BookingID, order.UserRef, order.VariantID, order.Quantity, order.Status)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	return err
}

func (r *Repository) AdjustVariantStock(ctx context.Context, variantID uuid.UUID, delta int) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE variant_stock SET on_hand = on_hand + $2
		WHERE variant_id = $1 AND on_hand + $2 >= 0
	`, variantID, delta)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrInsufficientStock
	}
	return nil
}

func (r *Repository) HotelStayExists(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	return r.recordExists(ctx, "hotel_stays", bookingID)
}

func (r *Repository) CreateHotelStay(ctx context.Context, stay domain.HotelStay) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO hotel_stays (id, booking_id, user_ref, room_type_id, check_in, check_out, guests, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
	`, stay.ID, stay.BookingID, stay.UserRef, stay.RoomTypeID, stay.CheckIn, stay.CheckOut, stay.Guests, stay.Status)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	return err
}

func (r *Repository) AdjustRoomAvailability(ctx context.Context, roomTypeID uuid.UUID, delta int) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE room_types SET available = available + $2
		WHERE id = $1 AND available + $2 >= 0
	`, roomTypeID, delta)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrInsufficientStock
	}
	return nil
}

func (r *Repository) FlightTicketExists(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	return r.recordExists(ctx, "flight_tickets", bookingID)
}

func (r *Repository) CreateFlightTicket(ctx context.Context, ticket domain.FlightTicket) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO flight_tickets (id, booking_id, user_ref, flight_id, passenger_name, seat_class, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		`, ticket.ID, ticket.BookingID, ticket.UserRef, ticket.FlightID, ticket.PassengerName, ticket.SeatClass, ticket.Status)
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		if err != nil {
			return err
		}

		// Segment inserts stay sequential: a pgx.Tx serves one statement at
		// a time.
		for _, seg := range ticket.Segments {
			_, err := tx.Exec(ctx, `
				INSERT INTO flight_segments (ticket_id, segment_no, origin, dest, depart_at)
				VALUES ($1, $2, $3, $4, $5)
			`, ticket.ID, seg.SegmentNo, seg.Origin, seg.Dest, seg.DepartAt)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) AdjustSeatAvailability(ctx context.Context, flightID uuid.UUID, delta int) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE flights SET seats_available = seats_available + $2
		WHERE id = $1 AND seats_available + $2 >= 0
	`, flightID, delta)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrInsufficientStock
	}
	return nil
}

func (r *Repository) TransportRideExists(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	return r.recordExists(ctx, "transport_rides", bookingID)
}

func (r *Repository) CreateTransportRide(ctx context.Context, ride domain.TransportRide) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO transport_rides (id, booking_id, user_ref, route_id, pickup_at, seats, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
	`, ride.ID, ride.BookingID, ride.UserRef, ride.RouteID, ride.PickupAt, ride.Seats, ride.Status)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	return err
}

func (r *Repository) AdjustRouteSeats(ctx context.Context, routeID uuid.UUID, delta int) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE transport_routes SET seats_available = seats_available + $2
		WHERE id = $1 AND seats_available + $2 >= 0
	`, routeID, delta)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrInsufficientStock
	}
	return nil
}

func (r *Repository) EventTicketBatchExists(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	return r.recordExists(ctx, "event_ticket_batches", bookingID)
}

func (r *Repository) CreateEventTicketBatch(ctx context.Context, batch domain.EventTicketBatch) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_ticket_batches (id, booking_id, user_ref, show_id, quantity, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`, batch.ID, batch.BookingID, batch.UserRef, batch.ShowID, batch.Quantity, batch.Status)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	return err
}

func (r *Repository) ConfirmHeldTickets(ctx context.Context, showID uuid.UUID, quantity int) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE shows SET held = held - $2, sold = sold + $2
		WHERE id = $1 AND held >= $2
	`, showID, quantity)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrInsufficientStock
	}
	return nil
}

func (r *Repository) ReleaseConfirmedTickets(ctx context.Context, showID uuid.UUID, quantity int) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE shows SET held = held + $2, sold = sold - $2
		WHERE id = $1 AND sold >= $2
	`, showID, quantity)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrInsufficientStock
	}
	return nil
}
