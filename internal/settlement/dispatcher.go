// Package settlement turns paid bookings into category domain records.
// The SETTLEMENT_COMPLETED ledger row is the only cross-process lock: its
// uniqueness constraint makes concurrent and retried settlement a no-op.
package settlement

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/tripovia/travel-payments/internal/domain"
	"github.com/tripovia/travel-payments/internal/identity"
	"github.com/tripovia/travel-payments/internal/observability"
)

// Handler is the settlement logic for one booking category.
type Handler interface {
	Category() domain.Category
	Settle(ctx context.Context, booking *domain.Booking) error
}

type Store interface {
	GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	HasEvent(ctx context.Context, bookingID uuid.UUID, typ domain.EventType) (bool, error)
	// ConfirmBooking moves the booking to CONFIRMED/PAID.
	ConfirmBooking(ctx context.Context, id uuid.UUID) error
	// AppendEvent returns domain.ErrDuplicateEvent on a uniqueness
	// violation.
	AppendEvent(ctx context.Context, ev domain.BookingEvent) error
}

// Locker is an advisory fast path that keeps concurrent settlements from
// duplicating handler work. The ledger constraint stays authoritative.
type Locker interface {
	AcquireSettlement(ctx context.Context, bookingID uuid.UUID) (bool, error)
	ReleaseSettlement(ctx context.Context, bookingID uuid.UUID) error
}

type Dispatcher struct {
	store    Store
	handlers map[domain.Category]Handler
	resolver identity.Resolver
	locker   Locker
	logger   observability.Logger
}

func NewDispatcher(store Store, resolver identity.Resolver, locker Locker, logger observability.Logger, handlers ...Handler) *Dispatcher {
	m := make(map[domain.Category]Handler, len(handlers))
	for _, h := range handlers {
		m[h.Category()] = h
	}
	return &Dispatcher{
		store:    store,
		handlers: m,
		resolver: resolver,
		locker:   locker,
		logger:   logger,
	}
}

func (d *Dispatcher) Settle(ctx context.Context, bookingID uuid.UUID) error {
	booking, err := d.store.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}

	done, err := d.store.HasEvent(ctx, bookingID, domain.EventSettlementCompleted)
	if err != nil {
		return errors.Wrap(domain.ErrPersistence, err.Error())
	}
	if done {
		return nil
	}

	handler, ok := d.handlers[booking.Category]
	if !ok {
		// Some categories are intentionally unimplemented; this is not a
		// failure.
		d.logger.WithField("category", string(booking.Category)).Warn("no settlement handler registered")
		observability.SettlementsTotal.WithLabelValues(string(booking.Category), "unsupported").Inc()
		return nil
	}

	if d.locker != nil {
		acquired, err := d.locker.AcquireSettlement(ctx, bookingID)
		if err != nil {
			d.logger.WithError(err).Warn("settlement lock unavailable")
		} else if acquired {
			defer d.locker.ReleaseSettlement(ctx, bookingID)
		}
	}

	if booking.UserRef == nil && d.resolver != nil {
		subject, _ := booking.Metadata["subject"].(string)
		userRef, err := d.resolver.Resolve(ctx, subject)
		if err != nil {
			return errors.Wrapf(err, "resolve subject %q", subject)
		}
		booking.UserRef = userRef
	}

	if err := handler.Settle(ctx, booking); err != nil {
		observability.SettlementsTotal.WithLabelValues(string(booking.Category), "handler_error").Inc()
		return errors.Wrapf(err, "settle %s booking %s", booking.Category, bookingID)
	}

	if err := d.store.ConfirmBooking(ctx, bookingID); err != nil {
		return errors.Wrap(domain.ErrPersistence, err.Error())
	}

	err = d.store.AppendEvent(ctx, domain.NewBookingEvent(bookingID, domain.EventSettlementCompleted, map[string]interface{}{
		"category": string(booking.Category),
	}))
	if err != nil && !errors.Is(err, domain.ErrDuplicateEvent) {
		return errors.Wrap(domain.ErrPersistence, err.Error())
	}
	// A duplicate here means a concurrent settlement won the race; that
	// writer is authoritative.

	observability.SettlementsTotal.WithLabelValues(string(booking.Category), "completed").Inc()
	return nil
}
