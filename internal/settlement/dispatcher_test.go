package settlement_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tripovia/travel-payments/internal/domain"
	"github.com/tripovia/travel-payments/internal/observability"
	"github.com/tripovia/travel-payments/internal/settlement"
)

type fakeStore struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*domain.Booking
	events   map[string]bool
	confirms int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bookings: map[uuid.UUID]*domain.Booking{},
		events:   map[string]bool{},
	}
}

func eventKey(bookingID uuid.UUID, typ domain.EventType) string {
	return bookingID.String() + "/" + string(typ)
}

func (f *fakeStore) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	copied := *b
	return &copied, nil
}

func (f *fakeStore) HasEvent(ctx context.Context, bookingID uuid.UUID, typ domain.EventType) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[eventKey(bookingID, typ)], nil
}

func (f *fakeStore) ConfirmBooking(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.bookings[id]; ok {
		b.Status = domain.BookingConfirmed
		b.PaymentStatus = domain.PaymentPaid
	}
	f.confirms++
	return nil
}

func (f *fakeStore) AppendEvent(ctx context.Context, ev domain.BookingEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := eventKey(ev.BookingID, ev.Type)
	if ev.Type == domain.EventSettlementCompleted && f.events[key] {
		return domain.ErrDuplicateEvent
	}
	f.events[key] = true
	return nil
}

type fakeHandler struct {
	mu       sync.Mutex
	category domain.Category
	calls    int
	err      error
	seen     []*domain.Booking
}

func (f *fakeHandler) Category() domain.Category { return f.category }

func (f *fakeHandler) Settle(ctx context.Context, booking *domain.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.seen = append(f.seen, booking)
	return f.err
}

type fakeResolver struct {
	userRef *uuid.UUID
	err     error
}

func (f *fakeResolver) Resolve(ctx context.Context, subject string) (*uuid.UUID, error) {
	return f.userRef, f.err
}

func seedBooking(store *fakeStore, category domain.Category) *domain.Booking {
	b := &domain.Booking{
		ID:            uuid.New(),
		Category:      category,
		Amount:        5000,
		Currency:      "USD",
		Status:        domain.BookingPending,
		PaymentStatus: domain.PaymentUnpaid,
		Metadata:      map[string]interface{}{"subject": "GUEST"},
	}
	store.bookings[b.ID] = b
	return b
}

func TestSettle_ConfirmsAndRecordsEvent(t *testing.T) {
	store := newFakeStore()
	booking := seedBooking(store, domain.CategoryHotel)
	handler := &fakeHandler{category: domain.CategoryHotel}
	d := settlement.NewDispatcher(store, &fakeResolver{}, nil, observability.NewLogger(), handler)

	if err := d.Settle(context.Background(), booking.ID); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if handler.calls != 1 {
		t.Errorf("expected one handler call, got %d", handler.calls)
	}
	if got := store.bookings[booking.ID].Status; got != domain.BookingConfirmed {
		t.Errorf("expected CONFIRMED, got %s", got)
	}
	if !store.events[eventKey(booking.ID, domain.EventSettlementCompleted)] {
		t.Error("expected SETTLEMENT_COMPLETED event")
	}
}

func TestSettle_SkipsWhenAlreadyCompleted(t *testing.T) {
	store := newFakeStore()
	booking := seedBooking(store, domain.CategoryHotel)
	store.events[eventKey(booking.ID, domain.EventSettlementCompleted)] = true
	handler := &fakeHandler{category: domain.CategoryHotel}
	d := settlement.NewDispatcher(store, &fakeResolver{}, nil, observability.NewLogger(), handler)

	if err := d.Settle(context.Background(), booking.ID); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if handler.calls != 0 {
		t.Errorf("expected handler untouched, got %d calls", handler.calls)
	}
	if store.confirms != 0 {
		t.Errorf("expected no re-confirm, got %d", store.confirms)
	}
}

func TestSettle_NoHandlerIsNotAnError(t *testing.T) {
	store := newFakeStore()
	booking := seedBooking(store, domain.CategoryTransport)
	d := settlement.NewDispatcher(store, &fakeResolver{}, nil, observability.NewLogger())

	if err := d.Settle(context.Background(), booking.ID); err != nil {
		t.Fatalf("expected no error for missing handler, got %v", err)
	}
	if store.confirms != 0 {
		t.Errorf("unhandled category must not confirm, got %d", store.confirms)
	}
}

func TestSettle_HandlerFailureThenRetry(t *testing.T) {
	store := newFakeStore()
	booking := seedBooking(store, domain.CategoryRetail)
	handler := &fakeHandler{category: domain.CategoryRetail, err: errors.New("stock service down")}
	d := settlement.NewDispatcher(store, &fakeResolver{}, nil, observability.NewLogger(), handler)

	if err := d.Settle(context.Background(), booking.ID); err == nil {
		t.Fatal("expected handler error to propagate")
	}
	if got := store.bookings[booking.ID].Status; got != domain.BookingPending {
		t.Errorf("failed settlement must leave booking PENDING, got %s", got)
	}

	handler.err = nil
	if err := d.Settle(context.Background(), booking.ID); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if got := store.bookings[booking.ID].Status; got != domain.BookingConfirmed {
		t.Errorf("expected CONFIRMED after retry, got %s", got)
	}
}

func TestSettle_ResolvesGuestToNilUser(t *testing.T) {
	store := newFakeStore()
	booking := seedBooking(store, domain.CategoryHotel)
	handler := &fakeHandler{category: domain.CategoryHotel}
	d := settlement.NewDispatcher(store, &fakeResolver{}, nil, observability.NewLogger(), handler)

	if err := d.Settle(context.Background(), booking.ID); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if handler.seen[0].UserRef != nil {
		t.Error("guest booking must settle with nil user ref")
	}
}

func TestSettle_ResolvesKnownSubject(t *testing.T) {
	store := newFakeStore()
	booking := seedBooking(store, domain.CategoryHotel)
	booking.Metadata["subject"] = "auth0|abc"
	userID := uuid.New()
	handler := &fakeHandler{category: domain.CategoryHotel}
	d := settlement.NewDispatcher(store, &fakeResolver{userRef: &userID}, nil, observability.NewLogger(), handler)

	if err := d.Settle(context.Background(), booking.ID); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if handler.seen[0].UserRef == nil || *handler.seen[0].UserRef != userID {
		t.Error("expected resolved user ref on the booking passed to the handler")
	}
}

func TestSettle_ConcurrentDeliveriesConvergeToOneEvent(t *testing.T) {
	store := newFakeStore()
	booking := seedBooking(store, domain.CategoryEvent)
	handler := &fakeHandler{category: domain.CategoryEvent}
	d := settlement.NewDispatcher(store, &fakeResolver{}, nil, observability.NewLogger(), handler)

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			return d.Settle(context.Background(), booking.ID)
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("losers of the race must not error, got %v", err)
	}
	if !store.events[eventKey(booking.ID, domain.EventSettlementCompleted)] {
		t.Error("expected exactly one SETTLEMENT_COMPLETED event")
	}
	if got := store.bookings[booking.ID].Status; got != domain.BookingConfirmed {
		t.Errorf("expected CONFIRMED, got %s", got)
	}
}
