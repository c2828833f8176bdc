package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tripovia/travel-payments/internal/adapters/postgres"
	"github.com/tripovia/travel-payments/internal/domain"
)

const schema = `
	CREATE TABLE IF NOT EXISTS bookings (
		id UUID PRIMARY KEY,
		category TEXT NOT NULL,
		amount BIGINT NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('PENDING', 'CONFIRMED')),
		payment_status TEXT NOT NULL CHECK (payment_status IN ('UNPAID', 'PAID')),
		metadata JSONB,
		user_ref UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE TABLE IF NOT EXISTS payment_transactions (
		id UUID PRIMARY KEY,
		booking_id UUID NOT NULL,
		provider TEXT NOT NULL,
		provider_txn_id TEXT NOT NULL,
		amount BIGINT NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('PENDING', 'SUCCESS', 'FAILED')),
		raw_payload BYTEA,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (provider, provider_txn_id)
	);
	CREATE TABLE IF NOT EXISTS booking_events (
		id UUID PRIMARY KEY,
		booking_id UUID NOT NULL,
		event_type TEXT NOT NULL,
		metadata JSONB,
		published BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS booking_events_settled
		ON booking_events (booking_id) WHERE event_type = 'SETTLEMENT_COMPLETED';
`

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			Env:          map[string]string{"POSTGRES_PASSWORD": "test", "POSTGRES_DB": "payments"},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	host, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatal(err)
	}

	dsn := fmt.Sprintf("postgres://postgres:test@%s:%s/payments?sslmode=disable", host, port.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, schema); err != nil {
		t.Fatal(err)
	}
	return pool
}

func seedBooking(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO bookings (id, category, amount, currency, status, payment_status, metadata)
		VALUES ($1, 'HOTEL', 10000, 'USD', 'PENDING', 'UNPAID', '{"subject": "GUEST"}')
	`, id)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestRepository_FinishTransactionOnce(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t)
	repo := postgres.NewRepository(pool)

	bookingID := seedBooking(t, pool)
	txn := domain.NewPaymentTransaction(bookingID, "vnpay", "ref-1", 10000, "USD")
	if err := repo.CreateTransaction(ctx, txn); err != nil {
		t.Fatal(err)
	}

	dup := domain.NewPaymentTransaction(bookingID, "vnpay", "ref-1", 10000, "USD")
	if err := repo.CreateTransaction(ctx, dup); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict on duplicate provider ref, got %v", err)
	}

	applied, err := repo.FinishTransaction(ctx, "vnpay", "ref-1", domain.TxnSuccess, []byte(`{"ok":true}`))
	if err != nil {
		t.Fatal(err)
	}
	if !applied {
		t.Fatal("expected first finish to apply")
	}

	applied, err = repo.FinishTransaction(ctx, "vnpay", "ref-1", domain.TxnFailed, nil)
	if err != nil {
		t.Fatal(err)
	}
	if applied {
		t.Error("expected second finish to be rejected")
	}

	fetched, err := repo.GetTransaction(ctx, "vnpay", "ref-1")
	if err != nil {
		t.Fatal(err)
	}
	if fetched.Status != domain.TxnSuccess {
		t.Errorf("expected SUCCESS to stick, got %s", fetched.Status)
	}
}

func TestRepository_SettlementEventIsUnique(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t)
	repo := postgres.NewRepository(pool)

	bookingID := seedBooking(t, pool)

	ev := domain.NewBookingEvent(bookingID, domain.EventSettlementCompleted, map[string]interface{}{"category": "HOTEL"})
	if err := repo.AppendEvent(ctx, ev); err != nil {
		t.Fatal(err)
	}

	again := domain.NewBookingEvent(bookingID, domain.EventSettlementCompleted, nil)
	if err := repo.AppendEvent(ctx, again); !errors.Is(err, domain.ErrDuplicateEvent) {
		t.Errorf("expected ErrDuplicateEvent, got %v", err)
	}

	// Unmatched-webhook entries are not constrained and may repeat.
	for i := 0; i < 2; i++ {
		if err := repo.AppendEvent(ctx, domain.NewBookingEvent(bookingID, domain.EventWebhookUnmatched, nil)); err != nil {
			t.Fatalf("expected repeatable WEBHOOK_UNMATCHED, got %v", err)
		}
	}

	has, err := repo.HasEvent(ctx, bookingID, domain.EventSettlementCompleted)
	if err != nil {
		t.Fatal(err)
	}
	if !has {
		t.Error("expected HasEvent to see the settlement marker")
	}
}

func TestRepository_ConfirmBooking(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t)
	repo := postgres.NewRepository(pool)

	bookingID := seedBooking(t, pool)

	if err := repo.ConfirmBooking(ctx, bookingID); err != nil {
		t.Fatal(err)
	}
	// Re-confirming a confirmed booking is a no-op, not an error.
	if err := repo.ConfirmBooking(ctx, bookingID); err != nil {
		t.Fatal(err)
	}

	booking, err := repo.GetBooking(ctx, bookingID)
	if err != nil {
		t.Fatal(err)
	}
	if booking.Status != domain.BookingConfirmed || booking.PaymentStatus != domain.PaymentPaid {
		t.Errorf("expected CONFIRMED/PAID, got %s/%s", booking.Status, booking.PaymentStatus)
	}
	if booking.Metadata["subject"] != "GUEST" {
		t.Errorf("expected metadata round trip, got %v", booking.Metadata)
	}
}

func TestRepository_UnpublishedEventsLockedPerBatch(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t)
	repo := postgres.NewRepository(pool)

	bookingID := seedBooking(t, pool)
	for i := 0; i < 3; i++ {
		if err := repo.AppendEvent(ctx, domain.NewBookingEvent(bookingID, domain.EventPaymentFailed, nil)); err != nil {
			t.Fatal(err)
		}
	}

	err := repo.WithTx(ctx, func(tx pgx.Tx) error {
		events, err := repo.GetUnpublishedEvents(ctx, tx, 10)
		if err != nil {
			return err
		}
		if len(events) != 3 {
			t.Fatalf("expected 3 unpublished events, got %d", len(events))
		}

		// A second publisher instance polling while this batch is open
		// must skip the locked rows instead of double-publishing them.
		other, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer other.Rollback(ctx)
		contended, err := repo.GetUnpublishedEvents(ctx, other, 10)
		if err != nil {
			return err
		}
		if len(contended) != 0 {
			t.Errorf("expected locked rows to be skipped, got %d", len(contended))
		}

		for _, ev := range events {
			if err := repo.MarkEventPublished(ctx, tx, ev.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	err = repo.WithTx(ctx, func(tx pgx.Tx) error {
		events, err := repo.GetUnpublishedEvents(ctx, tx, 10)
		if err != nil {
			return err
		}
		if len(events) != 0 {
			t.Errorf("expected no unpublished events after marking, got %d", len(events))
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
