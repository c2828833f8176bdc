// Package postgres persists bookings, payment transactions and the
// booking event ledger. The pipeline needs only point lookups, inserts
// and conditional updates; idempotency rides on uniqueness constraints
// surfaced as domain errors.
package postgres

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tripovia/travel-payments/internal/domain"
)

const uniqueViolationCode = "23505"

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

func (r *Repository) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	var (
		b        domain.Booking
		metaJSON []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, category, amount, currency, status, payment_status, metadata, user_ref, created_at
		FROM bookings WHERE id = $1
	`, id).Scan(&b.ID, &b.Category, &b.Amount, &b.Currency, &b.Status, &b.PaymentStatus, &metaJSON, &b.UserRef, &b.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, errors.Wrapf(domain.ErrBookingNotFound, "booking %s", id)
	}
	if err != nil {
		return nil, err
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &b.Metadata); err != nil {
			return nil, err
		}
	}
	return &b, nil
}

// ConfirmBooking is the booking's single terminal transition.
func (r *Repository) ConfirmBooking(ctx context.Context, id uuid.UUID) error {
	// RowsAffected of zero means a concurrent settlement confirmed first;
	// not an error.
	_, err := r.pool.Exec(ctx, `
		UPDATE bookings SET status = 'CONFIRMED', payment_status = 'PAID'
		WHERE id = $1 AND status = 'PENDING'
	`, id)
	return err
}

func (r *Repository) CreateTransaction(ctx context.Context, txn domain.PaymentTransaction) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO payment_transactions (id, booking_id, provider, provider_txn_id, amount, currency, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
	`, txn.ID, txn.BookingID, txn.Provider, txn.ProviderTxnID, txn.Amount, txn.Currency, txn.Status)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	return err
}

func (r *Repository) GetTransaction(ctx context.Context, providerName, providerTxnID string) (*domain.PaymentTransaction, error) {
	var txn domain.PaymentTransaction
	err := r.pool.QueryRow(ctx, `
		SELECT id, booking_id, provider, provider_txn_id, amount, currency, status, raw_payload, created_at, updated_at
		FROM payment_transactions WHERE provider = $1 AND provider_txn_id = $2
	`, providerName, providerTxnID).Scan(
		&txn.ID, &txn.BookingID, &txn.Provider, &txn.ProviderTxnID,
		&txn.Amount, &txn.Currency, &txn.Status, &txn.RawPayload,
		&txn.CreatedAt, &txn.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// FinishTransaction transitions the row out of PENDING at most once; the
// WHERE clause is the race arbiter.
func (r *Repository) FinishTransaction(ctx context.Context, providerName, providerTxnID string, status domain.TxnStatus, raw []byte) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE payment_transactions
		SET status = $3, raw_payload = $4, updated_at = now()
		WHERE provider = $1 AND provider_txn_id = $2 AND status = 'PENDING'
	`, providerName, providerTxnID, status, raw)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func (r *Repository) AppendEvent(ctx context.Context, ev domain.BookingEvent) error {
	metaJSON, err := json.Marshal(ev.Metadata)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO booking_events (id, booking_id, event_type, metadata, published, created_at)
		VALUES ($1, $2, $3, $4, false, now())
	`, ev.ID, ev.BookingID, ev.Type, metaJSON)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateEvent
	}
	return err
}

func (r *Repository) HasEvent(ctx context.Context, bookingID uuid.UUID, typ domain.EventType) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM booking_events WHERE booking_id = $1 AND event_type = $2)
	`, bookingID, typ).Scan(&exists)
	return exists, err
}

// GetUnpublishedEvents feeds the event publisher. It must run inside
// WithTx: the row locks only keep concurrent publisher instances off the
// batch while the transaction is open.
func (r *Repository) GetUnpublishedEvents(ctx context.Context, tx pgx.Tx, limit int) ([]domain.BookingEvent, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, booking_id, event_type, metadata, published, created_at
		FROM booking_events WHERE published = false
		ORDER BY created_at ASC LIMIT $1 FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.BookingEvent
	for rows.Next() {
		var (
			ev       domain.BookingEvent
			metaJSON []byte
		)
		if err := rows.Scan(&ev.ID, &ev.BookingID, &ev.Type, &metaJSON, &ev.Published, &ev.CreatedAt); err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &ev.Metadata); err != nil {
				return nil, err
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *Repository) MarkEventPublished(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE booking_events SET published = true WHERE id = $1
	`, id)
	return err
}

func (r *Repository) FindUserByExternalID(ctx context.Context, externalID string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT id FROM users WHERE external_id = $1
	`, externalID).Scan(&id)
	if err == pgx.ErrNoRows {
		return uuid.Nil, domain.ErrNotFound
	}
	return id, err
}
