// Package payments owns payment-intent creation and webhook processing.
// Every webhook delivery is an independent unit of work; duplicates and
// reordering are tolerated through the transaction status gate and the
// single-shot conditional update in the store.
package payments

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/tripovia/travel-payments/internal/domain"
	"github.com/tripovia/travel-payments/internal/observability"
	"github.com/tripovia/travel-payments/internal/provider"
)

// Store is the persistence surface the orchestrator needs: point lookups,
// inserts and one conditional update. No joins, no cross-table
// transactions.
type Store interface {
	GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	CreateTransaction(ctx context.Context, txn domain.PaymentTransaction) error
	GetTransaction(ctx context.Context, providerName, providerTxnID string) (*domain.PaymentTransaction, error)
	// FinishTransaction transitions PENDING to a terminal status, storing
	// the raw payload. Returns false when the row was no longer pending.
	FinishTransaction(ctx context.Context, providerName, providerTxnID string, status domain.TxnStatus, raw []byte) (bool, error)
	AppendEvent(ctx context.Context, ev domain.BookingEvent) error
}

// Archive keeps raw webhook payloads for audit and replay.
type Archive interface {
	StoreWebhook(ctx context.Context, providerName string, payload []byte, verdict string) error
}

// Settler is the settlement dispatcher boundary.
type Settler interface {
	Settle(ctx context.Context, bookingID uuid.UUID) error
}

type Intent struct {
	PaymentURL    string
	ProviderTxnID string
}

type Outcome string

const (
	OutcomeSettled          Outcome = "SETTLED"
	OutcomeFailed           Outcome = "FAILED"
	OutcomePending          Outcome = "PENDING"
	OutcomeAlreadyProcessed Outcome = "ALREADY_PROCESSED"
)

type Receipt struct {
	Outcome       Outcome
	BookingID     uuid.UUID
	ProviderTxnID string
}

type Orchestrator struct {
	registry *provider.Registry
	store    Store
	archive  Archive
	settler  Settler
	logger   observability.Logger
}

func NewOrchestrator(registry *provider.Registry, store Store, archive Archive, settler Settler, logger observability.Logger) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		store:    store,
		archive:  archive,
		settler:  settler,
		logger:   logger,
	}
}

// CreateIntent opens a payment intent for a booking and records the
// pending transaction. The intent is unusable if the transaction cannot
// be persisted.
func (o *Orchestrator) CreateIntent(ctx context.Context, bookingID uuid.UUID, providerName, returnURL string) (*Intent, error) {
	booking, err := o.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.PaymentStatus == domain.PaymentPaid {
		return nil, errors.Wrapf(domain.ErrAlreadyPaid, "booking %s", bookingID)
	}

	adapter, err := o.registry.Resolve(providerName)
	if err != nil {
		return nil, err
	}

	result, err := adapter.CreateIntent(ctx, provider.IntentRequest{
		BookingID: booking.ID,
		Amount:    booking.Amount,
		Currency:  booking.Currency,
		ReturnURL: returnURL,
	})
	if err != nil {
		return nil, err
	}

	txn := domain.NewPaymentTransaction(booking.ID, providerName, result.ProviderTxnID, booking.Amount, booking.Currency)
	if err := o.store.CreateTransaction(ctx, txn); err != nil {
		return nil, errors.Wrap(domain.ErrPersistence, err.Error())
	}

	return &Intent{PaymentURL: result.PaymentURL, ProviderTxnID: result.ProviderTxnID}, nil
}

// HandleWebhook verifies, normalizes and applies one gateway notification.
// Signature and lookup failures are terminal and mutate nothing. A
// settlement failure propagates while the transaction stays SUCCESS, so a
// redelivered webhook takes the idempotent path and settlement retries
// independently.
func (o *Orchestrator) HandleWebhook(ctx context.Context, providerName string, payload []byte, signature string) (*Receipt, error) {
	adapter, err := o.registry.Resolve(providerName)
	if err != nil {
		observability.WebhooksTotal.WithLabelValues(providerName, "unknown_provider").Inc()
		return nil, err
	}

	if !adapter.VerifySignature(payload, signature) {
		observability.WebhooksTotal.WithLabelValues(providerName, "invalid_signature").Inc()
		return nil, errors.Wrapf(domain.ErrInvalidSignature, "provider %s", providerName)
	}

	result, err := adapter.ParseWebhook(ctx, payload)
	if err != nil {
		observability.WebhooksTotal.WithLabelValues(providerName, "unparseable").Inc()
		return nil, err
	}

	if o.archive != nil {
		if err := o.archive.StoreWebhook(ctx, providerName, payload, string(result.Status)); err != nil {
			o.logger.WithError(err).Warn("webhook archive write failed")
		}
	}

	txn, err := o.store.GetTransaction(ctx, providerName, result.ProviderTxnID)
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrTransactionNotFound) {
		o.recordUnmatched(ctx, providerName, result)
		observability.WebhooksTotal.WithLabelValues(providerName, "unmatched").Inc()
		return nil, errors.Wrapf(domain.ErrTransactionNotFound, "provider %s txn %s", providerName, result.ProviderTxnID)
	}
	if err != nil {
		return nil, err
	}

	if txn.Status == domain.TxnSuccess {
		observability.WebhooksTotal.WithLabelValues(providerName, "duplicate").Inc()
		return &Receipt{Outcome: OutcomeAlreadyProcessed, BookingID: txn.BookingID, ProviderTxnID: txn.ProviderTxnID}, nil
	}

	if result.Status == provider.WebhookPending {
		// Approval-stage notification; the terminal webhook is still in
		// flight. Nothing to record yet.
		observability.WebhooksTotal.WithLabelValues(providerName, "pending").Inc()
		return &Receipt{Outcome: OutcomePending, BookingID: txn.BookingID, ProviderTxnID: txn.ProviderTxnID}, nil
	}

	status := domain.TxnFailed
	if result.Status == provider.WebhookSuccess {
		status = domain.TxnSuccess
	}
	applied, err := o.store.FinishTransaction(ctx, providerName, result.ProviderTxnID, status, payload)
	if err != nil {
		return nil, errors.Wrap(domain.ErrPersistence, err.Error())
	}
	if !applied {
		// Lost the race against a concurrent delivery; the other writer
		// owns the transition.
		observability.WebhooksTotal.WithLabelValues(providerName, "duplicate").Inc()
		return &Receipt{Outcome: OutcomeAlreadyProcessed, BookingID: txn.BookingID, ProviderTxnID: txn.ProviderTxnID}, nil
	}

	if status == domain.TxnFailed {
		observability.WebhooksTotal.WithLabelValues(providerName, "failed").Inc()
		o.appendBestEffort(ctx, domain.NewBookingEvent(txn.BookingID, domain.EventPaymentFailed, map[string]interface{}{
			"provider":        providerName,
			"provider_txn_id": txn.ProviderTxnID,
		}))
		return &Receipt{Outcome: OutcomeFailed, BookingID: txn.BookingID, ProviderTxnID: txn.ProviderTxnID}, nil
	}

	if err := o.settler.Settle(ctx, txn.BookingID); err != nil {
		observability.WebhooksTotal.WithLabelValues(providerName, "settlement_error").Inc()
		return nil, err
	}
	observability.WebhooksTotal.WithLabelValues(providerName, "settled").Inc()
	return &Receipt{Outcome: OutcomeSettled, BookingID: txn.BookingID, ProviderTxnID: txn.ProviderTxnID}, nil
}

// recordUnmatched appends a WEBHOOK_UNMATCHED ledger entry keyed off
// whatever booking identifier the payload carried. Best effort; the
// caller still fails with ErrTransactionNotFound.
func (o *Orchestrator) recordUnmatched(ctx context.Context, providerName string, result *provider.WebhookResult) {
	bookingID := uuid.Nil
	if raw, ok := result.Metadata["booking_id"]; ok {
		if id, err := uuid.Parse(raw); err == nil {
			bookingID = id
		}
	}
	o.appendBestEffort(ctx, domain.NewBookingEvent(bookingID, domain.EventWebhookUnmatched, map[string]interface{}{
		"provider":        providerName,
		"provider_txn_id": result.ProviderTxnID,
	}))
}

func (o *Orchestrator) appendBestEffort(ctx context.Context, ev domain.BookingEvent) {
	if err := o.store.AppendEvent(ctx, ev); err != nil && !errors.Is(err, domain.ErrDuplicateEvent) {
		o.logger.WithField("event_type", string(ev.Type)).WithError(err).Warn("booking event append failed")
	}
}
