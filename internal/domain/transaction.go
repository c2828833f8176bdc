package domain

import (
	"time"

	"github.com/google/uuid"
)

type TxnStatus string

const (
	TxnPending TxnStatus = "PENDING"
	TxnSuccess TxnStatus = "SUCCESS"
	TxnFailed  TxnStatus = "FAILED"
)

// PaymentTransaction records one payment attempt against a booking.
// (Provider, ProviderTxnID) is unique and the row transitions out of
// PENDING at most once.
type PaymentTransaction struct {
	ID            uuid.UUID
	BookingID     uuid.UUID
	Provider      string
	ProviderTxnID string
	Amount        int64
	Currency      string
	Status        TxnStatus
	RawPayload    []byte
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewPaymentTransaction(bookingID uuid.UUID, provider, providerTxnID string, amount int64, currency string) PaymentTransaction {
	return PaymentTransaction{
		ID:            uuid.New(),
		BookingID:     bookingID,
		Provider:      provider,
		ProviderTxnID: providerTxnID,
		Amount:        amount,
		Currency:      currency,
		Status:        TxnPending,
	}
}
