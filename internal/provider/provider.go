// Package provider defines the contract every payment gateway adapter
// implements and the registry used to resolve adapters by name.
package provider

import (
	"context"

	"github.com/google/uuid"
)

type IntentRequest struct {
	BookingID uuid.UUID
	Amount    int64
	Currency  string
	ReturnURL string
}

type IntentResult struct {
	PaymentURL    string
	ProviderTxnID string
	Metadata      map[string]string
}

type WebhookStatus string

const (
	WebhookSuccess WebhookStatus = "SUCCESS"
	WebhookFailed  WebhookStatus = "FAILED"
	WebhookPending WebhookStatus = "PENDING"
)

type WebhookResult struct {
	ProviderTxnID string
	Status        WebhookStatus
	Amount        int64
	Currency      string
	Metadata      map[string]string
}

// Adapter speaks one gateway's intent-creation and webhook protocol.
type Adapter interface {
	Name() string

	// CreateIntent builds the gateway request, converting the amount to a
	// currency the gateway accepts before signing it.
	CreateIntent(ctx context.Context, req IntentRequest) (*IntentResult, error)

	// VerifySignature recomputes the gateway's canonical signature over
	// payload and compares it byte-for-byte against signature. No side
	// effects.
	VerifySignature(payload []byte, signature string) bool

	// ParseWebhook normalizes a gateway payload. For approve-then-capture
	// gateways an approval event triggers the capture call and reports
	// WebhookPending; the capture completion webhook yields WebhookSuccess.
	ParseWebhook(ctx context.Context, payload []byte) (*WebhookResult, error)
}
