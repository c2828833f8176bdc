package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tripovia/travel-payments/internal/domain"
	"github.com/tripovia/travel-payments/internal/idempotency"
	"github.com/tripovia/travel-payments/internal/observability"
	"github.com/tripovia/travel-payments/internal/payments"
)

const signatureHeader = "X-Webhook-Signature"

type Handlers struct {
	orch   *payments.Orchestrator
	idemp  *idempotency.Idempotency
	logger observability.Logger
}

func NewHandlers(orch *payments.Orchestrator, idemp *idempotency.Idempotency, logger observability.Logger) *Handlers {
	return &Handlers{orch: orch, idemp: idemp, logger: logger}
}

// CreateIntent is the internal entry point used by the checkout flow; it
// is not part of the public wire contract.
func (h *Handlers) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BookingID uuid.UUID `json:"booking_id"`
		Provider  string    `json:"provider"`
		ReturnURL string    `json:"return_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	intent, err := h.orch.CreateIntent(r.Context(), req.BookingID, req.Provider, req.ReturnURL)
	switch {
	case errors.Is(err, domain.ErrBookingNotFound):
		http.Error(w, "booking not found", http.StatusNotFound)
		return
	case errors.Is(err, domain.ErrAlreadyPaid):
		http.Error(w, "booking already paid", http.StatusConflict)
		return
	case errors.Is(err, domain.ErrUnknownProvider), errors.Is(err, domain.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, domain.ErrGateway):
		http.Error(w, "gateway unavailable", http.StatusBadGateway)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"payment_url":     intent.PaymentURL,
		"provider_txn_id": intent.ProviderTxnID,
	})
}

// Webhook accepts a gateway notification. Anything short of a completed
// pipeline returns a server error so the gateway's retry policy
// redelivers the payload; idempotency downstream makes that safe.
func (h *Handlers) Webhook(w http.ResponseWriter, r *http.Request) {
	providerName := chi.URLParam(r, "provider")

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	key := idempotency.Key(providerName, payload)
	if h.idemp != nil {
		if cached, err := h.idemp.Get(r.Context(), key); err == nil && cached != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(cached.Status)
			w.Write(cached.Result)
			return
		}
	}

	receipt, err := h.orch.HandleWebhook(r.Context(), providerName, payload, extractSignature(r, payload))
	switch {
	case errors.Is(err, domain.ErrUnknownProvider):
		http.Error(w, "unknown provider", http.StatusNotFound)
		return
	case errors.Is(err, domain.ErrInvalidSignature):
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	case errors.Is(err, domain.ErrTransactionNotFound):
		http.Error(w, "transaction not found", http.StatusNotFound)
		return
	case errors.Is(err, domain.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		// Settlement or persistence failure: the transaction state is
		// already settled correctly; let the gateway retry.
		h.logger.WithField("provider", providerName).WithError(err).Error("webhook processing failed")
		http.Error(w, "processing failed", http.StatusInternalServerError)
		return
	}

	body, _ := json.Marshal(map[string]string{"outcome": string(receipt.Outcome)})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)

	if h.idemp != nil && receipt.Outcome != payments.OutcomePending {
		h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusOK, Result: body})
	}
}

// extractSignature pulls the provider-defined signature: a header for
// header-signing gateways, otherwise the in-payload secure hash field.
func extractSignature(r *http.Request, payload []byte) string {
	if sig := r.Header.Get(signatureHeader); sig != "" {
		return sig
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return ""
	}
	var sig string
	if raw, ok := fields["vnp_SecureHash"]; ok {
		json.Unmarshal(raw, &sig)
	}
	return sig
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
