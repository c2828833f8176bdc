// Package paypal implements the PayPal orders gateway. Intent creation is
// an outbound order-create call; payment completes over two webhooks:
// order approval (which triggers the capture call) and capture completion.
package paypal

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/tripovia/travel-payments/internal/domain"
	"github.com/tripovia/travel-payments/internal/observability"
	"github.com/tripovia/travel-payments/internal/provider"
)

const (
	ProviderName = "paypal"

	eventOrderApproved   = "CHECKOUT.ORDER.APPROVED"
	eventCaptureComplete = "PAYMENT.CAPTURE.COMPLETED"
	eventCaptureDenied   = "PAYMENT.CAPTURE.DENIED"

	// Accepted in place of a real signature when Environment != "live".
	testBypassSignature = "test-signature"
)

type Config struct {
	ClientID      string
	Secret        string
	WebhookID     string
	WebhookSecret string
	BaseURL       string
	Environment   string // "test" or "live"
	Timeout       time.Duration
}

type Adapter struct {
	cfg    Config
	client *http.Client
	logger observability.Logger
}

func New(cfg Config, logger observability.Logger) *Adapter {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Adapter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (a *Adapter) Name() string { return ProviderName }

type orderResponse struct {
	ID    string `json:"id"`
	Links []struct {
		Rel  string `json:"rel"`
		Href string `json:"href"`
	} `json:"links"`
}

func (a *Adapter) CreateIntent(ctx context.Context, req provider.IntentRequest) (*provider.IntentResult, error) {
	if req.Amount <= 0 {
		return nil, errors.Wrap(domain.ErrValidation, "amount must be positive")
	}
	if req.Currency != "USD" {
		return nil, errors.Wrapf(domain.ErrValidation, "currency %s not payable via paypal", req.Currency)
	}

	body, _ := json.Marshal(map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{{
			"reference_id": req.BookingID.String(),
			"amount": map[string]string{
				"currency_code": req.Currency,
				"value":         minorToDecimal(req.Amount),
			},
		}},
		"application_context": map[string]string{
			"return_url": req.ReturnURL,
		},
	})

	var order orderResponse
	if err := a.do(ctx, http.MethodPost, "/v2/checkout/orders", body, &order); err != nil {
		return nil, err
	}

	approveURL := ""
	for _, l := range order.Links {
		if l.Rel == "approve" {
			approveURL = l.Href
		}
	}
	return &provider.IntentResult{
		PaymentURL:    approveURL,
		ProviderTxnID: order.ID,
		Metadata:      map[string]string{"booking_id": req.BookingID.String()},
	}, nil
}

// VerifySignature checks signatures of the form
// "transmissionID|timestamp|hexmac" where the mac covers the ordered
// string transmissionID|timestamp|webhookID|crc32(payload).
func (a *Adapter) VerifySignature(payload []byte, signature string) bool {
	if a.cfg.Environment != "live" && signature == testBypassSignature {
		return true
	}
	parts := strings.Split(signature, "|")
	if len(parts) != 3 {
		return false
	}
	expected := a.sign(parts[0], parts[1], payload)
	return hmac.Equal([]byte(expected), []byte(parts[2]))
}

// Sign builds a signature for payload. Used by tests and the sandbox
// webhook simulator.
func (a *Adapter) Sign(transmissionID, timestamp string, payload []byte) string {
	return transmissionID + "|" + timestamp + "|" + a.sign(transmissionID, timestamp, payload)
}

func (a *Adapter) sign(transmissionID, timestamp string, payload []byte) string {
	crc := crc32.ChecksumIEEE(payload)
	canonical := transmissionID + "|" + timestamp + "|" + a.cfg.WebhookID + "|" + strconv.FormatUint(uint64(crc), 10)
	mac := hmac.New(sha256.New, []byte(a.cfg.WebhookSecret))
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}

type webhookEvent struct {
	EventType string `json:"event_type"`
	Resource  struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Amount struct {
			CurrencyCode string `json:"currency_code"`
			Value        string `json:"value"`
		} `json:"amount"`
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
	} `json:"resource"`
}

func (a *Adapter) ParseWebhook(ctx context.Context, payload []byte) (*provider.WebhookResult, error) {
	var ev webhookEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, errors.Wrap(domain.ErrValidation, "malformed paypal payload")
	}

	switch ev.EventType {
	case eventOrderApproved:
		// Approval is not payment. Kick off the capture; the capture
		// completion webhook carries the terminal status.
		if err := a.capture(ctx, ev.Resource.ID); err != nil {
			a.logger.WithField("order_id", ev.Resource.ID).Error("paypal capture call failed: ", err)
		}
		return &provider.WebhookResult{
			ProviderTxnID: ev.Resource.ID,
			Status:        provider.WebhookPending,
			Amount:        decimalToMinor(ev.Resource.Amount.Value),
			Currency:      ev.Resource.Amount.CurrencyCode,
		}, nil

	case eventCaptureComplete, eventCaptureDenied:
		orderID := ev.Resource.SupplementaryData.RelatedIDs.OrderID
		if orderID == "" {
			return nil, errors.Wrap(domain.ErrValidation, "capture event missing order_id")
		}
		status := provider.WebhookSuccess
		if ev.EventType == eventCaptureDenied {
			status = provider.WebhookFailed
		}
		return &provider.WebhookResult{
			ProviderTxnID: orderID,
			Status:        status,
			Amount:        decimalToMinor(ev.Resource.Amount.Value),
			Currency:      ev.Resource.Amount.CurrencyCode,
			Metadata:      map[string]string{"capture_id": ev.Resource.ID},
		}, nil
	}
	return nil, errors.Wrapf(domain.ErrValidation, "unhandled paypal event %q", ev.EventType)
}

func (a *Adapter) capture(ctx context.Context, orderID string) error {
	return a.do(ctx, http.MethodPost, "/v2/checkout/orders/"+orderID+"/capture", []byte("{}"), nil)
}

func (a *Adapter) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, a.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(a.cfg.ClientID, a.cfg.Secret)

	start := time.Now()
	resp, err := a.client.Do(req)
	observability.GatewayRequestDuration.WithLabelValues(ProviderName).Observe(time.Since(start).Seconds())
	if err != nil {
		return errors.Wrap(domain.ErrGateway, err.Error())
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Wrapf(domain.ErrGateway, "paypal %s: %d %s", path, resp.StatusCode, respBody)
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return errors.Wrap(domain.ErrGateway, "unparseable paypal response")
		}
	}
	return nil
}

func minorToDecimal(amount int64) string {
	return fmt.Sprintf("%d.%02d", amount/100, amount%100)
}

func decimalToMinor(value string) int64 {
	whole, frac := value, "0"
	if i := strings.IndexByte(value, '.'); i >= 0 {
		whole, frac = value[:i], value[i+1:]
	}
	w, _ := strconv.ParseInt(whole, 10, 64)
	for len(frac) < 2 {
		frac += "0"
	}
	f, _ := strconv.ParseInt(frac[:2], 10, 64)
	return w*100 + f
}
