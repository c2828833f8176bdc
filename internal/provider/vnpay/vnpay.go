// Package vnpay implements the VNPay redirect gateway. VNPay accepts VND
// only, so amounts are converted at the fixed rate before the request is
// built and the secure hash is computed over the converted amount.
package vnpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/tripovia/travel-payments/internal/domain"
	"github.com/tripovia/travel-payments/internal/fx"
	"github.com/tripovia/travel-payments/internal/provider"
)

const (
	ProviderName = "vnpay"

	currencyVND   = "VND"
	version       = "2.1.0"
	commandPay    = "pay"
	respCodeOK    = "00"
	hashParam     = "vnp_SecureHash"
	hashTypeParam = "vnp_SecureHashType"
)

type Config struct {
	TmnCode    string
	HashSecret string
	PayURL     string
}

type Adapter struct {
	cfg Config
	now func() time.Time
}

func New(cfg Config) *Adapter {
	return &Adapter{cfg: cfg, now: time.Now}
}

func (a *Adapter) Name() string { return ProviderName }

func (a *Adapter) CreateIntent(ctx context.Context, req provider.IntentRequest) (*provider.IntentResult, error) {
	if req.Amount <= 0 {
		return nil, errors.Wrap(domain.ErrValidation, "amount must be positive")
	}
	amount, err := fx.Convert(req.Amount, req.Currency, currencyVND)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrValidation, "currency %s not payable via vnpay", req.Currency)
	}

	txnRef := uuid.New().String()
	params := map[string]string{
		"vnp_Version":    version,
		"vnp_Command":    commandPay,
		"vnp_TmnCode":    a.cfg.TmnCode,
		"vnp_Amount":     strconv.FormatInt(amount, 10),
		"vnp_CurrCode":   currencyVND,
		"vnp_TxnRef":     txnRef,
		"vnp_OrderInfo":  "booking " + req.BookingID.String(),
		"vnp_ReturnUrl":  req.ReturnURL,
		"vnp_CreateDate": a.now().UTC().Format("20060102150405"),
	}
	query := canonicalQuery(params)
	sig := a.sign(query)

	return &provider.IntentResult{
		PaymentURL:    a.cfg.PayURL + "?" + query + "&" + hashParam + "=" + sig,
		ProviderTxnID: txnRef,
		Metadata:      map[string]string{"vnp_Amount": params["vnp_Amount"]},
	}, nil
}

func (a *Adapter) VerifySignature(payload []byte, signature string) bool {
	var fields map[string]string
	if err := json.Unmarshal(payload, &fields); err != nil {
		return false
	}
	delete(fields, hashParam)
	delete(fields, hashTypeParam)
	expected := a.sign(canonicalQuery(fields))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (a *Adapter) ParseWebhook(ctx context.Context, payload []byte) (*provider.WebhookResult, error) {
	var fields map[string]string
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, errors.Wrap(domain.ErrValidation, "malformed vnpay payload")
	}
	txnRef := fields["vnp_TxnRef"]
	if txnRef == "" {
		return nil, errors.Wrap(domain.ErrValidation, "missing vnp_TxnRef")
	}
	amount, _ := strconv.ParseInt(fields["vnp_Amount"], 10, 64)

	status := provider.WebhookFailed
	if fields["vnp_ResponseCode"] == respCodeOK {
		status = provider.WebhookSuccess
	}
	return &provider.WebhookResult{
		ProviderTxnID: txnRef,
		Status:        status,
		Amount:        amount,
		Currency:      currencyVND,
		Metadata: map[string]string{
			"response_code": fields["vnp_ResponseCode"],
			"bank_code":     fields["vnp_BankCode"],
			"booking_id":    strings.TrimPrefix(fields["vnp_OrderInfo"], "booking "),
		},
	}, nil
}

func (a *Adapter) sign(query string) string {
	mac := hmac.New(sha512.New, []byte(a.cfg.HashSecret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// canonicalQuery url-encodes the fields in sorted key order, the string
// VNPay signs.
func canonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}
