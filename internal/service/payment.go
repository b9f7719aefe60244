package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/parseldeger/imar/internal/models"
)

// PaymentLookup finds already applied orders.
type PaymentLookup interface {
	GetPaymentByOrderID(ctx context.Context, orderID string) (*models.PaymentRecord, error)
}

// AccountLookup finds accounts by buyer email.
type AccountLookup interface {
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
}

// WebhookCredentials are the values shared with the payment provider.
type WebhookCredentials struct {
	Username string
	Secret   string
}

// PaymentReconciler verifies order notifications and credits accounts once
// per order.
type PaymentReconciler struct {
	payments PaymentLookup
	accounts AccountLookup
	ledger   *Ledger
	creds    WebhookCredentials
	log      *zap.Logger
}

// NewPaymentReconciler constructs a PaymentReconciler.
func NewPaymentReconciler(
	payments PaymentLookup,
	accounts AccountLookup,
	ledger *Ledger,
	creds WebhookCredentials,
	log *zap.Logger,
) *PaymentReconciler {
	return &PaymentReconciler{payments: payments, accounts: accounts, ledger: ledger, creds: creds, log: log}
}

// orderPayload is the decoded "res" field. The provider is inconsistent
// about numbers, so every field accepts either JSON type.
type orderPayload struct {
	Email        flexString `json:"email"`
	OrderID      flexString `json:"orderid"`
	Price        flexString `json:"price"`
	BuyerName    flexString `json:"buyername"`
	BuyerSurname flexString `json:"buyersurname"`
	IsTest       flexString `json:"istest"`
	Currency     flexString `json:"currency"`
}

// flexString holds a JSON string or number as its textual form.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	var v bool
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("unsupported value %s", b)
	}
	if v {
		*f = "1"
	} else {
		*f = "0"
	}
	return nil
}

func (f flexString) float() (float64, error) {
	if f == "" {
		return 0, nil
	}
	return strconv.ParseFloat(strings.ReplaceAll(string(f), ",", "."), 64)
}

func (f flexString) int() int {
	n, err := strconv.Atoi(string(f))
	if err != nil {
		return 0
	}
	return n
}

func (f flexString) bool() bool {
	switch strings.ToLower(string(f)) {
	case "1", "true":
		return true
	}
	return false
}

func (c WebhookCredentials) mac(res string) []byte {
	m := hmac.New(sha256.New, []byte(c.Secret))
	m.Write([]byte(res + c.Username))
	return m.Sum(nil)
}

// Sign returns the hex HMAC-SHA256 of res followed by the webhook username.
func (c WebhookCredentials) Sign(res string) string {
	return hex.EncodeToString(c.mac(res))
}

func (c WebhookCredentials) verify(res, signature string) bool {
	if c.Secret == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	return hmac.Equal(c.mac(res), got)
}

// Reconcile applies one webhook call. A nil error means credits were
// granted; use Acknowledged to decide what to answer the provider.
func (r *PaymentReconciler) Reconcile(ctx context.Context, res, signature string) error {
	if res == "" || signature == "" {
		r.log.Warn("webhook missing parameters")
		return fmt.Errorf("res or hash missing: %w", ErrMalformedWebhook)
	}
	if !r.creds.verify(res, signature) {
		r.log.Warn("webhook signature mismatch")
		return ErrWebhookVerificationFailed
	}

	raw, err := base64.StdEncoding.DecodeString(res)
	if err != nil {
		r.log.Warn("webhook payload is not base64", zap.Error(err))
		return fmt.Errorf("decode res: %w", ErrMalformedWebhook)
	}
	var order orderPayload
	if err := json.Unmarshal(raw, &order); err != nil {
		r.log.Warn("webhook payload is not JSON", zap.Error(err))
		return fmt.Errorf("unmarshal res: %w", ErrMalformedWebhook)
	}
	price, err := order.Price.float()
	if err != nil {
		r.log.Warn("webhook price is not numeric", zap.String("price", string(order.Price)))
		return fmt.Errorf("parse price: %w", ErrMalformedWebhook)
	}

	log := r.log.With(
		zap.String("order_id", string(order.OrderID)),
		zap.Float64("price", price),
		zap.Int("currency", order.Currency.int()),
		zap.Bool("is_test", order.IsTest.bool()),
	)
	log.Info("webhook order received")

	if order.OrderID == "" || order.Email == "" {
		log.Warn("webhook order without id or email")
		return ErrUnknownOrder
	}

	if _, err := r.payments.GetPaymentByOrderID(ctx, string(order.OrderID)); err == nil {
		log.Warn("order already processed")
		return ErrDuplicateOrder
	} else if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("lookup order: %w", err)
	}

	acc, err := r.accounts.GetAccountByEmail(ctx, string(order.Email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			log.Warn("no account for buyer email")
			return ErrUnknownBuyer
		}
		return fmt.Errorf("lookup buyer: %w", err)
	}

	pkg, ok := ResolvePackage(price)
	if !ok {
		log.Warn("price matches no package")
		return ErrUnmatchedPackage
	}

	balance, err := r.ledger.TopUp(ctx, models.PaymentRecord{
		OrderID:    string(order.OrderID),
		AccountID:  acc.ID,
		PackageID:  pkg.ID,
		Credits:    pkg.Credits,
		Amount:     price,
		Currency:   order.Currency.int(),
		BuyerEmail: string(order.Email),
		BuyerName:  strings.TrimSpace(string(order.BuyerName) + " " + string(order.BuyerSurname)),
		IsTest:     order.IsTest.bool(),
		Payload:    raw,
	})
	if err != nil {
		if Acknowledged(err) {
			log.Warn("order not applied", zap.Error(err))
		}
		return err
	}

	log.Info("credits granted",
		zap.String("account_id", acc.ID),
		zap.String("package_id", pkg.ID),
		zap.Int("credits", pkg.Credits),
		zap.Int("balance", balance),
	)
	return nil
}
