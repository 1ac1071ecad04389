package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/example/storefront/internal/config"
)

// ErrInvalidAmount is returned before any provider call when the requested
// amount is not positive.
var ErrInvalidAmount = errors.New("payment amount must be positive")

// ErrProviderFailure wraps any upstream provider error. Handlers surface it
// as a generic failure; the underlying detail is only logged.
var ErrProviderFailure = errors.New("payment provider request failed")

// PaymentIntent is the opaque handle returned to the client. Exactly one of
// ClientSecret (hosted payment-element flow) or RedirectURL (redirect flow)
// is populated, depending on the provider.
type PaymentIntent struct {
	Provider     string `json:"provider"`
	Reference    string `json:"reference"`
	ClientSecret string `json:"client_secret,omitempty"`
	RedirectURL  string `json:"redirect_url,omitempty"`
}

// PaymentStatus is the provider-confirmed state of a payment.
type PaymentStatus struct {
	Reference string `json:"reference"`
	Paid      bool   `json:"paid"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

// PaymentProvider abstracts the two interchangeable payment integrations.
// Amounts are in minor units (pence, kobo, cents).
type PaymentProvider interface {
	Name() string
	CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*PaymentIntent, error)
	VerifyPayment(ctx context.Context, reference string) (*PaymentStatus, error)
}

// NewPaymentProvider builds the provider selected by configuration.
func NewPaymentProvider(cfg *config.Config, logger *zap.Logger) (PaymentProvider, error) {
	client := &http.Client{Timeout: 15 * time.Second}

	switch cfg.PaymentProvider {
	case "stripe":
		return NewStripeProvider(cfg.StripeBaseURL, cfg.StripeSecretKey, client, logger), nil
	case "paystack":
		return NewPaystackProvider(cfg.PaystackBaseURL, cfg.PaystackSecretKey, client, logger), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.PaymentProvider)
	}
}
