package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// StripeProvider implements the hosted payment-element flow: the client
// completes payment with the returned client secret and the server later
// verifies the intent status.
type StripeProvider struct {
	baseURL   string
	secretKey string
	client    *http.Client
	log       *zap.Logger
}

// NewStripeProvider constructs a StripeProvider.
func NewStripeProvider(baseURL, secretKey string, client *http.Client, logger *zap.Logger) *StripeProvider {
	return &StripeProvider{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		client:    client,
		log:       logger,
	}
}

// Name returns the provider identifier.
func (p *StripeProvider) Name() string { return "stripe" }

type stripeIntentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Error        *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// CreateIntent creates a payment intent and returns its client secret.
func (p *StripeProvider) CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*PaymentIntent, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount, 10))
	form.Set("currency", strings.ToLower(currency))
	form.Set("automatic_payment_methods[enabled]", "true")
	for k, v := range metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	var resp stripeIntentResponse
	if err := p.do(ctx, http.MethodPost, "/v1/payment_intents", strings.NewReader(form.Encode()), &resp); err != nil {
		return nil, err
	}

	if resp.Error != nil || resp.ID == "" {
		p.log.Warn("stripe intent rejected", zap.Any("error", resp.Error))
		return nil, ErrProviderFailure
	}

	return &PaymentIntent{
		Provider:     p.Name(),
		Reference:    resp.ID,
		ClientSecret: resp.ClientSecret,
	}, nil
}

// VerifyPayment fetches the intent and reports whether it succeeded.
func (p *StripeProvider) VerifyPayment(ctx context.Context, reference string) (*PaymentStatus, error) {
	var resp stripeIntentResponse
	if err := p.do(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(reference), nil, &resp); err != nil {
		return nil, err
	}

	if resp.Error != nil || resp.ID == "" {
		p.log.Warn("stripe verify rejected", zap.String("reference", reference), zap.Any("error", resp.Error))
		return nil, ErrProviderFailure
	}

	return &PaymentStatus{
		Reference: resp.ID,
		Paid:      resp.Status == "succeeded",
		Amount:    resp.Amount,
		Currency:  strings.ToUpper(resp.Currency),
	}, nil
}

func (p *StripeProvider) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("stripe request build: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Error("stripe request failed", zap.String("path", path), zap.Error(err))
		return ErrProviderFailure
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.log.Error("stripe unexpected status",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", raw))
		return ErrProviderFailure
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("stripe response unmarshal: %w", err)
	}

	return nil
}
