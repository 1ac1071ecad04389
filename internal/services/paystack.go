package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// PaystackProvider implements the redirect-based flow: the client is sent to
// the provider's authorization URL and the server verifies the transaction by
// reference afterwards.
type PaystackProvider struct {
	baseURL   string
	secretKey string
	client    *http.Client
	log       *zap.Logger
}

// NewPaystackProvider constructs a PaystackProvider.
func NewPaystackProvider(baseURL, secretKey string, client *http.Client, logger *zap.Logger) *PaystackProvider {
	return &PaystackProvider{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		client:    client,
		log:       logger,
	}
}

// Name returns the provider identifier.
func (p *PaystackProvider) Name() string { return "paystack" }

type paystackInitRequest struct {
	Email     string `json:"email"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Reference string `json:"reference,omitempty"`
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type paystackInitData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type paystackVerifyData struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

// CreateIntent initializes a transaction and returns the redirect URL.
func (p *PaystackProvider) CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*PaymentIntent, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	payload := paystackInitRequest{
		Email:     metadata["email"],
		Amount:    amount,
		Currency:  strings.ToUpper(currency),
		Reference: metadata["reference"],
	}

	var data paystackInitData
	if err := p.do(ctx, http.MethodPost, "/transaction/initialize", payload, &data); err != nil {
		return nil, err
	}

	if data.Reference == "" {
		return nil, ErrProviderFailure
	}

	return &PaymentIntent{
		Provider:    p.Name(),
		Reference:   data.Reference,
		RedirectURL: data.AuthorizationURL,
	}, nil
}

// VerifyPayment checks the transaction status by reference.
func (p *PaystackProvider) VerifyPayment(ctx context.Context, reference string) (*PaymentStatus, error) {
	var data paystackVerifyData
	if err := p.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &data); err != nil {
		return nil, err
	}

	return &PaymentStatus{
		Reference: data.Reference,
		Paid:      data.Status == "success",
		Amount:    data.Amount,
		Currency:  strings.ToUpper(data.Currency),
	}, nil
}

func (p *PaystackProvider) do(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("paystack request marshal: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("paystack request build: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Error("paystack request failed", zap.String("path", path), zap.Error(err))
		return ErrProviderFailure
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.log.Error("paystack unexpected status",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", raw))
		return ErrProviderFailure
	}

	var envelope paystackEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("paystack response unmarshal: %w", err)
	}

	if !envelope.Status {
		p.log.Warn("paystack rejected request", zap.String("path", path), zap.String("message", envelope.Message))
		return ErrProviderFailure
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("paystack data unmarshal: %w", err)
		}
	}

	return nil
}
