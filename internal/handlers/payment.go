package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/metrics"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
)

// PaymentHandler manages payment intent endpoints.
type PaymentHandler struct {
	db       *gorm.DB
	provider services.PaymentProvider
	log      *zap.Logger
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(db *gorm.DB, provider services.PaymentProvider, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{db: db, provider: provider, log: logger}
}

type createIntentRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Email    string          `json:"email"`
}

// CreateIntent requests a payment handle from the configured provider and
// records a pending transaction. The handle is opaque to the rest of the
// system until verification.
func (h *PaymentHandler) CreateIntent(c *fiber.Ctx) error {
	var req createIntentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if !req.Amount.IsPositive() {
		return fiber.NewError(fiber.StatusBadRequest, "amount must be positive")
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "GBP"
	}

	email := strings.TrimSpace(req.Email)
	user, authenticated := middleware.CurrentUser(c)
	if authenticated {
		email = user.Email
	}
	if email == "" {
		return fiber.NewError(fiber.StatusBadRequest, "email is required")
	}

	metadata := map[string]string{
		"email":     email,
		"reference": uuid.New().String(),
	}

	amount := minorUnits(req.Amount)
	intent, err := h.provider.CreateIntent(c.Context(), amount, currency, metadata)
	if err != nil {
		if errors.Is(err, services.ErrInvalidAmount) {
			return fiber.NewError(fiber.StatusBadRequest, "amount must be positive")
		}
		h.log.Error("payment intent creation failed", zap.Error(err))
		return fiber.NewError(fiber.StatusBadGateway, "payment provider unavailable")
	}

	txn := models.PaymentTransaction{
		Provider:  intent.Provider,
		Reference: intent.Reference,
		Email:     email,
		Amount:    amount,
		Currency:  currency,
		Status:    models.PaymentStatusPending,
	}
	if authenticated {
		txn.UserID = &user.ID
	}

	if err := h.db.Create(&txn).Error; err != nil {
		return err
	}

	metrics.PaymentsInitiated.WithLabelValues(intent.Provider).Inc()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": intent})
}

// VerifyPayment checks a reference against the provider and records the
// outcome.
func (h *PaymentHandler) VerifyPayment(c *fiber.Ctx) error {
	reference := c.Params("reference")
	if reference == "" {
		return fiber.NewError(fiber.StatusBadRequest, "reference is required")
	}

	var txn models.PaymentTransaction
	if err := h.db.Where("reference = ?", reference).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "payment transaction not found")
		}
		return err
	}

	status, err := h.provider.VerifyPayment(c.Context(), reference)
	if err != nil {
		h.log.Error("payment verification failed", zap.String("reference", reference), zap.Error(err))
		return fiber.NewError(fiber.StatusBadGateway, "payment verification failed")
	}

	outcome := models.PaymentStatusFailed
	if status.Paid {
		outcome = models.PaymentStatusSucceeded
	}
	metrics.PaymentsVerified.WithLabelValues(h.provider.Name(), outcome).Inc()

	if txn.Status == models.PaymentStatusPending {
		updates := map[string]any{"status": outcome}
		if status.Paid {
			now := time.Now()
			updates["confirmed_at"] = &now
		}
		if err := h.db.Model(&txn).Updates(updates).Error; err != nil {
			return err
		}
	}

	return c.JSON(fiber.Map{"success": true, "data": status})
}

// minorUnits converts a decimal major-unit amount to provider minor units.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
