package services

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/models"
)

// Pending payment intents older than this are considered abandoned.
const stalePaymentAge = 24 * time.Hour

// Housekeeper runs periodic database cleanup: expired password-reset tokens
// are purged and abandoned pending payments are marked expired.
type Housekeeper struct {
	db   *gorm.DB
	log  *zap.Logger
	cron *cron.Cron
}

// NewHousekeeper constructs a Housekeeper.
func NewHousekeeper(db *gorm.DB, logger *zap.Logger) *Housekeeper {
	return &Housekeeper{
		db:   db,
		log:  logger,
		cron: cron.New(),
	}
}

// Start schedules the cleanup jobs and starts the cron loop.
func (h *Housekeeper) Start() error {
	if _, err := h.cron.AddFunc("@every 15m", h.purgeExpiredResetTokens); err != nil {
		return err
	}
	if _, err := h.cron.AddFunc("@every 1h", h.expireStalePayments); err != nil {
		return err
	}

	h.cron.Start()
	return nil
}

// Stop halts the cron loop.
func (h *Housekeeper) Stop() {
	h.cron.Stop()
}

func (h *Housekeeper) purgeExpiredResetTokens() {
	result := h.db.Where("expires_at < ? OR used_at IS NOT NULL", time.Now()).
		Delete(&models.PasswordResetToken{})
	if result.Error != nil {
		h.log.Error("reset token cleanup failed", zap.Error(result.Error))
		return
	}
	if result.RowsAffected > 0 {
		h.log.Info("purged password reset tokens", zap.Int64("count", result.RowsAffected))
	}
}

func (h *Housekeeper) expireStalePayments() {
	cutoff := time.Now().Add(-stalePaymentAge)
	result := h.db.Model(&models.PaymentTransaction{}).
		Where("status = ? AND created_at < ?", models.PaymentStatusPending, cutoff).
		Update("status", models.PaymentStatusExpired)
	if result.Error != nil {
		h.log.Error("stale payment cleanup failed", zap.Error(result.Error))
		return
	}
	if result.RowsAffected > 0 {
		h.log.Info("expired stale payment intents", zap.Int64("count", result.RowsAffected))
	}
}
