package models

import (
	"time"

	"github.com/google/uuid"
)

// Payment transaction statuses.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
	PaymentStatusExpired   = "expired"
)

// PaymentTransaction tracks one provider payment handle from intent creation
// to confirmation. Amount is kept in minor units, as the providers report it.
type PaymentTransaction struct {
	BaseModel
	Provider  string     `gorm:"index" json:"provider"`
	Reference string     `gorm:"uniqueIndex" json:"reference"`
	UserID    *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	Email     string     `json:"email"`
	Amount    int64      `json:"amount"`
	Currency  string     `json:"currency"`
	Status    string     `gorm:"index" json:"status"`

	ConfirmedAt *time.Time `json:"confirmed_at"`
}
