package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is an immutable snapshot of a paid cart. Item prices are frozen at
// creation; only the status fields change afterwards.
type Order struct {
	BaseModel
	OrderNumber string     `gorm:"uniqueIndex" json:"order_number"`
	UserID      *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	User        *User      `json:"user,omitempty"`

	// Guest checkout identity, used when UserID is nil.
	GuestName  string `json:"guest_name"`
	GuestEmail string `json:"guest_email"`

	Status   string    `gorm:"index" json:"status"`
	PlacedAt time.Time `json:"placed_at"`

	Subtotal    decimal.Decimal `gorm:"type:numeric(12,2)" json:"subtotal"`
	ShippingFee decimal.Decimal `gorm:"type:numeric(12,2)" json:"shipping_fee"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(12,2)" json:"total_amount"`
	Currency    string          `json:"currency"`

	ShippingName     string `json:"shipping_name"`
	ShippingPhone    string `json:"shipping_phone"`
	ShippingAddress  string `json:"shipping_address"`
	ShippingCity     string `json:"shipping_city"`
	ShippingPostcode string `json:"shipping_postcode"`
	ShippingCountry  string `json:"shipping_country"`

	PaymentProvider string `json:"payment_provider"`
	// Unique so the insert itself rejects a second order against the same
	// payment, even when two checkouts race past the handler's pre-check.
	PaymentReference string `gorm:"uniqueIndex" json:"payment_reference"`
	Paid             bool   `json:"paid"`

	ShippedAt   *time.Time `json:"shipped_at"`
	DeliveredAt *time.Time `json:"delivered_at"`
	CancelledAt *time.Time `json:"cancelled_at"`

	Items []OrderItem `gorm:"constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// CustomerEmail returns the address confirmation mail goes to.
func (o *Order) CustomerEmail() string {
	if o.User != nil && o.User.Email != "" {
		return o.User.Email
	}
	return o.GuestEmail
}

// OrderItem records one purchased line with its price at purchase time.
type OrderItem struct {
	BaseModel
	OrderID     uuid.UUID       `gorm:"type:uuid;index" json:"order_id"`
	ProductID   *uuid.UUID      `gorm:"type:uuid" json:"product_id"`
	ProductName string          `json:"product_name"`
	Color       string          `json:"color"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2)" json:"unit_price"`
	LineTotal   decimal.Decimal `gorm:"type:numeric(12,2)" json:"line_total"`
}
