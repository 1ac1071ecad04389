package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cart holds the pending purchase line items of one authenticated user.
// Guests keep an equivalent structure client-side; no row exists for them.
type Cart struct {
	BaseModel
	UserID   uuid.UUID       `gorm:"type:uuid;uniqueIndex" json:"user_id"`
	Items    []CartItem      `gorm:"constraint:OnDelete:CASCADE" json:"items"`
	Subtotal decimal.Decimal `gorm:"type:numeric(12,2)" json:"subtotal"`
	Total    decimal.Decimal `gorm:"type:numeric(12,2)" json:"total"`
}

// CartItem is a (product, quantity, price-at-add) tuple. UnitPrice is frozen
// when the item enters the cart so later catalog edits do not move the line.
type CartItem struct {
	BaseModel
	CartID      uuid.UUID       `gorm:"type:uuid;index" json:"cart_id"`
	ProductID   uuid.UUID       `gorm:"type:uuid;index" json:"product_id"`
	ProductName string          `json:"product_name"`
	Image       string          `json:"image"`
	Color       string          `json:"color"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2)" json:"unit_price"`
}

// LineTotal returns quantity times unit price.
func (i *CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Recompute derives Subtotal and Total from the current items, dropping any
// line whose quantity has reached zero. Called after every cart mutation.
func (c *Cart) Recompute() {
	items := c.Items[:0]
	subtotal := decimal.Zero
	for _, item := range c.Items {
		if item.Quantity <= 0 {
			continue
		}
		subtotal = subtotal.Add(item.LineTotal())
		items = append(items, item)
	}
	c.Items = items
	c.Subtotal = subtotal
	c.Total = subtotal
}
