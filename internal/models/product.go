package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Category groups products; subcategories are free-form labels within it.
type Category struct {
	BaseModel
	Name          string         `json:"name"`
	Slug          string         `gorm:"uniqueIndex" json:"slug"`
	Description   string         `json:"description"`
	Image         string         `json:"image"`
	Subcategories pq.StringArray `gorm:"type:text[]" json:"subcategories"`
	Products      []Product      `json:"products,omitempty"`
}

// Product is a catalog entry. Stock is decremented on order creation and is
// never allowed below zero.
type Product struct {
	BaseModel
	Slug        string          `gorm:"uniqueIndex" json:"slug"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2)" json:"price"`
	Currency    string          `gorm:"default:GBP" json:"currency"`
	Stock       int             `json:"stock"`
	IsActive    bool            `gorm:"default:true" json:"is_active"`
	CategoryID  *uuid.UUID      `gorm:"type:uuid" json:"category_id"`
	Category    *Category       `json:"category,omitempty"`
	Subcategory string          `gorm:"index" json:"subcategory"`
	Colors      pq.StringArray  `gorm:"type:text[]" json:"colors"`
	HeroImage   string          `json:"hero_image"`
	Thumbnail   string          `json:"thumbnail"`
	Gallery     pq.StringArray  `gorm:"type:text[]" json:"gallery"`
}

// InStock reports whether at least qty units are available.
func (p *Product) InStock(qty int) bool {
	return p.Stock >= qty
}

// WishlistItem links a user to a saved product. The composite unique index
// keeps the wishlist a set.
type WishlistItem struct {
	BaseModel
	UserID    uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_wishlist_user_product" json:"user_id"`
	ProductID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_wishlist_user_product" json:"product_id"`
	Product   *Product  `json:"product,omitempty"`
}
