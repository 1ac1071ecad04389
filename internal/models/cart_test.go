package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cartWith(items ...CartItem) *Cart {
	return &Cart{UserID: uuid.New(), Items: items}
}

func item(price string, qty int) CartItem {
	return CartItem{
		ProductID: uuid.New(),
		Quantity:  qty,
		UnitPrice: decimal.RequireFromString(price),
	}
}

func TestCartRecomputeSumsLineTotals(t *testing.T) {
	// Two items: A qty 2 @ 10.00, B qty 1 @ 5.00 -> total 25.00.
	cart := cartWith(item("10.00", 2), item("5.00", 1))
	cart.Recompute()

	assert.True(t, cart.Subtotal.Equal(decimal.RequireFromString("25.00")),
		"subtotal = %s", cart.Subtotal)
	assert.True(t, cart.Total.Equal(cart.Subtotal))
}

func TestCartRecomputeAfterRemoval(t *testing.T) {
	a := item("10.00", 2)
	b := item("5.00", 1)
	cart := cartWith(a, b)
	cart.Recompute()
	require.True(t, cart.Total.Equal(decimal.RequireFromString("25.00")))

	// Removing A drops the total to 5.00.
	cart.Items = []CartItem{b}
	cart.Recompute()
	assert.True(t, cart.Total.Equal(decimal.RequireFromString("5.00")),
		"total = %s", cart.Total)
}

func TestCartZeroQuantityEqualsRemoval(t *testing.T) {
	a := item("10.00", 2)
	b := item("5.00", 1)

	removed := cartWith(b)
	removed.Recompute()

	a.Quantity = 0
	zeroed := cartWith(a, b)
	zeroed.Recompute()

	assert.Len(t, zeroed.Items, 1)
	assert.True(t, zeroed.Total.Equal(removed.Total))
}

func TestCartRecomputeEmpty(t *testing.T) {
	cart := cartWith()
	cart.Recompute()

	assert.True(t, cart.Subtotal.IsZero())
	assert.True(t, cart.Total.IsZero())
}

func TestCartRecomputeIsIdempotent(t *testing.T) {
	cart := cartWith(item("3.33", 3), item("0.01", 100))
	cart.Recompute()
	first := cart.Total
	cart.Recompute()

	assert.True(t, cart.Total.Equal(first))
	assert.True(t, cart.Total.Equal(decimal.RequireFromString("10.99")))
}

func TestCartLineTotal(t *testing.T) {
	line := item("19.99", 3)
	assert.True(t, line.LineTotal().Equal(decimal.RequireFromString("59.97")))
}
