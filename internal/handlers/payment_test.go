package handlers

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMinorUnits(t *testing.T) {
	cases := []struct {
		amount string
		want   int64
	}{
		{"25.00", 2500},
		{"5", 500},
		{"0.01", 1},
		{"19.99", 1999},
		{"0.1", 10},
		{"1234.56", 123456},
	}

	for _, tc := range cases {
		got := minorUnits(decimal.RequireFromString(tc.amount))
		assert.Equal(t, tc.want, got, "amount %s", tc.amount)
	}
}

func TestGenerateOrderNumber(t *testing.T) {
	first := generateOrderNumber()
	second := generateOrderNumber()

	assert.Regexp(t, `^#\d+-[0-9A-F]{4}$`, first)
	assert.NotEqual(t, first, second)
}
