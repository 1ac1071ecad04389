package fsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateLegalTransitions(t *testing.T) {
	legal := []struct{ from, to string }{
		{StatusPending, StatusProcessing},
		{StatusPending, StatusCancelled},
		{StatusProcessing, StatusShipped},
		{StatusProcessing, StatusCancelled},
		{StatusShipped, StatusDelivered},
	}

	for _, tc := range legal {
		assert.NoError(t, Validate(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestValidateIllegalTransitions(t *testing.T) {
	illegal := []struct{ from, to string }{
		{StatusPending, StatusShipped},
		{StatusPending, StatusDelivered},
		{StatusProcessing, StatusDelivered},
		{StatusShipped, StatusCancelled},
		{StatusShipped, StatusPending},
		{StatusDelivered, StatusPending},
		{StatusDelivered, StatusShipped},
		{StatusCancelled, StatusPending},
		{StatusCancelled, StatusProcessing},
	}

	for _, tc := range illegal {
		assert.ErrorIs(t, Validate(tc.from, tc.to), ErrIllegalTransition, "%s -> %s", tc.from, tc.to)
	}
}

func TestValidateSameStatusIsLegal(t *testing.T) {
	for _, s := range []string{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled} {
		assert.NoError(t, Validate(s, s), s)
	}
}

func TestValidateUnknownStatus(t *testing.T) {
	assert.ErrorIs(t, Validate("refunded", StatusPending), ErrUnknownStatus)
	assert.ErrorIs(t, Validate(StatusPending, "refunded"), ErrUnknownStatus)
	assert.ErrorIs(t, Validate("", StatusPending), ErrUnknownStatus)
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(StatusDelivered))
	assert.True(t, IsTerminal(StatusCancelled))
	assert.False(t, IsTerminal(StatusPending))
	assert.False(t, IsTerminal(StatusProcessing))
	assert.False(t, IsTerminal(StatusShipped))
}

func TestNotifiesCustomer(t *testing.T) {
	assert.True(t, NotifiesCustomer(StatusShipped))
	assert.True(t, NotifiesCustomer(StatusDelivered))
	assert.False(t, NotifiesCustomer(StatusPending))
	assert.False(t, NotifiesCustomer(StatusProcessing))
	assert.False(t, NotifiesCustomer(StatusCancelled))
}
