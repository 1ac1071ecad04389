// Package fsm encodes the order status lifecycle as an explicit
// legal-transition table instead of free-form field assignment.
package fsm

import "errors"

// Order statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"
)

var (
	// ErrUnknownStatus is returned for a status outside the lifecycle.
	ErrUnknownStatus = errors.New("unknown order status")
	// ErrIllegalTransition is returned when the target status is not
	// reachable from the current one.
	ErrIllegalTransition = errors.New("illegal status transition")
)

var transitions = map[string][]string{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// Valid reports whether status is part of the lifecycle.
func Valid(status string) bool {
	_, ok := transitions[status]
	return ok
}

// Validate checks that moving from one status to another is legal.
// A transition into the current status is legal and a no-op for callers.
func Validate(from, to string) error {
	next, ok := transitions[from]
	if !ok {
		return ErrUnknownStatus
	}
	if !Valid(to) {
		return ErrUnknownStatus
	}
	if from == to {
		return nil
	}
	for _, s := range next {
		if s == to {
			return nil
		}
	}
	return ErrIllegalTransition
}

// IsTerminal reports whether no further transitions leave the status.
func IsTerminal(status string) bool {
	return len(transitions[status]) == 0
}

// NotifiesCustomer reports whether entering the status triggers a
// customer-facing email.
func NotifiesCustomer(status string) bool {
	return status == StatusShipped || status == StatusDelivered
}
