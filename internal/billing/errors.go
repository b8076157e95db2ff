package billing

import (
	"errors"

	"swimclub/internal/membership"
)

var (
	// ErrInvalidAmount is returned for non-positive payment or billing amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrInvalidBilling is returned when a bill is constructed without a positive
	// amount or without its billing and due dates.
	ErrInvalidBilling = errors.New("invalid billing")
	// ErrBillNotFound is returned for an unknown billing id.
	ErrBillNotFound = errors.New("bill not found")
	// ErrPaymentNotFound is returned for an unknown payment id.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrMemberNotFound is returned for an unknown member id.
	ErrMemberNotFound = membership.ErrMemberNotFound
)
