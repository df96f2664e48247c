package errors

import "errors"

var ErrUnauthorized = errors.New("user not authorized")
var ErrForbidden = errors.New("operation is forbidden for user")

var (
	ErrEventNotFound       = errors.New("event not found")
	ErrBookingNotFound     = errors.New("booking not found")
	ErrInsufficientTickets = errors.New("not enough tickets available")
	ErrInvalidTicketCount  = errors.New("ticket count must be at least 1")
	ErrInvalidEvent        = errors.New("invalid event")
	ErrBookingNotPayable   = errors.New("booking is not payable")
	ErrEventHasBookings    = errors.New("event has bookings")
)

// Payment provider errors
var (
	ErrPaymentNotConfigured = errors.New("payment provider is not configured")
	ErrInvalidSignature     = errors.New("webhook signature verification failed")
	ErrPaymentProvider      = errors.New("payment provider request failed")
	ErrAmountBelowMinimum   = errors.New("amount is below the provider minimum")
	ErrCheckoutCompleted    = errors.New("checkout session already completed")
)

var ErrSearchDisabled = errors.New("search is not enabled")
