package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// NATS Event Types
const (
	EventBookingCreated   = "booking.created"
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"
	EventPaymentFailed    = "payment.failed"
)

// BookingCreatedEvent represents a booking creation event
type BookingCreatedEvent struct {
	BookingID   string          `json:"booking_id"`
	EventID     string          `json:"event_id"`
	UserID      string          `json:"user_id"`
	TicketCount int             `json:"ticket_count"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	Timestamp   time.Time       `json:"timestamp"`
}

// BookingConfirmedEvent is published once per booking when its payment is reconciled.
// It carries everything the notification consumer needs to mail the ticket.
type BookingConfirmedEvent struct {
	BookingID     string          `json:"booking_id"`
	EventID       string          `json:"event_id"`
	EventTitle    string          `json:"event_title"`
	EventDate     time.Time       `json:"event_date"`
	EventLocation string          `json:"event_location"`
	TicketCount   int             `json:"ticket_count"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	UserName      string          `json:"user_name"`
	UserEmail     string          `json:"user_email"`
	QRPayload     string          `json:"qr_payload"`
	Timestamp     time.Time       `json:"timestamp"`
}

// BookingCancelledEvent represents a booking whose tickets went back to inventory
type BookingCancelledEvent struct {
	BookingID       string    `json:"booking_id"`
	EventID         string    `json:"event_id"`
	UserID          string    `json:"user_id"`
	TicketsReleased int       `json:"tickets_released"`
	Reason          string    `json:"reason"`
	Timestamp       time.Time `json:"timestamp"`
}

// PaymentFailedEvent represents a failed payment event
type PaymentFailedEvent struct {
	BookingID       string    `json:"booking_id"`
	ProviderEventID string    `json:"provider_event_id"`
	Timestamp       time.Time `json:"timestamp"`
}

// TicketQRPayload is the text encoded into the ticket QR code
func TicketQRPayload(bookingID, eventTitle, userName string) string {
	return fmt.Sprintf("Booking ID: %s\nEvent: %s\nUser: %s", bookingID, eventTitle, userName)
}
