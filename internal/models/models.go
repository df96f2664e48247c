package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateEventRequest - payload for creating an event
type CreateEventRequest struct {
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description" binding:"required"`
	Date        time.Time       `json:"date" binding:"required"`
	Location    string          `json:"location" binding:"required"`
	Category    string          `json:"category" binding:"required,oneof=Concert Conference Workshop Meetup Other"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	Capacity    int             `json:"capacity" binding:"omitempty,gt=0"`
}

// UpdateEventRequest - partial event update, nil fields are left untouched
type UpdateEventRequest struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Date        *time.Time       `json:"date"`
	Location    *string          `json:"location"`
	Category    *string          `json:"category" binding:"omitempty,oneof=Concert Conference Workshop Meetup Other"`
	Price       *decimal.Decimal `json:"price"`
	Image       *string          `json:"image"`
	Capacity    *int             `json:"capacity" binding:"omitempty,gt=0"`
}

// EventFilter - list query for events
type EventFilter struct {
	Category string
	Page     int
	Limit    int
}

// ListEventsResponse - paginated events
type ListEventsResponse struct {
	Events []Event `json:"events"`
	Page   int     `json:"page"`
	Pages  int     `json:"pages"`
	Total  int     `json:"total"`
}

// SearchEventsResponse - full-text search hits
type SearchEventsResponse struct {
	Events []Event `json:"events"`
}

// CreateBookingRequest - payload for booking tickets
type CreateBookingRequest struct {
	EventID     string `json:"eventId" binding:"required"`
	TicketCount int    `json:"ticketCount" binding:"required"`
}

// CreateCheckoutSessionRequest - payload for opening a hosted checkout
type CreateCheckoutSessionRequest struct {
	BookingID string `json:"bookingId" binding:"required"`
}

// CheckoutSessionResponse - hosted checkout session handle
type CheckoutSessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// WebhookAck - acknowledgement returned to the payment provider
type WebhookAck struct {
	Received bool `json:"received"`
}

// MessageResponse - generic message body used for errors and simple acks
type MessageResponse struct {
	Message string `json:"message"`
}
