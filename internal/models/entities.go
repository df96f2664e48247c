package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Booking statuses
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
)

// Payment statuses
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// EventCategories lists the accepted event categories
var EventCategories = []string{"Concert", "Conference", "Workshop", "Meetup", "Other"}

const DefaultEventCapacity = 100

func init() {
	// prices go over the wire as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

// User represents a user in the system. Users are provisioned by the auth service.
type User struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Role      string    `json:"role" db:"role"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Event represents an event and owns its ticket inventory
type Event struct {
	ID               string          `json:"id" db:"id"`
	Title            string          `json:"title" db:"title"`
	Description      string          `json:"description" db:"description"`
	Location         string          `json:"location" db:"location"`
	Category         string          `json:"category" db:"category"`
	Date             time.Time       `json:"date" db:"date"`
	Price            decimal.Decimal `json:"price" db:"price"`
	Image            string          `json:"image" db:"image"`
	Capacity         int             `json:"capacity" db:"capacity"`
	AvailableTickets int             `json:"availableTickets" db:"available_tickets"`
	OrganizerID      string          `json:"organizer" db:"organizer_id"`
	Organizer        *Organizer      `json:"organizerDetails,omitempty"`
	CreatedAt        time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time       `json:"updatedAt" db:"updated_at"`
}

// Organizer is the public profile of an event's organizer, joined on reads
type Organizer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// PriceFor returns the price of count tickets at the event's current price
func (e *Event) PriceFor(count int) decimal.Decimal {
	return e.Price.Mul(decimal.NewFromInt(int64(count)))
}

// Booking represents a booking in the system
type Booking struct {
	ID              string          `json:"id" db:"id"`
	UserID          string          `json:"user" db:"user_id"`
	EventID         string          `json:"eventId" db:"event_id"`
	TicketCount     int             `json:"ticketCount" db:"ticket_count"`
	TotalPrice      decimal.Decimal `json:"totalPrice" db:"total_price"`
	Status          string          `json:"status" db:"status"`
	PaymentStatus   string          `json:"paymentStatus" db:"payment_status"`
	StripeSessionID *string         `json:"stripeSessionId,omitempty" db:"stripe_session_id"`
	SessionExpires  *time.Time      `json:"-" db:"stripe_session_expires_at"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
	Event           *Event          `json:"event,omitempty"` // Not from bookings table, joined separately
}

// UnitPrice derives the per-ticket price from the frozen total
func (b *Booking) UnitPrice() decimal.Decimal {
	if b.TicketCount <= 0 {
		return decimal.Zero
	}
	return b.TotalPrice.Div(decimal.NewFromInt(int64(b.TicketCount)))
}

// SessionID returns the stored checkout session id or ""
func (b *Booking) SessionID() string {
	if b.StripeSessionID == nil {
		return ""
	}
	return *b.StripeSessionID
}

// Payable reports whether a checkout session may still be opened for the booking
func (b *Booking) Payable() bool {
	return b.Status != BookingStatusCancelled && b.PaymentStatus != PaymentStatusPaid && b.PaymentStatus != PaymentStatusRefunded
}

// ReminderRecipient is a confirmed booking of an event happening in the reminder window
type ReminderRecipient struct {
	BookingID     string    `json:"booking_id"`
	TicketCount   int       `json:"ticket_count"`
	UserName      string    `json:"user_name"`
	UserEmail     string    `json:"user_email"`
	EventID       string    `json:"event_id"`
	EventTitle    string    `json:"event_title"`
	EventDate     time.Time `json:"event_date"`
	EventLocation string    `json:"event_location"`
}

// WebhookDelivery identifies a single payment provider notification
type WebhookDelivery struct {
	EventID   string
	EventType string
	BookingID string
	SessionID string
}

// TransitionResult describes what a payment state transition did
type TransitionResult string

const (
	TransitionApplied   TransitionResult = "applied"
	TransitionDuplicate TransitionResult = "duplicate"
	TransitionUnchanged TransitionResult = "unchanged"
	TransitionNotFound  TransitionResult = "not_found"
)
