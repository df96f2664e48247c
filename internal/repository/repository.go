package repository

import (
	"context"
	"database/sql"

	"eventix/internal/database"
	"eventix/internal/models"

	"github.com/google/uuid"
)

type Repositories struct {
	Events   *EventRepository
	Bookings *BookingRepository
	Users    *UserRepository
}

func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Events:   NewEventRepository(db),
		Bookings: NewBookingRepository(db),
		Users:    NewUserRepository(db),
	}
}

// querier is satisfied by *sql.DB, *sql.Tx and *database.DB
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// validID filters out ids Postgres would reject as malformed uuids
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

const eventColumns = `id, title, description, location, category, date, price, image,
	capacity, available_tickets, organizer_id, created_at, updated_at`

const joinedEventColumns = `e.id, e.title, e.description, e.location, e.category, e.date, e.price, e.image,
	e.capacity, e.available_tickets, e.organizer_id, e.created_at, e.updated_at`

func eventFields(e *models.Event) []any {
	return []any{
		&e.ID,
		&e.Title,
		&e.Description,
		&e.Location,
		&e.Category,
		&e.Date,
		&e.Price,
		&e.Image,
		&e.Capacity,
		&e.AvailableTickets,
		&e.OrganizerID,
		&e.CreatedAt,
		&e.UpdatedAt,
	}
}

func scanEvent(row rowScanner) (*models.Event, error) {
	event := &models.Event{}
	if err := row.Scan(eventFields(event)...); err != nil {
		return nil, err
	}
	return event, nil
}

// eventWithOrganizerFrom selects events with their organizer's public profile
const eventWithOrganizerFrom = `
	SELECT ` + joinedEventColumns + `, u.name, u.email
	FROM events e
	LEFT JOIN users u ON u.id = e.organizer_id`

func scanEventWithOrganizer(row rowScanner) (*models.Event, error) {
	event := &models.Event{}
	var name, email sql.NullString
	fields := append(eventFields(event), &name, &email)
	if err := row.Scan(fields...); err != nil {
		return nil, err
	}
	if name.Valid {
		event.Organizer = &models.Organizer{ID: event.OrganizerID, Name: name.String, Email: email.String}
	}
	return event, nil
}

const bookingColumns = `id, user_id, event_id, ticket_count, total_price, status, payment_status,
	stripe_session_id, stripe_session_expires_at, created_at, updated_at`

const joinedBookingColumns = `b.id, b.user_id, b.event_id, b.ticket_count, b.total_price, b.status, b.payment_status,
	b.stripe_session_id, b.stripe_session_expires_at, b.created_at, b.updated_at`

func bookingFields(b *models.Booking) []any {
	return []any{
		&b.ID,
		&b.UserID,
		&b.EventID,
		&b.TicketCount,
		&b.TotalPrice,
		&b.Status,
		&b.PaymentStatus,
		&b.StripeSessionID,
		&b.SessionExpires,
		&b.CreatedAt,
		&b.UpdatedAt,
	}
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	booking := &models.Booking{}
	if err := row.Scan(bookingFields(booking)...); err != nil {
		return nil, err
	}
	return booking, nil
}

func scanBookingWithEvent(row rowScanner) (*models.Booking, error) {
	booking := &models.Booking{Event: &models.Event{}}
	fields := append(bookingFields(booking), eventFields(booking.Event)...)
	if err := row.Scan(fields...); err != nil {
		return nil, err
	}
	return booking, nil
}
