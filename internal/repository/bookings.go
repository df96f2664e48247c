package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"eventix/internal/database"
	apperrors "eventix/internal/errors"
	"eventix/internal/models"
)

type BookingRepository struct {
	db *database.DB
}

func NewBookingRepository(db *database.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// CreateWithReservation reserves the booking's tickets and inserts the booking
// in one transaction. The total price is fixed here from the price the
// reserving statement returned and is never written again.
func (r *BookingRepository) CreateWithReservation(ctx context.Context, booking *models.Booking) (*models.Event, error) {
	var event *models.Event

	err := r.db.InTx(ctx, func(tx *sql.Tx) error {
		reserved, err := reserveTickets(ctx, tx, booking.EventID, booking.TicketCount)
		if err != nil {
			return err
		}

		booking.TotalPrice = reserved.PriceFor(booking.TicketCount)
		if booking.TotalPrice.IsZero() {
			// free tickets have nothing to collect
			booking.Status = models.BookingStatusConfirmed
			booking.PaymentStatus = models.PaymentStatusPaid
		}

		query := `
			INSERT INTO bookings (user_id, event_id, ticket_count, total_price, status, payment_status)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at, updated_at`

		err = tx.QueryRowContext(ctx, query,
			booking.UserID,
			booking.EventID,
			booking.TicketCount,
			booking.TotalPrice,
			booking.Status,
			booking.PaymentStatus,
		).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert booking: %w", err)
		}

		event = reserved
		return nil
	})
	if err != nil {
		return nil, err
	}

	return event, nil
}

// GetByID returns the booking with its event, or nil when it does not exist
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	if !validID(id) {
		return nil, nil
	}

	query := `
		SELECT ` + joinedBookingColumns + `, ` + joinedEventColumns + `
		FROM bookings b
		JOIN events e ON e.id = b.event_id
		WHERE b.id = $1`

	booking, err := scanBookingWithEvent(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return booking, err
}

// ListByUser returns the user's bookings with their events, newest first
func (r *BookingRepository) ListByUser(ctx context.Context, userID string) ([]models.Booking, error) {
	bookings := []models.Booking{}
	if !validID(userID) {
		return bookings, nil
	}

	query := `
		SELECT ` + joinedBookingColumns + `, ` + joinedEventColumns + `
		FROM bookings b
		JOIN events e ON e.id = b.event_id
		WHERE b.user_id = $1
		ORDER BY b.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		booking, err := scanBookingWithEvent(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *booking)
	}

	return bookings, rows.Err()
}

// SetSessionID stores the booking's current checkout session and when it
// stops accepting payment. A zero expiresAt is stored as NULL.
func (r *BookingRepository) SetSessionID(ctx context.Context, id, sessionID string, expiresAt time.Time) error {
	query := `
		UPDATE bookings
		SET stripe_session_id = $2, stripe_session_expires_at = $3, updated_at = NOW()
		WHERE id = $1`

	var expires any
	if !expiresAt.IsZero() {
		expires = expiresAt
	}

	result, err := r.db.ExecContext(ctx, query, id, sessionID, expires)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.ErrBookingNotFound
	}
	return nil
}

// MarkPaid records a payment confirmation and the session that paid.
// Cancelled bookings keep their status and only get the payment recorded.
func (r *BookingRepository) MarkPaid(ctx context.Context, delivery models.WebhookDelivery) (*models.Booking, models.TransitionResult, error) {
	return r.withDelivery(ctx, &delivery, func(tx *sql.Tx) (*models.Booking, models.TransitionResult, error) {
		query := `
			UPDATE bookings
			SET payment_status = 'paid',
			    status = CASE WHEN status = 'cancelled' THEN status ELSE 'confirmed' END,
			    stripe_session_id = COALESCE(NULLIF($2, ''), stripe_session_id),
			    updated_at = NOW()
			WHERE id = $1 AND payment_status <> 'paid'
			RETURNING ` + bookingColumns

		return r.transition(ctx, tx, query, delivery.BookingID, delivery.SessionID)
	})
}

// MarkPaymentFailed flags a pending payment as failed
func (r *BookingRepository) MarkPaymentFailed(ctx context.Context, delivery models.WebhookDelivery) (*models.Booking, models.TransitionResult, error) {
	return r.withDelivery(ctx, &delivery, func(tx *sql.Tx) (*models.Booking, models.TransitionResult, error) {
		query := `
			UPDATE bookings
			SET payment_status = 'failed', updated_at = NOW()
			WHERE id = $1 AND payment_status = 'pending'
			RETURNING ` + bookingColumns

		return r.transition(ctx, tx, query, delivery.BookingID)
	})
}

// Release cancels an unpaid booking and gives its tickets back to the event.
// When session is not nil the booking is only released while its stored
// checkout session is still *session ("" for none), so a newer session
// keeps the booking alive. delivery is nil when the release is not driven
// by a provider notification.
func (r *BookingRepository) Release(ctx context.Context, bookingID string, session *string, delivery *models.WebhookDelivery) (*models.Booking, models.TransitionResult, error) {
	return r.withDelivery(ctx, delivery, func(tx *sql.Tx) (*models.Booking, models.TransitionResult, error) {
		query := `
			UPDATE bookings
			SET status = 'cancelled',
			    payment_status = CASE WHEN payment_status = 'pending' THEN 'failed' ELSE payment_status END,
			    updated_at = NOW()
			WHERE id = $1 AND status <> 'cancelled' AND payment_status <> 'paid'
			  AND ($2::TEXT IS NULL OR COALESCE(stripe_session_id, '') = $2::TEXT)
			RETURNING ` + bookingColumns

		booking, result, err := r.transition(ctx, tx, query, bookingID, session)
		if err != nil || result != models.TransitionApplied {
			return booking, result, err
		}

		if err := releaseTickets(ctx, tx, booking.EventID, booking.TicketCount); err != nil {
			return nil, "", fmt.Errorf("failed to release tickets: %w", err)
		}
		return booking, result, nil
	})
}

// withDelivery runs apply in a transaction that first records the provider
// event id. A delivery seen before short-circuits as a duplicate.
func (r *BookingRepository) withDelivery(ctx context.Context, delivery *models.WebhookDelivery, apply func(tx *sql.Tx) (*models.Booking, models.TransitionResult, error)) (*models.Booking, models.TransitionResult, error) {
	var booking *models.Booking
	var result models.TransitionResult

	err := r.db.InTx(ctx, func(tx *sql.Tx) error {
		if delivery != nil {
			fresh, err := recordDelivery(ctx, tx, delivery)
			if err != nil {
				return err
			}
			if !fresh {
				result = models.TransitionDuplicate
				return nil
			}
		}

		var err error
		booking, result, err = apply(tx)
		return err
	})
	if err != nil {
		return nil, "", err
	}

	return booking, result, nil
}

func recordDelivery(ctx context.Context, tx *sql.Tx, delivery *models.WebhookDelivery) (bool, error) {
	var bookingID any
	if validID(delivery.BookingID) {
		bookingID = delivery.BookingID
	}

	var sessionID any
	if delivery.SessionID != "" {
		sessionID = delivery.SessionID
	}

	query := `
		INSERT INTO payment_webhook_events (event_id, event_type, booking_id, session_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id) DO NOTHING`

	result, err := tx.ExecContext(ctx, query, delivery.EventID, delivery.EventType, bookingID, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to record webhook event: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// transition runs a conditional UPDATE ... RETURNING and tells a booking that
// did not match the condition apart from one that does not exist
func (r *BookingRepository) transition(ctx context.Context, tx *sql.Tx, query, bookingID string, args ...any) (*models.Booking, models.TransitionResult, error) {
	if !validID(bookingID) {
		return nil, models.TransitionNotFound, nil
	}

	booking, err := scanBooking(tx.QueryRowContext(ctx, query, append([]any{bookingID}, args...)...))
	if err == nil {
		return booking, models.TransitionApplied, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, "", fmt.Errorf("failed to update booking: %w", err)
	}

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM bookings WHERE id = $1)`, bookingID).Scan(&exists); err != nil {
		return nil, "", fmt.Errorf("failed to check booking: %w", err)
	}
	if !exists {
		return nil, models.TransitionNotFound, nil
	}
	return nil, models.TransitionUnchanged, nil
}

// ListExpiredUnpaid returns open bookings whose payment is pending or failed
// and whose hold has run out. A booking with a checkout session is held until
// the session expired before sessionBefore; one without is held until it was
// created before createdBefore.
func (r *BookingRepository) ListExpiredUnpaid(ctx context.Context, createdBefore, sessionBefore time.Time, limit int) ([]models.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE payment_status IN ('pending', 'failed')
		  AND status <> 'cancelled'
		  AND CASE WHEN stripe_session_expires_at IS NULL THEN created_at < $1
		           ELSE stripe_session_expires_at < $2 END
		ORDER BY created_at ASC
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, createdBefore, sessionBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *booking)
	}

	return bookings, rows.Err()
}

// ListForEventsBetween returns confirmed bookings of events dated in [from, to)
func (r *BookingRepository) ListForEventsBetween(ctx context.Context, from, to time.Time) ([]models.ReminderRecipient, error) {
	query := `
		SELECT b.id, b.ticket_count, u.name, u.email, e.id, e.title, e.date, e.location
		FROM bookings b
		JOIN events e ON e.id = b.event_id
		JOIN users u ON u.id = b.user_id
		WHERE b.status = 'confirmed'
		  AND e.date >= $1
		  AND e.date < $2
		ORDER BY e.date ASC, b.created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recipients []models.ReminderRecipient
	for rows.Next() {
		var rcpt models.ReminderRecipient
		err := rows.Scan(
			&rcpt.BookingID,
			&rcpt.TicketCount,
			&rcpt.UserName,
			&rcpt.UserEmail,
			&rcpt.EventID,
			&rcpt.EventTitle,
			&rcpt.EventDate,
			&rcpt.EventLocation,
		)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, rcpt)
	}

	return recipients, rows.Err()
}
