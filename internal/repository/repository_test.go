package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"eventix/internal/database"
	apperrors "eventix/internal/errors"
	"eventix/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventID   = "6f1c2f3e-8d4a-4b5e-9c7d-1a2b3c4d5e6f"
	testBookingID = "0b9d8c7e-6f5a-4e3d-8c2b-1a0f9e8d7c6b"
	testUserID    = "3a4b5c6d-7e8f-4a1b-9c2d-3e4f5a6b7c8d"
)

func newMockDB(t *testing.T) (*database.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &database.DB{DB: conn}, mock
}

var eventColumnNames = []string{"id", "title", "description", "location", "category", "date", "price", "image",
	"capacity", "available_tickets", "organizer_id", "created_at", "updated_at"}

var bookingColumnNames = []string{"id", "user_id", "event_id", "ticket_count", "total_price", "status", "payment_status",
	"stripe_session_id", "stripe_session_expires_at", "created_at", "updated_at"}

func eventRow(available int, price string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(eventColumnNames).AddRow(
		testEventID, "Go Summit", "Talks", "Main Hall", "Conference", now.Add(48*time.Hour),
		price, "", 100, available, testUserID, now, now)
}

func bookingRow(status, paymentStatus string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(bookingColumnNames).AddRow(
		testBookingID, testUserID, testEventID, 2, "50", status, paymentStatus,
		nil, nil, now, now)
}

func TestReserveTickets(t *testing.T) {
	reserveSQL := regexp.QuoteMeta(`WHERE id = $1 AND available_tickets >= $2`)
	existsSQL := regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM events WHERE id = $1)`)

	t.Run("decrements in one conditional statement", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(`SET available_tickets = available_tickets - \$2.*` + reserveSQL).
			WithArgs(testEventID, 3).
			WillReturnRows(eventRow(97, "25"))

		event, err := NewEventRepository(db).Reserve(context.Background(), testEventID, 3)

		require.NoError(t, err)
		assert.Equal(t, 97, event.AvailableTickets)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient when the event exists", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(reserveSQL).WithArgs(testEventID, 3).WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(existsSQL).WithArgs(testEventID).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		_, err := NewEventRepository(db).Reserve(context.Background(), testEventID, 3)

		assert.ErrorIs(t, err, apperrors.ErrInsufficientTickets)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found when the event is missing", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(reserveSQL).WithArgs(testEventID, 1).WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(existsSQL).WithArgs(testEventID).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		_, err := NewEventRepository(db).Reserve(context.Background(), testEventID, 1)

		assert.ErrorIs(t, err, apperrors.ErrEventNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects bad input without touching the database", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewEventRepository(db)

		_, err := repo.Reserve(context.Background(), "not-a-uuid", 1)
		assert.ErrorIs(t, err, apperrors.ErrEventNotFound)

		_, err = repo.Reserve(context.Background(), testEventID, 0)
		assert.ErrorIs(t, err, apperrors.ErrInvalidTicketCount)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCreateWithReservation(t *testing.T) {
	t.Run("freezes total from the reserved price", func(t *testing.T) {
		db, mock := newMockDB(t)
		now := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE events`).WithArgs(testEventID, 2).WillReturnRows(eventRow(98, "25"))
		mock.ExpectQuery(`INSERT INTO bookings`).
			WithArgs(testUserID, testEventID, 2, decimal.RequireFromString("50"), models.BookingStatusConfirmed, models.PaymentStatusPending).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(testBookingID, now, now))
		mock.ExpectCommit()

		booking := &models.Booking{
			UserID:        testUserID,
			EventID:       testEventID,
			TicketCount:   2,
			Status:        models.BookingStatusConfirmed,
			PaymentStatus: models.PaymentStatusPending,
		}
		event, err := NewBookingRepository(db).CreateWithReservation(context.Background(), booking)

		require.NoError(t, err)
		assert.Equal(t, testBookingID, booking.ID)
		assert.True(t, booking.TotalPrice.Equal(decimal.RequireFromString("50")))
		assert.Equal(t, "Go Summit", event.Title)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("free tickets are confirmed and paid", func(t *testing.T) {
		db, mock := newMockDB(t)
		now := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE events`).WithArgs(testEventID, 2).WillReturnRows(eventRow(98, "0"))
		mock.ExpectQuery(`INSERT INTO bookings`).
			WithArgs(testUserID, testEventID, 2, decimal.Zero, models.BookingStatusConfirmed, models.PaymentStatusPaid).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(testBookingID, now, now))
		mock.ExpectCommit()

		booking := &models.Booking{
			UserID:        testUserID,
			EventID:       testEventID,
			TicketCount:   2,
			Status:        models.BookingStatusPending,
			PaymentStatus: models.PaymentStatusPending,
		}
		_, err := NewBookingRepository(db).CreateWithReservation(context.Background(), booking)

		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusConfirmed, booking.Status)
		assert.Equal(t, models.PaymentStatusPaid, booking.PaymentStatus)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when tickets run out", func(t *testing.T) {
		db, mock := newMockDB(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE events`).WithArgs(testEventID, 5).WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(`SELECT EXISTS`).WithArgs(testEventID).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		booking := &models.Booking{UserID: testUserID, EventID: testEventID, TicketCount: 5}
		_, err := NewBookingRepository(db).CreateWithReservation(context.Background(), booking)

		assert.ErrorIs(t, err, apperrors.ErrInsufficientTickets)
		assert.Empty(t, booking.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMarkPaid(t *testing.T) {
	delivery := models.WebhookDelivery{EventID: "evt_1", EventType: "checkout.session.completed", BookingID: testBookingID}
	recordSQL := regexp.QuoteMeta(`ON CONFLICT (event_id) DO NOTHING`)

	t.Run("applies a fresh delivery", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectExec(recordSQL).WithArgs("evt_1", "checkout.session.completed", testBookingID, nil).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SET payment_status = 'paid'`).WithArgs(testBookingID, "").
			WillReturnRows(bookingRow(models.BookingStatusConfirmed, models.PaymentStatusPaid))
		mock.ExpectCommit()

		booking, result, err := NewBookingRepository(db).MarkPaid(context.Background(), delivery)

		require.NoError(t, err)
		assert.Equal(t, models.TransitionApplied, result)
		assert.Equal(t, models.PaymentStatusPaid, booking.PaymentStatus)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("a redelivered event is a duplicate and changes nothing", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectExec(recordSQL).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		booking, result, err := NewBookingRepository(db).MarkPaid(context.Background(), delivery)

		require.NoError(t, err)
		assert.Nil(t, booking)
		assert.Equal(t, models.TransitionDuplicate, result)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already paid booking is unchanged", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectExec(recordSQL).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SET payment_status = 'paid'`).WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM bookings`).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectCommit()

		_, result, err := NewBookingRepository(db).MarkPaid(context.Background(), delivery)

		require.NoError(t, err)
		assert.Equal(t, models.TransitionUnchanged, result)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown booking id is recorded without a booking reference", func(t *testing.T) {
		db, mock := newMockDB(t)
		bogus := models.WebhookDelivery{EventID: "evt_2", EventType: "checkout.session.completed", BookingID: "missing"}

		mock.ExpectBegin()
		mock.ExpectExec(recordSQL).WithArgs("evt_2", "checkout.session.completed", nil, nil).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		_, result, err := NewBookingRepository(db).MarkPaid(context.Background(), bogus)

		require.NoError(t, err)
		assert.Equal(t, models.TransitionNotFound, result)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRelease(t *testing.T) {
	t.Run("cancels and returns tickets capped at capacity", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SET status = 'cancelled'`).WithArgs(testBookingID, nil).
			WillReturnRows(bookingRow(models.BookingStatusCancelled, models.PaymentStatusFailed))
		mock.ExpectExec(regexp.QuoteMeta(`LEAST(capacity, available_tickets + $2)`)).WithArgs(testEventID, 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		booking, result, err := NewBookingRepository(db).Release(context.Background(), testBookingID, nil, nil)

		require.NoError(t, err)
		assert.Equal(t, models.TransitionApplied, result)
		assert.Equal(t, models.BookingStatusCancelled, booking.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("a superseded session does not release", func(t *testing.T) {
		db, mock := newMockDB(t)
		delivery := &models.WebhookDelivery{EventID: "evt_3", EventType: "checkout.session.expired", BookingID: testBookingID, SessionID: "cs_old"}
		session := "cs_old"

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (event_id) DO NOTHING`)).
			WithArgs("evt_3", "checkout.session.expired", testBookingID, "cs_old").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta(`COALESCE(stripe_session_id, '') = $2::TEXT`)).
			WithArgs(testBookingID, "cs_old").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM bookings`).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectCommit()

		booking, result, err := NewBookingRepository(db).Release(context.Background(), testBookingID, &session, delivery)

		require.NoError(t, err)
		assert.Nil(t, booking)
		assert.Equal(t, models.TransitionUnchanged, result)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("paid booking keeps its tickets", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SET status = 'cancelled'`).WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM bookings`).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectCommit()

		_, result, err := NewBookingRepository(db).Release(context.Background(), testBookingID, nil, nil)

		require.NoError(t, err)
		assert.Equal(t, models.TransitionUnchanged, result)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpdateCapacityMovesAvailability(t *testing.T) {
	db, mock := newMockDB(t)
	capacity := 80

	mock.ExpectQuery(regexp.QuoteMeta(`GREATEST(0, available_tickets + ($9::INTEGER - capacity))`)).
		WithArgs(testEventID, nil, nil, nil, nil, nil, nil, nil, &capacity).
		WillReturnRows(eventRow(70, "25"))

	event, err := NewEventRepository(db).AdjustCapacity(context.Background(), testEventID, capacity)

	require.NoError(t, err)
	assert.Equal(t, 70, event.AvailableTickets)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetSessionID(t *testing.T) {
	query := regexp.QuoteMeta(`SET stripe_session_id = $2, stripe_session_expires_at = $3`)

	t.Run("stores the session expiry", func(t *testing.T) {
		db, mock := newMockDB(t)
		expires := time.Now().Add(30 * time.Minute)
		mock.ExpectExec(query).WithArgs(testBookingID, "cs_1", expires).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := NewBookingRepository(db).SetSessionID(context.Background(), testBookingID, "cs_1", expires)

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero expiry is stored as null", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(query).WithArgs(testBookingID, "cs_1", nil).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := NewBookingRepository(db).SetSessionID(context.Background(), testBookingID, "cs_1", time.Time{})

		assert.ErrorIs(t, err, apperrors.ErrBookingNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestListExpiredUnpaid(t *testing.T) {
	db, mock := newMockDB(t)
	createdBefore := time.Now().Add(-20 * time.Minute)
	sessionBefore := time.Now().Add(-5 * time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE payment_status IN ('pending', 'failed')`) +
		`(?s).*` + regexp.QuoteMeta(`ELSE stripe_session_expires_at < $2 END`)).
		WithArgs(createdBefore, sessionBefore, 50).
		WillReturnRows(bookingRow(models.BookingStatusPending, models.PaymentStatusFailed))

	bookings, err := NewBookingRepository(db).ListExpiredUnpaid(context.Background(), createdBefore, sessionBefore, 50)

	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, models.PaymentStatusFailed, bookings[0].PaymentStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventWrites(t *testing.T) {
	t.Run("create returns the stored price", func(t *testing.T) {
		db, mock := newMockDB(t)
		now := time.Now()
		mock.ExpectQuery(regexp.QuoteMeta(`RETURNING id, price, available_tickets, created_at, updated_at`)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "price", "available_tickets", "created_at", "updated_at"}).
				AddRow(testEventID, "12.35", 10, now, now))

		event := &models.Event{Title: "Go Summit", Price: decimal.RequireFromString("12.345"), Capacity: 10, OrganizerID: testUserID}
		err := NewEventRepository(db).Create(context.Background(), event)

		require.NoError(t, err)
		assert.Equal(t, "12.35", event.Price.String())
		assert.Equal(t, 10, event.AvailableTickets)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("delete with bookings is refused", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(`DELETE FROM events`).WithArgs(testEventID).
			WillReturnError(&pq.Error{Code: "23503", Message: "violates foreign key constraint"})

		deleted, err := NewEventRepository(db).Delete(context.Background(), testEventID)

		assert.False(t, deleted)
		assert.ErrorIs(t, err, apperrors.ErrEventHasBookings)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetEventWithOrganizer(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()
	columns := append(append([]string{}, eventColumnNames...), "name", "email")

	mock.ExpectQuery(regexp.QuoteMeta(`LEFT JOIN users u ON u.id = e.organizer_id`)).
		WithArgs(testEventID).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			testEventID, "Go Summit", "Talks", "Main Hall", "Conference", now.Add(48*time.Hour),
			"25", "", 100, 90, testUserID, now, now, "Grace", "grace@example.com"))

	event, err := NewEventRepository(db).GetByID(context.Background(), testEventID)

	require.NoError(t, err)
	require.NotNil(t, event.Organizer)
	assert.Equal(t, "Grace", event.Organizer.Name)
	assert.Equal(t, "grace@example.com", event.Organizer.Email)
	assert.Equal(t, testUserID, event.Organizer.ID)
}
