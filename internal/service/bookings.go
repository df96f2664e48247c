package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "eventix/internal/errors"
	"eventix/internal/logger"
	"eventix/internal/metrics"
	"eventix/internal/models"
)

type BookingService struct {
	bookings  BookingStore
	publisher Publisher
	policy    BookingPolicy
	settled   func(ctx context.Context, bookingID string)
}

func NewBookingService(bookings BookingStore, publisher Publisher, policy BookingPolicy) *BookingService {
	return &BookingService{
		bookings:  bookings,
		publisher: publisher,
		policy:    policy,
	}
}

// OnSettled registers fn to run for bookings that are paid at creation
func (s *BookingService) OnSettled(fn func(ctx context.Context, bookingID string)) {
	s.settled = fn
}

// Create reserves tickets and records the booking. Either both happen or neither does.
func (s *BookingService) Create(ctx context.Context, userID string, req *models.CreateBookingRequest) (*models.Booking, error) {
	if req.TicketCount < 1 {
		metrics.Reservations.WithLabelValues("invalid").Inc()
		return nil, apperrors.ErrInvalidTicketCount
	}

	booking := &models.Booking{
		UserID:        userID,
		EventID:       req.EventID,
		TicketCount:   req.TicketCount,
		Status:        models.BookingStatusPending,
		PaymentStatus: models.PaymentStatusPending,
	}
	if s.policy.ConfirmOnCreate {
		booking.Status = models.BookingStatusConfirmed
	}

	event, err := s.bookings.CreateWithReservation(ctx, booking)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrEventNotFound):
			metrics.Reservations.WithLabelValues("not_found").Inc()
			return nil, err
		case errors.Is(err, apperrors.ErrInsufficientTickets):
			metrics.Reservations.WithLabelValues("insufficient").Inc()
			logger.WithContext(ctx).Info("Reservation rejected",
				"event_id", req.EventID,
				"ticket_count", req.TicketCount)
			return nil, err
		case errors.Is(err, apperrors.ErrInvalidTicketCount):
			metrics.Reservations.WithLabelValues("invalid").Inc()
			return nil, err
		}
		metrics.Reservations.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	booking.Event = event
	metrics.Reservations.WithLabelValues("reserved").Inc()
	metrics.TicketsReserved.Add(float64(booking.TicketCount))

	logger.WithContext(ctx).Info("Booking created",
		"booking_id", booking.ID,
		"event_id", booking.EventID,
		"ticket_count", booking.TicketCount,
		"available_tickets", event.AvailableTickets)

	publish(ctx, s.publisher, models.EventBookingCreated, models.BookingCreatedEvent{
		BookingID:   booking.ID,
		EventID:     booking.EventID,
		UserID:      booking.UserID,
		TicketCount: booking.TicketCount,
		TotalPrice:  booking.TotalPrice,
		Timestamp:   time.Now(),
	})

	if booking.PaymentStatus == models.PaymentStatusPaid && s.settled != nil {
		s.settled(ctx, booking.ID)
	}

	return booking, nil
}

func (s *BookingService) ListForUser(ctx context.Context, userID string) ([]models.Booking, error) {
	bookings, err := s.bookings.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings: %w", err)
	}
	return bookings, nil
}
