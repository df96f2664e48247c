package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "eventix/internal/errors"
	"eventix/internal/external"
	"eventix/internal/logger"
	"eventix/internal/metrics"
	"eventix/internal/models"
)

// OutcomeIgnored marks a notification that was acknowledged without touching any booking
const OutcomeIgnored models.TransitionResult = "ignored"

// Reasons recorded on booking.cancelled
const (
	ReasonCheckoutFailed  = "checkout_failed"
	ReasonCheckoutExpired = "checkout_expired"
	ReasonHoldTimeout     = "hold_timeout"
)

type PaymentService struct {
	bookings  BookingStore
	users     UserStore
	gateway   CheckoutGateway
	publisher Publisher
	policy    BookingPolicy
	now       func() time.Time
}

func NewPaymentService(bookings BookingStore, users UserStore, gateway CheckoutGateway, publisher Publisher, policy BookingPolicy) *PaymentService {
	return &PaymentService{
		bookings:  bookings,
		users:     users,
		gateway:   gateway,
		publisher: publisher,
		policy:    policy,
		now:       time.Now,
	}
}

// CreateCheckoutSession opens a hosted checkout for a booking owned by userID
// and stores the session on the booking. A previous session still open is
// expired first, so at most one session per booking can take payment.
func (s *PaymentService) CreateCheckoutSession(ctx context.Context, userID, bookingID string) (*external.CheckoutSession, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if booking == nil {
		return nil, apperrors.ErrBookingNotFound
	}
	if booking.UserID != userID {
		return nil, apperrors.ErrUnauthorized
	}
	if !booking.Payable() {
		return nil, apperrors.ErrBookingNotPayable
	}

	log := logger.WithContext(ctx).With("booking_id", booking.ID)

	if previous := booking.SessionID(); previous != "" {
		err := s.gateway.ExpireSession(ctx, previous)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrCheckoutCompleted) && booking.PaymentStatus == models.PaymentStatusFailed:
			// the completed session's async payment failed; a new one may be opened
		case errors.Is(err, apperrors.ErrCheckoutCompleted):
			log.Info("Previous checkout session completed, payment in flight", "session_id", previous)
			return nil, apperrors.ErrBookingNotPayable
		default:
			log.Error("Failed to expire previous checkout session", "error", err, "session_id", previous)
			return nil, err
		}
	}

	req := &external.CheckoutRequest{
		BookingID: booking.ID,
		EventID:   booking.EventID,
		Name:      "Event ticket",
		UnitPrice: booking.UnitPrice(),
		Quantity:  booking.TicketCount,
	}
	if booking.Event != nil {
		req.Name = booking.Event.Title
		req.Description = booking.Event.Description
		req.Image = booking.Event.Image
	}
	if s.policy.Releases() {
		req.ExpiresIn = s.policy.HoldTimeout
	}

	session, err := s.gateway.CreateSession(ctx, req)
	if err != nil {
		metrics.CheckoutSessions.WithLabelValues("failed").Inc()
		log.Error("Failed to create checkout session", "error", err)

		if s.policy.Releases() && errors.Is(err, apperrors.ErrPaymentProvider) {
			if _, relErr := s.release(ctx, booking.ID, nil, nil, ReasonCheckoutFailed); relErr != nil {
				log.Error("Failed to release tickets after checkout failure", "error", relErr)
			}
		}
		return nil, err
	}

	if err := s.bookings.SetSessionID(ctx, booking.ID, session.ID, session.ExpiresAt); err != nil {
		// Reconciliation goes through the booking id in the session metadata, so this is not fatal
		log.Warn("Failed to store checkout session id", "error", err, "session_id", session.ID)
	}

	metrics.CheckoutSessions.WithLabelValues("created").Inc()
	log.Info("Checkout session created", "session_id", session.ID, "expires_at", session.ExpiresAt)

	return session, nil
}

// HandleWebhook verifies and applies one payment provider notification.
// A verification failure mutates nothing. Every verified notification is
// acknowledged unless the store fails, in which case the provider retries.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) (models.TransitionResult, error) {
	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("unverified", "rejected").Inc()
		logger.WithContext(ctx).Warn("Rejected payment webhook", "error", err)
		return "", err
	}

	log := logger.WithContext(ctx).With(
		"provider_event_id", event.ID,
		"event_type", event.Type,
		"booking_id", event.BookingID)

	delivery := models.WebhookDelivery{
		EventID:   event.ID,
		EventType: event.Type,
		BookingID: event.BookingID,
		SessionID: event.SessionID,
	}

	var (
		booking *models.Booking
		result  models.TransitionResult
	)

	typeLabel := event.Type
	switch event.Type {
	case external.EventCheckoutCompleted, external.EventCheckoutAsyncPaymentOK:
		if event.PaymentStatus != external.SessionPaid && event.PaymentStatus != external.SessionNoPaymentRequired {
			log.Info("Checkout completed, payment still pending", "payment_status", event.PaymentStatus)
			result = OutcomeIgnored
			break
		}
		booking, result, err = s.bookings.MarkPaid(ctx, delivery)
		if err != nil {
			break
		}
		switch result {
		case models.TransitionApplied:
			s.onPaid(ctx, log, booking)
		case models.TransitionUnchanged:
			s.checkSecondPayment(ctx, log, event)
		}

	case external.EventCheckoutAsyncPaymentFailed:
		booking, result, err = s.bookings.MarkPaymentFailed(ctx, delivery)
		if err == nil && result == models.TransitionApplied {
			publish(ctx, s.publisher, models.EventPaymentFailed, models.PaymentFailedEvent{
				BookingID:       booking.ID,
				ProviderEventID: event.ID,
				Timestamp:       s.now(),
			})
		}

	case external.EventCheckoutExpired:
		if !s.policy.Releases() {
			log.Info("Checkout session expired, tickets stay held")
			result = OutcomeIgnored
			break
		}
		// only the booking's current session may release it
		session := event.SessionID
		booking, result, err = s.bookings.Release(ctx, event.BookingID, &session, &delivery)
		if err == nil && result == models.TransitionApplied {
			s.onReleased(ctx, booking, ReasonCheckoutExpired)
		}

	default:
		typeLabel = "other"
		result = OutcomeIgnored
	}

	if err != nil {
		metrics.WebhookEvents.WithLabelValues(typeLabel, "error").Inc()
		log.Error("Failed to apply payment webhook", "error", err)
		return "", fmt.Errorf("failed to reconcile payment: %w", err)
	}

	metrics.WebhookEvents.WithLabelValues(typeLabel, string(result)).Inc()

	switch result {
	case models.TransitionApplied:
		log.Info("Booking payment state updated",
			"status", booking.Status,
			"payment_status", booking.PaymentStatus)
	case models.TransitionDuplicate:
		log.Info("Duplicate payment webhook ignored")
	case models.TransitionUnchanged:
		log.Info("Payment webhook did not change booking")
	case models.TransitionNotFound:
		log.Warn("Payment webhook for unknown booking")
	}

	return result, nil
}

// onPaid announces a confirmed booking. It runs once per applied transition
// and never retries, so the ticket mail goes out at most once.
func (s *PaymentService) onPaid(ctx context.Context, log *slog.Logger, paid *models.Booking) {
	if paid.Status == models.BookingStatusCancelled {
		metrics.RefundsRequired.WithLabelValues("cancelled_booking").Inc()
		log.Warn("Payment received for cancelled booking, refund required",
			"total_price", paid.TotalPrice.String())
		return
	}
	s.announce(ctx, log, paid.ID)
}

// checkSecondPayment flags a paid notification for a booking that another
// checkout session already paid
func (s *PaymentService) checkSecondPayment(ctx context.Context, log *slog.Logger, event *external.WebhookEvent) {
	booking, err := s.bookings.GetByID(ctx, event.BookingID)
	if err != nil || booking == nil {
		log.Error("Failed to load booking after repeated payment", "error", err)
		return
	}
	if booking.PaymentStatus != models.PaymentStatusPaid || event.SessionID == "" || booking.SessionID() == event.SessionID {
		return
	}

	metrics.RefundsRequired.WithLabelValues("duplicate_payment").Inc()
	log.Warn("Booking paid twice, refund required",
		"session_id", event.SessionID,
		"paid_session_id", booking.SessionID(),
		"total_price", booking.TotalPrice.String())
}

// AnnounceConfirmed publishes booking.confirmed for a booking settled
// without a checkout
func (s *PaymentService) AnnounceConfirmed(ctx context.Context, bookingID string) {
	s.announce(ctx, logger.WithContext(ctx).With("booking_id", bookingID), bookingID)
}

func (s *PaymentService) announce(ctx context.Context, log *slog.Logger, bookingID string) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil || booking == nil || booking.Event == nil {
		metrics.Notifications.WithLabelValues("confirmation", "skipped").Inc()
		log.Error("Failed to load booking for confirmation", "error", err)
		return
	}

	user, err := s.users.GetByID(ctx, booking.UserID)
	if err != nil || user == nil {
		metrics.Notifications.WithLabelValues("confirmation", "skipped").Inc()
		log.Error("Failed to load user for confirmation", "error", err, "user_id", booking.UserID)
		return
	}

	msg := models.BookingConfirmedEvent{
		BookingID:     booking.ID,
		EventID:       booking.EventID,
		EventTitle:    booking.Event.Title,
		EventDate:     booking.Event.Date,
		EventLocation: booking.Event.Location,
		TicketCount:   booking.TicketCount,
		TotalPrice:    booking.TotalPrice,
		UserName:      user.Name,
		UserEmail:     user.Email,
		QRPayload:     models.TicketQRPayload(booking.ID, booking.Event.Title, user.Name),
		Timestamp:     s.now(),
	}

	if publish(ctx, s.publisher, models.EventBookingConfirmed, msg) {
		metrics.Notifications.WithLabelValues("confirmation", "published").Inc()
	} else {
		metrics.Notifications.WithLabelValues("confirmation", "failed").Inc()
	}
}

// ReleaseBooking cancels an unpaid booking and returns its tickets.
// It is a no-op for bookings that are paid or already cancelled.
func (s *PaymentService) ReleaseBooking(ctx context.Context, bookingID, reason string) (models.TransitionResult, error) {
	return s.release(ctx, bookingID, nil, nil, reason)
}

func (s *PaymentService) release(ctx context.Context, bookingID string, session *string, delivery *models.WebhookDelivery, reason string) (models.TransitionResult, error) {
	booking, result, err := s.bookings.Release(ctx, bookingID, session, delivery)
	if err != nil {
		return "", fmt.Errorf("failed to release booking: %w", err)
	}
	if result == models.TransitionApplied {
		s.onReleased(ctx, booking, reason)
	}
	return result, nil
}

func (s *PaymentService) onReleased(ctx context.Context, booking *models.Booking, reason string) {
	metrics.TicketsReleased.Add(float64(booking.TicketCount))

	logger.WithContext(ctx).Info("Booking cancelled, tickets released",
		"booking_id", booking.ID,
		"event_id", booking.EventID,
		"tickets_released", booking.TicketCount,
		"reason", reason)

	publish(ctx, s.publisher, models.EventBookingCancelled, models.BookingCancelledEvent{
		BookingID:       booking.ID,
		EventID:         booking.EventID,
		UserID:          booking.UserID,
		TicketsReleased: booking.TicketCount,
		Reason:          reason,
		Timestamp:       s.now(),
	})
}

// releaseGrace pads every hold so a payment finishing at the last moment can
// still be reconciled
const releaseGrace = 5 * time.Minute

// ExpireUnpaid releases bookings whose payment is still pending or has failed
// once their hold ran out. A booking with a checkout session is held until
// that session expired; one without is held for HoldTimeout from creation.
func (s *PaymentService) ExpireUnpaid(ctx context.Context, batchSize int) (int, error) {
	if !s.policy.Releases() {
		return 0, nil
	}

	now := s.now()
	createdBefore := now.Add(-(s.policy.HoldTimeout + releaseGrace))
	sessionBefore := now.Add(-releaseGrace)

	expired, err := s.bookings.ListExpiredUnpaid(ctx, createdBefore, sessionBefore, batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list unpaid bookings: %w", err)
	}

	released := 0
	for _, booking := range expired {
		// a session opened after the listing keeps the booking
		session := booking.SessionID()
		result, err := s.release(ctx, booking.ID, &session, nil, ReasonHoldTimeout)
		if err != nil {
			logger.WithContext(ctx).Error("Failed to release expired booking",
				"error", err,
				"booking_id", booking.ID)
			continue
		}
		if result == models.TransitionApplied {
			released++
		}
	}

	return released, nil
}
