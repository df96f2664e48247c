package consumers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"eventix/internal/metrics"
	"eventix/internal/models"

	"github.com/nats-io/stan.go"
)

const sendTimeout = 30 * time.Second

// ConfirmationSender is implemented by notify.Mailer
type ConfirmationSender interface {
	SendBookingConfirmation(ctx context.Context, confirmed models.BookingConfirmedEvent) error
}

type Handlers struct {
	mailer ConfirmationSender
}

func NewHandlers(mailer ConfirmationSender) *Handlers {
	return &Handlers{mailer: mailer}
}

// HandleBookingConfirmed mails the ticket. The message is acknowledged even
// when sending fails: a redelivery must never produce a second mail.
func (h *Handlers) HandleBookingConfirmed(m *stan.Msg) {
	if err := h.ProcessBookingConfirmed(m.Data); err != nil {
		slog.Error("Failed to send booking confirmation", "error", err, "sequence", m.Sequence)
	}
	ack(m)
}

func (h *Handlers) ProcessBookingConfirmed(data []byte) error {
	var event models.BookingConfirmedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		metrics.Notifications.WithLabelValues("confirmation_mail", "invalid").Inc()
		return fmt.Errorf("failed to unmarshal booking confirmed event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := h.mailer.SendBookingConfirmation(ctx, event); err != nil {
		metrics.Notifications.WithLabelValues("confirmation_mail", "failed").Inc()
		return fmt.Errorf("booking %s: %w", event.BookingID, err)
	}

	metrics.Notifications.WithLabelValues("confirmation_mail", "sent").Inc()
	slog.Info("Booking confirmation sent", "booking_id", event.BookingID, "event_id", event.EventID)
	return nil
}

func (h *Handlers) HandleBookingCancelled(m *stan.Msg) {
	var event models.BookingCancelledEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal booking cancelled event", "error", err)
		ack(m)
		return
	}

	slog.Info("Booking cancelled",
		"booking_id", event.BookingID,
		"event_id", event.EventID,
		"tickets_released", event.TicketsReleased,
		"reason", event.Reason)

	ack(m)
}

func (h *Handlers) HandlePaymentFailed(m *stan.Msg) {
	var event models.PaymentFailedEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal payment failed event", "error", err)
		ack(m)
		return
	}

	slog.Warn("Payment failed for booking",
		"booking_id", event.BookingID,
		"provider_event_id", event.ProviderEventID)

	ack(m)
}

func ack(m *stan.Msg) {
	if err := m.Ack(); err != nil {
		slog.Error("Failed to ack message", "error", err, "subject", m.Subject)
	}
}
