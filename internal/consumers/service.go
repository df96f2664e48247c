package consumers

import (
	"context"
	"fmt"
	"log/slog"

	"eventix/internal/config"
	"eventix/internal/database"
	"eventix/internal/external"
	"eventix/internal/messaging"
	"eventix/internal/models"
	"eventix/internal/notify"
	"eventix/internal/repository"
	"eventix/internal/service"

	"github.com/nats-io/stan.go"
)

const queueGroup = "notifications"

type ConsumerService struct {
	db       *database.DB
	nats     *messaging.NATSClient
	repos    *repository.Repositories
	mailer   *notify.Mailer
	payments *service.PaymentService
	handlers *Handlers
	subs     []stan.Subscription
}

func NewConsumerService(ctx context.Context, cfg *config.Config) (*ConsumerService, error) {
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	mailer, err := notify.NewMailer(cfg.Mail)
	if err != nil {
		natsClient.Close()
		db.Close()
		return nil, err
	}

	repos := repository.NewRepositories(db)
	payments := service.NewPaymentService(repos.Bookings, repos.Users, external.NewLazyGateway(cfg.Payment), natsClient, cfg.Booking)

	return &ConsumerService{
		db:       db,
		nats:     natsClient,
		repos:    repos,
		mailer:   mailer,
		payments: payments,
		handlers: NewHandlers(mailer),
	}, nil
}

func (cs *ConsumerService) Start() error {
	slog.Info("Starting NATS consumers...")

	subscriptions := []struct {
		subject string
		handler stan.MsgHandler
	}{
		{models.EventBookingConfirmed, cs.handlers.HandleBookingConfirmed},
		{models.EventBookingCancelled, cs.handlers.HandleBookingCancelled},
		{models.EventPaymentFailed, cs.handlers.HandlePaymentFailed},
	}

	for _, s := range subscriptions {
		sub, err := cs.nats.SubscribeQueue(s.subject, queueGroup, s.handler)
		if err != nil {
			return err
		}
		cs.subs = append(cs.subs, sub)
	}

	slog.Info("All consumers started successfully")
	return nil
}

func (cs *ConsumerService) Bookings() *repository.BookingRepository {
	return cs.repos.Bookings
}

func (cs *ConsumerService) Mailer() *notify.Mailer {
	return cs.mailer
}

func (cs *ConsumerService) Payments() *service.PaymentService {
	return cs.payments
}

func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down consumer service...")

	// Close rather than Unsubscribe so the durable subscriptions survive restarts
	for _, sub := range cs.subs {
		if err := sub.Close(); err != nil {
			slog.Error("Error closing subscription", "error", err)
		}
	}

	if cs.nats != nil {
		if err := cs.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}

	if cs.db != nil {
		if err := cs.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
