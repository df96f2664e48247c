package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eventix/cmd/consumers/jobs"
	"eventix/internal/config"
	"eventix/internal/consumers"
	"eventix/internal/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	logger.Get().Info("Starting consumers service...")

	cfg.NATS.ClientID = "eventix-consumers"

	location, err := time.LoadLocation(cfg.Reminders.Timezone)
	if err != nil {
		logger.Fatal("Invalid reminder timezone", "timezone", cfg.Reminders.Timezone, "error", err)
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), time.Minute)
	consumerService, err := consumers.NewConsumerService(startCtx, cfg)
	startCancel()
	if err != nil {
		logger.Fatal("Failed to create consumer service", "error", err)
	}

	if err := consumerService.Start(); err != nil {
		logger.Fatal("Failed to start consumers", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reminders := jobs.NewEventReminderJob(consumerService.Bookings(), consumerService.Mailer(), cfg.Reminders.Schedule, location)
	if err := reminders.Start(ctx); err != nil {
		logger.Fatal("Failed to schedule reminders", "error", err)
	}

	var expiration *jobs.BookingExpirationJob
	if cfg.Booking.Releases() {
		expiration = jobs.NewBookingExpirationJob(consumerService.Payments())
		expiration.Start(ctx)
	} else {
		logger.Get().Info("Hold policy keeps unpaid bookings, expiration job not started", "policy", cfg.Booking.Hold)
	}

	logger.Get().Info("Consumers service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Get().Info("Shutting down consumers service...")

	cancel()
	reminders.Stop()
	if expiration != nil {
		expiration.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := consumerService.Shutdown(shutdownCtx); err != nil {
		logger.Get().Error("Error during shutdown", "error", err)
	}

	logger.Get().Info("Consumers service stopped")
}
