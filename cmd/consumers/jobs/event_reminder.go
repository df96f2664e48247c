package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"eventix/internal/metrics"
	"eventix/internal/models"

	"github.com/robfig/cron/v3"
)

// ReminderSource lists confirmed bookings of events dated in [from, to)
type ReminderSource interface {
	ListForEventsBetween(ctx context.Context, from, to time.Time) ([]models.ReminderRecipient, error)
}

type ReminderSender interface {
	SendEventReminder(ctx context.Context, rcpt models.ReminderRecipient) error
}

// EventReminderJob mails every attendee of tomorrow's events once a day
type EventReminderJob struct {
	source   ReminderSource
	sender   ReminderSender
	schedule string
	location *time.Location
	cron     *cron.Cron
	now      func() time.Time
}

func NewEventReminderJob(source ReminderSource, sender ReminderSender, schedule string, location *time.Location) *EventReminderJob {
	return &EventReminderJob{
		source:   source,
		sender:   sender,
		schedule: schedule,
		location: location,
		cron:     cron.New(cron.WithLocation(location)),
		now:      time.Now,
	}
}

func (j *EventReminderJob) Start(ctx context.Context) error {
	_, err := j.cron.AddFunc(j.schedule, func() {
		sent, err := j.Run(ctx)
		if err != nil {
			slog.Error("Event reminder sweep failed", "error", err)
			return
		}
		slog.Info("Event reminder sweep finished", "sent", sent)
	})
	if err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", j.schedule, err)
	}

	j.cron.Start()
	slog.Info("Event reminder job scheduled", "schedule", j.schedule, "timezone", j.location.String())
	return nil
}

func (j *EventReminderJob) Stop() {
	<-j.cron.Stop().Done()
}

// Run sends reminders for events happening tomorrow and returns how many went out.
// A failed recipient is logged and skipped.
func (j *EventReminderJob) Run(ctx context.Context) (int, error) {
	from, to := TomorrowWindow(j.now(), j.location)

	recipients, err := j.source.ListForEventsBetween(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to list reminder recipients: %w", err)
	}

	sent := 0
	for _, rcpt := range recipients {
		if err := j.sender.SendEventReminder(ctx, rcpt); err != nil {
			metrics.Notifications.WithLabelValues("reminder_mail", "failed").Inc()
			slog.Error("Failed to send event reminder",
				"error", err,
				"booking_id", rcpt.BookingID,
				"event_id", rcpt.EventID)
			continue
		}
		metrics.Notifications.WithLabelValues("reminder_mail", "sent").Inc()
		sent++
	}

	return sent, nil
}

// TomorrowWindow returns [start of tomorrow, start of the day after) in loc
func TomorrowWindow(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	from := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
	to := time.Date(local.Year(), local.Month(), local.Day()+2, 0, 0, 0, 0, loc)
	return from, to
}
