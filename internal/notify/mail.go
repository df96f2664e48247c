package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"eventix/internal/models"

	"github.com/skip2/go-qrcode"
	"github.com/wneessen/go-mail"
)

const (
	qrAttachmentName = "ticket-qr.png"
	qrSize           = 256
)

type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// Mailer sends booking mail over SMTP
type Mailer struct {
	client *mail.Client
	from   string
}

func NewMailer(cfg MailConfig) (*Mailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}

	slog.Info("Mailer configured", "host", cfg.Host, "port", cfg.Port)
	return &Mailer{client: client, from: cfg.From}, nil
}

// SendBookingConfirmation mails the ticket with its QR code attached
func (m *Mailer) SendBookingConfirmation(ctx context.Context, confirmed models.BookingConfirmedEvent) error {
	msg, err := BuildConfirmation(m.from, confirmed)
	if err != nil {
		return err
	}
	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send confirmation: %w", err)
	}
	return nil
}

func (m *Mailer) SendEventReminder(ctx context.Context, rcpt models.ReminderRecipient) error {
	msg, err := BuildReminder(m.from, rcpt)
	if err != nil {
		return err
	}
	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send reminder: %w", err)
	}
	return nil
}

// BuildConfirmation renders the confirmation message without sending it
func BuildConfirmation(from string, confirmed models.BookingConfirmedEvent) (*mail.Msg, error) {
	body, err := render(confirmationTemplate, confirmationView{
		UserName:    confirmed.UserName,
		EventTitle:  confirmed.EventTitle,
		Date:        confirmed.EventDate.Format(dateLayout),
		Location:    confirmed.EventLocation,
		TicketCount: confirmed.TicketCount,
		TotalPrice:  confirmed.TotalPrice.StringFixed(2),
	})
	if err != nil {
		return nil, err
	}

	qr, err := TicketQR(confirmed.QRPayload)
	if err != nil {
		return nil, err
	}

	msg, err := newMessage(from, confirmed.UserEmail, ConfirmationSubject(confirmed.EventTitle), body)
	if err != nil {
		return nil, err
	}
	if err := msg.AttachReader(qrAttachmentName, bytes.NewReader(qr)); err != nil {
		return nil, fmt.Errorf("failed to attach QR code: %w", err)
	}
	return msg, nil
}

func BuildReminder(from string, rcpt models.ReminderRecipient) (*mail.Msg, error) {
	body, err := render(reminderTemplate, reminderView{
		UserName:   rcpt.UserName,
		EventTitle: rcpt.EventTitle,
		Date:       rcpt.EventDate.Format(dateLayout),
		Location:   rcpt.EventLocation,
	})
	if err != nil {
		return nil, err
	}
	return newMessage(from, rcpt.UserEmail, ReminderSubject(rcpt.EventTitle), body)
}

func ConfirmationSubject(title string) string {
	return "Booking Confirmation: " + title
}

func ReminderSubject(title string) string {
	return "Reminder: " + title + " is coming up!"
}

// TicketQR encodes payload as a PNG QR code
func TicketQR(payload string) ([]byte, error) {
	png, err := qrcode.Encode(payload, qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}
	return png, nil
}

func newMessage(from, to, subject, html string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextHTML, html)
	return msg, nil
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
