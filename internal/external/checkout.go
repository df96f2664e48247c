package external

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	apperrors "eventix/internal/errors"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Checkout event types the reconciliation handler acts on
const (
	EventCheckoutCompleted          = "checkout.session.completed"
	EventCheckoutAsyncPaymentOK     = "checkout.session.async_payment_succeeded"
	EventCheckoutAsyncPaymentFailed = "checkout.session.async_payment_failed"
	EventCheckoutExpired            = "checkout.session.expired"
)

// Session payment statuses
const (
	SessionPaid              = "paid"
	SessionUnpaid            = "unpaid"
	SessionNoPaymentRequired = "no_payment_required"
)

// MetadataBookingID is the metadata key linking a checkout session to its booking
const MetadataBookingID = "bookingId"

// minSessionLifetime is the shortest expiry Stripe accepts for a checkout session
const minSessionLifetime = 30 * time.Minute

// defaultSessionLifetime applies when a session is created without an expiry
const defaultSessionLifetime = 24 * time.Hour

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	ClientURL     string
	// MinimumCharge is the smallest total, in minor units, the provider
	// accepts for the currency
	MinimumCharge int64
}

// CheckoutRequest describes a hosted checkout for one booking
type CheckoutRequest struct {
	BookingID   string
	EventID     string
	Name        string
	Description string
	Image       string
	UnitPrice   decimal.Decimal
	Quantity    int
	ExpiresIn   time.Duration // zero keeps the provider default
}

// CheckoutSession is the provider's handle for a hosted checkout
type CheckoutSession struct {
	ID        string
	URL       string
	ExpiresAt time.Time
}

// WebhookEvent is a verified provider notification reduced to what reconciliation needs
type WebhookEvent struct {
	ID            string
	Type          string
	SessionID     string
	BookingID     string
	PaymentStatus string
}

// StripeGateway creates checkout sessions and verifies webhooks with one API client
type StripeGateway struct {
	api    *client.API
	config StripeConfig
}

// NewStripeGateway validates the configuration and builds the API client
func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: STRIPE_SECRET_KEY is empty", apperrors.ErrPaymentNotConfigured)
	}
	if cfg.Currency == "" {
		cfg.Currency = string(stripe.CurrencyUSD)
	}

	return &StripeGateway{
		api:    client.New(cfg.SecretKey, nil),
		config: cfg,
	}, nil
}

func (g *StripeGateway) CreateSession(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error) {
	if total := MinorUnits(req.UnitPrice) * int64(req.Quantity); total < g.config.MinimumCharge {
		return nil, fmt.Errorf("%w: %d %s", apperrors.ErrAmountBelowMinimum, total, g.config.Currency)
	}

	now := time.Now()
	params := BuildSessionParams(g.config, req, now)
	params.Context = ctx

	session, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrPaymentProvider, err)
	}

	return &CheckoutSession{
		ID:        session.ID,
		URL:       session.URL,
		ExpiresAt: sessionExpiry(session.ExpiresAt, params, now),
	}, nil
}

// ExpireSession closes an open checkout session. An already expired session
// is fine; a completed one returns ErrCheckoutCompleted.
func (g *StripeGateway) ExpireSession(ctx context.Context, sessionID string) error {
	getParams := &stripe.CheckoutSessionParams{}
	getParams.Context = ctx

	session, err := g.api.CheckoutSessions.Get(sessionID, getParams)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrPaymentProvider, err)
	}

	switch session.Status {
	case stripe.CheckoutSessionStatusExpired:
		return nil
	case stripe.CheckoutSessionStatusComplete:
		return fmt.Errorf("%w: %s", apperrors.ErrCheckoutCompleted, sessionID)
	}

	expireParams := &stripe.CheckoutSessionExpireParams{}
	expireParams.Context = ctx
	if _, err := g.api.CheckoutSessions.Expire(sessionID, expireParams); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrPaymentProvider, err)
	}
	return nil
}

// sessionExpiry prefers the provider's answer, then the requested expiry,
// then the provider default
func sessionExpiry(unix int64, params *stripe.CheckoutSessionParams, now time.Time) time.Time {
	switch {
	case unix > 0:
		return time.Unix(unix, 0)
	case params.ExpiresAt != nil:
		return time.Unix(*params.ExpiresAt, 0)
	}
	return now.Add(defaultSessionLifetime)
}

func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	return parseWebhook(payload, signature, g.config.WebhookSecret)
}

// BuildSessionParams maps a checkout request onto Stripe session parameters
func BuildSessionParams(cfg StripeConfig, req *CheckoutRequest, now time.Time) *stripe.CheckoutSessionParams {
	productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(req.Name),
	}
	if req.Description != "" {
		productData.Description = stripe.String(req.Description)
	}
	if req.Image != "" {
		productData.Images = stripe.StringSlice([]string{req.Image})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripe.String(cfg.Currency),
					ProductData: productData,
					UnitAmount:  stripe.Int64(MinorUnits(req.UnitPrice)),
				},
				Quantity: stripe.Int64(int64(req.Quantity)),
			},
		},
		SuccessURL:        stripe.String(cfg.ClientURL + "/booking-success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(cfg.ClientURL + "/events/" + url.PathEscape(req.EventID) + "?canceled=true"),
		ClientReferenceID: stripe.String(req.BookingID),
	}
	params.AddMetadata(MetadataBookingID, req.BookingID)

	if req.ExpiresIn > 0 {
		lifetime := req.ExpiresIn
		if lifetime < minSessionLifetime {
			lifetime = minSessionLifetime
		}
		params.ExpiresAt = stripe.Int64(now.Add(lifetime).Unix())
	}

	return params
}

// MinorUnits converts a price to cents, rounding half away from zero
func MinorUnits(price decimal.Decimal) int64 {
	return price.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

type sessionObject struct {
	ID                string            `json:"id"`
	PaymentStatus     string            `json:"payment_status"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

func parseWebhook(payload []byte, signature, secret string) (*WebhookEvent, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: STRIPE_WEBHOOK_SECRET is empty", apperrors.ErrPaymentNotConfigured)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidSignature, err)
	}

	result := &WebhookEvent{
		ID:   event.ID,
		Type: string(event.Type),
	}

	if event.Data == nil || len(event.Data.Raw) == 0 {
		return result, nil
	}

	var session sessionObject
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		// Signed but not a session object; reconciliation ignores it
		slog.Warn("Webhook payload object is not a checkout session", "event_id", event.ID, "type", event.Type, "error", err)
		return result, nil
	}

	result.SessionID = session.ID
	result.PaymentStatus = session.PaymentStatus
	result.BookingID = session.Metadata[MetadataBookingID]
	if result.BookingID == "" {
		result.BookingID = session.ClientReferenceID
	}

	return result, nil
}

// LazyGateway defers building the Stripe client to first use so that a
// process with missing credentials still serves everything except payments
type LazyGateway struct {
	config  StripeConfig
	once    sync.Once
	gateway *StripeGateway
	err     error
}

func NewLazyGateway(cfg StripeConfig) *LazyGateway {
	return &LazyGateway{config: cfg}
}

func (l *LazyGateway) get() (*StripeGateway, error) {
	l.once.Do(func() {
		l.gateway, l.err = NewStripeGateway(l.config)
		if l.err != nil {
			slog.Error("Payment gateway is not configured", "error", l.err)
		}
	})
	return l.gateway, l.err
}

func (l *LazyGateway) CreateSession(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error) {
	gw, err := l.get()
	if err != nil {
		return nil, err
	}
	return gw.CreateSession(ctx, req)
}

func (l *LazyGateway) ExpireSession(ctx context.Context, sessionID string) error {
	gw, err := l.get()
	if err != nil {
		return err
	}
	return gw.ExpireSession(ctx, sessionID)
}

// ParseWebhook only needs the webhook secret, not the API key
func (l *LazyGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	return parseWebhook(payload, signature, l.config.WebhookSecret)
}
