package service

import (
	"context"
	"time"

	"eventix/internal/external"
	"eventix/internal/logger"
	"eventix/internal/models"
)

// HoldPolicy decides what happens to reserved tickets of a booking that is never paid
type HoldPolicy string

const (
	// HoldPermanent keeps reserved tickets until an operator intervenes
	HoldPermanent HoldPolicy = "hold"
	// HoldRelease gives tickets back when checkout cannot be opened, when the
	// checkout session expires, and when an unpaid or failed payment outlives the hold
	HoldRelease HoldPolicy = "release"
)

type BookingPolicy struct {
	ConfirmOnCreate bool
	Hold            HoldPolicy
	HoldTimeout     time.Duration
}

// Releases reports whether unpaid bookings give their tickets back
func (p BookingPolicy) Releases() bool {
	return p.Hold == HoldRelease
}

// Actor is the authenticated caller of an operation
type Actor struct {
	UserID string
	Role   string
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

type EventStore interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id string) (*models.Event, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.Event, error)
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error)
	Update(ctx context.Context, id string, req *models.UpdateEventRequest) (*models.Event, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type BookingStore interface {
	CreateWithReservation(ctx context.Context, booking *models.Booking) (*models.Event, error)
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	ListByUser(ctx context.Context, userID string) ([]models.Booking, error)
	SetSessionID(ctx context.Context, id, sessionID string, expiresAt time.Time) error
	MarkPaid(ctx context.Context, delivery models.WebhookDelivery) (*models.Booking, models.TransitionResult, error)
	MarkPaymentFailed(ctx context.Context, delivery models.WebhookDelivery) (*models.Booking, models.TransitionResult, error)
	Release(ctx context.Context, bookingID string, session *string, delivery *models.WebhookDelivery) (*models.Booking, models.TransitionResult, error)
	ListExpiredUnpaid(ctx context.Context, createdBefore, sessionBefore time.Time, limit int) ([]models.Booking, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Publisher is implemented by messaging.NATSClient
type Publisher interface {
	Publish(subject string, data interface{}) error
}

type CheckoutGateway interface {
	CreateSession(ctx context.Context, req *external.CheckoutRequest) (*external.CheckoutSession, error)
	ExpireSession(ctx context.Context, sessionID string) error
	ParseWebhook(payload []byte, signature string) (*external.WebhookEvent, error)
}

// EventIndex is the full-text search side of events
type EventIndex interface {
	IndexEvent(ctx context.Context, event *models.Event) error
	DeleteEvent(ctx context.Context, id string) error
	SearchEventIDs(ctx context.Context, query string, limit int) ([]string, error)
}

// EventListCache stores rendered pages of the public event list
type EventListCache interface {
	GetEventsListRaw(ctx context.Context, category string, page, limit int) ([]byte, error)
	SetEventsList(ctx context.Context, category string, page, limit int, value any) error
	InvalidateEvents(ctx context.Context) error
}

// Stores groups the persistence dependencies of the services
type Stores struct {
	Events   EventStore
	Bookings BookingStore
	Users    UserStore
}

type Services struct {
	Events   *EventService
	Bookings *BookingService
	Payments *PaymentService
}

// Options carries the optional collaborators. A nil Index disables search,
// a nil Cache disables list caching.
type Options struct {
	Index EventIndex
	Cache EventListCache
}

func NewServices(stores Stores, publisher Publisher, gateway CheckoutGateway, policy BookingPolicy, opts Options) *Services {
	payments := NewPaymentService(stores.Bookings, stores.Users, gateway, publisher, policy)
	bookings := NewBookingService(stores.Bookings, publisher, policy)
	bookings.OnSettled(payments.AnnounceConfirmed)

	return &Services{
		Events:   NewEventService(stores.Events, opts.Index, opts.Cache),
		Bookings: bookings,
		Payments: payments,
	}
}

// publish hands an event to the broker. Delivery is best effort: the
// operation that produced the event has already committed.
func publish(ctx context.Context, publisher Publisher, subject string, data interface{}) bool {
	if err := publisher.Publish(subject, data); err != nil {
		logger.WithContext(ctx).Error("Failed to publish event",
			"error", err,
			"event_type", subject)
		return false
	}
	return true
}
