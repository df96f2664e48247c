package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "eventix/internal/errors"
	"eventix/internal/external"
	"eventix/internal/models"
)

// memStore keeps events and bookings in memory and applies the same
// conditional transitions as the Postgres repositories
type memStore struct {
	mu         sync.Mutex
	events     map[string]*models.Event
	bookings   map[string]*models.Booking
	users      map[string]*models.User
	deliveries map[string]bool
	seq        int
}

func newMemStore() *memStore {
	return &memStore{
		events:     map[string]*models.Event{},
		bookings:   map[string]*models.Booking{},
		users:      map[string]*models.User{},
		deliveries: map[string]bool{},
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memStore) addEvent(e models.Event) *models.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = m.nextID("event")
	}
	m.events[e.ID] = &e
	return &e
}

func (m *memStore) addUser(u models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = &u
}

func (m *memStore) event(id string) models.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.events[id]
}

func (m *memStore) booking(id string) models.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.bookings[id]
}

func (m *memStore) sessionID(id string) string {
	b := m.booking(id)
	return b.SessionID()
}

// EventStore

func (m *memStore) Create(_ context.Context, event *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	event.ID = m.nextID("event")
	event.AvailableTickets = event.Capacity
	copied := *event
	m.events[event.ID] = &copied
	return nil
}

type eventStore struct{ *memStore }

func (s eventStore) GetByID(_ context.Context, id string) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, nil
	}
	copied := *e
	return &copied, nil
}

func (s eventStore) GetByIDs(_ context.Context, ids []string) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Event{}
	for _, id := range ids {
		if e, ok := s.events[id]; ok {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s eventStore) List(_ context.Context, filter models.EventFilter) ([]models.Event, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []models.Event
	for _, e := range s.events {
		if filter.Category == "" || e.Category == filter.Category {
			all = append(all, *e)
		}
	}
	start := (filter.Page - 1) * filter.Limit
	if start > len(all) {
		start = len(all)
	}
	end := start + filter.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (s eventStore) Update(_ context.Context, id string, req *models.UpdateEventRequest) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, nil
	}
	if req.Title != nil {
		e.Title = *req.Title
	}
	if req.Price != nil {
		e.Price = *req.Price
	}
	if req.Capacity != nil {
		e.AvailableTickets = max(0, e.AvailableTickets+(*req.Capacity-e.Capacity))
		e.Capacity = *req.Capacity
	}
	copied := *e
	return &copied, nil
}

func (s eventStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return false, nil
	}
	for _, b := range s.bookings {
		if b.EventID == id {
			return false, apperrors.ErrEventHasBookings
		}
	}
	delete(s.events, id)
	return true, nil
}

// BookingStore

func (m *memStore) CreateWithReservation(_ context.Context, booking *models.Booking) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[booking.EventID]
	if !ok {
		return nil, apperrors.ErrEventNotFound
	}
	if booking.TicketCount < 1 {
		return nil, apperrors.ErrInvalidTicketCount
	}
	if e.AvailableTickets < booking.TicketCount {
		return nil, apperrors.ErrInsufficientTickets
	}
	e.AvailableTickets -= booking.TicketCount

	booking.ID = m.nextID("booking")
	booking.TotalPrice = e.PriceFor(booking.TicketCount)
	if booking.TotalPrice.IsZero() {
		booking.Status = models.BookingStatusConfirmed
		booking.PaymentStatus = models.PaymentStatusPaid
	}
	booking.CreatedAt = time.Now()
	stored := *booking
	m.bookings[booking.ID] = &stored

	copied := *e
	return &copied, nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, nil
	}
	copied := *b
	if e, ok := m.events[b.EventID]; ok {
		event := *e
		copied.Event = &event
	}
	return &copied, nil
}

func (m *memStore) ListByUser(_ context.Context, userID string) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Booking{}
	for _, b := range m.bookings {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memStore) SetSessionID(_ context.Context, id, sessionID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return apperrors.ErrBookingNotFound
	}
	b.StripeSessionID = &sessionID
	b.SessionExpires = nil
	if !expiresAt.IsZero() {
		b.SessionExpires = &expiresAt
	}
	return nil
}

func (m *memStore) transition(delivery *models.WebhookDelivery, bookingID string, cond func(*models.Booking) bool, apply func(*models.Booking)) (*models.Booking, models.TransitionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if delivery != nil {
		if m.deliveries[delivery.EventID] {
			return nil, models.TransitionDuplicate, nil
		}
		m.deliveries[delivery.EventID] = true
	}

	b, ok := m.bookings[bookingID]
	if !ok {
		return nil, models.TransitionNotFound, nil
	}
	if !cond(b) {
		return nil, models.TransitionUnchanged, nil
	}
	apply(b)
	copied := *b
	return &copied, models.TransitionApplied, nil
}

func (m *memStore) MarkPaid(_ context.Context, delivery models.WebhookDelivery) (*models.Booking, models.TransitionResult, error) {
	return m.transition(&delivery, delivery.BookingID,
		func(b *models.Booking) bool { return b.PaymentStatus != models.PaymentStatusPaid },
		func(b *models.Booking) {
			b.PaymentStatus = models.PaymentStatusPaid
			if b.Status != models.BookingStatusCancelled {
				b.Status = models.BookingStatusConfirmed
			}
			if delivery.SessionID != "" {
				session := delivery.SessionID
				b.StripeSessionID = &session
			}
		})
}

func (m *memStore) MarkPaymentFailed(_ context.Context, delivery models.WebhookDelivery) (*models.Booking, models.TransitionResult, error) {
	return m.transition(&delivery, delivery.BookingID,
		func(b *models.Booking) bool { return b.PaymentStatus == models.PaymentStatusPending },
		func(b *models.Booking) { b.PaymentStatus = models.PaymentStatusFailed })
}

func (m *memStore) Release(_ context.Context, bookingID string, session *string, delivery *models.WebhookDelivery) (*models.Booking, models.TransitionResult, error) {
	return m.transition(delivery, bookingID,
		func(b *models.Booking) bool {
			if session != nil && b.SessionID() != *session {
				return false
			}
			return b.Status != models.BookingStatusCancelled && b.PaymentStatus != models.PaymentStatusPaid
		},
		func(b *models.Booking) {
			b.Status = models.BookingStatusCancelled
			if b.PaymentStatus == models.PaymentStatusPending {
				b.PaymentStatus = models.PaymentStatusFailed
			}
			e := m.events[b.EventID]
			e.AvailableTickets = min(e.Capacity, e.AvailableTickets+b.TicketCount)
		})
}

func (m *memStore) ListExpiredUnpaid(_ context.Context, createdBefore, sessionBefore time.Time, limit int) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Booking
	for _, b := range m.bookings {
		if len(out) == limit {
			break
		}
		unsettled := b.PaymentStatus == models.PaymentStatusPending || b.PaymentStatus == models.PaymentStatusFailed
		if !unsettled || b.Status == models.BookingStatusCancelled {
			continue
		}
		expired := b.CreatedAt.Before(createdBefore)
		if b.SessionExpires != nil {
			expired = b.SessionExpires.Before(sessionBefore)
		}
		if expired {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memStore) backdate(id string, age time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[id].CreatedAt = time.Now().Add(-age)
}

// expireSession moves the stored session expiry into the past
func (m *memStore) expireSession(id string, ago time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	expired := time.Now().Add(-ago)
	m.bookings[id].SessionExpires = &expired
}

type userStore struct{ *memStore }

func (s userStore) GetByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

type published struct {
	subject string
	data    interface{}
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []published
}

func (p *recordingPublisher) Publish(subject string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, published{subject: subject, data: data})
	return nil
}

func (p *recordingPublisher) count(subject string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, m := range p.messages {
		if m.subject == subject {
			n++
		}
	}
	return n
}

// stubGateway numbers sessions per booking and returns a fixed webhook event
// for any payload signed "valid"
type stubGateway struct {
	sessionErr error
	expireErr  error
	requests   []*external.CheckoutRequest
	expired    []string
	event      *external.WebhookEvent
}

func (g *stubGateway) CreateSession(_ context.Context, req *external.CheckoutRequest) (*external.CheckoutSession, error) {
	g.requests = append(g.requests, req)
	if g.sessionErr != nil {
		return nil, g.sessionErr
	}

	lifetime := 24 * time.Hour
	if req.ExpiresIn > 0 {
		lifetime = max(req.ExpiresIn, 30*time.Minute)
	}
	id := fmt.Sprintf("cs_test_%s_%d", req.BookingID, len(g.requests))
	return &external.CheckoutSession{
		ID:        id,
		URL:       "https://checkout.example/" + id,
		ExpiresAt: time.Now().Add(lifetime),
	}, nil
}

func (g *stubGateway) ExpireSession(_ context.Context, sessionID string) error {
	if g.expireErr != nil {
		return g.expireErr
	}
	g.expired = append(g.expired, sessionID)
	return nil
}

func (g *stubGateway) ParseWebhook(_ []byte, signature string) (*external.WebhookEvent, error) {
	if signature != "valid" {
		return nil, apperrors.ErrInvalidSignature
	}
	return g.event, nil
}
