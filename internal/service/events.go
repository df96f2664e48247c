package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"eventix/internal/cache"
	apperrors "eventix/internal/errors"
	"eventix/internal/logger"
	"eventix/internal/models"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	maxSearchHits   = 50
)

type EventService struct {
	events EventStore
	index  EventIndex
	cache  EventListCache
}

func NewEventService(events EventStore, index EventIndex, cache EventListCache) *EventService {
	return &EventService{
		events: events,
		index:  index,
		cache:  cache,
	}
}

// Create adds an event owned by the calling admin. Available tickets start at capacity.
func (s *EventService) Create(ctx context.Context, actor Actor, req *models.CreateEventRequest) (*models.Event, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.ErrForbidden
	}
	if req.Price.IsNegative() || req.Capacity < 0 {
		return nil, apperrors.ErrInvalidEvent
	}

	capacity := req.Capacity
	if capacity == 0 {
		capacity = models.DefaultEventCapacity
	}

	event := &models.Event{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Location:    req.Location,
		Category:    req.Category,
		Date:        req.Date,
		Price:       req.Price,
		Image:       req.Image,
		Capacity:    capacity,
		OrganizerID: actor.UserID,
	}

	if err := s.events.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	s.changed(ctx, event, false)
	return event, nil
}

func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return nil, apperrors.ErrEventNotFound
	}
	return event, nil
}

// NormalizeFilter applies paging defaults and bounds
func NormalizeFilter(filter models.EventFilter) models.EventFilter {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = DefaultPageSize
	}
	if filter.Limit > MaxPageSize {
		filter.Limit = MaxPageSize
	}
	return filter
}

// List returns a page of events ordered by date. Pages are served from the
// cache when one is configured; cache errors fall through to the database.
func (s *EventService) List(ctx context.Context, filter models.EventFilter) (*models.ListEventsResponse, error) {
	filter = NormalizeFilter(filter)

	if cached := s.cachedPage(ctx, filter); cached != nil {
		return cached, nil
	}

	events, total, err := s.events.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	resp := &models.ListEventsResponse{
		Events: events,
		Page:   filter.Page,
		Pages:  (total + filter.Limit - 1) / filter.Limit,
		Total:  total,
	}

	if s.cache != nil {
		if err := s.cache.SetEventsList(ctx, filter.Category, filter.Page, filter.Limit, resp); err != nil {
			logger.WithContext(ctx).Warn("Failed to cache events page", "error", err)
		}
	}

	return resp, nil
}

func (s *EventService) cachedPage(ctx context.Context, filter models.EventFilter) *models.ListEventsResponse {
	if s.cache == nil {
		return nil
	}

	raw, err := s.cache.GetEventsListRaw(ctx, filter.Category, filter.Page, filter.Limit)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.WithContext(ctx).Warn("Events cache unavailable", "error", err)
		}
		return nil
	}

	var resp models.ListEventsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		logger.WithContext(ctx).Warn("Discarding unreadable cached events page", "error", err)
		return nil
	}
	return &resp
}

// Search matches events by text. Hits come from the index; the events
// themselves are read from the database so ticket counts are current.
func (s *EventService) Search(ctx context.Context, query string) ([]models.Event, error) {
	if s.index == nil {
		return nil, apperrors.ErrSearchDisabled
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return []models.Event{}, nil
	}

	ids, err := s.index.SearchEventIDs(ctx, query, maxSearchHits)
	if err != nil {
		return nil, fmt.Errorf("failed to search events: %w", err)
	}
	if len(ids) == 0 {
		return []models.Event{}, nil
	}

	events, err := s.events.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	return events, nil
}

// Update changes an event. Only its organizer or an admin may do so.
// A new capacity shifts available tickets by the same amount, never below zero.
func (s *EventService) Update(ctx context.Context, actor Actor, id string, req *models.UpdateEventRequest) (*models.Event, error) {
	if req.Price != nil && req.Price.IsNegative() {
		return nil, apperrors.ErrInvalidEvent
	}
	if req.Capacity != nil && *req.Capacity < 1 {
		return nil, apperrors.ErrInvalidEvent
	}

	if _, err := s.authorize(ctx, actor, id); err != nil {
		return nil, err
	}

	event, err := s.events.Update(ctx, id, req)
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}
	if event == nil {
		return nil, apperrors.ErrEventNotFound
	}

	s.changed(ctx, event, false)
	return event, nil
}

func (s *EventService) Delete(ctx context.Context, actor Actor, id string) error {
	event, err := s.authorize(ctx, actor, id)
	if err != nil {
		return err
	}

	deleted, err := s.events.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if !deleted {
		return apperrors.ErrEventNotFound
	}

	s.changed(ctx, event, true)
	return nil
}

func (s *EventService) authorize(ctx context.Context, actor Actor, id string) (*models.Event, error) {
	event, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.OrganizerID != actor.UserID && !actor.IsAdmin() {
		return nil, apperrors.ErrUnauthorized
	}
	return event, nil
}

// changed keeps the search index and list cache in step with the database.
// Failures are logged; the database write already succeeded.
func (s *EventService) changed(ctx context.Context, event *models.Event, deleted bool) {
	log := logger.WithContext(ctx).With("event_id", event.ID)

	if s.cache != nil {
		if err := s.cache.InvalidateEvents(ctx); err != nil {
			log.Warn("Failed to invalidate events cache", "error", err)
		}
	}

	if s.index == nil {
		return
	}
	if deleted {
		err := s.index.DeleteEvent(ctx, event.ID)
		if err != nil {
			log.Error("Failed to remove event from search index", "error", err)
		}
		return
	}
	if err := s.index.IndexEvent(ctx, event); err != nil {
		log.Error("Failed to index event", "error", err)
	}
}
