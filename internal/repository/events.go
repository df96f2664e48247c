package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"eventix/internal/database"
	apperrors "eventix/internal/errors"
	"eventix/internal/models"

	"github.com/lib/pq"
)

// EventRepository is the inventory ledger. Every change to available_tickets
// is a single conditional statement; nothing here reads the counter and
// writes it back.
type EventRepository struct {
	db *database.DB
}

const foreignKeyViolation = pq.ErrorCode("23503")

func NewEventRepository(db *database.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO events (title, description, location, category, date, price, image,
		                    capacity, available_tickets, organizer_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8, $9)
		RETURNING id, price, available_tickets, created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		event.Title,
		event.Description,
		event.Location,
		event.Category,
		event.Date,
		event.Price,
		event.Image,
		event.Capacity,
		event.OrganizerID,
	).Scan(&event.ID, &event.Price, &event.AvailableTickets, &event.CreatedAt, &event.UpdatedAt)
}

func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	if !validID(id) {
		return nil, nil
	}

	query := eventWithOrganizerFrom + ` WHERE e.id = $1`

	event, err := scanEventWithOrganizer(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return event, err
}

// List returns one page of events ordered by date and the total match count
func (r *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM events WHERE ($1::TEXT = '' OR category = $1)`
	if err := r.db.QueryRowContext(ctx, countQuery, filter.Category).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count events: %w", err)
	}

	query := eventWithOrganizerFrom + `
		WHERE ($1::TEXT = '' OR e.category = $1)
		ORDER BY e.date ASC, e.id
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, filter.Category, filter.Limit, (filter.Page-1)*filter.Limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	events := make([]models.Event, 0, filter.Limit)
	for rows.Next() {
		event, err := scanEventWithOrganizer(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, *event)
	}

	return events, total, rows.Err()
}

// GetByIDs returns the events with the given ids, preserving the order of ids
func (r *EventRepository) GetByIDs(ctx context.Context, ids []string) ([]models.Event, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return []models.Event{}, nil
	}

	query := eventWithOrganizerFrom + `
		WHERE e.id = ANY($1::uuid[])
		ORDER BY array_position($1::uuid[], e.id)`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(valid))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]models.Event, 0, len(valid))
	for rows.Next() {
		event, err := scanEventWithOrganizer(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}

	return events, rows.Err()
}

// Update applies a partial update. A capacity change moves available_tickets
// by the same delta, floored at zero, in the same statement.
func (r *EventRepository) Update(ctx context.Context, id string, req *models.UpdateEventRequest) (*models.Event, error) {
	if !validID(id) {
		return nil, nil
	}

	query := `
		UPDATE events SET
		    title = COALESCE($2, title),
		    description = COALESCE($3, description),
		    location = COALESCE($4, location),
		    category = COALESCE($5, category),
		    date = COALESCE($6, date),
		    price = COALESCE($7, price),
		    image = COALESCE($8, image),
		    available_tickets = CASE WHEN $9::INTEGER IS NULL THEN available_tickets
		                        ELSE GREATEST(0, available_tickets + ($9::INTEGER - capacity)) END,
		    capacity = COALESCE($9::INTEGER, capacity),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + eventColumns

	event, err := scanEvent(r.db.QueryRowContext(ctx, query,
		id,
		req.Title,
		req.Description,
		req.Location,
		req.Category,
		req.Date,
		req.Price,
		req.Image,
		req.Capacity,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return event, err
}

// AdjustCapacity sets a new capacity and recomputes available tickets as
// max(0, available + (newCapacity - oldCapacity))
func (r *EventRepository) AdjustCapacity(ctx context.Context, id string, newCapacity int) (*models.Event, error) {
	return r.Update(ctx, id, &models.UpdateEventRequest{Capacity: &newCapacity})
}

// Delete removes an event. Bookings keep the event alive: the delete fails
// with ErrEventHasBookings while any booking references it.
func (r *EventRepository) Delete(ctx context.Context, id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return false, apperrors.ErrEventHasBookings
		}
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Reserve atomically takes quantity tickets from the event
func (r *EventRepository) Reserve(ctx context.Context, id string, quantity int) (*models.Event, error) {
	return reserveTickets(ctx, r.db, id, quantity)
}

// reserveTickets is the only path that decrements available_tickets. The
// guard and the decrement are one statement, so concurrent callers serialize
// on the row lock and none of them can drive the counter below zero.
func reserveTickets(ctx context.Context, q querier, id string, quantity int) (*models.Event, error) {
	if !validID(id) {
		return nil, apperrors.ErrEventNotFound
	}
	if quantity < 1 {
		return nil, apperrors.ErrInvalidTicketCount
	}

	query := `
		UPDATE events
		SET available_tickets = available_tickets - $2, updated_at = NOW()
		WHERE id = $1 AND available_tickets >= $2
		RETURNING ` + eventColumns

	event, err := scanEvent(q.QueryRowContext(ctx, query, id, quantity))
	if err == nil {
		return event, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to reserve tickets: %w", err)
	}

	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM events WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check event: %w", err)
	}
	if !exists {
		return nil, apperrors.ErrEventNotFound
	}
	return nil, apperrors.ErrInsufficientTickets
}

// releaseTickets returns quantity tickets, never exceeding capacity
func releaseTickets(ctx context.Context, q querier, id string, quantity int) error {
	query := `
		UPDATE events
		SET available_tickets = LEAST(capacity, available_tickets + $2), updated_at = NOW()
		WHERE id = $1`

	_, err := q.ExecContext(ctx, query, id, quantity)
	return err
}
