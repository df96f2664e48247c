package database

import (
	"context"
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations(ctx context.Context) error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createExtensions,
		createUsersTable,
		createEventsTable,
		createBookingsTable,
		createPaymentWebhookEventsTable,
		createEventsDateIndex,
		createBookingsIndexes,
		alterBookingsSessionExpiry,
	}

	for i, migration := range migrations {
		slog.Info("Running migration", "step", i+1)
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

const createExtensions = `CREATE EXTENSION IF NOT EXISTS "pgcrypto";`

// users are provisioned by the auth service; the generator seeds the admin
const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name VARCHAR(255) NOT NULL,
    email VARCHAR(255) UNIQUE NOT NULL,
    role VARCHAR(20) NOT NULL DEFAULT 'user',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (role IN ('user', 'admin'))
);`

const createEventsTable = `
CREATE TABLE IF NOT EXISTS events (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    title VARCHAR(500) NOT NULL,
    description TEXT NOT NULL,
    location VARCHAR(500) NOT NULL,
    category VARCHAR(50) NOT NULL,
    date TIMESTAMPTZ NOT NULL,
    price NUMERIC(12,2) NOT NULL DEFAULT 0,
    image TEXT NOT NULL DEFAULT '',
    capacity INTEGER NOT NULL DEFAULT 100,
    available_tickets INTEGER NOT NULL,
    organizer_id UUID NOT NULL REFERENCES users(id),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (category IN ('Concert', 'Conference', 'Workshop', 'Meetup', 'Other')),
    CHECK (price >= 0),
    CHECK (capacity > 0),
    CHECK (available_tickets >= 0 AND available_tickets <= capacity)
);`

const createBookingsTable = `
CREATE TABLE IF NOT EXISTS bookings (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id UUID NOT NULL REFERENCES users(id),
    event_id UUID NOT NULL REFERENCES events(id) ON DELETE RESTRICT,
    ticket_count INTEGER NOT NULL,
    total_price NUMERIC(12,2) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    payment_status VARCHAR(20) NOT NULL DEFAULT 'pending',
    stripe_session_id VARCHAR(255),
    stripe_session_expires_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (ticket_count > 0),
    CHECK (status IN ('pending', 'confirmed', 'cancelled')),
    CHECK (payment_status IN ('pending', 'paid', 'failed', 'refunded'))
);`

const createPaymentWebhookEventsTable = `
CREATE TABLE IF NOT EXISTS payment_webhook_events (
    event_id VARCHAR(255) PRIMARY KEY,
    event_type VARCHAR(100) NOT NULL,
    booking_id UUID,
    session_id VARCHAR(255),
    received_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createEventsDateIndex = `
CREATE INDEX IF NOT EXISTS idx_events_date ON events(date);
CREATE INDEX IF NOT EXISTS idx_events_category_date ON events(category, date);`

const createBookingsIndexes = `
CREATE INDEX IF NOT EXISTS idx_bookings_user_created ON bookings(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_bookings_event_status ON bookings(event_id, status);
DROP INDEX IF EXISTS idx_bookings_unpaid;
CREATE INDEX IF NOT EXISTS idx_bookings_unsettled ON bookings(created_at)
    WHERE payment_status IN ('pending', 'failed') AND status <> 'cancelled';`

// databases created before session expiry was tracked
const alterBookingsSessionExpiry = `
ALTER TABLE bookings ADD COLUMN IF NOT EXISTS stripe_session_expires_at TIMESTAMPTZ;
ALTER TABLE payment_webhook_events ADD COLUMN IF NOT EXISTS session_id VARCHAR(255);`
