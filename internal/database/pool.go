package database

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"eventix/internal/metrics"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"

	pingTimeout = 5 * time.Second
)

// Saturation above this share of MaxOpenConns marks the pool degraded.
const saturationThreshold = 0.9

type PoolStats struct {
	MaxOpen      int           `json:"max_open_connections"`
	Open         int           `json:"open_connections"`
	InUse        int           `json:"in_use"`
	Idle         int           `json:"idle"`
	WaitCount    int64         `json:"wait_count"`
	WaitDuration time.Duration `json:"wait_duration"`
}

func poolStats(s sql.DBStats) PoolStats {
	return PoolStats{
		MaxOpen:      s.MaxOpenConnections,
		Open:         s.OpenConnections,
		InUse:        s.InUse,
		Idle:         s.Idle,
		WaitCount:    s.WaitCount,
		WaitDuration: s.WaitDuration,
	}
}

func (p PoolStats) saturated() bool {
	return p.MaxOpen > 0 && float64(p.InUse) > float64(p.MaxOpen)*saturationThreshold
}

type HealthCheck struct {
	Status       string        `json:"status"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
	Stats        PoolStats     `json:"stats"`
	Timestamp    time.Time     `json:"timestamp"`
}

// Healthy reports whether the API should keep taking traffic. A degraded
// pool still serves requests.
func (h HealthCheck) Healthy() bool {
	return h.Status != StatusUnhealthy
}

func (db *DB) PoolStats() PoolStats {
	return poolStats(db.Stats())
}

// HealthCheck pings the database and classifies the pool
func (db *DB) HealthCheck(ctx context.Context) HealthCheck {
	start := time.Now()
	check := HealthCheck{Timestamp: start, Status: StatusHealthy}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	err := db.PingContext(pingCtx)
	check.ResponseTime = time.Since(start)
	check.Stats = db.PoolStats()

	switch {
	case err != nil:
		check.Status = StatusUnhealthy
		check.Error = err.Error()
		slog.Error("Database health check failed", "error", err)
	case check.Stats.saturated():
		check.Status = StatusDegraded
		slog.Warn("Database pool saturated", "in_use", check.Stats.InUse, "max_open", check.Stats.MaxOpen)
	}

	return check
}

// ExportPoolMetrics publishes pool usage as gauges read at scrape time
func (db *DB) ExportPoolMetrics() {
	metrics.RegisterPoolGauges(func() (inUse, idle, waiting float64) {
		s := db.Stats()
		return float64(s.InUse), float64(s.Idle), float64(s.WaitCount)
	})
}
