package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Reservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventix_reservations_total",
			Help: "Ticket reservation attempts by result",
		},
		[]string{"result"},
	)

	TicketsReserved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventix_tickets_reserved_total",
			Help: "Tickets taken from inventory by successful reservations",
		},
	)

	TicketsReleased = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventix_tickets_released_total",
			Help: "Tickets returned to inventory by cancelled unpaid bookings",
		},
	)

	CheckoutSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventix_checkout_sessions_total",
			Help: "Checkout session creation attempts by result",
		},
		[]string{"result"},
	)

	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventix_payment_webhooks_total",
			Help: "Payment provider notifications by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventix_notifications_total",
			Help: "Notifications handed off or sent, by kind and result",
		},
		[]string{"kind", "result"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventix_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	RefundsRequired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventix_refunds_required_total",
			Help: "Payments received that need a manual refund, by reason",
		},
		[]string{"reason"},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventix_rate_limited_requests_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)

var registerPoolOnce sync.Once

// RegisterPoolGauges exposes database pool usage. Only the first call
// registers; later calls are ignored so tests can build several servers.
func RegisterPoolGauges(read func() (inUse, idle, waiting float64)) {
	registerPoolOnce.Do(func() {
		promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "eventix_db_connections_in_use",
			Help: "Database connections currently in use",
		}, func() float64 { inUse, _, _ := read(); return inUse })
		promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "eventix_db_connections_idle",
			Help: "Idle database connections",
		}, func() float64 { _, idle, _ := read(); return idle })
		promauto.NewCounterFunc(prometheus.CounterOpts{
			Name: "eventix_db_connection_waits_total",
			Help: "Connections waited for since start",
		}, func() float64 { _, _, waiting := read(); return waiting })
	})
}
