package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"eventix/internal/cache"
	"eventix/internal/database"
	"eventix/internal/external"
	"eventix/internal/messaging"
	"eventix/internal/notify"
	"eventix/internal/service"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration
	ClientURL      string
	JWTSecret      string

	RateLimit     RateLimitConfig
	Reminders     ReminderConfig
	Database      database.Config
	NATS          messaging.Config
	Valkey        cache.Config
	Elasticsearch ElasticsearchConfig
	Payment       external.StripeConfig
	Booking       service.BookingPolicy
	Mail          notify.MailConfig
}

// RateLimitConfig limits requests per client IP within a fixed window
type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Window   time.Duration
}

// ReminderConfig schedules the "event is tomorrow" sweep
type ReminderConfig struct {
	Schedule string
	Timezone string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "5000"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,
		ClientURL:      strings.TrimRight(getEnv("CLIENT_URL", "http://localhost:5173"), "/"),
		JWTSecret:      getEnv("JWT_SECRET", ""),

		RateLimit: RateLimitConfig{
			Enabled:  getEnvBool("RATE_LIMIT_ENABLED", true),
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 100),
			Window:   time.Duration(getEnvInt("RATE_LIMIT_WINDOW_MIN", 15)) * time.Minute,
		},

		Reminders: ReminderConfig{
			Schedule: getEnv("REMINDER_SCHEDULE", "0 9 * * *"),
			Timezone: getEnv("REMINDER_TIMEZONE", "Local"),
		},

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "eventix"),
			Password:           getEnv("DB_PASSWORD", "eventix"),
			DBName:             getEnv("DB_NAME", "eventix"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},

		NATS: messaging.Config{
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "eventix"),
			ClientID:  getEnv("NATS_CLIENT_ID", "eventix-api"),
		},

		Valkey: cache.Config{
			Addr:         getEnv("VALKEY_ADDR", "localhost:6379"),
			Password:     getEnv("VALKEY_PASSWORD", ""),
			DB:           getEnvInt("VALKEY_DB", 0),
			EventsTTL:    getEnvDuration("EVENTS_CACHE_TTL", 30*time.Second),
			Enabled:      getEnvBool("VALKEY_ENABLED", true),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  2 * time.Second,
			WriteTimeout: 2 * time.Second,
		},

		Elasticsearch: LoadElasticsearchConfig(),

		Payment: external.StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			Currency:      getEnv("STRIPE_CURRENCY", "usd"),
			MinimumCharge: int64(getEnvInt("STRIPE_MINIMUM_CHARGE", 50)),
			ClientURL:     strings.TrimRight(getEnv("CLIENT_URL", "http://localhost:5173"), "/"),
		},

		Booking: service.BookingPolicy{
			ConfirmOnCreate: getEnvBool("BOOKING_CONFIRM_ON_CREATE", true),
			Hold:            service.HoldPolicy(getEnv("INVENTORY_HOLD_POLICY", string(service.HoldPermanent))),
			HoldTimeout:     time.Duration(getEnvInt("PAYMENT_HOLD_TIMEOUT_MIN", 30)) * time.Minute,
		},

		Mail: notify.MailConfig{
			Host:     getEnv("SMTP_HOST", "localhost"),
			Port:     getEnvInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("MAIL_FROM", "Event Booking System <no-reply@example.com>"),
			Timeout:  getEnvDuration("SMTP_TIMEOUT", 15*time.Second),
		},
	}
}

// Validate reports settings that keep a feature from working. The API still
// starts with payment credentials missing; checkout requests fail with 500.
func (c *Config) Validate() []error {
	var problems []error

	if c.JWTSecret == "" {
		problems = append(problems, fmt.Errorf("JWT_SECRET is required"))
	}
	if c.Payment.SecretKey == "" {
		problems = append(problems, fmt.Errorf("STRIPE_SECRET_KEY is not set: checkout sessions are disabled"))
	}
	if c.Payment.WebhookSecret == "" {
		problems = append(problems, fmt.Errorf("STRIPE_WEBHOOK_SECRET is not set: payment webhooks are rejected"))
	}
	if c.Booking.Hold != service.HoldPermanent && c.Booking.Hold != service.HoldRelease {
		problems = append(problems, fmt.Errorf("INVENTORY_HOLD_POLICY must be %q or %q, got %q", service.HoldPermanent, service.HoldRelease, c.Booking.Hold))
	}
	if c.Booking.Hold == service.HoldRelease && c.Booking.HoldTimeout < 30*time.Minute {
		problems = append(problems, fmt.Errorf("PAYMENT_HOLD_TIMEOUT_MIN must be at least 30 with the release policy"))
	}
	if c.RateLimit.Enabled && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		problems = append(problems, fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW_MIN must be positive"))
	}
	if _, err := time.LoadLocation(c.Reminders.Timezone); err != nil {
		problems = append(problems, fmt.Errorf("REMINDER_TIMEZONE: %w", err))
	}

	return problems
}

// getEnv returns the environment variable or the default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
