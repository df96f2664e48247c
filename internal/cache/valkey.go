package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	Addr         string
	Password     string
	DB           int
	Enabled      bool
	EventsTTL    time.Duration
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

const (
	eventsGenerationKey = "events:list:gen"
	rateLimitPrefix     = "ratelimit:"
)

// ErrCacheMiss is returned when a key is not cached
var ErrCacheMiss = errors.New("cache miss")

type ValkeyClient struct {
	client    *redis.Client
	eventsTTL time.Duration
	now       func() time.Time
}

func NewValkeyClient(cfg Config) (*ValkeyClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		DialTimeout:  cfg.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	return NewValkeyClientFromRedis(rdb, cfg.EventsTTL), nil
}

// NewValkeyClientFromRedis wraps an existing client
func NewValkeyClientFromRedis(rdb *redis.Client, eventsTTL time.Duration) *ValkeyClient {
	return &ValkeyClient{
		client:    rdb,
		eventsTTL: eventsTTL,
		now:       time.Now,
	}
}

// Events list cache. Entries are keyed by a generation number; invalidation
// bumps the generation and old entries age out through their TTL.

func (v *ValkeyClient) eventsListKey(ctx context.Context, category string, page, limit int) (string, error) {
	gen, err := v.client.Get(ctx, eventsGenerationKey).Result()
	if errors.Is(err, redis.Nil) {
		gen = "0"
	} else if err != nil {
		return "", err
	}
	return fmt.Sprintf("events:list:v%s:%s:%d:%d", gen, category, page, limit), nil
}

// GetEventsListRaw returns the cached JSON page
func (v *ValkeyClient) GetEventsListRaw(ctx context.Context, category string, page, limit int) ([]byte, error) {
	key, err := v.eventsListKey(ctx, category, page, limit)
	if err != nil {
		return nil, fmt.Errorf("cache lookup error: %w", err)
	}

	data, err := v.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache lookup error: %w", err)
	}
	return data, nil
}

// SetEventsList caches a JSON page
func (v *ValkeyClient) SetEventsList(ctx context.Context, category string, page, limit int, value any) error {
	key, err := v.eventsListKey(ctx, category, page, limit)
	if err != nil {
		return fmt.Errorf("cache write error: %w", err)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal events list: %w", err)
	}

	return v.client.Set(ctx, key, data, v.eventsTTL).Err()
}

// InvalidateEvents drops every cached events page
func (v *ValkeyClient) InvalidateEvents(ctx context.Context) error {
	return v.client.Incr(ctx, eventsGenerationKey).Err()
}

// Allow counts a hit against key in the current fixed window and reports
// whether it is within limit, plus the time left in the window
func (v *ValkeyClient) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, time.Duration, error) {
	now := v.now()
	windowStart := now.Truncate(window)
	reset := windowStart.Add(window).Sub(now)
	windowKey := rateLimitPrefix + key + ":" + strconv.FormatInt(windowStart.Unix(), 10)

	count, err := v.client.Incr(ctx, windowKey).Result()
	if err != nil {
		return false, 0, reset, fmt.Errorf("rate limit counter error: %w", err)
	}
	if count == 1 {
		if err := v.client.Expire(ctx, windowKey, window).Err(); err != nil {
			return false, 0, reset, fmt.Errorf("rate limit expire error: %w", err)
		}
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return count <= int64(limit), remaining, reset, nil
}

func (v *ValkeyClient) Close() error {
	return v.client.Close()
}
