package ratelimit

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"festival/internal/shared/constants"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RateLimitType string

const (
	RateLimitTypeDefault RateLimitType = "default"
	RateLimitTypePublic  RateLimitType = "public"
	RateLimitTypeAdmin   RateLimitType = "admin"
	RateLimitTypeHealth  RateLimitType = "health"
	RateLimitTypeReserve RateLimitType = "reserve"
)

type Config struct {
	Enabled         bool          `json:"enabled"`
	WindowDuration  time.Duration `json:"window_duration"`
	DefaultRequests int           `json:"default_requests"`
	PublicRequests  int           `json:"public_requests"`
	AdminRequests   int           `json:"admin_requests"`
	HealthRequests  int           `json:"health_requests"`
	ReserveRequests int           `json:"reserve_requests"`
	WhitelistedIPs  []string      `json:"whitelisted_ips"`
}

// Result represents rate limit check result
type Result struct {
	Allowed   bool  `json:"allowed"`
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	ResetTime int64 `json:"reset_time"`
}

// Limiter decides whether a client may issue one more request of a given type
type Limiter interface {
	IsAllowed(ctx context.Context, clientIP string, limitType RateLimitType) (*Result, error)
}

func (c *Config) limit(limitType RateLimitType) int {
	switch limitType {
	case RateLimitTypePublic:
		return c.PublicRequests
	case RateLimitTypeAdmin:
		return c.AdminRequests
	case RateLimitTypeHealth:
		return c.HealthRequests
	case RateLimitTypeReserve:
		return c.ReserveRequests
	default:
		return c.DefaultRequests
	}
}

func (c *Config) bypass(clientIP string, now time.Time, limitType RateLimitType) (*Result, bool) {
	if c.Enabled && !slices.Contains(c.WhitelistedIPs, clientIP) {
		return nil, false
	}
	limit := c.limit(limitType)
	return &Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit,
		ResetTime: now.Add(c.WindowDuration).Unix(),
	}, true
}

// RateLimiter is a sliding window limiter backed by a Redis sorted set
type RateLimiter struct {
	client *redis.Client
	config *Config
	now    func() time.Time
}

func NewRateLimiter(client *redis.Client, config *Config) *RateLimiter {
	return &RateLimiter{
		client: client,
		config: config,
		now:    time.Now,
	}
}

// IsAllowed records the request and reports whether it fits in the window
func (r *RateLimiter) IsAllowed(ctx context.Context, clientIP string, limitType RateLimitType) (*Result, error) {
	now := r.now()
	if res, ok := r.config.bypass(clientIP, now, limitType); ok {
		return res, nil
	}

	key := constants.BuildRateLimitKey(clientIP, string(limitType))
	return r.checkLimit(ctx, key, r.config.limit(limitType), now)
}

// Scores are microseconds; members are unique so bursts within one tick all count.
const luaSlidingWindow = `
local key = KEYS[1]
local window_start = ARGV[1]
local now = ARGV[2]
local limit = tonumber(ARGV[3])
local window_seconds = tonumber(ARGV[4])
local member = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

local current_count = redis.call('ZCARD', key)
if current_count >= limit then
	redis.call('EXPIRE', key, window_seconds)
	return {0, current_count}
end

redis.call('ZADD', key, now, member)
redis.call('EXPIRE', key, window_seconds)

return {1, current_count + 1}
`

func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int, now time.Time) (*Result, error) {
	windowStart := now.Add(-r.config.WindowDuration)
	windowSeconds := int(r.config.WindowDuration.Seconds())
	if windowSeconds < 1 {
		windowSeconds = 1
	}

	result, err := r.client.Eval(ctx, luaSlidingWindow, []string{key},
		windowStart.UnixMicro(),
		now.UnixMicro(),
		limit,
		windowSeconds,
		uuid.NewString(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("redis eval failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return nil, fmt.Errorf("unexpected redis response")
	}
	allowed, ok1 := values[0].(int64)
	count, ok2 := values[1].(int64)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("unexpected redis response types")
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return &Result{
		Allowed:   allowed == 1,
		Limit:     limit,
		Remaining: remaining,
		ResetTime: now.Add(r.config.WindowDuration).Unix(),
	}, nil
}

// MemoryRateLimiter is the single-process fallback used when Redis is not configured
type MemoryRateLimiter struct {
	config *Config
	now    func() time.Time

	mu        sync.Mutex
	hits      map[string][]time.Time
	lastSweep time.Time
}

func NewMemoryRateLimiter(config *Config) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		config: config,
		now:    time.Now,
		hits:   make(map[string][]time.Time),
	}
}

func (m *MemoryRateLimiter) IsAllowed(_ context.Context, clientIP string, limitType RateLimitType) (*Result, error) {
	now := m.now()
	if res, ok := m.config.bypass(clientIP, now, limitType); ok {
		return res, nil
	}

	limit := m.config.limit(limitType)
	key := constants.BuildRateLimitKey(clientIP, string(limitType))
	windowStart := now.Add(-m.config.WindowDuration)

	m.mu.Lock()
	defer m.mu.Unlock()

	if now.Sub(m.lastSweep) >= m.config.WindowDuration {
		m.sweepLocked(windowStart)
		m.lastSweep = now
	}

	hits := m.hits[key]
	kept := hits[:0]
	for _, ts := range hits {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}

	res := &Result{
		Limit:     limit,
		ResetTime: now.Add(m.config.WindowDuration).Unix(),
	}
	if len(kept) >= limit {
		if len(kept) == 0 {
			delete(m.hits, key)
		} else {
			m.hits[key] = kept
		}
		return res, nil
	}

	kept = append(kept, now)
	m.hits[key] = kept
	res.Allowed = true
	res.Remaining = limit - len(kept)
	return res, nil
}

// sweepLocked drops clients whose newest hit fell out of the window.
// Timestamps are appended in order, so the last one is the newest.
func (m *MemoryRateLimiter) sweepLocked(windowStart time.Time) {
	for key, hits := range m.hits {
		if len(hits) == 0 || !hits[len(hits)-1].After(windowStart) {
			delete(m.hits, key)
		}
	}
}
