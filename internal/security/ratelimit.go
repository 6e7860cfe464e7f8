package security

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a request exceeds the rate limit.
var ErrRateLimited = errors.New("rate limit exceeded")

// Rate limit bucket kinds.
const (
	KindToolCall = "tool_call"
	KindScript   = "script"
	KindAuth     = "auth"
)

// RateLimitConfig holds configurable rate limits.
type RateLimitConfig struct {
	// ToolCallsPerMin bounds every tool dispatch.
	ToolCallsPerMin int `yaml:"tool_calls_per_min"`

	// ScriptsPerMin additionally bounds subprocess script runs.
	ScriptsPerMin int `yaml:"scripts_per_min"`

	// AuthPerMin bounds authentication attempts on the gateway.
	AuthPerMin int `yaml:"auth_per_min"`
}

// RateLimitConfigDefaults returns a config with sensible defaults.
func RateLimitConfigDefaults() RateLimitConfig {
	return RateLimitConfig{
		ToolCallsPerMin: 120,
		ScriptsPerMin:   30,
		AuthPerMin:      20,
	}
}

// RateLimiter implements sliding window rate limiting.
// Each bucket tracks timestamps of recent events within its window.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	config  RateLimitConfig
	now     func() time.Time
}

type bucket struct {
	window time.Duration
	limit  int
	events []time.Time
}

// NewRateLimiter creates a rate limiter with the given config.
// Zero-value fields in cfg are replaced with defaults.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	defaults := RateLimitConfigDefaults()
	if cfg.ToolCallsPerMin <= 0 {
		cfg.ToolCallsPerMin = defaults.ToolCallsPerMin
	}
	if cfg.ScriptsPerMin <= 0 {
		cfg.ScriptsPerMin = defaults.ScriptsPerMin
	}
	if cfg.AuthPerMin <= 0 {
		cfg.AuthPerMin = defaults.AuthPerMin
	}

	return &RateLimiter{
		config: cfg,
		now:    time.Now,
		buckets: map[string]*bucket{
			KindToolCall: {window: time.Minute, limit: cfg.ToolCallsPerMin},
			KindScript:   {window: time.Minute, limit: cfg.ScriptsPerMin},
			KindAuth:     {window: time.Minute, limit: cfg.AuthPerMin},
		},
	}
}

// Allow checks whether an event of the given kind is allowed.
// Returns nil if allowed, ErrRateLimited if the limit is exceeded.
// Unknown kinds are never limited.
func (rl *RateLimiter) Allow(kind string) error {
	if rl == nil {
		return nil
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[kind]
	if !ok {
		return nil
	}

	now := rl.now()
	b.evict(now)

	if len(b.events) >= b.limit {
		return ErrRateLimited
	}

	b.events = append(b.events, now)
	return nil
}

// Config returns the effective configuration.
func (rl *RateLimiter) Config() RateLimitConfig {
	return rl.config
}

// evict removes events outside the sliding window.
func (b *bucket) evict(now time.Time) {
	cutoff := now.Add(-b.window)
	// Events are chronologically ordered.
	i := 0
	for i < len(b.events) && b.events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		b.events = b.events[i:]
	}
}
