package security

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a request exceeds the rate limit.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitConfig holds configurable per-tenant rate limits.
type RateLimitConfig struct {
	RequestsPerMin int `yaml:"requests_per_min"`
	WritesPerMin   int `yaml:"writes_per_min"`
	SearchesPerMin int `yaml:"searches_per_min"`
}

// rateLimitConfigDefaults returns a config with sensible defaults.
func rateLimitConfigDefaults() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMin: 300,
		WritesPerMin:   100,
		SearchesPerMin: 200,
	}
}

// RateLimiter implements sliding window rate limiting keyed by tenant.
// Each bucket tracks timestamps of recent events within its window.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[bucketKey]*bucket
	config  RateLimitConfig
	now     func() time.Time
}

type bucketKey struct {
	tenantID string
	kind     string
}

type bucket struct {
	limit  int
	events []time.Time
}

// Rate limit kinds recognized by Allow.
const (
	KindRequest = "request"
	KindWrite   = "write"
	KindSearch  = "search"
)

// NewRateLimiter creates a rate limiter with the given config.
// Zero-value fields in cfg are replaced with defaults.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	defaults := rateLimitConfigDefaults()
	if cfg.RequestsPerMin <= 0 {
		cfg.RequestsPerMin = defaults.RequestsPerMin
	}
	if cfg.WritesPerMin <= 0 {
		cfg.WritesPerMin = defaults.WritesPerMin
	}
	if cfg.SearchesPerMin <= 0 {
		cfg.SearchesPerMin = defaults.SearchesPerMin
	}

	return &RateLimiter{
		config:  cfg,
		now:     time.Now,
		buckets: make(map[bucketKey]*bucket),
	}
}

// Allow checks whether an event of the given kind is allowed for the tenant.
// Returns nil if allowed, ErrRateLimited if the limit is exceeded.
// kind must be one of KindRequest, KindWrite, KindSearch.
func (rl *RateLimiter) Allow(tenantID, kind string) error {
	limit := rl.limitFor(kind)
	if limit <= 0 {
		// Unknown kind = no limit configured.
		return nil
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	key := bucketKey{tenantID: tenantID, kind: kind}
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limit: limit}
		rl.buckets[key] = b
	}

	now := rl.now()
	b.evict(now)

	if len(b.events) >= b.limit {
		return ErrRateLimited
	}

	b.events = append(b.events, now)
	return nil
}

// Forget drops all buckets for a tenant. Called when a tenant is removed.
func (rl *RateLimiter) Forget(tenantID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key := range rl.buckets {
		if key.tenantID == tenantID {
			delete(rl.buckets, key)
		}
	}
}

func (rl *RateLimiter) limitFor(kind string) int {
	switch kind {
	case KindRequest:
		return rl.config.RequestsPerMin
	case KindWrite:
		return rl.config.WritesPerMin
	case KindSearch:
		return rl.config.SearchesPerMin
	default:
		return 0
	}
}

// evict removes events outside the one-minute sliding window.
func (b *bucket) evict(now time.Time) {
	cutoff := now.Add(-time.Minute)
	// Events are chronologically ordered.
	i := 0
	for i < len(b.events) && b.events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		b.events = b.events[i:]
	}
}
