// Package ratelimit throttles login attempts per key with token buckets.
//
// Lockout only sees attempts against existing accounts. The limiter runs
// before the account lookup, so guessing against unknown emails is throttled
// as well.
package ratelimit

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/alimurtadho/authcore/pkg/clock"
)

// Policy allows Attempts per Window for each key. A zero Attempts disables
// limiting.
type Policy struct {
	Attempts int
	Window   time.Duration
}

// DefaultPolicy allows 5 attempts per 15 minutes.
func DefaultPolicy() Policy {
	return Policy{Attempts: 5, Window: 15 * time.Minute}
}

// Validate checks the policy values.
func (p Policy) Validate() error {
	if p.Attempts < 0 {
		return fmt.Errorf("rate limit attempts must not be negative, got %d", p.Attempts)
	}
	if p.Attempts > 0 && p.Window <= 0 {
		return fmt.Errorf("rate limit window must be positive when attempts are set, got %s", p.Window)
	}
	return nil
}

// Enabled reports whether the policy limits anything.
func (p Policy) Enabled() bool {
	return p.Attempts > 0
}

// interval is the time it takes to regain one attempt.
func (p Policy) interval() time.Duration {
	return p.Window / time.Duration(p.Attempts)
}

// TokenBucket implements the token bucket algorithm for rate limiting
type TokenBucket struct {
	capacity   int           // Maximum number of tokens
	tokens     float64       // Current number of tokens
	interval   time.Duration // Time to add one token
	lastRefill time.Time     // Last time tokens were refilled
	mu         sync.Mutex    // Mutex for thread safety
}

// NewTokenBucket creates a full bucket.
// capacity: Maximum number of requests allowed in a burst
// interval: Time to regain one request
func NewTokenBucket(capacity int, interval time.Duration, now time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     float64(capacity),
		interval:   interval,
		lastRefill: now,
	}
}

func (tb *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.lastRefill)
	if elapsed <= 0 {
		return
	}
	tb.tokens = math.Min(float64(tb.capacity), tb.tokens+float64(elapsed)/float64(tb.interval))
	tb.lastRefill = now
}

// Allow takes one token if available.
func (tb *TokenBucket) Allow(now time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(now)
	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true
	}
	return false
}

// RetryAfter is the time until the next token is available.
func (tb *TokenBucket) RetryAfter(now time.Time) time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(now)
	if tb.tokens >= 1.0 {
		return 0
	}
	return time.Duration(math.Ceil((1.0 - tb.tokens) * float64(tb.interval)))
}

// Tokens returns the number of available tokens at now.
func (tb *TokenBucket) Tokens(now time.Time) float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill(now)
	return tb.tokens
}

// Reset refills the bucket to capacity.
func (tb *TokenBucket) Reset(now time.Time) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.tokens = float64(tb.capacity)
	tb.lastRefill = now
}

func (tb *TokenBucket) idleSince() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.lastRefill
}

// RateLimiter manages one token bucket per key.
type RateLimiter struct {
	policy  Policy
	clock   clock.Clock
	buckets map[string]*TokenBucket
	// lastSweep is when idle buckets were last dropped.
	lastSweep time.Time
	mu        sync.Mutex
}

// NewRateLimiter creates a limiter after validating policy. Buckets idle for a
// full window are dropped on later calls.
func NewRateLimiter(policy Policy, c clock.Clock) (*RateLimiter, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if c == nil {
		c = clock.Real{}
	}
	return &RateLimiter{
		policy:    policy,
		clock:     c,
		buckets:   make(map[string]*TokenBucket),
		lastSweep: c.Now(),
	}, nil
}

// Allow checks if an attempt for key should proceed. When it should not, the
// returned duration is how long until the next attempt is allowed.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	if !rl.policy.Enabled() {
		return true, 0
	}
	now := rl.clock.Now()
	bucket := rl.bucket(key, now)
	if bucket.Allow(now) {
		return true, 0
	}
	return false, bucket.RetryAfter(now)
}

// Reset refills the bucket for key.
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	bucket, exists := rl.buckets[key]
	rl.mu.Unlock()

	if exists {
		bucket.Reset(rl.clock.Now())
	}
}

// Len returns the number of tracked keys.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

func (rl *RateLimiter) bucket(key string, now time.Time) *TokenBucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) >= rl.policy.Window {
		rl.sweep(now)
	}

	bucket, exists := rl.buckets[key]
	if !exists {
		bucket = NewTokenBucket(rl.policy.Attempts, rl.policy.interval(), now)
		rl.buckets[key] = bucket
	}
	return bucket
}

// sweep drops buckets unused for a full window; they would be full anyway.
func (rl *RateLimiter) sweep(now time.Time) {
	for key, bucket := range rl.buckets {
		if now.Sub(bucket.idleSince()) >= rl.policy.Window {
			delete(rl.buckets, key)
		}
	}
	rl.lastSweep = now
}
