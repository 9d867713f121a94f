package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	ActionSendMessage  = "send_message"
	ActionStartSession = "start_session"
	ActionTyping       = "typing"
	ActionHTTPRequest  = "http_request"
)

// Limit describes a bucket: Burst tokens, refilled Refill at a time every Interval.
type Limit struct {
	Burst    int
	Refill   int
	Interval time.Duration
}

// DefaultLimits are the per-user budgets for chat actions.
var DefaultLimits = map[string]Limit{
	ActionSendMessage:  {Burst: 10, Refill: 1, Interval: 6 * time.Second},
	ActionStartSession: {Burst: 5, Refill: 1, Interval: 12 * time.Minute},
	ActionTyping:       {Burst: 30, Refill: 1, Interval: 2 * time.Second},
	ActionHTTPRequest:  {Burst: 120, Refill: 60, Interval: time.Minute},
}

var fallbackLimit = Limit{Burst: 20, Refill: 1, Interval: 3 * time.Second}

type tokenBucket struct {
	mu         sync.Mutex
	limit      Limit
	tokens     int
	lastRefill time.Time
	lastUsed   time.Time
}

func newTokenBucket(limit Limit, now time.Time) *tokenBucket {
	return &tokenBucket{limit: limit, tokens: limit.Burst, lastRefill: now, lastUsed: now}
}

func (b *tokenBucket) take(now time.Time) (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastUsed = now
	if periods := int(now.Sub(b.lastRefill) / b.limit.Interval); periods > 0 {
		b.tokens += periods * b.limit.Refill
		if b.tokens > b.limit.Burst {
			b.tokens = b.limit.Burst
		}
		b.lastRefill = b.lastRefill.Add(time.Duration(periods) * b.limit.Interval)
	}

	if b.tokens > 0 {
		b.tokens--
		return true, 0
	}
	return false, b.lastRefill.Add(b.limit.Interval).Sub(now)
}

// RateLimiter keeps one token bucket per user and action.
type RateLimiter struct {
	mu      sync.Mutex
	limits  map[string]Limit
	buckets map[string]*tokenBucket
	now     func() time.Time
}

// NewRateLimiter uses DefaultLimits when limits is nil.
func NewRateLimiter(limits map[string]Limit) *RateLimiter {
	if limits == nil {
		limits = DefaultLimits
	}
	return &RateLimiter{
		limits:  limits,
		buckets: make(map[string]*tokenBucket),
		now:     time.Now,
	}
}

// Allow consumes a token for userID's action. When refused it returns how
// long until the next token.
func (rl *RateLimiter) Allow(userID, action string) (bool, time.Duration) {
	now := rl.now()
	key := userID + ":" + action

	rl.mu.Lock()
	bucket, ok := rl.buckets[key]
	if !ok {
		limit, known := rl.limits[action]
		if !known {
			limit = fallbackLimit
		}
		bucket = newTokenBucket(limit, now)
		rl.buckets[key] = bucket
	}
	rl.mu.Unlock()

	return bucket.take(now)
}

// Remaining reports the tokens left for userID's action without consuming one.
func (rl *RateLimiter) Remaining(userID, action string) int {
	rl.mu.Lock()
	bucket, ok := rl.buckets[userID+":"+action]
	rl.mu.Unlock()
	if !ok {
		if limit, known := rl.limits[action]; known {
			return limit.Burst
		}
		return fallbackLimit.Burst
	}

	bucket.mu.Lock()
	defer bucket.mu.Unlock()
	return bucket.tokens
}

// Cleanup drops buckets idle for longer than maxIdle.
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) int {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for key, bucket := range rl.buckets {
		bucket.mu.Lock()
		idle := now.Sub(bucket.lastUsed)
		bucket.mu.Unlock()
		if idle > maxIdle {
			delete(rl.buckets, key)
			removed++
		}
	}
	return removed
}

// StartCleanupRoutine prunes idle buckets every 30 minutes until ctx ends.
func (rl *RateLimiter) StartCleanupRoutine(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.Cleanup(time.Hour)
			}
		}
	}()
}
