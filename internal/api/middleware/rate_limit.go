package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	apiContext "signalcrm/internal/api/context"
	"signalcrm/internal/platform/auth"
)

// RateLimiter is the in-process infrastructure limiter: a token bucket per
// (organization, class). It protects this instance from bursts and is a
// separate layer from the plan quotas; business throttling and infrastructure
// protection do not share a mechanism. Under horizontal scaling each instance
// limits independently.
type RateLimiter struct {
	store *sync.Map // map[string]*bucket
}

type bucket struct {
	mu         sync.Mutex
	tokens     int
	lastRefill time.Time
	lastAccess time.Time
}

func NewRateLimiter() *RateLimiter {
	rl := &RateLimiter{store: &sync.Map{}}
	go rl.cleanupLoop()
	return rl
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		rl.store.Range(func(key, value interface{}) bool {
			b := value.(*bucket)
			b.mu.Lock()
			if now.Sub(b.lastAccess) > 10*time.Minute {
				rl.store.Delete(key)
			}
			b.mu.Unlock()
			return true
		})
	}
}

// Allow takes one token from the keyed bucket, refilling at limit per
// minute.
func (rl *RateLimiter) Allow(key string, limit int) bool {
	now := time.Now()

	val, _ := rl.store.LoadOrStore(key, &bucket{
		tokens:     limit,
		lastRefill: now,
		lastAccess: now,
	})

	b := val.(*bucket)
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastAccess = now

	elapsed := now.Sub(b.lastRefill)
	refillRate := float64(limit) / 60.0
	refillTokens := int(elapsed.Seconds() * refillRate)

	if refillTokens > 0 {
		if b.tokens+refillTokens > limit {
			b.tokens = limit
		} else {
			b.tokens += refillTokens
		}
		b.lastRefill = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// Limit returns middleware enforcing perMinute requests for the class, keyed
// by organization when a principal is present, by remote address otherwise.
func (rl *RateLimiter) Limit(class string, perMinute int) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			var key string
			if principal, ok := r.Context().Value(apiContext.Principal).(*auth.Principal); ok {
				key = fmt.Sprintf("%s:%s", principal.OrganizationID, class)
			} else {
				key = fmt.Sprintf("%s:%s", r.RemoteAddr, class)
			}

			if !rl.Allow(key, perMinute) {
				w.Header().Set("Retry-After", "60")
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			next(w, r)
		}
	}
}
