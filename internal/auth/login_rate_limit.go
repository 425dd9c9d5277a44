package auth

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"todo-serverless/internal/observability"
)

const rateLimiterMaxTrackedIPs = 5000

// LoginRateLimiter is a sliding-window limit on login requests per client IP.
// State is per process.
type LoginRateLimiter struct {
	mu        sync.Mutex
	maxHits   int
	window    time.Duration
	hitByIP   map[string][]time.Time
	maxMemory int
	now       func() time.Time
}

func NewLoginRateLimiter(maxHits int, window time.Duration) *LoginRateLimiter {
	if maxHits <= 0 {
		maxHits = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return &LoginRateLimiter{
		maxHits:   maxHits,
		window:    window,
		hitByIP:   make(map[string][]time.Time),
		maxMemory: rateLimiterMaxTrackedIPs,
		now:       time.Now,
	}
}

func (l *LoginRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, retryAfter := l.allow(observability.ClientIP(r), l.now().UTC())
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			writeError(w, http.StatusTooManyRequests, "too many login attempts")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *LoginRateLimiter) allow(ip string, now time.Time) (bool, time.Duration) {
	threshold := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	hits := l.hitByIP[ip]
	recent := make([]time.Time, 0, len(hits)+1)
	for _, hit := range hits {
		if hit.After(threshold) {
			recent = append(recent, hit)
		}
	}

	if len(recent) >= l.maxHits {
		retryAfter := recent[0].Add(l.window).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		l.hitByIP[ip] = recent
		return false, retryAfter
	}

	l.hitByIP[ip] = append(recent, now)

	if len(l.hitByIP) > l.maxMemory {
		l.pruneLocked(threshold)
	}

	return true, 0
}

// Cleanup forgets clients with no hits inside the current window.
func (l *LoginRateLimiter) Cleanup(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pruneLocked(now.Add(-l.window))
}

func (l *LoginRateLimiter) pruneLocked(threshold time.Time) int {
	removed := 0
	for ip, hits := range l.hitByIP {
		if len(hits) == 0 || !hits[len(hits)-1].After(threshold) {
			delete(l.hitByIP, ip)
			removed++
		}
	}
	return removed
}
