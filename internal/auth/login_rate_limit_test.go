package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoginRateLimiter_BlocksAfterMaxHits(t *testing.T) {
	clock := &fakeClock{current: testEpoch}
	limiter := NewLoginRateLimiter(2, time.Minute)
	limiter.now = clock.Now

	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/authenticate", nil)
		req.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1").Code)
	clock.Advance(10 * time.Second)
	assert.Equal(t, http.StatusOK, send("10.0.0.1").Code)

	blocked := send("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "50", blocked.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusTooManyRequests, send("198.51.100.1, 10.0.0.1").Code, "forged leading hops share the proxy-appended key")
	assert.Equal(t, http.StatusOK, send("10.0.0.2").Code, "limits are per client")

	clock.Advance(51 * time.Second)
	assert.Equal(t, http.StatusOK, send("10.0.0.1").Code)
}

func TestLoginRateLimiter_Defaults(t *testing.T) {
	limiter := NewLoginRateLimiter(0, 0)
	assert.Equal(t, 10, limiter.maxHits)
	assert.Equal(t, time.Minute, limiter.window)
}

func TestLoginRateLimiter_Cleanup(t *testing.T) {
	limiter := NewLoginRateLimiter(5, time.Minute)
	limiter.allow("a", testEpoch)
	limiter.allow("b", testEpoch.Add(30*time.Second))

	assert.Equal(t, 1, limiter.Cleanup(testEpoch.Add(time.Minute)))
	assert.Len(t, limiter.hitByIP, 1)
}
