package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/linesmerrill/event-checkin-api/models"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(1, 2, time.Minute)

	assert.True(t, rl.Allow("alice"))
	assert.True(t, rl.Allow("alice"))
	assert.False(t, rl.Allow("alice"), "burst exhausted")
	assert.True(t, rl.Allow("bob"), "buckets are per caller")
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0, 0, time.Minute)
	for i := 0; i < 100; i++ {
		assert.True(t, rl.Allow("alice"))
	}
}

func TestRateLimiterForgetsIdleCallers(t *testing.T) {
	rl := NewRateLimiter(1, 1, time.Millisecond)
	assert.True(t, rl.Allow("alice"))
	time.Sleep(5 * time.Millisecond)
	rl.Allow("bob")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.visitors, "alice")
	assert.Contains(t, rl.visitors, "bob")
}

func TestRateLimiterLimit(t *testing.T) {
	rl := NewRateLimiter(1, 1, time.Minute)
	h := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(userID, remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/checkin", nil)
		req.RemoteAddr = remote
		if userID != "" {
			req = req.WithContext(WithIdentity(req.Context(), models.Identity{UserID: userID}))
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusNoContent, send("alice", "10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, send("alice", "10.0.0.2:1234"))
	assert.Equal(t, http.StatusNoContent, send("", "10.0.0.1:1234"), "anonymous callers are keyed by address")
	assert.Equal(t, http.StatusTooManyRequests, send("", "10.0.0.1:9999"))
}
