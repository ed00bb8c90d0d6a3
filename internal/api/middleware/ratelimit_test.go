package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"circulation-engine/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiterDisabledPassesThrough(t *testing.T) {
	rl := NewRateLimiterMiddleware(nil, config.RateLimitConfig{Enabled: false}, discardLogger())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/books", nil)

	rl.Middleware(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiterWithoutRedisPassesThrough(t *testing.T) {
	rl := NewRateLimiterMiddleware(nil, config.RateLimitConfig{Enabled: true, RPS: 1, Burst: 0}, discardLogger())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/books", nil)

	rl.Middleware(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExtractIPPrefersForwardedFor(t *testing.T) {
	rl := NewRateLimiterMiddleware(nil, config.RateLimitConfig{}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/books", nil)
	req.RemoteAddr = "10.0.0.1:4321"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	assert.Equal(t, "203.0.113.9", rl.extractIP(req))
}

func TestExtractIPFallsBackToRemoteAddr(t *testing.T) {
	rl := NewRateLimiterMiddleware(nil, config.RateLimitConfig{}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/books", nil)
	req.RemoteAddr = "10.0.0.1:4321"

	assert.Equal(t, "10.0.0.1", rl.extractIP(req))
}
