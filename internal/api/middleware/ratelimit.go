package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"circulation-engine/internal/config"
	"github.com/redis/go-redis/v9"
)

const rateLimitWindow = time.Second

// RateLimiterMiddleware throttles clients per source IP using a fixed window
// counter in Redis, so every instance behind the load balancer shares one
// budget.
type RateLimiterMiddleware struct {
	rdb    redis.Cmdable
	cfg    config.RateLimitConfig
	logger *slog.Logger
}

func NewRateLimiterMiddleware(rdb redis.Cmdable, cfg config.RateLimitConfig, logger *slog.Logger) *RateLimiterMiddleware {
	return &RateLimiterMiddleware{
		rdb:    rdb,
		cfg:    cfg,
		logger: logger,
	}
}

func (rl *RateLimiterMiddleware) extractIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}

	xRealIP := r.Header.Get("X-Real-IP")
	if xRealIP != "" {
		return xRealIP
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func (rl *RateLimiterMiddleware) allow(r *http.Request, ip string) bool {
	ctx := r.Context()
	key := fmt.Sprintf("ratelimit:%s:%d", ip, time.Now().Unix())

	count, err := rl.rdb.Incr(ctx, key).Result()
	if err != nil {
		// Redis being down should not take the API down with it.
		rl.logger.Warn("Rate limiter unavailable, allowing request", "error", err)
		return true
	}
	if count == 1 {
		rl.rdb.Expire(ctx, key, 2*rateLimitWindow)
	}

	return count <= int64(rl.cfg.RPS)+int64(rl.cfg.Burst)
}

func (rl *RateLimiterMiddleware) Middleware(next http.Handler) http.Handler {
	if !rl.cfg.Enabled || rl.rdb == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := rl.extractIP(r)

		if !rl.allow(r, ip) {
			rl.logger.Warn("Rate limit exceeded", "ip", ip)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]string{
					"message": "Rate limit exceeded",
				},
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
