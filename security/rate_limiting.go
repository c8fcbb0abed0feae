package security

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

// RateLimiter counts requests per identifier in fixed Redis windows.
type RateLimiter struct {
	redis  redis.Cmdable
	limit  int64
	window time.Duration
}

func NewRateLimiter(redisClient redis.Cmdable, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{redis: redisClient, limit: int64(limit), window: window}
}

// Allow reports whether identifier is still within its quota for the current window.
func (r *RateLimiter) Allow(ctx context.Context, scope, identifier string) (bool, error) {
	key := fmt.Sprintf("ratelimit:%s:%s", scope, identifier)

	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if count == 1 {
		if err := r.redis.Expire(ctx, key, r.window).Err(); err != nil {
			return false, fmt.Errorf("rate limit %s: %w", key, err)
		}
	}
	return count <= r.limit, nil
}

// Middleware limits requests by authenticated user, or by client IP for
// anonymous callers. Redis failures let the request through.
func (r *RateLimiter) Middleware(scope string) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		identifier := e.RealIP()
		if e.Auth != nil {
			identifier = "user:" + e.Auth.Id
		}

		allowed, err := r.Allow(e.Request.Context(), scope, identifier)
		if err != nil {
			slog.Error("Rate limiter unavailable", "error", err, "scope", scope)
			return e.Next()
		}
		if !allowed {
			return apis.NewApiError(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.", nil)
		}
		return e.Next()
	}
}

// AntiBotMiddleware rejects clients that announce themselves as crawlers.
func AntiBotMiddleware(e *core.RequestEvent) error {
	if isSuspiciousUserAgent(e.Request.Header.Get("User-Agent")) {
		return apis.NewForbiddenError("Access denied", nil)
	}
	return e.Next()
}

func isSuspiciousUserAgent(ua string) bool {
	suspicious := []string{"bot", "crawler", "spider", "scraper"}
	ua = strings.ToLower(ua)
	for _, pattern := range suspicious {
		if strings.Contains(ua, pattern) {
			return true
		}
	}
	return false
}
