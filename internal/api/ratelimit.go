package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimiter enforces a per-client per-path request budget backed by a
// shared Redis counter, so the limit holds across replicas. Redis failures
// fail open: a broken counter must not take the API down with it.
type RateLimiter struct {
	redis             *redis.Client
	logger            *zap.Logger
	requestsPerMinute int
	includeHeaders    bool
}

// RateLimitResult reports one budget check.
type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// The counter key lives for one minute from its first increment.
var rateLimitScript = redis.NewScript(`
	local current = redis.call('INCR', KEYS[1])
	if current == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return current
`)

// NewRateLimiter creates a limiter over the given Redis client.
func NewRateLimiter(client *redis.Client, requestsPerMinute int, includeHeaders bool, logger *zap.Logger) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 120
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RateLimiter{
		redis:             client,
		logger:            logger,
		requestsPerMinute: requestsPerMinute,
		includeHeaders:    includeHeaders,
	}
}

// Check counts one request against the client's minute window.
func (rl *RateLimiter) Check(ctx context.Context, clientID, path string) *RateLimitResult {
	key := fmt.Sprintf("chainsignal:ratelimit:%s:%s:minute", clientID, path)

	current, err := rateLimitScript.Run(ctx, rl.redis, []string{key}, 60000).Int()
	if err != nil {
		rl.logger.Warn("rate limit check failed, allowing request", zap.Error(err))
		return &RateLimitResult{Allowed: true, Limit: rl.requestsPerMinute}
	}

	remaining := rl.requestsPerMinute - current
	if remaining < 0 {
		remaining = 0
	}

	ttl, _ := rl.redis.TTL(ctx, key).Result()

	result := &RateLimitResult{
		Allowed:   current <= rl.requestsPerMinute,
		Limit:     rl.requestsPerMinute,
		Remaining: remaining,
		ResetAt:   time.Now().Add(ttl),
	}
	if !result.Allowed {
		result.RetryAfter = ttl
	}
	return result
}

// Middleware applies the budget to every request passing through it.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result := rl.Check(r.Context(), clientIP(r), r.URL.Path)

		if rl.includeHeaders {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
		}

		if !result.Allowed {
			retryAfter := int(result.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP prefers proxy-forwarded addresses; RemoteAddr is the fallback,
// with its port stripped so one client maps to one budget key.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
