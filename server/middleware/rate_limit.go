package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/hrygo/servicefunnel/plugin/ai/cache"
)

const (
	// DefaultRate allows one turn per second per dialog on average.
	DefaultRate = rate.Limit(1)
	// DefaultBurst lets a user answer a few questions in quick succession.
	DefaultBurst = 5

	limiterCapacity = 10000
	limiterIdleTTL  = 10 * time.Minute
)

// RateLimiter provides rate limiting functionality per key.
// Limiters of idle keys expire, so the set of keys stays bounded.
type RateLimiter struct {
	mu     sync.Mutex
	limits *cache.LRUCache[*rate.Limiter]
	rate   rate.Limit
	burst  int
}

// NewRateLimiter creates a new rate limiter. Non-positive arguments select the defaults.
func NewRateLimiter(r rate.Limit, burst int) *RateLimiter {
	if r <= 0 {
		r = DefaultRate
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	return &RateLimiter{
		limits: cache.NewLRUCache[*rate.Limiter](limiterCapacity, limiterIdleTTL),
		rate:   r,
		burst:  burst,
	}
}

// getLimiter gets or creates a limiter for the given key.
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.limits.Get(key)
	if !ok {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
	}
	// Every use extends the idle TTL.
	rl.limits.Set(key, limiter, 0)
	return limiter
}

// Allow checks if a request is allowed for the given key.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

// Wait waits for a request to be allowed.
// Returns error if the context is cancelled or rate limit exceeded.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	return rl.getLimiter(key).Wait(ctx)
}

// Middleware rejects requests whose key is over its rate with 429.
// Requests without a key pass through.
func (rl *RateLimiter) Middleware(key func(echo.Context) string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			k := key(c)
			if k != "" && !rl.Allow(k) {
				return c.JSON(http.StatusTooManyRequests, ErrorBody{
					Code:    "RATE_LIMITED",
					Message: "Слишком много сообщений подряд. Пожалуйста, подождите несколько секунд.",
				})
			}
			return next(c)
		}
	}
}

// ErrorBody is the JSON body of a rejected request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
