package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"

	"github.com/fastygo/aurano/pkg/httpcontext"
)

const rateLimitedCode = "RATE_LIMITED"

// RateLimiter throttles each authenticated user with a token bucket.
// Buckets of quiet users expire and are recreated full on the next request.
type RateLimiter struct {
	mu       sync.Mutex
	limiters *expirable.LRU[string, *rate.Limiter]
	rate     rate.Limit
	burst    int
}

func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 120
	}
	if burst <= 0 {
		burst = max(1, perMinute/10)
	}
	return &RateLimiter{
		limiters: expirable.NewLRU[string, *rate.Limiter](10_000, nil, 5*time.Minute),
		rate:     rate.Limit(float64(perMinute) / 60.0),
		burst:    burst,
	}
}

// Allow consumes one token for key.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	limiter, ok := rl.limiters.Get(key)
	if !ok {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters.Add(key, limiter)
	}
	rl.mu.Unlock()
	return limiter.Allow()
}

// Middleware keys on the authenticated user, falling back to the client address.
// It must run after JWTAuth.
func (rl *RateLimiter) Middleware(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		key := httpcontext.UserID(ctx)
		if key == "" {
			key = ctx.RemoteIP().String()
		}
		if !rl.Allow(key) {
			retry := time.Duration(float64(time.Second) / float64(rl.rate))
			ctx.Response.Header.Set("Retry-After", strconv.Itoa(max(1, int(retry.Seconds()))))
			writeError(ctx, http.StatusTooManyRequests, rateLimitedCode, "rate limit exceeded")
			return
		}
		next(ctx)
	}
}
