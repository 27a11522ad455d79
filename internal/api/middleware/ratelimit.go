package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
	"github.com/kiranshivaraju/vince/internal/api/response"
	"github.com/kiranshivaraju/vince/internal/cache"
)

const defaultRequestsPerMinute = 60

// BlockRecorder is told about every request a limiter rejects.
type BlockRecorder interface {
	RecordRateLimitBlock(limiter string)
}

// RateLimit provides fixed-window rate limiting via Redis, shared by every
// instance pointing at the same Redis.
type RateLimit struct {
	cache          cache.Cache
	scope          string
	requestsPerMin int
	recorder       BlockRecorder
}

// NewRateLimit creates a new RateLimit middleware. A nil cache disables
// limiting; a nil recorder is allowed.
func NewRateLimit(c cache.Cache, scope string, requestsPerMin int, rec BlockRecorder) *RateLimit {
	if requestsPerMin <= 0 {
		requestsPerMin = defaultRequestsPerMinute
	}
	return &RateLimit{cache: c, scope: scope, requestsPerMin: requestsPerMin, recorder: rec}
}

// Limit counts requests per client address within the limiter's scope.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.cache == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := cache.RateLimitKey(rl.scope, clientIP(r))
		count, err := rl.cache.IncrWithExpiry(r.Context(), key, 60*time.Second)
		if err != nil {
			// On Redis error, allow the request (fail open)
			next.ServeHTTP(w, r)
			return
		}

		remaining := rl.requestsPerMin - int(count)
		if remaining < 0 {
			remaining = 0
		}
		resetTime := time.Now().Add(60 * time.Second).Unix()

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requestsPerMin))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetTime))

		if count > int64(rl.requestsPerMin) {
			rl.record()
			w.Header().Set("Retry-After", "60")
			response.Invalid(w, http.StatusTooManyRequests,
				"RATE_LIMIT_EXCEEDED", "Too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimit) record() {
	if rl.recorder != nil {
		rl.recorder.RecordRateLimitBlock(rl.scope)
	}
}

// LimitByIP is an in-process per-IP limiter for endpoints that must be
// throttled even when Redis is not configured.
func LimitByIP(scope string, requestsPerMin int, rec BlockRecorder) func(http.Handler) http.Handler {
	if requestsPerMin <= 0 {
		requestsPerMin = defaultRequestsPerMinute
	}
	return httprate.Limit(
		requestsPerMin,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			if rec != nil {
				rec.RecordRateLimitBlock(scope)
			}
			response.Error(w, http.StatusTooManyRequests,
				"RATE_LIMIT_EXCEEDED", "Too many requests", nil)
		}),
	)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
