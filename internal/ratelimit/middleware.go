package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/lumora-edu/mentor-gateway/internal/auth"
	"github.com/lumora-edu/mentor-gateway/internal/httputil"
)

const (
	headerRateLimitLimit     = "X-RateLimit-Limit"
	headerRateLimitRemaining = "X-RateLimit-Remaining"
	headerRetryAfter         = "Retry-After"
)

// Middleware returns chi middleware enforcing the per-identity burst guard.
// Authenticated requests are keyed by subject; everything else falls back to
// the client IP (already resolved by chi's RealIP middleware).
func Middleware(limiter *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := w.Header().Get("X-Request-ID")

			key := r.RemoteAddr
			if identity, ok := auth.IdentityFromContext(r.Context()); ok {
				key = identity.Subject
			}

			allowed := limiter.Allow(key)
			w.Header().Set(headerRateLimitLimit, strconv.Itoa(limiter.cfg.MaxActions))
			w.Header().Set(headerRateLimitRemaining, strconv.Itoa(limiter.Remaining(key)))

			if !allowed {
				retryAfter := limiter.RetryAfter(key)
				slog.Warn("rate limit exceeded",
					"request_id", reqID,
					"key", key,
					"retry_after_ms", retryAfter.Milliseconds(),
				)
				seconds := int(retryAfter / time.Second)
				if retryAfter%time.Second > 0 {
					seconds++
				}
				w.Header().Set(headerRetryAfter, strconv.Itoa(seconds))
				httputil.WriteRateLimitError(w, reqID, "Too many requests, slow down")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
