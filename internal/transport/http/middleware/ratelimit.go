package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/resilience"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/transport/http/response"
)

// HeaderLoadTest bypasses per-user rate limits so load generators can push
// past them. The edge IP limiter still applies.
const HeaderLoadTest = "X-Load-Test"

// RateLimit applies the Redis sliding-window limiter per principal for one
// action. Unauthenticated requests fall back to the remote address key.
func RateLimit(limiter *resilience.RateLimiter, action string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get(HeaderLoadTest) != "" {
				next.ServeHTTP(w, r)
				return
			}

			key := action + ":"
			if uid := UserID(r); uid > 0 {
				key += strconv.FormatInt(uid, 10)
			} else {
				key += r.RemoteAddr
			}

			if err := limiter.Allow(r.Context(), key, limit, window); err != nil {
				response.Err(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
