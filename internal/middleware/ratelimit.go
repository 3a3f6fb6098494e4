package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/cache"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/httputil"
)

// limiterIdleTTL is how long an unused bucket is kept. A bucket refills
// within seconds, so dropping it after this changes nothing for the user.
const limiterIdleTTL = 10 * time.Minute

// RateLimit applies a token bucket per authenticated user, or per client IP
// for anonymous requests.
func RateLimit(buckets cache.Store[*rate.Limiter], rps float64, burst int, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rateKey(r)
			limiter := buckets.GetOrSet(key, limiterIdleTTL, func() *rate.Limiter {
				return rate.NewLimiter(rate.Limit(rps), burst)
			})

			if !limiter.Allow() {
				logger.Warn("rate limit exceeded", "key", key, "path", r.URL.Path)
				w.Header().Set("Retry-After", "1")
				httputil.RespondError(w, http.StatusTooManyRequests, "rate limit exceeded, slow down")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rateKey(r *http.Request) string {
	if userID := httputil.GetUserID(r); userID != "" {
		return "user:" + userID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
