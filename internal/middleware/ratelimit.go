package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"cms-backend/internal/apperr"
	"cms-backend/internal/httpx"
	"cms-backend/internal/ratelimit"
	"cms-backend/internal/transport"
)

// RateLimit counts each request against action's quota for the client IP.
// When the counter store is unavailable requests are let through.
func RateLimit(limiter *ratelimit.Limiter, action ratelimit.Action, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			ip := httpx.ClientIP(r)
			d, err := limiter.Allow(r.Context(), action, ip)
			if err != nil {
				RequestLogger(r, log).Warn("rate limit: counter error",
					slog.String("action", string(action)),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			if d.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			}
			if !d.Allowed {
				rlog := RequestLogger(r, log).With(slog.String("ip", ip))
				transport.WriteServiceError(w, rlog, "rate limit "+string(action), apperr.RateLimited(d.RetryAfter), false)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
