package middleware

import (
	"log"
	"net/http"

	"github.com/mediavault/service/internal/auth"
	"github.com/mediavault/service/internal/ratelimit"
	"github.com/mediavault/service/internal/response"
)

// RateLimit returns middleware that admits requests through the limiter keyed
// by the authenticated identity. Must run after RequireAuth.
func RateLimit(limiter ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := auth.FromContext(r.Context())
			if !ok {
				response.Unauthorized(w, "authentication required")
				return
			}

			allowed, err := limiter.Admit(r.Context(), identity.ID)
			if err != nil {
				// Fail open: an unreachable limiter backend should not take
				// the upload path down with it.
				log.Printf("rate limiter error for %s: %v", identity.ID, err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				response.TooManyRequests(w, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
