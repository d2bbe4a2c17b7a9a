package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mediavault/service/internal/auth"
	"github.com/mediavault/service/internal/response"
)

// RequireAuth returns middleware that resolves the caller's identity and
// injects it into the request context. Two credential forms are accepted:
// a Bearer JWT (sub + role claims), or an x-user-id header with an optional
// x-user-role. The bearer form wins when both are present.
func RequireAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := identityFromBearer(r, jwtSecret)
			if !ok {
				if r.Header.Get("Authorization") != "" {
					// A credential was presented and failed verification —
					// do not fall through to the header pair.
					response.Unauthorized(w, "invalid or expired token")
					return
				}
				identity, ok = identityFromHeaders(r)
			}
			if !ok {
				response.Unauthorized(w, "authentication required")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
		})
	}
}

func identityFromBearer(r *http.Request, jwtSecret string) (auth.Identity, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return auth.Identity{}, false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return auth.Identity{}, false
	}

	token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return auth.Identity{}, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return auth.Identity{}, false
	}

	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if sub == "" {
		return auth.Identity{}, false
	}
	return auth.Identity{ID: sub, Role: role}, true
}

func identityFromHeaders(r *http.Request) (auth.Identity, bool) {
	userID := r.Header.Get("x-user-id")
	if userID == "" {
		return auth.Identity{}, false
	}
	return auth.Identity{ID: userID, Role: r.Header.Get("x-user-role")}, true
}
