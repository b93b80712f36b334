package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"cms-backend/internal/auth"
	"cms-backend/internal/transport"
)

type staffKey struct{}

// Staff identifies the caller of an admin request. ID is empty when the
// request authenticated with the shared admin key.
type Staff struct {
	ID   string
	Role string
}

func WithStaff(ctx context.Context, s Staff) context.Context {
	return context.WithValue(ctx, staffKey{}, s)
}

func StaffFromContext(ctx context.Context) (Staff, bool) {
	s, ok := ctx.Value(staffKey{}).(Staff)
	return s, ok
}

// StaffIDFromContext returns the signed-in staff id, or "".
func StaffIDFromContext(ctx context.Context) string {
	s, _ := StaffFromContext(ctx)
	return s.ID
}

func AdminAuth(adminKey string, manager *auth.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey == "" && manager == nil {
				transport.WriteError(w, http.StatusServiceUnavailable, "admin auth not configured", nil)
				return
			}

			if adminKey != "" {
				if key := r.Header.Get("X-Admin-Key"); key != "" && subtle.ConstantTimeCompare([]byte(key), []byte(adminKey)) == 1 {
					next.ServeHTTP(w, r.WithContext(WithStaff(r.Context(), Staff{Role: "admin"})))
					return
				}
			}

			if manager != nil {
				if claims, ok := accessClaims(r, manager); ok {
					ctx := WithStaff(r.Context(), Staff{ID: claims.Subject, Role: claims.Role})
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		})
	}
}

// OptionalStaff attaches the staff identity when a valid access token is
// present and lets anonymous requests through untouched.
func OptionalStaff(manager *auth.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if manager != nil {
				if claims, ok := accessClaims(r, manager); ok {
					r = r.WithContext(WithStaff(r.Context(), Staff{ID: claims.Subject, Role: claims.Role}))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func accessClaims(r *http.Request, manager *auth.Manager) (*auth.Claims, bool) {
	token := ""
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		token = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if token == "" {
		if cookie, err := r.Cookie(auth.AccessCookie); err == nil {
			token = cookie.Value
		}
	}
	if token == "" {
		return nil, false
	}
	claims, err := manager.ParseAccess(token)
	if err != nil {
		return nil, false
	}
	return claims, true
}
