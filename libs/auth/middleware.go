package auth

import (
	"net/http"
	"strings"
	"time"
)

// Headers set from verified claims. Client-supplied values are always discarded.
const (
	HeaderUserID     = "X-User-Id"
	HeaderBusinessID = "X-Business-Id"
	HeaderRole       = "X-Role"
)

// RequireAuth verifies the bearer token and forwards the claims as trusted headers.
func RequireAuth(next http.Handler, secret string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del(HeaderUserID)
		r.Header.Del(HeaderBusinessID)
		r.Header.Del(HeaderRole)

		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") || len(strings.TrimSpace(authHeader)) <= len("Bearer ") {
			http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		claims, err := ParseAndVerifyHS256(token, secret, time.Now())
		if err != nil || strings.TrimSpace(claims.BusinessID) == "" {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		r.Header.Set(HeaderUserID, claims.Sub)
		r.Header.Set(HeaderBusinessID, claims.BusinessID)
		r.Header.Set(HeaderRole, claims.Role)
		next.ServeHTTP(w, r)
	})
}

func RequireRole(next http.Handler, roles ...string) http.Handler {
	allowed := map[string]struct{}{}
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := allowed[r.Header.Get(HeaderRole)]; !ok {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
