package middleware

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// RequireAdminKey guards a handler behind a shared admin key. The presented
// key arrives as a bearer token and is compared against the configured
// bcrypt hash. An empty hash disables the endpoints entirely rather than
// leaving them open.
func RequireAdminKey(keyHash string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimSpace(keyHash) == "" {
			http.Error(w, "admin endpoints disabled", http.StatusForbidden)
			return
		}
		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		key := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		if err := bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
