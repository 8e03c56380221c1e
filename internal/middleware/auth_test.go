package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestRequireAdminKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("open-sesame"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("generate hash: %v", err)
	}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	cases := []struct {
		name   string
		hash   string
		header string
		want   int
	}{
		{"valid key", string(hash), "Bearer open-sesame", http.StatusNoContent},
		{"wrong key", string(hash), "Bearer guessing", http.StatusUnauthorized},
		{"missing header", string(hash), "", http.StatusUnauthorized},
		{"not bearer", string(hash), "Basic open-sesame", http.StatusUnauthorized},
		{"no hash configured", "", "Bearer open-sesame", http.StatusForbidden},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodPost, "/admin/replan", nil)
		if c.header != "" {
			req.Header.Set("Authorization", c.header)
		}
		rec := httptest.NewRecorder()
		RequireAdminKey(c.hash, ok).ServeHTTP(rec, req)
		if rec.Code != c.want {
			t.Fatalf("%s: status = %d, want %d", c.name, rec.Code, c.want)
		}
	}
}
