package auth

import (
	"encoding/json"
	"net/http"
)

// Require returns middleware that rejects requests whose presented token
// does not match. Unauthorized requests get an explicit 401 and never
// reach the wrapped handler.
func Require(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !Equal(token, FromRequest(r)) {
				Unauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Unauthorized writes the explicit rejection.
func Unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
}
