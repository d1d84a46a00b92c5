package handlers

import (
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// APIKeyHeader carries the admin API key
const APIKeyHeader = "X-Api-Key"

// APIKeyMiddleware only lets requests through whose X-Api-Key matches the
// bcrypt hash. An empty hash disables the admin API entirely.
func APIKeyMiddleware(keyHash string) func(http.Handler) http.Handler {
	// keys that already matched skip bcrypt
	var accepted sync.Map

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keyHash == "" {
				WriteAPIError(w, http.StatusForbidden, "api_disabled", "The admin API is not configured on this server.")
				return
			}

			key := r.Header.Get(APIKeyHeader)
			if key == "" {
				WriteAPIError(w, http.StatusUnauthorized, "missing_api_key", "The "+APIKeyHeader+" header is required.")
				return
			}

			if _, ok := accepted.Load(key); !ok {
				if err := bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)); err != nil {
					log.Warn().Str("remote_addr", r.RemoteAddr).Msg("handlers: rejected admin API key")
					WriteAPIError(w, http.StatusUnauthorized, "invalid_api_key", "The API key is not valid.")
					return
				}
				accepted.Store(key, struct{}{})
			}

			next.ServeHTTP(w, r)
		})
	}
}
