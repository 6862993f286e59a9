package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

const localDevOrigin = "http://localhost:3000"

// CORS lets the back-office and register frontends call the API from the
// browser. With no configured origins only the local dev server is allowed.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{localDevOrigin}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type", idempotencyHeader, requestIDHeader,
		},
		ExposedHeaders:   []string{requestIDHeader, replayedHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           600,
	})
}
