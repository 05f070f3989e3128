package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
)

// CORS lets the storefront origins call the API with credentials. Preflight
// results are cached for five minutes.
func CORS(origins []string) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", IdempotencyHeader, requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader, replayedHeader},
		AllowCredentials: true,
		MaxAge:           int((5 * time.Minute).Seconds()),
	}
	return cors.Handler(opts)
}
