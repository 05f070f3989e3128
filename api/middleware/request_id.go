package middleware

import (
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

const (
	requestIDHeader    = "X-Request-Id"
	maxRequestIDLength = 128
)

// RequestID keeps a caller-supplied X-Request-Id (if short enough) or lets chi
// mint one, then echoes it back and stamps it on the log context.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	tag := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := chimw.GetReqID(r.Context())
			w.Header().Set(requestIDHeader, id)
			if logg != nil {
				r = r.WithContext(logg.WithRequestID(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
	return func(next http.Handler) http.Handler {
		mint := chimw.RequestID(tag(next))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := strings.TrimSpace(r.Header.Get(requestIDHeader)); len(id) > maxRequestIDLength {
				r.Header.Del(requestIDHeader)
			}
			mint.ServeHTTP(w, r)
		})
	}
}
