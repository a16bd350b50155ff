package middleware

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// Cors admits browser calls from the given origins. The request id, actor
// and trace headers are allowed in and exposed back.
func Cors(requestIDHeader, actorHeader string, allowOrigins ...string) mux.MiddlewareFunc {
	c := cors.New(cors.Options{
		AllowedOrigins: allowOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedHeaders:   []string{"Content-Type", requestIDHeader, actorHeader, "traceparent", "tracestate"},
		ExposedHeaders:   []string{requestIDHeader, "X-Trace-Id", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
	})
	return c.Handler
}
