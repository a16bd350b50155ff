package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/composables"
	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/httpapi"
)

// WithActor reads the acting user profile id set by the upstream gateway.
// Requests without the header pass through without an actor; a malformed
// value is rejected.
func WithActor(header string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(header))
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			actorID, err := uuid.Parse(raw)
			if err != nil || actorID == uuid.Nil {
				_ = httpapi.WriteError(w, http.StatusBadRequest, "InvalidRequest", "invalid actor id", map[string]string{
					"header": header,
				})
				return
			}
			ctx := composables.WithActor(r.Context(), actorID)
			if logger := composables.UseLogger(ctx); logger != nil {
				ctx = composables.WithLogger(ctx, logger.WithField("actor_id", actorID.String()))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
