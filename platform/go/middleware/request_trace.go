package middleware

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-rentals/platform/go/httpapi"
	platformlogging "github.com/zenGate-Global/palmyra-rentals/platform/go/logging"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/requesttrace"
)

// ActorHeader carries the operator id forwarded by the authenticating gateway.
const ActorHeader = "X-Actor-ID"

// RequestTrace stores the caller's AuditInfo on the request context and tags
// the request logger with it. Mount after RequestID and RequestLogger.
func RequestTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := chimw.GetReqID(r.Context())

		audit := requesttrace.Anonymous(requestID)
		if raw := r.Header.Get(ActorHeader); raw != "" {
			var err error
			if audit, err = requesttrace.ForUser(raw, requestID); err != nil {
				httpapi.WriteProblem(w, httpapi.ProblemDetails{
					Type:   httpapi.ProblemTypeValidation,
					Title:  "Invalid actor",
					Status: http.StatusBadRequest,
					Errors: map[string][]string{ActorHeader: {err.Error()}},
				})
				return
			}
		}

		ctx := requesttrace.IntoContext(r.Context(), audit)
		if logger := platformlogging.FromRequest(r, nil); logger != nil {
			ctx = platformlogging.WithLogger(ctx, logger.With(
				zap.String("actor_kind", string(audit.ActorKind)),
				zap.String("actor", audit.Actor()),
			))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
