package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// CorrelationIDHeader is the HTTP header carrying the correlation ID that
// groups occurrences from one logical request.
const CorrelationIDHeader = "X-Correlation-ID"

// correlationIDContextKey is the context key for the correlation ID.
type correlationIDContextKey struct{}

// CorrelationIDMiddleware echoes the caller's correlation ID or generates
// one. The ID is always passed explicitly through the context, never
// inferred from ambient state.
func CorrelationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationIDHeader)
		if id == "" {
			id = uuid.New().String()
		}

		w.Header().Set(CorrelationIDHeader, id)

		ctx := context.WithValue(r.Context(), correlationIDContextKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetCorrelationID returns the correlation ID from the context, or an empty string.
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDContextKey{}).(string); ok {
		return id
	}
	return ""
}
