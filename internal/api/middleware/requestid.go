package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader is the HTTP header carrying the request identifier.
const RequestIDHeader = "X-Request-ID"

// requestIDKey is the context key for the request ID. An unexported struct
// type keeps the key collision-free across packages.
type requestIDKey struct{}

// RequestID returns middleware that ensures every request carries an
// identifier. A client-supplied X-Request-ID is reused; otherwise a fresh
// UUID is generated. The ID is stored in the request context and echoed on
// the response so clients can reference it in reports.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}

			ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)

			w.Header().Set(RequestIDHeader, requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestID extracts the request ID from the context. Returns "unknown"
// when no middleware populated one, so log lines never carry an empty field.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}

	return "unknown"
}
