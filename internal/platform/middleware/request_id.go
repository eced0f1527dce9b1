package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/fossabot/authrim-sub007/pkg/requestcontext"
)

const requestIDHeader = "X-Request-ID"

// GetRequestID retrieves the request ID from the context
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}

// WithRequestID injects a request ID into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return requestcontext.WithRequestID(ctx, requestID)
}

// RequestID propagates the caller's X-Request-ID header, minting a fresh
// UUID when the header is absent. The ID is echoed on the response so
// clients can correlate logs.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set(requestIDHeader, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
