package middleware

import (
	"net/http"
	"time"

	"github.com/fossabot/authrim-sub007/pkg/requestcontext"
)

// RequestTime pins a single timestamp for the whole request so every
// consumer (evaluation context, audit events, logs) observes the same
// instant. Tests inject their own via requestcontext.WithTime.
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
