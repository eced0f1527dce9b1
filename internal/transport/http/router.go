// Package httptransport assembles the HTTP router. It owns route layout and
// middleware ordering; request handling lives in the flow handler package.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	flowhandler "github.com/fossabot/authrim-sub007/internal/flow/handler"
	"github.com/fossabot/authrim-sub007/internal/platform/middleware"
	"github.com/fossabot/authrim-sub007/pkg/platform/httputil"
)

// Dependencies carries everything the router mounts.
type Dependencies struct {
	FlowHandler *flowhandler.Handler
	Validator   middleware.JWTValidator
	Logger      *slog.Logger

	// Readiness reports whether backing stores are reachable. Nil means the
	// process has no external dependencies to check.
	Readiness func(ctx context.Context) error
}

// NewRouter wires all endpoints. Flow endpoints sit behind JWT auth; health
// and metrics stay open for the platform.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(chimw.RealIP)
	r.Use(middleware.ClientContext)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/healthz", handleHealth(deps.Readiness))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(deps.Validator, deps.Logger))
		deps.FlowHandler.Register(r)
	})
	return r
}

func handleHealth(readiness func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if readiness != nil {
			if err := readiness(r.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unavailable",
				})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
