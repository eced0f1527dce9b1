// Package worker drains the audit inbox into a store in the background.
package worker

import (
	"context"
	"log/slog"

	"github.com/fossabot/authrim-sub007/pkg/platform/audit"
)

// Worker consumes audit events from a channel and persists them. Keeping
// persistence off the request path means a slow audit store can delay audit
// delivery but never an authentication step.
type Worker struct {
	store  audit.Store
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func New(store audit.Store, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run processes events until ctx is cancelled. Append failures are logged
// and the worker keeps going; one bad event must not wedge the pipeline.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				if w.logger != nil {
					w.logger.ErrorContext(ctx, "audit append failed",
						"action", event.Action,
						"category", event.Category,
						"error", err,
					)
				}
			}
		}
	}
}
