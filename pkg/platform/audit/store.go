package audit

import "context"

// Store persists audit events. Postgres-backed implementations write to the
// transactional outbox; the memory implementation backs tests and
// single-process deployments.
type Store interface {
	Append(ctx context.Context, event Event) error
}
