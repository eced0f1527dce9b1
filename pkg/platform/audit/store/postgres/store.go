// Package postgres implements the audit store over the transactional outbox
// pattern. Events are written to the outbox table and shipped to Kafka by
// the outbox relay; Kafka is the source of truth for audit events.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/fossabot/authrim-sub007/pkg/platform/audit"
)

type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// outboxPayload is the JSON structure relayed to Kafka. Field names match
// audit.Event so the consumer side deserializes without a mapping layer.
type outboxPayload struct {
	ID string `json:"id"`
	audit.Event
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(outboxPayload{
		ID:    uuid.NewString(),
		Event: event,
	})
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	const q = `
		INSERT INTO audit_outbox (id, category, action, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err = s.db.ExecContext(ctx, q,
		uuid.NewString(),
		string(event.Category),
		string(event.Action),
		payload,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}
