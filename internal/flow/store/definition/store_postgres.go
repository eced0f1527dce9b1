package definition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fossabot/authrim-sub007/internal/flow/models"
	id "github.com/fossabot/authrim-sub007/pkg/domain"
	"github.com/fossabot/authrim-sub007/pkg/platform/sentinel"
)

// PostgresStore persists definitions as JSONB rows.
//
// Schema:
//
//	CREATE TABLE flow_definitions (
//	    tenant_id  UUID        NOT NULL,
//	    flow_id    TEXT        NOT NULL,
//	    version    TEXT        NOT NULL,
//	    definition JSONB       NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    PRIMARY KEY (tenant_id, flow_id, version)
//	);
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const uniqueViolation = "23505"

func (s *PostgresStore) Save(ctx context.Context, tenantID id.TenantID, def models.GraphDefinition) error {
	payload, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshal flow definition: %w", err)
	}

	const q = `
		INSERT INTO flow_definitions (tenant_id, flow_id, version, definition)
		VALUES ($1, $2, $3, $4)`
	_, err = s.pool.Exec(ctx, q, tenantID.String(), def.ID, def.FlowVersion, payload)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save flow definition: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, tenantID id.TenantID, flowID, version string) (models.GraphDefinition, error) {
	const q = `
		SELECT definition FROM flow_definitions
		WHERE tenant_id = $1 AND flow_id = $2 AND version = $3`
	return s.scanDefinition(s.pool.QueryRow(ctx, q, tenantID.String(), flowID, version))
}

func (s *PostgresStore) Latest(ctx context.Context, tenantID id.TenantID, flowID string) (models.GraphDefinition, error) {
	const q = `
		SELECT definition FROM flow_definitions
		WHERE tenant_id = $1 AND flow_id = $2
		ORDER BY created_at DESC
		LIMIT 1`
	return s.scanDefinition(s.pool.QueryRow(ctx, q, tenantID.String(), flowID))
}

func (s *PostgresStore) scanDefinition(row pgx.Row) (models.GraphDefinition, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.GraphDefinition{}, sentinel.ErrNotFound
		}
		return models.GraphDefinition{}, fmt.Errorf("load flow definition: %w", err)
	}
	var def models.GraphDefinition
	if err := json.Unmarshal(payload, &def); err != nil {
		return models.GraphDefinition{}, fmt.Errorf("decode flow definition: %w", err)
	}
	return def, nil
}
