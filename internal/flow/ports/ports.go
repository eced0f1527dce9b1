// Package ports declares the interfaces the flow engine consumes. Concrete
// implementations live under internal/flow/store, internal/flow/cache, and
// pkg/platform/audit; services depend only on these shapes.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mock_ports.go -package=mocks

import (
	"context"
	"log/slog"

	"github.com/fossabot/authrim-sub007/internal/flow/models"
	id "github.com/fossabot/authrim-sub007/pkg/domain"
	"github.com/fossabot/authrim-sub007/pkg/platform/audit"
)

// DefinitionStore persists authored flow definitions. Implementations return
// sentinel.ErrNotFound / sentinel.ErrConflict for the corresponding facts.
type DefinitionStore interface {
	// Save persists a definition under its id and version. Saving the same
	// id+version twice is a conflict; published definitions are immutable.
	Save(ctx context.Context, tenantID id.TenantID, def models.GraphDefinition) error

	// Get returns the definition for a flow id and version.
	Get(ctx context.Context, tenantID id.TenantID, flowID, version string) (models.GraphDefinition, error)

	// Latest returns the most recently saved definition for a flow id.
	Latest(ctx context.Context, tenantID id.TenantID, flowID string) (models.GraphDefinition, error)
}

// PlanCache holds compiled plans keyed by flow id + version. Plans are
// immutable; a cached entry never needs invalidation, only eviction.
type PlanCache interface {
	Get(key string) (*models.CompiledPlan, bool)
	Put(key string, plan *models.CompiledPlan)
}

// SessionStore exposes the per-attempt session record owned by the
// surrounding authentication service. The engine only reads it.
type SessionStore interface {
	Get(ctx context.Context, sessionID id.SessionID) (models.Session, error)
	// Advance moves the session cursor to the given node after a successful
	// resolution.
	Advance(ctx context.Context, sessionID id.SessionID, nodeID string) error
}

// AuditPublisher fans out audit events without blocking the caller.
type AuditPublisher interface {
	Publish(ctx context.Context, event audit.Event)
}

// LogAudit emits an audit event and mirrors it to the logger. Services call
// this so audit and operational logs never drift apart. Attributes follow
// the slog key-value convention.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher AuditPublisher, action audit.Action, attrs ...any) {
	if logger != nil {
		logger.InfoContext(ctx, string(action), attrs...)
	}
	if publisher != nil {
		publisher.Publish(ctx, audit.NewEvent(action, attrs...))
	}
}
