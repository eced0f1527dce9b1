// Package definition persists authored flow definitions, keyed by tenant,
// flow id, and version. Published definitions are immutable; a new version
// is a new row.
package definition

import (
	"context"
	"sync"

	"github.com/fossabot/authrim-sub007/internal/flow/models"
	id "github.com/fossabot/authrim-sub007/pkg/domain"
	"github.com/fossabot/authrim-sub007/pkg/platform/sentinel"
)

type versionKey struct {
	flowID  string
	version string
}

// InMemoryStore implements the definition store for tests and
// single-process deployments. For production, use the postgres store.
type InMemoryStore struct {
	mu     sync.RWMutex
	defs   map[id.TenantID]map[versionKey]models.GraphDefinition
	latest map[id.TenantID]map[string]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		defs:   make(map[id.TenantID]map[versionKey]models.GraphDefinition),
		latest: make(map[id.TenantID]map[string]string),
	}
}

func (s *InMemoryStore) Save(_ context.Context, tenantID id.TenantID, def models.GraphDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKey := s.defs[tenantID]
	if byKey == nil {
		byKey = make(map[versionKey]models.GraphDefinition)
		s.defs[tenantID] = byKey
		s.latest[tenantID] = make(map[string]string)
	}

	key := versionKey{flowID: def.ID, version: def.FlowVersion}
	if _, exists := byKey[key]; exists {
		return sentinel.ErrConflict
	}
	byKey[key] = def
	s.latest[tenantID][def.ID] = def.FlowVersion
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, tenantID id.TenantID, flowID, version string) (models.GraphDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.defs[tenantID][versionKey{flowID: flowID, version: version}]
	if !ok {
		return models.GraphDefinition{}, sentinel.ErrNotFound
	}
	return def, nil
}

func (s *InMemoryStore) Latest(ctx context.Context, tenantID id.TenantID, flowID string) (models.GraphDefinition, error) {
	s.mu.RLock()
	version, ok := s.latest[tenantID][flowID]
	s.mu.RUnlock()
	if !ok {
		return models.GraphDefinition{}, sentinel.ErrNotFound
	}
	return s.Get(ctx, tenantID, flowID, version)
}
