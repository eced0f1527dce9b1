// Package session provides the in-memory session store. Production
// deployments point the engine at the authentication service's own session
// storage; this implementation backs tests and single-instance setups.
package session

import (
	"context"
	"sync"

	"github.com/fossabot/authrim-sub007/internal/flow/models"
	id "github.com/fossabot/authrim-sub007/pkg/domain"
	"github.com/fossabot/authrim-sub007/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]models.Session
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[id.SessionID]models.Session)}
}

// Put inserts or replaces a session record. The surrounding authentication
// service owns session lifecycle; the engine only reads and advances.
func (s *InMemoryStore) Put(_ context.Context, session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, sessionID id.SessionID) (models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return models.Session{}, sentinel.ErrNotFound
	}
	return session, nil
}

func (s *InMemoryStore) Advance(_ context.Context, sessionID id.SessionID, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return sentinel.ErrNotFound
	}
	session.CurrentNodeID = nodeID
	s.sessions[sessionID] = session
	return nil
}
