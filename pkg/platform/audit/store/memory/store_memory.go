// Package memory provides an in-memory audit store for tests and
// single-process deployments.
package memory

import (
	"context"
	"sync"

	"github.com/fossabot/authrim-sub007/pkg/platform/audit"
)

type Store struct {
	mu     sync.Mutex
	events []audit.Event
}

func New() *Store {
	return &Store{}
}

func (s *Store) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of everything appended so far.
func (s *Store) Events() []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audit.Event, len(s.events))
	copy(out, s.events)
	return out
}
