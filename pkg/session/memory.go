package session

import (
	"context"
	"sync"
	"time"

	"github.com/sasya-arogya/engine/pkg/state"
)

// MemoryStore keeps sessions in process memory. It backs tests and
// single-instance deployments without a database.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*state.WorkflowState
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*state.WorkflowState)}
}

func (m *MemoryStore) Load(ctx context.Context, sessionID string) (*state.WorkflowState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Save(ctx context.Context, s *state.WorkflowState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.SessionID] = s.Clone()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

func (m *MemoryStore) DeleteExpired(ctx context.Context, cutoff time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expired []string
	for id, s := range m.sessions {
		if s.LastUpdateTime.Before(cutoff) {
			expired = append(expired, id)
			delete(m.sessions, id)
		}
	}
	return expired, nil
}
