package progress

import (
	"context"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/codequest/internal/domain"
)

// Store persists user progress. Get returns domain.ErrProgressNotFound for
// users without a record.
type Store interface {
	Get(ctx context.Context, userID string) (*domain.UserProgress, error)
	Save(ctx context.Context, p *domain.UserProgress) error
}

// MemoryStore keeps progress in memory
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*domain.UserProgress
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*domain.UserProgress)}
}

func (m *MemoryStore) Get(_ context.Context, userID string) (*domain.UserProgress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProgressNotFound, userID)
	}
	return p.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, p *domain.UserProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.users[p.UserID] = p.Clone()
	return nil
}
