// internal/memory/inmemory.go
package memory

import (
	"context"
	"sync"

	"semantic-search-api/internal/models"
)

// InMemoryStore keeps session contexts in a process-wide map. A
// missing session loads as an empty context, never an error.
type InMemoryStore struct {
	mu    sync.RWMutex
	store map[string]*models.ConversationContext
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		store: make(map[string]*models.ConversationContext),
	}
}

func (s *InMemoryStore) Load(ctx context.Context, sessionID string) (*models.ConversationContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cc, ok := s.store[sessionID]
	if !ok {
		return &models.ConversationContext{}, nil
	}

	// Copy so a caller's mutations don't leak into the stored context
	// before Save.
	out := &models.ConversationContext{
		History: make([]models.MessagePair, len(cc.History)),
	}
	copy(out.History, cc.History)
	return out, nil
}

func (s *InMemoryStore) Save(ctx context.Context, sessionID string, cc *models.ConversationContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := &models.ConversationContext{
		History: make([]models.MessagePair, len(cc.History)),
	}
	copy(stored.History, cc.History)
	s.store[sessionID] = stored
	return nil
}
