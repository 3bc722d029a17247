package db

import (
	"context"
	"sync"

	"github.com/samirkhann/study-assistant/internal/models"
)

// MemoryStore keeps conversation logs in process memory. It satisfies the
// same contract as the durable backends and is the default for local
// development and tests.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string][]models.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conversations: make(map[string][]models.Message)}
}

func (s *MemoryStore) History(ctx context.Context, conversationID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.conversations[conversationID]
	copied := make([]models.Message, len(stored))
	copy(copied, stored)
	return copied, nil
}

func (s *MemoryStore) Append(ctx context.Context, conversationID string, msgs ...models.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations[conversationID] = append(s.conversations[conversationID], msgs...)
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.conversations, conversationID)
	return nil
}
