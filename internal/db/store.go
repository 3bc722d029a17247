package db

import (
	"context"
	"fmt"
	"sync"

	"github.com/samirkhann/study-assistant/internal/models"
	"github.com/samirkhann/study-assistant/internal/utils"
)

// ConversationStore is a durable per-conversation append log.
//
// History returns a copy of the ordered message sequence for a conversation,
// empty for ids that were never written or were cleared. Append adds all
// given messages to the end of the sequence as one serialized unit; two
// concurrent Append calls for the same id never interleave their messages.
// Clear removes the whole sequence. Conversations are created implicitly by
// the first Append.
type ConversationStore interface {
	History(ctx context.Context, conversationID string) ([]models.Message, error)
	Append(ctx context.Context, conversationID string, msgs ...models.Message) error
	Clear(ctx context.Context, conversationID string) error
}

// Open connects the backend selected by cfg.Backend and prepares its schema
// or indexes. The returned cleanup func releases the backend's resources.
func Open(ctx context.Context, cfg utils.HistoryConfig) (ConversationStore, func(), error) {
	switch cfg.Backend {
	case utils.BackendMemory:
		return NewMemoryStore(), func() {}, nil
	case utils.BackendMongo:
		store, err := NewMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close(context.Background())
			return nil, nil, err
		}
		return store, func() { _ = store.Close(context.Background()) }, nil
	case utils.BackendPostgres:
		store, err := NewPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, store.Close, nil
	case utils.BackendRedis:
		store, err := NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("db: unknown history backend %q", cfg.Backend)
	}
}

// keyedMutex hands out one mutex per conversation id so appends to the same
// conversation serialize while unrelated conversations never contend.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock blocks until the id's mutex is held and returns the unlock func.
func (km *keyedMutex) Lock(id string) func() {
	km.mu.Lock()
	lock, ok := km.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		km.locks[id] = lock
	}
	km.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
