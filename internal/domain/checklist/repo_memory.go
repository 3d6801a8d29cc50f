package checklist

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// memoryDraftStore keeps drafts in process memory. Used when no Redis URL is
// configured and in tests.
type memoryDraftStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryDraftStore() DraftStore {
	return newMemoryDraftStore(time.Now)
}

func newMemoryDraftStore(now func() time.Time) *memoryDraftStore {
	return &memoryDraftStore{entries: make(map[string]memoryEntry), now: now}
}

func (m *memoryDraftStore) Save(_ context.Context, id string, data []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memoryEntry{data: append([]byte(nil), data...)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.entries[id] = e
	return nil
}

func (m *memoryDraftStore) Load(_ context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrDraftNotFound
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.entries, id)
		return nil, ErrDraftNotFound
	}
	return append([]byte(nil), e.data...), nil
}

func (m *memoryDraftStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return ErrDraftNotFound
	}
	delete(m.entries, id)
	return nil
}
