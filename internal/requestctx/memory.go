package requestctx

import (
	"context"
	"errors"
	"sync"
)

// MemoryStore is the in-process Store backend. Suitable for single-instance
// deployments and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Context
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Context)}
}

func (s *MemoryStore) Begin(_ context.Context, requestID string, rc Context) error {
	if requestID == "" {
		return errors.New("requestctx: request id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[requestID] = rc
	return nil
}

func (s *MemoryStore) Get(_ context.Context, requestID string) (Context, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rc, ok := s.entries[requestID]
	return rc, ok, nil
}

func (s *MemoryStore) End(_ context.Context, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, requestID)
	return nil
}

// Len reports the number of live entries. Test helper; a steadily growing
// count in production indicates a middleware End leak.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
