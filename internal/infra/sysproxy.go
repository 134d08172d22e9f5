package infra

import (
	"sync"

	"github.com/hollowgate/launcherd/internal/domain"
)

// MemoryProxyStore implements domain.SystemProxyStore in memory.
// Used in tests and on platforms where the launcher must not (or cannot)
// touch the real system proxy settings.
type MemoryProxyStore struct {
	mu       sync.Mutex
	snapshot domain.ProxySnapshot
}

// NewMemoryProxyStore creates an in-memory proxy store with the given
// initial settings.
func NewMemoryProxyStore(initial domain.ProxySnapshot) *MemoryProxyStore {
	return &MemoryProxyStore{snapshot: initial}
}

// Get returns the current stored settings.
func (s *MemoryProxyStore) Get() (domain.ProxySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot, nil
}

// Set replaces the stored settings.
func (s *MemoryProxyStore) Set(snapshot domain.ProxySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snapshot
	return nil
}

// Ensure MemoryProxyStore implements domain.SystemProxyStore.
var _ domain.SystemProxyStore = (*MemoryProxyStore)(nil)
