package token

import "sync"

// MemoryStore is a thread-safe in-memory Store. Tokens are lost when the
// process exits, which makes it the natural home for the short-lived access
// token: the session-scoped half of the dual-scope policy.
type MemoryStore struct {
	mu      sync.RWMutex
	access  string
	refresh string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access
}

func (s *MemoryStore) SetAccessToken(token string) {
	s.mu.Lock()
	s.access = token
	s.mu.Unlock()
}

func (s *MemoryStore) ClearAccessToken() {
	s.SetAccessToken("")
}

func (s *MemoryStore) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh
}

func (s *MemoryStore) SetRefreshToken(token string) {
	s.mu.Lock()
	s.refresh = token
	s.mu.Unlock()
}

func (s *MemoryStore) ClearRefreshToken() {
	s.SetRefreshToken("")
}

func (s *MemoryStore) ClearAll() {
	s.mu.Lock()
	s.access = ""
	s.refresh = ""
	s.mu.Unlock()
}
