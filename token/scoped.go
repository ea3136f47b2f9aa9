package token

// ScopedStore routes the two tokens to stores with different lifetimes: the
// access token to a short-lived store, the refresh token to a persistent
// one. This split is deliberate — the bearer credential should die with the
// process while the refresh credential survives restarts — so it is kept as
// an explicit type rather than an assembly convention.
type ScopedStore struct {
	access  Store
	refresh Store
}

var _ Store = (*ScopedStore)(nil)

// NewScopedStore combines an access-scope store and a refresh-scope store.
// Typical assembly is NewScopedStore(NewMemoryStore(), boltStore).
func NewScopedStore(access, refresh Store) *ScopedStore {
	return &ScopedStore{access: access, refresh: refresh}
}

func (s *ScopedStore) AccessToken() string {
	return s.access.AccessToken()
}

func (s *ScopedStore) SetAccessToken(token string) {
	s.access.SetAccessToken(token)
}

func (s *ScopedStore) ClearAccessToken() {
	s.access.ClearAccessToken()
}

func (s *ScopedStore) RefreshToken() string {
	return s.refresh.RefreshToken()
}

func (s *ScopedStore) SetRefreshToken(token string) {
	s.refresh.SetRefreshToken(token)
}

func (s *ScopedStore) ClearRefreshToken() {
	s.refresh.ClearRefreshToken()
}

func (s *ScopedStore) ClearAll() {
	s.access.ClearAccessToken()
	s.refresh.ClearRefreshToken()
}
