package token

// NoopStore is a Store whose operations all do nothing and whose reads all
// return "". It keeps the session layer safe to construct in contexts with
// no credential storage at all, such as server-side rendering of pages that
// only need the anonymous state.
type NoopStore struct{}

var _ Store = NoopStore{}

func (NoopStore) AccessToken() string    { return "" }
func (NoopStore) SetAccessToken(string)  {}
func (NoopStore) ClearAccessToken()      {}
func (NoopStore) RefreshToken() string   { return "" }
func (NoopStore) SetRefreshToken(string) {}
func (NoopStore) ClearRefreshToken()     {}
func (NoopStore) ClearAll()              {}
