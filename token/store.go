package token

// Store abstracts custody of the credential pair so that the two tokens can
// live in stores with different lifetimes: the access token in a
// process-lifetime store, the refresh token in a persistent one.
//
// Absence is represented as the empty string, never as an error — callers
// branch on presence, not on failure. Writes must not fail the caller either:
// implementations log storage problems and carry on, because no caller of a
// credential write has a sensible recovery path.
type Store interface {
	// AccessToken returns the stored access token, or "" if none is stored.
	AccessToken() string
	// SetAccessToken stores the access token, replacing any previous value.
	SetAccessToken(token string)
	// ClearAccessToken removes the stored access token.
	ClearAccessToken()

	// RefreshToken returns the stored refresh token, or "" if none is stored.
	RefreshToken() string
	// SetRefreshToken stores the refresh token, replacing any previous
	// value. Rotation is a plain overwrite.
	SetRefreshToken(token string)
	// ClearRefreshToken removes the stored refresh token.
	ClearRefreshToken()

	// ClearAll removes both tokens.
	ClearAll()
}
