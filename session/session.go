package session

import "github.com/carbid/go-session-client/authmodel"

// PendingTwoFactor is the transient state between a 2FA-required login
// response and the code submission. It is never persisted: a reload means
// the user starts the login over.
type PendingTwoFactor struct {
	Email     string
	TempToken string
}

// Session is an immutable snapshot of the authentication state handed to
// subscribers and returned by Snapshot.
type Session struct {
	User             *authmodel.User
	PendingTwoFactor *PendingTwoFactor
}

// IsAuthenticated is derived from User, never stored independently, so the
// flag and the profile cannot diverge.
func (s Session) IsAuthenticated() bool {
	return s.User != nil
}
