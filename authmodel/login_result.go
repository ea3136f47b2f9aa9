package authmodel

// LoginOutcome discriminates the possible results of a credential
// submission. The backend signals 2FA and unverified-email conditions
// through side channels; the API client translates them into one of these
// variants at the boundary so nothing downstream inspects raw error bodies.
type LoginOutcome int

const (
	// LoginOK means credentials were accepted and tokens were issued.
	LoginOK LoginOutcome = iota
	// LoginTwoFactorRequired means the password was accepted but a one-time
	// code must be submitted before tokens are issued.
	LoginTwoFactorRequired
	// LoginEmailUnverified means the account exists but its email address
	// has not been confirmed yet. No tokens are issued.
	LoginEmailUnverified
)

// LoginResult is the discriminated result of Login, LoginWith2FA and
// Register. Tokens and User are set only when Outcome is LoginOK; Email and
// TempToken are set only when Outcome is LoginTwoFactorRequired.
type LoginResult struct {
	Outcome   LoginOutcome
	Tokens    *TokenPair
	User      *User
	Email     string
	TempToken string
}
