package session

import "errors"

var (
	ErrNoPendingTwoFactor = errors.New("no pending two-factor challenge")
	ErrNotAuthenticated   = errors.New("not authenticated")
)
