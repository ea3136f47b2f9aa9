package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Expiry extracts the exp claim from an access token without verifying its
// signature. The client holds no signing keys, so this is strictly a hint:
// a token past its exp is certainly dead and a refresh can be started
// without wasting a round trip, but a token before its exp may still be
// rejected by the backend. Validity is only ever established by the backend
// accepting a call.
func Expiry(raw string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return time.Time{}, errors.Wrap(err, "[Expiry] ParseUnverified")
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.New("[Expiry] token has no exp claim")
	}
	return claims.ExpiresAt.Time, nil
}

// Expired reports whether raw carries an exp claim in the past. Tokens that
// cannot be parsed or carry no exp are reported as not expired, leaving the
// decision to the backend.
func Expired(raw string, now time.Time) bool {
	expiry, err := Expiry(raw)
	if err != nil {
		return false
	}
	return expiry.Before(now)
}
