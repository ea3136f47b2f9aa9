package authmodel

import (
	"errors"
	"fmt"
)

// Machine codes the backend attaches to auth failures. Codes outside this
// list are passed through verbatim for the UI layer to map to copy.
const (
	CodeTwoFactorRequired  = "two_factor_required"
	CodeEmailNotVerified   = "email_not_verified"
	CodeInvalidCredentials = "invalid_credentials"
)

// APIError is a non-2xx response decoded from the backend's JSON error body.
type APIError struct {
	Status    int    `json:"-"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	TempToken string `json:"tempToken,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// IsCode reports whether err is an APIError carrying the given machine code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}
