package authmodel

import "time"

// TokenPair is the credential bundle returned by the login, registration,
// 2FA and refresh endpoints. RefreshToken is optional on refresh responses:
// the backend only includes it when it rotates the token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// User is the profile record returned by GET /auth/me and embedded in
// successful login responses.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	AvatarURL     string    `json:"avatarUrl,omitempty"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TwoFactorRequest is the body of POST /auth/2fa/verify. TempToken is the
// short-lived token handed back by the login side channel when the account
// has 2FA enabled.
type TwoFactorRequest struct {
	TempToken string `json:"tempToken"`
	Code      string `json:"code"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// RefreshRequest is the body of POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ChangePasswordRequest is the body of PUT /auth/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// VerifyConfirmRequest is the body of POST /auth/verify/confirm.
type VerifyConfirmRequest struct {
	Token string `json:"token"`
}
