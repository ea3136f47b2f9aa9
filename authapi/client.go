// Package authapi is the typed client for the backend's auth endpoints. It
// owns the wire shapes and the translation of login side channels into the
// authmodel.LoginResult union, so nothing above it ever inspects raw error
// bodies.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/carbid/go-session-client/authmodel"
)

// Backend endpoint paths.
const (
	LoginPath         = "/auth/login"
	TwoFactorPath     = "/auth/2fa/verify"
	RegisterPath      = "/auth/register"
	MePath            = "/auth/me"
	LogoutPath        = "/auth/logout"
	VerifyRequestPath = "/auth/verify/request"
	VerifyConfirmPath = "/auth/verify/confirm"
	PasswordPath      = "/auth/password"
)

const maxErrorBodyBytes = 4096

// Client calls the backend auth API. The HTTP client it is given is
// expected to carry the authenticated transport, so every call here is
// subject to bearer attachment and 401 recovery.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client for the API at baseURL.
func NewClient(baseURL string, options ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("[NewClient] baseURL is required")
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// loginResponse is the success body shared by login, 2FA and registration.
type loginResponse struct {
	authmodel.TokenPair
	User *authmodel.User `json:"user"`
}

// Login submits primary credentials. The 2FA-required and email-unverified
// side channels come back as LoginResult variants, not errors; anything
// else non-2xx (bad credentials included) is returned as an error.
func (c *Client) Login(ctx context.Context, email, password string) (*authmodel.LoginResult, error) {
	var resp loginResponse
	err := c.do(ctx, http.MethodPost, LoginPath, authmodel.LoginRequest{Email: email, Password: password}, &resp)
	if err == nil {
		return okResult(&resp), nil
	}

	var apiErr *authmodel.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case authmodel.CodeTwoFactorRequired:
			return &authmodel.LoginResult{
				Outcome:   authmodel.LoginTwoFactorRequired,
				Email:     email,
				TempToken: apiErr.TempToken,
			}, nil
		case authmodel.CodeEmailNotVerified:
			return &authmodel.LoginResult{
				Outcome: authmodel.LoginEmailUnverified,
				Email:   email,
			}, nil
		}
	}
	return nil, errors.Wrap(err, "[Client.Login]")
}

// LoginWith2FA completes a pending two-factor challenge.
func (c *Client) LoginWith2FA(ctx context.Context, tempToken, code string) (*authmodel.LoginResult, error) {
	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, TwoFactorPath, authmodel.TwoFactorRequest{TempToken: tempToken, Code: code}, &resp); err != nil {
		return nil, errors.Wrap(err, "[Client.LoginWith2FA]")
	}
	return okResult(&resp), nil
}

// Register creates an account. On success the backend issues tokens
// immediately, so the result has the same shape as a successful login.
func (c *Client) Register(ctx context.Context, req authmodel.RegisterRequest) (*authmodel.LoginResult, error) {
	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, RegisterPath, req, &resp); err != nil {
		return nil, errors.Wrap(err, "[Client.Register]")
	}
	return okResult(&resp), nil
}

// Me fetches the current user's profile. Requires bearer auth.
func (c *Client) Me(ctx context.Context) (*authmodel.User, error) {
	var user authmodel.User
	if err := c.do(ctx, http.MethodGet, MePath, nil, &user); err != nil {
		return nil, errors.Wrap(err, "[Client.Me]")
	}
	return &user, nil
}

// Logout notifies the backend that the session ends. Callers treat this as
// best effort.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, LogoutPath, nil, nil)
}

// RequestVerification asks the backend to send a verification email.
func (c *Client) RequestVerification(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, VerifyRequestPath, nil, nil)
}

// ConfirmVerification submits the token from a verification email.
func (c *Client) ConfirmVerification(ctx context.Context, verificationToken string) error {
	return c.do(ctx, http.MethodPost, VerifyConfirmPath, authmodel.VerifyConfirmRequest{Token: verificationToken}, nil)
}

// ChangePassword changes the current user's password.
func (c *Client) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	return c.do(ctx, http.MethodPut, PasswordPath, authmodel.ChangePasswordRequest{
		CurrentPassword: currentPassword,
		NewPassword:     newPassword,
	}, nil)
}

func okResult(resp *loginResponse) *authmodel.LoginResult {
	return &authmodel.LoginResult{
		Outcome: authmodel.LoginOK,
		Tokens:  &authmodel.TokenPair{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken},
		User:    resp.User,
	}
}

// do performs one JSON round trip. Non-2xx responses come back as an
// *authmodel.APIError carrying the status and whatever machine code the
// body held.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "[Client.do] marshal body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "[Client.do] build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "[Client.do] "+method+" "+path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "[Client.do] decode response")
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &authmodel.APIError{Status: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err == nil && len(body) > 0 {
		// Body may not be JSON at all (proxies, load balancers). The
		// status code alone is still a usable error.
		_ = json.Unmarshal(body, apiErr)
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
