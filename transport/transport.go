// Package transport provides the outbound request pipeline every backend
// call rides on: bearer attachment on the way out, refresh-and-retry
// recovery on a 401 on the way back.
package transport

import (
	"context"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/carbid/go-session-client/token"
)

// DefaultRefreshPath is skipped by 401 recovery unless overridden.
const DefaultRefreshPath = "/auth/refresh"

const requestIDHeader = "X-Request-ID"

// Refresher recovers a dead access token. An empty result means the session
// is unrecoverable.
type Refresher interface {
	Refresh(ctx context.Context) string
}

// AuthTransport is an http.RoundTripper wrapping every call to the backend.
//
// Outgoing, it attaches the stored access token as a bearer credential —
// the header always reflects the token read at send time. Incoming, a 401
// triggers one refresh and one retry of the request; if the refresh yields
// nothing the session is treated as dead and the original 401 is returned
// untouched. Requests to the refresh endpoint itself are never recovered,
// which is what keeps the pipeline from recursing.
type AuthTransport struct {
	base             http.RoundTripper
	store            token.Store
	refresher        Refresher
	refreshPath      string
	onSessionExpired func()
	log              zerolog.Logger
}

var _ http.RoundTripper = (*AuthTransport)(nil)

// Option configures an AuthTransport.
type Option func(*AuthTransport)

// WithBase sets the underlying RoundTripper. Defaults to
// http.DefaultTransport.
func WithBase(base http.RoundTripper) Option {
	return func(t *AuthTransport) {
		t.base = base
	}
}

// WithRefreshPath overrides the request path excluded from 401 recovery.
func WithRefreshPath(path string) Option {
	return func(t *AuthTransport) {
		t.refreshPath = path
	}
}

// WithOnSessionExpired sets the hook fired when recovery fails and the
// session is dead. The embedding UI typically navigates to its login entry
// point here. The default logs a warning.
func WithOnSessionExpired(hook func()) Option {
	return func(t *AuthTransport) {
		t.onSessionExpired = hook
	}
}

// WithLogger sets the transport's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *AuthTransport) {
		t.log = logger
	}
}

// New creates an AuthTransport reading credentials from store and recovering
// dead ones through refresher.
func New(store token.Store, refresher Refresher, options ...Option) (*AuthTransport, error) {
	if store == nil {
		return nil, errors.New("[transport.New] store is required")
	}
	if refresher == nil {
		return nil, errors.New("[transport.New] refresher is required")
	}

	t := &AuthTransport{
		base:        http.DefaultTransport,
		store:       store,
		refresher:   refresher,
		refreshPath: DefaultRefreshPath,
		log:         log.Logger,
	}
	for _, opt := range options {
		opt(t)
	}
	if t.onSessionExpired == nil {
		logger := t.log
		t.onSessionExpired = func() {
			logger.Warn().Msg("session expired and could not be recovered")
		}
	}
	return t, nil
}

// RoundTrip implements http.RoundTripper.
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	if out.Header.Get(requestIDHeader) == "" {
		out.Header.Set(requestIDHeader, uuid.New().String())
	}
	if accessToken := t.store.AccessToken(); accessToken != "" {
		out.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	if req.URL.Path == t.refreshPath {
		// A 401 from the refresh endpoint means the refresh token itself
		// was rejected. Recovering here would recurse.
		return resp, nil
	}

	newToken := t.refresher.Refresh(req.Context())
	if newToken == "" {
		t.store.ClearAll()
		t.onSessionExpired()
		return resp, nil
	}

	retry, err := t.retryRequest(req, newToken)
	if err != nil {
		t.log.Warn().Err(err).Str("path", req.URL.Path).Msg("request not retryable after refresh")
		return resp, nil
	}

	t.log.Debug().Str("path", req.URL.Path).Msg("retrying request with refreshed token")
	drain(resp)

	return t.base.RoundTrip(retry)
}

// retryRequest clones the original request with the refreshed credential.
// At most one retry ever happens per request: the retried response is
// returned as-is, 401 or not.
func (t *AuthTransport) retryRequest(req *http.Request, accessToken string) (*http.Request, error) {
	retry := req.Clone(req.Context())
	if req.Body != nil {
		if req.GetBody == nil {
			return nil, errors.New("[AuthTransport.retryRequest] request body cannot be replayed")
		}
		body, err := req.GetBody()
		if err != nil {
			return nil, errors.Wrap(err, "[AuthTransport.retryRequest] GetBody")
		}
		retry.Body = body
	}
	if retry.Header.Get(requestIDHeader) == "" {
		retry.Header.Set(requestIDHeader, uuid.New().String())
	}
	retry.Header.Set("Authorization", "Bearer "+accessToken)
	return retry, nil
}

func drain(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
