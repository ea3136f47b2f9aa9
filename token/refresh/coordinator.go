// Package refresh exchanges a stored refresh token for a new access token.
//
// The exchange is single-flight: however many requests hit a 401 while an
// access token is stale, exactly one POST to the refresh endpoint is made
// per concurrency window and every caller observes its outcome. Once an
// exchange settles, the next trigger starts a fresh one.
package refresh

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/carbid/go-session-client/authmodel"
	"github.com/carbid/go-session-client/token"
)

const (
	refreshGroupKey      = "refresh"
	defaultClientTimeout = 30 * time.Second
	maxErrorBodyBytes    = 4096
)

// Coordinator owns the refresh exchange. It talks to the refresh endpoint on
// its own plain HTTP client, never through the authenticated pipeline, so a
// 401 from the endpoint can never recurse into another refresh.
type Coordinator struct {
	store      token.Store
	endpoint   string
	httpClient *http.Client
	log        zerolog.Logger
	group      singleflight.Group
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithHTTPClient replaces the plain HTTP client used for the exchange.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Coordinator) {
		c.httpClient = client
	}
}

// WithLogger sets the coordinator's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.log = logger
	}
}

// NewCoordinator creates a Coordinator posting to the given refresh endpoint
// URL and persisting results through store.
func NewCoordinator(store token.Store, endpoint string, options ...Option) (*Coordinator, error) {
	if store == nil {
		return nil, errors.New("[NewCoordinator] store is required")
	}
	if endpoint == "" {
		return nil, errors.New("[NewCoordinator] endpoint is required")
	}

	c := &Coordinator{
		store:      store,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: defaultClientTimeout},
		log:        log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Refresh returns a fresh access token, or "" when the session cannot be
// recovered. An empty result is terminal for this attempt: both tokens have
// been cleared and the only way back is a new login. Refresh never returns
// an error — callers of the pipeline must not see refresh internals, they
// only need to know whether a retry credential exists.
//
// Concurrent callers share a single in-flight exchange and its result.
func (c *Coordinator) Refresh(ctx context.Context) string {
	result, err, shared := c.group.Do(refreshGroupKey, func() (any, error) {
		return c.exchange(ctx)
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("token refresh failed, session is dead")
		return ""
	}
	if shared {
		c.log.Debug().Msg("token refresh result shared with concurrent caller")
	}
	return result.(string)
}

// exchange performs one network round trip. Any failure clears both tokens:
// a refresh token that did not produce an access token is worthless and
// keeping it would retrigger the same doomed exchange on every 401.
func (c *Coordinator) exchange(ctx context.Context) (string, error) {
	refreshToken := c.store.RefreshToken()
	if refreshToken == "" {
		return "", errors.New("[Coordinator.exchange] no refresh token stored")
	}

	body, err := json.Marshal(authmodel.RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		c.store.ClearAll()
		return "", errors.Wrap(err, "[Coordinator.exchange] marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		c.store.ClearAll()
		return "", errors.Wrap(err, "[Coordinator.exchange] build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.store.ClearAll()
		return "", errors.Wrap(err, "[Coordinator.exchange] post refresh")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyBytes))
		c.store.ClearAll()
		return "", errors.Errorf("[Coordinator.exchange] refresh rejected with status %d", resp.StatusCode)
	}

	var pair authmodel.TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		c.store.ClearAll()
		return "", errors.Wrap(err, "[Coordinator.exchange] decode response")
	}
	if pair.AccessToken == "" {
		c.store.ClearAll()
		return "", errors.New("[Coordinator.exchange] response carried no access token")
	}

	c.store.SetAccessToken(pair.AccessToken)
	if pair.RefreshToken != "" {
		// Rotation: the backend invalidated the old refresh token.
		c.store.SetRefreshToken(pair.RefreshToken)
	}

	c.log.Debug().Msg("access token refreshed")
	return pair.AccessToken, nil
}
