package session

import (
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/carbid/go-session-client/authapi"
	"github.com/carbid/go-session-client/internal/config"
	"github.com/carbid/go-session-client/token"
	"github.com/carbid/go-session-client/token/refresh"
	"github.com/carbid/go-session-client/transport"
)

// BootstrapOption configures Bootstrap.
type BootstrapOption func(*bootstrapParams)

type bootstrapParams struct {
	onSessionExpired func()
	logger           zerolog.Logger
}

// WithSessionExpiredHook sets the hook fired when a session dies and cannot
// be recovered. The embedding UI navigates to its login entry point here.
func WithSessionExpiredHook(hook func()) BootstrapOption {
	return func(p *bootstrapParams) {
		p.onSessionExpired = hook
	}
}

// WithBootstrapLogger sets the logger shared by every assembled component.
func WithBootstrapLogger(logger zerolog.Logger) BootstrapOption {
	return func(p *bootstrapParams) {
		p.logger = logger
	}
}

// Bootstrap assembles the full client stack from configuration: the scoped
// token store (in-memory access scope, bbolt refresh scope when a db path is
// configured), the single-flight refresh coordinator, the authenticated
// transport, the API client and the session service.
//
// The returned closer releases the persistent store and must be called on
// shutdown.
func Bootstrap(configPath string, options ...BootstrapOption) (*Service, func() error, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, errors.Wrap(err, "[Bootstrap] load config")
	}

	params := bootstrapParams{logger: log.Logger}
	for _, opt := range options {
		opt(&params)
	}
	logger := params.logger.With().Str("env", cfg.Env).Logger()

	var refreshScope token.Store = token.NewMemoryStore()
	closer := func() error { return nil }
	if cfg.TokenDBPath != "" {
		boltStore, err := token.NewBoltStore(cfg.TokenDBPath, token.WithBoltLogger(logger))
		if err != nil {
			return nil, nil, errors.Wrap(err, "[Bootstrap] open token db")
		}
		refreshScope = boltStore
		closer = boltStore.Close
	}
	store := token.NewScopedStore(token.NewMemoryStore(), refreshScope)

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	coordinator, err := refresh.NewCoordinator(store, baseURL+transport.DefaultRefreshPath,
		refresh.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		refresh.WithLogger(logger),
	)
	if err != nil {
		_ = closer()
		return nil, nil, errors.Wrap(err, "[Bootstrap] refresh coordinator")
	}

	transportOpts := []transport.Option{transport.WithLogger(logger)}
	if params.onSessionExpired != nil {
		transportOpts = append(transportOpts, transport.WithOnSessionExpired(params.onSessionExpired))
	}
	pipeline, err := transport.New(store, coordinator, transportOpts...)
	if err != nil {
		_ = closer()
		return nil, nil, errors.Wrap(err, "[Bootstrap] transport")
	}

	api, err := authapi.NewClient(baseURL, authapi.WithHTTPClient(&http.Client{
		Transport: pipeline,
		Timeout:   cfg.HTTPTimeout,
	}))
	if err != nil {
		_ = closer()
		return nil, nil, errors.Wrap(err, "[Bootstrap] api client")
	}

	service, err := NewService(api, store, coordinator, WithLogger(logger))
	if err != nil {
		_ = closer()
		return nil, nil, errors.Wrap(err, "[Bootstrap] session service")
	}
	return service, closer, nil
}
