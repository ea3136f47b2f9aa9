// Package session owns the authenticated identity for the current client
// process: who is logged in, whether a 2FA challenge is pending, and the
// operations that move between the anonymous and authenticated states.
//
// The Service is the single source of truth for the user record. Consumers
// read snapshots and subscribe for changes; nothing outside this package
// mutates the state.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/carbid/go-session-client/authmodel"
	"github.com/carbid/go-session-client/internal/utils"
	"github.com/carbid/go-session-client/token"
)

// API is the slice of the backend auth client the service drives. Satisfied
// by *authapi.Client.
type API interface {
	Login(ctx context.Context, email, password string) (*authmodel.LoginResult, error)
	LoginWith2FA(ctx context.Context, tempToken, code string) (*authmodel.LoginResult, error)
	Register(ctx context.Context, req authmodel.RegisterRequest) (*authmodel.LoginResult, error)
	Me(ctx context.Context) (*authmodel.User, error)
	Logout(ctx context.Context) error
	RequestVerification(ctx context.Context) error
	ConfirmVerification(ctx context.Context, verificationToken string) error
	ChangePassword(ctx context.Context, currentPassword, newPassword string) error
}

// Refresher recovers an access token from the stored refresh token.
// Satisfied by *refresh.Coordinator.
type Refresher interface {
	Refresh(ctx context.Context) string
}

// Service is the session state manager.
type Service struct {
	api       API
	store     token.Store
	refresher Refresher
	log       zerolog.Logger
	nowTime   func() time.Time

	mu      sync.RWMutex
	user    *authmodel.User
	pending *PendingTwoFactor

	subMu     sync.Mutex
	subs      map[int]func(Session)
	nextSubID int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.log = logger
	}
}

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// NewService initializes a Service with required dependencies.
func NewService(api API, store token.Store, refresher Refresher, options ...Option) (*Service, error) {
	if api == nil {
		return nil, errors.New("[NewService] api is required")
	}
	if store == nil {
		return nil, errors.New("[NewService] store is required")
	}
	if refresher == nil {
		return nil, errors.New("[NewService] refresher is required")
	}

	service := &Service{
		api:       api,
		store:     store,
		refresher: refresher,
		log:       log.Logger,
		nowTime:   time.Now,
		subs:      make(map[int]func(Session)),
	}
	for _, opt := range options {
		opt(service)
	}
	return service, nil
}

// Snapshot returns the current session state.
func (s *Service) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Session{User: s.user, PendingTwoFactor: s.pending}
}

// IsAuthenticated reports whether a user is currently set.
func (s *Service) IsAuthenticated() bool {
	return s.Snapshot().IsAuthenticated()
}

// CurrentUser returns the current user record, or nil when anonymous.
func (s *Service) CurrentUser() *authmodel.User {
	return s.Snapshot().User
}

// Subscribe registers fn to be called with a snapshot after every state
// change. The returned function unsubscribes.
func (s *Service) Subscribe(fn func(Session)) func() {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// Restore resolves the initial unknown state from whatever credentials are
// stored. It never returns an error: any failure along the way lands in the
// anonymous state with both tokens cleared. With no stored credentials at
// all it settles immediately, without a network call.
func (s *Service) Restore(ctx context.Context) Session {
	accessToken := s.store.AccessToken()
	refreshToken := s.store.RefreshToken()

	switch {
	case accessToken != "" && !token.Expired(accessToken, s.nowTime()):
		// The profile fetch rides the pipeline, so a token the backend
		// considers stale still recovers via refresh-and-retry.
		s.restoreFromProfile(ctx)
	case refreshToken != "":
		// No usable access token. One refresh attempt, then the profile.
		if s.refresher.Refresh(ctx) == "" {
			s.toAnonymous()
			return s.Snapshot()
		}
		s.restoreFromProfile(ctx)
	default:
		// Covers both the fresh-install case and an expired access token
		// with nothing to refresh it with.
		s.store.ClearAll()
		s.toAnonymous()
	}
	return s.Snapshot()
}

func (s *Service) restoreFromProfile(ctx context.Context) {
	user, err := s.api.Me(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("session restore: profile fetch failed")
		s.store.ClearAll()
		s.toAnonymous()
		return
	}
	s.setUser(user)
}

// Login submits primary credentials. A LoginOK result persists the tokens
// and sets the user. A 2FA-required result records the pending challenge
// and stays anonymous with no tokens stored; the caller collects a code and
// calls LoginWith2FA. An email-unverified result changes nothing; the
// caller prompts for verification. Real failures are returned for the UI to
// present.
func (s *Service) Login(ctx context.Context, email, password string) (*authmodel.LoginResult, error) {
	result, err := s.api.Login(ctx, email, password)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Login]")
	}

	switch result.Outcome {
	case authmodel.LoginOK:
		s.establish(result)
	case authmodel.LoginTwoFactorRequired:
		s.setPending(&PendingTwoFactor{Email: result.Email, TempToken: result.TempToken})
	case authmodel.LoginEmailUnverified:
		// Stay anonymous, nothing stored.
	}
	return result, nil
}

// LoginWith2FA completes the pending two-factor challenge with the
// submitted code. On failure the pending state is left intact so the user
// can retry.
func (s *Service) LoginWith2FA(ctx context.Context, code string) (*authmodel.LoginResult, error) {
	pending := s.Snapshot().PendingTwoFactor
	if pending == nil {
		return nil, ErrNoPendingTwoFactor
	}

	result, err := s.api.LoginWith2FA(ctx, pending.TempToken, code)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.LoginWith2FA]")
	}

	s.establish(result)
	return result, nil
}

// Register creates an account. The backend logs the new user straight in,
// so success behaves exactly like a successful login.
func (s *Service) Register(ctx context.Context, req authmodel.RegisterRequest) (*authmodel.LoginResult, error) {
	result, err := s.api.Register(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Register]")
	}

	s.establish(result)
	return result, nil
}

// Logout ends the session. The backend call is best effort — whatever it
// does, the local session always ends: tokens cleared, user cleared.
func (s *Service) Logout(ctx context.Context) {
	if err := s.api.Logout(ctx); err != nil {
		s.log.Warn().Err(err).Msg("backend logout failed, clearing local session anyway")
	}
	s.store.ClearAll()
	s.toAnonymous()
}

// RefreshUser re-fetches the profile to resynchronize after out-of-band
// changes such as an avatar upload. A failed fetch follows the same fail
// path as restore: tokens cleared, anonymous.
func (s *Service) RefreshUser(ctx context.Context) (*authmodel.User, error) {
	user, err := s.api.Me(ctx)
	if err != nil {
		s.store.ClearAll()
		s.toAnonymous()
		return nil, errors.Wrap(err, "[Service.RefreshUser]")
	}
	s.setUser(user)
	return user, nil
}

// RequestEmailVerification asks the backend to send a verification email.
// Gated on the authenticated state; does not change it.
func (s *Service) RequestEmailVerification(ctx context.Context) error {
	if !s.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	if err := s.api.RequestVerification(ctx); err != nil {
		return errors.Wrap(err, "[Service.RequestEmailVerification]")
	}
	return nil
}

// ConfirmEmailVerification submits the emailed verification token. Gated on
// the authenticated state; does not change it. Callers resynchronize the
// verified flag through RefreshUser.
func (s *Service) ConfirmEmailVerification(ctx context.Context, verificationToken string) error {
	if !s.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	if err := s.api.ConfirmVerification(ctx, verificationToken); err != nil {
		return errors.Wrap(err, "[Service.ConfirmEmailVerification]")
	}
	return nil
}

// ChangePassword changes the current user's password. Gated on the
// authenticated state; does not change it.
func (s *Service) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	if !s.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	if err := s.api.ChangePassword(ctx, currentPassword, newPassword); err != nil {
		return errors.Wrap(err, "[Service.ChangePassword]")
	}
	return nil
}

// establish persists a LoginOK result: tokens into the store, user into the
// session, pending challenge gone.
func (s *Service) establish(result *authmodel.LoginResult) {
	if result.Tokens != nil {
		s.store.SetAccessToken(result.Tokens.AccessToken)
		if result.Tokens.RefreshToken != "" {
			s.store.SetRefreshToken(result.Tokens.RefreshToken)
		}
	}

	s.mu.Lock()
	s.user = result.User
	s.pending = nil
	s.mu.Unlock()
	s.log.Debug().Str("user_id", utils.Value(result.User).ID).Msg("session established")
	s.notify()
}

func (s *Service) setUser(user *authmodel.User) {
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	s.notify()
}

func (s *Service) setPending(pending *PendingTwoFactor) {
	s.mu.Lock()
	s.pending = pending
	s.mu.Unlock()
	s.notify()
}

func (s *Service) toAnonymous() {
	s.mu.Lock()
	s.user = nil
	s.pending = nil
	s.mu.Unlock()
	s.notify()
}

func (s *Service) notify() {
	snapshot := s.Snapshot()

	s.subMu.Lock()
	subs := make([]func(Session), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}
