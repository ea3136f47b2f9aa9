package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/carbid/go-session-client/authmodel"
	"github.com/carbid/go-session-client/session"
	"github.com/carbid/go-session-client/token"
)

const (
	testEmail     = "bidder@example.com"
	testPassword  = "password123"
	testTempToken = "temp-2fa-token"
	testCode      = "123456"
	accessToken1  = "access-1"
	refreshToken1 = "refresh-1"
)

func testUser() *authmodel.User {
	return &authmodel.User{ID: "user-1", Email: testEmail, FirstName: "Jo", LastName: "Dealer"}
}

func okResult() *authmodel.LoginResult {
	return &authmodel.LoginResult{
		Outcome: authmodel.LoginOK,
		Tokens:  &authmodel.TokenPair{AccessToken: accessToken1, RefreshToken: refreshToken1},
		User:    testUser(),
	}
}

// fakeAPI is a canned session.API recording which operations ran.
type fakeAPI struct {
	loginResult     *authmodel.LoginResult
	loginErr        error
	twoFactorResult *authmodel.LoginResult
	twoFactorErr    error
	registerResult  *authmodel.LoginResult
	registerErr     error
	meUser          *authmodel.User
	meErr           error
	logoutErr       error
	opErr           error

	calls []string
}

func (f *fakeAPI) Login(_ context.Context, _, _ string) (*authmodel.LoginResult, error) {
	f.calls = append(f.calls, "login")
	return f.loginResult, f.loginErr
}

func (f *fakeAPI) LoginWith2FA(_ context.Context, tempToken, code string) (*authmodel.LoginResult, error) {
	f.calls = append(f.calls, "2fa:"+tempToken+":"+code)
	return f.twoFactorResult, f.twoFactorErr
}

func (f *fakeAPI) Register(_ context.Context, _ authmodel.RegisterRequest) (*authmodel.LoginResult, error) {
	f.calls = append(f.calls, "register")
	return f.registerResult, f.registerErr
}

func (f *fakeAPI) Me(_ context.Context) (*authmodel.User, error) {
	f.calls = append(f.calls, "me")
	return f.meUser, f.meErr
}

func (f *fakeAPI) Logout(_ context.Context) error {
	f.calls = append(f.calls, "logout")
	return f.logoutErr
}

func (f *fakeAPI) RequestVerification(_ context.Context) error {
	f.calls = append(f.calls, "verify-request")
	return f.opErr
}

func (f *fakeAPI) ConfirmVerification(_ context.Context, _ string) error {
	f.calls = append(f.calls, "verify-confirm")
	return f.opErr
}

func (f *fakeAPI) ChangePassword(_ context.Context, _, _ string) error {
	f.calls = append(f.calls, "change-password")
	return f.opErr
}

// fakeRefresher hands out a canned token, writing it to the store the way
// the real coordinator does.
type fakeRefresher struct {
	result string
	calls  int
	store  token.Store
}

func (f *fakeRefresher) Refresh(_ context.Context) string {
	f.calls++
	if f.result == "" {
		f.store.ClearAll()
		return ""
	}
	f.store.SetAccessToken(f.result)
	return f.result
}

type fixture struct {
	api       *fakeAPI
	store     *token.MemoryStore
	refresher *fakeRefresher
	service   *session.Service
}

func setup(t *testing.T, api *fakeAPI) *fixture {
	t.Helper()
	store := token.NewMemoryStore()
	refresher := &fakeRefresher{store: store}
	service, err := session.NewService(api, store, refresher)
	require.NoError(t, err)
	return &fixture{api: api, store: store, refresher: refresher, service: service}
}

func TestRestore_NoTokens_AnonymousWithoutNetwork(t *testing.T) {
	f := setup(t, &fakeAPI{})

	snapshot := f.service.Restore(context.Background())

	require.False(t, snapshot.IsAuthenticated())
	require.Empty(t, f.api.calls)
	require.Zero(t, f.refresher.calls)
}

func TestRestore_AccessTokenValid_Authenticated(t *testing.T) {
	f := setup(t, &fakeAPI{meUser: testUser()})
	f.store.SetAccessToken(accessToken1)

	snapshot := f.service.Restore(context.Background())

	require.True(t, snapshot.IsAuthenticated())
	require.Equal(t, testEmail, snapshot.User.Email)
	require.Equal(t, []string{"me"}, f.api.calls)
	require.Zero(t, f.refresher.calls)
}

func TestRestore_ProfileFails_ClearsAndAnonymous(t *testing.T) {
	f := setup(t, &fakeAPI{meErr: errors.New("boom")})
	f.store.SetAccessToken(accessToken1)
	f.store.SetRefreshToken(refreshToken1)

	snapshot := f.service.Restore(context.Background())

	require.False(t, snapshot.IsAuthenticated())
	require.Empty(t, f.store.AccessToken())
	require.Empty(t, f.store.RefreshToken())
}

func TestRestore_RefreshTokenOnly_RefreshesThenFetches(t *testing.T) {
	f := setup(t, &fakeAPI{meUser: testUser()})
	f.store.SetRefreshToken(refreshToken1)
	f.refresher.result = accessToken1

	snapshot := f.service.Restore(context.Background())

	require.True(t, snapshot.IsAuthenticated())
	require.Equal(t, 1, f.refresher.calls)
	require.Equal(t, []string{"me"}, f.api.calls)
}

func expiredJWT(t *testing.T) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func TestRestore_ExpiredAccessToken_GoesStraightToRefresh(t *testing.T) {
	f := setup(t, &fakeAPI{meUser: testUser()})
	f.store.SetAccessToken(expiredJWT(t))
	f.store.SetRefreshToken(refreshToken1)
	f.refresher.result = accessToken1

	snapshot := f.service.Restore(context.Background())

	require.True(t, snapshot.IsAuthenticated())
	// No doomed profile call with the dead token: refresh first, then one
	// profile fetch.
	require.Equal(t, 1, f.refresher.calls)
	require.Equal(t, []string{"me"}, f.api.calls)
}

func TestRestore_ExpiredAccessTokenNoRefresh_Cleared(t *testing.T) {
	f := setup(t, &fakeAPI{})
	f.store.SetAccessToken(expiredJWT(t))

	snapshot := f.service.Restore(context.Background())

	require.False(t, snapshot.IsAuthenticated())
	require.Empty(t, f.store.AccessToken())
	require.Empty(t, f.api.calls)
}

func TestRestore_RefreshFails_Anonymous(t *testing.T) {
	f := setup(t, &fakeAPI{})
	f.store.SetRefreshToken("refresh-dead")

	snapshot := f.service.Restore(context.Background())

	require.False(t, snapshot.IsAuthenticated())
	require.Empty(t, f.api.calls)
	require.Empty(t, f.store.RefreshToken())
}

func TestLogin_Success(t *testing.T) {
	f := setup(t, &fakeAPI{loginResult: okResult()})

	result, err := f.service.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	require.Equal(t, authmodel.LoginOK, result.Outcome)

	require.True(t, f.service.IsAuthenticated())
	require.Equal(t, accessToken1, f.store.AccessToken())
	require.Equal(t, refreshToken1, f.store.RefreshToken())
}

func TestLogin_TwoFactorRequired(t *testing.T) {
	f := setup(t, &fakeAPI{loginResult: &authmodel.LoginResult{
		Outcome:   authmodel.LoginTwoFactorRequired,
		Email:     testEmail,
		TempToken: testTempToken,
	}})

	_, err := f.service.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	snapshot := f.service.Snapshot()
	require.False(t, snapshot.IsAuthenticated())
	require.Equal(t, &session.PendingTwoFactor{Email: testEmail, TempToken: testTempToken}, snapshot.PendingTwoFactor)
	require.Empty(t, f.store.AccessToken())
	require.Empty(t, f.store.RefreshToken())
}

func TestLogin_EmailUnverified_NothingStored(t *testing.T) {
	f := setup(t, &fakeAPI{loginResult: &authmodel.LoginResult{
		Outcome: authmodel.LoginEmailUnverified,
		Email:   testEmail,
	}})

	_, err := f.service.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	snapshot := f.service.Snapshot()
	require.False(t, snapshot.IsAuthenticated())
	require.Nil(t, snapshot.PendingTwoFactor)
	require.Empty(t, f.store.AccessToken())
}

func TestLogin_FailureRethrown(t *testing.T) {
	f := setup(t, &fakeAPI{loginErr: &authmodel.APIError{Status: 401, Code: authmodel.CodeInvalidCredentials, Message: "nope"}})

	_, err := f.service.Login(context.Background(), testEmail, "wrong")
	require.Error(t, err)
	require.True(t, authmodel.IsCode(err, authmodel.CodeInvalidCredentials))
	require.False(t, f.service.IsAuthenticated())
}

func TestLoginWith2FA_CompletesChallenge(t *testing.T) {
	f := setup(t, &fakeAPI{
		loginResult: &authmodel.LoginResult{
			Outcome:   authmodel.LoginTwoFactorRequired,
			Email:     testEmail,
			TempToken: testTempToken,
		},
		twoFactorResult: okResult(),
	})

	_, err := f.service.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	result, err := f.service.LoginWith2FA(context.Background(), testCode)
	require.NoError(t, err)
	require.Equal(t, authmodel.LoginOK, result.Outcome)

	snapshot := f.service.Snapshot()
	require.True(t, snapshot.IsAuthenticated())
	require.Nil(t, snapshot.PendingTwoFactor)
	require.Equal(t, accessToken1, f.store.AccessToken())
	// The pending temp token was the one submitted.
	require.Contains(t, f.api.calls, "2fa:"+testTempToken+":"+testCode)
}

func TestLoginWith2FA_FailureKeepsPending(t *testing.T) {
	f := setup(t, &fakeAPI{
		loginResult: &authmodel.LoginResult{
			Outcome:   authmodel.LoginTwoFactorRequired,
			Email:     testEmail,
			TempToken: testTempToken,
		},
		twoFactorErr: errors.New("code mismatch"),
	})

	_, err := f.service.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	_, err = f.service.LoginWith2FA(context.Background(), "000000")
	require.Error(t, err)

	// State unchanged: the user can retry.
	snapshot := f.service.Snapshot()
	require.False(t, snapshot.IsAuthenticated())
	require.NotNil(t, snapshot.PendingTwoFactor)
}

func TestLoginWith2FA_WithoutPending(t *testing.T) {
	f := setup(t, &fakeAPI{})

	_, err := f.service.LoginWith2FA(context.Background(), testCode)
	require.ErrorIs(t, err, session.ErrNoPendingTwoFactor)
}

func TestRegister_AutoLogin(t *testing.T) {
	f := setup(t, &fakeAPI{registerResult: okResult()})

	result, err := f.service.Register(context.Background(), authmodel.RegisterRequest{
		Email: testEmail, Password: testPassword,
	})
	require.NoError(t, err)
	require.Equal(t, authmodel.LoginOK, result.Outcome)
	require.True(t, f.service.IsAuthenticated())
}

func TestLogout_AlwaysClears(t *testing.T) {
	f := setup(t, &fakeAPI{loginResult: okResult(), logoutErr: errors.New("backend down")})

	_, err := f.service.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	f.service.Logout(context.Background())

	require.False(t, f.service.IsAuthenticated())
	require.Empty(t, f.store.AccessToken())
	require.Empty(t, f.store.RefreshToken())
}

func TestRefreshUser_Resynchronizes(t *testing.T) {
	f := setup(t, &fakeAPI{loginResult: okResult(), meUser: &authmodel.User{
		ID: "user-1", Email: testEmail, AvatarURL: "https://cdn.example.com/avatar.png",
	}})

	_, err := f.service.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	user, err := f.service.RefreshUser(context.Background())
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/avatar.png", user.AvatarURL)
	require.Equal(t, user, f.service.CurrentUser())
}

func TestRefreshUser_FailureClearssession(t *testing.T) {
	f := setup(t, &fakeAPI{loginResult: okResult(), meErr: errors.New("boom")})

	_, err := f.service.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	_, err = f.service.RefreshUser(context.Background())
	require.Error(t, err)
	require.False(t, f.service.IsAuthenticated())
	require.Empty(t, f.store.AccessToken())
}

func TestAuxiliaryOps_GatedOnAuthenticated(t *testing.T) {
	f := setup(t, &fakeAPI{})

	require.ErrorIs(t, f.service.RequestEmailVerification(context.Background()), session.ErrNotAuthenticated)
	require.ErrorIs(t, f.service.ConfirmEmailVerification(context.Background(), "tok"), session.ErrNotAuthenticated)
	require.ErrorIs(t, f.service.ChangePassword(context.Background(), "a", "b"), session.ErrNotAuthenticated)
	require.Empty(t, f.api.calls)
}

func TestAuxiliaryOps_PassThroughWhenAuthenticated(t *testing.T) {
	f := setup(t, &fakeAPI{loginResult: okResult()})

	_, err := f.service.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	require.NoError(t, f.service.RequestEmailVerification(context.Background()))
	require.NoError(t, f.service.ConfirmEmailVerification(context.Background(), "tok"))
	require.NoError(t, f.service.ChangePassword(context.Background(), "old", "new"))
	require.True(t, f.service.IsAuthenticated())
}

func TestDerivedFlag_TracksUser(t *testing.T) {
	f := setup(t, &fakeAPI{loginResult: okResult(), logoutErr: nil})

	observed := make([]bool, 0, 4)
	unsubscribe := f.service.Subscribe(func(s session.Session) {
		// The flag must agree with the user at every observable point.
		require.Equal(t, s.User != nil, s.IsAuthenticated())
		observed = append(observed, s.IsAuthenticated())
	})
	defer unsubscribe()

	_, err := f.service.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	f.service.Logout(context.Background())

	require.Equal(t, []bool{true, false}, observed)
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	f := setup(t, &fakeAPI{loginResult: okResult()})

	notifications := 0
	unsubscribe := f.service.Subscribe(func(session.Session) { notifications++ })
	unsubscribe()

	_, err := f.service.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	require.Zero(t, notifications)
}

func TestNewService_Validation(t *testing.T) {
	store := token.NewMemoryStore()
	refresher := &fakeRefresher{store: store}

	_, err := session.NewService(nil, store, refresher)
	require.Error(t, err)
	_, err = session.NewService(&fakeAPI{}, nil, refresher)
	require.Error(t, err)
	_, err = session.NewService(&fakeAPI{}, store, nil)
	require.Error(t, err)
}

func TestCurrentUser_NilWhenAnonymous(t *testing.T) {
	f := setup(t, &fakeAPI{})

	require.Nil(t, f.service.CurrentUser())
}
