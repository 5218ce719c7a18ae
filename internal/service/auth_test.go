package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tinz/tinz-api/internal/data"
	domainauth "github.com/tinz/tinz-api/internal/domain/auth"
	"github.com/tinz/tinz-api/internal/domain/model"
	apperrors "github.com/tinz/tinz-api/internal/errors"
	mocks "github.com/tinz/tinz-api/internal/mocks/auth"
	"github.com/tinz/tinz-api/internal/ports"
	"github.com/tinz/tinz-api/internal/token"
)

type authFixture struct {
	now time.Time

	kv      *mocks.MemoryKV
	users   *mocks.MemoryUserRepo
	ssoRepo *mocks.MemorySsoAccountRepo
	mail    *mocks.CaptureMailSender
	google  *mocks.ScriptedVerifier

	codec    *token.Codec
	sessions *SessionManager
	svc      *AuthService
}

func newAuthFixture() *authFixture {
	f := &authFixture{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }

	f.kv = mocks.NewMemoryKVWithClock(clock)
	f.users = mocks.NewMemoryUserRepo()
	f.ssoRepo = mocks.NewMemorySsoAccountRepo()
	f.mail = mocks.NewCaptureMailSender()
	f.google = mocks.NewScriptedVerifier(domainauth.ProviderGoogle)

	f.codec = token.NewCodecWithClock(token.CodecOptions{
		Access:   token.KindConfig{Secret: "access-secret", TTL: 24 * time.Hour},
		Refresh:  token.KindConfig{Secret: "refresh-secret", TTL: 168 * time.Hour},
		Validate: token.KindConfig{Secret: "validate-secret", TTL: 40 * time.Second},
	}, clock)

	identity := NewIdentityService(IdentityServiceOptions{
		Users:       f.users,
		SsoAccounts: f.ssoRepo,
		KV:          f.kv,
		PendingTTL:  90 * time.Minute,
	})
	shields := NewShieldGuard(f.kv, 40*time.Second)
	f.sessions = NewSessionManager(f.kv, 24*time.Hour)

	f.svc = NewAuthService(AuthServiceOptions{
		Identity:       identity,
		Shields:        shields,
		Sessions:       f.sessions,
		Codec:          f.codec,
		Mail:           f.mail,
		Verifiers:      []ports.ProviderVerifier{f.google},
		BcryptCost:     bcrypt.MinCost,
		RequestTimeout: 5 * time.Second,
		VerifyLinkBase: "http://localhost:3000",
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return f
}

// mailedToken extracts the validate token from a captured verification mail.
func mailedToken(t *testing.T, m mocks.SentMail) string {
	t.Helper()
	i := strings.LastIndex(m.Text, ": ")
	require.NotEqual(t, -1, i, "mail text carries the link after a colon")
	link, err := url.Parse(strings.TrimSpace(m.Text[i+2:]))
	require.NoError(t, err)
	tok := link.Query().Get("token")
	require.NotEmpty(t, tok)
	return tok
}

// seedUser creates a confirmed password account directly in the fake repo.
func (f *authFixture) seedUser(t *testing.T, email, password string) *model.User {
	t.Helper()
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	hash := string(hashBytes)
	user, err := f.users.Create(context.Background(), &model.CreateUserRequest{
		Email:        email,
		PasswordHash: &hash,
		FirstName:    "Alice",
		LastName:     "Smith",
	})
	require.NoError(t, err)
	return user
}

func TestAuthService_RegisterAndConfirm(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.Register(ctx, "alice@example.com", "Passw0rd1"))

	// Pending hash and shield exist, no user yet.
	assert.Equal(t, 0, f.users.Count())
	hash, err := f.kv.Get(ctx, data.PendingHashKey("alice@example.com"))
	require.NoError(t, err)
	assert.NotNil(t, hash)
	live, err := f.kv.Exists(ctx, data.ShieldKey("alice@example.com"))
	require.NoError(t, err)
	assert.True(t, live)

	sent, ok := f.mail.Last()
	require.True(t, ok)
	assert.Equal(t, "alice@example.com", sent.To)
	validateToken := mailedToken(t, sent)

	user, err := f.svc.ConfirmRegistration(ctx, validateToken)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, 1, f.users.Count())

	// Both transient records are gone.
	hash, err = f.kv.Get(ctx, data.PendingHashKey("alice@example.com"))
	require.NoError(t, err)
	assert.Nil(t, hash)
	live, err = f.kv.Exists(ctx, data.ShieldKey("alice@example.com"))
	require.NoError(t, err)
	assert.False(t, live)

	// Clicking the link a second time fails the shield check.
	_, err = f.svc.ConfirmRegistration(ctx, validateToken)
	require.Error(t, err)
	assert.True(t, apperrors.IsShieldMismatch(err))
	assert.Equal(t, 1, f.users.Count())
}

func TestAuthService_RegisterDuplicateEmail(t *testing.T) {
	f := newAuthFixture()
	f.seedUser(t, "alice@example.com", "Passw0rd1")

	err := f.svc.Register(context.Background(), "alice@example.com", "Passw0rd1")
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestAuthService_RegisterValidation(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "malformed email", email: "not-an-email", password: "Passw0rd1"},
		{name: "empty email", email: "", password: "Passw0rd1"},
		{name: "short password", email: "alice@example.com", password: "short"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.Register(ctx, tt.email, tt.password)
			assert.True(t, apperrors.IsValidation(err))
		})
	}
}

func TestAuthService_RegisterMailFailureKeepsState(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	f.mail.Err = errors.New("relay unreachable")

	err := f.svc.Register(ctx, "alice@example.com", "Passw0rd1")
	require.Error(t, err)
	assert.True(t, apperrors.IsMailDelivery(err))

	// Shield and pending hash survive the delivery failure.
	live, err := f.kv.Exists(ctx, data.ShieldKey("alice@example.com"))
	require.NoError(t, err)
	assert.True(t, live)
	hash, err := f.kv.Get(ctx, data.PendingHashKey("alice@example.com"))
	require.NoError(t, err)
	assert.NotNil(t, hash)
}

func TestAuthService_LoginSuccess(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	user := f.seedUser(t, "alice@example.com", "Passw0rd1")

	result, err := f.svc.Login(ctx, "", "alice@example.com", "Passw0rd1")
	require.NoError(t, err)
	require.NotEmpty(t, result.SessionID)
	assert.Equal(t, user.ID, result.User.ID)

	claims, err := f.codec.Verify(result.AccessToken, domainauth.TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.Subject)

	session, err := f.sessions.Get(ctx, result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.User.ID)
	assert.NotEmpty(t, session.RefreshToken)
	assert.NotEqual(t, result.AccessToken, session.RefreshToken)

	reloaded, err := f.users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotNil(t, reloaded.LastLogin)
}

func TestAuthService_LoginRotatesSession(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	f.seedUser(t, "alice@example.com", "Passw0rd1")

	first, err := f.svc.Login(ctx, "", "alice@example.com", "Passw0rd1")
	require.NoError(t, err)

	second, err := f.svc.Login(ctx, first.SessionID, "alice@example.com", "Passw0rd1")
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionID, second.SessionID)

	_, err = f.sessions.Get(ctx, first.SessionID)
	assert.True(t, apperrors.IsNotFound(err), "the pre-login identifier never survives")
}

func TestAuthService_LoginInvalidCredentials(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	f.seedUser(t, "alice@example.com", "Passw0rd1")

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "unknown email", email: "nobody@example.com", password: "Passw0rd1"},
		{name: "wrong password", email: "alice@example.com", password: "WrongPass1"},
	}
	var messages []string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Login(ctx, "", tt.email, tt.password)
			require.Error(t, err)
			assert.True(t, apperrors.IsInvalidCredentials(err))
			messages = append(messages, err.Error())
		})
	}
	require.Len(t, messages, 2)
	assert.Equal(t, messages[0], messages[1], "responses never disclose which check failed")
}

func TestAuthService_LoginSsoOnlyAccount(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	_, err := f.users.Create(ctx, &model.CreateUserRequest{Email: "sso:google:alice@example.com"})
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "", "sso:google:alice@example.com", "Passw0rd1")
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidCredentials(err))
}

func TestAuthService_Refresh(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	f.seedUser(t, "alice@example.com", "Passw0rd1")

	login, err := f.svc.Login(ctx, "", "alice@example.com", "Passw0rd1")
	require.NoError(t, err)
	before, err := f.sessions.Get(ctx, login.SessionID)
	require.NoError(t, err)

	access, err := f.svc.Refresh(ctx, login.SessionID)
	require.NoError(t, err)
	require.NotEmpty(t, access)

	claims, err := f.codec.Verify(access, domainauth.TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, login.User.ID, claims.Subject)

	// Same identifier, new refresh token: refresh is not a rotation.
	after, err := f.sessions.Get(ctx, login.SessionID)
	require.NoError(t, err)
	assert.NotEqual(t, before.RefreshToken, after.RefreshToken)
}

func TestAuthService_RefreshSubjectMismatch(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	// A session whose stored refresh token belongs to a different user.
	stale, err := f.codec.IssueUserToken(domainauth.UserProfile{ID: "someone-else"}, domainauth.TokenRefresh)
	require.NoError(t, err)
	sessionID, err := f.sessions.Rotate(ctx, "", domainauth.Session{
		User:         domainauth.UserProfile{ID: "user-1", Role: domainauth.RoleUser},
		RefreshToken: stale,
	})
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, sessionID)
	require.Error(t, err)
	assert.True(t, apperrors.IsTokenInvalid(err))
}

func TestAuthService_RefreshNoSession(t *testing.T) {
	f := newAuthFixture()

	_, err := f.svc.Refresh(context.Background(), "never-existed")
	require.Error(t, err)
	assert.True(t, apperrors.IsTokenInvalid(err))
}

func TestAuthService_LogoutIdempotent(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	f.seedUser(t, "alice@example.com", "Passw0rd1")

	login, err := f.svc.Login(ctx, "", "alice@example.com", "Passw0rd1")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, login.SessionID))
	_, err = f.sessions.Get(ctx, login.SessionID)
	assert.True(t, apperrors.IsNotFound(err))

	require.NoError(t, f.svc.Logout(ctx, login.SessionID), "second logout is not an error")
}

func TestAuthService_SSOLogin(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	f.google.Accept("good-token", domainauth.SsoProfile{
		ProviderID: "42",
		Email:      "alice@example.com",
		FirstName:  "Alice",
	})

	first, err := f.svc.SSOLogin(ctx, "", domainauth.ProviderGoogle, "good-token")
	require.NoError(t, err)
	assert.Equal(t, 1, f.users.Count())
	assert.Equal(t, 1, f.ssoRepo.Count())

	claims, err := f.codec.Verify(first.AccessToken, domainauth.TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, claims.Subject)

	// Repeat login reuses the user and rotates the session.
	second, err := f.svc.SSOLogin(ctx, first.SessionID, domainauth.ProviderGoogle, "good-token")
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID)
	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.Equal(t, 1, f.users.Count())
	assert.Equal(t, 1, f.ssoRepo.Count())
}

func TestAuthService_SSOLoginRejectedToken(t *testing.T) {
	f := newAuthFixture()

	_, err := f.svc.SSOLogin(context.Background(), "", domainauth.ProviderGoogle, "bad-token")
	require.Error(t, err)
	assert.True(t, apperrors.IsProviderToken(err))
}

func TestAuthService_SSOLoginUnconfiguredProvider(t *testing.T) {
	f := newAuthFixture()

	_, err := f.svc.SSOLogin(context.Background(), "", domainauth.ProviderFacebook, "token")
	require.Error(t, err)
	assert.True(t, apperrors.IsConfiguration(err))
}

func TestAuthService_ResendVerificationGatedByLiveShield(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.Register(ctx, "alice@example.com", "Passw0rd1"))
	sent, ok := f.mail.Last()
	require.True(t, ok)
	validateToken := mailedToken(t, sent)

	// The first shield is still live.
	err := f.svc.ResendVerification(ctx, domainauth.MailRegister, validateToken)
	require.Error(t, err)
	assert.True(t, apperrors.IsTooManyRequests(err))
	assert.Len(t, f.mail.Sent(), 1, "no second shield is issued while the first lives")

	// After the shield lapses the resend goes through, expired token and all.
	f.now = f.now.Add(41 * time.Second)
	require.NoError(t, f.svc.ResendVerification(ctx, domainauth.MailRegister, validateToken))
	assert.Len(t, f.mail.Sent(), 2)

	// The re-mailed link completes the registration.
	resent, ok := f.mail.Last()
	require.True(t, ok)
	user, err := f.svc.ConfirmRegistration(ctx, mailedToken(t, resent))
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
}

func TestAuthService_ResendVerificationBadToken(t *testing.T) {
	f := newAuthFixture()

	err := f.svc.ResendVerification(context.Background(), domainauth.MailRegister, "garbage")
	require.Error(t, err)
	assert.True(t, apperrors.IsTokenInvalid(err))
}

func TestAuthService_PasswordResetFlow(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	f.seedUser(t, "alice@example.com", "OldPassw0rd")

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "alice@example.com"))
	sent, ok := f.mail.Last()
	require.True(t, ok)
	resetToken := mailedToken(t, sent)

	require.NoError(t, f.svc.ConfirmPasswordReset(ctx, resetToken, "NewPassw0rd"))

	_, err := f.svc.Login(ctx, "", "alice@example.com", "OldPassw0rd")
	assert.True(t, apperrors.IsInvalidCredentials(err))
	_, err = f.svc.Login(ctx, "", "alice@example.com", "NewPassw0rd")
	assert.NoError(t, err)

	// The reset link is single use.
	err = f.svc.ConfirmPasswordReset(ctx, resetToken, "AnotherPass1")
	require.Error(t, err)
	assert.True(t, apperrors.IsShieldMismatch(err))
}

func TestAuthService_ChangePassword(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	user := f.seedUser(t, "alice@example.com", "OldPassw0rd")

	require.NoError(t, f.svc.ChangePassword(ctx, user.ID, "OldPassw0rd", "NewPassw0rd"))

	_, err := f.svc.Login(ctx, "", "alice@example.com", "OldPassw0rd")
	assert.True(t, apperrors.IsInvalidCredentials(err))
	_, err = f.svc.Login(ctx, "", "alice@example.com", "NewPassw0rd")
	assert.NoError(t, err)
}

func TestAuthService_ChangePasswordWrongCurrent(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	user := f.seedUser(t, "alice@example.com", "OldPassw0rd")

	err := f.svc.ChangePassword(ctx, user.ID, "guess", "NewPassw0rd")
	assert.True(t, apperrors.IsInvalidCredentials(err))

	// Old password still works.
	_, err = f.svc.Login(ctx, "", "alice@example.com", "OldPassw0rd")
	assert.NoError(t, err)
}

func TestAuthService_ChangePasswordWeakNew(t *testing.T) {
	f := newAuthFixture()
	user := f.seedUser(t, "alice@example.com", "OldPassw0rd")

	err := f.svc.ChangePassword(context.Background(), user.ID, "OldPassw0rd", "x")
	assert.True(t, apperrors.IsValidation(err))
}

func TestAuthService_ChangePasswordSsoOnly(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	f.google.Accept("good-token", domainauth.SsoProfile{
		ProviderID: "42",
		Email:      "alice@example.com",
	})
	result, err := f.svc.SSOLogin(ctx, "", domainauth.ProviderGoogle, "good-token")
	require.NoError(t, err)

	// No password on the account, nothing to re-verify.
	err = f.svc.ChangePassword(ctx, result.User.ID, "anything", "NewPassw0rd")
	assert.True(t, apperrors.IsInvalidCredentials(err))
}

func TestAuthService_PasswordResetUnknownEmail(t *testing.T) {
	f := newAuthFixture()

	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "nobody@example.com"),
		"unknown addresses are reported as success")
	assert.Empty(t, f.mail.Sent())
}

func TestAuthService_PasswordResetWhileShieldLive(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	f.seedUser(t, "alice@example.com", "Passw0rd1")

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "alice@example.com"))

	err := f.svc.RequestPasswordReset(ctx, "alice@example.com")
	require.Error(t, err)
	assert.True(t, apperrors.IsTooManyRequests(err))
	assert.Len(t, f.mail.Sent(), 1)
}

func TestAuthService_ConfirmPasswordResetExpiredToken(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	f.seedUser(t, "alice@example.com", "Passw0rd1")

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "alice@example.com"))
	sent, ok := f.mail.Last()
	require.True(t, ok)
	resetToken := mailedToken(t, sent)

	f.now = f.now.Add(41 * time.Second)
	err := f.svc.ConfirmPasswordReset(ctx, resetToken, "NewPassw0rd")
	require.Error(t, err)
	assert.True(t, apperrors.IsTokenExpired(err), "an expired link must be re-requested, not honored")
}

func TestAuthService_Authenticate(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	user := f.seedUser(t, "alice@example.com", "Passw0rd1")

	login, err := f.svc.Login(ctx, "", "alice@example.com", "Passw0rd1")
	require.NoError(t, err)

	profile, err := f.svc.Authenticate(ctx, login.SessionID, login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, profile.ID)

	// A token minted for someone else fails the session cross-check.
	foreign, err := f.codec.IssueUserToken(domainauth.UserProfile{ID: "someone-else"}, domainauth.TokenAccess)
	require.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, login.SessionID, foreign)
	assert.True(t, apperrors.IsTokenInvalid(err))

	// No live session at all.
	_, err = f.svc.Authenticate(ctx, "never-existed", login.AccessToken)
	assert.True(t, apperrors.IsTokenInvalid(err))
}
