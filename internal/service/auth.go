package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/crypto/bcrypt"

	domainauth "github.com/tinz/tinz-api/internal/domain/auth"
	"github.com/tinz/tinz-api/internal/domain/model"
	apperrors "github.com/tinz/tinz-api/internal/errors"
	"github.com/tinz/tinz-api/internal/ports"
	"github.com/tinz/tinz-api/internal/token"
)

const defaultRequestTimeout = 10 * time.Second

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Identity  *IdentityService
	Shields   *ShieldGuard
	Sessions  *SessionManager
	Codec     *token.Codec
	Mail      ports.MailSender
	Verifiers []ports.ProviderVerifier

	BcryptCost     int
	RequestTimeout time.Duration
	// VerifyLinkBase is the frontend origin emailed verification links point at.
	VerifyLinkBase string

	Logger *slog.Logger
}

// AuthService orchestrates the registration, login, refresh, verification,
// and password-reset flows by composing the identity resolver, token codec,
// shield guard, and session manager. Every flow is bounded by a request-level
// timeout; a deadline hit surfaces as a retryable upstream_timeout rather
// than hanging the request.
type AuthService struct {
	identity  *IdentityService
	shields   *ShieldGuard
	sessions  *SessionManager
	codec     *token.Codec
	mail      ports.MailSender
	verifiers map[domainauth.SsoProvider]ports.ProviderVerifier

	bcryptCost     int
	requestTimeout time.Duration
	verifyLinkBase string

	logger *slog.Logger
}

// NewAuthService constructs an AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	cost := opts.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	verifiers := make(map[domainauth.SsoProvider]ports.ProviderVerifier, len(opts.Verifiers))
	for _, v := range opts.Verifiers {
		verifiers[v.Provider()] = v
	}

	return &AuthService{
		identity:       opts.Identity,
		shields:        opts.Shields,
		sessions:       opts.Sessions,
		codec:          opts.Codec,
		mail:           opts.Mail,
		verifiers:      verifiers,
		bcryptCost:     cost,
		requestTimeout: timeout,
		verifyLinkBase: opts.VerifyLinkBase,
		logger:         logger,
	}
}

// boundCtx derives the request-level deadline every external call in a flow
// runs under.
func (s *AuthService) boundCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.requestTimeout)
}

// upstream maps a deadline hit on an external call to upstream_timeout.
// Retries, if any, belong to the caller.
func upstream(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(err, apperrors.ErrCodeUpstreamTimeout, "upstream call timed out")
	}
	return err
}

// Register checks email uniqueness, stores the password hash transiently, and
// emails a verification link guarded by a fresh shield. No User row is
// created until the link is confirmed. A mail failure propagates as
// mail_delivery but does not roll back the pending hash or shield: the user
// can still complete verification before their TTLs lapse.
func (s *AuthService) Register(ctx context.Context, email, password string) error {
	ctx, cancel := s.boundCtx(ctx)
	defer cancel()

	req := model.CreateUserRequest{Email: email}
	if err := req.Validate(); err != nil {
		return apperrors.ValidationField("email", err.Error())
	}
	if err := model.ValidatePassword(password); err != nil {
		return apperrors.ValidationField("password", err.Error())
	}

	existing, err := s.identity.FindByEmail(ctx, email)
	if err != nil {
		return upstream(err)
	}
	if existing != nil {
		return apperrors.Conflict("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "hash password")
	}

	if err := s.identity.RegisterPending(ctx, email, string(hash)); err != nil {
		return upstream(err)
	}

	return upstream(s.sendVerification(ctx, model.NormalizeEmail(email), domainauth.MailRegister))
}

// ConfirmRegistration verifies an emailed validate token, consumes its shield
// exactly once, and creates the permanent User. A second click on the same
// link fails the shield check.
func (s *AuthService) ConfirmRegistration(ctx context.Context, validateToken string) (*model.User, error) {
	ctx, cancel := s.boundCtx(ctx)
	defer cancel()

	claims, err := s.codec.Verify(validateToken, domainauth.TokenValidate)
	if err != nil {
		return nil, err
	}

	if err := s.shields.CheckAndConsume(ctx, claims.Email, claims.Shield); err != nil {
		return nil, upstream(err)
	}

	user, err := s.identity.ConfirmRegistration(ctx, claims.Email)
	if err != nil {
		return nil, upstream(err)
	}
	return user, nil
}

// LoginResult is returned by Login and SSOLogin. The refresh token stays
// inside the session store; only the access token and the rotated session
// identifier leave this boundary.
type LoginResult struct {
	AccessToken string
	SessionID   string
	User        domainauth.UserProfile
}

// dummyHash is a real bcrypt digest compared against when the account lookup
// fails, so the unknown-email and wrong-password branches take similar time.
var dummyHash = []byte("$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW")

// Login authenticates an email/password pair and establishes a rotated
// session. Unknown email and wrong password both fail with the same
// invalid_credentials error so the response never discloses which.
func (s *AuthService) Login(ctx context.Context, sessionID, email, password string) (*LoginResult, error) {
	ctx, cancel := s.boundCtx(ctx)
	defer cancel()

	user, err := s.identity.FindByEmail(ctx, email)
	if err != nil {
		return nil, upstream(err)
	}
	if user == nil || user.PasswordHash == nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, apperrors.InvalidCredentials()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.InvalidCredentials()
	}

	return s.establishSession(ctx, sessionID, user)
}

// SSOLogin verifies a provider token with the provider's identity service,
// resolves the identity, and establishes a rotated session exactly as a
// password login does.
func (s *AuthService) SSOLogin(ctx context.Context, sessionID string, provider domainauth.SsoProvider, providerToken string) (*LoginResult, error) {
	ctx, cancel := s.boundCtx(ctx)
	defer cancel()

	verifier, ok := s.verifiers[provider]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrCodeConfiguration, "no verifier configured for provider %q", provider)
	}

	profile, err := verifier.Verify(ctx, providerToken)
	if err != nil {
		return nil, upstream(err)
	}

	user, err := s.identity.SSOLogin(ctx, provider, profile)
	if err != nil {
		return nil, upstream(err)
	}

	return s.establishSession(ctx, sessionID, user)
}

// establishSession is the shared tail of every successful authentication
// event: touch last-login, mint a token pair, rotate the session.
func (s *AuthService) establishSession(ctx context.Context, sessionID string, user *model.User) (*LoginResult, error) {
	if err := s.identity.TouchLastLogin(ctx, user.ID); err != nil {
		// Last-login is advisory; a failed touch never blocks the login.
		s.logger.WarnContext(ctx, "touch last login failed", "user_id", user.ID, "error", err)
	}

	profile := user.Profile()
	pair, err := s.codec.IssuePair(profile)
	if err != nil {
		return nil, err
	}

	newID, err := s.sessions.Rotate(ctx, sessionID, domainauth.Session{
		User:         profile,
		RefreshToken: pair.RefreshToken,
	})
	if err != nil {
		return nil, upstream(err)
	}

	return &LoginResult{
		AccessToken: pair.AccessToken,
		SessionID:   newID,
		User:        profile,
	}, nil
}

// Refresh mints a new token pair for the session's user. The refresh token is
// read from the session record, never from the client; its subject must match
// the session's stored user id, which defends against a stale refresh token
// surviving a session swap. No rotation happens here: refresh is not an
// authentication event.
func (s *AuthService) Refresh(ctx context.Context, sessionID string) (string, error) {
	ctx, cancel := s.boundCtx(ctx)
	defer cancel()

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return "", apperrors.TokenInvalid("no active session")
		}
		return "", upstream(err)
	}

	claims, err := s.codec.Verify(session.RefreshToken, domainauth.TokenRefresh)
	if err != nil {
		return "", err
	}
	if claims.Subject != session.User.ID {
		return "", apperrors.TokenInvalid("refresh token does not belong to this session")
	}

	pair, err := s.codec.IssuePair(session.User)
	if err != nil {
		return "", err
	}

	if err := s.sessions.UpdateRefreshToken(ctx, sessionID, pair.RefreshToken); err != nil {
		return "", upstream(err)
	}
	return pair.AccessToken, nil
}

// ResendVerification re-issues the emailed link for a registration or
// password-reset flow whose validate token has lapsed. The expired token is
// decoded without signature-freshness checks purely to recover the email; the
// shield, not the old signature, remains the authority. A live shield rejects
// the request outright.
func (s *AuthService) ResendVerification(ctx context.Context, kind domainauth.MailKind, expiredValidateToken string) error {
	ctx, cancel := s.boundCtx(ctx)
	defer cancel()

	if !kind.Valid() {
		return apperrors.Validation("unknown verification kind")
	}

	claims := s.codec.DecodeUnverified(expiredValidateToken)
	if claims == nil || claims.Email == "" {
		return apperrors.TokenInvalid("token not recognized")
	}

	return upstream(s.issueGuardedMail(ctx, claims.Email, kind))
}

// RequestPasswordReset starts the forgot-password flow for an email. An
// unknown address is reported as success so the endpoint cannot be used to
// probe which emails exist.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	ctx, cancel := s.boundCtx(ctx)
	defer cancel()

	user, err := s.identity.FindByEmail(ctx, email)
	if err != nil {
		return upstream(err)
	}
	if user == nil || user.IsSsoOnly() {
		return nil
	}

	return upstream(s.issueGuardedMail(ctx, user.Email, domainauth.MailForgot))
}

// ConfirmPasswordReset verifies the emailed validate token, consumes its
// shield exactly once, and replaces the account password.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, validateToken, newPassword string) error {
	ctx, cancel := s.boundCtx(ctx)
	defer cancel()

	if err := model.ValidatePassword(newPassword); err != nil {
		return apperrors.ValidationField("password", err.Error())
	}

	claims, err := s.codec.Verify(validateToken, domainauth.TokenValidate)
	if err != nil {
		return err
	}

	if err := s.shields.CheckAndConsume(ctx, claims.Email, claims.Shield); err != nil {
		return upstream(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "hash password")
	}

	return upstream(s.identity.UpdatePasswordByEmail(ctx, claims.Email, string(hash)))
}

// ChangePassword replaces the password for an authenticated user after
// re-verifying the current one. An SSO-only account has no password to
// verify; that case fails the same way a wrong current password does.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	ctx, cancel := s.boundCtx(ctx)
	defer cancel()

	if err := model.ValidatePassword(newPassword); err != nil {
		return apperrors.ValidationField("password", err.Error())
	}

	user, err := s.identity.FindByID(ctx, userID)
	if err != nil {
		return upstream(err)
	}
	if user.PasswordHash == nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(currentPassword))
		return apperrors.InvalidCredentials()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(currentPassword)); err != nil {
		return apperrors.InvalidCredentials()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "hash password")
	}

	return upstream(s.identity.UpdatePasswordByID(ctx, user.ID, string(hash)))
}

// Logout destroys the session server-side. Destroying an already-gone
// session is not an error.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	ctx, cancel := s.boundCtx(ctx)
	defer cancel()

	return upstream(s.sessions.Destroy(ctx, sessionID))
}

// Authenticate is the transport layer's guard primitive: it verifies an
// access token and cross-checks its subject against the live session's user.
// Role gating on top of the returned profile is a pure RoleAllowed call.
func (s *AuthService) Authenticate(ctx context.Context, sessionID, accessToken string) (*domainauth.UserProfile, error) {
	ctx, cancel := s.boundCtx(ctx)
	defer cancel()

	claims, err := s.codec.Verify(accessToken, domainauth.TokenAccess)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.TokenInvalid("no active session")
		}
		return nil, upstream(err)
	}
	if claims.Subject != session.User.ID {
		return nil, apperrors.TokenInvalid("access token does not belong to this session")
	}

	profile := session.User
	return &profile, nil
}

// issueGuardedMail is the shared resend/forgot tail: reject while a shield is
// live, otherwise issue a fresh shield and validate token and send the link.
func (s *AuthService) issueGuardedMail(ctx context.Context, email string, kind domainauth.MailKind) error {
	live, err := s.shields.IsLive(ctx, email)
	if err != nil {
		return err
	}
	if live {
		return apperrors.TooManyRequests("a verification link was sent recently, try again shortly")
	}
	return s.sendVerification(ctx, email, kind)
}

// sendVerification issues a shield + validate token and emails the link.
func (s *AuthService) sendVerification(ctx context.Context, email string, kind domainauth.MailKind) error {
	shield, err := s.shields.Issue(ctx, email)
	if err != nil {
		return err
	}

	validateToken, err := s.codec.IssueValidateToken(model.NormalizeEmail(email), shield)
	if err != nil {
		return err
	}

	subject, text, html := s.renderVerification(kind, validateToken)
	if err := s.mail.Send(ctx, email, subject, text, html); err != nil {
		s.logger.ErrorContext(ctx, "verification mail delivery failed",
			"kind", string(kind), "error", err)
		return apperrors.Wrap(err, apperrors.ErrCodeMailDelivery, "send verification mail")
	}
	return nil
}

func (s *AuthService) renderVerification(kind domainauth.MailKind, validateToken string) (subject, text, html string) {
	link := fmt.Sprintf("%s/verify/%s?token=%s", s.verifyLinkBase, kind, url.QueryEscape(validateToken))
	switch kind {
	case domainauth.MailForgot:
		subject = "Reset your password"
		text = "Follow this link to reset your password: " + link
	default:
		subject = "Confirm your email address"
		text = "Follow this link to confirm your registration: " + link
	}
	html = fmt.Sprintf(`<p>%s <a href="%s">%s</a></p>`, subject+".", link, link)
	return subject, text, html
}
