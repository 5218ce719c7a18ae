package service

import (
	"context"
	"time"

	"github.com/tinz/tinz-api/internal/data"
	"github.com/tinz/tinz-api/internal/data/cryptoutil"
	domainauth "github.com/tinz/tinz-api/internal/domain/auth"
	"github.com/tinz/tinz-api/internal/domain/model"
	apperrors "github.com/tinz/tinz-api/internal/errors"
	"github.com/tinz/tinz-api/internal/ports"
)

const defaultPendingHashTTL = 90 * time.Minute

// IdentityServiceOptions groups dependencies for IdentityService.
type IdentityServiceOptions struct {
	Users       ports.UserRepository
	SsoAccounts ports.SsoAccountRepository
	KV          ports.KVRepository
	Encryptor   cryptoutil.Encryptor
	PendingTTL  time.Duration
}

// IdentityService reconciles password and SSO identities into user records.
// Registration defers the User row until email verification succeeds; the
// password hash waits in the KV store under `hash:<email>` until then.
type IdentityService struct {
	users       ports.UserRepository
	ssoAccounts ports.SsoAccountRepository
	kv          ports.KVRepository
	encryptor   cryptoutil.Encryptor
	pendingTTL  time.Duration
}

// NewIdentityService constructs an IdentityService.
func NewIdentityService(opts IdentityServiceOptions) *IdentityService {
	enc := opts.Encryptor
	if enc == nil {
		enc = cryptoutil.NoopEncryptor{}
	}
	ttl := opts.PendingTTL
	if ttl <= 0 {
		ttl = defaultPendingHashTTL
	}
	return &IdentityService{
		users:       opts.Users,
		ssoAccounts: opts.SsoAccounts,
		kv:          opts.KV,
		encryptor:   enc,
		pendingTTL:  ttl,
	}
}

// FindByEmail looks up a user by normalized email. Returns nil without error
// when no such user exists.
func (s *IdentityService) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := s.users.FindByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// FindByID looks up a user by id, or returns a not_found error.
func (s *IdentityService) FindByID(ctx context.Context, id string) (*model.User, error) {
	return s.users.FindByID(ctx, id)
}

// RegisterPending stores a password hash transiently without creating a User
// row. The account must not exist until email verification succeeds; if the
// hash expires unconsumed the registration lapses.
func (s *IdentityService) RegisterPending(ctx context.Context, email, passwordHash string) error {
	sealed, err := s.encryptor.Encrypt([]byte(passwordHash))
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "seal pending hash")
	}

	key := data.PendingHashKey(model.NormalizeEmail(email))
	if err := s.kv.Set(ctx, key, []byte(sealed), s.pendingTTL); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "store pending hash")
	}
	return nil
}

// ConfirmRegistration consumes the pending hash for the email and creates the
// permanent User. A lapsed pending hash yields token_expired: the link was
// genuine but the registration behind it no longer exists.
func (s *IdentityService) ConfirmRegistration(ctx context.Context, email string) (*model.User, error) {
	normalized := model.NormalizeEmail(email)
	key := data.PendingHashKey(normalized)

	sealed, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "load pending hash")
	}
	if sealed == nil {
		return nil, apperrors.TokenExpired("registration expired, please register again")
	}

	hash, err := s.encryptor.Decrypt(string(sealed))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "unseal pending hash")
	}

	hashStr := string(hash)
	user, err := s.users.Create(ctx, &model.CreateUserRequest{
		Email:        normalized,
		PasswordHash: &hashStr,
		Role:         domainauth.RoleUser,
	})
	if err != nil {
		return nil, err
	}

	// Consumed. A delete failure here leaves a spent hash to lapse on its
	// own TTL; the created user is already authoritative.
	if _, err := s.kv.Delete(ctx, key); err != nil {
		return user, nil
	}
	return user, nil
}

// SSOLogin resolves a verified provider profile to a user record. A known
// (provider, providerID) pair loads its linked user; a never-seen pair
// creates a fresh namespaced User and then the SsoAccount linking it, in that
// order. A failure between the two creations leaves an orphan User that is
// not retried here.
func (s *IdentityService) SSOLogin(ctx context.Context, provider domainauth.SsoProvider, profile domainauth.SsoProfile) (*model.User, error) {
	if !provider.Valid() {
		return nil, apperrors.Validation("unsupported sso provider")
	}
	if profile.ProviderID == "" {
		return nil, apperrors.New(apperrors.ErrCodeProviderToken, "provider returned no subject identifier")
	}

	account, err := s.ssoAccounts.Find(ctx, provider, profile.ProviderID)
	if err == nil {
		return s.users.FindByID(ctx, account.UserID)
	}
	if !apperrors.IsNotFound(err) {
		return nil, err
	}

	user, err := s.users.Create(ctx, &model.CreateUserRequest{
		Email:     model.SsoEmail(provider, profile),
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
		Role:      domainauth.RoleUser,
	})
	if err != nil {
		return nil, err
	}

	if err := s.ssoAccounts.Create(ctx, &model.SsoAccount{
		Provider:   provider,
		ProviderID: profile.ProviderID,
		UserID:     user.ID,
	}); err != nil {
		return nil, err
	}
	return user, nil
}

// LinkProvider re-points an existing SSO linkage at a password account and
// removes the SSO-only User the linkage created. This is an explicit,
// user-confirmed step; it is never performed silently during login.
func (s *IdentityService) LinkProvider(ctx context.Context, provider domainauth.SsoProvider, providerID, userID string) error {
	if !provider.Valid() {
		return apperrors.Validation("unsupported sso provider")
	}

	target, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	account, err := s.ssoAccounts.Find(ctx, provider, providerID)
	if err != nil {
		return err
	}
	if account.UserID == target.ID {
		return nil
	}

	orphan, err := s.users.FindByID(ctx, account.UserID)
	if err != nil && !apperrors.IsNotFound(err) {
		return err
	}

	if err := s.ssoAccounts.Relink(ctx, provider, providerID, target.ID); err != nil {
		return err
	}

	// Only an SSO-only record is removable: a password account reached via
	// an old linkage must survive the relink.
	if orphan != nil && orphan.IsSsoOnly() {
		if err := s.users.Delete(ctx, orphan.ID); err != nil && !apperrors.IsNotFound(err) {
			return err
		}
	}
	return nil
}

// UpdatePasswordByEmail replaces the password hash for the account with the
// given email.
func (s *IdentityService) UpdatePasswordByEmail(ctx context.Context, email, passwordHash string) error {
	return s.users.UpdatePasswordByEmail(ctx, model.NormalizeEmail(email), passwordHash)
}

// UpdatePasswordByID replaces the password hash for the account with the
// given id.
func (s *IdentityService) UpdatePasswordByID(ctx context.Context, id, passwordHash string) error {
	return s.users.UpdatePasswordByID(ctx, id, passwordHash)
}

// TouchLastLogin records a successful authentication on the user row.
func (s *IdentityService) TouchLastLogin(ctx context.Context, id string) error {
	return s.users.TouchLastLogin(ctx, id)
}
