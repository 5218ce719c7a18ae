package ports

// Package ports defines interfaces (hexagonal ports) for the auth core.
// Implementations live in internal/data and internal/adapters; orchestration
// in internal/service.

import (
	"context"
	"time"

	domainauth "github.com/tinz/tinz-api/internal/domain/auth"
	"github.com/tinz/tinz-api/internal/domain/model"
)

// KVRepository is the ephemeral key-value store with per-key TTL. It backs
// session records, one-time shields, and pending-registration hashes.
// Single-key operations are individually atomic; there are no multi-key
// transactions. TTL expiry is the only eviction mechanism.
type KVRepository interface {
	// Set stores a value with the given TTL, overwriting any prior value.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get retrieves a value. Returns nil if the key doesn't exist or has
	// expired; the two are indistinguishable to callers.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a key. Returns true if the key was deleted, false if it
	// didn't exist.
	Delete(ctx context.Context, key string) (bool, error)

	// Exists checks if a key exists.
	Exists(ctx context.Context, key string) (bool, error)

	// SetTTL updates the TTL for an existing key. Returns true if the key
	// exists and the TTL was updated.
	SetTTL(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// CompareAndDelete deletes the key only if its current value equals
	// expected, as one indivisible store operation. Returns true when the
	// value matched and the key was removed. This is the primitive that makes
	// one-time shield consumption exactly-once under concurrent attempts.
	CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error)

	// Health checks the health of the store connection.
	Health(ctx context.Context) error
}

// UserRepository persists user identity records. Email uniqueness is
// enforced by the store.
type UserRepository interface {
	Create(ctx context.Context, req *model.CreateUserRequest) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	UpdatePasswordByEmail(ctx context.Context, email, passwordHash string) error
	UpdatePasswordByID(ctx context.Context, id, passwordHash string) error
	TouchLastLogin(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// SsoAccountRepository persists (provider, providerID) -> user linkages.
type SsoAccountRepository interface {
	Create(ctx context.Context, account *model.SsoAccount) error
	Find(ctx context.Context, provider domainauth.SsoProvider, providerID string) (*model.SsoAccount, error)
	Relink(ctx context.Context, provider domainauth.SsoProvider, providerID, userID string) error
}

// MailSender delivers a rendered message. Failures are non-fatal to account
// state: any shield or pending hash already written stays valid until TTL.
type MailSender interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

// ProviderVerifier checks an SSO provider token with the provider's identity
// service and returns the verified profile.
type ProviderVerifier interface {
	Provider() domainauth.SsoProvider
	Verify(ctx context.Context, token string) (domainauth.SsoProfile, error)
}
