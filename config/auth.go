package config

import (
	"time"

	apperrors "github.com/tinz/tinz-api/internal/errors"
)

const (
	minBcryptCost = 4
	maxBcryptCost = 31
	defaultBcrypt = 12
)

// JWTConfig binds an independent secret and lifetime to each token kind so
// one class can be rotated without invalidating the others in flight.
type JWTConfig struct {
	AccessSecret  string        `env:"SECRET"`
	AccessTTL     time.Duration `env:"EXPIRES_IN"          envDefault:"24h"`
	RefreshSecret string        `env:"REFRESH_SECRET"`
	RefreshTTL    time.Duration `env:"REFRESH_EXPIRES_IN"  envDefault:"168h"`
	// Validate tokens guard emailed verification links and live barely
	// longer than the shield they carry.
	ValidateSecret string        `env:"VALIDATE_SECRET"`
	ValidateTTL    time.Duration `env:"VALIDATE_EXPIRES_IN" envDefault:"40s"`
}

// GoogleSSOConfig contains Google ID-token verification configuration.
type GoogleSSOConfig struct {
	ClientID string `env:"CLIENT_ID"`
	// Issuer is overridable for tests pointing at a local OIDC issuer.
	Issuer string `env:"ISSUER" envDefault:"https://accounts.google.com"`
}

// FacebookSSOConfig contains Facebook Graph API verification configuration.
type FacebookSSOConfig struct {
	AppID     string `env:"APP_ID"`
	AppSecret string `env:"APP_SECRET"`
	GraphURL  string `env:"GRAPH_URL" envDefault:"https://graph.facebook.com"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	JWT JWTConfig `envPrefix:"JWT_"`

	// BcryptCost is the work factor applied when hashing passwords.
	BcryptCost int `env:"BCRYPT_ROUNDS" envDefault:"12"`

	// ShieldTTL bounds how long a one-time shield stays live; while live it
	// also blocks re-sending verification mail for the address.
	ShieldTTL time.Duration `env:"SHIELD_TTL" envDefault:"40s"`

	// PendingHashTTL bounds how long an unconfirmed registration keeps its
	// password hash in the KV store.
	PendingHashTTL time.Duration `env:"PENDING_HASH_TTL" envDefault:"90m"`

	// SessionTTL is the sliding lifetime of a server-side session record.
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// RequestTimeout bounds every external call made by an auth flow.
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`

	// VerifyLinkBase is the frontend origin embedded in emailed links.
	VerifyLinkBase string `env:"VERIFY_LINK_BASE" envDefault:"http://localhost:3000"`

	Google   GoogleSSOConfig   `envPrefix:"GOOGLE_"`
	Facebook FacebookSSOConfig `envPrefix:"FACEBOOK_"`
}

// Sanitize applies guardrails to auth configuration values.
func (c *AuthConfig) Sanitize() {
	if c.BcryptCost < minBcryptCost || c.BcryptCost > maxBcryptCost {
		c.BcryptCost = defaultBcrypt
	}
	if c.ShieldTTL <= 0 {
		c.ShieldTTL = 40 * time.Second
	}
	if c.PendingHashTTL <= 0 {
		c.PendingHashTTL = 90 * time.Minute
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 24 * time.Hour
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
}

// Validate rejects auth configuration the process cannot start with.
func (c *AuthConfig) Validate() error {
	if c.JWT.AccessSecret == "" {
		return apperrors.Configuration("JWT_SECRET is required")
	}
	if c.JWT.RefreshSecret == "" {
		return apperrors.Configuration("JWT_REFRESH_SECRET is required")
	}
	if c.JWT.ValidateSecret == "" {
		return apperrors.Configuration("JWT_VALIDATE_SECRET is required")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 || c.JWT.ValidateTTL <= 0 {
		return apperrors.Configuration("token lifetimes must be positive")
	}
	return nil
}
