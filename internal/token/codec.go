// Package token signs, verifies, and decodes the three classes of bearer
// tokens (access, refresh, validate). Each kind is bound to an independent
// secret and lifetime so one class can be rotated without invalidating the
// others in flight.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	domainauth "github.com/tinz/tinz-api/internal/domain/auth"
	apperrors "github.com/tinz/tinz-api/internal/errors"
)

const issuer = "tinz-api"

// Claims is the payload shape shared by all token kinds. Access and refresh
// tokens carry the client-safe user projection; validate tokens carry
// {email, shield}.
type Claims struct {
	User   *domainauth.UserProfile `json:"user,omitempty"`
	Email  string                  `json:"email,omitempty"`
	Shield string                  `json:"shield,omitempty"`
	jwt.RegisteredClaims
}

// KindConfig binds a secret and lifetime to one token kind.
type KindConfig struct {
	Secret string
	TTL    time.Duration
}

// CodecOptions groups per-kind configuration for NewCodec.
type CodecOptions struct {
	Access   KindConfig
	Refresh  KindConfig
	Validate KindConfig
}

// Codec issues and verifies bearer tokens. It holds no global state; secrets
// are injected at construction.
type Codec struct {
	kinds map[domainauth.TokenKind]KindConfig
	now   func() time.Time
}

// NewCodec constructs a Codec. Secrets may be empty here; issuing or
// verifying with an unset secret fails with a configuration error so the
// caller's startup validation decides fatality.
func NewCodec(opts CodecOptions) *Codec {
	return &Codec{
		kinds: map[domainauth.TokenKind]KindConfig{
			domainauth.TokenAccess:   opts.Access,
			domainauth.TokenRefresh:  opts.Refresh,
			domainauth.TokenValidate: opts.Validate,
		},
		now: time.Now,
	}
}

// NewCodecWithClock constructs a Codec with a custom clock (useful for tests).
func NewCodecWithClock(opts CodecOptions, now func() time.Time) *Codec {
	c := NewCodec(opts)
	c.now = now
	return c
}

func (c *Codec) kindConfig(kind domainauth.TokenKind) (KindConfig, error) {
	cfg, ok := c.kinds[kind]
	if !ok {
		return KindConfig{}, apperrors.Newf(apperrors.ErrCodeConfiguration, "unknown token kind %q", kind)
	}
	if cfg.Secret == "" {
		return KindConfig{}, apperrors.Newf(apperrors.ErrCodeConfiguration, "secret for %s tokens is not configured", kind)
	}
	if cfg.TTL <= 0 {
		return KindConfig{}, apperrors.Newf(apperrors.ErrCodeConfiguration, "ttl for %s tokens must be positive", kind)
	}
	return cfg, nil
}

func (c *Codec) issue(claims Claims, kind domainauth.TokenKind) (string, error) {
	cfg, err := c.kindConfig(kind)
	if err != nil {
		return "", err
	}

	now := c.now().UTC()
	claims.RegisteredClaims.Issuer = issuer
	claims.RegisteredClaims.IssuedAt = jwt.NewNumericDate(now)
	claims.RegisteredClaims.ExpiresAt = jwt.NewNumericDate(now.Add(cfg.TTL))
	claims.RegisteredClaims.ID = uuid.NewString()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

// IssueUserToken signs the user projection as an access or refresh token.
// The subject claim is the user ID, which Refresh cross-checks against the
// session's stored user.
func (c *Codec) IssueUserToken(user domainauth.UserProfile, kind domainauth.TokenKind) (string, error) {
	if kind != domainauth.TokenAccess && kind != domainauth.TokenRefresh {
		return "", apperrors.Newf(apperrors.ErrCodeConfiguration, "user tokens cannot be of kind %q", kind)
	}
	return c.issue(Claims{
		User:             &user,
		RegisteredClaims: jwt.RegisteredClaims{Subject: user.ID},
	}, kind)
}

// Pair is an access+refresh token pair minted on authentication events.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// IssuePair mints an access and refresh token for the same user projection.
func (c *Codec) IssuePair(user domainauth.UserProfile) (Pair, error) {
	access, err := c.IssueUserToken(user, domainauth.TokenAccess)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := c.IssueUserToken(user, domainauth.TokenRefresh)
	if err != nil {
		return Pair{}, err
	}
	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}

// IssueValidateToken signs {email, shield} as a validate token for emailed
// verification links.
func (c *Codec) IssueValidateToken(email, shield string) (string, error) {
	return c.issue(Claims{
		Email:            email,
		Shield:           shield,
		RegisteredClaims: jwt.RegisteredClaims{Subject: email},
	}, domainauth.TokenValidate)
}

// Verify checks signature and expiration against the secret bound to kind.
// Verifying a token against the wrong kind's secret fails closed with a
// token_invalid error; expiry yields token_expired.
func (c *Codec) Verify(tokenStr string, kind domainauth.TokenKind) (*Claims, error) {
	cfg, err := c.kindConfig(kind)
	if err != nil {
		return nil, err
	}

	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	}, jwt.WithTimeFunc(c.now), jwt.WithIssuer(issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.Wrapf(err, apperrors.ErrCodeTokenExpired, "%s token expired", kind)
		}
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeTokenInvalid, "invalid %s token", kind)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, apperrors.Newf(apperrors.ErrCodeTokenInvalid, "invalid %s token", kind)
	}
	return claims, nil
}

// DecodeUnverified returns the payload of a token without checking signature
// or freshness, with the standard timing claims stripped. It exists only to
// route already-expired validate tokens to the correct shield lookup; the
// shield, not the signature's freshness, is the authority there. Returns nil
// on structurally invalid input, never an error.
func (c *Codec) DecodeUnverified(tokenStr string) *Claims {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenStr, claims); err != nil {
		return nil
	}
	claims.RegisteredClaims.ExpiresAt = nil
	claims.RegisteredClaims.IssuedAt = nil
	claims.RegisteredClaims.NotBefore = nil
	return claims
}
