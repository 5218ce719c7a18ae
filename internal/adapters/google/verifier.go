package google

// Package google verifies Google ID tokens against Google's OIDC issuer and
// maps their claims onto the provider-neutral SsoProfile.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	domainauth "github.com/tinz/tinz-api/internal/domain/auth"
	apperrors "github.com/tinz/tinz-api/internal/errors"
	"github.com/tinz/tinz-api/internal/ports"
)

const defaultIssuer = "https://accounts.google.com"

var _ ports.ProviderVerifier = (*Verifier)(nil)

// VerifierConfig holds configuration for the Google ID-token verifier.
type VerifierConfig struct {
	// ClientID is the OAuth client the ID token must be issued to.
	ClientID string
	// Issuer overrides the Google issuer, for tests against a local OIDC
	// server.
	Issuer string
	// HTTPClient is optional and defaults to a client with a 30s timeout.
	HTTPClient *http.Client
}

// Verifier checks Google ID tokens using the issuer's published JWKS.
type Verifier struct {
	verifier *gooidc.IDTokenVerifier
}

// NewVerifier creates a Verifier. The issuer's discovery document is fetched
// once at construction.
func NewVerifier(ctx context.Context, cfg VerifierConfig) (*Verifier, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("google client ID is required")
	}

	issuer := cfg.Issuer
	if issuer == "" {
		issuer = defaultIssuer
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	provider, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	return &Verifier{
		verifier: provider.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

// Provider identifies this verifier.
func (v *Verifier) Provider() domainauth.SsoProvider { return domainauth.ProviderGoogle }

// Verify checks the ID token's signature, issuer, audience, and expiry, and
// returns the embedded profile. Any rejection surfaces as provider_token. An
// unverified email claim is dropped rather than trusted.
func (v *Verifier) Verify(ctx context.Context, idToken string) (domainauth.SsoProfile, error) {
	token, err := v.verifier.Verify(ctx, idToken)
	if err != nil {
		return domainauth.SsoProfile{}, apperrors.Wrap(err, apperrors.ErrCodeProviderToken, "google rejected token")
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		GivenName     string `json:"given_name"`
		FamilyName    string `json:"family_name"`
	}
	if err := token.Claims(&claims); err != nil {
		return domainauth.SsoProfile{}, apperrors.Wrap(err, apperrors.ErrCodeProviderToken, "decode google claims")
	}

	email := claims.Email
	if !claims.EmailVerified {
		email = ""
	}

	return domainauth.SsoProfile{
		ProviderID: token.Subject,
		Email:      email,
		FirstName:  claims.GivenName,
		LastName:   claims.FamilyName,
	}, nil
}
