package facebook

// Package facebook verifies Facebook access tokens against the Graph API.
// Verification is two round trips: debug_token inspects the token with the
// app credential, then the user's profile is fetched with the token itself.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainauth "github.com/tinz/tinz-api/internal/domain/auth"
	apperrors "github.com/tinz/tinz-api/internal/errors"
	"github.com/tinz/tinz-api/internal/ports"
)

const defaultGraphURL = "https://graph.facebook.com"

var _ ports.ProviderVerifier = (*Verifier)(nil)

// VerifierConfig holds configuration for the Facebook Graph verifier.
type VerifierConfig struct {
	AppID     string
	AppSecret string
	// GraphURL overrides the Graph API base, for tests against httptest.
	GraphURL string
	// HTTPClient is optional and defaults to a client with a 30s timeout.
	HTTPClient *http.Client
}

// Verifier checks Facebook user access tokens.
type Verifier struct {
	appID     string
	appSecret string
	graphURL  string
	client    *http.Client
}

// NewVerifier creates a Verifier.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if cfg.AppID == "" || cfg.AppSecret == "" {
		return nil, errors.New("facebook app ID and secret are required")
	}

	graphURL := strings.TrimSuffix(cfg.GraphURL, "/")
	if graphURL == "" {
		graphURL = defaultGraphURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &Verifier{
		appID:     cfg.AppID,
		appSecret: cfg.AppSecret,
		graphURL:  graphURL,
		client:    client,
	}, nil
}

// Provider identifies this verifier.
func (v *Verifier) Provider() domainauth.SsoProvider { return domainauth.ProviderFacebook }

// Verify inspects the access token with the app credential, confirms it was
// issued to this app, then fetches the user profile. Facebook shares no email
// unless the user granted the permission; an absent email is returned empty,
// not treated as a failure.
func (v *Verifier) Verify(ctx context.Context, accessToken string) (domainauth.SsoProfile, error) {
	userID, err := v.inspectToken(ctx, accessToken)
	if err != nil {
		return domainauth.SsoProfile{}, err
	}
	return v.fetchProfile(ctx, userID, accessToken)
}

type debugTokenResponse struct {
	Data struct {
		AppID   string `json:"app_id"`
		IsValid bool   `json:"is_valid"`
		UserID  string `json:"user_id"`
	} `json:"data"`
}

func (v *Verifier) inspectToken(ctx context.Context, accessToken string) (string, error) {
	q := url.Values{}
	q.Set("input_token", accessToken)
	q.Set("access_token", v.appID+"|"+v.appSecret)

	var resp debugTokenResponse
	if err := v.getJSON(ctx, v.graphURL+"/debug_token?"+q.Encode(), &resp); err != nil {
		return "", err
	}
	if !resp.Data.IsValid || resp.Data.UserID == "" {
		return "", apperrors.New(apperrors.ErrCodeProviderToken, "facebook rejected token")
	}
	if resp.Data.AppID != v.appID {
		return "", apperrors.New(apperrors.ErrCodeProviderToken, "facebook token issued to a different app")
	}
	return resp.Data.UserID, nil
}

type profileResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (v *Verifier) fetchProfile(ctx context.Context, userID, accessToken string) (domainauth.SsoProfile, error) {
	q := url.Values{}
	q.Set("fields", "id,email,first_name,last_name")
	q.Set("access_token", accessToken)

	var resp profileResponse
	if err := v.getJSON(ctx, v.graphURL+"/"+url.PathEscape(userID)+"?"+q.Encode(), &resp); err != nil {
		return domainauth.SsoProfile{}, err
	}
	if resp.ID == "" {
		return domainauth.SsoProfile{}, apperrors.New(apperrors.ErrCodeProviderToken, "facebook returned no profile")
	}

	return domainauth.SsoProfile{
		ProviderID: resp.ID,
		Email:      resp.Email,
		FirstName:  resp.FirstName,
		LastName:   resp.LastName,
	}, nil
}

func (v *Verifier) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build graph request: %w", err)
	}

	res, err := v.client.Do(req)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeProviderToken, "facebook graph unreachable")
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeProviderToken, "read graph response")
	}
	if res.StatusCode != http.StatusOK {
		return apperrors.Newf(apperrors.ErrCodeProviderToken, "facebook graph returned status %d", res.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeProviderToken, "decode graph response")
	}
	return nil
}
