package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/tinz/tinz-api/internal/domain/auth"
	apperrors "github.com/tinz/tinz-api/internal/errors"
)

// newDiscoveryServer serves a minimal OIDC discovery document pointing back
// at itself.
func newDiscoveryServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{
			"issuer": %q,
			"authorization_endpoint": %q,
			"token_endpoint": %q,
			"jwks_uri": %q
		}`, server.URL, server.URL+"/auth", server.URL+"/token", server.URL+"/keys")
	})
	mux.HandleFunc("/keys", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []any{}})
	})
	return server
}

func TestNewVerifier_Success(t *testing.T) {
	server := newDiscoveryServer(t)

	v, err := NewVerifier(context.Background(), VerifierConfig{
		ClientID: "client-123",
		Issuer:   server.URL,
	})
	require.NoError(t, err)
	assert.Equal(t, domainauth.ProviderGoogle, v.Provider())
}

func TestNewVerifier_MissingClientID(t *testing.T) {
	_, err := NewVerifier(context.Background(), VerifierConfig{})
	require.Error(t, err)
}

func TestNewVerifier_UnreachableIssuer(t *testing.T) {
	_, err := NewVerifier(context.Background(), VerifierConfig{
		ClientID: "client-123",
		Issuer:   "http://127.0.0.1:1",
	})
	require.Error(t, err)
}

func TestVerifier_VerifyRejectsGarbage(t *testing.T) {
	server := newDiscoveryServer(t)

	v, err := NewVerifier(context.Background(), VerifierConfig{
		ClientID: "client-123",
		Issuer:   server.URL,
	})
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), "not-a-jwt")
	require.Error(t, err)
	assert.True(t, apperrors.IsProviderToken(err))
}
