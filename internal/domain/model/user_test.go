package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/tinz/tinz-api/internal/domain/auth"
)

func TestCreateUserRequest_Validate(t *testing.T) {
	hash := "$2a$12$abcdefghijklmnopqrstuv"

	tests := []struct {
		name    string
		req     CreateUserRequest
		wantErr bool
	}{
		{
			name: "valid password account",
			req:  CreateUserRequest{Email: "alice@example.com", PasswordHash: &hash, Role: domainauth.RoleUser},
		},
		{
			name: "valid sso namespaced account",
			req:  CreateUserRequest{Email: "sso:google:alice@example.com", Role: domainauth.RoleUser},
		},
		{
			name:    "missing email",
			req:     CreateUserRequest{PasswordHash: &hash},
			wantErr: true,
		},
		{
			name:    "malformed email",
			req:     CreateUserRequest{Email: "not-an-address"},
			wantErr: true,
		},
		{
			name:    "unknown role",
			req:     CreateUserRequest{Email: "alice@example.com", Role: domainauth.Role("owner")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestUser_Profile_OmitsPasswordHash(t *testing.T) {
	hash := "secret-hash"
	u := User{
		ID:           "u-1",
		Email:        "alice@example.com",
		PasswordHash: &hash,
		FirstName:    "Alice",
		LastName:     "Nguyen",
		Role:         domainauth.RoleUser,
	}

	p := u.Profile()
	assert.Equal(t, "u-1", p.ID)
	assert.Equal(t, "alice@example.com", p.Email)
	assert.Equal(t, domainauth.RoleUser, p.Role)
}

func TestUser_IsSsoOnly(t *testing.T) {
	hash := "h"
	assert.False(t, (&User{Email: "alice@example.com", PasswordHash: &hash}).IsSsoOnly())
	assert.True(t, (&User{Email: "sso:google:alice@example.com", PasswordHash: &hash}).IsSsoOnly())
	assert.True(t, (&User{Email: "alice@example.com"}).IsSsoOnly())
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "alice@example.com", NormalizeEmail("  Alice@Example.COM "))
}

func TestValidatePassword(t *testing.T) {
	require.Error(t, ValidatePassword("short"))
	require.NoError(t, ValidatePassword("Passw0rd1"))
}

func TestSsoEmail(t *testing.T) {
	withEmail := domainauth.SsoProfile{ProviderID: "42", Email: "Alice@Example.com"}
	assert.Equal(t, "sso:google:alice@example.com", SsoEmail(domainauth.ProviderGoogle, withEmail))

	// Facebook profiles may carry no email; fall back to the provider subject.
	noEmail := domainauth.SsoProfile{ProviderID: "fb-77"}
	assert.Equal(t, "sso:facebook:fb-77", SsoEmail(domainauth.ProviderFacebook, noEmail))
}

func TestSsoAccount_Validate(t *testing.T) {
	valid := SsoAccount{Provider: domainauth.ProviderGoogle, ProviderID: "42", UserID: "u-1"}
	require.NoError(t, valid.Validate())

	assert.Error(t, (&SsoAccount{Provider: "github", ProviderID: "42", UserID: "u-1"}).Validate())
	assert.Error(t, (&SsoAccount{Provider: domainauth.ProviderGoogle, UserID: "u-1"}).Validate())
	assert.Error(t, (&SsoAccount{Provider: domainauth.ProviderGoogle, ProviderID: "42"}).Validate())
}
