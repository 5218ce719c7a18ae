//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	domainauth "github.com/tinz/tinz-api/internal/domain/auth"
)

const (
	maxEmailLen    = 255
	maxNameLen     = 100
	minPasswordLen = 8
)

// SsoEmailPrefix namespaces SSO-created accounts so a first SSO sight never
// collides with a password account sharing the same real email. Merging the
// two is an explicit, user-confirmed linking step (IdentityService.LinkProvider).
const SsoEmailPrefix = "sso:"

// User is the identity record backed by the credential store.
// PasswordHash is nil for SSO-only accounts.
type User struct {
	ID           string          `json:"id"          db:"id"`
	Email        string          `json:"email"       db:"email"`
	PasswordHash *string         `json:"-"           db:"password_hash"`
	FirstName    string          `json:"first_name"  db:"first_name"`
	LastName     string          `json:"last_name"   db:"last_name"`
	Role         domainauth.Role `json:"role"        db:"role"`
	IsActive     bool            `json:"is_active"   db:"is_active"`
	CreatedAt    time.Time       `json:"created_at"  db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"  db:"updated_at"`
	LastLogin    *time.Time      `json:"last_login,omitempty" db:"last_login"`
}

// Profile returns the client-safe projection carried in tokens and sessions.
func (u *User) Profile() domainauth.UserProfile {
	return domainauth.UserProfile{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
	}
}

// IsSsoOnly reports whether the account was created from an SSO identity and
// has no usable password.
func (u *User) IsSsoOnly() bool {
	return u.PasswordHash == nil || strings.HasPrefix(u.Email, SsoEmailPrefix)
}

// CreateUserRequest carries the fields needed to insert a user.
type CreateUserRequest struct {
	Email        string
	PasswordHash *string
	FirstName    string
	LastName     string
	Role         domainauth.Role
}

// Validate checks the request fields.
func (r *CreateUserRequest) Validate() error {
	email := strings.TrimSpace(r.Email)
	if email == "" {
		return errors.New("email is required")
	}
	if len(email) > maxEmailLen {
		return errors.New("email exceeds maximum length")
	}
	// SSO-namespaced addresses are synthetic and skip RFC parsing.
	if !strings.HasPrefix(email, SsoEmailPrefix) {
		if _, err := mail.ParseAddress(email); err != nil {
			return errors.New("email is not a valid address")
		}
	}
	if len(r.FirstName) > maxNameLen || len(r.LastName) > maxNameLen {
		return errors.New("name exceeds maximum length")
	}
	if r.Role != "" && !r.Role.Valid() {
		return errors.New("role is not valid")
	}
	return nil
}

// NormalizeEmail lowercases and trims an email for lookup and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidatePassword enforces the minimum plaintext password policy before hashing.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLen {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}

// SsoAccount maps (provider, providerID) to a user. The composite key is
// unique; a user may have multiple linked providers.
type SsoAccount struct {
	Provider   domainauth.SsoProvider `json:"provider"    db:"provider"`
	ProviderID string                 `json:"provider_id" db:"provider_id"`
	UserID     string                 `json:"user_id"     db:"user_id"`
	CreatedAt  time.Time              `json:"created_at"  db:"created_at"`
}

// Validate checks the SSO account linkage fields.
func (a *SsoAccount) Validate() error {
	if !a.Provider.Valid() {
		return errors.New("provider is not supported")
	}
	if strings.TrimSpace(a.ProviderID) == "" {
		return errors.New("provider id is required")
	}
	if strings.TrimSpace(a.UserID) == "" {
		return errors.New("user id is required")
	}
	return nil
}

// SsoEmail builds the namespaced email stored for an SSO-created account.
// Falls back to the provider subject when the provider shares no email.
func SsoEmail(provider domainauth.SsoProvider, profile domainauth.SsoProfile) string {
	if profile.Email != "" {
		return SsoEmailPrefix + string(provider) + ":" + NormalizeEmail(profile.Email)
	}
	return SsoEmailPrefix + string(provider) + ":" + profile.ProviderID
}
