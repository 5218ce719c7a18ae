package auth

// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.

import "time"

// Role represents an application's authorization role.
// Keep string form for easy persistence and token claims.
// Valid values are defined as constants below.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

// Valid reports whether r is one of the closed set of roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleGuest:
		return true
	}
	return false
}

// RoleAllowed reports whether actor satisfies the required roles.
// An empty required list allows any authenticated role. Pure function,
// independent of persistence.
func RoleAllowed(actor Role, required ...Role) bool {
	if !actor.Valid() {
		return false
	}
	if len(required) == 0 {
		return true
	}
	for _, r := range required {
		if actor == r {
			return true
		}
	}
	return false
}

// TokenKind selects the secret and lifetime a bearer token is bound to.
type TokenKind string

const (
	// TokenAccess is the short-lived credential sent per request.
	TokenAccess TokenKind = "access"
	// TokenRefresh is the long-lived credential that never leaves the
	// session store boundary.
	TokenRefresh TokenKind = "refresh"
	// TokenValidate is the very-short-lived credential embedded in emailed
	// verification links, carrying {email, shield}.
	TokenValidate TokenKind = "validate"
)

// Valid reports whether k is a known token kind.
func (k TokenKind) Valid() bool {
	switch k {
	case TokenAccess, TokenRefresh, TokenValidate:
		return true
	}
	return false
}

// MailKind distinguishes the verification flows that send emailed links.
type MailKind string

const (
	MailRegister MailKind = "register"
	MailForgot   MailKind = "forgot"
)

// Valid reports whether k is a known mail kind.
func (k MailKind) Valid() bool {
	return k == MailRegister || k == MailForgot
}

// UserProfile is the client-safe projection of a user carried in access
// tokens and session records. It never includes the password hash.
type UserProfile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      Role   `json:"role"`
}

// Session is the server-side record persisted for an authenticated browser
// session. The identifier itself is the KV key suffix and is minted fresh on
// every rotation; it is not part of the stored value.
type Session struct {
	User         UserProfile `json:"user"`
	RefreshToken string      `json:"refreshToken"`
}

// SsoProvider identifies a supported single sign-on provider.
type SsoProvider string

const (
	ProviderGoogle   SsoProvider = "google"
	ProviderFacebook SsoProvider = "facebook"
)

// Valid reports whether p is a supported provider.
func (p SsoProvider) Valid() bool {
	return p == ProviderGoogle || p == ProviderFacebook
}

// SsoProfile is the identity returned by a provider verifier.
// Adapters map provider-specific claims into this shape.
type SsoProfile struct {
	ProviderID string // stable subject identifier at the provider
	Email      string // may be empty (Facebook without email permission)
	FirstName  string
	LastName   string
}

// ValidateClaims is the payload of a validate token.
type ValidateClaims struct {
	Email  string `json:"email"`
	Shield string `json:"shield"`
}

// Timestamps groups the audit fields shared by persistent records.
type Timestamps struct {
	CreatedAt time.Time
	UpdatedAt time.Time
}
