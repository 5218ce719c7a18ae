package config

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: Token, password, shield, session, and SSO configuration
//   - database.go: Database and KV store configuration
//   - mail.go: Outbound mail relay configuration
type AppConfig struct {
	// IsDev controls development mode behavior. Set DEV=true to enable.
	IsDev bool `env:"DEV" envDefault:"false"`

	// PendingHashEncryptionKey encrypts pending-registration password hashes
	// held in the KV store. 32 bytes when set; optional for development.
	PendingHashEncryptionKey string `env:"PENDING_HASH_ENCRYPTION_KEY"`

	// Authentication configuration
	Auth AuthConfig

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// Mail relay configuration
	Mail MailConfig `envPrefix:"MAIL_"`
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Auth.Sanitize()
}

// Validate rejects configuration the process cannot safely start with.
// Missing token secrets must fail at startup, not at first use.
func (c *AppConfig) Validate() error {
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return nil
}
