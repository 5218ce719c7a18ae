package config

import "time"

// MailConfig contains outbound mail relay configuration. Mail is delivered
// through an HTTP relay service rather than SMTP directly.
type MailConfig struct {
	RelayURL string `env:"RELAY_URL" envDefault:""`
	APIKey   string `env:"API_KEY"   envDefault:""`
	From     string `env:"FROM"      envDefault:"no-reply@tinz.app"`

	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`

	// LogOnly skips delivery and logs rendered messages instead. Forced on
	// in development when no relay is configured.
	LogOnly bool `env:"LOG_ONLY" envDefault:"false"`
}
