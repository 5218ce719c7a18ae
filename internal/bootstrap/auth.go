package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/tinz/tinz-api/config"
	"github.com/tinz/tinz-api/internal/adapters/facebook"
	"github.com/tinz/tinz-api/internal/adapters/google"
	"github.com/tinz/tinz-api/internal/adapters/mailer"
	"github.com/tinz/tinz-api/internal/data"
	"github.com/tinz/tinz-api/internal/ports"
	"github.com/tinz/tinz-api/internal/service"
	"github.com/tinz/tinz-api/internal/token"
)

// AuthDeps groups the shared infrastructure the auth service is wired onto.
type AuthDeps struct {
	Config config.AppConfig
	DB     *sql.DB
	Redis  redis.UniversalClient
	Logger *slog.Logger

	// Mail overrides the configured sender when set (tests, dev harnesses).
	Mail ports.MailSender
}

// BuildAuthService wires repositories, codec, guards, and verifiers into the
// auth orchestrator. Provider verifiers are only registered for providers
// with credentials configured; an SSO login for an unregistered provider
// fails with a configuration error at request time.
func BuildAuthService(ctx context.Context, deps AuthDeps) (*service.AuthService, error) {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	kv := data.NewRedisKVRepo(deps.Redis)
	identity := service.NewIdentityService(service.IdentityServiceOptions{
		Users:       data.NewUserRepo(deps.DB),
		SsoAccounts: data.NewSsoAccountRepo(deps.DB),
		KV:          kv,
		Encryptor:   CreateEncryptor(cfg.PendingHashEncryptionKey, logger),
		PendingTTL:  cfg.Auth.PendingHashTTL,
	})

	codec := token.NewCodec(token.CodecOptions{
		Access:   token.KindConfig{Secret: cfg.Auth.JWT.AccessSecret, TTL: cfg.Auth.JWT.AccessTTL},
		Refresh:  token.KindConfig{Secret: cfg.Auth.JWT.RefreshSecret, TTL: cfg.Auth.JWT.RefreshTTL},
		Validate: token.KindConfig{Secret: cfg.Auth.JWT.ValidateSecret, TTL: cfg.Auth.JWT.ValidateTTL},
	})

	verifiers, err := buildVerifiers(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	mail := deps.Mail
	if mail == nil {
		mail, err = buildMailSender(cfg, logger)
		if err != nil {
			return nil, err
		}
	}

	return service.NewAuthService(service.AuthServiceOptions{
		Identity:       identity,
		Shields:        service.NewShieldGuard(kv, cfg.Auth.ShieldTTL),
		Sessions:       service.NewSessionManager(kv, cfg.Auth.SessionTTL),
		Codec:          codec,
		Mail:           mail,
		Verifiers:      verifiers,
		BcryptCost:     cfg.Auth.BcryptCost,
		RequestTimeout: cfg.Auth.RequestTimeout,
		VerifyLinkBase: cfg.Auth.VerifyLinkBase,
		Logger:         logger,
	}), nil
}

func buildVerifiers(ctx context.Context, cfg config.AppConfig, logger *slog.Logger) ([]ports.ProviderVerifier, error) {
	var verifiers []ports.ProviderVerifier

	if cfg.Auth.Google.ClientID != "" {
		gv, err := google.NewVerifier(ctx, google.VerifierConfig{
			ClientID: cfg.Auth.Google.ClientID,
			Issuer:   cfg.Auth.Google.Issuer,
		})
		if err != nil {
			return nil, fmt.Errorf("google verifier: %w", err)
		}
		verifiers = append(verifiers, gv)
	} else {
		logger.Info("google sso disabled, no client ID configured")
	}

	if cfg.Auth.Facebook.AppID != "" && cfg.Auth.Facebook.AppSecret != "" {
		fv, err := facebook.NewVerifier(facebook.VerifierConfig{
			AppID:     cfg.Auth.Facebook.AppID,
			AppSecret: cfg.Auth.Facebook.AppSecret,
			GraphURL:  cfg.Auth.Facebook.GraphURL,
		})
		if err != nil {
			return nil, fmt.Errorf("facebook verifier: %w", err)
		}
		verifiers = append(verifiers, fv)
	} else {
		logger.Info("facebook sso disabled, no app credentials configured")
	}

	return verifiers, nil
}

//nolint:ireturn // returning ports.MailSender keeps relay/log selection config-driven.
func buildMailSender(cfg config.AppConfig, logger *slog.Logger) (ports.MailSender, error) {
	if cfg.Mail.LogOnly || cfg.Mail.RelayURL == "" {
		if cfg.Mail.RelayURL == "" && !cfg.IsDev {
			logger.Warn("no mail relay configured, mail will only be logged")
		}
		return mailer.NewLogSender(logger), nil
	}

	return mailer.NewRelaySender(mailer.RelayConfig{
		RelayURL: cfg.Mail.RelayURL,
		APIKey:   cfg.Mail.APIKey,
		From:     cfg.Mail.From,
		Timeout:  cfg.Mail.Timeout,
	})
}
