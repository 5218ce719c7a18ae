package mailer

// Package mailer delivers outbound mail through an HTTP relay service.
// Template rendering happens upstream; the sender takes pre-rendered
// text and HTML bodies.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/tinz/tinz-api/internal/errors"
	"github.com/tinz/tinz-api/internal/ports"
)

var _ ports.MailSender = (*RelaySender)(nil)

// RelayConfig holds configuration for the HTTP relay sender.
type RelayConfig struct {
	RelayURL string
	APIKey   string
	From     string
	Timeout  time.Duration
	Client   *http.Client
}

// RelaySender posts messages to the relay as JSON.
type RelaySender struct {
	relayURL string
	apiKey   string
	from     string
	client   *http.Client
}

// NewRelaySender builds a RelaySender. Callers should pass a validated config.
func NewRelaySender(cfg RelayConfig) (*RelaySender, error) {
	relayURL := strings.TrimSpace(cfg.RelayURL)
	if relayURL == "" {
		return nil, errors.New("mail relay url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	return &RelaySender{
		relayURL: relayURL,
		apiKey:   cfg.APIKey,
		from:     strings.TrimSpace(cfg.From),
		client:   client,
	}, nil
}

type relayMessage struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html,omitempty"`
}

// Send posts one message to the relay. Any failure surfaces as mail_delivery;
// callers decide whether that is fatal to their flow.
func (s *RelaySender) Send(ctx context.Context, to, subject, text, html string) error {
	body, err := json.Marshal(relayMessage{
		From:    s.from,
		To:      to,
		Subject: subject,
		Text:    text,
		HTML:    html,
	})
	if err != nil {
		return fmt.Errorf("encode mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.relayURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	res, err := s.client.Do(req)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeMailDelivery, "mail relay unreachable")
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<16))

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return apperrors.Newf(apperrors.ErrCodeMailDelivery, "mail relay returned status %d", res.StatusCode)
	}
	return nil
}

var _ ports.MailSender = (*LogSender)(nil)

// LogSender logs messages instead of delivering them. Used in development
// when no relay is configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send logs the message and reports success.
func (s *LogSender) Send(ctx context.Context, to, subject, text, _ string) error {
	s.logger.InfoContext(ctx, "mail (log only)", "to", to, "subject", subject, "text", text)
	return nil
}
