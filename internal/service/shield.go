package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/tinz/tinz-api/internal/data"
	"github.com/tinz/tinz-api/internal/domain/model"
	apperrors "github.com/tinz/tinz-api/internal/errors"
	"github.com/tinz/tinz-api/internal/ports"
)

const (
	shieldEntropyBytes = 16
	defaultShieldTTL   = 40 * time.Second
)

// ShieldGuard issues and consumes the single-use random tokens that gate
// verification and resend flows against replay and spam. At most one live
// shield exists per email at any instant; a live shield blocks issuance of a
// new verification mail for that address.
type ShieldGuard struct {
	kv  ports.KVRepository
	ttl time.Duration
}

// NewShieldGuard constructs a ShieldGuard over the KV port.
func NewShieldGuard(kv ports.KVRepository, ttl time.Duration) *ShieldGuard {
	if ttl <= 0 {
		ttl = defaultShieldTTL
	}
	return &ShieldGuard{kv: kv, ttl: ttl}
}

// Issue generates a fresh shield for the email and stores it, unconditionally
// overwriting any prior value. Callers gating resends must check IsLive first;
// Issue itself never refuses.
func (g *ShieldGuard) Issue(ctx context.Context, email string) (string, error) {
	buf := make([]byte, shieldEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate shield: %w", err)
	}
	shield := hex.EncodeToString(buf)

	key := data.ShieldKey(model.NormalizeEmail(email))
	if err := g.kv.Set(ctx, key, []byte(shield), g.ttl); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "store shield")
	}
	return shield, nil
}

// CheckAndConsume verifies the candidate against the stored shield and deletes
// it in one indivisible store operation, so two concurrent attempts with the
// same valid shield can never both succeed. Absent, expired, and mismatched
// are indistinguishable to the caller.
func (g *ShieldGuard) CheckAndConsume(ctx context.Context, email, candidate string) error {
	if candidate == "" {
		return apperrors.ShieldMismatch()
	}

	key := data.ShieldKey(model.NormalizeEmail(email))
	ok, err := g.kv.CompareAndDelete(ctx, key, []byte(candidate))
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "consume shield")
	}
	if !ok {
		return apperrors.ShieldMismatch()
	}
	return nil
}

// IsLive reports whether a shield is currently outstanding for the email.
func (g *ShieldGuard) IsLive(ctx context.Context, email string) (bool, error) {
	live, err := g.kv.Exists(ctx, data.ShieldKey(model.NormalizeEmail(email)))
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrCodeInternal, "check shield liveness")
	}
	return live, nil
}
