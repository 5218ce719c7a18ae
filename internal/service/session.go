package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/tinz/tinz-api/internal/data"
	domainauth "github.com/tinz/tinz-api/internal/domain/auth"
	apperrors "github.com/tinz/tinz-api/internal/errors"
	"github.com/tinz/tinz-api/internal/ports"
)

const defaultSessionTTL = 24 * time.Hour

// SessionManager owns the server-side session records in the KV store. The
// session identifier is an opaque UUID minted fresh on every rotation; the
// old identifier becomes invalid the moment rotation starts. TTL is sliding:
// every Get pushes expiry out again.
type SessionManager struct {
	kv    ports.KVRepository
	ttl   time.Duration
	newID func() string
}

// NewSessionManager constructs a SessionManager over the KV port.
func NewSessionManager(kv ports.KVRepository, ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionManager{kv: kv, ttl: ttl, newID: uuid.NewString}
}

// Rotate invalidates the old session identifier, mints a new one, and
// persists record under the new key before returning. It must run on every
// successful authentication event so a pre-login identifier never survives
// into an authenticated session. Either sub-step's failure is fatal to the
// calling request: no partial session state is considered valid.
//
// The identifier swap is not atomic across both keys; a concurrent request
// racing a rotation may observe the old identifier gone before the new one is
// saved. That window reads as "session absent", never as corrupt state.
func (m *SessionManager) Rotate(ctx context.Context, oldID string, record domainauth.Session) (string, error) {
	if oldID != "" {
		if _, err := m.kv.Delete(ctx, data.SessionKey(oldID)); err != nil {
			return "", apperrors.Wrap(err, apperrors.ErrCodeSessionRegenerate, "invalidate previous session")
		}
	}

	id := m.newID()
	payload, err := json.Marshal(record)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeSessionPersist, "encode session")
	}
	if err := m.kv.Set(ctx, data.SessionKey(id), payload, m.ttl); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeSessionPersist, "save session")
	}
	return id, nil
}

// Get loads a session and slides its TTL. A missing or expired identifier
// returns not_found; the two cases are indistinguishable.
func (m *SessionManager) Get(ctx context.Context, id string) (*domainauth.Session, error) {
	if id == "" {
		return nil, apperrors.NotFound("session not found")
	}

	raw, err := m.kv.Get(ctx, data.SessionKey(id))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "load session")
	}
	if raw == nil {
		return nil, apperrors.NotFound("session not found")
	}

	var session domainauth.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "decode session")
	}

	if _, err := m.kv.SetTTL(ctx, data.SessionKey(id), m.ttl); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "slide session ttl")
	}
	return &session, nil
}

// UpdateRefreshToken rewrites only the refresh-token field of an existing
// session, keeping the identifier. Used by Refresh, which mints new tokens
// without a new authentication event and therefore must not rotate.
func (m *SessionManager) UpdateRefreshToken(ctx context.Context, id, refreshToken string) error {
	session, err := m.Get(ctx, id)
	if err != nil {
		return err
	}

	session.RefreshToken = refreshToken
	payload, err := json.Marshal(session)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeSessionPersist, "encode session")
	}
	if err := m.kv.Set(ctx, data.SessionKey(id), payload, m.ttl); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeSessionPersist, "save session")
	}
	return nil
}

// Destroy removes a session. Destroying an already-gone session is not an
// error.
func (m *SessionManager) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if _, err := m.kv.Delete(ctx, data.SessionKey(id)); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "destroy session")
	}
	return nil
}
