package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinz/tinz-api/internal/data"
	domainauth "github.com/tinz/tinz-api/internal/domain/auth"
	apperrors "github.com/tinz/tinz-api/internal/errors"
	mocks "github.com/tinz/tinz-api/internal/mocks/auth"
)

func testProfile() domainauth.UserProfile {
	return domainauth.UserProfile{
		ID:        "user-1",
		Email:     "alice@example.com",
		FirstName: "Alice",
		LastName:  "Smith",
		Role:      domainauth.RoleUser,
	}
}

func TestSessionManager_RotateMintsNewIdentifier(t *testing.T) {
	kv := mocks.NewMemoryKV()
	mgr := NewSessionManager(kv, 24*time.Hour)
	ctx := context.Background()

	first, err := mgr.Rotate(ctx, "", domainauth.Session{User: testProfile(), RefreshToken: "rt-1"})
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := mgr.Rotate(ctx, first, domainauth.Session{User: testProfile(), RefreshToken: "rt-2"})
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "every rotation mints a fresh identifier")

	// Old identifier is invalid; new one holds the latest record.
	_, err = mgr.Get(ctx, first)
	assert.True(t, apperrors.IsNotFound(err))

	session, err := mgr.Get(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, "rt-2", session.RefreshToken)
	assert.Equal(t, testProfile(), session.User)
}

func TestSessionManager_RotateRegenerateFailure(t *testing.T) {
	kv := mocks.NewMemoryKV()
	mgr := NewSessionManager(kv, 24*time.Hour)
	ctx := context.Background()

	kv.FailDelete = errors.New("connection reset")

	_, err := mgr.Rotate(ctx, "stale-id", domainauth.Session{User: testProfile()})
	require.Error(t, err)
	assert.True(t, apperrors.IsSessionRegenerate(err))
}

func TestSessionManager_RotatePersistFailure(t *testing.T) {
	kv := mocks.NewMemoryKV()
	mgr := NewSessionManager(kv, 24*time.Hour)
	ctx := context.Background()

	kv.FailSet = errors.New("connection reset")

	_, err := mgr.Rotate(ctx, "", domainauth.Session{User: testProfile()})
	require.Error(t, err)
	assert.True(t, apperrors.IsSessionPersist(err), "unsaved session is fatal, never silently proceeded with")
}

func TestSessionManager_GetSlidesTTL(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	kv := mocks.NewMemoryKVWithClock(func() time.Time { return now })
	mgr := NewSessionManager(kv, 24*time.Hour)
	ctx := context.Background()

	id, err := mgr.Rotate(ctx, "", domainauth.Session{User: testProfile(), RefreshToken: "rt"})
	require.NoError(t, err)

	now = now.Add(23 * time.Hour)
	_, err = mgr.Get(ctx, id)
	require.NoError(t, err)

	// Without the slide this would be past the original 24h expiry.
	now = now.Add(23 * time.Hour)
	_, err = mgr.Get(ctx, id)
	require.NoError(t, err)

	ttl, ok := kv.TTLOf(data.SessionKey(id))
	require.True(t, ok)
	assert.Equal(t, 24*time.Hour, ttl)
}

func TestSessionManager_GetExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	kv := mocks.NewMemoryKVWithClock(func() time.Time { return now })
	mgr := NewSessionManager(kv, 24*time.Hour)
	ctx := context.Background()

	id, err := mgr.Rotate(ctx, "", domainauth.Session{User: testProfile()})
	require.NoError(t, err)

	now = now.Add(24*time.Hour + time.Second)
	_, err = mgr.Get(ctx, id)
	assert.True(t, apperrors.IsNotFound(err), "expired and missing are indistinguishable")
}

func TestSessionManager_UpdateRefreshToken(t *testing.T) {
	kv := mocks.NewMemoryKV()
	mgr := NewSessionManager(kv, 24*time.Hour)
	ctx := context.Background()

	id, err := mgr.Rotate(ctx, "", domainauth.Session{User: testProfile(), RefreshToken: "rt-old"})
	require.NoError(t, err)

	require.NoError(t, mgr.UpdateRefreshToken(ctx, id, "rt-new"))

	session, err := mgr.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "rt-new", session.RefreshToken)
	assert.Equal(t, testProfile(), session.User, "only the refresh token changes")
}

func TestSessionManager_UpdateRefreshTokenMissingSession(t *testing.T) {
	mgr := NewSessionManager(mocks.NewMemoryKV(), 24*time.Hour)

	err := mgr.UpdateRefreshToken(context.Background(), "never-existed", "rt")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSessionManager_DestroyIdempotent(t *testing.T) {
	kv := mocks.NewMemoryKV()
	mgr := NewSessionManager(kv, 24*time.Hour)
	ctx := context.Background()

	id, err := mgr.Rotate(ctx, "", domainauth.Session{User: testProfile()})
	require.NoError(t, err)

	require.NoError(t, mgr.Destroy(ctx, id))
	require.NoError(t, mgr.Destroy(ctx, id), "destroying an already-gone session is not an error")
	require.NoError(t, mgr.Destroy(ctx, ""))
}
