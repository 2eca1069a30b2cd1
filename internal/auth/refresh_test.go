package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/emberhall/ember/internal/errors"
	"github.com/emberhall/ember/internal/models"
)

// memRefreshStore is a minimal in-memory stand-in for internal/db.Database's
// refresh-token rows, keyed the way the real schema enforces uniqueness:
// at most one row per (UserID, Nonce) (§3).
type memRefreshStore struct {
	mu   sync.Mutex
	rows map[string]*models.RefreshTokenRow // key: userID+"\x00"+nonce
}

func newMemRefreshStore() *memRefreshStore {
	return &memRefreshStore{rows: map[string]*models.RefreshTokenRow{}}
}

func key(userID, nonce string) string { return userID + "\x00" + nonce }

func (m *memRefreshStore) InsertRefreshToken(ctx context.Context, row *models.RefreshTokenRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[key(row.UserID, row.Nonce)] = row
	return nil
}

// RotateRefreshToken mimics the DELETE...RETURNING + INSERT transaction:
// it only inserts the replacement if a live row for (userID, nonce) existed.
func (m *memRefreshStore) RotateRefreshToken(ctx context.Context, userID, nonce string, replacement *models.RefreshTokenRow) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(userID, nonce)
	row, ok := m.rows[k]
	if !ok || time.Now().After(row.ExpiresAt) {
		return 0, nil
	}
	delete(m.rows, k)
	m.rows[key(replacement.UserID, replacement.Nonce)] = replacement
	return 1, nil
}

func (m *memRefreshStore) DeleteAllRefreshTokensForUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, row := range m.rows {
		if row.UserID == userID {
			delete(m.rows, k)
		}
	}
	return nil
}

// TestRefreshTokenRotation is spec §8 scenario 3: reissue once succeeds and
// rotates, reissuing the SAME old token a second time fails, and the new
// token from the first reissue still works.
func TestRefreshTokenRotation(t *testing.T) {
	tokens := NewTokenService("test-signing-key")
	store := newMemRefreshStore()
	svc := NewRefreshService(tokens, store, time.Minute, 24*time.Hour, 0)

	pair1, err := svc.Issue(context.Background(), "u1", "test-agent")
	require.NoError(t, err)
	require.NotEmpty(t, pair1.RefreshToken)

	pair2, err := svc.Reissue(context.Background(), pair1.RefreshToken, "test-agent")
	require.NoError(t, err)
	assert.NotEqual(t, pair1.RefreshToken, pair2.RefreshToken)
	claims, err := tokens.VerifyAccess(pair2.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)

	_, err = svc.Reissue(context.Background(), pair1.RefreshToken, "test-agent")
	require.Error(t, err, "a burned refresh token must not be reissuable a second time")
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok, "Reissue must return an *apperrors.AppError")
	assert.Equal(t, 403, appErr.StatusCode, "a reused refresh token is Forbidden, not Unauthorized (§4.E step 3, §8 scenario 3)")

	pair3, err := svc.Reissue(context.Background(), pair2.RefreshToken, "test-agent")
	require.NoError(t, err)
	assert.NotEqual(t, pair2.RefreshToken, pair3.RefreshToken)
}

// TestBotRefreshTokenNonRotating covers §4.E step 2 / §9: bot tokens are
// explicitly exempt from rotation so they survive restarts without re-login.
func TestBotRefreshTokenNonRotating(t *testing.T) {
	tokens := NewTokenService("test-signing-key")
	store := newMemRefreshStore()
	svc := NewRefreshService(tokens, store, time.Minute, 24*time.Hour, 365*24*time.Hour)

	pair, err := svc.Issue(context.Background(), "bot:b1", "test-agent")
	require.NoError(t, err)

	reissued, err := svc.Reissue(context.Background(), pair.RefreshToken, "test-agent")
	require.NoError(t, err)
	assert.Equal(t, pair.RefreshToken, reissued.RefreshToken)

	reissuedAgain, err := svc.Reissue(context.Background(), pair.RefreshToken, "test-agent")
	require.NoError(t, err)
	assert.Equal(t, pair.RefreshToken, reissuedAgain.RefreshToken)
}
