package voice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberhall/ember/internal/config"
	apperrors "github.com/emberhall/ember/internal/errors"
	"github.com/emberhall/ember/internal/models"
)

func testVoiceConfig() config.VoiceConfig {
	return config.VoiceConfig{
		PortMin:   20000,
		PortMax:   20010,
		EnableUDP: true,
		EnableTCP: false,
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	pool, err := NewWorkerPool(testVoiceConfig())
	require.NoError(t, err)
	return NewManager(pool, testVoiceConfig(), nil)
}

// TestConnectDeadlineErasesClient covers the connect-deadline scenario: a
// client that joins but never attaches its voice event WS is erased once
// connectDeadline elapses, and an empty channel is dropped from the
// registry with it.
func TestConnectDeadlineErasesClient(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping watchdog wait in short mode")
	}

	manager := newTestManager(t)
	user := models.PublicUserInfo{ID: "u1", Username: "alice"}

	client, err := manager.JoinVC("chan-1", "", user)
	require.NoError(t, err)
	assert.False(t, client.IsConnected())

	time.Sleep(connectDeadline + 500*time.Millisecond)

	_, found := manager.lookupClient(client.Identity)
	assert.False(t, found, "client should have been erased by the connect watchdog")

	manager.mu.Lock()
	_, channelExists := manager.channels["chan-1"]
	manager.mu.Unlock()
	assert.False(t, channelExists, "channel should be destroyed once its last client is erased")
}

// TestAttachSocketCancelsWatchdog covers the companion path: attaching the
// event WS before the deadline keeps the client alive past connectDeadline.
func TestAttachSocketCancelsWatchdog(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping watchdog wait in short mode")
	}

	manager := newTestManager(t)
	user := models.PublicUserInfo{ID: "u2", Username: "bob"}

	client, err := manager.JoinVC("chan-2", "", user)
	require.NoError(t, err)

	client.AttachSocket(nil)

	time.Sleep(connectDeadline + 500*time.Millisecond)

	_, found := manager.lookupClient(client.Identity)
	assert.True(t, found, "connected client must survive past the connect deadline")
}

// TestTransportDuplicateCreateConflicts covers the duplicate-transport
// scenario: creating a second transport of the same direction returns a
// Conflict instead of silently replacing the first.
func TestTransportDuplicateCreateConflicts(t *testing.T) {
	manager := newTestManager(t)
	user := models.PublicUserInfo{ID: "u3", Username: "carol"}

	client, err := manager.JoinVC("chan-3", "", user)
	require.NoError(t, err)

	_, err = client.CreateTransport(DirectionSend)
	require.NoError(t, err)

	_, err = client.CreateTransport(DirectionSend)
	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok)
	assert.Equal(t, 409, appErr.StatusCode)
}
