package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// TestHeartbeatTimeoutClosesSocket implements spec §8 Scenario 6: a client
// that never sends "heartbeat" gets disconnected ~10s after connecting.
func TestHeartbeatTimeoutClosesSocket(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping 10s heartbeat timeout test in -short mode")
	}

	disconnected := make(chan DisconnectReason, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		NewSocket("sock-1", conn,
			func(s *Socket, data []byte) {},
			func(s *Socket, reason DisconnectReason) { disconnected <- reason },
		)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	select {
	case reason := <-disconnected:
		require.Equal(t, ReasonPingTimeout, reason)
	case <-time.After(12 * time.Second):
		t.Fatal("socket was not disconnected after heartbeat timeout")
	}
}

// TestHeartbeatLiteralNotForwarded verifies the "heartbeat" text frame is
// intercepted by the Socket and never reaches the message callback (§4.A).
func TestHeartbeatLiteralNotForwarded(t *testing.T) {
	received := make(chan []byte, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		NewSocket("sock-1", conn,
			func(s *Socket, data []byte) { received <- data },
			func(s *Socket, reason DisconnectReason) {},
		)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("heartbeat")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"sub","topics":[]}`)))

	select {
	case data := <-received:
		require.JSONEq(t, `{"type":"sub","topics":[]}`, string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("expected sub frame to reach message callback")
	}
}
