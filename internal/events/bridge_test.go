package events

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/emberhall/ember/internal/realtime"
)

var upgrader = websocket.Upgrader{}

func newTestServer(t *testing.T, svc *realtime.Service) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		userID := r.URL.Query().Get("user")
		socket := realtime.NewSocket(r.URL.Query().Get("id"), conn,
			func(s *realtime.Socket, data []byte) {},
			func(s *realtime.Socket, reason realtime.DisconnectReason) { svc.RemoveSocket(userID, s.ID) },
		)
		svc.AddSocket(userID, socket)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, userID, socketID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?user=" + userID + "&id=" + socketID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

// A disabled config must not touch svc's broadcast hook and every method
// must be a safe no-op, matching the teacher's NATS-unavailable fallback.
func TestConnectDisabled(t *testing.T) {
	svc := realtime.NewService()
	bridge := Connect(Config{Enabled: false}, svc, "instance-a")
	require.False(t, bridge.enabled)

	bridge.publishOutbound(realtime.OutboundRoute{Payload: "irrelevant"})
	bridge.Close()
}

// handleInbound must ignore an envelope this same instance published, so a
// loopback subscription never redelivers a broadcast to itself a second time.
func TestHandleInboundSkipsOwnOrigin(t *testing.T) {
	svc := realtime.NewService()
	srv := newTestServer(t, svc)
	conn := dial(t, srv, "user-1", "sock-1")
	defer conn.Close()
	time.Sleep(20 * time.Millisecond)

	bridge := &Bridge{svc: svc, instance: "instance-a", enabled: true}

	data, err := json.Marshal(wireRoute{
		Topic:        realtime.Topic{Type: realtime.TopicUser, ID: "user-1"},
		TargetUserID: "user-1",
		Payload:      `{"event":{"type":"noop"}}`,
		Origin:       "instance-a",
	})
	require.NoError(t, err)
	bridge.handleInbound(&nats.Msg{Data: data})

	_, ok := readWithDeadline(t, conn, 50*time.Millisecond)
	require.False(t, ok, "own-origin envelope must not be redelivered")
}

// handleInbound must redeliver a directed-send envelope from a peer
// instance straight to the target user's socket.
func TestHandleInboundRedeliversDirectedSend(t *testing.T) {
	svc := realtime.NewService()
	srv := newTestServer(t, svc)
	conn := dial(t, srv, "user-1", "sock-1")
	defer conn.Close()
	time.Sleep(20 * time.Millisecond)

	bridge := &Bridge{svc: svc, instance: "instance-a", enabled: true}

	data, err := json.Marshal(wireRoute{
		TargetUserID: "user-1",
		Payload:      `{"topic":{"type":"user","id":"user-1"},"event":{"type":"friend_remove"}}`,
		Origin:       "instance-b",
	})
	require.NoError(t, err)
	bridge.handleInbound(&nats.Msg{Data: data})

	msg, ok := readWithDeadline(t, conn, 200*time.Millisecond)
	require.True(t, ok)
	require.Contains(t, msg, "friend_remove")
}

func readWithDeadline(t *testing.T, conn *websocket.Conn, d time.Duration) (string, bool) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(d))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return "", false
	}
	return string(data), true
}
