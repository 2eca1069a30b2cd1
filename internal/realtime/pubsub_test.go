package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/emberhall/ember/internal/models"
)

// testHarness upgrades every incoming connection into a Socket registered
// under the userID given in the "user" query parameter, mirroring what
// internal/realtime.Handler does once auth middleware has already run.
func newTestServer(t *testing.T, service *Service) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		userID := r.URL.Query().Get("user")
		socketID := r.URL.Query().Get("id")

		var socket *Socket
		socket = NewSocket(socketID, conn,
			func(s *Socket, data []byte) {},
			func(s *Socket, reason DisconnectReason) {
				service.RemoveSocket(userID, s.ID)
			},
		)
		service.AddSocket(userID, socket)
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

func readWithTimeout(t *testing.T, conn *websocket.Conn, d time.Duration) (string, bool) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(d))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return "", false
	}
	return string(data), true
}

// TestBroadcastFanOut implements spec §8 Scenario 1 literally: S1 and S2
// subscribe to channel:C, S3 subscribes to channel:D; a Typing broadcast on
// channel:C reaches only S1 and S2.
func TestBroadcastFanOut(t *testing.T) {
	service := NewService()
	srv := newTestServer(t, service)

	c1 := dial(t, srv, "u1", "s1")
	defer c1.Close()
	c2 := dial(t, srv, "u2", "s2")
	defer c2.Close()
	c3 := dial(t, srv, "u3", "s3")
	defer c3.Close()

	time.Sleep(50 * time.Millisecond) // let registration land

	require.NoError(t, service.Subscribe("s1", Topic{Type: TopicChannel, ID: "C"}))
	require.NoError(t, service.Subscribe("s2", Topic{Type: TopicChannel, ID: "C"}))
	require.NoError(t, service.Subscribe("s3", Topic{Type: TopicChannel, ID: "D"}))

	service.Typing("C", models.PublicUserInfo{ID: "U", Username: "alice"})

	msg1, ok1 := readWithTimeout(t, c1, time.Second)
	require.True(t, ok1)
	require.Contains(t, msg1, `"type":"channel","id":"C"`)
	require.Contains(t, msg1, `"type":"typing"`)

	msg2, ok2 := readWithTimeout(t, c2, time.Second)
	require.True(t, ok2)
	require.Contains(t, msg2, `"type":"typing"`)

	_, ok3 := readWithTimeout(t, c3, 200*time.Millisecond)
	require.False(t, ok3, "S3 should not receive a channel:C broadcast")
}

// TestDMDualDispatch implements spec §8 Scenario 2: A's socket subscribes
// to dm_channel:B, B's socket subscribes to dm_channel:A; a DM from A to B
// is delivered to B on (dm_channel, A) and to A on (dm_channel, B).
func TestDMDualDispatch(t *testing.T) {
	service := NewService()
	srv := newTestServer(t, service)

	a := dial(t, srv, "A", "sockA")
	defer a.Close()
	b := dial(t, srv, "B", "sockB")
	defer b.Close()

	time.Sleep(50 * time.Millisecond)

	require.NoError(t, service.Subscribe("sockB", Topic{Type: TopicDMChannel, ID: "A"}))
	require.NoError(t, service.Subscribe("sockA", Topic{Type: TopicDMChannel, ID: "B"}))

	service.DirectMessage(
		models.PublicUserInfo{ID: "A"},
		models.PublicUserInfo{ID: "B"},
		&models.Message{ID: "m1", AuthorID: "A", Content: "hi"},
	)

	bMsg, ok := readWithTimeout(t, b, time.Second)
	require.True(t, ok)
	require.Contains(t, bMsg, `"id":"A"`)

	aMsg, ok := readWithTimeout(t, a, time.Second)
	require.True(t, ok)
	require.Contains(t, aMsg, `"id":"B"`)
}

// TestDirectMessageSelfDMSendsOnce verifies the self-DM special case (§4.C).
func TestDirectMessageSelfDMSendsOnce(t *testing.T) {
	service := NewService()
	srv := newTestServer(t, service)

	a := dial(t, srv, "A", "sockA")
	defer a.Close()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, service.Subscribe("sockA", Topic{Type: TopicDMChannel, ID: "A"}))

	service.DirectMessage(
		models.PublicUserInfo{ID: "A"},
		models.PublicUserInfo{ID: "A"},
		&models.Message{ID: "m1", AuthorID: "A", Content: "note to self"},
	)

	_, ok := readWithTimeout(t, a, 500*time.Millisecond)
	require.True(t, ok, "self-DM should still deliver once")

	_, ok = readWithTimeout(t, a, 200*time.Millisecond)
	require.False(t, ok, "self-DM must not deliver a second copy")
}
