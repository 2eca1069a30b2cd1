package realtime

import (
	"errors"
	"sync"
	"time"
	"weak"

	"github.com/gorilla/websocket"

	"github.com/emberhall/ember/internal/logger"
)

// DisconnectReason explains why a Socket's disconnect callback fired (§4.A).
type DisconnectReason string

const (
	ReasonReadExhaust DisconnectReason = "read_exhaust"
	ReasonPingTimeout DisconnectReason = "ping_timeout"
)

// heartbeatInterval is how often the watchdog checks last_ping, and the
// inactivity window after which a socket is considered dead (§5 Timeouts).
const heartbeatInterval = 10 * time.Second

const heartbeatLiteral = "heartbeat"

var (
	// ErrSessionClosed is returned by Send when the underlying connection
	// has already been torn down.
	ErrSessionClosed = errors.New("realtime: session closed")
	// ErrNoSession is returned by Send on a Socket that never had a live
	// connection (defensive; construction always supplies one).
	ErrNoSession = errors.New("realtime: no session")
)

// MessageFunc is invoked for every non-heartbeat text frame received.
type MessageFunc func(s *Socket, data []byte)

// DisconnectFunc fires exactly once per Socket (§4.A "Disconnect
// exactly-once"), whichever of read-exhaustion or watchdog timeout wins the
// race.
type DisconnectFunc func(s *Socket, reason DisconnectReason)

// Socket wraps one bidirectional text-frame WebSocket connection. It owns a
// read loop and a heartbeat watchdog, both started in NewSocket and both
// holding only a weak reference back to the Socket (§9): if the caller drops
// its last strong reference to a Socket before it has closed, the next
// watchdog tick or read-loop iteration finds nothing to act on and exits
// instead of leaking goroutines forever.
type Socket struct {
	ID string

	mu       sync.Mutex
	conn     *websocket.Conn
	lastPing time.Time
	closed   bool

	onMessage      MessageFunc
	onDisconnect   DisconnectFunc
	disconnectOnce sync.Once
}

// NewSocket constructs a Socket around an already-upgraded connection and
// starts its read loop and heartbeat watchdog. Callers typically register
// the returned Socket with a PubSubService immediately afterward.
func NewSocket(id string, conn *websocket.Conn, onMessage MessageFunc, onDisconnect DisconnectFunc) *Socket {
	s := &Socket{
		ID:           id,
		conn:         conn,
		lastPing:     time.Now(),
		onMessage:    onMessage,
		onDisconnect: onDisconnect,
	}

	weakSelf := weak.Make(s)
	go readLoop(weakSelf, conn)
	go heartbeatWatchdog(weakSelf)

	return s
}

// Send writes a text frame to the client. Best-effort: failures are
// returned to the caller but never retried here (§4.C "ignore send
// failures; the Socket will be removed by its own disconnect path").
func (s *Socket) Send(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.conn == nil {
		return ErrNoSession
	}
	s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return s.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

// touch records a heartbeat; called by the read loop when it sees the
// literal "heartbeat" frame.
func (s *Socket) touch() {
	s.mu.Lock()
	s.lastPing = time.Now()
	s.mu.Unlock()
}

func (s *Socket) idleSince() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastPing)
}

func (s *Socket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Closed reports whether the underlying session has already been torn
// down, the "is_connected() probe" the voice connect watchdog relies on
// (§4.H).
func (s *Socket) Closed() bool {
	return s.isClosed()
}

// closeSession marks the socket closed and shuts the connection down. Safe
// to call from both the read loop (on I/O error) and the watchdog (on
// timeout); whichever gets there first does the work, the other observes
// s.closed already true.
func (s *Socket) closeSession() (didClose bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	s.conn.Close()
	return true
}

// fireDisconnect guarantees the exactly-once disconnect callback invariant
// (§4.A) regardless of which goroutine observed the terminal condition
// first.
func (s *Socket) fireDisconnect(reason DisconnectReason) {
	s.disconnectOnce.Do(func() {
		if s.onDisconnect != nil {
			s.onDisconnect(s, reason)
		}
	})
}

func readLoop(weakSelf weak.Pointer[Socket], conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()

		s := weakSelf.Value()
		if s == nil {
			// Socket was dropped by its owner without a clean close;
			// nothing left to notify. Close the raw connection and exit.
			conn.Close()
			return
		}

		if err != nil {
			if s.closeSession() {
				s.fireDisconnect(ReasonReadExhaust)
			}
			return
		}

		text := string(data)
		if text == heartbeatLiteral {
			s.touch()
			continue
		}

		if s.onMessage != nil {
			s.onMessage(s, data)
		}
	}
}

func heartbeatWatchdog(weakSelf weak.Pointer[Socket]) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for range ticker.C {
		s := weakSelf.Value()
		if s == nil {
			return
		}
		if s.isClosed() {
			return
		}
		if s.idleSince() >= heartbeatInterval {
			if s.closeSession() {
				logger.Realtime().Debug().Str("socket_id", s.ID).Msg("heartbeat timeout")
				s.fireDisconnect(ReasonPingTimeout)
			}
			return
		}
	}
}
