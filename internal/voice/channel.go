package voice

import (
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/emberhall/ember/internal/logger"
)

// audioLevelObserver is a one-entry, -70dB-threshold active-speaker
// detector (§4.G). pion has no built-in audio-level observer analogous to
// mediasoup's; this is a minimal stand-in holding the "one entry" shape
// without implementing full VAD. Nothing in this package reads audio
// levels off producer tracks or calls observe, so active stays empty.
type audioLevelObserver struct {
	mu            sync.Mutex
	thresholdDBov float64
	activeID      string
}

const audioLevelThresholdDBov = -70

func newAudioLevelObserver() *audioLevelObserver {
	return &audioLevelObserver{thresholdDBov: audioLevelThresholdDBov}
}

// observe records dBov as the current sample for identity, becoming the
// sole "active speaker" entry when it crosses the threshold.
func (o *audioLevelObserver) observe(identity string, dBov float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if dBov >= o.thresholdDBov {
		o.activeID = identity
	} else if o.activeID == identity {
		o.activeID = ""
	}
}

func (o *audioLevelObserver) active() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.activeID
}

// Channel is a voice channel (§3, §4.G): a router + shared WebRTC server
// acquired from the WorkerPool on first join, an audio-level observer, and
// the authoritative list of joined clients. Created lazily by
// Manager.JoinVC on the first join_vc for an id; destroyed when the client
// list becomes empty.
type Channel struct {
	ID string

	router   *Router
	observer *audioLevelObserver

	mu      sync.Mutex
	clients map[string]*Client // identity -> client
}

func newChannel(id string, router *Router) *Channel {
	return &Channel{
		ID:       id,
		router:   router,
		observer: newAudioLevelObserver(),
		clients:  make(map[string]*Client),
	}
}

func (c *Channel) addClient(client *Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clients[client.Identity] = client
}

// removeClient removes identity from the client list and reports whether
// the channel is now empty, so the caller (Manager) knows to drop the
// channel from the global registry (§3, §8 invariant 5).
func (c *Channel) removeClient(identity string) (empty bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.clients, identity)
	return len(c.clients) == 0
}

// Peers returns a snapshot of every joined client other than exclude,
// used by GET /voice/peers (§4.I).
func (c *Channel) Peers(exclude string) []*Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*Client, 0, len(c.clients))
	for identity, client := range c.clients {
		if identity != exclude {
			out = append(out, client)
		}
	}
	return out
}

// broadcastVoiceEvent sends a voice-event-socket frame (new_producer,
// producer_closed, client_connected, client_disconnected) to every other
// connected client in the channel. This travels over each client's own
// voice event socket, not the PubSub fabric (§4.H "Producer/consumer
// notifications").
func (c *Channel) broadcastVoiceEvent(exclude string, payload string) {
	for _, peer := range c.Peers(exclude) {
		socket := peer.eventSocket()
		if socket == nil {
			continue
		}
		if err := socket.Send(payload); err != nil {
			logger.Voice().Debug().Str("identity", peer.Identity).Err(err).Msg("voice event send failed")
		}
	}
}

// newTransport allocates a fresh PeerConnection from the channel's router,
// the factory operation §4.G describes ("factory for WebRTC transports").
func (c *Channel) newTransport(cfg webrtc.Configuration) (*webrtc.PeerConnection, error) {
	return c.router.NewPeerConnection(cfg)
}
