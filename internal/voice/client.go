// This file implements the Voice Client (§4.H): a joined peer's
// credentials, its two WebRTC transports (c2s/s2c), its producers and
// consumers, its voice event socket, and the connect-deadline watchdog that
// erases it if the event WS never attaches.
package voice

import (
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/emberhall/ember/internal/config"
	apperrors "github.com/emberhall/ember/internal/errors"
	"github.com/emberhall/ember/internal/logger"
	"github.com/emberhall/ember/internal/models"
	"github.com/emberhall/ember/internal/realtime"
)

// connectDeadline is how long a joined client has to attach its voice
// event WS before being silently erased (§3, §5).
const connectDeadline = 10 * time.Second

type clientState int

const (
	statePending clientState = iota
	stateConnected
	stateErased
)

// Producer is a peer's own inbound media stream, identified by a server-
// minted id distinct from the underlying WebRTC track id (§4.H, §9
// Glossary).
type Producer struct {
	ID    string
	Kind  string // "audio" | "video"
	track *webrtc.TrackRemote
}

// Consumer is a local forwarding of another peer's Producer onto this
// client's s2c transport.
type Consumer struct {
	ID         string
	ProducerID string
	local      *webrtc.TrackLocalStaticRTP
	stop       chan struct{}
}

// Client is a joined voice peer (§3 Voice Client, §4.H). Identity and Token
// are nanoids (21 and 64 chars); Token is compared in constant time on
// every RTC-authenticated request (credentials.go).
type Client struct {
	Identity string
	Token    string
	User     models.PublicUserInfo
	Channel  *Channel

	webrtcCfg webrtc.Configuration

	mu            sync.Mutex
	state         clientState
	c2s           *webrtc.PeerConnection
	s2c           *webrtc.PeerConnection
	producers     map[string]*Producer
	consumers     map[string]*Consumer
	pendingTracks map[string]*webrtc.TrackRemote
	socket        *realtime.Socket

	watchdogTimer *time.Timer
	onErase       func(*Client) // set by Manager; fires on watchdog timeout
}

func newClient(identity, token string, user models.PublicUserInfo, channel *Channel, cfg config.VoiceConfig, onErase func(*Client)) *Client {
	c := &Client{
		Identity:      identity,
		Token:         token,
		User:          user,
		Channel:       channel,
		producers:     make(map[string]*Producer),
		consumers:     make(map[string]*Consumer),
		pendingTracks: make(map[string]*webrtc.TrackRemote),
		onErase:       onErase,
		webrtcCfg:     webrtc.Configuration{},
	}
	_ = cfg // reserved: ICE server list would be derived from cfg here if configured

	c.watchdogTimer = time.AfterFunc(connectDeadline, c.onWatchdogFire)
	return c
}

// CheckToken compares the presented token against this client's token in
// constant time (§4.H "Token comparison must be constant-time").
func (c *Client) CheckToken(presented string) bool {
	return subtle.ConstantTimeCompare([]byte(c.Token), []byte(presented)) == 1
}

func (c *Client) onWatchdogFire() {
	c.mu.Lock()
	alreadyConnected := c.state == stateConnected
	alreadyErased := c.state == stateErased
	c.mu.Unlock()

	if alreadyConnected || alreadyErased {
		return
	}
	logger.Voice().Debug().Str("identity", c.Identity).Msg("voice connect watchdog fired; erasing client")
	if c.onErase != nil {
		c.onErase(c)
	}
}

// AttachSocket marks the client Connected and cancels the connect watchdog.
// Called when the voice event WS upgrades successfully (§3, §4.H).
func (c *Client) AttachSocket(socket *realtime.Socket) {
	c.mu.Lock()
	c.socket = socket
	c.state = stateConnected
	c.mu.Unlock()
	c.watchdogTimer.Stop()
}

// IsConnected reports whether the voice event WS has attached and is still
// open — the probe the watchdog and the credential extractor both rely on
// (§4.H, §4.I).
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateConnected && c.socket != nil && !c.socket.Closed()
}

func (c *Client) eventSocket() *realtime.Socket {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.socket
}

// Cleanup tears down both transports and cancels the watchdog; called on
// explicit leave_vc, socket disconnect, or watchdog timeout (§3).
func (c *Client) Cleanup() {
	c.watchdogTimer.Stop()

	c.mu.Lock()
	c.state = stateErased
	c2s, s2c := c.c2s, c.s2c
	for _, consumer := range c.consumers {
		close(consumer.stop)
	}
	c.mu.Unlock()

	if c2s != nil {
		c2s.Close()
	}
	if s2c != nil {
		s2c.Close()
	}
}

// CreateTransport allocates a fresh PeerConnection for the given direction.
// Attempting to create a second transport of the same direction is a
// Conflict (§4.H, §8 Scenario 5).
func (c *Client) CreateTransport(direction TransportDirection) (*webrtc.SessionDescription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch direction {
	case DirectionSend:
		if c.c2s != nil {
			return nil, apperrors.Conflict("send transport already created")
		}
	case DirectionRecv:
		if c.s2c != nil {
			return nil, apperrors.Conflict("recv transport already created")
		}
	}

	pc, err := c.Channel.newTransport(c.webrtcCfg)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("create transport: %w", err))
	}

	switch direction {
	case DirectionSend:
		// Server receives media from the client: a recvonly audio
		// transceiver, with incoming tracks queued for a later /produce call.
		if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			pc.Close()
			return nil, apperrors.Internal(fmt.Errorf("add recvonly transceiver: %w", err))
		}
		pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
			c.mu.Lock()
			c.pendingTracks[track.ID()] = track
			c.mu.Unlock()
		})
		c.c2s = pc
	case DirectionRecv:
		c.s2c = pc
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("create offer: %w", err))
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("set local description: %w", err))
	}

	return pc.LocalDescription(), nil
}

// ConnectTransport completes the offer/answer exchange for the given
// direction's transport (§4.H "Connect requires that create was already
// called").
func (c *Client) ConnectTransport(direction TransportDirection, answer webrtc.SessionDescription) error {
	c.mu.Lock()
	var pc *webrtc.PeerConnection
	switch direction {
	case DirectionSend:
		pc = c.c2s
	case DirectionRecv:
		pc = c.s2c
	}
	c.mu.Unlock()

	if pc == nil {
		return apperrors.Validation("transport not created")
	}
	if err := pc.SetRemoteDescription(answer); err != nil {
		return apperrors.Internal(fmt.Errorf("set remote description: %w", err))
	}
	return nil
}

// Produce registers the most recently arrived remote track of the given
// kind as a Producer (§4.H "produce requires c2s connected"). This mirrors
// mediasoup's produce() call, which associates a server-assigned producer
// id with media already flowing over an already-negotiated transport.
func (c *Client) Produce(kind string) (*Producer, error) {
	c.mu.Lock()
	if c.c2s == nil {
		c.mu.Unlock()
		return nil, apperrors.Validation("send transport not connected")
	}
	var track *webrtc.TrackRemote
	var trackID string
	for id, t := range c.pendingTracks {
		if string(t.Kind()) == kind || kindMatches(t, kind) {
			track, trackID = t, id
			break
		}
	}
	if track == nil {
		c.mu.Unlock()
		return nil, apperrors.Validation("no matching inbound track to produce")
	}
	delete(c.pendingTracks, trackID)

	producer := &Producer{ID: newResourceID(), Kind: kind, track: track}
	c.producers[producer.ID] = producer
	c.mu.Unlock()

	c.Channel.broadcastVoiceEvent(c.Identity, encodeVoiceEvent(voiceEventNewProducer, c.Identity, producer.ID, kind))
	return producer, nil
}

func kindMatches(track *webrtc.TrackRemote, kind string) bool {
	return string(track.Kind()) == kind
}

// CloseProducer stops a producer and notifies peers (§4.H).
func (c *Client) CloseProducer(producerID string) error {
	c.mu.Lock()
	_, ok := c.producers[producerID]
	if !ok {
		c.mu.Unlock()
		return apperrors.Validation("unknown producer")
	}
	delete(c.producers, producerID)
	c.mu.Unlock()

	c.Channel.broadcastVoiceEvent(c.Identity, encodeVoiceEvent(voiceEventProducerClosed, c.Identity, producerID, ""))
	return nil
}

// findProducer locates a producer by id across every client in the channel,
// used by Consume (§4.H "consume requires ... that the router can consume").
func (c *Channel) findProducer(producerID string) (*Producer, *Client, bool) {
	for _, peer := range c.Peers("") {
		peer.mu.Lock()
		p, ok := peer.producers[producerID]
		peer.mu.Unlock()
		if ok {
			return p, peer, true
		}
	}
	return nil, nil, false
}

// Consume attaches a forwarding track on this client's s2c transport that
// relays RTP from producerID's underlying remote track (§4.H).
func (c *Client) Consume(producerID string) (*Consumer, error) {
	c.mu.Lock()
	s2c := c.s2c
	c.mu.Unlock()
	if s2c == nil {
		return nil, apperrors.Validation("recv transport not connected")
	}

	producer, _, ok := c.Channel.findProducer(producerID)
	if !ok {
		return nil, apperrors.NotFound("producer")
	}

	local, err := webrtc.NewTrackLocalStaticRTP(producer.track.Codec().RTPCodecCapability, "voice", "ember-"+producerID)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("create local track: %w", err))
	}
	if _, err := s2c.AddTrack(local); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("add track: %w", err))
	}

	consumer := &Consumer{ID: newResourceID(), ProducerID: producerID, local: local, stop: make(chan struct{})}

	c.mu.Lock()
	c.consumers[consumer.ID] = consumer
	c.mu.Unlock()

	go forwardRTP(producer.track, local, consumer.stop)

	return consumer, nil
}

// forwardRTP relays RTP packets from a producer's remote track onto a
// consumer's local track until either side closes. The media engine is
// treated as opaque by the spec; this loop is the minimal concrete
// implementation standing in for mediasoup's internal RTP routing.
func forwardRTP(src *webrtc.TrackRemote, dst *webrtc.TrackLocalStaticRTP, stop chan struct{}) {
	var packet rtp.Packet
	buf := make([]byte, 1500)

	for {
		select {
		case <-stop:
			return
		default:
		}

		n, _, err := src.Read(buf)
		if err != nil {
			return
		}
		if err := packet.Unmarshal(buf[:n]); err != nil {
			continue
		}
		if err := dst.WriteRTP(&packet); err != nil {
			return
		}
	}
}
