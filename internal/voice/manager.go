// This file implements the global channel/client registries (§3, §9
// "Global registries"): process-wide maps passed around as a single Manager
// handle rather than reached through ambient globals, so tests can
// instantiate their own.
package voice

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/emberhall/ember/internal/cache"
	"github.com/emberhall/ember/internal/config"
	apperrors "github.com/emberhall/ember/internal/errors"
	"github.com/emberhall/ember/internal/logger"
	"github.com/emberhall/ember/internal/models"
	"github.com/emberhall/ember/internal/nanoid"
	"github.com/emberhall/ember/internal/realtime"
)

// Manager owns the global channel registry and client registry, and the
// worker pool channels are allocated from (§3, §4.F–§4.I). Never hold
// either registry's lock across network I/O (§5): lookups copy out the
// target and release the lock before the caller awaits anything.
type Manager struct {
	pool *WorkerPool
	cfg  config.VoiceConfig

	mu       sync.Mutex
	channels map[string]*Channel // channel id -> channel
	clients  map[string]*Client  // identity -> client

	// realtime is used to fan out VoiceJoin/VoiceLeave guild-topic events
	// (§4.C); voice-specific peer notifications use the channel's own
	// broadcastVoiceEvent instead (§4.H).
	realtime *realtime.Service

	// cache, when set via WithCache, holds a cross-instance cache-aside
	// copy of each channel's peer list (cache.VoicePeersKey) so /voice/peers
	// polling (§4.I) doesn't re-walk the channel's client map on every
	// request from every peer in a crowded channel.
	cache *cache.Cache
}

func NewManager(pool *WorkerPool, cfg config.VoiceConfig, rt *realtime.Service) *Manager {
	return &Manager{
		pool:     pool,
		cfg:      cfg,
		channels: make(map[string]*Channel),
		clients:  make(map[string]*Client),
		realtime: rt,
	}
}

// WithCache attaches a cache-aside store for voice peer lists, mirroring
// RefreshService.WithCache's optional-cache shape; c may be a disabled
// *cache.Cache (cache.NewCache with Enabled: false), in which case every
// cache operation silently no-ops and /voice/peers falls back to a live
// channel scan.
func (m *Manager) WithCache(c *cache.Cache) *Manager {
	m.cache = c
	return m
}

// invalidatePeersCache drops the cached peer list for channelID so the
// next /voice/peers poll re-reads a fresh roster after a join/leave.
func (m *Manager) invalidatePeersCache(channelID string) {
	if m.cache == nil || !m.cache.IsEnabled() {
		return
	}
	_ = m.cache.Delete(context.Background(), cache.VoicePeersKey(channelID))
}

// PeersCacheGet reads the cached peer list for channelID into target,
// reporting whether it found a live entry. It always misses when no cache
// is attached, the cache-aside pattern's ordinary degrade-to-source path.
func (m *Manager) PeersCacheGet(ctx context.Context, channelID string, target interface{}) bool {
	if m.cache == nil || !m.cache.IsEnabled() {
		return false
	}
	return m.cache.Get(ctx, cache.VoicePeersKey(channelID), target) == nil
}

// PeersCacheSet stores the peer list for channelID for a short TTL: long
// enough to absorb a burst of simultaneous /peers polls from every
// member of a channel, short enough that a stale entry self-heals quickly.
// Join and leave invalidate the entry (see JoinVC/erase); Produce and
// CloseProducer do not, so a cached producer list can lag by up to the TTL.
func (m *Manager) PeersCacheSet(ctx context.Context, channelID string, value interface{}) {
	if m.cache == nil || !m.cache.IsEnabled() {
		return
	}
	_ = m.cache.Set(ctx, cache.VoicePeersKey(channelID), value, 5*time.Second)
}

func (m *Manager) lookupClient(identity string) (*Client, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[identity]
	return c, ok
}

func (m *Manager) getOrCreateChannel(channelID string) (*Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ch, ok := m.channels[channelID]; ok {
		return ch, nil
	}

	router, err := m.pool.AllocateRouter()
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	ch := newChannel(channelID, router)
	m.channels[channelID] = ch
	logger.Voice().Info().Str("channel", channelID).Msg("voice channel created")
	return ch, nil
}

// JoinVC implements GET /voice/join (§4.I): creates the channel if missing,
// creates the client, starts its connect watchdog, and returns its
// credentials. guildID is used only to scope the VoiceJoin PubSub event
// (§4.C); it is the caller's job to have already authorized the user for
// that channel.
func (m *Manager) JoinVC(channelID, guildID string, user models.PublicUserInfo) (*Client, error) {
	channel, err := m.getOrCreateChannel(channelID)
	if err != nil {
		return nil, err
	}

	identity := nanoid.Identity()
	token := nanoid.Token()

	client := newClient(identity, token, user, channel, m.cfg, m.eraseByWatchdog)

	m.mu.Lock()
	m.clients[identity] = client
	m.mu.Unlock()
	channel.addClient(client)

	if m.realtime != nil && guildID != "" {
		m.realtime.VoiceJoin(guildID, channelID, user)
	}
	m.invalidatePeersCache(channelID)

	return client, nil
}

// eraseByWatchdog is the callback a Client's connect watchdog invokes on
// timeout (§3, §4.H). It performs the same teardown as an explicit leave,
// just without a request context to authorize against.
func (m *Manager) eraseByWatchdog(client *Client) {
	m.erase(client, "")
}

// LeaveVC implements GET /voice/leave and the WS-close path (§3, §4.I):
// full teardown of the client and, if it was the channel's last member,
// the channel itself.
func (m *Manager) LeaveVC(client *Client, guildID string) {
	m.erase(client, guildID)
}

func (m *Manager) erase(client *Client, guildID string) {
	client.Cleanup()

	m.mu.Lock()
	delete(m.clients, client.Identity)
	m.mu.Unlock()

	empty := client.Channel.removeClient(client.Identity)
	if empty {
		m.mu.Lock()
		delete(m.channels, client.Channel.ID)
		m.mu.Unlock()
		logger.Voice().Info().Str("channel", client.Channel.ID).Msg("voice channel destroyed (empty)")
	}

	client.Channel.broadcastVoiceEvent(client.Identity, encodeVoiceEvent(voiceEventClientDisconnected, client.Identity, "", ""))

	if m.realtime != nil && guildID != "" {
		m.realtime.VoiceLeave(guildID, client.Channel.ID, client.User)
	}
	m.invalidatePeersCache(client.Channel.ID)
}

// Voice event socket frame discriminators (§4.H, §6). These travel over the
// per-client voice event WS, never the PubSub fabric.
const (
	voiceEventClientConnected    = "client_connected"
	voiceEventClientDisconnected = "client_disconnected"
	voiceEventNewProducer        = "new_producer"
	voiceEventProducerClosed     = "producer_closed"
)

type voiceEventFrame struct {
	Type       string `json:"type"`
	Identity   string `json:"identity"`
	ProducerID string `json:"producerId,omitempty"`
	Kind       string `json:"kind,omitempty"`
}

func encodeVoiceEvent(eventType, identity, producerID, kind string) string {
	buf, err := json.Marshal(voiceEventFrame{Type: eventType, Identity: identity, ProducerID: producerID, Kind: kind})
	if err != nil {
		return `{"type":"` + eventType + `"}`
	}
	return string(buf)
}

func newResourceID() string {
	return nanoid.MustGenerate(16)
}
