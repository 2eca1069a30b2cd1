// Package events bridges the PubSub fabric (internal/realtime) across
// server instances over NATS, adapted from the teacher's
// internal/events/subscriber.go connect/reconnect/subscribe shape. The
// teacher used NATS for API↔controller status events; here the same
// transport carries already-encoded PubSub envelopes between replicas so a
// broadcast or directed send on one instance reaches sockets connected to
// another.
//
// Subject shape mirrors the teacher's "streamspace.<domain>.<action>"
// convention, narrowed to a single fan-out subject since every peer needs
// every envelope (topic/user filtering happens locally on delivery).
package events

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/emberhall/ember/internal/logger"
	"github.com/emberhall/ember/internal/realtime"
)

// SubjectFanout is the single subject every instance both publishes to and
// subscribes on for cross-instance PubSub delivery.
const SubjectFanout = "ember.realtime.fanout"

// Config is the subset of config.NATSConfig the bridge needs.
type Config struct {
	Enabled bool
	URL     string
}

// wireRoute is the envelope carried over NATS: a realtime.OutboundRoute
// plus the originating instance id, so a peer can ignore its own traffic:
// the bridge uses a plain subscription, and NATS delivers a connection's
// own publishes back to it, so the Origin check in handleInbound is what
// drops them.
type wireRoute struct {
	Topic        realtime.Topic `json:"topic"`
	TargetUserID string         `json:"targetUserId,omitempty"`
	Payload      string         `json:"payload"`
	Origin       string         `json:"origin"`
}

// Bridge owns the NATS connection and wires realtime.Service's broadcast
// hook to it in both directions: local broadcasts publish out, and inbound
// messages from peers redeliver to local subscribers (§4.C, §5 "Shared-
// resource policy" — the bridge never touches PubSubMap's lock itself, it
// only calls the Service's already-locking Deliver/DeliverToUser).
type Bridge struct {
	conn     *nats.Conn
	sub      *nats.Subscription
	svc      *realtime.Service
	instance string
	enabled  bool
}

// Connect dials NATS and wires svc's broadcast hook to publish outbound
// envelopes. If cfg.Enabled is false or the dial fails, Connect returns a
// disabled Bridge: the server still runs as a single instance, matching
// the teacher's subscriber.go "NATS unavailable" fallback rather than
// failing startup over an optional dependency.
func Connect(cfg Config, svc *realtime.Service, instanceID string) *Bridge {
	b := &Bridge{svc: svc, instance: instanceID}

	if !cfg.Enabled || cfg.URL == "" {
		logger.Realtime().Info().Msg("nats fanout disabled, running single-instance")
		return b
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("ember-realtime-bridge"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(10),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Realtime().Warn().Err(err).Msg("nats bridge disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Realtime().Info().Str("url", nc.ConnectedUrl()).Msg("nats bridge reconnected")
		}),
	)
	if err != nil {
		logger.Realtime().Warn().Err(err).Str("url", cfg.URL).Msg("nats bridge connect failed, running single-instance")
		return b
	}

	b.conn = conn
	b.enabled = true

	sub, err := conn.Subscribe(SubjectFanout, b.handleInbound)
	if err != nil {
		logger.Realtime().Warn().Err(err).Msg("nats bridge subscribe failed")
		conn.Close()
		b.conn = nil
		b.enabled = false
		return b
	}
	b.sub = sub

	svc.SetBroadcastHook(b.publishOutbound)
	logger.Realtime().Info().Str("url", cfg.URL).Msg("nats fanout bridge connected")
	return b
}

// publishOutbound is registered as svc's broadcast hook (realtime.Service).
func (b *Bridge) publishOutbound(route realtime.OutboundRoute) {
	if !b.enabled {
		return
	}
	data, err := json.Marshal(wireRoute{
		Topic:        route.Topic,
		TargetUserID: route.TargetUserID,
		Payload:      route.Payload,
		Origin:       b.instance,
	})
	if err != nil {
		logger.Realtime().Error().Err(err).Msg("nats bridge: encode outbound route failed")
		return
	}
	if err := b.conn.Publish(SubjectFanout, data); err != nil {
		logger.Realtime().Warn().Err(err).Msg("nats bridge: publish failed")
	}
}

// handleInbound redelivers an envelope published by a peer instance to this
// instance's local subscribers, skipping envelopes this instance itself
// published.
func (b *Bridge) handleInbound(msg *nats.Msg) {
	var route wireRoute
	if err := json.Unmarshal(msg.Data, &route); err != nil {
		logger.Realtime().Warn().Err(err).Msg("nats bridge: decode inbound route failed")
		return
	}
	if route.Origin == b.instance {
		return
	}
	if route.TargetUserID != "" {
		b.svc.DeliverToUser(route.TargetUserID, route.Payload)
		return
	}
	b.svc.Deliver(route.Topic, route.Payload)
}

// Close unsubscribes (without draining pending messages) and closes the
// connection. Safe to call on
// a disabled Bridge.
func (b *Bridge) Close() {
	if !b.enabled {
		return
	}
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
	}
	if b.conn != nil {
		b.conn.Close()
	}
}
