// This file implements the PubSub Service (§4.C): the public facade over
// PubSubMap that serializes socket lifecycle operations and exposes typed
// event senders. Grounded on the original Rust pubsub.rs/pubsub_map.rs
// split confirmed in SPEC_FULL §5: broadcast resolves subscribers, sends to
// all of them concurrently, and returns once every send has finished.
package realtime

import (
	"sync"

	"github.com/emberhall/ember/internal/logger"
	"github.com/emberhall/ember/internal/models"
)

// Service is the public API over the PubSub fabric. One Service instance is
// shared process-wide (passed by handle, §9 "Global registries"), not
// reached through an ambient global.
type Service struct {
	m    *PubSubMap
	hook func(route OutboundRoute)
}

// OutboundRoute describes how a peer instance's internal/events bridge
// should redeliver an already-encoded envelope it received over NATS:
// fan out to every local subscriber of Topic, or, when TargetUserID is
// set (directed sends, §4.C), deliver straight to that user's sockets
// regardless of subscription.
type OutboundRoute struct {
	Topic        Topic
	TargetUserID string
	Payload      string
}

func NewService() *Service {
	return &Service{m: NewPubSubMap()}
}

// SetBroadcastHook registers a callback invoked with every local broadcast
// or directed send, letting a cross-instance bridge (internal/events)
// mirror this instance's traffic out to peers. Deliver/DeliverToUser, the
// inbound half of that bridge, deliberately do not re-invoke the hook: an
// envelope that arrived from a peer must not be republished back out to it.
func (s *Service) SetBroadcastHook(hook func(route OutboundRoute)) {
	s.hook = hook
}

// Deliver hands an envelope already broadcast by a peer instance to this
// instance's local subscribers of topic.
func (s *Service) Deliver(topic Topic, payload string) {
	s.deliverLocal(topic, payload)
}

// DeliverToUser hands an envelope already sent by a peer instance directly
// to this instance's sockets for userID, bypassing topic subscription the
// same way a local directed send does.
func (s *Service) DeliverToUser(userID, payload string) {
	s.deliverToUser(userID, payload)
}

// AddSocket registers socket under userID.
func (s *Service) AddSocket(userID string, socket *Socket) {
	s.m.AddSocket(userID, socket)
}

// RemoveSocket deregisters socket, idempotently.
func (s *Service) RemoveSocket(userID, socketID string) {
	s.m.RemoveSocket(userID, socketID)
}

// Subscribe and Unsubscribe apply the client sub/unsub protocol (§4.D).
// Authorization is deliberately absent here (§4.D, §9): callers must never
// emit a sensitive event on a topic a client shouldn't see, because any
// client can subscribe to any topic.
func (s *Service) Subscribe(socketID string, topic Topic) error {
	return s.m.Subscribe(socketID, topic)
}

func (s *Service) Unsubscribe(socketID string, topic Topic) error {
	return s.m.Unsubscribe(socketID, topic)
}

// broadcast sends the same serialized envelope to every subscriber of topic
// concurrently. Individual send failures are swallowed: a failing socket's
// own read-loop/watchdog will remove it from the map on its own (§4.C, §7).
func (s *Service) broadcast(topic Topic, event any) {
	payload, err := encodeEnvelope(topic, event)
	if err != nil {
		logger.Realtime().Error().Err(err).Msg("failed to encode event envelope")
		return
	}

	s.deliverLocal(topic, payload)
	if s.hook != nil {
		s.hook(OutboundRoute{Topic: topic, Payload: payload})
	}
}

func (s *Service) deliverLocal(topic Topic, payload string) {
	sockets := s.m.Subscribers(topic)
	if len(sockets) == 0 {
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(sockets))
	for _, sock := range sockets {
		go func(sock *Socket) {
			defer wg.Done()
			if err := sock.Send(payload); err != nil {
				logger.Realtime().Debug().Str("socket_id", sock.ID).Err(err).Msg("broadcast send failed")
			}
		}(sock)
	}
	wg.Wait()
}

// sendToUser delivers the envelope to every socket belonging to userID,
// regardless of topic subscription (§4.C "Directed send").
func (s *Service) sendToUser(userID string, topic Topic, event any) {
	payload, err := encodeEnvelope(topic, event)
	if err != nil {
		logger.Realtime().Error().Err(err).Msg("failed to encode event envelope")
		return
	}

	s.deliverToUser(userID, payload)
	if s.hook != nil {
		s.hook(OutboundRoute{Topic: topic, TargetUserID: userID, Payload: payload})
	}
}

func (s *Service) deliverToUser(userID, payload string) {
	sockets := s.m.SocketsForUser(userID)
	if len(sockets) == 0 {
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(sockets))
	for _, sock := range sockets {
		go func(sock *Socket) {
			defer wg.Done()
			if err := sock.Send(payload); err != nil {
				logger.Realtime().Debug().Str("socket_id", sock.ID).Err(err).Msg("directed send failed")
			}
		}(sock)
	}
	wg.Wait()
}

// ChannelListUpdate notifies a guild topic that its channel list changed.
func (s *Service) ChannelListUpdate(guildID string) {
	s.broadcast(Topic{Type: TopicGuild, ID: guildID}, channelListUpdateEvent{
		Type:    eventChannelListUpdate,
		GuildID: guildID,
	})
}

// MemberListUpdate notifies a guild topic that its member list changed.
func (s *Service) MemberListUpdate(guildID string) {
	s.broadcast(Topic{Type: TopicGuild, ID: guildID}, memberListUpdateEvent{
		Type: eventMemberListUpdate,
	})
}

// Message broadcasts a new channel message, sanitizing its content first.
func (s *Service) Message(channelID string, msg *models.Message) {
	s.broadcast(Topic{Type: TopicChannel, ID: channelID}, messageEvent{
		Type:    eventMessage,
		Message: sanitizeMessage(msg),
	})
}

// DeleteMessage broadcasts a message deletion.
func (s *Service) DeleteMessage(channelID, messageID string) {
	s.broadcast(Topic{Type: TopicChannel, ID: channelID}, deleteMessageEvent{
		Type: eventDeleteMessage,
		ID:   messageID,
	})
}

// Typing broadcasts a typing indicator.
func (s *Service) Typing(channelID string, user models.PublicUserInfo) {
	s.broadcast(Topic{Type: TopicChannel, ID: channelID}, typingEvent{
		Type: eventTyping,
		User: user,
	})
}

// DirectMessage implements the DM dual-dispatch rule (§4.C): a message in a
// DM channel is sent to the recipient on topic (dm_channel, sender.id) and
// to the sender on topic (dm_channel, recipient.id). When sender and
// recipient are the same user (self-DM) it is sent only once.
func (s *Service) DirectMessage(sender, recipient models.PublicUserInfo, msg *models.Message) {
	clean := sanitizeMessage(msg)
	event := messageEvent{Type: eventMessage, Message: clean}

	s.sendToUser(recipient.ID, Topic{Type: TopicDMChannel, ID: sender.ID}, event)
	if recipient.ID == sender.ID {
		return
	}
	s.sendToUser(sender.ID, Topic{Type: TopicDMChannel, ID: recipient.ID}, event)
}

// FriendRequestUpdate notifies a user of a new or accepted friend request.
func (s *Service) FriendRequestUpdate(toUserID string, from models.PublicUserInfo, state models.FriendRequestState) {
	s.sendToUser(toUserID, Topic{Type: TopicUser, ID: toUserID}, friendRequestUpdateEvent{
		Type:  eventFriendRequestUpdate,
		User:  from,
		State: state,
	})
}

// FriendRequestRemove notifies a user that a pending friend request was withdrawn.
func (s *Service) FriendRequestRemove(toUserID string, from models.PublicUserInfo) {
	s.sendToUser(toUserID, Topic{Type: TopicUser, ID: toUserID}, friendRequestRemoveEvent{
		Type: eventFriendRequestRemove,
		User: from,
	})
}

// FriendRemove notifies a user that a friendship was ended.
func (s *Service) FriendRemove(toUserID string, former models.PublicUserInfo) {
	s.sendToUser(toUserID, Topic{Type: TopicUser, ID: toUserID}, friendRemoveEvent{
		Type: eventFriendRemove,
		User: former,
	})
}

// VoiceJoin/VoiceLeave broadcast voice channel membership changes on the
// owning guild's topic (§4.C).
func (s *Service) VoiceJoin(guildID, channelID string, user models.PublicUserInfo) {
	s.broadcast(Topic{Type: TopicGuild, ID: guildID}, voiceMembershipEvent{
		Type:    eventVoiceJoin,
		User:    user,
		Channel: channelID,
	})
}

func (s *Service) VoiceLeave(guildID, channelID string, user models.PublicUserInfo) {
	s.broadcast(Topic{Type: TopicGuild, ID: guildID}, voiceMembershipEvent{
		Type:    eventVoiceLeave,
		User:    user,
		Channel: channelID,
	})
}
