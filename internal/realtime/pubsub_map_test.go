package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSocket(id string) *Socket {
	return &Socket{ID: id}
}

// TestPubSubMapInvariant1 checks §8 invariant 1: a socket is in
// TopicIndex[t] iff t is in SocketIndex[socket].topics.
func TestPubSubMapInvariant1(t *testing.T) {
	m := NewPubSubMap()
	s := newTestSocket("sock-1")
	m.AddSocket("user-1", s)

	topic := Topic{Type: TopicChannel, ID: "C"}
	require.NoError(t, m.Subscribe(s.ID, topic))

	subs := m.Subscribers(topic)
	require.Len(t, subs, 1)
	assert.Equal(t, s.ID, subs[0].ID)

	require.NoError(t, m.Unsubscribe(s.ID, topic))
	assert.Empty(t, m.Subscribers(topic))
}

// TestPubSubMapRemoveSocketClearsAllIndexes checks §8 invariant 2.
func TestPubSubMapRemoveSocketClearsAllIndexes(t *testing.T) {
	m := NewPubSubMap()
	s := newTestSocket("sock-1")
	m.AddSocket("user-1", s)

	topicA := Topic{Type: TopicChannel, ID: "A"}
	topicB := Topic{Type: TopicGuild, ID: "B"}
	require.NoError(t, m.Subscribe(s.ID, topicA))
	require.NoError(t, m.Subscribe(s.ID, topicB))

	m.RemoveSocket("user-1", s.ID)

	assert.Empty(t, m.Subscribers(topicA))
	assert.Empty(t, m.Subscribers(topicB))
	assert.Empty(t, m.SocketsForUser("user-1"))
}

// TestPubSubMapIdempotentRemove checks §8 invariant 6.
func TestPubSubMapIdempotentRemove(t *testing.T) {
	m := NewPubSubMap()
	s := newTestSocket("sock-1")
	m.AddSocket("user-1", s)
	m.RemoveSocket("user-1", s.ID)

	assert.NotPanics(t, func() {
		m.RemoveSocket("user-1", s.ID)
	})
}

// TestPubSubMapSubscribeUnsubscribeRoundTrip checks §8 invariant 7.
func TestPubSubMapSubscribeUnsubscribeRoundTrip(t *testing.T) {
	m := NewPubSubMap()
	s := newTestSocket("sock-1")
	m.AddSocket("user-1", s)

	topic := Topic{Type: TopicChannel, ID: "C"}
	require.NoError(t, m.Subscribe(s.ID, topic))
	require.NoError(t, m.Unsubscribe(s.ID, topic))

	assert.Empty(t, m.Subscribers(topic))
	entry := m.socketIndex[s.ID]
	assert.Empty(t, entry.topics)
}

// TestPubSubMapDuplicateSubscribeDedupsSet checks §4.B: subscribing twice
// leaves two entries in the socket's topic list but one in the topic set.
func TestPubSubMapDuplicateSubscribeDedupsSet(t *testing.T) {
	m := NewPubSubMap()
	s := newTestSocket("sock-1")
	m.AddSocket("user-1", s)

	topic := Topic{Type: TopicChannel, ID: "C"}
	require.NoError(t, m.Subscribe(s.ID, topic))
	require.NoError(t, m.Subscribe(s.ID, topic))

	assert.Len(t, m.Subscribers(topic), 1)
	assert.Len(t, m.socketIndex[s.ID].topics, 2)

	require.NoError(t, m.Unsubscribe(s.ID, topic))
	assert.Empty(t, m.Subscribers(topic))
	assert.Empty(t, m.socketIndex[s.ID].topics)
}

func TestPubSubMapSubscribeNotRegistered(t *testing.T) {
	m := NewPubSubMap()
	err := m.Subscribe("missing", Topic{Type: TopicChannel, ID: "C"})
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestPubSubMapUnsubscribeUnknownTopicIsNoop(t *testing.T) {
	m := NewPubSubMap()
	s := newTestSocket("sock-1")
	m.AddSocket("user-1", s)

	err := m.Unsubscribe(s.ID, Topic{Type: TopicChannel, ID: "never-subscribed"})
	assert.NoError(t, err)
}

func TestPubSubMapUserMayHaveSeveralSockets(t *testing.T) {
	m := NewPubSubMap()
	s1 := newTestSocket("sock-1")
	s2 := newTestSocket("sock-2")
	m.AddSocket("user-1", s1)
	m.AddSocket("user-1", s2)

	sockets := m.SocketsForUser("user-1")
	assert.Len(t, sockets, 2)
}
