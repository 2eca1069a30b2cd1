package realtime

import "sync"

// socketEntry is the SocketIndex value: the socket handle plus the list of
// topics it's currently subscribed to (§3).
type socketEntry struct {
	socket *Socket
	topics []Topic
}

// PubSubMap is the pure data structure behind the PubSub fabric (§4.B): three
// indexes kept mutually consistent under one exclusive-writer lock. It has
// no knowledge of event payloads or WebSocket framing; PubSubService is the
// facade that adds those concerns.
type PubSubMap struct {
	mu sync.RWMutex

	topicIndex  map[Topic]map[string]*Socket // topic -> socket_id -> socket
	socketIndex map[string]*socketEntry      // socket_id -> entry
	userIndex   map[string][]*Socket         // user_id -> sockets
}

func NewPubSubMap() *PubSubMap {
	return &PubSubMap{
		topicIndex:  make(map[Topic]map[string]*Socket),
		socketIndex: make(map[string]*socketEntry),
		userIndex:   make(map[string][]*Socket),
	}
}

// AddSocket registers a socket under a user with an empty topic list.
// Idempotent: registering the same socket id twice just overwrites the
// entry (§8 invariant 6).
func (m *PubSubMap) AddSocket(userID string, socket *Socket) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.socketIndex[socket.ID] = &socketEntry{socket: socket}
	m.userIndex[userID] = appendUnique(m.userIndex[userID], socket)
}

// RemoveSocket pops the socket from SocketIndex, purges it from every topic
// set it belonged to, and drops it from its user's list. Missing entries
// are ignored so double-removal is a harmless no-op (§8 invariant 6).
func (m *PubSubMap) RemoveSocket(userID, socketID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.socketIndex[socketID]
	if !ok {
		return
	}
	delete(m.socketIndex, socketID)

	for _, topic := range entry.topics {
		if subs, ok := m.topicIndex[topic]; ok {
			delete(subs, socketID)
			if len(subs) == 0 {
				delete(m.topicIndex, topic)
			}
		}
	}

	if sockets, ok := m.userIndex[userID]; ok {
		filtered := sockets[:0]
		for _, s := range sockets {
			if s.ID != socketID {
				filtered = append(filtered, s)
			}
		}
		if len(filtered) == 0 {
			delete(m.userIndex, userID)
		} else {
			m.userIndex[userID] = filtered
		}
	}
}

// ErrNotRegistered is returned by Subscribe/Unsubscribe when the socket id
// is not present in SocketIndex.
var ErrNotRegistered = errNotRegistered{}

type errNotRegistered struct{}

func (errNotRegistered) Error() string { return "realtime: socket not registered" }

// Subscribe appends topic to the socket's list and inserts it into the
// topic's subscriber set. No duplicate detection: subscribing twice leaves
// two entries in the socket's topic list but the set dedups automatically
// (§4.B).
func (m *PubSubMap) Subscribe(socketID string, topic Topic) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.socketIndex[socketID]
	if !ok {
		return ErrNotRegistered
	}

	entry.topics = append(entry.topics, topic)

	subs, ok := m.topicIndex[topic]
	if !ok {
		subs = make(map[string]*Socket)
		m.topicIndex[topic] = subs
	}
	subs[socketID] = entry.socket

	return nil
}

// Unsubscribe removes every occurrence of topic from the socket's topic
// list ("retain not-equal") and drops the socket from the topic's set.
// Unsubscribing a topic the socket was never subscribed to is a no-op
// success (§4.B).
func (m *PubSubMap) Unsubscribe(socketID string, topic Topic) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.socketIndex[socketID]
	if !ok {
		return ErrNotRegistered
	}

	filtered := entry.topics[:0]
	for _, t := range entry.topics {
		if t != topic {
			filtered = append(filtered, t)
		}
	}
	entry.topics = filtered

	if subs, ok := m.topicIndex[topic]; ok {
		delete(subs, socketID)
		if len(subs) == 0 {
			delete(m.topicIndex, topic)
		}
	}

	return nil
}

// Subscribers returns a snapshot slice of sockets currently subscribed to
// topic. The slice is a copy so the caller can iterate and send without
// holding the map lock across I/O (§5 "never hold a registry lock across a
// network I/O").
func (m *PubSubMap) Subscribers(topic Topic) []*Socket {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subs, ok := m.topicIndex[topic]
	if !ok {
		return nil
	}
	out := make([]*Socket, 0, len(subs))
	for _, s := range subs {
		out = append(out, s)
	}
	return out
}

// SocketsForUser returns a snapshot of every socket currently registered to
// userID, used by send_to_user (§4.C).
func (m *PubSubMap) SocketsForUser(userID string) []*Socket {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sockets := m.userIndex[userID]
	out := make([]*Socket, len(sockets))
	copy(out, sockets)
	return out
}

func appendUnique(sockets []*Socket, s *Socket) []*Socket {
	for _, existing := range sockets {
		if existing.ID == s.ID {
			return sockets
		}
	}
	return append(sockets, s)
}
