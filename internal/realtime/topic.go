// Package realtime implements the PubSub fabric (§4.A–§4.D): topic-based
// multiplexed WebSocket delivery. It owns the socket registry, the
// topic→subscriber index, the broadcast/directed-send primitives, and the
// client subscription protocol, adapted from the teacher's
// internal/websocket/hub.go register/unregister/broadcast channel pattern
// but restructured around typed topics instead of org scoping.
package realtime

import (
	"fmt"
	"strings"
)

// TopicType enumerates the entity kinds events fan out on (§3).
type TopicType string

const (
	TopicGuild     TopicType = "guild"
	TopicChannel   TopicType = "channel"
	TopicDMChannel TopicType = "dm_channel"
	TopicUser      TopicType = "user"
)

// Topic is a value type: equality and hashing follow both fields, so two
// Topics with the same (Type, ID) are interchangeable as map keys.
type Topic struct {
	Type TopicType
	ID   string
}

func (t Topic) String() string {
	return string(t.Type) + ":" + t.ID
}

// Valid reports whether t names a known topic type with a non-empty id.
// Used to silently drop unknown topics from the sub/unsub protocol (§4.D)
// rather than erroring, so a client can't probe which topic kinds exist.
func (t Topic) Valid() bool {
	if t.ID == "" {
		return false
	}
	switch t.Type {
	case TopicGuild, TopicChannel, TopicDMChannel, TopicUser:
		return true
	default:
		return false
	}
}

// ParseTopic parses the compact form "type:id". The sub/unsub client
// protocol (§4.D) does not use it: its frames carry topics as JSON objects
// (clientFrame), checked with Topic.Valid. Unknown types are rejected;
// malformed input is the caller's job to drop silently.
func ParseTopic(wire string) (Topic, error) {
	typ, id, found := strings.Cut(wire, ":")
	if !found || id == "" {
		return Topic{}, fmt.Errorf("realtime: malformed topic %q", wire)
	}
	switch TopicType(typ) {
	case TopicGuild, TopicChannel, TopicDMChannel, TopicUser:
		return Topic{Type: TopicType(typ), ID: id}, nil
	default:
		return Topic{}, fmt.Errorf("realtime: unknown topic type %q", typ)
	}
}
