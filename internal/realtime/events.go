package realtime

import (
	"encoding/json"

	"github.com/microcosm-cc/bluemonday"

	"github.com/emberhall/ember/internal/models"
)

// sanitizer strips HTML/script markup from untrusted text fields before
// they are fanned out to many browsers over the Event WS. This is output
// encoding of content already accepted by the DB, not the input-validation
// spec §1 scopes out of the core.
var sanitizer = bluemonday.StrictPolicy()

// envelope is the wire shape every server->client event is wrapped in
// (§4.C, §6): {"topic": {...}, "event": {...}}.
type envelope struct {
	Topic Topic           `json:"topic"`
	Event json.RawMessage `json:"event"`
}

func encodeEnvelope(topic Topic, event any) (string, error) {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	buf, err := json.Marshal(envelope{
		Topic: topic,
		Event: eventJSON,
	})
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// MarshalJSON renders a Topic in its wire form {"type":"...","id":"..."}.
func (t Topic) MarshalJSON() ([]byte, error) {
	type wire struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	}
	return json.Marshal(wire{Type: string(t.Type), ID: t.ID})
}

func (t *Topic) UnmarshalJSON(data []byte) error {
	var wire struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	t.Type = TopicType(wire.Type)
	t.ID = wire.ID
	return nil
}

// Event type discriminators for the §4.C taxonomy table.
const (
	eventChannelListUpdate   = "channel_list_update"
	eventMemberListUpdate    = "member_list_update"
	eventMessage             = "message"
	eventDeleteMessage       = "delete_message"
	eventTyping              = "typing"
	eventFriendRequestUpdate = "friend_request_update"
	eventFriendRequestRemove = "friend_request_remove"
	eventFriendRemove        = "friend_remove"
	eventVoiceJoin           = "voice_join"
	eventVoiceLeave          = "voice_leave"
)

type channelListUpdateEvent struct {
	Type    string `json:"type"`
	GuildID string `json:"guildId"`
}

type memberListUpdateEvent struct {
	Type string `json:"type"`
}

type messageEvent struct {
	Type    string          `json:"type"`
	Message *models.Message `json:"message"`
}

type deleteMessageEvent struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type typingEvent struct {
	Type string                `json:"type"`
	User models.PublicUserInfo `json:"user"`
}

type friendRequestUpdateEvent struct {
	Type  string                    `json:"type"`
	User  models.PublicUserInfo     `json:"user"`
	State models.FriendRequestState `json:"state"`
}

type friendRequestRemoveEvent struct {
	Type string                `json:"type"`
	User models.PublicUserInfo `json:"user"`
}

type friendRemoveEvent struct {
	Type string                `json:"type"`
	User models.PublicUserInfo `json:"user"`
}

type voiceMembershipEvent struct {
	Type    string                `json:"type"`
	User    models.PublicUserInfo `json:"user"`
	Channel string                `json:"channel"`
}

// sanitizeMessage returns a copy of msg with its Content run through the
// output sanitizer, so stored markup never reaches a browser's DOM
// unescaped via an event payload.
func sanitizeMessage(msg *models.Message) *models.Message {
	clean := *msg
	clean.Content = sanitizer.Sanitize(msg.Content)
	return &clean
}
