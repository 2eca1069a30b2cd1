package models

import "time"

type ChannelKind string

const (
	ChannelKindGuildText  ChannelKind = "guild_text"
	ChannelKindGuildVoice ChannelKind = "guild_voice"
	ChannelKindDM         ChannelKind = "dm"
)

// Channel is a text or voice channel, either belonging to a guild or a
// synthetic DM channel. DM channels are NOT first-class for event routing
// (§4.C): this struct is the persistence record; routing uses dm_channel
// topics keyed on the other participant's user id, not this ID.
type Channel struct {
	ID        string      `json:"id"`
	GuildID   string      `json:"guildId,omitempty"`
	Kind      ChannelKind `json:"kind"`
	Name      string      `json:"name,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// DMChannelID canonicalizes a DM channel's persisted identity as the
// order-independent pair of its two participants (§9 Open Question: the
// source relied on DB uniqueness alone; we canonicalize explicitly).
func DMChannelID(a, b string) string {
	if a <= b {
		return a + ":" + b
	}
	return b + ":" + a
}
