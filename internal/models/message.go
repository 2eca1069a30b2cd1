package models

import "time"

// Message belongs to a channel topic (§4.C). Content sanitization happens at
// the fan-out boundary (internal/realtime/events.go), not here — this is the
// persisted/authoritative shape.
type Message struct {
	ID        string     `json:"id"`
	ChannelID string     `json:"channelId"`
	AuthorID  string     `json:"authorId"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"createdAt"`
	EditedAt  *time.Time `json:"editedAt,omitempty"`
}
