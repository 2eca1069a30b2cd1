package models

import "time"

// Invite is a guild join link. Peek/see/use semantics beyond the minimal
// model are out of scope (§5); the core only needs enough to answer
// can_user_create_invite_in and to expire/exhaust an invite (Gone, §7).
type Invite struct {
	Code      string     `json:"code"`
	GuildID   string     `json:"guildId"`
	CreatedBy string     `json:"createdBy"`
	MaxUses   int        `json:"maxUses,omitempty"`
	Uses      int        `json:"uses"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (i *Invite) Exhausted() bool {
	return i.MaxUses > 0 && i.Uses >= i.MaxUses
}

func (i *Invite) Expired(now time.Time) bool {
	return i.ExpiresAt != nil && now.After(*i.ExpiresAt)
}
