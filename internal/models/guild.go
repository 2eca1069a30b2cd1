package models

import "time"

// Guild is a server: a collection of channels and members. CRUD beyond
// what's needed to exercise §4.C's event table is out of scope (§5).
type Guild struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
}

// GuildMemberRole gates can_user_manage_messages / can_user_create_invite_in.
type GuildMemberRole string

const (
	GuildRoleOwner  GuildMemberRole = "owner"
	GuildRoleAdmin  GuildMemberRole = "admin"
	GuildRoleMember GuildMemberRole = "member"
)

type GuildMember struct {
	GuildID  string          `json:"guildId"`
	UserID   string          `json:"userId"`
	Role     GuildMemberRole `json:"role"`
	JoinedAt time.Time       `json:"joinedAt"`
}
