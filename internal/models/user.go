// Package models defines the entities the core depends on through the DB
// Interface (§4.J). The relational schema itself is out of scope (§1); these
// are the shapes the core reads and writes.
package models

import "time"

// User is an account. PasswordHash is never serialized to clients.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"-"`
	PasswordHash string    `json:"-"`
	Avatar       string    `json:"avatar,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PublicUserInfo is the subset of User safe to fan out in events (§4.C's
// Typing/FriendRequestUpdate payloads embed this, not User).
type PublicUserInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

func (u *User) Public() PublicUserInfo {
	return PublicUserInfo{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
}

// IsBot reports whether a user_id belongs to a bot account, distinguished
// only by the "bot:" prefix (§3, §9).
func IsBot(userID string) bool {
	return len(userID) >= 4 && userID[:4] == "bot:"
}

// CreateUserRequest is the thin /auth/register adapter's input.
type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}
