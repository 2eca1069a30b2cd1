package models

import "time"

// Bot is a programmatic account. Its user id always carries the "bot:"
// prefix (§3, §9) so the Token Service can identify it without a DB round
// trip. Bot token reset routes are out of scope (§5).
type Bot struct {
	UserID    string    `json:"userId"`
	OwnerID   string    `json:"ownerId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}
