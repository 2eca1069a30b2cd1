package models

import "time"

// RefreshTokenRow is the persisted row backing a refresh token (§3, §4.E).
// Invariant: at most one row per (UserID, Nonce).
type RefreshTokenRow struct {
	UserID    string    `json:"userId"`
	TokenID   string    `json:"tokenId"`
	Nonce     string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
	UserAgent string    `json:"userAgent,omitempty"`
}
