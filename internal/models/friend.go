package models

import "time"

// FriendRequestState mirrors the "sent"|"accepted" states fanned out by
// FriendRequestUpdate (§4.C).
type FriendRequestState string

const (
	FriendRequestSent     FriendRequestState = "sent"
	FriendRequestAccepted FriendRequestState = "accepted"
)

type FriendRequest struct {
	FromUserID string    `json:"fromUserId"`
	ToUserID   string    `json:"toUserId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Friendship is the accepted, symmetric relationship stored once per pair
// (ordered by convention, not semantics — either user can query by either id).
type Friendship struct {
	UserAID   string    `json:"userAId"`
	UserBID   string    `json:"userBId"`
	CreatedAt time.Time `json:"createdAt"`
}
