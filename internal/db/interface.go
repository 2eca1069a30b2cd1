// Package db provides the narrow persistence contract the core depends on
// (§4.J) plus its Postgres implementation, adapted from the teacher's
// internal/db/database.go connection-pool pattern and internal/db/users.go
// query style.
package db

import (
	"context"

	"github.com/emberhall/ember/internal/errors"
	"github.com/emberhall/ember/internal/models"
)

// ErrNotFound is returned by lookups that find nothing; callers map it to
// the appropriate taxonomy bucket (usually errors.NotFound) rather than
// leaking a raw sql.ErrNoRows.
var ErrNotFound = errors.New(errors.KindInternal, "not found")

// Store is the narrow contract the PubSub fabric, voice manager, and thin
// HTTP adapters consume (§4.J). Every operation either succeeds or returns
// a *errors.AppError.
type Store interface {
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	RegisterUser(ctx context.Context, user *models.User) (created bool, err error)

	IsUserInGuild(ctx context.Context, userID, guildID string) (bool, error)
	CanUserSeeChannel(ctx context.Context, userID, channelID string) (bool, error)
	GetChannelGuildID(ctx context.Context, channelID string) (string, error)
	CanUserManageMessages(ctx context.Context, userID, channelID string) (bool, error)
	CanUserCreateInviteIn(ctx context.Context, userID, guildID string) (bool, error)

	IsUserFriend(ctx context.Context, userID, otherID string) (bool, error)
	AddFriends(ctx context.Context, userA, userB string) error
	RemoveFriend(ctx context.Context, userID, otherID string) error
	ListIncomingFriendRequests(ctx context.Context, userID string) ([]models.FriendRequest, error)
	ListOutgoingFriendRequests(ctx context.Context, userID string) ([]models.FriendRequest, error)
	CreateFriendRequest(ctx context.Context, fromID, toID string) error
	RemoveFriendRequest(ctx context.Context, fromID, toID string) error

	GetDMChannel(ctx context.Context, userA, userB string) (channelID string, err error)

	GetMessage(ctx context.Context, channelID, messageID string) (*models.Message, error)
	InsertMessage(ctx context.Context, msg *models.Message) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error

	InsertRefreshToken(ctx context.Context, row *models.RefreshTokenRow) error
	// RotateRefreshToken atomically deletes the row matching (userID, nonce)
	// with expires_at > now and inserts replacement; rowsAffected==0 means
	// the caller should fail with Forbidden (§4.E step 3).
	RotateRefreshToken(ctx context.Context, userID, nonce string, replacement *models.RefreshTokenRow) (rowsAffected int, err error)
	DeleteAllRefreshTokensForUser(ctx context.Context, userID string) error
	DeleteExpiredRefreshTokens(ctx context.Context) (int64, error)

	DeleteExpiredInvites(ctx context.Context) (int64, error)
}
