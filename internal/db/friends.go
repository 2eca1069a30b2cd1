// This file implements friend and friend-request persistence backing
// FriendRequestUpdate/FriendRequestRemove/FriendRemove (§4.C).
package db

import (
	"context"

	"github.com/emberhall/ember/internal/errors"
	"github.com/emberhall/ember/internal/models"
)

// canonicalPair orders two user ids so friendships/friend_requests rows
// are stored once regardless of query direction.
func canonicalPair(a, b string) (string, string) {
	if a <= b {
		return a, b
	}
	return b, a
}

func (d *Database) IsUserFriend(ctx context.Context, userID, otherID string) (bool, error) {
	a, b := canonicalPair(userID, otherID)
	var exists bool
	err := d.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM friendships WHERE user_a_id = $1 AND user_b_id = $2)`,
		a, b).Scan(&exists)
	if err != nil {
		return false, errors.Internal(err)
	}
	return exists, nil
}

func (d *Database) AddFriends(ctx context.Context, userA, userB string) error {
	a, b := canonicalPair(userA, userB)
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO friendships (user_a_id, user_b_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		a, b)
	if err != nil {
		return errors.Internal(err)
	}
	return nil
}

func (d *Database) RemoveFriend(ctx context.Context, userID, otherID string) error {
	a, b := canonicalPair(userID, otherID)
	_, err := d.db.ExecContext(ctx,
		`DELETE FROM friendships WHERE user_a_id = $1 AND user_b_id = $2`,
		a, b)
	if err != nil {
		return errors.Internal(err)
	}
	return nil
}

func (d *Database) ListIncomingFriendRequests(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT from_user_id, to_user_id, created_at FROM friend_requests WHERE to_user_id = $1`,
		userID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	defer rows.Close()

	var out []models.FriendRequest
	for rows.Next() {
		var r models.FriendRequest
		if err := rows.Scan(&r.FromUserID, &r.ToUserID, &r.CreatedAt); err != nil {
			return nil, errors.Internal(err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (d *Database) ListOutgoingFriendRequests(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT from_user_id, to_user_id, created_at FROM friend_requests WHERE from_user_id = $1`,
		userID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	defer rows.Close()

	var out []models.FriendRequest
	for rows.Next() {
		var r models.FriendRequest
		if err := rows.Scan(&r.FromUserID, &r.ToUserID, &r.CreatedAt); err != nil {
			return nil, errors.Internal(err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (d *Database) CreateFriendRequest(ctx context.Context, fromID, toID string) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO friend_requests (from_user_id, to_user_id) VALUES ($1, $2)
		 ON CONFLICT (from_user_id, to_user_id) DO NOTHING`,
		fromID, toID)
	if err != nil {
		return errors.Internal(err)
	}
	return nil
}

func (d *Database) RemoveFriendRequest(ctx context.Context, fromID, toID string) error {
	_, err := d.db.ExecContext(ctx,
		`DELETE FROM friend_requests WHERE from_user_id = $1 AND to_user_id = $2`,
		fromID, toID)
	if err != nil {
		return errors.Internal(err)
	}
	return nil
}
