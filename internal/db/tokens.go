// This file implements refresh token persistence and the atomic rotation
// used by the Token Service's Reissue protocol (§4.E step 3): a refresh
// must delete the presented (user_id, nonce) row and insert its
// replacement as a single transaction, so a token can never be redeemed
// twice even under concurrent Reissue calls.
package db

import (
	"context"

	"github.com/emberhall/ember/internal/errors"
	"github.com/emberhall/ember/internal/models"
)

func (d *Database) InsertRefreshToken(ctx context.Context, row *models.RefreshTokenRow) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (user_id, token_id, nonce, expires_at, user_agent)
		 VALUES ($1, $2, $3, $4, $5)`,
		row.UserID, row.TokenID, row.Nonce, row.ExpiresAt, row.UserAgent)
	if err != nil {
		return errors.Internal(err)
	}
	return nil
}

func (d *Database) RotateRefreshToken(ctx context.Context, userID, nonce string, replacement *models.RefreshTokenRow) (int, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Internal(err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE user_id = $1 AND nonce = $2 AND expires_at > now()`,
		userID, nonce)
	if err != nil {
		return 0, errors.Internal(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Internal(err)
	}
	if n == 0 {
		return 0, nil
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO refresh_tokens (user_id, token_id, nonce, expires_at, user_agent)
		 VALUES ($1, $2, $3, $4, $5)`,
		replacement.UserID, replacement.TokenID, replacement.Nonce, replacement.ExpiresAt, replacement.UserAgent)
	if err != nil {
		return 0, errors.Internal(err)
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Internal(err)
	}
	return int(n), nil
}

func (d *Database) DeleteAllRefreshTokensForUser(ctx context.Context, userID string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return errors.Internal(err)
	}
	return nil
}

func (d *Database) DeleteExpiredRefreshTokens(ctx context.Context) (int64, error) {
	res, err := d.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= now()`)
	if err != nil {
		return 0, errors.Internal(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Internal(err)
	}
	return n, nil
}

func (d *Database) DeleteExpiredInvites(ctx context.Context) (int64, error) {
	res, err := d.db.ExecContext(ctx, `DELETE FROM invites WHERE expires_at IS NOT NULL AND expires_at <= now()`)
	if err != nil {
		return 0, errors.Internal(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Internal(err)
	}
	return n, nil
}
