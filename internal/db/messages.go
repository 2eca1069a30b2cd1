// This file implements message persistence for the PubSub fabric's
// Message/DeleteMessage events (§4.C).
package db

import (
	"context"
	"database/sql"

	"github.com/emberhall/ember/internal/errors"
	"github.com/emberhall/ember/internal/models"
)

func (d *Database) GetMessage(ctx context.Context, channelID, messageID string) (*models.Message, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, channel_id, author_id, content, created_at, edited_at FROM messages
		 WHERE channel_id = $1 AND id = $2`,
		channelID, messageID)

	var m models.Message
	var editedAt sql.NullTime
	if err := row.Scan(&m.ID, &m.ChannelID, &m.AuthorID, &m.Content, &m.CreatedAt, &editedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("message")
		}
		return nil, errors.Internal(err)
	}
	if editedAt.Valid {
		m.EditedAt = &editedAt.Time
	}
	return &m, nil
}

func (d *Database) InsertMessage(ctx context.Context, msg *models.Message) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO messages (id, channel_id, author_id, content) VALUES ($1, $2, $3, $4)`,
		msg.ID, msg.ChannelID, msg.AuthorID, msg.Content)
	if err != nil {
		return errors.Internal(err)
	}
	return nil
}

func (d *Database) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM messages WHERE channel_id = $1 AND id = $2`,
		channelID, messageID)
	if err != nil {
		return errors.Internal(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Internal(err)
	}
	if n == 0 {
		return errors.NotFound("message")
	}
	return nil
}
