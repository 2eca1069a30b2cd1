// This file implements channel visibility checks and DM channel lookup.
package db

import (
	"context"
	"database/sql"
	"strings"

	"github.com/emberhall/ember/internal/errors"
	"github.com/emberhall/ember/internal/models"
)

// CanUserSeeChannel reports whether userID may read channelID: guild
// channels require membership in the owning guild; DM channels (id
// "a:b", §4.J) require userID to be one of the two participants.
func (d *Database) CanUserSeeChannel(ctx context.Context, userID, channelID string) (bool, error) {
	if parts := strings.SplitN(channelID, ":", 2); len(parts) == 2 {
		var kind string
		err := d.db.QueryRowContext(ctx, `SELECT kind FROM channels WHERE id = $1`, channelID).Scan(&kind)
		if err == nil && kind == "dm" {
			return parts[0] == userID || parts[1] == userID, nil
		}
	}

	var guildID sql.NullString
	err := d.db.QueryRowContext(ctx, `SELECT guild_id FROM channels WHERE id = $1`, channelID).Scan(&guildID)
	if err == sql.ErrNoRows {
		return false, errors.NotFound("channel")
	}
	if err != nil {
		return false, errors.Internal(err)
	}
	if !guildID.Valid {
		return false, nil
	}
	return d.IsUserInGuild(ctx, userID, guildID.String)
}

// GetChannelGuildID returns the owning guild id for a guild voice/text
// channel, or "" for a DM channel (no guild topic to scope a VoiceJoin/
// VoiceLeave event to, §4.C).
func (d *Database) GetChannelGuildID(ctx context.Context, channelID string) (string, error) {
	var guildID sql.NullString
	err := d.db.QueryRowContext(ctx, `SELECT guild_id FROM channels WHERE id = $1`, channelID).Scan(&guildID)
	if err == sql.ErrNoRows {
		return "", errors.NotFound("channel")
	}
	if err != nil {
		return "", errors.Internal(err)
	}
	if !guildID.Valid {
		return "", nil
	}
	return guildID.String, nil
}

// GetDMChannel returns the canonical DM channel id for (userA, userB),
// creating the channel row on first contact (§4.J, models.DMChannelID).
func (d *Database) GetDMChannel(ctx context.Context, userA, userB string) (string, error) {
	channelID := models.DMChannelID(userA, userB)

	_, err := d.db.ExecContext(ctx,
		`INSERT INTO channels (id, guild_id, kind, name) VALUES ($1, NULL, 'dm', NULL)
		 ON CONFLICT (id) DO NOTHING`,
		channelID)
	if err != nil {
		return "", errors.Internal(err)
	}
	return channelID, nil
}
