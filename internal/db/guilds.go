// This file implements guild membership and role checks, grounded on the
// teacher's parameterized-query style in internal/db/users.go.
package db

import (
	"context"
	"database/sql"

	"github.com/emberhall/ember/internal/errors"
)

func (d *Database) IsUserInGuild(ctx context.Context, userID, guildID string) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM guild_members WHERE guild_id = $1 AND user_id = $2)`,
		guildID, userID).Scan(&exists)
	if err != nil {
		return false, errors.Internal(err)
	}
	return exists, nil
}

// CanUserManageMessages reports whether userID holds the owner or admin
// role in the guild that owns channelID. DM channels have no guild and no
// manager (§4.C DeleteMessage is author-only there, handled by the caller).
func (d *Database) CanUserManageMessages(ctx context.Context, userID, channelID string) (bool, error) {
	var role string
	err := d.db.QueryRowContext(ctx,
		`SELECT gm.role FROM guild_members gm
		 JOIN channels c ON c.guild_id = gm.guild_id
		 WHERE c.id = $1 AND gm.user_id = $2`,
		channelID, userID).Scan(&role)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Internal(err)
	}
	return role == "owner" || role == "admin", nil
}

func (d *Database) CanUserCreateInviteIn(ctx context.Context, userID, guildID string) (bool, error) {
	return d.IsUserInGuild(ctx, userID, guildID)
}
