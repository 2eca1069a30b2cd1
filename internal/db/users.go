// This file implements user account queries, adapted from the teacher's
// internal/db/users.go bcrypt-and-parameterized-query pattern.
package db

import (
	"context"
	"database/sql"

	"github.com/emberhall/ember/internal/errors"
	"github.com/emberhall/ember/internal/models"
	"golang.org/x/crypto/bcrypt"
)

func (d *Database) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, COALESCE(avatar, ''), created_at FROM users WHERE id = $1`,
		userID)

	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Avatar, &u.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("user")
		}
		return nil, errors.Internal(err)
	}
	return &u, nil
}

func (d *Database) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, COALESCE(avatar, ''), created_at FROM users WHERE username = $1`,
		username)

	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Avatar, &u.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("user")
		}
		return nil, errors.Internal(err)
	}
	return &u, nil
}

// RegisterUser hashes the caller-supplied password and inserts the row,
// reporting created=false on a username collision instead of erroring.
func (d *Database) RegisterUser(ctx context.Context, user *models.User) (bool, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(user.PasswordHash), bcrypt.DefaultCost)
	if err != nil {
		return false, errors.Internal(err)
	}

	res, err := d.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, avatar) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (username) DO NOTHING`,
		user.ID, user.Username, user.Email, string(hash), user.Avatar)
	if err != nil {
		return false, errors.Internal(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Internal(err)
	}
	return n > 0, nil
}

// VerifyPassword reports whether plaintext matches the user's stored hash.
func VerifyPassword(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
