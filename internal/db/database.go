// This file implements the core database connection and lifecycle
// management, adapted from the teacher's internal/db/database.go: same
// connection-pool tuning, same validateConfig SQL-injection guard on the
// connection string fields, same CREATE TABLE IF NOT EXISTS migration
// style, narrowed to the schema this core actually needs.
package db

import (
	"database/sql"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Config holds database configuration.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// Database wraps the connection pool and implements Store.
type Database struct {
	db *sql.DB
}

func validateConfig(config Config) error {
	if config.Host == "" {
		return fmt.Errorf("database host cannot be empty")
	}
	if net.ParseIP(config.Host) == nil {
		hostnameRegex := regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9\-\.]{0,253}[a-zA-Z0-9])?$`)
		if !hostnameRegex.MatchString(config.Host) {
			return fmt.Errorf("invalid database host: %s", config.Host)
		}
	}

	if config.Port == "" {
		return fmt.Errorf("database port cannot be empty")
	}
	port, err := strconv.Atoi(config.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid database port: %s (must be 1-65535)", config.Port)
	}

	if config.User == "" {
		return fmt.Errorf("database user cannot be empty")
	}
	userRegex := regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	if !userRegex.MatchString(config.User) {
		return fmt.Errorf("invalid database user: %s", config.User)
	}

	if config.DBName == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	dbNameRegex := regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	if !dbNameRegex.MatchString(config.DBName) {
		return fmt.Errorf("invalid database name: %s", config.DBName)
	}

	validSSLModes := []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}
	if config.SSLMode != "" {
		valid := false
		for _, mode := range validSSLModes {
			if config.SSLMode == mode {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid SSL mode: %s (must be one of: %s)", config.SSLMode, strings.Join(validSSLModes, ", "))
		}
	}

	return nil
}

// NewDatabase opens a pooled Postgres connection. It does not run
// migrations; call Migrate separately.
func NewDatabase(config Config) (*Database, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	sqlDB, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetConnMaxIdleTime(1 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{db: sqlDB}, nil
}

// NewDatabaseForTesting wraps an existing *sql.DB, e.g. one backed by a
// lightweight fake, for package tests that don't want a live Postgres.
func NewDatabaseForTesting(sqlDB *sql.DB) *Database {
	return &Database{db: sqlDB}
}

func (d *Database) Close() error { return d.db.Close() }

func (d *Database) DB() *sql.DB { return d.db }

// Migrate creates the schema this core depends on. Guild/channel CRUD
// columns beyond what the core touches are intentionally absent (§5); the
// out-of-scope REST layer that would own full CRUD owns its own migrations.
func (d *Database) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(64) PRIMARY KEY,
			username VARCHAR(64) UNIQUE NOT NULL,
			email VARCHAR(255) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			avatar TEXT,
			created_at TIMESTAMPTZ DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS guilds (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			owner_id VARCHAR(64) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS guild_members (
			guild_id VARCHAR(64) NOT NULL REFERENCES guilds(id) ON DELETE CASCADE,
			user_id VARCHAR(64) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			role VARCHAR(32) NOT NULL DEFAULT 'member',
			joined_at TIMESTAMPTZ DEFAULT now(),
			PRIMARY KEY (guild_id, user_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_guild_members_user ON guild_members(user_id)`,

		`CREATE TABLE IF NOT EXISTS channels (
			id VARCHAR(128) PRIMARY KEY,
			guild_id VARCHAR(64) REFERENCES guilds(id) ON DELETE CASCADE,
			kind VARCHAR(32) NOT NULL,
			name VARCHAR(255),
			created_at TIMESTAMPTZ DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_channels_guild ON channels(guild_id)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id VARCHAR(64) PRIMARY KEY,
			channel_id VARCHAR(128) NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
			author_id VARCHAR(64) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT now(),
			edited_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_channel_created ON messages(channel_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS friendships (
			user_a_id VARCHAR(64) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			user_b_id VARCHAR(64) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ DEFAULT now(),
			PRIMARY KEY (user_a_id, user_b_id)
		)`,

		`CREATE TABLE IF NOT EXISTS friend_requests (
			from_user_id VARCHAR(64) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			to_user_id VARCHAR(64) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ DEFAULT now(),
			PRIMARY KEY (from_user_id, to_user_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_friend_requests_to ON friend_requests(to_user_id)`,

		`CREATE TABLE IF NOT EXISTS invites (
			code VARCHAR(32) PRIMARY KEY,
			guild_id VARCHAR(64) NOT NULL REFERENCES guilds(id) ON DELETE CASCADE,
			created_by VARCHAR(64) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			max_uses INT DEFAULT 0,
			uses INT DEFAULT 0,
			expires_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invites_expires ON invites(expires_at) WHERE expires_at IS NOT NULL`,

		`CREATE TABLE IF NOT EXISTS bots (
			user_id VARCHAR(64) PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			owner_id VARCHAR(64) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ DEFAULT now()
		)`,

		// Refresh tokens: at most one row per (user_id, nonce) — §3 invariant.
		`CREATE TABLE IF NOT EXISTS refresh_tokens (
			user_id VARCHAR(64) NOT NULL,
			token_id VARCHAR(64) NOT NULL,
			nonce VARCHAR(128) NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			user_agent TEXT,
			created_at TIMESTAMPTZ DEFAULT now(),
			PRIMARY KEY (user_id, nonce)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_expires ON refresh_tokens(expires_at)`,
	}

	for _, stmt := range migrations {
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w\nstatement: %s", err, stmt)
		}
	}

	return nil
}
