package db

import (
	"context"
	"fmt"
)

// schema is the full DDL for soundlog. Statements are idempotent so
// EnsureSchema can run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id                TEXT PRIMARY KEY,
	refresh_token     TEXT NOT NULL,
	access_token      TEXT,
	access_expiry     TIMESTAMPTZ,
	display_name      TEXT NOT NULL DEFAULT '',
	email             TEXT NOT NULL DEFAULT '',
	country           TEXT NOT NULL DEFAULT '',
	followers         INTEGER NOT NULL DEFAULT 0,
	product           TEXT NOT NULL DEFAULT '',
	avatar_url        TEXT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_profile_sync TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS plays (
	user_id     TEXT NOT NULL REFERENCES users(id),
	played_at   TIMESTAMPTZ NOT NULL,
	track       TEXT NOT NULL,
	artist      TEXT NOT NULL,
	album       TEXT NOT NULL DEFAULT '',
	album_art   TEXT,
	uri         TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (user_id, played_at)
);

CREATE INDEX IF NOT EXISTS plays_user_played_at_idx ON plays (user_id, played_at DESC);

CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id),
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS sessions_user_idx ON sessions (user_id);
`

// EnsureSchema creates any missing tables and indexes.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}
