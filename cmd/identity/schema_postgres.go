package identity

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// EnsureSchema creates the PostGIS extension, the schema and the users table with
// its indexes. It is idempotent.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	users := pgIdent(s.schema, "users")

	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE SCHEMA IF NOT EXISTS %s;

CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  location geography(Point, 4326) NOT NULL,
  is_online BOOLEAN NOT NULL DEFAULT true,

  bio TEXT NOT NULL DEFAULT '',
  profile_picture_url TEXT NOT NULL DEFAULT '',
  interests TEXT[] NOT NULL DEFAULT '{}',
  gender TEXT NOT NULL DEFAULT '',
  social_media_links JSONB NOT NULL DEFAULT '{}'::jsonb,
  availability_status TEXT NOT NULL DEFAULT 'Available',
  birthday TIMESTAMPTZ NULL,

  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),

  CONSTRAINT chk_users_id_ulid_len CHECK (char_length(id) = 26),
  CONSTRAINT uq_users_username UNIQUE (username)
);

CREATE INDEX IF NOT EXISTS %s ON %s USING GIST (location);
CREATE INDEX IF NOT EXISTS %s ON %s (is_online) WHERE is_online;
`,
		pgx.Identifier{s.schema}.Sanitize(),
		users,
		pgx.Identifier{"idx_users_location"}.Sanitize(), users,
		pgx.Identifier{"idx_users_online"}.Sanitize(), users,
	)

	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("identity: ensure schema: %w", err)
	}
	return nil
}
