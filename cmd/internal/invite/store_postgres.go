package invite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists invitations in PostgreSQL.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// StoreOption configures PostgresStore.
type StoreOption func(*PostgresStore) error

// WithSchema sets the DB schema used by the store (default: "nearme").
func WithSchema(schema string) StoreOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return ErrInvalidInput
		}
		s.schema = schema
		return nil
	}
}

func NewPostgresStore(pool *pgxpool.Pool, opts ...StoreOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: "nearme"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, ErrInvalidInput
	}
	return st, nil
}

// EnsureSchema creates the invitations table and its lookup indexes.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	invitations := s.table()
	ddl := fmt.Sprintf(`
CREATE SCHEMA IF NOT EXISTS %s;

CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  sender_id TEXT NOT NULL,
  receiver_id TEXT NOT NULL,
  reason TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),

  CONSTRAINT chk_invitations_id_ulid_len CHECK (char_length(id) = 26),
  CONSTRAINT chk_invitations_reason CHECK (char_length(btrim(reason)) > 0),
  CONSTRAINT chk_invitations_status CHECK (status IN ('pending', 'accepted', 'declined'))
);

CREATE INDEX IF NOT EXISTS %s ON %s (sender_id, created_at DESC);
CREATE INDEX IF NOT EXISTS %s ON %s (receiver_id, created_at DESC);
`,
		pgx.Identifier{s.schema}.Sanitize(),
		invitations,
		pgx.Identifier{"idx_invitations_sender"}.Sanitize(), invitations,
		pgx.Identifier{"idx_invitations_receiver"}.Sanitize(), invitations,
	)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("invite: ensure schema: %w", err)
	}
	return nil
}

const invitationColumns = `id, sender_id, receiver_id, reason, status, created_at, updated_at`

func scanInvitation(row pgx.Row) (Invitation, error) {
	var (
		inv    Invitation
		status string
	)
	if err := row.Scan(&inv.ID, &inv.SenderID, &inv.ReceiverID, &inv.Reason, &status, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return Invitation{}, err
	}
	inv.Status = Status(status)
	return inv, nil
}

func (s *PostgresStore) Create(ctx context.Context, inv Invitation) (Invitation, error) {
	if err := ctx.Err(); err != nil {
		return Invitation{}, err
	}
	if err := validateRecord(inv); err != nil {
		return Invitation{}, err
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table()+` (`+invitationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		inv.ID, inv.SenderID, inv.ReceiverID, inv.Reason, string(inv.Status), inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return Invitation{}, err
	}
	return inv, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Invitation, error) {
	if err := ctx.Err(); err != nil {
		return Invitation{}, err
	}
	inv, err := scanInvitation(s.pool.QueryRow(ctx,
		`SELECT `+invitationColumns+` FROM `+s.table()+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invitation{}, ErrNotFound
		}
		return Invitation{}, err
	}
	return inv, nil
}

// Resolve updates only while the row is still pending, so concurrent responders
// cannot both win.
func (s *PostgresStore) Resolve(ctx context.Context, id string, status Status, now time.Time) (Invitation, bool, error) {
	if err := ctx.Err(); err != nil {
		return Invitation{}, false, err
	}
	if !status.Terminal() {
		return Invitation{}, false, invalidf("status %q is not terminal", status)
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	inv, err := scanInvitation(s.pool.QueryRow(ctx,
		`UPDATE `+s.table()+`
		    SET status = $2, updated_at = $3
		  WHERE id = $1 AND status = 'pending'
		RETURNING `+invitationColumns,
		id, string(status), now,
	))
	if err == nil {
		return inv, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Invitation{}, false, err
	}

	// Distinguish not-found vs already terminal.
	cur, err := s.Get(ctx, id)
	if err != nil {
		return Invitation{}, false, err
	}
	return cur, false, nil
}

func (s *PostgresStore) ListBySender(ctx context.Context, userID string) ([]Invitation, error) {
	return s.list(ctx, "sender_id", userID)
}

func (s *PostgresStore) ListByReceiver(ctx context.Context, userID string) ([]Invitation, error) {
	return s.list(ctx, "receiver_id", userID)
}

// column is one of the two fixed party columns, never caller input.
func (s *PostgresStore) list(ctx context.Context, column, userID string) ([]Invitation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+invitationColumns+`
		   FROM `+s.table()+`
		  WHERE `+pgx.Identifier{column}.Sanitize()+` = $1
		  ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Invitation, 0)
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (s *PostgresStore) table() string { return pgIdent(s.schema, "invitations") }

func pgIdent(schema, table string) string {
	return pgx.Identifier{schema, table}.Sanitize()
}
