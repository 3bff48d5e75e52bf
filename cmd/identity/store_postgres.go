package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"nearme/cmd/internal/geo"
)

// PostgresStore implements Store over PostgreSQL with PostGIS.
//
// The pool is owned by the caller. Locations are geography(Point, 4326) built with
// ST_MakePoint(lon, lat); distances use the sphere (use_spheroid = false).
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema (default "nearme").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
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
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

// userColumns must stay in sync with scanUser.
const userColumns = `u.id, u.username,
       ST_X(u.location::geometry), ST_Y(u.location::geometry),
       u.is_online, u.bio, u.profile_picture_url, u.interests, u.gender,
       u.social_media_links, u.availability_status, u.birthday,
       u.created_at, u.updated_at`

func scanUser(row pgx.Row, extra ...any) (User, error) {
	var u User
	dest := []any{
		&u.ID, &u.Username,
		&u.Location.Lon, &u.Location.Lat,
		&u.IsOnline, &u.Profile.Bio, &u.Profile.ProfilePictureURL, &u.Profile.Interests, &u.Profile.Gender,
		&u.Profile.SocialMediaLinks, &u.Profile.AvailabilityStatus, &u.Profile.Birthday,
		&u.CreatedAt, &u.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return User{}, err
	}
	u.Profile = u.Profile.clone()
	return u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	if err := validateCreate(op, in); err != nil {
		return User{}, err
	}
	now := nowOr(in.Now)

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.users()+` (id, username, password_hash, location, is_online, created_at, updated_at)
		 VALUES ($1, $2, $3, ST_SetSRID(ST_MakePoint($4, $5), 4326)::geography, true, $6, $6)`,
		in.ID, in.Username, in.PasswordHash, in.Location.Lon, in.Location.Lat, now,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, err
	}

	return User{
		ID:        in.ID,
		Username:  in.Username,
		Location:  in.Location,
		IsOnline:  true,
		Profile:   DefaultProfile(),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (User, error) {
	const op = "identity.GetUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM `+s.users()+` u WHERE u.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, userNotFound(op)
		}
		return User{}, err
	}
	return u, nil
}

func (s *PostgresStore) GetUserAuthByUsername(ctx context.Context, username string) (UserAuth, error) {
	const op = "identity.GetUserAuthByUsername"

	if err := ctx.Err(); err != nil {
		return UserAuth{}, err
	}
	var hash string
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+`, u.password_hash FROM `+s.users()+` u WHERE u.username = $1`,
		NormalizeUsername(username)), &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserAuth{}, userNotFound(op)
		}
		return UserAuth{}, err
	}
	return UserAuth{User: u, PasswordHash: hash}, nil
}

func (s *PostgresStore) UpdateLocation(ctx context.Context, id string, loc geo.Point, now time.Time) error {
	const op = "identity.UpdateLocation"

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := loc.Validate(); err != nil {
		return invalid(op, err.Error())
	}

	ct, err := s.pool.Exec(ctx,
		`UPDATE `+s.users()+`
		    SET location = ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography,
		        updated_at = $4
		  WHERE id = $1`,
		id, loc.Lon, loc.Lat, nowOr(now),
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return userNotFound(op)
	}
	return nil
}

func (s *PostgresStore) SetOnline(ctx context.Context, id string, online bool, now time.Time) error {
	const op = "identity.SetOnline"

	if err := ctx.Err(); err != nil {
		return err
	}
	ct, err := s.pool.Exec(ctx,
		`UPDATE `+s.users()+` SET is_online = $2, updated_at = $3 WHERE id = $1`,
		id, online, nowOr(now),
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return userNotFound(op)
	}
	return nil
}

func (s *PostgresStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	const op = "identity.UpdatePasswordHash"

	if err := ctx.Err(); err != nil {
		return err
	}
	if hash == "" {
		return invalid(op, "missing password hash")
	}
	ct, err := s.pool.Exec(ctx,
		`UPDATE `+s.users()+` SET password_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return userNotFound(op)
	}
	return nil
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, id string, patch ProfilePatch, now time.Time) (User, error) {
	const op = "identity.UpdateProfile"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	var interests, links any
	if patch.Interests != nil {
		v := *patch.Interests
		if v == nil {
			v = []string{}
		}
		interests = v
	}
	if patch.SocialMediaLinks != nil {
		v := *patch.SocialMediaLinks
		if v == nil {
			v = map[string]string{}
		}
		links = v
	}

	u, err := scanUser(s.pool.QueryRow(ctx,
		`UPDATE `+s.users()+` u
		    SET bio = COALESCE($2, u.bio),
		        profile_picture_url = COALESCE($3, u.profile_picture_url),
		        interests = COALESCE($4::text[], u.interests),
		        gender = COALESCE($5, u.gender),
		        social_media_links = COALESCE($6::jsonb, u.social_media_links),
		        availability_status = COALESCE($7, u.availability_status),
		        birthday = CASE WHEN $10 THEN NULL ELSE COALESCE($8, u.birthday) END,
		        updated_at = $9
		  WHERE u.id = $1
		RETURNING `+userColumns,
		id,
		patch.Bio,
		patch.ProfilePictureURL,
		interests,
		patch.Gender,
		links,
		patch.AvailabilityStatus,
		patch.Birthday,
		nowOr(now),
		patch.ClearBirthday,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, userNotFound(op)
		}
		return User{}, err
	}
	return u, nil
}

// Nearby filters with ST_DWithin (GiST-indexed) and orders by spherical distance.
func (s *PostgresStore) Nearby(ctx context.Context, id string, radiusMeters float64) ([]NearbyUser, error) {
	const op = "identity.Nearby"

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if radiusMeters < 0 {
		return nil, invalid(op, "negative radius")
	}

	users := s.users()
	rows, err := s.pool.Query(ctx,
		`WITH me AS (SELECT id, location FROM `+users+` WHERE id = $1)
		 SELECT `+userColumns+`, ST_Distance(u.location, me.location, false) AS dist
		   FROM `+users+` u, me
		  WHERE u.id <> me.id
		    AND u.is_online
		    AND ST_DWithin(u.location, me.location, $2, false)
		  ORDER BY dist, u.id`,
		id, radiusMeters,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []NearbyUser{}
	for rows.Next() {
		var d float64
		u, err := scanUser(rows, &d)
		if err != nil {
			return nil, err
		}
		out = append(out, NearbyUser{User: u, DistanceMeters: d})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(out) == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM `+users+` WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, userNotFound(op)
		}
	}
	return out, nil
}

func (s *PostgresStore) Usernames(ctx context.Context, ids []string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, username FROM `+s.users()+` WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = name
	}
	return out, rows.Err()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) users() string { return pgIdent(s.schema, "users") }

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return "", false
	}
	c := strings.ToLower(pgErr.ConstraintName)
	switch {
	case c == "uq_users_username", strings.Contains(c, "username"):
		return "username", true
	case strings.HasSuffix(c, "_pkey"):
		return "id", true
	default:
		return "unique", true
	}
}
