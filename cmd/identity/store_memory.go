package identity

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"nearme/cmd/internal/geo"
)

// MemoryStore is an in-process Store. Locations are indexed in a geo.Grid so
// Nearby only inspects cells around the requester.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[string]*memUser
	byUsername map[string]string
	grid       *geo.Grid
}

type memUser struct {
	user User
	hash string
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithGridCellMeters sets the spatial index cell size.
func WithGridCellMeters(m float64) MemoryOption {
	return func(s *MemoryStore) { s.grid = geo.NewGrid(m) }
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		users:      make(map[string]*memUser),
		byUsername: make(map[string]string),
		grid:       geo.NewGrid(0),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *MemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	if err := validateCreate(op, in); err != nil {
		return User{}, err
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byUsername[in.Username]; taken {
		return User{}, ConflictError{Op: op, Field: "username"}
	}
	if _, taken := s.users[in.ID]; taken {
		return User{}, ConflictError{Op: op, Field: "id"}
	}

	u := User{
		ID:        in.ID,
		Username:  in.Username,
		Location:  in.Location,
		IsOnline:  true,
		Profile:   DefaultProfile(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.users[u.ID] = &memUser{user: u, hash: in.PasswordHash}
	s.byUsername[u.Username] = u.ID
	s.grid.Set(u.ID, u.Location)

	return cloneUser(u), nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.users[id]
	if !ok {
		return User{}, userNotFound("identity.GetUser")
	}
	return cloneUser(rec.user), nil
}

func (s *MemoryStore) GetUserAuthByUsername(ctx context.Context, username string) (UserAuth, error) {
	if err := ctx.Err(); err != nil {
		return UserAuth{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[NormalizeUsername(username)]
	if !ok {
		return UserAuth{}, userNotFound("identity.GetUserAuthByUsername")
	}
	rec := s.users[id]
	return UserAuth{User: cloneUser(rec.user), PasswordHash: rec.hash}, nil
}

func (s *MemoryStore) UpdateLocation(ctx context.Context, id string, loc geo.Point, now time.Time) error {
	const op = "identity.UpdateLocation"

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := loc.Validate(); err != nil {
		return invalid(op, err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[id]
	if !ok {
		return userNotFound(op)
	}
	rec.user.Location = loc
	rec.user.UpdatedAt = nowOr(now)
	s.grid.Set(id, loc)
	return nil
}

func (s *MemoryStore) SetOnline(ctx context.Context, id string, online bool, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[id]
	if !ok {
		return userNotFound("identity.SetOnline")
	}
	rec.user.IsOnline = online
	rec.user.UpdatedAt = nowOr(now)
	return nil
}

func (s *MemoryStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	const op = "identity.UpdatePasswordHash"

	if err := ctx.Err(); err != nil {
		return err
	}
	if hash == "" {
		return invalid(op, "missing password hash")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[id]
	if !ok {
		return userNotFound(op)
	}
	rec.hash = hash
	return nil
}

func (s *MemoryStore) UpdateProfile(ctx context.Context, id string, patch ProfilePatch, now time.Time) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[id]
	if !ok {
		return User{}, userNotFound("identity.UpdateProfile")
	}
	rec.user.Profile = patch.apply(rec.user.Profile)
	rec.user.UpdatedAt = nowOr(now)
	return cloneUser(rec.user), nil
}

func (s *MemoryStore) Nearby(ctx context.Context, id string, radiusMeters float64) ([]NearbyUser, error) {
	const op = "identity.Nearby"

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if radiusMeters < 0 {
		return nil, invalid(op, "negative radius")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	me, ok := s.users[id]
	if !ok {
		return nil, userNotFound(op)
	}

	hits := s.grid.Within(me.user.Location, radiusMeters)
	out := make([]NearbyUser, 0, len(hits))
	for _, h := range hits {
		if h.ID == id {
			continue
		}
		rec, ok := s.users[h.ID]
		if !ok || !rec.user.IsOnline {
			continue
		}
		out = append(out, NearbyUser{User: cloneUser(rec.user), DistanceMeters: h.DistanceMeters})
	}
	slices.SortFunc(out, func(a, b NearbyUser) int {
		if c := cmp.Compare(a.DistanceMeters, b.DistanceMeters); c != 0 {
			return c
		}
		return strings.Compare(a.User.ID, b.User.ID)
	})
	return out, nil
}

func (s *MemoryStore) Usernames(ctx context.Context, ids []string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(ids))
	for _, id := range ids {
		if rec, ok := s.users[id]; ok {
			out[id] = rec.user.Username
		}
	}
	return out, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func cloneUser(u User) User {
	u.Profile = u.Profile.clone()
	return u
}

func nowOr(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
