package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"nearme/cmd/internal/geo"
	"nearme/cmd/security/password"
)

// Service registers and authenticates users on top of a Store.
type Service struct {
	store Store
	pw    password.Config
	now   func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// ServiceOption configures the Service.
type ServiceOption func(*Service) error

// WithPasswordConfig sets the hashing cost and password policy.
func WithPasswordConfig(cfg password.Config) ServiceOption {
	return func(s *Service) error {
		if cfg.Policy.MinLength > cfg.Policy.MaxLength {
			return errors.New("identity: invalid password policy")
		}
		s.pw = cfg
		return nil
	}
}

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) error {
		if now == nil {
			return errors.New("identity: nil clock")
		}
		s.now = now
		return nil
	}
}

func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("identity: nil store")
	}
	s := &Service{
		store: store,
		pw:    password.DefaultConfig(),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Store returns the underlying directory.
func (s *Service) Store() Store { return s.store }

type RegisterInput struct {
	Username string
	Password string
	Location geo.Point
}

// Register creates a user that starts online with a default profile.
// A taken username yields a ConflictError on "username".
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	const op = "identity.Register"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	username := NormalizeUsername(in.Username)
	if !validUsername(username) {
		return User{}, invalid(op, "username must be 1-64 printable characters")
	}
	if strings.TrimSpace(in.Password) == "" {
		return User{}, invalid(op, "password is required")
	}
	if err := in.Location.Validate(); err != nil {
		return User{}, invalid(op, err.Error())
	}

	hash, err := s.pw.Hash(in.Password)
	if err != nil {
		switch {
		case errors.Is(err, password.ErrPasswordTooShort),
			errors.Is(err, password.ErrPasswordTooLong),
			errors.Is(err, password.ErrWeakPassword):
			return User{}, invalid(op, err.Error())
		default:
			return User{}, err
		}
	}

	now := s.now()
	id, err := NewULID(now)
	if err != nil {
		return User{}, err
	}

	return s.store.CreateUser(ctx, CreateUserInput{
		ID:           id,
		Username:     username,
		PasswordHash: hash,
		Location:     in.Location,
		Now:          now,
	})
}

// Login checks credentials. Unknown usernames and wrong passwords both yield
// ErrInvalidCredentials, and both pay for one Argon2id evaluation.
func (s *Service) Login(ctx context.Context, username, plain string) (User, error) {
	const op = "identity.Login"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	badCreds := OpError{Op: op, Kind: ErrInvalidCredentials}

	username = NormalizeUsername(username)
	if username == "" || plain == "" {
		return User{}, badCreds
	}

	auth, err := s.store.GetUserAuthByUsername(ctx, username)
	if err != nil {
		if !IsNotFound(err) {
			return User{}, err
		}
		_, _ = s.pw.Verify(s.dummy(), plain)
		return User{}, badCreds
	}

	ok, err := s.pw.Verify(auth.PasswordHash, plain)
	if err != nil {
		if errors.Is(err, password.ErrInvalidHash) {
			return User{}, OpError{Op: op, Kind: ErrInvalidCredentials, Msg: "stored hash unusable"}
		}
		return User{}, err
	}
	if !ok {
		return User{}, badCreds
	}

	// A failed upgrade keeps the old hash, which still verifies.
	if s.pw.NeedsRehash(auth.PasswordHash) {
		_ = s.rehash(ctx, auth.User.ID, plain)
	}
	return auth.User, nil
}

// rehash stores plain under the current parameters. The policy is not
// re-applied: the password was accepted when it was set.
func (s *Service) rehash(ctx context.Context, id, plain string) error {
	cfg := s.pw
	cfg.Policy = password.Policy{MaxLength: max(cfg.Policy.MaxLength, len(plain))}
	hash, err := cfg.Hash(plain)
	if err != nil {
		return err
	}
	return s.store.UpdatePasswordHash(ctx, id, hash)
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		cfg := s.pw
		cfg.Policy.MinLength = 0
		cfg.Policy.RejectVeryWeak = false
		h, err := cfg.Hash("nearme-timing-equalizer")
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}
