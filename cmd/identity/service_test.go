package identity

import (
	"context"
	"errors"
	"strings"
	"testing"

	"nearme/cmd/internal/geo"
	"nearme/cmd/security/password"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1

	svc, err := NewService(NewMemoryStore(), WithPasswordConfig(cfg))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestService_RegisterAndLogin(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{
		Username: "  dana ",
		Password: "sunny-afternoon",
		Location: geo.Point{Lon: -0.1276, Lat: 51.5072},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Username != "dana" || len(u.ID) != 26 || !u.IsOnline {
		t.Fatalf("unexpected user: %+v", u)
	}

	got, err := svc.Login(ctx, "dana", "sunny-afternoon")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("login id=%s want %s", got.ID, u.ID)
	}

	auth, err := svc.Store().GetUserAuthByUsername(ctx, "dana")
	if err != nil {
		t.Fatalf("GetUserAuthByUsername: %v", err)
	}
	if !strings.HasPrefix(auth.PasswordHash, "$argon2id$") || strings.Contains(auth.PasswordHash, "sunny") {
		t.Fatalf("password not hashed: %q", auth.PasswordHash)
	}
}

func TestService_Register_Duplicate(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()
	in := RegisterInput{Username: "eve", Password: "long enough pw", Location: geo.Point{}}

	if _, err := svc.Register(ctx, in); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := svc.Register(ctx, in)
	var ce ConflictError
	if !errors.As(err, &ce) || ce.Field != "username" {
		t.Fatalf("expected username conflict, got %v", err)
	}
}

func TestService_Register_Invalid(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()

	cases := []RegisterInput{
		{Username: "   ", Password: "long enough pw"},
		{Username: "frank", Password: ""},
		{Username: "frank", Password: "short"},
		{Username: "frank", Password: "long enough pw", Location: geo.Point{Lat: 95}},
		{Username: strings.Repeat("x", MaxUsernameLength+1), Password: "long enough pw"},
	}
	for i, in := range cases {
		if _, err := svc.Register(ctx, in); !IsInvalidInput(err) {
			t.Fatalf("case %d: expected invalid input, got %v", i, err)
		}
	}
}

func TestService_Login_Failures(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterInput{Username: "gina", Password: "right password"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	for _, tc := range []struct{ user, pw string }{
		{"gina", "wrong password"},
		{"Gina", "right password"},
		{"nobody", "right password"},
		{"gina", ""},
	} {
		if _, err := svc.Login(ctx, tc.user, tc.pw); !IsInvalidCredentials(err) {
			t.Fatalf("Login(%q,%q): expected invalid credentials, got %v", tc.user, tc.pw, err)
		}
	}
}

func TestService_Login_RehashesOnParameterChange(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()

	cost := func(memKiB, iter uint32) password.Config {
		cfg := password.DefaultConfig()
		cfg.Params.MemoryKiB = memKiB
		cfg.Params.Iterations = iter
		cfg.Params.Parallelism = 1
		return cfg
	}
	serviceWith := func(cfg password.Config) *Service {
		svc, err := NewService(store, WithPasswordConfig(cfg))
		if err != nil {
			t.Fatalf("NewService: %v", err)
		}
		return svc
	}
	storedHash := func() string {
		auth, err := store.GetUserAuthByUsername(ctx, "rex")
		if err != nil {
			t.Fatalf("GetUserAuthByUsername: %v", err)
		}
		return auth.PasswordHash
	}

	original := serviceWith(cost(32*1024, 1))
	if _, err := original.Register(ctx, RegisterInput{Username: "rex", Password: "tidal-garden-9"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	before := storedHash()

	steps := []struct {
		name string
		cfg  password.Config
	}{
		{"iterations raised", cost(32*1024, 2)},
		{"memory lowered", cost(8*1024, 2)},
	}
	for _, step := range steps {
		svc := serviceWith(step.cfg)
		if _, err := svc.Login(ctx, "rex", "tidal-garden-9"); err != nil {
			t.Fatalf("%s: Login: %v", step.name, err)
		}
		after := storedHash()
		if after == before || step.cfg.NeedsRehash(after) {
			t.Fatalf("%s: hash not upgraded: %q", step.name, after)
		}
		if _, err := svc.Login(ctx, "rex", "tidal-garden-9"); err != nil {
			t.Fatalf("%s: Login with upgraded hash: %v", step.name, err)
		}
		if again := storedHash(); again != after {
			t.Fatalf("%s: current hash must not be rewritten", step.name)
		}
		before = after
	}

	if _, err := serviceWith(cost(8*1024, 2)).Login(ctx, "rex", "wrong-password"); !IsInvalidCredentials(err) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}
