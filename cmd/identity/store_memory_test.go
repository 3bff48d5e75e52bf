package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"nearme/cmd/internal/geo"
)

func mustCreate(t *testing.T, s Store, username string, loc geo.Point) User {
	t.Helper()

	id, err := NewULID(time.Now().UTC())
	if err != nil {
		t.Fatalf("ulid: %v", err)
	}
	u, err := s.CreateUser(context.Background(), CreateUserInput{
		ID:           id,
		Username:     username,
		PasswordHash: "$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$a2V5",
		Location:     loc,
	})
	if err != nil {
		t.Fatalf("create %s: %v", username, err)
	}
	return u
}

func TestMemoryStore_CreateUser_Defaults(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	u := mustCreate(t, s, "alice", geo.Point{Lon: 2.35, Lat: 48.85})

	if !u.IsOnline {
		t.Fatalf("new users start online")
	}
	if u.Profile.AvailabilityStatus != DefaultAvailabilityStatus {
		t.Fatalf("availability=%q", u.Profile.AvailabilityStatus)
	}
	if u.Profile.Interests == nil || u.Profile.SocialMediaLinks == nil {
		t.Fatalf("expected empty, non-nil collections: %+v", u.Profile)
	}

	got, err := s.GetUser(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Location != (geo.Point{Lon: 2.35, Lat: 48.85}) {
		t.Fatalf("location=%v", got.Location)
	}
}

func TestMemoryStore_CreateUser_UsernameConflictIsCaseSensitive(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	mustCreate(t, s, "Bob", geo.Point{})

	id, _ := NewULID(time.Now())
	_, err := s.CreateUser(context.Background(), CreateUserInput{
		ID: id, Username: "Bob", PasswordHash: "x", Location: geo.Point{},
	})
	if !IsConflict(err) || !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	mustCreate(t, s, "bob", geo.Point{})
}

func TestMemoryStore_NotFound(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	missing := "01HV0000000000000000000000"

	if _, err := s.GetUser(ctx, missing); !IsNotFound(err) {
		t.Fatalf("GetUser: %v", err)
	}
	if err := s.UpdateLocation(ctx, missing, geo.Point{}, time.Time{}); !IsNotFound(err) {
		t.Fatalf("UpdateLocation: %v", err)
	}
	if err := s.SetOnline(ctx, missing, false, time.Time{}); !IsNotFound(err) {
		t.Fatalf("SetOnline: %v", err)
	}
	if _, err := s.UpdateProfile(ctx, missing, ProfilePatch{}, time.Time{}); !IsNotFound(err) {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if _, err := s.Nearby(ctx, missing, 5000); !IsNotFound(err) {
		t.Fatalf("Nearby: %v", err)
	}
	if _, err := s.GetUserAuthByUsername(ctx, "ghost"); !IsNotFound(err) {
		t.Fatalf("GetUserAuthByUsername: %v", err)
	}
}

func TestMemoryStore_Nearby_RadiusScenario(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	a := mustCreate(t, s, "a", geo.Point{Lon: 0, Lat: 0})
	b := mustCreate(t, s, "b", geo.Point{Lon: 0, Lat: 0.001})

	got, err := s.Nearby(ctx, a.ID, 5000)
	if err != nil {
		t.Fatalf("Nearby: %v", err)
	}
	if len(got) != 1 || got[0].User.ID != b.ID {
		t.Fatalf("expected [b], got %+v", got)
	}
	if d := got[0].DistanceMeters; d < 110 || d > 112 {
		t.Fatalf("distance=%v want ~111m", d)
	}

	got, err = s.Nearby(ctx, a.ID, 50)
	if err != nil {
		t.Fatalf("Nearby: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no one within 50m, got %+v", got)
	}
}

func TestMemoryStore_Nearby_FiltersAndOrdering(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore(WithGridCellMeters(250))
	ctx := context.Background()

	me := mustCreate(t, s, "me", geo.Point{Lon: 13.4, Lat: 52.52})
	far := mustCreate(t, s, "far", geo.Point{Lon: 13.4, Lat: 52.53})
	near := mustCreate(t, s, "near", geo.Point{Lon: 13.4, Lat: 52.521})
	offline := mustCreate(t, s, "offline", geo.Point{Lon: 13.4, Lat: 52.5205})
	mustCreate(t, s, "elsewhere", geo.Point{Lon: -74, Lat: 40.7})

	if err := s.SetOnline(ctx, offline.ID, false, time.Time{}); err != nil {
		t.Fatalf("SetOnline: %v", err)
	}

	got, err := s.Nearby(ctx, me.ID, 5000)
	if err != nil {
		t.Fatalf("Nearby: %v", err)
	}
	if len(got) != 2 || got[0].User.ID != near.ID || got[1].User.ID != far.ID {
		t.Fatalf("expected [near far], got %+v", got)
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].DistanceMeters > got[i].DistanceMeters {
			t.Fatalf("not nearest-first: %+v", got)
		}
	}

	// Offline requesters still see others; the flag only hides candidates.
	if err := s.SetOnline(ctx, me.ID, false, time.Time{}); err != nil {
		t.Fatalf("SetOnline: %v", err)
	}
	got, err = s.Nearby(ctx, me.ID, 5000)
	if err != nil || len(got) != 2 {
		t.Fatalf("offline requester: got=%+v err=%v", got, err)
	}
}

func TestMemoryStore_Nearby_TiesBrokenByID(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	me := mustCreate(t, s, "center", geo.Point{})
	x := mustCreate(t, s, "x", geo.Point{Lon: 0.001})
	y := mustCreate(t, s, "y", geo.Point{Lon: -0.001})

	got, err := s.Nearby(ctx, me.ID, 1000)
	if err != nil {
		t.Fatalf("Nearby: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2, got %+v", got)
	}
	first, second := x.ID, y.ID
	if second < first {
		first, second = second, first
	}
	if got[0].User.ID != first || got[1].User.ID != second {
		t.Fatalf("ties must order by id: %+v", got)
	}
}

func TestMemoryStore_UpdateLocation_MovesInIndex(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	a := mustCreate(t, s, "a", geo.Point{})
	b := mustCreate(t, s, "b", geo.Point{Lon: 10, Lat: 10})

	if got, _ := s.Nearby(ctx, a.ID, 5000); len(got) != 0 {
		t.Fatalf("expected nobody nearby, got %+v", got)
	}
	if err := s.UpdateLocation(ctx, b.ID, geo.Point{Lon: 0.001}, time.Time{}); err != nil {
		t.Fatalf("UpdateLocation: %v", err)
	}
	if got, _ := s.Nearby(ctx, a.ID, 5000); len(got) != 1 || got[0].User.ID != b.ID {
		t.Fatalf("expected b after move, got %+v", got)
	}

	if err := s.UpdateLocation(ctx, b.ID, geo.Point{Lon: 200}, time.Time{}); !IsInvalidInput(err) {
		t.Fatalf("expected invalid input for lon=200, got %v", err)
	}
}

func TestMemoryStore_UpdateProfile_Partial(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	u := mustCreate(t, s, "carol", geo.Point{})

	bio := "climber"
	interests := []string{"bouldering", "coffee"}
	out, err := s.UpdateProfile(ctx, u.ID, ProfilePatch{Bio: &bio, Interests: &interests}, time.Time{})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if out.Profile.Bio != "climber" || len(out.Profile.Interests) != 2 {
		t.Fatalf("patch not applied: %+v", out.Profile)
	}
	if out.Profile.AvailabilityStatus != DefaultAvailabilityStatus {
		t.Fatalf("untouched field changed: %+v", out.Profile)
	}

	// Mutating the returned value must not leak into the store.
	out.Profile.Interests[0] = "mutated"
	again, _ := s.GetUser(ctx, u.ID)
	if again.Profile.Interests[0] != "bouldering" {
		t.Fatalf("store state aliased: %+v", again.Profile.Interests)
	}

	status := "Busy"
	bday := time.Date(1990, 4, 2, 0, 0, 0, 0, time.UTC)
	out, err = s.UpdateProfile(ctx, u.ID, ProfilePatch{AvailabilityStatus: &status, Birthday: &bday}, time.Time{})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if out.Profile.Bio != "climber" || out.Profile.AvailabilityStatus != "Busy" || !out.Profile.Birthday.Equal(bday) {
		t.Fatalf("second patch wrong: %+v", out.Profile)
	}

	out, err = s.UpdateProfile(ctx, u.ID, ProfilePatch{ClearBirthday: true, Birthday: &bday}, time.Time{})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if out.Profile.Birthday != nil || out.Profile.AvailabilityStatus != "Busy" {
		t.Fatalf("birthday not cleared: %+v", out.Profile)
	}
}

func TestMemoryStore_Usernames(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	a := mustCreate(t, s, "ann", geo.Point{})

	got, err := s.Usernames(context.Background(), []string{a.ID, "01HV0000000000000000000000"})
	if err != nil {
		t.Fatalf("Usernames: %v", err)
	}
	if len(got) != 1 || got[a.ID] != "ann" {
		t.Fatalf("got %v", got)
	}
}

func TestMemoryStore_UpdatePasswordHash(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	u := mustCreate(t, s, "hash-owner", geo.Point{})

	if err := s.UpdatePasswordHash(ctx, u.ID, "$argon2id$v=19$m=8192,t=2,p=1$c2FsdA$a2V5"); err != nil {
		t.Fatalf("UpdatePasswordHash: %v", err)
	}
	auth, err := s.GetUserAuthByUsername(ctx, "hash-owner")
	if err != nil {
		t.Fatalf("GetUserAuthByUsername: %v", err)
	}
	if auth.PasswordHash != "$argon2id$v=19$m=8192,t=2,p=1$c2FsdA$a2V5" || !auth.User.UpdatedAt.Equal(u.UpdatedAt) {
		t.Fatalf("unexpected auth after update: %+v", auth)
	}

	if err := s.UpdatePasswordHash(ctx, "01HV0000000000000000000000", "x"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.UpdatePasswordHash(ctx, u.ID, ""); !IsInvalidInput(err) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
