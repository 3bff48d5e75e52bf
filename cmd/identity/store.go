package identity

import (
	"context"
	"maps"
	"slices"
	"time"

	"nearme/cmd/internal/geo"
)

const DefaultAvailabilityStatus = "Available"

// Profile holds the user-editable fields shown on a profile screen.
type Profile struct {
	Bio                string
	ProfilePictureURL  string
	Interests          []string
	Gender             string
	SocialMediaLinks   map[string]string
	AvailabilityStatus string
	Birthday           *time.Time
}

// DefaultProfile is the profile of a freshly registered user.
func DefaultProfile() Profile {
	return Profile{
		Interests:          []string{},
		SocialMediaLinks:   map[string]string{},
		AvailabilityStatus: DefaultAvailabilityStatus,
	}
}

func (p Profile) clone() Profile {
	out := p
	out.Interests = slices.Clone(p.Interests)
	if out.Interests == nil {
		out.Interests = []string{}
	}
	out.SocialMediaLinks = maps.Clone(p.SocialMediaLinks)
	if out.SocialMediaLinks == nil {
		out.SocialMediaLinks = map[string]string{}
	}
	if p.Birthday != nil {
		b := *p.Birthday
		out.Birthday = &b
	}
	return out
}

// ProfilePatch is a partial profile update; nil fields are left unchanged.
type ProfilePatch struct {
	Bio                *string
	ProfilePictureURL  *string
	Interests          *[]string
	Gender             *string
	SocialMediaLinks   *map[string]string
	AvailabilityStatus *string
	Birthday           *time.Time
	// ClearBirthday removes the stored birthday; Birthday is ignored when set.
	ClearBirthday bool
}

func (pp ProfilePatch) apply(p Profile) Profile {
	out := p.clone()
	if pp.Bio != nil {
		out.Bio = *pp.Bio
	}
	if pp.ProfilePictureURL != nil {
		out.ProfilePictureURL = *pp.ProfilePictureURL
	}
	if pp.Interests != nil {
		out.Interests = slices.Clone(*pp.Interests)
		if out.Interests == nil {
			out.Interests = []string{}
		}
	}
	if pp.Gender != nil {
		out.Gender = *pp.Gender
	}
	if pp.SocialMediaLinks != nil {
		out.SocialMediaLinks = maps.Clone(*pp.SocialMediaLinks)
		if out.SocialMediaLinks == nil {
			out.SocialMediaLinks = map[string]string{}
		}
	}
	if pp.AvailabilityStatus != nil {
		out.AvailabilityStatus = *pp.AvailabilityStatus
	}
	switch {
	case pp.ClearBirthday:
		out.Birthday = nil
	case pp.Birthday != nil:
		b := pp.Birthday.UTC()
		out.Birthday = &b
	}
	return out
}

// User is a directory entry as exposed to callers. It never carries the credential hash.
type User struct {
	ID        string
	Username  string
	Location  geo.Point
	IsOnline  bool
	Profile   Profile
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserAuth pairs a user with its stored password hash; used only by login.
type UserAuth struct {
	User         User
	PasswordHash string
}

// NearbyUser is a Nearby result entry.
type NearbyUser struct {
	User           User
	DistanceMeters float64
}

// CreateUserInput is a fully prepared user row. Service.Register builds it.
type CreateUserInput struct {
	ID           string
	Username     string
	PasswordHash string
	Location     geo.Point
	Now          time.Time
}

// Store is the user directory persistence boundary.
//
// Nearby returns the other online users within radiusMeters of userID's stored
// location, nearest first with ties broken by id. It fails with ErrNotFound when
// userID does not exist.
type Store interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserAuthByUsername(ctx context.Context, username string) (UserAuth, error)
	UpdateLocation(ctx context.Context, id string, loc geo.Point, now time.Time) error
	SetOnline(ctx context.Context, id string, online bool, now time.Time) error
	UpdateProfile(ctx context.Context, id string, patch ProfilePatch, now time.Time) (User, error)
	// UpdatePasswordHash replaces the stored credential hash. It leaves UpdatedAt alone.
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	Nearby(ctx context.Context, id string, radiusMeters float64) ([]NearbyUser, error)
	Usernames(ctx context.Context, ids []string) (map[string]string, error)
	Ping(ctx context.Context) error
}

func validateCreate(op string, in CreateUserInput) error {
	if in.ID == "" {
		return invalid(op, "missing id")
	}
	if !validUsername(in.Username) {
		return invalid(op, "invalid username")
	}
	if in.PasswordHash == "" {
		return invalid(op, "missing password hash")
	}
	if err := in.Location.Validate(); err != nil {
		return invalid(op, err.Error())
	}
	return nil
}
