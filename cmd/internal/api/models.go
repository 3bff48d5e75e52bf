package api

import (
	"errors"
	"strings"
	"time"

	"nearme/cmd/identity"
	"nearme/cmd/internal/geo"
	"nearme/cmd/internal/invite"
	v1 "nearme/shared/contracts/api/v1"
)

func toUser(u identity.User) v1.User {
	p := u.Profile
	interests := p.Interests
	if interests == nil {
		interests = []string{}
	}
	links := p.SocialMediaLinks
	if links == nil {
		links = map[string]string{}
	}
	return v1.User{
		ID:                 u.ID,
		Username:           u.Username,
		Location:           v1.GeoPoint{Type: geo.GeoJSONTypePoint, Coordinates: u.Location.Coordinates()},
		IsOnline:           u.IsOnline,
		Bio:                p.Bio,
		ProfilePictureURL:  p.ProfilePictureURL,
		Interests:          interests,
		Gender:             p.Gender,
		SocialMediaLinks:   links,
		AvailabilityStatus: p.AvailabilityStatus,
		Birthday:           p.Birthday,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

func toNearbyUsers(in []identity.NearbyUser) []v1.User {
	out := make([]v1.User, 0, len(in))
	for _, n := range in {
		u := toUser(n.User)
		d := n.DistanceMeters
		u.Distance = &d
		out = append(out, u)
	}
	return out
}

func toInvitation(e invite.Entry) v1.Invitation {
	return v1.Invitation{
		ID:        e.ID,
		Sender:    v1.UserRef{ID: e.Sender.ID, Username: e.Sender.Username},
		Receiver:  v1.UserRef{ID: e.Receiver.ID, Username: e.Receiver.Username},
		Reason:    e.Reason,
		Status:    string(e.Status),
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func toInvitations(in []invite.Entry) []v1.Invitation {
	out := make([]v1.Invitation, 0, len(in))
	for _, e := range in {
		out = append(out, toInvitation(e))
	}
	return out
}

var errInvalidBirthday = errors.New("birthday must be RFC 3339 or YYYY-MM-DD")

// parseBirthday accepts RFC 3339 timestamps and bare dates (UTC midnight).
func parseBirthday(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	return time.Time{}, errInvalidBirthday
}

func toProfilePatch(req v1.UpdateProfileRequest) (identity.ProfilePatch, error) {
	patch := identity.ProfilePatch{
		Bio:                req.Bio,
		ProfilePictureURL:  req.ProfilePictureURL,
		Interests:          req.Interests,
		Gender:             req.Gender,
		SocialMediaLinks:   req.SocialMediaLinks,
		AvailabilityStatus: req.AvailabilityStatus,
	}
	switch b := req.Birthday; {
	case !b.Set:
	case b.Value == nil:
		patch.ClearBirthday = true
	default:
		t, err := parseBirthday(*b.Value)
		if err != nil {
			return identity.ProfilePatch{}, err
		}
		patch.Birthday = &t
	}
	return patch, nil
}

// timeNow is the handler clock; stores fall back to their own when zero.
var timeNow = func() time.Time { return time.Now().UTC() }
