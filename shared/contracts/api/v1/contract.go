// Package v1 defines the JSON contract of the Who's Near Me REST API.
//
// It is shared between the server handlers and the Go client so both sides agree
// on field names. Field names follow the mobile client: ids are "_id", the rest
// are camelCase, locations are GeoJSON points with longitude first.
package v1

import (
	"encoding/json"
	"net/url"
	"strconv"
	"time"
)

// Route patterns (net/http ServeMux syntax).
const (
	RouteRegister          = "POST /api/register"
	RouteLogin             = "POST /api/login"
	RouteUpdateLocation    = "PUT /api/location/{userId}"
	RouteNearby            = "GET /api/nearby/{userId}"
	RouteGetProfile        = "GET /api/profile/{userId}"
	RouteUpdateProfile     = "PUT /api/profile/{userId}"
	RouteUpdateStatus      = "PUT /api/status/{userId}"
	RouteSendInvitation    = "POST /api/invite"
	RouteAcceptInvitation  = "PUT /api/invite/{id}/accept"
	RouteDeclineInvitation = "PUT /api/invite/{id}/decline"
	RouteListSent          = "GET /api/invitations/sent/{userId}"
	RouteListReceived      = "GET /api/invitations/received/{userId}"
)

// Path builders for clients.
func RegisterPath() string { return "/api/register" }
func LoginPath() string    { return "/api/login" }

func LocationPath(userID string) string { return "/api/location/" + url.PathEscape(userID) }
func ProfilePath(userID string) string  { return "/api/profile/" + url.PathEscape(userID) }
func StatusPath(userID string) string   { return "/api/status/" + url.PathEscape(userID) }
func InvitePath() string                { return "/api/invite" }

// NearbyPath builds the nearby URL path; radiusMeters <= 0 omits the parameter.
func NearbyPath(userID string, radiusMeters int) string {
	p := "/api/nearby/" + url.PathEscape(userID)
	if radiusMeters > 0 {
		p += "?radius=" + strconv.Itoa(radiusMeters)
	}
	return p
}

func RespondInvitationPath(id, action string) string {
	return "/api/invite/" + url.PathEscape(id) + "/" + url.PathEscape(action)
}

func SentInvitationsPath(userID string) string {
	return "/api/invitations/sent/" + url.PathEscape(userID)
}

func ReceivedInvitationsPath(userID string) string {
	return "/api/invitations/received/" + url.PathEscape(userID)
}

// Stable error codes carried next to "msg".
const (
	CodeInvalidInput       = "invalid_input"
	CodeInvalidCredentials = "invalid_credentials"
	CodeConflict           = "conflict"
	CodeNotFound           = "not_found"
	CodeNotPending         = "not_pending"
	CodeInvalidRadius      = "invalid_radius"
	CodeRateLimited        = "rate_limited"
	CodeInternal           = "internal"
)

// User-facing messages.
const (
	MsgRegistered        = "User registered successfully"
	MsgUserExists        = "User already exists"
	MsgLoggedIn          = "Logged in successfully"
	MsgInvalidCreds      = "Invalid Credentials"
	MsgLocationUpdated   = "Location updated successfully"
	MsgProfileUpdated    = "Profile updated successfully"
	MsgStatusUpdated     = "Status updated successfully"
	MsgUserNotFound      = "User not found"
	MsgInvitationSent    = "Invitation sent successfully"
	MsgInvitationAccept  = "Invitation accepted"
	MsgInvitationDecline = "Invitation declined"
	MsgInvitationMissing = "Invitation not found"
	MsgServerError       = "Server Error"
)

// ---- requests ----

type RegisterRequest struct {
	Username  string   `json:"username" validate:"required,max=64"`
	Password  string   `json:"password" validate:"required,max=256"`
	Latitude  *float64 `json:"latitude" validate:"required,min=-90,max=90"`
	Longitude *float64 `json:"longitude" validate:"required,min=-180,max=180"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UpdateLocationRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,min=-90,max=90"`
	Longitude *float64 `json:"longitude" validate:"required,min=-180,max=180"`
}

type UpdateStatusRequest struct {
	IsOnline *bool `json:"isOnline" validate:"required"`
}

// UpdateProfileRequest is a partial update: absent fields are left unchanged.
// Birthday accepts RFC 3339 or YYYY-MM-DD; null clears it.
type UpdateProfileRequest struct {
	Bio                *string            `json:"bio,omitempty" validate:"omitempty,max=1000"`
	ProfilePictureURL  *string            `json:"profilePictureUrl,omitempty"`
	Interests          *[]string          `json:"interests,omitempty" validate:"omitempty,max=50,dive,max=64"`
	Gender             *string            `json:"gender,omitempty" validate:"omitempty,max=64"`
	SocialMediaLinks   *map[string]string `json:"socialMediaLinks,omitempty" validate:"omitempty,max=20"`
	AvailabilityStatus *string            `json:"availabilityStatus,omitempty" validate:"omitempty,max=64"`
	Birthday           NullableString     `json:"birthday,omitzero"`
}

// NullableString tells an absent field (zero value) from an explicit null
// (Set with a nil Value).
type NullableString struct {
	Set   bool
	Value *string
}

// SetString returns a NullableString holding s.
func SetString(s string) NullableString { return NullableString{Set: true, Value: &s} }

// Null returns an explicit JSON null.
func Null() NullableString { return NullableString{Set: true} }

func (n NullableString) IsZero() bool { return !n.Set }

func (n NullableString) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.Value)
}

func (n *NullableString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*n = Null()
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*n = SetString(s)
	return nil
}

type SendInvitationRequest struct {
	SenderID   string `json:"senderId" validate:"required"`
	ReceiverID string `json:"receiverId" validate:"required"`
	Reason     string `json:"reason" validate:"required,max=2000"`
}

// ---- responses ----

type ErrorResponse struct {
	Msg  string `json:"msg"`
	Code string `json:"code,omitempty"`
}

type MessageResponse struct {
	Msg string `json:"msg"`
}

type AuthResponse struct {
	Msg    string `json:"msg"`
	UserID string `json:"userId"`
}

type StatusResponse struct {
	Msg      string `json:"msg"`
	IsOnline bool   `json:"isOnline"`
}

type ProfileResponse struct {
	Msg  string `json:"msg"`
	User User   `json:"user"`
}

type InvitationResponse struct {
	Msg        string     `json:"msg"`
	Invitation Invitation `json:"invitation"`
}

// GeoPoint is a GeoJSON point: Coordinates is [longitude, latitude].
type GeoPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

func (p GeoPoint) Longitude() float64 { return p.Coordinates[0] }
func (p GeoPoint) Latitude() float64  { return p.Coordinates[1] }

// User is a user summary. It never carries credentials.
type User struct {
	ID                 string            `json:"_id"`
	Username           string            `json:"username"`
	Location           GeoPoint          `json:"location"`
	IsOnline           bool              `json:"isOnline"`
	Bio                string            `json:"bio"`
	ProfilePictureURL  string            `json:"profilePictureUrl"`
	Interests          []string          `json:"interests"`
	Gender             string            `json:"gender"`
	SocialMediaLinks   map[string]string `json:"socialMediaLinks"`
	AvailabilityStatus string            `json:"availabilityStatus"`
	Birthday           *time.Time        `json:"birthday"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`

	// Distance is set on nearby results only (meters from the requester).
	Distance *float64 `json:"distance,omitempty"`
}

// UserRef is an invitation party.
type UserRef struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
}

type Invitation struct {
	ID        string    `json:"_id"`
	Sender    UserRef   `json:"sender"`
	Receiver  UserRef   `json:"receiver"`
	Reason    string    `json:"reason"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
