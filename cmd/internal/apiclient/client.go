// Package apiclient is a typed client for the Who's Near Me REST API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	v1 "nearme/shared/contracts/api/v1"
)

const maxResponseBytes = 4 << 20

// Error is a non-2xx API response.
type Error struct {
	StatusCode int
	Code       string
	Msg        string
}

func (e *Error) Error() string { return e.Msg }

// errorFromResponse prefers the JSON "msg" field, then the raw body, then a
// generic message with the status code.
func errorFromResponse(status int, body []byte) *Error {
	e := &Error{StatusCode: status}

	var payload v1.ErrorResponse
	if err := json.Unmarshal(body, &payload); err == nil && strings.TrimSpace(payload.Msg) != "" {
		e.Msg = payload.Msg
		e.Code = payload.Code
		return e
	}
	if raw := strings.TrimSpace(string(body)); raw != "" {
		e.Msg = raw
		return e
	}
	e.Msg = fmt.Sprintf("unknown error (status %d)", status)
	return e
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Client talks to one server. It is safe for concurrent use.
type Client struct {
	base      *url.URL
	http      *http.Client
	userAgent string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua = strings.TrimSpace(ua); ua != "" {
			c.userAgent = ua
		}
	}
}

// New returns a client for baseURL (scheme and host, e.g. http://127.0.0.1:3000).
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("apiclient: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("apiclient: missing host")
	}

	c := &Client{
		base:      u,
		http:      &http.Client{Timeout: 10 * time.Second},
		userAgent: "nearme-apiclient",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func (c *Client) Register(ctx context.Context, req v1.RegisterRequest) (v1.AuthResponse, error) {
	var out v1.AuthResponse
	err := c.do(ctx, http.MethodPost, v1.RegisterPath(), req, &out)
	return out, err
}

func (c *Client) Login(ctx context.Context, username, password string) (v1.AuthResponse, error) {
	var out v1.AuthResponse
	err := c.do(ctx, http.MethodPost, v1.LoginPath(), v1.LoginRequest{Username: username, Password: password}, &out)
	return out, err
}

func (c *Client) UpdateLocation(ctx context.Context, userID string, lat, lon float64) error {
	return c.do(ctx, http.MethodPut, v1.LocationPath(userID), v1.UpdateLocationRequest{Latitude: &lat, Longitude: &lon}, nil)
}

// Nearby lists online users around userID. radiusMeters <= 0 uses the server default.
func (c *Client) Nearby(ctx context.Context, userID string, radiusMeters int) ([]v1.User, error) {
	var out []v1.User
	if err := c.do(ctx, http.MethodGet, v1.NearbyPath(userID, radiusMeters), nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []v1.User{}
	}
	return out, nil
}

func (c *Client) Profile(ctx context.Context, userID string) (v1.User, error) {
	var out v1.User
	err := c.do(ctx, http.MethodGet, v1.ProfilePath(userID), nil, &out)
	return out, err
}

func (c *Client) UpdateProfile(ctx context.Context, userID string, req v1.UpdateProfileRequest) (v1.User, error) {
	var out v1.ProfileResponse
	err := c.do(ctx, http.MethodPut, v1.ProfilePath(userID), req, &out)
	return out.User, err
}

func (c *Client) SetStatus(ctx context.Context, userID string, online bool) error {
	return c.do(ctx, http.MethodPut, v1.StatusPath(userID), v1.UpdateStatusRequest{IsOnline: &online}, nil)
}

func (c *Client) SendInvitation(ctx context.Context, req v1.SendInvitationRequest) (v1.Invitation, error) {
	var out v1.InvitationResponse
	err := c.do(ctx, http.MethodPost, v1.InvitePath(), req, &out)
	return out.Invitation, err
}

// RespondInvitation applies action ("accept" or "decline") to invitation id.
func (c *Client) RespondInvitation(ctx context.Context, id, action string) (v1.Invitation, error) {
	var out v1.InvitationResponse
	err := c.do(ctx, http.MethodPut, v1.RespondInvitationPath(id, action), nil, &out)
	return out.Invitation, err
}

func (c *Client) SentInvitations(ctx context.Context, userID string) ([]v1.Invitation, error) {
	var out []v1.Invitation
	err := c.do(ctx, http.MethodGet, v1.SentInvitationsPath(userID), nil, &out)
	return out, err
}

func (c *Client) ReceivedInvitations(ctx context.Context, userID string) ([]v1.Invitation, error) {
	var out []v1.Invitation
	err := c.do(ctx, http.MethodGet, v1.ReceivedInvitationsPath(userID), nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	ref, err := url.Parse(path)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.ResolveReference(ref).String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return errorFromResponse(res.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("apiclient: decode %s %s: %w", method, path, err)
	}
	return nil
}
