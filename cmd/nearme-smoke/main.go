// Package main provides a CI-friendly smoke test for the nearme REST API.
//
// It validates:
//   - register + login for a handful of simulated users
//   - location sync through locsync (throttled pushes, nearby refresh)
//   - every user eventually sees the others, nearest first
//   - presence: an offline user drops out of nearby results
//   - invite -> receive -> accept, and a second response is rejected
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"nearme/cmd/internal/apiclient"
	"nearme/cmd/internal/geo"
	"nearme/cmd/internal/locsync"
	v1 "nearme/shared/contracts/api/v1"
)

type smokeUser struct {
	name   string
	id     string
	start  geo.Point
	syncer *locsync.Syncer
}

func main() {
	var (
		baseURL = flag.String("url", "http://127.0.0.1:3000", "API base URL")
		users   = flag.Int("users", 4, "Number of simulated users (>= 2)")
		lat     = flag.Float64("lat", 35.6892, "Latitude of the meeting point")
		lon     = flag.Float64("lon", 51.389, "Longitude of the meeting point")
		radius  = flag.Int("radius", 2000, "Nearby radius in meters")
		timeout = flag.Duration("timeout", 15*time.Second, "Overall timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateBaseURL(*baseURL); err != nil {
		fatalf("invalid -url: %v", err)
	}
	if *users < 2 {
		fatalf("-users must be at least 2")
	}
	center, err := geo.NewPoint(*lat, *lon)
	if err != nil {
		fatalf("invalid meeting point: %v", err)
	}

	client, err := apiclient.New(*baseURL, apiclient.WithUserAgent("nearme-smoke/1"))
	if err != nil {
		fatalf("client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	run := fmt.Sprintf("%d", time.Now().UnixNano())
	group := mustRegister(ctx, client, run, center, *users)
	if *verbose {
		for _, u := range group {
			fmt.Printf("registered %s id=%s\n", u.name, u.id)
		}
	}

	syncCtx, stopSync := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(syncCtx)
	for _, u := range group {
		// Each user walks a few meters toward the meeting point.
		fixes := locsync.Walk(u.start, (center.Lat-u.start.Lat)/4, (center.Lon-u.start.Lon)/4, 5, time.Now(), time.Second)
		s, err := locsync.NewSyncer(client, locsync.NewReplaySource(fixes, 100*time.Millisecond), locsync.Config{
			UserID:          u.id,
			RadiusMeters:    *radius,
			RefreshInterval: 250 * time.Millisecond,
			Throttle:        locsync.ThrottleConfig{MinDistanceMeters: 1, MaxInterval: time.Second},
			OnError: func(err error) {
				if *verbose {
					fmt.Printf("%s: sync error: %v\n", u.name, err)
				}
			},
		})
		if err != nil {
			fatalf("syncer %s: %v", u.name, err)
		}
		u.syncer = s
		g.Go(func() error { return s.Run(gctx) })
	}

	mustSeeEachOther(ctx, group)
	fmt.Printf("nearby: all %d users see each other\n", len(group))

	mustGoOffline(ctx, group)

	stopSync()
	if err := g.Wait(); err != nil {
		fatalf("sync: %v", err)
	}

	inv := mustInviteAndAccept(ctx, client, group[0], group[1])

	fmt.Printf("OK: users=%d invitation=%s status=%s\n", len(group), inv.ID, inv.Status)
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

// mustRegister registers n users on a ring ~300m around center, concurrently.
func mustRegister(ctx context.Context, c *apiclient.Client, run string, center geo.Point, n int) []*smokeUser {
	out := make([]*smokeUser, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		offset := 0.0027 * float64(i%2*2-1)
		start := geo.Point{Lon: center.Lon + offset*float64(i%3)/2, Lat: center.Lat + offset}
		u := &smokeUser{name: fmt.Sprintf("smoke_%s_%d", run, i), start: start}
		out[i] = u

		g.Go(func() error {
			lat, lon := u.start.Lat, u.start.Lon
			pass := "smoke-pass-" + run
			res, err := c.Register(gctx, v1.RegisterRequest{Username: u.name, Password: pass, Latitude: &lat, Longitude: &lon})
			if err != nil {
				return fmt.Errorf("register %s: %w", u.name, err)
			}
			login, err := c.Login(gctx, u.name, pass)
			if err != nil {
				return fmt.Errorf("login %s: %w", u.name, err)
			}
			if login.UserID != res.UserID {
				return fmt.Errorf("login %s: user id mismatch: %q vs %q", u.name, login.UserID, res.UserID)
			}
			u.id = res.UserID
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fatalf("%v", err)
	}

	// Duplicate usernames must be rejected.
	lat, lon := center.Lat, center.Lon
	_, err := c.Register(ctx, v1.RegisterRequest{Username: out[0].name, Password: "another-pass", Latitude: &lat, Longitude: &lon})
	if apiclient.StatusCode(err) != 400 {
		fatalf("duplicate register: expected 400, got err=%v", err)
	}
	return out
}

func mustSeeEachOther(ctx context.Context, group []*smokeUser) {
	for {
		missing := 0
		for _, u := range group {
			missing += len(group) - 1 - countKnown(u.syncer.Nearby(), group, u.id)
		}
		if missing == 0 {
			break
		}
		select {
		case <-ctx.Done():
			fatalf("timeout waiting for nearby convergence (%d sightings missing)", missing)
		case <-time.After(100 * time.Millisecond):
		}
	}

	for _, u := range group {
		snap := u.syncer.Nearby()
		for i := 1; i < len(snap); i++ {
			if snap[i-1].Distance == nil || snap[i].Distance == nil {
				fatalf("nearby result without distance (%s)", u.name)
			}
			if *snap[i-1].Distance > *snap[i].Distance {
				fatalf("nearby not ordered by distance (%s)", u.name)
			}
		}
	}
}

func countKnown(snap []v1.User, group []*smokeUser, self string) int {
	ids := make(map[string]struct{}, len(group))
	for _, u := range group {
		if u.id != self {
			ids[u.id] = struct{}{}
		}
	}
	n := 0
	for _, other := range snap {
		if other.ID == self {
			fatalf("nearby includes the requester %s", self)
		}
		if _, ok := ids[other.ID]; ok {
			n++
		}
	}
	return n
}

// mustGoOffline takes the last user offline and waits until nobody sees it.
func mustGoOffline(ctx context.Context, group []*smokeUser) {
	gone := group[len(group)-1]
	if err := gone.syncer.SetOnline(ctx, false); err != nil {
		fatalf("set offline %s: %v", gone.name, err)
	}

	for {
		visible := false
		for _, u := range group[:len(group)-1] {
			for _, other := range u.syncer.Nearby() {
				if other.ID == gone.id {
					visible = true
				}
			}
		}
		if !visible {
			fmt.Printf("presence: %s no longer visible\n", gone.name)
			return
		}
		select {
		case <-ctx.Done():
			fatalf("timeout waiting for %s to disappear from nearby results", gone.name)
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func mustInviteAndAccept(ctx context.Context, c *apiclient.Client, from, to *smokeUser) v1.Invitation {
	inv, err := c.SendInvitation(ctx, v1.SendInvitationRequest{SenderID: from.id, ReceiverID: to.id, Reason: "coffee?"})
	if err != nil {
		fatalf("invite: %v", err)
	}
	if inv.Status != "pending" || inv.Sender.Username != from.name || inv.Receiver.Username != to.name {
		fatalf("unexpected invitation: %+v", inv)
	}

	received, err := c.ReceivedInvitations(ctx, to.id)
	if err != nil {
		fatalf("received: %v", err)
	}
	if len(received) == 0 || received[0].ID != inv.ID {
		fatalf("invitation %s missing from received list", inv.ID)
	}

	accepted, err := c.RespondInvitation(ctx, inv.ID, "accept")
	if err != nil {
		fatalf("accept: %v", err)
	}
	if accepted.Status != "accepted" {
		fatalf("accept: got status %q", accepted.Status)
	}
	if _, err := c.RespondInvitation(ctx, inv.ID, "decline"); apiclient.StatusCode(err) != 409 {
		fatalf("decline after accept: expected 409, got err=%v", err)
	}

	sent, err := c.SentInvitations(ctx, from.id)
	if err != nil {
		fatalf("sent: %v", err)
	}
	if len(sent) == 0 || sent[0].ID != inv.ID || sent[0].Status != "accepted" {
		fatalf("sent list does not reflect the accept: %+v", sent)
	}
	return accepted
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
