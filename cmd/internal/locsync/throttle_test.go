package locsync

import (
	"context"
	"testing"
	"time"

	"nearme/cmd/internal/geo"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// north returns a point about meters north of p.
func north(p geo.Point, meters float64) geo.Point {
	return geo.Point{Lon: p.Lon, Lat: p.Lat + meters/111195.0}
}

func TestEvaluate_FirstFixAlwaysSends(t *testing.T) {
	t.Parallel()

	for _, p := range []geo.Point{{}, {Lon: 179.9, Lat: -89}, {Lon: -0.1276, Lat: 51.5072}} {
		fix := Fix{Point: p, Time: t0}
		send, next := Evaluate(fix, ThrottleState{})
		if !send {
			t.Fatalf("first fix %v must be sent", p)
		}
		if !next.HasLast || next.Last != fix {
			t.Fatalf("state must record the fix: %+v", next)
		}
	}
}

func TestEvaluate_Thresholds(t *testing.T) {
	t.Parallel()

	origin := geo.Point{Lon: 13.405, Lat: 52.52}
	prev := ThrottleState{Last: Fix{Point: origin, Time: t0}, HasLast: true}

	cases := []struct {
		name    string
		meters  float64
		elapsed time.Duration
		want    bool
	}{
		{"still", 0, time.Second, false},
		{"small move", 10, 5 * time.Second, false},
		{"just under distance", 14.5, 19 * time.Second, false},
		{"distance exceeded", 16, time.Second, true},
		{"exactly 20s is not enough", 0, 20 * time.Second, false},
		{"interval exceeded", 0, 21 * time.Second, true},
		{"both exceeded", 100, time.Minute, true},
	}
	for _, tc := range cases {
		fix := Fix{Point: north(origin, tc.meters), Time: t0.Add(tc.elapsed)}
		send, next := Evaluate(fix, prev)
		if send != tc.want {
			t.Fatalf("%s: send=%v want=%v (d=%.2fm)", tc.name, send, tc.want, geo.DistanceMeters(fix.Point, origin))
		}
		if next.Last != fix {
			t.Fatalf("%s: state not updated to the evaluated fix", tc.name)
		}
	}
}

func TestEvaluate_Monotonic(t *testing.T) {
	t.Parallel()

	origin := geo.Point{Lon: 2.35, Lat: 48.85}
	prev := ThrottleState{Last: Fix{Point: origin, Time: t0}, HasLast: true}

	distances := []float64{0, 5, 10, 14, 15.5, 20, 50}
	intervals := []time.Duration{0, 5 * time.Second, 19 * time.Second, 21 * time.Second, time.Minute}

	sendAt := func(d float64, dt time.Duration) bool {
		send, _ := Evaluate(Fix{Point: north(origin, d), Time: t0.Add(dt)}, prev)
		return send
	}
	for i, d := range distances {
		for j, dt := range intervals {
			if !sendAt(d, dt) {
				continue
			}
			if i+1 < len(distances) && !sendAt(distances[i+1], dt) {
				t.Fatalf("more distance flipped send off at d=%v dt=%v", distances[i+1], dt)
			}
			if j+1 < len(intervals) && !sendAt(d, intervals[j+1]) {
				t.Fatalf("more time flipped send off at d=%v dt=%v", d, intervals[j+1])
			}
		}
	}
}

func TestEvaluate_SkippedFixesRearmClock(t *testing.T) {
	t.Parallel()

	p := geo.Point{Lon: 0, Lat: 0}
	var st ThrottleState
	var sent int
	// A fix every 15s without moving: each one resets the clock, so only the first goes out.
	for i := 0; i < 5; i++ {
		var send bool
		send, st = Evaluate(Fix{Point: p, Time: t0.Add(time.Duration(i) * 15 * time.Second)}, st)
		if send {
			sent++
		}
	}
	if sent != 1 {
		t.Fatalf("expected 1 send, got %d", sent)
	}
}

func TestThrottleConfig_Custom(t *testing.T) {
	t.Parallel()

	c := ThrottleConfig{MinDistanceMeters: 100, MaxInterval: time.Minute}
	prev := ThrottleState{Last: Fix{Time: t0}, HasLast: true}

	if send, _ := c.Evaluate(Fix{Point: north(geo.Point{}, 50), Time: t0.Add(30 * time.Second)}, prev); send {
		t.Fatalf("50m/30s must be throttled with custom thresholds")
	}
	if send, _ := c.Evaluate(Fix{Point: north(geo.Point{}, 150), Time: t0.Add(time.Second)}, prev); !send {
		t.Fatalf("150m must be sent")
	}
	if got := (ThrottleConfig{}).normalized(); got != DefaultThrottleConfig() {
		t.Fatalf("zero config must normalize to defaults, got %+v", got)
	}
}

func TestReplaySource_Restartable(t *testing.T) {
	t.Parallel()

	src := NewReplaySource(Walk(geo.Point{}, 0.001, 0, 3, t0, time.Second), 0)

	for round := 0; round < 2; round++ {
		ch, err := src.Fixes(context.Background())
		if err != nil {
			t.Fatalf("Fixes: %v", err)
		}
		var got []Fix
		for f := range ch {
			got = append(got, f)
		}
		if len(got) != 3 || got[2].Point.Lat != 0.002 || !got[2].Time.Equal(t0.Add(2*time.Second)) {
			t.Fatalf("round %d: unexpected fixes %+v", round, got)
		}
	}
}

func TestReplaySource_StopsOnCancel(t *testing.T) {
	t.Parallel()

	src := NewReplaySource(Walk(geo.Point{}, 0, 0.001, 100, t0, time.Second), time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	ch, _ := src.Fixes(ctx)
	if _, ok := <-ch; !ok {
		t.Fatalf("expected the first fix immediately")
	}
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected the stream to close after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("stream did not close after cancel")
	}
}

func TestWalk_Clamps(t *testing.T) {
	t.Parallel()

	fixes := Walk(geo.Point{Lon: 179.5, Lat: 89.5}, 0.4, 0.4, 3, t0, time.Second)
	last := fixes[len(fixes)-1].Point
	if last.Lat != 90 || last.Lon != 180 {
		t.Fatalf("expected clamped point, got %v", last)
	}
	if len(Walk(geo.Point{}, 1, 1, -1, t0, time.Second)) != 0 {
		t.Fatalf("negative n must yield no fixes")
	}
}
