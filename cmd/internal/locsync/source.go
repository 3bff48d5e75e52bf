package locsync

import (
	"context"
	"errors"
	"time"

	"nearme/cmd/internal/geo"
)

// LocationSource yields position fixes. Each call to Fixes starts a fresh stream
// that ends when ctx is done or the source is exhausted.
type LocationSource interface {
	Fixes(ctx context.Context) (<-chan Fix, error)
}

// ReplaySource replays a fixed list of fixes, one every Every.
type ReplaySource struct {
	Points []Fix
	Every  time.Duration
}

func NewReplaySource(points []Fix, every time.Duration) *ReplaySource {
	return &ReplaySource{Points: points, Every: every}
}

func (r *ReplaySource) Fixes(ctx context.Context) (<-chan Fix, error) {
	if r == nil {
		return nil, errors.New("locsync: nil replay source")
	}
	points := append([]Fix(nil), r.Points...)
	out := make(chan Fix)

	go func() {
		defer close(out)
		for i, f := range points {
			if i > 0 && r.Every > 0 {
				t := time.NewTimer(r.Every)
				select {
				case <-ctx.Done():
					t.Stop()
					return
				case <-t.C:
				}
			}
			select {
			case <-ctx.Done():
				return
			case out <- f:
			}
		}
	}()
	return out, nil
}

// Walk builds n fixes starting at start, moving by (dLat, dLon) degrees and step
// in time between consecutive fixes. Coordinates are clamped to the valid range.
func Walk(start geo.Point, dLat, dLon float64, n int, t0 time.Time, step time.Duration) []Fix {
	out := make([]Fix, 0, max(n, 0))
	p := start
	t := t0
	for i := 0; i < n; i++ {
		out = append(out, Fix{Point: p, Time: t})
		p = geo.Point{Lon: clamp(p.Lon+dLon, -180, 180), Lat: clamp(p.Lat+dLat, -90, 90)}
		t = t.Add(step)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
