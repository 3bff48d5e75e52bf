package locsync

import (
	"time"

	"nearme/cmd/internal/geo"
)

const (
	DefaultMinDistanceMeters = 15.0
	DefaultMaxInterval       = 20 * time.Second
)

// Fix is one reported position.
type Fix struct {
	Point geo.Point
	Time  time.Time
}

// ThrottleConfig holds the send thresholds.
type ThrottleConfig struct {
	MinDistanceMeters float64
	MaxInterval       time.Duration
}

func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{MinDistanceMeters: DefaultMinDistanceMeters, MaxInterval: DefaultMaxInterval}
}

func (c ThrottleConfig) normalized() ThrottleConfig {
	if c.MinDistanceMeters <= 0 {
		c.MinDistanceMeters = DefaultMinDistanceMeters
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = DefaultMaxInterval
	}
	return c
}

// ThrottleState is the last evaluated fix. The zero value has none.
type ThrottleState struct {
	Last    Fix
	HasLast bool
}

// Evaluate reports whether fix should be sent given st. The returned state
// records fix whether or not it is sent, so a stream of small moves keeps
// re-arming both thresholds.
func (c ThrottleConfig) Evaluate(fix Fix, st ThrottleState) (bool, ThrottleState) {
	c = c.normalized()
	next := ThrottleState{Last: fix, HasLast: true}

	if !st.HasLast {
		return true, next
	}
	if geo.DistanceMeters(fix.Point, st.Last.Point) > c.MinDistanceMeters {
		return true, next
	}
	return fix.Time.Sub(st.Last.Time) > c.MaxInterval, next
}

// Evaluate applies the default thresholds.
func Evaluate(fix Fix, st ThrottleState) (bool, ThrottleState) {
	return DefaultThrottleConfig().Evaluate(fix, st)
}
