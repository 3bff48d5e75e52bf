package nearby

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	DefaultRadiusMeters = 5000
	MaxRadiusMeters     = 100000
)

var ErrInvalidRadius = errors.New("invalid radius")

// RadiusPolicy turns the raw ?radius= value into meters.
//
// Lenient parsing reads a leading integer ("250m" is 250, "12.9" is 12) and falls
// back to DefaultMeters when there is none or it is not positive. Strict parsing
// only falls back when the value is absent; anything else that is not a positive
// integer is ErrInvalidRadius. Both clamp to MaxMeters.
type RadiusPolicy struct {
	DefaultMeters int
	MaxMeters     int
	Strict        bool
}

func DefaultRadiusPolicy() RadiusPolicy {
	return RadiusPolicy{DefaultMeters: DefaultRadiusMeters, MaxMeters: MaxRadiusMeters}
}

func (p RadiusPolicy) normalized() RadiusPolicy {
	if p.DefaultMeters <= 0 {
		p.DefaultMeters = DefaultRadiusMeters
	}
	if p.MaxMeters <= 0 {
		p.MaxMeters = MaxRadiusMeters
	}
	if p.DefaultMeters > p.MaxMeters {
		p.DefaultMeters = p.MaxMeters
	}
	return p
}

// Parse resolves raw into a radius in meters.
func (p RadiusPolicy) Parse(raw string) (int, error) {
	p = p.normalized()
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return p.DefaultMeters, nil
	}

	var (
		n  int
		ok bool
	)
	if p.Strict {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidRadius, raw)
		}
		n, ok = v, true
	} else {
		n, ok = leadingInt(raw)
		if !ok || n <= 0 {
			n = p.DefaultMeters
		}
	}

	return p.Clamp(n), nil
}

// Clamp bounds meters to [1, MaxMeters]; non-positive values become DefaultMeters.
func (p RadiusPolicy) Clamp(meters int) int {
	p = p.normalized()
	if meters <= 0 {
		return p.DefaultMeters
	}
	return min(meters, p.MaxMeters)
}

// leadingInt parses an optional sign followed by decimal digits and ignores the rest.
func leadingInt(s string) (int, bool) {
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	if end-digits > 9 {
		if s[0] == '-' {
			return -1, true
		}
		return math.MaxInt32, true
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
