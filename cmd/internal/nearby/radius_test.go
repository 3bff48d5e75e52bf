package nearby

import (
	"errors"
	"testing"
)

func TestRadiusPolicy_Lenient(t *testing.T) {
	t.Parallel()

	p := DefaultRadiusPolicy()
	cases := []struct {
		raw  string
		want int
	}{
		{"", 5000},
		{"   ", 5000},
		{"1200", 1200},
		{" 75 ", 75},
		{"250m", 250},
		{"12.9", 12},
		{"abc", 5000},
		{"0", 5000},
		{"-20", 5000},
		{"+40", 40},
		{"999999999999", 100000},
		{"150000", 100000},
	}
	for _, tc := range cases {
		got, err := p.Parse(tc.raw)
		if err != nil {
			t.Fatalf("Parse(%q): unexpected error %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("Parse(%q)=%d want %d", tc.raw, got, tc.want)
		}
	}
}

func TestRadiusPolicy_Strict(t *testing.T) {
	t.Parallel()

	p := RadiusPolicy{DefaultMeters: 1000, MaxMeters: 20000, Strict: true}

	for raw, want := range map[string]int{"": 1000, "300": 300, "50000": 20000} {
		got, err := p.Parse(raw)
		if err != nil || got != want {
			t.Fatalf("Parse(%q)=%d,%v want %d", raw, got, err, want)
		}
	}
	for _, raw := range []string{"abc", "250m", "12.5", "0", "-1"} {
		if _, err := p.Parse(raw); !errors.Is(err, ErrInvalidRadius) {
			t.Fatalf("Parse(%q): expected ErrInvalidRadius, got %v", raw, err)
		}
	}
}

func TestRadiusPolicy_ZeroValueUsesDefaults(t *testing.T) {
	t.Parallel()

	var p RadiusPolicy
	got, err := p.Parse("")
	if err != nil || got != DefaultRadiusMeters {
		t.Fatalf("Parse(\"\")=%d,%v", got, err)
	}
	if c := p.Clamp(MaxRadiusMeters + 1); c != MaxRadiusMeters {
		t.Fatalf("Clamp=%d", c)
	}
}
