package app

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestPrettyHandler_PlainLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}, false))

	log.With("component", "api").Warn("http.request",
		"method", "get",
		"route", "GET /api/nearby/{userId}",
		"status", 404,
		"status_class", "4xx",
		"duration_ms", int64(12),
		"note", "two words",
		slog.Group("db", "schema", "nearme"),
	)

	got := buf.String()
	for _, want := range []string{
		"lvl=[WARN]",
		"msg=http.request",
		"component=api",
		"method=GET",
		"route=GET /api/nearby/{userId}",
		"status=404",
		"class=4xx",
		"duration=12ms",
		`note="two words"`,
		"db.schema=nearme",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in %q", want, got)
		}
	}
	if strings.Contains(got, "\x1b[") {
		t.Fatalf("color disabled but found escape codes: %q", got)
	}
	if !strings.HasSuffix(got, "\n") || strings.Count(got, "\n") != 1 {
		t.Fatalf("expected exactly one line, got %q", got)
	}
}

func TestPrettyHandler_ColorAndLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}, true))

	log.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info must be filtered: %q", buf.String())
	}

	log.Error("boom", "status", 503)
	got := buf.String()
	if !strings.Contains(got, ansiRed+"[ERROR]"+ansiReset) {
		t.Fatalf("expected red level tag in %q", got)
	}
	if !strings.Contains(got, ansiRed+"503"+ansiReset) {
		t.Fatalf("expected red 5xx status in %q", got)
	}
}

func TestValueToInt64(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in     slog.Value
		want   int64
		wantOK bool
	}{
		{slog.Int64Value(7), 7, true},
		{slog.Uint64Value(9), 9, true},
		{slog.Float64Value(3.9), 3, true},
		{slog.StringValue(" 42 "), 42, true},
		{slog.StringValue("x"), 0, false},
		{slog.BoolValue(true), 0, false},
	}
	for _, tc := range cases {
		got, ok := valueToInt64(tc.in)
		if got != tc.want || ok != tc.wantOK {
			t.Fatalf("valueToInt64(%v)=(%d,%v) want (%d,%v)", tc.in, got, ok, tc.want, tc.wantOK)
		}
	}
}
