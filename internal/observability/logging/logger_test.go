package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"error", slog.LevelError},
		{"warn+2", slog.LevelWarn + 2},
		{"", slog.LevelInfo},
		{"loud", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNewJSONLoggerHonorsLevel(t *testing.T) {
	log := NewJSONLogger("edc-ingest-test", "error")
	ctx := context.Background()
	if log.Enabled(ctx, slog.LevelWarn) {
		t.Fatalf("warn must be disabled at error level")
	}
	if !log.Enabled(ctx, slog.LevelError) {
		t.Fatalf("error must be enabled at error level")
	}
}
