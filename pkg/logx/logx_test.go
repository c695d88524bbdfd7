package logx

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func bufferLogger(buf *bytes.Buffer, level zerolog.Level) Logger {
	return Logger{base: zerolog.New(buf).Level(level), hasBase: true}
}

func TestLogWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf, zerolog.DebugLevel)

	l.Info("schedule created", String("kind", "ONE_TIME"), Int64("id", 7))

	out := buf.String()
	for _, want := range []string{"schedule created", `"kind":"ONE_TIME"`, `"id":7`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
}

func TestLogLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf, zerolog.WarnLevel)

	l.Debug("noise")
	l.Info("noise")
	if buf.Len() != 0 {
		t.Fatalf("below-level output: %q", buf.String())
	}

	l.Error("boom", Err(errors.New("db down")))
	if !strings.Contains(buf.String(), "db down") {
		t.Fatalf("error output missing: %q", buf.String())
	}
}

func TestWithCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf, zerolog.DebugLevel).With(String("tick", "activate"))

	l.Info("processed schedules")
	if !strings.Contains(buf.String(), `"tick":"activate"`) {
		t.Fatalf("derived field missing: %q", buf.String())
	}
}

func TestEnabledFollowsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf, zerolog.InfoLevel)

	if l.Enabled(LevelDebug) {
		t.Fatal("debug should be disabled at info level")
	}
	if !l.Enabled(LevelInfo) || !l.Enabled(LevelError) {
		t.Fatal("info and error should be enabled at info level")
	}
	if Nop().Enabled(LevelError) {
		t.Fatal("nop logger should report everything disabled")
	}
}

func TestZeroLoggerIsSafe(t *testing.T) {
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero value should report IsZero")
	}
	l.Info("must not panic")
	l.With(String("k", "v")).Error("must not panic either")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"  WARN ", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in, zerolog.InfoLevel); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
