package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{input: "debug", want: slog.LevelDebug},
		{input: " INFO ", want: slog.LevelInfo},
		{input: "", want: slog.LevelInfo},
		{input: "warning", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "critical", want: LevelCritical},
		{input: "loud", want: slog.LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewWritesAllSinks(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "program.log")
	rotating := filepath.Join(dir, "my_logger.log")

	if err := os.WriteFile(plain, []byte("stale line from previous run\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var console bytes.Buffer
	logger, closeLogs := New(Config{
		Level:        "debug",
		Console:      true,
		File:         plain,
		RotatingFile: rotating,
		MaxSizeMB:    1,
		MaxBackups:   1,
	}, &console)

	logger.Debug("no new statuses", "retry_period", "10m0s")
	logger.Log(context.Background(), LevelCritical, "credentials are missing")

	if err := closeLogs(); err != nil {
		t.Fatalf("close: %v", err)
	}

	plainData, err := os.ReadFile(plain)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(plainData), "stale line") {
		t.Error("plain log file was not truncated at start")
	}
	if !strings.Contains(string(plainData), "no new statuses") {
		t.Errorf("plain log missing debug record: %q", plainData)
	}
	if !strings.Contains(string(plainData), "level=CRITICAL") {
		t.Errorf("plain log missing CRITICAL level: %q", plainData)
	}

	rotatingData, err := os.ReadFile(rotating)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(rotatingData), `"level":"CRITICAL"`) {
		t.Errorf("rotating log missing CRITICAL record: %q", rotatingData)
	}

	if !strings.Contains(console.String(), "credentials are missing") {
		t.Errorf("console missing record: %q", console.String())
	}
}

func TestNewUnwritableFileFallsBackToConsole(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no-such-dir", "program.log")

	var console bytes.Buffer
	logger, closeLogs := New(Config{
		Level:        "info",
		Console:      false,
		File:         missing,
		RotatingFile: missing + ".rotating",
	}, &console)
	defer func() { _ = closeLogs() }()

	logger.Info("still logging")

	out := console.String()
	if !strings.Contains(out, "Log sink disabled") {
		t.Errorf("console missing sink warning: %q", out)
	}
	if !strings.Contains(out, "still logging") {
		t.Errorf("console missing fallback record: %q", out)
	}
}

func TestNewRespectsLevel(t *testing.T) {
	var console bytes.Buffer
	logger, closeLogs := New(Config{Level: "error", Console: true}, &console)
	defer func() { _ = closeLogs() }()

	logger.Info("hidden")
	logger.Error("shown")

	if strings.Contains(console.String(), "hidden") {
		t.Error("info record logged at error level")
	}
	if !strings.Contains(console.String(), "shown") {
		t.Error("error record missing")
	}
}

func TestFanoutWithAttrs(t *testing.T) {
	var a, b bytes.Buffer
	logger := slog.New(Fanout(
		slog.NewTextHandler(&a, nil),
		slog.NewTextHandler(&b, nil),
	)).With("component", "poll")

	logger.Info("tick")

	for name, buf := range map[string]*bytes.Buffer{"a": &a, "b": &b} {
		if !strings.Contains(buf.String(), "component=poll") {
			t.Errorf("sink %s missing attribute: %q", name, buf.String())
		}
	}
}
