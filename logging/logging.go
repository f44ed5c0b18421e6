// Package logging configures structured logging for the notifier.
//
// Records are fanned out to every configured sink:
//   - console (text, stderr)
//   - plain file, truncated at start
//   - rotating file (JSON), rotated by size
//
// A sink whose destination cannot be opened is skipped and reported on the
// console; logging never stops the process.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelCritical is used for conditions that prevent the notifier from working at all.
const LevelCritical = slog.Level(12)

// Config selects the log sinks.
type Config struct {
	Level        string `yaml:"level"`
	Console      bool   `yaml:"console"`
	File         string `yaml:"file"`
	RotatingFile string `yaml:"rotating_file"`
	MaxSizeMB    int    `yaml:"max_size_mb"`
	MaxBackups   int    `yaml:"max_backups"`
}

// ParseLevel converts a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "", "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	case "CRITICAL":
		return LevelCritical, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func replaceLevel(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey && len(groups) == 0 {
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl >= LevelCritical {
			a.Value = slog.StringValue("CRITICAL")
		}
	}
	return a
}

// New builds a logger for cfg. Console output goes to console.
// The returned close function flushes and closes the file sinks.
func New(cfg Config, console io.Writer) (*slog.Logger, func() error) {
	level, levelErr := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: replaceLevel}

	var (
		handlers []slog.Handler
		closers  []io.Closer
		skipped  []error
	)

	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("open log file: %w", err))
		} else {
			closers = append(closers, f)
			handlers = append(handlers, slog.NewTextHandler(f, opts))
		}
	}

	if cfg.RotatingFile != "" {
		if err := probeWritable(cfg.RotatingFile); err != nil {
			skipped = append(skipped, fmt.Errorf("open rotating log file: %w", err))
		} else {
			rotating := &lumberjack.Logger{
				Filename:   cfg.RotatingFile,
				MaxSize:    cfg.MaxSizeMB,
				MaxBackups: cfg.MaxBackups,
			}
			closers = append(closers, rotating)
			handlers = append(handlers, slog.NewJSONHandler(rotating, opts))
		}
	}

	if cfg.Console || len(handlers) == 0 {
		handlers = append(handlers, slog.NewTextHandler(console, opts))
	}

	logger := slog.New(Fanout(handlers...))
	if levelErr != nil {
		logger.Warn("Unknown log level, using info", "level", cfg.Level)
	}
	for _, e := range skipped {
		// Reported on the console even when console logging is off.
		slog.New(slog.NewTextHandler(console, opts)).Warn("Log sink disabled", "error", e)
	}

	return logger, func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c.Close())
		}
		return errors.Join(errs...)
	}
}

func probeWritable(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

type fanout struct{ hs []slog.Handler }

// Fanout returns a handler that passes every record to each of hs.
func Fanout(hs ...slog.Handler) slog.Handler { return &fanout{hs: hs} }

func (f *fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.hs {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f.hs {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, len(f.hs))
	for i, h := range f.hs {
		hs[i] = h.WithAttrs(attrs)
	}
	return &fanout{hs: hs}
}

func (f *fanout) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, len(f.hs))
	for i, h := range f.hs {
		hs[i] = h.WithGroup(name)
	}
	return &fanout{hs: hs}
}
