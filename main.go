// Package main implements a service that polls the Practicum homework API
// and sends review status changes to a Telegram chat.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"homework-notifier/config"
	"homework-notifier/logging"
	"homework-notifier/poll"
	"homework-notifier/practicum"
	"homework-notifier/telegram"
)

const (
	exitOK      = 0 // Clean shutdown, or nothing to do without Telegram credentials
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("homework-notifier", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "path to YAML config file (optional)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("Failed to load configuration", "error", err)
		return exitFailure
	}

	logger, closeLogs := logging.New(cfg.Logging, os.Stderr)
	defer func() {
		if err := closeLogs(); err != nil {
			fmt.Fprintln(os.Stderr, "close logs:", err)
		}
	}()
	slog.SetDefault(logger)

	ready, err := cfg.CheckTokens(logger)
	if err != nil {
		logger.Log(context.Background(), logging.LevelCritical, "Cannot start without review API token", "error", err)
		return exitFailure
	}
	if !ready {
		return exitOK
	}

	monitor, err := newMonitor(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize notifier", "error", err)
		return exitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting homework notifier",
		"endpoint", cfg.Practicum.Endpoint,
		"retry_period", cfg.Poll.RetryPeriod.String(),
		"dry_run", cfg.Telegram.DryRun,
		"notify_only_on_change", cfg.Poll.NotifyOnlyOnChange)

	if err := monitor.Run(ctx, monitor.NewState()); !poll.IsShutdown(err) {
		logger.Error("Polling loop exited", "error", err)
		return exitFailure
	}

	logger.Info("Shutting down")
	return exitOK
}

func newMonitor(cfg *config.Config, logger *slog.Logger) (*poll.Monitor, error) {
	client := practicum.New(
		&http.Client{Timeout: cfg.Practicum.Timeout},
		cfg.Practicum.Endpoint,
		cfg.Credentials.PracticumToken,
		cfg.Practicum.Attempts,
		logger,
	)

	provider, err := newProvider(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telegram provider: %w", err)
	}
	sender := telegram.New(provider, cfg.Credentials.ChatID, cfg.Telegram.MinInterval, logger)

	return poll.New(client, sender, cfg.Poll.RetryPeriod, logger,
		poll.WithNotifyOnlyOnChange(cfg.Poll.NotifyOnlyOnChange)), nil
}

func newProvider(cfg *config.Config, logger *slog.Logger) (telegram.Provider, error) {
	if cfg.Telegram.DryRun {
		logger.Info("Dry run enabled, messages are logged instead of sent")
		return telegram.NewMockProvider(logger), nil
	}
	return telegram.NewBotProvider(telegram.BotConfig{
		Token:    cfg.Credentials.TelegramToken,
		APIURL:   cfg.Telegram.APIURL,
		Timeout:  cfg.Telegram.Timeout,
		Attempts: cfg.Telegram.Attempts,
	}, logger)
}
