// Package config loads the notifier configuration from .env, an optional YAML file and the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"homework-notifier/logging"
)

// Environment variables holding credentials.
const (
	EnvPracticumToken = "PRACTICUM_TOKEN"
	EnvTelegramToken  = "TELEGRAM_TOKEN"
	EnvChatID         = "CHAT_ID"
)

// Default service addresses.
const (
	DefaultPracticumEndpoint = "https://practicum.yandex.ru/api/user_api/homework_statuses/"
	DefaultTelegramAPIURL    = "https://api.telegram.org"
)

// ErrMissingPracticumToken is returned by CheckTokens when the review API token is absent.
var ErrMissingPracticumToken = errors.New("ошибка импорта токенов Домашки")

// Credentials are the secrets the notifier needs to run.
type Credentials struct {
	PracticumToken string `yaml:"-"`
	TelegramToken  string `yaml:"-"`
	ChatID         string `yaml:"-"`
}

// PracticumConfig configures the review API client.
type PracticumConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
	Attempts uint          `yaml:"attempts"`
}

// TelegramConfig configures message delivery.
type TelegramConfig struct {
	APIURL      string        `yaml:"api_url"`
	Timeout     time.Duration `yaml:"timeout"`
	Attempts    uint          `yaml:"attempts"`
	MinInterval time.Duration `yaml:"min_interval"`
	DryRun      bool          `yaml:"dry_run"`
}

// PollConfig configures the polling loop.
type PollConfig struct {
	RetryPeriod        time.Duration `yaml:"retry_period"`
	NotifyOnlyOnChange bool          `yaml:"notify_only_on_change"`
}

// Config is the complete notifier configuration.
type Config struct {
	Credentials Credentials     `yaml:"-"`
	Practicum   PracticumConfig `yaml:"practicum"`
	Telegram    TelegramConfig  `yaml:"telegram"`
	Poll        PollConfig      `yaml:"poll"`
	Logging     logging.Config  `yaml:"logging"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Practicum: PracticumConfig{
			Endpoint: DefaultPracticumEndpoint,
			Timeout:  30 * time.Second,
			Attempts: 1,
		},
		Telegram: TelegramConfig{
			APIURL:      DefaultTelegramAPIURL,
			Timeout:     10 * time.Second,
			Attempts:    1,
			MinInterval: time.Second,
		},
		Poll: PollConfig{
			RetryPeriod: 600 * time.Second,
		},
		Logging: logging.Config{
			Level:        "debug",
			Console:      true,
			File:         "program.log",
			RotatingFile: "my_logger.log",
			MaxSizeMB:    50,
			MaxBackups:   5,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if any),
// then environment variables. Variables from a .env file in the working directory
// are loaded first but never override the real environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.overrideFromEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) overrideFromEnv() error {
	c.Credentials = Credentials{
		PracticumToken: strings.TrimSpace(os.Getenv(EnvPracticumToken)),
		TelegramToken:  strings.TrimSpace(os.Getenv(EnvTelegramToken)),
		ChatID:         strings.TrimSpace(os.Getenv(EnvChatID)),
	}

	if v := os.Getenv("RETRY_PERIOD"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("RETRY_PERIOD: %w", err)
		}
		c.Poll.RetryPeriod = d
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("TELEGRAM_DRY_RUN"); v != "" {
		dry, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TELEGRAM_DRY_RUN: %w", err)
		}
		c.Telegram.DryRun = dry
	}
	return nil
}

// parseDuration accepts Go durations ("10m") and bare seconds ("600").
func parseDuration(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// Validate checks the non-secret settings.
func (c *Config) Validate() error {
	if c.Poll.RetryPeriod <= 0 {
		return errors.New("poll.retry_period must be positive")
	}
	if c.Practicum.Timeout <= 0 {
		return errors.New("practicum.timeout must be positive")
	}
	if c.Practicum.Attempts == 0 {
		return errors.New("practicum.attempts must be at least 1")
	}
	if c.Telegram.Timeout <= 0 {
		return errors.New("telegram.timeout must be positive")
	}
	if c.Telegram.Attempts == 0 {
		return errors.New("telegram.attempts must be at least 1")
	}
	if c.Telegram.MinInterval < 0 {
		return errors.New("telegram.min_interval must not be negative")
	}
	for name, raw := range map[string]string{
		"practicum.endpoint": c.Practicum.Endpoint,
		"telegram.api_url":   c.Telegram.APIURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s is not an absolute URL: %q", name, raw)
		}
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// CheckTokens reports whether all credentials are present.
// Missing Telegram credentials are logged as critical and reported as not ready;
// a missing review API token is an error.
func (c *Config) CheckTokens(logger *slog.Logger) (bool, error) {
	creds := c.Credentials
	if creds.TelegramToken == "" || creds.ChatID == "" {
		logger.Log(context.Background(), logging.LevelCritical, "Telegram credentials are missing",
			"telegram_token_set", creds.TelegramToken != "",
			"chat_id_set", creds.ChatID != "")
		return false, nil
	}
	if creds.PracticumToken == "" {
		return false, ErrMissingPracticumToken
	}
	return true, nil
}
