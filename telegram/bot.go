package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	tele "gopkg.in/telebot.v4"
)

// DefaultAPIURL is the public Bot API server.
const DefaultAPIURL = "https://api.telegram.org"

// BotConfig holds Bot API connection settings.
type BotConfig struct {
	Token    string
	APIURL   string
	Timeout  time.Duration
	Attempts uint
}

// chat addresses a chat by its raw Bot API chat_id, so both numeric ids and @channel names work.
type chat string

func (c chat) Recipient() string { return string(c) }

// BotProvider sends messages through the Telegram Bot API.
type BotProvider struct {
	bot      *tele.Bot
	logger   *slog.Logger
	token    string
	attempts uint
}

// NewBotProvider creates a Bot API provider. It does not contact Telegram.
func NewBotProvider(cfg BotConfig, logger *slog.Logger) (*BotProvider, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	attempts := cfg.Attempts
	if attempts == 0 {
		attempts = 1
	}

	b, err := tele.NewBot(tele.Settings{
		URL:     apiURL,
		Token:   cfg.Token,
		Client:  &http.Client{Timeout: timeout},
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	return &BotProvider{
		bot:      b,
		logger:   logger,
		token:    cfg.Token,
		attempts: attempts,
	}, nil
}

// Send sends a plain text message via the Bot API.
func (p *BotProvider) Send(ctx context.Context, chatID, text string) error {
	var lastErr error
	err := retry.Do(
		func() error {
			p.logger.Debug("Bot API request starting",
				"method", "sendMessage",
				"chat_id", chatID,
				"length", len(text))

			startTime := time.Now()
			msg, err := p.bot.Send(chat(chatID), text)
			duration := time.Since(startTime)

			if err != nil {
				err = p.redact(err)
				p.logger.Warn("Bot API request failed",
					"chat_id", chatID,
					"duration_ms", duration.Milliseconds(),
					"error", err)
				lastErr = err
				return err
			}

			p.logger.Debug("Bot API request completed",
				"method", "sendMessage",
				"chat_id", chatID,
				"message_id", msg.ID,
				"duration_ms", duration.Milliseconds())
			return nil
		},
		retry.Attempts(p.attempts),
		retry.Delay(time.Second),
		retry.MaxDelay(time.Minute),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			p.logger.Info("Retrying Bot API send after error", "attempt", n, "error", err)
		}),
		retry.RetryIf(func(err error) bool {
			// Bot API errors are final; only transport failures are retried.
			var apiErr *tele.Error
			return !errors.As(err, &apiErr)
		}),
	)
	if err != nil && lastErr != nil {
		return lastErr
	}
	if err != nil {
		return p.redact(err)
	}
	return nil
}

const redactedToken = "<redacted>"

// tokenError replaces an error whose text carries the bot token, which telebot
// puts in request URLs. The original error is not kept.
type tokenError struct {
	msg string
}

func (e *tokenError) Error() string { return e.msg }

func (p *BotProvider) redact(err error) error {
	msg := err.Error()
	if p.token == "" || !strings.Contains(msg, p.token) {
		return err
	}
	return &tokenError{msg: strings.ReplaceAll(msg, p.token, redactedToken)}
}
