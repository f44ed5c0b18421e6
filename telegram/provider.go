// Package telegram delivers notification messages to a Telegram chat.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Provider defines the interface for message delivery implementations.
type Provider interface {
	// Send delivers text to the given chat.
	Send(ctx context.Context, chatID, text string) error
}

// ErrEmptyMessage is returned when asked to send blank text.
var ErrEmptyMessage = errors.New("telegram: empty message")

// Sender sends notification messages to a single chat using a pluggable provider.
type Sender struct {
	provider Provider
	logger   *slog.Logger
	limiter  *rate.Limiter
	chatID   string
}

// New creates a new sender. A positive minInterval spaces consecutive messages at least that far apart.
func New(provider Provider, chatID string, minInterval time.Duration, logger *slog.Logger) *Sender {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Sender{
		provider: provider,
		logger:   logger,
		limiter:  rate.NewLimiter(limit, 1),
		chatID:   chatID,
	}
}

// SendMessage sends text to the configured chat.
func (s *Sender) SendMessage(ctx context.Context, text string) error {
	if text == "" {
		return ErrEmptyMessage
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for send slot: %w", err)
	}

	s.logger.Debug("Sending message", "chat_id", s.chatID, "length", len(text))

	if err := s.provider.Send(ctx, s.chatID, text); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	s.logger.Info("Message sent", "chat_id", s.chatID, "text", text)
	return nil
}
