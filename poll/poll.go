// Package poll runs the homework status polling loop.
package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode"
	"unicode/utf8"

	"homework-notifier/pkg/homework"
)

const (
	// StartMessage is sent once before the first poll.
	StartMessage = "Я начал свою работу"
	// FailurePrefix starts every error notification.
	FailurePrefix = "Сбой в работе программы: "
)

// Fetcher interface for requesting homework statuses.
type Fetcher interface {
	HomeworkStatuses(ctx context.Context, from int64) (any, error)
}

// Messenger interface for sending notifications.
type Messenger interface {
	SendMessage(ctx context.Context, text string) error
}

// State is the loop's in-memory state. It is never persisted.
type State struct {
	LastMessage string // Most recently dispatched notification
	FromDate    int64  // Unix timestamp for the next request
}

// OutcomeKind classifies one iteration.
type OutcomeKind int

const (
	OutcomeNoUpdates OutcomeKind = iota // Empty homeworks list
	OutcomeUpdate                       // The newest homework produced a message
	OutcomeFailed                       // A stage failed; see Stage and Err
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeNoUpdates:
		return "no_updates"
	case OutcomeUpdate:
		return "update"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Stage names the step an iteration failed in.
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageValidate Stage = "validate"
	StageParse    Stage = "parse"
)

// Outcome is the result of one iteration.
type Outcome struct {
	Kind    OutcomeKind
	Stage   Stage  // Set when Kind is OutcomeFailed
	Message string // Status message derived from the newest homework
	Sent    bool   // Message reached the messenger
	Err     error
}

// Monitor handles the polling logic.
type Monitor struct {
	fetcher      Fetcher
	messenger    Messenger
	logger       *slog.Logger
	retryPeriod  time.Duration
	onlyOnChange bool
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithNotifyOnlyOnChange makes the monitor skip a message equal to the last one sent.
// Without it every derived message is sent, even when unchanged.
func WithNotifyOnlyOnChange(enabled bool) Option {
	return func(m *Monitor) { m.onlyOnChange = enabled }
}

// New creates a new poll monitor.
func New(fetcher Fetcher, messenger Messenger, retryPeriod time.Duration, logger *slog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		fetcher:     fetcher,
		messenger:   messenger,
		logger:      logger,
		retryPeriod: retryPeriod,
		now:         time.Now,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewState returns the state for a fresh start.
func (m *Monitor) NewState() *State {
	return &State{FromDate: m.now().Unix()}
}

// Run announces the start and polls until ctx is cancelled.
// It returns ctx.Err() on shutdown and never returns otherwise.
func (m *Monitor) Run(ctx context.Context, st *State) error {
	m.notify(ctx, st, StartMessage, false)

	for {
		out := m.Check(ctx, st)
		if ctx.Err() != nil {
			m.logger.Info("Polling stopped", "reason", ctx.Err())
			return ctx.Err()
		}

		switch out.Kind {
		case OutcomeFailed:
			message := FailurePrefix + capitalize(out.Err.Error())
			m.logger.Error("Iteration failed", "stage", string(out.Stage), "error", out.Err, "text", message)
			m.notify(ctx, st, message, true)
		case OutcomeNoUpdates:
			m.logger.Debug("No new statuses", "retry_in", m.retryPeriod.String())
		case OutcomeUpdate:
			m.logger.Debug("Sending the next request", "retry_in", m.retryPeriod.String())
		}

		if err := m.sleep(ctx, m.retryPeriod); err != nil {
			m.logger.Info("Polling stopped", "reason", err)
			return err
		}
	}
}

// Check runs one iteration: fetch, validate, derive the message and dispatch it.
// The request timestamp advances only when the iteration succeeds.
func (m *Monitor) Check(ctx context.Context, st *State) Outcome {
	m.logger.Debug("Checking homework statuses", "from_date", st.FromDate)

	answer, err := m.fetcher.HomeworkStatuses(ctx, st.FromDate)
	if err != nil {
		return Outcome{Kind: OutcomeFailed, Stage: StageFetch, Err: err}
	}

	homeworks, err := homework.CheckResponse(answer)
	if err != nil {
		return Outcome{Kind: OutcomeFailed, Stage: StageValidate, Err: err}
	}

	if len(homeworks) == 0 {
		st.FromDate = m.now().Unix()
		return Outcome{Kind: OutcomeNoUpdates}
	}

	message, err := homework.ParseStatus(homeworks[0])
	if err != nil {
		return Outcome{Kind: OutcomeFailed, Stage: StageParse, Err: err}
	}

	sent := m.notify(ctx, st, message, true)
	st.FromDate = m.now().Unix()

	return Outcome{Kind: OutcomeUpdate, Message: message, Sent: sent}
}

// notify sends message unless dedup applies and reports whether it was sent.
// Failures are logged, never returned.
func (m *Monitor) notify(ctx context.Context, st *State, message string, dedup bool) bool {
	if dedup && m.onlyOnChange && message == st.LastMessage {
		m.logger.Debug("Message unchanged, not sending", "text", message)
		return false
	}

	if err := m.messenger.SendMessage(ctx, message); err != nil {
		m.logger.Error("Failed to send message", "error", err, "text", message)
		return false
	}

	m.logger.Debug("Message delivered", "text", message)
	st.LastMessage = message
	return true
}

// capitalize upper-cases the first letter of an error text shown in chat.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsShutdown reports whether err came from a cancelled Run.
func IsShutdown(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
