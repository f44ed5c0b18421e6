package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingProvider struct {
	mu    sync.Mutex
	chats []string
	texts []string
	err   error
}

func (r *recordingProvider) Send(ctx context.Context, chatID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.chats = append(r.chats, chatID)
	r.texts = append(r.texts, text)
	return nil
}

func TestSenderSendMessage(t *testing.T) {
	provider := &recordingProvider{}
	sender := New(provider, "42", 0, testLogger())

	if err := sender.SendMessage(context.Background(), "Я начал свою работу"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	if len(provider.texts) != 1 || provider.texts[0] != "Я начал свою работу" {
		t.Errorf("provider texts = %q, want one start message", provider.texts)
	}
	if provider.chats[0] != "42" {
		t.Errorf("provider chat = %q, want %q", provider.chats[0], "42")
	}
}

func TestSenderEmptyMessage(t *testing.T) {
	provider := &recordingProvider{}
	sender := New(provider, "42", 0, testLogger())

	if err := sender.SendMessage(context.Background(), ""); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("SendMessage(\"\") error = %v, want %v", err, ErrEmptyMessage)
	}
	if len(provider.texts) != 0 {
		t.Errorf("provider called %d times, want 0", len(provider.texts))
	}
}

func TestSenderProviderError(t *testing.T) {
	boom := errors.New("boom")
	sender := New(&recordingProvider{err: boom}, "42", 0, testLogger())

	if err := sender.SendMessage(context.Background(), "hi"); !errors.Is(err, boom) {
		t.Errorf("SendMessage() error = %v, want wrapped %v", err, boom)
	}
}

func TestSenderRateLimit(t *testing.T) {
	provider := &recordingProvider{}
	sender := New(provider, "42", time.Hour, testLogger())

	// The first message uses the initial burst.
	if err := sender.SendMessage(context.Background(), "first"); err != nil {
		t.Fatalf("SendMessage(first) error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := sender.SendMessage(ctx, "second"); err == nil {
		t.Fatal("SendMessage(second) error = nil, want rate limit wait failure")
	}
	if len(provider.texts) != 1 {
		t.Errorf("provider called %d times, want 1", len(provider.texts))
	}
}

func TestMockProvider(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	mock := NewMockProvider(logger)

	if err := mock.Send(context.Background(), "42", "hello"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !strings.Contains(buf.String(), "MOCK TELEGRAM MESSAGE") || !strings.Contains(buf.String(), "hello") {
		t.Errorf("mock log = %q, want message logged", buf.String())
	}
}

func TestBotProviderSend(t *testing.T) {
	var (
		gotPath string
		gotBody map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":1700000000,"chat":{"id":42,"type":"private"},"text":"hi"}}`))
	}))
	defer srv.Close()

	p, err := NewBotProvider(BotConfig{Token: "123:abc", APIURL: srv.URL}, testLogger())
	if err != nil {
		t.Fatalf("NewBotProvider() error = %v", err)
	}

	if err := p.Send(context.Background(), "42", "Изменился статус"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if gotPath != "/bot123:abc/sendMessage" {
		t.Errorf("request path = %q, want %q", gotPath, "/bot123:abc/sendMessage")
	}
	if gotBody["chat_id"] != "42" {
		t.Errorf("chat_id = %v, want %q", gotBody["chat_id"], "42")
	}
	if gotBody["text"] != "Изменился статус" {
		t.Errorf("text = %v, want %q", gotBody["text"], "Изменился статус")
	}
}

func TestBotProviderAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	p, err := NewBotProvider(BotConfig{Token: "123:abc", APIURL: srv.URL}, testLogger())
	if err != nil {
		t.Fatalf("NewBotProvider() error = %v", err)
	}

	if err := p.Send(context.Background(), "42", "hi"); err == nil {
		t.Error("Send() error = nil, want Bot API error")
	}
}

func TestNewBotProviderEmptyToken(t *testing.T) {
	if _, err := NewBotProvider(BotConfig{Token: "  "}, testLogger()); err == nil {
		t.Error("NewBotProvider() error = nil, want error for empty token")
	}
}

func TestBotProviderTransportErrorHidesToken(t *testing.T) {
	const token = "123:SECRETTOKEN"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	apiURL := srv.URL
	srv.Close()

	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	p, err := NewBotProvider(BotConfig{Token: token, APIURL: apiURL, Timeout: time.Second}, logger)
	if err != nil {
		t.Fatalf("NewBotProvider() error = %v", err)
	}
	sender := New(p, "42", 0, logger)

	err = sender.SendMessage(context.Background(), "hi")
	if err == nil {
		t.Fatal("SendMessage() error = nil, want transport error")
	}
	if strings.Contains(err.Error(), "SECRETTOKEN") {
		t.Errorf("error exposes token: %v", err)
	}
	if !strings.Contains(err.Error(), redactedToken) {
		t.Errorf("error = %v, want token replaced by %q", err, redactedToken)
	}
	if strings.Contains(buf.String(), "SECRETTOKEN") {
		t.Errorf("log exposes token: %q", buf.String())
	}
}
