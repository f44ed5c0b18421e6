// Package practicum fetches homework review statuses from the Practicum API.
package practicum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// DefaultEndpoint is the homework statuses endpoint of the Practicum API.
const DefaultEndpoint = "https://practicum.yandex.ru/api/user_api/homework_statuses/"

// MaxBodySize caps how much of a response body is read.
const MaxBodySize = 4 << 20

// RequestError indicates the request could not be completed.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("ошибка при запросе к API: %v", e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// StatusError indicates a response with a status other than 200 OK.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ошибка %d", e.Code)
}

// DecodeError indicates a response body that is not valid JSON.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("ответ API не является JSON: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsStatusError checks if an error is a non-200 status error.
func IsStatusError(err error) bool {
	var status *StatusError
	return errors.As(err, &status)
}

// Client requests homework statuses.
type Client struct {
	client   *http.Client
	logger   *slog.Logger
	endpoint string
	token    string
	attempts uint
	now      func() time.Time
}

// New creates a new API client. Attempts below 1 are treated as 1.
func New(client *http.Client, endpoint, token string, attempts uint, logger *slog.Logger) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if attempts == 0 {
		attempts = 1
	}
	return &Client{
		client:   client,
		logger:   logger,
		endpoint: endpoint,
		token:    token,
		attempts: attempts,
		now:      time.Now,
	}
}

// HomeworkStatuses returns the decoded API answer for homeworks updated since from.
// A zero from means now. The answer is returned as decoded, without shape checks.
func (c *Client) HomeworkStatuses(ctx context.Context, from int64) (any, error) {
	if from == 0 {
		from = c.now().Unix()
	}

	reqURL, err := c.buildURL(from)
	if err != nil {
		return nil, err
	}

	var answer any
	var lastErr error
	err = retry.Do(
		func() error {
			answer, lastErr = c.fetch(ctx, reqURL)
			return lastErr
		},
		retry.Attempts(c.attempts),
		retry.Delay(time.Second),
		retry.MaxDelay(time.Minute),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("Retrying homework status request after error", "attempt", n, "error", err)
		}),
		retry.RetryIf(func(err error) bool {
			// Only transport failures are retried.
			var reqErr *RequestError
			return errors.As(err, &reqErr)
		}),
	)
	if err != nil {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, &RequestError{Err: err}
	}

	return answer, nil
}

func (c *Client) buildURL(from int64) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", &RequestError{Err: fmt.Errorf("parse endpoint: %w", err)}
	}
	q := u.Query()
	q.Set("from_date", strconv.FormatInt(from, 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) fetch(ctx context.Context, reqURL string) (any, error) {
	c.logger.Debug("HTTP request starting",
		"method", "GET",
		"url", reqURL,
		"purpose", "homework_statuses")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, &RequestError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Authorization", "OAuth "+c.token)
	req.Header.Set("Accept", "application/json")

	startTime := time.Now()
	resp, err := c.client.Do(req)
	duration := time.Since(startTime)

	if err != nil {
		c.logger.Error("HTTP request failed",
			"url", reqURL,
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return nil, &RequestError{Err: err}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	c.logger.Debug("HTTP request completed",
		"url", reqURL,
		"status_code", resp.StatusCode,
		"duration_ms", duration.Milliseconds(),
		"content_length", resp.ContentLength)

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("HTTP request returned non-OK status", "status_code", resp.StatusCode)
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
	if err != nil {
		return nil, &RequestError{Err: fmt.Errorf("read body: %w", err)}
	}
	if len(body) > MaxBodySize {
		c.logger.Error("Response body too large", "limit_bytes", MaxBodySize)
		return nil, &DecodeError{Err: fmt.Errorf("тело ответа больше %d байт", MaxBodySize)}
	}

	var answer any
	if err := json.Unmarshal(body, &answer); err != nil {
		c.logger.Error("Failed to decode response body", "error", err, "body_length", len(body))
		return nil, &DecodeError{Err: err}
	}

	return answer, nil
}
