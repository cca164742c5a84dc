package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"sia/internal/logging"
)

// RetryConfig bounds the retry wrapper.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig retries twice with exponential backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second}
}

type retryClient struct {
	underlying Client
	cfg        RetryConfig
	logger     logging.Logger
}

// WrapWithRetry retries transient provider failures (rate limits,
// 5xx, timeouts) with exponential backoff. Permanent failures and
// parse errors pass through immediately.
func WrapWithRetry(client Client, cfg RetryConfig, logger logging.Logger) Client {
	if cfg.MaxAttempts <= 0 {
		cfg = DefaultRetryConfig()
	}
	return &retryClient{underlying: client, cfg: cfg, logger: logging.OrNop(logger)}
}

func (c *retryClient) Model() string { return c.underlying.Model() }

func (c *retryClient) Generate(ctx context.Context, req Request) (*Response, error) {
	delay := c.cfg.BaseDelay
	if delay <= 0 {
		delay = time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		resp, err := c.underlying.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !isTransient(err) || attempt == c.cfg.MaxAttempts {
			break
		}

		c.logger.Warn("llm: attempt %d/%d failed, retrying in %v: %v",
			attempt, c.cfg.MaxAttempts, delay, err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if c.cfg.MaxDelay > 0 && delay > c.cfg.MaxDelay {
			delay = c.cfg.MaxDelay
		}
	}
	return nil, lastErr
}

func isTransient(err error) bool {
	var httpErr *HTTPStatusError
	if errors.As(err, &httpErr) {
		return httpErr.transient()
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return false
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no api key"):
		return false
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return true
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "connection reset"):
		return true
	}
	return errors.Is(err, ErrUnavailable)
}
