package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RetryConfig controls exponential backoff for outbound HTTP calls.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

var DefaultRetry = RetryConfig{
	MaxAttempts: 3,
	BaseDelay:   1 * time.Second,
	MaxDelay:    10 * time.Second,
}

// Do sends a request with retries. Transport errors and 5xx responses are
// retried with doubling delay; anything below 500 is the caller's problem and
// comes back as-is. buildReq runs once per attempt because a request body is
// consumed on send.
func Do(ctx context.Context, client *http.Client, cfg RetryConfig, buildReq func() (*http.Request, error)) (*http.Response, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultRetry.MaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := backoff(cfg, attempt-1)
			fmt.Printf("[RETRY] Attempt %d/%d failed: %v, retrying in %s\n",
				attempt-1, cfg.MaxAttempts, lastErr, delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := buildReq()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = serverError(resp)
			continue
		}
		return resp, nil
	}
	return nil, fmt.Errorf("all %d attempts failed, last error: %w", cfg.MaxAttempts, lastErr)
}

// backoff doubles the base delay per completed attempt, capped at MaxDelay.
func backoff(cfg RetryConfig, completed int) time.Duration {
	delay := cfg.BaseDelay
	for i := 1; i < completed; i++ {
		if delay *= 2; delay >= cfg.MaxDelay {
			return cfg.MaxDelay
		}
	}
	return delay
}

// serverError drains a 5xx response into an error carrying a body excerpt.
func serverError(resp *http.Response) error {
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	resp.Body.Close()
	return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(excerpt))
}
