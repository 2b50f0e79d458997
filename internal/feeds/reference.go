package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"dexarb/internal/httputil"
)

// ReferenceTick is one polled observation from the reference price/indicator
// service. RSI and EMA are nil when the service has not warmed up its
// lookback window yet; absent is not zero.
type ReferenceTick struct {
	Price     float64   `json:"price"`
	RSI       *float64  `json:"rsi"`
	EMA       *float64  `json:"ema"`
	Timestamp time.Time `json:"timestamp"`
}

// ReferenceClient polls the indicator sidecar for the benchmark price and
// its RSI/EMA readings.
type ReferenceClient struct {
	url        string
	httpClient *http.Client
	retry      httputil.RetryConfig
}

func NewReferenceClient(url string, timeout time.Duration) *ReferenceClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ReferenceClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			MaxDelay:    10 * time.Second,
		},
	}
}

func (c *ReferenceClient) Fetch(ctx context.Context) (*ReferenceTick, error) {
	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("reference fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reference feed returned status %d", resp.StatusCode)
	}

	var tick ReferenceTick
	if err := json.NewDecoder(resp.Body).Decode(&tick); err != nil {
		return nil, fmt.Errorf("decode reference tick: %w", err)
	}

	if tick.Price <= 0 {
		return nil, fmt.Errorf("invalid reference price: %f", tick.Price)
	}
	if tick.Timestamp.IsZero() {
		tick.Timestamp = time.Now()
	}
	return &tick, nil
}
