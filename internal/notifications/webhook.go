package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"dexarb/internal/httputil"
)

// Discord rejects content over 2000 characters; Slack is more lenient but a
// status line should never get near either limit.
const maxMessageLen = 1900

// payload is the webhook body. Slack reads text, Discord reads content; the
// unused field is omitted.
type payload struct {
	Text     string `json:"text,omitempty"`
	Content  string `json:"content,omitempty"`
	Username string `json:"username,omitempty"`
}

// Sender mirrors operator messages to the console and, when a webhook URL is
// configured, to Slack or Discord. Delivery failures are logged and dropped;
// a dead chat channel must never stall the engine.
type Sender struct {
	webhookURL string
	botName    string
	discord    bool
	httpClient *http.Client
	retry      httputil.RetryConfig
}

func NewSender(webhookURL, botName string) *Sender {
	if botName == "" {
		botName = "DexArb"
	}
	return &Sender{
		webhookURL: webhookURL,
		botName:    botName,
		discord:    strings.Contains(webhookURL, "discord"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			MaxDelay:    5 * time.Second,
		},
	}
}

// Enabled reports whether webhook delivery is configured.
func (s *Sender) Enabled() bool {
	return s.webhookURL != ""
}

func (s *Sender) Send(msg string) {
	line := fmt.Sprintf("[%s] %s", s.botName, msg)
	fmt.Printf("[%s] %s\n", time.Now().UTC().Format(time.RFC3339), line)

	if !s.Enabled() {
		return
	}
	if len(line) > maxMessageLen {
		line = line[:maxMessageLen] + "..."
	}
	if err := s.post(s.buildPayload(line)); err != nil {
		fmt.Printf("[CHAT ERROR] Webhook delivery failed: %v\n", err)
	}
}

func (s *Sender) buildPayload(msg string) payload {
	if s.discord {
		return payload{Content: msg, Username: s.botName}
	}
	return payload{Text: fmt.Sprintf("`%s`", msg), Username: s.botName}
}

func (s *Sender) post(p payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := httputil.Do(ctx, s.httpClient, s.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
