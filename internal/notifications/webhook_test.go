package notifications

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func capture(t *testing.T) (*httptest.Server, *payload) {
	t.Helper()
	var got payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestSend_ConsoleOnlyWhenUnconfigured(t *testing.T) {
	s := NewSender("", "TestBot")
	if s.Enabled() {
		t.Fatal("should not be enabled with empty URL")
	}
	s.Send("status line with no webhook")
}

func TestSend_SlackPayload(t *testing.T) {
	srv, got := capture(t)

	s := NewSender(srv.URL, "TestBot")
	if !s.Enabled() {
		t.Fatal("should be enabled")
	}
	s.Send("buy signal: gap 0.72%")

	if got.Username != "TestBot" {
		t.Fatalf("username: got %q", got.Username)
	}
	if !strings.Contains(got.Text, "buy signal") || !strings.Contains(got.Text, "TestBot") {
		t.Fatalf("text should carry the tagged message, got %q", got.Text)
	}
	if got.Content != "" {
		t.Fatalf("slack payload should not set content, got %q", got.Content)
	}
}

func TestSend_DiscordPayload(t *testing.T) {
	srv, got := capture(t)

	s := NewSender(srv.URL+"/discord/webhook", "ArbBot")
	s.Send("filled: buy 0.04 ETH @ $2600")

	if got.Content == "" {
		t.Fatal("discord payload must set content")
	}
	if got.Text != "" {
		t.Fatalf("discord payload should not set text, got %q", got.Text)
	}
}

func TestSend_TruncatesLongMessages(t *testing.T) {
	srv, got := capture(t)

	s := NewSender(srv.URL+"/discord/x", "Bot")
	s.Send(strings.Repeat("z", 5000))

	if len(got.Content) > maxMessageLen+3 {
		t.Fatalf("content not truncated: %d chars", len(got.Content))
	}
	if !strings.HasSuffix(got.Content, "...") {
		t.Fatal("truncated message should end with ellipsis")
	}
}

func TestSend_DeliveryFailureIsSwallowed(t *testing.T) {
	s := NewSender("http://localhost:1/bogus", "TestBot")
	s.retry.MaxAttempts = 1
	s.Send("this will fail gracefully")
}

func TestDefaultBotName(t *testing.T) {
	if s := NewSender("", ""); s.botName != "DexArb" {
		t.Fatalf("expected default bot name, got %s", s.botName)
	}
}
