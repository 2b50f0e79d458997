package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetch_ParsesTick(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"price":50100.5,"rsi":25.2,"ema":50000.1,"timestamp":"2026-08-30T12:00:00Z"}`))
	}))
	defer srv.Close()

	c := NewReferenceClient(srv.URL, 5*time.Second)
	tick, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if tick.Price != 50100.5 {
		t.Fatalf("expected price 50100.5, got %f", tick.Price)
	}
	if tick.RSI == nil || *tick.RSI != 25.2 {
		t.Fatalf("expected RSI 25.2, got %v", tick.RSI)
	}
	if tick.EMA == nil || *tick.EMA != 50000.1 {
		t.Fatalf("expected EMA 50000.1, got %v", tick.EMA)
	}
	if tick.Timestamp.IsZero() {
		t.Fatal("timestamp not parsed")
	}
}

func TestFetch_NullIndicatorsStayNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"price":50100.5,"rsi":null,"ema":null}`))
	}))
	defer srv.Close()

	c := NewReferenceClient(srv.URL, 5*time.Second)
	tick, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if tick.RSI != nil || tick.EMA != nil {
		t.Fatal("absent indicators must stay nil, not become zero")
	}
	if tick.Timestamp.IsZero() {
		t.Fatal("missing timestamp should default to now")
	}
}

func TestFetch_InvalidPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"price":0}`))
	}))
	defer srv.Close()

	c := NewReferenceClient(srv.URL, 5*time.Second)
	if _, err := c.Fetch(context.Background()); err == nil {
		t.Fatal("zero price must be an error")
	}
}

func TestFetch_ServerError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewReferenceClient(srv.URL, 5*time.Second)
	c.retry.BaseDelay = time.Millisecond
	c.retry.MaxDelay = time.Millisecond

	if _, err := c.Fetch(context.Background()); err == nil {
		t.Fatal("5xx must surface as an error")
	}
	if calls < 2 {
		t.Fatalf("5xx responses should be retried, got %d attempts", calls)
	}
}

func TestFetch_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{`))
	}))
	defer srv.Close()

	c := NewReferenceClient(srv.URL, 5*time.Second)
	if _, err := c.Fetch(context.Background()); err == nil {
		t.Fatal("malformed body must be an error")
	}
}
