package feeds

import (
	"context"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"dexarb/internal/logging"
)

const (
	streamPongWait  = 60 * time.Second
	streamReconnect = 5 * time.Second
)

// PriceHandler receives push price updates from the stream.
type PriceHandler func(price float64, at time.Time)

// Stream subscribes to a Binance-style miniTicker websocket and pushes
// price-only updates between polls. Loss of the stream degrades the engine
// to poll-only freshness; it is never fatal.
type Stream struct {
	url     string
	handler PriceHandler
	log     *logging.Logger
}

func NewStream(url string, handler PriceHandler, log *logging.Logger) *Stream {
	return &Stream{url: url, handler: handler, log: log}
}

// Run connects, reads until failure, and reconnects with a fixed delay until
// the context is cancelled.
func (s *Stream) Run(ctx context.Context) {
	for {
		if err := s.readLoop(ctx); err != nil && ctx.Err() == nil {
			s.log.Warnf("[STREAM] %v, reconnecting in %s", err, streamReconnect)
		}
		select {
		case <-ctx.Done():
			s.log.Infof("[STREAM] Stopped")
			return
		case <-time.After(streamReconnect):
		}
	}
}

func (s *Stream) readLoop(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(streamPongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})

	s.log.Infof("[STREAM] Connected to %s", s.url)

	// Close the connection when the context ends so ReadJSON unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var msg struct {
			Close     string `json:"c"`
			EventTime int64  `json:"E"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(streamPongWait))

		price, err := strconv.ParseFloat(msg.Close, 64)
		if err != nil || price <= 0 {
			continue
		}
		at := time.Now()
		if msg.EventTime > 0 {
			at = time.UnixMilli(msg.EventTime)
		}
		s.handler(price, at)
	}
}
