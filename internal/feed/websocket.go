package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocket reads glove messages from a WebSocket server, such as the
// glove's companion bridge.
type WebSocket struct {
	url    string
	retry  time.Duration
	dialer *websocket.Dialer
	logger *zap.Logger
}

// NewWebSocket creates a WebSocket source for cfg.URL.
func NewWebSocket(cfg Config) *WebSocket {
	return &WebSocket{
		url:    cfg.URL,
		retry:  retryInterval(cfg.RetryInterval),
		dialer: websocket.DefaultDialer,
		logger: loggerOrNop(cfg.Logger).With(zap.String("feed", "websocket"), zap.String("url", cfg.URL)),
	}
}

// Name implements Source.
func (w *WebSocket) Name() string { return "websocket " + w.url }

// Run implements Source.
func (w *WebSocket) Run(ctx context.Context, sink Sink) error {
	for {
		if err := w.session(ctx, sink); err != nil && ctx.Err() == nil {
			w.logger.Warn("glove connection lost", zap.Error(err))
		}
		sink.SetConnected(false)
		if !wait(ctx, w.retry) {
			return ctx.Err()
		}
	}
}

func (w *WebSocket) session(ctx context.Context, sink Sink) error {
	conn, _, err := w.dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", w.url, err)
	}

	var once sync.Once
	closeConn := func() { once.Do(func() { conn.Close() }) }
	defer closeConn()

	stop := context.AfterFunc(ctx, closeConn)
	defer stop()

	sink.SetConnected(true)
	w.logger.Info("glove connected")

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		sink.HandleMessage(msg)
	}
}
