// Package feed connects to a glove and delivers its raw messages.
package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultRetryInterval is the wait between reconnect attempts.
const DefaultRetryInterval = 2 * time.Second

// ErrUnknownKind is returned by New for an unsupported source kind.
var ErrUnknownKind = errors.New("unknown feed kind")

// Sink receives messages and connection changes from a Source. Methods are
// called from the Source's goroutine and must not block for long.
type Sink interface {
	HandleMessage(msg []byte)
	SetConnected(connected bool)
}

// Source is a glove transport. Run blocks until ctx is cancelled,
// reconnecting as needed, and returns ctx.Err() on shutdown.
type Source interface {
	Name() string
	Run(ctx context.Context, sink Sink) error
}

// Kind selects the transport.
type Kind string

const (
	KindWebSocket Kind = "websocket"
	KindMQTT      Kind = "mqtt"
	KindSerial    Kind = "serial"
	KindReplay    Kind = "replay"
)

// Config holds the settings for every source kind; only the fields of the
// selected Kind are read.
type Config struct {
	Kind          Kind
	URL           string
	Broker        string
	Topic         string
	ClientID      string
	Port          string
	BaudRate      uint
	File          string
	Interval      time.Duration
	Loop          bool
	RetryInterval time.Duration
	Logger        *zap.Logger
}

// New builds the Source selected by cfg.Kind.
func New(cfg Config) (Source, error) {
	switch cfg.Kind {
	case KindWebSocket:
		return NewWebSocket(cfg), nil
	case KindMQTT:
		return NewMQTT(cfg), nil
	case KindSerial:
		return NewSerial(cfg), nil
	case KindReplay:
		return NewReplay(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}

func loggerOrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

func retryInterval(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultRetryInterval
	}
	return d
}

// wait sleeps for d or until ctx is done, reporting whether to continue.
func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
