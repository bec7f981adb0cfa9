package feed

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jacobsa/go-serial/serial"
	"go.uber.org/zap"
)

// DefaultBaudRate is used when the config leaves it unset.
const DefaultBaudRate = 115200

// Serial reads newline-delimited glove messages from a USB serial port.
type Serial struct {
	opts   serial.OpenOptions
	retry  time.Duration
	open   func(serial.OpenOptions) (io.ReadWriteCloser, error)
	logger *zap.Logger
}

// NewSerial creates a Serial source for cfg.Port.
func NewSerial(cfg Config) *Serial {
	baud := cfg.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}
	return &Serial{
		opts: serial.OpenOptions{
			PortName:        cfg.Port,
			BaudRate:        baud,
			DataBits:        8,
			StopBits:        1,
			MinimumReadSize: 1,
			ParityMode:      serial.PARITY_NONE,
		},
		retry:  retryInterval(cfg.RetryInterval),
		open:   serial.Open,
		logger: loggerOrNop(cfg.Logger).With(zap.String("feed", "serial"), zap.String("port", cfg.Port)),
	}
}

// Name implements Source.
func (s *Serial) Name() string { return "serial " + s.opts.PortName }

// Run implements Source.
func (s *Serial) Run(ctx context.Context, sink Sink) error {
	for {
		if err := s.session(ctx, sink); err != nil && ctx.Err() == nil {
			s.logger.Warn("serial port lost", zap.Error(err))
		}
		sink.SetConnected(false)
		if !wait(ctx, s.retry) {
			return ctx.Err()
		}
	}
}

func (s *Serial) session(ctx context.Context, sink Sink) error {
	port, err := s.open(s.opts)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.opts.PortName, err)
	}

	var once sync.Once
	closePort := func() { once.Do(func() { port.Close() }) }
	defer closePort()

	stop := context.AfterFunc(ctx, closePort)
	defer stop()

	sink.SetConnected(true)
	s.logger.Info("glove connected", zap.Uint("baud", s.opts.BaudRate))

	return scanLines(port, sink)
}

// scanLines forwards every non-empty line of r to sink.
func scanLines(r io.Reader, sink Sink) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		msg := make([]byte, len(line))
		copy(msg, line)
		sink.HandleMessage(msg)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read: %w", err)
	}
	return io.EOF
}
