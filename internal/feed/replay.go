package feed

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

// DefaultReplayInterval matches the glove's nominal 60 Hz output.
const DefaultReplayInterval = time.Second / 60

// Replay plays back a file of newline-delimited glove messages, for working
// without hardware.
type Replay struct {
	file     string
	interval time.Duration
	loop     bool
	logger   *zap.Logger
}

// NewReplay creates a Replay source for cfg.File.
func NewReplay(cfg Config) *Replay {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultReplayInterval
	}
	return &Replay{
		file:     cfg.File,
		interval: interval,
		loop:     cfg.Loop,
		logger:   loggerOrNop(cfg.Logger).With(zap.String("feed", "replay"), zap.String("file", cfg.File)),
	}
}

// Name implements Source.
func (r *Replay) Name() string { return "replay " + r.file }

// Run implements Source. Without Loop it returns nil once the file is played.
func (r *Replay) Run(ctx context.Context, sink Sink) error {
	data, err := os.ReadFile(r.file)
	if err != nil {
		return fmt.Errorf("read replay: %w", err)
	}

	var lines [][]byte
	for _, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			lines = append(lines, line)
		}
	}

	sink.SetConnected(true)
	defer sink.SetConnected(false)
	r.logger.Info("replay started", zap.Int("messages", len(lines)))

	if len(lines) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for i := 0; ; {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			sink.HandleMessage(lines[i])
			i++
			if i == len(lines) {
				if !r.loop {
					return nil
				}
				i = 0
			}
		}
	}
}
