package sensor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sawtak/glovestudio/internal/pose"
)

// Decoder turns feed messages into frames, interpreting each channel as the
// registry configures it.
type Decoder struct {
	registry *pose.Registry
	logger   *zap.Logger
}

// NewDecoder creates a Decoder for the given rig. A nil logger discards output.
func NewDecoder(r *pose.Registry, logger *zap.Logger) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{registry: r, logger: logger}
}

type envelope struct {
	Fingers map[string]json.RawMessage `json:"fingers"`
}

// Decode parses a feed message of the form {"fingers": {...}}.
func (d *Decoder) Decode(msg []byte) (Frame, error) {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Fingers == nil {
		return Frame{}, fmt.Errorf("%w: missing fingers object", ErrMalformed)
	}
	return d.decodeChannels(env.Fingers), nil
}

// DecodeChannels parses a bare channel map as produced by Frame.MarshalJSON.
func (d *Decoder) DecodeChannels(data []byte) (Frame, error) {
	var channels map[string]json.RawMessage
	if err := json.Unmarshal(data, &channels); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if channels == nil {
		return Frame{}, fmt.Errorf("%w: not a channel map", ErrMalformed)
	}
	return d.decodeChannels(channels), nil
}

func (d *Decoder) decodeChannels(channels map[string]json.RawMessage) Frame {
	f := Frame{
		Readings:   make(map[string]Reading, len(channels)),
		ReceivedAt: time.Now(),
	}

	for name, raw := range channels {
		mode, ok := d.registry.Mode(name)
		if !ok {
			continue
		}

		r, err := parseReading(mode, raw)
		if err != nil {
			d.logger.Debug("skipping channel",
				zap.String("channel", name),
				zap.String("mode", string(mode)),
				zap.Error(err))
			continue
		}
		f.Readings[name] = r
	}

	return f
}

func parseReading(mode pose.Mode, raw json.RawMessage) (Reading, error) {
	raw = bytes.TrimSpace(raw)

	switch mode {
	case pose.ModeScalar:
		var v float64
		if err := json.Unmarshal(raw, &v); err == nil {
			return ScalarReading{Value: v}, nil
		}
		var s wireScalar
		if err := json.Unmarshal(raw, &s); err != nil || s.Pitch == nil {
			return nil, fmt.Errorf("expected a number or {\"pitch\": n}")
		}
		return ScalarReading{Value: *s.Pitch}, nil

	case pose.ModeAbsolute, pose.ModeDelta:
		var w wireQuat
		if err := json.Unmarshal(raw, &w); err != nil || w.Qw == nil {
			return nil, fmt.Errorf("expected {\"qw\", \"qx\", \"qy\", \"qz\"}")
		}
		q := pose.NewQuat(*w.Qw, w.Qx, w.Qy, w.Qz)
		if mode == pose.ModeAbsolute {
			return AbsoluteReading{Q: q}, nil
		}
		return DeltaReading{Q: q}, nil
	}

	return nil, fmt.Errorf("unsupported mode %q", mode)
}
