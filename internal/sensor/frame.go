// Package sensor defines glove frames and decodes them from feed messages.
package sensor

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sawtak/glovestudio/internal/pose"
)

// ErrMalformed is returned for feed messages that cannot be decoded.
var ErrMalformed = errors.New("malformed frame")

// Reading is a single channel's value within a frame. It is one of
// ScalarReading, AbsoluteReading or DeltaReading.
type Reading interface {
	Mode() pose.Mode
	isReading()
}

// ScalarReading is a flex value, nominally 0 to 1023.
type ScalarReading struct {
	Value float64
}

// AbsoluteReading is the channel's absolute orientation.
type AbsoluteReading struct {
	Q pose.Quat
}

// DeltaReading is the rotation since the channel's previous reading.
type DeltaReading struct {
	Q pose.Quat
}

func (ScalarReading) Mode() pose.Mode   { return pose.ModeScalar }
func (AbsoluteReading) Mode() pose.Mode { return pose.ModeAbsolute }
func (DeltaReading) Mode() pose.Mode    { return pose.ModeDelta }

func (ScalarReading) isReading()   {}
func (AbsoluteReading) isReading() {}
func (DeltaReading) isReading()    {}

// Frame is one message from the glove: a reading per channel.
type Frame struct {
	Readings   map[string]Reading
	ReceivedAt time.Time
}

// NewFrame creates an empty frame stamped with the current time.
func NewFrame() Frame {
	return Frame{Readings: make(map[string]Reading), ReceivedAt: time.Now()}
}

// wireQuat is the on-the-wire quaternion shape. Qw is a pointer so that a
// missing component can be told apart from zero.
type wireQuat struct {
	Qw *float64 `json:"qw"`
	Qx float64  `json:"qx"`
	Qy float64  `json:"qy"`
	Qz float64  `json:"qz"`
}

type wireScalar struct {
	Pitch *float64 `json:"pitch"`
}

// MarshalJSON encodes the frame's readings in the same channel map shape the
// glove sends, so stored frames can be decoded again with Decoder.DecodeChannels.
func (f Frame) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(f.Readings))
	for name, r := range f.Readings {
		switch v := r.(type) {
		case ScalarReading:
			out[name] = map[string]float64{"pitch": v.Value}
		case AbsoluteReading:
			out[name] = quatFields(v.Q)
		case DeltaReading:
			out[name] = quatFields(v.Q)
		default:
			return nil, fmt.Errorf("channel %q: unsupported reading %T", name, r)
		}
	}
	return json.Marshal(out)
}

func quatFields(q pose.Quat) map[string]float64 {
	return map[string]float64{"qw": q.Real, "qx": q.Imag, "qy": q.Jmag, "qz": q.Kmag}
}
