// Package ingest converts glove frames into orientation accumulator updates.
package ingest

import (
	"math"
	"sort"

	"github.com/sawtak/glovestudio/internal/pose"
	"github.com/sawtak/glovestudio/internal/sensor"
)

// OpKind identifies an accumulator operation.
type OpKind int

const (
	OpScalarAngle OpKind = iota
	OpAbsolute
	OpDelta
)

func (k OpKind) String() string {
	switch k {
	case OpScalarAngle:
		return "scalar"
	case OpAbsolute:
		return "absolute"
	case OpDelta:
		return "delta"
	}
	return "unknown"
}

// Op is a single joint update derived from a frame.
type Op struct {
	Joint string
	Kind  OpKind
	Angle float64   // OpScalarAngle
	Axis  pose.Axis // OpScalarAngle
	Q     pose.Quat // OpAbsolute, OpDelta
}

// Adapter maps frames onto the joints of a rig.
type Adapter struct {
	registry *pose.Registry
}

// NewAdapter creates an Adapter for the given registry.
func NewAdapter(r *pose.Registry) *Adapter {
	return &Adapter{registry: r}
}

// ScalarAngle converts a flex reading to radians, clamping the result to the
// range between zero and the rig's full-scale angle.
func (a *Adapter) ScalarAngle(value float64) float64 {
	if math.IsNaN(value) {
		return 0
	}
	angle := value * a.registry.MaxAngle() / a.registry.InputMax()
	lo, hi := math.Min(0, a.registry.MaxAngle()), math.Max(0, a.registry.MaxAngle())
	return math.Max(lo, math.Min(hi, angle))
}

// Plan returns the operations for f. Channels the rig does not map, and
// readings whose kind differs from the channel's configured mode, yield no
// operations. Each joint appears at most once; when two channels target the
// same joint the one whose name sorts first wins.
func (a *Adapter) Plan(f sensor.Frame) []Op {
	names := make([]string, 0, len(f.Readings))
	for name := range f.Readings {
		names = append(names, name)
	}
	sort.Strings(names)

	seen := make(map[string]struct{})
	var ops []Op

	for _, name := range names {
		reading := f.Readings[name]
		if reading == nil {
			continue
		}
		ch, ok := a.registry.Channel(name)
		if !ok || reading.Mode() != ch.Mode {
			continue
		}

		for _, t := range ch.Targets {
			if _, dup := seen[t.Joint]; dup {
				continue
			}
			op, ok := a.op(t, ch.Axis, reading)
			if !ok {
				continue
			}
			seen[t.Joint] = struct{}{}
			ops = append(ops, op)
		}
	}

	return ops
}

// op converts one reading for target t. It reports false for a reading type
// it cannot apply.
func (a *Adapter) op(t pose.Target, axis pose.Axis, r sensor.Reading) (Op, bool) {
	switch v := r.(type) {
	case sensor.ScalarReading:
		return Op{
			Joint: t.Joint,
			Kind:  OpScalarAngle,
			Angle: a.ScalarAngle(v.Value) * t.Scale,
			Axis:  axis,
		}, true
	case sensor.AbsoluteReading:
		return Op{Joint: t.Joint, Kind: OpAbsolute, Q: attenuate(v.Q, t.Scale)}, true
	case sensor.DeltaReading:
		return Op{Joint: t.Joint, Kind: OpDelta, Q: attenuate(v.Q, t.Scale)}, true
	}
	return Op{}, false
}

// attenuate renormalizes q and, for scale != 1, shrinks its rotation angle.
func attenuate(q pose.Quat, scale float64) pose.Quat {
	q = pose.Normalize(q)
	if scale == 1 {
		return q
	}
	return pose.ScaleAngle(q, scale)
}

// Execute runs ops against acc.
func Execute(acc *pose.Accumulator, ops []Op) {
	for _, op := range ops {
		switch op.Kind {
		case OpScalarAngle:
			acc.ApplyScalarAngle(op.Joint, op.Angle, op.Axis)
		case OpAbsolute:
			acc.ApplyAbsolute(op.Joint, op.Q)
		case OpDelta:
			acc.ApplyDelta(op.Joint, op.Q)
		}
	}
}

// Apply plans f and executes it against acc.
func (a *Adapter) Apply(acc *pose.Accumulator, f sensor.Frame) {
	Execute(acc, a.Plan(f))
}
