package pose

import (
	"fmt"
	"sort"
)

// Mode selects how a channel's readings are interpreted.
type Mode string

const (
	// ModeScalar maps a flex value onto a single-axis angle.
	ModeScalar Mode = "scalar"
	// ModeAbsolute assigns the reading as the joint's orientation.
	ModeAbsolute Mode = "absolute"
	// ModeDelta composes the reading onto the joint's current orientation.
	ModeDelta Mode = "delta"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeScalar, ModeAbsolute, ModeDelta:
		return true
	}
	return false
}

// Role distinguishes the joint a channel drives fully from those it drives
// at reduced effect.
type Role string

const (
	RolePrimary   Role = "primary"
	RoleSecondary Role = "secondary"
)

// DefaultSecondaryScale is the effect applied to secondary joints when the
// rig does not specify one.
const DefaultSecondaryScale = 0.5

// Default scalar mapping: a reading of InputMax bends the joint by MaxAngle radians.
const (
	DefaultInputMax = 1023.0
	DefaultMaxAngle = -1.5
)

// Target is one joint driven by a channel.
type Target struct {
	Joint string
	Role  Role
	Scale float64
}

// Channel describes one sensor channel and the joints it drives.
type Channel struct {
	Name    string
	Mode    Mode
	Axis    Axis // rotation axis for ModeScalar
	Targets []Target
}

// Config is the static description of a rig.
type Config struct {
	Defaults map[string]Quat
	Channels []Channel
	InputMax float64
	MaxAngle float64
}

// Registry is an immutable lookup of rest orientations and channel mappings.
type Registry struct {
	defaults map[string]Quat
	channels map[string]Channel
	joints   []string
	inputMax float64
	maxAngle float64
}

// NewRegistry validates cfg and builds a Registry from a private copy of it.
func NewRegistry(cfg Config) (*Registry, error) {
	r := &Registry{
		defaults: make(map[string]Quat, len(cfg.Defaults)),
		channels: make(map[string]Channel, len(cfg.Channels)),
		inputMax: cfg.InputMax,
		maxAngle: cfg.MaxAngle,
	}
	if r.inputMax <= 0 {
		r.inputMax = DefaultInputMax
	}
	if r.maxAngle == 0 {
		r.maxAngle = DefaultMaxAngle
	}

	known := make(map[string]struct{})
	for joint, q := range cfg.Defaults {
		if joint == "" {
			return nil, fmt.Errorf("default orientation with empty joint name")
		}
		r.defaults[joint] = Normalize(q)
		known[joint] = struct{}{}
	}

	for i, ch := range cfg.Channels {
		if ch.Name == "" {
			return nil, fmt.Errorf("channel %d: name is required", i)
		}
		if _, dup := r.channels[ch.Name]; dup {
			return nil, fmt.Errorf("channel %q: declared twice", ch.Name)
		}
		if ch.Mode == "" {
			ch.Mode = ModeDelta
		}
		if !ch.Mode.Valid() {
			return nil, fmt.Errorf("channel %q: unknown mode %q", ch.Name, ch.Mode)
		}
		if ch.Axis == (Axis{}) {
			ch.Axis = AxisZ
		}

		targets := make([]Target, 0, len(ch.Targets))
		for _, t := range ch.Targets {
			if t.Joint == "" {
				return nil, fmt.Errorf("channel %q: target with empty joint name", ch.Name)
			}
			switch t.Role {
			case "", RolePrimary:
				t.Role = RolePrimary
				if t.Scale == 0 {
					t.Scale = 1
				}
			case RoleSecondary:
				if t.Scale == 0 {
					t.Scale = DefaultSecondaryScale
				}
			default:
				return nil, fmt.Errorf("channel %q: unknown role %q", ch.Name, t.Role)
			}
			targets = append(targets, t)
			known[t.Joint] = struct{}{}
		}
		ch.Targets = targets
		r.channels[ch.Name] = ch
	}

	r.joints = make([]string, 0, len(known))
	for j := range known {
		r.joints = append(r.joints, j)
	}
	sort.Strings(r.joints)

	return r, nil
}

// DefaultOrientation returns the rest orientation of joint, or Identity if the
// rig has none.
func (r *Registry) DefaultOrientation(joint string) Quat {
	if q, ok := r.defaults[joint]; ok {
		return q
	}
	return Identity
}

// Mapping returns the targets driven by channel in declaration order.
// Unknown channels return nil.
func (r *Registry) Mapping(channel string) []Target {
	ch, ok := r.channels[channel]
	if !ok {
		return nil
	}
	out := make([]Target, len(ch.Targets))
	copy(out, ch.Targets)
	return out
}

// Channel returns the full description of a channel.
func (r *Registry) Channel(name string) (Channel, bool) {
	ch, ok := r.channels[name]
	if !ok {
		return Channel{}, false
	}
	ch.Targets = r.Mapping(name)
	return ch, true
}

// Mode returns the reading interpretation configured for channel.
func (r *Registry) Mode(channel string) (Mode, bool) {
	ch, ok := r.channels[channel]
	return ch.Mode, ok
}

// Channels returns the configured channel names, sorted.
func (r *Registry) Channels() []string {
	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Joints returns every joint the registry knows about, sorted.
func (r *Registry) Joints() []string {
	out := make([]string, len(r.joints))
	copy(out, r.joints)
	return out
}

// Declares reports whether joint has a default or is the target of a channel.
func (r *Registry) Declares(joint string) bool {
	i := sort.SearchStrings(r.joints, joint)
	return i < len(r.joints) && r.joints[i] == joint
}

// InputMax is the full-scale scalar reading.
func (r *Registry) InputMax() float64 { return r.inputMax }

// MaxAngle is the angle in radians produced by a full-scale scalar reading.
func (r *Registry) MaxAngle() float64 { return r.maxAngle }

// HandConfig returns the right-hand rig: each finger flexes its first knuckle
// fully and its second at half effect; the thumb drives one joint.
func HandConfig(mode Mode) Config {
	finger := func(name, primary, secondary string) Channel {
		ch := Channel{
			Name:    name,
			Mode:    mode,
			Axis:    AxisZ,
			Targets: []Target{{Joint: primary, Role: RolePrimary, Scale: 1}},
		}
		if secondary != "" {
			ch.Targets = append(ch.Targets, Target{Joint: secondary, Role: RoleSecondary, Scale: DefaultSecondaryScale})
		}
		return ch
	}

	channels := []Channel{
		finger("index", "index_01R_017", "index_02R_018"),
		finger("middle", "middle_01R_025", "middle_02R_026"),
		finger("ring", "ring_01R_033", "ring_02R_034"),
		finger("pinky", "pinky_01R_041", "pinky_02R_042"),
		finger("thumb", "thumb_01R_08", ""),
	}

	defaults := make(map[string]Quat)
	for _, ch := range channels {
		for _, t := range ch.Targets {
			defaults[t.Joint] = Identity
		}
	}

	return Config{
		Defaults: defaults,
		Channels: channels,
		InputMax: DefaultInputMax,
		MaxAngle: DefaultMaxAngle,
	}
}
