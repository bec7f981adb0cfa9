package pose

import "sync"

// Accumulator holds the current orientation of every tracked joint.
// All methods are safe for concurrent use.
type Accumulator struct {
	registry *Registry
	mu       sync.Mutex
	joints   map[string]Quat
}

// NewAccumulator creates an Accumulator with every registry joint at rest.
func NewAccumulator(r *Registry) *Accumulator {
	a := &Accumulator{
		registry: r,
		joints:   make(map[string]Quat),
	}
	a.Reset()
	return a
}

// Registry returns the registry the accumulator was built from.
func (a *Accumulator) Registry() *Registry {
	return a.registry
}

// current returns the tracked orientation of joint, lazily seeding it from the
// registry. ok is false when the registry does not declare joint.
// Callers must hold a.mu.
func (a *Accumulator) current(joint string) (Quat, bool) {
	if q, ok := a.joints[joint]; ok {
		return q, true
	}
	if !a.registry.Declares(joint) {
		return Quat{}, false
	}
	q := a.registry.DefaultOrientation(joint)
	a.joints[joint] = q
	return q, true
}

// ApplyAbsolute replaces the orientation of joint with q.
func (a *Accumulator) ApplyAbsolute(joint string, q Quat) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.current(joint); !ok {
		return
	}
	a.joints[joint] = Normalize(q)
}

// ApplyDelta composes d onto the orientation of joint: current ← current ⊗ d.
func (a *Accumulator) ApplyDelta(joint string, d Quat) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cur, ok := a.current(joint)
	if !ok {
		return
	}
	a.joints[joint] = Compose(cur, Normalize(d))
}

// ApplyScalarAngle sets joint to its rest orientation rotated by angle
// radians about axis. Previous updates are discarded.
func (a *Accumulator) ApplyScalarAngle(joint string, angle float64, axis Axis) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.current(joint); !ok {
		return
	}
	a.joints[joint] = Compose(a.registry.DefaultOrientation(joint), FromAxisAngle(axis, angle))
}

// Reset returns every registry joint to its rest orientation and forgets
// joints the registry does not know.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	joints := make(map[string]Quat, len(a.registry.joints))
	for _, j := range a.registry.joints {
		joints[j] = a.registry.DefaultOrientation(j)
	}
	a.joints = joints
}

// Orientation returns the current orientation of joint.
func (a *Accumulator) Orientation(joint string) (Quat, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	q, ok := a.joints[joint]
	return q, ok
}

// Snapshot returns a copy of all tracked orientations.
func (a *Accumulator) Snapshot() map[string]Quat {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]Quat, len(a.joints))
	for j, q := range a.joints {
		out[j] = q
	}
	return out
}
