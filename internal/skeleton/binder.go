// Package skeleton writes accumulated joint orientations onto a rigged mesh.
package skeleton

import (
	"sort"
	"sync"

	"github.com/sawtak/glovestudio/internal/pose"
)

// Node is a mutable joint of a loaded mesh.
type Node interface {
	SetOrientation(q pose.Quat)
}

// Mesh exposes the named joint nodes of a skinned mesh.
type Mesh interface {
	// Node returns the joint called name, or false if the rig has no such joint.
	Node(name string) (Node, bool)
}

// Binder copies snapshots onto meshes.
type Binder struct{}

// NewBinder creates a Binder.
func NewBinder() *Binder {
	return &Binder{}
}

// Bind writes each orientation in snapshot to the matching node of mesh and
// returns how many joints were written. Joints the mesh lacks are skipped.
func (b *Binder) Bind(mesh Mesh, snapshot map[string]pose.Quat) int {
	if mesh == nil {
		return 0
	}

	bound := 0
	for joint, q := range snapshot {
		node, ok := mesh.Node(joint)
		if !ok {
			continue
		}
		node.SetOrientation(q)
		bound++
	}
	return bound
}

// Rig is an in-memory Mesh whose nodes simply store their orientation.
type Rig struct {
	mu    sync.RWMutex
	nodes map[string]*RigNode
}

// RigNode is a joint of a Rig.
type RigNode struct {
	rig  *Rig
	name string
	q    pose.Quat
}

// NewRig creates a Rig with one node per name, each at identity.
func NewRig(names ...string) *Rig {
	r := &Rig{nodes: make(map[string]*RigNode, len(names))}
	for _, n := range names {
		r.nodes[n] = &RigNode{rig: r, name: n, q: pose.Identity}
	}
	return r
}

// Node implements Mesh.
func (r *Rig) Node(name string) (Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.nodes[name]
	if !ok {
		return nil, false
	}
	return n, true
}

// Names returns the node names, sorted.
func (r *Rig) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.nodes))
	for n := range r.nodes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Orientation returns the orientation last written to node name.
func (r *Rig) Orientation(name string) (pose.Quat, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.nodes[name]
	if !ok {
		return pose.Quat{}, false
	}
	return n.q, true
}

// Pose returns a copy of every node's orientation.
func (r *Rig) Pose() map[string]pose.Quat {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]pose.Quat, len(r.nodes))
	for name, n := range r.nodes {
		out[name] = n.q
	}
	return out
}

// SetOrientation implements Node.
func (n *RigNode) SetOrientation(q pose.Quat) {
	n.rig.mu.Lock()
	n.q = q
	n.rig.mu.Unlock()
}
