package skeleton

import (
	"testing"

	"github.com/sawtak/glovestudio/internal/pose"
)

func TestBinder_Bind(t *testing.T) {
	rig := NewRig("index_01R_017", "index_02R_018", "wrist")
	b := NewBinder()

	q := pose.FromAxisAngle(pose.AxisZ, -0.5)
	snapshot := map[string]pose.Quat{
		"index_01R_017": q,
		"index_02R_018": pose.Identity,
		"pinky_01R_041": q, // absent from the rig
	}

	if got := b.Bind(rig, snapshot); got != 2 {
		t.Errorf("Bind() = %d, want 2", got)
	}

	if got, _ := rig.Orientation("index_01R_017"); got != q {
		t.Errorf("index_01R_017 = %v, want %v", got, q)
	}
	if got, _ := rig.Orientation("wrist"); got != pose.Identity {
		t.Errorf("wrist should be untouched, got %v", got)
	}
	if _, ok := rig.Orientation("pinky_01R_041"); ok {
		t.Error("binder should not add nodes to the rig")
	}
}

func TestBinder_DoesNotMutateSnapshot(t *testing.T) {
	r, err := pose.NewRegistry(pose.HandConfig(pose.ModeDelta))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	acc := pose.NewAccumulator(r)
	acc.ApplyDelta("ring_01R_033", pose.FromAxisAngle(pose.AxisZ, 0.3))
	before := acc.Snapshot()

	rig := NewRig(r.Joints()...)
	NewBinder().Bind(rig, acc.Snapshot())

	after := acc.Snapshot()
	for j, q := range before {
		if after[j] != q {
			t.Errorf("joint %s changed from %v to %v", j, q, after[j])
		}
	}
	for j, q := range rig.Pose() {
		if q != after[j] {
			t.Errorf("rig %s = %v, want %v", j, q, after[j])
		}
	}
}

func TestBinder_NilMesh(t *testing.T) {
	if got := NewBinder().Bind(nil, map[string]pose.Quat{"a": pose.Identity}); got != 0 {
		t.Errorf("Bind(nil) = %d, want 0", got)
	}
}
