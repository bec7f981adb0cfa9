package ingest

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sawtak/glovestudio/internal/pose"
	"github.com/sawtak/glovestudio/internal/sensor"
)

func setup(t *testing.T, mode pose.Mode) (*Adapter, *pose.Accumulator) {
	t.Helper()
	r, err := pose.NewRegistry(pose.HandConfig(mode))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return NewAdapter(r), pose.NewAccumulator(r)
}

func frame(readings map[string]sensor.Reading) sensor.Frame {
	f := sensor.NewFrame()
	for k, v := range readings {
		f.Readings[k] = v
	}
	return f
}

func TestAdapter_ScalarMapping(t *testing.T) {
	a, _ := setup(t, pose.ModeScalar)

	ops := a.Plan(frame(map[string]sensor.Reading{
		"index": sensor.ScalarReading{Value: 511.5},
	}))

	want := []Op{
		{Joint: "index_01R_017", Kind: OpScalarAngle, Angle: -0.75, Axis: pose.AxisZ},
		{Joint: "index_02R_018", Kind: OpScalarAngle, Angle: -0.375, Axis: pose.AxisZ},
	}
	if diff := cmp.Diff(want, ops); diff != "" {
		t.Errorf("ops mismatch (-want +got):\n%s", diff)
	}
}

func TestAdapter_ScalarAngle_Clamps(t *testing.T) {
	a, _ := setup(t, pose.ModeScalar)

	tests := []struct {
		value float64
		want  float64
	}{
		{0, 0},
		{1023, -1.5},
		{2046, -1.5},
		{-100, 0},
		{math.NaN(), 0},
		{math.Inf(1), -1.5},
	}
	for _, tt := range tests {
		if got := a.ScalarAngle(tt.value); got != tt.want {
			t.Errorf("ScalarAngle(%v) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestAdapter_ScalarApply(t *testing.T) {
	a, acc := setup(t, pose.ModeScalar)

	a.Apply(acc, frame(map[string]sensor.Reading{
		"thumb": sensor.ScalarReading{Value: 1023},
	}))

	got, _ := acc.Orientation("thumb_01R_08")
	want := pose.FromAxisAngle(pose.AxisZ, -1.5)
	if !pose.Equal(got, want, 1e-12) {
		t.Errorf("thumb = %v, want %v", got, want)
	}
}

func TestAdapter_DeltaSecondaryAttenuated(t *testing.T) {
	a, acc := setup(t, pose.ModeDelta)
	d := pose.FromAxisAngle(pose.AxisZ, 0.6)

	a.Apply(acc, frame(map[string]sensor.Reading{
		"middle": sensor.DeltaReading{Q: d},
	}))

	primary, _ := acc.Orientation("middle_01R_025")
	if !pose.Equal(primary, d, 1e-12) {
		t.Errorf("primary = %v, want %v", primary, d)
	}

	secondary, _ := acc.Orientation("middle_02R_026")
	_, angle := pose.ToAxisAngle(secondary)
	if math.Abs(angle-0.3) > 1e-9 {
		t.Errorf("secondary angle = %f, want 0.3", angle)
	}
	if n := pose.Norm(secondary); math.Abs(n-1) > 1e-12 {
		t.Errorf("|secondary| = %f, want 1", n)
	}
}

func TestAdapter_DeltaRenormalizes(t *testing.T) {
	a, _ := setup(t, pose.ModeDelta)

	ops := a.Plan(frame(map[string]sensor.Reading{
		"thumb": sensor.DeltaReading{Q: pose.NewQuat(2, 0, 0, 0)},
	}))
	if len(ops) != 1 {
		t.Fatalf("len(ops) = %d, want 1", len(ops))
	}
	if ops[0].Kind != OpDelta || ops[0].Q != pose.Identity {
		t.Errorf("op = %+v, want normalized identity delta", ops[0])
	}
}

func TestAdapter_AbsoluteMode(t *testing.T) {
	a, acc := setup(t, pose.ModeAbsolute)
	q := pose.FromAxisAngle(pose.Axis{Y: 1}, 1.2)

	// Two frames; absolute readings replace rather than accumulate.
	a.Apply(acc, frame(map[string]sensor.Reading{"ring": sensor.AbsoluteReading{Q: q}}))
	a.Apply(acc, frame(map[string]sensor.Reading{"ring": sensor.AbsoluteReading{Q: q}}))

	got, _ := acc.Orientation("ring_01R_033")
	if !pose.Equal(got, q, 1e-12) {
		t.Errorf("ring = %v, want %v", got, q)
	}
}

func TestAdapter_HoldOnMissing(t *testing.T) {
	a, acc := setup(t, pose.ModeDelta)

	a.Apply(acc, frame(map[string]sensor.Reading{
		"index": sensor.DeltaReading{Q: pose.FromAxisAngle(pose.AxisZ, 0.2)},
		"pinky": sensor.DeltaReading{Q: pose.FromAxisAngle(pose.AxisZ, 0.4)},
	}))
	before, _ := acc.Orientation("pinky_01R_041")

	a.Apply(acc, frame(map[string]sensor.Reading{
		"index": sensor.DeltaReading{Q: pose.FromAxisAngle(pose.AxisZ, 0.2)},
	}))
	after, _ := acc.Orientation("pinky_01R_041")

	if before != after {
		t.Errorf("pinky changed without a reading: %v -> %v", before, after)
	}
}

func TestAdapter_IgnoresUnknownAndMismatched(t *testing.T) {
	a, acc := setup(t, pose.ModeDelta)
	before := acc.Snapshot()

	f := frame(map[string]sensor.Reading{
		"wrist": sensor.DeltaReading{Q: pose.FromAxisAngle(pose.AxisZ, 1)},
		"index": sensor.ScalarReading{Value: 800},
	})
	if ops := a.Plan(f); len(ops) != 0 {
		t.Errorf("Plan() = %v, want no ops", ops)
	}
	a.Apply(acc, f)

	if diff := cmp.Diff(before, acc.Snapshot()); diff != "" {
		t.Errorf("snapshot changed (-before +after):\n%s", diff)
	}
}

// wrappedReading reports scalar mode but is none of the known reading types.
type wrappedReading struct {
	sensor.ScalarReading
}

func TestAdapter_SkipsUnknownReadingType(t *testing.T) {
	a, _ := setup(t, pose.ModeScalar)

	ops := a.Plan(frame(map[string]sensor.Reading{
		"index": wrappedReading{sensor.ScalarReading{Value: 500}},
		"thumb": sensor.ScalarReading{Value: 500},
	}))
	if len(ops) != 1 || ops[0].Joint != "thumb_01R_08" {
		t.Errorf("Plan() = %v, want only the thumb op", ops)
	}
}

func TestAdapter_JointOncePerFrame(t *testing.T) {
	r, err := pose.NewRegistry(pose.Config{
		Channels: []pose.Channel{
			{Name: "a", Mode: pose.ModeDelta, Targets: []pose.Target{{Joint: "shared"}}},
			{Name: "b", Mode: pose.ModeDelta, Targets: []pose.Target{{Joint: "shared"}, {Joint: "own"}}},
		},
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	a := NewAdapter(r)

	ops := a.Plan(frame(map[string]sensor.Reading{
		"a": sensor.DeltaReading{Q: pose.Identity},
		"b": sensor.DeltaReading{Q: pose.Identity},
	}))

	count := make(map[string]int)
	for _, op := range ops {
		count[op.Joint]++
	}
	if count["shared"] != 1 || count["own"] != 1 {
		t.Errorf("joint counts = %v, want one op each", count)
	}
}
