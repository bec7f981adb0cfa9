package sensor

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sawtak/glovestudio/internal/pose"
)

func newRegistry(t *testing.T, modes map[string]pose.Mode) *pose.Registry {
	t.Helper()
	cfg := pose.Config{}
	for name, mode := range modes {
		cfg.Channels = append(cfg.Channels, pose.Channel{
			Name:    name,
			Mode:    mode,
			Targets: []pose.Target{{Joint: name + "_01"}},
		})
	}
	r, err := pose.NewRegistry(cfg)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return r
}

func TestDecoder_Decode(t *testing.T) {
	r := newRegistry(t, map[string]pose.Mode{
		"index":  pose.ModeScalar,
		"middle": pose.ModeScalar,
		"ring":   pose.ModeAbsolute,
		"thumb":  pose.ModeDelta,
	})
	d := NewDecoder(r, nil)

	msg := `{"fingers": {
		"index": {"pitch": 25.4, "roll": 3},
		"middle": 511,
		"ring": {"qw": 1, "qx": 0, "qy": 0, "qz": 0},
		"thumb": {"qw": 0.5, "qx": 0.5, "qy": 0.5, "qz": 0.5},
		"elbow": 12
	}}`

	f, err := d.Decode([]byte(msg))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	want := map[string]Reading{
		"index":  ScalarReading{Value: 25.4},
		"middle": ScalarReading{Value: 511},
		"ring":   AbsoluteReading{Q: pose.NewQuat(1, 0, 0, 0)},
		"thumb":  DeltaReading{Q: pose.NewQuat(0.5, 0.5, 0.5, 0.5)},
	}
	if diff := cmp.Diff(want, f.Readings); diff != "" {
		t.Errorf("readings mismatch (-want +got):\n%s", diff)
	}
	if f.ReceivedAt.IsZero() {
		t.Error("ReceivedAt should be set")
	}
}

func TestDecoder_Decode_Malformed(t *testing.T) {
	d := NewDecoder(newRegistry(t, map[string]pose.Mode{"index": pose.ModeScalar}), nil)

	for _, msg := range []string{
		`not json`,
		`[1, 2, 3]`,
		`{"hands": {}}`,
		`{"fingers": null}`,
		`{"fingers": [1]}`,
	} {
		t.Run(msg, func(t *testing.T) {
			_, err := d.Decode([]byte(msg))
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("Decode(%s) error = %v, want ErrMalformed", msg, err)
			}
		})
	}
}

func TestDecoder_ModeMismatchSkipsChannel(t *testing.T) {
	d := NewDecoder(newRegistry(t, map[string]pose.Mode{
		"index": pose.ModeDelta,
		"ring":  pose.ModeScalar,
		"thumb": pose.ModeAbsolute,
	}), nil)

	// index is a delta channel but sends a scalar; ring is scalar but sends a
	// quaternion; thumb omits qw.
	f, err := d.Decode([]byte(`{"fingers": {
		"index": {"pitch": 10},
		"ring": {"qw": 1, "qx": 0, "qy": 0, "qz": 0},
		"thumb": {"qx": 1, "qy": 0, "qz": 0}
	}}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(f.Readings) != 0 {
		t.Errorf("expected every mismatched channel to be skipped, got %v", f.Readings)
	}
}

func TestFrame_MarshalRoundTrip(t *testing.T) {
	d := NewDecoder(newRegistry(t, map[string]pose.Mode{
		"index": pose.ModeScalar,
		"ring":  pose.ModeAbsolute,
		"thumb": pose.ModeDelta,
	}), nil)

	f := NewFrame()
	f.Readings["index"] = ScalarReading{Value: 300}
	f.Readings["ring"] = AbsoluteReading{Q: pose.NewQuat(0, 1, 0, 0)}
	f.Readings["thumb"] = DeltaReading{Q: pose.NewQuat(0, 0, 0, 1)}

	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	got, err := d.DecodeChannels(data)
	if err != nil {
		t.Fatalf("DecodeChannels() error = %v", err)
	}
	if diff := cmp.Diff(f.Readings, got.Readings); diff != "" {
		t.Errorf("readings mismatch (-want +got):\n%s", diff)
	}
}
