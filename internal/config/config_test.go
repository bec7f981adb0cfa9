package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/sawtak/glovestudio/internal/feed"
	"github.com/sawtak/glovestudio/internal/pose"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "glovestudio.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", "/data")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.Path != filepath.Join("/data", "glovestudio.db") {
		t.Errorf("Storage.Path = %q", cfg.Storage.Path)
	}
	if cfg.Feed.Kind != "websocket" || cfg.Rig.Mode != pose.ModeScalar {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.Studio.Owner == "" {
		t.Error("Studio.Owner has no default")
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
feed:
  kind: mqtt
  broker: tcp://broker:1883
  topic: glove/left
  retry: 5s
studio:
  queueSize: 64
rig:
  mode: delta
  channels:
    - name: wrist
      targets:
        - joint: hand_R
    - name: index
      mode: absolute
      targets:
        - joint: index_01R_017
        - joint: index_02R_018
          role: secondary
          scale: 0.25
  defaults:
    hand_R: {w: 0, x: 0, y: 1, z: 0}
log:
  level: debug
  development: true
`)

	cfg, err := Load(path, t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := feed.Config{
		Kind:          feed.KindMQTT,
		Broker:        "tcp://broker:1883",
		Topic:         "glove/left",
		URL:           "ws://192.168.4.1:81",
		RetryInterval: 5 * time.Second,
	}
	if diff := cmp.Diff(want, cfg.FeedConfig()); diff != "" {
		t.Errorf("FeedConfig() mismatch (-want +got):\n%s", diff)
	}
	if cfg.Server.Addr != ":9090" || cfg.Studio.QueueSize != 64 || !cfg.Log.Development {
		t.Errorf("cfg = %+v", cfg)
	}

	reg, err := pose.NewRegistry(cfg.Rig.PoseConfig())
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	if diff := cmp.Diff([]string{"hand_R", "index_01R_017", "index_02R_018"}, reg.Joints()); diff != "" {
		t.Errorf("Joints() mismatch (-want +got):\n%s", diff)
	}
	if mode, _ := reg.Mode("wrist"); mode != pose.ModeDelta {
		t.Errorf("wrist mode = %q, want rig default delta", mode)
	}
	if mode, _ := reg.Mode("index"); mode != pose.ModeAbsolute {
		t.Errorf("index mode = %q, want absolute", mode)
	}
	if got := reg.Mapping("index")[1]; got.Role != pose.RoleSecondary || got.Scale != 0.25 {
		t.Errorf("index secondary = %+v", got)
	}
	if got := reg.DefaultOrientation("hand_R"); !pose.Equal(got, pose.NewQuat(0, 0, 1, 0), 1e-12) {
		t.Errorf("hand_R rest = %v", got)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid yaml", "server: [unclosed"},
		{"unknown feed", "feed:\n  kind: bluetooth\n"},
		{"unknown mode", "rig:\n  mode: euler\n"},
		{"empty addr", "server:\n  addr: \"\"\n"},
		{"empty owner", "studio:\n  owner: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body), t.TempDir()); err == nil {
				t.Error("Load() error = nil, want error")
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), t.TempDir())
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("Load() error = %v, want not exist", err)
		}
	})
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"GLOVESTUDIO_ADDR":        "127.0.0.1:7000",
		"GLOVESTUDIO_FEED":        "serial",
		"GLOVESTUDIO_SERIAL_PORT": "/dev/ttyUSB0",
		"GLOVESTUDIO_RIG_MODE":    "DELTA",
		"GLOVESTUDIO_QUEUE_SIZE":  "32",
		"GLOVESTUDIO_DB":          "",
		"GLOVESTUDIO_OWNER":       "amira",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default("/data")
	if err := cfg.applyEnv(lookup); err != nil {
		t.Fatalf("applyEnv() error = %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:7000" || cfg.Feed.Kind != "serial" || cfg.Feed.Port != "/dev/ttyUSB0" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Rig.Mode != pose.ModeDelta || cfg.Studio.QueueSize != 32 {
		t.Errorf("rig/studio = %+v %+v", cfg.Rig, cfg.Studio)
	}
	if cfg.Storage.Path == "" {
		t.Error("empty variable cleared storage path")
	}
	if cfg.Studio.Owner != "amira" {
		t.Errorf("Studio.Owner = %q, want amira", cfg.Studio.Owner)
	}

	env["GLOVESTUDIO_QUEUE_SIZE"] = "lots"
	if err := cfg.applyEnv(lookup); err == nil {
		t.Error("applyEnv() with bad number error = nil")
	}
}

func TestRigConfig_PoseConfig_Builtin(t *testing.T) {
	rig := RigConfig{
		Mode:     pose.ModeDelta,
		InputMax: 4095,
		Defaults: map[string]Orientation{"thumb_01R_08": {W: 0, X: 1}},
	}
	cfg := rig.PoseConfig()

	if cfg.InputMax != 4095 || cfg.MaxAngle != pose.DefaultMaxAngle {
		t.Errorf("scalar mapping = %v, %v", cfg.InputMax, cfg.MaxAngle)
	}
	if len(cfg.Channels) != 5 {
		t.Fatalf("channels = %d, want the built-in hand", len(cfg.Channels))
	}
	for _, ch := range cfg.Channels {
		if ch.Mode != pose.ModeDelta {
			t.Errorf("channel %s mode = %q", ch.Name, ch.Mode)
		}
	}
	if got := cfg.Defaults["thumb_01R_08"]; got != pose.NewQuat(0, 1, 0, 0) {
		t.Errorf("thumb rest = %v", got)
	}
}
