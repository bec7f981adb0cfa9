// Package config loads the studio configuration from a YAML file, a .env file
// and GLOVESTUDIO_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sawtak/glovestudio/internal/feed"
	"github.com/sawtak/glovestudio/internal/pose"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GLOVESTUDIO_"

// Config represents the main application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Feed    FeedConfig    `yaml:"feed"`
	Studio  StudioConfig  `yaml:"studio"`
	Rig     RigConfig     `yaml:"rig"`
	Hooks   HooksConfig   `yaml:"hooks"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig represents HTTP server settings.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"staticDir"`
}

// StorageConfig represents storage settings.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// FeedConfig selects and configures the glove feed.
type FeedConfig struct {
	Kind     string        `yaml:"kind"`
	URL      string        `yaml:"url"`
	Broker   string        `yaml:"broker"`
	Topic    string        `yaml:"topic"`
	ClientID string        `yaml:"clientId"`
	Port     string        `yaml:"port"`
	BaudRate uint          `yaml:"baudRate"`
	File     string        `yaml:"file"`
	Interval time.Duration `yaml:"interval"`
	Loop     bool          `yaml:"loop"`
	Retry    time.Duration `yaml:"retry"`
}

// StudioConfig represents capture loop settings.
type StudioConfig struct {
	RenderFPS   int    `yaml:"renderFps"`
	PlaybackFPS int    `yaml:"playbackFps"`
	QueueSize   int    `yaml:"queueSize"`
	Submission  string `yaml:"submission"`
	Owner       string `yaml:"owner"`
}

// RigConfig describes the hand model. An empty channel list selects the
// built-in right hand in Mode.
type RigConfig struct {
	Mode     pose.Mode              `yaml:"mode"`
	InputMax float64                `yaml:"inputMax"`
	MaxAngle float64                `yaml:"maxAngle"`
	Defaults map[string]Orientation `yaml:"defaults"`
	Channels []ChannelConfig        `yaml:"channels"`
}

// Orientation is a rest orientation as written in YAML.
type Orientation struct {
	W float64 `yaml:"w"`
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// ChannelConfig is one sensor channel of a custom rig.
type ChannelConfig struct {
	Name    string         `yaml:"name"`
	Mode    pose.Mode      `yaml:"mode"`
	Axis    pose.Axis      `yaml:"axis"`
	Targets []TargetConfig `yaml:"targets"`
}

// TargetConfig is one joint driven by a channel.
type TargetConfig struct {
	Joint string    `yaml:"joint"`
	Role  pose.Role `yaml:"role"`
	Scale float64   `yaml:"scale"`
}

// HooksConfig represents post-upload hook settings.
type HooksConfig struct {
	Dir     string        `yaml:"dir"`
	Timeout time.Duration `yaml:"timeout"`
}

// LogConfig represents logger settings.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when no file is given. Paths live
// under dataDir.
func Default(dataDir string) Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		Storage: StorageConfig{
			Path: filepath.Join(dataDir, "glovestudio.db"),
		},
		Feed: FeedConfig{
			Kind: string(feed.KindWebSocket),
			URL:  "ws://192.168.4.1:81",
		},
		Studio: StudioConfig{Submission: "Untitled submission", Owner: defaultOwner()},
		Rig:    RigConfig{Mode: pose.ModeScalar},
		Hooks:  HooksConfig{Dir: filepath.Join(dataDir, "hooks")},
		Log:    LogConfig{Level: "info"},
	}
}

// defaultOwner names the local user, who owns submissions uploaded from
// this studio.
func defaultOwner() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "studio"
}

// Load reads the YAML file at path over the defaults, then applies .env and
// environment overrides. An empty path skips the file.
func Load(path, dataDir string) (Config, error) {
	cfg := Default(dataDir)

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// A missing .env is not an error; variables already set win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides fields from GLOVESTUDIO_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s%s: %q", EnvPrefix, name, v))
				return
			}
			*dst = n
		}
	}

	str("ADDR", &c.Server.Addr)
	str("STATIC_DIR", &c.Server.StaticDir)
	str("DB", &c.Storage.Path)
	str("FEED", &c.Feed.Kind)
	str("FEED_URL", &c.Feed.URL)
	str("MQTT_BROKER", &c.Feed.Broker)
	str("MQTT_TOPIC", &c.Feed.Topic)
	str("SERIAL_PORT", &c.Feed.Port)
	str("REPLAY_FILE", &c.Feed.File)
	str("SUBMISSION", &c.Studio.Submission)
	str("OWNER", &c.Studio.Owner)
	str("HOOKS_DIR", &c.Hooks.Dir)
	str("LOG_LEVEL", &c.Log.Level)
	num("QUEUE_SIZE", &c.Studio.QueueSize)

	if v, ok := lookup(EnvPrefix + "RIG_MODE"); ok && v != "" {
		c.Rig.Mode = pose.Mode(strings.ToLower(v))
	}
	return errors.Join(errs...)
}

// Validate checks the values that cannot be defaulted.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Storage.Path == "" {
		return errors.New("storage.path is required")
	}
	if c.Studio.Owner == "" {
		return errors.New("studio.owner is required")
	}
	switch feed.Kind(c.Feed.Kind) {
	case "", feed.KindWebSocket, feed.KindMQTT, feed.KindSerial, feed.KindReplay:
	default:
		return fmt.Errorf("feed.kind: %w: %q", feed.ErrUnknownKind, c.Feed.Kind)
	}
	if c.Rig.Mode != "" && !c.Rig.Mode.Valid() {
		return fmt.Errorf("rig.mode: unknown mode %q", c.Rig.Mode)
	}
	return nil
}

// FeedConfig converts the feed section into a feed.Config.
func (c Config) FeedConfig() feed.Config {
	f := c.Feed
	return feed.Config{
		Kind:          feed.Kind(f.Kind),
		URL:           f.URL,
		Broker:        f.Broker,
		Topic:         f.Topic,
		ClientID:      f.ClientID,
		Port:          f.Port,
		BaudRate:      f.BaudRate,
		File:          f.File,
		Interval:      f.Interval,
		Loop:          f.Loop,
		RetryInterval: f.Retry,
	}
}

// PoseConfig converts the rig section into a registry configuration.
func (r RigConfig) PoseConfig() pose.Config {
	mode := r.Mode
	if mode == "" {
		mode = pose.ModeScalar
	}
	if len(r.Channels) == 0 {
		cfg := pose.HandConfig(mode)
		if r.InputMax > 0 {
			cfg.InputMax = r.InputMax
		}
		if r.MaxAngle != 0 {
			cfg.MaxAngle = r.MaxAngle
		}
		for joint, o := range r.Defaults {
			cfg.Defaults[joint] = pose.NewQuat(o.W, o.X, o.Y, o.Z)
		}
		return cfg
	}

	cfg := pose.Config{
		Defaults: make(map[string]pose.Quat, len(r.Defaults)),
		InputMax: r.InputMax,
		MaxAngle: r.MaxAngle,
	}
	for joint, o := range r.Defaults {
		cfg.Defaults[joint] = pose.NewQuat(o.W, o.X, o.Y, o.Z)
	}
	for _, ch := range r.Channels {
		pc := pose.Channel{Name: ch.Name, Mode: ch.Mode, Axis: ch.Axis}
		if pc.Mode == "" {
			pc.Mode = mode
		}
		for _, t := range ch.Targets {
			pc.Targets = append(pc.Targets, pose.Target{Joint: t.Joint, Role: t.Role, Scale: t.Scale})
		}
		cfg.Channels = append(cfg.Channels, pc)
	}
	return cfg
}
