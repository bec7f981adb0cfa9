// Package app wires the glove feed, pose engine and capture session into the
// running studio.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/sawtak/glovestudio/internal/calibration"
	"github.com/sawtak/glovestudio/internal/feed"
	"github.com/sawtak/glovestudio/internal/ingest"
	"github.com/sawtak/glovestudio/internal/pose"
	"github.com/sawtak/glovestudio/internal/sensor"
	"github.com/sawtak/glovestudio/internal/session"
	"github.com/sawtak/glovestudio/internal/skeleton"
)

// Loop timing defaults.
const (
	// RenderFPS is the rate the live skeleton is rebound.
	RenderFPS = 60
	// PlaybackFPS is the rate the trim preview advances.
	PlaybackFPS = 60
	// FrameQueueSize bounds frames waiting for the loop; further frames are dropped.
	FrameQueueSize = 256
)

// ErrNoUploader is returned by Upload when no uploader is configured.
var ErrNoUploader = errors.New("no uploader configured")

// UploadHook is notified after a submission has been uploaded.
type UploadHook interface {
	AfterUpload(ctx context.Context, u session.Upload)
}

// Config holds configuration options for the studio.
type Config struct {
	Registry    *pose.Registry
	Source      feed.Source
	Uploader    session.Uploader
	Hook        UploadHook
	Mesh        skeleton.Mesh
	PreviewMesh skeleton.Mesh
	Submission  string
	Owner       string
	RenderFPS   int
	PlaybackFPS int
	QueueSize   int
	Logger      *zap.Logger
}

// App is the capture studio. A single loop goroutine applies frames, renders
// and advances the trim preview.
type App struct {
	config   Config
	logger   *zap.Logger
	registry *pose.Registry
	decoder  *sensor.Decoder
	adapter  *ingest.Adapter
	binder   *skeleton.Binder
	live     *pose.Accumulator
	preview  *pose.Accumulator
	trigger  *calibration.Trigger
	recorder *session.Recorder
	mesh     skeleton.Mesh
	pmesh    skeleton.Mesh
	frames   chan sensor.Frame

	connected atomic.Bool
	received  atomic.Uint64
	dropped   atomic.Uint64
	lastFrame atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new App with the given configuration.
func New(config Config) (*App, error) {
	if config.Registry == nil {
		return nil, errors.New("app: registry is required")
	}
	if config.RenderFPS <= 0 {
		config.RenderFPS = RenderFPS
	}
	if config.PlaybackFPS <= 0 {
		config.PlaybackFPS = PlaybackFPS
	}
	if config.QueueSize <= 0 {
		config.QueueSize = FrameQueueSize
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sub := session.NewSubmission(config.Submission)
	sub.SetOwner(config.Owner)

	r := config.Registry
	a := &App{
		config:   config,
		logger:   logger,
		registry: r,
		decoder:  sensor.NewDecoder(r, logger),
		adapter:  ingest.NewAdapter(r),
		binder:   skeleton.NewBinder(),
		live:     pose.NewAccumulator(r),
		preview:  pose.NewAccumulator(r),
		trigger:  calibration.NewTrigger(),
		recorder: session.NewRecorder(sub),
		mesh:     config.Mesh,
		pmesh:    config.PreviewMesh,
		frames:   make(chan sensor.Frame, config.QueueSize),
	}
	if a.mesh == nil {
		a.mesh = skeleton.NewRig(r.Joints()...)
	}
	if a.pmesh == nil {
		a.pmesh = skeleton.NewRig(r.Joints()...)
	}
	return a, nil
}

// Start launches the studio loop and, if configured, the glove feed. It
// returns immediately; Close stops both.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.run(ctx)
	}()

	if src := a.config.Source; src != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := src.Run(ctx, a); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("glove feed stopped", zap.String("feed", src.Name()), zap.Error(err))
			}
		}()
	}

	a.logger.Info("studio started",
		zap.Int("joints", len(a.registry.Joints())),
		zap.Strings("channels", a.registry.Channels()),
	)
	return nil
}

// Close stops the loop and the feed. Queued frames are dropped.
func (a *App) Close() {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	a.wg.Wait()
	a.logger.Info("studio stopped",
		zap.String("frames", humanize.Comma(int64(a.received.Load()))),
		zap.Uint64("dropped", a.dropped.Load()),
	)
}

// HandleMessage decodes a raw glove message and queues it for the loop.
// Undecodable messages are logged and dropped.
func (a *App) HandleMessage(msg []byte) {
	f, err := a.decoder.Decode(msg)
	if err != nil {
		a.logger.Warn("dropping glove message", zap.Error(err), zap.Int("bytes", len(msg)))
		return
	}
	a.Enqueue(f)
}

// Enqueue queues a decoded frame for the loop without blocking.
func (a *App) Enqueue(f sensor.Frame) {
	select {
	case a.frames <- f:
	default:
		a.dropped.Add(1)
		a.logger.Debug("frame queue full, dropping frame")
	}
}

// SetConnected records the feed's connection state.
func (a *App) SetConnected(connected bool) {
	if a.connected.Swap(connected) != connected {
		a.logger.Info("glove connection changed", zap.Bool("connected", connected))
	}
}

// Connected reports whether the glove feed is connected.
func (a *App) Connected() bool {
	return a.connected.Load()
}

// Calibrate requests a reset of the live pose to the rest pose.
func (a *App) Calibrate() {
	a.trigger.Request()
	a.logger.Info("calibration requested")
}

// StartRecording begins recording a sign.
func (a *App) StartRecording(label string) error {
	if err := a.recorder.Start(label); err != nil {
		return err
	}
	if !a.Connected() {
		a.logger.Warn("recording started without a glove connection", zap.String("label", label))
	} else {
		a.logger.Info("recording started", zap.String("label", label))
	}
	return nil
}

// StopRecording ends the recording and enters review.
func (a *App) StopRecording() error {
	if err := a.recorder.Stop(); err != nil {
		return err
	}
	st := a.recorder.Status()
	a.logger.Info("recording stopped", zap.String("label", st.Label), zap.Int("frames", st.Frames))
	return nil
}

// SetTrim sets the percentage range kept on save.
func (a *App) SetTrim(start, end float64) error {
	return a.recorder.SetTrim(start, end)
}

// SaveSign stores the trimmed recording in the submission.
func (a *App) SaveSign() (session.Sign, error) {
	sign, err := a.recorder.Save()
	if err != nil {
		return session.Sign{}, err
	}
	a.logger.Info("sign saved",
		zap.String("label", sign.Label),
		zap.Int("frames", len(sign.Frames)),
		zap.Int("pending", a.recorder.Submission().Len()),
	)
	return sign, nil
}

// DiscardSign drops the current recording.
func (a *App) DiscardSign() error {
	if err := a.recorder.Discard(); err != nil {
		return err
	}
	a.logger.Info("recording discarded")
	return nil
}

// Signs returns the signs waiting to be uploaded.
func (a *App) Signs() []session.Sign {
	return a.recorder.Submission().Signs()
}

// Upload names the submission and uploads its pending signs. On failure the
// signs stay pending.
func (a *App) Upload(ctx context.Context, name, language string) (session.Upload, error) {
	if a.config.Uploader == nil {
		return session.Upload{}, ErrNoUploader
	}

	sub := a.recorder.Submission()
	sub.Rename(name, language)

	up, err := sub.Upload(ctx, a.config.Uploader)
	if err != nil {
		a.logger.Error("upload failed", zap.String("submission", name), zap.Error(err))
		return session.Upload{}, err
	}

	frames := 0
	for _, s := range up.Signs {
		frames += len(s.Frames)
	}
	a.logger.Info("submission uploaded",
		zap.String("submission", up.Name),
		zap.String("language", up.Language),
		zap.String("signs", humanize.Comma(int64(len(up.Signs)))),
		zap.String("frames", humanize.Comma(int64(frames))),
	)

	if a.config.Hook != nil {
		a.config.Hook.AfterUpload(ctx, up)
	}
	return up, nil
}

// Snapshot returns the live joint orientations.
func (a *App) Snapshot() map[string]pose.Quat {
	return a.live.Snapshot()
}

// PreviewSnapshot returns the joint orientations of the trim preview.
func (a *App) PreviewSnapshot() map[string]pose.Quat {
	return a.preview.Snapshot()
}

// Registry returns the studio's joint registry.
func (a *App) Registry() *pose.Registry {
	return a.registry
}

// Mesh returns the live mesh.
func (a *App) Mesh() skeleton.Mesh {
	return a.mesh
}

// PreviewMesh returns the mesh driven by the trim preview.
func (a *App) PreviewMesh() skeleton.Mesh {
	return a.pmesh
}

// Status is a point-in-time view of the studio.
type Status struct {
	session.Status
	Connected      bool
	Feed           string
	Submission     string
	Language       string
	PendingSigns   int
	RetryPending   bool
	FramesReceived uint64
	FramesDropped  uint64
	LastFrameAt    time.Time
}

// Status returns the studio's current state.
func (a *App) Status() Status {
	sub := a.recorder.Submission()
	st := Status{
		Status:         a.recorder.Status(),
		Connected:      a.Connected(),
		Submission:     sub.Name(),
		Language:       sub.Language(),
		PendingSigns:   sub.Len(),
		RetryPending:   sub.Retrying(),
		FramesReceived: a.received.Load(),
		FramesDropped:  a.dropped.Load(),
	}
	if src := a.config.Source; src != nil {
		st.Feed = src.Name()
	}
	if ns := a.lastFrame.Load(); ns != 0 {
		st.LastFrameAt = time.Unix(0, ns)
	}
	return st
}

// Describe returns a one-line human summary of the studio state.
func (a *App) Describe() string {
	st := a.Status()
	conn := "glove disconnected"
	if st.Connected {
		conn = "glove connected"
		if !st.LastFrameAt.IsZero() {
			conn += ", last frame " + humanize.Time(st.LastFrameAt)
		}
	}
	return fmt.Sprintf("%s · %s · %d pending", conn, st.State, st.PendingSigns)
}
