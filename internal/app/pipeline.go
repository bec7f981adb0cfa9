package app

import (
	"context"
	"time"

	"github.com/sawtak/glovestudio/internal/sensor"
	"github.com/sawtak/glovestudio/internal/session"
)

// run is the studio loop. Frames, render ticks and preview ticks are
// serialized here so the pose engine has a single writer.
//
// Loop logic:
// 1. On a frame: consume calibration, buffer it if recording, apply it live
// 2. On a render tick: consume calibration, bind live and preview poses
// 3. On a preview tick: advance the trim preview, resetting it on loop
func (a *App) run(ctx context.Context) {
	render := time.NewTicker(time.Second / time.Duration(a.config.RenderFPS))
	defer render.Stop()

	playback := time.NewTicker(time.Second / time.Duration(a.config.PlaybackFPS))
	defer playback.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case f := <-a.frames:
			a.processFrame(f)
		case <-render.C:
			a.render()
		case <-playback.C:
			a.advancePreview()
		}
	}
}

func (a *App) processFrame(f sensor.Frame) {
	if a.trigger.Consume() {
		a.live.Reset()
		a.logger.Info("pose calibrated")
	}

	a.recorder.Record(f)
	a.adapter.Apply(a.live, f)

	a.received.Add(1)
	if !f.ReceivedAt.IsZero() {
		a.lastFrame.Store(f.ReceivedAt.UnixNano())
	} else {
		a.lastFrame.Store(time.Now().UnixNano())
	}
}

func (a *App) render() {
	if a.trigger.Consume() {
		a.live.Reset()
		a.logger.Info("pose calibrated")
	}

	a.binder.Bind(a.mesh, a.live.Snapshot())
	if a.recorder.State() == session.StateReviewing {
		a.binder.Bind(a.pmesh, a.preview.Snapshot())
	}
}

func (a *App) advancePreview() {
	f, restart, ok := a.recorder.NextPreview()
	if !ok {
		return
	}
	if restart {
		a.preview.Reset()
	}
	a.adapter.Apply(a.preview, f)
}
