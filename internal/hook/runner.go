package hook

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sawtak/glovestudio/internal/session"
)

// Runner fires hooks for upload events. Hooks run in the background;
// their failures are logged and never reported to the uploader.
type Runner struct {
	manager  *Manager
	executor *Executor
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// NewRunner creates a Runner over the hooks known to m.
func NewRunner(m *Manager, e *Executor, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{manager: m, executor: e, logger: logger}
}

// NewRequest builds the upload event request for u.
func NewRequest(u session.Upload) *Request {
	req := &Request{
		Event:      EventUpload,
		UploadID:   u.ID,
		Submission: u.Name,
		Language:   u.Language,
		Signs:      make([]SignSummary, 0, len(u.Signs)),
	}
	for _, s := range u.Signs {
		req.Signs = append(req.Signs, SignSummary{Label: s.Label, Frames: len(s.Frames)})
	}
	return req
}

// AfterUpload starts every hook subscribed to upload events. It does not
// wait for them; the hooks outlive ctx's cancellation but not its values.
func (r *Runner) AfterUpload(ctx context.Context, u session.Upload) {
	ctx = context.WithoutCancel(ctx)
	base := NewRequest(u)

	for _, h := range r.manager.List() {
		if !h.Manifest.Wants(EventUpload) {
			continue
		}

		req := *base
		req.Config = h.Manifest.Config

		r.wg.Add(1)
		go func(h *Hook) {
			defer r.wg.Done()
			r.run(ctx, h, &req)
		}(h)
	}
}

func (r *Runner) run(ctx context.Context, h *Hook, req *Request) {
	log := r.logger.With(zap.String("hook", h.Manifest.Name), zap.String("submission", req.Submission))

	resp, err := r.executor.Execute(ctx, h, req)
	if err != nil {
		log.Error("hook failed", zap.Error(err))
		return
	}
	if !resp.Success {
		log.Warn("hook reported failure", zap.String("error", resp.Error))
		return
	}
	log.Info("hook finished")
}

// Wait blocks until all started hooks have finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}
