package server

import (
	"fmt"
	"net/http"
	"time"
)

// DefaultStreamInterval is the MJPEG frame period (~15 FPS).
const DefaultStreamInterval = 66 * time.Millisecond

// Renderer produces JPEG images of a skeleton.
type Renderer interface {
	Render() ([]byte, error)
}

// StreamHandler serves MJPEG frames of the bound skeleton. ?view=review
// streams the trim preview instead of the live pose.
type StreamHandler struct {
	live     Renderer
	review   Renderer
	interval time.Duration
}

// NewStreamHandler creates a new StreamHandler. review may be nil.
func NewStreamHandler(live, review Renderer) *StreamHandler {
	return &StreamHandler{live: live, review: review, interval: DefaultStreamInterval}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	src := h.live
	if r.URL.Query().Get("view") == "review" {
		if h.review == nil {
			http.Error(w, "Review preview not available", http.StatusNotFound)
			return
		}
		src = h.review
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		jpg, err := src.Render()
		if err == nil {
			fmt.Fprintf(w, "--frame\r\n")
			fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
			fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(jpg))
			w.Write(jpg)
			fmt.Fprintf(w, "\r\n")

			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
