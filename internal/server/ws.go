package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sawtak/glovestudio/internal/app"
	"github.com/sawtak/glovestudio/internal/pose"
	"github.com/sawtak/glovestudio/internal/session"
)

// DefaultPoseInterval is the pose broadcast period (~30 FPS).
const DefaultPoseInterval = 33 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

type jointPose struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type poseMessage struct {
	Joints    map[string]jointPose `json:"joints"`
	Preview   map[string]jointPose `json:"preview,omitempty"`
	State     string               `json:"state"`
	Frame     uint64               `json:"frame"`
	Connected bool                 `json:"connected"`
	Timestamp int64                `json:"timestamp"`
}

func toJointPoses(snapshot map[string]pose.Quat) map[string]jointPose {
	out := make(map[string]jointPose, len(snapshot))
	for j, q := range snapshot {
		out[j] = jointPose{W: q.Real, X: q.Imag, Y: q.Jmag, Z: q.Kmag}
	}
	return out
}

// PoseHandler broadcasts the live joint orientations via WebSocket.
type PoseHandler struct {
	studio   *app.App
	interval time.Duration
	logger   *zap.Logger
	clients  map[*websocket.Conn]bool
	mu       sync.RWMutex
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewPoseHandler creates a PoseHandler and starts its broadcast loop.
func NewPoseHandler(a *app.App, interval time.Duration, logger *zap.Logger) *PoseHandler {
	if interval <= 0 {
		interval = DefaultPoseInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &PoseHandler{
		studio:   a,
		interval: interval,
		logger:   logger,
		clients:  make(map[*websocket.Conn]bool),
		stopCh:   make(chan struct{}),
	}
	go h.broadcast()
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *PoseHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade error", zap.Error(err))
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Clients returns the number of connected clients.
func (h *PoseHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops the broadcast loop.
func (h *PoseHandler) Close() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}

// broadcast sends the pose to all connected clients.
func (h *PoseHandler) broadcast() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
		}

		if h.Clients() == 0 {
			continue
		}

		st := h.studio.Status()
		msg := poseMessage{
			Joints:    toJointPoses(h.studio.Snapshot()),
			State:     string(st.State),
			Frame:     st.FramesReceived,
			Connected: st.Connected,
			Timestamp: time.Now().UnixMilli(),
		}
		if st.State == session.StateReviewing {
			msg.Preview = toJointPoses(h.studio.PreviewSnapshot())
		}

		data, err := json.Marshal(msg)
		if err != nil {
			h.logger.Error("encode pose", zap.Error(err))
			continue
		}

		h.mu.RLock()
		for conn := range h.clients {
			conn.SetWriteDeadline(time.Now().Add(h.interval * 4))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("pose write failed", zap.Error(err))
			}
		}
		h.mu.RUnlock()
	}
}
