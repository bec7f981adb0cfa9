package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sawtak/glovestudio/internal/app"
	"github.com/sawtak/glovestudio/internal/session"
)

// CaptureFPS is the glove's nominal frame rate, used to estimate durations.
const CaptureFPS = 60

// StudioHandler handles HTTP requests that drive the capture studio.
type StudioHandler struct {
	studio *app.App
}

// NewStudioHandler creates a new StudioHandler for the given studio.
func NewStudioHandler(a *app.App) *StudioHandler {
	return &StudioHandler{studio: a}
}

// ServeHTTP routes /api/studio and its sub-resources.
func (h *StudioHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/studio")
	path = strings.Trim(path, "/")

	type route struct {
		method string
		handle func(http.ResponseWriter, *http.Request)
	}
	routes := map[string]route{
		"":               {http.MethodGet, h.status},
		"recording":      {http.MethodPost, h.startRecording},
		"recording/stop": {http.MethodPost, h.stopRecording},
		"trim":           {http.MethodPut, h.setTrim},
		"save":           {http.MethodPost, h.save},
		"discard":        {http.MethodPost, h.discard},
		"calibrate":      {http.MethodPost, h.calibrate},
		"signs":          {http.MethodGet, h.signs},
		"upload":         {http.MethodPost, h.upload},
	}

	rt, ok := routes[path]
	if !ok {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	if r.Method != rt.method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rt.handle(w, r)
}

// Request and response types

type startRecordingRequest struct {
	Label string `json:"label"`
}

type trimRequest struct {
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
}

type uploadRequest struct {
	Name     string `json:"name"`
	Language string `json:"language"`
}

type statusResponse struct {
	State           string  `json:"state"`
	Label           string  `json:"label"`
	Frames          int     `json:"frames"`
	DurationSeconds float64 `json:"duration_seconds"`
	TrimStart       float64 `json:"trim_start"`
	TrimEnd         float64 `json:"trim_end"`
	SelectedFrames  int     `json:"selected_frames"`
	Connected       bool    `json:"connected"`
	Feed            string  `json:"feed"`
	Submission      string  `json:"submission"`
	Language        string  `json:"language"`
	PendingSigns    int     `json:"pending_signs"`
	RetryPending    bool    `json:"retry_pending"`
	FramesReceived  uint64  `json:"frames_received"`
	LastFrameAt     string  `json:"last_frame_at,omitempty"`
}

type signResponse struct {
	ID        string  `json:"id"`
	Label     string  `json:"label"`
	Frames    int     `json:"frames"`
	TrimStart float64 `json:"trim_start"`
	TrimEnd   float64 `json:"trim_end"`
	SavedAt   string  `json:"saved_at"`
}

type listSignsResponse struct {
	Signs []signResponse `json:"signs"`
}

type uploadResponse struct {
	UploadID string `json:"upload_id"`
	Name     string `json:"name"`
	Language string `json:"language"`
	Signs    int    `json:"signs"`
}

func toStatusResponse(st app.Status) statusResponse {
	return statusResponse{
		State:           string(st.State),
		Label:           st.Label,
		Frames:          st.Frames,
		DurationSeconds: float64(st.Frames) / CaptureFPS,
		TrimStart:       st.TrimStart,
		TrimEnd:         st.TrimEnd,
		SelectedFrames:  st.SelectedFrames,
		Connected:       st.Connected,
		Feed:            st.Feed,
		Submission:      st.Submission,
		Language:        st.Language,
		PendingSigns:    st.PendingSigns,
		RetryPending:    st.RetryPending,
		FramesReceived:  st.FramesReceived,
		LastFrameAt:     formatTime(st.LastFrameAt),
	}
}

func toSignResponse(s session.Sign) signResponse {
	return signResponse{
		ID:        s.ID,
		Label:     s.Label,
		Frames:    len(s.Frames),
		TrimStart: s.TrimStart,
		TrimEnd:   s.TrimEnd,
		SavedAt:   formatTime(s.SavedAt),
	}
}

// writeSessionError maps session errors onto HTTP statuses.
func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrEmptyLabel),
		errors.Is(err, session.ErrInvalidTrim),
		errors.Is(err, session.ErrEmptyName),
		errors.Is(err, session.ErrNothingToUpload):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrInvalidState),
		errors.Is(err, session.ErrUploadInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrEmptySelection):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// status handles GET /api/studio.
func (h *StudioHandler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toStatusResponse(h.studio.Status()))
}

// startRecording handles POST /api/studio/recording.
func (h *StudioHandler) startRecording(w http.ResponseWriter, r *http.Request) {
	var req startRecordingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := h.studio.StartRecording(strings.TrimSpace(req.Label)); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStatusResponse(h.studio.Status()))
}

// stopRecording handles POST /api/studio/recording/stop.
func (h *StudioHandler) stopRecording(w http.ResponseWriter, r *http.Request) {
	if err := h.studio.StopRecording(); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusResponse(h.studio.Status()))
}

// setTrim handles PUT /api/studio/trim.
func (h *StudioHandler) setTrim(w http.ResponseWriter, r *http.Request) {
	var req trimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Start == nil || req.End == nil {
		writeError(w, http.StatusBadRequest, "Start and end are required")
		return
	}
	if err := h.studio.SetTrim(*req.Start, *req.End); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusResponse(h.studio.Status()))
}

// save handles POST /api/studio/save.
func (h *StudioHandler) save(w http.ResponseWriter, r *http.Request) {
	sign, err := h.studio.SaveSign()
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSignResponse(sign))
}

// discard handles POST /api/studio/discard.
func (h *StudioHandler) discard(w http.ResponseWriter, r *http.Request) {
	if err := h.studio.DiscardSign(); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusResponse(h.studio.Status()))
}

// calibrate handles POST /api/studio/calibrate.
func (h *StudioHandler) calibrate(w http.ResponseWriter, r *http.Request) {
	h.studio.Calibrate()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "calibration requested"})
}

// signs handles GET /api/studio/signs and lists signs waiting for upload.
func (h *StudioHandler) signs(w http.ResponseWriter, r *http.Request) {
	signs := h.studio.Signs()
	response := listSignsResponse{Signs: make([]signResponse, 0, len(signs))}
	for _, s := range signs {
		response.Signs = append(response.Signs, toSignResponse(s))
	}
	writeJSON(w, http.StatusOK, response)
}

// upload handles POST /api/studio/upload.
func (h *StudioHandler) upload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	up, err := h.studio.Upload(r.Context(), strings.TrimSpace(req.Name), strings.TrimSpace(req.Language))
	switch {
	case err == nil:
	case errors.Is(err, session.ErrEmptyName),
		errors.Is(err, session.ErrNothingToUpload),
		errors.Is(err, session.ErrUploadInProgress):
		writeSessionError(w, err)
		return
	case errors.Is(err, app.ErrNoUploader):
		writeError(w, http.StatusServiceUnavailable, "Uploads are not configured")
		return
	default:
		writeError(w, http.StatusBadGateway, "Upload failed, signs kept for retry: "+err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		UploadID: up.ID,
		Name:     up.Name,
		Language: up.Language,
		Signs:    len(up.Signs),
	})
}
