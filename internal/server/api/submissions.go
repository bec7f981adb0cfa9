package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sawtak/glovestudio/internal/store"
)

// MaxImportSize bounds an imported submission file.
const MaxImportSize = 64 << 20

// SubmissionHandler handles HTTP requests for uploaded submissions.
type SubmissionHandler struct {
	store *store.Store
	owner string
}

// NewSubmissionHandler creates a new SubmissionHandler with the given store.
// owner is the local user; merges are limited to their submissions.
func NewSubmissionHandler(s *store.Store, owner string) *SubmissionHandler {
	return &SubmissionHandler{store: s, owner: owner}
}

// ServeHTTP implements the http.Handler interface.
// Expected paths: /api/submissions, /api/submissions/merge,
// /api/submissions/import, /api/submissions/{id},
// /api/submissions/{id}/download
func (h *SubmissionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/submissions")
	path = strings.Trim(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	if path == "merge" || path == "import" {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if path == "merge" {
			h.merge(w, r)
		} else {
			h.importFile(w, r)
		}
		return
	}

	parts := strings.Split(path, "/")
	id := parts[0]

	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, id)
		case http.MethodDelete:
			h.delete(w, r, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case len(parts) == 2 && parts[1] == "download":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.download(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

// Response types

type submissionResponse struct {
	ID        string `json:"id"`
	UploadID  string `json:"upload_id"`
	Name      string `json:"name"`
	Language  string `json:"language"`
	Owner     string `json:"owner"`
	Owned     bool   `json:"owned"`
	Signs     int    `json:"signs"`
	Frames    int    `json:"frames"`
	CreatedAt string `json:"created_at"`
}

type mergeRequest struct {
	IDs  []string `json:"ids"`
	Name string   `json:"name"`
}

type listSubmissionsResponse struct {
	Submissions []submissionResponse `json:"submissions"`
	Languages   []string             `json:"languages"`
}

type storedSignResponse struct {
	ID        string  `json:"id"`
	Label     string  `json:"label"`
	Frames    int     `json:"frames"`
	TrimStart float64 `json:"trim_start"`
	TrimEnd   float64 `json:"trim_end"`
	SavedAt   string  `json:"saved_at"`
}

type submissionDetailResponse struct {
	submissionResponse
	Recordings []storedSignResponse `json:"recordings"`
}

func (h *SubmissionHandler) toSubmissionResponse(s *store.Submission) submissionResponse {
	return submissionResponse{
		ID:        s.ID,
		UploadID:  s.UploadID,
		Name:      s.Name,
		Language:  s.Language,
		Owner:     s.Owner,
		Owned:     s.Owner == h.owner,
		Signs:     s.Signs,
		Frames:    s.Frames,
		CreatedAt: formatTime(s.CreatedAt),
	}
}

// list handles GET /api/submissions, optionally filtered by ?language=.
func (h *SubmissionHandler) list(w http.ResponseWriter, r *http.Request) {
	subs, err := h.store.Submissions().List(r.URL.Query().Get("language"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list submissions")
		return
	}
	langs, err := h.store.Submissions().Languages()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list languages")
		return
	}

	response := listSubmissionsResponse{
		Submissions: make([]submissionResponse, 0, len(subs)),
		Languages:   langs,
	}
	if response.Languages == nil {
		response.Languages = []string{}
	}
	for _, s := range subs {
		response.Submissions = append(response.Submissions, h.toSubmissionResponse(s))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/submissions/{id}.
func (h *SubmissionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	sub, err := h.store.Submissions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Submission not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get submission")
		return
	}

	signs, err := h.store.Signs().GetBySubmissionID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get signs")
		return
	}

	response := submissionDetailResponse{
		submissionResponse: h.toSubmissionResponse(sub),
		Recordings:         make([]storedSignResponse, 0, len(signs)),
	}
	for _, s := range signs {
		response.Recordings = append(response.Recordings, storedSignResponse{
			ID:        s.ID,
			Label:     s.Label,
			Frames:    s.Frames,
			TrimStart: s.TrimStart,
			TrimEnd:   s.TrimEnd,
			SavedAt:   formatTime(s.SavedAt),
		})
	}

	writeJSON(w, http.StatusOK, response)
}

// delete handles DELETE /api/submissions/{id}.
func (h *SubmissionHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Submissions().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Submission not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete submission")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// download handles GET /api/submissions/{id}/download and returns every
// sign and frame as a JSON attachment.
func (h *SubmissionHandler) download(w http.ResponseWriter, r *http.Request, id string) {
	exp, err := h.store.Export(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Submission not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to export submission")
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename(exp.Name)+".json"))
	writeJSON(w, http.StatusOK, exp)
}

// merge handles POST /api/submissions/merge.
func (h *SubmissionHandler) merge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}

	sub, err := h.store.Merge(r.Context(), h.owner, name, req.IDs)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrMergeSources), errors.Is(err, store.ErrMixedLanguages):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, store.ErrNotOwner):
		writeError(w, http.StatusForbidden, "You can only merge submissions that belong to you")
		return
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Submission not found")
		return
	default:
		writeError(w, http.StatusInternalServerError, "Failed to merge submissions")
		return
	}

	writeJSON(w, http.StatusCreated, h.toSubmissionResponse(sub))
}

// importFile handles POST /api/submissions/import. The body is a multipart
// form with the exported JSON in "file" and optional "name" and "language"
// fields overriding the file's.
func (h *SubmissionHandler) importFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxImportSize)
	if err := r.ParseMultipartForm(MaxImportSize); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid form")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "A JSON file is required")
		return
	}
	defer file.Close()

	var exp store.Export
	if err := json.NewDecoder(file).Decode(&exp); err != nil {
		writeError(w, http.StatusBadRequest, "File is not valid JSON")
		return
	}
	if name := strings.TrimSpace(r.FormValue("name")); name != "" {
		exp.Name = name
	}
	if lang := strings.TrimSpace(r.FormValue("language")); lang != "" {
		exp.Language = lang
	}
	if exp.Name == "" {
		writeError(w, http.StatusBadRequest, "Submission name required")
		return
	}

	sub, err := h.store.Import(r.Context(), h.owner, &exp)
	if err != nil {
		if errors.Is(err, store.ErrInvalidExport) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to import submission")
		return
	}

	writeJSON(w, http.StatusCreated, h.toSubmissionResponse(sub))
}

// filename reduces a submission name to a safe file name.
func filename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '_'
		default:
			return -1
		}
	}, name)
	if name == "" {
		return "submission"
	}
	return name
}
