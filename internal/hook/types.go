// Package hook runs external programs after a submission is uploaded, such
// as a script that queues model training for the submission's language.
package hook

import "encoding/json"

// EventUpload is sent after a successful upload.
const EventUpload = "upload"

// ManifestFile is the manifest name looked up in each hook directory.
const ManifestFile = "hook.json"

// Manifest describes a hook and the events it wants.
type Manifest struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Executable  string          `json:"executable"`
	Events      []string        `json:"events"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Wants reports whether the hook subscribes to event. A manifest without
// events receives all of them.
func (m Manifest) Wants(event string) bool {
	if len(m.Events) == 0 {
		return true
	}
	for _, e := range m.Events {
		if e == event {
			return true
		}
	}
	return false
}

// SignSummary describes one uploaded sign.
type SignSummary struct {
	Label  string `json:"label"`
	Frames int    `json:"frames"`
}

// Request is written to the hook's stdin.
type Request struct {
	Event      string          `json:"event"`
	UploadID   string          `json:"upload_id"`
	Submission string          `json:"submission"`
	Language   string          `json:"language"`
	Signs      []SignSummary   `json:"signs"`
	Config     json.RawMessage `json:"config,omitempty"`
}

// Response is read from the hook's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Hook is a discovered hook with its manifest and location.
type Hook struct {
	Manifest   Manifest
	Path       string
	Executable string
}
