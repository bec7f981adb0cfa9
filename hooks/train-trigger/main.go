// Package main is an upload hook that asks a training service to retrain the
// model for the uploaded submission's language.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// Request is the event sent by the studio on stdin.
type Request struct {
	Event      string `json:"event"`
	UploadID   string `json:"upload_id"`
	Submission string `json:"submission"`
	Language   string `json:"language"`
	Signs      []struct {
		Label  string `json:"label"`
		Frames int    `json:"frames"`
	} `json:"signs"`
	Config json.RawMessage `json:"config"`
}

// Response is written to stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type config struct {
	URL      string `json:"url"`
	MinSigns int    `json:"min_signs"`
}

type trainRequest struct {
	Language   string   `json:"language"`
	Submission string   `json:"submission"`
	UploadID   string   `json:"upload_id"`
	Labels     []string `json:"labels"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	if req.Event != "upload" {
		writeSuccessResponse(nil)
		return
	}

	var cfg config
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeErrorResponse(fmt.Sprintf("invalid config: %v", err))
			return
		}
	}
	if u := os.Getenv("TRAIN_URL"); u != "" {
		cfg.URL = u
	}
	if cfg.URL == "" {
		writeErrorResponse("no training url configured")
		return
	}
	if len(req.Signs) < cfg.MinSigns {
		writeSuccessResponse(json.RawMessage(`{"skipped":true}`))
		return
	}

	status, err := trigger(cfg.URL, req)
	if err != nil {
		writeErrorResponse(err.Error())
		return
	}
	writeSuccessResponse(json.RawMessage(fmt.Sprintf(`{"status":%d}`, status)))
}

// trigger posts the training request and returns the HTTP status.
func trigger(url string, req Request) (int, error) {
	body := trainRequest{
		Language:   req.Language,
		Submission: req.Submission,
		UploadID:   req.UploadID,
	}
	for _, s := range req.Signs {
		body.Labels = append(body.Labels, s.Label)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("training request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("training service returned %s", resp.Status)
	}
	return resp.StatusCode, nil
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse(data json.RawMessage) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true, Data: data})
}
