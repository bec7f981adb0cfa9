// Package session implements the record, trim, save and upload workflow for
// glove signs.
package session

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sawtak/glovestudio/internal/sensor"
)

var (
	// ErrEmptyLabel is returned when a recording is started without a label.
	ErrEmptyLabel = errors.New("label is required")
	// ErrInvalidState is returned when an operation is not allowed in the current state.
	ErrInvalidState = errors.New("operation not allowed in current state")
	// ErrInvalidTrim is returned for trim bounds outside 0..100 or with start after end.
	ErrInvalidTrim = errors.New("trim range must satisfy 0 <= start <= end <= 100")
	// ErrEmptySelection is returned when saving a trim range that selects no frames.
	ErrEmptySelection = errors.New("at least one frame must be selected")
)

// State is the recorder's position in the capture workflow.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateReviewing State = "reviewing"
)

// Sign is a saved, trimmed recording.
type Sign struct {
	ID        string
	Label     string
	Frames    []sensor.Frame
	TrimStart float64
	TrimEnd   float64
	SavedAt   time.Time
}

// TrimBounds converts percentage bounds into the half-open index range
// [start, end) of a sequence of n frames.
func TrimBounds(n int, startPct, endPct float64) (int, int) {
	start := int(math.Floor(startPct / 100 * float64(n)))
	end := int(math.Floor(endPct / 100 * float64(n)))
	start = max(0, min(start, n))
	end = max(start, min(end, n))
	return start, end
}

// Recorder is the capture state machine. It is the single source of truth
// for whether incoming frames are buffered. All methods are safe for
// concurrent use.
type Recorder struct {
	mu         sync.Mutex
	state      State
	label      string
	buffer     []sensor.Frame
	trimStart  float64
	trimEnd    float64
	cursor     int
	submission *Submission
}

// NewRecorder creates an idle Recorder that saves signs into sub.
func NewRecorder(sub *Submission) *Recorder {
	if sub == nil {
		sub = NewSubmission("")
	}
	return &Recorder{
		state:      StateIdle,
		trimEnd:    100,
		submission: sub,
	}
}

// Submission returns the submission signs are saved into.
func (r *Recorder) Submission() *Submission {
	return r.submission
}

// Start begins buffering frames under label.
func (r *Recorder) Start(label string) error {
	if label == "" {
		return ErrEmptyLabel
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateIdle {
		return ErrInvalidState
	}
	r.state = StateRecording
	r.label = label
	r.buffer = nil
	r.trimStart, r.trimEnd = 0, 100
	r.cursor = 0
	return nil
}

// Record appends f to the buffer if a recording is in progress and reports
// whether it did.
func (r *Recorder) Record(f sensor.Frame) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRecording {
		return false
	}
	r.buffer = append(r.buffer, f)
	return true
}

// Stop ends the recording and enters review with the full range selected.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRecording {
		return ErrInvalidState
	}
	r.state = StateReviewing
	r.trimStart, r.trimEnd = 0, 100
	r.cursor = 0
	return nil
}

// SetTrim selects the percentage range to keep.
func (r *Recorder) SetTrim(start, end float64) error {
	if math.IsNaN(start) || math.IsNaN(end) || start < 0 || end > 100 || start > end {
		return ErrInvalidTrim
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateReviewing {
		return ErrInvalidState
	}
	r.trimStart, r.trimEnd = start, end
	r.cursor = 0
	return nil
}

// Selection returns the frames inside the current trim range.
func (r *Recorder) Selection() []sensor.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selection()
}

func (r *Recorder) selection() []sensor.Frame {
	start, end := TrimBounds(len(r.buffer), r.trimStart, r.trimEnd)
	out := make([]sensor.Frame, end-start)
	copy(out, r.buffer[start:end])
	return out
}

// NextPreview returns the next frame of the looping trim preview. restart is
// true when the returned frame is the first of the selection, so callers can
// reset accumulated preview state. ok is false when not reviewing or when
// the selection is empty.
func (r *Recorder) NextPreview() (f sensor.Frame, restart bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateReviewing {
		return sensor.Frame{}, false, false
	}
	start, end := TrimBounds(len(r.buffer), r.trimStart, r.trimEnd)
	if start == end {
		return sensor.Frame{}, false, false
	}
	if r.cursor < start || r.cursor >= end {
		r.cursor = start
	}
	f = r.buffer[r.cursor]
	restart = r.cursor == start
	r.cursor++
	return f, restart, true
}

// Save stores the selected frames as a sign in the submission and returns
// the recorder to idle.
func (r *Recorder) Save() (Sign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateReviewing {
		return Sign{}, ErrInvalidState
	}
	frames := r.selection()
	if len(frames) == 0 {
		return Sign{}, ErrEmptySelection
	}

	sign := Sign{
		ID:        uuid.New().String(),
		Label:     r.label,
		Frames:    frames,
		TrimStart: r.trimStart,
		TrimEnd:   r.trimEnd,
		SavedAt:   time.Now(),
	}
	r.submission.Add(sign)
	r.clear()
	return sign, nil
}

// Discard drops the buffered recording and returns the recorder to idle.
func (r *Recorder) Discard() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateIdle {
		return ErrInvalidState
	}
	r.clear()
	return nil
}

func (r *Recorder) clear() {
	r.state = StateIdle
	r.label = ""
	r.buffer = nil
	r.trimStart, r.trimEnd = 0, 100
	r.cursor = 0
}

// Status is a point-in-time view of the recorder.
type Status struct {
	State          State
	Label          string
	Frames         int
	TrimStart      float64
	TrimEnd        float64
	SelectedFrames int
}

// Status returns the recorder's current state.
func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	start, end := TrimBounds(len(r.buffer), r.trimStart, r.trimEnd)
	return Status{
		State:          r.state,
		Label:          r.label,
		Frames:         len(r.buffer),
		TrimStart:      r.trimStart,
		TrimEnd:        r.trimEnd,
		SelectedFrames: end - start,
	}
}

// State returns the current state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}
