package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrEmptyName is returned when uploading a submission without a name.
	ErrEmptyName = errors.New("submission name is required")
	// ErrNothingToUpload is returned when uploading a submission with no signs.
	ErrNothingToUpload = errors.New("submission has no signs")
	// ErrUploadInProgress is returned when an upload is already running.
	ErrUploadInProgress = errors.New("upload already in progress")
)

// Upload is the unit handed to an Uploader. A failed upload is resent
// unchanged, same ID and same signs, so uploaders can deduplicate.
type Upload struct {
	ID       string
	Name     string
	Language string
	Owner    string
	Signs    []Sign
}

// Uploader persists a submission.
type Uploader interface {
	Upload(ctx context.Context, u Upload) error
}

// Submission is the named, ordered list of signs waiting to be uploaded.
type Submission struct {
	mu        sync.Mutex
	name      string
	language  string
	owner     string
	signs     []Sign
	uploading bool
	// failed is the batch of the last failed upload. It may have reached
	// the uploader, so it is retried as is before anything else.
	failed *Upload
}

// NewSubmission creates an empty submission.
func NewSubmission(name string) *Submission {
	return &Submission{name: name}
}

// SetOwner sets the owner recorded with every upload.
func (s *Submission) SetOwner(owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owner = owner
}

// Name returns the submission name.
func (s *Submission) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// Language returns the sign language of the submission.
func (s *Submission) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

// Rename sets the submission's name and language.
func (s *Submission) Rename(name, language string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
	s.language = language
}

// Add appends a sign. A sign without an ID is given one.
func (s *Submission) Add(sign Sign) {
	if sign.ID == "" {
		sign.ID = uuid.New().String()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signs = append(s.signs, sign)
}

// Signs returns a copy of the pending signs.
func (s *Submission) Signs() []Sign {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Sign, len(s.signs))
	copy(out, s.signs)
	return out
}

// Len returns the number of pending signs.
func (s *Submission) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.signs)
}

// Retrying reports whether the next Upload resends a failed batch.
func (s *Submission) Retrying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed != nil
}

// Upload sends the pending signs to u as one unit and removes them on
// success. On failure the batch is kept and the next call resends exactly
// that batch; signs saved or a rename made in between go into the following
// upload. Only one upload runs at a time.
func (s *Submission) Upload(ctx context.Context, u Uploader) (Upload, error) {
	up, err := s.begin()
	if err != nil {
		return Upload{}, err
	}

	err = u.Upload(ctx, up)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploading = false
	if err != nil {
		s.failed = &up
		return Upload{}, fmt.Errorf("upload submission %q: %w", up.Name, err)
	}
	s.failed = nil

	sent := make(map[string]bool, len(up.Signs))
	for _, sign := range up.Signs {
		sent[sign.ID] = true
	}
	kept := make([]Sign, 0, len(s.signs))
	for _, sign := range s.signs {
		if !sent[sign.ID] {
			kept = append(kept, sign)
		}
	}
	s.signs = kept
	return up, nil
}

// begin marks an upload as running and returns the batch to send.
func (s *Submission) begin() (Upload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.uploading {
		return Upload{}, ErrUploadInProgress
	}
	if s.name == "" {
		return Upload{}, ErrEmptyName
	}

	var up Upload
	if s.failed != nil {
		up = *s.failed
	} else {
		if len(s.signs) == 0 {
			return Upload{}, ErrNothingToUpload
		}
		up = Upload{
			ID:       uuid.New().String(),
			Name:     s.name,
			Language: s.language,
			Owner:    s.owner,
			Signs:    make([]Sign, len(s.signs)),
		}
		copy(up.Signs, s.signs)
	}
	s.uploading = true
	return up, nil
}
