package store

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Sign is a stored, labelled recording.
type Sign struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submission_id"`
	Position     int       `json:"position"`
	Label        string    `json:"label"`
	TrimStart    float64   `json:"trim_start"`
	TrimEnd      float64   `json:"trim_end"`
	Frames       int       `json:"frames"`
	SavedAt      time.Time `json:"saved_at"`
}

// Frame is one stored glove message of a sign.
type Frame struct {
	Sequence   int             `json:"sequence"`
	ReceivedAt time.Time       `json:"received_at"`
	Data       json.RawMessage `json:"data"`
}

// SignRepository provides read access to stored signs.
type SignRepository struct {
	db *sql.DB
}

// Signs returns the sign repository for this store.
func (s *Store) Signs() *SignRepository {
	return &SignRepository{db: s.db}
}

// GetBySubmissionID retrieves the signs of a submission in recording order.
func (r *SignRepository) GetBySubmissionID(submissionID string) ([]Sign, error) {
	rows, err := r.db.Query(
		`SELECT id, submission_id, position, label, trim_start, trim_end, frames, saved_at
		 FROM signs
		 WHERE submission_id = ?
		 ORDER BY position`,
		submissionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signs []Sign
	for rows.Next() {
		var s Sign
		if err := rows.Scan(&s.ID, &s.SubmissionID, &s.Position, &s.Label,
			&s.TrimStart, &s.TrimEnd, &s.Frames, &s.SavedAt); err != nil {
			return nil, err
		}
		signs = append(signs, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return signs, nil
}

// Frames retrieves the frames of a sign in order.
func (r *SignRepository) Frames(signID string) ([]Frame, error) {
	rows, err := r.db.Query(
		`SELECT sequence, received_at, data
		 FROM sign_frames
		 WHERE sign_id = ?
		 ORDER BY sequence`,
		signID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []Frame
	for rows.Next() {
		var f Frame
		var data string
		if err := rows.Scan(&f.Sequence, &f.ReceivedAt, &data); err != nil {
			return nil, err
		}
		f.Data = json.RawMessage(data)
		frames = append(frames, f)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return frames, nil
}

// ExportedSign is a sign with all of its frames.
type ExportedSign struct {
	Sign
	Data []Frame `json:"data"`
}

// Export is a complete submission, as offered for download.
type Export struct {
	Submission
	Recordings []ExportedSign `json:"recordings"`
}

// Export loads a submission with every sign and frame.
func (s *Store) Export(id string) (*Export, error) {
	sub, err := s.Submissions().GetByID(id)
	if err != nil {
		return nil, err
	}

	signs, err := s.Signs().GetBySubmissionID(id)
	if err != nil {
		return nil, err
	}

	exp := &Export{Submission: *sub, Recordings: make([]ExportedSign, 0, len(signs))}
	for _, sign := range signs {
		frames, err := s.Signs().Frames(sign.ID)
		if err != nil {
			return nil, err
		}
		if frames == nil {
			frames = []Frame{}
		}
		exp.Recordings = append(exp.Recordings, ExportedSign{Sign: sign, Data: frames})
	}
	return exp, nil
}
