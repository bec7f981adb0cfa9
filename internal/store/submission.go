package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sawtak/glovestudio/internal/session"
)

var (
	// ErrNotFound is returned when a requested resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotOwner is returned when merging a submission that belongs to
	// someone else.
	ErrNotOwner = errors.New("submission belongs to another owner")
	// ErrMergeSources is returned when fewer than two submissions are merged.
	ErrMergeSources = errors.New("merge needs at least two submissions")
	// ErrMixedLanguages is returned when merging submissions of different
	// sign languages.
	ErrMixedLanguages = errors.New("submissions have different languages")
	// ErrInvalidExport is returned when an imported file is not a
	// submission export.
	ErrInvalidExport = errors.New("invalid submission export")
)

const submissionColumns = `id, upload_id, name, language, owner, signs, frames, created_at`

// Submission is an uploaded set of signs.
type Submission struct {
	ID        string    `json:"id"`
	UploadID  string    `json:"upload_id"`
	Name      string    `json:"name"`
	Language  string    `json:"language"`
	Owner     string    `json:"owner"`
	Signs     int       `json:"signs"`
	Frames    int       `json:"frames"`
	CreatedAt time.Time `json:"created_at"`
}

// SubmissionRepository provides access to stored submissions.
type SubmissionRepository struct {
	db *sql.DB
}

// Submissions returns the submission repository for this store.
func (s *Store) Submissions() *SubmissionRepository {
	return &SubmissionRepository{db: s.db}
}

// Upload implements session.Uploader. The submission and all of its signs
// and frames are written in one transaction. An upload whose ID is already
// stored is treated as done, so retries after an ambiguous failure do not
// create duplicates.
func (s *Store) Upload(ctx context.Context, u session.Upload) error {
	_, err := s.Submissions().Create(ctx, u)
	return err
}

// Create stores an upload and returns the resulting submission. If the
// upload ID was stored before, the existing submission is returned.
func (r *SubmissionRepository) Create(ctx context.Context, u session.Upload) (*Submission, error) {
	signs := make([]signRecord, 0, len(u.Signs))
	for _, sign := range u.Signs {
		rec := signRecord{
			ID:        sign.ID,
			Label:     sign.Label,
			TrimStart: sign.TrimStart,
			TrimEnd:   sign.TrimEnd,
			SavedAt:   sign.SavedAt,
			Frames:    make([]Frame, 0, len(sign.Frames)),
		}
		for seq, f := range sign.Frames {
			data, err := json.Marshal(f)
			if err != nil {
				return nil, fmt.Errorf("encode frame %d of %q: %w", seq, sign.Label, err)
			}
			rec.Frames = append(rec.Frames, Frame{Sequence: seq, ReceivedAt: f.ReceivedAt, Data: data})
		}
		signs = append(signs, rec)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if existing, err := scanSubmission(tx.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE upload_id = ?`, u.ID)); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	sub := &Submission{
		ID:        uuid.New().String(),
		UploadID:  u.ID,
		Name:      u.Name,
		Language:  u.Language,
		Owner:     u.Owner,
		CreatedAt: time.Now(),
	}
	if err := insertSubmission(ctx, tx, sub, signs); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return sub, nil
}

// signRecord is a sign with its encoded frames, ready to insert.
type signRecord struct {
	ID        string
	Label     string
	TrimStart float64
	TrimEnd   float64
	SavedAt   time.Time
	Frames    []Frame
}

// insertSubmission writes sub and its signs inside tx. Sign and frame
// counts are filled in from signs; signs without an ID get a new one.
func insertSubmission(ctx context.Context, tx *sql.Tx, sub *Submission, signs []signRecord) error {
	sub.Signs = len(signs)
	sub.Frames = 0
	for _, sign := range signs {
		sub.Frames += len(sign.Frames)
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO submissions (`+submissionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.UploadID, sub.Name, sub.Language, sub.Owner, sub.Signs, sub.Frames, sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}

	signStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO signs (id, submission_id, position, label, trim_start, trim_end, frames, saved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer signStmt.Close()

	frameStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sign_frames (sign_id, sequence, received_at, data) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer frameStmt.Close()

	for i, sign := range signs {
		id := sign.ID
		if id == "" {
			id = uuid.New().String()
		}
		savedAt := sign.SavedAt
		if savedAt.IsZero() {
			savedAt = sub.CreatedAt
		}
		if _, err := signStmt.ExecContext(ctx, id, sub.ID, i, sign.Label,
			sign.TrimStart, sign.TrimEnd, len(sign.Frames), savedAt); err != nil {
			return fmt.Errorf("insert sign %q: %w", sign.Label, err)
		}

		for seq, f := range sign.Frames {
			if _, err := frameStmt.ExecContext(ctx, id, seq, f.ReceivedAt, string(f.Data)); err != nil {
				return fmt.Errorf("insert frame %d of %q: %w", seq, sign.Label, err)
			}
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*Submission, error) {
	sub := &Submission{}
	err := row.Scan(&sub.ID, &sub.UploadID, &sub.Name, &sub.Language, &sub.Owner,
		&sub.Signs, &sub.Frames, &sub.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sub, nil
}

// GetByID retrieves a submission by its ID.
func (r *SubmissionRepository) GetByID(id string) (*Submission, error) {
	return scanSubmission(r.db.QueryRow(
		`SELECT `+submissionColumns+` FROM submissions WHERE id = ?`,
		id,
	))
}

// List retrieves submissions, newest first. A non-empty language filters
// the result.
func (r *SubmissionRepository) List(language string) ([]*Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions`
	var args []any
	if language != "" {
		query += ` WHERE language = ?`
		args = append(args, language)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return subs, nil
}

// Languages returns the distinct languages with at least one submission.
func (r *SubmissionRepository) Languages() ([]string, error) {
	rows, err := r.db.Query(
		`SELECT DISTINCT language FROM submissions WHERE language != '' ORDER BY language`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var langs []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, err
		}
		langs = append(langs, l)
	}
	return langs, rows.Err()
}

// Delete removes a submission and its signs.
func (r *SubmissionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM submissions WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
