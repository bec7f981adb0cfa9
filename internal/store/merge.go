package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Merge combines the submissions ids into one new submission called name
// and removes the originals. Every submission must belong to owner and use
// the same sign language. Signs keep their order, submission by submission.
func (s *Store) Merge(ctx context.Context, owner, name string, ids []string) (*Submission, error) {
	seen := make(map[string]bool, len(ids))
	var unique []string
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	if len(unique) < 2 {
		return nil, ErrMergeSources
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var (
		language string
		signs    []signRecord
	)
	for i, id := range unique {
		sub, err := scanSubmission(tx.QueryRowContext(ctx,
			`SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id))
		if err != nil {
			return nil, fmt.Errorf("submission %s: %w", id, err)
		}
		if sub.Owner != owner {
			return nil, fmt.Errorf("submission %q: %w", sub.Name, ErrNotOwner)
		}
		if i == 0 {
			language = sub.Language
		} else if sub.Language != language {
			return nil, fmt.Errorf("%w: %q and %q", ErrMixedLanguages, language, sub.Language)
		}

		recs, err := loadSignRecords(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		signs = append(signs, recs...)
	}

	for _, id := range unique {
		if _, err := tx.ExecContext(ctx, `DELETE FROM submissions WHERE id = ?`, id); err != nil {
			return nil, fmt.Errorf("delete submission %s: %w", id, err)
		}
	}

	merged := &Submission{
		ID:        uuid.New().String(),
		UploadID:  uuid.New().String(),
		Name:      name,
		Language:  language,
		Owner:     owner,
		CreatedAt: time.Now(),
	}
	if err := insertSubmission(ctx, tx, merged, signs); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return merged, nil
}

// loadSignRecords reads the signs and frames of a submission inside tx.
// The records carry no ID so they can be inserted again.
func loadSignRecords(ctx context.Context, tx *sql.Tx, submissionID string) ([]signRecord, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, label, trim_start, trim_end, saved_at FROM signs
		 WHERE submission_id = ? ORDER BY position`, submissionID)
	if err != nil {
		return nil, err
	}

	var ids []string
	var recs []signRecord
	for rows.Next() {
		var id string
		var rec signRecord
		if err := rows.Scan(&id, &rec.Label, &rec.TrimStart, &rec.TrimEnd, &rec.SavedAt); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
		recs = append(recs, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, id := range ids {
		frames, err := tx.QueryContext(ctx,
			`SELECT sequence, received_at, data FROM sign_frames WHERE sign_id = ? ORDER BY sequence`, id)
		if err != nil {
			return nil, err
		}
		for frames.Next() {
			var f Frame
			var data string
			if err := frames.Scan(&f.Sequence, &f.ReceivedAt, &data); err != nil {
				frames.Close()
				return nil, err
			}
			f.Data = json.RawMessage(data)
			recs[i].Frames = append(recs[i].Frames, f)
		}
		frames.Close()
		if err := frames.Err(); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

// Import stores a submission read from an Export, as produced by the
// download endpoint. The copy gets new IDs. It keeps the export's owner,
// or is owned by owner when the export names none.
func (s *Store) Import(ctx context.Context, owner string, exp *Export) (*Submission, error) {
	if exp == nil || exp.Name == "" {
		return nil, fmt.Errorf("%w: missing name", ErrInvalidExport)
	}

	signs := make([]signRecord, 0, len(exp.Recordings))
	for _, rec := range exp.Recordings {
		if rec.Label == "" {
			return nil, fmt.Errorf("%w: recording without label", ErrInvalidExport)
		}
		sr := signRecord{
			Label:     rec.Label,
			TrimStart: rec.TrimStart,
			TrimEnd:   rec.TrimEnd,
			SavedAt:   rec.SavedAt,
			Frames:    make([]Frame, 0, len(rec.Data)),
		}
		for i, f := range rec.Data {
			if len(f.Data) == 0 || !json.Valid(f.Data) {
				return nil, fmt.Errorf("%w: frame %d of %q is not JSON", ErrInvalidExport, i, rec.Label)
			}
			sr.Frames = append(sr.Frames, Frame{Sequence: i, ReceivedAt: f.ReceivedAt, Data: f.Data})
		}
		signs = append(signs, sr)
	}

	sub := &Submission{
		ID:        uuid.New().String(),
		UploadID:  uuid.New().String(),
		Name:      exp.Name,
		Language:  exp.Language,
		Owner:     exp.Owner,
		CreatedAt: time.Now(),
	}
	if sub.Owner == "" {
		sub.Owner = owner
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := insertSubmission(ctx, tx, sub, signs); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return sub, nil
}
