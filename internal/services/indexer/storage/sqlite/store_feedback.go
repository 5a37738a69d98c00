package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/civicledger/civicledger/internal/services/indexer/domain/spending"
	"github.com/civicledger/civicledger/internal/services/indexer/storage"
)

// PutFeedback upserts one citizen feedback entry. The row only ever carries
// the content hash; the plaintext message stays off-device.
func (s *Store) PutFeedback(ctx context.Context, feedback storage.FeedbackRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	feedback.ID = strings.TrimSpace(feedback.ID)
	feedback.ProjectID = strings.TrimSpace(feedback.ProjectID)
	feedback.ContentHash = strings.TrimSpace(feedback.ContentHash)
	if feedback.ID == "" {
		return fmt.Errorf("feedback id is required")
	}
	if feedback.ProjectID == "" {
		return fmt.Errorf("feedback project id is required")
	}
	if feedback.Rating < spending.MinRating || feedback.Rating > spending.MaxRating {
		return fmt.Errorf("feedback rating %d out of range", feedback.Rating)
	}
	if feedback.SubmittedAt.IsZero() {
		feedback.SubmittedAt = time.Now().UTC()
	}
	submitter := feedback.Submitter
	if feedback.Anonymous {
		submitter = ""
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO feedback (
	sui_object_id, project_id, rating, content_hash, anonymous, submitter, submitted_at
) VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(sui_object_id) DO UPDATE SET
	project_id = excluded.project_id,
	rating = excluded.rating,
	content_hash = excluded.content_hash,
	anonymous = excluded.anonymous,
	submitter = excluded.submitter
`,
		feedback.ID,
		feedback.ProjectID,
		feedback.Rating,
		feedback.ContentHash,
		boolToInt(feedback.Anonymous),
		submitter,
		toMillis(feedback.SubmittedAt),
	)
	if err != nil {
		return fmt.Errorf("put feedback: %w", err)
	}
	return nil
}

// GetFeedback fetches one feedback entry by id.
func (s *Store) GetFeedback(ctx context.Context, id string) (storage.FeedbackRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.FeedbackRecord{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.FeedbackRecord{}, fmt.Errorf("feedback id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT sui_object_id, project_id, rating, content_hash, anonymous, submitter, submitted_at
FROM feedback
WHERE sui_object_id = ?
`, id)
	return scanFeedback(row)
}

// ListFeedbackForProject lists feedback for one project newest-first.
func (s *Store) ListFeedbackForProject(ctx context.Context, projectID string, pageSize int, pageToken string) (storage.FeedbackPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.FeedbackPage{}, err
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return storage.FeedbackPage{}, fmt.Errorf("project id is required")
	}
	pageSize = clampPageSize(pageSize)
	filter := "project=" + projectID
	ts, id, bounded, err := pageWindow(pageToken, filter)
	if err != nil {
		return storage.FeedbackPage{}, err
	}

	query := `
SELECT sui_object_id, project_id, rating, content_hash, anonymous, submitter, submitted_at
FROM feedback
WHERE project_id = ?
`
	args := []any{projectID}
	if bounded {
		query += "AND (submitted_at < ? OR (submitted_at = ? AND sui_object_id < ?))\n"
		args = append(args, ts, ts, id)
	}
	query += "ORDER BY submitted_at DESC, sui_object_id DESC\nLIMIT ?"
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return storage.FeedbackPage{}, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	var page storage.FeedbackPage
	for rows.Next() {
		feedback, err := scanFeedback(rows)
		if err != nil {
			return storage.FeedbackPage{}, err
		}
		page.Feedback = append(page.Feedback, feedback)
	}
	if err := rows.Err(); err != nil {
		return storage.FeedbackPage{}, fmt.Errorf("iterate feedback: %w", err)
	}
	if len(page.Feedback) > pageSize {
		page.Feedback = page.Feedback[:pageSize]
		last := page.Feedback[len(page.Feedback)-1]
		token, err := nextPageToken(toMillis(last.SubmittedAt), last.ID, filter)
		if err != nil {
			return storage.FeedbackPage{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

func scanFeedback(row rowScanner) (storage.FeedbackRecord, error) {
	var feedback storage.FeedbackRecord
	var anonymous int
	var submittedAt int64
	err := row.Scan(
		&feedback.ID,
		&feedback.ProjectID,
		&feedback.Rating,
		&feedback.ContentHash,
		&anonymous,
		&feedback.Submitter,
		&submittedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.FeedbackRecord{}, storage.ErrNotFound
		}
		return storage.FeedbackRecord{}, fmt.Errorf("scan feedback: %w", err)
	}
	feedback.Anonymous = anonymous != 0
	feedback.SubmittedAt = fromMillis(submittedAt)
	return feedback, nil
}
