package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/civicledger/civicledger/internal/services/indexer/storage"
)

// RecordDeadLetter appends an unprocessable event and returns its row id.
func (s *Store) RecordDeadLetter(ctx context.Context, letter storage.DeadLetterRecord) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	letter.EventType = strings.TrimSpace(letter.EventType)
	letter.TxDigest = strings.TrimSpace(letter.TxDigest)
	if letter.EventType == "" {
		return 0, fmt.Errorf("dead letter event type is required")
	}
	if len(letter.Envelope) == 0 {
		return 0, fmt.Errorf("dead letter envelope is required")
	}
	if letter.ReceivedAt.IsZero() {
		letter.ReceivedAt = time.Now().UTC()
	}

	res, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO dead_letters (event_type, tx_digest, reason, envelope, received_at)
VALUES (?, ?, ?, ?, ?)
`,
		letter.EventType,
		letter.TxDigest,
		letter.Reason,
		letter.Envelope,
		toMillis(letter.ReceivedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("record dead letter: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("dead letter id: %w", err)
	}
	return id, nil
}

// ListPendingDeadLetters returns un-replayed letters oldest first so replay
// reprocesses events in arrival order.
func (s *Store) ListPendingDeadLetters(ctx context.Context, limit int) ([]storage.DeadLetterRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultPageSize
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, event_type, tx_digest, reason, envelope, received_at, replayed_at
FROM dead_letters
WHERE replayed_at IS NULL
ORDER BY id ASC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending dead letters: %w", err)
	}
	defer rows.Close()

	var letters []storage.DeadLetterRecord
	for rows.Next() {
		letter, err := scanDeadLetter(rows)
		if err != nil {
			return nil, err
		}
		letters = append(letters, letter)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dead letters: %w", err)
	}
	return letters, nil
}

// ListDeadLetters pages over all letters newest-first, replayed included.
func (s *Store) ListDeadLetters(ctx context.Context, pageSize int, pageToken string) (storage.DeadLetterPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.DeadLetterPage{}, err
	}
	pageSize = clampPageSize(pageSize)
	const filter = "dead-letters"
	ts, id, bounded, err := pageWindow(pageToken, filter)
	if err != nil {
		return storage.DeadLetterPage{}, err
	}

	query := `
SELECT id, event_type, tx_digest, reason, envelope, received_at, replayed_at
FROM dead_letters
`
	var args []any
	if bounded {
		query += "WHERE (received_at < ? OR (received_at = ? AND CAST(id AS TEXT) < ?))\n"
		args = append(args, ts, ts, id)
	}
	query += "ORDER BY received_at DESC, CAST(id AS TEXT) DESC\nLIMIT ?"
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return storage.DeadLetterPage{}, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var page storage.DeadLetterPage
	for rows.Next() {
		letter, err := scanDeadLetter(rows)
		if err != nil {
			return storage.DeadLetterPage{}, err
		}
		page.Letters = append(page.Letters, letter)
	}
	if err := rows.Err(); err != nil {
		return storage.DeadLetterPage{}, fmt.Errorf("iterate dead letters: %w", err)
	}
	if len(page.Letters) > pageSize {
		page.Letters = page.Letters[:pageSize]
		last := page.Letters[len(page.Letters)-1]
		token, err := nextPageToken(toMillis(last.ReceivedAt), fmt.Sprintf("%d", last.ID), filter)
		if err != nil {
			return storage.DeadLetterPage{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

// MarkDeadLetterReplayed stamps a letter as successfully reprocessed.
func (s *Store) MarkDeadLetterReplayed(ctx context.Context, id int64, replayedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if replayedAt.IsZero() {
		replayedAt = time.Now().UTC()
	}

	res, err := s.sqlDB.ExecContext(ctx, `
UPDATE dead_letters SET replayed_at = ? WHERE id = ?
`, toMillis(replayedAt), id)
	if err != nil {
		return fmt.Errorf("mark dead letter replayed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark dead letter replayed: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UpdateDeadLetterReason records why a replay attempt failed again.
func (s *Store) UpdateDeadLetterReason(ctx context.Context, id int64, reason string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	res, err := s.sqlDB.ExecContext(ctx, `
UPDATE dead_letters SET reason = ? WHERE id = ?
`, reason, id)
	if err != nil {
		return fmt.Errorf("update dead letter reason: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update dead letter reason: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanDeadLetter(row rowScanner) (storage.DeadLetterRecord, error) {
	var letter storage.DeadLetterRecord
	var receivedAt int64
	var replayedAt sql.NullInt64
	err := row.Scan(
		&letter.ID,
		&letter.EventType,
		&letter.TxDigest,
		&letter.Reason,
		&letter.Envelope,
		&receivedAt,
		&replayedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.DeadLetterRecord{}, storage.ErrNotFound
		}
		return storage.DeadLetterRecord{}, fmt.Errorf("scan dead letter: %w", err)
	}
	letter.ReceivedAt = fromMillis(receivedAt)
	if replayedAt.Valid {
		t := fromMillis(replayedAt.Int64)
		letter.ReplayedAt = &t
	}
	return letter, nil
}

// PutCursor upserts the resume position for one package filter.
func (s *Store) PutCursor(ctx context.Context, cursor storage.CursorRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	cursor.PackageID = strings.TrimSpace(cursor.PackageID)
	cursor.TxDigest = strings.TrimSpace(cursor.TxDigest)
	if cursor.PackageID == "" {
		return fmt.Errorf("cursor package id is required")
	}
	if cursor.TxDigest == "" {
		return fmt.Errorf("cursor tx digest is required")
	}
	if cursor.UpdatedAt.IsZero() {
		cursor.UpdatedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO ledger_cursors (package_id, tx_digest, event_seq, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(package_id) DO UPDATE SET
	tx_digest = excluded.tx_digest,
	event_seq = excluded.event_seq,
	updated_at = excluded.updated_at
`,
		cursor.PackageID,
		cursor.TxDigest,
		cursor.EventSeq,
		toMillis(cursor.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put cursor: %w", err)
	}
	return nil
}

// GetCursor fetches the resume position for one package filter.
func (s *Store) GetCursor(ctx context.Context, packageID string) (storage.CursorRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.CursorRecord{}, err
	}
	packageID = strings.TrimSpace(packageID)
	if packageID == "" {
		return storage.CursorRecord{}, fmt.Errorf("cursor package id is required")
	}

	var cursor storage.CursorRecord
	var updatedAt int64
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT package_id, tx_digest, event_seq, updated_at
FROM ledger_cursors
WHERE package_id = ?
`, packageID).Scan(&cursor.PackageID, &cursor.TxDigest, &cursor.EventSeq, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.CursorRecord{}, storage.ErrNotFound
		}
		return storage.CursorRecord{}, fmt.Errorf("get cursor: %w", err)
	}
	cursor.UpdatedAt = fromMillis(updatedAt)
	return cursor, nil
}
