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

// PutBudget upserts a budget keyed on its ledger object id. Re-delivery of
// the same BudgetPublished event rewrites the row in place (last write wins).
func (s *Store) PutBudget(ctx context.Context, budget storage.BudgetRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	budget.ID = strings.TrimSpace(budget.ID)
	budget.BodyID = strings.TrimSpace(budget.BodyID)
	budget.Title = strings.TrimSpace(budget.Title)
	if budget.ID == "" {
		return fmt.Errorf("budget id is required")
	}
	if budget.BodyID == "" {
		return fmt.Errorf("budget body id is required")
	}
	if budget.Title == "" {
		return fmt.Errorf("budget title is required")
	}
	if budget.CreatedAt.IsZero() {
		budget.CreatedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO budgets (
	sui_object_id, body_id, title, total_allocation, fiscal_year, sdg_focus, source_document_url, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(sui_object_id) DO UPDATE SET
	body_id = excluded.body_id,
	title = excluded.title,
	total_allocation = excluded.total_allocation,
	fiscal_year = excluded.fiscal_year,
	sdg_focus = excluded.sdg_focus,
	source_document_url = excluded.source_document_url
`,
		budget.ID,
		budget.BodyID,
		budget.Title,
		int64(budget.TotalAllocation),
		budget.FiscalYear,
		budget.SDGFocus,
		budget.SourceDocumentURL,
		toMillis(budget.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put budget: %w", err)
	}
	return nil
}

// GetBudget fetches a budget by ledger object id.
func (s *Store) GetBudget(ctx context.Context, id string) (storage.BudgetRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.BudgetRecord{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.BudgetRecord{}, fmt.Errorf("budget id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT sui_object_id, body_id, title, total_allocation, fiscal_year, sdg_focus, source_document_url, created_at
FROM budgets
WHERE sui_object_id = ?
`, id)
	return scanBudget(row)
}

// ListBudgetsForBody lists budgets for one government body newest-first.
func (s *Store) ListBudgetsForBody(ctx context.Context, bodyID string, pageSize int, pageToken string) (storage.BudgetPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.BudgetPage{}, err
	}
	bodyID = strings.TrimSpace(bodyID)
	if bodyID == "" {
		return storage.BudgetPage{}, fmt.Errorf("body id is required")
	}
	pageSize = clampPageSize(pageSize)
	filter := "body=" + bodyID
	ts, id, bounded, err := pageWindow(pageToken, filter)
	if err != nil {
		return storage.BudgetPage{}, err
	}

	query := `
SELECT sui_object_id, body_id, title, total_allocation, fiscal_year, sdg_focus, source_document_url, created_at
FROM budgets
WHERE body_id = ?
`
	args := []any{bodyID}
	if bounded {
		query += "AND (created_at < ? OR (created_at = ? AND sui_object_id < ?))\n"
		args = append(args, ts, ts, id)
	}
	query += "ORDER BY created_at DESC, sui_object_id DESC\nLIMIT ?"
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return storage.BudgetPage{}, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var page storage.BudgetPage
	for rows.Next() {
		budget, err := scanBudget(rows)
		if err != nil {
			return storage.BudgetPage{}, err
		}
		page.Budgets = append(page.Budgets, budget)
	}
	if err := rows.Err(); err != nil {
		return storage.BudgetPage{}, fmt.Errorf("iterate budgets: %w", err)
	}
	if len(page.Budgets) > pageSize {
		page.Budgets = page.Budgets[:pageSize]
		last := page.Budgets[len(page.Budgets)-1]
		token, err := nextPageToken(toMillis(last.CreatedAt), last.ID, filter)
		if err != nil {
			return storage.BudgetPage{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

func scanBudget(row rowScanner) (storage.BudgetRecord, error) {
	var budget storage.BudgetRecord
	var totalAllocation, createdAt int64
	err := row.Scan(
		&budget.ID,
		&budget.BodyID,
		&budget.Title,
		&totalAllocation,
		&budget.FiscalYear,
		&budget.SDGFocus,
		&budget.SourceDocumentURL,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.BudgetRecord{}, storage.ErrNotFound
		}
		return storage.BudgetRecord{}, fmt.Errorf("scan budget: %w", err)
	}
	budget.TotalAllocation = uint64(totalAllocation)
	budget.CreatedAt = fromMillis(createdAt)
	return budget, nil
}
