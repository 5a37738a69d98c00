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

// PutProject upserts a project keyed on its ledger object id.
func (s *Store) PutProject(ctx context.Context, project storage.ProjectRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	project.ID = strings.TrimSpace(project.ID)
	project.BudgetID = strings.TrimSpace(project.BudgetID)
	project.VendorAddress = strings.TrimSpace(project.VendorAddress)
	project.Title = strings.TrimSpace(project.Title)
	if project.ID == "" {
		return fmt.Errorf("project id is required")
	}
	if project.BudgetID == "" {
		return fmt.Errorf("project budget id is required")
	}
	if project.VendorAddress == "" {
		return fmt.Errorf("project vendor address is required")
	}
	if project.Status == spending.StatusUnspecified {
		return fmt.Errorf("project status is required")
	}
	if project.CreatedAt.IsZero() {
		project.CreatedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO projects (
	sui_object_id, budget_id, vendor_address, title, description,
	awarded_amount, spent_amount, status, location, contractor,
	tender_documents_url, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(sui_object_id) DO UPDATE SET
	budget_id = excluded.budget_id,
	vendor_address = excluded.vendor_address,
	title = excluded.title,
	description = excluded.description,
	awarded_amount = excluded.awarded_amount,
	spent_amount = excluded.spent_amount,
	status = excluded.status,
	location = excluded.location,
	contractor = excluded.contractor,
	tender_documents_url = excluded.tender_documents_url
`,
		project.ID,
		project.BudgetID,
		project.VendorAddress,
		project.Title,
		project.Description,
		int64(project.AwardedAmount),
		int64(project.SpentAmount),
		string(project.Status),
		project.Location,
		project.Contractor,
		project.TenderDocumentsURL,
		toMillis(project.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put project: %w", err)
	}
	return nil
}

// GetProject fetches a project by ledger object id.
func (s *Store) GetProject(ctx context.Context, id string) (storage.ProjectRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.ProjectRecord{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.ProjectRecord{}, fmt.Errorf("project id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT sui_object_id, budget_id, vendor_address, title, description,
	awarded_amount, spent_amount, status, location, contractor,
	tender_documents_url, created_at
FROM projects
WHERE sui_object_id = ?
`, id)
	return scanProject(row)
}

// ListProjectsForBudget lists projects for one budget newest-first.
func (s *Store) ListProjectsForBudget(ctx context.Context, budgetID string, pageSize int, pageToken string) (storage.ProjectPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.ProjectPage{}, err
	}
	budgetID = strings.TrimSpace(budgetID)
	if budgetID == "" {
		return storage.ProjectPage{}, fmt.Errorf("budget id is required")
	}
	pageSize = clampPageSize(pageSize)
	filter := "budget=" + budgetID
	ts, id, bounded, err := pageWindow(pageToken, filter)
	if err != nil {
		return storage.ProjectPage{}, err
	}

	query := `
SELECT sui_object_id, budget_id, vendor_address, title, description,
	awarded_amount, spent_amount, status, location, contractor,
	tender_documents_url, created_at
FROM projects
WHERE budget_id = ?
`
	args := []any{budgetID}
	if bounded {
		query += "AND (created_at < ? OR (created_at = ? AND sui_object_id < ?))\n"
		args = append(args, ts, ts, id)
	}
	query += "ORDER BY created_at DESC, sui_object_id DESC\nLIMIT ?"
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return storage.ProjectPage{}, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var page storage.ProjectPage
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return storage.ProjectPage{}, err
		}
		page.Projects = append(page.Projects, project)
	}
	if err := rows.Err(); err != nil {
		return storage.ProjectPage{}, fmt.Errorf("iterate projects: %w", err)
	}
	if len(page.Projects) > pageSize {
		page.Projects = page.Projects[:pageSize]
		last := page.Projects[len(page.Projects)-1]
		token, err := nextPageToken(toMillis(last.CreatedAt), last.ID, filter)
		if err != nil {
			return storage.ProjectPage{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

func scanProject(row rowScanner) (storage.ProjectRecord, error) {
	var project storage.ProjectRecord
	var status string
	var awarded, spent, createdAt int64
	err := row.Scan(
		&project.ID,
		&project.BudgetID,
		&project.VendorAddress,
		&project.Title,
		&project.Description,
		&awarded,
		&spent,
		&status,
		&project.Location,
		&project.Contractor,
		&project.TenderDocumentsURL,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ProjectRecord{}, storage.ErrNotFound
		}
		return storage.ProjectRecord{}, fmt.Errorf("scan project: %w", err)
	}
	project.Status = spending.ProjectStatus(status)
	project.AwardedAmount = uint64(awarded)
	project.SpentAmount = uint64(spent)
	project.CreatedAt = fromMillis(createdAt)
	return project, nil
}

// PutSpendingRecord upserts a flattened spending record keyed on its ledger
// object id.
func (s *Store) PutSpendingRecord(ctx context.Context, record storage.SpendingRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	record.ID = strings.TrimSpace(record.ID)
	record.Submitter = strings.TrimSpace(record.Submitter)
	record.Department = strings.TrimSpace(record.Department)
	record.ProjectName = strings.TrimSpace(record.ProjectName)
	if record.ID == "" {
		return fmt.Errorf("record id is required")
	}
	if record.Submitter == "" {
		return fmt.Errorf("record submitter is required")
	}
	if record.ProjectName == "" {
		return fmt.Errorf("record project name is required")
	}
	if record.Status == spending.StatusUnspecified {
		return fmt.Errorf("record status is required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO spending_records (
	sui_object_id, submitter, department, project_name,
	allocated_amount, spent_amount, status, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(sui_object_id) DO UPDATE SET
	submitter = excluded.submitter,
	department = excluded.department,
	project_name = excluded.project_name,
	allocated_amount = excluded.allocated_amount,
	spent_amount = excluded.spent_amount,
	status = excluded.status
`,
		record.ID,
		record.Submitter,
		record.Department,
		record.ProjectName,
		int64(record.AllocatedAmount),
		int64(record.SpentAmount),
		string(record.Status),
		toMillis(record.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put spending record: %w", err)
	}
	return nil
}

// GetSpendingRecord fetches a spending record by ledger object id.
func (s *Store) GetSpendingRecord(ctx context.Context, id string) (storage.SpendingRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.SpendingRecord{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.SpendingRecord{}, fmt.Errorf("record id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT sui_object_id, submitter, department, project_name,
	allocated_amount, spent_amount, status, created_at
FROM spending_records
WHERE sui_object_id = ?
`, id)
	return scanSpendingRecord(row)
}

// ListSpendingRecords lists spending records newest-first.
func (s *Store) ListSpendingRecords(ctx context.Context, pageSize int, pageToken string) (storage.SpendingRecordPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.SpendingRecordPage{}, err
	}
	pageSize = clampPageSize(pageSize)
	ts, id, bounded, err := pageWindow(pageToken, "")
	if err != nil {
		return storage.SpendingRecordPage{}, err
	}

	query := `
SELECT sui_object_id, submitter, department, project_name,
	allocated_amount, spent_amount, status, created_at
FROM spending_records
`
	args := []any{}
	if bounded {
		query += "WHERE (created_at < ? OR (created_at = ? AND sui_object_id < ?))\n"
		args = append(args, ts, ts, id)
	}
	query += "ORDER BY created_at DESC, sui_object_id DESC\nLIMIT ?"
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return storage.SpendingRecordPage{}, fmt.Errorf("list spending records: %w", err)
	}
	defer rows.Close()

	var page storage.SpendingRecordPage
	for rows.Next() {
		record, err := scanSpendingRecord(rows)
		if err != nil {
			return storage.SpendingRecordPage{}, err
		}
		page.Records = append(page.Records, record)
	}
	if err := rows.Err(); err != nil {
		return storage.SpendingRecordPage{}, fmt.Errorf("iterate spending records: %w", err)
	}
	if len(page.Records) > pageSize {
		page.Records = page.Records[:pageSize]
		last := page.Records[len(page.Records)-1]
		token, err := nextPageToken(toMillis(last.CreatedAt), last.ID, "")
		if err != nil {
			return storage.SpendingRecordPage{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

func scanSpendingRecord(row rowScanner) (storage.SpendingRecord, error) {
	var record storage.SpendingRecord
	var status string
	var allocated, spent, createdAt int64
	err := row.Scan(
		&record.ID,
		&record.Submitter,
		&record.Department,
		&record.ProjectName,
		&allocated,
		&spent,
		&status,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.SpendingRecord{}, storage.ErrNotFound
		}
		return storage.SpendingRecord{}, fmt.Errorf("scan spending record: %w", err)
	}
	record.Status = spending.ProjectStatus(status)
	record.AllocatedAmount = uint64(allocated)
	record.SpentAmount = uint64(spent)
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}
