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

// PutBody upserts a government body keyed on its ledger object id.
func (s *Store) PutBody(ctx context.Context, body storage.GovernmentBodyRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	body.ID = strings.TrimSpace(body.ID)
	body.AdminAddress = strings.TrimSpace(body.AdminAddress)
	body.Name = strings.TrimSpace(body.Name)
	if body.ID == "" {
		return fmt.Errorf("body id is required")
	}
	if body.Name == "" {
		return fmt.Errorf("body name is required")
	}
	if body.Category == spending.CategoryUnspecified {
		return fmt.Errorf("body category is required")
	}
	if body.CreatedAt.IsZero() {
		body.CreatedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO government_bodies (
	sui_object_id, admin_address, name, category, total_budget, created_at
) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(sui_object_id) DO UPDATE SET
	admin_address = excluded.admin_address,
	name = excluded.name,
	category = excluded.category,
	total_budget = excluded.total_budget
`,
		body.ID,
		body.AdminAddress,
		body.Name,
		string(body.Category),
		int64(body.TotalBudget),
		toMillis(body.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put body: %w", err)
	}
	return nil
}

// GetBody fetches a government body by ledger object id.
func (s *Store) GetBody(ctx context.Context, id string) (storage.GovernmentBodyRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.GovernmentBodyRecord{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.GovernmentBodyRecord{}, fmt.Errorf("body id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT sui_object_id, admin_address, name, category, total_budget, created_at
FROM government_bodies
WHERE sui_object_id = ?
`, id)
	return scanBody(row)
}

// ListBodies lists government bodies newest-first.
func (s *Store) ListBodies(ctx context.Context, pageSize int, pageToken string) (storage.BodyPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.BodyPage{}, err
	}
	pageSize = clampPageSize(pageSize)
	ts, id, bounded, err := pageWindow(pageToken, "")
	if err != nil {
		return storage.BodyPage{}, err
	}

	query := `
SELECT sui_object_id, admin_address, name, category, total_budget, created_at
FROM government_bodies
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
		return storage.BodyPage{}, fmt.Errorf("list bodies: %w", err)
	}
	defer rows.Close()

	var page storage.BodyPage
	for rows.Next() {
		body, err := scanBody(rows)
		if err != nil {
			return storage.BodyPage{}, err
		}
		page.Bodies = append(page.Bodies, body)
	}
	if err := rows.Err(); err != nil {
		return storage.BodyPage{}, fmt.Errorf("iterate bodies: %w", err)
	}
	if len(page.Bodies) > pageSize {
		page.Bodies = page.Bodies[:pageSize]
		last := page.Bodies[len(page.Bodies)-1]
		token, err := nextPageToken(toMillis(last.CreatedAt), last.ID, "")
		if err != nil {
			return storage.BodyPage{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBody(row rowScanner) (storage.GovernmentBodyRecord, error) {
	var body storage.GovernmentBodyRecord
	var category string
	var totalBudget, createdAt int64
	err := row.Scan(&body.ID, &body.AdminAddress, &body.Name, &category, &totalBudget, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.GovernmentBodyRecord{}, storage.ErrNotFound
		}
		return storage.GovernmentBodyRecord{}, fmt.Errorf("scan body: %w", err)
	}
	body.Category = spending.BodyCategory(category)
	body.TotalBudget = uint64(totalBudget)
	body.CreatedAt = fromMillis(createdAt)
	return body, nil
}

// PutOfficial upserts an official keyed on wallet address, so a
// re-registration is a rewrite rather than a duplicate.
func (s *Store) PutOfficial(ctx context.Context, official storage.OfficialRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	official.Address = strings.TrimSpace(official.Address)
	official.Department = strings.TrimSpace(official.Department)
	official.EmailDomain = strings.TrimSpace(official.EmailDomain)
	if official.Address == "" {
		return fmt.Errorf("official address is required")
	}
	if official.RegisteredAt.IsZero() {
		official.RegisteredAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO officials (
	address, department, email_domain, verified, registered_at
) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(address) DO UPDATE SET
	department = excluded.department,
	email_domain = excluded.email_domain,
	verified = excluded.verified
`,
		official.Address,
		official.Department,
		official.EmailDomain,
		boolToInt(official.Verified),
		toMillis(official.RegisteredAt),
	)
	if err != nil {
		return fmt.Errorf("put official: %w", err)
	}
	return nil
}

// GetOfficial fetches an official by wallet address.
func (s *Store) GetOfficial(ctx context.Context, address string) (storage.OfficialRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.OfficialRecord{}, err
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return storage.OfficialRecord{}, fmt.Errorf("official address is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT address, department, email_domain, verified, registered_at
FROM officials
WHERE address = ?
`, address)

	var official storage.OfficialRecord
	var verified int
	var registeredAt int64
	err := row.Scan(&official.Address, &official.Department, &official.EmailDomain, &verified, &registeredAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.OfficialRecord{}, storage.ErrNotFound
		}
		return storage.OfficialRecord{}, fmt.Errorf("scan official: %w", err)
	}
	official.Verified = verified != 0
	official.RegisteredAt = fromMillis(registeredAt)
	return official, nil
}

// ListOfficials lists officials newest-first by registration time.
func (s *Store) ListOfficials(ctx context.Context, pageSize int, pageToken string) (storage.OfficialPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.OfficialPage{}, err
	}
	pageSize = clampPageSize(pageSize)
	ts, id, bounded, err := pageWindow(pageToken, "")
	if err != nil {
		return storage.OfficialPage{}, err
	}

	query := `
SELECT address, department, email_domain, verified, registered_at
FROM officials
`
	args := []any{}
	if bounded {
		query += "WHERE (registered_at < ? OR (registered_at = ? AND address < ?))\n"
		args = append(args, ts, ts, id)
	}
	query += "ORDER BY registered_at DESC, address DESC\nLIMIT ?"
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return storage.OfficialPage{}, fmt.Errorf("list officials: %w", err)
	}
	defer rows.Close()

	var page storage.OfficialPage
	for rows.Next() {
		var official storage.OfficialRecord
		var verified int
		var registeredAt int64
		if err := rows.Scan(&official.Address, &official.Department, &official.EmailDomain, &verified, &registeredAt); err != nil {
			return storage.OfficialPage{}, fmt.Errorf("scan official: %w", err)
		}
		official.Verified = verified != 0
		official.RegisteredAt = fromMillis(registeredAt)
		page.Officials = append(page.Officials, official)
	}
	if err := rows.Err(); err != nil {
		return storage.OfficialPage{}, fmt.Errorf("iterate officials: %w", err)
	}
	if len(page.Officials) > pageSize {
		page.Officials = page.Officials[:pageSize]
		last := page.Officials[len(page.Officials)-1]
		token, err := nextPageToken(toMillis(last.RegisteredAt), last.Address, "")
		if err != nil {
			return storage.OfficialPage{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

// PutVendor upserts a vendor keyed on wallet address. An empty registration
// number persists as NULL so the partial unique index only constrains real
// values.
func (s *Store) PutVendor(ctx context.Context, vendor storage.VendorRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	vendor.Address = strings.TrimSpace(vendor.Address)
	vendor.Name = strings.TrimSpace(vendor.Name)
	vendor.RegistrationNumber = strings.TrimSpace(vendor.RegistrationNumber)
	if vendor.Address == "" {
		return fmt.Errorf("vendor address is required")
	}
	if vendor.Name == "" {
		return fmt.Errorf("vendor name is required")
	}
	if vendor.CreatedAt.IsZero() {
		vendor.CreatedAt = time.Now().UTC()
	}

	var registrationNumber sql.NullString
	if vendor.RegistrationNumber != "" {
		registrationNumber = sql.NullString{String: vendor.RegistrationNumber, Valid: true}
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO vendors (
	address, name, registration_number, created_at
) VALUES (?, ?, ?, ?)
ON CONFLICT(address) DO UPDATE SET
	name = excluded.name,
	registration_number = excluded.registration_number
`,
		vendor.Address,
		vendor.Name,
		registrationNumber,
		toMillis(vendor.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put vendor: %w", err)
	}
	return nil
}

// GetVendor fetches a vendor by wallet address.
func (s *Store) GetVendor(ctx context.Context, address string) (storage.VendorRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.VendorRecord{}, err
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return storage.VendorRecord{}, fmt.Errorf("vendor address is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT address, name, registration_number, created_at
FROM vendors
WHERE address = ?
`, address)

	var vendor storage.VendorRecord
	var registrationNumber sql.NullString
	var createdAt int64
	err := row.Scan(&vendor.Address, &vendor.Name, &registrationNumber, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.VendorRecord{}, storage.ErrNotFound
		}
		return storage.VendorRecord{}, fmt.Errorf("scan vendor: %w", err)
	}
	vendor.RegistrationNumber = registrationNumber.String
	vendor.CreatedAt = fromMillis(createdAt)
	return vendor, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
