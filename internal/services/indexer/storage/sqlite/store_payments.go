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

// PutPayment upserts a payment keyed on the ledger transaction digest. The
// digest is the natural idempotency key: the same payment cannot occur twice
// within one ledger transaction, so a replayed event rewrites the same row.
func (s *Store) PutPayment(ctx context.Context, payment storage.PaymentRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	payment.TxDigest = strings.TrimSpace(payment.TxDigest)
	payment.ProjectID = strings.TrimSpace(payment.ProjectID)
	payment.VendorAddress = strings.TrimSpace(payment.VendorAddress)
	if payment.TxDigest == "" {
		return fmt.Errorf("payment tx digest is required")
	}
	if payment.ProjectID == "" {
		return fmt.Errorf("payment project id is required")
	}
	if payment.VendorAddress == "" {
		return fmt.Errorf("payment vendor address is required")
	}
	if payment.PaidAt.IsZero() {
		payment.PaidAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO payments (
	sui_transaction_hash, project_id, vendor_address, amount,
	milestone_description, invoice_url, paid_at
) VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(sui_transaction_hash) DO UPDATE SET
	project_id = excluded.project_id,
	vendor_address = excluded.vendor_address,
	amount = excluded.amount,
	milestone_description = excluded.milestone_description,
	invoice_url = excluded.invoice_url
`,
		payment.TxDigest,
		payment.ProjectID,
		payment.VendorAddress,
		int64(payment.Amount),
		payment.MilestoneDescription,
		payment.InvoiceURL,
		toMillis(payment.PaidAt),
	)
	if err != nil {
		return fmt.Errorf("put payment: %w", err)
	}
	return nil
}

// GetPayment fetches a payment by transaction digest.
func (s *Store) GetPayment(ctx context.Context, txDigest string) (storage.PaymentRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.PaymentRecord{}, err
	}
	txDigest = strings.TrimSpace(txDigest)
	if txDigest == "" {
		return storage.PaymentRecord{}, fmt.Errorf("payment tx digest is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT sui_transaction_hash, project_id, vendor_address, amount,
	milestone_description, invoice_url, paid_at
FROM payments
WHERE sui_transaction_hash = ?
`, txDigest)
	return scanPayment(row)
}

// ListPaymentsForProject lists payments for one project newest-first.
func (s *Store) ListPaymentsForProject(ctx context.Context, projectID string, pageSize int, pageToken string) (storage.PaymentPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.PaymentPage{}, err
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return storage.PaymentPage{}, fmt.Errorf("project id is required")
	}
	pageSize = clampPageSize(pageSize)
	filter := "project=" + projectID
	ts, id, bounded, err := pageWindow(pageToken, filter)
	if err != nil {
		return storage.PaymentPage{}, err
	}

	query := `
SELECT sui_transaction_hash, project_id, vendor_address, amount,
	milestone_description, invoice_url, paid_at
FROM payments
WHERE project_id = ?
`
	args := []any{projectID}
	if bounded {
		query += "AND (paid_at < ? OR (paid_at = ? AND sui_transaction_hash < ?))\n"
		args = append(args, ts, ts, id)
	}
	query += "ORDER BY paid_at DESC, sui_transaction_hash DESC\nLIMIT ?"
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return storage.PaymentPage{}, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var page storage.PaymentPage
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return storage.PaymentPage{}, err
		}
		page.Payments = append(page.Payments, payment)
	}
	if err := rows.Err(); err != nil {
		return storage.PaymentPage{}, fmt.Errorf("iterate payments: %w", err)
	}
	if len(page.Payments) > pageSize {
		page.Payments = page.Payments[:pageSize]
		last := page.Payments[len(page.Payments)-1]
		token, err := nextPageToken(toMillis(last.PaidAt), last.TxDigest, filter)
		if err != nil {
			return storage.PaymentPage{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

func scanPayment(row rowScanner) (storage.PaymentRecord, error) {
	var payment storage.PaymentRecord
	var amount, paidAt int64
	err := row.Scan(
		&payment.TxDigest,
		&payment.ProjectID,
		&payment.VendorAddress,
		&amount,
		&payment.MilestoneDescription,
		&payment.InvoiceURL,
		&paidAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.PaymentRecord{}, storage.ErrNotFound
		}
		return storage.PaymentRecord{}, fmt.Errorf("scan payment: %w", err)
	}
	payment.Amount = uint64(amount)
	payment.PaidAt = fromMillis(paidAt)
	return payment, nil
}
