package projection

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/civicledger/civicledger/internal/ledger"
	"github.com/civicledger/civicledger/internal/services/indexer/storage"
)

func (a Applier) applyPaymentMade(ctx context.Context, evt ledger.Event) error {
	payload := evt.PaymentMade
	projectID := strings.TrimSpace(payload.ProjectID)
	if projectID == "" {
		return unprocessablef("project id is required")
	}
	txDigest := strings.TrimSpace(evt.TxDigest)
	if txDigest == "" {
		return unprocessablef("transaction digest is required")
	}
	project, err := a.Projects.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return unprocessablef("project %s not found", projectID)
		}
		return fmt.Errorf("resolve project %s: %w", projectID, err)
	}
	// The payee is the project's awarded vendor; the payload does not repeat
	// it. Keying on the envelope digest keeps replays idempotent since one
	// ledger transaction carries at most one payment.
	return a.Payments.PutPayment(ctx, storage.PaymentRecord{
		TxDigest:             txDigest,
		ProjectID:            project.ID,
		VendorAddress:        project.VendorAddress,
		Amount:               uint64(payload.Amount),
		MilestoneDescription: strings.TrimSpace(payload.MilestoneDescription),
		InvoiceURL:           strings.TrimSpace(payload.InvoiceURL),
		PaidAt:               ensureTimestamp(evt.Timestamp),
	})
}
