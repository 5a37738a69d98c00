package projection

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/civicledger/civicledger/internal/ledger"
	"github.com/civicledger/civicledger/internal/services/indexer/domain/spending"
	"github.com/civicledger/civicledger/internal/services/indexer/storage"
)

func (a Applier) applyProjectAwarded(ctx context.Context, evt ledger.Event) error {
	payload := evt.ProjectAwarded
	projectID := strings.TrimSpace(payload.ProjectID)
	if projectID == "" {
		return unprocessablef("project id is required")
	}
	budgetID := strings.TrimSpace(payload.BudgetID)
	if budgetID == "" {
		return unprocessablef("budget id is required")
	}
	vendorWallet := strings.TrimSpace(payload.VendorWallet)
	if vendorWallet == "" {
		return unprocessablef("vendor wallet is required")
	}
	if _, err := a.Budgets.GetBudget(ctx, budgetID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return unprocessablef("budget %s not found", budgetID)
		}
		return fmt.Errorf("resolve budget %s: %w", budgetID, err)
	}
	if _, err := a.Vendors.GetVendor(ctx, vendorWallet); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return unprocessablef("vendor %s not found", vendorWallet)
		}
		return fmt.Errorf("resolve vendor %s: %w", vendorWallet, err)
	}
	// Awarded projects enter execution immediately; spent amount accumulates
	// only through later amendment events, never from payments.
	return a.Projects.PutProject(ctx, storage.ProjectRecord{
		ID:                 projectID,
		BudgetID:           budgetID,
		VendorAddress:      vendorWallet,
		Title:              strings.TrimSpace(payload.Title),
		Description:        strings.TrimSpace(payload.Description),
		AwardedAmount:      uint64(payload.AwardedAmount),
		Status:             spending.StatusOngoing,
		Location:           strings.TrimSpace(payload.Location),
		Contractor:         strings.TrimSpace(payload.Contractor),
		TenderDocumentsURL: strings.TrimSpace(payload.TenderDocumentsURL),
		CreatedAt:          ensureTimestamp(evt.Timestamp),
	})
}
