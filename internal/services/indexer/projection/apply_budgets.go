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

func (a Applier) applyBudgetPublished(ctx context.Context, evt ledger.Event) error {
	payload := evt.BudgetPublished
	budgetID := strings.TrimSpace(payload.BudgetID)
	if budgetID == "" {
		return unprocessablef("budget id is required")
	}
	bodyID := strings.TrimSpace(payload.GovernmentBodyID)
	if bodyID == "" {
		return unprocessablef("government body id is required")
	}
	if _, err := a.Bodies.GetBody(ctx, bodyID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return unprocessablef("government body %s not found", bodyID)
		}
		return fmt.Errorf("resolve government body %s: %w", bodyID, err)
	}
	sdgFocus := int(payload.SDGFocus)
	if !spending.IsValidSDGFocus(sdgFocus) {
		return unprocessablef("sdg focus %d out of range", sdgFocus)
	}
	return a.Budgets.PutBudget(ctx, storage.BudgetRecord{
		ID:                budgetID,
		BodyID:            bodyID,
		Title:             strings.TrimSpace(payload.Title),
		TotalAllocation:   uint64(payload.TotalAllocation),
		FiscalYear:        int(payload.Year),
		SDGFocus:          sdgFocus,
		SourceDocumentURL: strings.TrimSpace(payload.SourceDocumentURL),
		CreatedAt:         ensureTimestamp(evt.Timestamp),
	})
}
