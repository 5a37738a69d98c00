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

func (a Applier) applyOfficialRegistered(ctx context.Context, evt ledger.Event) error {
	payload := evt.OfficialRegistered
	address := strings.TrimSpace(payload.OfficialAddress)
	if address == "" {
		return unprocessablef("official address is required")
	}
	registeredAt := payload.Timestamp.Time()
	if registeredAt.IsZero() {
		registeredAt = evt.Timestamp
	}
	registeredAt = ensureTimestamp(registeredAt)
	// Registration only lands on chain after the contract's email domain
	// check, so a registered official is a verified official.
	return a.Officials.PutOfficial(ctx, storage.OfficialRecord{
		Address:      address,
		Department:   strings.TrimSpace(payload.Department),
		EmailDomain:  strings.TrimSpace(payload.EmailDomain),
		Verified:     true,
		RegisteredAt: registeredAt,
	})
}

func (a Applier) applySpendingRecordCreated(ctx context.Context, evt ledger.Event) error {
	payload := evt.SpendingRecordCreated
	recordID := strings.TrimSpace(payload.RecordID)
	if recordID == "" {
		return unprocessablef("spending record id is required")
	}
	submitter := strings.TrimSpace(payload.Submitter)
	if submitter == "" {
		return unprocessablef("spending record submitter is required")
	}
	if _, err := a.Officials.GetOfficial(ctx, submitter); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return unprocessablef("official %s not found", submitter)
		}
		return fmt.Errorf("resolve official %s: %w", submitter, err)
	}
	createdAt := payload.Timestamp.Time()
	if createdAt.IsZero() {
		createdAt = evt.Timestamp
	}
	createdAt = ensureTimestamp(createdAt)
	// The event payload carries no status; new records start planned.
	return a.SpendingRecords.PutSpendingRecord(ctx, storage.SpendingRecord{
		ID:              recordID,
		Submitter:       submitter,
		Department:      strings.TrimSpace(payload.Department),
		ProjectName:     strings.TrimSpace(payload.ProjectName),
		AllocatedAmount: uint64(payload.AllocatedAmount),
		SpentAmount:     uint64(payload.SpentAmount),
		Status:          spending.StatusPlanned,
		CreatedAt:       createdAt,
	})
}
