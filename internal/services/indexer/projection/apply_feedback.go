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

func (a Applier) applyFeedbackSubmitted(ctx context.Context, evt ledger.Event) error {
	payload := evt.FeedbackSubmitted
	feedbackID := strings.TrimSpace(payload.FeedbackID)
	if feedbackID == "" {
		return unprocessablef("feedback id is required")
	}
	projectID := strings.TrimSpace(payload.ProjectID)
	if projectID == "" {
		return unprocessablef("project id is required")
	}
	rating := int(payload.Rating)
	if !spending.IsValidRating(rating) {
		return unprocessablef("rating %d out of range", rating)
	}
	if err := a.resolveFeedbackTarget(ctx, projectID); err != nil {
		return err
	}
	submitter := strings.TrimSpace(payload.Submitter)
	if payload.IsAnonymous {
		submitter = ""
	}
	submittedAt := payload.Timestamp.Time()
	if submittedAt.IsZero() {
		submittedAt = evt.Timestamp
	}
	return a.Feedback.PutFeedback(ctx, storage.FeedbackRecord{
		ID:          feedbackID,
		ProjectID:   projectID,
		Rating:      rating,
		ContentHash: strings.TrimSpace(payload.ContentHash),
		Anonymous:   payload.IsAnonymous,
		Submitter:   submitter,
		SubmittedAt: ensureTimestamp(submittedAt),
	})
}

// resolveFeedbackTarget checks the referenced project exists in either
// lineage: awarded projects first, then flattened spending records.
func (a Applier) resolveFeedbackTarget(ctx context.Context, projectID string) error {
	_, err := a.Projects.GetProject(ctx, projectID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("resolve project %s: %w", projectID, err)
	}
	_, err = a.SpendingRecords.GetSpendingRecord(ctx, projectID)
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return unprocessablef("project %s not found", projectID)
	}
	return fmt.Errorf("resolve spending record %s: %w", projectID, err)
}
