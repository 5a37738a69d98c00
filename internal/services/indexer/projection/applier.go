// Package projection applies decoded ledger events to the read-model stores.
// Every handler is an idempotent upsert keyed on the entity's ledger-assigned
// id, so replaying a stream prefix converges to the same rows. Handlers gate
// on referenced entities existing first: an event whose prerequisite is
// missing fails with an unprocessable error and is retained as a dead letter
// by the caller rather than written with a dangling reference.
package projection

import (
	"errors"
	"fmt"
	"time"

	"github.com/civicledger/civicledger/internal/services/indexer/storage"
)

// ErrUnprocessable marks an event the projection refuses to apply: a missing
// prerequisite entity or a payload value outside its domain. The subscription
// loop dead-letters these; transport and storage errors are returned bare and
// abort the stream instead.
var ErrUnprocessable = errors.New("event unprocessable")

// unprocessablef wraps a reason in ErrUnprocessable so callers can match it
// with errors.Is while keeping the specific reason for the dead-letter row.
func unprocessablef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnprocessable, fmt.Sprintf(format, args...))
}

// Applier applies decoded ledger events to projection stores.
type Applier struct {
	// Bodies resolves government bodies when gating budget writes.
	Bodies storage.BodyStore
	// Officials writes official read models.
	Officials storage.OfficialStore
	// Vendors resolves vendors when gating project awards.
	Vendors storage.VendorStore
	// Budgets writes budget read models.
	Budgets storage.BudgetStore
	// Projects writes project read models.
	Projects storage.ProjectStore
	// SpendingRecords writes the flattened spending-record lineage.
	SpendingRecords storage.SpendingRecordStore
	// Payments writes the append-only payment log.
	Payments storage.PaymentStore
	// Feedback writes the append-only feedback log.
	Feedback storage.FeedbackStore
}

// ensureTimestamp normalizes timestamps so projections always persist UTC,
// defaulting to now for payloads that do not set time.
func ensureTimestamp(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Now().UTC()
	}
	return ts.UTC()
}
