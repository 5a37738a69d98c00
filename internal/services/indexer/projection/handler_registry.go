package projection

import (
	"context"
	"fmt"
	"sort"

	"github.com/civicledger/civicledger/internal/ledger"
)

// storeRequirement specifies which stores a handler depends on. Requirements
// are checked before dispatch; the handler will not execute if any required
// store is nil.
type storeRequirement uint16

const (
	needBodies storeRequirement = 1 << iota
	needOfficials
	needVendors
	needBudgets
	needProjects
	needSpendingRecords
	needPayments
	needFeedback
)

// handlerEntry declares the store preconditions and apply function for one
// event kind.
type handlerEntry struct {
	stores storeRequirement
	apply  func(Applier, context.Context, ledger.Event) error
}

// handlers maps each event kind to its handler entry. The map is the single
// source of truth for which kinds the projection handles; kinds outside it
// never reach Apply because stream decoding already rejects them.
var handlers = map[ledger.Kind]handlerEntry{
	ledger.KindOfficialRegistered: {
		stores: needOfficials,
		apply:  func(a Applier, ctx context.Context, evt ledger.Event) error { return a.applyOfficialRegistered(ctx, evt) },
	},
	ledger.KindBudgetPublished: {
		stores: needBodies | needBudgets,
		apply:  func(a Applier, ctx context.Context, evt ledger.Event) error { return a.applyBudgetPublished(ctx, evt) },
	},
	ledger.KindProjectAwarded: {
		stores: needBudgets | needVendors | needProjects,
		apply:  func(a Applier, ctx context.Context, evt ledger.Event) error { return a.applyProjectAwarded(ctx, evt) },
	},
	ledger.KindSpendingRecordCreated: {
		stores: needOfficials | needSpendingRecords,
		apply: func(a Applier, ctx context.Context, evt ledger.Event) error {
			return a.applySpendingRecordCreated(ctx, evt)
		},
	},
	ledger.KindPaymentMade: {
		stores: needProjects | needPayments,
		apply:  func(a Applier, ctx context.Context, evt ledger.Event) error { return a.applyPaymentMade(ctx, evt) },
	},
	ledger.KindFeedbackSubmitted: {
		stores: needProjects | needSpendingRecords | needFeedback,
		apply:  func(a Applier, ctx context.Context, evt ledger.Event) error { return a.applyFeedbackSubmitted(ctx, evt) },
	},
}

// HandledKinds returns the sorted list of event kinds the projection handles.
func HandledKinds() []ledger.Kind {
	kinds := make([]ledger.Kind, 0, len(handlers))
	for k := range handlers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		return string(kinds[i]) < string(kinds[j])
	})
	return kinds
}

// Apply dispatches a decoded event to its handler after checking store
// preconditions. Unprocessable events wrap ErrUnprocessable; anything else is
// an infrastructure failure.
func (a Applier) Apply(ctx context.Context, evt ledger.Event) error {
	h, ok := handlers[evt.Kind]
	if !ok {
		return fmt.Errorf("unhandled event kind: %s", evt.Kind)
	}
	if err := a.validatePreconditions(h); err != nil {
		return err
	}
	return h.apply(a, ctx, evt)
}

// validatePreconditions checks that the applier's stores satisfy the
// handler's declared requirements.
func (a Applier) validatePreconditions(h handlerEntry) error {
	if h.stores&needBodies != 0 && a.Bodies == nil {
		return fmt.Errorf("body store is not configured")
	}
	if h.stores&needOfficials != 0 && a.Officials == nil {
		return fmt.Errorf("official store is not configured")
	}
	if h.stores&needVendors != 0 && a.Vendors == nil {
		return fmt.Errorf("vendor store is not configured")
	}
	if h.stores&needBudgets != 0 && a.Budgets == nil {
		return fmt.Errorf("budget store is not configured")
	}
	if h.stores&needProjects != 0 && a.Projects == nil {
		return fmt.Errorf("project store is not configured")
	}
	if h.stores&needSpendingRecords != 0 && a.SpendingRecords == nil {
		return fmt.Errorf("spending record store is not configured")
	}
	if h.stores&needPayments != 0 && a.Payments == nil {
		return fmt.Errorf("payment store is not configured")
	}
	if h.stores&needFeedback != 0 && a.Feedback == nil {
		return fmt.Errorf("feedback store is not configured")
	}
	return nil
}
