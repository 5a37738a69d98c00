package app

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/civicledger/civicledger/internal/ledger"
	"github.com/civicledger/civicledger/internal/services/indexer/projection"
	"github.com/civicledger/civicledger/internal/services/indexer/storage"
	"github.com/civicledger/civicledger/internal/services/indexer/storage/sqlite"
)

func openReplayStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(t.TempDir() + "/civicledger.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func fullApplier(store *sqlite.Store) projection.Applier {
	return projection.Applier{
		Bodies:          store,
		Officials:       store,
		Vendors:         store,
		Budgets:         store,
		Projects:        store,
		SpendingRecords: store,
		Payments:        store,
		Feedback:        store,
	}
}

func spendingRecordEnvelope(t *testing.T, digest, recordID, submitter string) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"record_id":        recordID,
		"submitter":        submitter,
		"department":       "Health",
		"project_name":     "Clinic Upgrade",
		"allocated_amount": "80000",
		"spent_amount":     "0",
		"timestamp":        "1767225600",
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	raw, err := json.Marshal(ledger.Envelope{
		Type:        "0xpkg::spending::SpendingRecordCreated",
		ParsedJSON:  payload,
		ID:          ledger.EventID{TxDigest: digest, EventSeq: "0"},
		TimestampMs: "1767225600000",
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return raw
}

func TestReplayAppliesOnceDependencyExists(t *testing.T) {
	store := openReplayStore(t)
	ctx := context.Background()

	// The record arrived before its submitting official; it was dead-lettered.
	id, err := store.RecordDeadLetter(ctx, storage.DeadLetterRecord{
		EventType: "0xpkg::spending::SpendingRecordCreated",
		TxDigest:  "digest-1",
		Reason:    "official 0xofficial not found",
		Envelope:  spendingRecordEnvelope(t, "digest-1", "record-1", "0xofficial"),
	})
	if err != nil {
		t.Fatalf("record dead letter: %v", err)
	}

	// First pass: the official still does not exist, so the letter stays.
	result, err := Replay(ctx, store, fullApplier(store), 10, func(string, ...any) {})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if result.Replayed != 0 || result.StillFailing != 1 {
		t.Fatalf("result = %+v, want 0 replayed, 1 still failing", result)
	}

	if err := store.PutOfficial(ctx, storage.OfficialRecord{
		Address:      "0xofficial",
		Department:   "Health",
		RegisteredAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("put official: %v", err)
	}

	// Second pass: the prerequisite exists and the replay lands.
	result, err = Replay(ctx, store, fullApplier(store), 10, func(string, ...any) {})
	if err != nil {
		t.Fatalf("replay after seed: %v", err)
	}
	if result.Replayed != 1 || result.StillFailing != 0 {
		t.Fatalf("result = %+v, want 1 replayed, 0 still failing", result)
	}

	record, err := store.GetSpendingRecord(ctx, "record-1")
	if err != nil {
		t.Fatalf("get spending record: %v", err)
	}
	if record.Submitter != "0xofficial" {
		t.Fatalf("submitter = %q, want 0xofficial", record.Submitter)
	}

	pending, err := store.ListPendingDeadLetters(ctx, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending len = %d, want 0 after replay of %d", len(pending), id)
	}
}

func TestReplayMarksCorruptEnvelopeStillFailing(t *testing.T) {
	store := openReplayStore(t)
	ctx := context.Background()

	id, err := store.RecordDeadLetter(ctx, storage.DeadLetterRecord{
		EventType: "0xpkg::spending::SpendingRecordCreated",
		TxDigest:  "digest-1",
		Reason:    "original reason",
		Envelope:  []byte("{not json"),
	})
	if err != nil {
		t.Fatalf("record dead letter: %v", err)
	}

	result, err := Replay(ctx, store, fullApplier(store), 10, func(string, ...any) {})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if result.StillFailing != 1 {
		t.Fatalf("still failing = %d, want 1", result.StillFailing)
	}

	pending, err := store.ListPendingDeadLetters(ctx, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != id {
		t.Fatalf("pending = %+v, want letter %d still pending", pending, id)
	}
	if pending[0].Reason == "original reason" {
		t.Fatal("reason not updated after failed replay")
	}
}
