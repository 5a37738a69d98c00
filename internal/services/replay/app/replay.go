// Package app reprocesses dead-lettered ledger events. Replay is meant for
// the common recovery case: an event arrived before its prerequisite (a seed
// row or an earlier event) and can succeed once the gap is filled.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/civicledger/civicledger/internal/ledger"
	"github.com/civicledger/civicledger/internal/services/indexer/projection"
	"github.com/civicledger/civicledger/internal/services/indexer/storage"
	"github.com/civicledger/civicledger/internal/services/indexer/storage/sqlite"
)

// RuntimeConfig controls a replay pass.
type RuntimeConfig struct {
	DBPath string
	// Limit bounds how many pending letters one pass attempts.
	Limit int
}

const defaultReplayLimit = 500

// Run opens the store and replays pending dead letters once, oldest first.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return fmt.Errorf("database path is required")
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open read-model store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close read-model store: %v", closeErr)
		}
	}()

	applier := projection.Applier{
		Bodies:          store,
		Officials:       store,
		Vendors:         store,
		Budgets:         store,
		Projects:        store,
		SpendingRecords: store,
		Payments:        store,
		Feedback:        store,
	}
	result, err := Replay(ctx, store, applier, cfg.Limit, log.Printf)
	if err != nil {
		return err
	}
	log.Printf("replay: replayed=%d still_failing=%d", result.Replayed, result.StillFailing)
	return nil
}

// Result summarizes one replay pass.
type Result struct {
	Replayed     int
	StillFailing int
}

// Replay re-applies pending dead letters through the projection. Letters that
// apply cleanly are stamped replayed; letters that fail again for a domain
// reason stay pending with an updated reason. Infrastructure failures abort
// the pass so nothing is stamped incorrectly.
func Replay(ctx context.Context, letters storage.DeadLetterStore, applier projection.Applier, limit int, logf func(format string, args ...any)) (Result, error) {
	if logf == nil {
		logf = log.Printf
	}
	if limit <= 0 {
		limit = defaultReplayLimit
	}

	pending, err := letters.ListPendingDeadLetters(ctx, limit)
	if err != nil {
		return Result{}, fmt.Errorf("list pending dead letters: %w", err)
	}

	var result Result
	for _, letter := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		replayErr := replayLetter(ctx, applier, letter)
		if replayErr == nil {
			if err := letters.MarkDeadLetterReplayed(ctx, letter.ID, time.Now().UTC()); err != nil {
				return result, fmt.Errorf("mark dead letter %d replayed: %w", letter.ID, err)
			}
			result.Replayed++
			continue
		}
		if !isDomainFailure(replayErr) {
			return result, fmt.Errorf("replay dead letter %d: %w", letter.ID, replayErr)
		}
		result.StillFailing++
		logf("replay: letter %d still failing: %v", letter.ID, replayErr)
		if err := letters.UpdateDeadLetterReason(ctx, letter.ID, replayErr.Error()); err != nil {
			return result, fmt.Errorf("update dead letter %d reason: %w", letter.ID, err)
		}
	}
	return result, nil
}

func replayLetter(ctx context.Context, applier projection.Applier, letter storage.DeadLetterRecord) error {
	var env ledger.Envelope
	if err := json.Unmarshal(letter.Envelope, &env); err != nil {
		return fmt.Errorf("%w: decode stored envelope: %v", projection.ErrUnprocessable, err)
	}
	evt, err := ledger.Decode(env)
	if err != nil {
		return fmt.Errorf("%w: %v", projection.ErrUnprocessable, err)
	}
	return applier.Apply(ctx, evt)
}

// isDomainFailure distinguishes letters that should stay pending from
// infrastructure errors that should abort the pass.
func isDomainFailure(err error) bool {
	return errors.Is(err, projection.ErrUnprocessable)
}
