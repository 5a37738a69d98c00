// Package app runs the indexer: a single consumer that backfills missed
// ledger events from the stored cursor, then follows the live stream,
// applying each event to the read model in delivery order.
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
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// EventSource is the subset of the ledger client the loop consumes.
type EventSource interface {
	SubscribeEvents(ctx context.Context, packageID string, fn func(ledger.Envelope) error) error
	QueryEvents(ctx context.Context, packageID string, after ledger.Cursor, limit int) ([]ledger.Envelope, ledger.Cursor, bool, error)
}

// LoopConfig controls the subscription loop.
type LoopConfig struct {
	// PackageID scopes the ledger event filter to one contract package.
	PackageID string
	// ReconnectBackoff is the initial delay before re-dialing a dropped
	// subscription; it doubles per consecutive failure up to ReconnectMaxDelay.
	ReconnectBackoff time.Duration
	// ReconnectMaxDelay caps the reconnect delay.
	ReconnectMaxDelay time.Duration
	// BackfillPageSize bounds each historical query page.
	BackfillPageSize int
}

const (
	defaultReconnectBackoff  = time.Second
	defaultReconnectMaxDelay = time.Minute
	defaultBackfillPageSize  = 100
)

func (c LoopConfig) normalized() LoopConfig {
	if c.ReconnectBackoff <= 0 {
		c.ReconnectBackoff = defaultReconnectBackoff
	}
	if c.ReconnectMaxDelay < c.ReconnectBackoff {
		c.ReconnectMaxDelay = defaultReconnectMaxDelay
	}
	if c.BackfillPageSize <= 0 {
		c.BackfillPageSize = defaultBackfillPageSize
	}
	return c
}

// Loop is the indexer's event consumer. Events are handled strictly in
// delivery order; the cursor advances only after an event is either applied,
// dead-lettered, or skipped as unknown, so a crash replays at-least-once into
// idempotent upserts.
type Loop struct {
	source      EventSource
	applier     projection.Applier
	deadLetters storage.DeadLetterStore
	cursors     storage.CursorStore
	cfg         LoopConfig
	logf        func(format string, args ...any)
	tracer      trace.Tracer

	processed    int64
	deadLettered int64
	skipped      int64
}

// NewLoop builds a Loop. logf defaults to log.Printf.
func NewLoop(source EventSource, applier projection.Applier, deadLetters storage.DeadLetterStore, cursors storage.CursorStore, cfg LoopConfig, logf func(format string, args ...any)) *Loop {
	if logf == nil {
		logf = log.Printf
	}
	return &Loop{
		source:      source,
		applier:     applier,
		deadLetters: deadLetters,
		cursors:     cursors,
		cfg:         cfg.normalized(),
		logf:        logf,
		tracer:      otel.Tracer("civicledger/indexer"),
	}
}

// Run consumes the ledger stream until the context is canceled. Each pass
// backfills from the stored cursor over HTTP, then follows the live WebSocket
// stream; a transport drop triggers a bounded-backoff reconnect that resumes
// from the cursor, never from the stream head.
func (l *Loop) Run(ctx context.Context) error {
	if l.source == nil {
		return fmt.Errorf("event source is required")
	}
	if strings.TrimSpace(l.cfg.PackageID) == "" {
		return fmt.Errorf("ledger package id is required")
	}

	delay := l.cfg.ReconnectBackoff
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		handledBefore := l.processed + l.deadLettered + l.skipped
		err := l.consumeOnce(ctx)
		if err == nil {
			// Subscription ended cleanly, which only happens on cancellation.
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		if l.processed+l.deadLettered+l.skipped > handledBefore {
			// The session made progress before dropping; a healthy stream
			// that hiccups should not inherit the previous outage's delay.
			delay = l.cfg.ReconnectBackoff
		}

		l.logf("indexer: stream interrupted, reconnecting in %s: %v", delay, err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay *= 2
		if delay > l.cfg.ReconnectMaxDelay {
			delay = l.cfg.ReconnectMaxDelay
		}
	}
}

// consumeOnce backfills then follows the live stream until it drops.
func (l *Loop) consumeOnce(ctx context.Context) error {
	if err := l.backfill(ctx); err != nil {
		return err
	}
	return l.source.SubscribeEvents(ctx, l.cfg.PackageID, func(env ledger.Envelope) error {
		return l.handleEnvelope(ctx, env)
	})
}

// backfill drains the historical gap between the stored cursor and the stream
// head before live delivery starts.
func (l *Loop) backfill(ctx context.Context) error {
	after, err := l.loadCursor(ctx)
	if err != nil {
		return err
	}
	for {
		envelopes, next, hasMore, err := l.source.QueryEvents(ctx, l.cfg.PackageID, after, l.cfg.BackfillPageSize)
		if err != nil {
			return fmt.Errorf("backfill ledger events: %w", err)
		}
		for _, env := range envelopes {
			if err := l.handleEnvelope(ctx, env); err != nil {
				return err
			}
		}
		if !hasMore {
			return nil
		}
		after = next
	}
}

func (l *Loop) loadCursor(ctx context.Context) (ledger.Cursor, error) {
	if l.cursors == nil {
		return ledger.Cursor{}, nil
	}
	record, err := l.cursors.GetCursor(ctx, l.cfg.PackageID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ledger.Cursor{}, nil
		}
		return ledger.Cursor{}, fmt.Errorf("load ledger cursor: %w", err)
	}
	return ledger.Cursor{TxDigest: record.TxDigest, EventSeq: record.EventSeq}, nil
}

// handleEnvelope processes one envelope to completion. Only infrastructure
// failures return an error (and leave the cursor untouched so the event is
// redelivered); domain failures are dead-lettered and the stream continues.
func (l *Loop) handleEnvelope(ctx context.Context, env ledger.Envelope) error {
	ctx, span := l.tracer.Start(ctx, "indexer.handle_event", trace.WithAttributes(
		attribute.String("ledger.event_type", env.Type),
		attribute.String("ledger.tx_digest", env.ID.TxDigest),
		attribute.String("ledger.event_seq", env.ID.EventSeq),
	))
	defer span.End()

	evt, err := ledger.Decode(env)
	switch {
	case errors.Is(err, ledger.ErrUnknownEventType):
		// The package filter is broader than the handled set; unknown
		// suffixes are expected.
		l.skipped++
		l.logf("indexer: skipping unknown event type %s (tx %s)", env.Type, env.ID.TxDigest)
	case err != nil:
		l.deadLettered++
		span.SetStatus(codes.Error, "malformed payload")
		l.logf("indexer: dead-lettering malformed event %s (tx %s): %v", env.Type, env.ID.TxDigest, err)
		if dlErr := l.recordDeadLetter(ctx, env, err); dlErr != nil {
			return dlErr
		}
	default:
		if applyErr := l.applier.Apply(ctx, evt); applyErr != nil {
			if !errors.Is(applyErr, projection.ErrUnprocessable) {
				span.SetStatus(codes.Error, "apply failed")
				return fmt.Errorf("apply %s event (tx %s): %w", evt.Kind, evt.TxDigest, applyErr)
			}
			l.deadLettered++
			span.SetStatus(codes.Error, "unprocessable")
			l.logf("indexer: dead-lettering %s event (tx %s): %v", evt.Kind, evt.TxDigest, applyErr)
			if dlErr := l.recordDeadLetter(ctx, env, applyErr); dlErr != nil {
				return dlErr
			}
		} else {
			l.processed++
		}
	}

	return l.saveCursor(ctx, env)
}

func (l *Loop) recordDeadLetter(ctx context.Context, env ledger.Envelope, cause error) error {
	if l.deadLetters == nil {
		return nil
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode dead letter envelope: %w", err)
	}
	_, err = l.deadLetters.RecordDeadLetter(ctx, storage.DeadLetterRecord{
		EventType:  env.Type,
		TxDigest:   env.ID.TxDigest,
		Reason:     cause.Error(),
		Envelope:   raw,
		ReceivedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("record dead letter: %w", err)
	}
	return nil
}

func (l *Loop) saveCursor(ctx context.Context, env ledger.Envelope) error {
	if l.cursors == nil {
		return nil
	}
	if strings.TrimSpace(env.ID.TxDigest) == "" {
		return nil
	}
	err := l.cursors.PutCursor(ctx, storage.CursorRecord{
		PackageID: l.cfg.PackageID,
		TxDigest:  env.ID.TxDigest,
		EventSeq:  env.ID.EventSeq,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("save ledger cursor: %w", err)
	}
	return nil
}

// Stats reports loop counters for shutdown logging.
func (l *Loop) Stats() (processed, deadLettered, skipped int64) {
	return l.processed, l.deadLettered, l.skipped
}
