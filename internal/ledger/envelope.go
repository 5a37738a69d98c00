// Package ledger consumes the event stream of the external spending ledger.
//
// The ledger emits one envelope per contract event. Delivery is at-least-once
// and may be duplicated; the read model absorbs replays with upserts keyed on
// ledger-assigned ids. Envelopes carry a module-path type string and an
// event-specific JSON payload which is decoded once, at this boundary, into a
// closed union of known event kinds.
package ledger

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EventID identifies an event within the transaction that emitted it.
type EventID struct {
	// TxDigest is the ledger transaction digest.
	TxDigest string `json:"txDigest"`
	// EventSeq is the event's position within the transaction.
	EventSeq string `json:"eventSeq"`
}

// Envelope is the raw event as delivered by the ledger RPC node.
type Envelope struct {
	// Type is the full module path of the event, ending in "::EventName".
	Type string `json:"type"`
	// ParsedJSON holds the event-specific payload.
	ParsedJSON json.RawMessage `json:"parsedJson"`
	// ID locates the event on the ledger.
	ID EventID `json:"id"`
	// TimestampMs is the checkpoint timestamp as a string-encoded integer.
	TimestampMs string `json:"timestampMs"`
}

// TypeSuffix returns the trailing "::EventName" segment of the type string.
func (e Envelope) TypeSuffix() string {
	t := strings.TrimSpace(e.Type)
	if idx := strings.LastIndex(t, "::"); idx >= 0 {
		return t[idx+2:]
	}
	return t
}

// Timestamp parses the envelope's millisecond timestamp. Returns the zero
// time when the field is absent or malformed; callers fall back to payload
// timestamps or the current time.
func (e Envelope) Timestamp() time.Time {
	raw := strings.TrimSpace(e.TimestampMs)
	if raw == "" {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// Cursor marks a position in the ledger event stream for resume-after-restart.
type Cursor struct {
	TxDigest string `json:"txDigest"`
	EventSeq string `json:"eventSeq"`
}

// IsZero reports whether the cursor points at the start of the stream.
func (c Cursor) IsZero() bool {
	return strings.TrimSpace(c.TxDigest) == ""
}

// Amount is a non-negative monetary value in the ledger's base unit.
// Payload numerics arrive as decimal strings or JSON numbers depending on
// the emitting contract version, so Amount decodes both forms.
type Amount uint64

// UnmarshalJSON accepts `123`, `"123"`, and null (zero).
func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		*a = 0
		return nil
	}
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		raw = raw[1 : len(raw)-1]
	}
	if raw == "" {
		*a = 0
		return nil
	}
	if strings.HasPrefix(raw, "-") {
		return fmt.Errorf("negative amount: %s", raw)
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("parse amount %q: %w", raw, err)
	}
	*a = Amount(value)
	return nil
}

// EpochSeconds is a timestamp encoded as seconds since the Unix epoch,
// tolerating both string and number encodings.
type EpochSeconds int64

// UnmarshalJSON accepts `1700000000`, `"1700000000"`, and null (zero).
func (s *EpochSeconds) UnmarshalJSON(data []byte) error {
	var amount Amount
	if err := amount.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("parse epoch seconds: %w", err)
	}
	*s = EpochSeconds(amount)
	return nil
}

// Time converts the epoch value to UTC, zero when unset.
func (s EpochSeconds) Time() time.Time {
	if s <= 0 {
		return time.Time{}
	}
	return time.Unix(int64(s), 0).UTC()
}
