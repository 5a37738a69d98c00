package ledger

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDecodeMapsEveryKnownKind(t *testing.T) {
	cases := []struct {
		kind    Kind
		payload string
		check   func(t *testing.T, evt Event)
	}{
		{
			kind:    KindOfficialRegistered,
			payload: `{"official_address":"0xoff","department":"Health","email_domain":"health.gov","timestamp":"1700000000"}`,
			check: func(t *testing.T, evt Event) {
				if evt.OfficialRegistered == nil {
					t.Fatal("OfficialRegistered payload is nil")
				}
				if evt.OfficialRegistered.OfficialAddress != "0xoff" {
					t.Errorf("OfficialAddress = %q, want %q", evt.OfficialRegistered.OfficialAddress, "0xoff")
				}
				if got := evt.OfficialRegistered.Timestamp.Time(); got != time.Unix(1700000000, 0).UTC() {
					t.Errorf("Timestamp = %v, want 1700000000 epoch", got)
				}
			},
		},
		{
			kind:    KindBudgetPublished,
			payload: `{"government_body_id":"body-1","budget_id":"budget-1","title":"Roads","total_allocation":"1000000","year":2026,"sdg_focus":"9"}`,
			check: func(t *testing.T, evt Event) {
				if evt.BudgetPublished == nil {
					t.Fatal("BudgetPublished payload is nil")
				}
				if evt.BudgetPublished.TotalAllocation != 1000000 {
					t.Errorf("TotalAllocation = %d, want 1000000", evt.BudgetPublished.TotalAllocation)
				}
				if evt.BudgetPublished.Year != 2026 {
					t.Errorf("Year = %d, want 2026", evt.BudgetPublished.Year)
				}
				if evt.BudgetPublished.SDGFocus != 9 {
					t.Errorf("SDGFocus = %d, want 9", evt.BudgetPublished.SDGFocus)
				}
			},
		},
		{
			kind:    KindProjectAwarded,
			payload: `{"budget_id":"budget-1","project_id":"project-1","vendor_wallet":"0xvendor","awarded_amount":"500000"}`,
			check: func(t *testing.T, evt Event) {
				if evt.ProjectAwarded == nil {
					t.Fatal("ProjectAwarded payload is nil")
				}
				if evt.ProjectAwarded.AwardedAmount != 500000 {
					t.Errorf("AwardedAmount = %d, want 500000", evt.ProjectAwarded.AwardedAmount)
				}
			},
		},
		{
			kind:    KindSpendingRecordCreated,
			payload: `{"record_id":"record-1","submitter":"0xoff","allocated_amount":250,"spent_amount":"0"}`,
			check: func(t *testing.T, evt Event) {
				if evt.SpendingRecordCreated == nil {
					t.Fatal("SpendingRecordCreated payload is nil")
				}
				if evt.SpendingRecordCreated.AllocatedAmount != 250 {
					t.Errorf("AllocatedAmount = %d, want 250", evt.SpendingRecordCreated.AllocatedAmount)
				}
			},
		},
		{
			kind:    KindPaymentMade,
			payload: `{"project_id":"project-1","amount":"75000","milestone_description":"phase 1"}`,
			check: func(t *testing.T, evt Event) {
				if evt.PaymentMade == nil {
					t.Fatal("PaymentMade payload is nil")
				}
				if evt.PaymentMade.Amount != 75000 {
					t.Errorf("Amount = %d, want 75000", evt.PaymentMade.Amount)
				}
			},
		},
		{
			kind:    KindFeedbackSubmitted,
			payload: `{"feedback_id":"feedback-1","project_id":"project-1","rating":"4","content_hash":"abcd","is_anonymous":true}`,
			check: func(t *testing.T, evt Event) {
				if evt.FeedbackSubmitted == nil {
					t.Fatal("FeedbackSubmitted payload is nil")
				}
				if evt.FeedbackSubmitted.Rating != 4 {
					t.Errorf("Rating = %d, want 4", evt.FeedbackSubmitted.Rating)
				}
				if !evt.FeedbackSubmitted.IsAnonymous {
					t.Error("IsAnonymous = false, want true")
				}
			},
		},
	}

	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			env := Envelope{
				Type:        "0xpkg::spending::" + string(tc.kind),
				ParsedJSON:  json.RawMessage(tc.payload),
				ID:          EventID{TxDigest: "digest-1", EventSeq: "0"},
				TimestampMs: "1755000000000",
			}
			evt, err := Decode(env)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if evt.Kind != tc.kind {
				t.Fatalf("Kind = %q, want %q", evt.Kind, tc.kind)
			}
			if evt.TxDigest != "digest-1" || evt.EventSeq != "0" {
				t.Fatalf("id = %q/%q, want digest-1/0", evt.TxDigest, evt.EventSeq)
			}
			if evt.Timestamp != time.UnixMilli(1755000000000).UTC() {
				t.Fatalf("Timestamp = %v, want envelope timestamp", evt.Timestamp)
			}
			tc.check(t, evt)
		})
	}
}

func TestDecodeUnknownSuffix(t *testing.T) {
	_, err := Decode(Envelope{Type: "0xpkg::spending::VendorSuspended"})
	if !errors.Is(err, ErrUnknownEventType) {
		t.Fatalf("Decode() error = %v, want ErrUnknownEventType", err)
	}
}

func TestDecodeMalformedPayload(t *testing.T) {
	_, err := Decode(Envelope{
		Type:       "0xpkg::spending::BudgetPublished",
		ParsedJSON: json.RawMessage(`{"total_allocation":"-5"}`),
	})
	if err == nil {
		t.Fatal("Decode() succeeded with negative allocation, want error")
	}
	if errors.Is(err, ErrUnknownEventType) {
		t.Fatal("malformed payload reported as unknown type")
	}
}

func TestAmountUnmarshalJSON(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    Amount
		wantErr bool
	}{
		{name: "number", raw: `1000000`, want: 1000000},
		{name: "string", raw: `"1000000"`, want: 1000000},
		{name: "null", raw: `null`, want: 0},
		{name: "empty string", raw: `""`, want: 0},
		{name: "negative", raw: `"-5"`, wantErr: true},
		{name: "not a number", raw: `"ten"`, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var a Amount
			err := a.UnmarshalJSON([]byte(tc.raw))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("UnmarshalJSON(%s) succeeded, want error", tc.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("UnmarshalJSON(%s) error = %v", tc.raw, err)
			}
			if a != tc.want {
				t.Fatalf("amount = %d, want %d", a, tc.want)
			}
		})
	}
}

func TestEnvelopeTypeSuffix(t *testing.T) {
	cases := []struct {
		typ  string
		want string
	}{
		{"0xpkg::spending::BudgetPublished", "BudgetPublished"},
		{"BudgetPublished", "BudgetPublished"},
		{"  0xpkg::a::b::PaymentMade ", "PaymentMade"},
	}
	for _, tc := range cases {
		if got := (Envelope{Type: tc.typ}).TypeSuffix(); got != tc.want {
			t.Errorf("TypeSuffix(%q) = %q, want %q", tc.typ, got, tc.want)
		}
	}
}

func TestEnvelopeTimestamp(t *testing.T) {
	if got := (Envelope{TimestampMs: "1755000000000"}).Timestamp(); got != time.UnixMilli(1755000000000).UTC() {
		t.Errorf("Timestamp() = %v, want 2025-08-12 epoch millis", got)
	}
	for _, raw := range []string{"", "garbage", "-1", "0"} {
		if got := (Envelope{TimestampMs: raw}).Timestamp(); !got.IsZero() {
			t.Errorf("Timestamp(%q) = %v, want zero time", raw, got)
		}
	}
}
