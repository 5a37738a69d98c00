package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Kind identifies a known domain event emitted by the spending contract.
type Kind string

const (
	// KindOfficialRegistered records a government official registering a wallet.
	KindOfficialRegistered Kind = "OfficialRegistered"
	// KindBudgetPublished records a government body publishing a budget.
	KindBudgetPublished Kind = "BudgetPublished"
	// KindProjectAwarded records a project awarded under a budget to a vendor.
	KindProjectAwarded Kind = "ProjectAwarded"
	// KindSpendingRecordCreated records a department-level spending record.
	KindSpendingRecordCreated Kind = "SpendingRecordCreated"
	// KindPaymentMade records a payment against a project milestone.
	KindPaymentMade Kind = "PaymentMade"
	// KindFeedbackSubmitted records citizen feedback on a project.
	KindFeedbackSubmitted Kind = "FeedbackSubmitted"
)

// ErrUnknownEventType marks envelopes whose type suffix is not in the closed
// event registry. The package filter is broader than the handled set, so
// unknown suffixes are expected and dropped with a warning, never an error.
var ErrUnknownEventType = errors.New("unknown event type")

// OfficialRegistered is the payload of an official registration event.
type OfficialRegistered struct {
	OfficialAddress string       `json:"official_address"`
	Department      string       `json:"department"`
	EmailDomain     string       `json:"email_domain"`
	Timestamp       EpochSeconds `json:"timestamp"`
}

// BudgetPublished is the payload of a budget publication event.
type BudgetPublished struct {
	GovernmentBodyID  string `json:"government_body_id"`
	BudgetID          string `json:"budget_id"`
	Title             string `json:"title"`
	TotalAllocation   Amount `json:"total_allocation"`
	Year              Amount `json:"year"`
	SDGFocus          Amount `json:"sdg_focus"`
	SourceDocumentURL string `json:"source_document_url"`
}

// ProjectAwarded is the payload of a project award event.
type ProjectAwarded struct {
	BudgetID           string `json:"budget_id"`
	ProjectID          string `json:"project_id"`
	VendorWallet       string `json:"vendor_wallet"`
	Title              string `json:"title"`
	Description        string `json:"description"`
	AwardedAmount      Amount `json:"awarded_amount"`
	TenderDocumentsURL string `json:"tender_documents_url"`
	Location           string `json:"location"`
	Contractor         string `json:"contractor"`
}

// SpendingRecordCreated is the payload of the flattened spending-record event.
type SpendingRecordCreated struct {
	RecordID        string       `json:"record_id"`
	Submitter       string       `json:"submitter"`
	Department      string       `json:"department"`
	ProjectName     string       `json:"project_name"`
	AllocatedAmount Amount       `json:"allocated_amount"`
	SpentAmount     Amount       `json:"spent_amount"`
	Timestamp       EpochSeconds `json:"timestamp"`
}

// PaymentMade is the payload of a milestone payment event. The idempotency
// key for payments is the envelope's transaction digest, not a payload field:
// the same payment cannot occur twice within one ledger transaction.
type PaymentMade struct {
	ProjectID            string `json:"project_id"`
	Amount               Amount `json:"amount"`
	MilestoneDescription string `json:"milestone_description"`
	InvoiceURL           string `json:"invoice_url"`
}

// FeedbackSubmitted is the payload of a citizen feedback event. The message
// content never leaves the chain; only its hash is emitted.
type FeedbackSubmitted struct {
	FeedbackID  string       `json:"feedback_id"`
	ProjectID   string       `json:"project_id"`
	Rating      Amount       `json:"rating"`
	ContentHash string       `json:"content_hash"`
	IsAnonymous bool         `json:"is_anonymous"`
	Submitter   string       `json:"submitter"`
	Timestamp   EpochSeconds `json:"timestamp"`
}

// Event is the decoded form of an envelope: a closed union with exactly one
// payload pointer set, matching Kind. Decoding happens once at the stream
// boundary so downstream dispatch is exhaustive rather than string-matched.
type Event struct {
	Kind      Kind
	TxDigest  string
	EventSeq  string
	Timestamp time.Time

	OfficialRegistered    *OfficialRegistered
	BudgetPublished       *BudgetPublished
	ProjectAwarded        *ProjectAwarded
	SpendingRecordCreated *SpendingRecordCreated
	PaymentMade           *PaymentMade
	FeedbackSubmitted     *FeedbackSubmitted
}

// Decode maps an envelope to a typed event by matching the trailing segment
// of its type string against the known event kinds. Unknown suffixes return
// ErrUnknownEventType; malformed payloads return a decode error carrying the
// offending kind.
func Decode(env Envelope) (Event, error) {
	evt := Event{
		TxDigest:  env.ID.TxDigest,
		EventSeq:  env.ID.EventSeq,
		Timestamp: env.Timestamp(),
	}

	payload := env.ParsedJSON
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	switch suffix := env.TypeSuffix(); suffix {
	case string(KindOfficialRegistered):
		var p OfficialRegistered
		if err := json.Unmarshal(payload, &p); err != nil {
			return Event{}, fmt.Errorf("decode %s payload: %w", suffix, err)
		}
		evt.Kind = KindOfficialRegistered
		evt.OfficialRegistered = &p
	case string(KindBudgetPublished):
		var p BudgetPublished
		if err := json.Unmarshal(payload, &p); err != nil {
			return Event{}, fmt.Errorf("decode %s payload: %w", suffix, err)
		}
		evt.Kind = KindBudgetPublished
		evt.BudgetPublished = &p
	case string(KindProjectAwarded):
		var p ProjectAwarded
		if err := json.Unmarshal(payload, &p); err != nil {
			return Event{}, fmt.Errorf("decode %s payload: %w", suffix, err)
		}
		evt.Kind = KindProjectAwarded
		evt.ProjectAwarded = &p
	case string(KindSpendingRecordCreated):
		var p SpendingRecordCreated
		if err := json.Unmarshal(payload, &p); err != nil {
			return Event{}, fmt.Errorf("decode %s payload: %w", suffix, err)
		}
		evt.Kind = KindSpendingRecordCreated
		evt.SpendingRecordCreated = &p
	case string(KindPaymentMade):
		var p PaymentMade
		if err := json.Unmarshal(payload, &p); err != nil {
			return Event{}, fmt.Errorf("decode %s payload: %w", suffix, err)
		}
		evt.Kind = KindPaymentMade
		evt.PaymentMade = &p
	case string(KindFeedbackSubmitted):
		var p FeedbackSubmitted
		if err := json.Unmarshal(payload, &p); err != nil {
			return Event{}, fmt.Errorf("decode %s payload: %w", suffix, err)
		}
		evt.Kind = KindFeedbackSubmitted
		evt.FeedbackSubmitted = &p
	default:
		return Event{}, fmt.Errorf("%w: %s", ErrUnknownEventType, env.Type)
	}

	return evt, nil
}
