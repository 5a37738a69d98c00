// Package storage defines the read-model persistence contracts shared by the
// indexer's projection layer and the read API. Every entity mirrored from the
// ledger is keyed on its immutable ledger-assigned id so event replays are
// idempotent upserts rather than duplicate inserts.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/civicledger/civicledger/internal/services/indexer/domain/spending"
)

// ErrNotFound indicates a requested persistence record is missing. Handlers
// use this to distinguish a missing prerequisite (fail-closed drop) from a
// transport failure.
var ErrNotFound = errors.New("record not found")

// ErrInvalidPageToken indicates a page token that does not decode or was
// minted under a different listing filter.
var ErrInvalidPageToken = errors.New("invalid page token")

// GovernmentBodyRecord is a registered government body. Bodies are reference
// data seeded out of band; the indexer only reads them to gate budget writes.
type GovernmentBodyRecord struct {
	ID           string
	AdminAddress string
	Name         string
	Category     spending.BodyCategory
	TotalBudget  uint64
	CreatedAt    time.Time
}

// OfficialRecord is a registered government official keyed on wallet address.
type OfficialRecord struct {
	Address      string
	Department   string
	EmailDomain  string
	Verified     bool
	RegisteredAt time.Time
}

// VendorRecord is a payable vendor keyed on wallet address.
// RegistrationNumber is optional; non-empty values must be unique.
type VendorRecord struct {
	Address            string
	Name               string
	RegistrationNumber string
	CreatedAt          time.Time
}

// BudgetRecord is a published budget owned by exactly one government body.
type BudgetRecord struct {
	ID                string
	BodyID            string
	Title             string
	TotalAllocation   uint64
	FiscalYear        int
	SDGFocus          int
	SourceDocumentURL string
	CreatedAt         time.Time
}

// ProjectRecord is a project awarded under a budget to a vendor.
type ProjectRecord struct {
	ID                 string
	BudgetID           string
	VendorAddress      string
	Title              string
	Description        string
	AwardedAmount      uint64
	SpentAmount        uint64
	Status             spending.ProjectStatus
	Location           string
	Contractor         string
	TenderDocumentsURL string
	CreatedAt          time.Time
}

// SpendingRecord is the flattened department-level spending lineage, keyed
// through the submitting official rather than a budget.
type SpendingRecord struct {
	ID              string
	Submitter       string
	Department      string
	ProjectName     string
	AllocatedAmount uint64
	SpentAmount     uint64
	Status          spending.ProjectStatus
	CreatedAt       time.Time
}

// PaymentRecord is a milestone payment, keyed on the ledger transaction
// digest and append-only.
type PaymentRecord struct {
	TxDigest             string
	ProjectID            string
	VendorAddress        string
	Amount               uint64
	MilestoneDescription string
	InvoiceURL           string
	PaidAt               time.Time
}

// FeedbackRecord is citizen feedback on a project. Only a content hash is
// persisted; message text never reaches the read model.
type FeedbackRecord struct {
	ID          string
	ProjectID   string
	Rating      int
	ContentHash string
	Anonymous   bool
	Submitter   string
	SubmittedAt time.Time
}

// DeadLetterRecord retains an event that could not be processed, for later
// diagnosis and replay once its prerequisites exist.
type DeadLetterRecord struct {
	ID         int64
	EventType  string
	TxDigest   string
	Reason     string
	Envelope   []byte
	ReceivedAt time.Time
	ReplayedAt *time.Time
}

// CursorRecord is the last successfully processed stream position for a
// package filter, used to resume after a restart or transport drop.
type CursorRecord struct {
	PackageID string
	TxDigest  string
	EventSeq  string
	UpdatedAt time.Time
}

// BodyStore owns government body reference data.
type BodyStore interface {
	PutBody(ctx context.Context, body GovernmentBodyRecord) error
	GetBody(ctx context.Context, id string) (GovernmentBodyRecord, error)
	ListBodies(ctx context.Context, pageSize int, pageToken string) (BodyPage, error)
}

// OfficialStore owns official read models keyed on wallet address.
type OfficialStore interface {
	PutOfficial(ctx context.Context, official OfficialRecord) error
	GetOfficial(ctx context.Context, address string) (OfficialRecord, error)
	ListOfficials(ctx context.Context, pageSize int, pageToken string) (OfficialPage, error)
}

// VendorStore owns vendor reference data keyed on wallet address.
type VendorStore interface {
	PutVendor(ctx context.Context, vendor VendorRecord) error
	GetVendor(ctx context.Context, address string) (VendorRecord, error)
}

// BudgetStore owns budget read models.
type BudgetStore interface {
	PutBudget(ctx context.Context, budget BudgetRecord) error
	GetBudget(ctx context.Context, id string) (BudgetRecord, error)
	// ListBudgetsForBody returns budgets newest-first for one body.
	ListBudgetsForBody(ctx context.Context, bodyID string, pageSize int, pageToken string) (BudgetPage, error)
}

// ProjectStore owns project read models.
type ProjectStore interface {
	PutProject(ctx context.Context, project ProjectRecord) error
	GetProject(ctx context.Context, id string) (ProjectRecord, error)
	ListProjectsForBudget(ctx context.Context, budgetID string, pageSize int, pageToken string) (ProjectPage, error)
}

// SpendingRecordStore owns the flattened spending-record lineage.
type SpendingRecordStore interface {
	PutSpendingRecord(ctx context.Context, record SpendingRecord) error
	GetSpendingRecord(ctx context.Context, id string) (SpendingRecord, error)
	ListSpendingRecords(ctx context.Context, pageSize int, pageToken string) (SpendingRecordPage, error)
}

// PaymentStore owns the append-only payment log.
type PaymentStore interface {
	PutPayment(ctx context.Context, payment PaymentRecord) error
	GetPayment(ctx context.Context, txDigest string) (PaymentRecord, error)
	ListPaymentsForProject(ctx context.Context, projectID string, pageSize int, pageToken string) (PaymentPage, error)
}

// FeedbackStore owns the append-only feedback log.
type FeedbackStore interface {
	PutFeedback(ctx context.Context, feedback FeedbackRecord) error
	GetFeedback(ctx context.Context, id string) (FeedbackRecord, error)
	ListFeedbackForProject(ctx context.Context, projectID string, pageSize int, pageToken string) (FeedbackPage, error)
}

// DeadLetterStore retains unprocessable events for diagnosis and replay.
type DeadLetterStore interface {
	RecordDeadLetter(ctx context.Context, letter DeadLetterRecord) (int64, error)
	// ListPendingDeadLetters returns un-replayed letters oldest first.
	ListPendingDeadLetters(ctx context.Context, limit int) ([]DeadLetterRecord, error)
	ListDeadLetters(ctx context.Context, pageSize int, pageToken string) (DeadLetterPage, error)
	MarkDeadLetterReplayed(ctx context.Context, id int64, replayedAt time.Time) error
	UpdateDeadLetterReason(ctx context.Context, id int64, reason string) error
}

// CursorStore persists resume positions per package filter.
type CursorStore interface {
	PutCursor(ctx context.Context, cursor CursorRecord) error
	GetCursor(ctx context.Context, packageID string) (CursorRecord, error)
}

// BodyPage describes a page of government body records.
type BodyPage struct {
	Bodies        []GovernmentBodyRecord
	NextPageToken string
}

// OfficialPage describes a page of official records.
type OfficialPage struct {
	Officials     []OfficialRecord
	NextPageToken string
}

// BudgetPage describes a page of budget records.
type BudgetPage struct {
	Budgets       []BudgetRecord
	NextPageToken string
}

// ProjectPage describes a page of project records.
type ProjectPage struct {
	Projects      []ProjectRecord
	NextPageToken string
}

// SpendingRecordPage describes a page of spending records.
type SpendingRecordPage struct {
	Records       []SpendingRecord
	NextPageToken string
}

// PaymentPage describes a page of payment records.
type PaymentPage struct {
	Payments      []PaymentRecord
	NextPageToken string
}

// FeedbackPage describes a page of feedback records.
type FeedbackPage struct {
	Feedback      []FeedbackRecord
	NextPageToken string
}

// DeadLetterPage describes a page of dead letter records.
type DeadLetterPage struct {
	Letters       []DeadLetterRecord
	NextPageToken string
}

// Store aggregates every persistence contract implemented by the SQLite
// backend. The indexer and read API share one store handle per process.
type Store interface {
	BodyStore
	OfficialStore
	VendorStore
	BudgetStore
	ProjectStore
	SpendingRecordStore
	PaymentStore
	FeedbackStore
	DeadLetterStore
	CursorStore
	Close() error
}
