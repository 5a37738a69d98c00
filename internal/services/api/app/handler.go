// Package app serves the transparency read API over HTTP JSON. All routes
// are read-only views of the indexer's read model; the only guarded surface
// is the dead-letter listing, which exposes raw ledger payloads and requires
// an operator token.
package app

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/civicledger/civicledger/internal/services/indexer/storage"
)

// Handler bundles the read API's dependencies.
type Handler struct {
	store storage.Store
	auth  *TokenVerifier
	logf  func(format string, args ...any)
}

// NewHandler builds the read API router. auth may be nil, in which case the
// dead-letter routes respond 503 rather than serving unguarded.
func NewHandler(store storage.Store, auth *TokenVerifier, logf func(format string, args ...any)) http.Handler {
	if logf == nil {
		logf = log.Printf
	}
	h := &Handler{store: store, auth: auth, logf: logf}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /up", h.handleUp)

	mux.HandleFunc("GET /v1/bodies", h.handleListBodies)
	mux.HandleFunc("GET /v1/bodies/{id}", h.handleGetBody)
	mux.HandleFunc("GET /v1/bodies/{id}/budgets", h.handleListBudgetsForBody)

	mux.HandleFunc("GET /v1/officials", h.handleListOfficials)
	mux.HandleFunc("GET /v1/officials/{address}", h.handleGetOfficial)

	mux.HandleFunc("GET /v1/vendors/{address}", h.handleGetVendor)

	mux.HandleFunc("GET /v1/budgets/{id}", h.handleGetBudget)
	mux.HandleFunc("GET /v1/budgets/{id}/projects", h.handleListProjectsForBudget)

	mux.HandleFunc("GET /v1/projects/{id}", h.handleGetProject)
	mux.HandleFunc("GET /v1/projects/{id}/payments", h.handleListPaymentsForProject)
	mux.HandleFunc("GET /v1/projects/{id}/feedback", h.handleListFeedbackForProject)

	mux.HandleFunc("GET /v1/spending-records", h.handleListSpendingRecords)
	mux.HandleFunc("GET /v1/spending-records/{id}", h.handleGetSpendingRecord)

	mux.HandleFunc("GET /v1/payments/{digest}", h.handleGetPayment)

	mux.Handle("GET /v1/dead-letters", h.requireOperator(http.HandlerFunc(h.handleListDeadLetters)))

	return mux
}

func (h *Handler) handleUp(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// pageParams reads page_size and page_token query parameters.
func pageParams(r *http.Request) (int, string) {
	pageSize := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("page_size")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			pageSize = parsed
		}
	}
	return pageSize, strings.TrimSpace(r.URL.Query().Get("page_token"))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps storage errors onto HTTP statuses: missing rows are 404,
// bad page tokens 400, everything else a logged 500 with a generic body.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, storage.ErrInvalidPageToken):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid page token"})
	default:
		h.logf("api: request failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

type bodyDTO struct {
	ID           string `json:"id"`
	AdminAddress string `json:"admin_address"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	TotalBudget  uint64 `json:"total_budget"`
	CreatedAt    string `json:"created_at"`
}

func toBodyDTO(record storage.GovernmentBodyRecord) bodyDTO {
	return bodyDTO{
		ID:           record.ID,
		AdminAddress: record.AdminAddress,
		Name:         record.Name,
		Category:     string(record.Category),
		TotalBudget:  record.TotalBudget,
		CreatedAt:    record.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) handleListBodies(w http.ResponseWriter, r *http.Request) {
	pageSize, pageToken := pageParams(r)
	page, err := h.store.ListBodies(r.Context(), pageSize, pageToken)
	if err != nil {
		h.writeError(w, err)
		return
	}
	bodies := make([]bodyDTO, 0, len(page.Bodies))
	for _, record := range page.Bodies {
		bodies = append(bodies, toBodyDTO(record))
	}
	writeJSON(w, http.StatusOK, struct {
		Bodies        []bodyDTO `json:"bodies"`
		NextPageToken string    `json:"next_page_token,omitempty"`
	}{bodies, page.NextPageToken})
}

func (h *Handler) handleGetBody(w http.ResponseWriter, r *http.Request) {
	record, err := h.store.GetBody(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBodyDTO(record))
}

type officialDTO struct {
	Address      string `json:"address"`
	Department   string `json:"department"`
	EmailDomain  string `json:"email_domain"`
	Verified     bool   `json:"verified"`
	RegisteredAt string `json:"registered_at"`
}

func toOfficialDTO(record storage.OfficialRecord) officialDTO {
	return officialDTO{
		Address:      record.Address,
		Department:   record.Department,
		EmailDomain:  record.EmailDomain,
		Verified:     record.Verified,
		RegisteredAt: record.RegisteredAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) handleListOfficials(w http.ResponseWriter, r *http.Request) {
	pageSize, pageToken := pageParams(r)
	page, err := h.store.ListOfficials(r.Context(), pageSize, pageToken)
	if err != nil {
		h.writeError(w, err)
		return
	}
	officials := make([]officialDTO, 0, len(page.Officials))
	for _, record := range page.Officials {
		officials = append(officials, toOfficialDTO(record))
	}
	writeJSON(w, http.StatusOK, struct {
		Officials     []officialDTO `json:"officials"`
		NextPageToken string        `json:"next_page_token,omitempty"`
	}{officials, page.NextPageToken})
}

func (h *Handler) handleGetOfficial(w http.ResponseWriter, r *http.Request) {
	record, err := h.store.GetOfficial(r.Context(), r.PathValue("address"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOfficialDTO(record))
}

type vendorDTO struct {
	Address            string `json:"address"`
	Name               string `json:"name"`
	RegistrationNumber string `json:"registration_number,omitempty"`
	CreatedAt          string `json:"created_at"`
}

func (h *Handler) handleGetVendor(w http.ResponseWriter, r *http.Request) {
	record, err := h.store.GetVendor(r.Context(), r.PathValue("address"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vendorDTO{
		Address:            record.Address,
		Name:               record.Name,
		RegistrationNumber: record.RegistrationNumber,
		CreatedAt:          record.CreatedAt.UTC().Format(time.RFC3339),
	})
}

type budgetDTO struct {
	ID                string `json:"id"`
	BodyID            string `json:"body_id"`
	Title             string `json:"title"`
	TotalAllocation   uint64 `json:"total_allocation"`
	FiscalYear        int    `json:"fiscal_year"`
	SDGFocus          int    `json:"sdg_focus"`
	SourceDocumentURL string `json:"source_document_url,omitempty"`
	CreatedAt         string `json:"created_at"`
}

func toBudgetDTO(record storage.BudgetRecord) budgetDTO {
	return budgetDTO{
		ID:                record.ID,
		BodyID:            record.BodyID,
		Title:             record.Title,
		TotalAllocation:   record.TotalAllocation,
		FiscalYear:        record.FiscalYear,
		SDGFocus:          record.SDGFocus,
		SourceDocumentURL: record.SourceDocumentURL,
		CreatedAt:         record.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	record, err := h.store.GetBudget(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetDTO(record))
}

func (h *Handler) handleListBudgetsForBody(w http.ResponseWriter, r *http.Request) {
	pageSize, pageToken := pageParams(r)
	page, err := h.store.ListBudgetsForBody(r.Context(), r.PathValue("id"), pageSize, pageToken)
	if err != nil {
		h.writeError(w, err)
		return
	}
	budgets := make([]budgetDTO, 0, len(page.Budgets))
	for _, record := range page.Budgets {
		budgets = append(budgets, toBudgetDTO(record))
	}
	writeJSON(w, http.StatusOK, struct {
		Budgets       []budgetDTO `json:"budgets"`
		NextPageToken string      `json:"next_page_token,omitempty"`
	}{budgets, page.NextPageToken})
}

type projectDTO struct {
	ID                 string `json:"id"`
	BudgetID           string `json:"budget_id"`
	VendorAddress      string `json:"vendor_address"`
	Title              string `json:"title"`
	Description        string `json:"description,omitempty"`
	AwardedAmount      uint64 `json:"awarded_amount"`
	SpentAmount        uint64 `json:"spent_amount"`
	Status             string `json:"status"`
	Location           string `json:"location,omitempty"`
	Contractor         string `json:"contractor,omitempty"`
	TenderDocumentsURL string `json:"tender_documents_url,omitempty"`
	CreatedAt          string `json:"created_at"`
}

func toProjectDTO(record storage.ProjectRecord) projectDTO {
	return projectDTO{
		ID:                 record.ID,
		BudgetID:           record.BudgetID,
		VendorAddress:      record.VendorAddress,
		Title:              record.Title,
		Description:        record.Description,
		AwardedAmount:      record.AwardedAmount,
		SpentAmount:        record.SpentAmount,
		Status:             string(record.Status),
		Location:           record.Location,
		Contractor:         record.Contractor,
		TenderDocumentsURL: record.TenderDocumentsURL,
		CreatedAt:          record.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	record, err := h.store.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectDTO(record))
}

func (h *Handler) handleListProjectsForBudget(w http.ResponseWriter, r *http.Request) {
	pageSize, pageToken := pageParams(r)
	page, err := h.store.ListProjectsForBudget(r.Context(), r.PathValue("id"), pageSize, pageToken)
	if err != nil {
		h.writeError(w, err)
		return
	}
	projects := make([]projectDTO, 0, len(page.Projects))
	for _, record := range page.Projects {
		projects = append(projects, toProjectDTO(record))
	}
	writeJSON(w, http.StatusOK, struct {
		Projects      []projectDTO `json:"projects"`
		NextPageToken string       `json:"next_page_token,omitempty"`
	}{projects, page.NextPageToken})
}

type spendingRecordDTO struct {
	ID              string `json:"id"`
	Submitter       string `json:"submitter"`
	Department      string `json:"department"`
	ProjectName     string `json:"project_name"`
	AllocatedAmount uint64 `json:"allocated_amount"`
	SpentAmount     uint64 `json:"spent_amount"`
	Status          string `json:"status"`
	CreatedAt       string `json:"created_at"`
}

func toSpendingRecordDTO(record storage.SpendingRecord) spendingRecordDTO {
	return spendingRecordDTO{
		ID:              record.ID,
		Submitter:       record.Submitter,
		Department:      record.Department,
		ProjectName:     record.ProjectName,
		AllocatedAmount: record.AllocatedAmount,
		SpentAmount:     record.SpentAmount,
		Status:          string(record.Status),
		CreatedAt:       record.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) handleListSpendingRecords(w http.ResponseWriter, r *http.Request) {
	pageSize, pageToken := pageParams(r)
	page, err := h.store.ListSpendingRecords(r.Context(), pageSize, pageToken)
	if err != nil {
		h.writeError(w, err)
		return
	}
	records := make([]spendingRecordDTO, 0, len(page.Records))
	for _, record := range page.Records {
		records = append(records, toSpendingRecordDTO(record))
	}
	writeJSON(w, http.StatusOK, struct {
		Records       []spendingRecordDTO `json:"records"`
		NextPageToken string              `json:"next_page_token,omitempty"`
	}{records, page.NextPageToken})
}

func (h *Handler) handleGetSpendingRecord(w http.ResponseWriter, r *http.Request) {
	record, err := h.store.GetSpendingRecord(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSpendingRecordDTO(record))
}

type paymentDTO struct {
	TxDigest             string `json:"tx_digest"`
	ProjectID            string `json:"project_id"`
	VendorAddress        string `json:"vendor_address"`
	Amount               uint64 `json:"amount"`
	MilestoneDescription string `json:"milestone_description,omitempty"`
	InvoiceURL           string `json:"invoice_url,omitempty"`
	PaidAt               string `json:"paid_at"`
}

func toPaymentDTO(record storage.PaymentRecord) paymentDTO {
	return paymentDTO{
		TxDigest:             record.TxDigest,
		ProjectID:            record.ProjectID,
		VendorAddress:        record.VendorAddress,
		Amount:               record.Amount,
		MilestoneDescription: record.MilestoneDescription,
		InvoiceURL:           record.InvoiceURL,
		PaidAt:               record.PaidAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	record, err := h.store.GetPayment(r.Context(), r.PathValue("digest"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTO(record))
}

func (h *Handler) handleListPaymentsForProject(w http.ResponseWriter, r *http.Request) {
	pageSize, pageToken := pageParams(r)
	page, err := h.store.ListPaymentsForProject(r.Context(), r.PathValue("id"), pageSize, pageToken)
	if err != nil {
		h.writeError(w, err)
		return
	}
	payments := make([]paymentDTO, 0, len(page.Payments))
	for _, record := range page.Payments {
		payments = append(payments, toPaymentDTO(record))
	}
	writeJSON(w, http.StatusOK, struct {
		Payments      []paymentDTO `json:"payments"`
		NextPageToken string       `json:"next_page_token,omitempty"`
	}{payments, page.NextPageToken})
}

type feedbackDTO struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	Rating      int    `json:"rating"`
	ContentHash string `json:"content_hash"`
	Anonymous   bool   `json:"anonymous"`
	Submitter   string `json:"submitter,omitempty"`
	SubmittedAt string `json:"submitted_at"`
}

func (h *Handler) handleListFeedbackForProject(w http.ResponseWriter, r *http.Request) {
	pageSize, pageToken := pageParams(r)
	page, err := h.store.ListFeedbackForProject(r.Context(), r.PathValue("id"), pageSize, pageToken)
	if err != nil {
		h.writeError(w, err)
		return
	}
	feedback := make([]feedbackDTO, 0, len(page.Feedback))
	for _, record := range page.Feedback {
		feedback = append(feedback, feedbackDTO{
			ID:          record.ID,
			ProjectID:   record.ProjectID,
			Rating:      record.Rating,
			ContentHash: record.ContentHash,
			Anonymous:   record.Anonymous,
			Submitter:   record.Submitter,
			SubmittedAt: record.SubmittedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, struct {
		Feedback      []feedbackDTO `json:"feedback"`
		NextPageToken string        `json:"next_page_token,omitempty"`
	}{feedback, page.NextPageToken})
}

type deadLetterDTO struct {
	ID         int64           `json:"id"`
	EventType  string          `json:"event_type"`
	TxDigest   string          `json:"tx_digest"`
	Reason     string          `json:"reason"`
	Envelope   json.RawMessage `json:"envelope,omitempty"`
	ReceivedAt string          `json:"received_at"`
	ReplayedAt string          `json:"replayed_at,omitempty"`
}

func (h *Handler) handleListDeadLetters(w http.ResponseWriter, r *http.Request) {
	pageSize, pageToken := pageParams(r)
	page, err := h.store.ListDeadLetters(r.Context(), pageSize, pageToken)
	if err != nil {
		h.writeError(w, err)
		return
	}
	letters := make([]deadLetterDTO, 0, len(page.Letters))
	for _, record := range page.Letters {
		dto := deadLetterDTO{
			ID:         record.ID,
			EventType:  record.EventType,
			TxDigest:   record.TxDigest,
			Reason:     record.Reason,
			Envelope:   json.RawMessage(record.Envelope),
			ReceivedAt: record.ReceivedAt.UTC().Format(time.RFC3339),
		}
		if record.ReplayedAt != nil {
			dto.ReplayedAt = record.ReplayedAt.UTC().Format(time.RFC3339)
		}
		letters = append(letters, dto)
	}
	writeJSON(w, http.StatusOK, struct {
		Letters       []deadLetterDTO `json:"letters"`
		NextPageToken string          `json:"next_page_token,omitempty"`
	}{letters, page.NextPageToken})
}
