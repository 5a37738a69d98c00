package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/civicledger/civicledger/internal/services/indexer/domain/spending"
	"github.com/civicledger/civicledger/internal/services/indexer/storage"
	"github.com/civicledger/civicledger/internal/services/indexer/storage/sqlite"
	"github.com/golang-jwt/jwt/v5"
)

func newTestServer(t *testing.T, secret string) (*httptest.Server, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(t.TempDir() + "/civicledger.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	var verifier *TokenVerifier
	if secret != "" {
		verifier, err = NewTokenVerifier(secret)
		if err != nil {
			t.Fatalf("new verifier: %v", err)
		}
	}
	server := httptest.NewServer(NewHandler(store, verifier, func(string, ...any) {}))
	t.Cleanup(server.Close)
	return server, store
}

func seedBudget(t *testing.T, store *sqlite.Store) {
	t.Helper()
	ctx := context.Background()
	createdAt := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	if err := store.PutBody(ctx, storage.GovernmentBodyRecord{
		ID:           "body-1",
		AdminAddress: "0xadmin",
		Name:         "Ministry of Works",
		Category:     spending.CategoryFederal,
		TotalBudget:  1000000,
		CreatedAt:    createdAt,
	}); err != nil {
		t.Fatalf("put body: %v", err)
	}
	if err := store.PutBudget(ctx, storage.BudgetRecord{
		ID:              "budget-1",
		BodyID:          "body-1",
		Title:           "Roads 2026",
		TotalAllocation: 500000,
		FiscalYear:      2026,
		SDGFocus:        9,
		CreatedAt:       createdAt,
	}); err != nil {
		t.Fatalf("put budget: %v", err)
	}
}

func TestHandleUp(t *testing.T) {
	server, _ := newTestServer(t, "")

	resp, err := http.Get(server.URL + "/up")
	if err != nil {
		t.Fatalf("get /up: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestGetBudget(t *testing.T) {
	server, store := newTestServer(t, "")
	seedBudget(t, store)

	resp, err := http.Get(server.URL + "/v1/budgets/budget-1")
	if err != nil {
		t.Fatalf("get budget: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var got budgetDTO
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.BodyID != "body-1" || got.TotalAllocation != 500000 {
		t.Fatalf("budget = %+v, want body-1/500000", got)
	}

	missing, err := http.Get(server.URL + "/v1/budgets/unknown")
	if err != nil {
		t.Fatalf("get missing budget: %v", err)
	}
	defer missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("missing status = %d, want 404", missing.StatusCode)
	}
}

func TestListBudgetsForBody(t *testing.T) {
	server, store := newTestServer(t, "")
	seedBudget(t, store)

	resp, err := http.Get(server.URL + "/v1/bodies/body-1/budgets?page_size=10")
	if err != nil {
		t.Fatalf("list budgets: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var got struct {
		Budgets       []budgetDTO `json:"budgets"`
		NextPageToken string      `json:"next_page_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(got.Budgets) != 1 {
		t.Fatalf("budgets len = %d, want 1", len(got.Budgets))
	}
	if got.NextPageToken != "" {
		t.Fatalf("next token = %q, want empty", got.NextPageToken)
	}
}

func TestListBudgetsRejectsBadPageToken(t *testing.T) {
	server, store := newTestServer(t, "")
	seedBudget(t, store)

	resp, err := http.Get(server.URL + "/v1/bodies/body-1/budgets?page_token=not-a-token")
	if err != nil {
		t.Fatalf("list budgets: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestDeadLettersRequireAuth(t *testing.T) {
	const secret = "test-operator-secret"
	server, store := newTestServer(t, secret)

	if _, err := store.RecordDeadLetter(context.Background(), storage.DeadLetterRecord{
		EventType: "pkg::spending::PaymentMade",
		TxDigest:  "digest-1",
		Reason:    "project not found",
		Envelope:  []byte(`{"type":"pkg::spending::PaymentMade"}`),
	}); err != nil {
		t.Fatalf("record dead letter: %v", err)
	}

	resp, err := http.Get(server.URL + "/v1/dead-letters")
	if err != nil {
		t.Fatalf("get dead letters: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", resp.StatusCode)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "auditor@example.gov",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req, err := http.NewRequest(http.MethodGet, server.URL+"/v1/dead-letters", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+signed)
	authed, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get dead letters with token: %v", err)
	}
	defer authed.Body.Close()
	if authed.StatusCode != http.StatusOK {
		t.Fatalf("authenticated status = %d, want 200", authed.StatusCode)
	}
	var got struct {
		Letters []deadLetterDTO `json:"letters"`
	}
	if err := json.NewDecoder(authed.Body).Decode(&got); err != nil {
		t.Fatalf("decode letters: %v", err)
	}
	if len(got.Letters) != 1 {
		t.Fatalf("letters len = %d, want 1", len(got.Letters))
	}
	if got.Letters[0].Reason != "project not found" {
		t.Fatalf("reason = %q, want project not found", got.Letters[0].Reason)
	}

	badReq, err := http.NewRequest(http.MethodGet, server.URL+"/v1/dead-letters", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	badReq.Header.Set("Authorization", "Bearer not-a-jwt")
	rejected, err := http.DefaultClient.Do(badReq)
	if err != nil {
		t.Fatalf("get dead letters with bad token: %v", err)
	}
	rejected.Body.Close()
	if rejected.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d, want 401", rejected.StatusCode)
	}
}

func TestDeadLettersUnavailableWithoutVerifier(t *testing.T) {
	server, _ := newTestServer(t, "")

	resp, err := http.Get(server.URL + "/v1/dead-letters")
	if err != nil {
		t.Fatalf("get dead letters: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}
