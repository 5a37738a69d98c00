package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/civicledger/civicledger/internal/services/indexer/domain/spending"
	"github.com/civicledger/civicledger/internal/services/indexer/storage/sqlite"
)

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLoadAndApply(t *testing.T) {
	path := writeFixture(t, `{
		"government_bodies": [
			{"id": "body-1", "admin_address": "0xadmin", "name": "Ministry of Works", "category": "Federal", "total_budget": 1000000}
		],
		"vendors": [
			{"address": "0xvendor", "name": "Acme Construction", "registration_number": "RC-100"},
			{"address": "0xvendor2", "name": "Informal Builder"}
		]
	}`)

	fixture, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(fixture.Bodies) != 1 || len(fixture.Vendors) != 2 {
		t.Fatalf("fixture sizes = %d/%d, want 1/2", len(fixture.Bodies), len(fixture.Vendors))
	}

	store, err := sqlite.Open(t.TempDir() + "/civicledger.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := Apply(ctx, store, store, fixture); err != nil {
		t.Fatalf("apply: %v", err)
	}
	// Re-applying the fixture is idempotent.
	if err := Apply(ctx, store, store, fixture); err != nil {
		t.Fatalf("apply again: %v", err)
	}

	body, err := store.GetBody(ctx, "body-1")
	if err != nil {
		t.Fatalf("get body: %v", err)
	}
	if body.Category != spending.CategoryFederal {
		t.Fatalf("category = %q, want Federal", body.Category)
	}
	vendor, err := store.GetVendor(ctx, "0xvendor2")
	if err != nil {
		t.Fatalf("get vendor: %v", err)
	}
	if vendor.RegistrationNumber != "" {
		t.Fatalf("registration_number = %q, want empty", vendor.RegistrationNumber)
	}
}

func TestLoadRejectsUnknownCategory(t *testing.T) {
	path := writeFixture(t, `{
		"government_bodies": [
			{"id": "body-1", "name": "Ministry", "category": "Galactic"}
		]
	}`)

	if _, err := Load(path); err == nil {
		t.Fatal("load with unknown category succeeded, want error")
	}
}

func TestLoadRejectsMissingVendorAddress(t *testing.T) {
	path := writeFixture(t, `{"vendors": [{"name": "No Address"}]}`)

	if _, err := Load(path); err == nil {
		t.Fatal("load with missing vendor address succeeded, want error")
	}
}
