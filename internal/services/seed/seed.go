// Package seed loads government body and vendor reference data into the read
// model. These entities are registered off-chain and never arrive as ledger
// events, but budget and project handlers gate on them, so operators seed
// them before the indexer starts.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/civicledger/civicledger/internal/services/indexer/domain/spending"
	"github.com/civicledger/civicledger/internal/services/indexer/storage"
)

// Fixture is the on-disk seed format.
type Fixture struct {
	Bodies  []BodyFixture   `json:"government_bodies"`
	Vendors []VendorFixture `json:"vendors"`
}

// BodyFixture describes one government body to seed.
type BodyFixture struct {
	ID           string `json:"id"`
	AdminAddress string `json:"admin_address"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	TotalBudget  uint64 `json:"total_budget"`
}

// VendorFixture describes one vendor to seed.
type VendorFixture struct {
	Address            string `json:"address"`
	Name               string `json:"name"`
	RegistrationNumber string `json:"registration_number,omitempty"`
}

// Load reads and validates a fixture file.
func Load(path string) (Fixture, error) {
	if strings.TrimSpace(path) == "" {
		return Fixture{}, fmt.Errorf("fixture path is required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("read fixture file: %w", err)
	}
	var fixture Fixture
	if err := json.Unmarshal(raw, &fixture); err != nil {
		return Fixture{}, fmt.Errorf("parse fixture file: %w", err)
	}
	if err := fixture.validate(); err != nil {
		return Fixture{}, err
	}
	return fixture, nil
}

func (f Fixture) validate() error {
	for i, body := range f.Bodies {
		if strings.TrimSpace(body.ID) == "" {
			return fmt.Errorf("government body %d: id is required", i)
		}
		if strings.TrimSpace(body.Name) == "" {
			return fmt.Errorf("government body %q: name is required", body.ID)
		}
		if _, ok := spending.NormalizeCategory(body.Category); !ok {
			return fmt.Errorf("government body %q: unknown category %q", body.ID, body.Category)
		}
	}
	for i, vendor := range f.Vendors {
		if strings.TrimSpace(vendor.Address) == "" {
			return fmt.Errorf("vendor %d: address is required", i)
		}
		if strings.TrimSpace(vendor.Name) == "" {
			return fmt.Errorf("vendor %q: name is required", vendor.Address)
		}
	}
	return nil
}

// Apply upserts the fixture into the store. Re-running a fixture is safe:
// rows are keyed on their ids.
func Apply(ctx context.Context, bodies storage.BodyStore, vendors storage.VendorStore, fixture Fixture) error {
	now := time.Now().UTC()
	for _, body := range fixture.Bodies {
		category, _ := spending.NormalizeCategory(body.Category)
		err := bodies.PutBody(ctx, storage.GovernmentBodyRecord{
			ID:           strings.TrimSpace(body.ID),
			AdminAddress: strings.TrimSpace(body.AdminAddress),
			Name:         strings.TrimSpace(body.Name),
			Category:     category,
			TotalBudget:  body.TotalBudget,
			CreatedAt:    now,
		})
		if err != nil {
			return fmt.Errorf("seed government body %q: %w", body.ID, err)
		}
	}
	for _, vendor := range fixture.Vendors {
		err := vendors.PutVendor(ctx, storage.VendorRecord{
			Address:            strings.TrimSpace(vendor.Address),
			Name:               strings.TrimSpace(vendor.Name),
			RegistrationNumber: strings.TrimSpace(vendor.RegistrationNumber),
			CreatedAt:          now,
		})
		if err != nil {
			return fmt.Errorf("seed vendor %q: %w", vendor.Address, err)
		}
	}
	return nil
}
