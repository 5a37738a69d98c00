// Package seed parses seed command flags and loads reference fixtures
// into the read model.
package seed

import (
	"context"
	"flag"
	"fmt"
	"log"

	entrypoint "github.com/civicledger/civicledger/internal/platform/cmd"
	"github.com/civicledger/civicledger/internal/services/indexer/storage/sqlite"
	"github.com/civicledger/civicledger/internal/services/seed"
)

// Config holds seed command configuration.
type Config struct {
	DBPath      string `env:"CIVICLEDGER_SEED_DB_PATH" envDefault:"data/civicledger.db"`
	FixturePath string `env:"CIVICLEDGER_SEED_FIXTURE" envDefault:"fixtures/bodies.json"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The read-model SQLite database path")
	fs.StringVar(&cfg.FixturePath, "fixture", cfg.FixturePath, "The JSON fixture file with government bodies and vendors")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run loads the fixture file and upserts its records.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSeed, func(context.Context) error {
		fixture, err := seed.Load(cfg.FixturePath)
		if err != nil {
			return fmt.Errorf("load fixture: %w", err)
		}
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		if err := seed.Apply(ctx, store, store, fixture); err != nil {
			return fmt.Errorf("apply fixture: %w", err)
		}
		log.Printf("seeded %d bodies and %d vendors from %s", len(fixture.Bodies), len(fixture.Vendors), cfg.FixturePath)
		return nil
	})
}
