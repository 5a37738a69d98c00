package seed

import (
	"flag"
	"testing"
)

func TestParseConfig_ParsesDefaultsAndFlags(t *testing.T) {
	t.Setenv("CIVICLEDGER_SEED_DB_PATH", "/tmp/seed.db")

	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-fixture", "testdata/bodies.json"})
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.DBPath != "/tmp/seed.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/tmp/seed.db")
	}
	if cfg.FixturePath != "testdata/bodies.json" {
		t.Errorf("FixturePath = %q, want %q", cfg.FixturePath, "testdata/bodies.json")
	}
}
