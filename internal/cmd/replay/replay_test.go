package replay

import (
	"flag"
	"testing"
)

func TestParseConfig_ParsesDefaultsAndFlags(t *testing.T) {
	t.Setenv("CIVICLEDGER_REPLAY_DB_PATH", "/tmp/replay.db")

	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-limit", "25"})
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.DBPath != "/tmp/replay.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/tmp/replay.db")
	}
	if cfg.Limit != 25 {
		t.Errorf("Limit = %d, want 25", cfg.Limit)
	}
}
