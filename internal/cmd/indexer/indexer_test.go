package indexer

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfig_ParsesDefaultsAndFlags(t *testing.T) {
	t.Setenv("CIVICLEDGER_INDEXER_PORT", "9191")
	t.Setenv("CIVICLEDGER_INDEXER_PACKAGE_ID", "0xabc")

	fs := flag.NewFlagSet("indexer", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-ledger-rpc-url", "http://localhost:9000", "-reconnect-backoff", "2s"})
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.Port != 9191 {
		t.Errorf("Port = %d, want 9191", cfg.Port)
	}
	if cfg.PackageID != "0xabc" {
		t.Errorf("PackageID = %q, want %q", cfg.PackageID, "0xabc")
	}
	if cfg.LedgerRPCURL != "http://localhost:9000" {
		t.Errorf("LedgerRPCURL = %q, want %q", cfg.LedgerRPCURL, "http://localhost:9000")
	}
	if cfg.ReconnectBackoff != 2*time.Second {
		t.Errorf("ReconnectBackoff = %v, want 2s", cfg.ReconnectBackoff)
	}
	if cfg.DBPath != "data/civicledger.db" {
		t.Errorf("DBPath = %q, want default", cfg.DBPath)
	}
	if cfg.BackfillPageSize != 100 {
		t.Errorf("BackfillPageSize = %d, want 100", cfg.BackfillPageSize)
	}
}
