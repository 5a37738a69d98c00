package api

import (
	"flag"
	"testing"
)

func TestParseConfig_ParsesDefaultsAndFlags(t *testing.T) {
	t.Setenv("CIVICLEDGER_API_JWT_SECRET", "hunter2")

	fs := flag.NewFlagSet("api", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-port", "9090"})
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.JWTSecret != "hunter2" {
		t.Errorf("JWTSecret = %q, want %q", cfg.JWTSecret, "hunter2")
	}
	if cfg.DBPath != "data/civicledger.db" {
		t.Errorf("DBPath = %q, want default", cfg.DBPath)
	}
}
