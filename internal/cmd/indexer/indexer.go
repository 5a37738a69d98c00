// Package indexer parses indexer command flags and launches the indexer
// runtime.
package indexer

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/civicledger/civicledger/internal/platform/cmd"
	indexerapp "github.com/civicledger/civicledger/internal/services/indexer/app"
)

// Config holds indexer command configuration.
type Config struct {
	Port              int           `env:"CIVICLEDGER_INDEXER_PORT" envDefault:"8091"`
	DBPath            string        `env:"CIVICLEDGER_INDEXER_DB_PATH" envDefault:"data/civicledger.db"`
	LedgerRPCURL      string        `env:"CIVICLEDGER_INDEXER_LEDGER_RPC_URL"`
	LedgerWSURL       string        `env:"CIVICLEDGER_INDEXER_LEDGER_WS_URL"`
	PackageID         string        `env:"CIVICLEDGER_INDEXER_PACKAGE_ID"`
	ReconnectBackoff  time.Duration `env:"CIVICLEDGER_INDEXER_RECONNECT_BACKOFF" envDefault:"1s"`
	ReconnectMaxDelay time.Duration `env:"CIVICLEDGER_INDEXER_RECONNECT_MAX_DELAY" envDefault:"1m"`
	BackfillPageSize  int           `env:"CIVICLEDGER_INDEXER_BACKFILL_PAGE_SIZE" envDefault:"100"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The indexer health gRPC server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The read-model SQLite database path")
	fs.StringVar(&cfg.LedgerRPCURL, "ledger-rpc-url", cfg.LedgerRPCURL, "The ledger node JSON-RPC HTTP endpoint")
	fs.StringVar(&cfg.LedgerWSURL, "ledger-ws-url", cfg.LedgerWSURL, "The ledger node WebSocket endpoint (defaults to the RPC URL with a ws scheme)")
	fs.StringVar(&cfg.PackageID, "package-id", cfg.PackageID, "The spending contract package id to subscribe to")
	fs.DurationVar(&cfg.ReconnectBackoff, "reconnect-backoff", cfg.ReconnectBackoff, "Initial reconnect delay after a stream drop")
	fs.DurationVar(&cfg.ReconnectMaxDelay, "reconnect-max-delay", cfg.ReconnectMaxDelay, "Maximum reconnect delay")
	fs.IntVar(&cfg.BackfillPageSize, "backfill-page-size", cfg.BackfillPageSize, "Historical query page size")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the indexer runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceIndexer, func(context.Context) error {
		return indexerapp.Run(ctx, indexerapp.RuntimeConfig{
			Port:              cfg.Port,
			DBPath:            cfg.DBPath,
			LedgerRPCURL:      cfg.LedgerRPCURL,
			LedgerWSURL:       cfg.LedgerWSURL,
			PackageID:         cfg.PackageID,
			ReconnectBackoff:  cfg.ReconnectBackoff,
			ReconnectMaxDelay: cfg.ReconnectMaxDelay,
			BackfillPageSize:  cfg.BackfillPageSize,
		})
	})
}
