// Package replay parses replay command flags and runs a dead-letter
// replay pass.
package replay

import (
	"context"
	"flag"

	entrypoint "github.com/civicledger/civicledger/internal/platform/cmd"
	replayapp "github.com/civicledger/civicledger/internal/services/replay/app"
)

// Config holds replay command configuration.
type Config struct {
	DBPath string `env:"CIVICLEDGER_REPLAY_DB_PATH" envDefault:"data/civicledger.db"`
	Limit  int    `env:"CIVICLEDGER_REPLAY_LIMIT" envDefault:"500"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The read-model SQLite database path")
	fs.IntVar(&cfg.Limit, "limit", cfg.Limit, "Maximum dead letters to replay in one pass")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run performs a single replay pass over pending dead letters.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceReplay, func(context.Context) error {
		return replayapp.Run(ctx, replayapp.RuntimeConfig{
			DBPath: cfg.DBPath,
			Limit:  cfg.Limit,
		})
	})
}
