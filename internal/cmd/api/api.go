// Package api parses API command flags and launches the read API server.
package api

import (
	"context"
	"flag"

	entrypoint "github.com/civicledger/civicledger/internal/platform/cmd"
	apiapp "github.com/civicledger/civicledger/internal/services/api/app"
)

// Config holds API command configuration.
type Config struct {
	Port      int    `env:"CIVICLEDGER_API_PORT" envDefault:"8090"`
	DBPath    string `env:"CIVICLEDGER_API_DB_PATH" envDefault:"data/civicledger.db"`
	JWTSecret string `env:"CIVICLEDGER_API_JWT_SECRET"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The API HTTP server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The read-model SQLite database path")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret, "HMAC secret for operator tokens (operator endpoints disabled when empty)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the read API server.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceAPI, func(context.Context) error {
		return apiapp.Run(ctx, apiapp.RuntimeConfig{
			Port:      cfg.Port,
			DBPath:    cfg.DBPath,
			JWTSecret: cfg.JWTSecret,
		})
	})
}
