package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/civicledger/civicledger/internal/services/indexer/storage/sqlite"
)

// RuntimeConfig controls read API startup.
type RuntimeConfig struct {
	Port      int
	DBPath    string
	JWTSecret string
}

const (
	defaultAPIPort    = 8090
	defaultAPIDB      = "data/civicledger.db"
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// Run serves the read API until the context is canceled. The API opens the
// same SQLite database the indexer writes; WAL mode allows the two processes
// to share it.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultAPIPort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultAPIDB
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open read-model store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close read-model store: %v", closeErr)
		}
	}()

	var verifier *TokenVerifier
	if strings.TrimSpace(cfg.JWTSecret) != "" {
		verifier, err = NewTokenVerifier(cfg.JWTSecret)
		if err != nil {
			return fmt.Errorf("configure operator auth: %w", err)
		}
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           NewHandler(store, verifier, log.Printf),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()
	log.Printf("api server listening at %s", server.Addr)

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve read api: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown read api: %w", err)
	}
	<-serveErr
	return nil
}
