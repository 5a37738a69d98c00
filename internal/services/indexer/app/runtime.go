package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/civicledger/civicledger/internal/ledger"
	"github.com/civicledger/civicledger/internal/services/indexer/projection"
	"github.com/civicledger/civicledger/internal/services/indexer/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// RuntimeConfig controls indexer startup, dependencies, and loop behavior.
type RuntimeConfig struct {
	Port              int
	DBPath            string
	LedgerRPCURL      string
	LedgerWSURL       string
	PackageID         string
	ReconnectBackoff  time.Duration
	ReconnectMaxDelay time.Duration
	BackfillPageSize  int
}

const (
	defaultIndexerPort = 8091
	defaultIndexerDB   = "data/civicledger.db"
)

// Run starts indexer runtime dependencies and the subscription loop. The
// ledger endpoint is probed before the loop starts so a misconfigured node
// address fails the process instead of spinning on reconnects.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.LedgerRPCURL) == "" {
		return fmt.Errorf("ledger rpc url is required")
	}
	if strings.TrimSpace(cfg.PackageID) == "" {
		return fmt.Errorf("ledger package id is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultIndexerPort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultIndexerDB
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create indexer storage dir: %w", err)
		}
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open indexer sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close indexer sqlite store: %v", closeErr)
		}
	}()

	client, err := ledger.NewClient(cfg.LedgerRPCURL, cfg.LedgerWSURL)
	if err != nil {
		return fmt.Errorf("create ledger client: %w", err)
	}
	if _, _, _, err := client.QueryEvents(ctx, cfg.PackageID, ledger.Cursor{}, 1); err != nil {
		return fmt.Errorf("probe ledger node: %w", err)
	}

	applier := projection.Applier{
		Bodies:          store,
		Officials:       store,
		Vendors:         store,
		Budgets:         store,
		Projects:        store,
		SpendingRecords: store,
		Payments:        store,
		Feedback:        store,
	}
	loop := NewLoop(client, applier, store, store, LoopConfig{
		PackageID:         cfg.PackageID,
		ReconnectBackoff:  cfg.ReconnectBackoff,
		ReconnectMaxDelay: cfg.ReconnectMaxDelay,
		BackfillPageSize:  cfg.BackfillPageSize,
	}, log.Printf)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on indexer port %d: %w", cfg.Port, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("indexer.runtime", grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
	}()

	log.Printf("indexer server listening at %v", listener.Addr())
	err = loop.Run(ctx)
	processed, deadLettered, skipped := loop.Stats()
	log.Printf("indexer: stream closed, processed=%d dead_lettered=%d skipped=%d", processed, deadLettered, skipped)
	return err
}
