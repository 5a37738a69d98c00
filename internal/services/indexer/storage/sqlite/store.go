// Package sqlite implements the read-model store on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/civicledger/civicledger/internal/platform/storage/sqlitemigrate"
	"github.com/civicledger/civicledger/internal/services/indexer/storage"
	"github.com/civicledger/civicledger/internal/services/indexer/storage/sqlite/migrations"
	"github.com/civicledger/civicledger/internal/storage/cursor"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed read-model persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the read-model SQLite store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis reverses toMillis for persisted millisecond timestamps.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// pageWindow resolves a page token into the (timestamp, id) keyset boundary
// for reverse-chronological listings. An empty token starts at the newest row.
func pageWindow(pageToken, filter string) (ts int64, id string, bounded bool, err error) {
	if strings.TrimSpace(pageToken) == "" {
		return 0, "", false, nil
	}
	decoded, err := cursor.Decode(pageToken)
	if err != nil {
		return 0, "", false, fmt.Errorf("%w: %v", storage.ErrInvalidPageToken, err)
	}
	if err := cursor.ValidateFilterHash(decoded, filter); err != nil {
		return 0, "", false, fmt.Errorf("%w: %v", storage.ErrInvalidPageToken, err)
	}
	return decoded.Ts, decoded.ID, true, nil
}

// nextPageToken encodes the keyset boundary after the last returned row.
func nextPageToken(ts int64, id, filter string) (string, error) {
	token, err := cursor.Encode(cursor.Cursor{Ts: ts, ID: id, FilterHash: cursor.HashFilter(filter)})
	if err != nil {
		return "", fmt.Errorf("encode page token: %w", err)
	}
	return token, nil
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func clampPageSize(pageSize int) int {
	if pageSize <= 0 {
		return defaultPageSize
	}
	if pageSize > maxPageSize {
		return maxPageSize
	}
	return pageSize
}

var _ storage.Store = (*Store)(nil)
