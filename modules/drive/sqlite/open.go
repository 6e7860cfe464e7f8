// Package sqlite implements a persistent drive.Store backed by SQLite. It
// uses modernc.org/sqlite (pure Go, no CGO) in WAL mode.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/flemzord/gasbox/internal/drive"

	_ "modernc.org/sqlite" // SQLite driver registration
)

// Compile-time interface guard.
var _ drive.Store = (*Store)(nil)

// Open opens (creating if needed) the database described by cfg and
// migrates its schema. The caller must Close the returned store.
//
// The pool is limited to a single connection (SQLite serialises writes) so
// PRAGMAs apply consistently.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	cfg.Defaults("")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", cfg.Path, err)
	}
	db.SetMaxOpenConns(1)

	if cfg.walEnabled() {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}
