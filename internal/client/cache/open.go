package cache

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/lifedash/internal/client/migrations"
	"github.com/dmitrijs2005/lifedash/internal/client/repositories/kv"
	"github.com/dmitrijs2005/lifedash/internal/filex"
	"github.com/dmitrijs2005/lifedash/internal/logging"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

type Config struct {
	// Path of the SQLite database file.
	Path string
	// Passphrase enables sealing when not empty.
	Passphrase string
}

// Open returns the durable store at cfg.Path, or a memory store if the
// database cannot be opened or migrated. It never fails.
func Open(ctx context.Context, cfg Config, logger logging.Logger) *KVStore {
	store, err := openSQLite(ctx, cfg.Path, logger)
	if err != nil {
		logger.Warn(ctx, "local cache unavailable, using in-memory cache", "path", cfg.Path, "error", err)
		store = NewMemoryStore(logger)
	}

	if cfg.Passphrase != "" {
		if err := store.EnableSealing(ctx, []byte(cfg.Passphrase)); err != nil {
			logger.Warn(ctx, "cache sealing setup failed, falling back to in-memory cache", "error", err)
			_ = store.Close()
			store = NewMemoryStore(logger)
			_ = store.EnableSealing(ctx, []byte(cfg.Passphrase))
		}
	}
	return store
}

func openSQLite(ctx context.Context, path string, logger logging.Logger) (*KVStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty cache path")
	}
	if err := filex.EnsureParentDir(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite serialises writers anyway; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate cache: %w", err)
	}

	s := New(kv.NewSQLiteRepository(db), logger)
	s.closer = db
	s.durable = true
	return s, nil
}

// RunMigrations applies the embedded SQLite schema.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}
