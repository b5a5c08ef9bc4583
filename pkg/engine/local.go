package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/smkit/smkit/pkg/stores"
)

// Local is an engine that owns its SQLite store.
type Local struct {
	*Engine
	store *stores.SQLiteStore
}

// OpenLocal opens (creating and migrating as needed) the database at path
// and starts an engine on it. cfg.Store is ignored.
func OpenLocal(ctx context.Context, path string, cfg Config) (*Local, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}
	if path != stores.MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	cfg.Store = store
	e, err := New(ctx, cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return &Local{Engine: e, store: store}, nil
}

// Store returns the underlying store.
func (l *Local) Store() stores.Store {
	return l.store
}

// Close stops the engine and closes the database.
func (l *Local) Close() error {
	return errors.Join(l.Engine.Close(), l.store.Close())
}
