package resonance

import (
	"context"
	"time"

	"github.com/himanishpuri/resonance/internal/observe"
	"github.com/himanishpuri/resonance/pkg/resonance/storage"
)

const remoteConnectTimeout = 10 * time.Second

var _ Storage = (*storage.FallbackStore)(nil)

// NewSQLiteStorage creates a local-only storage backend.
func NewSQLiteStorage(dbPath string, log Logger, m *observe.Metrics) (Storage, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return storage.NewFallbackStore(nil, db, storeOptions(log, m)...), nil
}

// NewStorage opens the local SQLite store and, when cfg.RemoteURL is set,
// the PostgreSQL store in front of it. An unreachable remote is logged
// and the service runs local only.
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	db, err := storage.NewDBClientWithPath(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	var remote storage.ProfileStore
	if cfg.RemoteURL != "" {
		cctx, cancel := context.WithTimeout(ctx, remoteConnectTimeout)
		pg, err := storage.OpenPostgres(cctx, cfg.RemoteURL, cfg.Owner)
		cancel()
		if err != nil {
			if cfg.Logger != nil {
				cfg.Logger.Warnf("remote profile store unavailable, using %s only: %v", cfg.DBPath, err)
			}
		} else {
			remote = pg
		}
	}

	return storage.NewFallbackStore(remote, db, storeOptions(cfg.Logger, cfg.Metrics)...), nil
}

func storeOptions(log Logger, m *observe.Metrics) []storage.FallbackOption {
	var opts []storage.FallbackOption
	if log != nil {
		opts = append(opts, storage.WithStoreLogger(log))
	}
	if m != nil {
		opts = append(opts, storage.WithStoreMetrics(m))
	}
	return opts
}
