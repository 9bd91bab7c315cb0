package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sakif/instalitre/internal/config"
	"github.com/sakif/instalitre/internal/repository"
	"github.com/sakif/instalitre/internal/repository/mongodb"
	"github.com/sakif/instalitre/internal/repository/postgres"
	"github.com/sakif/instalitre/internal/repository/sqlite"
)

// OpenStore connects to the backend named by cfg.Backend and makes sure its
// schema or indexes exist.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	switch cfg.Backend {
	case config.BackendSQLite:
		if cfg.DBPath != ":memory:" {
			// Like `mkdir -p`; a no-op when the directory exists.
			dir := filepath.Dir(cfg.DBPath)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
		logger.Info("opening store", slog.String("backend", cfg.Backend), slog.String("path", cfg.DBPath))
		db, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return db, nil

	case config.BackendPostgres:
		logger.Info("opening store", slog.String("backend", cfg.Backend))
		store, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return store, nil

	case config.BackendMongo:
		logger.Info("opening store",
			slog.String("backend", cfg.Backend),
			slog.String("database", cfg.Mongo.Database),
		)
		store, err := mongodb.New(ctx, cfg.Mongo.ConnectionURI(), cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}
