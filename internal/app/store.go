package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"taskManager/internal/config"
	"taskManager/internal/logger"
	"taskManager/internal/repository/task/inmemory"
	"taskManager/internal/repository/task/postgres"
	"taskManager/internal/repository/task/sqlite"
	"taskManager/internal/service"

	"go.uber.org/zap"
)

// Store is a task repository the app owns and must close.
type Store interface {
	service.TaskRepository
	Close()
}

// ParseStoreURL picks the backend for a connection string and returns the
// backend-specific DSN.
//
//	postgres://… / postgresql://…  postgres, DSN unchanged
//	sqlite:///./tasks.db           sqlite, "./tasks.db" (empty path is :memory:)
//	sqlite://tasks.db              sqlite, "tasks.db"
//	file:tasks.db?cache=shared     sqlite, DSN unchanged
//	memory://                      in-memory
func ParseStoreURL(raw string) (service.RepoType, string, error) {
	raw = strings.TrimSpace(raw)

	switch {
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return service.PostgresType, raw, nil
	case strings.HasPrefix(raw, "sqlite:///"):
		return service.SQLiteType, sqlitePath(strings.TrimPrefix(raw, "sqlite:///")), nil
	case strings.HasPrefix(raw, "sqlite://"):
		return service.SQLiteType, sqlitePath(strings.TrimPrefix(raw, "sqlite://")), nil
	case strings.HasPrefix(raw, "file:"):
		return service.SQLiteType, raw, nil
	case raw == "memory" || strings.HasPrefix(raw, "memory://"):
		return service.InMemoryType, "", nil
	case raw == "":
		return "", "", config.ErrMissingDatabaseURL
	}

	scheme := raw
	if i := strings.Index(raw, ":"); i >= 0 {
		scheme = raw[:i]
	}
	return "", "", fmt.Errorf("unsupported database url scheme %q", scheme)
}

func sqlitePath(p string) string {
	if p == "" {
		return ":memory:"
	}
	return p
}

func OpenStore(ctx context.Context, cfg *config.Config) (Store, service.RepoType, error) {
	repoType, dsn, err := ParseStoreURL(cfg.Database.URL)
	if err != nil {
		return nil, "", err
	}

	logger.Info("App: opening task store", zap.String("store", string(repoType)))

	switch repoType {
	case service.PostgresType:
		storage, err := postgres.New(ctx, dsn, postgres.PoolConfig{
			MaxConns:        cfg.Database.MaxConnections,
			MinConns:        cfg.Database.MinConnections,
			MaxConnIdleTime: cfg.Database.IdleTimeout,
		})
		if err != nil {
			return nil, "", fmt.Errorf("open postgres: %w", err)
		}
		if err := storage.Migrate(); err != nil {
			storage.Close()
			return nil, "", fmt.Errorf("migrate postgres: %w", err)
		}
		return storage, repoType, nil

	case service.SQLiteType:
		storage, err := sqlite.New(dsn, cfg.IsDevelopment())
		if err != nil {
			return nil, "", fmt.Errorf("open sqlite: %w", err)
		}
		return storage, repoType, nil

	case service.InMemoryType:
		return inmemory.NewTaskStorage(), repoType, nil
	}

	return nil, "", errors.New("no store for repository type " + string(repoType))
}

// Rollback reverts every postgres migration.
func Rollback(ctx context.Context, cfg *config.Config) error {
	repoType, dsn, err := ParseStoreURL(cfg.Database.URL)
	if err != nil {
		return err
	}
	if repoType != service.PostgresType {
		return fmt.Errorf("rollback is only supported for postgres, got %s", repoType)
	}

	storage, err := postgres.New(ctx, dsn, postgres.DefaultPoolConfig())
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer storage.Close()

	return storage.Down()
}
