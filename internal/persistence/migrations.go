package persistence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-case-service/internal/config"
)

// RunMigrations applies pending up-migrations from cfg.MigrationsPath.
// The DSN must be in URL form (postgres://...).
func RunMigrations(cfg config.PostgresConfig, logger *zap.Logger) error {
	if cfg.DSN == "" {
		logger.Warn("POSTGRES_DSN not provided; skipping migrations")
		return nil
	}

	m, err := migrate.New(migrationsSourceURL(cfg.MigrationsPath), cfg.DSN)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("schema up to date")
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}
	logger.Info("migrations applied", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// migrationsSourceURL accepts either a source URL or a plain directory.
func migrationsSourceURL(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return "file://migrations"
	}
	if strings.Contains(path, "://") {
		return path
	}
	return "file://" + path
}
