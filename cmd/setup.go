package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/muzictl/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return nil
}

// DatabaseStatus lists every known migration and whether it has been applied.
func (r *Runner) DatabaseStatus(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	states, err := shared.MigrationStatus(ctx, db)
	if err != nil {
		return err
	}
	for _, s := range states {
		mark := "pending"
		if s.Applied {
			mark = "applied"
		}
		if err := r.writePlain("%04d %-30s %s\n", s.Version, s.Name, mark); err != nil {
			return err
		}
	}
	return nil
}

// DatabaseRollback reverts the most recent migration.
func (r *Runner) DatabaseRollback(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	version, err := shared.RollbackMigration(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to rollback: %w", err)
	}
	r.logger.Info("rolled back migration", "version", version)
	return r.writePlain("Rolled back migration %04d\n", version)
}

func (r *Runner) openDatabase() (*sql.DB, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	return db, nil
}

// ConfigInit writes the embedded example configuration to --path.
func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("path")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)
	return r.writePlain("Wrote %s\n", path)
}

// ConfigProviders prints every configured provider with its endpoints.
func (r *Runner) ConfigProviders(ctx context.Context, cmd *cli.Command) error {
	for _, name := range r.config.ProviderNames() {
		p, err := r.config.Provider(name)
		if err != nil {
			r.logger.Warn("invalid provider configuration", "provider", name, "error", err)
			continue
		}
		if err := r.writePlain("%-10s %-10s %-10s %s → %s\n", p.Name, p.Encoding, p.Transport, p.Endpoint, p.SubscriptionURLPrefix); err != nil {
			return err
		}
	}
	return nil
}
