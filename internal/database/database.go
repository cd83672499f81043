package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wedding-manager/internal/config"
	"wedding-manager/internal/database/migrations"
	"wedding-manager/internal/logger"
	"wedding-manager/internal/models"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"
)

const (
	maxRetries = 5
	retryDelay = 2 * time.Second
)

// Connect opens the configured database and pings it, retrying a few times
// while the server comes up.
func Connect(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	driverName := "postgres"
	if cfg.Driver == "sqlite" {
		driverName = "sqlite"
	}

	var sqldb *sql.DB
	var err error
	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to %s (attempt %d/%d)", driverName, i+1, maxRetries))
		sqldb, err = sql.Open(driverName, cfg.DSN)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open %s: %v", driverName, err))
		} else if err = sqldb.PingContext(ctx); err == nil {
			break
		} else {
			log.Error("DATABASE", fmt.Sprintf("Failed to connect to %s: %v", driverName, err))
			sqldb.Close()
		}

		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s after %d attempts: %w", driverName, maxRetries, err)
	}

	if driverName == "sqlite" {
		// in-memory sqlite databases are per connection
		sqldb.SetMaxOpenConns(1)
		log.Info("DATABASE", "✅ SQLite connection successful")
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)
	log.Info("DATABASE", "✅ PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// Prepare brings the schema up to date: golang-migrate on postgres, bun's
// create-table on sqlite.
func Prepare(ctx context.Context, bunDB *bun.DB, cfg config.DatabaseConfig, log *logger.Logger) error {
	if !cfg.AutoMigrate {
		log.Info("DATABASE", "Auto-migrate disabled, skipping schema setup")
		return nil
	}

	if bunDB.Dialect().Name() == dialect.SQLite {
		if err := CreateSchema(ctx, bunDB); err != nil {
			return err
		}
		log.LogDatabase("CREATE", "events, tickets", "schema ready")
		return nil
	}

	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{MigrationsDir: cfg.MigrationsDir, DSN: cfg.DSN}, log)
	defer runner.Close()
	if err := runner.MigrateUp(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.LogDatabase("MIGRATE", "schema_migrations", "migrations applied")
	return nil
}

// CreateSchema creates the events and tickets tables if they do not exist.
func CreateSchema(ctx context.Context, bunDB *bun.DB) error {
	for _, model := range []any{(*models.Event)(nil), (*models.Ticket)(nil)} {
		if _, err := bunDB.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table for %T: %w", model, err)
		}
	}

	_, err := bunDB.NewCreateIndex().
		Model((*models.Ticket)(nil)).
		Index("idx_tickets_event_id").
		Column("event_id").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create tickets index: %w", err)
	}
	return nil
}
