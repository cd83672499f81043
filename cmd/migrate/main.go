package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"wedding-manager/internal/config"
	"wedding-manager/internal/database"
	"wedding-manager/internal/database/migrations"
	eventdb "wedding-manager/internal/events/db"
	events "wedding-manager/internal/events/service"
	"wedding-manager/internal/feed"
	"wedding-manager/internal/kafka"
	"wedding-manager/internal/logger"
	"wedding-manager/internal/models"
	ticketdb "wedding-manager/internal/tickets/db"
	tickets "wedding-manager/internal/tickets/service"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

func main() {
	down := flag.Bool("down", false, "roll back every migration instead of applying them")
	seed := flag.Bool("seed", false, "add a sample event with tickets after migrating")
	flag.Parse()

	log := logger.NewWithWriter(os.Stderr)
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if err := migrate(ctx, bunDB, cfg.Database, *down, log); err != nil {
		log.Fatal("MIGRATE", err.Error())
	}

	if *seed && !*down {
		if err := seedData(ctx, bunDB, log); err != nil {
			log.Fatal("SEED", err.Error())
		}
	}
	log.Info("MIGRATE", "✅ Done.")
}

func migrate(ctx context.Context, bunDB *bun.DB, cfg config.DatabaseConfig, down bool, log *logger.Logger) error {
	if bunDB.Dialect().Name() == dialect.SQLite {
		if down {
			for _, model := range []any{(*models.Ticket)(nil), (*models.Event)(nil)} {
				if _, err := bunDB.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
					return fmt.Errorf("failed to drop table for %T: %w", model, err)
				}
			}
			return nil
		}
		return database.CreateSchema(ctx, bunDB)
	}

	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{MigrationsDir: cfg.MigrationsDir, DSN: cfg.DSN}, log)
	defer runner.Close()
	if down {
		log.Info("MIGRATE", "Rolling back all migrations")
		return runner.MigrateDown()
	}
	log.Info("MIGRATE", "Applying migrations")
	return runner.MigrateUp()
}

// seedData creates one sample wedding with a few guests through the same
// services the API uses.
func seedData(ctx context.Context, bunDB *bun.DB, log *logger.Logger) error {
	publisher := kafka.NoopPublisher{}
	eventSvc := events.NewEventService(&eventdb.DB{Bun: bunDB}, feed.NewHub[[]models.Event](), publisher, "", log)
	ticketSvc := tickets.NewTicketService(&ticketdb.DB{Bun: bunDB}, feed.NewHub[[]models.Ticket](), publisher, "", log)

	eventID, err := eventSvc.Create(ctx, models.EventDraft{
		Couple:   "Sarah & Michael",
		Date:     time.Now().AddDate(0, 3, 0).Truncate(24 * time.Hour),
		Location: "Grand Plaza Hotel",
		Guests:   150,
		Status:   models.EventStatusActive,
	})
	if err != nil {
		return fmt.Errorf("failed to seed event: %w", err)
	}

	guests := []struct {
		name  string
		count int
	}{
		{"Emma Johnson", 2},
		{"Liam Smith", 1},
		{"Olivia Brown", 4},
	}
	for _, g := range guests {
		if _, err := ticketSvc.AddBatch(ctx, eventID, g.name, g.count); err != nil {
			return fmt.Errorf("failed to seed tickets for %s: %w", g.name, err)
		}
	}

	log.Info("SEED", fmt.Sprintf("Seeded event %s with %d guests", eventID, len(guests)))
	return nil
}
