// Command ticket-export writes an event's ticket archive to disk.
//
//	ticket-export -event <id> [-attendee <name>] [-out dir]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"wedding-manager/internal/attendees"
	"wedding-manager/internal/config"
	"wedding-manager/internal/database"
	eventdb "wedding-manager/internal/events/db"
	"wedding-manager/internal/export"
	"wedding-manager/internal/kafka"
	"wedding-manager/internal/logger"
	ticketdb "wedding-manager/internal/tickets/db"
	"wedding-manager/internal/tickets/qr"
	"wedding-manager/internal/tickets/template"

	"github.com/joho/godotenv"
)

func main() {
	eventID := flag.String("event", "", "event id (required)")
	attendee := flag.String("attendee", "", "export only this attendee")
	outDir := flag.String("out", ".", "directory the zip is written to")
	flag.Parse()

	log := logger.NewWithWriter(os.Stderr)
	if *eventID == "" {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path, err := run(ctx, cfg, *eventID, *attendee, *outDir, log)
	if err != nil {
		log.Fatal("EXPORT", err.Error())
	}
	fmt.Println(path)
}

func run(ctx context.Context, cfg *config.Config, eventID, attendeeName, outDir string, log *logger.Logger) (string, error) {
	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		return "", err
	}
	defer bunDB.Close()

	event, err := (&eventdb.DB{Bun: bunDB}).GetEventByID(ctx, eventID)
	if err != nil {
		return "", err
	}
	list, err := (&ticketdb.DB{Bun: bunDB}).ListTicketsByEvent(ctx, eventID)
	if err != nil {
		return "", fmt.Errorf("failed to list tickets: %w", err)
	}
	grouped := attendees.Aggregate(list)

	generator, err := template.NewGenerator(cfg.PDF.FontPath)
	if err != nil {
		return "", err
	}
	// offline runs do not announce exports
	packager := export.NewPackager(template.NewRenderer(qr.NewSurface(qr.DefaultSize), generator), kafka.NoopPublisher{}, "", log)

	var archive *export.Archive
	if attendeeName != "" {
		found, ok := attendees.Find(grouped, attendeeName)
		if !ok {
			return "", fmt.Errorf("attendee %q has no tickets for event %s", attendeeName, eventID)
		}
		archive, err = packager.ExportAttendee(ctx, *event, found)
	} else {
		archive, err = packager.ExportAll(ctx, *event, grouped)
	}
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", outDir, err)
	}
	path := filepath.Join(outDir, archive.Name)
	if err := os.WriteFile(path, archive.Data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	log.LogExport(archive.Name, fmt.Sprintf("%d documents written to %s", len(archive.Files), path))
	return path, nil
}
