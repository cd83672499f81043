// Package export bundles ticket documents into zip archives.
package export

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"wedding-manager/internal/apperr"
	"wedding-manager/internal/kafka"
	"wedding-manager/internal/logger"
	"wedding-manager/internal/models"

	"github.com/klauspost/compress/zip"
)

// DocumentRenderer produces one ticket document.
type DocumentRenderer interface {
	RenderTicket(ctx context.Context, event models.Event, attendee models.Attendee, ticket models.Ticket) ([]byte, error)
}

// Archive is a finished zip held in memory.
type Archive struct {
	Name  string
	Data  []byte
	Files []string
}

// ExportError names the ticket whose document could not be produced. No
// archive is returned alongside it.
type ExportError struct {
	Attendee     string
	TicketID     string
	TicketNumber int
	Err          error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export failed for %s ticket %d (%s): %v", e.Attendee, e.TicketNumber, e.TicketID, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

type Packager struct {
	Renderer  DocumentRenderer
	Publisher kafka.Publisher
	Topic     string
	Logger    *logger.Logger
}

func NewPackager(renderer DocumentRenderer, publisher kafka.Publisher, topic string, log *logger.Logger) *Packager {
	return &Packager{Renderer: renderer, Publisher: publisher, Topic: topic, Logger: log}
}

// ExportAttendee packages every ticket of one attendee as {name}_tickets.zip.
func (p *Packager) ExportAttendee(ctx context.Context, event models.Event, attendee models.Attendee) (*Archive, error) {
	return p.export(ctx, event, []models.Attendee{attendee}, SafeName(attendee.Name)+"_tickets.zip")
}

// ExportAll packages every ticket of every attendee as {couple}_all_tickets.zip,
// attendees in the order given.
func (p *Packager) ExportAll(ctx context.Context, event models.Event, attendees []models.Attendee) (*Archive, error) {
	return p.export(ctx, event, attendees, SafeName(event.Couple)+"_all_tickets.zip")
}

func (p *Packager) export(ctx context.Context, event models.Event, attendees []models.Attendee, name string) (*Archive, error) {
	total := 0
	for _, a := range attendees {
		total += len(a.Tickets)
	}
	if total == 0 {
		return nil, apperr.Validation("tickets", "nothing to export")
	}

	started := time.Now()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	seen := make(map[string]bool, total)
	files := make([]string, 0, total)

	for _, attendee := range attendees {
		for _, ticket := range attendee.Tickets {
			fail := func(err error) (*Archive, error) {
				zw.Close()
				p.Logger.Error("EXPORT", fmt.Sprintf("[%s] aborted: %v", name, err))
				return nil, &ExportError{
					Attendee:     attendee.Name,
					TicketID:     ticket.ID,
					TicketNumber: ticket.TicketNumber,
					Err:          err,
				}
			}

			if err := ctx.Err(); err != nil {
				return fail(err)
			}

			entry := FileName(ticket)
			if seen[entry] {
				return fail(fmt.Errorf("duplicate archive entry %s", entry))
			}
			seen[entry] = true

			doc, err := p.Renderer.RenderTicket(ctx, event, attendee, ticket)
			if err != nil {
				return fail(err)
			}

			w, err := zw.CreateHeader(&zip.FileHeader{
				Name:     entry,
				Method:   zip.Deflate,
				Modified: started,
			})
			if err != nil {
				return fail(fmt.Errorf("failed to add %s: %w", entry, err))
			}
			if _, err := w.Write(doc); err != nil {
				return fail(fmt.Errorf("failed to write %s: %w", entry, err))
			}
			files = append(files, entry)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive %s: %w", name, err)
	}

	p.Logger.LogExport(name, fmt.Sprintf("%d documents in %s", len(files), time.Since(started).Round(time.Millisecond)))
	if p.Publisher != nil {
		dto := models.ExportCompletedDto{EventID: event.ID, Archive: name, Files: len(files), OccurredAt: time.Now().UTC()}
		if err := p.Publisher.PublishJSON(p.Topic, event.ID, dto); err != nil {
			p.Logger.Warn("KAFKA", fmt.Sprintf("Failed to publish export of %s: %v", name, err))
		}
	}

	return &Archive{Name: name, Data: buf.Bytes(), Files: files}, nil
}

// FileName is the document name inside an archive:
// {attendeeName}_ticket_{n}_of_{total}.pdf
func FileName(ticket models.Ticket) string {
	return fmt.Sprintf("%s_ticket_%d_of_%d.pdf", SafeName(ticket.AttendeeName), ticket.TicketNumber, ticket.TotalTickets)
}

var pathSeparators = strings.NewReplacer("/", "_", "\\", "_")

// SafeName keeps a user-supplied name from introducing directories inside
// an archive or a download path.
func SafeName(name string) string {
	return pathSeparators.Replace(name)
}
