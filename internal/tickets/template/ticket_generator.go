package template

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"

	"wedding-manager/internal/models"
	"wedding-manager/internal/tickets/qr"

	"github.com/signintech/gopdf"
	"golang.org/x/image/font/gofont/goregular"
)

const fontFamily = "ticket"

// layout, in millimetres from the top of an A5 page
const (
	titleY      = 40.0
	subtitleY   = 60.0
	qrY         = 70.0
	qrSize      = 50.0
	detailsY    = 140.0
	detailsStep = 10.0
)

// Generator lays out one ticket per A5 page.
type Generator struct {
	fontData []byte
}

// NewGenerator uses the TTF at fontPath, or the embedded Go font when empty.
func NewGenerator(fontPath string) (*Generator, error) {
	if fontPath == "" {
		return &Generator{fontData: goregular.TTF}, nil
	}
	data, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}
	return &Generator{fontData: data}, nil
}

// Generate builds the PDF for ticket. The ticket must belong to attendee and
// event, and code must be the rendered code for the ticket.
func (g *Generator) Generate(event models.Event, attendee models.Attendee, ticket models.Ticket, code image.Image) ([]byte, error) {
	if ticket.EventID != event.ID {
		return nil, fmt.Errorf("ticket %s does not belong to event %s", ticket.ID, event.ID)
	}
	if ticket.AttendeeName != attendee.Name {
		return nil, fmt.Errorf("ticket %s does not belong to attendee %s", ticket.ID, attendee.Name)
	}
	if code == nil {
		return nil, errors.New("missing ticket code image")
	}

	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA5})
	pdf.AddPage()

	if err := pdf.AddTTFFontData(fontFamily, g.fontData); err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}

	pageW := gopdf.PageSizeA5.W
	pageH := gopdf.PageSizeA5.H

	// Background
	pdf.SetFillColor(251, 247, 245)
	pdf.RectFromUpperLeftWithStyle(0, 0, pageW, pageH, "F")
	pdf.SetTextColor(33, 33, 33)

	if err := centered(pdf, pageW, mm(titleY), 24, event.Couple); err != nil {
		return nil, err
	}
	if err := centered(pdf, pageW, mm(subtitleY), 16, fmt.Sprintf("Ticket %d of %d", ticket.TicketNumber, ticket.TotalTickets)); err != nil {
		return nil, err
	}

	side := mm(qrSize)
	if err := pdf.ImageFrom(code, (pageW-side)/2, mm(qrY), &gopdf.Rect{W: side, H: side}); err != nil {
		return nil, fmt.Errorf("failed to draw ticket code: %w", err)
	}

	details := []string{
		"TICKET CODE: " + ticket.ID,
		"ATTENDEE: " + attendee.Name,
		"EVENT: " + event.Couple,
		"DATE: " + event.Date.Format("January 2, 2006"),
		"LOCATION: " + event.Location,
	}
	for i, line := range details {
		if err := centered(pdf, pageW, mm(detailsY+float64(i)*detailsStep), 12, line); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := pdf.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func centered(pdf *gopdf.GoPdf, pageW, y float64, size int, text string) error {
	if err := pdf.SetFont(fontFamily, "", size); err != nil {
		return fmt.Errorf("failed to set font: %w", err)
	}
	width, err := pdf.MeasureTextWidth(text)
	if err != nil {
		return fmt.Errorf("failed to measure %q: %w", text, err)
	}
	pdf.SetXY((pageW-width)/2, y)
	if err := pdf.Cell(nil, text); err != nil {
		return fmt.Errorf("failed to write %q: %w", text, err)
	}
	return nil
}

func mm(v float64) float64 {
	return v * 72 / 25.4
}

// Renderer draws a ticket's code on the shared surface and lays out its page.
type Renderer struct {
	Surface   *qr.Surface
	Generator *Generator
}

func NewRenderer(surface *qr.Surface, generator *Generator) *Renderer {
	return &Renderer{Surface: surface, Generator: generator}
}

// RenderTicket holds the surface for exactly one document. The code encodes
// the ticket id and nothing else.
func (r *Renderer) RenderTicket(ctx context.Context, event models.Event, attendee models.Attendee, ticket models.Ticket) ([]byte, error) {
	canvas, err := r.Surface.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer canvas.Release()

	code, err := canvas.Render(ticket.ID)
	if err != nil {
		return nil, err
	}
	return r.Generator.Generate(event, attendee, ticket, code)
}
