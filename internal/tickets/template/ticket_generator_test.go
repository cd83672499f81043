package template

import (
	"bytes"
	"context"
	"image"
	"testing"
	"time"

	"wedding-manager/internal/models"
	"wedding-manager/internal/tickets/qr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtures() (models.Event, models.Attendee, models.Ticket) {
	event := models.Event{
		ID:       "event-1",
		Couple:   "Ana & Luis",
		Date:     time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC),
		Location: "Quinta da Regaleira, Sintra",
	}
	ticket := models.Ticket{
		ID:           "4b7c1e0a-5d2f-4f43-9a57-0c1d2e3f4a5b",
		EventID:      "event-1",
		AttendeeName: "Jane Doe",
		TicketNumber: 2,
		TotalTickets: 3,
		Status:       models.TicketStatusActive,
	}
	attendee := models.Attendee{Name: "Jane Doe", TicketCount: 1, Tickets: []models.Ticket{ticket}}
	return event, attendee, ticket
}

func TestGenerateProducesPDF(t *testing.T) {
	gen, err := NewGenerator("")
	require.NoError(t, err)
	event, attendee, ticket := fixtures()

	doc, err := gen.Generate(event, attendee, ticket, image.NewGray(image.Rect(0, 0, 64, 64)))

	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF")))
}

func TestGenerateRejectsForeignTicket(t *testing.T) {
	gen, err := NewGenerator("")
	require.NoError(t, err)
	event, attendee, ticket := fixtures()
	code := image.NewGray(image.Rect(0, 0, 8, 8))

	other := ticket
	other.EventID = "event-2"
	_, err = gen.Generate(event, attendee, other, code)
	assert.Error(t, err)

	other = ticket
	other.AttendeeName = "John Roe"
	_, err = gen.Generate(event, attendee, other, code)
	assert.Error(t, err)

	_, err = gen.Generate(event, attendee, ticket, nil)
	assert.Error(t, err)
}

func TestNewGeneratorMissingFont(t *testing.T) {
	_, err := NewGenerator("/no/such/font.ttf")
	assert.Error(t, err)
}

func TestRendererReleasesSurface(t *testing.T) {
	gen, err := NewGenerator("")
	require.NoError(t, err)
	surface := qr.NewSurface(128)
	r := NewRenderer(surface, gen)
	event, attendee, ticket := fixtures()

	for i := 0; i < 2; i++ {
		doc, err := r.RenderTicket(context.Background(), event, attendee, ticket)
		require.NoError(t, err)
		assert.NotEmpty(t, doc)
	}

	// the surface is free again once rendering returns
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c, err := surface.Acquire(ctx)
	require.NoError(t, err)
	c.Release()
}

func TestRendererEncodesTicketID(t *testing.T) {
	gen, err := NewGenerator("")
	require.NoError(t, err)
	var encoded []string
	surface := qr.NewSurfaceWithEncoder(128, func(content string, size int) (image.Image, error) {
		encoded = append(encoded, content)
		return qr.Encode(content, size)
	})
	event, attendee, ticket := fixtures()

	doc, err := NewRenderer(surface, gen).RenderTicket(context.Background(), event, attendee, ticket)

	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF")))
	assert.Equal(t, []string{ticket.ID}, encoded)
}
