package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"wedding-manager/internal/apperr"
	"wedding-manager/internal/models"
	"wedding-manager/internal/tickets/db"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	// Connect to an in-memory SQLite DB for testing
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	for _, model := range []any{(*models.Event)(nil), (*models.Ticket)(nil)} {
		if _, err := bunDB.NewCreateTable().Model(model).Exec(context.Background()); err != nil {
			t.Fatalf("Failed to create table: %v", err)
		}
	}

	_, err = bunDB.NewInsert().Model(&models.Event{
		ID: "event-1", Couple: "Ana & Luis", Date: time.Now(), Location: "Porto",
		Status: models.EventStatusActive, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}).Exec(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { bunDB.Close() })
	return &db.DB{Bun: bunDB}, bunDB
}

func newTicket(name string, number, total int, created time.Time) models.Ticket {
	return models.Ticket{
		ID:           uuid.New().String(),
		EventID:      "event-1",
		AttendeeName: name,
		TicketNumber: number,
		TotalTickets: total,
		Status:       models.TicketStatusActive,
		CreatedAt:    created,
	}
}

func TestCreateAndGetTicket(t *testing.T) {
	ticketDB, _ := setupTestDB(t)
	ctx := context.Background()

	ticket := newTicket("Jane Doe", 1, 2, time.Now())
	require.NoError(t, ticketDB.CreateTicket(ctx, ticket))

	got, err := ticketDB.GetTicket(ctx, "event-1", ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", got.AttendeeName)
	assert.Equal(t, 2, got.TotalTickets)

	// a ticket is only visible under its own event
	_, err = ticketDB.GetTicket(ctx, "event-2", ticket.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	exists, err := ticketDB.TicketExists(ctx, ticket.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = ticketDB.EventExists(ctx, "event-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestListTicketsByEventOrdering(t *testing.T) {
	ticketDB, _ := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, ticketDB.CreateTicket(ctx, newTicket("Bob", 2, 2, base)))
	require.NoError(t, ticketDB.CreateTicket(ctx, newTicket("Bob", 1, 2, base)))
	require.NoError(t, ticketDB.CreateTicket(ctx, newTicket("Amy", 1, 1, base.Add(time.Minute))))

	tickets, err := ticketDB.ListTicketsByEvent(ctx, "event-1")
	require.NoError(t, err)
	require.Len(t, tickets, 3)
	assert.Equal(t, "Bob", tickets[0].AttendeeName)
	assert.Equal(t, 1, tickets[0].TicketNumber)
	assert.Equal(t, 2, tickets[1].TicketNumber)
	assert.Equal(t, "Amy", tickets[2].AttendeeName)

	empty, err := ticketDB.ListTicketsByEvent(ctx, "no-such-event")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestVoidAttendeeTicketsSkipsVoided(t *testing.T) {
	ticketDB, _ := setupTestDB(t)
	ctx := context.Background()

	first := newTicket("Jane Doe", 1, 3, time.Now())
	second := newTicket("Jane Doe", 2, 3, time.Now())
	third := newTicket("Jane Doe", 3, 3, time.Now())
	third.Status = models.TicketStatusVoid
	other := newTicket("John Roe", 1, 1, time.Now())
	for _, tk := range []models.Ticket{first, second, third, other} {
		require.NoError(t, ticketDB.CreateTicket(ctx, tk))
	}

	ids, err := ticketDB.VoidAttendeeTickets(ctx, "event-1", "Jane Doe")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)

	got, err := ticketDB.GetTicket(ctx, "event-1", other.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusActive, got.Status)

	ids, err = ticketDB.VoidAttendeeTickets(ctx, "event-1", "Jane Doe")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestUpdateCheckInAndDeleteTicket(t *testing.T) {
	ticketDB, _ := setupTestDB(t)
	ctx := context.Background()

	ticket := newTicket("Jane Doe", 1, 1, time.Now())
	require.NoError(t, ticketDB.CreateTicket(ctx, ticket))

	at := time.Date(2026, 9, 12, 18, 30, 0, 0, time.UTC)
	marked, err := ticketDB.MarkCheckedIn(ctx, "event-1", ticket.ID, at)
	require.NoError(t, err)
	assert.True(t, marked)

	// a rename from a copy read before the scan keeps the scan
	stale := ticket
	stale.AttendeeName = "Jane Smith"
	require.NoError(t, ticketDB.UpdateTicket(ctx, stale, "attendee_name"))

	marked, err = ticketDB.MarkCheckedIn(ctx, "event-1", ticket.ID, at.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, marked)

	got, err := ticketDB.GetTicket(ctx, "event-1", ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Smith", got.AttendeeName)
	assert.True(t, got.CheckedIn)
	require.NotNil(t, got.CheckedInAt)
	assert.True(t, at.Equal(*got.CheckedInAt))

	require.NoError(t, ticketDB.DeleteTicket(ctx, "event-1", ticket.ID))
	assert.ErrorIs(t, ticketDB.DeleteTicket(ctx, "event-1", ticket.ID), apperr.ErrNotFound)
	_, err = ticketDB.MarkCheckedIn(ctx, "event-1", ticket.ID, at)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Error(t, ticketDB.UpdateTicket(ctx, ticket))
}

func TestVoidTicketIsGuarded(t *testing.T) {
	ticketDB, _ := setupTestDB(t)
	ctx := context.Background()

	ticket := newTicket("Jane Doe", 1, 1, time.Now())
	require.NoError(t, ticketDB.CreateTicket(ctx, ticket))
	at := time.Date(2026, 9, 12, 18, 30, 0, 0, time.UTC)
	_, err := ticketDB.MarkCheckedIn(ctx, "event-1", ticket.ID, at)
	require.NoError(t, err)

	changed, err := ticketDB.VoidTicket(ctx, "event-1", ticket.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = ticketDB.VoidTicket(ctx, "event-1", ticket.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := ticketDB.GetTicket(ctx, "event-1", ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusVoid, got.Status)
	assert.True(t, got.CheckedIn)

	marked, err := ticketDB.MarkCheckedIn(ctx, "event-1", ticket.ID, at)
	require.NoError(t, err)
	assert.False(t, marked)

	_, err = ticketDB.VoidTicket(ctx, "event-1", "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
