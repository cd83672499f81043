package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"wedding-manager/internal/apperr"
	"wedding-manager/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// ListTicketsByEvent returns an event's tickets in creation order.
func (d *DB) ListTicketsByEvent(ctx context.Context, eventID string) ([]models.Ticket, error) {
	tickets := []models.Ticket{}
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("event_id = ?", eventID).
		Order("created_at ASC", "attendee_name ASC", "ticket_number ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (d *DB) GetTicket(ctx context.Context, eventID, ticketID string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("id = ?", ticketID).
		Where("event_id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("ticket", ticketID)
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// TicketExists checks if any ticket already uses id, in any event.
func (d *DB) TicketExists(ctx context.Context, id string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("id = ?", id).
		Exists(ctx)
}

// EventExists checks if an event with the given ID exists in the database
func (d *DB) EventExists(ctx context.Context, eventID string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Event)(nil)).
		Where("id = ?", eventID).
		Exists(ctx)
}

func (d *DB) CreateTicket(ctx context.Context, ticket models.Ticket) error {
	_, err := d.Bun.NewInsert().Model(&ticket).Exec(ctx)
	return err
}

// UpdateTicket writes only the named columns of ticket, so fields changed
// concurrently by other writers are left as they are.
func (d *DB) UpdateTicket(ctx context.Context, ticket models.Ticket, columns ...string) error {
	if len(columns) == 0 {
		return errors.New("no ticket columns to update")
	}
	res, err := d.Bun.NewUpdate().
		Model(&ticket).
		Column(columns...).
		Where("id = ?", ticket.ID).
		Where("event_id = ?", ticket.EventID).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, ticket.ID)
}

// VoidAttendeeTickets marks every active ticket of attendeeName void and
// returns the ids it changed. Tickets already void are left alone.
func (d *DB) VoidAttendeeTickets(ctx context.Context, eventID, attendeeName string) ([]string, error) {
	var ids []string
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().
			Model((*models.Ticket)(nil)).
			Column("id").
			Where("event_id = ?", eventID).
			Where("attendee_name = ?", attendeeName).
			Where("status = ?", models.TicketStatusActive).
			Order("ticket_number ASC").
			Scan(ctx, &ids)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		_, err = tx.NewUpdate().
			Model((*models.Ticket)(nil)).
			Set("status = ?", models.TicketStatusVoid).
			Where("id IN (?)", bun.In(ids)).
			Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// VoidTicket flips an active ticket to void in one statement and reports
// whether it changed anything. A ticket that is already void is left alone.
func (d *DB) VoidTicket(ctx context.Context, eventID, ticketID string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketStatusVoid).
		Where("id = ?", ticketID).
		Where("event_id = ?", eventID).
		Where("status = ?", models.TicketStatusActive).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return d.changedOrMissing(ctx, res, eventID, ticketID)
}

// MarkCheckedIn records the door scan time on an active ticket that has not
// been scanned yet. It reports false when the ticket was void or already in.
func (d *DB) MarkCheckedIn(ctx context.Context, eventID, ticketID string, at time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("checked_in = ?", true).
		Set("checked_in_at = ?", at).
		Where("id = ?", ticketID).
		Where("event_id = ?", eventID).
		Where("status = ?", models.TicketStatusActive).
		Where("checked_in = ?", false).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return d.changedOrMissing(ctx, res, eventID, ticketID)
}

// changedOrMissing turns a guarded update's result into changed/unchanged,
// or NotFound when the ticket does not exist at all.
func (d *DB) changedOrMissing(ctx context.Context, res sql.Result, eventID, ticketID string) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	exists, err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("id = ?", ticketID).
		Where("event_id = ?", eventID).
		Exists(ctx)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, apperr.NotFound("ticket", ticketID)
	}
	return false, nil
}

func (d *DB) DeleteTicket(ctx context.Context, eventID, ticketID string) error {
	res, err := d.Bun.NewDelete().
		Model((*models.Ticket)(nil)).
		Where("id = ?", ticketID).
		Where("event_id = ?", eventID).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, ticketID)
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("ticket", id)
	}
	return nil
}
