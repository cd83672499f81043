package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"wedding-manager/internal/apperr"
	"wedding-manager/internal/models"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

type DB struct {
	Bun *bun.DB
}

// ListEvents returns every event, soonest first.
func (d *DB) ListEvents(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	err := d.Bun.NewSelect().
		Model(&events).
		Order("date ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (d *DB) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("event", id)
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (d *DB) EventExists(ctx context.Context, id string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Event)(nil)).
		Where("id = ?", id).
		Exists(ctx)
}

func (d *DB) CreateEvent(ctx context.Context, event models.Event) error {
	_, err := d.Bun.NewInsert().Model(&event).Exec(ctx)
	return err
}

// UpdateEvent writes only the named columns of event. The gallery is never
// written here; see AppendPhoto.
func (d *DB) UpdateEvent(ctx context.Context, event models.Event, columns ...string) error {
	if len(columns) == 0 {
		return errors.New("no event columns to update")
	}
	if slices.Contains(columns, "photos") {
		return errors.New("photos are only written through AppendPhoto")
	}
	res, err := d.Bun.NewUpdate().
		Model(&event).
		Column(columns...).
		Where("id = ?", event.ID).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, event.ID)
}

// AppendPhoto adds url to the event's gallery inside a transaction holding
// the row, and returns the stored event. added is false when the url was
// already in the gallery.
func (d *DB) AppendPhoto(ctx context.Context, id, url string, at time.Time) (*models.Event, bool, error) {
	var event models.Event
	added := false
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().Model(&event).Where("id = ?", id).Limit(1)
		if d.Bun.Dialect().Name() == dialect.PG {
			q = q.For("UPDATE")
		}
		if err := q.Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFound("event", id)
			}
			return err
		}
		if slices.Contains(event.Photos, url) {
			return nil
		}

		event.Photos = append(event.Photos, url)
		event.UpdatedAt = at
		if _, err := tx.NewUpdate().
			Model(&event).
			Column("photos", "updated_at").
			Where("id = ?", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to append photo: %w", err)
		}
		added = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &event, added, nil
}

// DeleteEvent removes the event and all of its tickets in one transaction.
func (d *DB) DeleteEvent(ctx context.Context, id string) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.Ticket)(nil)).
			Where("event_id = ?", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to delete tickets: %w", err)
		}

		res, err := tx.NewDelete().
			Model((*models.Event)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete event: %w", err)
		}
		return requireAffected(res, id)
	})
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("event", id)
	}
	return nil
}
