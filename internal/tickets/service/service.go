package tickets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wedding-manager/internal/apperr"
	"wedding-manager/internal/feed"
	"wedding-manager/internal/kafka"
	"wedding-manager/internal/logger"
	"wedding-manager/internal/models"

	"github.com/google/uuid"
)

// maxIDAttempts bounds the collision check on fresh ticket ids.
const maxIDAttempts = 5

type TicketDBLayer interface {
	ListTicketsByEvent(ctx context.Context, eventID string) ([]models.Ticket, error)
	GetTicket(ctx context.Context, eventID, ticketID string) (*models.Ticket, error)
	TicketExists(ctx context.Context, id string) (bool, error)
	EventExists(ctx context.Context, eventID string) (bool, error)
	CreateTicket(ctx context.Context, ticket models.Ticket) error
	UpdateTicket(ctx context.Context, ticket models.Ticket, columns ...string) error
	VoidTicket(ctx context.Context, eventID, ticketID string) (bool, error)
	VoidAttendeeTickets(ctx context.Context, eventID, attendeeName string) ([]string, error)
	MarkCheckedIn(ctx context.Context, eventID, ticketID string, at time.Time) (bool, error)
	DeleteTicket(ctx context.Context, eventID, ticketID string) error
}

// Notifier tells other instances that a feed scope changed.
type Notifier interface {
	Notify(ctx context.Context, scope string) error
}

type TicketService struct {
	DB        TicketDBLayer
	Feed      *feed.Hub[[]models.Ticket]
	Notifier  Notifier
	Publisher kafka.Publisher
	Topic     string
	Validator *apperr.StructValidator
	Logger    *logger.Logger

	newID func() string
	now   func() time.Time
}

func NewTicketService(db TicketDBLayer, hub *feed.Hub[[]models.Ticket], publisher kafka.Publisher, topic string, log *logger.Logger) *TicketService {
	return &TicketService{
		DB:        db,
		Feed:      hub,
		Publisher: publisher,
		Topic:     topic,
		Validator: apperr.NewStructValidator(),
		Logger:    log,
		newID:     uuid.NewString,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// NormalizeName is the attendee name as stored. Grouping downstream is exact
// on this value.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}

func (s *TicketService) List(ctx context.Context, eventID string) ([]models.Ticket, error) {
	tickets, err := s.DB.ListTicketsByEvent(ctx, eventID)
	if err != nil {
		return nil, apperr.Backend("list tickets", err)
	}
	return tickets, nil
}

func (s *TicketService) Get(ctx context.Context, eventID, ticketID string) (*models.Ticket, error) {
	ticket, err := s.DB.GetTicket(ctx, eventID, ticketID)
	if err != nil {
		return nil, storeError("get ticket", err)
	}
	return ticket, nil
}

// AddBatch creates count tickets for one attendee, numbered 1..count. Each
// ticket is its own write: on failure the tickets already created are
// returned with an error naming the ticket that failed.
func (s *TicketService) AddBatch(ctx context.Context, eventID, attendeeName string, count int) ([]models.Ticket, error) {
	req := models.BatchRequest{AttendeeName: NormalizeName(attendeeName), Count: count}
	if err := s.Validator.ValidateStruct(req); err != nil {
		return nil, err
	}
	if err := s.requireEvent(ctx, eventID); err != nil {
		return nil, err
	}

	createdAt := s.now()
	created := make([]models.Ticket, 0, count)
	var batchErr error
	for k := 1; k <= count; k++ {
		if err := ctx.Err(); err != nil {
			batchErr = fmt.Errorf("batch for %s stopped before ticket %d of %d: %w", req.AttendeeName, k, count, err)
			break
		}

		id, err := s.newTicketID(ctx)
		if err != nil {
			batchErr = fmt.Errorf("failed to create ticket %d of %d for %s: %w", k, count, req.AttendeeName, err)
			break
		}

		ticket := models.Ticket{
			ID:           id,
			EventID:      eventID,
			AttendeeName: req.AttendeeName,
			TicketNumber: k,
			TotalTickets: count,
			Status:       models.TicketStatusActive,
			CreatedAt:    createdAt,
		}
		if err := s.DB.CreateTicket(ctx, ticket); err != nil {
			batchErr = fmt.Errorf("failed to create ticket %d of %d for %s: %w", k, count, req.AttendeeName, apperr.Backend("create ticket", err))
			break
		}
		created = append(created, ticket)
	}

	if len(created) > 0 {
		s.Logger.LogTicket("BATCH", eventID, fmt.Sprintf("%d/%d tickets for %s", len(created), count, req.AttendeeName))
		s.afterWrite(ctx, models.ActionCreated, eventID, ticketIDs(created)...)
	}
	return created, batchErr
}

// Create stores a single ticket after checking its numbering.
func (s *TicketService) Create(ctx context.Context, ticket models.Ticket) (*models.Ticket, error) {
	ticket.AttendeeName = NormalizeName(ticket.AttendeeName)
	if ticket.AttendeeName == "" {
		return nil, apperr.Validation("attendeeName", "is required")
	}
	if ticket.TotalTickets < 1 {
		return nil, apperr.Validation("totalTickets", "must be at least 1")
	}
	if ticket.TicketNumber < 1 || ticket.TicketNumber > ticket.TotalTickets {
		return nil, apperr.Validation("ticketNumber", fmt.Sprintf("must be between 1 and %d", ticket.TotalTickets))
	}
	if ticket.Status == "" {
		ticket.Status = models.TicketStatusActive
	}
	if ticket.Status != models.TicketStatusActive && ticket.Status != models.TicketStatusVoid {
		return nil, apperr.Validation("status", "must be one of: active void")
	}
	if err := s.requireEvent(ctx, ticket.EventID); err != nil {
		return nil, err
	}

	if ticket.ID == "" {
		id, err := s.newTicketID(ctx)
		if err != nil {
			return nil, err
		}
		ticket.ID = id
	} else if exists, err := s.DB.TicketExists(ctx, ticket.ID); err != nil {
		return nil, apperr.Backend("check ticket id", err)
	} else if exists {
		return nil, apperr.Validation("id", "already in use")
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = s.now()
	}

	if err := s.DB.CreateTicket(ctx, ticket); err != nil {
		return nil, apperr.Backend("create ticket", err)
	}

	s.Logger.LogTicket("CREATE", ticket.ID, ticket.AttendeeName)
	s.afterWrite(ctx, models.ActionCreated, ticket.EventID, ticket.ID)
	return &ticket, nil
}

// Update applies the edit form: a new attendee name and/or status. Only the
// fields in the patch are written, so a concurrent check-in survives.
func (s *TicketService) Update(ctx context.Context, eventID, ticketID string, patch models.TicketPatch) error {
	if err := s.Validator.ValidateStruct(patch); err != nil {
		return err
	}
	if patch.AttendeeName == nil && patch.Status == nil {
		return apperr.Validation("", "no fields to update")
	}

	ticket, err := s.DB.GetTicket(ctx, eventID, ticketID)
	if err != nil {
		return storeError("get ticket", err)
	}

	action := models.ActionUpdated
	var columns []string
	if patch.AttendeeName != nil {
		name := NormalizeName(*patch.AttendeeName)
		if name == "" {
			return apperr.Validation("attendeeName", "is required")
		}
		ticket.AttendeeName = name
		columns = append(columns, "attendee_name")
	}
	if patch.Status != nil {
		if *patch.Status == models.TicketStatusVoid && ticket.IsActive() {
			action = models.ActionVoided
		}
		ticket.Status = *patch.Status
		columns = append(columns, "status")
	}

	if err := s.DB.UpdateTicket(ctx, *ticket, columns...); err != nil {
		return storeError("update ticket", err)
	}

	s.Logger.LogTicket("UPDATE", ticketID, fmt.Sprintf("attendee=%s status=%s", ticket.AttendeeName, ticket.Status))
	s.afterWrite(ctx, action, eventID, ticketID)
	return nil
}

// Void marks a ticket unusable. The ticket is kept; voiding twice is a no-op.
func (s *TicketService) Void(ctx context.Context, eventID, ticketID string) error {
	changed, err := s.DB.VoidTicket(ctx, eventID, ticketID)
	if err != nil {
		return storeError("void ticket", err)
	}
	if !changed {
		return nil
	}

	s.Logger.LogTicket("VOID", ticketID, eventID)
	s.afterWrite(ctx, models.ActionVoided, eventID, ticketID)
	return nil
}

// VoidAttendee voids every active ticket held by attendeeName and returns how
// many changed.
func (s *TicketService) VoidAttendee(ctx context.Context, eventID, attendeeName string) (int, error) {
	name := NormalizeName(attendeeName)
	if name == "" {
		return 0, apperr.Validation("name", "is required")
	}
	if err := s.requireEvent(ctx, eventID); err != nil {
		return 0, err
	}

	ids, err := s.DB.VoidAttendeeTickets(ctx, eventID, name)
	if err != nil {
		return 0, apperr.Backend("void attendee tickets", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	s.Logger.LogTicket("VOID_ALL", eventID, fmt.Sprintf("%d tickets for %s", len(ids), name))
	s.afterWrite(ctx, models.ActionVoided, eventID, ids...)
	return len(ids), nil
}

// CheckIn records a door scan. Void tickets are refused; a second scan keeps
// the first time.
func (s *TicketService) CheckIn(ctx context.Context, eventID, ticketID string) (*models.Ticket, error) {
	ticket, err := s.DB.GetTicket(ctx, eventID, ticketID)
	if err != nil {
		return nil, storeError("get ticket", err)
	}
	if !ticket.IsActive() {
		return nil, apperr.Validation("status", "void tickets cannot be checked in")
	}
	if ticket.CheckedIn {
		return ticket, nil
	}

	at := s.now()
	marked, err := s.DB.MarkCheckedIn(ctx, eventID, ticketID, at)
	if err != nil {
		return nil, storeError("check in ticket", err)
	}
	if !marked {
		// another scan or a void got there first
		current, err := s.DB.GetTicket(ctx, eventID, ticketID)
		if err != nil {
			return nil, storeError("get ticket", err)
		}
		if !current.IsActive() {
			return nil, apperr.Validation("status", "void tickets cannot be checked in")
		}
		return current, nil
	}
	ticket.CheckedIn = true
	ticket.CheckedInAt = &at

	s.Logger.LogTicket("CHECKIN", ticketID, ticket.AttendeeName)
	s.afterWrite(ctx, models.ActionChecked, eventID, ticketID)
	return ticket, nil
}

func (s *TicketService) Delete(ctx context.Context, eventID, ticketID string) error {
	if err := s.DB.DeleteTicket(ctx, eventID, ticketID); err != nil {
		return storeError("delete ticket", err)
	}

	s.Logger.LogTicket("DELETE", ticketID, "ticket deleted")
	s.afterWrite(ctx, models.ActionDeleted, eventID, ticketID)
	return nil
}

// Subscribe returns a live handle that receives the event's full ticket list
// now and after every change.
func (s *TicketService) Subscribe(ctx context.Context, eventID string) (*feed.Subscription[[]models.Ticket], error) {
	if err := s.requireEvent(ctx, eventID); err != nil {
		return nil, err
	}

	sub := s.Feed.Subscribe(ctx, feed.TicketsScope(eventID))
	version := s.Feed.Stamp()
	tickets, err := s.DB.ListTicketsByEvent(ctx, eventID)
	if err != nil {
		sub.Unsubscribe()
		return nil, apperr.Backend("list tickets", err)
	}
	sub.Prime(version, tickets)
	return sub, nil
}

// Refresh reloads an event's tickets and hands them to local subscribers.
// Reloads that finish out of order never replace a newer list.
func (s *TicketService) Refresh(ctx context.Context, eventID string) error {
	version := s.Feed.Stamp()
	tickets, err := s.DB.ListTicketsByEvent(ctx, eventID)
	if err != nil {
		return apperr.Backend("list tickets", err)
	}
	s.Feed.Publish(feed.TicketsScope(eventID), version, tickets)
	return nil
}

// EventDeleted pushes the now empty ticket list of a removed event to local
// subscribers and to other instances.
func (s *TicketService) EventDeleted(ctx context.Context, eventID string) {
	if err := s.Refresh(ctx, eventID); err != nil {
		s.Logger.Warn("FEED", fmt.Sprintf("Failed to refresh tickets of deleted event %s: %v", eventID, err))
	}
	s.notifyPeers(ctx, eventID)
}

func (s *TicketService) afterWrite(ctx context.Context, action models.ChangeAction, eventID string, ids ...string) {
	if err := s.Refresh(ctx, eventID); err != nil {
		s.Logger.Error("FEED", fmt.Sprintf("Failed to refresh tickets of %s: %v", eventID, err))
	}

	s.notifyPeers(ctx, eventID)

	if err := s.Publisher.PublishJSON(s.Topic, eventID, models.NewChangeEventDto(action, eventID, ids...)); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("Failed to publish %s for event %s: %v", action, eventID, err))
	}
}

func (s *TicketService) notifyPeers(ctx context.Context, eventID string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Notify(ctx, feed.TicketsScope(eventID)); err != nil {
		s.Logger.Warn("REDIS", fmt.Sprintf("Failed to notify peers: %v", err))
	}
}

func (s *TicketService) requireEvent(ctx context.Context, eventID string) error {
	exists, err := s.DB.EventExists(ctx, eventID)
	if err != nil {
		return apperr.Backend("check event", err)
	}
	if !exists {
		return apperr.NotFound("event", eventID)
	}
	return nil
}

// newTicketID draws a random v4 id and checks the store for a clash.
func (s *TicketService) newTicketID(ctx context.Context) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := s.newID()
		exists, err := s.DB.TicketExists(ctx, id)
		if err != nil {
			return "", apperr.Backend("check ticket id", err)
		}
		if !exists {
			return id, nil
		}
		s.Logger.Warn("TICKET", fmt.Sprintf("Ticket id collision on %s, drawing again", id))
	}
	return "", fmt.Errorf("no free ticket id after %d attempts", maxIDAttempts)
}

func ticketIDs(tickets []models.Ticket) []string {
	ids := make([]string, len(tickets))
	for i, t := range tickets {
		ids[i] = t.ID
	}
	return ids
}

func storeError(op string, err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	return apperr.Backend(op, err)
}
