package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wedding-manager/internal/apperr"
	"wedding-manager/internal/auth"
	"wedding-manager/internal/feed"
	"wedding-manager/internal/kafka"
	"wedding-manager/internal/logger"
	"wedding-manager/internal/models"

	"github.com/google/uuid"
)

type EventDBLayer interface {
	ListEvents(ctx context.Context) ([]models.Event, error)
	GetEventByID(ctx context.Context, id string) (*models.Event, error)
	CreateEvent(ctx context.Context, event models.Event) error
	UpdateEvent(ctx context.Context, event models.Event, columns ...string) error
	AppendPhoto(ctx context.Context, id, url string, at time.Time) (*models.Event, bool, error)
	DeleteEvent(ctx context.Context, id string) error
}

// Notifier tells other instances that a feed scope changed.
type Notifier interface {
	Notify(ctx context.Context, scope string) error
}

type EventService struct {
	DB        EventDBLayer
	Feed      *feed.Hub[[]models.Event]
	Notifier  Notifier
	Publisher kafka.Publisher
	Topic     string
	Validator *apperr.StructValidator
	Logger    *logger.Logger

	// OnDelete runs after an event and its tickets are gone, so ticket
	// subscribers can be told.
	OnDelete func(ctx context.Context, eventID string)
}

func NewEventService(db EventDBLayer, hub *feed.Hub[[]models.Event], publisher kafka.Publisher, topic string, log *logger.Logger) *EventService {
	return &EventService{
		DB:        db,
		Feed:      hub,
		Publisher: publisher,
		Topic:     topic,
		Validator: apperr.NewStructValidator(),
		Logger:    log,
	}
}

func (s *EventService) List(ctx context.Context) ([]models.Event, error) {
	events, err := s.DB.ListEvents(ctx)
	if err != nil {
		return nil, apperr.Backend("list events", err)
	}
	return events, nil
}

func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.DB.GetEventByID(ctx, id)
	if err != nil {
		return nil, storeError("get event", err)
	}
	return event, nil
}

// Create validates the draft, stores it under a fresh id and returns the id.
func (s *EventService) Create(ctx context.Context, draft models.EventDraft) (string, error) {
	draft.Couple = strings.TrimSpace(draft.Couple)
	draft.Location = strings.TrimSpace(draft.Location)
	if err := s.Validator.ValidateStruct(draft); err != nil {
		return "", err
	}

	now := time.Now().UTC()
	event := models.Event{
		ID:        uuid.NewString(),
		Couple:    draft.Couple,
		Date:      draft.Date,
		Location:  draft.Location,
		Image:     draft.Image,
		Guests:    draft.Guests,
		OwnerID:   auth.UserID(ctx),
		Status:    draft.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if event.Image == "" {
		event.Image = models.DefaultEventImage
	}
	if event.Status == "" {
		event.Status = models.EventStatusDraft
	}

	if err := s.DB.CreateEvent(ctx, event); err != nil {
		return "", apperr.Backend("create event", err)
	}

	s.Logger.LogEvent("CREATE", event.ID, event.Couple)
	s.afterWrite(ctx, models.ActionCreated, event.ID)
	return event.ID, nil
}

func (s *EventService) Update(ctx context.Context, id string, patch models.EventPatch) error {
	if patch.Empty() {
		return apperr.Validation("", "no fields to update")
	}
	if err := s.Validator.ValidateStruct(patch); err != nil {
		return err
	}

	event, err := s.DB.GetEventByID(ctx, id)
	if err != nil {
		return storeError("get event", err)
	}

	applyPatch(event, patch)
	if strings.TrimSpace(event.Couple) == "" {
		return apperr.Validation("couple", "is required")
	}
	if strings.TrimSpace(event.Location) == "" {
		return apperr.Validation("location", "is required")
	}
	event.UpdatedAt = time.Now().UTC()

	if err := s.DB.UpdateEvent(ctx, *event, patchColumns(patch)...); err != nil {
		return storeError("update event", err)
	}

	s.Logger.LogEvent("UPDATE", id, "event updated")
	s.afterWrite(ctx, models.ActionUpdated, id)
	return nil
}

// AddPhoto appends a gallery URL to the event. A URL already present is
// left alone.
func (s *EventService) AddPhoto(ctx context.Context, id, url string) (*models.Event, error) {
	event, added, err := s.DB.AppendPhoto(ctx, id, url, time.Now().UTC())
	if err != nil {
		return nil, storeError("add photo", err)
	}
	if !added {
		return event, nil
	}

	s.Logger.LogEvent("PHOTO", id, url)
	s.afterWrite(ctx, models.ActionUpdated, id)
	return event, nil
}

// Delete removes the event together with its tickets.
func (s *EventService) Delete(ctx context.Context, id string) error {
	if err := s.DB.DeleteEvent(ctx, id); err != nil {
		return storeError("delete event", err)
	}

	s.Logger.LogEvent("DELETE", id, "event and tickets deleted")
	s.afterWrite(ctx, models.ActionDeleted, id)
	if s.OnDelete != nil {
		s.OnDelete(ctx, id)
	}
	return nil
}

// Subscribe returns a live handle that receives the full event list now and
// after every change.
func (s *EventService) Subscribe(ctx context.Context) (*feed.Subscription[[]models.Event], error) {
	sub := s.Feed.Subscribe(ctx, feed.EventsScope)

	version := s.Feed.Stamp()
	events, err := s.DB.ListEvents(ctx)
	if err != nil {
		sub.Unsubscribe()
		return nil, apperr.Backend("list events", err)
	}
	sub.Prime(version, events)
	return sub, nil
}

// Refresh reloads the list and hands it to local subscribers. Reloads that
// finish out of order never replace a newer list.
func (s *EventService) Refresh(ctx context.Context) error {
	version := s.Feed.Stamp()
	events, err := s.DB.ListEvents(ctx)
	if err != nil {
		return apperr.Backend("list events", err)
	}
	s.Feed.Publish(feed.EventsScope, version, events)
	return nil
}

// afterWrite runs the post-write fan-out. Failures are logged and never
// change the result of the write.
func (s *EventService) afterWrite(ctx context.Context, action models.ChangeAction, eventID string) {
	if err := s.Refresh(ctx); err != nil {
		s.Logger.Error("FEED", fmt.Sprintf("Failed to refresh event feed: %v", err))
	}

	if s.Notifier != nil {
		if err := s.Notifier.Notify(ctx, feed.EventsScope); err != nil {
			s.Logger.Warn("REDIS", fmt.Sprintf("Failed to notify peers: %v", err))
		}
	}

	if err := s.Publisher.PublishJSON(s.Topic, eventID, models.NewChangeEventDto(action, eventID)); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("Failed to publish %s for event %s: %v", action, eventID, err))
	}
}

func applyPatch(event *models.Event, patch models.EventPatch) {
	if patch.Couple != nil {
		event.Couple = strings.TrimSpace(*patch.Couple)
	}
	if patch.Date != nil {
		event.Date = *patch.Date
	}
	if patch.Location != nil {
		event.Location = strings.TrimSpace(*patch.Location)
	}
	if patch.Image != nil {
		event.Image = *patch.Image
	}
	if patch.Guests != nil {
		event.Guests = *patch.Guests
	}
	if patch.WebsiteTemplate != nil {
		event.WebsiteTemplate = patch.WebsiteTemplate
	}
	if patch.WebsiteURL != nil {
		event.WebsiteURL = patch.WebsiteURL
	}
	if patch.Status != nil {
		event.Status = *patch.Status
	}
}

// patchColumns names the columns a patch touches, plus updated_at.
func patchColumns(patch models.EventPatch) []string {
	var columns []string
	if patch.Couple != nil {
		columns = append(columns, "couple")
	}
	if patch.Date != nil {
		columns = append(columns, "date")
	}
	if patch.Location != nil {
		columns = append(columns, "location")
	}
	if patch.Image != nil {
		columns = append(columns, "image")
	}
	if patch.Guests != nil {
		columns = append(columns, "guests")
	}
	if patch.WebsiteTemplate != nil {
		columns = append(columns, "website_template")
	}
	if patch.WebsiteURL != nil {
		columns = append(columns, "website_url")
	}
	if patch.Status != nil {
		columns = append(columns, "status")
	}
	return append(columns, "updated_at")
}

// storeError keeps NotFound as is and turns anything else into a backend error.
func storeError(op string, err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	return apperr.Backend(op, err)
}
