// Package website manages an event's public site: the chosen template and
// the photo gallery.
package website

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"wedding-manager/internal/apperr"
	"wedding-manager/internal/export"
	"wedding-manager/internal/logger"
	"wedding-manager/internal/models"
	"wedding-manager/internal/storage"
)

var allowedPhotoTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
}

// EventStore is the part of the event service the site needs.
type EventStore interface {
	Get(ctx context.Context, id string) (*models.Event, error)
	Update(ctx context.Context, id string, patch models.EventPatch) error
	AddPhoto(ctx context.Context, id, url string) (*models.Event, error)
}

type Service struct {
	Events        EventStore
	Store         storage.ObjectStore
	BaseURL       string
	MaxPhotoBytes int64
	Logger        *logger.Logger

	now func() time.Time
}

func NewService(events EventStore, store storage.ObjectStore, baseURL string, maxPhotoMB int, log *logger.Logger) *Service {
	return &Service{
		Events:        events,
		Store:         store,
		BaseURL:       strings.TrimRight(baseURL, "/"),
		MaxPhotoBytes: int64(maxPhotoMB) << 20,
		Logger:        log,
		now:           time.Now,
	}
}

// SiteURL is where an event's public site lives.
func (s *Service) SiteURL(eventID string) string {
	return fmt.Sprintf("%s/w/%s", s.BaseURL, eventID)
}

// SelectTemplate applies a catalog template and publishes the site URL.
func (s *Service) SelectTemplate(ctx context.Context, eventID, templateID string) (*models.Event, error) {
	if _, ok := FindTemplate(templateID); !ok {
		return nil, apperr.Validation("templateId", fmt.Sprintf("unknown template %q", templateID))
	}

	url := s.SiteURL(eventID)
	if err := s.Events.Update(ctx, eventID, models.EventPatch{WebsiteTemplate: &templateID, WebsiteURL: &url}); err != nil {
		return nil, err
	}

	s.Logger.LogEvent("WEBSITE", eventID, fmt.Sprintf("template %s at %s", templateID, url))
	return s.Events.Get(ctx, eventID)
}

// UploadPhoto stores an image under events/{id}/photos/{unixmillis}-{name}
// and adds it to the event's gallery.
// A declared content type, unless generic, must agree with the sniffed one.
func (s *Service) UploadPhoto(ctx context.Context, eventID, filename string, r io.Reader, contentType string) (string, error) {
	declared := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	if declared == "application/octet-stream" {
		declared = ""
	}
	if declared != "" && !allowedPhotoTypes[declared] {
		return "", apperr.Validation("photo", fmt.Sprintf("type %s is not an accepted image", declared))
	}

	if _, err := s.Events.Get(ctx, eventID); err != nil {
		return "", err
	}

	name := export.SafeName(path.Base(strings.ReplaceAll(filename, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return "", apperr.Validation("photo", "file name is required")
	}

	data, err := io.ReadAll(io.LimitReader(r, s.MaxPhotoBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > s.MaxPhotoBytes {
		return "", apperr.Validation("photo", fmt.Sprintf("larger than %d MB", s.MaxPhotoBytes>>20))
	}

	sniffed := http.DetectContentType(data)
	if !allowedPhotoTypes[sniffed] || (declared != "" && declared != sniffed) {
		return "", apperr.Validation("photo", fmt.Sprintf("content is %s, not an accepted image", sniffed))
	}

	objectPath := fmt.Sprintf("%s/%d-%s", photoPrefix(eventID), s.now().UnixMilli(), name)
	url, err := s.Store.Put(ctx, objectPath, bytes.NewReader(data), sniffed)
	if err != nil {
		return "", err
	}
	if _, err := s.Events.AddPhoto(ctx, eventID, url); err != nil {
		return "", err
	}

	s.Logger.LogEvent("PHOTO", eventID, objectPath)
	return url, nil
}

func (s *Service) ListPhotos(ctx context.Context, eventID string) ([]string, error) {
	if _, err := s.Events.Get(ctx, eventID); err != nil {
		return nil, err
	}
	return s.Store.List(ctx, photoPrefix(eventID))
}

func photoPrefix(eventID string) string {
	return "events/" + eventID + "/photos"
}
