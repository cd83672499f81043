package website

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"strings"
	"testing"
	"time"

	"wedding-manager/internal/apperr"
	"wedding-manager/internal/logger"
	"wedding-manager/internal/models"
	"wedding-manager/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockEventStore struct {
	mock.Mock
}

func (m *MockEventStore) Get(ctx context.Context, id string) (*models.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockEventStore) Update(ctx context.Context, id string, patch models.EventPatch) error {
	args := m.Called(ctx, id, patch)
	return args.Error(0)
}

func (m *MockEventStore) AddPhoto(ctx context.Context, id, url string) (*models.Event, error) {
	args := m.Called(ctx, id, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func newTestService(t *testing.T, events *MockEventStore) *Service {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)
	svc := NewService(events, store, "http://localhost:8080/", 1, logger.Nop())
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return svc
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func TestCatalog(t *testing.T) {
	templates := Templates()
	require.Len(t, templates, 2)
	assert.Equal(t, "elegant-minimal", templates[0].ID)
	assert.Equal(t, "romantic-classic", templates[1].ID)

	templates[0].ID = "changed"
	_, ok := FindTemplate("elegant-minimal")
	assert.True(t, ok)
	_, ok = FindTemplate("gothic")
	assert.False(t, ok)
}

func TestSelectTemplateSetsURL(t *testing.T) {
	events := new(MockEventStore)
	svc := newTestService(t, events)

	url := "http://localhost:8080/w/e1"
	tpl := "romantic-classic"
	events.On("Update", mock.Anything, "e1", models.EventPatch{WebsiteTemplate: &tpl, WebsiteURL: &url}).Return(nil)
	events.On("Get", mock.Anything, "e1").Return(&models.Event{ID: "e1", WebsiteTemplate: &tpl, WebsiteURL: &url}, nil)

	event, err := svc.SelectTemplate(context.Background(), "e1", "romantic-classic")

	require.NoError(t, err)
	assert.Equal(t, url, *event.WebsiteURL)
	events.AssertExpectations(t)
}

func TestSelectTemplateUnknown(t *testing.T) {
	events := new(MockEventStore)
	svc := newTestService(t, events)

	_, err := svc.SelectTemplate(context.Background(), "e1", "gothic")

	assert.ErrorIs(t, err, apperr.ErrValidation)
	events.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestUploadPhotoStoresAndLinks(t *testing.T) {
	events := new(MockEventStore)
	svc := newTestService(t, events)

	want := "http://localhost:8080/api/files/events/e1/photos/1700000000000-beach.png"
	events.On("Get", mock.Anything, "e1").Return(&models.Event{ID: "e1"}, nil)
	events.On("AddPhoto", mock.Anything, "e1", want).Return(&models.Event{ID: "e1", Photos: []string{want}}, nil)

	url, err := svc.UploadPhoto(context.Background(), "e1", "C:\\pics\\beach.png", bytes.NewReader(pngBytes(t)), "image/png")
	require.NoError(t, err)
	assert.Equal(t, want, url)

	photos, err := svc.ListPhotos(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, []string{want}, photos)
}

func TestUploadPhotoRejectsNonImages(t *testing.T) {
	events := new(MockEventStore)
	svc := newTestService(t, events)
	events.On("Get", mock.Anything, "e1").Return(&models.Event{ID: "e1"}, nil)

	_, err := svc.UploadPhoto(context.Background(), "e1", "notes.txt", strings.NewReader("hello"), "text/plain")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.UploadPhoto(context.Background(), "e1", "fake.png", strings.NewReader("hello"), "image/png")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.UploadPhoto(context.Background(), "e1", "big.png", bytes.NewReader(make([]byte, 2<<20)), "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	events.AssertNotCalled(t, "AddPhoto", mock.Anything, mock.Anything, mock.Anything)
}

func TestUploadPhotoUnknownEvent(t *testing.T) {
	events := new(MockEventStore)
	svc := newTestService(t, events)
	events.On("Get", mock.Anything, "nope").Return(nil, apperr.NotFound("event", "nope"))

	_, err := svc.UploadPhoto(context.Background(), "nope", "a.png", bytes.NewReader(pngBytes(t)), "image/png")

	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
