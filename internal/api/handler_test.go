package api_test

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wedding-manager/internal/api"
	"wedding-manager/internal/database"
	eventdb "wedding-manager/internal/events/db"
	events "wedding-manager/internal/events/service"
	"wedding-manager/internal/export"
	"wedding-manager/internal/feed"
	"wedding-manager/internal/importer"
	"wedding-manager/internal/kafka"
	"wedding-manager/internal/logger"
	"wedding-manager/internal/models"
	"wedding-manager/internal/storage"
	ticketdb "wedding-manager/internal/tickets/db"
	"wedding-manager/internal/tickets/qr"
	tickets "wedding-manager/internal/tickets/service"
	"wedding-manager/internal/tickets/template"
	"wedding-manager/internal/website"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testServer struct {
	handler http.Handler
	h       *api.Handler
}

func newTestServer(t *testing.T, verifier func(*api.Handler) http.Handler) *testServer {
	t.Helper()

	sqldb, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })
	require.NoError(t, database.CreateSchema(context.Background(), bunDB))

	log := logger.Nop()
	publisher := kafka.NoopPublisher{}
	eventSvc := events.NewEventService(&eventdb.DB{Bun: bunDB}, feed.NewHub[[]models.Event](), publisher, "events", log)
	ticketSvc := tickets.NewTicketService(&ticketdb.DB{Bun: bunDB}, feed.NewHub[[]models.Ticket](), publisher, "tickets", log)

	generator, err := template.NewGenerator("")
	require.NoError(t, err)
	renderer := template.NewRenderer(qr.NewSurface(128), generator)

	store, err := storage.NewLocalStore(t.TempDir(), "http://test.local")
	require.NoError(t, err)

	h := &api.Handler{
		Events:    eventSvc,
		Tickets:   ticketSvc,
		Renderer:  renderer,
		Packager:  export.NewPackager(renderer, publisher, "exports", log),
		Importer:  importer.NewImporter(ticketSvc, importer.DefaultLimits, log),
		Website:   website.NewService(eventSvc, store, "http://test.local", 2, log),
		Files:     store,
		DB:        bunDB,
		Logger:    log,
		KeepAlive: time.Minute,
	}

	ts := &testServer{h: h}
	if verifier != nil {
		ts.handler = verifier(h)
	} else {
		ts.handler = h.Router(nil)
	}
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func (ts *testServer) upload(t *testing.T, path, field, filename string, content []byte) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func (ts *testServer) createEvent(t *testing.T) string {
	t.Helper()
	rec, env := ts.do(t, http.MethodPost, "/api/events", map[string]any{
		"couple":   "Ana & Luis",
		"date":     "2026-09-12T15:00:00Z",
		"location": "Porto",
		"guests":   80,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct{ ID string }
	require.NoError(t, json.Unmarshal(env.Data, &created))
	return created.ID
}

func (ts *testServer) addTickets(t *testing.T, eventID, name string, count int) []models.Ticket {
	t.Helper()
	rec, env := ts.do(t, http.MethodPost, "/api/events/"+eventID+"/tickets", map[string]any{"attendeeName": name, "count": count})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var list []models.Ticket
	require.NoError(t, json.Unmarshal(env.Data, &list))
	return list
}

func TestEventLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, env := ts.do(t, http.MethodGet, "/api/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(env.Data))

	id := ts.createEvent(t)

	rec, env = ts.do(t, http.MethodGet, "/api/events/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var event models.Event
	require.NoError(t, json.Unmarshal(env.Data, &event))
	assert.Equal(t, "Ana & Luis", event.Couple)
	assert.Equal(t, models.EventStatusDraft, event.Status)

	rec, env = ts.do(t, http.MethodPatch, "/api/events/"+id, map[string]any{"location": "Sintra"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &event))
	assert.Equal(t, "Sintra", event.Location)

	ts.addTickets(t, id, "Rui", 2)
	rec, _ = ts.do(t, http.MethodDelete, "/api/events/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, env = ts.do(t, http.MethodGet, "/api/events/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)

	rec, _ = ts.do(t, http.MethodGet, "/api/events/"+id+"/tickets", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateEventValidation(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, env := ts.do(t, http.MethodPost, "/api/events", map[string]any{"couple": "", "location": "Porto"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, env.Error)

	rec, _ = ts.do(t, http.MethodPost, "/api/events", map[string]any{"couple": "A", "unknown": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTicketsAndAttendees(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.createEvent(t)

	maria := ts.addTickets(t, id, "  Maria Silva ", 3)
	require.Len(t, maria, 3)
	assert.Equal(t, "Maria Silva", maria[0].AttendeeName)
	ts.addTickets(t, id, "João", 1)

	rec, env := ts.do(t, http.MethodGet, "/api/events/"+id+"/attendees?search=SILVA", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var summaries []models.AttendeeSummary
	require.NoError(t, json.Unmarshal(env.Data, &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "Maria Silva", summaries[0].Name)
	assert.Equal(t, 3, summaries[0].ActiveCount)

	rec, env = ts.do(t, http.MethodPost, "/api/events/"+id+"/tickets/"+maria[0].ID+"/checkin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var checked models.Ticket
	require.NoError(t, json.Unmarshal(env.Data, &checked))
	assert.True(t, checked.CheckedIn)

	rec, env = ts.do(t, http.MethodPost, "/api/events/"+id+"/attendees/void", map[string]string{"name": "Maria Silva"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"voided":3}`, string(env.Data))

	rec, _ = ts.do(t, http.MethodPost, "/api/events/"+id+"/tickets/"+maria[1].ID+"/checkin", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = ts.do(t, http.MethodPatch, "/api/events/"+id+"/tickets/"+maria[2].ID, map[string]any{"status": "active"})
	require.Equal(t, http.StatusOK, rec.Code)
	var reactivated models.Ticket
	require.NoError(t, json.Unmarshal(env.Data, &reactivated))
	assert.Equal(t, models.TicketStatusActive, reactivated.Status)

	rec, _ = ts.do(t, http.MethodDelete, "/api/events/"+id+"/tickets/"+maria[2].ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = ts.do(t, http.MethodPost, "/api/events/"+id+"/tickets/"+maria[2].ID+"/void", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadTicketPDF(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.createEvent(t)
	list := ts.addTickets(t, id, "Rui/Costa", 2)

	rec, _ := ts.do(t, http.MethodGet, "/api/events/"+id+"/tickets/"+list[1].ID+"/pdf", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Rui_Costa_ticket_2_of_2.pdf")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}

func TestExportArchives(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.createEvent(t)
	ts.addTickets(t, id, "Maria", 2)
	ts.addTickets(t, id, "Rui", 1)

	rec, _ := ts.do(t, http.MethodGet, "/api/events/"+id+"/export", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "all_tickets.zip")

	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"Maria_ticket_1_of_2.pdf", "Maria_ticket_2_of_2.pdf", "Rui_ticket_1_of_1.pdf"}, names)

	rec, _ = ts.do(t, http.MethodGet, "/api/events/"+id+"/attendees/export?name=Rui", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Rui_tickets.zip")

	rec, _ = ts.do(t, http.MethodGet, "/api/events/"+id+"/attendees/export?name=Nobody", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportWithoutTickets(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.createEvent(t)

	rec, _ := ts.do(t, http.MethodGet, "/api/events/"+id+"/export", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportCSV(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.createEvent(t)

	csv := "name,tickets\nMaria,2\n\nRui,1\n"
	rec, env := ts.upload(t, "/api/events/"+id+"/import", "file", "guests.csv", []byte(csv))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var result importer.Result
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 2, result.Rows)
	assert.Equal(t, 3, result.TicketsCreated)

	bad := "name,tickets\nAna,two\n,3\n"
	rec, env = ts.upload(t, "/api/events/"+id+"/import", "file", "guests.csv", []byte(bad))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, env.Error, "row 2")
	assert.Contains(t, env.Error, "row 3")

	rec, env = ts.do(t, http.MethodGet, "/api/events/"+id+"/tickets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Ticket
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 3)

	rec, _ = ts.upload(t, "/api/events/"+id+"/import", "file", "guests.txt", []byte(csv))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebsiteAndPhotos(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.createEvent(t)

	rec, env := ts.do(t, http.MethodGet, "/api/templates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var templates []website.Template
	require.NoError(t, json.Unmarshal(env.Data, &templates))
	assert.Len(t, templates, 2)

	rec, env = ts.do(t, http.MethodPut, "/api/events/"+id+"/website", map[string]string{"templateId": "elegant-minimal"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var event models.Event
	require.NoError(t, json.Unmarshal(env.Data, &event))
	require.NotNil(t, event.WebsiteURL)
	assert.Equal(t, "http://test.local/w/"+id, *event.WebsiteURL)

	rec, _ = ts.do(t, http.MethodPut, "/api/events/"+id+"/website", map[string]string{"templateId": "gothic"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	rec, env = ts.upload(t, "/api/events/"+id+"/photos", "photo", "first dance.png", img.Bytes())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var uploaded struct{ URL string }
	require.NoError(t, json.Unmarshal(env.Data, &uploaded))
	assert.True(t, strings.HasPrefix(uploaded.URL, "http://test.local/api/files/events/"+id+"/photos/"))

	rec, env = ts.do(t, http.MethodGet, "/api/events/"+id+"/photos", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var urls []string
	require.NoError(t, json.Unmarshal(env.Data, &urls))
	assert.Equal(t, []string{uploaded.URL}, urls)

	filePath := strings.TrimPrefix(uploaded.URL, "http://test.local")
	req := httptest.NewRequest(http.MethodGet, filePath, nil)
	fileRec := httptest.NewRecorder()
	ts.handler.ServeHTTP(fileRec, req)
	require.Equal(t, http.StatusOK, fileRec.Code)
	assert.Equal(t, img.Bytes(), fileRec.Body.Bytes())
}

func TestEventStream(t *testing.T) {
	ts := newTestServer(t, nil)
	server := httptest.NewServer(ts.handler)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/events/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream;charset=UTF-8", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	nextData := func() string {
		for lines.Scan() {
			if data, ok := strings.CutPrefix(lines.Text(), "data: "); ok {
				return data
			}
		}
		return ""
	}

	assert.Equal(t, "[]", nextData())

	_, err = ts.h.Events.Create(context.Background(), models.EventDraft{Couple: "Mia & Noah", Date: time.Now(), Location: "Lisbon"})
	require.NoError(t, err)

	var list []models.Event
	require.NoError(t, json.Unmarshal([]byte(nextData()), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Mia & Noah", list[0].Couple)
}

func TestExportRateLimit(t *testing.T) {
	ts := newTestServer(t, func(h *api.Handler) http.Handler {
		h.Limiter = api.NewIPRateLimiter(0.001, 1)
		return h.Router(nil)
	})
	id := ts.createEvent(t)
	ts.addTickets(t, id, "Rui", 1)

	rec, _ := ts.do(t, http.MethodGet, "/api/events/"+id+"/export", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/api/events/"+id+"/export", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/api/events/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

type denyAll struct{}

func (denyAll) Verify(context.Context, string) (string, error) {
	return "", errors.New("expired")
}

func TestAuthGuardsAPI(t *testing.T) {
	ts := newTestServer(t, func(h *api.Handler) http.Handler {
		return h.Router(denyAll{})
	})

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.Header.Set("Authorization", "Bearer x.y.z")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/api/templates", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
