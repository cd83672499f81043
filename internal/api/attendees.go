package api

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"wedding-manager/internal/apperr"
	"wedding-manager/internal/attendees"
	"wedding-manager/internal/export"
	"wedding-manager/internal/models"
	"wedding-manager/internal/utils"

	"github.com/go-chi/chi/v5"
)

type voidAttendeeRequest struct {
	Name string `json:"name"`
}

// ListAttendees returns the aggregated attendee list, filtered by ?search=.
func (h *Handler) ListAttendees(w http.ResponseWriter, r *http.Request) {
	_, grouped, err := h.loadAttendees(r)
	if err != nil {
		h.fail(w, "ATTENDEE", "Failed to load attendees", err)
		return
	}

	filtered := attendees.Filter(grouped, r.URL.Query().Get("search"))
	utils.WriteSuccess(w, http.StatusOK, "Attendees retrieved", orEmpty(attendees.Summarize(filtered)))
}

func (h *Handler) VoidAttendee(w http.ResponseWriter, r *http.Request) {
	var req voidAttendeeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, "ATTENDEE", "Invalid request", err)
		return
	}

	voided, err := h.Tickets.VoidAttendee(r.Context(), chi.URLParam(r, "eventID"), req.Name)
	if err != nil {
		h.fail(w, "ATTENDEE", "Failed to void attendee tickets", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, fmt.Sprintf("%d tickets voided", voided), map[string]int{"voided": voided})
}

func (h *Handler) ExportAttendee(w http.ResponseWriter, r *http.Request) {
	event, grouped, err := h.loadAttendees(r)
	if err != nil {
		h.fail(w, "EXPORT", "Failed to load attendees", err)
		return
	}

	name := r.URL.Query().Get("name")
	attendee, ok := attendees.Find(grouped, strings.TrimSpace(name))
	if !ok {
		h.fail(w, "EXPORT", "Failed to export attendee", apperr.NotFound("attendee", name))
		return
	}

	archive, err := h.Packager.ExportAttendee(r.Context(), *event, attendee)
	if err != nil {
		h.failExport(w, err)
		return
	}
	writeAttachment(w, "application/zip", archive.Name, archive.Data)
}

func (h *Handler) ExportAll(w http.ResponseWriter, r *http.Request) {
	event, grouped, err := h.loadAttendees(r)
	if err != nil {
		h.fail(w, "EXPORT", "Failed to load attendees", err)
		return
	}

	archive, err := h.Packager.ExportAll(r.Context(), *event, grouped)
	if err != nil {
		h.failExport(w, err)
		return
	}
	writeAttachment(w, "application/zip", archive.Name, archive.Data)
}

func (h *Handler) loadAttendees(r *http.Request) (*models.Event, []models.Attendee, error) {
	eventID := chi.URLParam(r, "eventID")
	event, err := h.Events.Get(r.Context(), eventID)
	if err != nil {
		return nil, nil, err
	}
	list, err := h.Tickets.List(r.Context(), eventID)
	if err != nil {
		return nil, nil, err
	}
	return event, attendees.Aggregate(list), nil
}

func (h *Handler) failExport(w http.ResponseWriter, err error) {
	var exportErr *export.ExportError
	if errors.As(err, &exportErr) {
		h.Logger.LogExport(exportErr.Attendee, err.Error())
	}
	h.fail(w, "EXPORT", "Export failed", err)
}

func contentDisposition(filename string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}
