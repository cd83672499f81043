package api

import (
	"net/http"

	"wedding-manager/internal/models"
	"wedding-manager/internal/utils"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	list, err := h.Events.List(r.Context())
	if err != nil {
		h.fail(w, "EVENT", "Failed to list events", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Events retrieved", orEmpty(list))
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var draft models.EventDraft
	if err := decodeJSON(w, r, &draft); err != nil {
		h.fail(w, "EVENT", "Invalid event", err)
		return
	}

	id, err := h.Events.Create(r.Context(), draft)
	if err != nil {
		h.fail(w, "EVENT", "Failed to create event", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Event created", map[string]string{"id": id})
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.Events.Get(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		h.fail(w, "EVENT", "Failed to get event", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Event retrieved", event)
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	var patch models.EventPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		h.fail(w, "EVENT", "Invalid event update", err)
		return
	}
	if err := h.Events.Update(r.Context(), eventID, patch); err != nil {
		h.fail(w, "EVENT", "Failed to update event", err)
		return
	}

	event, err := h.Events.Get(r.Context(), eventID)
	if err != nil {
		h.fail(w, "EVENT", "Failed to get event", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Event updated", event)
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.Events.Delete(r.Context(), chi.URLParam(r, "eventID")); err != nil {
		h.fail(w, "EVENT", "Failed to delete event", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	sub, err := h.Events.Subscribe(r.Context())
	if err != nil {
		h.fail(w, "SSE", "Failed to subscribe to events", err)
		return
	}
	stream(w, r, h, "events", sub)
}
