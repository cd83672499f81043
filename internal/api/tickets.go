package api

import (
	"fmt"
	"net/http"
	"strconv"

	"wedding-manager/internal/apperr"
	"wedding-manager/internal/attendees"
	"wedding-manager/internal/export"
	"wedding-manager/internal/models"
	"wedding-manager/internal/utils"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	if _, err := h.Events.Get(r.Context(), eventID); err != nil {
		h.fail(w, "TICKET", "Failed to get event", err)
		return
	}

	list, err := h.Tickets.List(r.Context(), eventID)
	if err != nil {
		h.fail(w, "TICKET", "Failed to list tickets", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Tickets retrieved", orEmpty(list))
}

// AddTickets creates one batch. When a write fails part way the tickets
// already created are returned with the error.
func (h *Handler) AddTickets(w http.ResponseWriter, r *http.Request) {
	var req models.BatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, "TICKET", "Invalid ticket batch", err)
		return
	}

	created, err := h.Tickets.AddBatch(r.Context(), chi.URLParam(r, "eventID"), req.AttendeeName, req.Count)
	if err != nil {
		if len(created) > 0 {
			resp := utils.ErrorResponse("Ticket batch stopped part way", err.Error())
			resp.Data = created
			utils.WriteJSON(w, utils.StatusFor(err), resp)
			h.Logger.Error("TICKET", fmt.Sprintf("Batch for %s created %d of %d: %v", req.AttendeeName, len(created), req.Count, err))
			return
		}
		h.fail(w, "TICKET", "Failed to add tickets", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, fmt.Sprintf("%d tickets created", len(created)), created)
}

func (h *Handler) StreamTickets(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	if _, err := h.Events.Get(r.Context(), eventID); err != nil {
		h.fail(w, "SSE", "Failed to get event", err)
		return
	}

	sub, err := h.Tickets.Subscribe(r.Context(), eventID)
	if err != nil {
		h.fail(w, "SSE", "Failed to subscribe to tickets", err)
		return
	}
	stream(w, r, h, "tickets", sub)
}

func (h *Handler) UpdateTicket(w http.ResponseWriter, r *http.Request) {
	eventID, ticketID := chi.URLParam(r, "eventID"), chi.URLParam(r, "ticketID")

	var patch models.TicketPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		h.fail(w, "TICKET", "Invalid ticket update", err)
		return
	}
	if err := h.Tickets.Update(r.Context(), eventID, ticketID, patch); err != nil {
		h.fail(w, "TICKET", "Failed to update ticket", err)
		return
	}
	h.writeTicket(w, r, eventID, ticketID, "Ticket updated")
}

func (h *Handler) DeleteTicket(w http.ResponseWriter, r *http.Request) {
	if err := h.Tickets.Delete(r.Context(), chi.URLParam(r, "eventID"), chi.URLParam(r, "ticketID")); err != nil {
		h.fail(w, "TICKET", "Failed to delete ticket", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) VoidTicket(w http.ResponseWriter, r *http.Request) {
	eventID, ticketID := chi.URLParam(r, "eventID"), chi.URLParam(r, "ticketID")
	if err := h.Tickets.Void(r.Context(), eventID, ticketID); err != nil {
		h.fail(w, "TICKET", "Failed to void ticket", err)
		return
	}
	h.writeTicket(w, r, eventID, ticketID, "Ticket voided")
}

func (h *Handler) CheckInTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.Tickets.CheckIn(r.Context(), chi.URLParam(r, "eventID"), chi.URLParam(r, "ticketID"))
	if err != nil {
		h.fail(w, "TICKET", "Failed to check in ticket", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Ticket checked in", ticket)
}

// DownloadTicket renders a single ticket document.
func (h *Handler) DownloadTicket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eventID, ticketID := chi.URLParam(r, "eventID"), chi.URLParam(r, "ticketID")

	event, err := h.Events.Get(ctx, eventID)
	if err != nil {
		h.fail(w, "TICKET", "Failed to get event", err)
		return
	}
	ticket, err := h.Tickets.Get(ctx, eventID, ticketID)
	if err != nil {
		h.fail(w, "TICKET", "Failed to get ticket", err)
		return
	}
	list, err := h.Tickets.List(ctx, eventID)
	if err != nil {
		h.fail(w, "TICKET", "Failed to list tickets", err)
		return
	}
	attendee, ok := attendees.Find(attendees.Aggregate(list), ticket.AttendeeName)
	if !ok {
		h.fail(w, "TICKET", "Failed to find attendee", apperr.NotFound("attendee", ticket.AttendeeName))
		return
	}

	doc, err := h.Renderer.RenderTicket(ctx, *event, attendee, *ticket)
	if err != nil {
		h.fail(w, "TICKET", "Failed to render ticket", err)
		return
	}

	h.Logger.LogTicket("DOWNLOAD", ticketID, export.FileName(*ticket))
	writeAttachment(w, "application/pdf", export.FileName(*ticket), doc)
}

func (h *Handler) writeTicket(w http.ResponseWriter, r *http.Request, eventID, ticketID, message string) {
	ticket, err := h.Tickets.Get(r.Context(), eventID, ticketID)
	if err != nil {
		h.fail(w, "TICKET", "Failed to get ticket", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, message, ticket)
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", contentDisposition(filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
