package api

import (
	"fmt"
	"net/http"

	"wedding-manager/internal/apperr"
	"wedding-manager/internal/utils"

	"github.com/go-chi/chi/v5"
)

// ImportTickets reads a guest list from the multipart "file" field. A file
// with any bad row writes nothing; a failed write keeps what was created.
func (h *Handler) ImportTickets(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	if _, err := h.Events.Get(r.Context(), eventID); err != nil {
		h.fail(w, "IMPORT", "Failed to get event", err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImportBody)
	file, header, err := r.FormFile("file")
	if err != nil {
		h.fail(w, "IMPORT", "Invalid upload", apperr.Validation("file", err.Error()))
		return
	}
	defer file.Close()

	rows, err := h.Importer.Parse(header.Filename, file)
	if err != nil {
		h.fail(w, "IMPORT", fmt.Sprintf("Failed to parse %s", header.Filename), err)
		return
	}

	result, err := h.Importer.Import(r.Context(), eventID, rows)
	if err != nil {
		resp := utils.ErrorResponse("Import stopped part way", err.Error())
		resp.Data = result
		utils.WriteJSON(w, utils.StatusFor(err), resp)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, fmt.Sprintf("Imported %d rows", result.Rows), result)
}
