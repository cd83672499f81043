package api

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"

	"wedding-manager/internal/apperr"
	"wedding-manager/internal/utils"
	"wedding-manager/internal/website"

	"github.com/go-chi/chi/v5"
)

type selectTemplateRequest struct {
	TemplateID string `json:"templateId"`
}

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccess(w, http.StatusOK, "Templates retrieved", website.Templates())
}

func (h *Handler) SelectTemplate(w http.ResponseWriter, r *http.Request) {
	var req selectTemplateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, "WEBSITE", "Invalid request", err)
		return
	}

	event, err := h.Website.SelectTemplate(r.Context(), chi.URLParam(r, "eventID"), req.TemplateID)
	if err != nil {
		h.fail(w, "WEBSITE", "Failed to select template", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Website updated", event)
}

func (h *Handler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.Website.MaxPhotoBytes+(1<<20))
	file, header, err := r.FormFile("photo")
	if err != nil {
		h.fail(w, "WEBSITE", "Invalid upload", apperr.Validation("photo", err.Error()))
		return
	}
	defer file.Close()

	photoURL, err := h.Website.UploadPhoto(r.Context(), chi.URLParam(r, "eventID"), header.Filename, file, header.Header.Get("Content-Type"))
	if err != nil {
		h.fail(w, "WEBSITE", "Failed to upload photo", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Photo uploaded", map[string]string{"url": photoURL})
}

func (h *Handler) ListPhotos(w http.ResponseWriter, r *http.Request) {
	urls, err := h.Website.ListPhotos(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		h.fail(w, "WEBSITE", "Failed to list photos", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Photos retrieved", orEmpty(urls))
}

// ServeFile streams a stored object back to the client.
func (h *Handler) ServeFile(w http.ResponseWriter, r *http.Request) {
	objectPath := chi.URLParam(r, "*")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(objectPath)
		if err != nil {
			h.fail(w, "STORAGE", "Invalid file path", apperr.Validation("path", err.Error()))
			return
		}
		objectPath = unescaped
	}
	rc, err := h.Files.Open(r.Context(), objectPath)
	if err != nil {
		h.fail(w, "STORAGE", "Failed to open file", err)
		return
	}
	defer rc.Close()

	if ct := mime.TypeByExtension(path.Ext(objectPath)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := io.Copy(w, rc); err != nil {
		h.Logger.Warn("STORAGE", fmt.Sprintf("Failed to stream %s: %v", objectPath, err))
	}
}
