// Package api exposes events, tickets, exports, imports and event websites
// over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"wedding-manager/internal/apperr"
	"wedding-manager/internal/auth"
	events "wedding-manager/internal/events/service"
	"wedding-manager/internal/export"
	"wedding-manager/internal/importer"
	"wedding-manager/internal/logger"
	"wedding-manager/internal/storage"
	tickets "wedding-manager/internal/tickets/service"
	"wedding-manager/internal/utils"
	"wedding-manager/internal/website"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	maxJSONBody   = 1 << 20
	maxImportBody = 10 << 20
)

// Pinger reports whether the database answers.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	Events   *events.EventService
	Tickets  *tickets.TicketService
	Renderer export.DocumentRenderer
	Packager *export.Packager
	Importer *importer.Importer
	Website  *website.Service
	Files    storage.ObjectStore
	DB       Pinger
	Limiter  *IPRateLimiter
	Logger   *logger.Logger

	// KeepAlive is the SSE comment interval that keeps proxies from closing
	// idle streams.
	KeepAlive time.Duration
}

// Router builds the HTTP surface. Routes under /api except templates and
// files require a verified bearer token when verifier is non-nil.
func (h *Handler) Router(verifier auth.Verifier) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/health", h.Health)
	r.Get("/api/templates", h.ListTemplates)
	r.Get("/api/files/*", h.ServeFile)

	r.Group(func(r chi.Router) {
		if verifier != nil {
			r.Use(auth.Middleware(verifier, h.Logger))
		}

		r.Route("/api/events", func(r chi.Router) {
			r.Get("/", h.ListEvents)
			r.Post("/", h.CreateEvent)
			r.Get("/stream", h.StreamEvents)

			r.Route("/{eventID}", func(r chi.Router) {
				r.Get("/", h.GetEvent)
				r.Patch("/", h.UpdateEvent)
				r.Delete("/", h.DeleteEvent)

				r.Route("/tickets", func(r chi.Router) {
					r.Get("/", h.ListTickets)
					r.Post("/", h.AddTickets)
					r.Get("/stream", h.StreamTickets)
					r.Patch("/{ticketID}", h.UpdateTicket)
					r.Delete("/{ticketID}", h.DeleteTicket)
					r.Post("/{ticketID}/void", h.VoidTicket)
					r.Post("/{ticketID}/checkin", h.CheckInTicket)
					r.Get("/{ticketID}/pdf", h.DownloadTicket)
				})

				r.Get("/attendees", h.ListAttendees)
				r.Post("/attendees/void", h.VoidAttendee)

				r.Group(func(r chi.Router) {
					if h.Limiter != nil {
						r.Use(h.Limiter.Middleware)
					}
					r.Get("/attendees/export", h.ExportAttendee)
					r.Get("/export", h.ExportAll)
					r.Post("/import", h.ImportTickets)
				})

				r.Put("/website", h.SelectTemplate)
				r.Post("/photos", h.UploadPhoto)
				r.Get("/photos", h.ListPhotos)
			})
		})
	})

	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.PingContext(ctx); err != nil {
			h.Logger.Error("HEALTH", fmt.Sprintf("Database ping failed: %v", err))
			utils.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.Logger.LogAPI(r.Method, r.URL.Path, fmt.Sprintf("%d", ww.Status()), time.Since(start).String())
	})
}

// fail logs err under category and writes the error envelope.
func (h *Handler) fail(w http.ResponseWriter, category, message string, err error) {
	status := utils.WriteError(w, message, err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error(category, fmt.Sprintf("%s: %v", message, err))
	} else {
		h.Logger.Debug(category, fmt.Sprintf("%s: %v", message, err))
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation("body", err.Error())
	}
	return nil
}

// orEmpty keeps empty lists as [] in JSON.
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
