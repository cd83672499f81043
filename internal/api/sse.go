package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"wedding-manager/internal/feed"
)

const defaultKeepAlive = 25 * time.Second

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Accel-Buffering", "no")
}

// stream writes every snapshot from sub as an SSE message named event until
// the client goes away or the subscription ends.
func stream[T any](w http.ResponseWriter, r *http.Request, h *Handler, event string, sub *feed.Subscription[T]) {
	defer sub.Unsubscribe()

	rc := http.NewResponseController(w)
	// the server write timeout would cut long-lived streams
	_ = rc.SetWriteDeadline(time.Time{})

	setupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.Logger.Error("SSE", fmt.Sprintf("Streaming unsupported: %v", err))
		return
	}

	keepAlive := h.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	h.Logger.Debug("SSE", fmt.Sprintf("Client connected to %s stream", event))
	for {
		select {
		case snapshot, ok := <-sub.C():
			if !ok {
				return
			}
			data, err := json.Marshal(snapshot)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize %s snapshot: %v", event, err))
				continue
			}
			if string(data) == "null" {
				data = []byte("[]")
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		case <-r.Context().Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from %s stream", event))
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
