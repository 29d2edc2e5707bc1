package ui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/me/authapp/internal/observe"
)

// HandleEvents streams session status changes via Server-Sent Events.
// GET /events
func (ui *UI) HandleEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	// Subscribe before the initial snapshot so no change is missed.
	updates, cancel := observe.Latest(ui.app.Session.Subscribe)
	defer cancel()

	if err := sendSSEEvent(w, flusher, "status", newStatusView(ui.app.Session.Status())); err != nil {
		ui.logger.Debug("sse client disconnected", "error", err)
		return
	}

	ticker := time.NewTicker(ui.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case st := <-updates:
			if err := sendSSEEvent(w, flusher, "status", newStatusView(st)); err != nil {
				ui.logger.Debug("sse client disconnected", "error", err)
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// sendSSEEvent writes a single SSE event.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
