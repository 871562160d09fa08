package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/seantiz/parxe/internal/model"
	"github.com/seantiz/parxe/internal/planner"
)

// handleStreamEvents streams task state changes as server-sent events. The
// current state is sent first; the stream ends with a "done" event once the
// task is finished or aborted.
func (s *Server) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookupTask(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, canFlush := w.(http.Flusher)
	flush := func() {
		if canFlush {
			flusher.Flush()
		}
	}

	current := planner.Event{TaskID: rec.ID, Status: rec.Status, Error: rec.Error, At: time.Now().UTC()}
	if model.IsTerminal(rec.Status) {
		w.WriteHeader(http.StatusOK)
		_ = writeSSEJSON(w, "status", current)
		_ = writeSSEEvent(w, "done", rec.Status)
		flush()
		return
	}

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	// Subscribe before consulting the planner; completion in between
	// closes ch.
	ch, unsub := s.planner.Events().Subscribe(rec.ID)
	defer unsub()

	w.WriteHeader(http.StatusOK)
	if err := writeSSEJSON(w, "status", current); err != nil {
		return
	}
	flush()

	if _, tracked := s.planner.Future(rec.ID); !tracked {
		// Left over from an earlier process, or completed just now.
		if latest, err := s.store.GetTask(r.Context(), rec.ID); err == nil && latest.Status != rec.Status {
			_ = writeSSEJSON(w, "status", planner.Event{TaskID: latest.ID, Status: latest.Status, Error: latest.Error, At: time.Now().UTC()})
		}
		_ = writeSSEEvent(w, "done", "stream complete")
		flush()
		return
	}

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				_ = writeSSEEvent(w, "done", "stream complete")
				flush()
				return
			}
			if err := writeSSEJSON(w, "status", ev); err != nil {
				return
			}
			flush()
		case <-r.Context().Done():
			return
		}
	}
}

// writeSSEJSON writes v as the JSON payload of a named SSE event.
func writeSSEJSON(w http.ResponseWriter, eventType string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return writeSSEEvent(w, eventType, string(data))
}

// writeSSEEvent writes a named SSE event. Multi-line data is split so that
// each segment gets its own "data:" prefix.
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	for seg := range strings.SplitSeq(data, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", seg); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(w, "\n")
	return err
}
