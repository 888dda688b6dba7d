package events

import (
	"net/http"
	"time"

	"github.com/mcoot/assassingame/internal/model"
)

// Time between keepalive comments
const pingPeriod = 30 * time.Second

// ServeSSE streams a room's frames to the response until the client goes away
func ServeSSE(w http.ResponseWriter, r *http.Request, room *Room, playerID model.PlayerID) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub, ok := room.Join(playerID)
	if !ok {
		http.Error(w, "Event stream closed", http.StatusServiceUnavailable)
		return
	}
	defer room.Leave(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	_, _ = w.Write(FormatFrame("connected", `{"status":"connected"}`))
	flusher.Flush()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-sub.Frames():
			if !ok {
				return
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
