package stream

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
)

// EventsHandler streams dispatched packets to browsers as server-sent
// events. Each event carries one engine.Frame as JSON.
type EventsHandler struct {
	broadcaster *Broadcaster
}

// NewEventsHandler creates an SSE handler on top of b.
func NewEventsHandler(b *Broadcaster) *EventsHandler {
	return &EventsHandler{broadcaster: b}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	listener := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(listener)

	log.Printf("Events listener connected (total: %d)", h.broadcaster.ListenerCount())
	defer log.Printf("Events listener disconnected")

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-listener.Done():
			return
		case frame := <-listener.C:
			data, err := json.Marshal(frame)
			if err != nil {
				log.Printf("Events: encode frame %d: %v", frame.Seq, err)
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: packet\ndata: %s\n\n", frame.Seq, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
