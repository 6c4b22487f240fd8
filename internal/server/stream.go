package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/XavierBriggs/Apollo/internal/broadcast"
)

const streamHeartbeatInterval = 15 * time.Second

// StreamHandler serves the refresh event stream over SSE.
type StreamHandler struct {
	hub *broadcast.Hub
}

func NewStreamHandler(hub *broadcast.Hub) *StreamHandler {
	return &StreamHandler{hub: hub}
}

// Stream handles GET /opportunities/stream.
//
// SSE protocol:
//   - event: refresh    → a new cycle is live; clients re-fetch
//   - event: heartbeat  → keepalive (every 15s)
func (s *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, errInternal, "streaming not supported", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering

	events, cancel := s.hub.Subscribe()
	defer cancel()

	// Tell the client it is connected before the first cycle lands.
	sendSSE(w, flusher, "connected", map[string]string{"status": "ok"})

	heartbeat := time.NewTicker(streamHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case event, open := <-events:
			if !open {
				return
			}
			sendSSE(w, flusher, "refresh", event)

		case <-heartbeat.C:
			sendSSE(w, flusher, "heartbeat", map[string]int64{"ts": time.Now().Unix()})

		case <-r.Context().Done():
			return
		}
	}
}

func sendSSE(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		fmt.Printf("⚠ stream: marshal %s event: %v\n", event, err)
		return
	}

	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	flusher.Flush()
}
