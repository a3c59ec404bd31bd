package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

const sseKeepaliveInterval = 15 * time.Second

// handleSSE streams change notifications from the in-process hub as
// Server-Sent Events. Optional ?channels=job,folder narrows the feed; without
// it the client receives every channel.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported", "SSE_UNSUPPORTED")
		return
	}
	if s.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "notifications disabled", "SSE_DISABLED")
		return
	}

	var channels []string
	if raw := r.URL.Query().Get("channels"); raw != "" {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				channels = append(channels, c)
			}
		}
	}
	msgs, cancel := s.hub.Subscribe(channels...)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			_, _ = fmt.Fprintf(w, ":keepalive\n\n")
			flusher.Flush()
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Channel, msg.Payload)
			flusher.Flush()
		}
	}
}

// handleReadStream returns a window of persisted events for one stream.
// ?from resumes after a sequence number, ?limit caps the page size.
func (s *Server) handleReadStream(w http.ResponseWriter, r *http.Request) {
	if s.streams == nil {
		writeError(w, http.StatusServiceUnavailable, "event streams disabled", "STREAMS_DISABLED")
		return
	}
	streamID := chi.URLParam(r, "id")

	var fromSeq uint64
	if raw := r.URL.Query().Get("from"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from sequence", "BAD_SEQUENCE")
			return
		}
		fromSeq = v
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}

	events, err := s.streams.Read(streamID, fromSeq, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "READ_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events":   events,
		"last_seq": s.streams.LastSeq(streamID),
	})
}
