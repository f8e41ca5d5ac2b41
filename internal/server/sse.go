// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Server-sent event names of a streamed turn.
const (
	eventChunk = "chunk"
	eventDone  = "done"
	eventError = "error"
)

// eventStream writes server-sent events. Headers are sent with the first
// event, so a turn that fails before producing output can still be answered
// with a plain JSON error.
type eventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func newEventStream(w http.ResponseWriter) (*eventStream, bool) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	return &eventStream{w: w, flusher: f}, true
}

// Started reports whether any event has been written.
func (e *eventStream) Started() bool {
	return e.started
}

// Send writes one event with a JSON payload and flushes it.
func (e *eventStream) Send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", event, err)
	}
	if !e.started {
		h := e.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		e.w.WriteHeader(http.StatusOK)
		e.started = true
	}
	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return fmt.Errorf("writing %s event: %w", event, err)
	}
	e.flusher.Flush()
	return nil
}
