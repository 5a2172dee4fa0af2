package sse

import (
	"fmt"
	"net/http"
)

// Writer streams events to an HTTP response, flushing after every frame so the
// first token reaches the client as soon as it is produced.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

// NewWriter wraps w. Headers are sent lazily on the first frame so callers can
// still answer with a JSON error if the upstream fails before any output.
func NewWriter(w http.ResponseWriter) *Writer {
	f, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: f}
}

// Started reports whether any frame has been written.
func (w *Writer) Started() bool { return w.started }

func (w *Writer) start() {
	if w.started {
		return
	}
	h := w.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.w.WriteHeader(http.StatusOK)
	w.started = true
}

// WriteDelta sends one token delta.
func (w *Writer) WriteDelta(content string) error {
	frame, err := DeltaFrame(content)
	if err != nil {
		return err
	}
	return w.write(frame)
}

// Done sends the terminating event.
func (w *Writer) Done() error {
	return w.write(DoneFrame())
}

func (w *Writer) write(frame []byte) error {
	w.start()
	if _, err := w.w.Write(frame); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}
