package sse

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Event names used by the package itself.
const (
	EventConnected = "connected"
	EventError     = "error"
)

// DefaultKeepAlive is the idle interval between keep-alive comments. It
// stays below common proxy timeouts.
const DefaultKeepAlive = 15 * time.Second

// Event is a single server-sent event.
type Event struct {
	ID   string
	Name string
	Data []byte
}

// Encode writes ev in wire format. Multi-line data is split into one data
// field per line.
func (ev Event) Encode(w io.Writer) error {
	var buf bytes.Buffer
	if ev.ID != "" {
		fmt.Fprintf(&buf, "id: %s\n", ev.ID)
	}
	if ev.Name != "" {
		fmt.Fprintf(&buf, "event: %s\n", ev.Name)
	}
	for _, line := range bytes.Split(ev.Data, []byte("\n")) {
		buf.WriteString("data: ")
		buf.Write(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}

func writeKeepAlive(w io.Writer) error {
	_, err := fmt.Fprintf(w, ": keepalive %d\n\n", time.Now().Unix())
	return err
}

// prepare sets the event-stream headers and lifts the server write deadline
// for the long-lived response.
func prepare(w http.ResponseWriter) (http.Flusher, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("sse: streaming not supported by %T", w)
	}
	// Not every writer supports deadlines; keep-alives cover the rest.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return flusher, nil
}
