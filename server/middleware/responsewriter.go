package middleware

import "net/http"

// statusWriter records the status and body size of a response for the
// request log. Streamed responses keep working through it: Flush is
// forwarded and Unwrap lets http.ResponseController reach the write
// deadline of the connection.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written int64
	started bool
}

func newStatusWriter(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w, status: http.StatusOK}
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.started {
		sw.status, sw.started = code, true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.started = true
	n, err := sw.ResponseWriter.Write(b)
	sw.written += int64(n)
	return n, err
}

func (sw *statusWriter) Flush() {
	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}
