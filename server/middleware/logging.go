package middleware

import (
	"net/http"
	"time"

	"github.com/kbukum/shopstream/logger"
)

var quietPaths = map[string]bool{
	"/health": true,
	"/info":   true,
}

// RequestLogger logs every request with method, path, status, response
// size and duration. Health and info checks are skipped.
func RequestLogger(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if quietPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)

			fields := logger.Fields(
				"method", r.Method,
				"path", r.URL.Path,
				logger.FieldStatus, sw.status,
				"bytes", sw.written,
				logger.FieldDuration, time.Since(start).Milliseconds(),
			)
			l := log.WithContext(r.Context())
			switch {
			case sw.status >= 500:
				l.Error("Request completed", fields)
			case sw.status >= 400:
				l.Warn("Request completed", fields)
			default:
				l.Debug("Request completed", fields)
			}
		})
	}
}
