package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/kbukum/shopstream/errors"
	"github.com/kbukum/shopstream/logger"
)

// Recovery turns a handler panic into a 500 error envelope and logs the
// stack. Nothing is written if the response has already started.
func Recovery(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := newStatusWriter(w)
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.WithContext(r.Context()).Error("Panic recovered", logger.Fields(
					logger.FieldError, fmt.Sprintf("%v", rec),
					"stack", string(debug.Stack()),
					"method", r.Method,
					"path", r.URL.Path,
				))
				if sw.started {
					return
				}
				sw.Header().Set("Content-Type", "application/json")
				sw.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(sw).Encode(errors.Internal(fmt.Errorf("panic: %v", rec)).ToResponse())
			}()
			next.ServeHTTP(sw, r)
		})
	}
}
