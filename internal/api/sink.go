package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/shopstream/deferred"
	"github.com/kbukum/shopstream/errors"
	"github.com/kbukum/shopstream/logger"
	"github.com/kbukum/shopstream/observability"
	"github.com/kbukum/shopstream/pipeline"
	"github.com/kbukum/shopstream/server"
)

// Content types written by the stream sinks.
const (
	ContentTypeNDJSON = "application/x-ndjson"
	ContentTypeText   = "text/plain; charset=utf-8"
)

// Stream outcomes reported to metrics.
const (
	outcomeCompleted = "completed"
	outcomeFailed    = "failed"
	outcomeCancelled = "cancelled"
)

// RespondDeferred awaits d with the request context and writes the value in
// the data envelope, or the error envelope on failure.
func RespondDeferred[T any](c *gin.Context, d *deferred.Deferred[T]) {
	v, err := d.Await(c.Request.Context())
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, v)
}

// StreamNDJSON writes every item of p as one JSON line. A failure before the
// first item becomes a regular error response; a later one is written as a
// final error-envelope line.
func StreamNDJSON[T any](c *gin.Context, p *pipeline.Pipeline[T]) (int64, error) {
	enc := json.NewEncoder(c.Writer)
	return stream(c, p, ContentTypeNDJSON,
		func(v T) error { return enc.Encode(v) },
		func(err error) { _ = enc.Encode(errors.Wrap(err).ToResponse()) },
	)
}

// StreamText writes every item of p verbatim. A failure after the first
// item ends the response early since plain text has no error framing.
func StreamText(c *gin.Context, p *pipeline.Pipeline[string]) (int64, error) {
	return stream(c, p, ContentTypeText,
		func(v string) error {
			_, err := c.Writer.WriteString(v)
			return err
		},
		nil,
	)
}

func stream[T any](c *gin.Context, p *pipeline.Pipeline[T], contentType string,
	write func(T) error, writeErr func(error)) (int64, error) {
	ctx := c.Request.Context()
	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})
	it := p.Iter(ctx)
	defer it.Close()

	var n int64
	for {
		v, ok, err := it.Next(ctx)
		if err != nil {
			if n == 0 {
				server.RespondWithError(c, err)
			} else if writeErr != nil {
				writeErr(err)
				c.Writer.Flush()
			}
			return n, err
		}
		if n == 0 {
			c.Header("Content-Type", contentType)
			c.Header("X-Content-Type-Options", "nosniff")
			c.Status(http.StatusOK)
		}
		if !ok {
			c.Writer.WriteHeaderNow()
			return n, nil
		}
		if err := write(v); err != nil {
			return n, err
		}
		n++
		c.Writer.Flush()
	}
}

// streamRecorder logs and measures finished streams.
type streamRecorder struct {
	log     *logger.Logger
	metrics *observability.Metrics
}

func (r streamRecorder) record(ctx context.Context, name string, started time.Time, items int64, err error) {
	outcome := outcomeCompleted
	switch {
	case err == nil:
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		outcome = outcomeCancelled
	default:
		outcome = outcomeFailed
	}

	fields := logger.Fields(logger.FieldStream, name, "items", items, "outcome", outcome)
	if outcome == outcomeFailed {
		r.log.Warn("Stream failed", logger.MergeFields(fields, logger.ErrorFields("stream", err)))
	} else {
		r.log.Debug("Stream finished", fields)
	}

	if r.metrics != nil {
		r.metrics.RecordStream(context.WithoutCancel(ctx), name, outcome, items, time.Since(started))
		if outcome == outcomeFailed {
			r.metrics.RecordError(context.WithoutCancel(ctx), string(errors.Wrap(err).Code), "api")
		}
	}
}
