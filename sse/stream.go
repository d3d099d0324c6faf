package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/kbukum/shopstream/errors"
	"github.com/kbukum/shopstream/logger"
	"github.com/kbukum/shopstream/pipeline"
)

type streamOptions struct {
	event     string
	keepAlive time.Duration
	log       *logger.Logger
}

// StreamOption configures Stream.
type StreamOption func(*streamOptions)

// WithEventName sets the event field of every item event.
func WithEventName(name string) StreamOption {
	return func(o *streamOptions) { o.event = name }
}

// WithKeepAlive sets the idle keep-alive interval.
func WithKeepAlive(d time.Duration) StreamOption {
	return func(o *streamOptions) { o.keepAlive = d }
}

// WithStreamLogger sets the logger used for stream lifecycle events.
func WithStreamLogger(l *logger.Logger) StreamOption {
	return func(o *streamOptions) { o.log = l }
}

// Stream writes each item of p as an event. Strings and byte slices are sent
// verbatim, anything else as JSON. A failure is sent as an error event
// carrying the error envelope and returned. Stream returns when p
// terminates or the request context ends, and the pipeline activation is
// released before it does.
func Stream[T any](w http.ResponseWriter, r *http.Request, p *pipeline.Pipeline[T], opts ...StreamOption) error {
	o := streamOptions{keepAlive: DefaultKeepAlive, log: logger.WithComponent("sse")}
	for _, opt := range opts {
		opt(&o)
	}

	flusher, err := prepare(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return err
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	items := make(chan T)
	result := make(chan error, 1)
	sub := pipeline.Subscribe(ctx, p, pipeline.Subscriber[T]{
		OnItem: func(v T) error {
			select {
			case items <- v:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
		OnFailure:  func(err error) { result <- err },
		OnComplete: func() { result <- nil },
	})
	defer sub.Cancel()

	keepAlive := time.NewTicker(o.keepAlive)
	defer keepAlive.Stop()

	var seq int
	for {
		select {
		case <-ctx.Done():
			o.log.Debug("Stream client disconnected", logger.Fields(logger.FieldPhase, "disconnect"))
			return ctx.Err()

		case v := <-items:
			data, err := encode(v)
			if err != nil {
				return err
			}
			seq++
			if err := (Event{ID: strconv.Itoa(seq), Name: o.event, Data: data}).Encode(w); err != nil {
				return err
			}
			flusher.Flush()
			keepAlive.Reset(o.keepAlive)

		case err := <-result:
			if err == nil {
				return nil
			}
			body, _ := json.Marshal(errors.Wrap(err).ToResponse())
			_ = Event{Name: EventError, Data: body}.Encode(w)
			flusher.Flush()
			return err

		case <-keepAlive.C:
			if err := writeKeepAlive(w); err != nil {
				return err
			}
			flusher.Flush()
		}
	}
}

func encode(v any) ([]byte, error) {
	switch t := v.(type) {
	case string:
		return []byte(t), nil
	case []byte:
		return t, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("sse: encoding %T: %w", v, err)
		}
		return data, nil
	}
}
