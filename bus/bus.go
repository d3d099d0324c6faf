package bus

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/shopstream/errors"
	"github.com/kbukum/shopstream/logger"
	"github.com/kbukum/shopstream/observability"
)

const instrumentationName = "github.com/kbukum/shopstream/bus"

var (
	// ErrQueueFull is returned by Publish when the channel queue is full.
	ErrQueueFull = stderrors.New("bus: queue full")
	// ErrClosed is returned by Publish and RegisterStage after Stop.
	ErrClosed = stderrors.New("bus: closed")
)

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the bus logger.
func WithLogger(l *logger.Logger) Option {
	return func(b *Bus) { b.log = l }
}

// WithTracerProvider sets the provider of the delivery spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(b *Bus) { b.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider sets the provider of the bus counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(b *Bus) { b.meter = mp.Meter(instrumentationName) }
}

type stage struct {
	input   string
	output  string
	handler Handler
}

type channel struct {
	name  string
	queue chan *Message
	stage *stage
	// running is set once the delivery loop has been started.
	running bool
}

// Bus routes messages between named channels.
type Bus struct {
	cfg    Config
	log    *logger.Logger
	tracer trace.Tracer
	meter  metric.Meter

	published metric.Int64Counter
	rejected  metric.Int64Counter
	acked     metric.Int64Counter
	nacked    metric.Int64Counter

	mu       sync.RWMutex
	channels map[string]*channel
	started  bool
	stopped  bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	dead *deadLetters
}

// New creates a bus. Delivery begins at Start.
func New(cfg Config, opts ...Option) (*Bus, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &Bus{
		cfg:      cfg,
		log:      logger.WithComponent("bus"),
		tracer:   otel.Tracer(instrumentationName),
		meter:    otel.Meter(instrumentationName),
		channels: make(map[string]*channel),
		dead:     &deadLetters{capacity: cfg.DeadLetterCapacity},
	}
	for _, opt := range opts {
		opt(b)
	}
	if err := b.initInstruments(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bus) initInstruments() error {
	var err error
	if b.published, err = b.meter.Int64Counter("bus.published",
		metric.WithDescription("Messages accepted by Publish")); err != nil {
		return fmt.Errorf("creating bus.published counter: %w", err)
	}
	if b.rejected, err = b.meter.Int64Counter("bus.rejected",
		metric.WithDescription("Messages refused by Publish")); err != nil {
		return fmt.Errorf("creating bus.rejected counter: %w", err)
	}
	if b.acked, err = b.meter.Int64Counter("bus.acked",
		metric.WithDescription("Messages processed successfully")); err != nil {
		return fmt.Errorf("creating bus.acked counter: %w", err)
	}
	if b.nacked, err = b.meter.Int64Counter("bus.nacked",
		metric.WithDescription("Messages whose processing failed")); err != nil {
		return fmt.Errorf("creating bus.nacked counter: %w", err)
	}
	return nil
}

// Publish enqueues payload on the named channel and returns immediately.
// It never waits for delivery or acknowledgment.
func (b *Bus) Publish(name string, payload any) error {
	ch, err := b.channel(name)
	if err != nil {
		return err
	}

	attrs := metric.WithAttributes(attribute.String("channel", name))
	msg := newMessage(name, payload)

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stopped {
		return ErrClosed
	}
	select {
	case ch.queue <- msg:
		b.published.Add(context.Background(), 1, attrs)
		b.log.Debug("Message published", logger.Fields(
			logger.FieldChannel, name,
			logger.FieldMessageID, msg.ID,
		))
		return nil
	default:
		b.rejected.Add(context.Background(), 1, attrs)
		b.log.Warn("Channel queue full, message rejected", logger.Fields(
			logger.FieldChannel, name,
			"queue_size", b.cfg.QueueSize,
		))
		return ErrQueueFull
	}
}

// RegisterStage attaches handler to the input channel. Results of the
// handler are published to output unless output is empty. A channel
// accepts a single stage.
func (b *Bus) RegisterStage(input, output string, handler Handler) error {
	if input == "" {
		return fmt.Errorf("bus: stage input channel is required")
	}
	if input == output {
		return fmt.Errorf("bus: stage %s cannot publish to its own input", input)
	}
	if handler == nil {
		return fmt.Errorf("bus: stage %s has no handler", input)
	}

	ch, err := b.channel(input)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return ErrClosed
	}
	if ch.stage != nil {
		return fmt.Errorf("bus: channel %s already has a stage", input)
	}
	ch.stage = &stage{input: input, output: output, handler: handler}
	if b.started {
		b.runLocked(ch)
	}

	b.log.Info("Stage registered", logger.Fields(
		logger.FieldStage, input,
		"output", output,
	))
	return nil
}

// DeadLetters returns the retained failed messages, oldest first.
func (b *Bus) DeadLetters() []DeadLetter {
	return b.dead.snapshot()
}

// channel returns the named channel, creating it on first use.
func (b *Bus) channel(name string) (*channel, error) {
	if name == "" {
		return nil, fmt.Errorf("bus: channel name is required")
	}

	b.mu.RLock()
	ch, ok := b.channels[name]
	stopped := b.stopped
	b.mu.RUnlock()
	if stopped {
		return nil, ErrClosed
	}
	if ok {
		return ch, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.channels[name]; ok {
		return ch, nil
	}
	ch = &channel{name: name, queue: make(chan *Message, b.cfg.QueueSize)}
	b.channels[name] = ch
	return ch, nil
}

// runLocked starts the delivery loop of ch. Caller holds b.mu.
func (b *Bus) runLocked(ch *channel) {
	if ch.running || ch.stage == nil {
		return
	}
	ch.running = true
	b.wg.Add(1)
	go b.consume(b.ctx, ch)
}

// consume delivers the messages of one channel in FIFO order until ctx ends.
func (b *Bus) consume(ctx context.Context, ch *channel) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch.queue:
			b.deliver(ctx, ch.stage, msg)
		}
	}
}

func (b *Bus) deliver(ctx context.Context, st *stage, msg *Message) {
	start := time.Now()
	ctx, span := b.tracer.Start(ctx, observability.SpanBusDeliver,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String(observability.AttrChannel, st.input),
			attribute.String(observability.AttrMessageID, msg.ID),
		),
	)
	defer span.End()

	msg.markDelivered()
	log := b.log.WithContext(ctx).WithFields(logger.Fields(
		logger.FieldStage, st.input,
		logger.FieldMessageID, msg.ID,
	))

	out, err := invoke(ctx, st.handler, msg)
	if err == nil && st.output != "" {
		if pubErr := b.Publish(st.output, out); pubErr != nil {
			err = fmt.Errorf("forward to %s: %w", st.output, pubErr)
		}
	}

	attrs := metric.WithAttributes(attribute.String("channel", st.input))
	if err != nil {
		failure := errors.HandlerFailure(st.input, err)
		if msg.Nack(failure) {
			b.nacked.Add(ctx, 1, attrs)
			b.dead.add(DeadLetter{
				MessageID: msg.ID,
				Channel:   st.input,
				Payload:   msg.Payload,
				Error:     err.Error(),
				FailedAt:  time.Now(),
			})
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("Message nacked", logger.MergeFields(
			logger.ErrorFields("deliver", err),
			logger.DurationFields("deliver", time.Since(start)),
		))
		return
	}

	if msg.Ack() {
		b.acked.Add(ctx, 1, attrs)
	}
	span.SetStatus(codes.Ok, "")
	log.Debug("Message acked", logger.DurationFields("deliver", time.Since(start)))
}

// invoke runs the handler and turns a panic into an error.
func invoke(ctx context.Context, h Handler, msg *Message) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, msg)
}
