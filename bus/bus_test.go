package bus

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/shopstream/deferred"
	"github.com/kbukum/shopstream/logger"
	"github.com/kbukum/shopstream/observability"
)

func newTestBus(t *testing.T, cfg Config, opts ...Option) *Bus {
	t.Helper()
	opts = append([]Option{WithLogger(logger.Nop())}, opts...)
	b, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = b.Stop(context.Background()) })
	return b
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

type collector[T any] struct {
	mu    sync.Mutex
	items []T
}

func (c *collector[T]) sink(_ context.Context, v T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, v)
	return nil
}

func (c *collector[T]) snapshot() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.items...)
}

func TestBus_ChainUserToHello(t *testing.T) {
	b := newTestBus(t, Config{})
	greet := DeferredStage(func(id int64) *deferred.Deferred[string] {
		return deferred.Succeed(fmt.Sprintf("Hello chained - %d", id))
	})
	if err := b.RegisterStage("userChannel", "hello", greet); err != nil {
		t.Fatalf("RegisterStage userChannel: %v", err)
	}
	var hello collector[string]
	if err := b.RegisterStage("hello", "", Sink(hello.sink)); err != nil {
		t.Fatalf("RegisterStage hello: %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := b.Publish("userChannel", int64(42)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	waitFor(t, "greeting", func() bool { return len(hello.snapshot()) == 1 })
	if got := hello.snapshot()[0]; got != "Hello chained - 42" {
		t.Errorf("expected chained greeting, got %q", got)
	}
}

func TestBus_FIFOPerChannel(t *testing.T) {
	b := newTestBus(t, Config{})
	var got collector[int]
	if err := b.RegisterStage("numbers", "", Sink(got.sink)); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		if err := b.Publish("numbers", i); err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "all messages", func() bool { return len(got.snapshot()) == 20 })
	for i, v := range got.snapshot() {
		if v != i {
			t.Fatalf("out of order at %d: %v", i, got.snapshot())
		}
	}
}

func TestBus_RegisterAfterStart(t *testing.T) {
	b := newTestBus(t, Config{})
	if err := b.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	var got collector[string]
	if err := b.RegisterStage("late", "", Sink(got.sink)); err != nil {
		t.Fatal(err)
	}
	if err := b.Publish("late", "x"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "late stage delivery", func() bool { return len(got.snapshot()) == 1 })
}

func TestBus_AckOnSuccess(t *testing.T) {
	b := newTestBus(t, Config{})
	msgs := make(chan *Message, 1)
	handler := func(_ context.Context, m *Message) (any, error) {
		msgs <- m
		return nil, nil
	}
	if err := b.RegisterStage("ok", "", handler); err != nil {
		t.Fatal(err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := b.Publish("ok", 1); err != nil {
		t.Fatal(err)
	}
	m := <-msgs
	waitFor(t, "ack", func() bool { return m.State() == StateAcked })
	if m.Ack() || m.Nack(stderrors.New("late")) {
		t.Error("a settled message must not change state again")
	}
	if m.Err() != nil {
		t.Errorf("acked message should carry no error, got %v", m.Err())
	}
	if len(b.DeadLetters()) != 0 {
		t.Errorf("expected no dead letters, got %v", b.DeadLetters())
	}
}

func TestBus_NackOnFailure(t *testing.T) {
	b := newTestBus(t, Config{})
	msgs := make(chan *Message, 1)
	boom := stderrors.New("boom")
	handler := func(_ context.Context, m *Message) (any, error) {
		msgs <- m
		return nil, boom
	}
	if err := b.RegisterStage("fail", "next", handler); err != nil {
		t.Fatal(err)
	}
	var next collector[any]
	if err := b.RegisterStage("next", "", Sink(next.sink)); err != nil {
		t.Fatal(err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := b.Publish("fail", "payload"); err != nil {
		t.Fatal(err)
	}

	m := <-msgs
	waitFor(t, "nack", func() bool { return m.State() == StateNacked })
	if !stderrors.Is(m.Err(), boom) {
		t.Errorf("nack error should wrap the handler error, got %v", m.Err())
	}
	waitFor(t, "dead letter", func() bool { return len(b.DeadLetters()) == 1 })
	dl := b.DeadLetters()[0]
	if dl.MessageID != m.ID || dl.Channel != "fail" || dl.Payload != "payload" || dl.Error != "boom" {
		t.Errorf("unexpected dead letter %+v", dl)
	}
	if len(next.snapshot()) != 0 {
		t.Error("a failed message must not be forwarded")
	}
}

func TestBus_PanicIsNacked(t *testing.T) {
	b := newTestBus(t, Config{})
	handler := func(context.Context, *Message) (any, error) {
		panic("kaboom")
	}
	if err := b.RegisterStage("panics", "", handler); err != nil {
		t.Fatal(err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := b.Publish("panics", 1); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "dead letter", func() bool { return len(b.DeadLetters()) == 1 })
	if !strings.Contains(b.DeadLetters()[0].Error, "kaboom") {
		t.Errorf("expected panic value in error, got %q", b.DeadLetters()[0].Error)
	}

	// The loop survives the panic.
	if err := b.Publish("panics", 2); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "second dead letter", func() bool { return len(b.DeadLetters()) == 2 })
}

func TestBus_PayloadTypeMismatch(t *testing.T) {
	b := newTestBus(t, Config{})
	var got collector[int64]
	if err := b.RegisterStage("ids", "", Sink(got.sink)); err != nil {
		t.Fatal(err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := b.Publish("ids", "not a number"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "dead letter", func() bool { return len(b.DeadLetters()) == 1 })
	if !strings.Contains(b.DeadLetters()[0].Error, "payload type string") {
		t.Errorf("unexpected error %q", b.DeadLetters()[0].Error)
	}
}

func TestBus_ForwardFailureIsNacked(t *testing.T) {
	b := newTestBus(t, Config{QueueSize: 1})
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	blocker := Sink(func(ctx context.Context, _ int) error {
		entered <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})
	if err := b.RegisterStage("out", "", blocker); err != nil {
		t.Fatal(err)
	}
	if err := b.RegisterStage("in", "out", Stage(func(_ context.Context, v int) (int, error) { return v, nil })); err != nil {
		t.Fatal(err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer close(release)

	// The first value blocks the sink and the second fills the queue of
	// "out", so the third cannot be forwarded.
	if err := b.Publish("in", 0); err != nil {
		t.Fatal(err)
	}
	<-entered
	if err := b.Publish("in", 1); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "out backlog", func() bool { return queueLen(b, "out") == 1 && queueLen(b, "in") == 0 })
	if err := b.Publish("in", 2); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "forward dead letter", func() bool { return len(b.DeadLetters()) == 1 })
	if !strings.Contains(b.DeadLetters()[0].Error, ErrQueueFull.Error()) {
		t.Errorf("expected queue full in error, got %q", b.DeadLetters()[0].Error)
	}
}

func queueLen(b *Bus, name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.channels[name].queue)
}

func TestBus_QueueFull(t *testing.T) {
	b := newTestBus(t, Config{QueueSize: 2})
	for i := 0; i < 2; i++ {
		if err := b.Publish("backlog", i); err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
	}
	if err := b.Publish("backlog", 3); !stderrors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
}

func TestBus_RegisterStageValidation(t *testing.T) {
	b := newTestBus(t, Config{})
	noop := Sink(func(context.Context, any) error { return nil })

	if err := b.RegisterStage("", "", noop); err == nil {
		t.Error("expected error for empty input")
	}
	if err := b.RegisterStage("loop", "loop", noop); err == nil {
		t.Error("expected error for self loop")
	}
	if err := b.RegisterStage("nil", "", nil); err == nil {
		t.Error("expected error for nil handler")
	}
	if err := b.RegisterStage("dup", "", noop); err != nil {
		t.Fatal(err)
	}
	if err := b.RegisterStage("dup", "", noop); err == nil {
		t.Error("expected error for duplicate stage")
	}
}

func TestBus_ClosedAfterStop(t *testing.T) {
	b := newTestBus(t, Config{})
	if err := b.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := b.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := b.Publish("any", 1); !stderrors.Is(err, ErrClosed) {
		t.Errorf("Publish after Stop: expected ErrClosed, got %v", err)
	}
	noop := Sink(func(context.Context, any) error { return nil })
	if err := b.RegisterStage("any", "", noop); !stderrors.Is(err, ErrClosed) {
		t.Errorf("RegisterStage after Stop: expected ErrClosed, got %v", err)
	}
	if err := b.Stop(context.Background()); err != nil {
		t.Errorf("second Stop should be a no-op, got %v", err)
	}
}

func TestBus_StopCancelsHandler(t *testing.T) {
	b := newTestBus(t, Config{})
	entered := make(chan struct{})
	handler := func(ctx context.Context, _ *Message) (any, error) {
		close(entered)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := b.RegisterStage("slow", "", handler); err != nil {
		t.Fatal(err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := b.Publish("slow", 1); err != nil {
		t.Fatal(err)
	}
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := b.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestBus_DeadLetterCapacity(t *testing.T) {
	b := newTestBus(t, Config{DeadLetterCapacity: 2})
	handler := Sink(func(_ context.Context, v int) error { return fmt.Errorf("fail %d", v) })
	if err := b.RegisterStage("f", "", handler); err != nil {
		t.Fatal(err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := b.Publish("f", i); err != nil {
			t.Fatal(err)
		}
	}
	waitFor(t, "dead letter count", func() bool { return b.dead.count() == 3 })
	dls := b.DeadLetters()
	if len(dls) != 2 || dls[0].Error != "fail 1" || dls[1].Error != "fail 2" {
		t.Errorf("expected the two newest dead letters, got %+v", dls)
	}
}

func TestBus_Health(t *testing.T) {
	b := newTestBus(t, Config{QueueSize: 4})
	if h := b.Health(context.Background()); h.Status != "unhealthy" {
		t.Errorf("expected unhealthy before Start, got %s", h.Status)
	}
	for i := 0; i < 4; i++ {
		if err := b.Publish("idle", i); err != nil {
			t.Fatal(err)
		}
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if h := b.Health(context.Background()); h.Status != "degraded" {
		t.Errorf("expected degraded with a full backlog, got %s (%s)", h.Status, h.Message)
	}
	if d := b.Describe(); d.Type != "bus" || !strings.Contains(d.Details, "queue=4") {
		t.Errorf("unexpected description %+v", d)
	}
}

func TestBus_Telemetry(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	b := newTestBus(t, Config{}, WithTracerProvider(tp), WithMeterProvider(mp))
	var ok collector[int]
	if err := b.RegisterStage("t", "", Sink(ok.sink)); err != nil {
		t.Fatal(err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := b.Publish("t", 7); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "delivery", func() bool { return len(ok.snapshot()) == 1 })
	waitFor(t, "span", func() bool { return len(recorder.Ended()) == 1 })

	span := recorder.Ended()[0]
	if span.Name() != observability.SpanBusDeliver {
		t.Errorf("expected span %s, got %s", observability.SpanBusDeliver, span.Name())
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if data, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	if sums["bus.published"] != 1 || sums["bus.acked"] != 1 {
		t.Errorf("unexpected counters %v", sums)
	}
}
