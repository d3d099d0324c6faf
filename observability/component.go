package observability

import (
	"context"
	"errors"
	"fmt"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/shopstream/component"
)

// Component installs the OTLP trace and metric providers on Start and
// flushes them on Stop.
type Component struct {
	cfg     Config
	service string
	version string
	env     string

	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

var _ component.Component = (*Component)(nil)
var _ component.Describable = (*Component)(nil)

// NewComponent creates the observability component.
func NewComponent(cfg Config, service, version, env string) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, service: service, version: version, env: env}
}

// Name implements component.Component.
func (c *Component) Name() string { return "observability" }

// Start implements component.Component.
func (c *Component) Start(ctx context.Context) error {
	if !c.cfg.Enabled {
		return nil
	}
	tp, err := InitTracer(ctx, TracerConfig{
		ServiceName:    c.service,
		ServiceVersion: c.version,
		Environment:    c.env,
		Endpoint:       c.cfg.Endpoint,
		Insecure:       c.cfg.Insecure,
		SampleRate:     c.cfg.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	mp, err := InitMeter(ctx, MeterConfig{
		ServiceName:    c.service,
		ServiceVersion: c.version,
		Environment:    c.env,
		Endpoint:       c.cfg.Endpoint,
		Insecure:       c.cfg.Insecure,
		Interval:       c.cfg.MetricInterval,
	})
	if err != nil {
		_ = tp.Shutdown(ctx)
		return fmt.Errorf("init meter: %w", err)
	}
	c.tp, c.mp = tp, mp
	return nil
}

// Stop implements component.Component.
func (c *Component) Stop(ctx context.Context) error {
	var errs []error
	if c.tp != nil {
		errs = append(errs, c.tp.Shutdown(ctx))
	}
	if c.mp != nil {
		errs = append(errs, c.mp.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// Health implements component.Component.
func (c *Component) Health(_ context.Context) component.Health {
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

// Describe implements component.Describable.
func (c *Component) Describe() component.Description {
	details := "disabled"
	if c.cfg.Enabled {
		details = fmt.Sprintf("otlp http %s sample=%.2f", c.cfg.Endpoint, c.cfg.SampleRate)
	}
	return component.Description{Name: "OpenTelemetry", Type: "observability", Details: details}
}
