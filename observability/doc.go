// Package observability wires OpenTelemetry tracing and metrics.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.TracerConfig{ServiceName: "shop"})
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanBusDeliver)
//	defer span.End()
//
// Metrics:
//
//	metrics, err := observability.NewMetrics(observability.Meter("shop"))
//	metrics.RecordRequestEnd(ctx, "GET", "/shop/users", 200, duration)
//
// Component wraps both providers in the service lifecycle.
package observability
