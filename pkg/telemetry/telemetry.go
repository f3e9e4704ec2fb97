// Package telemetry records OpenTelemetry spans and metrics for the
// expression pipeline. Without explicit providers every instrument is a
// no-op.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// ScopeName is the instrumentation scope of the tracer and meter.
const ScopeName = "github.com/deniszykov/csharp-eval-unity3d-sub003"

// Span names, one per pipeline stage.
const (
	SpanParse   = "cseval.parse"
	SpanBind    = "cseval.bind"
	SpanCompile = "cseval.compile"
	SpanRun     = "cseval.run"
)

// Metric names.
const (
	MetricCompileCount    = "cseval.compile.count"
	MetricCompileFailures = "cseval.compile.failures"
	MetricCacheHits       = "cseval.cache.hits"
	MetricCompileDuration = "cseval.compile.duration"
)

// Instruments bundles the tracer and the metric instruments.
type Instruments struct {
	tracer          trace.Tracer
	compileCount    metric.Int64Counter
	compileFailures metric.Int64Counter
	cacheHits       metric.Int64Counter
	compileDuration metric.Float64Histogram
}

// New creates instruments from a tracer and a meter. Nil arguments fall
// back to no-op implementations.
func New(tracer trace.Tracer, meter metric.Meter) (*Instruments, error) {
	if tracer == nil {
		tracer = tracenoop.NewTracerProvider().Tracer(ScopeName)
	}
	if meter == nil {
		meter = metricnoop.NewMeterProvider().Meter(ScopeName)
	}
	compiles, err := meter.Int64Counter(MetricCompileCount,
		metric.WithDescription("Number of expressions compiled"),
	)
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter(MetricCompileFailures,
		metric.WithDescription("Number of expressions that failed to compile"),
	)
	if err != nil {
		return nil, err
	}
	hits, err := meter.Int64Counter(MetricCacheHits,
		metric.WithDescription("Number of compilations served from the program cache"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(MetricCompileDuration,
		metric.WithDescription("Duration of expression compilation in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	return &Instruments{
		tracer:          tracer,
		compileCount:    compiles,
		compileFailures: failures,
		cacheHits:       hits,
		compileDuration: duration,
	}, nil
}

// Noop returns instruments that record nothing.
func Noop() *Instruments {
	in, _ := New(nil, nil)
	return in
}

// Start opens a span for a pipeline stage. The returned func ends it and
// records err, if any, on it.
func (in *Instruments) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(err error)) {
	ctx, span := in.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

// RecordCompile counts a compilation and its duration.
func (in *Instruments) RecordCompile(ctx context.Context, elapsed time.Duration, err error) {
	in.compileCount.Add(ctx, 1)
	in.compileDuration.Record(ctx, elapsed.Seconds())
	if err != nil {
		in.compileFailures.Add(ctx, 1)
	}
}

// RecordCacheHit counts a compilation served from the cache.
func (in *Instruments) RecordCacheHit(ctx context.Context) {
	in.cacheHits.Add(ctx, 1)
}

// Source is the span attribute holding the expression text.
func Source(text string) attribute.KeyValue {
	return attribute.String("cseval.source", text)
}
