package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/telemetry"
)

func newInstruments(t *testing.T) (*telemetry.Instruments, *tracetest.InMemoryExporter, *sdkmetric.ManualReader) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	in, err := telemetry.New(tp.Tracer("test"), mp.Meter("test"))
	require.NoError(t, err)
	return in, exporter, reader
}

func findMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) *metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, scope := range rm.ScopeMetrics {
		for i := range scope.Metrics {
			if scope.Metrics[i].Name == name {
				return &scope.Metrics[i]
			}
		}
	}
	return nil
}

func sum(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	require.NotNil(t, m)
	data, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "unexpected data %T", m.Data)
	var total int64
	for _, dp := range data.DataPoints {
		total += dp.Value
	}
	return total
}

func TestSpans(t *testing.T) {
	in, exporter, _ := newInstruments(t)

	_, end := in.Start(context.Background(), telemetry.SpanParse, telemetry.Source("1 + 1"))
	end(nil)
	_, end = in.Start(context.Background(), telemetry.SpanBind)
	end(errors.New("unknown member"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, telemetry.SpanParse, spans[0].Name)
	assert.Equal(t, otelcodes.Ok, spans[0].Status.Code)
	require.Len(t, spans[0].Attributes, 1)
	assert.Equal(t, "1 + 1", spans[0].Attributes[0].Value.AsString())

	assert.Equal(t, telemetry.SpanBind, spans[1].Name)
	assert.Equal(t, otelcodes.Error, spans[1].Status.Code)
	assert.Equal(t, "unknown member", spans[1].Status.Description)
	assert.NotEmpty(t, spans[1].Events, "expected a recorded error event")
}

func TestMetrics(t *testing.T) {
	in, _, reader := newInstruments(t)
	ctx := context.Background()

	in.RecordCompile(ctx, 10*time.Millisecond, nil)
	in.RecordCompile(ctx, 20*time.Millisecond, errors.New("bad"))
	in.RecordCacheHit(ctx)

	assert.Equal(t, int64(2), sum(t, findMetric(t, reader, telemetry.MetricCompileCount)))
	assert.Equal(t, int64(1), sum(t, findMetric(t, reader, telemetry.MetricCompileFailures)))
	assert.Equal(t, int64(1), sum(t, findMetric(t, reader, telemetry.MetricCacheHits)))

	hist := findMetric(t, reader, telemetry.MetricCompileDuration)
	require.NotNil(t, hist)
	data, ok := hist.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, data.DataPoints, 1)
	assert.Equal(t, uint64(2), data.DataPoints[0].Count)
}

func TestNoop(t *testing.T) {
	in := telemetry.Noop()
	require.NotNil(t, in)
	_, end := in.Start(context.Background(), telemetry.SpanRun)
	end(nil)
	in.RecordCompile(context.Background(), time.Millisecond, nil)
	in.RecordCacheHit(context.Background())
}
