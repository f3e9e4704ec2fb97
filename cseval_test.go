package cseval_test

import (
	"context"
	"math"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	cseval "github.com/deniszykov/csharp-eval-unity3d-sub003"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/binder"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/config"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/telemetry"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/types"
)

type Point struct {
	X, Y int32
}

type Scene struct {
	Width  int32
	Origin Point
}

func TestStages(t *testing.T) {
	root, err := cseval.Parse(cseval.Tokenize("a * 2 + 1"))
	require.NoError(t, err)
	node, err := cseval.Canonicalize(root, false)
	require.NoError(t, err)

	params := []binder.Parameter{{Name: "a", Type: reflect.TypeFor[int32]()}}
	expr, err := cseval.Bind(node, params, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeFor[int32](), expr.Type())

	v, err := cseval.CompileAndRun(expr, params, int32(20))
	require.NoError(t, err)
	assert.Equal(t, int32(41), v)
}

func TestBindWithGlobal(t *testing.T) {
	root, err := cseval.Parse(cseval.Tokenize("Width - Origin.X"))
	require.NoError(t, err)
	node, err := cseval.Canonicalize(root, false)
	require.NoError(t, err)
	expr, err := cseval.Bind(node, nil, nil, nil, Scene{Width: 10, Origin: Point{X: 3}})
	require.NoError(t, err)
	v, err := cseval.CompileAndRun(expr, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(7), v)
}

func TestCompile(t *testing.T) {
	prog, err := cseval.Compile("p.X * p.Y",
		cseval.WithParameters(binder.Parameter{Name: "p", Type: reflect.TypeFor[Point]()}),
		cseval.WithKnownTypes(reflect.TypeFor[Point]()),
		cseval.WithResultType(reflect.TypeFor[int64]()),
	)
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeFor[int64](), prog.ResultType())

	for _, tt := range []struct {
		p    Point
		want int64
	}{
		{Point{X: 2, Y: 3}, 6},
		{Point{X: -4, Y: 5}, -20},
	} {
		v, err := prog.Run(tt.p)
		require.NoError(t, err)
		assert.Equal(t, tt.want, v)
	}
}

func TestEval(t *testing.T) {
	tests := []struct {
		name string
		src  string
		opts []cseval.Option
		want any
	}{
		{"constant", "(2 * (2 + 3) << 1 - 1 & 7 | 25 ^ 10) + 10", nil, int32(29)},
		{"args", "a + b.Length", []cseval.Option{cseval.WithArg("a", int32(2)), cseval.WithArg("b", "abc")}, int32(5)},
		{"string concat", `"n=" + n`, []cseval.Option{cseval.WithArg("n", int32(4))}, "n=4"},
		{"global", "Width * 2", []cseval.Option{cseval.WithGlobal(Scene{Width: 21})}, int32(42)},
		{"conditional", `x > 0 ? "pos" : "neg"`, []cseval.Option{cseval.WithArg("x", int64(-1))}, "neg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := cseval.Eval(context.Background(), tt.src, tt.opts...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestEvalErrors(t *testing.T) {
	_, err := cseval.Eval(context.Background(), "1 +")
	assert.True(t, types.IsKind(err, types.ParseError), "got %v", err)

	_, err = cseval.Eval(context.Background(), "missing + 1")
	assert.True(t, types.HasCode(err, types.ErrUnknownMember), "got %v", err)

	_, err = cseval.Eval(context.Background(), "a + 1",
		cseval.WithArg("a", int32(math.MaxInt32)), cseval.WithChecked(true))
	assert.True(t, types.HasCode(err, types.ErrOverflow), "got %v", err)

	v, err := cseval.Eval(context.Background(), "a + 1", cseval.WithArg("a", int32(math.MaxInt32)))
	require.NoError(t, err)
	assert.Equal(t, int32(math.MinInt32), v)
}

func TestMustCompile(t *testing.T) {
	assert.NotPanics(t, func() { cseval.MustCompile("1 + 1") })
	assert.Panics(t, func() { cseval.MustCompile("1 +") })
}

func TestEngineCache(t *testing.T) {
	eng, err := cseval.New(cseval.WithCacheSize(8))
	require.NoError(t, err)
	params := []binder.Parameter{{Name: "a", Type: reflect.TypeFor[int32]()}}

	p1, err := eng.Compile(context.Background(), "a + 1", params, nil)
	require.NoError(t, err)
	p2, err := eng.Compile(context.Background(), "a + 1", params, nil)
	require.NoError(t, err)
	assert.Same(t, p1, p2)

	p3, err := eng.Compile(context.Background(), "a + 1", params, reflect.TypeFor[int64]())
	require.NoError(t, err)
	assert.NotSame(t, p1, p3)

	stats := eng.CacheStats()
	assert.Equal(t, int64(1), stats.Hits)

	eng.ClearCache()
	p4, err := eng.Compile(context.Background(), "a + 1", params, nil)
	require.NoError(t, err)
	assert.NotSame(t, p1, p4)
}

func TestEngineWithoutCache(t *testing.T) {
	eng, err := cseval.New(cseval.WithCacheSize(0))
	require.NoError(t, err)
	p1, err := eng.Compile(context.Background(), "1", nil, nil)
	require.NoError(t, err)
	p2, err := eng.Compile(context.Background(), "1", nil, nil)
	require.NoError(t, err)
	assert.NotSame(t, p1, p2)
	assert.Equal(t, int64(0), eng.CacheStats().Hits)
}

func TestEngineConfig(t *testing.T) {
	cfg, err := config.Parse([]byte("checked: true\nstep_budget: 2\naliases:\n  real: float64\n"))
	require.NoError(t, err)
	eng, err := cseval.New(cseval.WithConfig(cfg))
	require.NoError(t, err)

	v, err := eng.Eval(context.Background(), "(real)1", nil)
	require.NoError(t, err)
	assert.Equal(t, float64(1), v)

	_, err = eng.Eval(context.Background(), "x * x + x * x",
		[]binder.Parameter{{Name: "x", Type: reflect.TypeFor[int32]()}}, int32(1))
	assert.True(t, types.HasCode(err, types.ErrStepBudget), "got %v", err)

	_, err = cseval.New(cseval.WithConfig(config.Config{}))
	assert.Error(t, err)
}

func TestEngineConcurrent(t *testing.T) {
	eng, err := cseval.New()
	require.NoError(t, err)
	params := []binder.Parameter{{Name: "a", Type: reflect.TypeFor[int32]()}}
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := eng.Eval(context.Background(), "a * a", params, int32(i))
			assert.NoError(t, err)
			assert.Equal(t, int32(i*i), v)
		}()
	}
	wg.Wait()
}

func TestEngineTelemetry(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	inst, err := telemetry.New(tp.Tracer("test"), mp.Meter("test"))
	require.NoError(t, err)

	eng, err := cseval.New(cseval.WithTelemetry(inst))
	require.NoError(t, err)
	_, err = eng.Eval(context.Background(), "1 + 1", nil)
	require.NoError(t, err)
	_, err = eng.Eval(context.Background(), "1 + 1", nil)
	require.NoError(t, err)
	_, err = eng.Eval(context.Background(), "1 +", nil)
	require.Error(t, err)

	names := map[string]int{}
	for _, s := range exporter.GetSpans() {
		names[s.Name]++
	}
	assert.Equal(t, 2, names[telemetry.SpanCompile])
	assert.Equal(t, 2, names[telemetry.SpanParse])
	assert.Equal(t, 1, names[telemetry.SpanBind])
	assert.Equal(t, 2, names[telemetry.SpanRun])

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					counts[m.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(2), counts[telemetry.MetricCompileCount])
	assert.Equal(t, int64(1), counts[telemetry.MetricCompileFailures])
	assert.Equal(t, int64(1), counts[telemetry.MetricCacheHits])
}
