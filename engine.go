package cseval

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/binder"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/cache"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/config"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/evaluator"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/ext"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/parser"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/syntax"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/telemetry"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/typemodel"
)

// Option configures an Engine, or a single Compile or Eval call.
type Option func(*options)

type options struct {
	registry        *typemodel.Registry
	resolver        typemodel.Resolver
	knownTypes      []reflect.Type
	logger          *slog.Logger
	telemetry       *telemetry.Instruments
	global          any
	checked         bool
	maxDepth        int
	stepBudget      int64
	cacheSize       int
	allowReflection bool
	aliases         map[string]string
	extensions      []ext.Library

	// Used by the package-level Compile and Eval only.
	params []binder.Parameter
	result reflect.Type
	args   []any

	err error
}

func defaultOptions() options {
	cfg := config.Default()
	return options{
		maxDepth:  cfg.MaxDepth,
		cacheSize: cfg.CacheSize,
	}
}

// WithConfig applies loaded settings. An invalid configuration makes New
// fail.
func WithConfig(cfg config.Config) Option {
	return func(o *options) {
		if err := cfg.Validate(); err != nil {
			o.err = fmt.Errorf("invalid config: %w", err)
			return
		}
		o.checked = cfg.Checked
		o.maxDepth = cfg.MaxDepth
		o.stepBudget = cfg.StepBudget
		o.cacheSize = cfg.CacheSize
		o.allowReflection = cfg.AllowReflection
		o.aliases = cfg.Aliases
	}
}

// WithRegistry uses a specific type descriptor registry instead of
// typemodel.Default.
func WithRegistry(r *typemodel.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithResolver sets the type resolver. It takes precedence over
// WithKnownTypes.
func WithResolver(r typemodel.Resolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}

// WithKnownTypes adds host types to the default resolver.
func WithKnownTypes(ts ...reflect.Type) Option {
	return func(o *options) {
		o.knownTypes = append(o.knownTypes, ts...)
	}
}

// WithLogger sets the logger passed down to every stage.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTelemetry records spans and metrics with inst.
func WithTelemetry(inst *telemetry.Instruments) Option {
	return func(o *options) {
		o.telemetry = inst
	}
}

// WithGlobal makes the members of v visible without a receiver.
func WithGlobal(v any) Option {
	return func(o *options) {
		o.global = v
	}
}

// WithChecked turns on overflow checking outside checked and unchecked
// scopes.
func WithChecked(checked bool) Option {
	return func(o *options) {
		o.checked = checked
	}
}

// WithMaxDepth limits parser nesting.
func WithMaxDepth(depth int) Option {
	return func(o *options) {
		o.maxDepth = depth
	}
}

// WithStepBudget limits node executions per run. Zero means no limit.
func WithStepBudget(steps int64) Option {
	return func(o *options) {
		o.stepBudget = steps
	}
}

// WithCacheSize sets the program cache capacity. Zero disables caching.
func WithCacheSize(size int) Option {
	return func(o *options) {
		o.cacheSize = size
	}
}

// WithAllowReflection permits member access on reflection types.
func WithAllowReflection(allow bool) Option {
	return func(o *options) {
		o.allowReflection = allow
	}
}

// WithAliases adds type keyword aliases. Mapping a keyword to "" removes
// a built-in alias.
func WithAliases(aliases map[string]string) Option {
	return func(o *options) {
		o.aliases = aliases
	}
}

// WithExtensions installs extension libraries. They are registered on the
// registry given by WithRegistry, or on a fresh registry otherwise, and
// their names become resolvable.
func WithExtensions(libs ...ext.Library) Option {
	return func(o *options) {
		o.extensions = append(o.extensions, libs...)
	}
}

// WithParameters declares the parameters of the expression for Compile
// and Eval.
func WithParameters(params ...binder.Parameter) Option {
	return func(o *options) {
		o.params = append(o.params, params...)
	}
}

// WithArg declares a parameter typed after value and passes value to it
// when Eval runs. A nil value declares an any parameter.
func WithArg(name string, value any) Option {
	return func(o *options) {
		t := reflect.TypeOf(value)
		if t == nil {
			t = typemodel.AnyType
		}
		o.params = append(o.params, binder.Parameter{Name: name, Type: t})
		o.args = append(o.args, value)
	}
}

// WithResultType converts the expression to t.
func WithResultType(t reflect.Type) Option {
	return func(o *options) {
		o.result = t
	}
}

// Engine compiles and runs expressions with shared settings. Compiled
// programs are cached by source and signature. An Engine is safe for
// concurrent use.
type Engine struct {
	opts     options
	resolver typemodel.Resolver
	cache    *cache.Cache
	tel      *telemetry.Instruments
	logger   *slog.Logger
}

// New creates an engine.
func New(opts ...Option) (*Engine, error) {
	return newEngine(opts, true)
}

func newEngine(opts []Option, cached bool) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.err != nil {
		return nil, o.err
	}
	if o.maxDepth <= 0 {
		return nil, fmt.Errorf("max depth must be positive, got %d", o.maxDepth)
	}
	e := &Engine{
		opts:     o,
		resolver: o.resolver,
		tel:      o.telemetry,
		logger:   o.logger,
	}
	var named []typemodel.KnownTypesOption
	if len(o.extensions) > 0 {
		if e.opts.registry == nil {
			e.opts.registry = typemodel.NewRegistry()
		}
		var err error
		if named, err = ext.Install(e.opts.registry, o.extensions...); err != nil {
			return nil, fmt.Errorf("install extensions: %w", err)
		}
	}
	switch {
	case e.resolver == nil:
		e.resolver = typemodel.NewKnownTypes(append(named, typemodel.WithTypes(o.knownTypes...))...)
	case len(named) > 0:
		e.resolver = typemodel.NewKnownTypes(append(named, typemodel.WithFallback(e.resolver))...)
	}
	if e.tel == nil {
		e.tel = telemetry.Noop()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if cached && o.cacheSize > 0 {
		e.cache = cache.New(o.cacheSize)
	}
	return e, nil
}

// Compile compiles source with the given parameters. A nil result keeps
// the natural type of the expression.
func (e *Engine) Compile(ctx context.Context, source string, params []binder.Parameter, result reflect.Type) (*evaluator.Program, error) {
	if e.cache == nil {
		return e.compile(ctx, source, params, result)
	}
	key := cache.NewKey(source, params, result, e.opts.checked)
	prog, hit, err := e.cache.GetOrCompile(key, func() (*evaluator.Program, error) {
		return e.compile(ctx, source, params, result)
	})
	if hit {
		e.tel.RecordCacheHit(ctx)
		e.logger.Debug("program cache hit", "source", source)
	}
	return prog, err
}

// Eval compiles source and runs it with args.
func (e *Engine) Eval(ctx context.Context, source string, params []binder.Parameter, args ...any) (any, error) {
	prog, err := e.Compile(ctx, source, params, nil)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, prog, args...)
}

// Run runs a program inside a run span.
func (e *Engine) Run(ctx context.Context, prog *evaluator.Program, args ...any) (result any, err error) {
	ctx, end := e.tel.Start(ctx, telemetry.SpanRun)
	defer func() { end(err) }()
	return prog.RunContext(ctx, args...)
}

// CacheStats reports program cache hits and misses. An engine without a
// cache reports zeros.
func (e *Engine) CacheStats() cache.Stats {
	if e.cache == nil {
		return cache.Stats{}
	}
	return e.cache.Stats()
}

// ClearCache drops every cached program.
func (e *Engine) ClearCache() {
	if e.cache != nil {
		e.cache.Clear()
	}
}

func (e *Engine) compile(ctx context.Context, source string, params []binder.Parameter, result reflect.Type) (prog *evaluator.Program, err error) {
	start := time.Now()
	ctx, end := e.tel.Start(ctx, telemetry.SpanCompile, telemetry.Source(source))
	defer func() {
		e.tel.RecordCompile(ctx, time.Since(start), err)
		end(err)
	}()

	node, err := e.parse(ctx, source)
	if err != nil {
		return nil, err
	}
	expr, err := e.bind(ctx, node, params, result)
	if err != nil {
		return nil, err
	}
	return evaluator.Compile(expr, params,
		evaluator.WithStepBudget(e.opts.stepBudget),
		evaluator.WithLogger(e.logger),
	)
}

func (e *Engine) parse(ctx context.Context, source string) (node syntax.Node, err error) {
	_, end := e.tel.Start(ctx, telemetry.SpanParse)
	defer func() { end(err) }()

	root, err := parser.ParseString(source, parser.WithMaxDepth(e.opts.maxDepth))
	if err != nil {
		return nil, err
	}
	return syntax.Canonicalize(root, e.opts.checked, syntax.WithAliases(e.opts.aliases))
}

func (e *Engine) bind(ctx context.Context, node syntax.Node, params []binder.Parameter, result reflect.Type) (expr binder.Expr, err error) {
	_, end := e.tel.Start(ctx, telemetry.SpanBind)
	defer func() { end(err) }()

	opts := []binder.Option{
		binder.WithGlobal(e.opts.global),
		binder.WithAllowReflection(e.opts.allowReflection),
		binder.WithLogger(e.logger),
	}
	if e.opts.registry != nil {
		opts = append(opts, binder.WithRegistry(e.opts.registry))
	}
	return binder.Bind(node, params, result, e.resolver, opts...)
}
