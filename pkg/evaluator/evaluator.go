// Package evaluator runs typed expression trees without generating code.
//
// Compile lowers a bound tree into a tree of nodes, each a small struct
// with a Run method, and collects every constant into one pool. A Program
// is immutable and may run concurrently; each run gets its own Closure
// holding the arguments. Lambdas become real Go func values built with
// reflect.MakeFunc, so host methods can call them like any other func.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/binder"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/typemodel"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/types"
)

// Options configures compilation and execution.
type Options struct {
	// StepBudget limits how many nodes a single run may execute, lambda
	// calls included. Zero means no limit.
	StepBudget int64
	// Logger receives debug records about compilation.
	Logger *slog.Logger
}

// Option is a functional option for Compile.
type Option func(*Options)

// WithStepBudget limits the number of node executions per run.
func WithStepBudget(steps int64) Option {
	return func(o *Options) {
		o.StepBudget = steps
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// Program is a compiled expression.
type Program struct {
	root       Node
	constants  []any
	params     []binder.Parameter
	resultType reflect.Type
	nodes      int
	opts       Options
}

// Compile lowers a bound expression whose parameters are params.
func Compile(expr binder.Expr, params []binder.Parameter, opts ...Option) (*Program, error) {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if expr == nil {
		return nil, types.NewError(types.BindError, types.ErrInvalidCanonicalNode, "nothing to compile", types.Position{})
	}
	cc := &compiler{}
	root, err := cc.compile(expr)
	if err != nil {
		return nil, err
	}
	o.Logger.Debug("expression compiled",
		"nodes", cc.nodes,
		"constants", len(cc.constants),
		"params", len(params))
	return &Program{
		root:       root,
		constants:  cc.constants,
		params:     params,
		resultType: expr.Type(),
		nodes:      cc.nodes,
		opts:       o,
	}, nil
}

// Params returns the parameters the program expects, in order.
func (p *Program) Params() []binder.Parameter {
	return p.params
}

// ResultType returns the static type of the result; nil for the null
// literal.
func (p *Program) ResultType() reflect.Type {
	return p.resultType
}

// Nodes returns the number of nodes in the program.
func (p *Program) Nodes() int {
	return p.nodes
}

// Run evaluates the program with one argument per parameter.
func (p *Program) Run(args ...any) (any, error) {
	return p.RunContext(context.Background(), args...)
}

// RunContext is Run with cancellation. The context is checked
// periodically while nodes execute.
func (p *Program) RunContext(ctx context.Context, args ...any) (result any, err error) {
	if len(args) != len(p.params) {
		return nil, runtimeError(types.ErrArgumentCount, types.Position{},
			"expected %d arguments, got %d", len(p.params), len(args))
	}
	b := newBudget(p.opts.StepBudget)
	defer b.finished.Store(true)
	c := newClosure(ctx, p.constants, len(p.params), b)
	for i, a := range args {
		v, cerr := typemodel.Convert(fromValue(reflect.ValueOf(a)), p.params[i].Type, false)
		if cerr != nil {
			return nil, runtimeError(types.ErrInvalidCast, types.Position{},
				"argument %s: %v", p.params[i].Name, cerr).WithCause(cerr)
		}
		c.Locals[i] = fromValue(reflect.ValueOf(v))
	}
	defer func() {
		if r := recover(); r != nil {
			result = nil
			if te, ok := r.(*types.Error); ok {
				err = te
				return
			}
			err = types.Errorf(types.RuntimeError, types.ErrHostPanic, types.Position{}, "host code panicked: %v", r)
			if e, ok := r.(error); ok {
				err = err.(*types.Error).WithCause(e)
			}
		}
	}()
	result, err = p.root.Run(c)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MustRun is like Run but panics on error.
func (p *Program) MustRun(args ...any) any {
	v, err := p.Run(args...)
	if err != nil {
		panic(fmt.Sprintf("evaluator: %v", err))
	}
	return v
}
