// Package cseval evaluates C#-style expressions over Go values.
//
// An expression goes through four stages: the scanner and parser build a
// parse tree, the canonicalizer turns it into a canonical node, the binder
// resolves it against parameters and host types into a typed tree, and the
// evaluator lowers that into a program that runs without generating code.
//
// # Quick Start
//
//	// One-shot evaluation
//	v, err := cseval.Eval(ctx, "Math.Max(a, 2) * 10", cseval.WithArg("a", int32(7)))
//
//	// Compile once, run many times
//	prog, err := cseval.Compile("p.X + p.Y",
//	    cseval.WithParameters(binder.Parameter{Name: "p", Type: reflect.TypeFor[Point]()}),
//	    cseval.WithKnownTypes(reflect.TypeFor[Point]()),
//	)
//	v1, _ := prog.Run(Point{X: 1, Y: 2})
//	v2, _ := prog.Run(Point{X: 3, Y: 4})
//
//	// A long-lived engine with a program cache and telemetry
//	eng, err := cseval.New(cseval.WithConfig(cfg), cseval.WithTelemetry(inst))
//	prog, err = eng.Compile(ctx, "a + 1", params, nil)
//
// The stages are also exposed one by one: Tokenize, Parse, Canonicalize,
// Bind and CompileAndRun.
package cseval

import (
	"context"
	"fmt"
	"iter"
	"reflect"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/binder"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/evaluator"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/parser"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/syntax"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/typemodel"
)

// Version returns the current version of the module.
func Version() string {
	return "v0.1.0-dev"
}

// Tokenize scans text lazily. The sequence stops at the first lex error.
func Tokenize(text string) iter.Seq2[parser.Token, error] {
	return parser.Tokenize(text)
}

// Parse builds the parse tree of a token sequence.
func Parse(tokens iter.Seq2[parser.Token, error], opts ...parser.ParseOption) (*parser.Node, error) {
	return parser.Parse(tokens, opts...)
}

// Canonicalize converts a parse tree into a canonical node. checked is the
// overflow checking used outside checked and unchecked scopes.
func Canonicalize(node *parser.Node, checked bool) (syntax.Node, error) {
	return syntax.Canonicalize(node, checked)
}

// Bind binds a canonical node. result may be nil to keep the natural type
// of the expression; global may be nil or a value whose members are
// visible unqualified.
func Bind(node syntax.Node, params []binder.Parameter, result reflect.Type, resolver typemodel.Resolver, global any) (binder.Expr, error) {
	if resolver == nil {
		resolver = typemodel.NewKnownTypes()
	}
	return binder.Bind(node, params, result, resolver, binder.WithGlobal(global))
}

// CompileAndRun compiles a bound expression and runs it once with args,
// one per parameter.
func CompileAndRun(expr binder.Expr, params []binder.Parameter, args ...any) (any, error) {
	prog, err := evaluator.Compile(expr, params)
	if err != nil {
		return nil, err
	}
	return prog.Run(args...)
}

// Compile compiles source with a throwaway engine. Parameters and the
// result type come from WithParameters, WithArg and WithResultType.
//
// For repeated compilation of the same sources use an Engine, which keeps
// a program cache.
func Compile(source string, opts ...Option) (*evaluator.Program, error) {
	e, err := newEngine(opts, false)
	if err != nil {
		return nil, err
	}
	return e.Compile(context.Background(), source, e.opts.params, e.opts.result)
}

// Eval compiles source and runs it with the arguments given by WithArg.
func Eval(ctx context.Context, source string, opts ...Option) (any, error) {
	e, err := newEngine(opts, false)
	if err != nil {
		return nil, err
	}
	prog, err := e.Compile(ctx, source, e.opts.params, e.opts.result)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, prog, e.opts.args...)
}

// MustCompile is like Compile but panics if the expression cannot be
// compiled. It simplifies safe initialization of global variables.
func MustCompile(source string, opts ...Option) *evaluator.Program {
	prog, err := Compile(source, opts...)
	if err != nil {
		panic(fmt.Sprintf("cseval: Compile(%q): %v", source, err))
	}
	return prog
}
