package evaluator_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/binder"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/evaluator"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/parser"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/syntax"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/typemodel"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/types"
)

type Point struct {
	X, Y int32
}

type Link struct {
	Name string
	Next *Link
}

type Bag struct {
	Items  []int32
	Origin Point
	Ref    *Point
}

type Money struct {
	Cents int64
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

type Color int32

type Host struct{}

func (Host) Boom() int32 { panic("boom") }

var errHost = errors.New("host failure")

func (Host) Fail() (int32, error) { return 0, errHost }

func newRegistry(t *testing.T) *typemodel.Registry {
	t.Helper()
	r := typemodel.NewRegistry()
	require.NoError(t, r.RegisterEnum(reflect.TypeFor[Color](), map[string]any{"Red": 1, "Blue": 2}))
	return r
}

func param[T any](name string) binder.Parameter {
	return binder.Parameter{Name: name, Type: reflect.TypeFor[T]()}
}

// compile runs the whole pipeline up to a Program.
func compile(t *testing.T, src string, result reflect.Type, params []binder.Parameter, opts ...evaluator.Option) *evaluator.Program {
	t.Helper()
	root, err := parser.ParseString(src)
	require.NoError(t, err, "parse %q", src)
	node, err := syntax.Canonicalize(root, false)
	require.NoError(t, err, "canonicalize %q", src)
	resolver := typemodel.NewKnownTypes(typemodel.WithTypes(
		reflect.TypeFor[Point](), reflect.TypeFor[Link](), reflect.TypeFor[Bag](),
		reflect.TypeFor[Money](), reflect.TypeFor[Color](),
	))
	expr, err := binder.Bind(node, params, result, resolver, binder.WithRegistry(newRegistry(t)))
	require.NoError(t, err, "bind %q", src)
	prog, err := evaluator.Compile(expr, params, opts...)
	require.NoError(t, err, "compile %q", src)
	return prog
}

func eval(t *testing.T, src string, params []binder.Parameter, args ...any) (any, error) {
	t.Helper()
	return compile(t, src, nil, params).Run(args...)
}

func mustEval(t *testing.T, src string, params []binder.Parameter, args ...any) any {
	t.Helper()
	v, err := eval(t, src, params, args...)
	require.NoError(t, err, "run %q", src)
	return v
}

func TestEvalArithmetic(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want any
	}{
		{"precedence", "2 + 2 * 3", int32(8)},
		{"mixed operators", "(2 * (2 + 3) << 1 - 1 & 7 | 25 ^ 10) + 10", int32(29)},
		{"long promotion", "1 + 2L", int64(3)},
		{"ulong promotion", "1ul + 1", uint64(2)},
		{"long literal past int range", "1 + 2147483647L", int64(2147483648)},
		{"double promotion", "1 + 0.5", 1.5},
		{"unsigned", "3u * 2u", uint32(6)},
		{"modulo", "7 % 3", int32(1)},
		{"negative modulo", "-7 % 3", int32(-1)},
		{"float modulo", "7.5 % 2", 1.5},
		{"shift right", "-16 >> 2", int32(-4)},
		{"complement", "~5", int32(-6)},
		{"negate", "-(3)", int32(-3)},
		{"comparison", "3 > 2", true},
		{"equality", "3 == 3L", true},
		{"logical", "true && !false", true},
		{"conditional", "1 > 2 ? 10 : 20", int32(20)},
		{"concat", `"a" + 1 + true`, "a1True"},
		{"string equality", `"ab" == "a" + "b"`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mustEval(t, tt.src, nil))
		})
	}
}

func TestEvalMixedWidth(t *testing.T) {
	params := []binder.Parameter{param[int32]("x"), param[uint32]("u"), param[int64]("l")}
	tests := []struct {
		src  string
		want any
	}{
		{"x + 2147483647L", int64(2147483649)},
		{"x + 1L", int64(3)},
		{"u + 1", uint32(8)},
		{"u + x", int64(9)},
		{"l + 1", int64(11)},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, mustEval(t, tt.src, params, int32(2), uint32(7), int64(10)))
		})
	}
}

func TestEvalCheckedArithmetic(t *testing.T) {
	_, err := eval(t, "checked(2147483647 + 1)", nil)
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrOverflow), "got %v", err)
	assert.True(t, types.IsKind(err, types.RuntimeError))

	v, err := eval(t, "unchecked(2147483647 + 1)", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(-2147483648), v)

	_, err = eval(t, "x / 0", []binder.Parameter{param[int32]("x")}, int32(1))
	assert.True(t, types.HasCode(err, types.ErrDivideByZero), "got %v", err)
}

func TestEvalNullable(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want any
	}{
		{"null equals null", "null == null", true},
		{"null not equals null", "null != null", false},
		{"lifted greater", "(int?)null > 1", false},
		{"lifted less or equal", "(int?)null <= 1", false},
		{"lifted equality", "(int?)null == 1", false},
		{"lifted add", "(int?)null + 1", nil},
		{"coalesce", "(int?)null ?? 7", int32(7)},
		{"lifted xor", "(bool?)null ^ true", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mustEval(t, tt.src, nil))
		})
	}

	deref := func(v any) any {
		rv := reflect.ValueOf(v)
		require.Equal(t, reflect.Pointer, rv.Kind(), "expected a nullable, got %T", v)
		return rv.Elem().Interface()
	}
	assert.Equal(t, false, deref(mustEval(t, "(bool?)null & false", nil)))
	assert.Equal(t, true, deref(mustEval(t, "(bool?)null | true", nil)))
	assert.Equal(t, int32(6), deref(mustEval(t, "(int?)5 + 1", nil)))
}

func TestEvalNullConditional(t *testing.T) {
	params := []binder.Parameter{param[*Link]("a")}
	prog := compile(t, "a?.Next.Name", nil, params)

	v, err := prog.Run((*Link)(nil))
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = prog.Run(&Link{Name: "a", Next: &Link{Name: "b"}})
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "b", reflect.ValueOf(v).Elem().Interface())

	_, err = prog.Run(&Link{Name: "a"})
	assert.True(t, types.HasCode(err, types.ErrNullReference), "got %v", err)
}

func TestEvalMembersAndIndexers(t *testing.T) {
	params := []binder.Parameter{param[[]int32]("xs"), param[map[string]int32]("m"), param[string]("s")}
	args := []any{[]int32{4, 5, 6}, map[string]int32{"a": 1}, "hey"}

	tests := []struct {
		name string
		src  string
		want any
	}{
		{"slice index", "xs[1]", int32(5)},
		{"slice length", "xs.Length", int32(3)},
		{"map index", `m["a"]`, int32(1)},
		{"map count", "m.Count", int32(1)},
		{"string index", "s[0]", uint8('h')},
		{"to string", "xs[2].ToString()", "6"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mustEval(t, tt.src, params, args...))
		})
	}

	_, err := eval(t, "xs[3]", params, args...)
	assert.True(t, types.HasCode(err, types.ErrIndexOutOfRange), "got %v", err)
	_, err = eval(t, `m["zz"]`, params, args...)
	assert.True(t, types.HasCode(err, types.ErrIndexOutOfRange), "got %v", err)
}

func TestEvalConstruction(t *testing.T) {
	t.Run("member init", func(t *testing.T) {
		v := mustEval(t, "new Point { X = 1, Y = 2 }", nil)
		assert.Equal(t, Point{X: 1, Y: 2}, v)
	})
	t.Run("nested and collection members", func(t *testing.T) {
		v := mustEval(t, "new Bag { Items = { 1, 2 }, Origin = { X = 3 } }", nil)
		assert.Equal(t, Bag{Items: []int32{1, 2}, Origin: Point{X: 3}}, v)
	})
	t.Run("nested member on nil pointer", func(t *testing.T) {
		_, err := eval(t, "new Bag { Ref = { X = 3 } }", nil)
		assert.True(t, types.HasCode(err, types.ErrNullReference), "got %v", err)
	})
	t.Run("list init", func(t *testing.T) {
		assert.Equal(t, []int32{1, 2, 3}, mustEval(t, "new List<int> { 1, 2, 3 }", nil))
	})
	t.Run("array init", func(t *testing.T) {
		assert.Equal(t, []int32{1, 2, 3}, mustEval(t, "new int[] { 1, 2, 3 }", nil))
		assert.Equal(t, []int32{1, 2}, mustEval(t, "new[] { 1, 2 }", nil))
	})
	t.Run("array bounds", func(t *testing.T) {
		assert.Equal(t, []int32{0, 0}, mustEval(t, "new int[2]", nil))
		assert.Equal(t, [][]int32{{0, 0, 0}, {0, 0, 0}}, mustEval(t, "new int[2, 3]", nil))
	})
	t.Run("negative bound", func(t *testing.T) {
		_, err := eval(t, "new int[n]", []binder.Parameter{param[int32]("n")}, int32(-1))
		assert.True(t, types.HasCode(err, types.ErrOverflow), "got %v", err)
	})
}

func TestEvalTypeTests(t *testing.T) {
	params := []binder.Parameter{param[any]("o")}
	assert.Equal(t, true, mustEval(t, "o is int", params, int32(5)))
	assert.Equal(t, false, mustEval(t, "o is string", params, int32(5)))
	assert.Nil(t, mustEval(t, "o as string", params, int32(5)))
	v := mustEval(t, "o as string", params, "x")
	require.IsType(t, (*string)(nil), v)
	assert.Equal(t, "x", *v.(*string))
	assert.Equal(t, "none", mustEval(t, `(o as string) ?? "none"`, params, int32(5)))
	assert.Equal(t, "x", mustEval(t, `(o as string) ?? "none"`, params, "x"))
	assert.Equal(t, int64(5), mustEval(t, "(long)(int)o", params, int32(5)))
}

func TestEvalUserOperatorsAndEnums(t *testing.T) {
	params := []binder.Parameter{param[Money]("a"), param[Money]("b")}
	assert.Equal(t, Money{Cents: 5}, mustEval(t, "a + b", params, Money{Cents: 2}, Money{Cents: 3}))
	assert.Equal(t, Color(3), mustEval(t, "Color.Red | Color.Blue", nil))
}

func TestEvalLambdas(t *testing.T) {
	t.Run("argument with capture", func(t *testing.T) {
		params := []binder.Parameter{
			param[func(func(int32) int32, int32) int32]("apply"),
			param[int32]("k"),
		}
		apply := func(f func(int32) int32, v int32) int32 { return f(v) }
		assert.Equal(t, int32(15), mustEval(t, "apply(x => x * k, 3)", params, apply, int32(5)))
	})
	t.Run("lambda result", func(t *testing.T) {
		prog := compile(t, "x => x + 1", reflect.TypeFor[func(int32) int32](), nil)
		v, err := prog.Run()
		require.NoError(t, err)
		f, ok := v.(func(int32) int32)
		require.True(t, ok, "got %T", v)
		assert.Equal(t, int32(42), f(41))
	})
	t.Run("error inside lambda", func(t *testing.T) {
		params := []binder.Parameter{param[func(func(int32) int32, int32) int32]("apply")}
		apply := func(f func(int32) int32, v int32) int32 { return f(v) }
		_, err := eval(t, "apply(x => checked(x + 2147483647), 1)", params, apply)
		assert.True(t, types.HasCode(err, types.ErrOverflow), "got %v", err)
	})
	t.Run("error in a returned lambda", func(t *testing.T) {
		prog := compile(t, "x => 10 / x", reflect.TypeFor[func(int32) int32](), nil)
		v, err := prog.Run()
		require.NoError(t, err)
		f := v.(func(int32) int32)
		assert.Equal(t, int32(5), f(2))

		var recovered any
		func() {
			defer func() { recovered = recover() }()
			f(0)
		}()
		te, ok := recovered.(*types.Error)
		require.True(t, ok, "recovered %T", recovered)
		assert.Equal(t, types.ErrDivideByZero, te.Code)
	})
	t.Run("returned lambda gets its own budget", func(t *testing.T) {
		prog := compile(t, "x => x + 1", reflect.TypeFor[func(int32) int32](), nil, evaluator.WithStepBudget(10))
		v, err := prog.Run()
		require.NoError(t, err)
		f := v.(func(int32) int32)
		assert.NotPanics(t, func() {
			for i := range int32(50) {
				assert.Equal(t, i+1, f(i))
			}
		})
	})
	t.Run("returned lambda outlives the run context", func(t *testing.T) {
		prog := compile(t, "x => x * 2", reflect.TypeFor[func(int32) int32](), nil)
		ctx, cancel := context.WithCancel(context.Background())
		v, err := prog.RunContext(ctx)
		require.NoError(t, err)
		cancel()
		f := v.(func(int32) int32)
		assert.NotPanics(t, func() {
			for i := range int32(300) {
				f(i)
			}
		})
	})
}

func TestEvalHostFailures(t *testing.T) {
	params := []binder.Parameter{param[Host]("h")}

	_, err := eval(t, "h.Boom()", params, Host{})
	assert.True(t, types.HasCode(err, types.ErrHostPanic), "got %v", err)

	_, err = eval(t, "h.Fail()", params, Host{})
	assert.True(t, types.HasCode(err, types.ErrHostError), "got %v", err)
	assert.ErrorIs(t, err, errHost)
}

func TestProgramArguments(t *testing.T) {
	prog := compile(t, "x + 1", nil, []binder.Parameter{param[int64]("x")})
	_, err := prog.Run()
	assert.True(t, types.HasCode(err, types.ErrArgumentCount), "got %v", err)

	// Arguments convert to the parameter types.
	v, err := prog.Run(int32(2))
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
	assert.Equal(t, reflect.TypeFor[int64](), prog.ResultType())
	assert.Len(t, prog.Params(), 1)
}

func TestProgramStepBudget(t *testing.T) {
	prog := compile(t, "1 + 2 + 3", nil, nil, evaluator.WithStepBudget(2))
	_, err := prog.Run()
	assert.True(t, types.HasCode(err, types.ErrStepBudget), "got %v", err)

	prog = compile(t, "1 + 2 + 3", nil, nil, evaluator.WithStepBudget(100))
	v, err := prog.Run()
	require.NoError(t, err)
	assert.Equal(t, int32(6), v)
}

func TestProgramCancellation(t *testing.T) {
	params := []binder.Parameter{param[func(func(int32) int32, int32) int32]("repeat")}
	repeat := func(f func(int32) int32, n int32) int32 {
		var sum int32
		for i := range n {
			sum += f(i)
		}
		return sum
	}
	prog := compile(t, "repeat(x => x + 1, 10000)", nil, params)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := prog.RunContext(ctx, repeat)
	assert.True(t, types.HasCode(err, types.ErrCanceled), "got %v", err)

	v, err := prog.Run(repeat)
	require.NoError(t, err)
	assert.Equal(t, int32(10000*10001/2), v)
}

func TestProgramConcurrentRuns(t *testing.T) {
	prog := compile(t, "x * x", nil, []binder.Parameter{param[int32]("x")})
	var wg sync.WaitGroup
	for i := range int32(16) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := prog.Run(i)
			assert.NoError(t, err)
			assert.Equal(t, i*i, v)
		}()
	}
	wg.Wait()
}

func TestToString(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{true, "True"},
		{int32(-3), "-3"},
		{1.5, "1.5"},
		{1e20, "1E+20"},
		{float32(0.25), "0.25"},
		{"s", "s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, evaluator.ToString(tt.in), "ToString(%#v)", tt.in)
	}
}
