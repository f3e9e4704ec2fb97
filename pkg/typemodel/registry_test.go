package typemodel_test

import (
	"errors"
	"math"
	"reflect"
	"strconv"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/typemodel"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/types"
)

type Point struct {
	X, Y int32
}

func (p Point) Sum() int32 { return p.X + p.Y }

func (p *Point) Scale(f int32) { p.X *= f; p.Y *= f }

type Base struct {
	ID int32
}

type Derived struct {
	Base
	Name string
}

type Money struct {
	Cents int64
}

func (m Money) Add(o Money) Money   { return Money{m.Cents + o.Cents} }
func (m Money) Equal(o Money) bool  { return m.Cents == o.Cents }
func (m Money) Neg() Money          { return Money{-m.Cents} }
func (m Money) Mul(f float64) Money { return Money{int64(float64(m.Cents) * f)} }

func TestDescribeStruct(t *testing.T) {
	r := typemodel.NewRegistry()
	d := r.Describe(reflect.TypeFor[Point]())

	require.Len(t, d.Member("X"), 1)
	assert.Equal(t, typemodel.MemberField, d.Member("X")[0].Kind)
	assert.Equal(t, typemodel.Int32Type, d.Member("X")[0].ResultType)

	// A zero-argument method doubles as a read-only property.
	sum := d.Member("Sum")
	require.Len(t, sum, 2)
	assert.Equal(t, typemodel.MemberProperty, sum[0].Kind)
	assert.Equal(t, typemodel.MemberMethod, sum[1].Kind)
	assert.False(t, sum[0].PointerReceiver)

	scale := d.Member("Scale")
	require.Len(t, scale, 1)
	assert.True(t, scale[0].PointerReceiver)
	assert.Nil(t, scale[0].ResultType)

	toString := d.Member("ToString")
	require.NotEmpty(t, toString)
	assert.Equal(t, typemodel.NativeToString, toString[0].Native)

	require.Len(t, d.Constructors, 1)
	assert.Equal(t, typemodel.NativeZero, d.Constructors[0].Native)
	assert.True(t, d.IsValueType)
	assert.False(t, d.IsNullable)
}

func TestDescribeEmbedded(t *testing.T) {
	r := typemodel.NewRegistry()
	d := r.Describe(reflect.TypeFor[Derived]())
	assert.Equal(t, []reflect.Type{reflect.TypeFor[Base]()}, d.BaseTypes)

	id := d.Member("ID")
	require.Len(t, id, 1)
	assert.Equal(t, []int{0, 0}, id[0].FieldIndex)

	// The base type is described in the same batch.
	n := r.Len()
	r.Describe(reflect.TypeFor[Base]())
	assert.Equal(t, n, r.Len())
}

func TestDescribeNative(t *testing.T) {
	r := typemodel.NewRegistry()

	slice := r.Describe(reflect.TypeFor[[]int32]())
	require.Len(t, slice.Member("Length"), 1)
	assert.Equal(t, typemodel.NativeLen, slice.Member("Length")[0].Native)
	require.Len(t, slice.Indexers, 1)
	assert.Equal(t, typemodel.Int32Type, slice.Indexers[0].ResultType)
	assert.Len(t, slice.Constructors, 2)
	assert.Equal(t, []reflect.Type{typemodel.Int32Type}, slice.TypeArguments)

	m := r.Describe(reflect.TypeFor[map[string]float64]())
	require.Len(t, m.Indexers, 1)
	assert.Equal(t, typemodel.StringType, m.Indexers[0].Parameters[0].Type)
	assert.Len(t, m.Member("Count"), 1)

	nullable := r.Describe(reflect.TypeFor[*int32]())
	assert.True(t, nullable.IsNullable)
	assert.Equal(t, typemodel.Int32Type, nullable.Underlying)
	assert.Len(t, nullable.Member("HasValue"), 1)
	assert.Len(t, nullable.Member("Value"), 1)

	fn := r.Describe(reflect.TypeFor[func(int32, string) (bool, error)]())
	assert.True(t, fn.IsDelegate)
	invoke := fn.Member("Invoke")
	require.Len(t, invoke, 1)
	assert.Len(t, invoke[0].Parameters, 2)
	assert.Equal(t, typemodel.BoolType, invoke[0].ResultType)
	assert.True(t, invoke[0].ReturnsError)

	enum := r.Describe(reflect.TypeFor[Color]())
	assert.True(t, enum.IsEnum)
	assert.Equal(t, typemodel.Int32Type, enum.Underlying)
}

func TestDescribeOperators(t *testing.T) {
	r := typemodel.NewRegistry()
	d := r.Describe(reflect.TypeFor[Money]())
	assert.Len(t, d.OperatorFamily(typemodel.OpAddition), 1)
	assert.Len(t, d.OperatorFamily(typemodel.OpEquality), 1)
	assert.Len(t, d.OperatorFamily(typemodel.OpUnaryNegation), 1)
	// Mul takes a float64, not a Money, so it is only a method.
	assert.Empty(t, d.OperatorFamily(typemodel.OpMultiply))
	assert.Len(t, d.Member("Mul"), 1)

	require.NoError(t, r.RegisterOperator(typemodel.OpMultiply, func(m Money, f float64) Money { return m.Mul(f) }))
	d = r.Describe(reflect.TypeFor[Money]())
	mul := d.OperatorFamily(typemodel.OpMultiply)
	require.Len(t, mul, 1)
	assert.True(t, mul[0].Static)

	// Operators registered with a foreign second operand join that type too.
	assert.Len(t, r.Describe(typemodel.Float64Type).OperatorFamily(typemodel.OpMultiply), 1)

	dec := r.Describe(typemodel.DecimalType)
	assert.NotEmpty(t, dec.OperatorFamily(typemodel.OpAddition))
	assert.NotEmpty(t, dec.OperatorFamily(typemodel.OpComparison))
}

func TestDescribeCachesAndInvalidates(t *testing.T) {
	r := typemodel.NewRegistry()
	pt := reflect.TypeFor[Point]()
	first := r.Describe(pt)
	assert.Same(t, first, r.Describe(pt))

	require.NoError(t, r.RegisterStatic(pt, "Origin", func() Point { return Point{} }))
	second := r.Describe(pt)
	assert.NotSame(t, first, second)
	assert.Len(t, second.Static("Origin"), 1)
	assert.Empty(t, first.Static("Origin"))

	r.Reset()
	assert.Equal(t, 0, r.Len())
	assert.Len(t, r.Describe(pt).Static("Origin"), 1)
}

func TestDescribeConcurrent(t *testing.T) {
	r := typemodel.NewRegistry()
	ts := []reflect.Type{
		reflect.TypeFor[Point](), reflect.TypeFor[Derived](), reflect.TypeFor[[]Money](),
		reflect.TypeFor[map[string]*Point](), typemodel.MathType,
	}
	results := make([][]*typemodel.TypeDescriptor, 16)
	var g errgroup.Group
	for i := range results {
		g.Go(func() error {
			for _, tp := range ts {
				results[i] = append(results[i], r.Describe(tp))
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	for i := 1; i < len(results); i++ {
		for j := range ts {
			assert.Same(t, results[0][j], results[i][j])
		}
	}
}

func TestRegisterAndMutateConcurrently(t *testing.T) {
	r := typemodel.NewRegistry()
	pt := reflect.TypeFor[Point]()
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = r.RegisterStatic(pt, "F"+strconv.Itoa(i), func() int32 { return int32(i) })
		}()
		go func() {
			defer wg.Done()
			_ = r.Describe(pt)
		}()
	}
	wg.Wait()
	d := r.Describe(pt)
	for i := range 8 {
		assert.Len(t, d.Static("F"+strconv.Itoa(i)), 1)
	}
}

func TestRegisterEnum(t *testing.T) {
	r := typemodel.NewRegistry()
	ct := reflect.TypeFor[Color]()
	require.NoError(t, r.RegisterEnum(ct, map[string]any{"Red": 0, "Green": 1}))
	green := r.Describe(ct).Static("Green")
	require.Len(t, green, 1)
	assert.Equal(t, Color(1), green[0].Value.Interface())
	assert.Equal(t, typemodel.MemberStaticValue, green[0].Kind)

	assert.Error(t, r.RegisterEnum(typemodel.StringType, map[string]any{"A": "a"}))
	assert.Error(t, r.RegisterEnum(ct, map[string]any{"Bad": "x"}))
}

func TestRegisterConstructorAndMethod(t *testing.T) {
	r := typemodel.NewRegistry()
	require.NoError(t, r.RegisterConstructor(func(x, y int32) Point { return Point{x, y} }, "x", "y"))
	ctors := r.Describe(reflect.TypeFor[Point]()).Constructors
	require.Len(t, ctors, 2)
	assert.Empty(t, ctors[0].Parameters)
	assert.Equal(t, 1, ctors[1].ParameterIndex("y"))

	require.NoError(t, r.RegisterMethod("Dist", func(p Point) float64 {
		return math.Hypot(float64(p.X), float64(p.Y))
	}))
	dist := r.Describe(reflect.TypeFor[Point]()).Member("Dist")
	require.Len(t, dist, 1)
	assert.False(t, dist[0].Static)
	assert.Empty(t, dist[0].Parameters)

	assert.Error(t, r.RegisterConstructor(func() {}))
	assert.Error(t, r.RegisterMethod("Nope", func() int32 { return 0 }))
	assert.Error(t, r.RegisterStatic(typemodel.MathType, "Bad", 42))
	assert.Error(t, r.RegisterStatic(typemodel.MathType, "Bad", func() (int32, int32) { return 0, 0 }))
	assert.Error(t, r.RegisterInterface(typemodel.StringType))
}

func TestUserConversions(t *testing.T) {
	r := typemodel.NewRegistry()
	ct := reflect.TypeFor[Celsius]()
	q, m := r.Classify(typemodel.Source{Type: ct}, typemodel.Float64Type)
	assert.Equal(t, typemodel.QualityIncompatible, q)
	assert.Nil(t, m)

	require.NoError(t, r.RegisterConversion(func(c Celsius) float64 { return c.V }, true))
	require.NoError(t, r.RegisterConversion(func(f float64) Celsius { return Celsius{f} }, false))

	q, m = r.Classify(typemodel.Source{Type: ct}, typemodel.Float64Type)
	assert.Equal(t, typemodel.QualityUserImplicit, q)
	require.NotNil(t, m)
	assert.Equal(t, typemodel.Float64Type, m.ResultType)

	// Explicit conversions are not considered implicitly.
	q, _ = r.Classify(typemodel.Source{Type: typemodel.Float64Type}, ct)
	assert.Equal(t, typemodel.QualityIncompatible, q)
	assert.NotNil(t, r.FindConversion(typemodel.Float64Type, ct, false))
	// The parameter accepts int32 through a built-in widening.
	assert.NotNil(t, r.FindConversion(typemodel.Int32Type, ct, false))

	// Built-in conversions win without a member.
	q, m = r.Classify(typemodel.Source{Type: typemodel.Int32Type}, typemodel.Float64Type)
	assert.Greater(t, q, typemodel.QualityUserImplicit)
	assert.Nil(t, m)

	// Conversion methods such as IntPart turn decimal into integers.
	conv := r.FindConversion(typemodel.DecimalType, typemodel.Int64Type, false)
	require.NotNil(t, conv)
	assert.Equal(t, typemodel.Int64Type, conv.ResultType)
	assert.Nil(t, r.FindConversion(typemodel.DecimalType, typemodel.Int64Type, true))
}

func TestBuiltins(t *testing.T) {
	r := typemodel.NewRegistry()

	maxValue := r.Describe(typemodel.Int32Type).Static("MaxValue")
	require.Len(t, maxValue, 1)
	assert.Equal(t, int32(math.MaxInt32), maxValue[0].Value.Interface())

	parse := r.Describe(typemodel.Int32Type).Static("Parse")
	require.Len(t, parse, 1)
	out := parse[0].Func.Call([]reflect.Value{reflect.ValueOf(" 42 ")})
	assert.Equal(t, int32(42), out[0].Interface())
	assert.True(t, out[1].IsNil())

	m := r.Describe(typemodel.MathType)
	assert.Len(t, m.Static("Max"), 7)
	assert.Len(t, m.Static("PI"), 1)
	assert.NotEmpty(t, m.Static("Sqrt"))

	decParse := r.Describe(typemodel.DecimalType).Static("Parse")
	require.Len(t, decParse, 1)
	out = decParse[0].Func.Call([]reflect.Value{reflect.ValueOf("1.25")})
	assert.True(t, decimal.RequireFromString("1.25").Equal(out[0].Interface().(decimal.Decimal)))

	upper := r.Describe(typemodel.StringType).Member("ToUpper")
	require.Len(t, upper, 1)
	assert.Equal(t, "ABC", upper[0].Func.Call([]reflect.Value{reflect.ValueOf("abc")})[0].Interface())

	sub := r.Describe(typemodel.StringType).Member("Substring")
	require.Len(t, sub, 2)
	assert.True(t, sub[0].ReturnsError)

	bare := typemodel.NewRegistry(typemodel.WithoutBuiltins())
	assert.Empty(t, bare.Describe(typemodel.MathType).Static("Max"))
}

func TestMemberSignatureAndOrder(t *testing.T) {
	r := typemodel.NewRegistry()
	join := r.Describe(typemodel.StringType).Static("Join")
	require.Len(t, join, 1)
	assert.Equal(t, "string.Join(string, ...string)", join[0].Signature())
	assert.True(t, join[0].Variadic)
	assert.Equal(t, typemodel.StringType, join[0].ParameterType(5))
	assert.Equal(t, 1, join[0].ParameterIndex("values"))
	assert.Equal(t, -1, join[0].ParameterIndex("missing"))

	x := r.Describe(reflect.TypeFor[Point]()).Member("X")[0]
	assert.Equal(t, "typemodel_test.Point.X", x.Signature())

	plain := &typemodel.MemberDescriptor{Name: "F", Kind: typemodel.MemberMethod,
		Parameters: []typemodel.Parameter{{Type: typemodel.Int32Type}}}
	variadic := &typemodel.MemberDescriptor{Name: "F", Kind: typemodel.MemberMethod, Variadic: true,
		Parameters: []typemodel.Parameter{{Type: reflect.TypeFor[[]int32]()}}}
	two := &typemodel.MemberDescriptor{Name: "F", Kind: typemodel.MemberMethod,
		Parameters: []typemodel.Parameter{{Type: typemodel.Int32Type}, {Type: typemodel.Int32Type}}}
	assert.Negative(t, plain.Compare(variadic))
	assert.Positive(t, variadic.Compare(plain))
	assert.Negative(t, plain.Compare(two))
	assert.Zero(t, plain.Compare(plain))
	assert.True(t, plain.Precedes(variadic))
	assert.False(t, plain.Precedes(two))
}

func TestSpecialize(t *testing.T) {
	r := typemodel.NewRegistry()
	r.RegisterGenericStatic(typemodel.MathType, "Default", typemodel.GenericMember{
		Arity: 1,
		Instantiate: func(args []reflect.Type) (any, error) {
			if args[0] != typemodel.Int32Type {
				return nil, errors.New("only int32")
			}
			return func() int32 { return 7 }, nil
		},
	})
	g := r.Describe(typemodel.MathType).Static("Default")
	require.Len(t, g, 1)
	assert.True(t, g[0].IsGeneric())
	assert.Equal(t, "typemodel.Math.Default`1()", g[0].Signature())

	spec, err := g[0].Specialize([]reflect.Type{typemodel.Int32Type})
	require.NoError(t, err)
	assert.False(t, spec.IsGeneric())
	assert.True(t, spec.Static)
	assert.Equal(t, typemodel.Int32Type, spec.ResultType)
	assert.Equal(t, []reflect.Type{typemodel.Int32Type}, spec.TypeArguments)

	_, err = g[0].Specialize(nil)
	assert.True(t, types.HasCode(err, types.ErrGenericArity), "got %v", err)
	_, err = g[0].Specialize([]reflect.Type{typemodel.StringType})
	assert.True(t, types.HasCode(err, types.ErrGenericArity), "got %v", err)

	pi := r.Describe(typemodel.MathType).Static("PI")[0]
	same, err := pi.Specialize(nil)
	require.NoError(t, err)
	assert.Same(t, pi, same)
	_, err = pi.Specialize([]reflect.Type{typemodel.Int32Type})
	assert.True(t, types.HasCode(err, types.ErrGenericArity), "got %v", err)
}

func TestIsRestricted(t *testing.T) {
	assert.True(t, typemodel.IsRestricted(reflect.TypeFor[reflect.Value]()))
	assert.True(t, typemodel.IsRestricted(typemodel.TypeType))
	assert.True(t, typemodel.IsRestricted(reflect.TypeFor[*typemodel.Registry]()))
	assert.True(t, typemodel.IsRestricted(reflect.TypeFor[[]typemodel.TypeReference]()))
	assert.False(t, typemodel.IsRestricted(typemodel.MathType))
	assert.False(t, typemodel.IsRestricted(typemodel.Int32Type))
	assert.False(t, typemodel.IsRestricted(reflect.TypeFor[Point]()))
}
