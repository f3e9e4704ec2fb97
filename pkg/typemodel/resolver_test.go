package typemodel_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/typemodel"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/types"
)

type Inner struct {
	Tag string
}

type Outer struct {
	Inner Inner
	Items []Point
}

type Vec struct{ X, Y float32 }

type secret struct{}

func ref(name string, args ...typemodel.TypeReference) typemodel.TypeReference {
	return typemodel.NewTypeReference(name, args...)
}

func TestTypeReference(t *testing.T) {
	dict := ref("Dictionary", ref("string"), ref("List", ref("int")))
	assert.Equal(t, "Dictionary<string,List<int>>", dict.String())
	assert.Equal(t, 2, dict.Arity())
	assert.False(t, dict.IsOpen())
	assert.True(t, dict.Equal(ref("Dictionary", ref("string"), ref("List", ref("int")))))
	assert.False(t, dict.Equal(ref("Dictionary", ref("string"), ref("List", ref("long")))))

	assert.Equal(t, "int[]", typemodel.ArrayOf(ref("int")).String())

	open := ref("Dictionary", ref("string"), ref("List", typemodel.EmptyTypeReference))
	assert.True(t, open.IsOpen())
	assert.True(t, typemodel.EmptyTypeReference.IsEmpty())

	dotted := ref("System.Math")
	assert.Equal(t, []string{"System", "Math"}, dotted.Name)
	assert.Equal(t, "Math", dotted.ShortName())
	assert.Equal(t, "System.Math", dotted.FullName())
}

func TestKnownTypesResolve(t *testing.T) {
	k := typemodel.NewKnownTypes(typemodel.WithTypes(reflect.TypeFor[Outer]()))
	tests := []struct {
		ref  typemodel.TypeReference
		want reflect.Type
	}{
		{ref("int"), typemodel.Int32Type},
		{ref("long"), typemodel.Int64Type},
		{ref("nint"), typemodel.IntType},
		{ref("object"), typemodel.AnyType},
		{ref("decimal"), typemodel.DecimalType},
		{ref("Math"), typemodel.MathType},
		{ref("Outer"), reflect.TypeFor[Outer]()},
		{ref("typemodel_test.Outer"), reflect.TypeFor[Outer]()},
		{ref("Inner"), reflect.TypeFor[Inner]()},
		{ref("Point"), reflect.TypeFor[Point]()},
		{ref("Nullable", ref("int")), reflect.TypeFor[*int32]()},
		{ref("List", ref("Point")), reflect.TypeFor[[]Point]()},
		{ref("IEnumerable", ref("string")), reflect.TypeFor[[]string]()},
		{typemodel.ArrayOf(ref("double")), reflect.TypeFor[[]float64]()},
		{ref("Dictionary", ref("string"), ref("List", ref("int"))), reflect.TypeFor[map[string][]int32]()},
		{ref("Func", ref("int"), ref("bool")), reflect.TypeFor[func(int32) bool]()},
		{ref("Func", ref("int"), ref("int"), ref("long")), reflect.TypeFor[func(int32, int32) int64]()},
		{ref("Action"), reflect.TypeFor[func()]()},
		{ref("Action", ref("string")), reflect.TypeFor[func(string)]()},
	}
	for _, tt := range tests {
		t.Run(tt.ref.String(), func(t *testing.T) {
			got, err := k.Resolve(tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			got, ok := k.TryGetType(tt.ref)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKnownTypesErrors(t *testing.T) {
	k := typemodel.NewKnownTypes(
		typemodel.WithNamedType("Vec", reflect.TypeFor[Vec]()),
		typemodel.WithNamedType("Vec", reflect.TypeFor[Point]()),
	)
	tests := []struct {
		name string
		ref  typemodel.TypeReference
		code types.ErrorCode
	}{
		{"unknown", ref("Missing"), types.ErrUnknownType},
		{"open generic", ref("List", typemodel.EmptyTypeReference), types.ErrUnknownType},
		{"generic without arguments", ref("List"), types.ErrGenericArity},
		{"wrong arity", ref("Dictionary", ref("int")), types.ErrGenericArity},
		{"nullable reference type", ref("Nullable", ref("object")), types.ErrGenericArity},
		{"unhashable key", ref("Dictionary", ref("List", ref("int")), ref("int")), types.ErrGenericArity},
		{"unknown argument", ref("List", ref("Missing")), types.ErrUnknownType},
		{"ambiguous", ref("Vec"), types.ErrAmbiguousType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := k.Resolve(tt.ref)
			require.Error(t, err)
			assert.True(t, types.HasCode(err, tt.code), "got %v", err)
			assert.True(t, types.IsKind(err, types.BindError), "got %v", err)

			_, ok := k.TryGetType(tt.ref)
			assert.False(t, ok)
		})
	}
}

func TestKnownTypesFallback(t *testing.T) {
	hidden := typemodel.NewKnownTypes(typemodel.WithNamedType("Secret", reflect.TypeFor[secret]()))
	k := typemodel.NewKnownTypes(typemodel.WithFallback(hidden))

	got, err := k.Resolve(ref("Secret"))
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeFor[secret](), got)
	assert.True(t, k.IsKnownType(reflect.TypeFor[secret]()))

	got, err = typemodel.Resolve(k, ref("List", ref("Secret")))
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeFor[[]secret](), got)
}

func TestKnownTypesIsKnownType(t *testing.T) {
	k := typemodel.NewKnownTypes(typemodel.WithTypes(reflect.TypeFor[Outer]()))
	assert.True(t, k.IsKnownType(typemodel.Int32Type))
	assert.True(t, k.IsKnownType(reflect.TypeFor[Inner]()))
	assert.True(t, k.IsKnownType(reflect.TypeFor[[]Outer]()))
	assert.True(t, k.IsKnownType(reflect.TypeFor[map[string]*Inner]()))
	assert.True(t, k.IsKnownType(reflect.TypeFor[func(Point) string]()))
	assert.False(t, k.IsKnownType(reflect.TypeFor[Vec]()))
	assert.False(t, k.IsKnownType(reflect.TypeFor[[]Vec]()))
	assert.False(t, k.IsKnownType(reflect.TypeFor[func(int32) Vec]()))
}

// plainResolver only implements the Resolver interface.
type plainResolver map[string]reflect.Type

func (p plainResolver) TryGetType(r typemodel.TypeReference) (reflect.Type, bool) {
	t, ok := p[r.FullName()]
	return t, ok
}

func (p plainResolver) IsKnownType(t reflect.Type) bool {
	for _, v := range p {
		if v == t {
			return true
		}
	}
	return false
}

func TestResolvePlainResolver(t *testing.T) {
	p := plainResolver{"Vec": reflect.TypeFor[Vec]()}
	got, err := typemodel.Resolve(p, ref("Vec"))
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeFor[Vec](), got)

	_, err = typemodel.Resolve(p, ref("Other"))
	assert.True(t, types.HasCode(err, types.ErrUnknownType), "got %v", err)
}

func TestKnownTypesCustomGeneric(t *testing.T) {
	k := typemodel.NewKnownTypes(typemodel.WithGeneric(typemodel.GenericShape{
		Name:  "Pair",
		Arity: 2,
		Instantiate: func(args []reflect.Type) (reflect.Type, error) {
			return reflect.ArrayOf(2, args[0]), nil
		},
	}))
	got, err := k.Resolve(ref("Pair", ref("int"), ref("int")))
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeFor[[2]int32](), got)
	assert.True(t, k.IsKnownType(got))
}
