package typemodel_test

import (
	"math"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/typemodel"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/types"
)

type Color int32

type Celsius struct{ V float64 }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		src  typemodel.Source
		to   reflect.Type
		want typemodel.Quality
	}{
		{"identity", typemodel.Source{Type: typemodel.Int32Type}, typemodel.Int32Type, typemodel.QualityExact},
		{"int to long", typemodel.Source{Type: typemodel.Int32Type}, typemodel.Int64Type, typemodel.QualityNatural - 2},
		{"int to double", typemodel.Source{Type: typemodel.Int32Type}, typemodel.Float64Type, typemodel.QualityNatural - 5},
		{"int to decimal", typemodel.Source{Type: typemodel.Int32Type}, typemodel.DecimalType, typemodel.QualityNatural - 6},
		{"int to nullable int", typemodel.Source{Type: typemodel.Int32Type}, reflect.TypeFor[*int32](), typemodel.QualityNatural - 1},
		{"null to nullable", typemodel.Source{IsConstant: true}, reflect.TypeFor[*int32](), typemodel.QualityNatural},
		{"null to string", typemodel.Source{IsConstant: true}, typemodel.StringType, typemodel.QualityIncompatible},
		{"null to int", typemodel.Source{IsConstant: true}, typemodel.Int32Type, typemodel.QualityIncompatible},
		{"string to object", typemodel.Source{Type: typemodel.StringType}, typemodel.AnyType, typemodel.QualityNatural - 20},
		{"long to int", typemodel.Source{Type: typemodel.Int64Type}, typemodel.Int32Type, typemodel.QualityIncompatible},
		{"fitting constant", typemodel.Source{Type: typemodel.Int32Type, IsConstant: true, Value: int32(200)}, typemodel.Uint8Type, typemodel.QualityConstant},
		{"large constant", typemodel.Source{Type: typemodel.Int32Type, IsConstant: true, Value: int32(300)}, typemodel.Uint8Type, typemodel.QualityIncompatible},
		{"double to decimal", typemodel.Source{Type: typemodel.Float64Type}, typemodel.DecimalType, typemodel.QualityIncompatible},
		{"enum to int", typemodel.Source{Type: reflect.TypeFor[Color]()}, typemodel.Int32Type, typemodel.QualityIncompatible},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, typemodel.Classify(tt.src, tt.to))
		})
	}
}

func TestClassifyPrefersNarrowerWidening(t *testing.T) {
	src := typemodel.Source{Type: typemodel.Int16Type}
	toInt := typemodel.Classify(src, typemodel.Int32Type)
	toLong := typemodel.Classify(src, typemodel.Int64Type)
	toDouble := typemodel.Classify(src, typemodel.Float64Type)
	assert.Greater(t, toInt, toLong)
	assert.Greater(t, toLong, toDouble)
	assert.Greater(t, toDouble, typemodel.QualityUserImplicit)
}

func TestQualityString(t *testing.T) {
	assert.Equal(t, "exact", typemodel.QualityExact.String())
	assert.Equal(t, "natural", (typemodel.QualityNatural - 3).String())
	assert.Equal(t, "user-implicit", typemodel.QualityUserImplicit.String())
	assert.Equal(t, "constant", typemodel.QualityConstant.String())
	assert.Equal(t, "incompatible", typemodel.QualityIncompatible.String())
}

func TestConstantFits(t *testing.T) {
	assert.True(t, typemodel.ConstantFits(int32(200), typemodel.Uint8Type))
	assert.False(t, typemodel.ConstantFits(int32(300), typemodel.Uint8Type))
	assert.False(t, typemodel.ConstantFits(int64(-1), typemodel.Uint32Type))
	assert.False(t, typemodel.ConstantFits(uint64(math.MaxUint64), typemodel.Int64Type))
	assert.True(t, typemodel.ConstantFits(int32(7), reflect.TypeFor[*int16]()))
	assert.False(t, typemodel.ConstantFits(1.5, typemodel.Int32Type))
	assert.False(t, typemodel.ConstantFits(int32(1), reflect.TypeFor[Color]()))
}

func TestCanConvertExplicit(t *testing.T) {
	assert.True(t, typemodel.CanConvertExplicit(typemodel.Float64Type, typemodel.Int32Type))
	assert.True(t, typemodel.CanConvertExplicit(typemodel.DecimalType, typemodel.Uint8Type))
	assert.True(t, typemodel.CanConvertExplicit(typemodel.AnyType, typemodel.StringType))
	assert.True(t, typemodel.CanConvertExplicit(reflect.TypeFor[*int32](), typemodel.Int64Type))
	assert.True(t, typemodel.CanConvertExplicit(nil, reflect.TypeFor[*int32]()))
	assert.False(t, typemodel.CanConvertExplicit(nil, typemodel.Int32Type))
	assert.False(t, typemodel.CanConvertExplicit(typemodel.StringType, typemodel.Int32Type))
}

func TestConvert(t *testing.T) {
	five := int32(5)
	tests := []struct {
		name    string
		value   any
		to      reflect.Type
		checked bool
		want    any
	}{
		{"widen", int32(5), typemodel.Int64Type, false, int64(5)},
		{"wrap unchecked", int64(300), typemodel.Int8Type, false, int8(44)},
		{"truncate float", 3.9, typemodel.Int32Type, false, int32(3)},
		{"truncate negative float", -3.9, typemodel.Int32Type, true, int32(-3)},
		{"decimal to int", decimal.RequireFromString("2.5"), typemodel.Int32Type, false, int32(2)},
		{"unwrap nullable", &five, typemodel.Int64Type, false, int64(5)},
		{"null to object", nil, typemodel.AnyType, false, nil},
		{"string to object", "s", typemodel.AnyType, false, "s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := typemodel.Convert(tt.value, tt.to, tt.checked)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	got, err := typemodel.Convert(int32(5), reflect.TypeFor[*int64](), false)
	require.NoError(t, err)
	require.IsType(t, (*int64)(nil), got)
	assert.Equal(t, int64(5), *got.(*int64))

	got, err = typemodel.Convert(int32(5), typemodel.DecimalType, false)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(5).Equal(got.(decimal.Decimal)))
}

func TestConvertErrors(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		to      reflect.Type
		checked bool
		code    types.ErrorCode
	}{
		{"checked narrowing", int64(300), typemodel.Int8Type, true, types.ErrOverflow},
		{"checked negative to unsigned", int32(-1), typemodel.Uint32Type, true, types.ErrOverflow},
		{"NaN to int", math.NaN(), typemodel.Int32Type, true, types.ErrOverflow},
		{"infinity to decimal", math.Inf(1), typemodel.DecimalType, false, types.ErrOverflow},
		{"decimal out of range", decimal.RequireFromString("1e30"), typemodel.Int64Type, false, types.ErrOverflow},
		{"null to int", nil, typemodel.Int32Type, false, types.ErrNullReference},
		{"string to int", "1", typemodel.Int32Type, false, types.ErrInvalidCast},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := typemodel.Convert(tt.value, tt.to, tt.checked)
			require.Error(t, err)
			assert.True(t, types.HasCode(err, tt.code), "got %v", err)
			assert.True(t, types.IsKind(err, types.RuntimeError), "got %v", err)
		})
	}
}

func TestZeroAndAssert(t *testing.T) {
	assert.Equal(t, int32(0), typemodel.Zero(typemodel.Int32Type))
	assert.Equal(t, "", typemodel.Zero(typemodel.StringType))
	assert.Nil(t, typemodel.Zero(reflect.TypeFor[*int32]()))
	assert.Nil(t, typemodel.Zero(nil))

	v, ok := typemodel.Assert(int32(1), typemodel.Int32Type)
	assert.True(t, ok)
	assert.Equal(t, int32(1), v)

	_, ok = typemodel.Assert(int32(1), typemodel.Int64Type)
	assert.False(t, ok)

	_, ok = typemodel.Assert("s", typemodel.AnyType)
	assert.True(t, ok)

	v, ok = typemodel.Assert(int32(3), reflect.TypeFor[*int32]())
	require.True(t, ok)
	assert.Equal(t, int32(3), *v.(*int32))

	_, ok = typemodel.Assert(nil, typemodel.AnyType)
	assert.False(t, ok)
}

// TestConstantFitsAgreesWithCheckedConvert checks that a constant fits a
// type exactly when a checked conversion to it succeeds.
func TestConstantFitsAgreesWithCheckedConvert(t *testing.T) {
	targets := []reflect.Type{
		typemodel.Int8Type, typemodel.Uint8Type, typemodel.Int16Type, typemodel.Uint16Type,
		typemodel.Int32Type, typemodel.Uint32Type, typemodel.Int64Type, typemodel.Uint64Type,
	}
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.Int64().Draw(t, "v")
		to := rapid.SampledFrom(targets).Draw(t, "to")
		_, err := typemodel.Convert(v, to, true)
		if fits := typemodel.ConstantFits(v, to); fits != (err == nil) {
			t.Fatalf("ConstantFits(%d, %s) = %v, checked convert error %v", v, to, fits, err)
		}
	})
}

func TestConvertRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.Int32().Draw(t, "v")
		wide, err := typemodel.Convert(v, typemodel.Int64Type, true)
		if err != nil {
			t.Fatal(err)
		}
		back, err := typemodel.Convert(wide, typemodel.Int32Type, true)
		if err != nil {
			t.Fatal(err)
		}
		if back != v {
			t.Fatalf("round trip of %d gave %v", v, back)
		}
	})
}
