package typemodel

import (
	"math"
	"reflect"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/types"
)

var (
	decimalMinInt64  = decimal.NewFromInt(math.MinInt64)
	decimalMaxInt64  = decimal.NewFromInt(math.MaxInt64)
	decimalMaxUint64 = decimal.RequireFromString(strconv.FormatUint(math.MaxUint64, 10))
)

func overflow(from reflect.Type, to reflect.Type, v any) error {
	return types.Errorf(types.RuntimeError, types.ErrOverflow, types.Position{},
		"value %v of type %s is out of range for %s", v, from, to)
}

func invalidCast(from, to reflect.Type) error {
	return types.Errorf(types.RuntimeError, types.ErrInvalidCast, types.Position{},
		"cannot convert %s to %s", from, to)
}

// Zero returns the zero value of t as an interface value; nil for types
// that can hold nil.
func Zero(t reflect.Type) any {
	if t == nil || CanBeNil(t) {
		return nil
	}
	return reflect.Zero(t).Interface()
}

// Assert checks the dynamic type of v against t, the way "is" and "as"
// do. A nullable target accepts its element type and wraps it.
func Assert(v any, t reflect.Type) (any, bool) {
	if v == nil {
		return nil, false
	}
	dt := reflect.TypeOf(v)
	switch {
	case dt == t:
		return v, true
	case t.Kind() == reflect.Interface:
		return v, dt.Implements(t)
	case IsNullable(t) && dt == t.Elem():
		p := reflect.New(dt)
		p.Elem().Set(reflect.ValueOf(v))
		return p.Interface(), true
	}
	return nil, false
}

// Convert performs a built-in value conversion of v to t. With checked set,
// integral results that do not fit raise an overflow error instead of
// wrapping. Conversions from decimal and from NaN or infinite floats to
// decimal are always checked.
func Convert(v any, t reflect.Type, checked bool) (any, error) {
	if v == nil {
		if CanBeNil(t) {
			return nil, nil
		}
		return nil, types.Errorf(types.RuntimeError, types.ErrNullReference, types.Position{},
			"null cannot be converted to non-nullable %s", t)
	}
	rv := reflect.ValueOf(v)
	from := rv.Type()
	if from == t {
		return v, nil
	}

	// Unwrap a nullable source.
	if IsNullable(from) {
		if rv.IsNil() {
			return Convert(nil, t, checked)
		}
		if t == from.Elem() {
			return rv.Elem().Interface(), nil
		}
		return Convert(rv.Elem().Interface(), t, checked)
	}

	// Wrap into a nullable or pointer-to-value target.
	if t.Kind() == reflect.Pointer && from != t && IsValueType(t.Elem()) {
		inner, err := Convert(v, t.Elem(), checked)
		if err != nil {
			return nil, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(reflect.ValueOf(inner))
		return p.Interface(), nil
	}

	if t.Kind() == reflect.Interface {
		if from.Implements(t) {
			return v, nil
		}
		return nil, invalidCast(from, t)
	}

	if IsNumeric(from) && IsNumeric(t) {
		out, err := convertNumeric(rv, t, checked)
		if err != nil {
			return nil, err
		}
		return out.Interface(), nil
	}

	if from.AssignableTo(t) {
		out := reflect.New(t).Elem()
		out.Set(rv)
		return out.Interface(), nil
	}
	if from.ConvertibleTo(t) && from.Kind() == t.Kind() {
		return rv.Convert(t).Interface(), nil
	}
	return nil, invalidCast(from, t)
}

func convertNumeric(v reflect.Value, t reflect.Type, checked bool) (reflect.Value, error) {
	from := v.Type()
	switch {
	case IsDecimal(from):
		return fromDecimal(v.Interface().(decimal.Decimal), t, checked)
	case IsDecimal(t):
		d, err := toDecimal(v)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(d), nil
	case IsFloat(from) && IsInteger(t):
		f := v.Float()
		if checked && !floatFits(f, t) {
			return reflect.Value{}, overflow(from, t, f)
		}
		if IsUnsigned(t) && f >= 0 {
			return reflect.ValueOf(uint64(f)).Convert(t), nil
		}
		return reflect.ValueOf(int64(f)).Convert(t), nil
	case IsInteger(from) && IsInteger(t) && checked:
		if !integerFits(v, t) {
			return reflect.Value{}, overflow(from, t, v.Interface())
		}
	}
	return v.Convert(t), nil
}

func integerFits(v reflect.Value, t reflect.Type) bool {
	z := reflect.Zero(t)
	if IsUnsigned(v.Type()) {
		u := v.Uint()
		if IsUnsigned(t) {
			return !z.OverflowUint(u)
		}
		return u <= math.MaxInt64 && !z.OverflowInt(int64(u))
	}
	i := v.Int()
	if IsUnsigned(t) {
		return i >= 0 && !z.OverflowUint(uint64(i))
	}
	return !z.OverflowInt(i)
}

func floatFits(f float64, t reflect.Type) bool {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return false
	}
	tr := math.Trunc(f)
	z := reflect.Zero(t)
	if IsUnsigned(t) {
		return tr >= 0 && tr < 1<<64 && !z.OverflowUint(uint64(tr))
	}
	return tr >= -(1<<63) && tr < 1<<63 && !z.OverflowInt(int64(tr))
}

func toDecimal(v reflect.Value) (decimal.Decimal, error) {
	t := v.Type()
	switch {
	case IsFloat(t):
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Decimal{}, overflow(t, DecimalType, f)
		}
		if t.Kind() == reflect.Float32 {
			return decimal.NewFromFloat32(float32(f)), nil
		}
		return decimal.NewFromFloat(f), nil
	case IsUnsigned(t):
		return decimal.RequireFromString(strconv.FormatUint(v.Uint(), 10)), nil
	default:
		return decimal.NewFromInt(v.Int()), nil
	}
}

func fromDecimal(d decimal.Decimal, t reflect.Type, checked bool) (reflect.Value, error) {
	switch {
	case IsFloat(t):
		return reflect.ValueOf(d.InexactFloat64()).Convert(t), nil
	case IsUnsigned(t):
		tr := d.Truncate(0)
		if tr.Sign() < 0 || tr.GreaterThan(decimalMaxUint64) {
			return reflect.Value{}, overflow(DecimalType, t, d)
		}
		u := tr.BigInt().Uint64()
		if reflect.Zero(t).OverflowUint(u) {
			return reflect.Value{}, overflow(DecimalType, t, d)
		}
		return reflect.ValueOf(u).Convert(t), nil
	case IsInteger(t):
		tr := d.Truncate(0)
		if tr.LessThan(decimalMinInt64) || tr.GreaterThan(decimalMaxInt64) {
			return reflect.Value{}, overflow(DecimalType, t, d)
		}
		i := tr.IntPart()
		if reflect.Zero(t).OverflowInt(i) {
			return reflect.Value{}, overflow(DecimalType, t, d)
		}
		return reflect.ValueOf(i).Convert(t), nil
	}
	return reflect.Value{}, invalidCast(DecimalType, t)
}
