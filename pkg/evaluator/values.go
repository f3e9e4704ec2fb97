package evaluator

import (
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/typemodel"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/types"
)

func runtimeError(code types.ErrorCode, pos types.Position, format string, args ...any) *types.Error {
	return types.Errorf(types.RuntimeError, code, pos, format, args...)
}

func nullReference(pos types.Position, what string) *types.Error {
	return runtimeError(types.ErrNullReference, pos, "%s on a null value", what)
}

// located attaches pos to a runtime error that has none.
func located(err error, pos types.Position) error {
	if te, ok := err.(*types.Error); ok {
		te.WithPosition(pos)
		return te
	}
	return err
}

// fromValue turns a reflect result into a run-time value. Nil pointers,
// maps, slices, funcs and interfaces all become the untyped nil.
func fromValue(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		if v.IsNil() {
			return nil
		}
	}
	if v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	return v.Interface()
}

// toValue turns a run-time value into an argument of type t.
func toValue(v any, t reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv
	}
	if rv.Type().ConvertibleTo(t) {
		return rv.Convert(t)
	}
	return rv
}

// receiverFor adapts a receiver to the first parameter of a method
// expression, taking the address of value receivers when the method set
// needs a pointer.
func receiverFor(fn reflect.Value, v any, pos types.Position) (reflect.Value, error) {
	if v == nil {
		return reflect.Value{}, nullReference(pos, "member access")
	}
	rv := reflect.ValueOf(v)
	want := fn.Type().In(0)
	switch {
	case rv.Type().AssignableTo(want):
		return rv, nil
	case want.Kind() == reflect.Pointer && rv.Type() == want.Elem():
		p := reflect.New(rv.Type())
		p.Elem().Set(rv)
		return p, nil
	case rv.Kind() == reflect.Pointer && rv.Type().Elem() == want:
		return rv.Elem(), nil
	}
	return toValue(v, want), nil
}

// addressable returns a receiver for a method on a value that lives in a
// struct field or a temporary, so that pointer methods mutate it in place.
func addressable(fn reflect.Value, rv reflect.Value) reflect.Value {
	want := fn.Type().In(0)
	if rv.Type().AssignableTo(want) {
		return rv
	}
	if want.Kind() == reflect.Pointer && rv.CanAddr() && rv.Type() == want.Elem() {
		return rv.Addr()
	}
	return rv
}

// invoke calls a host func and collects its value and error results.
func invoke(fn reflect.Value, args []reflect.Value, spread, returnsError, hasResult bool, pos types.Position) (any, error) {
	if fn.Kind() == reflect.Func && fn.IsNil() {
		return nil, nullReference(pos, "invocation")
	}
	var out []reflect.Value
	if spread {
		out = fn.CallSlice(args)
	} else {
		out = fn.Call(args)
	}
	if returnsError {
		if errV := out[len(out)-1]; !errV.IsNil() {
			err := errV.Interface().(error)
			if te, ok := err.(*types.Error); ok {
				return nil, te.WithPosition(pos)
			}
			return nil, runtimeError(types.ErrHostError, pos, "%v", err).WithCause(err)
		}
	}
	if !hasResult || len(out) == 0 {
		return nil, nil
	}
	return fromValue(out[0]), nil
}

// deref unwraps a non-nil nullable value.
func deref(v any) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() && typemodel.IsNullable(rv.Type()) {
		return rv.Elem().Interface()
	}
	return v
}

// wrap boxes v into the nullable type t.
func wrap(v any, t reflect.Type) any {
	if v == nil || !typemodel.IsNullable(t) {
		return v
	}
	p := reflect.New(t.Elem())
	p.Elem().Set(toValue(v, t.Elem()))
	return p.Interface()
}

// basic converts a value of a named numeric type, such as an enum, to its
// predeclared type.
func basic(v any) any {
	rv := reflect.ValueOf(v)
	if b, ok := typemodel.BasicType(rv.Type()); ok && b != rv.Type() {
		return rv.Convert(b).Interface()
	}
	return v
}

// retype converts a result back to the named type t.
func retype(v any, t reflect.Type) any {
	if v == nil || t == nil {
		return v
	}
	rv := reflect.ValueOf(v)
	if rv.Type() == t || !rv.Type().ConvertibleTo(t) {
		return v
	}
	return rv.Convert(t).Interface()
}

// ToString renders a value the way string concatenation and ToString do:
// null is empty, bools are True and False, floats use the shortest
// round-trip form with an exponent for very large or small magnitudes.
func ToString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "True"
		}
		return "False"
	case float64:
		return formatFloat(x, 64)
	case float32:
		return formatFloat(float64(x), 32)
	case decimal.Decimal:
		return x.String()
	case fmt.Stringer:
		return x.String()
	case error:
		return x.Error()
	}
	rv := reflect.ValueOf(v)
	if typemodel.IsNullable(rv.Type()) {
		if rv.IsNil() {
			return ""
		}
		return ToString(rv.Elem().Interface())
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	if a := math.Abs(f); a >= 1e15 || (a != 0 && a < 1e-5) {
		return strconv.FormatFloat(f, 'E', -1, bits)
	}
	return strconv.FormatFloat(f, 'f', -1, bits)
}

// equals compares two non-numeric values: comparable values by value,
// slices and maps by identity.
func equals(l, r any) bool {
	if l == nil || r == nil {
		return l == nil && r == nil
	}
	lv, rv := reflect.ValueOf(l), reflect.ValueOf(r)
	if lv.Type() != rv.Type() {
		return false
	}
	if lv.Comparable() {
		return lv.Equal(rv)
	}
	switch lv.Kind() {
	case reflect.Slice:
		return lv.Pointer() == rv.Pointer() && lv.Len() == rv.Len()
	case reflect.Map:
		return lv.Pointer() == rv.Pointer()
	}
	return false
}
