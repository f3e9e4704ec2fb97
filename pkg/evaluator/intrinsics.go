package evaluator

import (
	"math"
	"reflect"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/constraints"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/binder"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/types"
)

// binaryFunc applies a built-in operator to two non-null operands of the
// same predeclared type.
type binaryFunc func(l, r any, checked bool) (any, error)

type unaryFunc func(v any, checked bool) (any, error)

type intrinsicKey struct {
	op   binder.BinaryOp
	kind reflect.Kind
}

type unaryKey struct {
	op   binder.UnaryOp
	kind reflect.Kind
}

var (
	binaryIntrinsics = map[intrinsicKey]binaryFunc{}
	unaryIntrinsics  = map[unaryKey]unaryFunc{}
)

func init() {
	registerSigned[int8](reflect.Int8)
	registerSigned[int16](reflect.Int16)
	registerSigned[int32](reflect.Int32)
	registerSigned[int64](reflect.Int64)
	registerSigned[int](reflect.Int)
	registerUnsigned[uint8](reflect.Uint8)
	registerUnsigned[uint16](reflect.Uint16)
	registerUnsigned[uint32](reflect.Uint32)
	registerUnsigned[uint64](reflect.Uint64)
	registerUnsigned[uint](reflect.Uint)
	registerFloat[float32](reflect.Float32)
	registerFloat[float64](reflect.Float64)
	registerBool()
	registerString()
}

func overflowError(op string, t reflect.Type) error {
	return runtimeError(types.ErrOverflow, types.Position{}, "arithmetic operation %s overflowed %s", op, t)
}

func divideByZero() error {
	return runtimeError(types.ErrDivideByZero, types.Position{}, "attempted to divide by zero")
}

func binaryOf[T any](k reflect.Kind, op binder.BinaryOp, f func(a, b T, checked bool) (any, error)) {
	binaryIntrinsics[intrinsicKey{op, k}] = func(l, r any, checked bool) (any, error) {
		return f(l.(T), r.(T), checked)
	}
}

func unaryOf[T any](k reflect.Kind, op binder.UnaryOp, f func(a T, checked bool) (any, error)) {
	unaryIntrinsics[unaryKey{op, k}] = func(v any, checked bool) (any, error) {
		return f(v.(T), checked)
	}
}

func registerOrdered[T constraints.Integer | constraints.Float](k reflect.Kind) {
	binaryOf(k, binder.OpLessThan, func(a, b T, _ bool) (any, error) { return a < b, nil })
	binaryOf(k, binder.OpLessThanOrEqual, func(a, b T, _ bool) (any, error) { return a <= b, nil })
	binaryOf(k, binder.OpGreaterThan, func(a, b T, _ bool) (any, error) { return a > b, nil })
	binaryOf(k, binder.OpGreaterThanOrEqual, func(a, b T, _ bool) (any, error) { return a >= b, nil })
	binaryOf(k, binder.OpEqual, func(a, b T, _ bool) (any, error) { return a == b, nil })
	binaryOf(k, binder.OpNotEqual, func(a, b T, _ bool) (any, error) { return a != b, nil })
	unaryOf(k, binder.OpUnaryPlus, func(a T, _ bool) (any, error) { return a, nil })
}

// registerBits adds the bitwise operators and the shifts. Shift counts
// are int32 and masked to the operand width.
func registerBits[T constraints.Integer](k reflect.Kind) {
	t := reflect.TypeFor[T]()
	mask := int32(t.Bits() - 1)
	binaryOf(k, binder.OpAnd, func(a, b T, _ bool) (any, error) { return a & b, nil })
	binaryOf(k, binder.OpOr, func(a, b T, _ bool) (any, error) { return a | b, nil })
	binaryOf(k, binder.OpExclusiveOr, func(a, b T, _ bool) (any, error) { return a ^ b, nil })
	binaryIntrinsics[intrinsicKey{binder.OpLeftShift, k}] = func(l, r any, _ bool) (any, error) {
		return l.(T) << (r.(int32) & mask), nil
	}
	binaryIntrinsics[intrinsicKey{binder.OpRightShift, k}] = func(l, r any, _ bool) (any, error) {
		return l.(T) >> (r.(int32) & mask), nil
	}
	unaryOf(k, binder.OpComplement, func(a T, _ bool) (any, error) { return ^a, nil })
}

func registerSigned[T constraints.Signed](k reflect.Kind) {
	t := reflect.TypeFor[T]()
	registerOrdered[T](k)
	registerBits[T](k)
	binaryOf(k, binder.OpAdd, func(a, b T, checked bool) (any, error) {
		s := a + b
		if checked && ((a > 0 && b > 0 && s < 0) || (a < 0 && b < 0 && s >= 0)) {
			return nil, overflowError("+", t)
		}
		return s, nil
	})
	binaryOf(k, binder.OpSubtract, func(a, b T, checked bool) (any, error) {
		d := a - b
		if checked && ((b > 0 && d > a) || (b < 0 && d < a)) {
			return nil, overflowError("-", t)
		}
		return d, nil
	})
	binaryOf(k, binder.OpMultiply, func(a, b T, checked bool) (any, error) {
		p := a * b
		if checked && a != 0 && b != 0 &&
			((a == -1 && b < 0 && p < 0) || (b == -1 && a < 0 && p < 0) || p/b != a) {
			return nil, overflowError("*", t)
		}
		return p, nil
	})
	binaryOf(k, binder.OpDivide, func(a, b T, _ bool) (any, error) {
		if b == 0 {
			return nil, divideByZero()
		}
		if b == -1 && a < 0 && a == -a {
			return nil, overflowError("/", t)
		}
		return a / b, nil
	})
	binaryOf(k, binder.OpModulo, func(a, b T, _ bool) (any, error) {
		if b == 0 {
			return nil, divideByZero()
		}
		if b == -1 {
			return T(0), nil
		}
		return a % b, nil
	})
	unaryOf(k, binder.OpNegate, func(a T, checked bool) (any, error) {
		if checked && a < 0 && a == -a {
			return nil, overflowError("-", t)
		}
		return -a, nil
	})
}

func registerUnsigned[T constraints.Unsigned](k reflect.Kind) {
	t := reflect.TypeFor[T]()
	registerOrdered[T](k)
	registerBits[T](k)
	binaryOf(k, binder.OpAdd, func(a, b T, checked bool) (any, error) {
		s := a + b
		if checked && s < a {
			return nil, overflowError("+", t)
		}
		return s, nil
	})
	binaryOf(k, binder.OpSubtract, func(a, b T, checked bool) (any, error) {
		if checked && b > a {
			return nil, overflowError("-", t)
		}
		return a - b, nil
	})
	binaryOf(k, binder.OpMultiply, func(a, b T, checked bool) (any, error) {
		p := a * b
		if checked && a != 0 && p/a != b {
			return nil, overflowError("*", t)
		}
		return p, nil
	})
	binaryOf(k, binder.OpDivide, func(a, b T, _ bool) (any, error) {
		if b == 0 {
			return nil, divideByZero()
		}
		return a / b, nil
	})
	binaryOf(k, binder.OpModulo, func(a, b T, _ bool) (any, error) {
		if b == 0 {
			return nil, divideByZero()
		}
		return a % b, nil
	})
}

func registerFloat[T constraints.Float](k reflect.Kind) {
	registerOrdered[T](k)
	binaryOf(k, binder.OpAdd, func(a, b T, _ bool) (any, error) { return a + b, nil })
	binaryOf(k, binder.OpSubtract, func(a, b T, _ bool) (any, error) { return a - b, nil })
	binaryOf(k, binder.OpMultiply, func(a, b T, _ bool) (any, error) { return a * b, nil })
	binaryOf(k, binder.OpDivide, func(a, b T, _ bool) (any, error) { return a / b, nil })
	binaryOf(k, binder.OpModulo, func(a, b T, _ bool) (any, error) {
		return T(math.Mod(float64(a), float64(b))), nil
	})
	unaryOf(k, binder.OpNegate, func(a T, _ bool) (any, error) { return -a, nil })
}

func registerBool() {
	k := reflect.Bool
	binaryOf(k, binder.OpAnd, func(a, b bool, _ bool) (any, error) { return a && b, nil })
	binaryOf(k, binder.OpOr, func(a, b bool, _ bool) (any, error) { return a || b, nil })
	binaryOf(k, binder.OpExclusiveOr, func(a, b bool, _ bool) (any, error) { return a != b, nil })
	binaryOf(k, binder.OpEqual, func(a, b bool, _ bool) (any, error) { return a == b, nil })
	binaryOf(k, binder.OpNotEqual, func(a, b bool, _ bool) (any, error) { return a != b, nil })
	unaryOf(k, binder.OpNot, func(a bool, _ bool) (any, error) { return !a, nil })
}

func registerString() {
	k := reflect.String
	binaryOf(k, binder.OpEqual, func(a, b string, _ bool) (any, error) { return a == b, nil })
	binaryOf(k, binder.OpNotEqual, func(a, b string, _ bool) (any, error) { return a != b, nil })
}

// decimalBinary applies an operator to decimal operands. Division by zero
// fails whether or not the context is checked.
func decimalBinary(op binder.BinaryOp, a, b decimal.Decimal) (any, error) {
	switch op {
	case binder.OpAdd:
		return a.Add(b), nil
	case binder.OpSubtract:
		return a.Sub(b), nil
	case binder.OpMultiply:
		return a.Mul(b), nil
	case binder.OpDivide:
		if b.IsZero() {
			return nil, divideByZero()
		}
		return a.Div(b), nil
	case binder.OpModulo:
		if b.IsZero() {
			return nil, divideByZero()
		}
		return a.Mod(b), nil
	case binder.OpLessThan:
		return a.LessThan(b), nil
	case binder.OpLessThanOrEqual:
		return a.LessThanOrEqual(b), nil
	case binder.OpGreaterThan:
		return a.GreaterThan(b), nil
	case binder.OpGreaterThanOrEqual:
		return a.GreaterThanOrEqual(b), nil
	case binder.OpEqual:
		return a.Equal(b), nil
	case binder.OpNotEqual:
		return !a.Equal(b), nil
	}
	return nil, runtimeError(types.ErrInvalidCast, types.Position{}, "operator %s is not defined for decimal", op)
}

func decimalUnary(op binder.UnaryOp, a decimal.Decimal) (any, error) {
	switch op {
	case binder.OpNegate:
		return a.Neg(), nil
	case binder.OpUnaryPlus:
		return a, nil
	}
	return nil, runtimeError(types.ErrInvalidCast, types.Position{}, "operator %s is not defined for decimal", op)
}
