package binder

import (
	"reflect"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/typemodel"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/types"
)

// numericBase strips the nullable wrapper and demotes enums and named
// numeric types to their predeclared type. The null literal is numeric
// of unknown base and nullable.
func numericBase(e Expr) (base reflect.Type, nullable, ok bool) {
	t := e.Type()
	if t == nil {
		return nil, true, isNullLiteral(e)
	}
	nullable = typemodel.IsNullable(t)
	t = typemodel.NonNullable(t)
	if !typemodel.IsNumeric(t) {
		return nil, false, false
	}
	if !typemodel.IsDecimal(t) {
		t, _ = typemodel.BasicType(t)
	}
	return t, nullable, true
}

// widenSmall widens the integer types narrower than int32 to int32.
func widenSmall(t reflect.Type) reflect.Type {
	if typemodel.IsInteger(t) && typemodel.NumericRank(t) < typemodel.NumericRank(typemodel.Int32Type) {
		return typemodel.Int32Type
	}
	return t
}

func isUint64(t reflect.Type) bool {
	return t == typemodel.Uint64Type || t == typemodel.UintType
}

func isInt64(t reflect.Type) bool {
	return t == typemodel.Int64Type || t == typemodel.IntType
}

// adoptConstant gives an integer constant the type of the other operand
// when its value fits and the conversion is an implicit constant one: an
// int32 literal to any integer type at least as wide, or a non-negative
// int64 literal to uint64. Suffixed literals are never narrowed.
func adoptConstant(e Expr, base, other reflect.Type) reflect.Type {
	k, ok := e.(*ConstantExpr)
	if !ok || base == nil || other == nil || base == other || !typemodel.IsInteger(other) {
		return base
	}
	switch {
	case base == typemodel.Int32Type:
	case isInt64(base) && isUint64(other):
	default:
		return base
	}
	if typemodel.ConstantFits(k.Value, other) {
		return other
	}
	return base
}

// promote computes the operand type of a numeric binary operation. It
// returns nil without an error when the operands are not both numeric, or
// when both are the null literal under == or !=.
//
// Enums demote to their integer type, nullable operands lift the result,
// small integers widen to int32, and decimal never mixes with floating
// point. Otherwise the wider of decimal, float64, float32, uint64, int64,
// uint32 and int32 wins, with int32 and uint32 meeting at int64 and uint64
// only accepting unsigned or constant non-negative partners.
func promote(op BinaryOp, l, r Expr, pos types.Position) (reflect.Type, error) {
	lb, ln, lok := numericBase(l)
	rb, rn, rok := numericBase(r)
	if !lok || !rok {
		return nil, nil
	}
	if lb == nil && rb == nil {
		if op == OpEqual || op == OpNotEqual {
			return nil, nil
		}
		return nil, bindError(types.ErrInvalidOperator, pos, "operator %s cannot be applied to two null operands", op)
	}
	if lb == nil {
		lb = rb
	}
	if rb == nil {
		rb = lb
	}
	lb, rb = widenSmall(lb), widenSmall(rb)
	la, ra := adoptConstant(l, lb, rb), adoptConstant(r, rb, lb)
	lb, rb = la, ra

	var t reflect.Type
	switch {
	case typemodel.IsDecimal(lb) || typemodel.IsDecimal(rb):
		if typemodel.IsFloat(lb) || typemodel.IsFloat(rb) {
			return nil, bindError(types.ErrInvalidOperator, pos,
				"operator %s cannot mix decimal and floating-point operands (%s and %s)", op, typeName(l.Type()), typeName(r.Type()))
		}
		t = typemodel.DecimalType
	case lb == typemodel.Float64Type || rb == typemodel.Float64Type:
		t = typemodel.Float64Type
	case lb == typemodel.Float32Type || rb == typemodel.Float32Type:
		t = typemodel.Float32Type
	case isUint64(lb) || isUint64(rb):
		if !typemodel.IsUnsigned(lb) || !typemodel.IsUnsigned(rb) {
			return nil, bindError(types.ErrInvalidOperator, pos,
				"operator %s is ambiguous on operands of type %s and %s", op, typeName(l.Type()), typeName(r.Type()))
		}
		t = typemodel.Uint64Type
		if lb == typemodel.UintType && rb == typemodel.UintType {
			t = typemodel.UintType
		}
	case isInt64(lb) || isInt64(rb):
		t = typemodel.Int64Type
		if lb == typemodel.IntType && rb == typemodel.IntType {
			t = typemodel.IntType
		}
	case lb == typemodel.Uint32Type && rb == typemodel.Uint32Type:
		t = typemodel.Uint32Type
	case lb == typemodel.Uint32Type || rb == typemodel.Uint32Type:
		t = typemodel.Int64Type
	default:
		t = typemodel.Int32Type
	}
	if ln || rn {
		t = typemodel.Nullable(t)
	}
	return t, nil
}

// promoteUnary computes the operand type of a numeric unary operation.
func promoteUnary(op UnaryOp, e Expr, pos types.Position) (reflect.Type, error) {
	base, nullable, ok := numericBase(e)
	if !ok || base == nil {
		return nil, nil
	}
	base = widenSmall(base)
	if op == OpNegate {
		switch {
		case base == typemodel.Uint32Type:
			base = typemodel.Int64Type
		case isUint64(base):
			return nil, bindError(types.ErrInvalidOperator, pos, "operator - cannot be applied to an operand of type %s", e.Type())
		}
	}
	if nullable {
		return typemodel.Nullable(base), nil
	}
	return base, nil
}
