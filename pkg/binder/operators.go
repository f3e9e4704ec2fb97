package binder

import (
	"reflect"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/syntax"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/typemodel"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/types"
)

var userBinaryFamilies = map[BinaryOp]typemodel.Operator{
	OpAdd:                typemodel.OpAddition,
	OpSubtract:           typemodel.OpSubtraction,
	OpMultiply:           typemodel.OpMultiply,
	OpDivide:             typemodel.OpDivision,
	OpModulo:             typemodel.OpModulus,
	OpAnd:                typemodel.OpBitwiseAnd,
	OpOr:                 typemodel.OpBitwiseOr,
	OpExclusiveOr:        typemodel.OpExclusiveOr,
	OpLeftShift:          typemodel.OpLeftShift,
	OpRightShift:         typemodel.OpRightShift,
	OpEqual:              typemodel.OpEquality,
	OpNotEqual:           typemodel.OpEquality,
	OpLessThan:           typemodel.OpComparison,
	OpLessThanOrEqual:    typemodel.OpComparison,
	OpGreaterThan:        typemodel.OpComparison,
	OpGreaterThanOrEqual: typemodel.OpComparison,
}

func (c *BindingContext) operands(n syntax.Node) (Expr, Expr, error) {
	ln, ok := n.Child(syntax.KeyLeft)
	if !ok {
		return nil, nil, bindError(types.ErrInvalidCanonicalNode, n.Position(), "%s node without a left operand", n.Kind())
	}
	rn, ok := n.Child(syntax.KeyRight)
	if !ok {
		return nil, nil, bindError(types.ErrInvalidCanonicalNode, n.Position(), "%s node without a right operand", n.Kind())
	}
	l, err := c.bind(ln)
	if err != nil {
		return nil, nil, err
	}
	r, err := c.bind(rn)
	if err != nil {
		return nil, nil, err
	}
	return l, r, nil
}

// operand converts e to the operand type t of an operation. Conversions
// the operation implies but that are not implicit, such as an enum to its
// integer type, are inserted as plain casts.
func (c *BindingContext) operand(e Expr, t reflect.Type) Expr {
	if e.Type() == t {
		return e
	}
	if isNullLiteral(e) {
		return constant(nil, t, e.Pos())
	}
	if q, m := c.quality(e, t); q != typemodel.QualityIncompatible {
		return applyConversion(e, t, m)
	}
	return &ConvertExpr{node: node{typ: t, pos: e.Pos()}, Operand: e}
}

func binary(op BinaryOp, t reflect.Type, l, r Expr, checked bool, pos types.Position) *BinaryExpr {
	return &BinaryExpr{node: node{typ: t, pos: pos}, Op: op, Left: l, Right: r, Checked: checked}
}

func invalidOperator(op BinaryOp, l, r Expr, pos types.Position) error {
	return bindError(types.ErrInvalidOperator, pos,
		"operator %s cannot be applied to operands of type %s and %s", op, typeName(l.Type()), typeName(r.Type()))
}

func isBool(t reflect.Type) bool {
	return t != nil && typemodel.NonNullable(t).Kind() == reflect.Bool
}

func isString(t reflect.Type) bool {
	return t != nil && t.Kind() == reflect.String
}

func (c *BindingContext) bindBinary(n syntax.Node, op BinaryOp, checked bool) (Expr, error) {
	l, r, err := c.operands(n)
	if err != nil {
		return nil, err
	}
	pos := n.Position()

	switch op {
	case OpAndAlso, OpOrElse:
		if l, err = c.convert(l, typemodel.BoolType); err != nil {
			return nil, err
		}
		if r, err = c.convert(r, typemodel.BoolType); err != nil {
			return nil, err
		}
		return binary(op, typemodel.BoolType, l, r, false, pos), nil
	case OpCoalesce:
		return c.bindCoalesce(l, r, pos)
	case OpAdd:
		if isString(l.Type()) || isString(r.Type()) {
			return binary(OpConcat, typemodel.StringType, l, r, false, pos), nil
		}
	case OpLeftShift, OpRightShift:
		if e, ok, err := c.bindShift(op, l, r, pos); ok || err != nil {
			return e, err
		}
	}

	if e, ok := c.bindLogical(op, l, r, pos); ok {
		return e, nil
	}

	t, err := promote(op, l, r, pos)
	if err != nil {
		return nil, err
	}
	if t != nil {
		return c.bindNumeric(op, t, l, r, checked, pos)
	}

	if e, err := c.userBinary(op, l, r, pos); e != nil || err != nil {
		return e, err
	}
	if op == OpEqual || op == OpNotEqual {
		return c.bindEquality(op, l, r, pos)
	}
	return nil, invalidOperator(op, l, r, pos)
}

func (c *BindingContext) bindNumeric(op BinaryOp, t reflect.Type, l, r Expr, checked bool, pos types.Position) (Expr, error) {
	base := typemodel.NonNullable(t)
	switch op {
	case OpAnd, OpOr, OpExclusiveOr:
		if !typemodel.IsInteger(base) {
			return nil, invalidOperator(op, l, r, pos)
		}
	}
	e := binary(op, t, c.operand(l, t), c.operand(r, t), checked && typemodel.IsInteger(base), pos)
	e.Lifted = typemodel.IsNullable(t)
	if op.IsComparison() {
		e.typ = typemodel.BoolType
	}
	return e, nil
}

// bindLogical handles the bitwise operators on bools, which are logical
// and three-valued when lifted, and on enums, which keep the enum type.
func (c *BindingContext) bindLogical(op BinaryOp, l, r Expr, pos types.Position) (Expr, bool) {
	if op != OpAnd && op != OpOr && op != OpExclusiveOr {
		return nil, false
	}
	lt, rt := l.Type(), r.Type()
	switch {
	case isBool(lt) && isBool(rt):
		t := typemodel.BoolType
		if typemodel.IsNullable(lt) || typemodel.IsNullable(rt) {
			t = typemodel.Nullable(t)
		}
		e := binary(op, t, c.operand(l, t), c.operand(r, t), false, pos)
		e.Lifted = t != typemodel.BoolType
		return e, true
	case lt != nil && rt != nil && typemodel.IsEnum(typemodel.NonNullable(lt)) && typemodel.NonNullable(lt) == typemodel.NonNullable(rt):
		t := lt
		if typemodel.IsNullable(rt) {
			t = rt
		}
		e := binary(op, t, c.operand(l, t), c.operand(r, t), false, pos)
		e.Lifted = typemodel.IsNullable(t)
		return e, true
	}
	return nil, false
}

// bindShift binds a shift of an integer by an int32 count. The count may
// not be wider than int32.
func (c *BindingContext) bindShift(op BinaryOp, l, r Expr, pos types.Position) (Expr, bool, error) {
	lb, ln, lok := numericBase(l)
	rb, rn, rok := numericBase(r)
	if !lok || !rok || lb == nil || !typemodel.IsInteger(lb) {
		return nil, false, nil
	}
	if rb != nil && !isShiftCount(r, rb) {
		return nil, true, bindError(types.ErrInvalidOperator, pos,
			"shift count of type %s must convert to int32", typeName(r.Type()))
	}
	t, count := widenSmall(lb), typemodel.Int32Type
	if ln || rn {
		t, count = typemodel.Nullable(t), typemodel.Nullable(count)
	}
	e := binary(op, t, c.operand(l, t), c.operand(r, count), false, pos)
	e.Lifted = ln || rn
	return e, true, nil
}

func isShiftCount(e Expr, base reflect.Type) bool {
	if typemodel.IsInteger(base) && typemodel.NumericRank(widenSmall(base)) <= typemodel.NumericRank(typemodel.Int32Type) {
		return true
	}
	k, ok := e.(*ConstantExpr)
	return ok && typemodel.ConstantFits(k.Value, typemodel.Int32Type)
}

// bindCoalesce binds a ?? b. A nullable left operand unwraps when the
// right operand fits its value type.
func (c *BindingContext) bindCoalesce(l, r Expr, pos types.Position) (Expr, error) {
	lt, rt := l.Type(), r.Type()
	if lt == nil {
		return r, nil
	}
	if !typemodel.CanBeNil(lt) {
		return nil, bindError(types.ErrInvalidOperator, pos, "left operand of ?? has non-nullable type %s", lt)
	}
	if typemodel.IsNullable(lt) {
		if q, m := c.quality(r, lt.Elem()); q != typemodel.QualityIncompatible && rt != lt {
			e := binary(OpCoalesce, lt.Elem(), l, applyConversion(r, lt.Elem(), m), false, pos)
			e.Lifted = true
			return e, nil
		}
	}
	if q, m := c.quality(r, lt); q != typemodel.QualityIncompatible {
		return binary(OpCoalesce, lt, l, c.operand(applyConversion(r, lt, m), lt), false, pos), nil
	}
	if rt != nil && typemodel.CanBeNil(rt) {
		if q, m := c.quality(l, rt); q != typemodel.QualityIncompatible {
			return binary(OpCoalesce, rt, applyConversion(l, rt, m), r, false, pos), nil
		}
	}
	return nil, bindError(types.ErrTypeMismatch, pos, "operands of ?? have incompatible types %s and %s", lt, typeName(rt))
}

// bindEquality binds == and != on non-numeric operands: references and
// nullables against null, values of one type, a nullable against its
// value type, and interfaces against their implementations.
func (c *BindingContext) bindEquality(op BinaryOp, l, r Expr, pos types.Position) (Expr, error) {
	lt, rt := l.Type(), r.Type()
	eq := func(l, r Expr, lifted bool) Expr {
		e := binary(op, typemodel.BoolType, l, r, false, pos)
		e.Lifted = lifted
		return e
	}
	switch {
	case lt == nil && rt == nil:
		return eq(l, r, false), nil
	case lt == nil:
		if !typemodel.CanBeNil(rt) {
			return nil, invalidOperator(op, l, r, pos)
		}
		return eq(constant(nil, rt, l.Pos()), r, typemodel.IsNullable(rt)), nil
	case rt == nil:
		if !typemodel.CanBeNil(lt) {
			return nil, invalidOperator(op, l, r, pos)
		}
		return eq(l, constant(nil, lt, r.Pos()), typemodel.IsNullable(lt)), nil
	case lt == rt:
		if !lt.Comparable() && !typemodel.CanBeNil(lt) {
			return nil, invalidOperator(op, l, r, pos)
		}
		return eq(l, r, typemodel.IsNullable(lt)), nil
	case typemodel.IsNullable(lt) && lt.Elem() == rt:
		return eq(l, c.operand(r, lt), true), nil
	case typemodel.IsNullable(rt) && rt.Elem() == lt:
		return eq(c.operand(l, rt), r, true), nil
	case lt.Kind() == reflect.Interface && rt.Implements(lt):
		return eq(l, c.operand(r, lt), false), nil
	case rt.Kind() == reflect.Interface && lt.Implements(rt):
		return eq(c.operand(l, rt), r, false), nil
	}
	return nil, invalidOperator(op, l, r, pos)
}

// binaryOperatorParams returns the operand types of a user operator:
// receiver and argument for methods, both parameters for registered funcs.
func binaryOperatorParams(m *typemodel.MemberDescriptor) (reflect.Type, reflect.Type, bool) {
	switch {
	case !m.Static && len(m.Parameters) == 1:
		return m.DeclaringType, m.Parameters[0].Type, true
	case m.Static && len(m.Parameters) == 2:
		return m.Parameters[0].Type, m.Parameters[1].Type, true
	}
	return nil, nil, false
}

func (c *BindingContext) operatorCandidates(family typemodel.Operator, operands ...Expr) []*typemodel.MemberDescriptor {
	var out []*typemodel.MemberDescriptor
	seen := make(map[*typemodel.MemberDescriptor]bool)
	for _, e := range operands {
		t := e.Type()
		if t == nil {
			continue
		}
		for _, m := range c.describe(t).OperatorFamily(family) {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}

// userBinary binds a host-defined operator. It returns nil and no error
// when neither operand type defines the family.
func (c *BindingContext) userBinary(op BinaryOp, l, r Expr, pos types.Position) (Expr, error) {
	family, ok := userBinaryFamilies[op]
	if !ok {
		return nil, nil
	}
	candidates := c.operatorCandidates(family, l, r)
	if len(candidates) == 0 {
		return nil, nil
	}
	var best, tied *match
	for _, m := range candidates {
		p0, p1, ok := binaryOperatorParams(m)
		if !ok {
			continue
		}
		ql, cl := c.quality(l, p0)
		qr, cr := c.quality(r, p1)
		if ql == typemodel.QualityIncompatible || qr == typemodel.QualityIncompatible {
			continue
		}
		cand := &match{
			member: m,
			args:   []Expr{applyConversion(l, p0, cl), applyConversion(r, p1, cr)},
			worst:  min(ql, qr),
			total:  int(ql) + int(qr),
		}
		switch {
		case best == nil || cand.better(best):
			best, tied = cand, nil
		case !best.better(cand):
			tied = cand
		}
	}
	if best == nil {
		if op == OpEqual || op == OpNotEqual {
			return nil, nil
		}
		return nil, invalidOperator(op, l, r, pos)
	}
	if tied != nil {
		return nil, bindError(types.ErrAmbiguousOverload, pos, "operator %s is ambiguous between %s and %s",
			op, best.member.Signature(), tied.member.Signature())
	}
	t := best.member.ResultType
	if op.IsComparison() {
		t = typemodel.BoolType
	}
	e := binary(op, t, best.args[0], best.args[1], false, pos)
	e.Method = best.member
	return e, nil
}

func (c *BindingContext) bindUnary(n syntax.Node, op UnaryOp, checked bool) (Expr, error) {
	on, ok := n.Child(syntax.KeyExpression)
	if !ok {
		return nil, bindError(types.ErrInvalidCanonicalNode, n.Position(), "%s node without an operand", n.Kind())
	}
	e, err := c.bind(on)
	if err != nil {
		return nil, err
	}
	pos := n.Position()
	t := e.Type()
	unary := func(t reflect.Type, operand Expr) *UnaryExpr {
		return &UnaryExpr{node: node{typ: t, pos: pos}, Op: op, Operand: operand, Lifted: typemodel.IsNullable(t)}
	}

	switch op {
	case OpNot:
		if isBool(t) {
			return unary(t, e), nil
		}
		return c.userUnary(op, typemodel.OpLogicalNot, e, pos)
	case OpComplement:
		if t != nil && typemodel.IsEnum(typemodel.NonNullable(t)) {
			return unary(t, e), nil
		}
		pt, err := promoteUnary(op, e, pos)
		if err != nil {
			return nil, err
		}
		if pt == nil || !typemodel.IsInteger(typemodel.NonNullable(pt)) {
			return nil, bindError(types.ErrInvalidOperator, pos, "operator ~ cannot be applied to an operand of type %s", typeName(t))
		}
		return unary(pt, c.operand(e, pt)), nil
	}

	pt, err := promoteUnary(op, e, pos)
	if err != nil {
		return nil, err
	}
	if pt == nil {
		if op == OpNegate {
			return c.userUnary(op, typemodel.OpUnaryNegation, e, pos)
		}
		return nil, bindError(types.ErrInvalidOperator, pos, "operator %s cannot be applied to an operand of type %s", op, typeName(t))
	}
	if op == OpUnaryPlus {
		return c.operand(e, pt), nil
	}
	u := unary(pt, c.operand(e, pt))
	u.Checked = checked && typemodel.IsInteger(typemodel.NonNullable(pt))
	return u, nil
}

func (c *BindingContext) userUnary(op UnaryOp, family typemodel.Operator, e Expr, pos types.Position) (Expr, error) {
	for _, m := range c.operatorCandidates(family, e) {
		var p reflect.Type
		switch {
		case !m.Static && len(m.Parameters) == 0:
			p = m.DeclaringType
		case m.Static && len(m.Parameters) == 1:
			p = m.Parameters[0].Type
		default:
			continue
		}
		q, conv := c.quality(e, p)
		if q == typemodel.QualityIncompatible {
			continue
		}
		return &UnaryExpr{node: node{typ: m.ResultType, pos: pos}, Op: op, Operand: applyConversion(e, p, conv), Method: m}, nil
	}
	return nil, bindError(types.ErrInvalidOperator, pos, "operator %s cannot be applied to an operand of type %s", op, typeName(e.Type()))
}
