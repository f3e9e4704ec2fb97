package binder

import (
	"reflect"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/syntax"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/typemodel"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/types"
)

// typeOperand binds the operand and the target type of a cast or type
// test.
func (c *BindingContext) typeOperand(n syntax.Node) (Expr, reflect.Type, error) {
	t, err := c.resolveTypeAt(n, syntax.KeyType)
	if err != nil {
		return nil, nil, err
	}
	on, ok := n.Child(syntax.KeyExpression)
	if !ok {
		return nil, nil, bindError(types.ErrInvalidCanonicalNode, n.Position(), "%s node without an operand", n.Kind())
	}
	e, err := c.bindExpected(on, t)
	if err != nil {
		return nil, nil, err
	}
	return e, t, nil
}

// bindConvert binds an explicit cast. Casts that are implicit anyway fold
// into the operand; numeric casts truncate, or fail on overflow when
// checked; host conversions are used when no built-in cast applies.
func (c *BindingContext) bindConvert(n syntax.Node, checked bool) (Expr, error) {
	e, t, err := c.typeOperand(n)
	if err != nil {
		return nil, err
	}
	pos := n.Position()
	from := e.Type()
	switch {
	case from == t:
		return e, nil
	case from == nil:
		if !typemodel.CanBeNil(t) {
			return nil, bindError(types.ErrInvalidConversion, pos, "cannot convert null to %s", t)
		}
		return constant(nil, t, pos), nil
	}

	if k, ok := e.(*ConstantExpr); ok && typemodel.CanConvertExplicit(from, t) {
		v, err := typemodel.Convert(k.Value, t, checked)
		if err != nil {
			return nil, bindError(types.ErrInvalidConversion, pos, "constant %v cannot be converted to %s: %v", k.Value, t, err).WithCause(err)
		}
		return constant(v, t, pos), nil
	}
	if q, m := c.quality(e, t); q != typemodel.QualityIncompatible {
		return &ConvertExpr{node: node{typ: t, pos: pos}, Operand: e, Checked: checked, Method: m}, nil
	}
	if typemodel.CanConvertExplicit(from, t) {
		return &ConvertExpr{node: node{typ: t, pos: pos}, Operand: e, Checked: checked}, nil
	}
	if m := c.registry.FindConversion(from, t, false); m != nil {
		return &ConvertExpr{node: node{typ: t, pos: pos}, Operand: e, Checked: checked, Method: m}, nil
	}
	return nil, bindError(types.ErrInvalidConversion, pos, "cannot convert %s to %s", from, t)
}

func (c *BindingContext) bindTypeIs(n syntax.Node) (Expr, error) {
	e, t, err := c.typeOperand(n)
	if err != nil {
		return nil, err
	}
	return &TypeIsExpr{node: node{typ: typemodel.BoolType, pos: n.Position()}, Operand: e, Target: t}, nil
}

// bindTypeAs binds "e as T". T must be able to hold the null the
// operator produces on a mismatch; "as string" yields a *string.
func (c *BindingContext) bindTypeAs(n syntax.Node) (Expr, error) {
	e, t, err := c.typeOperand(n)
	if err != nil {
		return nil, err
	}
	if t.Kind() == reflect.String {
		t = typemodel.Nullable(t)
	}
	if !typemodel.CanBeNil(t) {
		return nil, bindError(types.ErrInvalidConversion, n.Position(), "operator as requires a nullable or reference type, not %s", t)
	}
	return &TypeAsExpr{node: node{typ: t, pos: n.Position()}, Operand: e}, nil
}

// bindCondition binds "test ? a : b". The branches meet at one type: the
// shared type, the nullable form of the other branch when one is null, or
// the branch type the other converts to implicitly.
func (c *BindingContext) bindCondition(n syntax.Node) (Expr, error) {
	var parts [3]syntax.Node
	for i, key := range [...]string{syntax.KeyTest, syntax.KeyIfTrue, syntax.KeyIfFalse} {
		p, ok := n.Child(key)
		if !ok {
			return nil, bindError(types.ErrInvalidCanonicalNode, n.Position(), "condition without %s", key)
		}
		parts[i] = p
	}
	test, err := c.bind(parts[0])
	if err != nil {
		return nil, err
	}
	if test, err = c.convert(test, typemodel.BoolType); err != nil {
		return nil, err
	}
	a, err := c.bind(parts[1])
	if err != nil {
		return nil, err
	}
	b, err := c.bind(parts[2])
	if err != nil {
		return nil, err
	}

	pos := n.Position()
	at, bt := a.Type(), b.Type()
	var t reflect.Type
	switch {
	case at == bt:
		t = at
	case at == nil:
		t = typemodel.Nullable(bt)
	case bt == nil:
		t = typemodel.Nullable(at)
	default:
		qa, _ := c.quality(a, bt)
		qb, _ := c.quality(b, at)
		switch {
		case qa > qb:
			t = bt
		case qb > qa:
			t = at
		default:
			return nil, bindError(types.ErrTypeMismatch, pos,
				"branches of the conditional have types %s and %s with no single conversion between them", at, bt)
		}
	}
	if t != nil {
		a, b = c.operand(a, t), c.operand(b, t)
	}
	return &ConditionalExpr{node: node{typ: t, pos: pos}, Test: test, IfTrue: a, IfFalse: b}, nil
}
