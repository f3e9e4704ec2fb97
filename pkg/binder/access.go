package binder

import (
	"reflect"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/syntax"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/typemodel"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/types"
)

// bindChain binds a member, call or index node together with the
// receivers it is chained on. Receivers reached through ?. or ?[ are
// collected while binding and guard the whole chain once it is complete.
func (c *BindingContext) bindChain(n syntax.Node) (Expr, error) {
	saved := c.nullTargets
	c.nullTargets = nil
	e, err := c.bindAccess(n)
	targets := c.nullTargets
	c.nullTargets = saved
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return e, nil
	}
	return propagateNull(e, targets, n.Position()), nil
}

func (c *BindingContext) bindAccess(n syntax.Node) (Expr, error) {
	switch n.Kind() {
	case syntax.KindPropertyOrField:
		return c.bindMember(n)
	case syntax.KindInvoke:
		return c.bindInvoke(n)
	case syntax.KindIndex:
		return c.bindIndex(n)
	}
	return c.bind(n)
}

// receiver binds the target of an access. A target that does not bind as
// a value but names a type yields that type for a static access.
func (c *BindingContext) receiver(n syntax.Node) (Expr, reflect.Type, error) {
	mark := len(c.nullTargets)
	e, err := c.bindAccess(n)
	if err == nil {
		return e, nil, nil
	}
	if ref, ok := typeChain(n); ok {
		if t, terr := typemodel.Resolve(c.resolver, ref); terr == nil {
			c.nullTargets = c.nullTargets[:mark]
			return nil, t, nil
		}
	}
	return nil, nil, err
}

// registerNullTarget records recv as a receiver of a null-conditional
// access and returns the value to access members on.
func (c *BindingContext) registerNullTarget(recv Expr) Expr {
	t := recv.Type()
	if t == nil || !typemodel.CanBeNil(t) {
		return recv
	}
	c.nullTargets = append(c.nullTargets, recv)
	if typemodel.IsNullable(t) {
		return &ConvertExpr{node: node{typ: t.Elem(), pos: recv.Pos()}, Operand: recv}
	}
	return recv
}

// propagateNull guards e with a test of every registered receiver. The
// result is nullable so that the short-circuit has a value to produce.
func propagateNull(e Expr, targets []Expr, pos types.Position) Expr {
	t := e.Type()
	rt := t
	if t != nil && !typemodel.CanBeNil(t) {
		rt = typemodel.Nullable(t)
	}
	var test Expr
	for _, target := range targets {
		isNull := &BinaryExpr{
			node:  node{typ: typemodel.BoolType, pos: pos},
			Op:    OpEqual,
			Left:  target,
			Right: constant(nil, target.Type(), pos),
		}
		if test == nil {
			test = isNull
			continue
		}
		test = &BinaryExpr{node: node{typ: typemodel.BoolType, pos: pos}, Op: OpOrElse, Left: test, Right: isNull}
	}
	body := e
	if rt != t {
		body = &ConvertExpr{node: node{typ: rt, pos: pos}, Operand: e}
	}
	return &ConditionalExpr{
		node:    node{typ: rt, pos: pos},
		Test:    test,
		IfTrue:  &DefaultExpr{node: node{typ: rt, pos: pos}},
		IfFalse: body,
	}
}

func (c *BindingContext) bindMember(n syntax.Node) (Expr, error) {
	name, _ := n.String(syntax.KeyPropertyOrField)
	pos := n.Position()
	if len(n.Arguments(syntax.KeyArguments)) > 0 {
		return nil, bindError(types.ErrUnknownMember, pos, "generic name %s cannot be used as a value", syntax.TypeName(n))
	}
	target, hasTarget := n.Child(syntax.KeyExpression)
	if !hasTarget {
		if i, ok := c.parameter(name); ok {
			return &ParameterExpr{node: node{typ: c.parameters[i].Type, pos: pos}, Name: name, Index: i}, nil
		}
		if c.global != nil {
			e, ok, err := c.instanceMember(c.global, name, pos)
			if err != nil || ok {
				return e, err
			}
		}
		return nil, bindError(types.ErrUnknownMember, pos, "unknown identifier %q", name)
	}

	recv, static, err := c.receiver(target)
	if err != nil {
		return nil, err
	}
	if static != nil {
		return c.staticMember(static, name, pos)
	}
	if n.Bool(syntax.KeyUseNullPropagation) {
		recv = c.registerNullTarget(recv)
	}
	e, ok, err := c.instanceMember(recv, name, pos)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, bindError(types.ErrUnknownMember, pos, "%s has no field or property %q", typeName(recv.Type()), name)
	}
	return e, nil
}

// instanceMember looks up a field or property of recv.
func (c *BindingContext) instanceMember(recv Expr, name string, pos types.Position) (Expr, bool, error) {
	t := recv.Type()
	if t == nil {
		return nil, false, bindError(types.ErrUnknownMember, pos, "null has no member %q", name)
	}
	for _, m := range c.describe(t).Member(name) {
		if m.Kind != typemodel.MemberField && m.Kind != typemodel.MemberProperty {
			continue
		}
		if err := c.checkRestricted(m.DeclaringType, name, pos); err != nil {
			return nil, false, err
		}
		if m.Native == typemodel.NativeLen {
			return &LenExpr{node: node{typ: m.ResultType, pos: pos}, Operand: recv}, true, nil
		}
		return &MemberExpr{node: node{typ: m.ResultType, pos: pos}, Target: recv, Member: m}, true, nil
	}
	return nil, false, nil
}

// staticMember binds a static value, or a static method without
// parameters read as a property.
func (c *BindingContext) staticMember(t reflect.Type, name string, pos types.Position) (Expr, error) {
	if err := c.checkRestricted(t, name, pos); err != nil {
		return nil, err
	}
	for _, m := range c.describe(t).Static(name) {
		switch {
		case m.Kind == typemodel.MemberStaticValue:
			return constant(m.Value.Interface(), m.ResultType, pos), nil
		case m.Kind == typemodel.MemberMethod && len(m.Parameters) == 0 && !m.IsGeneric() && m.ResultType != nil:
			return &CallExpr{node: node{typ: m.ResultType, pos: pos}, Method: m}, nil
		}
	}
	return nil, bindError(types.ErrUnknownMember, pos, "%s has no static member %q", t, name)
}

func methods(set []*typemodel.MemberDescriptor) []*typemodel.MemberDescriptor {
	var out []*typemodel.MemberDescriptor
	for _, m := range set {
		if m.Kind == typemodel.MemberMethod {
			out = append(out, m)
		}
	}
	return out
}

func (c *BindingContext) bindInvoke(n syntax.Node) (Expr, error) {
	pos := n.Position()
	callee, ok := n.Child(syntax.KeyExpression)
	if !ok {
		return nil, bindError(types.ErrInvalidCanonicalNode, pos, "call without a target")
	}
	args, err := c.arguments(n)
	if err != nil {
		return nil, err
	}
	if callee.Kind() != syntax.KindPropertyOrField {
		target, err := c.bindAccess(callee)
		if err != nil {
			return nil, err
		}
		return c.invoke(target, args, pos)
	}

	name, _ := callee.String(syntax.KeyPropertyOrField)
	typeArgs, err := c.typeArguments(callee)
	if err != nil {
		return nil, err
	}
	target, hasTarget := callee.Child(syntax.KeyExpression)
	if !hasTarget {
		if i, ok := c.parameter(name); ok && typeArgs == nil {
			p := &ParameterExpr{node: node{typ: c.parameters[i].Type, pos: pos}, Name: name, Index: i}
			return c.invoke(p, args, pos)
		}
		if c.global != nil {
			if ms := methods(c.describe(c.global.Type()).Member(name)); len(ms) > 0 {
				return c.call(c.global, ms, name, typeArgs, args, pos)
			}
		}
		return nil, bindError(types.ErrUnknownMember, pos, "unknown method %q", name)
	}

	recv, static, err := c.receiver(target)
	if err != nil {
		return nil, err
	}
	if static != nil {
		if err := c.checkRestricted(static, name, pos); err != nil {
			return nil, err
		}
		ms := methods(c.describe(static).Static(name))
		if len(ms) == 0 {
			return nil, bindError(types.ErrUnknownMember, pos, "%s has no static method %q", static, name)
		}
		return c.call(nil, ms, name, typeArgs, args, pos)
	}
	if callee.Bool(syntax.KeyUseNullPropagation) {
		recv = c.registerNullTarget(recv)
	}
	if recv.Type() == nil {
		return nil, bindError(types.ErrUnknownMember, pos, "null has no method %q", name)
	}
	ms := methods(c.describe(recv.Type()).Member(name))
	if len(ms) == 0 {
		// A field or property holding a func.
		if member, ok, err := c.instanceMember(recv, name, pos); err != nil {
			return nil, err
		} else if ok && typemodel.IsDelegate(member.Type()) {
			return c.invoke(member, args, pos)
		}
		return nil, bindError(types.ErrUnknownMember, pos, "%s has no method %q", recv.Type(), name)
	}
	return c.call(recv, ms, name, typeArgs, args, pos)
}

// call selects an overload among candidates and builds the call.
func (c *BindingContext) call(recv Expr, candidates []*typemodel.MemberDescriptor, name string, typeArgs []reflect.Type, args []argument, pos types.Position) (Expr, error) {
	on := "static"
	if recv != nil {
		on = typeName(recv.Type())
		if err := c.checkRestricted(recv.Type(), name, pos); err != nil {
			return nil, err
		}
	} else if len(candidates) > 0 {
		on = typeName(candidates[0].DeclaringType)
	}
	m, callArgs, err := c.resolveOverload(candidates, typeArgs, args, name, on, pos)
	if err != nil {
		return nil, err
	}
	if m.Native == typemodel.NativeInvoke {
		return &InvokeExpr{node: node{typ: m.ResultType, pos: pos}, Target: recv, Args: callArgs}, nil
	}
	return &CallExpr{node: node{typ: m.ResultType, pos: pos}, Target: recv, Method: m, Args: callArgs}, nil
}

// invoke calls a func-typed value.
func (c *BindingContext) invoke(target Expr, args []argument, pos types.Position) (Expr, error) {
	t := target.Type()
	if !typemodel.IsDelegate(t) {
		return nil, bindError(types.ErrUnknownMember, pos, "value of type %s cannot be invoked", typeName(t))
	}
	m, callArgs, err := c.resolveOverload(c.describe(t).Member("Invoke"), nil, args, "Invoke", t.String(), pos)
	if err != nil {
		return nil, err
	}
	return &InvokeExpr{node: node{typ: m.ResultType, pos: pos}, Target: target, Args: callArgs}, nil
}

func (c *BindingContext) bindIndex(n syntax.Node) (Expr, error) {
	pos := n.Position()
	target, ok := n.Child(syntax.KeyExpression)
	if !ok {
		return nil, bindError(types.ErrInvalidCanonicalNode, pos, "index without a target")
	}
	recv, static, err := c.receiver(target)
	if err != nil {
		return nil, err
	}
	if static != nil {
		return nil, bindError(types.ErrUnknownMember, pos, "type %s cannot be indexed", static)
	}
	if n.Bool(syntax.KeyUseNullPropagation) {
		recv = c.registerNullTarget(recv)
	}
	args, err := c.arguments(n)
	if err != nil {
		return nil, err
	}
	t := recv.Type()
	if t == nil {
		return nil, bindError(types.ErrUnknownMember, pos, "null cannot be indexed")
	}
	indexers := c.describe(t).Indexers
	if len(indexers) == 0 {
		return nil, bindError(types.ErrUnknownMember, pos, "%s has no indexer", t)
	}
	if err := c.checkRestricted(t, "Item", pos); err != nil {
		return nil, err
	}
	m, callArgs, err := c.resolveOverload(indexers, nil, args, "indexer", t.String(), pos)
	if err != nil {
		return nil, err
	}
	return &IndexExpr{node: node{typ: m.ResultType, pos: pos}, Target: recv, Indexer: m, Args: callArgs}, nil
}
