package binder

import (
	"reflect"
	"slices"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/syntax"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/typemodel"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/types"
)

func (c *BindingContext) bindNew(n syntax.Node) (Expr, error) {
	pos := n.Position()
	t, err := c.resolveTypeAt(n, syntax.KeyType)
	if err != nil {
		return nil, err
	}
	if err := c.checkRestricted(t, "new", pos); err != nil {
		return nil, err
	}
	args, err := c.arguments(n)
	if err != nil {
		return nil, err
	}
	ctors := c.describe(t).Constructors
	if len(ctors) == 0 {
		return nil, bindError(types.ErrUnknownMember, pos, "%s has no constructor", t)
	}
	m, callArgs, err := c.resolveOverload(ctors, nil, args, "new", t.String(), pos)
	if err != nil {
		return nil, err
	}
	return &NewExpr{node: node{typ: m.ResultType, pos: pos}, Constructor: m, Args: callArgs}, nil
}

// construction binds the New node an initializer applies to.
func (c *BindingContext) construction(n syntax.Node) (Expr, error) {
	cn, ok := n.Child(syntax.KeyExpression)
	if !ok || cn.Kind() != syntax.KindNew {
		return nil, bindError(types.ErrInvalidCanonicalNode, n.Position(), "%s without a construction", n.Kind())
	}
	return c.bind(cn)
}

func (c *BindingContext) bindMemberInit(n syntax.Node) (Expr, error) {
	newExpr, err := c.construction(n)
	if err != nil {
		return nil, err
	}
	bindings, err := c.memberBindings(newExpr.Type(), n.List(syntax.KeyBindings))
	if err != nil {
		return nil, err
	}
	return &MemberInitExpr{node: node{typ: newExpr.Type(), pos: n.Position()}, New: newExpr, Bindings: bindings}, nil
}

// memberBindings binds the items of an object initializer for a value of
// type t. Only fields can be assigned.
func (c *BindingContext) memberBindings(t reflect.Type, items []any) ([]MemberBinding, error) {
	out := make([]MemberBinding, 0, len(items))
	for _, v := range items {
		item, _ := v.(syntax.Node)
		pos := item.Position()
		name, _ := item.String(syntax.KeyMember)
		field := c.field(t, name)
		if field == nil {
			return nil, bindError(types.ErrUnknownMember, pos, "%s has no assignable field %q", t, name)
		}
		if err := c.checkRestricted(field.DeclaringType, name, pos); err != nil {
			return nil, err
		}
		b := MemberBinding{Member: field, Pos: pos}
		if vn, ok := item.Child(syntax.KeyExpression); ok {
			e, err := c.bindExpected(vn, field.ResultType)
			if err != nil {
				return nil, err
			}
			if e, err = c.convert(e, field.ResultType); err != nil {
				return nil, err
			}
			b.Kind, b.Value = BindAssign, e
		} else if nested := item.List(syntax.KeyBindings); nested != nil {
			bs, err := c.memberBindings(field.ResultType, nested)
			if err != nil {
				return nil, err
			}
			b.Kind, b.Bindings = BindMember, bs
		} else {
			inits, err := c.elementInits(field.ResultType, item.List(syntax.KeyInitializers), pos)
			if err != nil {
				return nil, err
			}
			b.Kind, b.Initializers = BindList, inits
		}
		out = append(out, b)
	}
	return out, nil
}

func (c *BindingContext) field(t reflect.Type, name string) *typemodel.MemberDescriptor {
	for _, m := range c.describe(t).Member(name) {
		if m.Kind == typemodel.MemberField {
			return m
		}
	}
	return nil
}

// elementInits binds collection initializer items for a collection of
// type t: slice append, map assignment, or an Add method.
func (c *BindingContext) elementInits(t reflect.Type, items []any, pos types.Position) ([]ElementInit, error) {
	var adders []*typemodel.MemberDescriptor
	if t.Kind() != reflect.Slice && t.Kind() != reflect.Map {
		adders = methods(c.describe(t).Member("Add"))
		if len(adders) == 0 {
			return nil, bindError(types.ErrUnknownMember, pos, "%s is not a collection with an Add method", t)
		}
	}
	out := make([]ElementInit, 0, len(items))
	for _, v := range items {
		item, _ := v.(syntax.Node)
		args, err := c.arguments(item)
		if err != nil {
			return nil, err
		}
		var slots []reflect.Type
		switch t.Kind() {
		case reflect.Slice:
			slots = []reflect.Type{t.Elem()}
		case reflect.Map:
			slots = []reflect.Type{t.Key(), t.Elem()}
		default:
			m, callArgs, err := c.resolveOverload(adders, nil, args, "Add", t.String(), item.Position())
			if err != nil {
				return nil, err
			}
			out = append(out, ElementInit{Add: m, Args: callArgs})
			continue
		}
		if len(args) != len(slots) {
			return nil, bindError(types.ErrNoOverload, item.Position(),
				"an element of %s takes %d values, got %d", t, len(slots), len(args))
		}
		init := ElementInit{Args: make([]Expr, len(args))}
		for i := range args {
			if args[i].name != "" {
				return nil, bindError(types.ErrUnknownParameter, item.Position(), "collection elements cannot be named")
			}
			e, _, err := c.argumentFor(&args[i], slots[i], i)
			if err != nil {
				return nil, bindError(types.ErrInvalidConversion, item.Position(), "%v", err).WithCause(err)
			}
			init.Args[i] = e
		}
		out = append(out, init)
	}
	return out, nil
}

func (c *BindingContext) bindListInit(n syntax.Node) (Expr, error) {
	newExpr, err := c.construction(n)
	if err != nil {
		return nil, err
	}
	inits, err := c.elementInits(newExpr.Type(), n.List(syntax.KeyInitializers), n.Position())
	if err != nil {
		return nil, err
	}
	return &ListInitExpr{node: node{typ: newExpr.Type(), pos: n.Position()}, New: newExpr, Initializers: inits}, nil
}

// bindNewArrayInit binds "new T[] { ... }" and "new[] { ... }". Without
// an element type the items must share a best common type.
func (c *BindingContext) bindNewArrayInit(n syntax.Node) (Expr, error) {
	pos := n.Position()
	args, err := c.arguments(n)
	if err != nil {
		return nil, err
	}
	var elem reflect.Type
	if _, ok := n.Child(syntax.KeyType); ok {
		if elem, err = c.resolveTypeAt(n, syntax.KeyType); err != nil {
			return nil, err
		}
	} else if elem, err = c.commonType(args, pos); err != nil {
		return nil, err
	}
	items := make([]Expr, len(args))
	for i := range args {
		e, _, err := c.argumentFor(&args[i], elem, i)
		if err != nil {
			return nil, bindError(types.ErrInvalidConversion, pos, "array element: %v", err).WithCause(err)
		}
		items[i] = e
	}
	return &NewArrayExpr{node: node{typ: reflect.SliceOf(elem), pos: pos}, Elem: elem, Items: items}, nil
}

// commonType picks the item type every other item converts to, preferring
// the one with the best total conversion quality.
func (c *BindingContext) commonType(args []argument, pos types.Position) (reflect.Type, error) {
	var candidates []reflect.Type
	for _, a := range args {
		if a.expr == nil {
			return nil, bindError(types.ErrInvalidLambda, pos, "an implicitly typed array cannot hold lambdas")
		}
		if t := a.expr.Type(); t != nil && !slices.Contains(candidates, t) {
			candidates = append(candidates, t)
		}
	}
	var (
		best      reflect.Type
		bestTotal = -1
		tied      bool
	)
	for _, t := range candidates {
		total := 0
		for _, a := range args {
			q, _ := c.quality(a.expr, t)
			if q == typemodel.QualityIncompatible {
				total = -1
				break
			}
			total += int(q)
		}
		switch {
		case total > bestTotal:
			best, bestTotal, tied = t, total, false
		case total == bestTotal && total >= 0:
			tied = true
		}
	}
	if best == nil || bestTotal < 0 || tied {
		return nil, bindError(types.ErrTypeMismatch, pos, "no best type found for the implicitly typed array")
	}
	return best, nil
}

// bindNewArrayBounds binds "new T[n]" and "new T[n, m]", the latter as
// nested slices.
func (c *BindingContext) bindNewArrayBounds(n syntax.Node) (Expr, error) {
	pos := n.Position()
	elem, err := c.resolveTypeAt(n, syntax.KeyType)
	if err != nil {
		return nil, err
	}
	args, err := c.arguments(n)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, bindError(types.ErrInvalidCanonicalNode, pos, "array construction without a size")
	}
	t := elem
	bounds := make([]Expr, len(args))
	for i, a := range args {
		if a.expr == nil {
			return nil, bindError(types.ErrInvalidConversion, pos, "array size cannot be a lambda")
		}
		b, err := c.convert(a.expr, typemodel.IntType)
		if err != nil {
			return nil, err
		}
		bounds[i] = b
		t = reflect.SliceOf(t)
	}
	return &NewArrayExpr{node: node{typ: t, pos: pos}, Elem: elem, Bounds: bounds}, nil
}
