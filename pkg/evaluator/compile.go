package evaluator

import (
	"reflect"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/binder"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/typemodel"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/types"
)

// compiler turns a typed expression tree into nodes. Constants of the
// whole tree, lambda bodies included, share one pool.
type compiler struct {
	constants []any
	nodes     int
}

func compileError(e binder.Expr, format string, args ...any) error {
	return types.Errorf(types.BindError, types.ErrInvalidCanonicalNode, e.Pos(), format, args...)
}

func (cc *compiler) constant(v any, pos types.Position) Node {
	cc.constants = append(cc.constants, fromValue(reflect.ValueOf(v)))
	return &constantNode{pos: pos, index: len(cc.constants) - 1}
}

func (cc *compiler) all(es []binder.Expr) ([]Node, error) {
	out := make([]Node, len(es))
	for i, e := range es {
		n, err := cc.compile(e)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func parameterTypes(m *typemodel.MemberDescriptor) []reflect.Type {
	out := make([]reflect.Type, len(m.Parameters))
	for i, p := range m.Parameters {
		out[i] = p.Type
	}
	return out
}

func (cc *compiler) compile(e binder.Expr) (Node, error) {
	cc.nodes++
	pos := e.Pos()
	switch e := e.(type) {
	case *binder.ConstantExpr:
		return cc.constant(e.Value, pos), nil
	case *binder.DefaultExpr:
		return cc.constant(typemodel.Zero(e.Type()), pos), nil
	case *binder.ParameterExpr:
		return &localNode{pos: pos, slot: e.Index}, nil
	case *binder.MemberExpr:
		return cc.member(e)
	case *binder.LenExpr:
		operand, err := cc.compile(e.Operand)
		if err != nil {
			return nil, err
		}
		return &lenNode{pos: pos, operand: operand}, nil
	case *binder.CallExpr:
		return cc.call(e)
	case *binder.InvokeExpr:
		return cc.invoke(e)
	case *binder.IndexExpr:
		return cc.index(e)
	case *binder.BinaryExpr:
		return cc.binary(e)
	case *binder.UnaryExpr:
		operand, err := cc.compile(e.Operand)
		if err != nil {
			return nil, err
		}
		if e.Method != nil {
			return &unaryOperatorNode{pos: pos, operand: operand, method: e.Method}, nil
		}
		return &unaryNode{pos: pos, op: e.Op, operand: operand, typ: e.Type(), checked: e.Checked}, nil
	case *binder.ConditionalExpr:
		ns, err := cc.all([]binder.Expr{e.Test, e.IfTrue, e.IfFalse})
		if err != nil {
			return nil, err
		}
		return &conditionalNode{pos: pos, test: ns[0], ifTrue: ns[1], ifFalse: ns[2]}, nil
	case *binder.ConvertExpr:
		operand, err := cc.compile(e.Operand)
		if err != nil {
			return nil, err
		}
		n := &convertNode{pos: pos, operand: operand, to: e.Type(), checked: e.Checked, method: e.Method}
		if e.Method != nil && e.Method.Static {
			n.param = e.Method.Parameters[0].Type
		}
		return n, nil
	case *binder.TypeIsExpr:
		operand, err := cc.compile(e.Operand)
		if err != nil {
			return nil, err
		}
		return &typeIsNode{pos: pos, operand: operand, target: e.Target}, nil
	case *binder.TypeAsExpr:
		operand, err := cc.compile(e.Operand)
		if err != nil {
			return nil, err
		}
		return &typeAsNode{pos: pos, operand: operand, target: e.Type()}, nil
	case *binder.LambdaExpr:
		body, err := cc.compile(e.Body)
		if err != nil {
			return nil, err
		}
		return &lambdaNode{pos: pos, typ: e.Type(), body: body, captures: e.Captures}, nil
	case *binder.QuoteExpr:
		q := reflect.New(e.Type()).Elem()
		q.FieldByName("Lambda").Set(reflect.ValueOf(e.Lambda))
		return cc.constant(q.Interface(), pos), nil
	case *binder.NewExpr:
		return cc.construct(e)
	case *binder.NewArrayExpr:
		n := &arrayNode{pos: pos, typ: e.Type()}
		var err error
		if e.Bounds != nil {
			n.bounds, err = cc.all(e.Bounds)
		} else {
			n.items, err = cc.all(e.Items)
		}
		if err != nil {
			return nil, err
		}
		return n, nil
	case *binder.MemberInitExpr:
		create, err := cc.compile(e.New)
		if err != nil {
			return nil, err
		}
		bindings, err := cc.bindings(e.Bindings)
		if err != nil {
			return nil, err
		}
		return &memberInitNode{pos: pos, create: create, bindings: bindings}, nil
	case *binder.ListInitExpr:
		create, err := cc.compile(e.New)
		if err != nil {
			return nil, err
		}
		inits, err := cc.elements(e.Initializers)
		if err != nil {
			return nil, err
		}
		return &listInitNode{pos: pos, create: create, inits: inits}, nil
	}
	return nil, compileError(e, "cannot compile %T", e)
}

func (cc *compiler) target(e binder.Expr, m *typemodel.MemberDescriptor) (Node, error) {
	if e == nil || m.Static {
		return nil, nil
	}
	return cc.compile(e)
}

func (cc *compiler) member(e *binder.MemberExpr) (Node, error) {
	pos := e.Pos()
	m := e.Member
	target, err := cc.target(e.Target, m)
	if err != nil {
		return nil, err
	}
	switch {
	case m.Native == typemodel.NativeHasValue:
		return &hasValueNode{pos: pos, target: target}, nil
	case m.Native == typemodel.NativeValue:
		return &valueNode{pos: pos, target: target}, nil
	case m.Kind == typemodel.MemberField:
		if target == nil {
			return nil, compileError(e, "field %s without a receiver", m.Name)
		}
		return &fieldNode{pos: pos, target: target, index: m.FieldIndex, name: m.Name}, nil
	case m.Func.IsValid():
		return &callNode{
			pos: pos, target: target, fn: m.Func,
			returnsError: m.ReturnsError, hasResult: true,
		}, nil
	}
	return nil, compileError(e, "member %s cannot be read", m.Signature())
}

func (cc *compiler) call(e *binder.CallExpr) (Node, error) {
	pos := e.Pos()
	m := e.Method
	target, err := cc.target(e.Target, m)
	if err != nil {
		return nil, err
	}
	if m.Native == typemodel.NativeToString {
		return &toStringNode{pos: pos, target: target}, nil
	}
	if !m.Func.IsValid() {
		return nil, compileError(e, "method %s has no implementation", m.Signature())
	}
	args, err := cc.all(e.Args)
	if err != nil {
		return nil, err
	}
	return &callNode{
		pos: pos, target: target, fn: m.Func, params: parameterTypes(m), args: args,
		spread: m.Variadic, returnsError: m.ReturnsError, hasResult: m.ResultType != nil,
	}, nil
}

func (cc *compiler) invoke(e *binder.InvokeExpr) (Node, error) {
	target, err := cc.compile(e.Target)
	if err != nil {
		return nil, err
	}
	args, err := cc.all(e.Args)
	if err != nil {
		return nil, err
	}
	ft := e.Target.Type()
	params := make([]reflect.Type, ft.NumIn())
	for i := range params {
		params[i] = ft.In(i)
	}
	nout := ft.NumOut()
	returnsError := nout > 0 && ft.Out(nout-1) == typemodel.ErrorType
	return &invokeNode{
		pos: e.Pos(), target: target, params: params, args: args, spread: ft.IsVariadic(),
		returnsError: returnsError, hasResult: e.Type() != nil,
	}, nil
}

func (cc *compiler) index(e *binder.IndexExpr) (Node, error) {
	m := e.Indexer
	target, err := cc.compile(e.Target)
	if err != nil {
		return nil, err
	}
	args, err := cc.all(e.Args)
	if err != nil {
		return nil, err
	}
	if m.Native == typemodel.NativeIndex {
		return &indexNode{pos: e.Pos(), target: target, key: args[0], keyT: m.Parameters[0].Type}, nil
	}
	return &callNode{
		pos: e.Pos(), target: target, fn: m.Func, params: parameterTypes(m), args: args,
		spread: m.Variadic, returnsError: m.ReturnsError, hasResult: true,
	}, nil
}

func (cc *compiler) binary(e *binder.BinaryExpr) (Node, error) {
	pos := e.Pos()
	left, err := cc.compile(e.Left)
	if err != nil {
		return nil, err
	}
	right, err := cc.compile(e.Right)
	if err != nil {
		return nil, err
	}
	if m := e.Method; m != nil {
		n := &operatorNode{pos: pos, op: e.Op, left: left, right: right, method: m}
		if m.Static {
			n.params = [2]reflect.Type{m.Parameters[0].Type, m.Parameters[1].Type}
		} else {
			n.params = [2]reflect.Type{m.DeclaringType, m.Parameters[0].Type}
		}
		return n, nil
	}
	switch e.Op {
	case binder.OpAndAlso, binder.OpOrElse:
		return &logicalNode{pos: pos, orElse: e.Op == binder.OpOrElse, left: left, right: right}, nil
	case binder.OpCoalesce:
		return &coalesceNode{pos: pos, left: left, right: right, lifted: e.Lifted}, nil
	case binder.OpConcat:
		return &concatNode{pos: pos, left: left, right: right}, nil
	}
	return &binaryNode{
		pos: pos, op: e.Op, left: left, right: right,
		typ: e.Type(), checked: e.Checked, lifted: e.Lifted,
	}, nil
}

func (cc *compiler) construct(e *binder.NewExpr) (Node, error) {
	m := e.Constructor
	n := &newNode{pos: e.Pos(), typ: e.Type(), native: m.Native}
	switch m.Native {
	case typemodel.NativeZero:
		return n, nil
	case typemodel.NativeMake:
		if len(e.Args) > 0 {
			size, err := cc.compile(e.Args[0])
			if err != nil {
				return nil, err
			}
			n.size = size
		}
		return n, nil
	}
	args, err := cc.all(e.Args)
	if err != nil {
		return nil, err
	}
	n.call = &callNode{
		pos: e.Pos(), fn: m.Func, params: parameterTypes(m), args: args,
		spread: m.Variadic, returnsError: m.ReturnsError, hasResult: true,
	}
	return n, nil
}

func (cc *compiler) bindings(bs []binder.MemberBinding) ([]bindingNode, error) {
	out := make([]bindingNode, len(bs))
	for i, b := range bs {
		out[i] = bindingNode{pos: b.Pos, kind: b.Kind, index: b.Member.FieldIndex, name: b.Member.Name}
		var err error
		switch b.Kind {
		case binder.BindAssign:
			out[i].value, err = cc.compile(b.Value)
		case binder.BindMember:
			out[i].bindings, err = cc.bindings(b.Bindings)
		case binder.BindList:
			out[i].inits, err = cc.elements(b.Initializers)
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (cc *compiler) elements(inits []binder.ElementInit) ([]elementNode, error) {
	out := make([]elementNode, len(inits))
	for i, init := range inits {
		args, err := cc.all(init.Args)
		if err != nil {
			return nil, err
		}
		out[i].args = args
		if m := init.Add; m != nil {
			out[i].add = m.Func
			out[i].params = parameterTypes(m)
			out[i].spread = m.Variadic
			out[i].returnsError = m.ReturnsError
		}
	}
	return out, nil
}
