package evaluator

import (
	"reflect"

	"github.com/shopspring/decimal"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/binder"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/typemodel"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/types"
)

// binaryNode applies a built-in binary operator. Lifted operators follow
// the nullable rules: equality treats two nulls as equal, ordering with a
// null is false, and arithmetic with a null yields null.
type binaryNode struct {
	pos     types.Position
	op      binder.BinaryOp
	left    Node
	right   Node
	typ     reflect.Type // result type
	checked bool
	lifted  bool
}

func (n *binaryNode) Run(c *Closure) (any, error) {
	if err := c.step(n.pos); err != nil {
		return nil, err
	}
	l, err := n.left.Run(c)
	if err != nil {
		return nil, err
	}
	r, err := n.right.Run(c)
	if err != nil {
		return nil, err
	}
	return n.apply(l, r)
}

func (n *binaryNode) apply(l, r any) (any, error) {
	if l == nil || r == nil {
		switch {
		case n.op == binder.OpEqual:
			return l == nil && r == nil, nil
		case n.op == binder.OpNotEqual:
			return (l == nil) != (r == nil), nil
		case n.op.IsComparison():
			return false, nil
		case n.lifted && n.op == binder.OpAnd:
			if b, ok := deref(l).(bool); ok && !b {
				return wrap(false, n.typ), nil
			}
			if b, ok := deref(r).(bool); ok && !b {
				return wrap(false, n.typ), nil
			}
			return nil, nil
		case n.lifted && n.op == binder.OpOr:
			if b, ok := deref(l).(bool); ok && b {
				return wrap(true, n.typ), nil
			}
			if b, ok := deref(r).(bool); ok && b {
				return wrap(true, n.typ), nil
			}
			return nil, nil
		case n.lifted:
			return nil, nil
		}
		return nil, nullReference(n.pos, "operator "+n.op.String())
	}

	lv, rv := basic(deref(l)), basic(deref(r))
	var (
		out any
		err error
	)
	switch a := lv.(type) {
	case decimal.Decimal:
		b, ok := rv.(decimal.Decimal)
		if !ok {
			return nil, n.mismatch(l, r)
		}
		out, err = decimalBinary(n.op, a, b)
	default:
		lk := reflect.TypeOf(lv)
		f, ok := binaryIntrinsics[intrinsicKey{n.op, lk.Kind()}]
		isShift := n.op == binder.OpLeftShift || n.op == binder.OpRightShift
		switch {
		case ok && (isShift || reflect.TypeOf(rv) == lk):
			out, err = f(lv, rv, n.checked)
		case n.op == binder.OpEqual:
			return equals(deref(l), deref(r)), nil
		case n.op == binder.OpNotEqual:
			return !equals(deref(l), deref(r)), nil
		default:
			return nil, n.mismatch(l, r)
		}
	}
	if err != nil {
		return nil, located(err, n.pos)
	}
	if n.op.IsComparison() {
		return out, nil
	}
	return wrap(retype(out, typemodel.NonNullable(n.typ)), n.typ), nil
}

func (n *binaryNode) mismatch(l, r any) error {
	return runtimeError(types.ErrInvalidCast, n.pos, "operator %s is not defined for %T and %T", n.op, l, r)
}

// logicalNode implements && and ||, evaluating the right operand only when
// the left one does not decide the result.
type logicalNode struct {
	pos    types.Position
	orElse bool
	left   Node
	right  Node
}

func (n *logicalNode) Run(c *Closure) (any, error) {
	if err := c.step(n.pos); err != nil {
		return nil, err
	}
	l, err := n.left.Run(c)
	if err != nil {
		return nil, err
	}
	if b, _ := l.(bool); b == n.orElse {
		return b, nil
	}
	r, err := n.right.Run(c)
	if err != nil {
		return nil, err
	}
	b, _ := r.(bool)
	return b, nil
}

// coalesceNode implements ??. A lifted node unwraps the left nullable.
type coalesceNode struct {
	pos    types.Position
	left   Node
	right  Node
	lifted bool
}

func (n *coalesceNode) Run(c *Closure) (any, error) {
	if err := c.step(n.pos); err != nil {
		return nil, err
	}
	l, err := n.left.Run(c)
	if err != nil {
		return nil, err
	}
	if l != nil {
		if n.lifted {
			return deref(l), nil
		}
		return l, nil
	}
	return n.right.Run(c)
}

type concatNode struct {
	pos   types.Position
	left  Node
	right Node
}

func (n *concatNode) Run(c *Closure) (any, error) {
	if err := c.step(n.pos); err != nil {
		return nil, err
	}
	l, err := n.left.Run(c)
	if err != nil {
		return nil, err
	}
	r, err := n.right.Run(c)
	if err != nil {
		return nil, err
	}
	return ToString(l) + ToString(r), nil
}

// operatorNode calls a host operator method. Comparison operators return
// an int that is compared with zero.
type operatorNode struct {
	pos    types.Position
	op     binder.BinaryOp
	left   Node
	right  Node
	method *typemodel.MemberDescriptor
	params [2]reflect.Type
}

func (n *operatorNode) Run(c *Closure) (any, error) {
	if err := c.step(n.pos); err != nil {
		return nil, err
	}
	l, err := n.left.Run(c)
	if err != nil {
		return nil, err
	}
	r, err := n.right.Run(c)
	if err != nil {
		return nil, err
	}
	m := n.method
	var first reflect.Value
	if m.Static {
		first = toValue(l, n.params[0])
	} else if first, err = receiverFor(m.Func, l, n.pos); err != nil {
		return nil, err
	}
	out, err := invoke(m.Func, []reflect.Value{first, toValue(r, n.params[1])}, false, m.ReturnsError, true, n.pos)
	if err != nil {
		return nil, err
	}
	switch m.Operator {
	case typemodel.OpComparison:
		cmp := reflect.ValueOf(out).Int()
		switch n.op {
		case binder.OpLessThan:
			return cmp < 0, nil
		case binder.OpLessThanOrEqual:
			return cmp <= 0, nil
		case binder.OpGreaterThan:
			return cmp > 0, nil
		case binder.OpGreaterThanOrEqual:
			return cmp >= 0, nil
		case binder.OpEqual:
			return cmp == 0, nil
		case binder.OpNotEqual:
			return cmp != 0, nil
		}
	case typemodel.OpEquality:
		if n.op == binder.OpNotEqual {
			b, _ := out.(bool)
			return !b, nil
		}
	}
	return out, nil
}

// unaryNode applies a built-in unary operator.
type unaryNode struct {
	pos     types.Position
	op      binder.UnaryOp
	operand Node
	typ     reflect.Type
	checked bool
}

func (n *unaryNode) Run(c *Closure) (any, error) {
	if err := c.step(n.pos); err != nil {
		return nil, err
	}
	v, err := n.operand.Run(c)
	if err != nil {
		return nil, err
	}
	if v == nil {
		if typemodel.IsNullable(n.typ) {
			return nil, nil
		}
		return nil, nullReference(n.pos, "operator "+n.op.String())
	}
	x := basic(deref(v))
	var out any
	if d, ok := x.(decimal.Decimal); ok {
		out, err = decimalUnary(n.op, d)
	} else if f, ok := unaryIntrinsics[unaryKey{n.op, reflect.TypeOf(x).Kind()}]; ok {
		out, err = f(x, n.checked)
	} else {
		return nil, runtimeError(types.ErrInvalidCast, n.pos, "operator %s is not defined for %T", n.op, v)
	}
	if err != nil {
		return nil, located(err, n.pos)
	}
	return wrap(retype(out, typemodel.NonNullable(n.typ)), n.typ), nil
}

// unaryOperatorNode calls a host unary operator method.
type unaryOperatorNode struct {
	pos     types.Position
	operand Node
	method  *typemodel.MemberDescriptor
}

func (n *unaryOperatorNode) Run(c *Closure) (any, error) {
	if err := c.step(n.pos); err != nil {
		return nil, err
	}
	v, err := n.operand.Run(c)
	if err != nil {
		return nil, err
	}
	m := n.method
	var arg reflect.Value
	if m.Static {
		arg = toValue(v, m.Parameters[0].Type)
	} else if arg, err = receiverFor(m.Func, v, n.pos); err != nil {
		return nil, err
	}
	return invoke(m.Func, []reflect.Value{arg}, false, m.ReturnsError, true, n.pos)
}
