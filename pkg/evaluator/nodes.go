package evaluator

import (
	"reflect"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/typemodel"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/types"
)

// Node is an executable node. Nodes are immutable and safe to run from
// several goroutines at once.
type Node interface {
	Run(c *Closure) (any, error)
}

type constantNode struct {
	pos   types.Position
	index int
}

func (n *constantNode) Run(c *Closure) (any, error) {
	if err := c.step(n.pos); err != nil {
		return nil, err
	}
	return c.Constants[n.index], nil
}

type localNode struct {
	pos  types.Position
	slot int
}

func (n *localNode) Run(c *Closure) (any, error) {
	if err := c.step(n.pos); err != nil {
		return nil, err
	}
	return c.Locals[n.slot], nil
}

// fieldNode reads a struct field, following pointers.
type fieldNode struct {
	pos    types.Position
	target Node
	index  []int
	name   string
}

func (n *fieldNode) Run(c *Closure) (any, error) {
	if err := c.step(n.pos); err != nil {
		return nil, err
	}
	v, err := n.target.Run(c)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nullReference(n.pos, "reading "+n.name)
	}
	rv := reflect.Indirect(reflect.ValueOf(v))
	f, ferr := rv.FieldByIndexErr(n.index)
	if ferr != nil {
		return nil, nullReference(n.pos, "reading "+n.name)
	}
	return fromValue(f), nil
}

// hasValueNode and valueNode implement HasValue and Value of nullables.
type hasValueNode struct {
	pos    types.Position
	target Node
}

func (n *hasValueNode) Run(c *Closure) (any, error) {
	if err := c.step(n.pos); err != nil {
		return nil, err
	}
	v, err := n.target.Run(c)
	if err != nil {
		return nil, err
	}
	return v != nil, nil
}

type valueNode struct {
	pos    types.Position
	target Node
}

func (n *valueNode) Run(c *Closure) (any, error) {
	if err := c.step(n.pos); err != nil {
		return nil, err
	}
	v, err := n.target.Run(c)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, runtimeError(types.ErrNullReference, n.pos, "nullable object must have a value")
	}
	return deref(v), nil
}

type lenNode struct {
	pos     types.Position
	operand Node
}

func (n *lenNode) Run(c *Closure) (any, error) {
	if err := c.step(n.pos); err != nil {
		return nil, err
	}
	v, err := n.operand.Run(c)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nullReference(n.pos, "reading Length")
	}
	return int32(reflect.ValueOf(v).Len()), nil
}

// callNode calls a host method or static func. For instance methods the
// receiver is the first argument of fn.
type callNode struct {
	pos          types.Position
	target       Node
	fn           reflect.Value
	params       []reflect.Type
	args         []Node
	spread       bool
	returnsError bool
	hasResult    bool
}

func (n *callNode) Run(c *Closure) (any, error) {
	if err := c.step(n.pos); err != nil {
		return nil, err
	}
	in := make([]reflect.Value, 0, len(n.args)+1)
	if n.target != nil {
		recv, err := n.target.Run(c)
		if err != nil {
			return nil, err
		}
		rv, err := receiverFor(n.fn, recv, n.pos)
		if err != nil {
			return nil, err
		}
		in = append(in, rv)
	}
	for i, a := range n.args {
		v, err := a.Run(c)
		if err != nil {
			return nil, err
		}
		in = append(in, toValue(v, n.params[i]))
	}
	v, err := invoke(n.fn, in, n.spread, n.returnsError, n.hasResult, n.pos)
	return v, err
}

// toStringNode is the built-in ToString of every value.
type toStringNode struct {
	pos    types.Position
	target Node
}

func (n *toStringNode) Run(c *Closure) (any, error) {
	if err := c.step(n.pos); err != nil {
		return nil, err
	}
	v, err := n.target.Run(c)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nullReference(n.pos, "calling ToString")
	}
	return ToString(v), nil
}

// invokeNode calls a func value.
type invokeNode struct {
	pos          types.Position
	target       Node
	params       []reflect.Type
	args         []Node
	spread       bool
	returnsError bool
	hasResult    bool
}

func (n *invokeNode) Run(c *Closure) (any, error) {
	if err := c.step(n.pos); err != nil {
		return nil, err
	}
	f, err := n.target.Run(c)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, nullReference(n.pos, "invocation")
	}
	in := make([]reflect.Value, len(n.args))
	for i, a := range n.args {
		v, err := a.Run(c)
		if err != nil {
			return nil, err
		}
		in[i] = toValue(v, n.params[i])
	}
	return invoke(reflect.ValueOf(f), in, n.spread, n.returnsError, n.hasResult, n.pos)
}

// indexNode applies native slice, array, string or map indexing.
type indexNode struct {
	pos    types.Position
	target Node
	key    Node
	keyT   reflect.Type
}

func (n *indexNode) Run(c *Closure) (any, error) {
	if err := c.step(n.pos); err != nil {
		return nil, err
	}
	v, err := n.target.Run(c)
	if err != nil {
		return nil, err
	}
	k, err := n.key.Run(c)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nullReference(n.pos, "indexing")
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Map {
		e := rv.MapIndex(toValue(k, n.keyT))
		if !e.IsValid() {
			return nil, runtimeError(types.ErrIndexOutOfRange, n.pos, "key %v was not present", k)
		}
		return fromValue(e), nil
	}
	i := reflect.ValueOf(k).Int()
	if i < 0 || i >= int64(rv.Len()) {
		return nil, runtimeError(types.ErrIndexOutOfRange, n.pos, "index %d is out of range for length %d", i, rv.Len())
	}
	return fromValue(rv.Index(int(i))), nil
}

type conditionalNode struct {
	pos     types.Position
	test    Node
	ifTrue  Node
	ifFalse Node
}

func (n *conditionalNode) Run(c *Closure) (any, error) {
	if err := c.step(n.pos); err != nil {
		return nil, err
	}
	t, err := n.test.Run(c)
	if err != nil {
		return nil, err
	}
	if b, _ := t.(bool); b {
		return n.ifTrue.Run(c)
	}
	return n.ifFalse.Run(c)
}

// convertNode applies a built-in conversion, after an optional host
// conversion func.
type convertNode struct {
	pos     types.Position
	operand Node
	to      reflect.Type
	checked bool
	method  *typemodel.MemberDescriptor
	param   reflect.Type
}

func (n *convertNode) Run(c *Closure) (any, error) {
	if err := c.step(n.pos); err != nil {
		return nil, err
	}
	v, err := n.operand.Run(c)
	if err != nil {
		return nil, err
	}
	if m := n.method; m != nil {
		var arg reflect.Value
		if m.Static {
			if v == nil && !typemodel.CanBeNil(n.param) {
				return nil, nullReference(n.pos, "conversion")
			}
			arg = toValue(v, n.param)
		} else if arg, err = receiverFor(m.Func, v, n.pos); err != nil {
			return nil, err
		}
		if v, err = invoke(m.Func, []reflect.Value{arg}, false, m.ReturnsError, true, n.pos); err != nil {
			return nil, err
		}
	}
	out, err := typemodel.Convert(v, n.to, n.checked)
	if err != nil {
		return nil, located(err, n.pos)
	}
	return out, nil
}

type typeIsNode struct {
	pos     types.Position
	operand Node
	target  reflect.Type
}

func (n *typeIsNode) Run(c *Closure) (any, error) {
	if err := c.step(n.pos); err != nil {
		return nil, err
	}
	v, err := n.operand.Run(c)
	if err != nil {
		return nil, err
	}
	_, ok := typemodel.Assert(deref(v), n.target)
	return ok, nil
}

type typeAsNode struct {
	pos     types.Position
	operand Node
	target  reflect.Type
}

func (n *typeAsNode) Run(c *Closure) (any, error) {
	if err := c.step(n.pos); err != nil {
		return nil, err
	}
	v, err := n.operand.Run(c)
	if err != nil {
		return nil, err
	}
	out, ok := typemodel.Assert(deref(v), n.target)
	if !ok {
		return nil, nil
	}
	return out, nil
}

// newNode constructs a zero value, an empty slice or map, or calls a
// registered constructor.
type newNode struct {
	pos    types.Position
	typ    reflect.Type
	native typemodel.Native
	call   *callNode
	size   Node
}

func (n *newNode) Run(c *Closure) (any, error) {
	if err := c.step(n.pos); err != nil {
		return nil, err
	}
	switch n.native {
	case typemodel.NativeZero:
		if n.typ.Kind() == reflect.Pointer {
			return reflect.New(n.typ.Elem()).Interface(), nil
		}
		return reflect.Zero(n.typ).Interface(), nil
	case typemodel.NativeMake:
		size := 0
		if n.size != nil {
			v, err := n.size.Run(c)
			if err != nil {
				return nil, err
			}
			if size = int(reflect.ValueOf(v).Int()); size < 0 {
				return nil, runtimeError(types.ErrIndexOutOfRange, n.pos, "capacity %d is negative", size)
			}
		}
		if n.typ.Kind() == reflect.Map {
			return reflect.MakeMapWithSize(n.typ, size).Interface(), nil
		}
		return reflect.MakeSlice(n.typ, 0, size).Interface(), nil
	}
	return n.call.Run(c)
}

// arrayNode builds a slice from items, or zero-filled nested slices from
// bounds.
type arrayNode struct {
	pos    types.Position
	typ    reflect.Type
	items  []Node
	bounds []Node
}

func (n *arrayNode) Run(c *Closure) (any, error) {
	if err := c.step(n.pos); err != nil {
		return nil, err
	}
	if n.bounds != nil {
		sizes := make([]int, len(n.bounds))
		for i, b := range n.bounds {
			v, err := b.Run(c)
			if err != nil {
				return nil, err
			}
			if sizes[i] = int(reflect.ValueOf(v).Int()); sizes[i] < 0 {
				return nil, runtimeError(types.ErrOverflow, n.pos, "array size %d is negative", sizes[i])
			}
		}
		return makeNested(n.typ, sizes).Interface(), nil
	}
	out := reflect.MakeSlice(n.typ, len(n.items), len(n.items))
	elem := n.typ.Elem()
	for i, item := range n.items {
		v, err := item.Run(c)
		if err != nil {
			return nil, err
		}
		out.Index(i).Set(toValue(v, elem))
	}
	return out.Interface(), nil
}

func makeNested(t reflect.Type, sizes []int) reflect.Value {
	s := reflect.MakeSlice(t, sizes[0], sizes[0])
	if len(sizes) > 1 {
		for i := range sizes[0] {
			s.Index(i).Set(makeNested(t.Elem(), sizes[1:]))
		}
	}
	return s
}
