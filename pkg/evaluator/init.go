package evaluator

import (
	"reflect"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/binder"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/typemodel"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/types"
)

// bindingNode is one compiled item of an object initializer.
type bindingNode struct {
	pos      types.Position
	kind     binder.BindingKind
	index    []int
	name     string
	value    Node
	bindings []bindingNode
	inits    []elementNode
}

// elementNode adds one element to a collection. add is invalid for native
// slice append and map assignment.
type elementNode struct {
	add          reflect.Value
	params       []reflect.Type
	spread       bool
	returnsError bool
	args         []Node
}

// memberInitNode constructs a value and assigns its fields. The object
// being initialized is held addressable so that nested bindings and
// pointer-receiver Add methods update it in place.
type memberInitNode struct {
	pos      types.Position
	create   Node
	bindings []bindingNode
}

func (n *memberInitNode) Run(c *Closure) (any, error) {
	if err := c.step(n.pos); err != nil {
		return nil, err
	}
	v, err := n.create.Run(c)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nullReference(n.pos, "object initializer")
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if err := applyBindings(c, rv.Elem(), n.bindings); err != nil {
			return nil, err
		}
		return v, nil
	}
	p := reflect.New(rv.Type())
	p.Elem().Set(rv)
	if err := applyBindings(c, p.Elem(), n.bindings); err != nil {
		return nil, err
	}
	return p.Elem().Interface(), nil
}

func applyBindings(c *Closure, target reflect.Value, bindings []bindingNode) error {
	for i := range bindings {
		b := &bindings[i]
		f, err := target.FieldByIndexErr(b.index)
		if err != nil {
			return nullReference(b.pos, "assigning "+b.name)
		}
		switch b.kind {
		case binder.BindAssign:
			v, err := b.value.Run(c)
			if err != nil {
				return err
			}
			f.Set(toValue(v, f.Type()))
		case binder.BindMember:
			inner := f
			if f.Kind() == reflect.Pointer {
				if f.IsNil() {
					return nullReference(b.pos, "initializing "+b.name)
				}
				inner = f.Elem()
			}
			if err := applyBindings(c, inner, b.bindings); err != nil {
				return err
			}
		case binder.BindList:
			if _, err := addElements(c, f, b.inits, b.pos); err != nil {
				return err
			}
		}
	}
	return nil
}

// addElements runs collection initializer items against coll and returns
// the resulting collection. A settable coll is updated in place.
func addElements(c *Closure, coll reflect.Value, inits []elementNode, pos types.Position) (reflect.Value, error) {
	for i := range inits {
		e := &inits[i]
		args := make([]any, len(e.args))
		for j, a := range e.args {
			v, err := a.Run(c)
			if err != nil {
				return coll, err
			}
			args[j] = v
		}
		switch {
		case e.add.IsValid():
			if typemodel.CanBeNil(coll.Type()) && coll.IsNil() {
				return coll, nullReference(pos, "calling Add")
			}
			in := make([]reflect.Value, 0, len(args)+1)
			in = append(in, addressable(e.add, coll))
			for j, v := range args {
				in = append(in, toValue(v, e.params[j]))
			}
			if _, err := invoke(e.add, in, e.spread, e.returnsError, false, pos); err != nil {
				return coll, err
			}
		case coll.Kind() == reflect.Slice:
			grown := reflect.Append(coll, toValue(args[0], coll.Type().Elem()))
			if coll.CanSet() {
				coll.Set(grown)
			} else {
				coll = grown
			}
		case coll.Kind() == reflect.Map:
			if coll.IsNil() {
				m := reflect.MakeMap(coll.Type())
				if coll.CanSet() {
					coll.Set(m)
				} else {
					coll = m
				}
			}
			coll.SetMapIndex(toValue(args[0], coll.Type().Key()), toValue(args[1], coll.Type().Elem()))
		}
	}
	return coll, nil
}

// listInitNode constructs a collection and adds elements to it.
type listInitNode struct {
	pos    types.Position
	create Node
	inits  []elementNode
}

func (n *listInitNode) Run(c *Closure) (any, error) {
	if err := c.step(n.pos); err != nil {
		return nil, err
	}
	v, err := n.create.Run(c)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nullReference(n.pos, "collection initializer")
	}
	rv := reflect.ValueOf(v)
	coll := rv
	if rv.Kind() != reflect.Pointer && rv.Kind() != reflect.Slice && rv.Kind() != reflect.Map {
		p := reflect.New(rv.Type())
		p.Elem().Set(rv)
		coll = p.Elem()
	}
	out, err := addElements(c, coll, n.inits, n.pos)
	if err != nil {
		return nil, err
	}
	return out.Interface(), nil
}
