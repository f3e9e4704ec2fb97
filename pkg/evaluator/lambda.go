package evaluator

import (
	"errors"
	"reflect"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/typemodel"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/types"
)

// lambdaNode creates a func value. The captured parameters of the
// enclosing closure are copied when the value is created; each call runs
// the body in a fresh closure holding its own arguments, then the
// captured values.
type lambdaNode struct {
	pos      types.Position
	typ      reflect.Type
	body     Node
	captures []int
}

func (n *lambdaNode) Run(c *Closure) (any, error) {
	if err := c.step(n.pos); err != nil {
		return nil, err
	}
	captured := make([]any, len(n.captures))
	for i, slot := range n.captures {
		captured[i] = c.Locals[slot]
	}
	ft := n.typ
	nparams := ft.NumIn()
	fn := reflect.MakeFunc(ft, func(args []reflect.Value) []reflect.Value {
		inner := c.child(c.Constants, nparams+len(captured))
		for i, a := range args {
			inner.Locals[i] = fromValue(a)
		}
		copy(inner.Locals[nparams:], captured)
		v, err := n.body.Run(inner)
		return lambdaResults(ft, v, err)
	})
	return fn.Interface(), nil
}

// lambdaResults shapes a body result into the results of ft. Errors
// travel in a trailing error result when ft has one. Otherwise the
// *types.Error is panicked; Program.Run recovers it, and a host calling an
// escaped lambda value can recover it too.
func lambdaResults(ft reflect.Type, v any, err error) []reflect.Value {
	nout := ft.NumOut()
	hasErr := nout > 0 && ft.Out(nout-1) == typemodel.ErrorType
	if err != nil && !hasErr {
		var te *types.Error
		if !errors.As(err, &te) {
			te = types.NewError(types.RuntimeError, types.ErrHostError, err.Error(), types.Position{}).WithCause(err)
		}
		panic(te)
	}
	out := make([]reflect.Value, nout)
	if hasErr {
		errV := reflect.Zero(typemodel.ErrorType)
		if err != nil {
			errV = reflect.ValueOf(&err).Elem()
		}
		out[nout-1] = errV
		nout--
	}
	if nout == 1 {
		if err != nil {
			out[0] = reflect.Zero(ft.Out(0))
		} else {
			out[0] = toValue(v, ft.Out(0))
		}
	}
	return out
}
