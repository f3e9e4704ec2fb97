package binder

import (
	"reflect"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/syntax"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/typemodel"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/types"
)

// lambdaResult returns the value type of a func type: its only result, or
// the first of a (value, error) pair. Funcs without results yield nil.
func lambdaResult(ft reflect.Type) (reflect.Type, bool) {
	switch ft.NumOut() {
	case 0:
		return nil, true
	case 1:
		return ft.Out(0), true
	case 2:
		return ft.Out(0), ft.Out(1) == typemodel.ErrorType
	}
	return nil, false
}

// bindLambda binds a lambda against the func type it is expected to
// have. An Expression[F] expectation quotes the lambda instead.
func (c *BindingContext) bindLambda(n syntax.Node, expected reflect.Type) (Expr, error) {
	pos := n.Position()
	if ft, ok := quotedFunc(expected); ok {
		l, err := c.lambdaOf(n, ft)
		if err != nil {
			return nil, err
		}
		return &QuoteExpr{node: node{typ: expected, pos: pos}, Lambda: l}, nil
	}
	return c.lambdaOf(n, expected)
}

func (c *BindingContext) lambdaOf(n syntax.Node, ft reflect.Type) (*LambdaExpr, error) {
	pos := n.Position()
	if ft == nil {
		return nil, bindError(types.ErrInvalidLambda, pos, "lambda is not used where a func type is expected")
	}
	if ft.Kind() != reflect.Func || ft.IsVariadic() {
		return nil, bindError(types.ErrInvalidLambda, pos, "lambda cannot be converted to %s", ft)
	}
	names := n.List(syntax.KeyParameters)
	if len(names) != ft.NumIn() {
		return nil, bindError(types.ErrInvalidLambda, pos,
			"lambda takes %d parameters but %s takes %d", len(names), ft, ft.NumIn())
	}
	result, ok := lambdaResult(ft)
	if !ok {
		return nil, bindError(types.ErrInvalidLambda, pos, "lambda cannot produce the results of %s", ft)
	}
	params := make([]Parameter, len(names))
	for i, v := range names {
		name, _ := v.(string)
		if name == "" {
			return nil, bindError(types.ErrInvalidCanonicalNode, pos, "lambda parameter %d has no name", i)
		}
		params[i] = Parameter{Name: name, Type: ft.In(i)}
	}
	bodyNode, ok := n.Child(syntax.KeyBody)
	if !ok {
		return nil, bindError(types.ErrInvalidCanonicalNode, pos, "lambda without a body")
	}

	inner := c.Nested(params, result)
	body, err := inner.bindExpected(bodyNode, result)
	if err != nil {
		return nil, err
	}
	if result != nil {
		if body, err = inner.convert(body, result); err != nil {
			return nil, err
		}
	}
	c.logger.Debug("lambda bound", "type", ft.String(), "captures", len(inner.captures))
	return &LambdaExpr{
		node:       node{typ: ft, pos: pos},
		Parameters: params,
		Body:       body,
		Captures:   inner.captures,
	}, nil
}

// bindQuote binds a quoted lambda. The expected type must be an
// Expression of a func type.
func (c *BindingContext) bindQuote(n syntax.Node, expected reflect.Type) (Expr, error) {
	pos := n.Position()
	ln, ok := n.Child(syntax.KeyExpression)
	if !ok || ln.Kind() != syntax.KindLambda {
		return nil, bindError(types.ErrInvalidCanonicalNode, pos, "quote without a lambda")
	}
	ft, ok := quotedFunc(expected)
	if !ok {
		return nil, bindError(types.ErrInvalidLambda, pos, "quoted lambda cannot be converted to %s", typeName(expected))
	}
	l, err := c.lambdaOf(ln, ft)
	if err != nil {
		return nil, err
	}
	return &QuoteExpr{node: node{typ: expected, pos: pos}, Lambda: l}, nil
}
