// Package binder turns canonical expression trees into typed expression
// trees.
//
// Binding resolves every identifier against the parameters, the optional
// global value and the type resolver, selects member overloads, inserts
// implicit conversions and numeric promotions, and desugars
// null-conditional chains. A bound tree is immutable and can be compiled
// any number of times.
//
//	expr, err := binder.Bind(node, []binder.Parameter{{Name: "x", Type: reflect.TypeFor[int32]()}},
//	    reflect.TypeFor[int32](), typemodel.NewKnownTypes())
package binder

import (
	"errors"
	"reflect"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/syntax"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/typemodel"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/types"
)

var noPos types.Position

func bindError(code types.ErrorCode, pos types.Position, format string, args ...any) *types.Error {
	return types.Errorf(types.BindError, code, pos, format, args...)
}

// Bind binds a canonical tree with the given parameters. A non-nil result
// type is the type the expression must produce; the body is converted to
// it when needed.
func Bind(n syntax.Node, params []Parameter, result reflect.Type, resolver typemodel.Resolver, opts ...Option) (Expr, error) {
	return NewContext(params, result, resolver, opts...).Bind(n)
}

// Bind binds a root expression in c.
func (c *BindingContext) Bind(n syntax.Node) (Expr, error) {
	e, err := c.bindExpected(n, c.resultType)
	if err != nil {
		return nil, err
	}
	if c.resultType == nil || e.Type() == c.resultType {
		return e, nil
	}
	return c.convertResult(e, c.resultType)
}

// convertResult converts the body of a root expression to the declared
// result type, implicitly when possible and otherwise with a checked cast.
func (c *BindingContext) convertResult(e Expr, t reflect.Type) (Expr, error) {
	if out, err := c.convert(e, t); err == nil {
		return out, nil
	}
	from := e.Type()
	if from != nil && typemodel.CanConvertExplicit(from, t) {
		return &ConvertExpr{node: node{typ: t, pos: e.Pos()}, Operand: e, Checked: true}, nil
	}
	if from != nil {
		if m := c.registry.FindConversion(from, t, false); m != nil {
			return &ConvertExpr{node: node{typ: t, pos: e.Pos()}, Operand: e, Checked: true, Method: m}, nil
		}
	}
	return nil, bindError(types.ErrTypeMismatch, e.Pos(),
		"expression of type %s cannot be converted to the result type %s", typeName(from), t)
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "null"
	}
	return t.String()
}

// bindExpected binds n where a value of type expected is wanted. Only
// lambdas and quotes depend on it; other nodes bind on their own.
func (c *BindingContext) bindExpected(n syntax.Node, expected reflect.Type) (Expr, error) {
	switch n.Kind() {
	case syntax.KindLambda:
		return c.bindLambda(n, expected)
	case syntax.KindQuote:
		return c.bindQuote(n, expected)
	case syntax.KindGroup:
		if inner, ok := n.Child(syntax.KeyExpression); ok && isDeferred(inner) {
			return c.bindExpected(inner, expected)
		}
	}
	return c.bind(n)
}

func isDeferred(n syntax.Node) bool {
	switch n.Kind() {
	case syntax.KindLambda, syntax.KindQuote:
		return true
	case syntax.KindGroup:
		inner, ok := n.Child(syntax.KeyExpression)
		return ok && isDeferred(inner)
	}
	return false
}

var binaryKinds = map[string]struct {
	op      BinaryOp
	checked bool
}{
	syntax.KindAdd:                {OpAdd, false},
	syntax.KindAddChecked:         {OpAdd, true},
	syntax.KindSubtract:           {OpSubtract, false},
	syntax.KindSubtractChecked:    {OpSubtract, true},
	syntax.KindMultiply:           {OpMultiply, false},
	syntax.KindMultiplyChecked:    {OpMultiply, true},
	syntax.KindDivide:             {OpDivide, false},
	syntax.KindModulo:             {OpModulo, false},
	syntax.KindLeftShift:          {OpLeftShift, false},
	syntax.KindRightShift:         {OpRightShift, false},
	syntax.KindLessThan:           {OpLessThan, false},
	syntax.KindLessThanOrEqual:    {OpLessThanOrEqual, false},
	syntax.KindGreaterThan:        {OpGreaterThan, false},
	syntax.KindGreaterThanOrEqual: {OpGreaterThanOrEqual, false},
	syntax.KindEqual:              {OpEqual, false},
	syntax.KindNotEqual:           {OpNotEqual, false},
	syntax.KindAnd:                {OpAnd, false},
	syntax.KindOr:                 {OpOr, false},
	syntax.KindExclusiveOr:        {OpExclusiveOr, false},
	syntax.KindAndAlso:            {OpAndAlso, false},
	syntax.KindOrElse:             {OpOrElse, false},
	syntax.KindCoalesce:           {OpCoalesce, false},
}

// bind dispatches on the node kind.
func (c *BindingContext) bind(n syntax.Node) (Expr, error) {
	if n == nil {
		return nil, bindError(types.ErrInvalidCanonicalNode, noPos, "missing expression")
	}
	e, err := c.dispatch(n)
	if err != nil {
		var te *types.Error
		if errors.As(err, &te) {
			te.WithPosition(n.Position())
		}
		return nil, err
	}
	return e, nil
}

func (c *BindingContext) dispatch(n syntax.Node) (Expr, error) {
	kind := n.Kind()
	if b, ok := binaryKinds[kind]; ok {
		return c.bindBinary(n, b.op, b.checked)
	}
	switch kind {
	case syntax.KindConstant:
		return c.bindConstant(n)
	case syntax.KindPropertyOrField, syntax.KindInvoke, syntax.KindIndex:
		return c.bindChain(n)
	case syntax.KindGroup:
		inner, ok := n.Child(syntax.KeyExpression)
		if !ok {
			return nil, bindError(types.ErrInvalidCanonicalNode, n.Position(), "group without an expression")
		}
		return c.bind(inner)
	case syntax.KindConvert, syntax.KindConvertChecked:
		return c.bindConvert(n, kind == syntax.KindConvertChecked)
	case syntax.KindTypeIs:
		return c.bindTypeIs(n)
	case syntax.KindTypeAs:
		return c.bindTypeAs(n)
	case syntax.KindTypeOf:
		t, err := c.resolveTypeAt(n, syntax.KeyType)
		if err != nil {
			return nil, err
		}
		return constant(t, typemodel.TypeType, n.Position()), nil
	case syntax.KindDefault:
		t, err := c.resolveTypeAt(n, syntax.KeyType)
		if err != nil {
			return nil, err
		}
		return &DefaultExpr{node: node{typ: t, pos: n.Position()}}, nil
	case syntax.KindNegate:
		return c.bindUnary(n, OpNegate, false)
	case syntax.KindNegateChecked:
		return c.bindUnary(n, OpNegate, true)
	case syntax.KindUnaryPlus:
		return c.bindUnary(n, OpUnaryPlus, false)
	case syntax.KindNot:
		return c.bindUnary(n, OpNot, false)
	case syntax.KindComplement:
		return c.bindUnary(n, OpComplement, false)
	case syntax.KindCondition:
		return c.bindCondition(n)
	case syntax.KindLambda:
		return c.bindLambda(n, nil)
	case syntax.KindQuote:
		return c.bindQuote(n, nil)
	case syntax.KindNew:
		return c.bindNew(n)
	case syntax.KindNewArrayInit:
		return c.bindNewArrayInit(n)
	case syntax.KindNewArrayBounds:
		return c.bindNewArrayBounds(n)
	case syntax.KindMemberInit:
		return c.bindMemberInit(n)
	case syntax.KindListInit:
		return c.bindListInit(n)
	}
	return nil, bindError(types.ErrInvalidCanonicalNode, n.Position(), "unknown expression kind %q", kind)
}

func (c *BindingContext) bindConstant(n syntax.Node) (Expr, error) {
	pos := n.Position()
	tn, ok := n.Child(syntax.KeyType)
	if !ok {
		return constant(nil, nil, pos), nil
	}
	t, err := c.resolveType(tn)
	if err != nil {
		return nil, err
	}
	raw, _ := n.String(syntax.KeyValue)
	name, _ := tn.String(syntax.KeyPropertyOrField)
	v, err := parseConstant(raw, name, t)
	if err != nil {
		return nil, bindError(types.ErrInvalidCanonicalNode, pos, "invalid %s constant %q: %v", t, raw, err).WithCause(err)
	}
	return constant(v, t, pos), nil
}

// parseConstant decodes the string form of a constant. Character
// constants hold the character itself.
func parseConstant(raw, typeName string, t reflect.Type) (any, error) {
	if typeName == "rune" {
		rs := []rune(raw)
		if len(rs) != 1 {
			return nil, errors.New("a character constant must hold exactly one character")
		}
		return reflect.ValueOf(rs[0]).Convert(t).Interface(), nil
	}
	switch {
	case t.Kind() == reflect.String:
		return reflect.ValueOf(raw).Convert(t).Interface(), nil
	case t.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(b).Convert(t).Interface(), nil
	case typemodel.IsDecimal(t):
		return decimal.NewFromString(raw)
	case typemodel.IsFloat(t):
		f, err := strconv.ParseFloat(raw, t.Bits())
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(f).Convert(t).Interface(), nil
	case typemodel.IsUnsigned(t):
		u, err := strconv.ParseUint(raw, 10, t.Bits())
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(u).Convert(t).Interface(), nil
	case typemodel.IsInteger(t):
		i, err := strconv.ParseInt(raw, 10, t.Bits())
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(i).Convert(t).Interface(), nil
	}
	return nil, errors.New("constants of this type cannot be written as text")
}

func (c *BindingContext) checkRestricted(t reflect.Type, member string, pos types.Position) error {
	if c.allowRefl || !typemodel.IsRestricted(t) {
		return nil
	}
	return bindError(types.ErrRestrictedMember, pos,
		"member %s of %s is not accessible to expressions", member, t)
}

func source(e Expr) typemodel.Source {
	if k, ok := e.(*ConstantExpr); ok {
		return typemodel.Source{Type: k.typ, IsConstant: true, Value: k.Value}
	}
	return typemodel.Source{Type: e.Type()}
}

// quality ranks the implicit conversion of e to t.
func (c *BindingContext) quality(e Expr, t reflect.Type) (typemodel.Quality, *typemodel.MemberDescriptor) {
	return c.registry.Classify(source(e), t)
}

// convert converts e to t implicitly.
func (c *BindingContext) convert(e Expr, t reflect.Type) (Expr, error) {
	if e.Type() == t {
		return e, nil
	}
	q, m := c.quality(e, t)
	if q == typemodel.QualityIncompatible {
		return nil, bindError(types.ErrInvalidConversion, e.Pos(),
			"cannot implicitly convert %s to %s", typeName(e.Type()), t)
	}
	return applyConversion(e, t, m), nil
}

// applyConversion wraps e in a conversion to t. Constants are converted
// in place.
func applyConversion(e Expr, t reflect.Type, m *typemodel.MemberDescriptor) Expr {
	if e.Type() == t {
		return e
	}
	if k, ok := e.(*ConstantExpr); ok && m == nil {
		if v, err := typemodel.Convert(k.Value, t, true); err == nil {
			return constant(v, t, k.pos)
		}
	}
	return &ConvertExpr{node: node{typ: t, pos: e.Pos()}, Operand: e, Method: m}
}
