package syntax

import (
	"fmt"
	"maps"
	"strconv"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/parser"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/types"
)

// DefaultAliases maps built-in type keywords to the names the type resolver
// knows them by.
var DefaultAliases = map[string]string{
	"bool":    "bool",
	"byte":    "uint8",
	"sbyte":   "int8",
	"short":   "int16",
	"ushort":  "uint16",
	"int":     "int32",
	"uint":    "uint32",
	"long":    "int64",
	"ulong":   "uint64",
	"float":   "float32",
	"double":  "float64",
	"decimal": "decimal",
	"char":    "rune",
	"string":  "string",
	"object":  "any",
	"nint":    "int",
	"nuint":   "uint",
}

// Option configures canonicalization.
type Option func(*options)

type options struct {
	aliases map[string]string
}

// WithAliases adds keyword aliases on top of DefaultAliases. Mapping a
// keyword to "" removes it.
func WithAliases(aliases map[string]string) Option {
	return func(o *options) {
		for k, v := range aliases {
			if v == "" {
				delete(o.aliases, k)
				continue
			}
			o.aliases[k] = v
		}
	}
}

// canonicalizer carries the alias table through one conversion.
type canonicalizer struct {
	aliases map[string]string
}

// Canonicalize converts a parse tree into a canonical node. checked selects
// overflow checking for arithmetic outside any checked/unchecked scope.
func Canonicalize(root *parser.Node, checked bool, opts ...Option) (Node, error) {
	o := options{aliases: maps.Clone(DefaultAliases)}
	for _, opt := range opts {
		opt(&o)
	}
	if root == nil {
		return nil, types.NewError(types.ParseError, types.ErrInvalidTree, "nil parse tree", types.Position{})
	}
	c := &canonicalizer{aliases: o.aliases}
	return c.expression(root, checked)
}

var binaryKinds = map[parser.TokenKind][2]string{
	parser.TokenPlus:         {KindAdd, KindAddChecked},
	parser.TokenMinus:        {KindSubtract, KindSubtractChecked},
	parser.TokenMult:         {KindMultiply, KindMultiplyChecked},
	parser.TokenDiv:          {KindDivide, KindDivide},
	parser.TokenMod:          {KindModulo, KindModulo},
	parser.TokenShiftLeft:    {KindLeftShift, KindLeftShift},
	parser.TokenShiftRight:   {KindRightShift, KindRightShift},
	parser.TokenLess:         {KindLessThan, KindLessThan},
	parser.TokenLessEqual:    {KindLessThanOrEqual, KindLessThanOrEqual},
	parser.TokenGreater:      {KindGreaterThan, KindGreaterThan},
	parser.TokenGreaterEqual: {KindGreaterThanOrEqual, KindGreaterThanOrEqual},
	parser.TokenEqual:        {KindEqual, KindEqual},
	parser.TokenNotEqual:     {KindNotEqual, KindNotEqual},
	parser.TokenBitAnd:       {KindAnd, KindAnd},
	parser.TokenBitOr:        {KindOr, KindOr},
	parser.TokenXor:          {KindExclusiveOr, KindExclusiveOr},
	parser.TokenAndAlso:      {KindAndAlso, KindAndAlso},
	parser.TokenOrElse:       {KindOrElse, KindOrElse},
	parser.TokenCoalesce:     {KindCoalesce, KindCoalesce},
}

func pick(kinds [2]string, checked bool) string {
	if checked {
		return kinds[1]
	}
	return kinds[0]
}

func position(n *parser.Node) string {
	return strconv.Itoa(n.Token.Line) + ":" + strconv.Itoa(n.Token.Column)
}

func (c *canonicalizer) node(n *parser.Node, kind string) Node {
	return Node{KeyExpressionKind: kind, KeyPosition: position(n)}
}

func invalid(n *parser.Node, format string, args ...any) error {
	return types.Errorf(types.ParseError, types.ErrInvalidTree, n.Position(), format, args...).WithToken(n.Token.Value)
}

func (c *canonicalizer) expression(n *parser.Node, checked bool) (Node, error) {
	if n == nil {
		return nil, types.NewError(types.ParseError, types.ErrInvalidTree, "missing operand", types.Position{})
	}
	switch n.Kind {
	case parser.NodeNumber:
		return c.number(n, false)
	case parser.NodeLiteral:
		return c.literal(n)
	case parser.NodeIdentifier:
		return c.identifier(n, nil)
	case parser.NodeMember:
		return c.member(n, checked)
	case parser.NodeCall:
		return c.call(n, checked)
	case parser.NodeIndex:
		return c.index(n, checked)
	case parser.NodeUnary:
		return c.unary(n, checked)
	case parser.NodeBinary:
		return c.binary(n, checked)
	case parser.NodeCondition:
		return c.condition(n, checked)
	case parser.NodeGroup:
		return c.unaryOperand(n, KindGroup, KeyExpression, checked)
	case parser.NodeCast:
		return c.cast(n, checked)
	case parser.NodeTypeIs, parser.NodeTypeAs:
		return c.typeBinary(n, checked)
	case parser.NodeLambda:
		return c.lambda(n, checked)
	case parser.NodeTypeOf, parser.NodeDefault:
		return c.typeOperator(n)
	case parser.NodeChecked:
		return c.scope(n, true)
	case parser.NodeUnchecked:
		return c.scope(n, false)
	case parser.NodeNew:
		return c.newObject(n, checked)
	case parser.NodeNewArray:
		return c.newArray(n, checked)
	default:
		return nil, invalid(n, "unexpected %s node in expression position", n.Kind)
	}
}

func (c *canonicalizer) literal(n *parser.Node) (Node, error) {
	value, quote, err := parser.Unquote(n.Value)
	if err != nil {
		return nil, types.NewError(types.ParseError, types.ErrInvalidTree, err.Error(), n.Position()).WithCause(err)
	}
	typeName := "string"
	if quote == '\'' {
		if _, err := parser.UnquoteChar(n.Value); err != nil {
			return nil, types.NewError(types.ParseError, types.ErrInvalidTree, err.Error(), n.Position()).WithCause(err)
		}
		typeName = "rune"
	}
	out := c.node(n, KindConstant)
	out[KeyType] = c.simpleType(n, typeName)
	out[KeyValue] = value
	return out, nil
}

func (c *canonicalizer) number(n *parser.Node, negative bool) (Node, error) {
	lit, err := ParseNumber(n.Value, negative)
	if err != nil {
		return nil, types.NewError(types.ParseError, types.ErrInvalidNumber, err.Error(), n.Position()).WithToken(n.Value)
	}
	out := c.node(n, KindConstant)
	out[KeyType] = c.simpleType(n, lit.Type)
	out[KeyValue] = lit.Value
	return out, nil
}

func (c *canonicalizer) simpleType(n *parser.Node, name string) Node {
	t := c.node(n, KindPropertyOrField)
	t[KeyPropertyOrField] = name
	return t
}

func (c *canonicalizer) identifier(n *parser.Node, target Node) (Node, error) {
	if target == nil && n.Len() == 0 {
		switch n.Value {
		case "true", "false":
			out := c.node(n, KindConstant)
			out[KeyType] = c.simpleType(n, "bool")
			out[KeyValue] = n.Value
			return out, nil
		case "null":
			out := c.node(n, KindConstant)
			out[KeyType] = nil
			out[KeyValue] = nil
			return out, nil
		}
	}
	out := c.node(n, KindPropertyOrField)
	name := n.Value
	if target == nil && n.Len() == 0 {
		if alias, ok := c.aliases[name]; ok {
			name = alias
		}
	}
	out[KeyPropertyOrField] = name
	if target != nil {
		out[KeyExpression] = target
	}
	if n.Len() > 0 {
		args := Node{}
		for i, a := range n.Children() {
			t, err := c.typeRef(a)
			if err != nil {
				return nil, err
			}
			args[strconv.Itoa(i)] = t
		}
		out[KeyArguments] = args
	}
	return out, nil
}

func (c *canonicalizer) member(n *parser.Node, checked bool) (Node, error) {
	if n.Len() != 2 || n.Child(1).Kind != parser.NodeIdentifier {
		return nil, invalid(n, "member access needs a target and a name")
	}
	target, err := c.expression(n.Child(0), checked)
	if err != nil {
		return nil, err
	}
	out, err := c.identifier(n.Child(1), target)
	if err != nil {
		return nil, err
	}
	out[KeyPosition] = position(n)
	out[KeyUseNullPropagation] = n.Token.Kind == parser.TokenNullDot
	return out, nil
}

func (c *canonicalizer) arguments(n *parser.Node, args []*parser.Node, checked bool) (Node, error) {
	out := Node{}
	positional := 0
	named := false
	for _, a := range args {
		if a.Kind == parser.NodeNamedArgument {
			v, err := c.expression(a.Child(1), checked)
			if err != nil {
				return nil, err
			}
			if _, dup := out[a.Value]; dup {
				return nil, invalid(a, "duplicate named argument %q", a.Value)
			}
			out[a.Value] = v
			named = true
			continue
		}
		if named {
			return nil, invalid(a, "positional argument follows a named argument")
		}
		v, err := c.expression(a, checked)
		if err != nil {
			return nil, err
		}
		out[strconv.Itoa(positional)] = v
		positional++
	}
	return out, nil
}

func (c *canonicalizer) call(n *parser.Node, checked bool) (Node, error) {
	if n.Len() < 1 {
		return nil, invalid(n, "call without a target")
	}
	target, err := c.expression(n.Child(0), checked)
	if err != nil {
		return nil, err
	}
	args, err := c.arguments(n, n.Children()[1:], checked)
	if err != nil {
		return nil, err
	}
	out := c.node(n, KindInvoke)
	out[KeyExpression] = target
	out[KeyArguments] = args
	out[KeyUseNullPropagation] = false
	return out, nil
}

func (c *canonicalizer) index(n *parser.Node, checked bool) (Node, error) {
	if n.Len() < 2 {
		return nil, invalid(n, "indexer needs a target and at least one argument")
	}
	target, err := c.expression(n.Child(0), checked)
	if err != nil {
		return nil, err
	}
	args, err := c.arguments(n, n.Children()[1:], checked)
	if err != nil {
		return nil, err
	}
	out := c.node(n, KindIndex)
	out[KeyExpression] = target
	out[KeyArguments] = args
	out[KeyUseNullPropagation] = n.Token.Kind == parser.TokenNullBracket
	return out, nil
}

func (c *canonicalizer) unaryOperand(n *parser.Node, kind, key string, checked bool) (Node, error) {
	if n.Len() != 1 {
		return nil, invalid(n, "%s expects one operand, got %d", kind, n.Len())
	}
	operand, err := c.expression(n.Child(0), checked)
	if err != nil {
		return nil, err
	}
	out := c.node(n, kind)
	out[key] = operand
	return out, nil
}

func (c *canonicalizer) unary(n *parser.Node, checked bool) (Node, error) {
	switch n.Token.Kind {
	case parser.TokenMinus:
		// Fold the sign into a literal so that the minimum integer values
		// keep their natural type.
		if operand := n.Child(0); operand != nil && operand.Kind == parser.NodeNumber {
			if lit, err := ParseNumber(operand.Value, true); err == nil && lit.Negated {
				out := c.node(n, KindConstant)
				out[KeyType] = c.simpleType(operand, lit.Type)
				out[KeyValue] = lit.Value
				return out, nil
			}
		}
		if checked {
			return c.unaryOperand(n, KindNegateChecked, KeyExpression, checked)
		}
		return c.unaryOperand(n, KindNegate, KeyExpression, checked)
	case parser.TokenPlus:
		return c.unaryOperand(n, KindUnaryPlus, KeyExpression, checked)
	case parser.TokenNot:
		return c.unaryOperand(n, KindNot, KeyExpression, checked)
	case parser.TokenComplement:
		return c.unaryOperand(n, KindComplement, KeyExpression, checked)
	default:
		return nil, invalid(n, "unknown unary operator %q", n.Token.Value)
	}
}

func (c *canonicalizer) binary(n *parser.Node, checked bool) (Node, error) {
	kinds, ok := binaryKinds[n.Token.Kind]
	if !ok {
		return nil, invalid(n, "unknown binary operator %q", n.Token.Value)
	}
	if n.Len() != 2 {
		return nil, invalid(n, "binary operator %q expects two operands", n.Token.Value)
	}
	left, err := c.expression(n.Child(0), checked)
	if err != nil {
		return nil, err
	}
	right, err := c.expression(n.Child(1), checked)
	if err != nil {
		return nil, err
	}
	out := c.node(n, pick(kinds, checked))
	out[KeyLeft] = left
	out[KeyRight] = right
	return out, nil
}

func (c *canonicalizer) condition(n *parser.Node, checked bool) (Node, error) {
	if n.Len() != 3 {
		return nil, invalid(n, "conditional expects three operands")
	}
	out := c.node(n, KindCondition)
	for i, key := range [...]string{KeyTest, KeyIfTrue, KeyIfFalse} {
		v, err := c.expression(n.Child(i), checked)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

func (c *canonicalizer) cast(n *parser.Node, checked bool) (Node, error) {
	if n.Len() != 2 {
		return nil, invalid(n, "cast expects a type and an operand")
	}
	t, err := c.typeRef(n.Child(0))
	if err != nil {
		return nil, err
	}
	operand, err := c.expression(n.Child(1), checked)
	if err != nil {
		return nil, err
	}
	out := c.node(n, pick([2]string{KindConvert, KindConvertChecked}, checked))
	out[KeyType] = t
	out[KeyExpression] = operand
	return out, nil
}

func (c *canonicalizer) typeBinary(n *parser.Node, checked bool) (Node, error) {
	if n.Len() != 2 {
		return nil, invalid(n, "type test expects an operand and a type")
	}
	operand, err := c.expression(n.Child(0), checked)
	if err != nil {
		return nil, err
	}
	t, err := c.typeRef(n.Child(1))
	if err != nil {
		return nil, err
	}
	kind := KindTypeIs
	if n.Kind == parser.NodeTypeAs {
		kind = KindTypeAs
	}
	out := c.node(n, kind)
	out[KeyExpression] = operand
	out[KeyType] = t
	return out, nil
}

func (c *canonicalizer) typeOperator(n *parser.Node) (Node, error) {
	if n.Len() != 1 {
		return nil, invalid(n, "%s expects a type", n.Token.Value)
	}
	t, err := c.typeRef(n.Child(0))
	if err != nil {
		return nil, err
	}
	kind := KindTypeOf
	if n.Kind == parser.NodeDefault {
		kind = KindDefault
	}
	out := c.node(n, kind)
	out[KeyType] = t
	return out, nil
}

func (c *canonicalizer) scope(n *parser.Node, checked bool) (Node, error) {
	if n.Len() != 1 {
		return nil, invalid(n, "%s expects one operand", n.Token.Value)
	}
	return c.expression(n.Child(0), checked)
}

func (c *canonicalizer) lambda(n *parser.Node, checked bool) (Node, error) {
	params, body := n.Child(0), n.Child(1)
	if n.Len() != 2 || params.Kind != parser.NodeArguments {
		return nil, invalid(n, "lambda expects a parameter list and a body")
	}
	names := make([]any, 0, params.Len())
	seen := make(map[string]bool, params.Len())
	for _, p := range params.Children() {
		if p.Kind != parser.NodeIdentifier || p.Len() != 0 {
			return nil, invalid(p, "lambda parameter must be an identifier")
		}
		if seen[p.Value] {
			return nil, invalid(p, "duplicate lambda parameter %q", p.Value)
		}
		seen[p.Value] = true
		names = append(names, p.Value)
	}
	b, err := c.expression(body, checked)
	if err != nil {
		return nil, err
	}
	out := c.node(n, KindLambda)
	out[KeyParameters] = names
	out[KeyBody] = b
	return out, nil
}

func (c *canonicalizer) newObject(n *parser.Node, checked bool) (Node, error) {
	if n.Len() < 2 {
		return nil, invalid(n, "new expects a type and arguments")
	}
	t, err := c.typeRef(n.Child(0))
	if err != nil {
		return nil, err
	}
	args, err := c.arguments(n, n.Child(1).Children(), checked)
	if err != nil {
		return nil, err
	}
	ctor := c.node(n, KindNew)
	ctor[KeyType] = t
	ctor[KeyArguments] = args
	init := n.Child(2)
	if init == nil {
		return ctor, nil
	}
	return c.initializer(n, ctor, init, checked)
}

// initializer wraps a construction with an object initializer (all items
// are Name = value) or a collection initializer (no item is an assignment).
func (c *canonicalizer) initializer(n *parser.Node, ctor Node, init *parser.Node, checked bool) (Node, error) {
	if isObjectInitializer(init) {
		bindings, err := c.bindings(init, checked)
		if err != nil {
			return nil, err
		}
		out := c.node(n, KindMemberInit)
		out[KeyExpression] = ctor
		out[KeyBindings] = bindings
		return out, nil
	}
	inits, err := c.elementInits(init, checked)
	if err != nil {
		return nil, err
	}
	out := c.node(n, KindListInit)
	out[KeyExpression] = ctor
	out[KeyInitializers] = inits
	return out, nil
}

func isObjectInitializer(init *parser.Node) bool {
	return init.Len() > 0 && init.Child(0).Kind == parser.NodeAssignment
}

// bindings converts Name = value items into member bindings. A nested
// initializer binds into the member's existing value.
func (c *canonicalizer) bindings(init *parser.Node, checked bool) ([]any, error) {
	out := make([]any, 0, init.Len())
	for _, item := range init.Children() {
		if item.Kind != parser.NodeAssignment {
			return nil, invalid(item, "object initializer cannot mix member assignments and collection elements")
		}
		b := Node{KeyMember: item.Value, KeyPosition: position(item)}
		value := item.Child(1)
		switch {
		case value.Kind == parser.NodeInitializer && isObjectInitializer(value):
			nested, err := c.bindings(value, checked)
			if err != nil {
				return nil, err
			}
			b[KeyBindings] = nested
		case value.Kind == parser.NodeInitializer:
			inits, err := c.elementInits(value, checked)
			if err != nil {
				return nil, err
			}
			b[KeyInitializers] = inits
		default:
			v, err := c.expression(value, checked)
			if err != nil {
				return nil, err
			}
			b[KeyExpression] = v
		}
		out = append(out, b)
	}
	return out, nil
}

// elementInits converts collection initializer items. "{ k, v }" items
// become multi-argument Add calls.
func (c *canonicalizer) elementInits(init *parser.Node, checked bool) ([]any, error) {
	out := make([]any, 0, init.Len())
	for _, item := range init.Children() {
		var elems []*parser.Node
		switch item.Kind {
		case parser.NodeAssignment:
			return nil, invalid(item, "collection initializer cannot mix member assignments and collection elements")
		case parser.NodeInitializer:
			elems = item.Children()
		default:
			elems = []*parser.Node{item}
		}
		args, err := c.arguments(item, elems, checked)
		if err != nil {
			return nil, err
		}
		out = append(out, Node{KeyArguments: args, KeyPosition: position(item)})
	}
	return out, nil
}

func (c *canonicalizer) newArray(n *parser.Node, checked bool) (Node, error) {
	if n.Len() < 2 {
		return nil, invalid(n, "array construction expects an element type")
	}
	var elemType Node
	if elem := n.Child(0); elem.Kind != parser.NodeNone {
		t, err := c.typeRef(elem)
		if err != nil {
			return nil, err
		}
		elemType = t
	}
	if init := n.Child(2); init != nil {
		items := make([]*parser.Node, 0, init.Len())
		for _, item := range init.Children() {
			if item.Kind == parser.NodeAssignment || item.Kind == parser.NodeInitializer {
				return nil, invalid(item, "array initializer expects plain elements")
			}
			items = append(items, item)
		}
		args, err := c.arguments(n, items, checked)
		if err != nil {
			return nil, err
		}
		out := c.node(n, KindNewArrayInit)
		out[KeyType] = elemType
		out[KeyArguments] = args
		return out, nil
	}
	if elemType == nil {
		return nil, invalid(n, "array size requires an element type")
	}
	bounds, err := c.arguments(n, n.Child(1).Children(), checked)
	if err != nil {
		return nil, err
	}
	if len(bounds) == 0 {
		return nil, invalid(n, "array construction needs a size or an initializer")
	}
	out := c.node(n, KindNewArrayBounds)
	out[KeyType] = elemType
	out[KeyArguments] = bounds
	return out, nil
}

// typeRef renders a type-position parse node.
func (c *canonicalizer) typeRef(n *parser.Node) (Node, error) {
	switch n.Kind {
	case parser.NodeIdentifier:
		return c.identifier(n, nil)
	case parser.NodeMember:
		if n.Token.Kind == parser.TokenNullDot {
			return nil, invalid(n, "'?.' is not allowed in a type name")
		}
		target, err := c.typeRef(n.Child(0))
		if err != nil {
			return nil, err
		}
		out, err := c.identifier(n.Child(1), target)
		if err != nil {
			return nil, err
		}
		out[KeyPosition] = position(n)
		return out, nil
	case parser.NodeNullableType:
		inner, err := c.typeRef(n.Child(0))
		if err != nil {
			return nil, err
		}
		out := c.node(n, KindPropertyOrField)
		out[KeyPropertyOrField] = NullableTypeName
		out[KeyArguments] = Node{"0": inner}
		return out, nil
	case parser.NodeArrayType:
		elem, err := c.typeRef(n.Child(0))
		if err != nil {
			return nil, err
		}
		out := c.node(n, KindArrayType)
		out[KeyType] = elem
		return out, nil
	case parser.NodeEmptyType:
		out := c.node(n, KindPropertyOrField)
		out[KeyPropertyOrField] = ""
		return out, nil
	default:
		return nil, invalid(n, "%s is not a type name", describe(n))
	}
}

func describe(n *parser.Node) string {
	if n.Token.Value != "" {
		return fmt.Sprintf("%q", n.Token.Value)
	}
	return n.Kind.String()
}
