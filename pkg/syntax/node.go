// Package syntax defines the canonical expression tree and converts parse
// trees into it.
//
// A canonical node is a plain map of named attributes. The vocabulary of
// keys and expressionKind values is fixed, so tools outside this module can
// produce or consume trees without depending on the parser's token kinds.
package syntax

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/types"
)

// Node is a canonical expression node. Values are strings, bools, nil,
// nested Nodes, or []any collections of them.
type Node map[string]any

// Attribute keys.
const (
	KeyExpressionKind     = "expressionKind"
	KeyExpression         = "expression"
	KeyLeft               = "left"
	KeyRight              = "right"
	KeyArguments          = "arguments"
	KeyType               = "type"
	KeyValue              = "value"
	KeyTest               = "test"
	KeyIfTrue             = "ifTrue"
	KeyIfFalse            = "ifFalse"
	KeyUseNullPropagation = "useNullPropagation"
	KeyPropertyOrField    = "propertyOrFieldName"
	KeyParameters         = "parameters"
	KeyBody               = "body"
	KeyBindings           = "bindings"
	KeyInitializers       = "initializers"
	KeyMember             = "member"
	KeyPosition           = "position"
)

// Expression kinds.
const (
	KindConstant        = "Constant"
	KindPropertyOrField = "PropertyOrField"
	KindInvoke          = "Invoke"
	KindIndex           = "Index"
	KindGroup           = "Group"
	KindConvert         = "Convert"
	KindConvertChecked  = "ConvertChecked"
	KindTypeIs          = "TypeIs"
	KindTypeAs          = "TypeAs"
	KindTypeOf          = "TypeOf"
	KindDefault         = "Default"
	KindNegate          = "Negate"
	KindNegateChecked   = "NegateChecked"
	KindUnaryPlus       = "UnaryPlus"
	KindNot             = "Not"
	KindComplement      = "Complement"

	KindAdd                = "Add"
	KindAddChecked         = "AddChecked"
	KindSubtract           = "Subtract"
	KindSubtractChecked    = "SubtractChecked"
	KindMultiply           = "Multiply"
	KindMultiplyChecked    = "MultiplyChecked"
	KindDivide             = "Divide"
	KindModulo             = "Modulo"
	KindLeftShift          = "LeftShift"
	KindRightShift         = "RightShift"
	KindLessThan           = "LessThan"
	KindLessThanOrEqual    = "LessThanOrEqual"
	KindGreaterThan        = "GreaterThan"
	KindGreaterThanOrEqual = "GreaterThanOrEqual"
	KindEqual              = "Equal"
	KindNotEqual           = "NotEqual"
	KindAnd                = "And"
	KindOr                 = "Or"
	KindExclusiveOr        = "ExclusiveOr"
	KindAndAlso            = "AndAlso"
	KindOrElse             = "OrElse"
	KindCoalesce           = "Coalesce"

	KindCondition      = "Condition"
	KindLambda         = "Lambda"
	KindNew            = "New"
	KindNewArrayBounds = "NewArrayBounds"
	KindNewArrayInit   = "NewArrayInit"
	KindMemberInit     = "MemberInit"
	KindListInit       = "ListInit"
	KindQuote          = "Quote"

	// KindArrayType only appears in type positions: T[] with the element
	// type under KeyType.
	KindArrayType = "ArrayType"
)

// NullableTypeName is the generic type name that T? renders into.
const NullableTypeName = "Nullable"

// Kind returns the expressionKind attribute.
func (n Node) Kind() string {
	s, _ := n[KeyExpressionKind].(string)
	return s
}

// Child returns a nested node attribute.
func (n Node) Child(key string) (Node, bool) {
	c, ok := n[key].(Node)
	return c, ok && c != nil
}

// String returns a string attribute.
func (n Node) String(key string) (string, bool) {
	s, ok := n[key].(string)
	return s, ok
}

// Bool returns a boolean attribute, false when absent.
func (n Node) Bool(key string) bool {
	b, _ := n[key].(bool)
	return b
}

// List returns a collection attribute.
func (n Node) List(key string) []any {
	l, _ := n[key].([]any)
	return l
}

// Position decodes the "line:column" position attribute.
func (n Node) Position() types.Position {
	s, _ := n[KeyPosition].(string)
	line, column, ok := strings.Cut(s, ":")
	if !ok {
		return types.Position{}
	}
	l, err1 := strconv.Atoi(line)
	c, err2 := strconv.Atoi(column)
	if err1 != nil || err2 != nil {
		return types.Position{}
	}
	return types.Position{Line: l, Column: c}
}

// Argument is one entry of an argument map. Positional arguments have an
// empty Name and their zero-based Index; named arguments have Index -1.
type Argument struct {
	Name  string
	Index int
	Value Node
}

// Arguments returns the entries of the argument map stored under key,
// positional ones first in order, then named ones sorted by name.
func (n Node) Arguments(key string) []Argument {
	m, _ := n[key].(Node)
	if len(m) == 0 {
		return nil
	}
	args := make([]Argument, 0, len(m))
	for k, v := range m {
		value, _ := v.(Node)
		if i, err := strconv.Atoi(k); err == nil {
			args = append(args, Argument{Index: i, Value: value})
		} else {
			args = append(args, Argument{Name: k, Index: -1, Value: value})
		}
	}
	slices.SortFunc(args, func(a, b Argument) int {
		switch {
		case a.Index >= 0 && b.Index >= 0:
			return a.Index - b.Index
		case a.Index >= 0:
			return -1
		case b.Index >= 0:
			return 1
		default:
			return strings.Compare(a.Name, b.Name)
		}
	})
	return args
}

// IsEmptyType reports whether n is the open generic argument placeholder.
func IsEmptyType(n Node) bool {
	if n.Kind() != KindPropertyOrField {
		return false
	}
	name, _ := n.String(KeyPropertyOrField)
	_, hasTarget := n.Child(KeyExpression)
	return name == "" && !hasTarget
}

// TypeName renders a type-position node back into a readable name, for
// error messages.
func TypeName(n Node) string {
	var b strings.Builder
	writeTypeName(&b, n)
	return b.String()
}

func writeTypeName(b *strings.Builder, n Node) {
	switch n.Kind() {
	case KindArrayType:
		elem, _ := n.Child(KeyType)
		writeTypeName(b, elem)
		b.WriteString("[]")
	case KindPropertyOrField:
		if target, ok := n.Child(KeyExpression); ok {
			writeTypeName(b, target)
			b.WriteByte('.')
		}
		name, _ := n.String(KeyPropertyOrField)
		b.WriteString(name)
		if args := n.Arguments(KeyArguments); len(args) > 0 {
			b.WriteByte('<')
			for i, a := range args {
				if i > 0 {
					b.WriteByte(',')
				}
				writeTypeName(b, a.Value)
			}
			b.WriteByte('>')
		}
	default:
		fmt.Fprintf(b, "<%s>", n.Kind())
	}
}
