package binder

import (
	"reflect"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/typemodel"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/types"
)

// Expr is a node of the typed expression tree.
type Expr interface {
	// Type is the static type of the value the expression produces. A nil
	// Type is the null literal.
	Type() reflect.Type
	Pos() types.Position
}

// BinaryOp identifies a binary operation.
type BinaryOp uint8

const (
	OpAdd BinaryOp = iota + 1
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
	OpLeftShift
	OpRightShift
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpEqual
	OpNotEqual
	OpAnd
	OpOr
	OpExclusiveOr
	OpAndAlso
	OpOrElse
	OpCoalesce
	OpConcat
)

var binaryOpNames = [...]string{
	OpAdd: "+", OpSubtract: "-", OpMultiply: "*", OpDivide: "/", OpModulo: "%",
	OpLeftShift: "<<", OpRightShift: ">>",
	OpLessThan: "<", OpLessThanOrEqual: "<=", OpGreaterThan: ">", OpGreaterThanOrEqual: ">=",
	OpEqual: "==", OpNotEqual: "!=",
	OpAnd: "&", OpOr: "|", OpExclusiveOr: "^",
	OpAndAlso: "&&", OpOrElse: "||", OpCoalesce: "??", OpConcat: "+",
}

func (o BinaryOp) String() string {
	if int(o) < len(binaryOpNames) && binaryOpNames[o] != "" {
		return binaryOpNames[o]
	}
	return "?"
}

// IsComparison reports whether the operation yields a bool from ordered or
// equatable operands.
func (o BinaryOp) IsComparison() bool {
	return o >= OpLessThan && o <= OpNotEqual
}

// UnaryOp identifies a unary operation.
type UnaryOp uint8

const (
	OpNegate UnaryOp = iota + 1
	OpUnaryPlus
	OpNot
	OpComplement
)

func (o UnaryOp) String() string {
	switch o {
	case OpNegate:
		return "-"
	case OpUnaryPlus:
		return "+"
	case OpNot:
		return "!"
	case OpComplement:
		return "~"
	}
	return "?"
}

type node struct {
	typ reflect.Type
	pos types.Position
}

func (n node) Type() reflect.Type  { return n.typ }
func (n node) Pos() types.Position { return n.pos }

// ConstantExpr is a value known at bind time.
type ConstantExpr struct {
	node
	Value any
}

// ParameterExpr reads a parameter of the enclosing lambda or of the root
// expression. Index is the position in the binding context's parameter
// list.
type ParameterExpr struct {
	node
	Name  string
	Index int
}

// MemberExpr reads a field or a property. Target is nil for static
// members.
type MemberExpr struct {
	node
	Target Expr
	Member *typemodel.MemberDescriptor
}

// LenExpr is the native Length or Count of a string, slice, array, map or
// channel.
type LenExpr struct {
	node
	Operand Expr
}

// CallExpr calls a method. Target is nil for static methods. Args match
// the method's parameters one to one; a variadic tail is packed into a
// NewArrayExpr.
type CallExpr struct {
	node
	Target Expr
	Method *typemodel.MemberDescriptor
	Args   []Expr
}

// InvokeExpr calls a func value.
type InvokeExpr struct {
	node
	Target Expr
	Args   []Expr
}

// IndexExpr applies an indexer.
type IndexExpr struct {
	node
	Target  Expr
	Indexer *typemodel.MemberDescriptor
	Args    []Expr
}

// BinaryExpr applies a binary operator. Both operands already have the
// operand type of the operation; Lifted marks nullable operands. Method
// is set for user-defined operators.
type BinaryExpr struct {
	node
	Op      BinaryOp
	Left    Expr
	Right   Expr
	Checked bool
	Lifted  bool
	Method  *typemodel.MemberDescriptor
}

// UnaryExpr applies a unary operator.
type UnaryExpr struct {
	node
	Op      UnaryOp
	Operand Expr
	Checked bool
	Lifted  bool
	Method  *typemodel.MemberDescriptor
}

// ConditionalExpr evaluates Test and then exactly one branch.
type ConditionalExpr struct {
	node
	Test    Expr
	IfTrue  Expr
	IfFalse Expr
}

// ConvertExpr converts Operand to the expression type. Method is set for
// user-defined conversions.
type ConvertExpr struct {
	node
	Operand Expr
	Checked bool
	Method  *typemodel.MemberDescriptor
}

// TypeIsExpr tests the dynamic type of Operand.
type TypeIsExpr struct {
	node
	Operand Expr
	Target  reflect.Type
}

// TypeAsExpr converts Operand to the expression type when the dynamic
// type allows it, and yields null otherwise.
type TypeAsExpr struct {
	node
	Operand Expr
}

// DefaultExpr yields the zero value of its type.
type DefaultExpr struct {
	node
}

// LambdaExpr is a lambda bound against a func type. Parameters are the
// lambda's own parameters; the body also sees the captured outer
// parameters, which follow them. Captures holds, for each captured
// parameter, its index in the enclosing context.
type LambdaExpr struct {
	node
	Parameters []Parameter
	Body       Expr
	Captures   []int
}

// QuoteExpr yields the bound lambda itself, wrapped in an Expression
// value, instead of a callable.
type QuoteExpr struct {
	node
	Lambda *LambdaExpr
}

// NewExpr constructs a value.
type NewExpr struct {
	node
	Constructor *typemodel.MemberDescriptor
	Args        []Expr
}

// NewArrayExpr builds a slice, either from Items or, with Bounds, as
// zero-filled slices nested once per bound.
type NewArrayExpr struct {
	node
	Elem   reflect.Type
	Bounds []Expr
	Items  []Expr
}

// BindingKind selects what a member binding does.
type BindingKind uint8

const (
	BindAssign BindingKind = iota + 1
	BindMember
	BindList
)

// MemberBinding is one item of an object initializer.
type MemberBinding struct {
	Kind         BindingKind
	Member       *typemodel.MemberDescriptor
	Value        Expr
	Bindings     []MemberBinding
	Initializers []ElementInit
	Pos          types.Position
}

// ElementInit adds one element to a collection. Add is nil for native
// slice append and map assignment.
type ElementInit struct {
	Add  *typemodel.MemberDescriptor
	Args []Expr
}

// MemberInitExpr constructs a value and applies member bindings to it.
type MemberInitExpr struct {
	node
	New      Expr
	Bindings []MemberBinding
}

// ListInitExpr constructs a collection and adds elements to it.
type ListInitExpr struct {
	node
	New          Expr
	Initializers []ElementInit
}

// Expression is the value of a quoted lambda of func type F.
type Expression[F any] struct {
	Lambda *LambdaExpr
}

// FuncType returns F.
func (Expression[F]) FuncType() reflect.Type {
	return reflect.TypeFor[F]()
}

type quoted interface {
	FuncType() reflect.Type
}

var quotedType = reflect.TypeFor[quoted]()

// quotedFunc returns the func type of an Expression[F] type.
func quotedFunc(t reflect.Type) (reflect.Type, bool) {
	if t == nil || t.Kind() != reflect.Struct || !t.Implements(quotedType) {
		return nil, false
	}
	if f, ok := t.FieldByName("Lambda"); !ok || f.Type != reflect.TypeFor[*LambdaExpr]() {
		return nil, false
	}
	return reflect.Zero(t).Interface().(quoted).FuncType(), true
}

func isNullLiteral(e Expr) bool {
	c, ok := e.(*ConstantExpr)
	return ok && c.typ == nil
}

func constant(value any, t reflect.Type, pos types.Position) *ConstantExpr {
	return &ConstantExpr{node: node{typ: t, pos: pos}, Value: value}
}
