package parser

import (
	"strings"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/types"
)

// NodeKind identifies the kind of a parse tree node.
type NodeKind uint8

const (
	NodeNone NodeKind = iota

	// Atoms
	NodeNumber     // numeric literal, Value holds the raw text
	NodeLiteral    // quoted literal, Value holds the raw text with quotes
	NodeIdentifier // name; children are generic type arguments

	// Access
	NodeMember // target.name or target?.name; children: target, name
	NodeCall   // children: target, arguments...
	NodeIndex  // target[a] or target?[a]; children: target, arguments...

	// Operators
	NodeUnary     // children: operand
	NodeBinary    // children: left, right
	NodeCondition // children: test, ifTrue, ifFalse
	NodeGroup     // (expr)
	NodeCast      // (Type)expr; children: type, operand
	NodeTypeIs    // expr is Type; children: operand, type
	NodeTypeAs    // expr as Type; children: operand, type
	NodeLambda    // children: parameters (NodeArguments), body

	// Keyword forms
	NodeTypeOf    // typeof(Type)
	NodeDefault   // default(Type)
	NodeChecked   // checked(expr)
	NodeUnchecked // unchecked(expr)

	// Construction
	NodeNew           // children: type, arguments (NodeArguments), optional initializer
	NodeNewArray      // children: element type (or NodeNone), bounds (NodeArguments), optional initializer
	NodeInitializer   // { item, item }
	NodeAssignment    // Name = value inside an initializer; children: name, value
	NodeArguments     // argument or parameter list
	NodeNamedArgument // name: value; children: name, value

	// Types
	NodeNullableType // Type?; children: type
	NodeArrayType    // Type[]; children: element type
	NodeEmptyType    // open generic argument placeholder, as in List<>
)

var nodeKindNames = [...]string{
	NodeNone:          "None",
	NodeNumber:        "Number",
	NodeLiteral:       "Literal",
	NodeIdentifier:    "Identifier",
	NodeMember:        "Member",
	NodeCall:          "Call",
	NodeIndex:         "Index",
	NodeUnary:         "Unary",
	NodeBinary:        "Binary",
	NodeCondition:     "Condition",
	NodeGroup:         "Group",
	NodeCast:          "Cast",
	NodeTypeIs:        "TypeIs",
	NodeTypeAs:        "TypeAs",
	NodeLambda:        "Lambda",
	NodeTypeOf:        "TypeOf",
	NodeDefault:       "Default",
	NodeChecked:       "Checked",
	NodeUnchecked:     "Unchecked",
	NodeNew:           "New",
	NodeNewArray:      "NewArray",
	NodeInitializer:   "Initializer",
	NodeAssignment:    "Assignment",
	NodeArguments:     "Arguments",
	NodeNamedArgument: "NamedArgument",
	NodeNullableType:  "NullableType",
	NodeArrayType:     "ArrayType",
	NodeEmptyType:     "EmptyType",
}

// String returns the name of the node kind.
func (k NodeKind) String() string {
	if int(k) < len(nodeKindNames) {
		return nodeKindNames[k]
	}
	return "Unknown"
}

// inlineChildren is the number of children stored without a separate slice.
const inlineChildren = 3

// Node is an untyped parse tree node. Nodes are immutable once built;
// WithKind and WithChild return rebuilt copies.
type Node struct {
	Kind  NodeKind
	Token Token
	Value string

	inline [inlineChildren]*Node
	n      int
	more   []*Node
}

// Children returns the ordered child nodes.
func (n *Node) Children() []*Node {
	if n.more != nil {
		return n.more
	}
	return n.inline[:n.n]
}

// Len returns the number of children.
func (n *Node) Len() int {
	if n.more != nil {
		return len(n.more)
	}
	return n.n
}

// Child returns the i-th child or nil when out of range.
func (n *Node) Child(i int) *Node {
	c := n.Children()
	if i < 0 || i >= len(c) {
		return nil
	}
	return c[i]
}

// Position returns the source position of the node's token.
func (n *Node) Position() types.Position {
	return types.Position{Line: n.Token.Line, Column: n.Token.Column, Length: n.Token.Length}
}

// WithKind returns a copy of the node with a different kind.
func (n *Node) WithKind(kind NodeKind) *Node {
	c := *n
	c.Kind = kind
	if n.more != nil {
		c.more = append([]*Node(nil), n.more...)
	}
	return &c
}

// WithChild returns a copy of the node with the i-th child replaced.
func (n *Node) WithChild(i int, child *Node) *Node {
	c := *n
	if n.more != nil {
		c.more = append([]*Node(nil), n.more...)
		c.more[i] = child
	} else {
		c.inline[i] = child
	}
	return &c
}

// String renders the node as an S-expression, for diagnostics and tests.
func (n *Node) String() string {
	var b strings.Builder
	n.write(&b)
	return b.String()
}

func (n *Node) write(b *strings.Builder) {
	if n == nil {
		b.WriteString("nil")
		return
	}
	b.WriteByte('(')
	b.WriteString(n.Kind.String())
	switch {
	case n.Value != "":
		b.WriteByte(' ')
		b.WriteString(n.Value)
	case n.Kind == NodeUnary || n.Kind == NodeBinary || n.Kind == NodeMember || n.Kind == NodeIndex:
		b.WriteByte(' ')
		b.WriteString(n.Token.Kind.String())
	}
	for _, c := range n.Children() {
		b.WriteByte(' ')
		c.write(b)
	}
	b.WriteByte(')')
}

// arenaChunkSize is the number of Node values pre-allocated per arena chunk.
const arenaChunkSize = 64

// Arena is a bump-pointer allocator for parse nodes. A typical expression
// fits in a single chunk. Arena is not safe for concurrent use; each parse
// owns its own.
type Arena struct {
	chunks [][]Node
	pos    int
}

// NewArena allocates an arena pre-warmed with one chunk.
func NewArena() *Arena {
	return &Arena{chunks: [][]Node{make([]Node, arenaChunkSize)}}
}

// New returns a node allocated inside the arena.
func (a *Arena) New(kind NodeKind, tok Token, value string, children ...*Node) *Node {
	if a.pos >= arenaChunkSize {
		a.chunks = append(a.chunks, make([]Node, arenaChunkSize))
		a.pos = 0
	}
	n := &a.chunks[len(a.chunks)-1][a.pos]
	a.pos++
	n.Kind = kind
	n.Token = tok
	n.Value = value
	if len(children) <= inlineChildren {
		n.n = copy(n.inline[:], children)
	} else {
		n.more = append([]*Node(nil), children...)
	}
	return n
}
