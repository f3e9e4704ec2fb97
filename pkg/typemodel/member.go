package typemodel

import (
	"cmp"
	"fmt"
	"reflect"
	"strings"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/types"
)

// MemberKind classifies a member.
type MemberKind uint8

const (
	MemberField MemberKind = iota + 1
	MemberProperty
	MemberMethod
	MemberIndexer
	MemberConstructor
	MemberStaticValue
	MemberOperator
	MemberConversion
)

var memberKindNames = [...]string{
	MemberField:       "field",
	MemberProperty:    "property",
	MemberMethod:      "method",
	MemberIndexer:     "indexer",
	MemberConstructor: "constructor",
	MemberStaticValue: "static value",
	MemberOperator:    "operator",
	MemberConversion:  "conversion",
}

func (k MemberKind) String() string {
	if int(k) < len(memberKindNames) && memberKindNames[k] != "" {
		return memberKindNames[k]
	}
	return "member"
}

// Native identifies members implemented by the engine itself rather than
// by a host func or field.
type Native uint8

const (
	NotNative     Native = iota
	NativeLen            // Length / Count of a len-able value
	NativeIndex          // slice, array, string or map indexing
	NativeZero           // zero value construction
	NativeMake           // make for slices and maps, with optional capacity
	NativeToString       // ToString on any value
	NativeHasValue       // HasValue on a nullable
	NativeValue          // Value on a nullable
	NativeInvoke         // Invoke on a func value
)

// Parameter describes one formal parameter.
type Parameter struct {
	Name       string
	Type       reflect.Type
	Position   int
	HasDefault bool
	Default    any
}

// GenericMember instantiates a generic host function. Go cannot
// instantiate generic functions at run time, so the host supplies the
// instantiation for each set of type arguments.
type GenericMember struct {
	Arity       int
	Instantiate func(typeArgs []reflect.Type) (any, error)
	// Infer derives type arguments from argument types when the call does
	// not spell them out. Optional.
	Infer func(argTypes []reflect.Type) ([]reflect.Type, bool)
}

// MemberDescriptor describes one constructor, method, property, field,
// indexer, static value, operator or conversion.
type MemberDescriptor struct {
	Name          string
	Kind          MemberKind
	DeclaringType reflect.Type
	Parameters    []Parameter
	ResultType    reflect.Type
	Static        bool
	Variadic      bool
	ReturnsError  bool
	Native        Native
	Operator      Operator

	// FieldIndex locates a struct field, possibly promoted.
	FieldIndex []int
	// Func is the callable: a method expression taking the receiver first,
	// or a plain func for static members.
	Func reflect.Value
	// PointerReceiver marks methods that need an addressable receiver.
	PointerReceiver bool
	// Value holds a static value.
	Value reflect.Value
	// Generic is set for members that need type arguments.
	Generic *GenericMember
	// TypeArguments holds the arguments a specialized member was built with.
	TypeArguments []reflect.Type

	depth int // embedding depth of promoted members
}

// IsGeneric reports whether the member still needs type arguments.
func (m *MemberDescriptor) IsGeneric() bool {
	return m.Generic != nil && m.TypeArguments == nil
}

// Signature renders the member for diagnostics.
func (m *MemberDescriptor) Signature() string {
	var b strings.Builder
	if m.DeclaringType != nil {
		b.WriteString(m.DeclaringType.String())
		b.WriteByte('.')
	}
	b.WriteString(m.Name)
	if m.Kind == MemberField || m.Kind == MemberProperty || m.Kind == MemberStaticValue {
		return b.String()
	}
	if m.Generic != nil {
		fmt.Fprintf(&b, "`%d", m.Generic.Arity)
	}
	b.WriteByte('(')
	for i, p := range m.Parameters {
		if i > 0 {
			b.WriteString(", ")
		}
		if m.Variadic && i == len(m.Parameters)-1 {
			b.WriteString("...")
			b.WriteString(p.Type.Elem().String())
			continue
		}
		if p.Type != nil {
			b.WriteString(p.Type.String())
		}
	}
	b.WriteByte(')')
	return b.String()
}

func (m *MemberDescriptor) String() string {
	return m.Signature()
}

// Compare orders members for deterministic overload ranking: fewer
// embedding levels first, then non-variadic, then fewer parameters, then
// by signature text.
func (m *MemberDescriptor) Compare(other *MemberDescriptor) int {
	if c := cmp.Compare(m.depth, other.depth); c != 0 {
		return c
	}
	if m.Variadic != other.Variadic {
		if m.Variadic {
			return 1
		}
		return -1
	}
	if c := cmp.Compare(len(m.Parameters), len(other.Parameters)); c != 0 {
		return c
	}
	if c := cmp.Compare(m.Kind, other.Kind); c != 0 {
		return c
	}
	return strings.Compare(m.Signature(), other.Signature())
}

// Precedes reports whether m wins a tie against other on declaration
// alone: it is embedded less deeply, or it is not variadic where other is.
func (m *MemberDescriptor) Precedes(other *MemberDescriptor) bool {
	if m.depth != other.depth {
		return m.depth < other.depth
	}
	return !m.Variadic && other.Variadic
}

// Specialize instantiates a generic member with type arguments. A rejected
// instantiation is reported as an error for this candidate only.
func (m *MemberDescriptor) Specialize(typeArgs []reflect.Type) (*MemberDescriptor, error) {
	if m.Generic == nil {
		if len(typeArgs) == 0 {
			return m, nil
		}
		return nil, types.Errorf(types.BindError, types.ErrGenericArity, types.Position{},
			"%s is not generic", m.Signature())
	}
	if len(typeArgs) != m.Generic.Arity {
		return nil, types.Errorf(types.BindError, types.ErrGenericArity, types.Position{},
			"%s expects %d type arguments, got %d", m.Name, m.Generic.Arity, len(typeArgs))
	}
	fn, err := m.Generic.Instantiate(typeArgs)
	if err != nil {
		return nil, types.Errorf(types.BindError, types.ErrGenericArity, types.Position{},
			"cannot instantiate %s: %v", m.Name, err).WithCause(err)
	}
	spec, err := newFuncMember(m.Name, m.Kind, m.DeclaringType, reflect.ValueOf(fn), !m.Static, m.parameterNames())
	if err != nil {
		return nil, err
	}
	spec.Static = m.Static
	spec.Generic = m.Generic
	spec.TypeArguments = typeArgs
	spec.depth = m.depth
	return spec, nil
}

func (m *MemberDescriptor) parameterNames() []string {
	names := make([]string, len(m.Parameters))
	for i, p := range m.Parameters {
		names[i] = p.Name
	}
	return names
}

// newFuncMember describes a func value. With receiver set, the first func
// parameter is the receiver and is excluded from Parameters. A trailing
// error result is recorded in ReturnsError.
func newFuncMember(name string, kind MemberKind, declaring reflect.Type, fn reflect.Value, receiver bool, names []string) (*MemberDescriptor, error) {
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s: expected a func, got %v", name, fn.Kind())
	}
	ft := fn.Type()
	m := &MemberDescriptor{
		Name:          name,
		Kind:          kind,
		DeclaringType: declaring,
		Func:          fn,
		Static:        !receiver,
		Variadic:      ft.IsVariadic(),
	}
	first := 0
	if receiver {
		if ft.NumIn() == 0 {
			return nil, fmt.Errorf("%s: method without a receiver parameter", name)
		}
		first = 1
	}
	for i := first; i < ft.NumIn(); i++ {
		p := Parameter{Type: ft.In(i), Position: i - first}
		if i-first < len(names) {
			p.Name = names[i-first]
		}
		m.Parameters = append(m.Parameters, p)
	}
	switch ft.NumOut() {
	case 0:
	case 1:
		if ft.Out(0) == ErrorType && kind != MemberProperty {
			m.ReturnsError = true
		} else {
			m.ResultType = ft.Out(0)
		}
	case 2:
		if ft.Out(1) != ErrorType {
			return nil, fmt.Errorf("%s: a second result must be an error", name)
		}
		m.ResultType = ft.Out(0)
		m.ReturnsError = true
	default:
		return nil, fmt.Errorf("%s: too many results", name)
	}
	return m, nil
}

// ParameterType returns the type an argument at position i must convert to,
// expanding a variadic tail.
func (m *MemberDescriptor) ParameterType(i int) reflect.Type {
	n := len(m.Parameters)
	if m.Variadic && i >= n-1 {
		return m.Parameters[n-1].Type.Elem()
	}
	if i < n {
		return m.Parameters[i].Type
	}
	return nil
}

// ParameterIndex finds a parameter by name.
func (m *MemberDescriptor) ParameterIndex(name string) int {
	for i, p := range m.Parameters {
		if p.Name == name {
			return i
		}
	}
	return -1
}
