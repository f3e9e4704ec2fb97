package typemodel

import (
	"fmt"
	"path"
	"reflect"
	"strings"
	"sync"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/types"
)

// Resolver maps type references to host types. It is the only way the
// binder learns about types.
type Resolver interface {
	TryGetType(ref TypeReference) (reflect.Type, bool)
	IsKnownType(t reflect.Type) bool
}

// ErrorResolver is implemented by resolvers that can explain a failed
// lookup, in particular an ambiguous one.
type ErrorResolver interface {
	Resolve(ref TypeReference) (reflect.Type, error)
}

// Resolve uses r's Resolve method when it has one.
func Resolve(r Resolver, ref TypeReference) (reflect.Type, error) {
	if er, ok := r.(ErrorResolver); ok {
		return er.Resolve(ref)
	}
	if t, ok := r.TryGetType(ref); ok {
		return t, nil
	}
	return nil, types.Errorf(types.BindError, types.ErrUnknownType, types.Position{}, "unknown type %s", ref)
}

// GenericShape builds a concrete type from type arguments.
type GenericShape struct {
	Name        string
	Arity       int
	Instantiate func(args []reflect.Type) (reflect.Type, error)
}

type knownEntry struct {
	t     reflect.Type
	shape *GenericShape
}

// KnownTypes resolves from an allow-list: the primitives, the core shapes
// (Nullable, List, Dictionary, Func, Action and their interface spellings),
// Math, and the types added by the caller together with the types they
// expose. Unresolved references go to an optional fallback.
type KnownTypes struct {
	mu       sync.RWMutex
	byName   map[string][]knownEntry
	known    map[reflect.Type]bool
	fallback Resolver
}

// KnownTypesOption configures a KnownTypes resolver.
type KnownTypesOption func(*KnownTypes)

// WithTypes adds host types and, transitively, their component, field and
// embedded types.
func WithTypes(ts ...reflect.Type) KnownTypesOption {
	return func(k *KnownTypes) {
		for _, t := range ts {
			k.add(t, true)
		}
	}
}

// WithNamedType adds a type under an explicit name, such as an alias.
func WithNamedType(name string, t reflect.Type) KnownTypesOption {
	return func(k *KnownTypes) {
		k.addName(name, knownEntry{t: t})
		k.add(t, true)
	}
}

// WithGeneric adds a generic shape.
func WithGeneric(shape GenericShape) KnownTypesOption {
	return func(k *KnownTypes) {
		k.addName(shape.Name, knownEntry{shape: &shape})
	}
}

// WithFallback chains another resolver for references this one cannot
// resolve.
func WithFallback(r Resolver) KnownTypesOption {
	return func(k *KnownTypes) {
		k.fallback = r
	}
}

// NewKnownTypes creates a resolver with the built-in allow-list.
func NewKnownTypes(opts ...KnownTypesOption) *KnownTypes {
	k := &KnownTypes{
		byName: map[string][]knownEntry{},
		known:  map[reflect.Type]bool{},
	}
	// Go spellings and keyword aliases; int and uint keep their keyword
	// meaning of 32 bits, Go's int is nint.
	for name, t := range map[string]reflect.Type{
		"bool": BoolType, "string": StringType, "error": ErrorType,
		"int8": Int8Type, "int16": Int16Type, "int32": Int32Type, "int64": Int64Type,
		"uint8": Uint8Type, "uint16": Uint16Type, "uint32": Uint32Type, "uint64": Uint64Type,
		"float32": Float32Type, "float64": Float64Type,
		"byte": Uint8Type, "rune": Int32Type, "any": AnyType, "object": AnyType,
		"sbyte": Int8Type, "short": Int16Type, "ushort": Uint16Type, "int": Int32Type,
		"uint": Uint32Type, "long": Int64Type, "ulong": Uint64Type, "float": Float32Type,
		"double": Float64Type, "char": Int32Type, "nint": IntType, "nuint": UintType,
		"decimal": DecimalType, "Decimal": DecimalType, "Math": MathType, "Type": TypeType,
	} {
		k.known[t] = true
		k.addName(name, knownEntry{t: t})
	}
	for _, s := range coreShapes() {
		k.addName(s.Name, knownEntry{shape: &s})
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

func coreShapes() []GenericShape {
	one := func(name string, build func(reflect.Type) (reflect.Type, error)) GenericShape {
		return GenericShape{Name: name, Arity: 1, Instantiate: func(args []reflect.Type) (reflect.Type, error) {
			return build(args[0])
		}}
	}
	slice := func(t reflect.Type) (reflect.Type, error) { return reflect.SliceOf(t), nil }
	dict := func(args []reflect.Type) (reflect.Type, error) {
		if !args[0].Comparable() {
			return nil, fmt.Errorf("%s cannot be a dictionary key", args[0])
		}
		return reflect.MapOf(args[0], args[1]), nil
	}
	shapes := []GenericShape{
		one("Nullable", func(t reflect.Type) (reflect.Type, error) {
			if CanBeNil(t) {
				return nil, fmt.Errorf("%s is not a value type", t)
			}
			return reflect.PointerTo(t), nil
		}),
		one(ArrayTypeName, slice), one("List", slice), one("IList", slice), one("IEnumerable", slice),
		one("ICollection", slice), one("IReadOnlyList", slice), one("IReadOnlyCollection", slice),
		{Name: "Dictionary", Arity: 2, Instantiate: dict},
		{Name: "IDictionary", Arity: 2, Instantiate: dict},
		{Name: "IReadOnlyDictionary", Arity: 2, Instantiate: dict},
	}
	for n := 1; n <= 9; n++ {
		shapes = append(shapes, GenericShape{Name: "Func", Arity: n, Instantiate: func(args []reflect.Type) (reflect.Type, error) {
			return reflect.FuncOf(args[:n-1], args[n-1:], false), nil
		}})
	}
	for n := 0; n <= 8; n++ {
		shapes = append(shapes, GenericShape{Name: "Action", Arity: n, Instantiate: func(args []reflect.Type) (reflect.Type, error) {
			return reflect.FuncOf(args, nil, false), nil
		}})
	}
	return shapes
}

func (k *KnownTypes) addName(name string, e knownEntry) {
	for _, existing := range k.byName[name] {
		if existing.t != nil && existing.t == e.t {
			return
		}
	}
	k.byName[name] = append(k.byName[name], e)
}

// add registers t by its short and package-qualified names and walks the
// types it exposes.
func (k *KnownTypes) add(t reflect.Type, transitive bool) {
	if t == nil || k.known[t] {
		return
	}
	k.known[t] = true
	if name := t.Name(); name != "" && !strings.ContainsAny(name, "[") {
		k.addName(name, knownEntry{t: t})
		if pkg := t.PkgPath(); pkg != "" {
			k.addName(path.Base(pkg)+"."+name, knownEntry{t: t})
		}
	}
	if !transitive {
		return
	}
	for _, c := range componentTypes(t) {
		k.add(c, true)
	}
	st := t
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	if st.Kind() == reflect.Struct {
		for _, f := range reflect.VisibleFields(st) {
			if f.IsExported() || f.Anonymous {
				k.add(f.Type, true)
			}
		}
	}
}

// IsKnownType reports whether t, or every type it is composed of, is on
// the allow-list.
func (k *KnownTypes) IsKnownType(t reflect.Type) bool {
	k.mu.RLock()
	known := k.known[t]
	k.mu.RUnlock()
	if known {
		return true
	}
	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Array:
		return k.IsKnownType(t.Elem())
	case reflect.Map:
		return k.IsKnownType(t.Key()) && k.IsKnownType(t.Elem())
	case reflect.Func:
		for i := range t.NumIn() {
			if !k.IsKnownType(t.In(i)) {
				return false
			}
		}
		for i := range t.NumOut() {
			if !k.IsKnownType(t.Out(i)) {
				return false
			}
		}
		return true
	}
	if k.fallback != nil {
		return k.fallback.IsKnownType(t)
	}
	return false
}

// TryGetType resolves ref, reporting false when it is unknown or ambiguous.
func (k *KnownTypes) TryGetType(ref TypeReference) (reflect.Type, bool) {
	t, err := k.Resolve(ref)
	return t, err == nil
}

// Resolve resolves ref. The dotted name and the arity must match exactly
// one candidate.
func (k *KnownTypes) Resolve(ref TypeReference) (reflect.Type, error) {
	if ref.IsEmpty() || ref.IsOpen() {
		return nil, types.Errorf(types.BindError, types.ErrUnknownType, types.Position{},
			"open generic type %s cannot be used as a value type", ref)
	}
	arity := ref.Arity()

	k.mu.RLock()
	entries := k.byName[ref.FullName()]
	k.mu.RUnlock()

	var matches []knownEntry
	for _, e := range entries {
		switch {
		case e.shape != nil && e.shape.Arity == arity:
			matches = append(matches, e)
		case e.t != nil && arity == 0:
			matches = append(matches, e)
		}
	}

	switch len(matches) {
	case 0:
		if k.fallback != nil {
			if t, err := Resolve(k.fallback, ref); err == nil {
				return t, nil
			}
		}
		if len(entries) > 0 {
			return nil, types.Errorf(types.BindError, types.ErrGenericArity, types.Position{},
				"type %s does not take %d type arguments", ref.FullName(), arity)
		}
		return nil, types.Errorf(types.BindError, types.ErrUnknownType, types.Position{}, "unknown type %s", ref)
	case 1:
	default:
		names := make([]string, 0, len(matches))
		for _, m := range matches {
			if m.t != nil {
				names = append(names, m.t.PkgPath()+"."+m.t.Name())
			} else {
				names = append(names, m.shape.Name)
			}
		}
		return nil, types.Errorf(types.BindError, types.ErrAmbiguousType, types.Position{},
			"type name %s is ambiguous between %s", ref, strings.Join(names, ", "))
	}

	m := matches[0]
	if m.t != nil {
		return m.t, nil
	}
	args := make([]reflect.Type, arity)
	for i, a := range ref.TypeArguments {
		t, err := k.Resolve(a)
		if err != nil {
			return nil, err
		}
		args[i] = t
	}
	t, err := m.shape.Instantiate(args)
	if err != nil {
		return nil, types.Errorf(types.BindError, types.ErrGenericArity, types.Position{},
			"cannot instantiate %s: %v", ref, err).WithCause(err)
	}
	k.mu.Lock()
	k.add(t, true)
	k.mu.Unlock()
	return t, nil
}
