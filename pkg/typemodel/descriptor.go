package typemodel

import (
	"reflect"
	"slices"
)

// Operator names an operator family.
type Operator uint8

const (
	OpNone Operator = iota
	OpAddition
	OpSubtraction
	OpMultiply
	OpDivision
	OpModulus
	OpBitwiseAnd
	OpBitwiseOr
	OpExclusiveOr
	OpLeftShift
	OpRightShift
	OpEquality
	OpComparison
	OpUnaryNegation
	OpLogicalNot
	OpImplicitTo
	OpImplicitFrom
	OpExplicitTo
	OpExplicitFrom
)

var operatorNames = [...]string{
	OpNone:          "None",
	OpAddition:      "Addition",
	OpSubtraction:   "Subtraction",
	OpMultiply:      "Multiply",
	OpDivision:      "Division",
	OpModulus:       "Modulus",
	OpBitwiseAnd:    "BitwiseAnd",
	OpBitwiseOr:     "BitwiseOr",
	OpExclusiveOr:   "ExclusiveOr",
	OpLeftShift:     "LeftShift",
	OpRightShift:    "RightShift",
	OpEquality:      "Equality",
	OpComparison:    "Comparison",
	OpUnaryNegation: "UnaryNegation",
	OpLogicalNot:    "LogicalNot",
	OpImplicitTo:    "ImplicitTo",
	OpImplicitFrom:  "ImplicitFrom",
	OpExplicitTo:    "ExplicitTo",
	OpExplicitFrom:  "ExplicitFrom",
}

func (o Operator) String() string {
	if int(o) < len(operatorNames) {
		return operatorNames[o]
	}
	return "Unknown"
}

// operatorMethods maps method names to the operator family they implement.
// Binary operators take one argument of the receiver type; unary ones none.
var operatorMethods = map[string]Operator{
	"Add":     OpAddition,
	"Sub":     OpSubtraction,
	"Mul":     OpMultiply,
	"Div":     OpDivision,
	"Mod":     OpModulus,
	"And":     OpBitwiseAnd,
	"Or":      OpBitwiseOr,
	"Xor":     OpExclusiveOr,
	"Lsh":     OpLeftShift,
	"Rsh":     OpRightShift,
	"Equal":   OpEquality,
	"Cmp":     OpComparison,
	"Compare": OpComparison,
	"Neg":     OpUnaryNegation,
	"Not":     OpLogicalNot,
}

// TypeDescriptor is the immutable member model of one type.
type TypeDescriptor struct {
	Type reflect.Type

	IsValueType bool
	IsNullable  bool
	IsEnum      bool
	IsDelegate  bool
	IsVoid      bool
	IsNumeric   bool

	// Underlying is the nullable's element type or the enum's integer type.
	Underlying reflect.Type
	// BaseTypes lists embedded struct types, nearest first.
	BaseTypes []reflect.Type
	// Interfaces lists the known interfaces the type implements.
	Interfaces []reflect.Type
	// TypeArguments holds component types: element, key, parameters, results.
	TypeArguments []reflect.Type

	Members      map[string][]*MemberDescriptor
	Statics      map[string][]*MemberDescriptor
	Constructors []*MemberDescriptor
	Indexers     []*MemberDescriptor
	Operators    map[Operator][]*MemberDescriptor
}

// Member returns the instance members named name, in ranking order.
func (d *TypeDescriptor) Member(name string) []*MemberDescriptor {
	return d.Members[name]
}

// Static returns the static members named name, in ranking order.
func (d *TypeDescriptor) Static(name string) []*MemberDescriptor {
	return d.Statics[name]
}

// OperatorFamily returns the user-defined operator members of a family.
func (d *TypeDescriptor) OperatorFamily(op Operator) []*MemberDescriptor {
	return d.Operators[op]
}

// builder constructs descriptors for one registry miss. It owns a private
// map so construction never holds the registry lock.
type builder struct {
	registry *Registry
	built    map[reflect.Type]*TypeDescriptor
	ext      extensions
}

func (b *builder) describe(t reflect.Type) *TypeDescriptor {
	if d, ok := b.built[t]; ok {
		return d
	}
	if d, ok := b.registry.cached(t); ok {
		return d
	}
	d := &TypeDescriptor{
		Type:        t,
		IsValueType: IsValueType(t),
		IsNullable:  IsNullable(t),
		IsEnum:      IsEnum(t),
		IsDelegate:  IsDelegate(t),
		IsNumeric:   IsNumeric(t),
		Members:     map[string][]*MemberDescriptor{},
		Statics:     map[string][]*MemberDescriptor{},
		Operators:   map[Operator][]*MemberDescriptor{},
	}
	b.built[t] = d

	switch {
	case d.IsNullable:
		d.Underlying = t.Elem()
	case d.IsEnum:
		d.Underlying = EnumUnderlying(t)
	}
	d.TypeArguments = componentTypes(t)

	b.collectFields(d)
	b.collectMethods(d)
	b.collectNative(d)
	b.collectRegistered(d)
	b.collectInterfaces(d)

	for name, set := range d.Members {
		d.Members[name] = rank(set)
	}
	for name, set := range d.Statics {
		d.Statics[name] = rank(set)
	}
	for op, set := range d.Operators {
		d.Operators[op] = rank(set)
	}
	d.Constructors = rank(d.Constructors)
	d.Indexers = rank(d.Indexers)

	// Warm the component and base types in the same batch.
	for _, c := range d.TypeArguments {
		b.describe(c)
	}
	for _, base := range d.BaseTypes {
		b.describe(base)
	}
	return d
}

// rank deduplicates members by signature and sorts them.
func rank(set []*MemberDescriptor) []*MemberDescriptor {
	slices.SortStableFunc(set, (*MemberDescriptor).Compare)
	return slices.CompactFunc(set, func(a, b *MemberDescriptor) bool {
		return a.Signature() == b.Signature() && a.Compare(b) == 0
	})
}

func componentTypes(t reflect.Type) []reflect.Type {
	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Array, reflect.Chan:
		return []reflect.Type{t.Elem()}
	case reflect.Map:
		return []reflect.Type{t.Key(), t.Elem()}
	case reflect.Func:
		var out []reflect.Type
		for i := range t.NumIn() {
			out = append(out, t.In(i))
		}
		for i := range t.NumOut() {
			out = append(out, t.Out(i))
		}
		return out
	}
	return nil
}

// collectFields adds exported struct fields, promoted ones included, and
// records embedded struct types as base types.
func (b *builder) collectFields(d *TypeDescriptor) {
	st := d.Type
	if st.Kind() == reflect.Pointer && st.Elem().Kind() == reflect.Struct {
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct {
		return
	}
	for _, f := range reflect.VisibleFields(st) {
		if f.Anonymous {
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct && len(f.Index) == 1 {
				d.BaseTypes = append(d.BaseTypes, ft)
			}
		}
		if !f.IsExported() {
			continue
		}
		d.Members[f.Name] = append(d.Members[f.Name], &MemberDescriptor{
			Name:          f.Name,
			Kind:          MemberField,
			DeclaringType: d.Type,
			ResultType:    f.Type,
			FieldIndex:    f.Index,
			depth:         len(f.Index) - 1,
		})
	}
}

// collectMethods adds the exported methods of T and *T. Methods that only
// exist on *T are marked PointerReceiver. Operator-shaped methods also
// join their operator family, and zero-argument methods with one result
// double as read-only properties.
func (b *builder) collectMethods(d *TypeDescriptor) {
	t := d.Type
	valueMethods := map[string]bool{}
	for i := range t.NumMethod() {
		valueMethods[t.Method(i).Name] = true
	}
	mt := t
	if t.Kind() != reflect.Pointer && t.Kind() != reflect.Interface {
		mt = reflect.PointerTo(t)
	}
	for i := range mt.NumMethod() {
		m := mt.Method(i)
		if !m.IsExported() {
			continue
		}
		ptr := !valueMethods[m.Name] && mt != t
		var fn reflect.Value
		if t.Kind() == reflect.Interface {
			// Interface method sets have no method expressions.
			fn = interfaceMethod(t, m)
		} else {
			fn = m.Func
		}
		md, err := newFuncMember(m.Name, MemberMethod, t, fn, true, nil)
		if err != nil {
			continue
		}
		md.PointerReceiver = ptr
		d.Members[m.Name] = append(d.Members[m.Name], md)

		if len(md.Parameters) == 0 && md.ResultType != nil && !md.ReturnsError {
			prop := *md
			prop.Kind = MemberProperty
			d.Members[m.Name] = append(d.Members[m.Name], &prop)
		}
		if op, ok := operatorMethods[m.Name]; ok && isOperatorShape(t, op, md) {
			opm := *md
			opm.Kind = MemberOperator
			opm.Operator = op
			d.Operators[op] = append(d.Operators[op], &opm)
		}
		if isConversionMethod(m.Name, md) {
			conv := *md
			conv.Kind = MemberConversion
			conv.Operator = OpExplicitFrom
			d.Operators[OpExplicitFrom] = append(d.Operators[OpExplicitFrom], &conv)
		}
	}
}

// interfaceMethod builds a func(recv I, args...) results that dispatches
// through the interface method table.
func interfaceMethod(t reflect.Type, m reflect.Method) reflect.Value {
	in := []reflect.Type{t}
	for i := range m.Type.NumIn() {
		in = append(in, m.Type.In(i))
	}
	out := make([]reflect.Type, m.Type.NumOut())
	for i := range out {
		out[i] = m.Type.Out(i)
	}
	ft := reflect.FuncOf(in, out, m.Type.IsVariadic())
	name := m.Name
	return reflect.MakeFunc(ft, func(args []reflect.Value) []reflect.Value {
		method := args[0].MethodByName(name)
		if m.Type.IsVariadic() {
			return method.CallSlice(args[1:])
		}
		return method.Call(args[1:])
	})
}

func isOperatorShape(t reflect.Type, op Operator, m *MemberDescriptor) bool {
	if m.ReturnsError {
		return false
	}
	switch op {
	case OpUnaryNegation, OpLogicalNot:
		return len(m.Parameters) == 0 && m.ResultType == t
	case OpEquality:
		return len(m.Parameters) == 1 && m.Parameters[0].Type == t && m.ResultType == BoolType
	case OpComparison:
		return len(m.Parameters) == 1 && m.Parameters[0].Type == t && m.ResultType == IntType
	case OpLeftShift, OpRightShift:
		return len(m.Parameters) == 1 && IsInteger(m.Parameters[0].Type) && m.ResultType == t
	default:
		return len(m.Parameters) == 1 && m.Parameters[0].Type == t && m.ResultType == t
	}
}

// isConversionMethod recognizes zero-argument methods named after a
// numeric kind, such as decimal's Float64 or IntPart, as explicit
// conversions out of the receiver type.
func isConversionMethod(name string, m *MemberDescriptor) bool {
	if len(m.Parameters) != 0 || m.ResultType == nil || !IsNumeric(m.ResultType) {
		return false
	}
	switch name {
	case "Float64", "Float32", "Int64", "Int32", "IntPart", "Uint64":
		return true
	}
	return false
}

// collectNative adds members implemented by the engine.
func (b *builder) collectNative(d *TypeDescriptor) {
	t := d.Type

	d.Members["ToString"] = append(d.Members["ToString"], &MemberDescriptor{
		Name: "ToString", Kind: MemberMethod, DeclaringType: t, ResultType: StringType, Native: NativeToString, depth: 1,
	})

	switch t.Kind() {
	case reflect.Slice, reflect.Array, reflect.String, reflect.Map, reflect.Chan:
		for _, name := range [...]string{"Length", "Count"} {
			d.Members[name] = append(d.Members[name], &MemberDescriptor{
				Name: name, Kind: MemberProperty, DeclaringType: t, ResultType: Int32Type, Native: NativeLen,
			})
		}
	}

	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		d.Indexers = append(d.Indexers, &MemberDescriptor{
			Name: "Item", Kind: MemberIndexer, DeclaringType: t, Native: NativeIndex,
			Parameters: []Parameter{{Name: "index", Type: IntType}}, ResultType: t.Elem(),
		})
	case reflect.String:
		d.Indexers = append(d.Indexers, &MemberDescriptor{
			Name: "Item", Kind: MemberIndexer, DeclaringType: t, Native: NativeIndex,
			Parameters: []Parameter{{Name: "index", Type: IntType}}, ResultType: Uint8Type,
		})
	case reflect.Map:
		d.Indexers = append(d.Indexers, &MemberDescriptor{
			Name: "Item", Kind: MemberIndexer, DeclaringType: t, Native: NativeIndex,
			Parameters: []Parameter{{Name: "key", Type: t.Key()}}, ResultType: t.Elem(),
		})
	case reflect.Func:
		params := make([]Parameter, t.NumIn())
		for i := range params {
			params[i] = Parameter{Name: "arg" + string(rune('1'+i)), Type: t.In(i), Position: i}
		}
		inv := &MemberDescriptor{
			Name: "Invoke", Kind: MemberMethod, DeclaringType: t, Native: NativeInvoke,
			Parameters: params, Variadic: t.IsVariadic(),
		}
		switch {
		case t.NumOut() == 1 && t.Out(0) == ErrorType:
			inv.ReturnsError = true
		case t.NumOut() == 1:
			inv.ResultType = t.Out(0)
		case t.NumOut() == 2 && t.Out(1) == ErrorType:
			inv.ResultType, inv.ReturnsError = t.Out(0), true
		}
		d.Members["Invoke"] = append(d.Members["Invoke"], inv)
	}
	if m, ok := d.Members["Item"]; ok {
		for _, item := range m {
			if item.Kind == MemberMethod && len(item.Parameters) > 0 && item.ResultType != nil {
				idx := *item
				idx.Kind = MemberIndexer
				d.Indexers = append(d.Indexers, &idx)
			}
		}
	}

	if d.IsNullable {
		d.Members["HasValue"] = append(d.Members["HasValue"], &MemberDescriptor{
			Name: "HasValue", Kind: MemberProperty, DeclaringType: t, ResultType: BoolType, Native: NativeHasValue,
		})
		d.Members["Value"] = append(d.Members["Value"], &MemberDescriptor{
			Name: "Value", Kind: MemberProperty, DeclaringType: t, ResultType: t.Elem(), Native: NativeValue,
		})
	}

	switch t.Kind() {
	case reflect.Slice:
		d.Constructors = append(d.Constructors,
			&MemberDescriptor{Name: "new", Kind: MemberConstructor, DeclaringType: t, ResultType: t, Native: NativeMake, Static: true},
			&MemberDescriptor{Name: "new", Kind: MemberConstructor, DeclaringType: t, ResultType: t, Native: NativeMake, Static: true,
				Parameters: []Parameter{{Name: "capacity", Type: IntType}}})
	case reflect.Map:
		d.Constructors = append(d.Constructors,
			&MemberDescriptor{Name: "new", Kind: MemberConstructor, DeclaringType: t, ResultType: t, Native: NativeMake, Static: true},
			&MemberDescriptor{Name: "new", Kind: MemberConstructor, DeclaringType: t, ResultType: t, Native: NativeMake, Static: true,
				Parameters: []Parameter{{Name: "capacity", Type: IntType}}})
	case reflect.Interface, reflect.Func, reflect.Chan, reflect.UnsafePointer:
	case reflect.Pointer:
		if t.Elem().Kind() == reflect.Struct && !IsDecimal(t.Elem()) {
			d.Constructors = append(d.Constructors, &MemberDescriptor{
				Name: "new", Kind: MemberConstructor, DeclaringType: t, ResultType: t, Native: NativeZero, Static: true,
			})
		}
	default:
		d.Constructors = append(d.Constructors, &MemberDescriptor{
			Name: "new", Kind: MemberConstructor, DeclaringType: t, ResultType: t, Native: NativeZero, Static: true,
		})
	}
}

// collectRegistered adds host-registered statics, constructors, extension
// methods, operators and conversions.
func (b *builder) collectRegistered(d *TypeDescriptor) {
	t := d.Type
	for _, m := range b.ext.statics[t] {
		d.Statics[m.Name] = append(d.Statics[m.Name], m)
	}
	d.Constructors = append(d.Constructors, b.ext.constructors[t]...)
	for _, m := range b.ext.methods[t] {
		d.Members[m.Name] = append(d.Members[m.Name], m)
	}
	for _, m := range b.ext.operators[t] {
		d.Operators[m.Operator] = append(d.Operators[m.Operator], m)
	}
	for _, c := range b.ext.conversions {
		from, to := c.Parameters[0].Type, c.ResultType
		implicit := c.Operator == OpImplicitTo
		switch {
		case to == t && implicit:
			d.Operators[OpImplicitTo] = append(d.Operators[OpImplicitTo], c)
		case to == t:
			d.Operators[OpExplicitTo] = append(d.Operators[OpExplicitTo], c)
		}
		switch {
		case from == t && implicit:
			d.Operators[OpImplicitFrom] = append(d.Operators[OpImplicitFrom], c)
		case from == t:
			d.Operators[OpExplicitFrom] = append(d.Operators[OpExplicitFrom], c)
		}
	}
}

func (b *builder) collectInterfaces(d *TypeDescriptor) {
	for _, iface := range b.ext.interfaces {
		if iface != d.Type && d.Type.Implements(iface) {
			d.Interfaces = append(d.Interfaces, iface)
		}
	}
}
