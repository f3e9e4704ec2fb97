package typemodel

import (
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"sync"

	"golang.org/x/sync/singleflight"
)

// extensions holds everything registered by the host in addition to what
// reflection discovers.
type extensions struct {
	statics      map[reflect.Type][]*MemberDescriptor
	constructors map[reflect.Type][]*MemberDescriptor
	methods      map[reflect.Type][]*MemberDescriptor
	operators    map[reflect.Type][]*MemberDescriptor
	conversions  []*MemberDescriptor
	interfaces   []reflect.Type
}

func (e extensions) clone() extensions {
	return extensions{
		statics:      maps.Clone(e.statics),
		constructors: maps.Clone(e.constructors),
		methods:      maps.Clone(e.methods),
		operators:    maps.Clone(e.operators),
		conversions:  append([]*MemberDescriptor(nil), e.conversions...),
		interfaces:   append([]reflect.Type(nil), e.interfaces...),
	}
}

// Registry memoizes type descriptors. Reads take a shared lock; a miss
// builds the descriptor and its component types into a private map and
// merges the batch under one exclusive lock. Concurrent misses for the same
// type share one build.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[reflect.Type]*TypeDescriptor
	ext         extensions
	generation  uint64
	group       singleflight.Group
	logger      *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger used for descriptor build records.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithoutBuiltins leaves out the Math and primitive static members.
func WithoutBuiltins() RegistryOption {
	return func(r *Registry) {
		r.ext = extensions{}
	}
}

// NewRegistry creates an isolated registry with the built-in statics.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		descriptors: map[reflect.Type]*TypeDescriptor{},
	}
	registerBuiltins(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Default is the process-wide registry.
var Default = NewRegistry()

func (r *Registry) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}

func (r *Registry) cached(t reflect.Type) (*TypeDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[t]
	return d, ok
}

// Len returns the number of cached descriptors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.descriptors)
}

// Describe returns the descriptor of t, building it on first use.
func (r *Registry) Describe(t reflect.Type) *TypeDescriptor {
	if d, ok := r.cached(t); ok {
		return d
	}
	v, _, _ := r.group.Do(fmt.Sprintf("%p", t), func() (any, error) {
		if d, ok := r.cached(t); ok {
			return d, nil
		}
		r.mu.RLock()
		ext, gen := r.ext, r.generation
		r.mu.RUnlock()

		b := &builder{registry: r, built: map[reflect.Type]*TypeDescriptor{}, ext: ext}
		d := b.describe(t)

		r.mu.Lock()
		if gen == r.generation {
			for bt, bd := range b.built {
				if _, exists := r.descriptors[bt]; !exists {
					r.descriptors[bt] = bd
				}
			}
			d = r.descriptors[t]
		}
		r.mu.Unlock()

		r.log().Debug("described type", "type", t.String(), "batch", len(b.built))
		return d, nil
	})
	return v.(*TypeDescriptor)
}

// mutate applies a registration and drops cached descriptors, which are
// rebuilt on next use.
func (r *Registry) mutate(fn func(ext *extensions)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ext := r.ext.clone()
	fn(&ext)
	r.ext = ext
	r.generation++
	clear(r.descriptors)
}

func appendTo(m *map[reflect.Type][]*MemberDescriptor, t reflect.Type, md *MemberDescriptor) {
	if *m == nil {
		*m = map[reflect.Type][]*MemberDescriptor{}
	}
	(*m)[t] = append(append([]*MemberDescriptor(nil), (*m)[t]...), md)
}

// RegisterStatic attaches a static function to t under name. Parameter
// names enable named arguments.
func (r *Registry) RegisterStatic(t reflect.Type, name string, fn any, paramNames ...string) error {
	md, err := newFuncMember(name, MemberMethod, t, reflect.ValueOf(fn), false, paramNames)
	if err != nil {
		return err
	}
	r.mutate(func(ext *extensions) { appendTo(&ext.statics, t, md) })
	return nil
}

// RegisterStaticValue attaches a static value, such as a constant or an
// enumeration member, to t under name.
func (r *Registry) RegisterStaticValue(t reflect.Type, name string, value any) {
	v := reflect.ValueOf(value)
	md := &MemberDescriptor{
		Name: name, Kind: MemberStaticValue, DeclaringType: t, Static: true,
		ResultType: v.Type(), Value: v,
	}
	r.mutate(func(ext *extensions) { appendTo(&ext.statics, t, md) })
}

// RegisterEnum registers the named values of an enumeration type.
func (r *Registry) RegisterEnum(t reflect.Type, values map[string]any) error {
	if !IsEnum(t) {
		return fmt.Errorf("%s is not a named integer type", t)
	}
	mds := make([]*MemberDescriptor, 0, len(values))
	for name, value := range values {
		v := reflect.ValueOf(value)
		if !v.CanConvert(t) {
			return fmt.Errorf("enum value %s of type %s cannot convert to %s", name, v.Type(), t)
		}
		v = v.Convert(t)
		mds = append(mds, &MemberDescriptor{
			Name: name, Kind: MemberStaticValue, DeclaringType: t, Static: true, ResultType: t, Value: v,
		})
	}
	r.mutate(func(ext *extensions) {
		for _, md := range mds {
			appendTo(&ext.statics, t, md)
		}
	})
	return nil
}

// RegisterGenericStatic attaches a generic static function. instantiate
// returns the func for a given set of type arguments.
func (r *Registry) RegisterGenericStatic(t reflect.Type, name string, g GenericMember, paramNames ...string) {
	md := &MemberDescriptor{
		Name: name, Kind: MemberMethod, DeclaringType: t, Static: true, Generic: &g,
	}
	for i, n := range paramNames {
		md.Parameters = append(md.Parameters, Parameter{Name: n, Position: i})
	}
	r.mutate(func(ext *extensions) { appendTo(&ext.statics, t, md) })
}

// RegisterConstructor registers a func returning T, or (T, error), as a
// constructor of T.
func (r *Registry) RegisterConstructor(fn any, paramNames ...string) error {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.Type().NumOut() == 0 {
		return fmt.Errorf("constructor must be a func returning a value")
	}
	t := v.Type().Out(0)
	md, err := newFuncMember("new", MemberConstructor, t, v, false, paramNames)
	if err != nil {
		return err
	}
	r.mutate(func(ext *extensions) { appendTo(&ext.constructors, t, md) })
	return nil
}

// RegisterMethod registers fn as an extension method of the type of its
// first parameter.
func (r *Registry) RegisterMethod(name string, fn any, paramNames ...string) error {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.Type().NumIn() == 0 {
		return fmt.Errorf("extension method %s must take the receiver as its first parameter", name)
	}
	t := v.Type().In(0)
	md, err := newFuncMember(name, MemberMethod, t, v, true, paramNames)
	if err != nil {
		return err
	}
	md.depth = 1
	r.mutate(func(ext *extensions) { appendTo(&ext.methods, t, md) })
	return nil
}

// RegisterOperator registers a two-argument (or one-argument, for unary
// families) func as a member of an operator family of its first
// parameter's type.
func (r *Registry) RegisterOperator(op Operator, fn any) error {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.Type().NumIn() == 0 {
		return fmt.Errorf("operator %s must be a func", op)
	}
	t := v.Type().In(0)
	md, err := newFuncMember(op.String(), MemberOperator, t, v, false, nil)
	if err != nil {
		return err
	}
	md.Operator = op
	r.mutate(func(ext *extensions) {
		appendTo(&ext.operators, t, md)
		if len(md.Parameters) == 2 && md.Parameters[1].Type != t {
			appendTo(&ext.operators, md.Parameters[1].Type, md)
		}
	})
	return nil
}

// RegisterConversion registers a one-argument func as a user-defined
// conversion from its parameter type to its result type.
func (r *Registry) RegisterConversion(fn any, implicit bool) error {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.Type().NumIn() != 1 || v.Type().NumOut() == 0 {
		return fmt.Errorf("conversion must be a func of one argument returning a value")
	}
	md, err := newFuncMember("convert", MemberConversion, v.Type().Out(0), v, false, nil)
	if err != nil {
		return err
	}
	md.Operator = OpExplicitTo
	if implicit {
		md.Operator = OpImplicitTo
	}
	r.mutate(func(ext *extensions) { ext.conversions = append(ext.conversions, md) })
	return nil
}

// RegisterInterface adds an interface to the set reported in
// TypeDescriptor.Interfaces.
func (r *Registry) RegisterInterface(iface reflect.Type) error {
	if iface.Kind() != reflect.Interface {
		return fmt.Errorf("%s is not an interface", iface)
	}
	r.mutate(func(ext *extensions) { ext.interfaces = append(ext.interfaces, iface) })
	return nil
}

// Reset drops every cached descriptor.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.descriptors)
}
