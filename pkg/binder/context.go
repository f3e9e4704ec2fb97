package binder

import (
	"log/slog"
	"reflect"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/typemodel"
)

// Parameter is a named, typed input of an expression or lambda.
type Parameter struct {
	Name string
	Type reflect.Type
}

// Options configures binding.
type Options struct {
	// Registry supplies type descriptors. Defaults to typemodel.Default.
	Registry *typemodel.Registry
	// Global is an optional value whose members are visible unqualified.
	Global any
	// AllowReflection permits member access on reflection and type model
	// types, such as the result of typeof.
	AllowReflection bool
	// Logger receives debug records of overload decisions.
	Logger *slog.Logger
}

// Option is a functional option for Bind.
type Option func(*Options)

// WithRegistry binds against a specific descriptor registry.
func WithRegistry(r *typemodel.Registry) Option {
	return func(o *Options) {
		o.Registry = r
	}
}

// WithGlobal makes the members of v visible without a receiver.
func WithGlobal(v any) Option {
	return func(o *Options) {
		o.Global = v
	}
}

// WithAllowReflection permits member access on restricted types.
func WithAllowReflection(allow bool) Option {
	return func(o *Options) {
		o.AllowReflection = allow
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// BindingContext is the scope an expression is bound in: the visible
// parameters, the expected result type and the shared services.
type BindingContext struct {
	parameters []Parameter
	resultType reflect.Type
	global     *ConstantExpr
	resolver   typemodel.Resolver
	registry   *typemodel.Registry
	allowRefl  bool
	logger     *slog.Logger

	// captures maps parameters past the lambda's own ones to their index
	// in the parent context.
	captures []int
	// nullTargets collects the receivers of the null-conditional chain
	// being bound.
	nullTargets []Expr
}

// NewContext creates a root binding context.
func NewContext(params []Parameter, result reflect.Type, resolver typemodel.Resolver, opts ...Option) *BindingContext {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	if o.Registry == nil {
		o.Registry = typemodel.Default
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	c := &BindingContext{
		parameters: params,
		resultType: result,
		resolver:   resolver,
		registry:   o.Registry,
		allowRefl:  o.AllowReflection,
		logger:     o.Logger,
	}
	if o.Global != nil {
		c.global = constant(o.Global, reflect.TypeOf(o.Global), noPos)
	}
	return c
}

// Nested creates the context of a lambda body. Its parameters are params
// followed by the parameters of c that params do not shadow.
func (c *BindingContext) Nested(params []Parameter, result reflect.Type) *BindingContext {
	shadowed := make(map[string]bool, len(params))
	for _, p := range params {
		shadowed[p.Name] = true
	}
	n := &BindingContext{
		parameters: append([]Parameter(nil), params...),
		resultType: result,
		global:     c.global,
		resolver:   c.resolver,
		registry:   c.registry,
		allowRefl:  c.allowRefl,
		logger:     c.logger,
	}
	for i, p := range c.parameters {
		if shadowed[p.Name] {
			continue
		}
		n.parameters = append(n.parameters, p)
		n.captures = append(n.captures, i)
	}
	return n
}

// Parameters returns the parameters visible in the context.
func (c *BindingContext) Parameters() []Parameter {
	return c.parameters
}

// ResultType returns the expected result type, or nil.
func (c *BindingContext) ResultType() reflect.Type {
	return c.resultType
}

// Registry returns the descriptor registry.
func (c *BindingContext) Registry() *typemodel.Registry {
	return c.registry
}

func (c *BindingContext) parameter(name string) (int, bool) {
	for i, p := range c.parameters {
		if p.Name == name {
			return i, true
		}
	}
	return -1, false
}

func (c *BindingContext) describe(t reflect.Type) *typemodel.TypeDescriptor {
	return c.registry.Describe(t)
}
