package binder

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/syntax"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/typemodel"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/types"
)

// argument is one supplied call argument. Lambdas stay unbound (expr is
// nil) until a candidate provides the func type they bind against.
type argument struct {
	name string
	node syntax.Node
	expr Expr
}

func (a argument) label(i int) string {
	if a.name != "" {
		return a.name
	}
	return fmt.Sprintf("#%d", i)
}

// arguments binds the argument map of n: positional arguments in order,
// then named ones.
func (c *BindingContext) arguments(n syntax.Node) ([]argument, error) {
	entries := n.Arguments(syntax.KeyArguments)
	out := make([]argument, 0, len(entries))
	for i, a := range entries {
		if a.Index >= 0 && a.Index != i {
			return nil, bindError(types.ErrInvalidCanonicalNode, n.Position(), "positional argument %d is missing", i)
		}
		if a.Value == nil {
			return nil, bindError(types.ErrInvalidCanonicalNode, n.Position(), "argument %s is not an expression", argument{name: a.Name}.label(i))
		}
		arg := argument{name: a.Name, node: a.Value}
		if !isDeferred(a.Value) {
			e, err := c.bind(a.Value)
			if err != nil {
				return nil, err
			}
			arg.expr = e
		}
		out = append(out, arg)
	}
	return out, nil
}

// match is a candidate that accepts the arguments.
type match struct {
	member *typemodel.MemberDescriptor
	args   []Expr
	worst  typemodel.Quality
	total  int
}

// better reports whether m ranks strictly above other.
func (m *match) better(other *match) bool {
	if m.worst != other.worst {
		return m.worst > other.worst
	}
	if m.total != other.total {
		return m.total > other.total
	}
	return m.member.Precedes(other.member)
}

// resolveOverload selects the candidate that accepts args with the best
// conversion quality. An exact match ends the search; a tie between the
// best candidates is an error, never a silent pick.
func (c *BindingContext) resolveOverload(candidates []*typemodel.MemberDescriptor, typeArgs []reflect.Type, args []argument, name, on string, pos types.Position) (*typemodel.MemberDescriptor, []Expr, error) {
	if len(candidates) == 0 {
		return nil, nil, bindError(types.ErrUnknownMember, pos, "%s has no member %q", on, name)
	}
	var (
		best    *match
		tied    *match
		reasons *multierror.Error
	)
	for _, cand := range candidates {
		m, err := c.tryCandidate(cand, typeArgs, args, pos)
		if err != nil {
			reasons = multierror.Append(reasons, fmt.Errorf("%s: %w", cand.Signature(), err))
			continue
		}
		switch {
		case best == nil || m.better(best):
			best, tied = m, nil
		case !best.better(m):
			tied = m
		}
		if best.worst == typemodel.QualityExact && tied == nil {
			break
		}
	}
	if best == nil {
		reasons.ErrorFormat = listFormat
		return nil, nil, bindError(types.ErrNoOverload, pos,
			"no overload of %s on %s accepts %d arguments: %s", name, on, len(args), reasons).WithCause(reasons.ErrorOrNil())
	}
	if tied != nil {
		return nil, nil, bindError(types.ErrAmbiguousOverload, pos,
			"call of %s on %s with %d arguments is ambiguous between %s and %s",
			name, on, len(args), best.member.Signature(), tied.member.Signature())
	}
	c.logger.Debug("overload selected",
		"member", best.member.Signature(),
		"quality", best.worst.String(),
		"candidates", len(candidates))
	return best.member, best.args, nil
}

func listFormat(errs []error) string {
	parts := make([]string, len(errs))
	for i, err := range errs {
		parts[i] = err.Error()
	}
	return strings.Join(parts, "; ")
}

// tryCandidate binds args to the parameters of m.
func (c *BindingContext) tryCandidate(m *typemodel.MemberDescriptor, typeArgs []reflect.Type, args []argument, pos types.Position) (*match, error) {
	m, err := c.specialize(m, typeArgs, args)
	if err != nil {
		return nil, err
	}

	params := m.Parameters
	n := len(params)
	slots := make([]*argument, n)
	var tail []*argument
	for i := range args {
		a := &args[i]
		if a.name == "" {
			switch {
			case m.Variadic && i >= n-1:
				tail = append(tail, a)
			case i >= n:
				return nil, fmt.Errorf("takes %d arguments, got %d", n, len(args))
			default:
				slots[i] = a
			}
			continue
		}
		j := m.ParameterIndex(a.name)
		if j < 0 {
			return nil, types.Errorf(types.BindError, types.ErrUnknownParameter, pos, "has no parameter named %q", a.name)
		}
		if slots[j] != nil || (m.Variadic && j == n-1 && len(tail) > 0) {
			return nil, fmt.Errorf("parameter %q is given more than once", a.name)
		}
		slots[j] = a
	}
	// A single argument for the variadic parameter may be the slice itself.
	if m.Variadic && len(tail) == 1 && tail[0].expr != nil {
		if q, _ := c.quality(tail[0].expr, params[n-1].Type); q != typemodel.QualityIncompatible {
			slots[n-1], tail = tail[0], nil
		}
	}

	out := &match{member: m, args: make([]Expr, n), worst: typemodel.QualityExact}
	record := func(q typemodel.Quality) {
		out.worst = min(out.worst, q)
		out.total += int(q)
	}
	for j, p := range params {
		a := slots[j]
		if m.Variadic && j == n-1 && a == nil {
			elem := p.Type.Elem()
			items := make([]Expr, len(tail))
			for k, t := range tail {
				e, q, err := c.argumentFor(t, elem, n-1+k)
				if err != nil {
					return nil, err
				}
				items[k] = e
				record(q)
			}
			out.args[j] = &NewArrayExpr{node: node{typ: p.Type, pos: pos}, Elem: elem, Items: items}
			continue
		}
		if a == nil {
			if !p.HasDefault {
				return nil, fmt.Errorf("no argument for parameter %s", argument{name: p.Name}.label(j))
			}
			out.args[j] = constant(p.Default, p.Type, pos)
			continue
		}
		e, q, err := c.argumentFor(a, p.Type, j)
		if err != nil {
			return nil, err
		}
		out.args[j] = e
		record(q)
	}
	return out, nil
}

// specialize instantiates a generic candidate with explicit or inferred
// type arguments.
func (c *BindingContext) specialize(m *typemodel.MemberDescriptor, typeArgs []reflect.Type, args []argument) (*typemodel.MemberDescriptor, error) {
	if !m.IsGeneric() {
		if len(typeArgs) > 0 {
			return nil, fmt.Errorf("is not generic")
		}
		return m, nil
	}
	if len(typeArgs) == 0 {
		if m.Generic.Infer == nil {
			return nil, fmt.Errorf("type arguments cannot be inferred")
		}
		argTypes := make([]reflect.Type, len(args))
		for i, a := range args {
			if a.expr != nil {
				argTypes[i] = a.expr.Type()
			}
		}
		inferred, ok := m.Generic.Infer(argTypes)
		if !ok {
			return nil, fmt.Errorf("type arguments cannot be inferred from the arguments")
		}
		typeArgs = inferred
	}
	return m.Specialize(typeArgs)
}

// argumentFor converts one argument to a parameter type, binding a
// deferred lambda against it.
func (c *BindingContext) argumentFor(a *argument, t reflect.Type, i int) (Expr, typemodel.Quality, error) {
	if a.expr == nil {
		e, err := c.bindExpected(a.node, t)
		if err != nil {
			return nil, 0, err
		}
		if e.Type() != t {
			return nil, 0, fmt.Errorf("argument %s: lambda does not fit %s", a.label(i), t)
		}
		return e, typemodel.QualityExact, nil
	}
	q, conv := c.quality(a.expr, t)
	if q == typemodel.QualityIncompatible {
		return nil, 0, fmt.Errorf("argument %s: cannot convert %s to %s", a.label(i), typeName(a.expr.Type()), t)
	}
	return applyConversion(a.expr, t, conv), q, nil
}
