// Package ext provides optional static classes for expressions that go
// beyond the built-in Math, string and decimal members.
//
// Each Library is a host type whose static members are registered on a
// typemodel.Registry and whose name is made resolvable by the type
// resolver:
//   - Text     – CamelCase, SnakeCase, KebabCase, TitleCase, Reverse, WordCount
//   - Numeric  – Clamp, Trunc, Log, trigonometry, Sum, Average, Median
//   - Hash     – Md5, Sha1, Sha256, Sha512, Hmac
//   - Guid     – NewGuid, Parse, Empty
//   - DateTime – Parse, FromUnix, UnixEpoch, AddDays, DaysBetween
//
// # Integration – all libraries at once
//
//	eng, err := cseval.New(cseval.WithExtensions(ext.All()...))
//
// # Integration – by library
//
//	v, err := cseval.Eval(ctx, `Hash.Sha256(s)`, cseval.WithExtensions(ext.Hash()), cseval.WithArg("s", "abc"))
//
// # Integration – by hand
//
//	r := typemodel.NewRegistry()
//	named, err := ext.Install(r, ext.Text(), ext.Numeric())
//	resolver := typemodel.NewKnownTypes(named...)
package ext

import (
	"fmt"
	"reflect"

	"github.com/hashicorp/go-multierror"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/typemodel"
)

// Library is a static class exposed to expressions under Name.
type Library struct {
	Name     string
	Type     reflect.Type
	register func(r *typemodel.Registry) error
}

// Register adds the static members of l to r.
func (l Library) Register(r *typemodel.Registry) error {
	if l.register == nil {
		return nil
	}
	if err := l.register(r); err != nil {
		return fmt.Errorf("library %s: %w", l.Name, err)
	}
	return nil
}

// All returns every library.
func All() []Library {
	return []Library{Text(), Numeric(), Hash(), Guid(), DateTime()}
}

// Install registers libs on r and returns the resolver options that make
// their names resolvable. Every library is attempted; the errors of the
// ones that fail are combined.
func Install(r *typemodel.Registry, libs ...Library) ([]typemodel.KnownTypesOption, error) {
	var errs *multierror.Error
	named := make([]typemodel.KnownTypesOption, 0, len(libs))
	for _, l := range libs {
		if err := l.Register(r); err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		named = append(named, typemodel.WithNamedType(l.Name, l.Type))
	}
	return named, errs.ErrorOrNil()
}

type static struct {
	name   string
	fn     any
	params []string
}

// registerStatics adds members to t, stopping at the first rejected
// signature.
func registerStatics(r *typemodel.Registry, t reflect.Type, members []static) error {
	for _, m := range members {
		if err := r.RegisterStatic(t, m.name, m.fn, m.params...); err != nil {
			return fmt.Errorf("%s: %w", m.name, err)
		}
	}
	return nil
}
