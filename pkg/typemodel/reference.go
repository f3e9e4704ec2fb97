package typemodel

import (
	"slices"
	"strings"
)

// TypeReference names a type by its dotted name parts and generic type
// arguments. It is the lookup key for a Resolver.
type TypeReference struct {
	Name          []string
	TypeArguments []TypeReference
}

// ArrayTypeName is the name of the one-argument reference that stands for
// an array of its argument, T[].
const ArrayTypeName = "[]"

// ArrayOf builds the reference of an array of elem.
func ArrayOf(elem TypeReference) TypeReference {
	return TypeReference{Name: []string{ArrayTypeName}, TypeArguments: []TypeReference{elem}}
}

// EmptyTypeReference is the open generic argument placeholder, as in List<>.
var EmptyTypeReference = TypeReference{}

// NewTypeReference builds a reference from a dotted name.
func NewTypeReference(name string, typeArgs ...TypeReference) TypeReference {
	return TypeReference{Name: strings.Split(name, "."), TypeArguments: typeArgs}
}

// IsEmpty reports whether r is the open generic placeholder.
func (r TypeReference) IsEmpty() bool {
	return len(r.Name) == 0
}

// IsOpen reports whether any type argument, at any depth, is a placeholder.
func (r TypeReference) IsOpen() bool {
	for _, a := range r.TypeArguments {
		if a.IsEmpty() || a.IsOpen() {
			return true
		}
	}
	return false
}

// Arity counts the type arguments across all dotted parts, so a type nested
// inside a generic type carries the arity of every enclosing level.
func (r TypeReference) Arity() int {
	return len(r.TypeArguments)
}

// FullName joins the name parts with dots.
func (r TypeReference) FullName() string {
	return strings.Join(r.Name, ".")
}

// ShortName returns the last name part.
func (r TypeReference) ShortName() string {
	if len(r.Name) == 0 {
		return ""
	}
	return r.Name[len(r.Name)-1]
}

// Equal reports value equality.
func (r TypeReference) Equal(other TypeReference) bool {
	return slices.Equal(r.Name, other.Name) &&
		slices.EqualFunc(r.TypeArguments, other.TypeArguments, TypeReference.Equal)
}

// String renders the reference as Name<Arg1,Arg2>.
func (r TypeReference) String() string {
	var b strings.Builder
	r.write(&b)
	return b.String()
}

func (r TypeReference) write(b *strings.Builder) {
	if len(r.Name) == 1 && r.Name[0] == ArrayTypeName && len(r.TypeArguments) == 1 {
		r.TypeArguments[0].write(b)
		b.WriteString("[]")
		return
	}
	b.WriteString(r.FullName())
	if len(r.TypeArguments) == 0 {
		return
	}
	b.WriteByte('<')
	for i, a := range r.TypeArguments {
		if i > 0 {
			b.WriteByte(',')
		}
		a.write(b)
	}
	b.WriteByte('>')
}
