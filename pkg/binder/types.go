package binder

import (
	"reflect"
	"slices"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/syntax"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/typemodel"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/types"
)

// typeReference converts a type-position node into a reference.
func typeReference(n syntax.Node) (typemodel.TypeReference, error) {
	switch n.Kind() {
	case syntax.KindArrayType:
		elemNode, ok := n.Child(syntax.KeyType)
		if !ok {
			return typemodel.TypeReference{}, bindError(types.ErrInvalidCanonicalNode, n.Position(), "array type without an element type")
		}
		elem, err := typeReference(elemNode)
		if err != nil {
			return typemodel.TypeReference{}, err
		}
		return typemodel.ArrayOf(elem), nil
	case syntax.KindPropertyOrField:
		name, _ := n.String(syntax.KeyPropertyOrField)
		var ref typemodel.TypeReference
		if target, ok := n.Child(syntax.KeyExpression); ok {
			outer, err := typeReference(target)
			if err != nil {
				return typemodel.TypeReference{}, err
			}
			if outer.IsEmpty() || (len(outer.Name) == 1 && outer.Name[0] == typemodel.ArrayTypeName) {
				return typemodel.TypeReference{}, bindError(types.ErrUnknownType, n.Position(), "%s is not a type name", syntax.TypeName(n))
			}
			ref = outer
			ref.Name = slices.Clone(outer.Name)
			ref.TypeArguments = slices.Clone(outer.TypeArguments)
		} else if name == "" {
			return typemodel.EmptyTypeReference, nil
		}
		ref.Name = append(ref.Name, name)
		for _, a := range n.Arguments(syntax.KeyArguments) {
			if a.Value == nil {
				return typemodel.TypeReference{}, bindError(types.ErrInvalidCanonicalNode, n.Position(), "missing type argument")
			}
			arg, err := typeReference(a.Value)
			if err != nil {
				return typemodel.TypeReference{}, err
			}
			ref.TypeArguments = append(ref.TypeArguments, arg)
		}
		return ref, nil
	}
	return typemodel.TypeReference{}, bindError(types.ErrUnknownType, n.Position(), "%s is not a type name", syntax.TypeName(n))
}

// typeChain reports whether n can name a type: a dotted chain of plain
// member accesses.
func typeChain(n syntax.Node) (typemodel.TypeReference, bool) {
	for cur := n; cur != nil; {
		if cur.Kind() != syntax.KindPropertyOrField || cur.Bool(syntax.KeyUseNullPropagation) {
			return typemodel.TypeReference{}, false
		}
		next, ok := cur.Child(syntax.KeyExpression)
		if !ok {
			break
		}
		cur = next
	}
	ref, err := typeReference(n)
	if err != nil || ref.IsEmpty() {
		return typemodel.TypeReference{}, false
	}
	return ref, true
}

// resolveType resolves a type-position node.
func (c *BindingContext) resolveType(n syntax.Node) (reflect.Type, error) {
	ref, err := typeReference(n)
	if err != nil {
		return nil, err
	}
	t, err := typemodel.Resolve(c.resolver, ref)
	if err != nil {
		if te, ok := err.(*types.Error); ok {
			return nil, te.WithPosition(n.Position())
		}
		return nil, bindError(types.ErrUnknownType, n.Position(), "unknown type %s: %v", ref, err).WithCause(err)
	}
	return t, nil
}

// resolveTypeAt resolves the type stored under key.
func (c *BindingContext) resolveTypeAt(n syntax.Node, key string) (reflect.Type, error) {
	tn, ok := n.Child(key)
	if !ok {
		return nil, bindError(types.ErrInvalidCanonicalNode, n.Position(), "%s node without a type", n.Kind())
	}
	return c.resolveType(tn)
}

// typeArguments resolves the generic arguments attached to a member name.
func (c *BindingContext) typeArguments(n syntax.Node) ([]reflect.Type, error) {
	args := n.Arguments(syntax.KeyArguments)
	if len(args) == 0 {
		return nil, nil
	}
	out := make([]reflect.Type, len(args))
	for i, a := range args {
		if a.Value == nil {
			return nil, bindError(types.ErrInvalidCanonicalNode, n.Position(), "missing type argument")
		}
		t, err := c.resolveType(a.Value)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}
