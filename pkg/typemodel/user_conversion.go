package typemodel

import (
	"reflect"
)

// Classify ranks the implicit conversion of src to t, including
// registered implicit conversions. The conversion member is returned when
// one is needed.
func (r *Registry) Classify(src Source, t reflect.Type) (Quality, *MemberDescriptor) {
	if q := Classify(src, t); q != QualityIncompatible {
		return q, nil
	}
	if src.Type == nil {
		return QualityIncompatible, nil
	}
	if m := r.FindConversion(src.Type, t, true); m != nil {
		return QualityUserImplicit, m
	}
	return QualityIncompatible, nil
}

// FindConversion looks up a user-defined conversion from one type to
// another. With implicitOnly set only implicit conversions qualify. The
// parameter must accept from with a built-in implicit conversion and the
// result must be t exactly; for explicit lookups a numeric result is also
// accepted when t is numeric, leaving the last step to a numeric cast.
func (r *Registry) FindConversion(from, t reflect.Type, implicitOnly bool) *MemberDescriptor {
	families := []Operator{OpImplicitTo, OpImplicitFrom}
	if !implicitOnly {
		families = append(families, OpExplicitTo, OpExplicitFrom)
	}
	var candidates []*MemberDescriptor
	toDesc, fromDesc := r.Describe(t), r.Describe(from)
	for _, op := range families {
		candidates = append(candidates, toDesc.Operators[op]...)
		candidates = append(candidates, fromDesc.Operators[op]...)
	}

	var best *MemberDescriptor
	bestQuality := QualityIncompatible
	for _, c := range candidates {
		var param reflect.Type
		switch {
		case len(c.Parameters) == 1 && c.Static:
			param = c.Parameters[0].Type
		case len(c.Parameters) == 0 && !c.Static:
			// Conversion method on the receiver.
			param = c.DeclaringType
		default:
			continue
		}
		q := Classify(Source{Type: from}, param)
		if q == QualityIncompatible {
			continue
		}
		switch {
		case c.ResultType == t:
			q += 1
		case !implicitOnly && IsNumeric(c.ResultType) && IsNumeric(NonNullable(t)):
		default:
			continue
		}
		if q > bestQuality || (q == bestQuality && best != nil && c.Compare(best) < 0) {
			best, bestQuality = c, q
		}
	}
	return best
}
