package typemodel

import (
	"reflect"
)

// Quality ranks how well an argument converts to a parameter type. Higher
// is better; Incompatible rejects the candidate.
type Quality int

const (
	QualityIncompatible Quality = 0
	QualityConstant     Quality = 20
	QualityUserImplicit Quality = 40
	QualityNatural      Quality = 90
	QualityExact        Quality = 100
)

// maxNaturalDistance bounds how far a natural conversion can lower the
// quality below QualityNatural.
const maxNaturalDistance = 40

// naturalQuality returns the quality of a natural conversion that crosses
// distance steps.
func naturalQuality(distance int) Quality {
	return QualityNatural - Quality(min(distance, maxNaturalDistance))
}

func (q Quality) String() string {
	switch {
	case q == QualityExact:
		return "exact"
	case q > QualityUserImplicit && q <= QualityNatural:
		return "natural"
	case q == QualityUserImplicit:
		return "user-implicit"
	case q == QualityConstant:
		return "constant"
	case q == QualityIncompatible:
		return "incompatible"
	}
	return "unknown"
}

// Source describes the expression being converted: its static type and,
// for constants, the value. A nil Type with IsConstant is the null literal.
type Source struct {
	Type       reflect.Type
	IsConstant bool
	Value      any
}

// implicitNumeric lists, per kind, the kinds it converts to implicitly.
var implicitNumeric = map[reflect.Kind][]reflect.Kind{
	reflect.Int8:    {reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int, reflect.Float32, reflect.Float64},
	reflect.Uint8:   {reflect.Int16, reflect.Uint16, reflect.Int32, reflect.Uint32, reflect.Int64, reflect.Int, reflect.Uint64, reflect.Uint, reflect.Float32, reflect.Float64},
	reflect.Int16:   {reflect.Int32, reflect.Int64, reflect.Int, reflect.Float32, reflect.Float64},
	reflect.Uint16:  {reflect.Int32, reflect.Uint32, reflect.Int64, reflect.Int, reflect.Uint64, reflect.Uint, reflect.Float32, reflect.Float64},
	reflect.Int32:   {reflect.Int64, reflect.Int, reflect.Float32, reflect.Float64},
	reflect.Uint32:  {reflect.Int64, reflect.Int, reflect.Uint64, reflect.Uint, reflect.Float32, reflect.Float64},
	reflect.Int64:   {reflect.Int, reflect.Float32, reflect.Float64},
	reflect.Int:     {reflect.Int64, reflect.Float32, reflect.Float64},
	reflect.Uint64:  {reflect.Uint, reflect.Float32, reflect.Float64},
	reflect.Uint:    {reflect.Uint64, reflect.Float32, reflect.Float64},
	reflect.Float32: {reflect.Float64},
}

// implicitNumericDistance returns the number of ladder steps for an
// implicit numeric conversion, or -1.
func implicitNumericDistance(from, to reflect.Type) int {
	if IsEnum(from) || IsEnum(to) {
		return -1
	}
	if IsDecimal(to) {
		if IsInteger(from) {
			return decimalRank - NumericRank(from)
		}
		return -1
	}
	if IsDecimal(from) {
		return -1
	}
	if _, ok := basicTypes[from.Kind()]; !ok || from.Name() == "" {
		return -1
	}
	for _, k := range implicitNumeric[from.Kind()] {
		if k == to.Kind() && to == basicTypes[k] {
			return max(1, NumericRank(to)-NumericRank(from))
		}
	}
	return -1
}

// Classify ranks the implicit conversion of src to the type to. It does not
// consult user-defined conversions; see Registry.Classify.
func Classify(src Source, to reflect.Type) Quality {
	from := src.Type
	if from == nil {
		// null literal
		if src.IsConstant && CanBeNil(to) {
			return QualityNatural
		}
		return QualityIncompatible
	}
	if from == to {
		return QualityExact
	}

	if d := implicitNumericDistance(from, to); d >= 0 {
		return naturalQuality(d)
	}

	// Nullable lifting: T -> *T and *S -> *T.
	if to.Kind() == reflect.Pointer && IsValueType(to.Elem()) {
		if from == to.Elem() {
			return naturalQuality(1)
		}
		inner := from
		if IsNullable(from) {
			inner = from.Elem()
		} else if !IsValueType(from) {
			inner = nil
		}
		if inner != nil {
			if d := implicitNumericDistance(inner, to.Elem()); d >= 0 {
				return naturalQuality(d + 1)
			}
		}
	}

	if to.Kind() == reflect.Interface && from.Implements(to) {
		if to.NumMethod() == 0 {
			return naturalQuality(20)
		}
		return naturalQuality(5)
	}

	// Assignable unnamed composite types, such as []int to a named slice.
	if from.AssignableTo(to) {
		return naturalQuality(2)
	}

	if src.IsConstant && ConstantFits(src.Value, to) {
		return QualityConstant
	}
	return QualityIncompatible
}

// ConstantFits reports whether an integer constant is representable in the
// integer type to, enabling in-place constant conversion.
func ConstantFits(value any, to reflect.Type) bool {
	target := NonNullable(to)
	if !IsInteger(target) || IsEnum(target) {
		return false
	}
	v := reflect.ValueOf(value)
	if !v.IsValid() || !IsInteger(v.Type()) {
		return false
	}
	if IsUnsigned(v.Type()) {
		u := v.Uint()
		if IsUnsigned(target) {
			return !reflect.Zero(target).OverflowUint(u)
		}
		return u <= 1<<63-1 && !reflect.Zero(target).OverflowInt(int64(u))
	}
	i := v.Int()
	if IsUnsigned(target) {
		return i >= 0 && !reflect.Zero(target).OverflowUint(uint64(i))
	}
	return !reflect.Zero(target).OverflowInt(i)
}

// CanConvertExplicit reports whether a cast from one type to another is
// allowed, not counting user-defined conversions.
func CanConvertExplicit(from, to reflect.Type) bool {
	if from == nil {
		return CanBeNil(to)
	}
	if from == to || Classify(Source{Type: from}, to) != QualityIncompatible {
		return true
	}
	f, t := NonNullable(from), NonNullable(to)
	switch {
	case IsNumeric(f) && IsNumeric(t):
		return true
	case f == t:
		return true
	case f.Kind() == reflect.Interface:
		// Checked at run time.
		return t.Kind() == reflect.Interface || t.Implements(f)
	case t.Kind() == reflect.Interface:
		return true
	case f.ConvertibleTo(t) && f.Kind() == t.Kind():
		return true
	}
	return false
}
