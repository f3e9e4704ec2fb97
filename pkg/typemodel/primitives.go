package typemodel

import (
	"reflect"

	"github.com/shopspring/decimal"
)

// Frequently used types.
var (
	BoolType    = reflect.TypeFor[bool]()
	Int8Type    = reflect.TypeFor[int8]()
	Int16Type   = reflect.TypeFor[int16]()
	Int32Type   = reflect.TypeFor[int32]()
	Int64Type   = reflect.TypeFor[int64]()
	IntType     = reflect.TypeFor[int]()
	Uint8Type   = reflect.TypeFor[uint8]()
	Uint16Type  = reflect.TypeFor[uint16]()
	Uint32Type  = reflect.TypeFor[uint32]()
	Uint64Type  = reflect.TypeFor[uint64]()
	UintType    = reflect.TypeFor[uint]()
	Float32Type = reflect.TypeFor[float32]()
	Float64Type = reflect.TypeFor[float64]()
	StringType  = reflect.TypeFor[string]()
	DecimalType = reflect.TypeFor[decimal.Decimal]()
	AnyType     = reflect.TypeFor[any]()
	ErrorType   = reflect.TypeFor[error]()
	TypeType    = reflect.TypeFor[reflect.Type]()
)

// Math is the receiver type for the Math static members.
type Math struct{}

// MathType is the reflect.Type of Math.
var MathType = reflect.TypeFor[Math]()

// numericRank orders the numeric types for promotion; higher ranks absorb
// lower ones. Go int and uint rank with their 64-bit counterparts.
var numericRank = map[reflect.Kind]int{
	reflect.Int8:    1,
	reflect.Uint8:   2,
	reflect.Int16:   3,
	reflect.Uint16:  4,
	reflect.Int32:   5,
	reflect.Uint32:  6,
	reflect.Int64:   7,
	reflect.Int:     7,
	reflect.Uint64:  8,
	reflect.Uint:    8,
	reflect.Float32: 9,
	reflect.Float64: 10,
}

// decimalRank is above every primitive numeric rank.
const decimalRank = 11

// IsDecimal reports whether t is the decimal type.
func IsDecimal(t reflect.Type) bool {
	return t == DecimalType
}

// IsNumeric reports whether t is an integer, floating-point or decimal type.
// Named integer types (enums) are numeric too.
func IsNumeric(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if IsDecimal(t) {
		return true
	}
	_, ok := numericRank[t.Kind()]
	return ok
}

// IsInteger reports whether t has an integer kind.
func IsInteger(t reflect.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// IsUnsigned reports whether t has an unsigned integer kind.
func IsUnsigned(t reflect.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

// IsFloat reports whether t has a floating-point kind.
func IsFloat(t reflect.Type) bool {
	return t != nil && (t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64)
}

// NumericRank returns the promotion rank of a numeric type, or 0.
func NumericRank(t reflect.Type) int {
	if t == nil {
		return 0
	}
	if IsDecimal(t) {
		return decimalRank
	}
	return numericRank[t.Kind()]
}

// basicTypes maps kinds to their unnamed types.
var basicTypes = map[reflect.Kind]reflect.Type{
	reflect.Bool:    BoolType,
	reflect.Int:     IntType,
	reflect.Int8:    Int8Type,
	reflect.Int16:   Int16Type,
	reflect.Int32:   Int32Type,
	reflect.Int64:   Int64Type,
	reflect.Uint:    UintType,
	reflect.Uint8:   Uint8Type,
	reflect.Uint16:  Uint16Type,
	reflect.Uint32:  Uint32Type,
	reflect.Uint64:  Uint64Type,
	reflect.Float32: Float32Type,
	reflect.Float64: Float64Type,
	reflect.String:  StringType,
}

// BasicType returns the predeclared type of t's kind, if there is one.
func BasicType(t reflect.Type) (reflect.Type, bool) {
	b, ok := basicTypes[t.Kind()]
	return b, ok
}

// IsEnum reports whether t is a named integer type declared in a package,
// which is how enumerations are expressed.
func IsEnum(t reflect.Type) bool {
	return t != nil && IsInteger(t) && t.PkgPath() != "" && t.Name() != ""
}

// EnumUnderlying returns the predeclared integer type behind an enum, or t.
func EnumUnderlying(t reflect.Type) reflect.Type {
	if IsEnum(t) {
		b, _ := BasicType(t)
		return b
	}
	return t
}

// CanBeNil reports whether a value of type t can hold nil.
func CanBeNil(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

// IsValueType reports whether t cannot hold nil.
func IsValueType(t reflect.Type) bool {
	return !CanBeNil(t)
}

// IsNullable reports whether t is the nullable form *T of a value type T.
// Pointers to structs are ordinary references and not nullable wrappers
// unless the struct is decimal.
func IsNullable(t reflect.Type) bool {
	if t == nil || t.Kind() != reflect.Pointer {
		return false
	}
	e := t.Elem()
	return IsDecimal(e) || (IsValueType(e) && e.Kind() != reflect.Struct && e.Kind() != reflect.Array)
}

// Nullable returns the nullable form of a value type. Types that can
// already hold nil are returned unchanged.
func Nullable(t reflect.Type) reflect.Type {
	if CanBeNil(t) {
		return t
	}
	return reflect.PointerTo(t)
}

// NonNullable strips the nullable wrapper from t.
func NonNullable(t reflect.Type) reflect.Type {
	if IsNullable(t) {
		return t.Elem()
	}
	return t
}

// IsDelegate reports whether t is a func type.
func IsDelegate(t reflect.Type) bool {
	return t != nil && t.Kind() == reflect.Func
}

// IsRestricted reports whether t belongs to the reflection machinery that
// expressions may not inspect unless explicitly allowed.
func IsRestricted(t reflect.Type) bool {
	for t != nil && (t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice) {
		t = t.Elem()
	}
	if t == nil {
		return false
	}
	switch t.PkgPath() {
	case "reflect", modulePath:
		return t != MathType
	}
	return false
}

// modulePath is this package's import path.
var modulePath = reflect.TypeFor[TypeReference]().PkgPath()
