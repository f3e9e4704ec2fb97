package typemodel

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/constraints"
)

type signed interface {
	constraints.Signed | constraints.Float
}

type ordered interface {
	constraints.Integer | constraints.Float
}

func abs[T signed](x T) T {
	if x < 0 {
		return -x
	}
	return x
}

func maxOf[T ordered](a, b T) T { return max(a, b) }

func minOf[T ordered](a, b T) T { return min(a, b) }

func sign[T signed](x T) int32 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func registerLimits[T ordered](r *Registry, minValue, maxValue T, bits int) {
	t := reflect.TypeFor[T]()
	r.RegisterStaticValue(t, "MinValue", minValue)
	r.RegisterStaticValue(t, "MaxValue", maxValue)
	var parse any
	switch {
	case IsFloat(t):
		parse = func(s string) (T, error) {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), bits)
			return T(v), err
		}
	case IsUnsigned(t):
		parse = func(s string) (T, error) {
			v, err := strconv.ParseUint(strings.TrimSpace(s), 10, bits)
			return T(v), err
		}
	default:
		parse = func(s string) (T, error) {
			v, err := strconv.ParseInt(strings.TrimSpace(s), 10, bits)
			return T(v), err
		}
	}
	must(r.RegisterStatic(t, "Parse", parse, "s"))
}

func must(err error) {
	if err != nil {
		panic(fmt.Sprintf("typemodel: registering built-in member: %v", err))
	}
}

// registerBuiltins installs the Math statics, numeric limits and parsing,
// decimal and string helpers.
func registerBuiltins(r *Registry) {
	registerLimits(r, int8(math.MinInt8), int8(math.MaxInt8), 8)
	registerLimits(r, int16(math.MinInt16), int16(math.MaxInt16), 16)
	registerLimits(r, int32(math.MinInt32), int32(math.MaxInt32), 32)
	registerLimits(r, int64(math.MinInt64), int64(math.MaxInt64), 64)
	registerLimits(r, int(math.MinInt), int(math.MaxInt), 64)
	registerLimits(r, uint8(0), uint8(math.MaxUint8), 8)
	registerLimits(r, uint16(0), uint16(math.MaxUint16), 16)
	registerLimits(r, uint32(0), uint32(math.MaxUint32), 32)
	registerLimits(r, uint64(0), uint64(math.MaxUint64), 64)
	registerLimits(r, float32(-math.MaxFloat32), float32(math.MaxFloat32), 32)
	registerLimits(r, -math.MaxFloat64, math.MaxFloat64, 64)

	for _, t := range []reflect.Type{Float32Type, Float64Type} {
		conv := func(f float64) reflect.Value { return reflect.ValueOf(f).Convert(t) }
		r.RegisterStaticValue(t, "NaN", conv(math.NaN()).Interface())
		r.RegisterStaticValue(t, "PositiveInfinity", conv(math.Inf(1)).Interface())
		r.RegisterStaticValue(t, "NegativeInfinity", conv(math.Inf(-1)).Interface())
	}
	r.RegisterStaticValue(Float64Type, "Epsilon", math.SmallestNonzeroFloat64)
	r.RegisterStaticValue(Float32Type, "Epsilon", float32(math.SmallestNonzeroFloat32))
	must(r.RegisterStatic(Float64Type, "IsNaN", math.IsNaN, "d"))
	must(r.RegisterStatic(Float64Type, "IsInfinity", func(f float64) bool { return math.IsInf(f, 0) }, "d"))

	registerMath(r)

	r.RegisterStaticValue(DecimalType, "Zero", decimal.Zero)
	r.RegisterStaticValue(DecimalType, "One", decimal.NewFromInt(1))
	must(r.RegisterStatic(DecimalType, "Parse", decimal.NewFromString, "s"))
	must(r.RegisterStatic(DecimalType, "Round", func(d decimal.Decimal, places int32) decimal.Decimal { return d.Round(places) }, "d", "decimals"))

	r.RegisterStaticValue(StringType, "Empty", "")
	must(r.RegisterStatic(StringType, "IsNullOrEmpty", func(s string) bool { return s == "" }, "value"))
	must(r.RegisterStatic(StringType, "IsNullOrWhiteSpace", func(s string) bool { return strings.TrimSpace(s) == "" }, "value"))
	must(r.RegisterStatic(StringType, "Join", func(sep string, values ...string) string { return strings.Join(values, sep) }, "separator", "values"))
	must(r.RegisterStatic(StringType, "Concat", func(values ...string) string { return strings.Join(values, "") }, "values"))
	must(r.RegisterStatic(StringType, "Format", func(format string, args ...any) string { return formatComposite(format, args) }, "format", "args"))

	registerStringMethods(r)
}

func registerMath(r *Registry) {
	m := MathType
	r.RegisterStaticValue(m, "PI", math.Pi)
	r.RegisterStaticValue(m, "E", math.E)

	for _, fn := range []any{abs[int8], abs[int16], abs[int32], abs[int64], abs[float32], abs[float64], decimal.Decimal.Abs} {
		must(r.RegisterStatic(m, "Abs", fn, "value"))
	}
	for _, fn := range []any{
		maxOf[int32], maxOf[uint32], maxOf[int64], maxOf[uint64], maxOf[float32], maxOf[float64],
		func(a, b decimal.Decimal) decimal.Decimal { return decimal.Max(a, b) },
	} {
		must(r.RegisterStatic(m, "Max", fn, "val1", "val2"))
	}
	for _, fn := range []any{
		minOf[int32], minOf[uint32], minOf[int64], minOf[uint64], minOf[float32], minOf[float64],
		func(a, b decimal.Decimal) decimal.Decimal { return decimal.Min(a, b) },
	} {
		must(r.RegisterStatic(m, "Min", fn, "val1", "val2"))
	}
	for _, fn := range []any{sign[int32], sign[int64], sign[float32], sign[float64]} {
		must(r.RegisterStatic(m, "Sign", fn, "value"))
	}

	unary := map[string]func(float64) float64{
		"Sqrt": math.Sqrt, "Floor": math.Floor, "Ceiling": math.Ceil, "Truncate": math.Trunc,
		"Sin": math.Sin, "Cos": math.Cos, "Tan": math.Tan, "Asin": math.Asin, "Acos": math.Acos, "Atan": math.Atan,
		"Log": math.Log, "Log10": math.Log10, "Exp": math.Exp, "Round": math.RoundToEven,
	}
	for name, fn := range unary {
		must(r.RegisterStatic(m, name, fn, "d"))
	}
	must(r.RegisterStatic(m, "Pow", math.Pow, "x", "y"))
	must(r.RegisterStatic(m, "Atan2", math.Atan2, "y", "x"))
	must(r.RegisterStatic(m, "Floor", decimal.Decimal.Floor, "d"))
	must(r.RegisterStatic(m, "Ceiling", decimal.Decimal.Ceil, "d"))
	must(r.RegisterStatic(m, "Truncate", func(d decimal.Decimal) decimal.Decimal { return d.Truncate(0) }, "d"))
	must(r.RegisterStatic(m, "Round", func(d decimal.Decimal) decimal.Decimal { return d.RoundBank(0) }, "d"))
	must(r.RegisterStatic(m, "Round", func(d float64, digits int32) float64 {
		p := math.Pow(10, float64(digits))
		return math.RoundToEven(d*p) / p
	}, "value", "digits"))
	must(r.RegisterStatic(m, "Clamp", func(v, lo, hi float64) float64 { return max(lo, min(v, hi)) }, "value", "min", "max"))
	must(r.RegisterStatic(m, "Clamp", func(v, lo, hi int32) int32 { return max(lo, min(v, hi)) }, "value", "min", "max"))
}

func registerStringMethods(r *Registry) {
	methods := []struct {
		name   string
		fn     any
		params []string
	}{
		{"ToUpper", strings.ToUpper, nil},
		{"ToLower", strings.ToLower, nil},
		{"Trim", strings.TrimSpace, nil},
		{"TrimStart", func(s string) string { return strings.TrimLeft(s, " \t\r\n") }, nil},
		{"TrimEnd", func(s string) string { return strings.TrimRight(s, " \t\r\n") }, nil},
		{"Contains", strings.Contains, []string{"value"}},
		{"StartsWith", strings.HasPrefix, []string{"value"}},
		{"EndsWith", strings.HasSuffix, []string{"value"}},
		{"IndexOf", func(s, v string) int32 { return int32(strings.Index(s, v)) }, []string{"value"}},
		{"LastIndexOf", func(s, v string) int32 { return int32(strings.LastIndex(s, v)) }, []string{"value"}},
		{"Replace", func(s, old, repl string) string { return strings.ReplaceAll(s, old, repl) }, []string{"oldValue", "newValue"}},
		{"Split", func(s, sep string) []string { return strings.Split(s, sep) }, []string{"separator"}},
		{"Substring", substring, []string{"startIndex"}},
		{"Substring", substringLen, []string{"startIndex", "length"}},
		{"PadLeft", func(s string, n int32) string { return pad(s, int(n), true) }, []string{"totalWidth"}},
		{"PadRight", func(s string, n int32) string { return pad(s, int(n), false) }, []string{"totalWidth"}},
	}
	for _, m := range methods {
		must(r.RegisterMethod(m.name, m.fn, m.params...))
	}
}

func substring(s string, start int32) (string, error) {
	if start < 0 || int(start) > len(s) {
		return "", fmt.Errorf("startIndex %d is out of range for a string of length %d", start, len(s))
	}
	return s[start:], nil
}

func substringLen(s string, start, length int32) (string, error) {
	if start < 0 || length < 0 || int(start)+int(length) > len(s) {
		return "", fmt.Errorf("range [%d, %d) is out of range for a string of length %d", start, start+length, len(s))
	}
	return s[start : start+length], nil
}

func pad(s string, width int, left bool) string {
	if len(s) >= width {
		return s
	}
	fill := strings.Repeat(" ", width-len(s))
	if left {
		return fill + s
	}
	return s + fill
}

// formatComposite expands {0}, {1} placeholders.
func formatComposite(format string, args []any) string {
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		switch {
		case c == '{' && i+1 < len(format) && format[i+1] == '{':
			b.WriteByte('{')
			i++
		case c == '}' && i+1 < len(format) && format[i+1] == '}':
			b.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(format[i:], '}')
			if end < 0 {
				b.WriteString(format[i:])
				return b.String()
			}
			spec := format[i+1 : i+end]
			if comma := strings.IndexAny(spec, ",:"); comma >= 0 {
				spec = spec[:comma]
			}
			if n, err := strconv.Atoi(spec); err == nil && n >= 0 && n < len(args) {
				fmt.Fprint(&b, args[n])
			}
			i += end
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
