package ext

import (
	"fmt"
	"math"
	"reflect"
	"slices"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/constraints"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/typemodel"
)

// NumericClass holds the Numeric library.
type NumericClass struct{}

// Numeric returns rounding, logarithm, trigonometry and aggregate
// helpers.
func Numeric() Library {
	t := reflect.TypeFor[NumericClass]()
	return Library{Name: "Numeric", Type: t, register: func(r *typemodel.Registry) error {
		members := []static{
			{"Trunc", math.Trunc, []string{"value"}},
			{"Log", math.Log, []string{"value"}},
			{"Log", func(v, base float64) float64 { return math.Log(v) / math.Log(base) }, []string{"value", "newBase"}},
			{"Log10", math.Log10, []string{"value"}},
			{"Sin", math.Sin, []string{"a"}},
			{"Cos", math.Cos, []string{"a"}},
			{"Tan", math.Tan, []string{"a"}},
			{"Atan2", math.Atan2, []string{"y", "x"}},
			{"Sqrt", math.Sqrt, []string{"value"}},
			{"Pow", math.Pow, []string{"x", "y"}},
			{"Clamp", func(v, lo, hi decimal.Decimal) (decimal.Decimal, error) {
				if lo.GreaterThan(hi) {
					return decimal.Zero, fmt.Errorf("min %s is greater than max %s", lo, hi)
				}
				return decimal.Min(decimal.Max(v, lo), hi), nil
			}, []string{"value", "min", "max"}},
			{"Sum", sum[int64], []string{"values"}},
			{"Sum", sum[float64], []string{"values"}},
			{"Average", Average, []string{"values"}},
			{"Median", Median, []string{"values"}},
		}
		for _, fn := range []any{clamp[int32], clamp[int64], clamp[float64]} {
			members = append(members, static{"Clamp", fn, []string{"value", "min", "max"}})
		}
		return registerStatics(r, t, members)
	}}
}

func clamp[T constraints.Integer | constraints.Float](v, lo, hi T) (T, error) {
	if lo > hi {
		var zero T
		return zero, fmt.Errorf("min %v is greater than max %v", lo, hi)
	}
	return min(max(v, lo), hi), nil
}

func sum[T constraints.Integer | constraints.Float](values ...T) T {
	var s T
	for _, v := range values {
		s += v
	}
	return s
}

// Average returns the arithmetic mean of values, or an error when there
// are none.
func Average(values ...float64) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("average of an empty sequence")
	}
	return sum(values...) / float64(len(values)), nil
}

// Median returns the middle value of values, averaging the two middle
// values of an even count.
func Median(values ...float64) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("median of an empty sequence")
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], nil
	}
	return (sorted[mid-1] + sorted[mid]) / 2, nil
}
