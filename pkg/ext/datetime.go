package ext

import (
	"reflect"
	"time"

	"github.com/araddon/dateparse"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/typemodel"
)

// DateTime exposes time.Time as the DateTime type. Parse accepts the
// common date layouts, month first when ambiguous, and reads text without
// a zone as UTC; FromUnix and UnixEpoch are in UTC. Instances carry the methods of
// time.Time, so t.Year, t.Unix() and t.Format("2006-01-02") work as is.
func DateTime() Library {
	t := reflect.TypeFor[time.Time]()
	return Library{Name: "DateTime", Type: t, register: func(r *typemodel.Registry) error {
		r.RegisterStaticValue(t, "UnixEpoch", time.Unix(0, 0).UTC())
		return registerStatics(r, t, []static{
			{"Parse", ParseDate, []string{"s"}},
			{"FromUnix", func(sec int64) time.Time { return time.Unix(sec, 0).UTC() }, []string{"seconds"}},
			{"AddDays", func(d time.Time, days int32) time.Time { return d.AddDate(0, 0, int(days)) }, []string{"date", "days"}},
			{"DaysBetween", func(a, b time.Time) float64 { return b.Sub(a).Hours() / 24 }, []string{"from", "to"}},
		})
	}}
}

// ParseDate parses s in any layout dateparse recognizes.
func ParseDate(s string) (time.Time, error) {
	return dateparse.ParseIn(s, time.UTC, dateparse.PreferMonthFirst(true))
}
