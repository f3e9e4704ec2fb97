package ext_test

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cseval "github.com/deniszykov/csharp-eval-unity3d-sub003"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/ext"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/typemodel"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/types"
)

func eval(t *testing.T, src string, opts ...cseval.Option) any {
	t.Helper()
	opts = append([]cseval.Option{cseval.WithExtensions(ext.All()...)}, opts...)
	v, err := cseval.Eval(context.Background(), src, opts...)
	require.NoError(t, err, "Eval(%q)", src)
	return v
}

func evalError(t *testing.T, src string, code types.ErrorCode) {
	t.Helper()
	_, err := cseval.Eval(context.Background(), src, cseval.WithExtensions(ext.All()...))
	require.Error(t, err, "Eval(%q)", src)
	assert.True(t, types.HasCode(err, code), "%q: got %v", src, err)
}

func TestText(t *testing.T) {
	tests := []struct {
		src  string
		want any
	}{
		{`Text.CamelCase("hello_world")`, "helloWorld"},
		{`Text.CamelCase("Hello big World")`, "helloBigWorld"},
		{`Text.SnakeCase("helloWorld")`, "hello_world"},
		{`Text.KebabCase("Hello World")`, "hello-world"},
		{`Text.TitleCase("hello world")`, "Hello World"},
		{`Text.TitleCase("hELLO wORLD")`, "Hello World"},
		{`Text.Reverse("abc")`, "cba"},
		{`Text.WordCount("one two_three")`, int32(3)},
		{`Text.WordCount("")`, int32(0)},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, eval(t, tt.src))
		})
	}
}

func TestNumeric(t *testing.T) {
	tests := []struct {
		src  string
		want any
	}{
		{"Numeric.Clamp(15, 0, 10)", int32(10)},
		{"Numeric.Clamp(-5L, 0, 10)", int64(0)},
		{"Numeric.Clamp(2.5, 0, 1)", 1.0},
		{"Numeric.Trunc(-2.7)", -2.0},
		{"Numeric.Sum(1, 2, 3)", int64(6)},
		{"Numeric.Sum(0.5, 2)", 2.5},
		{"Numeric.Average(1, 2, 3, 4)", 2.5},
		{"Numeric.Median(3, 1, 2)", 2.0},
		{"Numeric.Median(4, 1, 3, 2)", 2.5},
		{"Numeric.Sqrt(16)", 4.0},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, eval(t, tt.src))
		})
	}

	assert.InDelta(t, 3.0, eval(t, "Numeric.Log(8, 2)"), 1e-9)
	assert.InDelta(t, 1.0, eval(t, "Numeric.Log10(10)"), 1e-9)

	v := eval(t, "Numeric.Sum(xs)", cseval.WithArg("xs", []float64{1, 2, 3.5}))
	assert.Equal(t, 6.5, v)

	evalError(t, "Numeric.Clamp(1, 5, 0)", types.ErrHostError)
	evalError(t, "Numeric.Median()", types.ErrHostError)
}

func TestHash(t *testing.T) {
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", eval(t, `Hash.Md5("abc")`))
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", eval(t, `Hash.Sha256("abc")`))
	assert.Len(t, eval(t, `Hash.Sha512("abc")`), 128)

	want, err := ext.Hmac("data", "key", "sha256")
	require.NoError(t, err)
	assert.Equal(t, want, eval(t, `Hash.Hmac("data", "key", "SHA256")`))
	assert.NotEqual(t, want, eval(t, `Hash.Hmac("data", "other", "sha256")`))

	evalError(t, `Hash.Hmac("data", "key", "crc32")`, types.ErrHostError)
}

func TestGuid(t *testing.T) {
	const id = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
	assert.Equal(t, id, eval(t, `Guid.Parse(s).ToString()`, cseval.WithArg("s", id)))
	assert.Equal(t, uuid.MustParse(id), eval(t, `Guid.Parse(s)`, cseval.WithArg("s", id)))
	assert.Equal(t, true, eval(t, "Guid.NewGuid() != Guid.Empty"))
	assert.Equal(t, uuid.Nil, eval(t, "Guid.Empty"))

	evalError(t, `Guid.Parse("nope")`, types.ErrHostError)
}

func TestDateTime(t *testing.T) {
	assert.Equal(t, 2, eval(t, "DateTime.FromUnix(86400).Day"))
	assert.Equal(t, time.February, eval(t, "DateTime.AddDays(DateTime.UnixEpoch, 31).Month"))
	assert.Equal(t, 10.0, eval(t, `DateTime.DaysBetween(DateTime.UnixEpoch, DateTime.Parse("1970-01-11T00:00:00Z"))`))
	assert.Equal(t, "1970-01-01", eval(t, `DateTime.UnixEpoch.Format("2006-01-02")`))
	assert.Equal(t, time.March, eval(t, `DateTime.Parse("2024-03-15").Month`))
	assert.Equal(t, 2024, eval(t, `DateTime.Parse("March 15, 2024").Year`))

	d, err := ext.ParseDate("2024-03-15 10:30:00")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, d.Location())
	assert.Equal(t, 10, d.Hour())

	evalError(t, `DateTime.Parse("yesterday")`, types.ErrHostError)
}

func TestWithoutExtensions(t *testing.T) {
	_, err := cseval.Eval(context.Background(), `Hash.Md5("a")`)
	assert.True(t, types.HasCode(err, types.ErrUnknownMember), "got %v", err)

	v, err := cseval.Eval(context.Background(), `Text.Reverse("ab")`, cseval.WithExtensions(ext.Text()))
	require.NoError(t, err)
	assert.Equal(t, "ba", v)

	_, err = cseval.Eval(context.Background(), `Hash.Md5("a")`, cseval.WithExtensions(ext.Text()))
	assert.Error(t, err)
}

func TestInstall(t *testing.T) {
	r := typemodel.NewRegistry()
	named, err := ext.Install(r, ext.All()...)
	require.NoError(t, err)
	assert.Len(t, named, len(ext.All()))

	k := typemodel.NewKnownTypes(named...)
	got, err := k.Resolve(typemodel.NewTypeReference("Hash"))
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeFor[ext.HashClass](), got)

	got, err = k.Resolve(typemodel.NewTypeReference("Guid"))
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeFor[uuid.UUID](), got)

	assert.NotEmpty(t, r.Describe(reflect.TypeFor[ext.NumericClass]()).Static("Median"))
}

func TestWithSharedRegistry(t *testing.T) {
	r := typemodel.NewRegistry()
	eng, err := cseval.New(cseval.WithRegistry(r), cseval.WithExtensions(ext.Numeric()))
	require.NoError(t, err)
	v, err := eng.Eval(context.Background(), "Numeric.Median(5, 1, 9)", nil)
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)
	assert.NotEmpty(t, r.Describe(reflect.TypeFor[ext.NumericClass]()).Static("Median"))
}
