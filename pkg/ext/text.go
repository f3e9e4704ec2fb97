package ext

import (
	"reflect"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/typemodel"
)

// TextClass holds the Text library.
type TextClass struct{}

// Text returns the string case and shape helpers.
func Text() Library {
	t := reflect.TypeFor[TextClass]()
	return Library{Name: "Text", Type: t, register: func(r *typemodel.Registry) error {
		return registerStatics(r, t, []static{
			{"CamelCase", CamelCase, []string{"value"}},
			{"SnakeCase", func(s string) string { return joinWords(s, "_") }, []string{"value"}},
			{"KebabCase", func(s string) string { return joinWords(s, "-") }, []string{"value"}},
			{"TitleCase", TitleCase, []string{"value"}},
			{"Reverse", Reverse, []string{"value"}},
			{"WordCount", func(s string) int32 { return int32(len(words(s))) }, []string{"value"}},
		})
	}}
}

// words splits s at spaces, underscores, hyphens and lower-to-upper case
// changes.
func words(s string) []string {
	var (
		out []string
		cur []rune
	)
	flush := func() {
		if len(cur) > 0 {
			out = append(out, string(cur))
			cur = cur[:0]
		}
	}
	var prev rune
	for _, r := range s {
		switch {
		case unicode.IsSpace(r) || r == '_' || r == '-':
			flush()
		case unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
		prev = r
	}
	flush()
	return out
}

func joinWords(s, sep string) string {
	ws := words(s)
	for i, w := range ws {
		ws[i] = strings.ToLower(w)
	}
	return strings.Join(ws, sep)
}

func capitalize(w string) string {
	rs := []rune(strings.ToLower(w))
	if len(rs) > 0 {
		rs[0] = unicode.ToUpper(rs[0])
	}
	return string(rs)
}

// CamelCase joins the words of s with the first one lower-cased and the
// rest capitalized: "hello_world" becomes "helloWorld".
func CamelCase(s string) string {
	ws := words(s)
	for i, w := range ws {
		if i == 0 {
			ws[i] = strings.ToLower(w)
			continue
		}
		ws[i] = capitalize(w)
	}
	return strings.Join(ws, "")
}

// TitleCase capitalizes every word of s and lower-cases the rest of it.
func TitleCase(s string) string {
	// A Caser keeps state between calls, so each call gets its own.
	return cases.Title(language.Und).String(s)
}

// Reverse reverses s by runes.
func Reverse(s string) string {
	rs := []rune(s)
	for i, j := 0, len(rs)-1; i < j; i, j = i+1, j-1 {
		rs[i], rs[j] = rs[j], rs[i]
	}
	return string(rs)
}
