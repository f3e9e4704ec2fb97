package parser

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// Unquote strips the quotes from a raw literal token value and processes
// escape sequences. Verbatim literals (@"...") only collapse doubled quotes.
// The returned quote is '"' for strings and '\'' for characters.
func Unquote(raw string) (value string, quote byte, err error) {
	if strings.HasPrefix(raw, `@"`) && strings.HasSuffix(raw, `"`) && len(raw) >= 3 {
		return strings.ReplaceAll(raw[2:len(raw)-1], `""`, `"`), '"', nil
	}
	if len(raw) < 2 || raw[0] != raw[len(raw)-1] || (raw[0] != '"' && raw[0] != '\'') {
		return "", 0, fmt.Errorf("malformed literal %s", raw)
	}
	value, err = unescapeString(raw[1 : len(raw)-1])
	return value, raw[0], err
}

// UnquoteChar decodes a character literal into exactly one rune.
func UnquoteChar(raw string) (rune, error) {
	value, quote, err := Unquote(raw)
	if err != nil {
		return 0, err
	}
	if quote != '\'' {
		return 0, fmt.Errorf("not a character literal: %s", raw)
	}
	if utf8.RuneCountInString(value) != 1 {
		return 0, fmt.Errorf("character literal must contain exactly one character: %s", raw)
	}
	r, _ := utf8.DecodeRuneInString(value)
	return r, nil
}

// unescapeString processes escape sequences in a literal body: the simple
// escapes, \xH[H][H][H] and \uXXXX, including UTF-16 surrogate pairs.
func unescapeString(s string) (string, error) {
	if !strings.Contains(s, "\\") {
		return s, nil
	}

	var result strings.Builder
	result.Grow(len(s))

	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			result.WriteByte(s[i])
			continue
		}

		i++
		if i >= len(s) {
			return "", fmt.Errorf("invalid escape sequence at end of literal")
		}

		switch s[i] {
		case 'n':
			result.WriteByte('\n')
		case 't':
			result.WriteByte('\t')
		case 'r':
			result.WriteByte('\r')
		case 'b':
			result.WriteByte('\b')
		case 'f':
			result.WriteByte('\f')
		case 'a':
			result.WriteByte('\a')
		case 'v':
			result.WriteByte('\v')
		case '0':
			result.WriteByte(0)
		case '\\', '"', '\'':
			result.WriteByte(s[i])
		case 'x':
			// \x takes one to four hex digits.
			j := i + 1
			for j < len(s) && j < i+5 && isHexDigit(rune(s[j])) {
				j++
			}
			if j == i+1 {
				return "", fmt.Errorf("invalid \\x escape: no digits")
			}
			code, _ := strconv.ParseUint(s[i+1:j], 16, 16)
			result.WriteRune(rune(code))
			i = j - 1
		case 'u':
			if i+5 > len(s) {
				return "", fmt.Errorf("invalid \\u escape: not enough characters")
			}
			r, err := parseHex4(s[i+1 : i+5])
			if err != nil {
				return "", err
			}
			i += 4

			// A high surrogate must be followed by \u and a low surrogate.
			if utf16.IsSurrogate(r) && r <= 0xDBFF && i+6 < len(s) && s[i+1] == '\\' && s[i+2] == 'u' {
				if low, err := parseHex4(s[i+3 : i+7]); err == nil && low >= 0xDC00 && low <= 0xDFFF {
					result.WriteRune(utf16.DecodeRune(r, low))
					i += 6
					continue
				}
			}
			result.WriteRune(r)
		default:
			return "", fmt.Errorf("unsupported escape sequence \\%c", s[i])
		}
	}

	return result.String(), nil
}

func parseHex4(hex string) (rune, error) {
	code, err := strconv.ParseUint(hex, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid \\u escape: %s", hex)
	}
	return rune(code), nil
}
