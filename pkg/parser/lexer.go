package parser

import (
	"fmt"
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/types"
)

const eof = -1

// Lexer converts an expression into a sequence of tokens.
// The implementation is based on Rob Pike's "Lexical Scanning in Go" technique.
type Lexer struct {
	input   string // Input string being scanned
	start   int    // Start offset of current token
	current int    // Current offset in input
	width   int    // Width of last rune read

	line, column           int // Position of current
	startLine, startColumn int // Position of start
	prevColumn             int // Column before the last rune read, for backup

	err error // First error encountered
}

// NewLexer creates a new lexer from the provided input string.
// The input is tokenized by successive calls to the Next method.
func NewLexer(input string) *Lexer {
	return &Lexer{
		input:       input,
		line:        1,
		column:      1,
		startLine:   1,
		startColumn: 1,
	}
}

// Tokenize returns a lazy sequence of tokens. The sequence is finite: it ends
// after the last token or yields a single LexError at the first byte that
// matches no rule.
func Tokenize(text string) iter.Seq2[Token, error] {
	return func(yield func(Token, error) bool) {
		l := NewLexer(text)
		for {
			tok, err := l.Next()
			if err != nil {
				yield(Token{}, err)
				return
			}
			if !tok.IsValid() {
				return
			}
			if !yield(tok, nil) {
				return
			}
		}
	}
}

// TokenizeAll scans the whole text eagerly.
func TokenizeAll(text string) ([]Token, error) {
	var tokens []Token
	for tok, err := range Tokenize(text) {
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

// Next returns the next token from the input. At the end of the input it
// returns a token of kind TokenNone for all subsequent calls.
func (l *Lexer) Next() (Token, error) {
	if l.err != nil {
		return Token{}, l.err
	}
	l.skipWhitespace()
	if l.err != nil {
		return Token{}, l.err
	}

	ch := l.peek()
	switch {
	case ch == eof:
		return Token{Line: l.line, Column: l.column}, nil
	case ch >= '0' && ch <= '9':
		return l.scanNumber()
	case ch == '"' || ch == '\'':
		return l.scanLiteral()
	case ch == '@':
		return l.scanVerbatim()
	case ch == '_' || unicode.IsLetter(ch):
		return l.scanIdentifier(), nil
	}

	// Longest-match symbol lookup.
	if sym, ok := lookupSymbol(l.input[l.current:]); ok {
		for range sym.text {
			l.nextRune()
		}
		return l.newToken(sym.kind), nil
	}

	l.nextRune()
	return Token{}, l.fail(types.ErrUnexpectedChar, fmt.Sprintf("unexpected character %q", ch))
}

// Error returns the first error encountered during lexing, if any.
func (l *Lexer) Error() error {
	return l.err
}

// scanNumber reads a number literal: digits, an optional fraction, an
// optional exponent and an optional type suffix. Hexadecimal integers are
// accepted with a 0x prefix.
func (l *Lexer) scanNumber() (Token, error) {
	if l.acceptPrefix("0x") || l.acceptPrefix("0X") {
		if !l.acceptAll(isHexDigit) {
			return Token{}, l.fail(types.ErrMalformedNumber, "hexadecimal literal has no digits")
		}
		l.acceptSuffix()
		return l.newToken(TokenNumber), nil
	}

	l.acceptAll(isDigit)

	// A dot only belongs to the number when a digit follows it, so member
	// access on literals such as 1.ToString() still works.
	if l.peek() == '.' && l.current+1 < len(l.input) && isDigit(rune(l.input[l.current+1])) {
		l.nextRune()
		l.acceptAll(isDigit)
	}

	if r := l.peek(); r == 'e' || r == 'E' {
		l.nextRune()
		if r := l.peek(); r == '+' || r == '-' {
			l.nextRune()
		}
		if !l.acceptAll(isDigit) {
			return Token{}, l.fail(types.ErrMalformedNumber, "exponent has no digits")
		}
	}

	l.acceptSuffix()

	if r := l.peek(); r == '_' || unicode.IsLetter(r) || isDigit(r) {
		l.nextRune()
		return Token{}, l.fail(types.ErrMalformedNumber, fmt.Sprintf("invalid number suffix %q", r))
	}
	return l.newToken(TokenNumber), nil
}

// acceptSuffix consumes a numeric type suffix if one is present.
func (l *Lexer) acceptSuffix() {
	rest := l.input[l.current:]
	for _, s := range numberSuffixes {
		if strings.HasPrefix(rest, s) {
			l.acceptPrefix(s)
			return
		}
	}
}

// scanLiteral reads a quoted string or character literal. The closing quote
// must match the opening one; a quote preceded by an even number of
// backslashes terminates the literal.
func (l *Lexer) scanLiteral() (Token, error) {
	quote := l.nextRune()
	backslashes := 0
	for {
		r := l.nextRune()
		switch {
		case r == eof:
			return Token{}, l.fail(types.ErrStringNotClosed, "unterminated literal")
		case r == '\\':
			backslashes++
			continue
		case r == quote && backslashes%2 == 0:
			return l.newToken(TokenLiteral), nil
		}
		backslashes = 0
	}
}

// scanVerbatim reads @"..." strings, where "" is an escaped quote, and
// @identifier, where the marker is stripped from the value.
func (l *Lexer) scanVerbatim() (Token, error) {
	l.nextRune()
	if l.peek() == '"' {
		l.nextRune()
		for {
			r := l.nextRune()
			if r == eof {
				return Token{}, l.fail(types.ErrStringNotClosed, "unterminated verbatim literal")
			}
			if r == '"' {
				if l.peek() == '"' {
					l.nextRune()
					continue
				}
				return l.newToken(TokenLiteral), nil
			}
		}
	}
	if r := l.peek(); r != '_' && !unicode.IsLetter(r) {
		return Token{}, l.fail(types.ErrUnexpectedChar, "'@' must precede an identifier or a string")
	}
	tok := l.scanIdentifier()
	tok.Value = strings.TrimPrefix(tok.Value, "@")
	return tok, nil
}

// scanIdentifier reads letters, digits and underscores.
func (l *Lexer) scanIdentifier() Token {
	l.acceptAll(func(r rune) bool {
		return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
	})
	return l.newToken(TokenIdentifier)
}

// Helper methods

func (l *Lexer) fail(code types.ErrorCode, message string) error {
	l.err = types.NewError(types.LexError, code, message, types.Position{
		Line:   l.startLine,
		Column: l.startColumn,
		Length: utf8.RuneCountInString(l.input[l.start:l.current]),
	}).WithToken(l.input[l.start:l.current])
	return l.err
}

func (l *Lexer) newToken(kind TokenKind) Token {
	value := l.input[l.start:l.current]
	t := Token{
		Kind:   kind,
		Value:  value,
		Line:   l.startLine,
		Column: l.startColumn,
		Length: utf8.RuneCountInString(value),
	}
	l.ignore()
	return t
}

func (l *Lexer) peek() rune {
	if l.current >= len(l.input) {
		return eof
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.current:])
	return r
}

func (l *Lexer) nextRune() rune {
	if l.current >= len(l.input) {
		l.width = 0
		return eof
	}
	r, w := utf8.DecodeRuneInString(l.input[l.current:])
	l.width = w
	l.current += w
	l.prevColumn = l.column
	if r == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	return r
}

func (l *Lexer) backup() {
	if l.width == 0 {
		return
	}
	l.current -= l.width
	if l.input[l.current] == '\n' {
		l.line--
	}
	l.column = l.prevColumn
	l.width = 0
}

func (l *Lexer) ignore() {
	l.start = l.current
	l.startLine = l.line
	l.startColumn = l.column
}

func (l *Lexer) acceptPrefix(prefix string) bool {
	if !strings.HasPrefix(l.input[l.current:], prefix) {
		return false
	}
	for range prefix {
		l.nextRune()
	}
	return true
}

func (l *Lexer) accept(isValid func(rune) bool) bool {
	if isValid(l.nextRune()) {
		return true
	}
	l.backup()
	return false
}

func (l *Lexer) acceptAll(isValid func(rune) bool) bool {
	var matched bool
	for l.accept(isValid) {
		matched = true
	}
	return matched
}

func (l *Lexer) skipWhitespace() {
	for {
		l.acceptAll(unicode.IsSpace)
		l.ignore()

		switch {
		case strings.HasPrefix(l.input[l.current:], "//"):
			for r := l.peek(); r != eof && r != '\n'; r = l.peek() {
				l.nextRune()
			}
		case strings.HasPrefix(l.input[l.current:], "/*"):
			end := strings.Index(l.input[l.current+2:], "*/")
			if end < 0 {
				l.current = len(l.input)
				l.fail(types.ErrCommentNotClosed, "unclosed comment")
				return
			}
			for target := l.current + 2 + end + 2; l.current < target; {
				l.nextRune()
			}
		default:
			return
		}
	}
}

// Character classification functions

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}
