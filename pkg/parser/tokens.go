package parser

// TokenKind represents the kind of a lexical token.
type TokenKind uint8

const (
	// TokenNone marks an invalid or absent token.
	TokenNone TokenKind = iota

	// Literals
	TokenNumber     // 123, 3.14, 1e-10, 10ul
	TokenLiteral    // "hello", 'c', @"raw"
	TokenIdentifier // name, @class, keywords

	// Grouping symbols
	TokenParenOpen    // (
	TokenParenClose   // )
	TokenBracketOpen  // [
	TokenBracketClose // ]
	TokenBraceOpen    // {
	TokenBraceClose   // }

	// Basic symbols
	TokenDot       // .
	TokenComma     // ,
	TokenColon     // :
	TokenCondition // ?
	TokenAssign    // =

	// Null-conditional access
	TokenNullDot     // ?.
	TokenNullBracket // ?[

	// Arithmetic operators
	TokenPlus  // +
	TokenMinus // -
	TokenMult  // *
	TokenDiv   // /
	TokenMod   // %

	// Bitwise and logical operators
	TokenBitAnd     // &
	TokenBitOr      // |
	TokenXor        // ^
	TokenComplement // ~
	TokenNot        // !
	TokenAndAlso    // &&
	TokenOrElse     // ||
	TokenShiftLeft  // <<
	TokenShiftRight // >>

	// Comparison operators
	TokenEqual        // ==
	TokenNotEqual     // !=
	TokenLess         // <
	TokenLessEqual    // <=
	TokenGreater      // >
	TokenGreaterEqual // >=

	// Special operators
	TokenCoalesce // ??
	TokenLambda   // =>

	// Pseudo tokens synthesised by the parser.
	TokenCall     // ( directly after an atom
	TokenIndex    // [ directly after an atom
	TokenTypeArgs // < opening a generic argument list
)

var tokenNames = [...]string{
	TokenNone:         "(none)",
	TokenNumber:       "(number)",
	TokenLiteral:      "(literal)",
	TokenIdentifier:   "(identifier)",
	TokenParenOpen:    "(",
	TokenParenClose:   ")",
	TokenBracketOpen:  "[",
	TokenBracketClose: "]",
	TokenBraceOpen:    "{",
	TokenBraceClose:   "}",
	TokenDot:          ".",
	TokenComma:        ",",
	TokenColon:        ":",
	TokenCondition:    "?",
	TokenAssign:       "=",
	TokenNullDot:      "?.",
	TokenNullBracket:  "?[",
	TokenPlus:         "+",
	TokenMinus:        "-",
	TokenMult:         "*",
	TokenDiv:          "/",
	TokenMod:          "%",
	TokenBitAnd:       "&",
	TokenBitOr:        "|",
	TokenXor:          "^",
	TokenComplement:   "~",
	TokenNot:          "!",
	TokenAndAlso:      "&&",
	TokenOrElse:       "||",
	TokenShiftLeft:    "<<",
	TokenShiftRight:   ">>",
	TokenEqual:        "==",
	TokenNotEqual:     "!=",
	TokenLess:         "<",
	TokenLessEqual:    "<=",
	TokenGreater:      ">",
	TokenGreaterEqual: ">=",
	TokenCoalesce:     "??",
	TokenLambda:       "=>",
	TokenCall:         "(call)",
	TokenIndex:        "(index)",
	TokenTypeArgs:     "(type arguments)",
}

// String returns a string representation of the token kind.
func (k TokenKind) String() string {
	if int(k) < len(tokenNames) && tokenNames[k] != "" {
		return tokenNames[k]
	}
	return "(unknown)"
}

// Token represents a lexical token. Line and Column are 1-based.
type Token struct {
	Kind   TokenKind
	Value  string
	Line   int
	Column int
	Length int
}

// IsValid reports whether the token is present.
func (t Token) IsValid() bool {
	return t.Kind != TokenNone
}

// symbol pairs a source spelling with its token kind.
type symbol struct {
	text string
	kind TokenKind
}

// symbols lists every operator and punctuation spelling. The lexer picks the
// longest entry matching at the current position, so order does not matter.
var symbols = [...]symbol{
	{"(", TokenParenOpen},
	{")", TokenParenClose},
	{"[", TokenBracketOpen},
	{"]", TokenBracketClose},
	{"{", TokenBraceOpen},
	{"}", TokenBraceClose},
	{".", TokenDot},
	{",", TokenComma},
	{":", TokenColon},
	{"?", TokenCondition},
	{"=", TokenAssign},
	{"?.", TokenNullDot},
	{"?[", TokenNullBracket},
	{"+", TokenPlus},
	{"-", TokenMinus},
	{"*", TokenMult},
	{"/", TokenDiv},
	{"%", TokenMod},
	{"&", TokenBitAnd},
	{"|", TokenBitOr},
	{"^", TokenXor},
	{"~", TokenComplement},
	{"!", TokenNot},
	{"&&", TokenAndAlso},
	{"||", TokenOrElse},
	{"<<", TokenShiftLeft},
	{">>", TokenShiftRight},
	{"==", TokenEqual},
	{"!=", TokenNotEqual},
	{"<", TokenLess},
	{"<=", TokenLessEqual},
	{">", TokenGreater},
	{">=", TokenGreaterEqual},
	{"??", TokenCoalesce},
	{"=>", TokenLambda},
}

// symbolIndex groups symbols by their first byte.
var symbolIndex = func() (idx [128][]symbol) {
	for _, s := range symbols {
		idx[s.text[0]] = append(idx[s.text[0]], s)
	}
	return idx
}()

// lookupSymbol returns the longest symbol that prefixes s.
func lookupSymbol(s string) (symbol, bool) {
	if s == "" || s[0] >= 128 {
		return symbol{}, false
	}
	var best symbol
	found := false
	for _, cand := range symbolIndex[s[0]] {
		if len(cand.text) <= len(s) && s[:len(cand.text)] == cand.text && len(cand.text) > len(best.text) {
			best, found = cand, true
		}
	}
	return best, found
}

// numberSuffixes lists the literal type suffixes accepted after a number.
var numberSuffixes = [...]string{
	"ul", "UL", "uL", "Ul", "lu", "LU", "lU", "Lu",
	"f", "F", "d", "D", "m", "M", "u", "U", "l", "L",
}
