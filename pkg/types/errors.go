// Package types defines the structured errors shared by every stage of
// expression processing: the error kinds, the stable error codes and the
// source positions they carry.
package types

import (
	"errors"
	"fmt"
)

// ErrorKind identifies the pipeline stage that produced an error.
type ErrorKind uint8

const (
	LexError ErrorKind = iota + 1
	ParseError
	BindError
	RuntimeError
)

// String returns the name of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case LexError:
		return "LexError"
	case ParseError:
		return "ParseError"
	case BindError:
		return "BindError"
	case RuntimeError:
		return "RuntimeError"
	default:
		return "Error"
	}
}

// ErrorCode represents a stable error code.
type ErrorCode string

// Error codes. The leading letter matches the stage: L lexer, P parser and
// canonicalizer, B binder, R execution.
const (
	// L1xxx: lexical errors
	ErrUnexpectedChar    ErrorCode = "L1001"
	ErrStringNotClosed   ErrorCode = "L1002"
	ErrMalformedNumber   ErrorCode = "L1003"
	ErrCommentNotClosed  ErrorCode = "L1004"
	ErrUnsupportedEscape ErrorCode = "L1005"

	// P2xxx: syntax errors
	ErrUnexpectedToken   ErrorCode = "P2001"
	ErrUnexpectedEnd     ErrorCode = "P2002"
	ErrExpectedToken     ErrorCode = "P2003"
	ErrMissingOperand    ErrorCode = "P2004"
	ErrUnbalanced        ErrorCode = "P2005"
	ErrTooManyResults    ErrorCode = "P2006"
	ErrEmptyExpression   ErrorCode = "P2007"
	ErrInvalidTree       ErrorCode = "P2008"
	ErrNestingTooDeep    ErrorCode = "P2009"
	ErrInvalidNumber     ErrorCode = "P2010"
	ErrInvalidLambdaArgs ErrorCode = "P2011"

	// B3xxx: binding errors
	ErrUnknownType          ErrorCode = "B3001"
	ErrAmbiguousType        ErrorCode = "B3002"
	ErrUnknownMember        ErrorCode = "B3003"
	ErrNoOverload           ErrorCode = "B3004"
	ErrAmbiguousOverload    ErrorCode = "B3005"
	ErrGenericArity         ErrorCode = "B3006"
	ErrInvalidConversion    ErrorCode = "B3007"
	ErrInvalidOperator      ErrorCode = "B3008"
	ErrRestrictedMember     ErrorCode = "B3009"
	ErrTypeMismatch         ErrorCode = "B3010"
	ErrUnknownParameter     ErrorCode = "B3011"
	ErrInvalidLambda        ErrorCode = "B3012"
	ErrInvalidCanonicalNode ErrorCode = "B3013"

	// R4xxx: execution errors
	ErrOverflow        ErrorCode = "R4001"
	ErrDivideByZero    ErrorCode = "R4002"
	ErrNullReference   ErrorCode = "R4003"
	ErrInvalidCast     ErrorCode = "R4004"
	ErrIndexOutOfRange ErrorCode = "R4005"
	ErrArgumentCount   ErrorCode = "R4006"
	ErrStepBudget      ErrorCode = "R4007"
	ErrHostPanic       ErrorCode = "R4008"
	ErrHostError       ErrorCode = "R4009"
	ErrCanceled        ErrorCode = "R4010"
)

// Position locates an error in the source text. Line and Column are 1-based;
// a zero Line means the position is unknown.
type Position struct {
	Line   int
	Column int
	Length int
}

// IsValid reports whether the position refers to a source location.
func (p Position) IsValid() bool {
	return p.Line > 0
}

// String formats the position as "line:column".
func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Error represents a structured pipeline error.
type Error struct {
	Kind     ErrorKind
	Code     ErrorCode
	Message  string
	Position Position
	Token    string
	Err      error
}

// NewError creates a new error of the given kind.
func NewError(kind ErrorKind, code ErrorCode, message string, pos Position) *Error {
	return &Error{
		Kind:     kind,
		Code:     code,
		Message:  message,
		Position: pos,
	}
}

// Errorf creates a new error with a formatted message.
func Errorf(kind ErrorKind, code ErrorCode, pos Position, format string, args ...any) *Error {
	return NewError(kind, code, fmt.Sprintf(format, args...), pos)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Position.IsValid() {
		return fmt.Sprintf("%s %s at %s: %s", e.Kind, e.Code, e.Position, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Kind, e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same kind and code, so sentinel values
// built with NewError can be used with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Code == "" || t.Code == e.Code)
}

// WithToken adds token information to the error.
func (e *Error) WithToken(token string) *Error {
	e.Token = token
	return e
}

// WithCause wraps another error.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// WithPosition sets the position when the error does not carry one yet.
func (e *Error) WithPosition(pos Position) *Error {
	if !e.Position.IsValid() {
		e.Position = pos
	}
	return e
}

// IsKind reports whether err is, or wraps, an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// HasCode reports whether err is, or wraps, an *Error with the given code.
func HasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
