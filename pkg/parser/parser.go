// Package parser implements the scanner and the operator-precedence parser
// for C#-style expressions.
//
// The parser keeps an explicit value stack and a token buffer that supports
// unlimited lookahead and pushback, because several constructs rewrite tokens
// that were already read: a ">>" closing two generic argument lists is split
// in two, and "(T)x" is told apart from "(x)" by re-parsing speculatively.
//
// # Example
//
//	tree, err := parser.ParseString("a.Items[0] ?? 1")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(tree)
package parser

import (
	"fmt"
	"iter"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/types"
)

// precedence is an operator binding power; higher values bind tighter.
type precedence uint8

const (
	precNone precedence = iota
	precLambda
	precConditional
	precCoalesce
	precOrElse
	precAndAlso
	precOr
	precXor
	precAnd
	precEquality
	precRelational
	precShift
	precAdditive
	precMultiplicative
	precUnary
	precNew
	precPrimary
)

// binaryPrecedence is the static operator table. Entries absent from the
// table do not continue an expression.
var binaryPrecedence = [...]precedence{
	TokenMult:         precMultiplicative,
	TokenDiv:          precMultiplicative,
	TokenMod:          precMultiplicative,
	TokenPlus:         precAdditive,
	TokenMinus:        precAdditive,
	TokenShiftLeft:    precShift,
	TokenShiftRight:   precShift,
	TokenLess:         precRelational,
	TokenGreater:      precRelational,
	TokenLessEqual:    precRelational,
	TokenGreaterEqual: precRelational,
	TokenEqual:        precEquality,
	TokenNotEqual:     precEquality,
	TokenBitAnd:       precAnd,
	TokenXor:          precXor,
	TokenBitOr:        precOr,
	TokenAndAlso:      precAndAlso,
	TokenOrElse:       precOrElse,
	TokenCoalesce:     precCoalesce,
	TokenCondition:    precConditional,
	TokenLambda:       precLambda,
	TokenTypeArgs:     precNone,
}

// operatorPrecedence returns the binding power of tok in infix position.
func operatorPrecedence(tok Token) (precedence, bool) {
	if tok.Kind == TokenIdentifier && (tok.Value == "is" || tok.Value == "as") {
		return precRelational, true
	}
	if int(tok.Kind) < len(binaryPrecedence) && binaryPrecedence[tok.Kind] != precNone {
		return binaryPrecedence[tok.Kind], true
	}
	return precNone, false
}

func rightAssociative(p precedence) bool {
	return p == precCoalesce || p == precConditional || p == precLambda
}

// terminators is a small set of token kinds that end a sub-expression.
type terminators uint64

func terms(kinds ...TokenKind) terminators {
	var t terminators
	for _, k := range kinds {
		t |= 1 << k
	}
	return t
}

func (t terminators) with(kinds ...TokenKind) terminators {
	return t | terms(kinds...)
}

func (t terminators) has(k TokenKind) bool {
	return t&(1<<k) != 0
}

// keywordTypes are the built-in type keywords; only they may be cast
// directly in front of a unary + or -.
var keywordTypes = map[string]bool{
	"bool": true, "byte": true, "sbyte": true, "short": true, "ushort": true,
	"int": true, "uint": true, "long": true, "ulong": true, "float": true,
	"double": true, "decimal": true, "char": true, "string": true, "object": true,
	"nint": true, "nuint": true,
}

// reservedOperands are identifiers that never name a value or a type.
var reservedOperands = map[string]bool{
	"is": true, "as": true,
}

// Parser builds a parse tree from a token buffer.
type Parser struct {
	tokens []Token
	pos    int
	stack  []*Node
	arena  *Arena
	depth  int
	opts   ParseOptions
}

// ParseOption configures parsing behavior.
type ParseOption func(*ParseOptions)

// ParseOptions holds parser configuration.
type ParseOptions struct {
	// MaxDepth limits sub-expression nesting to prevent stack exhaustion.
	MaxDepth int
}

// WithMaxDepth sets the maximum nesting depth.
func WithMaxDepth(depth int) ParseOption {
	return func(opts *ParseOptions) {
		opts.MaxDepth = depth
	}
}

// Parse consumes a token sequence and returns the single root node.
func Parse(tokens iter.Seq2[Token, error], opts ...ParseOption) (*Node, error) {
	var buf []Token
	for tok, err := range tokens {
		if err != nil {
			return nil, err
		}
		buf = append(buf, tok)
	}
	return ParseTokens(buf, opts...)
}

// ParseString tokenizes and parses text.
func ParseString(text string, opts ...ParseOption) (*Node, error) {
	return Parse(Tokenize(text), opts...)
}

// ParseTokens parses an already materialized token buffer.
func ParseTokens(tokens []Token, opts ...ParseOption) (*Node, error) {
	options := ParseOptions{MaxDepth: 256}
	for _, opt := range opts {
		opt(&options)
	}
	p := &Parser{
		tokens: append([]Token(nil), tokens...),
		arena:  NewArena(),
		opts:   options,
	}
	return p.parse()
}

func (p *Parser) parse() (*Node, error) {
	if len(p.tokens) == 0 {
		return nil, types.NewError(types.ParseError, types.ErrEmptyExpression, "empty expression", types.Position{})
	}
	if err := p.expression(precLambda, 0); err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.IsValid() {
		return nil, p.errorAt(tok, types.ErrTooManyResults, fmt.Sprintf("unexpected token %q after the end of the expression", tok.Value))
	}
	if len(p.stack) != 1 {
		return nil, types.Errorf(types.ParseError, types.ErrTooManyResults, types.Position{}, "expression produced %d results", len(p.stack))
	}
	return p.stack[0], nil
}

// expression parses one sub-expression whose operators bind at least as
// tightly as minPrec and pushes exactly one node on the stack. Tokens in
// term end the sub-expression without being consumed.
func (p *Parser) expression(minPrec precedence, term terminators) error {
	p.depth++
	defer func() { p.depth-- }()
	if p.opts.MaxDepth > 0 && p.depth > p.opts.MaxDepth {
		return p.errorAt(p.peek(), types.ErrNestingTooDeep, "expression is nested too deeply")
	}

	if err := p.unary(term); err != nil {
		return err
	}

	for {
		tok := p.peek()
		if !tok.IsValid() || term.has(tok.Kind) {
			return nil
		}
		prec, ok := operatorPrecedence(tok)
		if !ok || prec < minPrec {
			return nil
		}
		p.next()

		switch {
		case tok.Kind == TokenCondition:
			if err := p.conditional(tok, term); err != nil {
				return err
			}
		case tok.Kind == TokenLambda:
			if err := p.lambda(tok, term); err != nil {
				return err
			}
		case tok.Kind == TokenIdentifier:
			// is / as take a type operand.
			if err := p.typeName(true); err != nil {
				return err
			}
			typ, operand := p.pop(), p.pop()
			kind := NodeTypeIs
			if tok.Value == "as" {
				kind = NodeTypeAs
			}
			p.push(p.arena.New(kind, tok, "", operand, typ))
		default:
			next := prec + 1
			if rightAssociative(prec) {
				next = prec
			}
			if err := p.expression(next, term); err != nil {
				return err
			}
			right, left := p.pop(), p.pop()
			p.push(p.arena.New(NodeBinary, tok, "", left, right))
		}
	}
}

// conditional parses the branches of "test ? ifTrue : ifFalse". The test is
// already on the stack.
func (p *Parser) conditional(question Token, term terminators) error {
	if !p.hasColonAhead() {
		return p.errorAt(question, types.ErrExpectedToken, "conditional operator is missing ':'")
	}
	if err := p.expression(precLambda, term.with(TokenColon)); err != nil {
		return err
	}
	if err := p.expect(TokenColon); err != nil {
		return err
	}
	if err := p.expression(precConditional, term); err != nil {
		return err
	}
	ifFalse, ifTrue, test := p.pop(), p.pop(), p.pop()
	p.push(p.arena.New(NodeCondition, question, "", test, ifTrue, ifFalse))
	return nil
}

// hasColonAhead scans for the ':' that closes the current conditional at
// the same bracket depth, skipping nested conditionals.
func (p *Parser) hasColonAhead() bool {
	depth, pending := 0, 0
	for i := p.pos; i < len(p.tokens); i++ {
		switch p.tokens[i].Kind {
		case TokenParenOpen, TokenBracketOpen, TokenBraceOpen, TokenNullBracket:
			depth++
		case TokenParenClose, TokenBracketClose, TokenBraceClose:
			if depth == 0 {
				return false
			}
			depth--
		case TokenCondition:
			if depth == 0 {
				pending++
			}
		case TokenColon:
			if depth == 0 {
				if pending == 0 {
					return true
				}
				pending--
			}
		case TokenComma:
			if depth == 0 {
				return false
			}
		}
	}
	return false
}

// lambda converts the operand on the stack into a parameter list and parses
// the body.
func (p *Parser) lambda(arrow Token, term terminators) error {
	params, err := p.lambdaParameters(p.pop())
	if err != nil {
		return err
	}
	if err := p.expression(precLambda, term); err != nil {
		return err
	}
	body := p.pop()
	p.push(p.arena.New(NodeLambda, arrow, "", params, body))
	return nil
}

func (p *Parser) lambdaParameters(n *Node) (*Node, error) {
	switch n.Kind {
	case NodeIdentifier:
		if n.Len() == 0 {
			return p.arena.New(NodeArguments, n.Token, "", n), nil
		}
	case NodeGroup:
		if inner := n.Child(0); inner.Kind == NodeIdentifier && inner.Len() == 0 {
			return p.arena.New(NodeArguments, n.Token, "", inner), nil
		}
	case NodeArguments:
		for _, c := range n.Children() {
			if c.Kind != NodeIdentifier || c.Len() != 0 {
				return nil, p.errorAt(c.Token, types.ErrInvalidLambdaArgs, "lambda parameters must be plain identifiers")
			}
		}
		return n, nil
	}
	return nil, p.errorAt(n.Token, types.ErrInvalidLambdaArgs, "invalid lambda parameter list")
}

// unary parses prefix operators followed by a primary expression.
func (p *Parser) unary(term terminators) error {
	tok := p.peek()
	switch tok.Kind {
	case TokenPlus, TokenMinus, TokenNot, TokenComplement:
		p.next()
		if err := p.unary(term); err != nil {
			return err
		}
		p.push(p.arena.New(NodeUnary, tok, "", p.pop()))
		return nil
	case TokenParenOpen:
		if ok, err := p.tryCast(term); ok || err != nil {
			return err
		}
	}
	if err := p.primary(); err != nil {
		return err
	}
	return p.postfix()
}

// tryCast speculatively parses "(Type)operand". On failure the token buffer
// and stack are restored and false is returned.
func (p *Parser) tryCast(term terminators) (bool, error) {
	savedPos, savedStack, savedTokens := p.pos, len(p.stack), p.tokens
	open := p.next()

	restore := func() {
		p.pos = savedPos
		p.stack = p.stack[:savedStack]
		p.tokens = savedTokens
	}

	if err := p.typeName(true); err != nil {
		restore()
		return false, nil
	}
	if p.peek().Kind != TokenParenClose {
		restore()
		return false, nil
	}
	typ := p.stack[len(p.stack)-1]
	p.next()

	after := p.peek()
	cast := false
	switch after.Kind {
	case TokenNumber, TokenLiteral, TokenParenOpen, TokenNot, TokenComplement:
		cast = true
	case TokenIdentifier:
		cast = !reservedOperands[after.Value]
	case TokenPlus, TokenMinus:
		cast = typ.Kind == NodeIdentifier && typ.Len() == 0 && keywordTypes[typ.Value] ||
			typ.Kind == NodeNullableType || typ.Kind == NodeArrayType
	}
	if !cast {
		restore()
		return false, nil
	}

	if err := p.unary(term); err != nil {
		return true, err
	}
	operand := p.pop()
	typ = p.pop()
	p.push(p.arena.New(NodeCast, open, "", typ, operand))
	return true, nil
}

// primary parses literals, names, parenthesized expressions and keyword forms.
func (p *Parser) primary() error {
	tok := p.peek()
	switch tok.Kind {
	case TokenNumber:
		p.next()
		p.push(p.arena.New(NodeNumber, tok, tok.Value))
		return nil
	case TokenLiteral:
		p.next()
		p.push(p.arena.New(NodeLiteral, tok, tok.Value))
		return nil
	case TokenParenOpen:
		return p.parenthesized()
	case TokenIdentifier:
		switch tok.Value {
		case "new":
			return p.newExpression()
		case "typeof", "default":
			return p.typeKeyword(tok)
		case "checked", "unchecked":
			if p.peekAt(1).Kind == TokenParenOpen {
				return p.scopeKeyword(tok)
			}
		}
		if reservedOperands[tok.Value] {
			return p.errorAt(tok, types.ErrUnexpectedToken, fmt.Sprintf("unexpected keyword %q", tok.Value))
		}
		p.next()
		return p.identifier(tok, false)
	case TokenNone:
		return p.errorAt(tok, types.ErrUnexpectedEnd, "unexpected end of expression, operand expected")
	default:
		return p.errorAt(tok, types.ErrMissingOperand, fmt.Sprintf("unexpected token %q, operand expected", tok.Value))
	}
}

// identifier pushes a name node, absorbing a generic argument list when the
// lookahead has the shape of one.
func (p *Parser) identifier(tok Token, typePosition bool) error {
	if p.peek().Kind == TokenLess && (typePosition || p.looksLikeTypeArguments()) {
		args, err := p.typeArguments()
		if err != nil {
			return err
		}
		p.push(p.arena.New(NodeIdentifier, tok, tok.Value, args...))
		return nil
	}
	p.push(p.arena.New(NodeIdentifier, tok, tok.Value))
	return nil
}

// parenthesized parses a group or a parenthesized list that can only be a
// lambda parameter list.
func (p *Parser) parenthesized() error {
	open := p.next()
	if p.peek().Kind == TokenParenClose {
		p.next()
		if p.peek().Kind != TokenLambda {
			return p.errorAt(open, types.ErrMissingOperand, "empty parentheses")
		}
		p.push(p.arena.New(NodeArguments, open, ""))
		return nil
	}

	closing := terms(TokenComma, TokenParenClose)
	var items []*Node
	for {
		if err := p.expression(precLambda, closing); err != nil {
			return err
		}
		items = append(items, p.pop())
		tok := p.next()
		if tok.Kind == TokenParenClose {
			break
		}
		if tok.Kind != TokenComma {
			return p.errorAt(tok, types.ErrUnbalanced, "expected ')'")
		}
	}
	if len(items) > 1 {
		if p.peek().Kind != TokenLambda {
			return p.errorAt(open, types.ErrInvalidLambdaArgs, "a parenthesized list must be followed by '=>'")
		}
		p.push(p.arena.New(NodeArguments, open, "", items...))
		return nil
	}
	p.push(p.arena.New(NodeGroup, open, "", items[0]))
	return nil
}

// postfix parses member access, calls and indexers following an atom.
func (p *Parser) postfix() error {
	for {
		tok := p.peek()
		switch tok.Kind {
		case TokenDot, TokenNullDot:
			p.next()
			name := p.next()
			if name.Kind != TokenIdentifier {
				return p.errorAt(name, types.ErrExpectedToken, "identifier expected after '"+tok.Value+"'")
			}
			if err := p.identifier(name, false); err != nil {
				return err
			}
			member := p.pop()
			target := p.pop()
			p.push(p.arena.New(NodeMember, tok, "", target, member))
		case TokenParenOpen:
			// "(" directly after an atom is a call.
			call := p.next()
			call.Kind = TokenCall
			args, err := p.argumentList(TokenParenClose)
			if err != nil {
				return err
			}
			target := p.pop()
			p.push(p.arena.New(NodeCall, call, "", append([]*Node{target}, args...)...))
		case TokenBracketOpen, TokenNullBracket:
			p.next()
			args, err := p.argumentList(TokenBracketClose)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				return p.errorAt(tok, types.ErrMissingOperand, "index expected")
			}
			target := p.pop()
			p.push(p.arena.New(NodeIndex, tok, "", append([]*Node{target}, args...)...))
		default:
			return nil
		}
	}
}

// argumentList parses comma separated, optionally named, arguments up to
// and including the closing token.
func (p *Parser) argumentList(closing TokenKind) ([]*Node, error) {
	if p.peek().Kind == closing {
		p.next()
		return nil, nil
	}
	term := terms(TokenComma, closing)
	var args []*Node
	for {
		name := p.peek()
		if name.Kind == TokenIdentifier && p.peekAt(1).Kind == TokenColon {
			p.next()
			p.next()
			if err := p.expression(precLambda, term); err != nil {
				return nil, err
			}
			value := p.pop()
			args = append(args, p.arena.New(NodeNamedArgument, name, name.Value,
				p.arena.New(NodeIdentifier, name, name.Value), value))
		} else {
			if err := p.expression(precLambda, term); err != nil {
				return nil, err
			}
			args = append(args, p.pop())
		}
		tok := p.next()
		if tok.Kind == closing {
			return args, nil
		}
		if tok.Kind != TokenComma {
			return nil, p.errorAt(tok, types.ErrUnbalanced, fmt.Sprintf("expected ',' or '%s'", closing))
		}
	}
}

// typeKeyword parses typeof(Type) and default(Type).
func (p *Parser) typeKeyword(kw Token) error {
	p.next()
	if err := p.expect(TokenParenOpen); err != nil {
		return err
	}
	if err := p.typeName(true); err != nil {
		return err
	}
	if err := p.expect(TokenParenClose); err != nil {
		return err
	}
	kind := NodeTypeOf
	if kw.Value == "default" {
		kind = NodeDefault
	}
	p.push(p.arena.New(kind, kw, "", p.pop()))
	return nil
}

// scopeKeyword parses checked(expr) and unchecked(expr).
func (p *Parser) scopeKeyword(kw Token) error {
	p.next()
	p.next()
	if err := p.expression(precLambda, terms(TokenParenClose)); err != nil {
		return err
	}
	if err := p.expect(TokenParenClose); err != nil {
		return err
	}
	kind := NodeChecked
	if kw.Value == "unchecked" {
		kind = NodeUnchecked
	}
	p.push(p.arena.New(kind, kw, "", p.pop()))
	return nil
}

// newExpression parses object, array and collection construction.
func (p *Parser) newExpression() error {
	kw := p.next()

	// new[] { ... } infers the element type.
	if p.peek().Kind == TokenBracketOpen && p.peekAt(1).Kind == TokenBracketClose {
		p.next()
		p.next()
		if p.peek().Kind != TokenBraceOpen {
			return p.errorAt(p.peek(), types.ErrExpectedToken, "array initializer expected")
		}
		if err := p.initializer(); err != nil {
			return err
		}
		init := p.pop()
		p.push(p.arena.New(NodeNewArray, kw, "", p.arena.New(NodeNone, kw, ""), p.arena.New(NodeArguments, kw, ""), init))
		return nil
	}

	if err := p.typeName(false); err != nil {
		return err
	}

	switch tok := p.peek(); tok.Kind {
	case TokenBracketOpen:
		elem := p.pop()
		if p.peekAt(1).Kind == TokenBracketClose {
			// new T[] { ... }
			p.next()
			p.next()
			for p.peek().Kind == TokenBracketOpen && p.peekAt(1).Kind == TokenBracketClose {
				p.next()
				p.next()
				elem = p.arena.New(NodeArrayType, elem.Token, "", elem)
			}
			if p.peek().Kind != TokenBraceOpen {
				return p.errorAt(p.peek(), types.ErrExpectedToken, "array initializer expected")
			}
			if err := p.initializer(); err != nil {
				return err
			}
			init := p.pop()
			p.push(p.arena.New(NodeNewArray, kw, "", elem, p.arena.New(NodeArguments, tok, ""), init))
			return nil
		}
		p.next()
		bounds, err := p.argumentList(TokenBracketClose)
		if err != nil {
			return err
		}
		p.push(p.arena.New(NodeNewArray, kw, "", elem, p.arena.New(NodeArguments, tok, "", bounds...)))
		return nil
	case TokenParenOpen:
		p.next()
		args, err := p.argumentList(TokenParenClose)
		if err != nil {
			return err
		}
		typ := p.pop()
		argList := p.arena.New(NodeArguments, tok, "", args...)
		if p.peek().Kind == TokenBraceOpen {
			if err := p.initializer(); err != nil {
				return err
			}
			p.push(p.arena.New(NodeNew, kw, "", typ, argList, p.pop()))
			return nil
		}
		p.push(p.arena.New(NodeNew, kw, "", typ, argList))
		return nil
	case TokenBraceOpen:
		if err := p.initializer(); err != nil {
			return err
		}
		init := p.pop()
		typ := p.pop()
		p.push(p.arena.New(NodeNew, kw, "", typ, p.arena.New(NodeArguments, tok, ""), init))
		return nil
	default:
		return p.errorAt(tok, types.ErrExpectedToken, "expected '(', '[' or '{' after type in 'new' expression")
	}
}

// initializer parses "{ a, b }", "{ Name = a, Other = { ... } }" and
// nested element initializers "{ { k, v } }".
func (p *Parser) initializer() error {
	open := p.next()
	var items []*Node
	term := terms(TokenComma, TokenBraceClose)
	for p.peek().Kind != TokenBraceClose {
		tok := p.peek()
		switch {
		case tok.Kind == TokenBraceOpen:
			if err := p.initializer(); err != nil {
				return err
			}
			items = append(items, p.pop())
		case tok.Kind == TokenIdentifier && p.peekAt(1).Kind == TokenAssign:
			p.next()
			p.next()
			if p.peek().Kind == TokenBraceOpen {
				if err := p.initializer(); err != nil {
					return err
				}
			} else if err := p.expression(precLambda, term); err != nil {
				return err
			}
			value := p.pop()
			items = append(items, p.arena.New(NodeAssignment, tok, tok.Value, p.arena.New(NodeIdentifier, tok, tok.Value), value))
		default:
			if err := p.expression(precLambda, term); err != nil {
				return err
			}
			items = append(items, p.pop())
		}
		if p.peek().Kind == TokenComma {
			p.next()
			continue
		}
		if p.peek().Kind != TokenBraceClose {
			return p.errorAt(p.peek(), types.ErrUnbalanced, "expected ',' or '}' in initializer")
		}
	}
	p.next()
	p.push(p.arena.New(NodeInitializer, open, "", items...))
	return nil
}

// typeName parses a type in type position: a dotted name with generic
// arguments, followed by nullable and array suffixes when allowed.
func (p *Parser) typeName(suffixes bool) error {
	tok := p.next()
	if tok.Kind != TokenIdentifier || reservedOperands[tok.Value] {
		return p.errorAt(tok, types.ErrExpectedToken, "type name expected")
	}
	if err := p.identifier(tok, true); err != nil {
		return err
	}
	for p.peek().Kind == TokenDot && p.peekAt(1).Kind == TokenIdentifier {
		dot := p.next()
		name := p.next()
		if err := p.identifier(name, true); err != nil {
			return err
		}
		member := p.pop()
		target := p.pop()
		p.push(p.arena.New(NodeMember, dot, "", target, member))
	}
	if !suffixes {
		if p.peek().Kind == TokenCondition && nullableFollow(p.peekAt(1).Kind) {
			q := p.next()
			p.push(p.arena.New(NodeNullableType, q, "", p.pop()))
		}
		return nil
	}
	for {
		switch {
		case p.peek().Kind == TokenCondition && nullableFollow(p.peekAt(1).Kind):
			q := p.next()
			p.push(p.arena.New(NodeNullableType, q, "", p.pop()))
		case p.peek().Kind == TokenBracketOpen && p.peekAt(1).Kind == TokenBracketClose:
			open := p.next()
			p.next()
			p.push(p.arena.New(NodeArrayType, open, "", p.pop()))
		default:
			return nil
		}
	}
}

// nullableFollow reports whether a token may follow "T?" when the question
// mark marks a nullable type rather than a conditional operator.
func nullableFollow(k TokenKind) bool {
	switch k {
	case TokenNone, TokenParenClose, TokenParenOpen, TokenComma, TokenGreater, TokenShiftRight,
		TokenBracketOpen, TokenBracketClose, TokenBraceOpen, TokenBraceClose, TokenCondition, TokenCoalesce,
		TokenAndAlso, TokenOrElse, TokenEqual, TokenNotEqual, TokenColon, TokenBitAnd, TokenBitOr, TokenXor:
		return true
	}
	return false
}

// typeArguments parses "<T, U>" and returns the argument nodes. A closing
// ">>" is split into two ">" tokens.
func (p *Parser) typeArguments() ([]*Node, error) {
	open := p.next()
	open.Kind = TokenTypeArgs
	var args []*Node
	for {
		switch p.peek().Kind {
		case TokenComma, TokenGreater, TokenShiftRight:
			// Open generic placeholder, as in typeof(Dictionary<,>).
			args = append(args, p.arena.New(NodeEmptyType, p.peek(), ""))
		default:
			if err := p.typeName(true); err != nil {
				return nil, err
			}
			args = append(args, p.pop())
		}
		tok := p.peek()
		switch tok.Kind {
		case TokenComma:
			p.next()
			continue
		case TokenGreater:
			p.next()
			return args, nil
		case TokenShiftRight:
			p.splitShiftRight()
			p.next()
			return args, nil
		default:
			return nil, p.errorAt(tok, types.ErrUnbalanced, "expected '>' to close the type argument list")
		}
	}
}

// splitShiftRight replaces the ">>" at the cursor with two ">" tokens.
func (p *Parser) splitShiftRight() {
	tok := p.tokens[p.pos]
	first := Token{Kind: TokenGreater, Value: ">", Line: tok.Line, Column: tok.Column, Length: 1}
	second := Token{Kind: TokenGreater, Value: ">", Line: tok.Line, Column: tok.Column + 1, Length: 1}
	// Always copy: a speculative parse may restore the previous buffer.
	tokens := make([]Token, 0, len(p.tokens)+1)
	tokens = append(tokens, p.tokens[:p.pos]...)
	tokens = append(tokens, first, second)
	tokens = append(tokens, p.tokens[p.pos+1:]...)
	p.tokens = tokens
}

// looksLikeTypeArguments scans ahead from a '<' for a balanced run of
// type-shaped tokens closed by '>' or '>>' and followed by a token that can
// follow a generic name.
func (p *Parser) looksLikeTypeArguments() bool {
	depth := 0
	for i := p.pos; i < len(p.tokens); i++ {
		switch p.tokens[i].Kind {
		case TokenLess:
			depth++
		case TokenGreater:
			depth--
		case TokenShiftRight:
			depth -= 2
		case TokenIdentifier, TokenDot, TokenComma, TokenCondition, TokenBracketOpen, TokenBracketClose:
			continue
		default:
			return false
		}
		if depth < 0 {
			return false
		}
		if depth == 0 {
			if i+1 >= len(p.tokens) {
				return true
			}
			switch p.tokens[i+1].Kind {
			case TokenParenOpen, TokenParenClose, TokenBracketClose, TokenBraceClose, TokenColon,
				TokenComma, TokenDot, TokenCondition, TokenNullDot, TokenEqual, TokenNotEqual,
				TokenBitOr, TokenXor, TokenAndAlso, TokenOrElse, TokenBitAnd, TokenBracketOpen:
				return true
			}
			return false
		}
	}
	return false
}

// Token buffer and stack helpers

func (p *Parser) peek() Token {
	return p.peekAt(0)
}

func (p *Parser) peekAt(offset int) Token {
	if i := p.pos + offset; i < len(p.tokens) {
		return p.tokens[i]
	}
	if len(p.tokens) > 0 {
		last := p.tokens[len(p.tokens)-1]
		return Token{Line: last.Line, Column: last.Column + last.Length}
	}
	return Token{}
}

func (p *Parser) next() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) expect(kind TokenKind) error {
	tok := p.peek()
	if tok.Kind != kind {
		if !tok.IsValid() {
			return p.errorAt(tok, types.ErrUnexpectedEnd, fmt.Sprintf("expected '%s' but reached the end of the expression", kind))
		}
		return p.errorAt(tok, types.ErrExpectedToken, fmt.Sprintf("expected '%s' but got %q", kind, tok.Value))
	}
	p.next()
	return nil
}

func (p *Parser) push(n *Node) {
	p.stack = append(p.stack, n)
}

func (p *Parser) pop() *Node {
	n := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	return n
}

func (p *Parser) errorAt(tok Token, code types.ErrorCode, message string) error {
	return types.NewError(types.ParseError, code, message, types.Position{
		Line:   tok.Line,
		Column: tok.Column,
		Length: tok.Length,
	}).WithToken(tok.Value)
}
