package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Expression parser: precedence climbing over per-token handler tables
// ---------------------------------------------------------------------------

// Power is a binding power. A higher power binds tighter.
type Power int

// Binding powers, lowest to highest. Bitwise operators bind tighter than
// arithmetic and && / || bind tighter than plain comparison; this ordering
// is part of the language.
const (
	PowerNone Power = iota
	PowerAssignment
	PowerComparison // == != <= >= < >
	PowerCombined   // && ||
	PowerPrimary    // + -
	PowerSecondary  // * / %
	PowerBitwise    // & | ^ << >>
	PowerPrefix
	PowerPostfix
	PowerIndex // []
	PowerCall  // ()
)

type prefixFn func(p *exprParser, tok Token) (Expr, error)
type infixFn func(p *exprParser, left Expr, tok Token) (Expr, error)

type infixEntry struct {
	power Power
	fn    infixFn
}

// ParserContext holds the prefix and infix handler tables. Build one with
// NewParserContext and share it between parses; it is read-only after
// construction.
type ParserContext struct {
	prefix [tokenTypeCount]prefixFn
	infix  [tokenTypeCount]infixEntry
}

// NewParserContext creates a context with the language's handler tables.
func NewParserContext() *ParserContext {
	c := &ParserContext{}

	for _, tt := range []TokenType{
		TokenNumber, TokenText, TokenTrue, TokenFalse, TokenNull, TokenAttached,
		TokenInstantiate, TokenDelete, TokenAttach, TokenDetach,
	} {
		c.prefix[tt] = parseLeaf
	}
	c.prefix[TokenQuote] = parseString
	for _, tt := range []TokenType{TokenPlus, TokenMinus, TokenTilde, TokenBang} {
		c.prefix[tt] = parsePrefixOperator
	}
	c.prefix[TokenIncrement] = parsePrefixIncDec
	c.prefix[TokenDecrement] = parsePrefixIncDec
	c.prefix[TokenLParen] = parseParen

	c.registerBinary(PowerComparison, TokenEqual, TokenNotEqual, TokenLessEqual, TokenGreaterEqual, TokenLess, TokenGreater)
	c.registerBinary(PowerCombined, TokenAndAnd, TokenOrOr)
	c.registerBinary(PowerPrimary, TokenPlus, TokenMinus)
	c.registerBinary(PowerSecondary, TokenStar, TokenSlash, TokenPercent)
	c.registerBinary(PowerBitwise, TokenAmp, TokenPipe, TokenCaret, TokenShiftLeft, TokenShiftRight)

	for _, tt := range []TokenType{
		TokenAssign, TokenPlusAssign, TokenMinusAssign, TokenStarAssign, TokenSlashAssign,
		TokenPercentAssign, TokenAmpAssign, TokenPipeAssign, TokenCaretAssign,
	} {
		c.infix[tt] = infixEntry{PowerAssignment, parseAssign}
	}
	c.infix[TokenIncrement] = infixEntry{PowerPostfix, parsePostfixIncDec}
	c.infix[TokenDecrement] = infixEntry{PowerPostfix, parsePostfixIncDec}
	c.infix[TokenLBracket] = infixEntry{PowerIndex, parseIndex}
	c.infix[TokenLParen] = infixEntry{PowerCall, parseCall}

	return c
}

func (c *ParserContext) registerBinary(power Power, types ...TokenType) {
	for _, tt := range types {
		c.infix[tt] = infixEntry{power, parseBinary}
	}
}

// InfixPower returns the binding power of a token in infix position, or
// PowerNone if it has no infix handler.
func (c *ParserContext) InfixPower(tt TokenType) Power {
	if c.infix[tt].fn == nil {
		return PowerNone
	}
	return c.infix[tt].power
}

// ParseExpression parses tokens as exactly one expression.
func (c *ParserContext) ParseExpression(tokens []Token) (Expr, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty expression")
	}
	p := &exprParser{ctx: c, tokens: tokens}
	expr, err := p.parse(PowerNone)
	if err != nil {
		return nil, err
	}
	if tok, ok := p.peek(); ok {
		return nil, p.errorf(tok, "unexpected %s in expression", tok)
	}
	return expr, nil
}

// exprParser is the cursor state for one expression.
type exprParser struct {
	ctx    *ParserContext
	tokens []Token
	pos    int
}

func (p *exprParser) peek() (Token, bool) {
	if p.pos >= len(p.tokens) {
		return Token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *exprParser) next() (Token, bool) {
	tok, ok := p.peek()
	if ok {
		p.pos++
	}
	return tok, ok
}

// last returns the final token, for errors at the end of input.
func (p *exprParser) last() Token {
	if len(p.tokens) == 0 {
		return Token{}
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *exprParser) errorf(tok Token, format string, args ...interface{}) error {
	return Diagnostic{File: tok.File, Line: tok.Line, Message: fmt.Sprintf(format, args...)}
}

func (p *exprParser) expect(tt TokenType) (Token, error) {
	tok, ok := p.next()
	if !ok {
		return Token{}, p.errorf(p.last(), "expected %s, got end of expression", tt)
	}
	if !tok.Is(tt) {
		return Token{}, p.errorf(tok, "expected %s, got %s", tt, tok)
	}
	return tok, nil
}

// parse is the precedence-climbing loop.
func (p *exprParser) parse(min Power) (Expr, error) {
	tok, ok := p.next()
	if !ok {
		return nil, p.errorf(p.last(), "unexpected end of expression")
	}
	prefix := p.ctx.prefix[tok.Type]
	if prefix == nil {
		return nil, p.errorf(tok, "invalid prefix %s", tok)
	}
	left, err := prefix(p, tok)
	if err != nil {
		return nil, err
	}

	for {
		nt, ok := p.peek()
		if !ok {
			break
		}
		entry := p.ctx.infix[nt.Type]
		if entry.fn == nil || entry.power <= min {
			break
		}
		p.pos++
		left, err = entry.fn(p, left, nt)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

// ---------------------------------------------------------------------------
// Prefix handlers
// ---------------------------------------------------------------------------

func parseLeaf(p *exprParser, tok Token) (Expr, error) {
	switch tok.Type {
	case TokenNumber:
		return &NumberLit{Tok: tok}, nil
	case TokenText:
		if !isIdentifier(tok.Text) {
			return nil, p.errorf(tok, "invalid identifier %q", tok.Text)
		}
		return &Ident{Tok: tok}, nil
	}
	return &KeywordLit{Tok: tok}, nil
}

func parseString(p *exprParser, tok Token) (Expr, error) {
	nt, ok := p.next()
	if !ok {
		return nil, p.errorf(tok, "missing closing quote")
	}
	if nt.Is(TokenQuote) {
		return &StringLit{Tok: tok}, nil
	}
	if _, err := p.expect(TokenQuote); err != nil {
		return nil, p.errorf(tok, "missing closing quote")
	}
	return &StringLit{Tok: tok, Value: nt.Text}, nil
}

func parsePrefixOperator(p *exprParser, tok Token) (Expr, error) {
	operand, err := p.parse(PowerPrefix)
	if err != nil {
		return nil, err
	}
	return &UnaryExpr{Op: tok, Operand: operand}, nil
}

func parsePrefixIncDec(p *exprParser, tok Token) (Expr, error) {
	operand, err := p.parse(PowerPrefix)
	if err != nil {
		return nil, err
	}
	id, ok := operand.(*Ident)
	if !ok {
		return nil, p.errorf(tok, "%s requires a variable operand", tok.Text)
	}
	return &IncDecExpr{Op: tok, Target: id}, nil
}

func parseParen(p *exprParser, tok Token) (Expr, error) {
	inner, err := p.parse(PowerNone)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return inner, nil
}

// ---------------------------------------------------------------------------
// Infix handlers
// ---------------------------------------------------------------------------

func parseBinary(p *exprParser, left Expr, tok Token) (Expr, error) {
	right, err := p.parse(p.ctx.infix[tok.Type].power)
	if err != nil {
		return nil, err
	}
	return &BinaryExpr{Op: tok, Left: left, Right: right}, nil
}

func parseAssign(p *exprParser, left Expr, tok Token) (Expr, error) {
	target, ok := left.(*Ident)
	if !ok {
		return nil, p.errorf(tok, "left side of %s must be a variable", tok.Text)
	}
	value, err := p.parse(PowerAssignment - 1)
	if err != nil {
		return nil, err
	}
	return &AssignExpr{Op: tok, Target: target, Value: value}, nil
}

func parsePostfixIncDec(p *exprParser, left Expr, tok Token) (Expr, error) {
	target, ok := left.(*Ident)
	if !ok {
		return nil, p.errorf(tok, "%s requires a variable operand", tok.Text)
	}
	return &IncDecExpr{Op: tok, Target: target, Postfix: true}, nil
}

func parseCall(p *exprParser, left Expr, tok Token) (Expr, error) {
	switch callee := left.(type) {
	case *Ident:
	case *KeywordLit:
		if !isObjectKeyword(callee.Tok.Type) {
			return nil, p.errorf(tok, "%s is not callable", callee.Tok.Text)
		}
	default:
		return nil, p.errorf(tok, "expression is not callable")
	}

	call := &CallExpr{Callee: left}
	if nt, ok := p.peek(); ok && nt.Is(TokenRParen) {
		p.pos++
		return call, nil
	}
	for {
		arg, err := p.parse(PowerNone)
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)

		nt, ok := p.next()
		if !ok {
			return nil, p.errorf(tok, "missing ) after call arguments")
		}
		if nt.Is(TokenRParen) {
			return call, nil
		}
		if !nt.Is(TokenComma) {
			return nil, p.errorf(nt, "expected , or ) in call arguments, got %s", nt)
		}
	}
}

func parseIndex(p *exprParser, left Expr, tok Token) (Expr, error) {
	sub, err := p.parse(PowerNone)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenRBracket); err != nil {
		return nil, err
	}
	return &IndexExpr{Target: left, Subscript: sub}, nil
}

// isObjectKeyword reports whether tt introduces a keyword expression.
func isObjectKeyword(tt TokenType) bool {
	switch tt {
	case TokenInstantiate, TokenDelete, TokenAttach, TokenDetach:
		return true
	}
	return false
}
