package compiler

import (
	"fmt"

	"github.com/chazu/baranium/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent over the token stream
// ---------------------------------------------------------------------------

// Parser turns a preprocessed token stream into statement nodes. Bodies of
// functions, branches and loops are cut out with the depth-tracked segment
// primitive and parsed by a child parser over just those tokens.
type Parser struct {
	ctx    *Context
	pctx   *ParserContext
	tokens []Token
	pos    int

	fn     string        // enclosing function, empty at top level
	anon   *int          // counter naming anonymous statements, shared with children
	quotes map[Token]bool // unterminated strings already reported, shared with children
}

// NewParser creates a parser for a whole compilation unit.
func NewParser(ctx *Context, pctx *ParserContext, tokens []Token) *Parser {
	return &Parser{ctx: ctx, pctx: pctx, tokens: tokens, anon: new(int), quotes: make(map[Token]bool)}
}

func (p *Parser) child(tokens []Token) *Parser {
	return &Parser{ctx: p.ctx, pctx: p.pctx, tokens: tokens, fn: p.fn, anon: p.anon, quotes: p.quotes}
}

func (p *Parser) atEnd() bool {
	return p.pos >= len(p.tokens)
}

func (p *Parser) cur() Token {
	if p.atEnd() {
		return p.last()
	}
	return p.tokens[p.pos]
}

func (p *Parser) last() Token {
	if len(p.tokens) == 0 {
		return Token{Type: TokenEOF}
	}
	t := p.tokens[len(p.tokens)-1]
	return Token{Type: TokenEOF, Line: t.Line, File: t.File}
}

func (p *Parser) peekIs(tt TokenType) bool {
	return !p.atEnd() && p.tokens[p.pos].Is(tt)
}

// accept consumes the current token if it has the given type.
func (p *Parser) accept(tt TokenType) (Token, bool) {
	if p.peekIs(tt) {
		tok := p.tokens[p.pos]
		p.pos++
		return tok, true
	}
	return Token{}, false
}

func (p *Parser) expect(tt TokenType) (Token, bool) {
	if tok, ok := p.accept(tt); ok {
		return tok, true
	}
	p.ctx.Errorf(p.cur(), "expected %s, got %s", tt, p.cur())
	return Token{}, false
}

// segment reads tokens up to the closer that leaves depth at zero, where
// open/close nest (open may be TokenEOF for no nesting). The closer is
// consumed but not returned. ok is false when input ran out first.
func (p *Parser) segment(open, close TokenType) ([]Token, bool) {
	content, n, ok := scanSegment(p.tokens[p.pos:], open, close)
	p.pos += n
	return content, ok
}

// scanSegment is the primitive behind segment. It returns the inner
// tokens, how many tokens were consumed (including the closer) and
// whether the closer was found.
func scanSegment(tokens []Token, open, close TokenType) ([]Token, int, bool) {
	depth := 0
	for i, tok := range tokens {
		switch {
		case tok.Is(close) && depth == 0:
			return tokens[:i], i + 1, true
		case open != TokenEOF && tok.Is(open):
			depth++
		case tok.Is(close):
			depth--
		}
	}
	return tokens, len(tokens), false
}

// unclosedQuote finds a string whose closing quote is missing. Strings
// end on the line they start, so such a string swallows the rest of it.
func unclosedQuote(tokens []Token) (Token, bool) {
	for i := 0; i < len(tokens); i++ {
		open := tokens[i]
		if !open.Is(TokenQuote) {
			continue
		}
		j := i + 1
		if j < len(tokens) && tokens[j].Is(TokenText) && tokens[j].Line == open.Line {
			j++
		}
		if j < len(tokens) && tokens[j].Is(TokenQuote) && tokens[j].Line == open.Line && tokens[j].File == open.File {
			i = j
			continue
		}
		return open, true
	}
	return Token{}, false
}

// unterminated reports a segment that ran out of input. When a string
// left open swallowed the closer, the string is reported instead, once.
func (p *Parser) unterminated(content []Token, at Token, format string, args ...interface{}) {
	if q, ok := unclosedQuote(content); ok {
		if !p.quotes[q] {
			p.quotes[q] = true
			p.ctx.Errorf(q, "missing closing quote")
		}
		return
	}
	p.ctx.Errorf(at, format, args...)
}

// splitTopLevel splits tokens on sep where no parentheses are open.
func splitTopLevel(tokens []Token, sep TokenType) [][]Token {
	var parts [][]Token
	depth, start := 0, 0
	for i, tok := range tokens {
		switch {
		case tok.Is(TokenLParen), tok.Is(TokenLBracket), tok.Is(TokenLBrace):
			depth++
		case tok.Is(TokenRParen), tok.Is(TokenRBracket), tok.Is(TokenRBrace):
			depth--
		case tok.Is(sep) && depth == 0:
			parts = append(parts, tokens[start:i])
			start = i + 1
		}
	}
	return append(parts, tokens[start:])
}

// statementTokens reads up to the next ';', keeping braces balanced.
func (p *Parser) statementTokens(start Token) ([]Token, bool) {
	content, ok := p.segment(TokenEOF, TokenSemicolon)
	if !ok {
		p.unterminated(content, start, "missing ; after statement")
	}
	return content, ok
}

// recover skips the rest of a malformed statement.
func (p *Parser) recover() {
	for !p.atEnd() {
		tok := p.tokens[p.pos]
		p.pos++
		if tok.Is(TokenSemicolon) {
			return
		}
		if tok.Is(TokenLBrace) {
			p.segment(TokenLBrace, TokenRBrace)
			return
		}
	}
}

func (p *Parser) anonName(kind string) string {
	*p.anon++
	return fmt.Sprintf("%s$%s%d", p.fn, kind, *p.anon)
}

// ---------------------------------------------------------------------------
// Top level
// ---------------------------------------------------------------------------

// ParseProgram parses top-level declarations until the end of input.
func (p *Parser) ParseProgram() []Stmt {
	var stmts []Stmt
	for !p.atEnd() {
		tok := p.cur()
		switch tok.Type {
		case TokenDefine:
			p.pos++
			if fn := p.parseFunction(tok); fn != nil {
				stmts = append(stmts, fn)
			}
		case TokenField:
			p.pos++
			if f := p.parseField(tok); f != nil {
				stmts = append(stmts, f)
			}
		case TokenTypeName:
			if v := p.parseVarDecl(); v != nil {
				stmts = append(stmts, v)
			}
		case TokenSemicolon:
			p.pos++
		case TokenIf, TokenElse, TokenDo, TokenWhile, TokenFor, TokenReturn:
			p.ctx.Errorf(tok, "%s statement outside of a function", tok.Text)
			p.pos++
			p.recover()
		default:
			p.ctx.Errorf(tok, "unexpected %s at top level", tok)
			p.recover()
		}
	}
	return stmts
}

// parseField parses `field <type> name [= literal];` after the keyword.
func (p *Parser) parseField(kw Token) *FieldDecl {
	typeTok, ok := p.expect(TokenTypeName)
	if !ok {
		p.recover()
		return nil
	}
	name, init, ok := p.parseDeclTail(typeTok)
	if !ok {
		return nil
	}
	return &FieldDecl{
		stmtBase: newBase(name.Text),
		Tok:      kw,
		Type:     bytecode.ParseVarType(typeTok.Text),
		Init:     init,
	}
}

// parseVarDecl parses `<type> name [= init];` starting at the type.
func (p *Parser) parseVarDecl() *VarDecl {
	typeTok := p.tokens[p.pos]
	p.pos++
	name, init, ok := p.parseDeclTail(typeTok)
	if !ok {
		return nil
	}
	return p.newVarDecl(typeTok, name, init)
}

func (p *Parser) newVarDecl(typeTok, name Token, init Expr) *VarDecl {
	base := newBase(name.Text)
	if p.fn != "" {
		base = stmtBase{id: bytecode.NameID(bytecode.LocalName(p.fn, name.Text)), name: name.Text}
	}
	return &VarDecl{
		stmtBase: base,
		Tok:      typeTok,
		Type:     bytecode.ParseVarType(typeTok.Text),
		Init:     init,
	}
}

// parseDeclTail parses `name [= init];` for declarations.
func (p *Parser) parseDeclTail(typeTok Token) (Token, Expr, bool) {
	content, ok := p.statementTokens(typeTok)
	if !ok {
		return Token{}, nil, false
	}
	return p.declParts(typeTok, content)
}

// declParts splits `name [= init]` tokens.
func (p *Parser) declParts(typeTok Token, content []Token) (Token, Expr, bool) {
	if typeTok.Text == "void" {
		p.ctx.Errorf(typeTok, "variables cannot have type void")
		return Token{}, nil, false
	}
	if len(content) == 0 || !content[0].Is(TokenText) || !isIdentifier(content[0].Text) {
		p.ctx.Errorf(typeTok, "expected a name after %s", typeTok.Text)
		return Token{}, nil, false
	}
	name := content[0]
	if len(content) == 1 {
		return name, nil, true
	}
	if !content[1].Is(TokenAssign) {
		p.ctx.Errorf(content[1], "expected = or ; after %s, got %s", name.Text, content[1])
		return Token{}, nil, false
	}
	if len(content) == 2 {
		p.ctx.Errorf(content[1], "missing initializer for %s", name.Text)
		return Token{}, nil, false
	}
	init, err := p.pctx.ParseExpression(content[2:])
	if err != nil {
		p.report(err)
		return Token{}, nil, false
	}
	return name, init, true
}

// report forwards an expression parser error into the context.
func (p *Parser) report(err error) {
	if d, ok := err.(Diagnostic); ok {
		p.ctx.Errorf(Token{Line: d.Line, File: d.File}, "%s", d.Message)
		return
	}
	p.ctx.Errorf(p.cur(), "%v", err)
}

// parseFunction parses a function after the define keyword.
func (p *Parser) parseFunction(kw Token) *FuncDecl {
	nameTok, ok := p.accept(TokenText)
	if !ok || !isIdentifier(nameTok.Text) {
		p.ctx.Errorf(kw, "expected function name after define")
		p.recover()
		return nil
	}
	fn := &FuncDecl{
		stmtBase:   newBase(nameTok.Text),
		Tok:        kw,
		ReturnType: bytecode.TypeVoid,
	}

	if _, ok := p.expect(TokenLParen); !ok {
		p.recover()
		return nil
	}
	paramTokens, ok := p.segment(TokenLParen, TokenRParen)
	if !ok {
		p.unterminated(paramTokens, kw, "missing ) after parameters of %s", nameTok.Text)
		return nil
	}
	if len(paramTokens) > 0 {
		for _, part := range splitTopLevel(paramTokens, TokenComma) {
			if len(part) != 2 || !part[0].Is(TokenTypeName) || !part[1].Is(TokenText) || !isIdentifier(part[1].Text) {
				p.ctx.Errorf(kw, "malformed parameter list of %s", nameTok.Text)
				return nil
			}
			t := bytecode.ParseVarType(part[0].Text)
			if t == bytecode.TypeVoid {
				p.ctx.Errorf(part[0], "parameter %s cannot have type void", part[1].Text)
				return nil
			}
			fn.Params = append(fn.Params, Param{Tok: part[1], Type: t, Name: part[1].Text})
		}
	}
	if len(fn.Params) > 255 {
		p.ctx.Errorf(kw, "%s has more than 255 parameters", nameTok.Text)
	}

	if _, ok := p.accept(TokenAssign); ok {
		typeTok, ok := p.expect(TokenTypeName)
		if !ok {
			p.recover()
			return nil
		}
		fn.ReturnType = bytecode.ParseVarType(typeTok.Text)
	}

	if _, ok := p.accept(TokenSemicolon); ok {
		return fn
	}
	open, ok := p.expect(TokenLBrace)
	if !ok {
		p.recover()
		return nil
	}
	body, ok := p.segment(TokenLBrace, TokenRBrace)
	if !ok {
		p.unterminated(body, open, "missing } after body of %s", nameTok.Text)
	}

	sub := p.child(body)
	sub.fn = nameTok.Text
	fn.Body = sub.parseStatements()
	fn.HasBody = true
	return fn
}

// ---------------------------------------------------------------------------
// Statements inside bodies
// ---------------------------------------------------------------------------

func (p *Parser) parseStatements() []Stmt {
	var stmts []Stmt
	for !p.atEnd() {
		stmts = append(stmts, p.parseStatement()...)
	}
	return stmts
}

// parseStatement parses one statement. A nested `{ ... }` block yields its
// statements inline.
func (p *Parser) parseStatement() []Stmt {
	tok := p.cur()
	switch tok.Type {
	case TokenTypeName:
		if v := p.parseVarDecl(); v != nil {
			return []Stmt{v}
		}
	case TokenIf:
		p.pos++
		if s := p.parseIf(tok); s != nil {
			return []Stmt{s}
		}
	case TokenDo, TokenWhile, TokenFor:
		p.pos++
		if s := p.parseLoop(tok); s != nil {
			return []Stmt{s}
		}
	case TokenReturn:
		p.pos++
		if s := p.parseReturn(tok); s != nil {
			return []Stmt{s}
		}
	case TokenLBrace:
		p.pos++
		body, ok := p.segment(TokenLBrace, TokenRBrace)
		if !ok {
			p.unterminated(body, tok, "missing } after block")
		}
		return p.child(body).parseStatements()
	case TokenSemicolon:
		p.pos++
	case TokenDefine, TokenField:
		p.ctx.Errorf(tok, "%s is not allowed inside a function", tok.Text)
		p.recover()
	case TokenElse:
		p.ctx.Errorf(tok, "else without if")
		p.pos++
		p.recover()
	default:
		if s := p.parseExprStmt(tok); s != nil {
			return []Stmt{s}
		}
	}
	return nil
}

func (p *Parser) parseReturn(kw Token) *ExprStmt {
	content, ok := p.statementTokens(kw)
	if !ok {
		return nil
	}
	s := &ExprStmt{stmtBase: newBase(p.anonName("return")), Tok: kw, Kind: ExprReturn}
	if len(content) == 0 {
		return s
	}
	expr, err := p.pctx.ParseExpression(content)
	if err != nil {
		p.report(err)
		return nil
	}
	s.Expr = expr
	return s
}

func (p *Parser) parseExprStmt(start Token) *ExprStmt {
	content, ok := p.statementTokens(start)
	if !ok || len(content) == 0 {
		return nil
	}
	expr, err := p.pctx.ParseExpression(content)
	if err != nil {
		p.report(err)
		return nil
	}
	return &ExprStmt{
		stmtBase: newBase(p.anonName("expr")),
		Tok:      start,
		Kind:     classifyExpr(expr),
		Expr:     expr,
	}
}

// classifyExpr decides how an expression statement is compiled.
func classifyExpr(e Expr) ExprKind {
	switch n := e.(type) {
	case *AssignExpr, *IncDecExpr:
		return ExprAssignment
	case *CallExpr:
		if _, ok := n.Callee.(*KeywordLit); ok {
			return ExprKeyword
		}
		return ExprFunctionCall
	case *BinaryExpr:
		if isComparison(n.Op.Type) || isCombined(n.Op.Type) {
			return ExprCondition
		}
	}
	return ExprArithmetic
}

// parseCondition reads `( expr )`.
func (p *Parser) parseCondition(kw Token) (Expr, bool) {
	if _, ok := p.expect(TokenLParen); !ok {
		return nil, false
	}
	content, ok := p.segment(TokenLParen, TokenRParen)
	if !ok {
		p.unterminated(content, kw, "missing ) after %s condition", kw.Text)
		return nil, false
	}
	if len(content) == 0 {
		p.ctx.Errorf(kw, "empty %s condition", kw.Text)
		return nil, false
	}
	cond, err := p.pctx.ParseExpression(content)
	if err != nil {
		p.report(err)
		return nil, false
	}
	return cond, true
}

// parseBranchBody reads either a braced block or a single statement.
func (p *Parser) parseBranchBody(kw Token) []Stmt {
	if open, ok := p.accept(TokenLBrace); ok {
		body, ok := p.segment(TokenLBrace, TokenRBrace)
		if !ok {
			p.unterminated(body, open, "missing } after %s body", kw.Text)
		}
		return p.child(body).parseStatements()
	}
	if p.atEnd() {
		p.ctx.Errorf(kw, "missing body after %s", kw.Text)
		return nil
	}
	return p.parseStatement()
}

// ifState names the phases of if/else parsing.
type ifState int

const (
	ifReadCondition ifState = iota
	ifReadBody
	ifReadElse
	ifReadElseBody
	ifDone
)

// parseIf runs the if/else state machine. The root node holds the first
// condition; every else-if and the final else become alternatives.
func (p *Parser) parseIf(kw Token) *IfElse {
	root := &IfElse{stmtBase: newBase(p.anonName("if")), Tok: kw}
	cur := root
	state := ifReadCondition

	for state != ifDone {
		switch state {
		case ifReadCondition:
			cond, ok := p.parseCondition(cur.Tok)
			if !ok {
				p.recover()
				return nil
			}
			cur.Cond = cond
			state = ifReadBody

		case ifReadBody:
			cur.Body = p.parseBranchBody(cur.Tok)
			state = ifReadElse

		case ifReadElse:
			elseTok, ok := p.accept(TokenElse)
			if !ok {
				state = ifDone
				break
			}
			alt := &IfElse{stmtBase: newBase(p.anonName("else")), Tok: elseTok}
			root.Alternatives = append(root.Alternatives, alt)
			cur = alt
			if ifTok, ok := p.accept(TokenIf); ok {
				alt.Tok = ifTok
				state = ifReadCondition
			} else {
				state = ifReadElseBody
			}

		case ifReadElseBody:
			cur.Body = p.parseBranchBody(cur.Tok)
			state = ifDone
		}
	}
	return root
}

// parseLoop dispatches on the loop keyword.
func (p *Parser) parseLoop(kw Token) *Loop {
	switch kw.Type {
	case TokenDo:
		loop := &Loop{stmtBase: newBase(p.anonName("do")), Tok: kw, Kind: LoopDoWhile}
		loop.Body = p.parseBranchBody(kw)
		whileTok, ok := p.expect(TokenWhile)
		if !ok {
			p.recover()
			return nil
		}
		cond, ok := p.parseCondition(whileTok)
		if !ok {
			p.recover()
			return nil
		}
		loop.Cond = cond
		if _, ok := p.expect(TokenSemicolon); !ok {
			return nil
		}
		return loop

	case TokenWhile:
		loop := &Loop{stmtBase: newBase(p.anonName("while")), Tok: kw, Kind: LoopWhile}
		cond, ok := p.parseCondition(kw)
		if !ok {
			p.recover()
			return nil
		}
		loop.Cond = cond
		loop.Body = p.parseBranchBody(kw)
		return loop
	}

	loop := &Loop{stmtBase: newBase(p.anonName("for")), Tok: kw, Kind: LoopFor}
	if _, ok := p.expect(TokenLParen); !ok {
		p.recover()
		return nil
	}
	header, ok := p.segment(TokenLParen, TokenRParen)
	if !ok {
		p.unterminated(header, kw, "missing ) after for header")
		return nil
	}
	parts := splitTopLevel(header, TokenSemicolon)
	if len(parts) != 3 {
		p.ctx.Errorf(kw, "for header needs exactly two ';', got %d", len(parts)-1)
		p.parseBranchBody(kw)
		return nil
	}

	if init := parts[0]; len(init) > 0 {
		if init[0].Is(TokenTypeName) {
			name, value, ok := p.declParts(init[0], init[1:])
			if !ok {
				return nil
			}
			loop.StartVar = p.newVarDecl(init[0], name, value)
		} else if e, err := p.pctx.ParseExpression(init); err != nil {
			p.report(err)
			return nil
		} else {
			loop.Init = e
		}
	}
	if cond := parts[1]; len(cond) > 0 {
		e, err := p.pctx.ParseExpression(cond)
		if err != nil {
			p.report(err)
			return nil
		}
		loop.Cond = e
	}
	if iter := parts[2]; len(iter) > 0 {
		e, err := p.pctx.ParseExpression(iter)
		if err != nil {
			p.report(err)
			return nil
		}
		loop.Iter = e
	}
	loop.Body = p.parseBranchBody(kw)
	return loop
}
