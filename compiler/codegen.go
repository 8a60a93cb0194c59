package compiler

import (
	"github.com/tliron/commonlog"

	"github.com/chazu/baranium/pkg/bytecode"
)

var log = commonlog.GetLogger("baranium.compiler")

// ---------------------------------------------------------------------------
// Codegen: compile statement nodes to sections
// ---------------------------------------------------------------------------

// Generator compiles a parsed unit into a script. Code for a function body
// is emitted into the buffer passed down the call chain, so bodies of
// branches and loops can be compiled into scratch buffers and measured
// before the jumps around them are written.
type Generator struct {
	ctx    *Context
	script *bytecode.Script

	globals   map[string]Symbol
	functions map[string]*FuncDecl
	ids       idRegistry
	names     map[int64]string

	// Current function
	fn    *FuncDecl
	scope *SymbolTable
}

// NewGenerator creates a generator reporting into ctx.
func NewGenerator(ctx *Context) *Generator {
	return &Generator{
		ctx:       ctx,
		script:    bytecode.NewScript(),
		globals:   make(map[string]Symbol),
		functions: make(map[string]*FuncDecl),
		ids:       make(idRegistry),
		names:     make(map[int64]string),
	}
}

// Names maps every id the generator emitted back to its source name.
func (g *Generator) Names() map[int64]string {
	return g.names
}

// Generate compiles every top-level statement into one section each. The
// declarations are collected first so code may refer to names declared
// further down.
func (g *Generator) Generate(stmts []Stmt) *bytecode.Script {
	g.declare(stmts)

	for _, s := range stmts {
		switch n := s.(type) {
		case *FieldDecl:
			g.global(bytecode.SectionField, n.ID(), n.Name(), n.Type, n.Init, n.Tok)
		case *VarDecl:
			g.global(bytecode.SectionVariable, n.ID(), n.Name(), n.Type, n.Init, n.Tok)
		case *FuncDecl:
			if n.HasBody {
				g.function(n)
			}
		default:
			g.ctx.Errorf(s.Pos(), "internal error: unexpected top-level %T", s)
		}
	}
	return g.script
}

// register records an id and reports a collision with another name.
func (g *Generator) register(tok Token, id int64, name string) {
	if prev, ok := g.ids.register(id, name); !ok {
		g.ctx.Errorf(tok, "identifier %s collides with %s (id %d)", name, prev, id)
	}
	g.names[id] = name
}

func (g *Generator) declare(stmts []Stmt) {
	for _, s := range stmts {
		var t bytecode.VarType
		switch n := s.(type) {
		case *FieldDecl:
			t = n.Type
		case *VarDecl:
			t = n.Type
		case *FuncDecl:
			g.declareFunction(n)
			continue
		default:
			continue
		}
		if g.isDeclared(s.Name()) {
			g.ctx.Errorf(s.Pos(), "%s redeclared", s.Name())
			continue
		}
		g.register(s.Pos(), s.ID(), s.Name())
		g.globals[s.Name()] = Symbol{Name: s.Name(), ID: s.ID(), Type: t}
	}
}

func (g *Generator) declareFunction(fn *FuncDecl) {
	if _, ok := g.globals[fn.Name()]; ok {
		g.ctx.Errorf(fn.Tok, "%s redeclared as a function", fn.Name())
		return
	}
	prev, ok := g.functions[fn.Name()]
	if !ok {
		g.register(fn.Tok, fn.ID(), fn.Name())
		g.functions[fn.Name()] = fn
		return
	}
	if prev.HasBody && fn.HasBody {
		g.ctx.Errorf(fn.Tok, "function %s redefined", fn.Name())
		return
	}
	if !sameSignature(prev, fn) {
		g.ctx.Errorf(fn.Tok, "conflicting declarations of %s", fn.Name())
		return
	}
	if fn.HasBody {
		g.functions[fn.Name()] = fn
	}
}

func sameSignature(a, b *FuncDecl) bool {
	if a.ReturnType != b.ReturnType || len(a.Params) != len(b.Params) {
		return false
	}
	for i := range a.Params {
		if a.Params[i].Type != b.Params[i].Type {
			return false
		}
	}
	return true
}

func (g *Generator) isDeclared(name string) bool {
	_, isVar := g.globals[name]
	_, isFn := g.functions[name]
	return isVar || isFn
}

// global compiles a field or top-level variable. Its initializer must be
// known at compile time since it is stored in the section payload.
func (g *Generator) global(kind bytecode.SectionKind, id int64, name string, t bytecode.VarType, init Expr, tok Token) {
	value := bytecode.Zero(t)
	switch {
	case init == nil:
	case isNullLiteral(init) && t == bytecode.TypeObject:
	case isLiteral(init):
		v, err := literalValue(init, t)
		if err != nil {
			g.ctx.Errorf(init.Pos(), "%s: %v", name, err)
			return
		}
		value = v
	default:
		g.ctx.Errorf(init.Pos(), "initializer of %s %s must be a literal", kind, name)
		return
	}
	log.Debugf("%s %s (%s) id=%d", kind, name, t, id)
	g.script.AddSection(kind, id, bytecode.VariablePayload(value))
}

func isNullLiteral(e Expr) bool {
	k, ok := e.(*KeywordLit)
	return ok && k.Tok.Is(TokenNull)
}

// function compiles a function body. The prologue pops the arguments the
// caller pushed, last parameter first.
func (g *Generator) function(fn *FuncDecl) {
	g.fn = fn
	g.scope = NewSymbolTable(fn.Name())
	defer func() {
		g.fn = nil
		g.scope = nil
	}()

	b := bytecode.NewBuffer()
	params := make([]Symbol, len(fn.Params))
	for i, p := range fn.Params {
		sym, ok := g.scope.Declare(p.Name, p.Type)
		if !ok {
			g.ctx.Errorf(p.Tok, "duplicate parameter %s", p.Name)
		}
		g.register(p.Tok, sym.ID, sym.Local)
		params[i] = sym
	}
	for i := len(params) - 1; i >= 0; i-- {
		b.EmitMem(uint64(storageSize(params[i].Type, nil)), params[i].Type, params[i].ID)
		b.EmitID(bytecode.OpPopVar, params[i].ID)
	}

	for _, s := range fn.Body {
		g.statement(b, s)
	}
	if !endsWithReturn(fn.Body) {
		g.emitReturn(b, nil, fn.Tok)
	}

	log.Debugf("function %s: %d params, returns %s, %d bytes", fn.Name(), len(fn.Params), fn.ReturnType, b.Len())
	g.script.AddSection(bytecode.SectionFunction, fn.ID(), bytecode.FunctionPayload(bytecode.Function{
		ParamCount: uint8(len(fn.Params)),
		ReturnType: fn.ReturnType,
		Code:       b.Bytes(),
	}))
}

func endsWithReturn(body []Stmt) bool {
	if len(body) == 0 {
		return false
	}
	s, ok := body[len(body)-1].(*ExprStmt)
	return ok && s.Kind == ExprReturn
}

// storageSize is the MEM size of a variable: the fixed size of its type,
// or for strings the length of a literal initializer plus its NUL.
func storageSize(t bytecode.VarType, init Expr) int {
	if t != bytecode.TypeString {
		return t.Size()
	}
	if s, ok := init.(*StringLit); ok {
		return len(s.Value) + 1
	}
	return 0
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// block compiles statements in a nested scope. Locals declared in it are
// freed when it ends, so a loop body allocates them afresh each pass.
func (g *Generator) block(b *bytecode.Buffer, stmts []Stmt) {
	g.scope.Enter()
	for _, s := range stmts {
		g.statement(b, s)
	}
	dropped := g.scope.Leave()
	if endsWithReturn(stmts) {
		return
	}
	for i := len(dropped) - 1; i >= 0; i-- {
		b.EmitID(bytecode.OpFem, dropped[i].ID)
	}
}

func (g *Generator) statement(b *bytecode.Buffer, s Stmt) {
	switch n := s.(type) {
	case *VarDecl:
		g.local(b, n)
	case *ExprStmt:
		g.exprStatement(b, n)
	case *IfElse:
		g.ifElse(b, n)
	case *Loop:
		g.loop(b, n)
	case *FieldDecl, *FuncDecl:
		g.ctx.Errorf(s.Pos(), "%s cannot be declared inside a function", s.Name())
	default:
		g.ctx.Errorf(s.Pos(), "internal error: unexpected statement %T", s)
	}
}

// local compiles a variable declared inside a function.
func (g *Generator) local(b *bytecode.Buffer, n *VarDecl) Symbol {
	if _, ok := g.functions[n.Name()]; ok {
		g.ctx.Errorf(n.Tok, "%s shadows a function", n.Name())
	}
	sym, ok := g.scope.Declare(n.Name(), n.Type)
	if !ok {
		g.ctx.Errorf(n.Tok, "%s redeclared in this block", n.Name())
	}
	g.register(n.Tok, sym.ID, sym.Local)

	b.EmitMem(uint64(storageSize(n.Type, n.Init)), n.Type, sym.ID)
	if n.Init != nil {
		g.initialize(b, sym, n.Init)
	}
	return sym
}

// initialize writes an initializer into a freshly allocated variable.
// Literals become SET; object handles are copied from the sentinel or the
// source variable; anything else is evaluated and popped into place.
func (g *Generator) initialize(b *bytecode.Buffer, sym Symbol, init Expr) {
	if shape, ok := PredictType(init); ok && shape == bytecode.TypeObject && sym.Type != bytecode.TypeObject {
		g.ctx.Errorf(init.Pos(), "type mismatch: cannot use %s as %s", init.Pos().Text, sym.Type)
		return
	}

	if sym.Type == bytecode.TypeObject {
		if k, ok := init.(*KeywordLit); ok {
			switch k.Tok.Type {
			case TokenNull:
				b.EmitID(bytecode.OpPushVar, bytecode.NullObjectID)
				b.EmitID(bytecode.OpPopVar, sym.ID)
				return
			case TokenAttached:
				b.EmitID(bytecode.OpPushVar, bytecode.AttachedObjectID)
				b.EmitID(bytecode.OpPopVar, sym.ID)
				return
			}
		}
	}

	if isLiteral(init) {
		v, err := literalValue(init, sym.Type)
		if err != nil {
			g.ctx.Errorf(init.Pos(), "%s: %v", sym.Name, err)
			return
		}
		b.EmitSet(sym.ID, v.Data)
		return
	}

	g.value(b, init)
	b.EmitID(bytecode.OpPopVar, sym.ID)
}

func (g *Generator) exprStatement(b *bytecode.Buffer, n *ExprStmt) {
	switch n.Kind {
	case ExprReturn:
		g.emitReturn(b, n.Expr, n.Tok)
	case ExprCondition:
		g.cond(b, n.Expr)
	default:
		g.effect(b, n.Expr)
	}
}

// emitReturn frees every visible local and returns. A literal result is
// materialized in a throwaway variable first; functions without a result
// still leave a void value for the caller.
func (g *Generator) emitReturn(b *bytecode.Buffer, result Expr, tok Token) {
	rt := g.fn.ReturnType
	var release []int64

	switch {
	case result == nil && rt == bytecode.TypeVoid:
		// pushed below
	case result == nil:
		if tok.Is(TokenReturn) {
			g.ctx.Errorf(tok, "%s must return a %s", g.fn.Name(), rt)
		}
		zero := bytecode.Zero(rt)
		b.EmitValue(zero.Type, zero.Data)
	case rt == bytecode.TypeVoid:
		g.ctx.Errorf(tok, "%s does not return a value", g.fn.Name())
		return
	case isLiteral(result):
		v, err := literalValue(result, rt)
		if err != nil {
			g.ctx.Errorf(result.Pos(), "return: %v", err)
			return
		}
		name := bytecode.LocalName(g.fn.Name(), "$return")
		id := bytecode.NameID(name)
		g.register(tok, id, name)
		b.EmitMem(uint64(len(v.Data)), rt, id)
		b.EmitSet(id, v.Data)
		b.EmitID(bytecode.OpPushVar, id)
		release = append(release, id)
	default:
		g.value(b, result)
	}

	visible := g.scope.Visible()
	for i := len(visible) - 1; i >= 0; i-- {
		release = append(release, visible[i].ID)
	}
	for _, id := range release {
		b.EmitID(bytecode.OpFem, id)
	}
	if rt == bytecode.TypeVoid {
		b.EmitValue(bytecode.TypeVoid, nil)
	}
	b.Emit(bytecode.OpRet)
}
