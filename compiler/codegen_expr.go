package compiler

import "github.com/chazu/baranium/pkg/bytecode"

// ---------------------------------------------------------------------------
// Codegen: expressions
// ---------------------------------------------------------------------------

var arithmeticOps = map[TokenType]bytecode.Opcode{
	TokenPlus:       bytecode.OpAdd,
	TokenMinus:      bytecode.OpSub,
	TokenStar:       bytecode.OpMul,
	TokenSlash:      bytecode.OpDiv,
	TokenPercent:    bytecode.OpMod,
	TokenAmp:        bytecode.OpAnd,
	TokenPipe:       bytecode.OpOr,
	TokenCaret:      bytecode.OpXor,
	TokenShiftLeft:  bytecode.OpShftL,
	TokenShiftRight: bytecode.OpShftR,
}

var compoundOps = map[TokenType]bytecode.Opcode{
	TokenPlusAssign:    bytecode.OpAdd,
	TokenMinusAssign:   bytecode.OpSub,
	TokenStarAssign:    bytecode.OpMul,
	TokenSlashAssign:   bytecode.OpDiv,
	TokenPercentAssign: bytecode.OpMod,
	TokenAmpAssign:     bytecode.OpAnd,
	TokenPipeAssign:    bytecode.OpOr,
	TokenCaretAssign:   bytecode.OpXor,
}

var compareMethods = map[TokenType]bytecode.CompareMethod{
	TokenEqual:        bytecode.CompareEqual,
	TokenNotEqual:     bytecode.CompareNotEqual,
	TokenLess:         bytecode.CompareLess,
	TokenLessEqual:    bytecode.CompareLessEqual,
	TokenGreater:      bytecode.CompareGreater,
	TokenGreaterEqual: bytecode.CompareGreaterEqual,
}

var keywordOps = map[TokenType]bytecode.Opcode{
	TokenInstantiate: bytecode.OpInstantiate,
	TokenDelete:      bytecode.OpDelete,
	TokenAttach:      bytecode.OpAttach,
	TokenDetach:      bytecode.OpDetach,
}

func isComparison(tt TokenType) bool {
	_, ok := compareMethods[tt]
	return ok
}

func isCombined(tt TokenType) bool {
	return tt == TokenAndAnd || tt == TokenOrOr
}

// resolve finds the variable an identifier names: locals first, then
// fields and globals. An unknown name is an error.
func (g *Generator) resolve(id *Ident) (Symbol, bool) {
	if g.scope != nil {
		if sym, ok := g.scope.Lookup(id.Name()); ok {
			return sym, true
		}
	}
	if sym, ok := g.globals[id.Name()]; ok {
		return sym, true
	}
	if _, ok := g.functions[id.Name()]; ok {
		g.ctx.Errorf(id.Tok, "%s is a function, not a variable", id.Name())
		return Symbol{}, false
	}
	g.ctx.Errorf(id.Tok, "undefined variable %s", id.Name())
	return Symbol{}, false
}

// value compiles e so that it leaves exactly one value on the stack.
func (g *Generator) value(b *bytecode.Buffer, e Expr) {
	switch n := e.(type) {
	case *NumberLit:
		g.literal(b, n)

	case *StringLit:
		v := bytecode.StringValue(n.Value)
		b.EmitValue(v.Type, v.Data)

	case *KeywordLit:
		switch n.Tok.Type {
		case TokenTrue, TokenFalse:
			v := bytecode.BoolValue(n.Tok.Is(TokenTrue))
			b.EmitValue(v.Type, v.Data)
		case TokenNull:
			b.EmitID(bytecode.OpPushVar, bytecode.NullObjectID)
		case TokenAttached:
			b.EmitID(bytecode.OpPushVar, bytecode.AttachedObjectID)
		default:
			g.ctx.Errorf(n.Tok, "%s requires an argument list", n.Tok.Text)
		}

	case *Ident:
		if sym, ok := g.resolve(n); ok {
			b.EmitID(bytecode.OpPushVar, sym.ID)
		}

	case *UnaryExpr:
		g.unary(b, n)

	case *IncDecExpr:
		g.incDec(b, n, true)

	case *BinaryExpr:
		if isComparison(n.Op.Type) || isCombined(n.Op.Type) {
			g.cond(b, n)
			b.Emit(bytecode.OpPushCmp)
			return
		}
		op, ok := arithmeticOps[n.Op.Type]
		if !ok {
			g.ctx.Errorf(n.Op, "internal error: no opcode for %s", n.Op)
			return
		}
		g.value(b, n.Left)
		g.value(b, n.Right)
		b.Emit(op)

	case *AssignExpr:
		g.assign(b, n, true)

	case *CallExpr:
		g.call(b, n)

	case *IndexExpr:
		g.ctx.Errorf(n.Pos(), "indexing is not supported")

	default:
		g.ctx.Errorf(e.Pos(), "internal error: unexpected expression %T", e)
	}
}

// effect compiles e for its side effects only.
func (g *Generator) effect(b *bytecode.Buffer, e Expr) {
	switch n := e.(type) {
	case *AssignExpr:
		g.assign(b, n, false)
	case *IncDecExpr:
		g.incDec(b, n, false)
	default:
		g.value(b, e)
		b.Emit(bytecode.OpPop)
	}
}

func (g *Generator) literal(b *bytecode.Buffer, e Expr) {
	t, _ := PredictType(e)
	v, err := literalValue(e, t)
	if err != nil {
		g.ctx.Errorf(e.Pos(), "%v", err)
		return
	}
	b.EmitValue(v.Type, v.Data)
}

func (g *Generator) unary(b *bytecode.Buffer, n *UnaryExpr) {
	switch n.Op.Type {
	case TokenMinus:
		if _, ok := n.Operand.(*NumberLit); ok {
			g.literal(b, n)
			return
		}
		zero := bytecode.IntValue(0)
		b.EmitValue(zero.Type, zero.Data)
		g.value(b, n.Operand)
		b.Emit(bytecode.OpSub)
	case TokenPlus:
		g.value(b, n.Operand)
	case TokenTilde:
		g.value(b, n.Operand)
		ones := bytecode.IntValue(-1)
		b.EmitValue(ones.Type, ones.Data)
		b.Emit(bytecode.OpXor)
	case TokenBang:
		g.cond(b, n)
		b.Emit(bytecode.OpPushCmp)
	default:
		g.ctx.Errorf(n.Op, "internal error: unexpected prefix %s", n.Op)
	}
}

// assign compiles = and the compound assignments. With want set the new
// value is left on the stack.
func (g *Generator) assign(b *bytecode.Buffer, n *AssignExpr, want bool) {
	sym, ok := g.resolve(n.Target)
	if !ok {
		return
	}
	if n.Op.Is(TokenAssign) {
		if isLiteral(n.Value) {
			if _, err := literalValue(n.Value, sym.Type); err != nil {
				g.ctx.Errorf(n.Value.Pos(), "%s: %v", sym.Name, err)
				return
			}
		}
		g.value(b, n.Value)
	} else {
		op, ok := compoundOps[n.Op.Type]
		if !ok {
			g.ctx.Errorf(n.Op, "internal error: no opcode for %s", n.Op)
			return
		}
		b.EmitID(bytecode.OpPushVar, sym.ID)
		g.value(b, n.Value)
		b.Emit(op)
	}
	b.EmitID(bytecode.OpPopVar, sym.ID)
	if want {
		b.EmitID(bytecode.OpPushVar, sym.ID)
	}
}

// incDec compiles ++/--. As a value, the postfix form leaves the old value
// and the prefix form the new one.
func (g *Generator) incDec(b *bytecode.Buffer, n *IncDecExpr, want bool) {
	sym, ok := g.resolve(n.Target)
	if !ok {
		return
	}
	op := bytecode.OpAdd
	if n.Op.Is(TokenDecrement) {
		op = bytecode.OpSub
	}
	if want && n.Postfix {
		b.EmitID(bytecode.OpPushVar, sym.ID)
	}
	one := bytecode.IntValue(1)
	b.EmitID(bytecode.OpPushVar, sym.ID)
	b.EmitValue(one.Type, one.Data)
	b.Emit(op)
	b.EmitID(bytecode.OpPopVar, sym.ID)
	if want && !n.Postfix {
		b.EmitID(bytecode.OpPushVar, sym.ID)
	}
}

// call compiles a function call or keyword expression. Arguments are
// pushed left to right. Callees not declared in this unit are left for the
// VM to resolve against loaded libraries and natives.
func (g *Generator) call(b *bytecode.Buffer, n *CallExpr) {
	switch callee := n.Callee.(type) {
	case *KeywordLit:
		if len(n.Args) != 1 {
			g.ctx.Errorf(callee.Tok, "%s takes exactly one argument, got %d", callee.Tok.Text, len(n.Args))
			return
		}
		g.value(b, n.Args[0])
		b.Emit(keywordOps[callee.Tok.Type])

	case *Ident:
		name := callee.Name()
		if g.scope != nil {
			if _, ok := g.scope.Lookup(name); ok {
				g.ctx.Errorf(callee.Tok, "%s is a variable, not a function", name)
				return
			}
		}
		if _, ok := g.globals[name]; ok {
			g.ctx.Errorf(callee.Tok, "%s is a variable, not a function", name)
			return
		}
		fn, known := g.functions[name]
		if known && len(fn.Params) != len(n.Args) {
			g.ctx.Errorf(callee.Tok, "%s takes %d arguments, got %d", name, len(fn.Params), len(n.Args))
			return
		}
		for i, arg := range n.Args {
			if known && isLiteral(arg) {
				if _, err := literalValue(arg, fn.Params[i].Type); err != nil {
					g.ctx.Errorf(arg.Pos(), "argument %d of %s: %v", i+1, name, err)
				}
			}
			g.value(b, arg)
		}
		if !known {
			log.Debugf("call to %s resolved at run time", name)
		}
		id := bytecode.NameID(name)
		g.register(callee.Tok, id, name)
		b.EmitID(bytecode.OpCall, id)

	default:
		g.ctx.Errorf(n.Pos(), "internal error: unexpected callee %T", n.Callee)
	}
}
