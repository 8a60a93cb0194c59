package compiler

import "github.com/chazu/baranium/pkg/bytecode"

// ---------------------------------------------------------------------------
// Codegen: conditions, if/else chains and loops
//
// Every jump the compiler writes is relative, so a body compiled into a
// scratch buffer can be spliced anywhere once its length is known.
// ---------------------------------------------------------------------------

// cond compiles e so that the compare value holds its truth. Comparisons
// use CMP directly; && and || save the left result on the cv stack and
// combine it with the right one; anything else is compared against zero.
func (g *Generator) cond(b *bytecode.Buffer, e Expr) {
	switch n := e.(type) {
	case *BinaryExpr:
		if method, ok := compareMethods[n.Op.Type]; ok {
			g.value(b, n.Left)
			g.value(b, n.Right)
			b.EmitByte(bytecode.OpCmp, uint8(method))
			return
		}
		if isCombined(n.Op.Type) {
			combine := bytecode.CombineAnd
			if n.Op.Is(TokenOrOr) {
				combine = bytecode.CombineOr
			}
			g.cond(b, n.Left)
			b.Emit(bytecode.OpPushCV)
			g.cond(b, n.Right)
			b.EmitByte(bytecode.OpCmpC, uint8(combine))
			return
		}
	case *UnaryExpr:
		if n.Op.Is(TokenBang) {
			g.value(b, n.Operand)
			g.compareZero(b, bytecode.CompareEqual)
			return
		}
	}
	g.value(b, e)
	g.compareZero(b, bytecode.CompareNotEqual)
}

func (g *Generator) compareZero(b *bytecode.Buffer, method bytecode.CompareMethod) {
	zero := bytecode.IntValue(0)
	b.EmitValue(zero.Type, zero.Data)
	b.EmitByte(bytecode.OpCmp, uint8(method))
}

// jump writes a relative jump, reporting distances that do not fit.
func (g *Generator) jump(b *bytecode.Buffer, op bytecode.Opcode, delta int, at Token) {
	if _, err := b.EmitJumpOffset(op, delta); err != nil {
		g.ctx.Errorf(at, "%v", err)
	}
}

func (g *Generator) jumpBack(b *bytecode.Buffer, op bytecode.Opcode, target int, at Token) {
	if _, err := b.EmitJumpBack(op, target); err != nil {
		g.ctx.Errorf(at, "%v", err)
	}
}

// ifElse compiles a chain. Each conditional branch is
//
//	SCF <cond> JMPCOFF +3 JMPOFF skip <body> [JMPOFF end]
//
// The chain is laid out from the last branch backwards so every exit jump
// knows how much code follows it.
func (g *Generator) ifElse(b *bytecode.Buffer, n *IfElse) {
	type branch struct {
		tok  Token
		cond Expr
		body *bytecode.Buffer
	}

	branches := []branch{{tok: n.Tok, cond: n.Cond}}
	var elseBody *bytecode.Buffer
	for _, alt := range n.Alternatives {
		if alt.Cond == nil {
			elseBody = b.Scratch()
			g.block(elseBody, alt.Body)
			break
		}
		branches = append(branches, branch{tok: alt.Tok, cond: alt.Cond})
	}
	branches[0].body = b.Scratch()
	g.block(branches[0].body, n.Body)
	for i, alt := range n.Alternatives[:len(branches)-1] {
		branches[i+1].body = b.Scratch()
		g.block(branches[i+1].body, alt.Body)
	}

	tail := b.Scratch()
	if elseBody != nil {
		tail = elseBody
	}
	for i := len(branches) - 1; i >= 0; i-- {
		br := branches[i]
		seg := b.Scratch()
		seg.Emit(bytecode.OpSCF)
		g.cond(seg, br.cond)

		exit := tail.Len() > 0
		skip := br.body.Len()
		if exit {
			skip += bytecode.JumpOffsetLen
		}
		g.jump(seg, bytecode.OpJmpCOff, bytecode.JumpOffsetLen, br.tok)
		g.jump(seg, bytecode.OpJmpOff, skip, br.tok)
		seg.Splice(br.body)
		if exit {
			g.jump(seg, bytecode.OpJmpOff, tail.Len(), br.tok)
		}
		seg.Splice(tail)
		tail = seg
	}

	b.Emit(bytecode.OpPushCV)
	b.Splice(tail)
	b.Emit(bytecode.OpPopCV)
}

// loop compiles the three loop forms. while and for jump forward to the
// condition, which sits after the body and jumps back into it:
//
//	[init] PUSHCV JMPOFF cond; body: <body> [<iter>]; cond: SCF <cond> JMPCOFF body; POPCV
//
// A for loop's start variable is freed once the loop exits.
func (g *Generator) loop(b *bytecode.Buffer, n *Loop) {
	g.scope.Enter()
	defer g.scope.Leave()

	var start *Symbol
	switch {
	case n.StartVar != nil:
		sym := g.local(b, n.StartVar)
		start = &sym
	case n.Init != nil:
		g.effect(b, n.Init)
	}

	cond := n.Cond
	if cond == nil {
		cond = &KeywordLit{Tok: Token{Type: TokenTrue, Text: "true", Line: n.Tok.Line, File: n.Tok.File}}
	}

	if n.Kind == LoopDoWhile {
		b.Emit(bytecode.OpPushCV)
		top := b.Len()
		g.block(b, n.Body)
		b.Emit(bytecode.OpSCF)
		g.cond(b, cond)
		g.jumpBack(b, bytecode.OpJmpCOff, top, n.Tok)
		b.Emit(bytecode.OpPopCV)
		return
	}

	body := b.Scratch()
	g.block(body, n.Body)
	if n.Iter != nil {
		g.effect(body, n.Iter)
	}

	b.Emit(bytecode.OpPushCV)
	g.jump(b, bytecode.OpJmpOff, body.Len(), n.Tok)
	top := b.Len()
	b.Splice(body)
	b.Emit(bytecode.OpSCF)
	g.cond(b, cond)
	g.jumpBack(b, bytecode.OpJmpCOff, top, n.Tok)
	b.Emit(bytecode.OpPopCV)

	if start != nil {
		b.EmitID(bytecode.OpFem, start.ID)
		g.scope.Remove(start.Name)
	}
}
