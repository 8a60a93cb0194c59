package compiler

import (
	"fmt"
	"strings"

	"github.com/chazu/baranium/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// AST: expression trees and statement nodes
// ---------------------------------------------------------------------------

// Node is the interface implemented by all AST nodes.
type Node interface {
	Pos() Token // token the node starts at, for diagnostics
	node()      // marker method
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes. The set of implementations
// is closed; code that switches over it ends in a default case that
// reports an internal error.
type Expr interface {
	Node
	expr() // marker method
}

// Ident is a variable or function name.
type Ident struct {
	Tok Token
}

func (n *Ident) Pos() Token { return n.Tok }
func (n *Ident) node()      {}
func (n *Ident) expr()      {}

// Name returns the identifier text.
func (n *Ident) Name() string { return n.Tok.Text }

// NumberLit is a numeric literal.
type NumberLit struct {
	Tok Token
}

func (n *NumberLit) Pos() Token { return n.Tok }
func (n *NumberLit) node()      {}
func (n *NumberLit) expr()      {}

// StringLit is a double-quoted string literal.
type StringLit struct {
	Tok   Token // opening quote
	Value string
}

func (n *StringLit) Pos() Token { return n.Tok }
func (n *StringLit) node()      {}
func (n *StringLit) expr()      {}

// KeywordLit is true, false, null, attached, or the callee keyword of a
// keyword expression (instantiate, delete, attach, detach).
type KeywordLit struct {
	Tok Token
}

func (n *KeywordLit) Pos() Token { return n.Tok }
func (n *KeywordLit) node()      {}
func (n *KeywordLit) expr()      {}

// UnaryExpr is a prefix + - ~ ! applied to an operand.
type UnaryExpr struct {
	Op      Token
	Operand Expr
}

func (n *UnaryExpr) Pos() Token { return n.Op }
func (n *UnaryExpr) node()      {}
func (n *UnaryExpr) expr()      {}

// IncDecExpr is ++x, --x, x++ or x--.
type IncDecExpr struct {
	Op      Token
	Target  *Ident
	Postfix bool
}

func (n *IncDecExpr) Pos() Token { return n.Op }
func (n *IncDecExpr) node()      {}
func (n *IncDecExpr) expr()      {}

// BinaryExpr is an arithmetic, bitwise, comparison or combined comparison.
type BinaryExpr struct {
	Op    Token
	Left  Expr
	Right Expr
}

func (n *BinaryExpr) Pos() Token { return n.Left.Pos() }
func (n *BinaryExpr) node()      {}
func (n *BinaryExpr) expr()      {}

// AssignExpr is = or a compound assignment such as +=.
type AssignExpr struct {
	Op     Token
	Target *Ident
	Value  Expr
}

func (n *AssignExpr) Pos() Token { return n.Target.Tok }
func (n *AssignExpr) node()      {}
func (n *AssignExpr) expr()      {}

// CallExpr is a function call or keyword expression.
type CallExpr struct {
	Callee Expr
	Args   []Expr
}

func (n *CallExpr) Pos() Token { return n.Callee.Pos() }
func (n *CallExpr) node()      {}
func (n *CallExpr) expr()      {}

// IndexExpr is target[subscript].
type IndexExpr struct {
	Target    Expr
	Subscript Expr
}

func (n *IndexExpr) Pos() Token { return n.Target.Pos() }
func (n *IndexExpr) node()      {}
func (n *IndexExpr) expr()      {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	ID() int64
	Name() string
	stmt() // marker method
}

// stmtBase carries the id and name every statement has.
type stmtBase struct {
	id   int64
	name string
}

func (b *stmtBase) ID() int64    { return b.id }
func (b *stmtBase) Name() string { return b.name }
func (b *stmtBase) stmt()        {}
func (b *stmtBase) node()        {}

func newBase(name string) stmtBase {
	return stmtBase{id: bytecode.NameID(name), name: name}
}

// FieldDecl is a top-level `field <type> name [= literal];`.
type FieldDecl struct {
	stmtBase
	Tok  Token
	Type bytecode.VarType
	Init Expr
}

func (n *FieldDecl) Pos() Token { return n.Tok }

// VarDecl is `<type> name [= init];`, at top level or inside a body.
type VarDecl struct {
	stmtBase
	Tok  Token
	Type bytecode.VarType
	Init Expr
}

func (n *VarDecl) Pos() Token { return n.Tok }

// Param is one typed function parameter.
type Param struct {
	Tok  Token
	Type bytecode.VarType
	Name string
}

// FuncDecl is `define name(params) [= type] { body }` or a forward
// declaration ending in ';'.
type FuncDecl struct {
	stmtBase
	Tok        Token
	Params     []Param
	ReturnType bytecode.VarType
	Body       []Stmt
	HasBody    bool
}

func (n *FuncDecl) Pos() Token { return n.Tok }

// Signature renders the declaration header, e.g. `define add(int a, int b) = int`.
func (n *FuncDecl) Signature() string {
	params := make([]string, len(n.Params))
	for i, p := range n.Params {
		params[i] = p.Type.String() + " " + p.Name
	}
	return fmt.Sprintf("define %s(%s) = %s", n.Name(), strings.Join(params, ", "), n.ReturnType)
}

// ExprKind classifies an expression statement for code generation.
type ExprKind int

const (
	ExprArithmetic ExprKind = iota
	ExprCondition
	ExprAssignment
	ExprFunctionCall
	ExprReturn
	ExprKeyword
)

var exprKindNames = [...]string{"arithmetic", "condition", "assignment", "call", "return", "keyword"}

func (k ExprKind) String() string { return exprKindNames[k] }

// ExprStmt is an expression evaluated for its effect, or a return.
type ExprStmt struct {
	stmtBase
	Tok  Token
	Kind ExprKind
	Expr Expr // nil for a bare `return;`
}

func (n *ExprStmt) Pos() Token { return n.Tok }

// IfElse is an if statement. Alternatives hold the chained else-if/else
// branches in source order; an alternative with a nil Cond is the final
// else.
type IfElse struct {
	stmtBase
	Tok          Token
	Cond         Expr
	Body         []Stmt
	Alternatives []*IfElse
}

func (n *IfElse) Pos() Token { return n.Tok }

// LoopKind distinguishes the three loop forms.
type LoopKind int

const (
	LoopDoWhile LoopKind = iota
	LoopWhile
	LoopFor
)

func (k LoopKind) String() string {
	switch k {
	case LoopDoWhile:
		return "do"
	case LoopWhile:
		return "while"
	}
	return "for"
}

// Loop is a do/while, while or for loop. For a for loop, Init is the
// optional initializer expression and StartVar the optional declared
// start variable, which is freed when the loop exits.
type Loop struct {
	stmtBase
	Tok      Token
	Kind     LoopKind
	Cond     Expr // nil means always true
	Iter     Expr
	Init     Expr
	StartVar *VarDecl
	Body     []Stmt
}

func (n *Loop) Pos() Token { return n.Tok }
