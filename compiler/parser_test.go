package compiler

import (
	"strings"
	"testing"

	"github.com/chazu/baranium/pkg/bytecode"
)

func parseSource(t *testing.T, source string) ([]Stmt, *Context) {
	t.Helper()
	ctx := NewContext(false)
	p := NewParser(ctx, NewParserContext(), Tokenize(source))
	return p.ParseProgram(), ctx
}

func mustParse(t *testing.T, source string) []Stmt {
	t.Helper()
	stmts, ctx := parseSource(t, source)
	if ctx.Failed() {
		t.Fatalf("parse errors:\n%v", ctx.Err())
	}
	return stmts
}

func TestParseTopLevelDeclarations(t *testing.T) {
	stmts := mustParse(t, `
field int health = 100;
string greeting = "hi";
object target;
define tick();
define add(int a, int b) = int { return a + b; }
`)
	if len(stmts) != 5 {
		t.Fatalf("got %d statements, want 5", len(stmts))
	}

	field, ok := stmts[0].(*FieldDecl)
	if !ok {
		t.Fatalf("stmts[0] is %T, want *FieldDecl", stmts[0])
	}
	if field.Name() != "health" || field.Type != bytecode.TypeInt || sexpr(field.Init) != "100" {
		t.Errorf("field = %s %s = %s", field.Type, field.Name(), sexpr(field.Init))
	}
	if field.ID() != bytecode.NameID("health") {
		t.Errorf("field id = %d, want NameID(health)", field.ID())
	}

	v := stmts[1].(*VarDecl)
	if v.Type != bytecode.TypeString || sexpr(v.Init) != `"hi"` {
		t.Errorf("variable = %s = %s", v.Type, sexpr(v.Init))
	}
	if obj := stmts[2].(*VarDecl); obj.Init != nil || obj.Type != bytecode.TypeObject {
		t.Errorf("object decl = %+v", obj)
	}

	fwd := stmts[3].(*FuncDecl)
	if fwd.HasBody || fwd.ReturnType != bytecode.TypeVoid || len(fwd.Params) != 0 {
		t.Errorf("forward decl = %+v", fwd)
	}

	add := stmts[4].(*FuncDecl)
	if !add.HasBody || add.ReturnType != bytecode.TypeInt {
		t.Errorf("add: body=%v returns %s", add.HasBody, add.ReturnType)
	}
	if len(add.Params) != 2 || add.Params[0].Name != "a" || add.Params[1].Type != bytecode.TypeInt {
		t.Errorf("add params = %+v", add.Params)
	}
	if len(add.Body) != 1 {
		t.Fatalf("add body has %d statements", len(add.Body))
	}
	ret := add.Body[0].(*ExprStmt)
	if ret.Kind != ExprReturn || sexpr(ret.Expr) != "(+ a b)" {
		t.Errorf("return = %v %s", ret.Kind, sexpr(ret.Expr))
	}
}

func TestParseLocalIDsAreQualified(t *testing.T) {
	stmts := mustParse(t, "define f() { int x = 1; }")
	x := stmts[0].(*FuncDecl).Body[0].(*VarDecl)
	if x.ID() != bytecode.NameID("f.x") {
		t.Errorf("local id = %d, want NameID(f.x)", x.ID())
	}
	if x.Name() != "x" {
		t.Errorf("local name = %q", x.Name())
	}
}

func TestParseExpressionStatementKinds(t *testing.T) {
	stmts := mustParse(t, `
define f() {
	x = 1;
	x++;
	g(1);
	attach(h);
	a < b;
	a + b;
	return;
}`)
	want := []ExprKind{ExprAssignment, ExprAssignment, ExprFunctionCall, ExprKeyword, ExprCondition, ExprArithmetic, ExprReturn}
	body := stmts[0].(*FuncDecl).Body
	if len(body) != len(want) {
		t.Fatalf("got %d statements, want %d", len(body), len(want))
	}
	for i, k := range want {
		s := body[i].(*ExprStmt)
		if s.Kind != k {
			t.Errorf("statement %d kind = %v, want %v", i, s.Kind, k)
		}
	}
	if body[6].(*ExprStmt).Expr != nil {
		t.Errorf("bare return has an expression")
	}
}

func TestParseIfElseChain(t *testing.T) {
	stmts := mustParse(t, `
define f(int x) {
	if (x == 1) { a = 1; }
	else if (x == 2) a = 2;
	else if (x == 3) { a = 3; b = 3; }
	else { a = 0; }
}`)
	n, ok := stmts[0].(*FuncDecl).Body[0].(*IfElse)
	if !ok {
		t.Fatalf("body[0] is %T", stmts[0].(*FuncDecl).Body[0])
	}
	if sexpr(n.Cond) != "(== x 1)" || len(n.Body) != 1 {
		t.Errorf("if = %s with %d statements", sexpr(n.Cond), len(n.Body))
	}
	if len(n.Alternatives) != 3 {
		t.Fatalf("got %d alternatives, want 3", len(n.Alternatives))
	}
	conds := []string{"(== x 2)", "(== x 3)", ""}
	sizes := []int{1, 2, 1}
	for i, alt := range n.Alternatives {
		got := ""
		if alt.Cond != nil {
			got = sexpr(alt.Cond)
		}
		if got != conds[i] {
			t.Errorf("alternative %d cond = %q, want %q", i, got, conds[i])
		}
		if len(alt.Body) != sizes[i] {
			t.Errorf("alternative %d has %d statements, want %d", i, len(alt.Body), sizes[i])
		}
	}
}

func TestParseNestedIfWithoutBraces(t *testing.T) {
	stmts := mustParse(t, `
define f() {
	if (a) if (b) x = 1; else x = 2;
	y = 3;
}`)
	body := stmts[0].(*FuncDecl).Body
	if len(body) != 2 {
		t.Fatalf("got %d statements, want 2", len(body))
	}
	outer := body[0].(*IfElse)
	if len(outer.Alternatives) != 0 {
		t.Errorf("else bound to the outer if")
	}
	inner := outer.Body[0].(*IfElse)
	if len(inner.Alternatives) != 1 {
		t.Errorf("inner if has %d alternatives, want 1", len(inner.Alternatives))
	}
}

func TestParseLoops(t *testing.T) {
	stmts := mustParse(t, `
define f() {
	while (i < 10) { i++; }
	do { i--; } while (i > 0);
	for (int j = 0; j < 3; j++) { x += j; }
	for (i = 0; ; ) { }
	for (;;) { }
}`)
	body := stmts[0].(*FuncDecl).Body
	if len(body) != 5 {
		t.Fatalf("got %d statements, want 5", len(body))
	}

	w := body[0].(*Loop)
	if w.Kind != LoopWhile || sexpr(w.Cond) != "(< i 10)" || len(w.Body) != 1 {
		t.Errorf("while = %v %s", w.Kind, sexpr(w.Cond))
	}

	d := body[1].(*Loop)
	if d.Kind != LoopDoWhile || sexpr(d.Cond) != "(> i 0)" {
		t.Errorf("do = %v %s", d.Kind, sexpr(d.Cond))
	}

	f := body[2].(*Loop)
	if f.Kind != LoopFor || f.StartVar == nil || f.StartVar.Name() != "j" {
		t.Fatalf("for start var = %+v", f.StartVar)
	}
	if sexpr(f.StartVar.Init) != "0" || sexpr(f.Cond) != "(< j 3)" || sexpr(f.Iter) != "(post++ j)" {
		t.Errorf("for header = %s; %s; %s", sexpr(f.StartVar.Init), sexpr(f.Cond), sexpr(f.Iter))
	}
	if f.StartVar.ID() != bytecode.NameID("f.j") {
		t.Errorf("start var id is not function-qualified")
	}

	g := body[3].(*Loop)
	if g.StartVar != nil || sexpr(g.Init) != "(= i 0)" || g.Cond != nil || g.Iter != nil {
		t.Errorf("for with init expression = %+v", g)
	}

	h := body[4].(*Loop)
	if h.Init != nil || h.Cond != nil || h.Iter != nil {
		t.Errorf("empty for header = %+v", h)
	}
}

func TestParseNestedBlocksAreInlined(t *testing.T) {
	stmts := mustParse(t, "define f() { { int a; { int b; } } int c; }")
	if n := len(stmts[0].(*FuncDecl).Body); n != 3 {
		t.Errorf("got %d statements, want 3", n)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"if (a) { }", "outside of a function"},
		{"while (a) { }", "outside of a function"},
		{"x = 1;", "unexpected"},
		{"int x = 1", "missing ;"},
		{"void v;", "type void"},
		{"define f() { define g(); }", "not allowed inside a function"},
		{"define f() { else x = 1; }", "else without if"},
		{"define f(int) { }", "malformed parameter list"},
		{"define f() { for (i = 0; i < 3) { } }", "exactly two ';'"},
		{"define f() { if a { } }", "expected ("},
		{"define f() { x = ; }", "unexpected end"},
		{"define f() { int x = }", "missing ;"},
		{"define f() = int", "expected {"},
		{"define f(void v) { }", "cannot have type void"},
		{"define f() { do { } (a); }", "expected while"},
	}

	for _, tc := range tests {
		_, ctx := parseSource(t, tc.source)
		if !ctx.Failed() {
			t.Errorf("%q: expected an error", tc.source)
			continue
		}
		if !strings.Contains(ctx.Err().Error(), tc.want) {
			t.Errorf("%q: error = %q, want it to contain %q", tc.source, ctx.Err(), tc.want)
		}
	}
}

func TestParseUnterminatedString(t *testing.T) {
	tests := []struct {
		name   string
		source string
		line   int
	}{
		{"top level", `int a = "x; }`, 1},
		{"swallows body closer", `define f() { int a = "x; }`, 1},
		{"swallows paren", `define f() { print("hi); }`, 1},
		{"own line", "define f() {\n\tstring s = \"abc;\n}", 2},
		{"condition", "define f() {\n\tif (s == \"a) { }\n}", 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, ctx := parseSource(t, tc.source)
			ds := ctx.Diagnostics()
			if len(ds) != 1 {
				t.Fatalf("got %d diagnostics, want 1:\n%v", len(ds), ctx.Err())
			}
			if ds[0].Message != "missing closing quote" || ds[0].Line != tc.line {
				t.Errorf("diagnostic = %v, want missing closing quote on line %d", ds[0], tc.line)
			}
		})
	}
}

func TestUnclosedQuote(t *testing.T) {
	tests := []struct {
		source string
		want   bool
	}{
		{`a = "x";`, false},
		{`a = "";`, false},
		{`a = "x" + "y";`, false},
		{`a = "x;`, true},
		{`a = ";`, true},
	}
	for _, tc := range tests {
		if _, got := unclosedQuote(Tokenize(tc.source)); got != tc.want {
			t.Errorf("unclosedQuote(%s) = %v, want %v", tc.source, got, tc.want)
		}
	}
}

func TestParseContinuesAfterErrors(t *testing.T) {
	stmts, ctx := parseSource(t, `
int a = ;
int b = 2;
define f() { x = ); y = 1; }
`)
	if n := len(ctx.Diagnostics()); n != 2 {
		t.Errorf("got %d diagnostics, want 2:\n%v", n, ctx.Err())
	}
	if len(stmts) != 2 {
		t.Fatalf("got %d statements, want 2", len(stmts))
	}
	if f := stmts[1].(*FuncDecl); len(f.Body) != 1 {
		t.Errorf("f kept %d statements, want 1", len(f.Body))
	}
}

func TestParseStrictStopsAtFirstError(t *testing.T) {
	ctx := NewContext(true)
	p := NewParser(ctx, NewParserContext(), Tokenize("int a = ; int b = ;"))
	func() {
		defer func() {
			if r := recover(); r != errStrict {
				t.Errorf("recovered %v, want errStrict", r)
			}
		}()
		p.ParseProgram()
	}()
	if n := len(ctx.Diagnostics()); n != 1 {
		t.Errorf("got %d diagnostics, want 1", n)
	}
}

func TestScanSegmentTracksDepth(t *testing.T) {
	tokens := Tokenize("a (b (c)) d) e")
	inner, n, ok := scanSegment(tokens, TokenLParen, TokenRParen)
	if !ok {
		t.Fatal("closer not found")
	}
	if len(inner) != 8 || n != 9 {
		t.Errorf("got %d inner tokens, consumed %d", len(inner), n)
	}

	_, _, ok = scanSegment(Tokenize("a (b"), TokenLParen, TokenRParen)
	if ok {
		t.Error("unbalanced input reported as closed")
	}
}
