package compiler

import (
	"bytes"
	"strings"
	"testing"

	"github.com/chazu/baranium/pkg/bytecode"
)

func compileSource(t *testing.T, source string) *Result {
	t.Helper()
	res, err := Compile("test.bar", source, Options{})
	if err != nil {
		t.Fatalf("compile failed:\n%v", err)
	}
	return res
}

func functionCode(t *testing.T, res *Result, name string) bytecode.Function {
	t.Helper()
	sec, ok := res.Script.Section(bytecode.NameID(name))
	if !ok {
		t.Fatalf("no section for %s", name)
	}
	if sec.Kind != bytecode.SectionFunction {
		t.Fatalf("%s is a %s section", name, sec.Kind)
	}
	fn, err := bytecode.DecodeFunctionPayload(sec.Data)
	if err != nil {
		t.Fatal(err)
	}
	return fn
}

func decode(t *testing.T, code []byte) []bytecode.Instruction {
	t.Helper()
	var out []bytecode.Instruction
	for off := 0; off < len(code); {
		in, err := bytecode.DecodeInstruction(code, off)
		if err != nil {
			t.Fatalf("decode: %v\n%s", err, bytecode.Disassemble(code, nil))
		}
		out = append(out, in)
		off += in.Len
	}
	return out
}

func opsOf(t *testing.T, code []byte) []bytecode.Opcode {
	t.Helper()
	var ops []bytecode.Opcode
	for _, in := range decode(t, code) {
		ops = append(ops, in.Op)
	}
	return ops
}

func opNames(ops []bytecode.Opcode) string {
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = op.String()
	}
	return strings.Join(names, " ")
}

func TestCompileAddFunction(t *testing.T) {
	res := compileSource(t, "define add(int a, int b) = int { return a + b; }")
	fn := functionCode(t, res, "add")
	if fn.ParamCount != 2 {
		t.Errorf("ParamCount = %d, want 2", fn.ParamCount)
	}
	if fn.ReturnType != bytecode.TypeInt {
		t.Errorf("ReturnType = %s, want int", fn.ReturnType)
	}
	if last := fn.Code[len(fn.Code)-1]; bytecode.Opcode(last) != bytecode.OpRet {
		t.Errorf("last byte = 0x%02X, want RET", last)
	}

	// b is popped first since the caller pushed it last
	got := opNames(opsOf(t, fn.Code))
	want := "MEM POPVAR MEM POPVAR PUSHVAR PUSHVAR ADD FEM FEM RET"
	if got != want {
		t.Errorf("code = %s\nwant   %s", got, want)
	}
	ins := decode(t, fn.Code)
	if ins[0].Operands[2] != bytecode.NameID("add.b") || ins[2].Operands[2] != bytecode.NameID("add.a") {
		t.Errorf("prologue allocates %d, %d", ins[0].Operands[2], ins[2].Operands[2])
	}
}

func TestCompileGlobals(t *testing.T) {
	res := compileSource(t, `
field int health = 100;
field object owner = null;
float speed = 1.5;
string name = "bob";
bool alive;
`)
	tests := []struct {
		name string
		kind bytecode.SectionKind
		want bytecode.Value
	}{
		{"health", bytecode.SectionField, bytecode.IntValue(100)},
		{"owner", bytecode.SectionField, bytecode.ObjectValue(bytecode.NullObjectID)},
		{"speed", bytecode.SectionVariable, bytecode.FloatValue(1.5)},
		{"name", bytecode.SectionVariable, bytecode.StringValue("bob")},
		{"alive", bytecode.SectionVariable, bytecode.BoolValue(false)},
	}
	for _, tc := range tests {
		sec, ok := res.Script.Section(bytecode.NameID(tc.name))
		if !ok {
			t.Errorf("no section for %s", tc.name)
			continue
		}
		if sec.Kind != tc.kind {
			t.Errorf("%s kind = %s, want %s", tc.name, sec.Kind, tc.kind)
		}
		v, err := bytecode.DecodeVariablePayload(sec.Data)
		if err != nil {
			t.Errorf("%s: %v", tc.name, err)
			continue
		}
		if v.Type != tc.want.Type || !bytes.Equal(v.Data, tc.want.Data) {
			t.Errorf("%s = %s %v, want %s %v", tc.name, v.Type, v.Data, tc.want.Type, tc.want.Data)
		}
	}
}

func TestCompileLocalInitializers(t *testing.T) {
	res := compileSource(t, `
define f(object o) {
	int n = 5;
	object a = null;
	object b = attached;
	object c = o;
	int m = n * 2;
}`)
	ins := decode(t, functionCode(t, res, "f").Code)

	var set, sentinel int
	for i, in := range ins {
		switch in.Op {
		case bytecode.OpSet:
			set++
			if !bytes.Equal(in.Data, bytecode.IntValue(5).Data) {
				t.Errorf("SET data = %v", in.Data)
			}
		case bytecode.OpPushVar:
			if id := in.Operands[0]; id == bytecode.NullObjectID || id == bytecode.AttachedObjectID {
				sentinel++
				if ins[i+1].Op != bytecode.OpPopVar {
					t.Errorf("sentinel push not followed by POPVAR")
				}
			}
		}
	}
	if set != 1 {
		t.Errorf("got %d SET instructions, want 1", set)
	}
	if sentinel != 2 {
		t.Errorf("got %d sentinel pushes, want 2", sentinel)
	}
}

func TestCompileStatementCallsDiscardResult(t *testing.T) {
	res := compileSource(t, `
define g() = int { return 1; }
define f() { g(); }`)
	got := opNames(opsOf(t, functionCode(t, res, "f").Code))
	want := "CALL POP PUSH PUSH PUSH RET"
	if got != want {
		t.Errorf("code = %s\nwant   %s", got, want)
	}
}

func TestCompileLiteralReturnUsesThrowawayVariable(t *testing.T) {
	res := compileSource(t, "define g() = int { return 7; }")
	ins := decode(t, functionCode(t, res, "g").Code)
	got := opNames(opsOf(t, functionCode(t, res, "g").Code))
	if want := "MEM SET PUSHVAR FEM RET"; got != want {
		t.Fatalf("code = %s, want %s", got, want)
	}
	tmp := ins[0].Operands[2]
	if ins[1].Operands[0] != tmp || ins[2].Operands[0] != tmp || ins[3].Operands[0] != tmp {
		t.Errorf("throwaway variable ids differ")
	}
}

func TestCompileIfElseShape(t *testing.T) {
	res := compileSource(t, `
define f(int x) {
	int r;
	if (x == 1) { r = 10; }
	else if (x == 2) { r = 20; }
	else { r = 30; }
}`)
	ins := decode(t, functionCode(t, res, "f").Code)

	// locate the chain
	start := -1
	for i, in := range ins {
		if in.Op == bytecode.OpPushCV {
			start = i
			break
		}
	}
	if start < 0 {
		t.Fatal("no PUSHCV")
	}
	chain := ins[start:]
	if chain[1].Op != bytecode.OpSCF {
		t.Fatalf("chain starts %s %s", chain[0].Op, chain[1].Op)
	}

	var popcv int
	for _, in := range chain {
		if in.Op == bytecode.OpPopCV {
			popcv = in.Offset
			break
		}
	}
	// every JMPCOFF skips exactly the following JMPOFF, and every jump lands
	// inside the chain
	for i, in := range chain {
		switch in.Op {
		case bytecode.OpJmpCOff:
			if in.Operands[0] != bytecode.JumpOffsetLen || chain[i+1].Op != bytecode.OpJmpOff {
				t.Errorf("JMPCOFF at %04X = %+d", in.Offset, in.Operands[0])
			}
		case bytecode.OpJmpOff:
			if in.Target() > popcv || in.Target() <= in.Offset {
				t.Errorf("JMPOFF at %04X targets %04X, chain ends at %04X", in.Offset, in.Target(), popcv)
			}
		}
	}
}

func TestCompileForLoopFreesStartVariable(t *testing.T) {
	res := compileSource(t, `
define f() {
	int total = 0;
	for (int i = 0; i < 3; i++) { total += i; }
	total = 1;
}`)
	ins := decode(t, functionCode(t, res, "f").Code)
	iID := bytecode.NameID("f.i")

	var popcv, fem = -1, -1
	for idx, in := range ins {
		if in.Op == bytecode.OpPopCV {
			popcv = idx
		}
		if in.Op == bytecode.OpFem && in.Operands[0] == iID && fem < 0 {
			fem = idx
		}
	}
	if popcv < 0 || fem != popcv+1 {
		t.Errorf("FEM of i at %d, POPCV at %d", fem, popcv)
	}

	// the back edge jumps to the start of the body
	for _, in := range ins {
		if in.Op == bytecode.OpJmpCOff && in.Operands[0] >= 0 {
			t.Errorf("loop condition jumps forward: %+d", in.Operands[0])
		}
	}
}

func TestCompileForLoopVariableOutOfScope(t *testing.T) {
	_, err := Compile("t.bar", `
define f() {
	for (int i = 0; i < 3; i++) { }
	i = 4;
}`, Options{})
	if err == nil || !strings.Contains(err.Error(), "undefined variable i") {
		t.Errorf("err = %v", err)
	}
}

// && binds tighter than <, so an unparenthesized chain groups as
// (a < (b && b)) < 3.
func TestConditionWithoutParentheses(t *testing.T) {
	expr, err := NewParserContext().ParseExpression(Tokenize("a < b && b < 3"))
	if err != nil {
		t.Fatal(err)
	}
	outer, ok := expr.(*BinaryExpr)
	if !ok || !outer.Op.Is(TokenLess) {
		t.Fatalf("top = %#v, want <", expr)
	}
	if n, ok := outer.Right.(*NumberLit); !ok || n.Tok.Text != "3" {
		t.Errorf("right of outer < = %#v, want 3", outer.Right)
	}
	inner, ok := outer.Left.(*BinaryExpr)
	if !ok || !inner.Op.Is(TokenLess) {
		t.Fatalf("left of outer < = %#v, want <", outer.Left)
	}
	if and, ok := inner.Right.(*BinaryExpr); !ok || !and.Op.Is(TokenAndAnd) {
		t.Errorf("right of inner < = %#v, want &&", inner.Right)
	}
}

func TestCompileConditions(t *testing.T) {
	tests := []struct {
		cond string
		want string
	}{
		{"a < b", "PUSHVAR PUSHVAR CMP"},
		{"a", "PUSHVAR PUSH PUSH PUSH CMP"},
		{"!a", "PUSHVAR PUSH PUSH PUSH CMP"},
		{"(a < b) && (b < 3)", "PUSHVAR PUSHVAR CMP PUSHCV PUSHVAR PUSH PUSH PUSH CMP CMPC"},
	}
	for _, tc := range tests {
		ctx := NewContext(false)
		g := NewGenerator(ctx)
		g.globals["a"] = Symbol{Name: "a", ID: 1, Type: bytecode.TypeInt}
		g.globals["b"] = Symbol{Name: "b", ID: 2, Type: bytecode.TypeInt}
		expr, err := NewParserContext().ParseExpression(Tokenize(tc.cond))
		if err != nil {
			t.Fatal(err)
		}
		b := bytecode.NewBuffer()
		g.cond(b, expr)
		if ctx.Failed() {
			t.Fatalf("%s: %v", tc.cond, ctx.Err())
		}
		if got := opNames(opsOf(t, b.Bytes())); got != tc.want {
			t.Errorf("cond(%s) = %s, want %s", tc.cond, got, tc.want)
		}
	}
}

func TestCompileIsDeterministic(t *testing.T) {
	source := `
field int hp = 3;
define helper(int x) = int { return x * 2; }
define main() {
	int i = 0;
	while (i < 10) {
		if (i % 2 == 0) { hp += helper(i); } else { hp--; }
		i++;
	}
	do { i--; } while (i > 0);
}`
	a := compileSource(t, source)
	b := compileSource(t, source)
	ea, err := a.Script.Encode()
	if err != nil {
		t.Fatal(err)
	}
	eb, err := b.Script.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(ea, eb) {
		t.Error("two compilations of the same source differ")
	}
}

func TestCompileDiagnostics(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"define f() { x = 1; }", "undefined variable x"},
		{`int x = "a";`, "type mismatch"},
		{"define f() { int x = 1.5; }", "type mismatch"},
		{"define f() { uint u = -1; }", "negative"},
		{"define f() { int x = 3000000000; }", "overflows int"},
		{"int a; int a;", "redeclared"},
		{"define f() { } define f() { }", "redefined"},
		{"define f(int a); define f(float a) { }", "conflicting declarations"},
		{"define f() { int a; int a; }", "redeclared in this block"},
		{"define f() { return 1; }", "does not return a value"},
		{"define f() = int { return; }", "must return a int"},
		{"define g(int a) { } define f() { g(1, 2); }", "takes 1 arguments"},
		{`define g(int a) { } define f() { g("s"); }`, "argument 1 of g"},
		{"int v; define f() { v(); }", "is a variable, not a function"},
		{"define g() { } define f() { int x = g; }", "is a function, not a variable"},
		{"define f() { attach(); }", "exactly one argument"},
		{"define f() { int a; a[1]; }", "indexing is not supported"},
		{"int x; int y = x;", "must be a literal"},
		{"define f() { int n = null; }", "type mismatch"},
	}

	for _, tc := range tests {
		_, err := Compile("t.bar", tc.source, Options{})
		if err == nil {
			t.Errorf("%q: expected an error", tc.source)
			continue
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%q: error = %q, want it to contain %q", tc.source, err, tc.want)
		}
	}
}

func TestCompileReportsAllDiagnostics(t *testing.T) {
	res, err := Compile("t.bar", "define f() { a = 1; b = 2; c = 3; }", Options{})
	if err == nil {
		t.Fatal("expected an error")
	}
	if len(res.Diagnostics) != 3 {
		t.Errorf("got %d diagnostics, want 3", len(res.Diagnostics))
	}
	if res.Script != nil {
		t.Error("failed compilation produced a script")
	}
	if res.Diagnostics[0].File != "t.bar" || res.Diagnostics[0].Line != 1 {
		t.Errorf("diagnostic position = %s:%d", res.Diagnostics[0].File, res.Diagnostics[0].Line)
	}
}

func TestCompileStrictStopsEarly(t *testing.T) {
	res, err := Compile("t.bar", "define f() { a = 1; b = 2; }", Options{Strict: true})
	if err == nil {
		t.Fatal("expected an error")
	}
	if len(res.Diagnostics) != 1 {
		t.Errorf("got %d diagnostics, want 1", len(res.Diagnostics))
	}
}

func TestCompileLibraryExports(t *testing.T) {
	res, err := Compile("lib.bar", `
field int level = 1;
define helper();
define twice(int x) = int { return x * 2; }
`, Options{Library: true})
	if err != nil {
		t.Fatal(err)
	}
	lib := res.Script.Library
	if lib == nil {
		t.Fatal("no export table")
	}
	if len(lib.Exports) != 2 {
		t.Fatalf("exports = %+v", lib.Exports)
	}
	e, ok := lib.Lookup("twice")
	if !ok || e.Kind != bytecode.SectionFunction || e.ID != bytecode.NameID("twice") {
		t.Errorf("twice export = %+v", e)
	}
}

func TestCompileForwardReferences(t *testing.T) {
	res := compileSource(t, `
define main() = int { return later(count); }
define later(int n) = int { return n + 1; }
int count = 4;
`)
	ins := decode(t, functionCode(t, res, "main").Code)
	var called bool
	for _, in := range ins {
		if in.Op == bytecode.OpCall && in.Operands[0] == bytecode.NameID("later") {
			called = true
		}
	}
	if !called {
		t.Error("no CALL to later")
	}
	if res.Names[bytecode.NameID("later")] != "later" {
		t.Error("names map misses later")
	}
}

func TestSymbolTableShadowing(t *testing.T) {
	s := NewSymbolTable("f")
	outer, _ := s.Declare("x", bytecode.TypeInt)
	s.Enter()
	inner, ok := s.Declare("x", bytecode.TypeInt)
	if !ok {
		t.Fatal("shadowing declaration rejected")
	}
	if inner.Local != "f.x$2" || inner.ID == outer.ID {
		t.Errorf("inner x = %s (%d), outer %s (%d)", inner.Local, inner.ID, outer.Local, outer.ID)
	}
	if _, ok := s.Declare("x", bytecode.TypeInt); ok {
		t.Error("redeclaration in the same block accepted")
	}
	if sym, _ := s.Lookup("x"); sym.ID != inner.ID {
		t.Errorf("Lookup(x) = %s, want the inner x", sym.Local)
	}

	dropped := s.Leave()
	if len(dropped) != 1 || dropped[0].ID != inner.ID {
		t.Errorf("Leave dropped %v", dropped)
	}
	if sym, _ := s.Lookup("x"); sym.ID != outer.ID {
		t.Errorf("Lookup(x) after Leave = %s, want f.x", sym.Local)
	}

	// a sibling block reuses the qualified name of the freed one
	s.Enter()
	again, _ := s.Declare("x", bytecode.TypeInt)
	if again.ID != inner.ID {
		t.Errorf("sibling x = %s, want f.x$2", again.Local)
	}
}

func TestCompileBlockFreesLocals(t *testing.T) {
	res := compileSource(t, `
define f() = int {
	int x = 5;
	if (x > 0) { int x = 1; int y = 2; }
	return x;
}`)
	ins := decode(t, functionCode(t, res, "f").Code)
	outer := bytecode.NameID("f.x")
	inner := bytecode.NameID("f.x$2")
	y := bytecode.NameID("f.y")

	var freed []int64
	var popcv = -1
	for idx, in := range ins {
		switch in.Op {
		case bytecode.OpMem:
			if idx > 0 && in.Operands[2] == outer {
				t.Errorf("outer x allocated again at %04X", in.Offset)
			}
		case bytecode.OpFem:
			if popcv < 0 {
				freed = append(freed, in.Operands[0])
			}
		case bytecode.OpPopCV:
			popcv = idx
		}
	}
	if len(freed) != 2 || freed[0] != y || freed[1] != inner {
		t.Errorf("body frees %v, want [f.y f.x$2]", freed)
	}
	if res.Names[inner] != "f.x$2" {
		t.Errorf("name of inner x = %q", res.Names[inner])
	}
}
