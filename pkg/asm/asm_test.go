package asm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chazu/baranium/compiler"
	"github.com/chazu/baranium/pkg/bytecode"
)

func TestAssembleFunction(t *testing.T) {
	src := `
; adds its two parameters
.func add 2 int
    MEM 4 int add.b
    POPVAR add.b
    MEM 4 int add.a
    POPVAR add.a
    PUSHVAR add.a
    PUSHVAR add.b
    ADD
    RET
`
	res, err := Assemble("add.basm", src)
	require.NoError(t, err)
	require.Len(t, res.Script.Sections, 1)

	sec := res.Script.Sections[0]
	require.Equal(t, bytecode.SectionFunction, sec.Kind)
	require.Equal(t, bytecode.NameID("add"), sec.ID)
	require.Equal(t, "add.a", res.Names[bytecode.NameID("add.a")])

	fn, err := bytecode.DecodeFunctionPayload(sec.Data)
	require.NoError(t, err)
	require.Equal(t, uint8(2), fn.ParamCount)
	require.Equal(t, bytecode.TypeInt, fn.ReturnType)

	b := bytecode.NewBuffer()
	b.EmitMem(4, bytecode.TypeInt, bytecode.NameID("add.b"))
	b.EmitID(bytecode.OpPopVar, bytecode.NameID("add.b"))
	b.EmitMem(4, bytecode.TypeInt, bytecode.NameID("add.a"))
	b.EmitID(bytecode.OpPopVar, bytecode.NameID("add.a"))
	b.EmitID(bytecode.OpPushVar, bytecode.NameID("add.a"))
	b.EmitID(bytecode.OpPushVar, bytecode.NameID("add.b"))
	b.Emit(bytecode.OpAdd)
	b.Emit(bytecode.OpRet)
	require.Equal(t, b.Bytes(), fn.Code)
}

func TestAssembleLabels(t *testing.T) {
	src := `.func loop 0 void
top:
    SCF
    JMPCOFF done
    JMPOFF top
done: RET
`
	res, err := Assemble("loop.basm", src)
	require.NoError(t, err)
	fn, err := bytecode.DecodeFunctionPayload(res.Script.Sections[0].Data)
	require.NoError(t, err)

	// SCF(1) JMPCOFF(3) JMPOFF(3) RET(1)
	in, err := bytecode.DecodeInstruction(fn.Code, 1)
	require.NoError(t, err)
	require.Equal(t, bytecode.OpJmpCOff, in.Op)
	require.Equal(t, 7, in.Target())

	in, err = bytecode.DecodeInstruction(fn.Code, 4)
	require.NoError(t, err)
	require.Equal(t, int64(-7), in.Operands[0])
	require.Equal(t, 0, in.Target())
}

func TestAssembleGlobals(t *testing.T) {
	src := `
.field speed float 1.5
.var name string "a \"b\""
.var ready bool true
.var target object null
.var count uint 0xFFFFFFFF
.var blank int
`
	res, err := Assemble("globals.basm", src)
	require.NoError(t, err)
	require.Len(t, res.Script.Sections, 6)

	want := []struct {
		kind  bytecode.SectionKind
		value bytecode.Value
	}{
		{bytecode.SectionField, bytecode.FloatValue(1.5)},
		{bytecode.SectionVariable, bytecode.StringValue(`a "b"`)},
		{bytecode.SectionVariable, bytecode.BoolValue(true)},
		{bytecode.SectionVariable, bytecode.ObjectValue(bytecode.NullObjectID)},
		{bytecode.SectionVariable, bytecode.UintValue(0xFFFFFFFF)},
		{bytecode.SectionVariable, bytecode.IntValue(0)},
	}
	for i, w := range want {
		sec := res.Script.Sections[i]
		require.Equal(t, w.kind, sec.Kind, "section %d", i)
		v, err := bytecode.DecodeVariablePayload(sec.Data)
		require.NoError(t, err)
		require.Equal(t, w.value, v, "section %d", i)
	}
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown mnemonic", ".func f 0 void\n    FROB\n", "unknown mnemonic FROB"},
		{"operand count", ".func f 0 void\n    PUSHVAR\n", "PUSHVAR takes 1 operands, got 0"},
		{"undefined label", ".func f 0 void\n    JMPOFF nowhere\n", "undefined label nowhere"},
		{"duplicate label", ".func f 0 void\na:\na:\n    RET\n", "label a defined twice"},
		{"bad type", ".var x thing 1\n", "invalid type thing"},
		{"set size", ".func f 0 void\n    SET x 4 [1 2]\n", "declares 4 bytes, lists 2"},
		{"compare method", ".func f 0 void\n    CMP ALMOST\n", "unknown compare method ALMOST"},
		{"string for int", `.var x int "1"` + "\n", "string literal for int"},
		{"syntax", ".func f void\n", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Assemble("bad.basm", tc.src)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestFormatRoundTrip(t *testing.T) {
	source := `
field int speed = 4;
float scale = 0.5;
string title = "hello";
object target = null;

define clamp(int v, int lo, int hi) = int {
	if (v < lo) { return lo; }
	else if (v > hi) { return hi; }
	return v;
}

define sum(int n) = int {
	int total = 0;
	for (int i = 0; i < n; i++) {
		if (((i % 2) == 0) && (i != 4)) { total += i; }
	}
	do { total--; } while (total > 100);
	return total;
}

define spawn() = object {
	object o = instantiate(1);
	attach(o);
	if (true) { object o = null; }
	return attached;
}
`
	res, err := compiler.Compile("round.bar", source, compiler.Options{})
	require.NoError(t, err)

	listing, err := Format(res.Script, res.Names)
	require.NoError(t, err)
	require.Contains(t, listing, ".func clamp 3 int")
	require.Contains(t, listing, "CMP LT")
	require.Contains(t, listing, "PUSHVAR attached")
	require.Contains(t, listing, "spawn.o$2")

	back, err := Assemble("round.basm", listing)
	require.NoError(t, err, "listing:\n%s", listing)
	require.Equal(t, len(res.Script.Sections), len(back.Script.Sections))
	for i, sec := range res.Script.Sections {
		require.Equal(t, sec, back.Script.Sections[i], "section %d\n%s", i, listing)
	}
}

func TestAssembleSentinelIDs(t *testing.T) {
	res, err := Assemble("sentinel.basm", `
.func pick 0 object
    PUSHVAR null
    POPVAR attached
    PUSHVAR attached
    RET
`)
	require.NoError(t, err)
	fn, err := bytecode.DecodeFunctionPayload(res.Script.Sections[0].Data)
	require.NoError(t, err)

	var ids []int64
	for off := 0; off < len(fn.Code); {
		in, err := bytecode.DecodeInstruction(fn.Code, off)
		require.NoError(t, err)
		if in.Op != bytecode.OpRet {
			ids = append(ids, in.Operands[0])
		}
		off += in.Len
	}
	require.Equal(t, []int64{bytecode.NullObjectID, bytecode.AttachedObjectID, bytecode.AttachedObjectID}, ids)
}

func TestFormatUnnamedIDs(t *testing.T) {
	b := bytecode.NewBuffer()
	b.EmitID(bytecode.OpCall, 12345)
	b.Emit(bytecode.OpRet)
	s := bytecode.NewScript()
	s.AddSection(bytecode.SectionFunction, 99, bytecode.FunctionPayload(bytecode.Function{Code: b.Bytes()}))

	listing, err := Format(s, nil)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(listing, ".func 99 0 void\n"), listing)
	require.Contains(t, listing, "CALL 12345")

	back, err := Assemble("ids.basm", listing)
	require.NoError(t, err)
	require.Equal(t, s.Sections, back.Script.Sections)
}
