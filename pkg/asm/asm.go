// Package asm assembles and formats textual listings of Baranium
// binaries. A listing uses the disassembler's mnemonics, adds section
// directives and labels, and round-trips through Format.
package asm

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/chazu/baranium/pkg/bytecode"
)

// Result is an assembled listing.
type Result struct {
	Script *bytecode.Script
	Names  map[int64]string
}

// Assemble parses a listing and encodes every section in order.
func Assemble(filename, source string) (*Result, error) {
	if !strings.HasSuffix(source, "\n") {
		source += "\n"
	}
	l, err := parser.ParseString(filename, source)
	if err != nil {
		return nil, err
	}

	a := &assembler{script: bytecode.NewScript(), names: make(map[int64]string)}
	for _, it := range l.Items {
		switch {
		case it.Global != nil:
			err = a.global(it.Pos, it.Global)
		case it.Func != nil:
			err = a.function(it.Pos, it.Func)
		}
		if err != nil {
			return nil, err
		}
	}
	return &Result{Script: a.script, Names: a.names}, nil
}

type assembler struct {
	script *bytecode.Script
	names  map[int64]string
}

func errorf(pos lexer.Position, format string, args ...any) error {
	return fmt.Errorf("%s: %s", pos, fmt.Sprintf(format, args...))
}

// sectionID resolves a section name, which is either a number or a name.
func (a *assembler) sectionID(name string) int64 {
	if n, err := strconv.ParseInt(name, 0, 64); err == nil {
		return n
	}
	id := bytecode.NameID(name)
	a.names[id] = name
	return id
}

func (a *assembler) global(pos lexer.Position, g *globalDecl) error {
	t := bytecode.ParseVarType(g.Type)
	if t == bytecode.TypeInvalid || t == bytecode.TypeVoid {
		return errorf(pos, "%s has invalid type %s", g.Name, g.Type)
	}
	v := bytecode.Zero(t)
	if g.Value != nil {
		var err error
		if v, err = literal(g.Value, t); err != nil {
			return errorf(pos, "%s: %v", g.Name, err)
		}
	}

	kind := bytecode.SectionVariable
	if g.Kind == ".field" {
		kind = bytecode.SectionField
	}
	a.script.AddSection(kind, a.sectionID(g.Name), bytecode.VariablePayload(v))
	return nil
}

// literal converts a global initializer to a value of type t.
func literal(o *operand, t bytecode.VarType) (bytecode.Value, error) {
	switch {
	case o.Str != nil:
		if t != bytecode.TypeString {
			return bytecode.Value{}, fmt.Errorf("string literal for %s", t)
		}
		s, err := strconv.Unquote(*o.Str)
		if err != nil {
			return bytecode.Value{}, err
		}
		return bytecode.StringValue(s), nil
	case o.Float != nil:
		f, err := strconv.ParseFloat(*o.Float, 64)
		if err != nil {
			return bytecode.Value{}, err
		}
		return bytecode.FloatValue(f).Convert(t), nil
	case o.Int != nil:
		n, err := parseInt(*o.Int)
		if err != nil {
			return bytecode.Value{}, err
		}
		switch t {
		case bytecode.TypeObject:
			return bytecode.ObjectValue(int64(n)), nil
		case bytecode.TypeFloat:
			return bytecode.FloatValue(float64(int64(n))), nil
		case bytecode.TypeUint:
			return bytecode.UintValue(n), nil
		}
		return bytecode.IntValue(int64(n)).Convert(t), nil
	case o.Ident != nil:
		switch *o.Ident {
		case "true", "false":
			return bytecode.BoolValue(*o.Ident == "true").Convert(t), nil
		case "null":
			if t == bytecode.TypeObject {
				return bytecode.ObjectValue(bytecode.NullObjectID), nil
			}
		}
		return bytecode.Value{}, fmt.Errorf("unexpected %s", *o.Ident)
	}
	return bytecode.Value{}, fmt.Errorf("a byte list is not a value")
}

// parseInt accepts signed and unsigned decimal or hex text and returns the
// two's-complement word.
func parseInt(text string) (uint64, error) {
	if n, err := strconv.ParseInt(text, 0, 64); err == nil {
		return uint64(n), nil
	}
	return strconv.ParseUint(strings.TrimPrefix(text, "+"), 0, 64)
}

func (a *assembler) function(pos lexer.Position, f *funcDecl) error {
	params, err := strconv.ParseUint(f.Params, 0, 8)
	if err != nil {
		return errorf(pos, "%s: parameter count %s: %v", f.Name, f.Params, err)
	}
	ret := bytecode.ParseVarType(f.Returns)
	if ret == bytecode.TypeInvalid {
		return errorf(pos, "%s: unknown return type %s", f.Name, f.Returns)
	}

	// First pass: instruction sizes are fixed by the opcode table, except
	// SET whose trailing bytes are listed inline.
	labels := make(map[string]int)
	pc := 0
	for _, ln := range f.Lines {
		if ln.Label != "" {
			name := strings.TrimSuffix(ln.Label, ":")
			if _, dup := labels[name]; dup {
				return errorf(ln.Pos, "label %s defined twice", name)
			}
			labels[name] = pc
			continue
		}
		n, err := size(ln.Instr)
		if err != nil {
			return err
		}
		pc += n
	}

	var code []byte
	for _, ln := range f.Lines {
		if ln.Instr == nil {
			continue
		}
		if code, err = a.encode(code, ln.Instr, labels); err != nil {
			return err
		}
	}

	payload := bytecode.FunctionPayload(bytecode.Function{
		ParamCount: uint8(params),
		ReturnType: ret,
		Code:       code,
	})
	a.script.AddSection(bytecode.SectionFunction, a.sectionID(f.Name), payload)
	return nil
}

func lookup(in *instruction) (bytecode.Opcode, bytecode.OpcodeInfo, error) {
	op, ok := bytecode.LookupOpcode(strings.ToUpper(in.Mnemonic))
	if !ok {
		return 0, bytecode.OpcodeInfo{}, errorf(in.Pos, "unknown mnemonic %s", in.Mnemonic)
	}
	info := bytecode.GetOpcodeInfo(op)
	want := len(info.Operands)
	if info.Trailing {
		want++
	}
	if len(in.Operands) != want {
		return 0, bytecode.OpcodeInfo{}, errorf(in.Pos, "%s takes %d operands, got %d", info.Name, want, len(in.Operands))
	}
	return op, info, nil
}

func size(in *instruction) (int, error) {
	_, info, err := lookup(in)
	if err != nil {
		return 0, err
	}
	n := 1
	for _, o := range info.Operands {
		n += o.Bits / 8
	}
	if info.Trailing {
		n += len(in.Operands[len(in.Operands)-1].Bytes)
	}
	return n, nil
}

func (a *assembler) encode(code []byte, in *instruction, labels map[string]int) ([]byte, error) {
	op, info, err := lookup(in)
	if err != nil {
		return nil, err
	}
	n, _ := size(in)
	start := len(code)
	code = append(code, byte(op))

	for i, spec := range info.Operands {
		o := in.Operands[i]
		var w uint64
		switch spec.Name {
		case "id":
			w, err = a.id(o)
		case "addr":
			w, err = target(o, labels, 0)
		case "off":
			w, err = target(o, labels, start+n)
			if err == nil && (int64(w) < math.MinInt16 || int64(w) > math.MaxInt16) {
				err = errorf(o.Pos, "jump offset %d out of range", int64(w))
			}
		case "type":
			w, err = varType(o)
		case "method":
			w, err = method(o)
		case "combine":
			w, err = combine(o)
		default:
			w, err = integer(o)
		}
		if err != nil {
			return nil, err
		}

		switch spec.Bits {
		case 8:
			code = append(code, byte(w))
		case 16:
			code = binary.LittleEndian.AppendUint16(code, uint16(w))
		default:
			code = binary.LittleEndian.AppendUint64(code, w)
		}
	}

	if info.Trailing {
		list := in.Operands[len(in.Operands)-1]
		if !list.List {
			return nil, errorf(list.Pos, "%s needs a byte list", info.Name)
		}
		if declared := binary.LittleEndian.Uint64(code[len(code)-8:]); declared != uint64(len(list.Bytes)) {
			return nil, errorf(in.Pos, "%s declares %d bytes, lists %d", info.Name, declared, len(list.Bytes))
		}
		for _, b := range list.Bytes {
			v, err := strconv.ParseUint(b, 0, 8)
			if err != nil {
				return nil, errorf(list.Pos, "byte %s: %v", b, err)
			}
			code = append(code, byte(v))
		}
	}
	return code, nil
}

func integer(o *operand) (uint64, error) {
	if o.Int == nil {
		return 0, errorf(o.Pos, "expected a number")
	}
	w, err := parseInt(*o.Int)
	if err != nil {
		return 0, errorf(o.Pos, "%v", err)
	}
	return w, nil
}

func (a *assembler) id(o *operand) (uint64, error) {
	if o.Ident == nil {
		return integer(o)
	}
	var id int64
	switch *o.Ident {
	case "null":
		id = bytecode.NullObjectID
	case "attached":
		id = bytecode.AttachedObjectID
	default:
		id = bytecode.NameID(*o.Ident)
		a.names[id] = *o.Ident
	}
	return uint64(id), nil
}

// target resolves a jump operand. With base > 0 the result is relative to
// base, the end of the jump instruction; numbers are taken as written.
func target(o *operand, labels map[string]int, base int) (uint64, error) {
	if o.Ident == nil {
		return integer(o)
	}
	addr, ok := labels[*o.Ident]
	if !ok {
		return 0, errorf(o.Pos, "undefined label %s", *o.Ident)
	}
	if base == 0 {
		return uint64(addr), nil
	}
	return uint64(int64(addr - base)), nil
}

func varType(o *operand) (uint64, error) {
	if o.Ident == nil {
		return integer(o)
	}
	t := bytecode.ParseVarType(*o.Ident)
	if t == bytecode.TypeInvalid {
		return 0, errorf(o.Pos, "unknown type %s", *o.Ident)
	}
	return uint64(t), nil
}

func method(o *operand) (uint64, error) {
	if o.Ident == nil {
		return integer(o)
	}
	for m := bytecode.CompareEqual; m <= bytecode.CompareGreaterEqual; m++ {
		if strings.EqualFold(m.String(), *o.Ident) {
			return uint64(m), nil
		}
	}
	return 0, errorf(o.Pos, "unknown compare method %s", *o.Ident)
}

func combine(o *operand) (uint64, error) {
	if o.Ident == nil {
		return integer(o)
	}
	switch strings.ToUpper(*o.Ident) {
	case "AND":
		return uint64(bytecode.CombineAnd), nil
	case "OR":
		return uint64(bytecode.CombineOr), nil
	}
	return 0, errorf(o.Pos, "unknown combine method %s", *o.Ident)
}
