package asm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/chazu/baranium/pkg/bytecode"
)

var identPattern = regexp.MustCompile(`^[a-zA-Z_$][\w.$]*$`)

// Format renders a script as a listing that Assemble turns back into the
// same sections. Ids with a usable entry in names are written by name.
func Format(s *bytecode.Script, names map[int64]string) (string, error) {
	f := formatter{names: names}
	for i, sec := range s.Sections {
		if i > 0 {
			f.sb.WriteString("\n")
		}
		if err := f.section(sec); err != nil {
			return "", err
		}
	}
	return f.sb.String(), nil
}

type formatter struct {
	sb    strings.Builder
	names map[int64]string
}

func (f *formatter) printf(format string, args ...any) {
	fmt.Fprintf(&f.sb, format, args...)
}

// id names an id when the name would read back as the same id.
func (f *formatter) id(id int64) string {
	switch id {
	case bytecode.NullObjectID:
		return "null"
	case bytecode.AttachedObjectID:
		return "attached"
	}
	if n, ok := f.names[id]; ok && identPattern.MatchString(n) && bytecode.NameID(n) == id && !reserved(n) {
		return n
	}
	return strconv.FormatInt(id, 10)
}

func reserved(name string) bool {
	return name == "null" || name == "attached" || name == "true" || name == "false"
}

func (f *formatter) section(sec bytecode.Section) error {
	switch sec.Kind {
	case bytecode.SectionField, bytecode.SectionVariable:
		v, err := bytecode.DecodeVariablePayload(sec.Data)
		if err != nil {
			return err
		}
		dir := ".var"
		if sec.Kind == bytecode.SectionField {
			dir = ".field"
		}
		f.printf("%s %s %s %s\n", dir, f.id(sec.ID), v.Type, value(v))
		return nil

	case bytecode.SectionFunction:
		fn, err := bytecode.DecodeFunctionPayload(sec.Data)
		if err != nil {
			return err
		}
		f.printf(".func %s %d %s\n", f.id(sec.ID), fn.ParamCount, fn.ReturnType)
		return f.code(fn.Code)
	}
	return fmt.Errorf("section %d has unknown kind %d", sec.ID, sec.Kind)
}

func value(v bytecode.Value) string {
	switch v.Type {
	case bytecode.TypeString:
		return strconv.Quote(v.String())
	case bytecode.TypeFloat:
		s := strconv.FormatFloat(v.Float(), 'g', -1, 32)
		if !strings.ContainsAny(s, ".eEn") {
			s += ".0"
		}
		return s
	case bytecode.TypeObject:
		if v.Int() == bytecode.NullObjectID {
			return "null"
		}
		return strconv.FormatInt(v.Int(), 10)
	case bytecode.TypeUint:
		return strconv.FormatUint(uint64(v.Int()), 10)
	}
	return v.String()
}

func (f *formatter) code(code []byte) error {
	var ins []bytecode.Instruction
	starts := make(map[int]bool)
	for off := 0; off < len(code); {
		in, err := bytecode.DecodeInstruction(code, off)
		if err != nil {
			return err
		}
		ins = append(ins, in)
		starts[off] = true
		off += in.Len
	}
	starts[len(code)] = true

	labels := make(map[int]string)
	for _, in := range ins {
		if t := in.Target(); t >= 0 && starts[t] {
			labels[t] = fmt.Sprintf("L%04X", t)
		}
	}

	for _, in := range ins {
		if l, ok := labels[in.Offset]; ok {
			f.printf("%s:\n", l)
		}
		f.printf("    %s\n", f.instruction(in, labels))
	}
	if l, ok := labels[len(code)]; ok {
		f.printf("%s:\n", l)
	}
	return nil
}

func (f *formatter) instruction(in bytecode.Instruction, labels map[int]string) string {
	jump := func() string {
		if l, ok := labels[in.Target()]; ok {
			return l
		}
		return strconv.FormatInt(in.Operands[0], 10)
	}

	switch in.Op {
	case bytecode.OpPushVar, bytecode.OpPopVar, bytecode.OpCall, bytecode.OpFem:
		return fmt.Sprintf("%s %s", in.Op, f.id(in.Operands[0]))
	case bytecode.OpPush:
		return fmt.Sprintf("PUSH 0x%X", uint64(in.Operands[0]))
	case bytecode.OpJmp, bytecode.OpJmpC, bytecode.OpJmpOff, bytecode.OpJmpCOff:
		return fmt.Sprintf("%s %s", in.Op, jump())
	case bytecode.OpCmp:
		return fmt.Sprintf("CMP %s", bytecode.CompareMethod(in.Operands[0]))
	case bytecode.OpCmpC:
		return fmt.Sprintf("CMPC %s", bytecode.CombineMethod(in.Operands[0]))
	case bytecode.OpMem:
		return fmt.Sprintf("MEM %d %s %s", in.Operands[0], bytecode.VarType(in.Operands[1]), f.id(in.Operands[2]))
	case bytecode.OpSet:
		bytes := make([]string, len(in.Data))
		for i, b := range in.Data {
			bytes[i] = strconv.Itoa(int(b))
		}
		return fmt.Sprintf("SET %s %d [%s]", f.id(in.Operands[0]), in.Operands[1], strings.Join(bytes, " "))
	case bytecode.OpKill:
		return fmt.Sprintf("KILL %d", in.Operands[0])
	}
	return in.Op.String()
}
