package bytecode

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Instruction is one decoded instruction.
type Instruction struct {
	Offset   int
	Op       Opcode
	Operands []int64
	Data     []byte // trailing bytes of SET
	Len      int
}

// DecodeInstruction decodes the instruction at offset.
func DecodeInstruction(code []byte, offset int) (Instruction, error) {
	if offset >= len(code) {
		return Instruction{}, fmt.Errorf("offset %d past end of code", offset)
	}
	op := Opcode(code[offset])
	if !op.Valid() {
		return Instruction{}, fmt.Errorf("invalid opcode 0x%02X at offset %d", byte(op), offset)
	}
	in := Instruction{Offset: offset, Op: op}
	pos := offset + 1
	for _, o := range GetOpcodeInfo(op).Operands {
		n := o.Bits / 8
		if pos+n > len(code) {
			return Instruction{}, fmt.Errorf("unexpected end of code reading %s operand %s at offset %d", op, o.Name, pos)
		}
		var v int64
		switch o.Bits {
		case 8:
			v = int64(code[pos])
		case 16:
			if o.Signed {
				v = int64(int16(binary.LittleEndian.Uint16(code[pos:])))
			} else {
				v = int64(binary.LittleEndian.Uint16(code[pos:]))
			}
		case 64:
			v = int64(binary.LittleEndian.Uint64(code[pos:]))
		}
		in.Operands = append(in.Operands, v)
		pos += n
	}
	if GetOpcodeInfo(op).Trailing {
		n := int(in.Operands[len(in.Operands)-1])
		if n < 0 || pos+n > len(code) {
			return Instruction{}, fmt.Errorf("unexpected end of code reading %d data bytes at offset %d", n, pos)
		}
		in.Data = code[pos : pos+n]
		pos += n
	}
	in.Len = pos - offset
	return in, nil
}

// Target returns the absolute target of a relative jump.
func (in Instruction) Target() int {
	switch in.Op {
	case OpJmpOff, OpJmpCOff:
		return in.Offset + in.Len + int(in.Operands[0])
	case OpJmp, OpJmpC:
		return int(in.Operands[0])
	}
	return -1
}

// Format renders the instruction. names resolves ids to symbols; it may be nil.
func (in Instruction) Format(names map[int64]string) string {
	name := func(id int64) string {
		if n, ok := names[id]; ok {
			return fmt.Sprintf("%d ; %s", id, n)
		}
		switch id {
		case NullObjectID:
			return fmt.Sprintf("%d ; null", id)
		case AttachedObjectID:
			return fmt.Sprintf("%d ; attached", id)
		}
		return fmt.Sprintf("%d", id)
	}

	switch in.Op {
	case OpPushVar, OpPopVar, OpCall, OpFem:
		return fmt.Sprintf("%s %s", in.Op, name(in.Operands[0]))
	case OpPush:
		return fmt.Sprintf("PUSH 0x%X", uint64(in.Operands[0]))
	case OpJmpOff, OpJmpCOff:
		return fmt.Sprintf("%s %+d ; -> %04X", in.Op, in.Operands[0], in.Target())
	case OpJmp, OpJmpC:
		return fmt.Sprintf("%s %04X", in.Op, in.Operands[0])
	case OpCmp:
		return fmt.Sprintf("CMP %s", CompareMethod(in.Operands[0]))
	case OpCmpC:
		return fmt.Sprintf("CMPC %s", CombineMethod(in.Operands[0]))
	case OpMem:
		return fmt.Sprintf("MEM %d %s %s", in.Operands[0], VarType(in.Operands[1]), name(in.Operands[2]))
	case OpSet:
		return fmt.Sprintf("SET %s %d [% X]", name(in.Operands[0]), in.Operands[1], in.Data)
	case OpKill:
		return fmt.Sprintf("KILL %d", in.Operands[0])
	}
	return in.Op.String()
}

// Disassemble returns a human-readable listing of an instruction stream.
func Disassemble(code []byte, names map[int64]string) string {
	var sb strings.Builder
	offset := 0
	for offset < len(code) {
		in, err := DecodeInstruction(code, offset)
		if err != nil {
			sb.WriteString(fmt.Sprintf("%04X  <%v>\n", offset, err))
			break
		}
		sb.WriteString(fmt.Sprintf("%04X  %s\n", offset, in.Format(names)))
		offset += in.Len
	}
	return sb.String()
}

// Disassemble returns a listing of every section in the script.
func (s *Script) Disassemble(names map[int64]string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("; Baranium binary v%d, %d sections\n", s.Version, len(s.Sections)))
	for _, sec := range s.Sections {
		label := fmt.Sprintf("%d", sec.ID)
		if n, ok := names[sec.ID]; ok {
			label = n
		}
		switch sec.Kind {
		case SectionFunction:
			fn, err := DecodeFunctionPayload(sec.Data)
			if err != nil {
				sb.WriteString(fmt.Sprintf("\n; function %s: %v\n", label, err))
				continue
			}
			sb.WriteString(fmt.Sprintf("\n; === function %s (params=%d, returns %s) ===\n", label, fn.ParamCount, fn.ReturnType))
			sb.WriteString(Disassemble(fn.Code, names))
		default:
			v, err := DecodeVariablePayload(sec.Data)
			if err != nil {
				sb.WriteString(fmt.Sprintf("\n; %s %s: %v\n", sec.Kind, label, err))
				continue
			}
			sb.WriteString(fmt.Sprintf("\n; %s %s %s = %q\n", sec.Kind, v.Type, label, v.String()))
		}
	}
	if s.Library != nil {
		sb.WriteString(fmt.Sprintf("\n; exports: %d, dependencies: %s\n", len(s.Library.Exports), strings.Join(s.Library.Dependencies, ", ")))
	}
	return sb.String()
}
