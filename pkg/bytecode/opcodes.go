package bytecode

import "fmt"

// Opcode represents a bytecode instruction.
// Opcodes are organized into ranges by category for easy identification.
type Opcode byte

const (
	// ========================================================================
	// Flags, compare value and stack (0x00-0x0F)
	// ========================================================================

	OpNop     Opcode = 0x00 // No operation
	OpCCF     Opcode = 0x01 // Clear the compare flag
	OpSCF     Opcode = 0x02 // Set the compare flag
	OpCCV     Opcode = 0x03 // Clear the compare value
	OpPushCV  Opcode = 0x04 // Save the compare value on the cv stack
	OpPopCV   Opcode = 0x05 // Restore the compare value from the cv stack
	OpPushVar Opcode = 0x06 // Push variable: OpPushVar <id:i64>
	OpPopVar  Opcode = 0x07 // Pop into variable: OpPopVar <id:i64>
	OpPush    Opcode = 0x08 // Push raw word: OpPush <val:u64>
	OpPop     Opcode = 0x09 // Discard one value triple
	OpPushCmp Opcode = 0x0A // Push the compare value as a bool triple
	OpCall    Opcode = 0x0E // Call function or native: OpCall <id:i64>
	OpRet     Opcode = 0x0F // Return to the caller

	// ========================================================================
	// Jumps (0x10-0x1F)
	// ========================================================================

	OpJmp     Opcode = 0x10 // Absolute jump: OpJmp <addr:u64>
	OpJmpOff  Opcode = 0x11 // Relative jump: OpJmpOff <off:i16>
	OpJmpC    Opcode = 0x12 // Conditional absolute jump: OpJmpC <addr:u64>
	OpJmpCOff Opcode = 0x13 // Conditional relative jump: OpJmpCOff <off:i16>

	// ========================================================================
	// Arithmetic and bitwise (0x20-0x2F)
	// ========================================================================

	OpMod   Opcode = 0x20
	OpDiv   Opcode = 0x21
	OpMul   Opcode = 0x22
	OpSub   Opcode = 0x23
	OpAdd   Opcode = 0x24
	OpAnd   Opcode = 0x25
	OpOr    Opcode = 0x26
	OpXor   Opcode = 0x27
	OpShftL Opcode = 0x28
	OpShftR Opcode = 0x29

	// ========================================================================
	// Comparison (0x30-0x3F)
	// ========================================================================

	OpCmp  Opcode = 0x30 // Compare two values: OpCmp <method:u8>
	OpCmpC Opcode = 0x31 // Combine saved cv with cv: OpCmpC <combine:u8>

	// ========================================================================
	// Memory (0x80-0x8F)
	// ========================================================================

	OpMem Opcode = 0x80 // Allocate: OpMem <size:u64> <type:u8> <id:i64>
	OpFem Opcode = 0x81 // Free: OpFem <id:i64>
	OpSet Opcode = 0x82 // Write literal: OpSet <id:i64> <size:u64> <bytes...>

	// ========================================================================
	// Host objects (0xD0-0xDF)
	// ========================================================================

	OpInstantiate Opcode = 0xD0
	OpDelete      Opcode = 0xD1
	OpAttach      Opcode = 0xD2
	OpDetach      Opcode = 0xD3

	// ========================================================================
	// Termination
	// ========================================================================

	OpKill Opcode = 0xFF // Forced kill: OpKill <code:i64>
)

// CompareMethod selects the relation evaluated by OpCmp.
type CompareMethod uint8

const (
	CompareEqual CompareMethod = iota
	CompareNotEqual
	CompareLess
	CompareLessEqual
	CompareGreater
	CompareGreaterEqual
)

var compareMethodNames = [...]string{"EQ", "NEQ", "LT", "LEQ", "GT", "GEQ"}

func (m CompareMethod) String() string {
	if int(m) < len(compareMethodNames) {
		return compareMethodNames[m]
	}
	return fmt.Sprintf("CompareMethod(%d)", m)
}

// CombineMethod selects how OpCmpC merges the saved compare value with
// the current one.
type CombineMethod uint8

const (
	CombineAnd CombineMethod = iota
	CombineOr
)

func (m CombineMethod) String() string {
	switch m {
	case CombineAnd:
		return "AND"
	case CombineOr:
		return "OR"
	}
	return fmt.Sprintf("CombineMethod(%d)", m)
}

// Operand describes one fixed-width operand of an instruction.
type Operand struct {
	Name   string
	Bits   int
	Signed bool
}

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name     string    // Human-readable name
	Operands []Operand // Fixed operands in encoding order
	Trailing bool      // Followed by as many raw bytes as the last operand says
}

var (
	idOperand   = Operand{"id", 64, true}
	addrOperand = Operand{"addr", 64, false}
	offOperand  = Operand{"off", 16, true}
)

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpNop:     {Name: "NOP"},
	OpCCF:     {Name: "CCF"},
	OpSCF:     {Name: "SCF"},
	OpCCV:     {Name: "CCV"},
	OpPushCV:  {Name: "PUSHCV"},
	OpPopCV:   {Name: "POPCV"},
	OpPushVar: {Name: "PUSHVAR", Operands: []Operand{idOperand}},
	OpPopVar:  {Name: "POPVAR", Operands: []Operand{idOperand}},
	OpPush:    {Name: "PUSH", Operands: []Operand{{"val", 64, false}}},
	OpPop:     {Name: "POP"},
	OpPushCmp: {Name: "PUSHCMP"},
	OpCall:    {Name: "CALL", Operands: []Operand{idOperand}},
	OpRet:     {Name: "RET"},

	OpJmp:     {Name: "JMP", Operands: []Operand{addrOperand}},
	OpJmpOff:  {Name: "JMPOFF", Operands: []Operand{offOperand}},
	OpJmpC:    {Name: "JMPC", Operands: []Operand{addrOperand}},
	OpJmpCOff: {Name: "JMPCOFF", Operands: []Operand{offOperand}},

	OpMod:   {Name: "MOD"},
	OpDiv:   {Name: "DIV"},
	OpMul:   {Name: "MUL"},
	OpSub:   {Name: "SUB"},
	OpAdd:   {Name: "ADD"},
	OpAnd:   {Name: "AND"},
	OpOr:    {Name: "OR"},
	OpXor:   {Name: "XOR"},
	OpShftL: {Name: "SHFTL"},
	OpShftR: {Name: "SHFTR"},

	OpCmp:  {Name: "CMP", Operands: []Operand{{"method", 8, false}}},
	OpCmpC: {Name: "CMPC", Operands: []Operand{{"combine", 8, false}}},

	OpMem: {Name: "MEM", Operands: []Operand{{"size", 64, false}, {"type", 8, false}, idOperand}},
	OpFem: {Name: "FEM", Operands: []Operand{idOperand}},
	OpSet: {Name: "SET", Operands: []Operand{idOperand, {"size", 64, false}}, Trailing: true},

	OpInstantiate: {Name: "INSTANTIATE"},
	OpDelete:      {Name: "DELETE"},
	OpAttach:      {Name: "ATTACH"},
	OpDetach:      {Name: "DETACH"},

	OpKill: {Name: "KILL", Operands: []Operand{{"code", 64, true}}},
}

var opcodesByName map[string]Opcode

func init() {
	opcodesByName = make(map[string]Opcode, len(opcodeInfoTable))
	for op, info := range opcodeInfoTable {
		opcodesByName[info.Name] = op
	}
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns an OpcodeInfo named "UNKNOWN(0x..)" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// LookupOpcode finds an opcode by its mnemonic.
func LookupOpcode(name string) (Opcode, bool) {
	op, ok := opcodesByName[name]
	return op, ok
}

// Valid reports whether the opcode is part of the instruction set.
func (op Opcode) Valid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// OperandLen returns the number of fixed operand bytes for this opcode.
func (op Opcode) OperandLen() int {
	n := 0
	for _, o := range GetOpcodeInfo(op).Operands {
		n += o.Bits / 8
	}
	return n
}

// IsJump returns true if this opcode is a jump instruction.
func (op Opcode) IsJump() bool {
	return op >= OpJmp && op <= OpJmpCOff
}

// IsConditional returns true if the jump is gated by the compare flag.
func (op Opcode) IsConditional() bool {
	return op == OpJmpC || op == OpJmpCOff
}

// IsArithmetic returns true for the binary arithmetic/bitwise opcodes.
func (op Opcode) IsArithmetic() bool {
	return op >= OpMod && op <= OpShftR
}

// AllOpcodes returns a slice of all defined opcodes.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
