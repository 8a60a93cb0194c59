// Package bytecode defines the Baranium instruction set and binary format.
//
// A compiled unit is a Script: an ordered list of sections, one per
// top-level declaration. Field and variable sections hold a type tag and
// the initial value; function sections hold the parameter count, the
// return type and the instruction stream.
//
// # Instructions
//
// Every instruction is a one-byte opcode followed by fixed-width
// little-endian operands (see OpcodeInfo). SET is followed by as many raw
// bytes as its size operand says. Ids are 64-bit: declarations use
// NameID of their (qualified) name, and the negative ids NullObjectID and
// AttachedObjectID are resolved by the VM.
//
// Jumps come in absolute (JMP, JMPC) and relative (JMPOFF, JMPCOFF)
// forms. Relative offsets are signed 16-bit and measured from the end of
// the jump instruction. The compiler only emits relative jumps so function
// bodies can be spliced without relocation.
//
// # Binary format
//
//	[magic:4] [version:u32] [section_count:u64]
//	{ [kind:u8] [id:i64] [data_len:u64] [data...] } * section_count
//	[trailer]
//
// Scripts use the magic "BGSL" and end with a zero word. Libraries use
// "BGLL" and end with the length of a CBOR export table followed by the
// table itself, listing the exported names and the files the library was
// built from.
package bytecode
