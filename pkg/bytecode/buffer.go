package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Buffer is a growable instruction stream. Control-flow code generation
// compiles bodies into scratch sub-buffers first so their length is known
// before the jump that skips them is emitted; the sub-buffer is then
// spliced into its parent and discarded.
type Buffer struct {
	code []byte
}

// NewBuffer creates an empty instruction buffer.
func NewBuffer() *Buffer {
	return &Buffer{code: make([]byte, 0, 64)}
}

// Scratch returns a fresh, empty buffer for measuring a piece of code.
func (b *Buffer) Scratch() *Buffer {
	return NewBuffer()
}

// Splice appends the contents of a scratch buffer and resets it.
func (b *Buffer) Splice(other *Buffer) {
	b.code = append(b.code, other.code...)
	other.code = other.code[:0]
}

// Bytes returns the encoded instructions.
func (b *Buffer) Bytes() []byte {
	return b.code
}

// Len returns the length of the code in bytes.
func (b *Buffer) Len() int {
	return len(b.code)
}

// Emit appends a single-byte opcode and returns its offset.
func (b *Buffer) Emit(op Opcode) int {
	offset := len(b.code)
	b.code = append(b.code, byte(op))
	return offset
}

// EmitID appends an opcode taking a single id operand.
func (b *Buffer) EmitID(op Opcode, id int64) int {
	offset := b.Emit(op)
	b.code = binary.LittleEndian.AppendUint64(b.code, uint64(id))
	return offset
}

// EmitByte appends an opcode taking a single 8-bit operand.
func (b *Buffer) EmitByte(op Opcode, v uint8) int {
	offset := b.Emit(op)
	b.code = append(b.code, v)
	return offset
}

// EmitPush appends a PUSH of one raw word.
func (b *Buffer) EmitPush(word uint64) int {
	offset := b.Emit(OpPush)
	b.code = binary.LittleEndian.AppendUint64(b.code, word)
	return offset
}

// EmitValue materializes a typed literal on the operand stack: its data
// words, then its size, then its type.
func (b *Buffer) EmitValue(t VarType, data []byte) int {
	offset := len(b.code)
	for _, w := range PackWords(data) {
		b.EmitPush(w)
	}
	b.EmitPush(uint64(len(data)))
	b.EmitPush(uint64(t))
	return offset
}

// EmitMem appends an allocation instruction.
func (b *Buffer) EmitMem(size uint64, t VarType, id int64) int {
	offset := b.Emit(OpMem)
	b.code = binary.LittleEndian.AppendUint64(b.code, size)
	b.code = append(b.code, byte(t))
	b.code = binary.LittleEndian.AppendUint64(b.code, uint64(id))
	return offset
}

// EmitSet appends an immediate write of literal bytes into a variable.
func (b *Buffer) EmitSet(id int64, data []byte) int {
	offset := b.Emit(OpSet)
	b.code = binary.LittleEndian.AppendUint64(b.code, uint64(id))
	b.code = binary.LittleEndian.AppendUint64(b.code, uint64(len(data)))
	b.code = append(b.code, data...)
	return offset
}

// EmitKill appends a forced kill with the given code.
func (b *Buffer) EmitKill(code int64) int {
	return b.EmitID(OpKill, code)
}

// EmitJumpOffset appends a relative jump. The offset is measured from
// the end of the jump instruction.
func (b *Buffer) EmitJumpOffset(op Opcode, delta int) (int, error) {
	if delta < math.MinInt16 || delta > math.MaxInt16 {
		return 0, fmt.Errorf("jump distance %d exceeds 16-bit range", delta)
	}
	offset := b.Emit(op)
	b.code = binary.LittleEndian.AppendUint16(b.code, uint16(int16(delta)))
	return offset, nil
}

// EmitJumpBack appends a relative jump to an earlier offset in this buffer.
func (b *Buffer) EmitJumpBack(op Opcode, target int) (int, error) {
	return b.EmitJumpOffset(op, target-(len(b.code)+JumpOffsetLen))
}

// EmitJumpAbs appends an absolute jump.
func (b *Buffer) EmitJumpAbs(op Opcode, addr uint64) int {
	offset := b.Emit(op)
	b.code = binary.LittleEndian.AppendUint64(b.code, addr)
	return offset
}

// JumpOffsetLen is the encoded length of JMPOFF/JMPCOFF.
const JumpOffsetLen = 3

// PackWords splits data into little-endian 64-bit words. Empty data still
// occupies one word so every value has a slot on the stack.
func PackWords(data []byte) []uint64 {
	n := (len(data) + 7) / 8
	if n == 0 {
		n = 1
	}
	words := make([]uint64, n)
	for i, c := range data {
		words[i/8] |= uint64(c) << (8 * (i % 8))
	}
	return words
}

// UnpackWords is the inverse of PackWords.
func UnpackWords(words []uint64, size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(words[i/8] >> (8 * (i % 8)))
	}
	return data
}

// WordCount returns how many data words a value of size bytes occupies.
func WordCount(size int) int {
	if size <= 0 {
		return 1
	}
	return (size + 7) / 8
}
