package vm

import "github.com/chazu/baranium/pkg/bytecode"

// ---------------------------------------------------------------------------
// Operand stack
//
// Every value occupies its data words, then a size word, then a type word,
// so the stack can be walked without outside type information. PUSH adds
// single raw words; the compiler emits them in that order.
// ---------------------------------------------------------------------------

// maxValueSize bounds the size word of a triple.
const maxValueSize = 1 << 20

func (m *Machine) pushWord(w uint64) {
	m.stack = append(m.stack, w)
}

func (m *Machine) push(v bytecode.Value) {
	m.stack = append(m.stack, bytecode.PackWords(v.Data)...)
	m.stack = append(m.stack, uint64(len(v.Data)), uint64(v.Type))
}

// decodeTop decodes the triple ending at index end (exclusive) and
// returns it with the index where it starts.
func decodeTop(stack []uint64, end int) (bytecode.Value, int, bool) {
	if end < 2 {
		return bytecode.Value{}, 0, false
	}
	t := stack[end-1]
	size := stack[end-2]
	if t > uint64(bytecode.TypeUint) || size > maxValueSize {
		return bytecode.Value{}, 0, false
	}
	n := bytecode.WordCount(int(size))
	start := end - 2 - n
	if start < 0 {
		return bytecode.Value{}, 0, false
	}
	data := bytecode.UnpackWords(stack[start:end-2], int(size))
	return bytecode.Value{Type: bytecode.VarType(t), Data: data}, start, true
}

// pop removes the top value. A malformed or missing triple kills the
// machine with CodeStackUnderflow.
func (m *Machine) pop() (bytecode.Value, bool) {
	v, start, ok := decodeTop(m.stack, len(m.stack))
	if !ok {
		m.Kill(CodeStackUnderflow)
		return bytecode.Value{}, false
	}
	m.stack = m.stack[:start]
	return v, true
}

// pop2 pops the right then the left operand of a binary instruction.
func (m *Machine) pop2() (a, b bytecode.Value, ok bool) {
	if b, ok = m.pop(); !ok {
		return
	}
	a, ok = m.pop()
	return
}

// peekValues decodes the top n values without removing them, bottom
// first, and returns the stack height below them.
func (m *Machine) peekValues(n int) ([]bytecode.Value, int, bool) {
	values := make([]bytecode.Value, n)
	end := len(m.stack)
	for i := n - 1; i >= 0; i-- {
		v, start, ok := decodeTop(m.stack, end)
		if !ok {
			return nil, 0, false
		}
		values[i] = v
		end = start
	}
	return values, end, true
}

// Peek returns the value on top of the operand stack.
func (m *Machine) Peek() (bytecode.Value, bool) {
	v, _, ok := decodeTop(m.stack, len(m.stack))
	return v, ok
}

// StackDepth returns the number of raw words on the operand stack.
func (m *Machine) StackDepth() int {
	return len(m.stack)
}
