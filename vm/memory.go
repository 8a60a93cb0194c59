package vm

import (
	"fmt"

	"github.com/chazu/baranium/pkg/bytecode"
)

// frame is one active function call. The return-address stack is the
// frame stack itself: the caller's frame keeps its ip while the callee
// runs.
type frame struct {
	fn      *Function
	bus     Bus
	ip      int
	start   int // offset of the instruction being executed
	cvDepth int
	locals  map[int64]bytecode.Value
}

func newFrame(fn *Function, cvDepth int) *frame {
	return &frame{
		fn:      fn,
		bus:     CodeBus(fn.Code),
		cvDepth: cvDepth,
		locals:  make(map[int64]bytecode.Value),
	}
}

func (m *Machine) frame() *frame {
	return m.frames[len(m.frames)-1]
}

// scope returns the variables MEM and FEM act on: the current frame's
// locals, or the globals when no function is running.
func (m *Machine) scope() map[int64]bytecode.Value {
	if len(m.frames) == 0 {
		return m.globals
	}
	return m.frame().locals
}

// allocate creates or re-creates a variable holding the zero value of t.
func (m *Machine) allocate(id int64, t bytecode.VarType) {
	m.scope()[id] = bytecode.Zero(t)
}

// free drops a variable from the current scope. Freeing an unknown id
// does nothing.
func (m *Machine) free(id int64) {
	delete(m.scope(), id)
}

// lookup resolves a variable in the current frame, then the globals, and
// returns the map holding it.
func (m *Machine) lookup(id int64) (bytecode.Value, map[int64]bytecode.Value, bool) {
	if len(m.frames) > 0 {
		if v, ok := m.frame().locals[id]; ok {
			return v, m.frame().locals, true
		}
	}
	if v, ok := m.globals[id]; ok {
		return v, m.globals, true
	}
	return bytecode.Value{}, nil, false
}

// store writes v into an existing variable, converting it to the
// variable's type.
func (m *Machine) store(id int64, v bytecode.Value) bool {
	cur, vars, ok := m.lookup(id)
	if !ok {
		return false
	}
	vars[id] = v.Convert(cur.Type)
	return true
}

// Variable returns the current value of a variable as the running code
// sees it.
func (m *Machine) Variable(id int64) (bytecode.Value, bool) {
	v, _, ok := m.lookup(id)
	return v, ok
}

// Global returns a field or global variable by name.
func (m *Machine) Global(name string) (bytecode.Value, bool) {
	v, ok := m.globals[bytecode.NameID(name)]
	return v, ok
}

// SetField sets a field from the host. The value is converted to the
// field's declared type.
func (m *Machine) SetField(name string, v bytecode.Value) error {
	id := bytecode.NameID(name)
	cur, ok := m.globals[id]
	if !ok || !m.program.Fields[id] {
		return fmt.Errorf("no field %s", name)
	}
	m.globals[id] = v.Convert(cur.Type)
	return nil
}
