package vm

import (
	"fmt"

	"github.com/chazu/baranium/pkg/bytecode"
)

// ObjectHost owns the external objects scripts refer to by handle. The
// object keywords instantiate, delete, attach and detach are forwarded
// to it.
type ObjectHost interface {
	Instantiate(arg bytecode.Value) (int64, error)
	Delete(handle int64) error
	Attach(handle int64) error
	Detach(handle int64) error
}

// MemoryHost is an ObjectHost that hands out sequential handles and
// remembers the value each object was created from.
type MemoryHost struct {
	next     int64
	objects  map[int64]bytecode.Value
	attached int64
}

// NewMemoryHost creates an empty host.
func NewMemoryHost() *MemoryHost {
	return &MemoryHost{objects: make(map[int64]bytecode.Value), attached: bytecode.NullObjectID}
}

func (h *MemoryHost) Instantiate(arg bytecode.Value) (int64, error) {
	h.next++
	h.objects[h.next] = arg
	return h.next, nil
}

func (h *MemoryHost) Delete(handle int64) error {
	if _, ok := h.objects[handle]; !ok {
		return fmt.Errorf("no object %d", handle)
	}
	delete(h.objects, handle)
	if h.attached == handle {
		h.attached = bytecode.NullObjectID
	}
	return nil
}

func (h *MemoryHost) Attach(handle int64) error {
	if _, ok := h.objects[handle]; !ok {
		return fmt.Errorf("no object %d", handle)
	}
	h.attached = handle
	return nil
}

func (h *MemoryHost) Detach(handle int64) error {
	if h.attached != handle {
		return fmt.Errorf("object %d is not attached", handle)
	}
	h.attached = bytecode.NullObjectID
	return nil
}

// Object returns the value an object was instantiated from.
func (h *MemoryHost) Object(handle int64) (bytecode.Value, bool) {
	v, ok := h.objects[handle]
	return v, ok
}

// Len returns the number of live objects.
func (h *MemoryHost) Len() int {
	return len(h.objects)
}

// NativeFunc implements a function provided by the host. Returning done
// false leaves the arguments on the stack and retries the call on the next
// tick. A nil result is returned to the script as void.
type NativeFunc func(m *Machine, args []bytecode.Value) (result *bytecode.Value, done bool, err error)

type native struct {
	name  string
	arity int
	fn    NativeFunc
}

// RegisterNative makes fn callable from scripts under name. arity is the
// number of arguments the call pops.
func (m *Machine) RegisterNative(name string, arity int, fn NativeFunc) {
	id := bytecode.NameID(name)
	m.natives[id] = native{name: name, arity: arity, fn: fn}
}
