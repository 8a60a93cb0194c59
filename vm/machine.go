package vm

import (
	"context"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/baranium/pkg/bytecode"
)

var log = commonlog.GetLogger("baranium.vm")

// DefaultBudget is the number of instructions one Tick retires at most.
const DefaultBudget = 256

// State is the execution state reported by Tick.
type State int

const (
	StateIdle     State = iota // nothing to run
	StateRunning               // budget exhausted, more to do
	StateWaiting               // a native asked to be retried
	StateFinished              // entry function returned
	StateKilled                // forced kill
)

var stateNames = [...]string{"idle", "running", "waiting", "finished", "killed"}

func (s State) String() string { return stateNames[s] }

// Flags are the CPU flags.
type Flags uint8

const (
	FlagCMP        Flags = 1 << iota // conditional jumps are armed
	FlagForcedKill                   // execution stopped
)

// Machine executes a loaded program. It is driven by Tick, which runs a
// bounded number of instructions and returns, so a host can interleave
// scripts with its own frame loop. A Machine is not safe for concurrent
// use.
type Machine struct {
	// Budget is the instruction count per Tick; DefaultBudget if zero.
	Budget int

	// Trace logs every instruction at debug level.
	Trace bool

	program *Program
	host    ObjectHost
	natives map[int64]native
	globals map[int64]bytecode.Value

	frames   []*frame
	stack    []uint64
	cvStack  []bool
	cv       bool
	flags    Flags
	ticks    uint64
	killCode int64
	attached int64
	state    State
	result   bytecode.Value
}

// New creates a machine for a program. Globals start at the values stored
// in their sections.
func New(p *Program) *Machine {
	m := &Machine{
		Budget:   DefaultBudget,
		program:  p,
		host:     NewMemoryHost(),
		natives:  make(map[int64]native),
		globals:  make(map[int64]bytecode.Value, len(p.Globals)),
		attached: bytecode.NullObjectID,
	}
	for id, v := range p.Globals {
		m.globals[id] = v
	}
	return m
}

// SetHost replaces the object host.
func (m *Machine) SetHost(h ObjectHost) {
	m.host = h
}

// Host returns the object host.
func (m *Machine) Host() ObjectHost {
	return m.host
}

// State returns the current execution state.
func (m *Machine) State() State { return m.state }

// Flags returns the CPU flags.
func (m *Machine) Flags() Flags { return m.flags }

// Ticks returns how many ticks have run.
func (m *Machine) Ticks() uint64 { return m.ticks }

// KillCode returns the code of the last forced kill.
func (m *Machine) KillCode() int64 { return m.killCode }

// Result returns the value the entry function returned.
func (m *Machine) Result() bytecode.Value { return m.result }

// Attached returns the handle of the attached object, or the null handle.
func (m *Machine) Attached() int64 { return m.attached }

// Call starts the named function with arguments. The machine must not be
// running another call.
func (m *Machine) Call(name string, args ...bytecode.Value) error {
	return m.CallID(bytecode.NameID(name), args...)
}

// CallID starts the function with the given id.
func (m *Machine) CallID(id int64, args ...bytecode.Value) error {
	if m.state == StateRunning || m.state == StateWaiting {
		return fmt.Errorf("machine is busy")
	}
	fn, ok := m.program.Functions[id]
	if !ok {
		return fmt.Errorf("no function %s", m.program.name(id))
	}
	if len(args) != fn.ParamCount {
		return fmt.Errorf("%s takes %d arguments, got %d", fn.Name, fn.ParamCount, len(args))
	}

	m.stack = m.stack[:0]
	m.cvStack = m.cvStack[:0]
	m.cv = false
	m.flags = 0
	m.killCode = 0
	m.result = bytecode.Void
	for _, a := range args {
		m.push(a)
	}
	m.frames = append(m.frames[:0], newFrame(fn, 0))
	m.state = StateRunning
	log.Debugf("call %s with %d arguments", fn.Name, len(args))
	return nil
}

// Kill stops execution with the given code, which is pushed as an int.
func (m *Machine) Kill(code int64) {
	m.flags |= FlagForcedKill
	m.killCode = code
	m.push(bytecode.IntValue(code))
	if m.state == StateRunning || m.state == StateWaiting {
		log.Debugf("killed: %s", KillCodeName(code))
	}
	m.state = StateKilled
}

// Tick retires at most Budget instructions and returns the resulting
// state. Finished, killed and idle machines are left unchanged.
func (m *Machine) Tick() State {
	if m.state != StateRunning && m.state != StateWaiting {
		return m.state
	}
	m.ticks++
	m.state = StateRunning

	budget := m.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}
	for i := 0; i < budget && m.state == StateRunning; i++ {
		if m.flags&FlagForcedKill != 0 {
			m.state = StateKilled
			break
		}
		m.step()
	}
	return m.state
}

// Run ticks until the entry function returns, the machine is killed or ctx
// is done. It returns the entry function's result.
func (m *Machine) Run(ctx context.Context) (bytecode.Value, error) {
	for {
		switch m.Tick() {
		case StateFinished:
			return m.result, nil
		case StateKilled:
			return bytecode.Value{}, &KillError{Code: m.killCode}
		case StateIdle:
			return bytecode.Value{}, fmt.Errorf("nothing to run")
		}
		select {
		case <-ctx.Done():
			return bytecode.Value{}, ctx.Err()
		default:
		}
	}
}

// step executes one instruction.
func (m *Machine) step() {
	f := m.frame()
	f.start = f.ip
	b, ok := m.fetch(8)
	if !ok {
		return
	}
	op := bytecode.Opcode(b)

	if m.Trace {
		log.Debugf("[%s %04X] %-8s stack=%d cv=%v", f.fn.Name, f.start, op, len(m.stack), m.cv)
	}

	switch op {
	// ============ Flags and compare value ============
	case bytecode.OpNop:

	case bytecode.OpCCF:
		m.flags &^= FlagCMP

	case bytecode.OpSCF:
		m.flags |= FlagCMP

	case bytecode.OpCCV:
		m.cv = false

	case bytecode.OpPushCV:
		m.cvStack = append(m.cvStack, m.cv)

	case bytecode.OpPopCV:
		if cv, ok := m.popCV(); ok {
			m.cv = cv
		}

	// ============ Variables and stack ============
	case bytecode.OpPushVar:
		id, ok := m.fetchID()
		if !ok {
			return
		}
		switch id {
		case bytecode.NullObjectID:
			m.push(bytecode.ObjectValue(bytecode.NullObjectID))
		case bytecode.AttachedObjectID:
			m.push(bytecode.ObjectValue(m.attached))
		default:
			v, _, ok := m.lookup(id)
			if !ok {
				m.undefinedVariable(id)
				return
			}
			m.push(v)
		}

	case bytecode.OpPopVar:
		id, ok := m.fetchID()
		if !ok {
			return
		}
		v, ok := m.pop()
		if !ok {
			return
		}
		if !m.store(id, v) {
			m.undefinedVariable(id)
		}

	case bytecode.OpPush:
		if w, ok := m.fetch(64); ok {
			m.pushWord(w)
		}

	case bytecode.OpPop:
		m.pop()

	case bytecode.OpPushCmp:
		m.push(bytecode.BoolValue(m.cv))

	// ============ Calls ============
	case bytecode.OpCall:
		id, ok := m.fetchID()
		if !ok {
			return
		}
		m.call(id)

	case bytecode.OpRet:
		m.ret()

	// ============ Jumps ============
	case bytecode.OpJmp, bytecode.OpJmpC:
		addr, ok := m.fetch(64)
		if ok && (op == bytecode.OpJmp || m.conditionHolds()) {
			f.ip = int(addr)
		}

	case bytecode.OpJmpOff, bytecode.OpJmpCOff:
		off, ok := m.fetch(16)
		if ok && (op == bytecode.OpJmpOff || m.conditionHolds()) {
			f.ip += int(int16(off))
		}

	// ============ Arithmetic ============
	case bytecode.OpMod, bytecode.OpDiv, bytecode.OpMul, bytecode.OpSub, bytecode.OpAdd,
		bytecode.OpAnd, bytecode.OpOr, bytecode.OpXor, bytecode.OpShftL, bytecode.OpShftR:
		a, b, ok := m.pop2()
		if !ok {
			return
		}
		r, ok := arithmetic(op, a, b)
		if !ok {
			m.Kill(CodeDivisionByZero)
			return
		}
		m.push(r)

	// ============ Comparison ============
	case bytecode.OpCmp:
		method, ok := m.fetch(8)
		if !ok {
			return
		}
		a, b, ok := m.pop2()
		if !ok {
			return
		}
		m.cv = compare(bytecode.CompareMethod(method), a, b)

	case bytecode.OpCmpC:
		combine, ok := m.fetch(8)
		if !ok {
			return
		}
		saved, ok := m.popCV()
		if !ok {
			return
		}
		if bytecode.CombineMethod(combine) == bytecode.CombineOr {
			m.cv = saved || m.cv
		} else {
			m.cv = saved && m.cv
		}

	// ============ Memory ============
	case bytecode.OpMem:
		if _, ok := m.fetch(64); !ok {
			return
		}
		t, ok := m.fetch(8)
		if !ok {
			return
		}
		id, ok := m.fetchID()
		if !ok {
			return
		}
		m.allocate(id, bytecode.VarType(t))

	case bytecode.OpFem:
		if id, ok := m.fetchID(); ok {
			m.free(id)
		}

	case bytecode.OpSet:
		id, ok := m.fetchID()
		if !ok {
			return
		}
		size, ok := m.fetch(64)
		if !ok {
			return
		}
		data, ok := m.fetchBytes(size)
		if !ok {
			return
		}
		cur, vars, ok := m.lookup(id)
		if !ok {
			m.undefinedVariable(id)
			return
		}
		vars[id] = bytecode.Value{Type: cur.Type, Data: data}

	// ============ External objects ============
	case bytecode.OpInstantiate, bytecode.OpDelete, bytecode.OpAttach, bytecode.OpDetach:
		m.object(op)

	case bytecode.OpKill:
		if code, ok := m.fetch(64); ok {
			m.Kill(int64(code))
		}

	default:
		log.Debugf("%s: invalid opcode 0x%02X at %04X", f.fn.Name, byte(op), f.start)
		m.Kill(CodeInvalidOpcode)
	}
}

func (m *Machine) fetchID() (int64, bool) {
	w, ok := m.fetch(64)
	return int64(w), ok
}

func (m *Machine) popCV() (bool, bool) {
	if len(m.cvStack) == 0 {
		m.Kill(CodeStackUnderflow)
		return false, false
	}
	cv := m.cvStack[len(m.cvStack)-1]
	m.cvStack = m.cvStack[:len(m.cvStack)-1]
	return cv, true
}

// conditionHolds is the gate of every conditional jump.
func (m *Machine) conditionHolds() bool {
	return m.flags&FlagCMP != 0 && m.cv
}

func (m *Machine) undefinedVariable(id int64) {
	log.Debugf("%s: undefined variable %s", m.frame().fn.Name, m.program.name(id))
	m.Kill(CodeUndefinedVariable)
}

// call enters a loaded function or invokes a native. A native that is not
// done rewinds the ip so the CALL runs again on the next tick.
func (m *Machine) call(id int64) {
	if fn, ok := m.program.Functions[id]; ok {
		m.frames = append(m.frames, newFrame(fn, len(m.cvStack)))
		return
	}

	nat, ok := m.natives[id]
	if !ok {
		log.Debugf("%s: undefined function %s", m.frame().fn.Name, m.program.name(id))
		m.Kill(CodeUndefinedFunction)
		return
	}
	args, base, ok := m.peekValues(nat.arity)
	if !ok {
		m.Kill(CodeStackUnderflow)
		return
	}
	result, done, err := nat.fn(m, args)
	if err != nil {
		log.Errorf("native %s: %v", nat.name, err)
		m.Kill(CodeNativeFailure)
		return
	}
	if !done {
		m.frame().ip = m.frame().start
		m.state = StateWaiting
		return
	}
	m.stack = m.stack[:base]
	if result == nil {
		m.push(bytecode.Void)
	} else {
		m.push(*result)
	}
}

// ret leaves the current function. Its locals go with the frame and the cv
// stack is cut back to where it was at the call. The value on top is the
// result, converted to the declared return type.
func (m *Machine) ret() {
	f := m.frame()
	m.frames = m.frames[:len(m.frames)-1]
	if f.cvDepth <= len(m.cvStack) {
		m.cvStack = m.cvStack[:f.cvDepth]
	}

	if f.fn.ReturnType != bytecode.TypeVoid {
		v, ok := m.pop()
		if !ok {
			return
		}
		m.push(v.Convert(f.fn.ReturnType))
	}

	if len(m.frames) == 0 {
		if v, ok := m.pop(); ok {
			m.result = v
		}
		if m.flags&FlagForcedKill == 0 {
			m.state = StateFinished
		}
	}
}

// object forwards an object keyword to the host. instantiate leaves the
// new handle; the others leave void.
func (m *Machine) object(op bytecode.Opcode) {
	arg, ok := m.pop()
	if !ok {
		return
	}
	var err error
	switch op {
	case bytecode.OpInstantiate:
		var h int64
		h, err = m.host.Instantiate(arg)
		if err != nil {
			h = bytecode.NullObjectID
		}
		m.push(bytecode.ObjectValue(h))
	case bytecode.OpDelete:
		err = m.host.Delete(arg.Int())
		if err == nil && m.attached == arg.Int() {
			m.attached = bytecode.NullObjectID
		}
		m.push(bytecode.Void)
	case bytecode.OpAttach:
		if err = m.host.Attach(arg.Int()); err == nil {
			m.attached = arg.Int()
		}
		m.push(bytecode.Void)
	case bytecode.OpDetach:
		if err = m.host.Detach(arg.Int()); err == nil {
			m.attached = bytecode.NullObjectID
		}
		m.push(bytecode.Void)
	}
	if err != nil {
		log.Warningf("%s: %v", op, err)
	}
}
