package vm

import (
	"encoding/binary"
	"fmt"
)

// Bus is the instruction memory the CPU fetches from. Each function body
// is mapped onto its own bus starting at address 0.
type Bus interface {
	Len() int
	Read(addr int, p []byte) error
}

// CodeBus serves instructions from a byte slice.
type CodeBus []byte

func (b CodeBus) Len() int { return len(b) }

func (b CodeBus) Read(addr int, p []byte) error {
	if addr < 0 || addr+len(p) > len(b) {
		return fmt.Errorf("bus read of %d bytes at %04X outside %d bytes of code", len(p), addr, len(b))
	}
	copy(p, b[addr:])
	return nil
}

// fetch reads a little-endian operand of the given width at the current
// frame's ip and advances it.
func (m *Machine) fetch(bits int) (uint64, bool) {
	f := m.frame()
	var buf [8]byte
	n := bits / 8
	if err := f.bus.Read(f.ip, buf[:n]); err != nil {
		log.Debugf("%s: %v", f.fn.Name, err)
		m.Kill(CodeBusFault)
		return 0, false
	}
	f.ip += n
	switch bits {
	case 8:
		return uint64(buf[0]), true
	case 16:
		return uint64(binary.LittleEndian.Uint16(buf[:])), true
	}
	return binary.LittleEndian.Uint64(buf[:]), true
}

// fetchBytes reads n raw bytes, as trailing SET data.
func (m *Machine) fetchBytes(n uint64) ([]byte, bool) {
	f := m.frame()
	if n > uint64(f.bus.Len()) {
		m.Kill(CodeBusFault)
		return nil, false
	}
	data := make([]byte, n)
	if err := f.bus.Read(f.ip, data); err != nil {
		log.Debugf("%s: %v", f.fn.Name, err)
		m.Kill(CodeBusFault)
		return nil, false
	}
	f.ip += int(n)
	return data, true
}
