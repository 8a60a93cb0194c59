package vm

import (
	"fmt"
	"os"

	"github.com/chazu/baranium/pkg/bytecode"
)

// Function is a loaded function section.
type Function struct {
	ID         int64
	Name       string
	ParamCount int
	ReturnType bytecode.VarType
	Code       []byte
}

// Program is the set of sections a machine runs: functions by id and the
// initial values of fields and global variables.
type Program struct {
	Functions map[int64]*Function
	Globals   map[int64]bytecode.Value
	Fields    map[int64]bool
	Names     map[int64]string
}

// NewProgram creates an empty program.
func NewProgram() *Program {
	return &Program{
		Functions: make(map[int64]*Function),
		Globals:   make(map[int64]bytecode.Value),
		Fields:    make(map[int64]bool),
		Names:     make(map[int64]string),
	}
}

// Load adds every section of a script. Libraries also contribute the
// names from their export table. Loading two sections with one id is an
// error.
func (p *Program) Load(s *bytecode.Script) error {
	if s.Library != nil {
		for _, e := range s.Library.Exports {
			p.Names[e.ID] = e.Name
		}
	}
	for _, sec := range s.Sections {
		if _, dup := p.Functions[sec.ID]; dup {
			return fmt.Errorf("duplicate section %s", p.name(sec.ID))
		}
		if _, dup := p.Globals[sec.ID]; dup {
			return fmt.Errorf("duplicate section %s", p.name(sec.ID))
		}

		switch sec.Kind {
		case bytecode.SectionFunction:
			fn, err := bytecode.DecodeFunctionPayload(sec.Data)
			if err != nil {
				return fmt.Errorf("function %s: %w", p.name(sec.ID), err)
			}
			p.Functions[sec.ID] = &Function{
				ID:         sec.ID,
				Name:       p.name(sec.ID),
				ParamCount: int(fn.ParamCount),
				ReturnType: fn.ReturnType,
				Code:       fn.Code,
			}
		case bytecode.SectionField, bytecode.SectionVariable:
			v, err := bytecode.DecodeVariablePayload(sec.Data)
			if err != nil {
				return fmt.Errorf("%s %s: %w", sec.Kind, p.name(sec.ID), err)
			}
			p.Globals[sec.ID] = v
			if sec.Kind == bytecode.SectionField {
				p.Fields[sec.ID] = true
			}
		default:
			return fmt.Errorf("section %d has unknown kind %d", sec.ID, sec.Kind)
		}
	}
	return nil
}

// LoadFile decodes a binary from disk and loads it.
func (p *Program) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	s, err := bytecode.Decode(data)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return p.Load(s)
}

// AddNames records source names, usually from a compile result.
func (p *Program) AddNames(names map[int64]string) {
	for id, name := range names {
		p.Names[id] = name
	}
	for id, fn := range p.Functions {
		fn.Name = p.name(id)
	}
}

func (p *Program) name(id int64) string {
	if n, ok := p.Names[id]; ok {
		return n
	}
	return fmt.Sprintf("#%d", id)
}
