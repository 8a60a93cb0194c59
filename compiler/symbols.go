package compiler

import (
	"strconv"

	"github.com/chazu/baranium/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Symbols: function-scoped locals and the id collision registry
// ---------------------------------------------------------------------------

// Symbol is a named variable the code generator can resolve.
type Symbol struct {
	Name  string
	Local string // qualified name the id is derived from; empty for globals
	ID    int64
	Type  bytecode.VarType
}

// SymbolTable holds the locals visible in the function being compiled.
// Blocks push a mark on entry and drop everything declared after it on
// exit; the whole table is cleared when the function body is done.
type SymbolTable struct {
	function string
	symbols  []Symbol
	marks    []int
}

// NewSymbolTable creates an empty table for the named function.
func NewSymbolTable(function string) *SymbolTable {
	return &SymbolTable{function: function}
}

// Declare adds a local. It returns false if the name is already visible
// in the innermost block. A local shadowing one of an enclosing block is
// qualified with its shadowing depth (fn.x$2) so both keep their own id.
func (s *SymbolTable) Declare(name string, t bytecode.VarType) (Symbol, bool) {
	start := 0
	if len(s.marks) > 0 {
		start = s.marks[len(s.marks)-1]
	}
	for _, sym := range s.symbols[start:] {
		if sym.Name == name {
			return sym, false
		}
	}
	shadowed := 0
	for _, sym := range s.symbols[:start] {
		if sym.Name == name {
			shadowed++
		}
	}
	local := bytecode.LocalName(s.function, name)
	if shadowed > 0 {
		local += "$" + strconv.Itoa(shadowed+1)
	}
	sym := Symbol{Name: name, Local: local, ID: bytecode.NameID(local), Type: t}
	s.symbols = append(s.symbols, sym)
	return sym, true
}

// Lookup finds the innermost visible local with the given name.
func (s *SymbolTable) Lookup(name string) (Symbol, bool) {
	for i := len(s.symbols) - 1; i >= 0; i-- {
		if s.symbols[i].Name == name {
			return s.symbols[i], true
		}
	}
	return Symbol{}, false
}

// Remove drops a local ahead of its block's end, as a for loop does with
// its start variable.
func (s *SymbolTable) Remove(name string) {
	for i := len(s.symbols) - 1; i >= 0; i-- {
		if s.symbols[i].Name == name {
			s.symbols = append(s.symbols[:i], s.symbols[i+1:]...)
			return
		}
	}
}

// Enter opens a block.
func (s *SymbolTable) Enter() {
	s.marks = append(s.marks, len(s.symbols))
}

// Leave closes the innermost block and returns the locals it dropped,
// in declaration order.
func (s *SymbolTable) Leave() []Symbol {
	if len(s.marks) == 0 {
		return nil
	}
	mark := s.marks[len(s.marks)-1]
	s.marks = s.marks[:len(s.marks)-1]
	if mark >= len(s.symbols) {
		return nil
	}
	dropped := append([]Symbol(nil), s.symbols[mark:]...)
	s.symbols = s.symbols[:mark]
	return dropped
}

// Visible returns every visible local, innermost last.
func (s *SymbolTable) Visible() []Symbol {
	return s.symbols
}

// idRegistry maps ids back to the names they were derived from so two
// names hashing to one id are caught at compile time.
type idRegistry map[int64]string

// register records name under id and reports the other name on collision.
func (r idRegistry) register(id int64, name string) (string, bool) {
	if prev, ok := r[id]; ok && prev != name {
		return prev, false
	}
	r[id] = name
	return "", true
}
